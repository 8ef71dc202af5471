package solana

import (
	"encoding/binary"

	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// DefaultProgramID is the devnet deployment of the commit-reveal swap program.
var DefaultProgramID = sol.MustPublicKeyFromBase58("2bgpPzHUWu9jRAMUcF2Kex4dKti6U554hkhpkBi4EpHK")

// PDA seed tags. These are versioned protocol constants shared with the
// on-chain program: any deviation in spelling, ordering or byte encoding
// derives a different address and silently breaks interoperability. Changes
// must be caught by the golden-vector tests, never reconciled at runtime.
const (
	seedIntent        = "intent"
	seedFeeAuthority  = "fee_authority"
	seedLiquidity     = "liq_stakers"
	seedTreasury      = "treasury"
	seedMevBounty     = "mev_bounty"
	seedFeeCollection = "fee_collection"
)

// DeriveIntentAddress computes the program-derived address anchoring the
// commitment for a (user, nonce) pair. Seeds: the literal tag "intent", the
// user's raw public key bytes, and the nonce as 8 little-endian bytes.
func DeriveIntentAddress(programID, user sol.PublicKey, nonce uint64) (sol.PublicKey, uint8, error) {
	nonceBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonceBytes, nonce)

	addr, bump, err := sol.FindProgramAddress(
		[][]byte{[]byte(seedIntent), user.Bytes(), nonceBytes},
		programID,
	)
	if err != nil {
		return sol.PublicKey{}, 0, errors.Wrap(err, "failed to derive intent address")
	}
	return addr, bump, nil
}

// FeeAccounts holds the five derived fee-pool addresses for a token mint.
type FeeAccounts struct {
	Authority        sol.PublicKey `json:"feeCollectionAuthority"`
	LiquidityStakers sol.PublicKey `json:"liquidityStakerAccount"`
	Treasury         sol.PublicKey `json:"treasuryAccount"`
	MevBounty        sol.PublicKey `json:"bountyAccount"`
	Collection       sol.PublicKey `json:"feeCollectionAccount"`
}

// FeeBumps holds the bump seeds paired with FeeAccounts.
type FeeBumps struct {
	Authority        uint8 `json:"feeCollectionAuthorityBump"`
	LiquidityStakers uint8 `json:"liquidityStakerBump"`
	Treasury         uint8 `json:"treasuryBump"`
	MevBounty        uint8 `json:"bountyBump"`
	Collection       uint8 `json:"feeCollectionBump"`
}

// DeriveFeeAccounts computes the fee authority (tag-only seed) and the four
// per-mint fee pool addresses (tag + mint bytes) for a token mint.
func DeriveFeeAccounts(programID, mint sol.PublicKey) (*FeeAccounts, *FeeBumps, error) {
	accounts := &FeeAccounts{}
	bumps := &FeeBumps{}

	var err error
	if accounts.Authority, bumps.Authority, err = derive(programID, [][]byte{[]byte(seedFeeAuthority)}); err != nil {
		return nil, nil, errors.Wrap(err, "failed to derive fee authority")
	}
	if accounts.LiquidityStakers, bumps.LiquidityStakers, err = derive(programID, [][]byte{[]byte(seedLiquidity), mint.Bytes()}); err != nil {
		return nil, nil, errors.Wrap(err, "failed to derive liquidity staker account")
	}
	if accounts.Treasury, bumps.Treasury, err = derive(programID, [][]byte{[]byte(seedTreasury), mint.Bytes()}); err != nil {
		return nil, nil, errors.Wrap(err, "failed to derive treasury account")
	}
	if accounts.MevBounty, bumps.MevBounty, err = derive(programID, [][]byte{[]byte(seedMevBounty), mint.Bytes()}); err != nil {
		return nil, nil, errors.Wrap(err, "failed to derive bounty account")
	}
	if accounts.Collection, bumps.Collection, err = derive(programID, [][]byte{[]byte(seedFeeCollection), mint.Bytes()}); err != nil {
		return nil, nil, errors.Wrap(err, "failed to derive fee collection account")
	}

	return accounts, bumps, nil
}

func derive(programID sol.PublicKey, seeds [][]byte) (sol.PublicKey, uint8, error) {
	return sol.FindProgramAddress(seeds, programID)
}
