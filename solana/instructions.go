package solana

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/unikron/intent-relay/common/types"
)

// Anchor instruction discriminators: the first 8 bytes of
// sha256("global:<method_name>"). Pinned as literals so a rename on either
// side fails loudly in tests instead of producing a mystery program error.
var (
	commitTradeDiscriminator           = [8]byte{225, 172, 49, 43, 30, 198, 216, 89}
	revealTradeDiscriminator           = [8]byte{72, 86, 206, 182, 223, 187, 228, 226}
	initializeFeeAccountsDiscriminator = [8]byte{233, 63, 142, 11, 168, 28, 143, 222}
	settleTradeDiscriminator           = [8]byte{252, 176, 98, 248, 73, 123, 8, 157}
)

var ed25519ProgramID = sol.MustPublicKeyFromBase58("Ed25519SigVerify111111111111111111111111111")

// newCommitInstruction builds the commit_trade instruction storing the intent
// hash on chain. Only the digest, nonce and expiry travel; trade terms stay
// off chain until reveal.
func newCommitInstruction(programID, intentPDA, payer sol.PublicKey, intentHash [32]byte, nonce uint64, expiry int64) (sol.Instruction, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBorshEncoder(buf)

	if err := encoder.WriteBytes(commitTradeDiscriminator[:], false); err != nil {
		return nil, errors.Wrap(err, "failed to write discriminator")
	}
	if err := encoder.WriteBytes(intentHash[:], false); err != nil {
		return nil, errors.Wrap(err, "failed to write intent hash")
	}
	if err := encoder.WriteUint64(nonce, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "failed to write nonce")
	}
	if err := encoder.WriteInt64(expiry, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "failed to write expiry")
	}

	return sol.NewInstruction(
		programID,
		sol.AccountMetaSlice{
			{PublicKey: intentPDA, IsSigner: false, IsWritable: true},
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: sol.SystemProgramID, IsSigner: false, IsWritable: false},
		},
		buf.Bytes(),
	), nil
}

// revealAccounts collects the fourteen accounts of the reveal_trade
// instruction in program order.
type revealAccounts struct {
	intentPDA      sol.PublicKey
	user           sol.PublicKey
	userTokenIn    sol.PublicKey
	userTokenOut   sol.PublicKey
	relayerTokenIn sol.PublicKey
	relayerTokOut  sol.PublicKey
	relayer        sol.PublicKey
	tokenIn        sol.PublicKey
	tokenOut       sol.PublicKey
	feeCollection  sol.PublicKey
	feeAuthority   sol.PublicKey
}

// newRevealInstruction builds the reveal_trade instruction disclosing the
// full trade terms plus the user's Ed25519 signature over the intent hash.
func newRevealInstruction(programID sol.PublicKey, accounts revealAccounts, ti *types.TradeIntent, expectedHash [32]byte, signature [64]byte) (sol.Instruction, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBorshEncoder(buf)

	if err := encoder.WriteBytes(revealTradeDiscriminator[:], false); err != nil {
		return nil, errors.Wrap(err, "failed to write discriminator")
	}
	if err := writeIntentData(encoder, ti); err != nil {
		return nil, err
	}
	if err := encoder.WriteBytes(expectedHash[:], false); err != nil {
		return nil, errors.Wrap(err, "failed to write expected hash")
	}
	if err := encoder.WriteBytes(signature[:], false); err != nil {
		return nil, errors.Wrap(err, "failed to write signature")
	}

	return sol.NewInstruction(
		programID,
		sol.AccountMetaSlice{
			{PublicKey: accounts.intentPDA, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.user, IsSigner: false, IsWritable: true},
			{PublicKey: sol.SysVarInstructionsPubkey, IsSigner: false, IsWritable: false},
			{PublicKey: accounts.userTokenIn, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.userTokenOut, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.relayerTokenIn, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.relayerTokOut, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.relayer, IsSigner: true, IsWritable: true},
			{PublicKey: accounts.tokenIn, IsSigner: false, IsWritable: false},
			{PublicKey: accounts.tokenOut, IsSigner: false, IsWritable: false},
			{PublicKey: accounts.feeCollection, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.feeAuthority, IsSigner: false, IsWritable: false},
			{PublicKey: sol.TokenProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: sol.SystemProgramID, IsSigner: false, IsWritable: false},
		},
		buf.Bytes(),
	), nil
}

// writeIntentData serializes the trade terms in the on-chain account layout.
// Note the order differs from the canonical hash order: the program groups
// user/nonce/expiry/relayer first.
func writeIntentData(encoder *bin.Encoder, ti *types.TradeIntent) error {
	user, err := sol.PublicKeyFromBase58(ti.User)
	if err != nil {
		return errors.Wrap(err, "failed to parse user")
	}
	relayer, err := sol.PublicKeyFromBase58(ti.Relayer)
	if err != nil {
		return errors.Wrap(err, "failed to parse relayer")
	}
	tokenIn, err := sol.PublicKeyFromBase58(ti.TokenIn)
	if err != nil {
		return errors.Wrap(err, "failed to parse tokenIn")
	}
	tokenOut, err := sol.PublicKeyFromBase58(ti.TokenOut)
	if err != nil {
		return errors.Wrap(err, "failed to parse tokenOut")
	}

	if err := encoder.WriteBytes(user.Bytes(), false); err != nil {
		return errors.Wrap(err, "failed to write user")
	}
	if err := encoder.WriteUint64(ti.Nonce, binary.LittleEndian); err != nil {
		return errors.Wrap(err, "failed to write nonce")
	}
	if err := encoder.WriteInt64(ti.Expiry, binary.LittleEndian); err != nil {
		return errors.Wrap(err, "failed to write expiry")
	}
	if err := encoder.WriteBytes(relayer.Bytes(), false); err != nil {
		return errors.Wrap(err, "failed to write relayer")
	}
	if err := encoder.WriteUint64(ti.RelayerFee, binary.LittleEndian); err != nil {
		return errors.Wrap(err, "failed to write relayerFee")
	}
	if err := encoder.WriteBytes(tokenIn.Bytes(), false); err != nil {
		return errors.Wrap(err, "failed to write tokenIn")
	}
	if err := encoder.WriteBytes(tokenOut.Bytes(), false); err != nil {
		return errors.Wrap(err, "failed to write tokenOut")
	}
	if err := encoder.WriteUint64(ti.AmountIn, binary.LittleEndian); err != nil {
		return errors.Wrap(err, "failed to write amountIn")
	}
	if err := encoder.WriteUint64(ti.MinOut, binary.LittleEndian); err != nil {
		return errors.Wrap(err, "failed to write minOut")
	}
	return nil
}

// newEd25519VerifyInstruction builds the native sig-verify instruction that
// must precede reveal_trade in the same transaction. The program inspects it
// through the instructions sysvar, so the offsets below have to point into
// this instruction's own data (instruction index 0xffff = "current").
func newEd25519VerifyInstruction(pubkey sol.PublicKey, signature [64]byte, message []byte) sol.Instruction {
	const (
		headerLen    = 16  // count(1) + padding(1) + 7 u16 offsets
		pubkeyOffset = 16  // header
		sigOffset    = 48  // header + pubkey
		msgOffset    = 112 // header + pubkey + signature
	)

	data := make([]byte, 0, msgOffset+len(message))
	data = append(data, 1, 0) // one signature, padding

	offsets := make([]byte, 14)
	binary.LittleEndian.PutUint16(offsets[0:2], sigOffset)
	binary.LittleEndian.PutUint16(offsets[2:4], 0xffff)
	binary.LittleEndian.PutUint16(offsets[4:6], pubkeyOffset)
	binary.LittleEndian.PutUint16(offsets[6:8], 0xffff)
	binary.LittleEndian.PutUint16(offsets[8:10], msgOffset)
	binary.LittleEndian.PutUint16(offsets[10:12], uint16(len(message)))
	binary.LittleEndian.PutUint16(offsets[12:14], 0xffff)
	data = append(data, offsets...)

	data = append(data, pubkey.Bytes()...)
	data = append(data, signature[:]...)
	data = append(data, message...)

	return sol.NewInstruction(
		ed25519ProgramID,
		sol.AccountMetaSlice{},
		data,
	)
}

// newInitializeFeeAccountsInstruction builds the instruction creating the
// five per-mint fee pool accounts.
func newInitializeFeeAccountsInstruction(programID sol.PublicKey, accounts *FeeAccounts, mint, payer sol.PublicKey) sol.Instruction {
	return sol.NewInstruction(
		programID,
		sol.AccountMetaSlice{
			{PublicKey: accounts.Authority, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.LiquidityStakers, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.Treasury, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.MevBounty, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.Collection, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: sol.TokenProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: sol.SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: sol.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		},
		initializeFeeAccountsDiscriminator[:],
	)
}

// newSettleInstruction builds the settle_trade instruction splitting
// feeAmount out of the collection account across the three fee pools.
func newSettleInstruction(programID sol.PublicKey, accounts *FeeAccounts, mint, payer sol.PublicKey, feeAmount uint64) sol.Instruction {
	data := make([]byte, 0, 16)
	data = append(data, settleTradeDiscriminator[:]...)
	amount := make([]byte, 8)
	binary.LittleEndian.PutUint64(amount, feeAmount)
	data = append(data, amount...)

	return sol.NewInstruction(
		programID,
		sol.AccountMetaSlice{
			{PublicKey: accounts.Authority, IsSigner: false, IsWritable: false},
			{PublicKey: accounts.Collection, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.LiquidityStakers, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.Treasury, IsSigner: false, IsWritable: true},
			{PublicKey: accounts.MevBounty, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: sol.TokenProgramID, IsSigner: false, IsWritable: false},
		},
		data,
	)
}
