package engine

import (
	"context"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/solana"
)

// SplitFee distributes a collected protocol fee across the three pools:
// 50% liquidity stakers, 30% treasury, and the rest to the MEV bounty pool.
// The bounty absorbs the integer-division remainder so the parts always sum
// to the total.
func SplitFee(total uint64) types.FeeDistribution {
	liquidity := total * 50 / 100
	treasury := total * 30 / 100
	return types.FeeDistribution{
		TotalFee:         total,
		LiquidityStakers: liquidity,
		Treasury:         treasury,
		MevBounty:        total - liquidity - treasury,
	}
}

// FeeAccounts derives the fee pool addresses for a mint and reports whether
// they exist on chain.
func (e *Engine) FeeAccounts(ctx context.Context, tokenMint string) (*solana.FeeAccountState, error) {
	state, err := e.chain.CheckFeeAccounts(ctx, tokenMint)
	if err != nil {
		return nil, commonerrors.NewUpstream("solana", err)
	}
	return state, nil
}

// InitializeFees creates the per-mint fee pool accounts. Initializing twice
// is a conflict, detected before anything is submitted.
func (e *Engine) InitializeFees(ctx context.Context, tokenMint string) (string, *solana.FeeAccounts, error) {
	state, err := e.chain.CheckFeeAccounts(ctx, tokenMint)
	if err != nil {
		return "", nil, commonerrors.NewUpstream("solana", err)
	}
	if state.Initialized {
		return "", nil, commonerrors.NewConflict("ALREADY_INITIALIZED",
			"fee accounts are already initialized for this mint", state.Accounts.Collection.String())
	}

	sig, accounts, err := e.chain.InitializeFeeAccounts(ctx, tokenMint)
	if err != nil {
		return "", nil, commonerrors.NewExecution("initialize_fee_accounts", err)
	}
	return sig, accounts, nil
}

// SettleFees splits feeAmount out of a mint's collection account across the
// three pools on chain.
func (e *Engine) SettleFees(ctx context.Context, tokenMint string, feeAmount uint64) (string, error) {
	if feeAmount == 0 {
		return "", commonerrors.NewValidation("feeAmount must be positive")
	}

	state, err := e.chain.CheckFeeAccounts(ctx, tokenMint)
	if err != nil {
		return "", commonerrors.NewUpstream("solana", err)
	}
	if !state.Initialized {
		return "", commonerrors.NewState("ACCOUNTS_NOT_INITIALIZED",
			"fee accounts are not initialized for this mint")
	}

	sig, err := e.chain.SettleFees(ctx, tokenMint, feeAmount)
	if err != nil {
		return "", commonerrors.NewExecution("settle_trade", err)
	}
	return sig, nil
}
