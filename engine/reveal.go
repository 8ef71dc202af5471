package engine

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/intent"
)

// Reveal discloses a committed intent's terms on chain and executes the swap.
// Every precondition is checked before anything is submitted; only a failure
// of the execution transaction itself moves the intent to failed status.
func (e *Engine) Reveal(ctx context.Context, hash, signature string) (*types.RevealResult, error) {
	if !intent.ValidSignature(signature) {
		return nil, commonerrors.NewValidation("signature must be a 128-character hex string")
	}

	record, err := e.store.GetIntent(ctx, hash)
	if err != nil {
		return nil, err
	}

	switch record.Status {
	case types.StatusCommitted:
	case types.StatusRevealed:
		reference := ""
		if record.Reveal != nil {
			reference = record.Reveal.Tx
		}
		return nil, commonerrors.NewConflict("ALREADY_REVEALED",
			"intent is already revealed", reference)
	default:
		return nil, commonerrors.NewState("NOT_COMMITTED",
			"intent is in status "+string(record.Status)+", expected committed")
	}

	// The stored terms must still hash to the identifier the caller signed.
	computed := intent.HashIntent(&record.Intent)
	if computed != hash {
		return nil, &commonerrors.IntegrityError{Expected: hash, Computed: computed}
	}

	if record.Intent.Expired(e.now()) {
		return nil, commonerrors.NewIntentExpired(record.Intent.Expiry)
	}

	commitment, err := e.chain.GetCommitment(ctx, record.Intent.User, record.Intent.Nonce)
	if err != nil {
		return nil, commonerrors.NewUpstream("solana", err)
	}
	if commitment == nil {
		return nil, commonerrors.NewState("NOT_COMMITTED",
			"no on-chain commitment exists for this intent")
	}
	if commitment.Hash() != hash {
		return nil, &commonerrors.IntegrityError{Expected: hash, Computed: commitment.Hash()}
	}
	if commitment.Revealed {
		reference := ""
		if record.Reveal != nil {
			reference = record.Reveal.Tx
		}
		return nil, commonerrors.NewConflict("ALREADY_REVEALED",
			"on-chain commitment is already revealed", reference)
	}

	balance, err := e.chain.TokenBalance(ctx, record.Intent.User, record.Intent.TokenIn)
	if err != nil {
		return nil, commonerrors.NewUpstream("solana", err)
	}
	if balance.Cmp(new(big.Int).SetUint64(record.Intent.AmountIn)) < 0 {
		return nil, commonerrors.NewState("INSUFFICIENT_BALANCE",
			"user balance does not cover amountIn")
	}

	feeState, err := e.chain.CheckFeeAccounts(ctx, record.Intent.TokenIn)
	if err != nil {
		return nil, commonerrors.NewUpstream("solana", err)
	}
	if !feeState.Initialized {
		return nil, commonerrors.NewState("ACCOUNTS_NOT_INITIALIZED",
			"fee accounts are not initialized for tokenIn")
	}

	outcome, err := e.chain.RevealIntent(ctx, &record.Intent, hash, signature)
	if err != nil {
		if markErr := e.store.MarkFailed(ctx, hash, err.Error()); markErr != nil {
			e.logger.WithFields(logrus.Fields{
				"intentHash": hash,
				"error":      markErr,
			}).Error("Failed to mark intent as failed")
		}
		return nil, commonerrors.NewExecution("reveal", err)
	}

	protocolFee := record.Intent.AmountIn * e.feeBps / 10_000
	split := SplitFee(protocolFee)

	reveal := &types.RevealRecord{
		Tx:          outcome.Signature,
		Successful:  true,
		AmountOut:   outcome.AmountOut,
		ProtocolFee: protocolFee,
		RelayerFee:  record.Intent.RelayerFee,
	}
	fees := &types.FeeSplitRecord{
		Liquidity: split.LiquidityStakers,
		Protocol:  split.Treasury,
		Bounty:    split.MevBounty,
	}
	if err := e.store.SaveReveal(ctx, hash, reveal, fees); err != nil {
		e.logger.WithFields(logrus.Fields{
			"intentHash": hash,
			"signature":  outcome.Signature,
			"error":      err,
		}).Error("Reveal confirmed on chain but store update failed")
		return nil, err
	}

	return &types.RevealResult{
		Transaction: outcome.Signature,
		Success:     true,
		AmountOut:   outcome.AmountOut,
		ProtocolFee: protocolFee,
		RelayerFee:  record.Intent.RelayerFee,
	}, nil
}
