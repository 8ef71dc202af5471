// Package engine orchestrates the commit-reveal lifecycle of trade intents:
// creation, on-chain commitment, reveal-and-execute and fee settlement.
package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/solana"
)

// DefaultProtocolFeeBps is the protocol fee charged on amountIn when no
// override is configured.
const DefaultProtocolFeeBps = 10

// IntentStore is the persistence surface the engine depends on.
type IntentStore interface {
	CreateIntent(ctx context.Context, ti *types.TradeIntent, hash string) (*types.IntentRecord, error)
	GetIntent(ctx context.Context, hash string) (*types.IntentRecord, error)
	SaveCommit(ctx context.Context, hash, txSignature string) error
	SaveReveal(ctx context.Context, hash string, reveal *types.RevealRecord, fees *types.FeeSplitRecord) error
	MarkFailed(ctx context.Context, hash, reason string) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Chain is the on-chain surface the engine depends on.
type Chain interface {
	CommitIntent(ctx context.Context, user string, nonce uint64, expiry int64, intentHash string) (*solana.CommitOutcome, error)
	RevealIntent(ctx context.Context, ti *types.TradeIntent, intentHash, signature string) (*solana.ExecutionOutcome, error)
	GetCommitment(ctx context.Context, user string, nonce uint64) (*solana.Commitment, error)
	TokenBalance(ctx context.Context, owner, mint string) (*big.Int, error)
	CheckFeeAccounts(ctx context.Context, tokenMint string) (*solana.FeeAccountState, error)
	InitializeFeeAccounts(ctx context.Context, tokenMint string) (string, *solana.FeeAccounts, error)
	SettleFees(ctx context.Context, tokenMint string, feeAmount uint64) (string, error)
}

// Engine coordinates the store and the chain. It owns every lifecycle
// transition; callers never move an intent between statuses directly.
type Engine struct {
	store  IntentStore
	chain  Chain
	logger *logrus.Logger
	feeBps uint64
	now    func() time.Time
}

// New creates an engine. A feeBps of zero falls back to the default.
func New(store IntentStore, chain Chain, logger *logrus.Logger, feeBps uint64) *Engine {
	if feeBps == 0 {
		feeBps = DefaultProtocolFeeBps
	}
	return &Engine{
		store:  store,
		chain:  chain,
		logger: logger,
		feeBps: feeBps,
		now:    time.Now,
	}
}

// Status returns the current store projection of an intent.
func (e *Engine) Status(ctx context.Context, hash string) (*types.IntentRecord, error) {
	return e.store.GetIntent(ctx, hash)
}

// ExpireSweep moves every overdue non-terminal intent to expired status.
func (e *Engine) ExpireSweep(ctx context.Context) (int64, error) {
	swept, err := e.store.ExpireOverdue(ctx, e.now())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		e.logger.WithField("count", swept).Info("Expired overdue intents")
	}
	return swept, nil
}
