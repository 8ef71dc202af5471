package engine

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/solana"
)

// Commit anchors a draft intent's hash on chain and promotes it to committed
// status. A submission failure leaves the intent in draft so the caller can
// retry; the store transition happens only after on-chain confirmation.
func (e *Engine) Commit(ctx context.Context, hash string) (*solana.CommitOutcome, error) {
	record, err := e.store.GetIntent(ctx, hash)
	if err != nil {
		return nil, err
	}

	switch record.Status {
	case types.StatusDraft:
	case types.StatusCommitted:
		reference := ""
		if record.Commit != nil {
			reference = record.Commit.Tx
		}
		return nil, commonerrors.NewConflict("ALREADY_COMMITTED",
			"intent is already committed", reference)
	default:
		return nil, commonerrors.NewState("TERMINAL_STATUS",
			"intent is in terminal status "+string(record.Status))
	}

	if record.Intent.Expired(e.now()) {
		return nil, commonerrors.NewIntentExpired(record.Intent.Expiry)
	}

	outcome, err := e.chain.CommitIntent(ctx, record.Intent.User, record.Intent.Nonce, record.Intent.Expiry, hash)
	if err != nil {
		if errors.Is(err, solana.ErrIntentAccountExists) {
			return nil, commonerrors.NewConflict("ALREADY_COMMITTED",
				"an on-chain commitment already exists for this user and nonce", "")
		}
		// The intent stays in draft: commit submission is retryable.
		return nil, commonerrors.NewUpstream("solana", err)
	}

	if err := e.store.SaveCommit(ctx, hash, outcome.Signature); err != nil {
		// The chain state is ahead of the store here. Surface the error
		// instead of unwinding a confirmed transaction.
		e.logger.WithFields(logrus.Fields{
			"intentHash": hash,
			"signature":  outcome.Signature,
			"error":      err,
		}).Error("Commit confirmed on chain but store update failed")
		return nil, err
	}

	return outcome, nil
}
