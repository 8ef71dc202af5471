package store

import (
	"context"

	"github.com/pkg/errors"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
)

// SaveCommit records a confirmed commit transaction and promotes the intent
// to committed status atomically.
func (s *Store) SaveCommit(ctx context.Context, hash, txSignature string) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
       UPDATE intents
       SET status = $1,
           updated_at = NOW()
       WHERE intent_hash = $2
         AND status = $3
    `, types.StatusCommitted, hash, types.StatusDraft)
	if err != nil {
		return errors.Wrap(err, "failed to update intent status")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return commonerrors.NewConflict("ALREADY_COMMITTED",
			"intent is not in draft status", hash)
	}

	_, err = tx.ExecContext(ctx, `
       INSERT INTO commits (intent_id, tx_signature)
       SELECT id, $1 FROM intents WHERE intent_hash = $2
    `, txSignature, hash)
	if err != nil {
		return errors.Wrap(err, "failed to insert commit record")
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
