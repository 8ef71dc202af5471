package store

import (
	"context"

	"github.com/pkg/errors"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
)

// SaveReveal records a confirmed execution transaction, its fee split and the
// terminal revealed status in a single database transaction. Either every
// record lands or none does.
func (s *Store) SaveReveal(ctx context.Context, hash string, reveal *types.RevealRecord, fees *types.FeeSplitRecord) error {
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
    `, types.StatusRevealed, hash, types.StatusCommitted)
	if err != nil {
		return errors.Wrap(err, "failed to update intent status")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return commonerrors.NewConflict("NOT_COMMITTED",
			"intent is not in committed status", hash)
	}

	_, err = tx.ExecContext(ctx, `
       INSERT INTO reveals (
           intent_id,
           tx_signature,
           successful,
           amount_out,
           protocol_fee,
           relayer_fee
       )
       SELECT id, $1, $2, $3, $4, $5 FROM intents WHERE intent_hash = $6
    `,
		reveal.Tx,
		reveal.Successful,
		int64(reveal.AmountOut),
		int64(reveal.ProtocolFee),
		int64(reveal.RelayerFee),
		hash,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert reveal record")
	}

	_, err = tx.ExecContext(ctx, `
       INSERT INTO fee_splits (
           intent_id,
           liquidity_amount,
           protocol_amount,
           bounty_amount
       )
       SELECT id, $1, $2, $3 FROM intents WHERE intent_hash = $4
    `,
		int64(fees.Liquidity),
		int64(fees.Protocol),
		int64(fees.Bounty),
		hash,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert fee split record")
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
