package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
)

const pqUniqueViolation = "23505"

// CreateIntent persists a validated intent in draft status. The user row is
// created on first contact. A second live intent for the same (user, nonce)
// or a duplicate hash surfaces as a ConflictError.
func (s *Store) CreateIntent(ctx context.Context, ti *types.TradeIntent, hash string) (*types.IntentRecord, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRowContext(ctx, `
       INSERT INTO users (address)
       VALUES ($1)
       ON CONFLICT (address) DO UPDATE SET address = EXCLUDED.address
       RETURNING id
    `, ti.User).Scan(&userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert user")
	}

	var id int64
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `
       INSERT INTO intents (
           user_id,
           intent_hash,
           token_in,
           token_out,
           amount_in,
           min_out,
           expiry,
           nonce,
           route_hash,
           relayer_fee,
           relayer,
           status
       ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
       RETURNING id, created_at
    `,
		userID,
		hash,
		ti.TokenIn,
		ti.TokenOut,
		int64(ti.AmountIn),
		int64(ti.MinOut),
		ti.Expiry,
		int64(ti.Nonce),
		ti.RouteHash,
		int64(ti.RelayerFee),
		ti.Relayer,
		types.StatusDraft,
	).Scan(&id, &createdAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			if pqErr.Constraint == "intents_intent_hash_key" {
				return nil, commonerrors.NewConflict("DUPLICATE_INTENT",
					"an identical intent already exists", hash)
			}
			return nil, commonerrors.NewConflict("DUPLICATE_NONCE",
				"a live intent already exists for this user and nonce", "")
		}
		return nil, errors.Wrap(err, "failed to insert intent")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	return &types.IntentRecord{
		ID:        id,
		Hash:      hash,
		Status:    types.StatusDraft,
		Intent:    *ti,
		CreatedAt: createdAt,
	}, nil
}

// GetIntent loads the full projection of an intent by its hash, including the
// commit, reveal and fee split records when present.
func (s *Store) GetIntent(ctx context.Context, hash string) (*types.IntentRecord, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	record := &types.IntentRecord{}
	var (
		commitTx        sql.NullString
		commitAt        sql.NullTime
		revealTx        sql.NullString
		revealOK        sql.NullBool
		amountOut       sql.NullInt64
		protocolFee     sql.NullInt64
		revealRelayFee  sql.NullInt64
		revealAt        sql.NullTime
		liquidityAmount sql.NullInt64
		protocolAmount  sql.NullInt64
		bountyAmount    sql.NullInt64
		splitAt         sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `
       SELECT
           i.id,
           i.intent_hash,
           i.status,
           i.created_at,
           u.address,
           i.token_in,
           i.token_out,
           i.amount_in,
           i.min_out,
           i.expiry,
           i.nonce,
           i.route_hash,
           i.relayer_fee,
           i.relayer,
           c.tx_signature,
           c.created_at,
           r.tx_signature,
           r.successful,
           r.amount_out,
           r.protocol_fee,
           r.relayer_fee,
           r.created_at,
           f.liquidity_amount,
           f.protocol_amount,
           f.bounty_amount,
           f.created_at
       FROM intents i
       JOIN users u ON u.id = i.user_id
       LEFT JOIN commits c ON c.intent_id = i.id
       LEFT JOIN reveals r ON r.intent_id = i.id
       LEFT JOIN fee_splits f ON f.intent_id = i.id
       WHERE i.intent_hash = $1
    `, hash).Scan(
		&record.ID,
		&record.Hash,
		&record.Status,
		&record.CreatedAt,
		&record.Intent.User,
		&record.Intent.TokenIn,
		&record.Intent.TokenOut,
		&record.Intent.AmountIn,
		&record.Intent.MinOut,
		&record.Intent.Expiry,
		&record.Intent.Nonce,
		&record.Intent.RouteHash,
		&record.Intent.RelayerFee,
		&record.Intent.Relayer,
		&commitTx,
		&commitAt,
		&revealTx,
		&revealOK,
		&amountOut,
		&protocolFee,
		&revealRelayFee,
		&revealAt,
		&liquidityAmount,
		&protocolAmount,
		&bountyAmount,
		&splitAt,
	)
	if err == sql.ErrNoRows {
		return nil, commonerrors.NewNotFound("intent", hash)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query intent")
	}

	if commitTx.Valid {
		record.Commit = &types.CommitRecord{
			Tx:        commitTx.String,
			CreatedAt: commitAt.Time,
		}
	}
	if revealTx.Valid {
		record.Reveal = &types.RevealRecord{
			Tx:          revealTx.String,
			Successful:  revealOK.Bool,
			AmountOut:   uint64(amountOut.Int64),
			ProtocolFee: uint64(protocolFee.Int64),
			RelayerFee:  uint64(revealRelayFee.Int64),
			CreatedAt:   revealAt.Time,
		}
	}
	if liquidityAmount.Valid {
		record.Fees = &types.FeeSplitRecord{
			Liquidity: uint64(liquidityAmount.Int64),
			Protocol:  uint64(protocolAmount.Int64),
			Bounty:    uint64(bountyAmount.Int64),
			CreatedAt: splitAt.Time,
		}
	}

	return record, nil
}

// MarkFailed moves an intent to the terminal failed status and records the
// reason.
func (s *Store) MarkFailed(ctx context.Context, hash, reason string) error {
	return s.updateStatus(ctx, hash, types.StatusFailed, reason)
}

func (s *Store) updateStatus(ctx context.Context, hash string, status types.IntentStatus, reason string) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
       UPDATE intents
       SET status = $1,
           failure_reason = NULLIF($2, ''),
           updated_at = NOW()
       WHERE intent_hash = $3
    `, status, reason, hash)
	if err != nil {
		return errors.Wrap(err, "failed to update intent status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return commonerrors.NewNotFound("intent", hash)
	}
	return nil
}

// ExpireOverdue sweeps every non-terminal intent whose expiry has elapsed
// into the expired status. Returns the number of swept intents.
func (s *Store) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
       UPDATE intents
       SET status = $1,
           updated_at = NOW()
       WHERE status IN ($2, $3)
         AND expiry < $4
    `, types.StatusExpired, types.StatusDraft, types.StatusCommitted, now.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "failed to expire overdue intents")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return affected, nil
}
