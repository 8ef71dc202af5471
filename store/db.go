// Package store persists trade intents and their lifecycle records in
// Postgres.
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	commonerrors "github.com/unikron/intent-relay/common/errors"
)

const defaultQueryTimeout = 5 * time.Second

// Store wraps a pooled Postgres connection. Every query runs under a bounded
// timeout derived from the caller's context.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	logger  *logrus.Logger
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, connStr string, timeout time.Duration, logger *logrus.Logger) (*Store, error) {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, commonerrors.ErrDatabaseConnect
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(commonerrors.ErrDatabaseConnect, err.Error())
	}

	return &Store{
		db:      db,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Healthy reports whether the database answers a ping.
func (s *Store) Healthy(ctx context.Context) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
