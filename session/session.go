// Package session keeps short-lived {intent, hash, route} snapshots so a
// client that lost its local state can recover a pending trade. Sessions are
// ephemeral by design and never written to the durable store.
package session

import (
	"context"
	"time"

	"github.com/unikron/intent-relay/common/types"
)

// DefaultTTL bounds how long a recovery snapshot stays available.
const DefaultTTL = time.Hour

// Store is the session persistence surface. Implementations must treat an
// expired session the same as a missing one.
type Store interface {
	// Put saves a snapshot and returns its generated session ID.
	Put(ctx context.Context, snapshot *types.SessionSnapshot) (string, error)
	// Get returns the snapshot for an ID, or a NotFoundError when the
	// session is unknown or expired.
	Get(ctx context.Context, id string) (*types.SessionSnapshot, error)
	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error
}
