package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
)

// MemoryStore keeps sessions in process memory. Suitable for a single
// instance; use the Redis store when running more than one.
type MemoryStore struct {
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*types.SessionSnapshot
}

// NewMemoryStore creates an in-memory session store. A non-positive ttl
// falls back to the default.
func NewMemoryStore(ttl time.Duration, logger *logrus.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*types.SessionSnapshot),
	}
}

// Put saves a snapshot under a fresh UUID and stamps its lifetime.
func (s *MemoryStore) Put(_ context.Context, snapshot *types.SessionSnapshot) (string, error) {
	id := uuid.NewString()
	now := s.now()

	stored := *snapshot
	stored.CreatedAt = now
	stored.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	s.sessions[id] = &stored
	s.mu.Unlock()

	return id, nil
}

// Get returns a live snapshot. Expired sessions are deleted on access.
func (s *MemoryStore) Get(_ context.Context, id string) (*types.SessionSnapshot, error) {
	s.mu.RLock()
	snapshot, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, commonerrors.NewNotFound("session", id)
	}
	if !snapshot.ExpiresAt.After(s.now()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, errors.Wrapf(commonerrors.ErrSessionExpired, "session %s", id)
	}

	copied := *snapshot
	return &copied, nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Sweep drops every expired session and returns how many were removed.
// Intended to run on a schedule so abandoned sessions do not accumulate.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, snapshot := range s.sessions {
		if !snapshot.ExpiresAt.After(now) {
			delete(s.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.WithField("count", removed).Debug("Swept expired sessions")
	}
	return removed
}

// Len returns the number of live and expired sessions currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
