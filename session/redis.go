package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in Redis so recovery survives process restarts
// and works across multiple relay instances. Expiry is delegated to Redis
// key TTLs.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store and verifies
// connectivity.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Put saves a snapshot under a fresh UUID with the store TTL.
func (s *RedisStore) Put(ctx context.Context, snapshot *types.SessionSnapshot) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	stored := *snapshot
	stored.CreatedAt = now
	stored.ExpiresAt = now.Add(s.ttl)

	raw, err := json.Marshal(&stored)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize session")
	}

	if err := s.client.Set(ctx, redisKeyPrefix+id, raw, s.ttl).Err(); err != nil {
		return "", errors.Wrap(err, "failed to save session")
	}
	return id, nil
}

// Get returns a live snapshot. Redis TTL expiry surfaces as not found.
func (s *RedisStore) Get(ctx context.Context, id string) (*types.SessionSnapshot, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, commonerrors.NewNotFound("session", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session")
	}

	var snapshot types.SessionSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize session")
	}
	return &snapshot, nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(s.client.Del(ctx, redisKeyPrefix+id).Err(), "failed to delete session")
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
