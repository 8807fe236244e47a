package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyKeyPrefix namespaces idempotency keys in Redis
const DefaultIdempotencyKeyPrefix = "fiscal:idempotency:"

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// Suitable for deployments where several instances share idempotency state.
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store on an existing client.
// The client is not closed by Close.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultIdempotencyKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Lookup returns the resource ID stored under key, or "" when unseen
func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) (string, error) {
	id, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return id, nil
}

// Remember records resourceID under key for ttl.
// Uses SETNX so only the first of two racing requests wins.
func (s *RedisIdempotencyStore) Remember(ctx context.Context, key, resourceID string, ttl time.Duration) (bool, error) {
	stored, err := s.client.SetNX(ctx, s.keyPrefix+key, resourceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record idempotency key: %w", err)
	}
	return stored, nil
}

// Close is a no-op: the shared client is closed by its owner
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
