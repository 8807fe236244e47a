package cache

import (
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the idempotency store for the deployment
type IdempotencyStoreFactory struct {
	client *redis.Client
	logger *zap.Logger
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithRedisClient makes the factory build Redis-backed stores
func WithRedisClient(client *redis.Client) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.client = client
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when a client is configured and an
// in-memory store otherwise.
func (f *IdempotencyStoreFactory) CreateStore() shared.IdempotencyStore {
	if f.client != nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(f.client, DefaultIdempotencyKeyPrefix)
	}

	// In-memory keys are per process: a retry routed to another
	// instance creates a second document.
	f.logger.Warn("Redis disabled, using in-memory idempotency store")
	return NewInMemoryIdempotencyStore(0)
}
