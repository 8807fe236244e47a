package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which client-supplied idempotency keys already
// produced a resource, so a retried create returns the original result.
type IdempotencyStore interface {
	// Lookup returns the resource ID recorded for key, or "" when unseen
	Lookup(ctx context.Context, key string) (string, error)

	// Remember records resourceID under key for ttl.
	// Returns false when the key was already recorded by a concurrent request.
	Remember(ctx context.Context, key, resourceID string, ttl time.Duration) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a key maps to its resource. Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency keys are honoured
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
