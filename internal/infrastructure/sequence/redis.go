package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// Ensure RedisAllocator implements fiscal.SeriesReserver
var _ fiscal.SeriesReserver = (*RedisAllocator)(nil)

const (
	defaultKeyPrefix  = "fiscal:seq:"
	defaultLockTTL    = 30 * time.Second
	defaultRetryDelay = 10 * time.Millisecond
)

// commitScript advances the counter and the last hash while the caller
// still holds the series lock, then drops the lock.
// KEYS: lock, counter, hash. ARGV: token, seq, hash.
var commitScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2])
redis.call('HSET', KEYS[3], 'seq', ARGV[2], 'hash', ARGV[3])
redis.call('DEL', KEYS[1])
return 1
`)

// releaseScript drops the series lock if the caller still holds it
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAllocator numbers documents in redis so several instances share a
// series. A reservation is a lock key with a TTL; the counter only moves on
// Commit, so a rolled back document gives its number back. A holder that
// dies keeps the series locked until the TTL expires.
type RedisAllocator struct {
	client     redis.UniversalClient
	keyPrefix  string
	lockTTL    time.Duration
	retryDelay time.Duration
}

// RedisAllocatorOption configures a RedisAllocator
type RedisAllocatorOption func(*RedisAllocator)

// WithLockTTL bounds how long a reservation may be held. It must exceed
// the longest document transaction.
func WithLockTTL(ttl time.Duration) RedisAllocatorOption {
	return func(a *RedisAllocator) {
		if ttl > 0 {
			a.lockTTL = ttl
		}
	}
}

// NewRedisAllocator creates a RedisAllocator on an existing client
func NewRedisAllocator(client redis.UniversalClient, keyPrefix string, opts ...RedisAllocatorOption) *RedisAllocator {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	a := &RedisAllocator{
		client:     client,
		keyPrefix:  keyPrefix,
		lockTTL:    defaultLockTTL,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CounterKey returns fiscal:seq:{<tenant>:<type>:<year>}. The hash tag keeps
// the counter, hash and lock of a series in one cluster slot.
func (a *RedisAllocator) CounterKey(key fiscal.SequenceKey) string {
	return a.keyPrefix + "{" + key.String() + "}"
}

func (a *RedisAllocator) hashKey(key fiscal.SequenceKey) string {
	return a.CounterKey(key) + ":hash"
}

func (a *RedisAllocator) lockKey(key fiscal.SequenceKey) string {
	return a.CounterKey(key) + ":lock"
}

// Reserve takes the series lock, waiting while another holder has it, and
// reads the next number with the last committed hash
func (a *RedisAllocator) Reserve(ctx context.Context, key fiscal.SequenceKey) (fiscal.SeriesReservation, error) {
	token := uuid.NewString()
	for {
		ok, err := a.client.SetNX(ctx, a.lockKey(key), token, a.lockTTL).Result()
		if err != nil {
			return fiscal.SeriesReservation{}, unavailable("lock series", err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(a.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fiscal.SeriesReservation{}, ctx.Err()
		case <-timer.C:
		}
	}

	var (
		last *redis.StringCmd
		hash *redis.StringCmd
	)
	_, err := a.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		last = pipe.Get(ctx, a.CounterKey(key))
		hash = pipe.HGet(ctx, a.hashKey(key), "hash")
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		a.unlock(ctx, key, token)
		return fiscal.SeriesReservation{}, unavailable("read series", err)
	}
	seq, err := last.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		a.unlock(ctx, key, token)
		return fiscal.SeriesReservation{}, unavailable("read series counter", err)
	}
	prev, err := hash.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		a.unlock(ctx, key, token)
		return fiscal.SeriesReservation{}, unavailable("read previous hash", err)
	}
	return fiscal.SeriesReservation{
		Key:                key,
		SequenceAllocation: fiscal.SequenceAllocation{Sequence: seq + 1, PreviousHash: prev},
		Token:              token,
	}, nil
}

// Commit stores the new counter and hash and drops the lock in one script
func (a *RedisAllocator) Commit(ctx context.Context, r fiscal.SeriesReservation, hash string) error {
	keys := []string{a.lockKey(r.Key), a.CounterKey(r.Key), a.hashKey(r.Key)}
	held, err := commitScript.Run(ctx, a.client, keys, r.Token, strconv.FormatInt(r.Sequence, 10), hash).Int()
	if err != nil {
		return unavailable("commit series", err)
	}
	if held == 0 {
		return lostReservation(r.Key)
	}
	return nil
}

// Release drops the lock without moving the counter
func (a *RedisAllocator) Release(ctx context.Context, r fiscal.SeriesReservation) error {
	if err := releaseScript.Run(ctx, a.client, []string{a.lockKey(r.Key)}, r.Token).Err(); err != nil {
		return unavailable("release series", err)
	}
	return nil
}

func (a *RedisAllocator) unlock(ctx context.Context, key fiscal.SequenceKey, token string) {
	_ = releaseScript.Run(context.WithoutCancel(ctx), a.client, []string{a.lockKey(key)}, token).Err()
}

func unavailable(op string, err error) error {
	return shared.WrapDomainError(shared.CodeStorageUnavailable, fmt.Sprintf("sequence store: failed to %s", op), err)
}
