//go:build integration

package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisAllocator_Integration(t *testing.T) {
	client := newRedisClient(t)
	a := NewRedisAllocator(client, "", WithLockTTL(5*time.Second))
	ctx := context.Background()
	key := testKey(fiscal.DocumentTypeInvoice)

	t.Run("counter key layout", func(t *testing.T) {
		assert.Equal(t, "fiscal:seq:{"+key.TenantID.String()+":FT:2026}", a.CounterKey(key))
	})

	t.Run("concurrent reservations are gapless", func(t *testing.T) {
		const n = 20
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = map[int64]bool{}
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r, err := a.Reserve(ctx, key)
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, a.Commit(ctx, r, "h"))
				mu.Lock()
				seen[r.Sequence] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, seen, n)
		for i := int64(1); i <= n; i++ {
			assert.True(t, seen[i])
		}
	})

	t.Run("hash chaining and rollback", func(t *testing.T) {
		chain := testKey(fiscal.DocumentTypeCreditNote)
		first, err := a.Reserve(ctx, chain)
		require.NoError(t, err)
		assert.Empty(t, first.PreviousHash)
		require.NoError(t, a.Commit(ctx, first, "abc"))

		second, err := a.Reserve(ctx, chain)
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.Sequence)
		assert.Equal(t, "abc", second.PreviousHash)
		require.NoError(t, a.Release(ctx, second))

		third, err := a.Reserve(ctx, chain)
		require.NoError(t, err)
		assert.Equal(t, int64(2), third.Sequence, "released number is reused")
		assert.Equal(t, "abc", third.PreviousHash, "released hash never enters the chain")
		require.NoError(t, a.Commit(ctx, third, "def"))

		err = a.Commit(ctx, second, "stale")
		assert.True(t, shared.HasCode(err, shared.CodeConcurrency))
	})

	t.Run("held series blocks other reservers", func(t *testing.T) {
		held := testKey(fiscal.DocumentTypeInvoice)
		r, err := a.Reserve(ctx, held)
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = a.Reserve(waitCtx, held)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		require.NoError(t, a.Release(ctx, r))
	})

	t.Run("concurrent certification keeps the hash chain", func(t *testing.T) {
		certifier := fiscal.NewCertifier(slowSigner{})
		series := testKey(fiscal.DocumentTypeInvoice)
		req := fiscal.CertificationRequest{
			TenantID:  series.TenantID,
			Type:      series.Type,
			IssueDate: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		}
		const n = 10
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			bundles = map[int64]*fiscal.CertificationBundle{}
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				alloc := fiscal.NewReservedAllocator(a)
				b, err := certifier.Certify(ctx, alloc, req)
				if !assert.NoError(t, err) {
					_ = alloc.Release(ctx)
					return
				}
				assert.NoError(t, alloc.Commit(ctx))
				mu.Lock()
				bundles[b.Sequence] = b
				mu.Unlock()
			}()
		}
		wg.Wait()
		require.Len(t, bundles, n)
		for i := int64(2); i <= n; i++ {
			assert.Equal(t, bundles[i-1].HashControl, bundles[i].PreviousHash)
		}
	})

	t.Run("closed client is storage unavailable", func(t *testing.T) {
		closed := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
		_, err := NewRedisAllocator(closed, "").Reserve(ctx, key)
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeStorageUnavailable))
	})
}
