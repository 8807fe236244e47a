package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kwanza/fiscal/internal/domain/shared"
)

// entry represents a stored resource ID with expiration
type entry struct {
	resourceID string
	expiresAt  time.Time
}

// InMemoryIdempotencyStore implements IdempotencyStore using an in-memory map.
// Suitable for single-instance deployments and testing.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store.
// It starts a background goroutine that evicts expired entries every interval.
func NewInMemoryIdempotencyStore(interval time.Duration) *InMemoryIdempotencyStore {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop(interval)

	return store
}

// Lookup returns the resource ID stored under key, or "" when unseen or expired
func (s *InMemoryIdempotencyStore) Lookup(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists || !s.now().Before(e.expiresAt) {
		return "", nil
	}
	return e.resourceID, nil
}

// Remember records resourceID under key for ttl.
// Returns false when a live entry already exists.
func (s *InMemoryIdempotencyStore) Remember(_ context.Context, key, resourceID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, exists := s.entries[key]; exists && now.Before(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = entry{resourceID: resourceID, expiresAt: now.Add(ttl)}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries from the store
func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
