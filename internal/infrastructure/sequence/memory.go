// Package sequence provides numbering backends that live outside the
// document database. They implement fiscal.SeriesReserver: a series stays
// reserved by one transaction until it commits or rolls back.
package sequence

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
)

// Ensure MemoryAllocator implements fiscal.SeriesReserver
var _ fiscal.SeriesReserver = (*MemoryAllocator)(nil)

type counter struct {
	slot     chan struct{} // holds one token while the series is reserved
	mu       sync.Mutex
	last     int64
	lastHash string
	holder   string
}

// MemoryAllocator keeps one counter per series in process memory.
// Suitable for tests and single-node development only: values are lost on restart.
type MemoryAllocator struct {
	counters sync.Map // SequenceKey -> *counter
}

// NewMemoryAllocator creates a new MemoryAllocator
func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{}
}

func (a *MemoryAllocator) counter(key fiscal.SequenceKey) *counter {
	c, _ := a.counters.LoadOrStore(key, &counter{slot: make(chan struct{}, 1)})
	return c.(*counter)
}

// Reserve waits until the series is free and claims its next number
func (a *MemoryAllocator) Reserve(ctx context.Context, key fiscal.SequenceKey) (fiscal.SeriesReservation, error) {
	if err := ctx.Err(); err != nil {
		return fiscal.SeriesReservation{}, err
	}
	c := a.counter(key)
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return fiscal.SeriesReservation{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.holder = uuid.NewString()
	return fiscal.SeriesReservation{
		Key:                key,
		SequenceAllocation: fiscal.SequenceAllocation{Sequence: c.last + 1, PreviousHash: c.lastHash},
		Token:              c.holder,
	}, nil
}

// Commit advances the series and frees it
func (a *MemoryAllocator) Commit(_ context.Context, r fiscal.SeriesReservation, hash string) error {
	c := a.counter(r.Key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holder == "" || c.holder != r.Token {
		return lostReservation(r.Key)
	}
	if r.Sequence <= c.last {
		return shared.NewDomainError(shared.CodeInternal, "sequence "+r.Key.String()+" would move backwards")
	}
	c.last = r.Sequence
	c.lastHash = hash
	c.free()
	return nil
}

// Release frees the series without consuming the number
func (a *MemoryAllocator) Release(_ context.Context, r fiscal.SeriesReservation) error {
	c := a.counter(r.Key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holder == "" || c.holder != r.Token {
		return lostReservation(r.Key)
	}
	c.free()
	return nil
}

// free must be called with mu held
func (c *counter) free() {
	c.holder = ""
	<-c.slot
}

// Current returns the last committed value of a series
func (a *MemoryAllocator) Current(key fiscal.SequenceKey) int64 {
	c := a.counter(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func lostReservation(key fiscal.SequenceKey) error {
	return shared.NewDomainError(shared.CodeConcurrency, "reservation of sequence "+key.String()+" is no longer held")
}
