package fiscal

import (
	"context"
	"errors"

	"github.com/kwanza/fiscal/internal/domain/shared"
)

// ReservedAllocator adapts a SeriesReserver to SequenceAllocator for the
// lifetime of one transaction. Series it touches stay reserved until the
// owner calls Commit or Release. Not safe for concurrent use.
type ReservedAllocator struct {
	reserver SeriesReserver
	held     map[SequenceKey]*heldSeries
	order    []SequenceKey
}

type heldSeries struct {
	reservation SeriesReservation
	hash        string
	hashed      bool
}

// Ensure ReservedAllocator implements SequenceAllocator
var _ SequenceAllocator = (*ReservedAllocator)(nil)

// NewReservedAllocator creates an allocator bound to one transaction
func NewReservedAllocator(reserver SeriesReserver) *ReservedAllocator {
	return &ReservedAllocator{reserver: reserver, held: map[SequenceKey]*heldSeries{}}
}

// Next reserves the series on first use. Later calls for a held series
// continue it locally from the last recorded hash.
func (a *ReservedAllocator) Next(ctx context.Context, key SequenceKey) (SequenceAllocation, error) {
	if h, ok := a.held[key]; ok {
		if !h.hashed {
			return SequenceAllocation{}, shared.NewDomainError(shared.CodeInternal,
				"sequence "+key.String()+" was allocated twice without a recorded hash")
		}
		prev := h.hash
		h.reservation.Sequence++
		h.reservation.PreviousHash = prev
		h.hash, h.hashed = "", false
		return h.reservation.SequenceAllocation, nil
	}
	r, err := a.reserver.Reserve(ctx, key)
	if err != nil {
		return SequenceAllocation{}, err
	}
	a.held[key] = &heldSeries{reservation: r}
	a.order = append(a.order, key)
	return r.SequenceAllocation, nil
}

// RecordHash keeps the hash of the document that took seq until Commit
func (a *ReservedAllocator) RecordHash(_ context.Context, key SequenceKey, seq int64, hash string) error {
	h, ok := a.held[key]
	if !ok || h.reservation.Sequence != seq {
		return shared.NewDomainError(shared.CodeInternal, "hash recorded for a sequence this transaction does not hold")
	}
	h.hash, h.hashed = hash, true
	return nil
}

// Commit advances every held series. A series whose last number never got
// a hash is released and reported as an error; so is any series left over
// after a failed commit.
func (a *ReservedAllocator) Commit(ctx context.Context) error {
	var errs []error
	for i, key := range a.order {
		h := a.held[key]
		if !h.hashed {
			errs = append(errs, shared.NewDomainError(shared.CodeInternal, "sequence "+key.String()+" allocated without certification"))
			a.releaseFrom(ctx, i)
			break
		}
		if err := a.reserver.Commit(ctx, h.reservation, h.hash); err != nil {
			errs = append(errs, err)
			a.releaseFrom(ctx, i+1)
			break
		}
	}
	a.reset()
	return errors.Join(errs...)
}

// Release gives every held series back untouched
func (a *ReservedAllocator) Release(ctx context.Context) error {
	err := a.releaseFrom(ctx, 0)
	a.reset()
	return err
}

func (a *ReservedAllocator) releaseFrom(ctx context.Context, start int) error {
	// the transaction's deadline may already have passed
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, key := range a.order[start:] {
		if err := a.reserver.Release(ctx, a.held[key].reservation); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *ReservedAllocator) reset() {
	a.held = map[SequenceKey]*heldSeries{}
	a.order = nil
}
