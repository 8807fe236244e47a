package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"gorm.io/gorm"
)

const nextSequenceSQL = `INSERT INTO document_sequences (tenant_id, document_type, fiscal_year, last_value, last_hash, updated_at)
VALUES (?, ?, ?, 1, '', ?)
ON CONFLICT (tenant_id, document_type, fiscal_year)
DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = excluded.updated_at
RETURNING last_value, last_hash`

const recordHashSQL = `UPDATE document_sequences SET last_hash = ?, updated_at = ?
WHERE tenant_id = ? AND document_type = ? AND fiscal_year = ? AND last_value = ?`

// GormSequenceAllocator allocates document numbers from the document_sequences table.
// The upsert takes a row lock that is held until the surrounding transaction
// ends, so concurrent creators of the same series queue behind each other.
// A rolled back document also rolls back its number and the series stays gapless.
type GormSequenceAllocator struct {
	db *gorm.DB
}

// NewGormSequenceAllocator creates a new GormSequenceAllocator
func NewGormSequenceAllocator(db *gorm.DB) *GormSequenceAllocator {
	return &GormSequenceAllocator{db: db}
}

// Ensure GormSequenceAllocator implements fiscal.SequenceAllocator
var _ fiscal.SequenceAllocator = (*GormSequenceAllocator)(nil)

// Next increments the series counter and returns it with the series' last hash
func (a *GormSequenceAllocator) Next(ctx context.Context, key fiscal.SequenceKey) (fiscal.SequenceAllocation, error) {
	var alloc fiscal.SequenceAllocation
	row := a.db.WithContext(ctx).
		Raw(nextSequenceSQL, key.TenantID, string(key.Type), key.Year, time.Now().UTC()).
		Row()
	if err := row.Scan(&alloc.Sequence, &alloc.PreviousHash); err != nil {
		return fiscal.SequenceAllocation{}, storageError("allocate document sequence", err)
	}
	return alloc, nil
}

// RecordHash stores the hash of the document that took seq
func (a *GormSequenceAllocator) RecordHash(ctx context.Context, key fiscal.SequenceKey, seq int64, hash string) error {
	err := a.db.WithContext(ctx).
		Exec(recordHashSQL, hash, time.Now().UTC(), key.TenantID, string(key.Type), key.Year, seq).
		Error
	if err != nil {
		return storageError("record series hash", err)
	}
	return nil
}

// storageError reports allocator failures as the store being unavailable.
// Context errors pass through untouched.
func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return shared.WrapDomainError(shared.CodeStorageUnavailable, "failed to "+op, err)
}
