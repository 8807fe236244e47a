package persistence

import (
	"context"

	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"gorm.io/gorm"
)

// GormTransactionScope implements fiscalapp.TransactionScope using GORM transactions.
// Document writes and, with the default database backend, sequence
// allocation commit or roll back together.
type GormTransactionScope struct {
	db     *gorm.DB
	series fiscal.SeriesReserver
}

// TransactionScopeOption is a functional option for configuring GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithSeriesReserver replaces the in-transaction database allocator with an
// external backend (redis, memory). Series the transaction numbers stay
// reserved until it ends: they are committed once the database commit
// succeeded and released when it fails, so the hash chain never forks.
func WithSeriesReserver(r fiscal.SeriesReserver) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.series = r
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos fiscalapp.TransactionalRepositories) error) error {
	var reserved *fiscal.ReservedAllocator
	if s.series != nil {
		reserved = fiscal.NewReservedAllocator(s.series)
		// no-op after Commit; an unreleased redis reservation expires with its TTL
		defer func() { _ = reserved.Release(ctx) }()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, reserved: reserved})
	})
	if err != nil {
		return mapError(err, "transaction")
	}
	if reserved == nil {
		return nil
	}
	// The documents are stored, so the series must advance even if the
	// caller gave up. If it cannot, the next number collides with the stored
	// one on the series index instead of forking the chain.
	if err := reserved.Commit(context.WithoutCancel(ctx)); err != nil {
		return mapError(err, "sequence")
	}
	return nil
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx       *gorm.DB
	reserved *fiscal.ReservedAllocator
}

// Documents returns the document repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Documents() fiscal.DocumentRepository {
	return NewGormFiscalDocumentRepository(r.tx)
}

// Sequences returns the allocator for the current transaction.
func (r *gormTransactionalRepositories) Sequences() fiscal.SequenceAllocator {
	if r.reserved != nil {
		return r.reserved
	}
	return NewGormSequenceAllocator(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ fiscalapp.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ fiscalapp.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
