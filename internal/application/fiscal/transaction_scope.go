package fiscal

import (
	"context"

	"github.com/kwanza/fiscal/internal/domain/fiscal"
)

// TransactionScope provides transactional access to fiscal repositories.
// Sequence allocation, document inserts and cross-document updates run in
// the same transaction and are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all fiscal repositories within a transaction.
type TransactionalRepositories interface {
	// Documents returns the document repository scoped to the current transaction
	Documents() fiscal.DocumentRepository
	// Sequences returns the sequence allocator scoped to the current transaction
	Sequences() fiscal.SequenceAllocator
}
