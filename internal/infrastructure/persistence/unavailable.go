package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// UnavailableStore stands in for the database when the server starts
// without one outside production. Every call fails with
// STORAGE_UNAVAILABLE so requests are rejected instead of the process.
type UnavailableStore struct {
	cause error
}

// NewUnavailableStore creates an UnavailableStore reporting cause
func NewUnavailableStore(cause error) *UnavailableStore {
	return &UnavailableStore{cause: cause}
}

func (s *UnavailableStore) err() error {
	if s.cause == nil {
		return shared.ErrStorageUnavailable
	}
	return shared.WrapDomainError(shared.CodeStorageUnavailable, "storage not configured", s.cause)
}

// Execute implements fiscalapp.TransactionScope
func (s *UnavailableStore) Execute(context.Context, func(fiscalapp.TransactionalRepositories) error) error {
	return s.err()
}

// Ping reports the store as down
func (s *UnavailableStore) Ping(context.Context) error { return s.err() }

// Stats returns zero stats with the unavailability error
func (s *UnavailableStore) Stats() (ConnectionStats, error) { return ConnectionStats{}, s.err() }

func (s *UnavailableStore) FindByID(context.Context, uuid.UUID, uuid.UUID) (fiscal.Document, error) {
	return nil, s.err()
}

func (s *UnavailableStore) FindProforma(context.Context, uuid.UUID, uuid.UUID) (*fiscal.Proforma, error) {
	return nil, s.err()
}

func (s *UnavailableStore) FindInvoice(context.Context, uuid.UUID, uuid.UUID) (*fiscal.Invoice, error) {
	return nil, s.err()
}

func (s *UnavailableStore) FindInvoiceForUpdate(context.Context, uuid.UUID, uuid.UUID) (*fiscal.Invoice, error) {
	return nil, s.err()
}

func (s *UnavailableStore) FindAll(context.Context, uuid.UUID, fiscal.DocumentFilter) ([]fiscal.Document, int64, error) {
	return nil, 0, s.err()
}

func (s *UnavailableStore) FindIssuedBetween(context.Context, uuid.UUID, time.Time, time.Time) ([]fiscal.Document, error) {
	return nil, s.err()
}

func (s *UnavailableStore) FindOverdueCandidates(context.Context, uuid.UUID, time.Time) ([]*fiscal.Invoice, error) {
	return nil, s.err()
}

func (s *UnavailableStore) SumCreditedAmount(context.Context, uuid.UUID, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, s.err()
}

func (s *UnavailableStore) Create(context.Context, fiscal.Document) error { return s.err() }

func (s *UnavailableStore) Update(context.Context, fiscal.Document) error { return s.err() }

func (s *UnavailableStore) Delete(context.Context, uuid.UUID, uuid.UUID) error { return s.err() }

var (
	_ fiscalapp.TransactionScope = (*UnavailableStore)(nil)
	_ fiscal.DocumentRepository  = (*UnavailableStore)(nil)
)
