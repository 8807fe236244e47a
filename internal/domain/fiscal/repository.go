package fiscal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DocumentFilter defines filtering options for document queries
type DocumentFilter struct {
	shared.Filter
	Type      *DocumentType // Filter by document type
	Status    string        // Filter by variant status
	CompanyID *uuid.UUID    // Filter by customer company
	FromDate  *time.Time    // Filter by issue date range start (inclusive)
	ToDate    *time.Time    // Filter by issue date range end (inclusive)
}

// DocumentRepository persists fiscal documents of every type
type DocumentRepository interface {
	// FindByID loads any document type for a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (Document, error)

	// FindProforma loads a proforma
	FindProforma(ctx context.Context, tenantID, id uuid.UUID) (*Proforma, error)

	// FindInvoice loads an invoice
	FindInvoice(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindInvoiceForUpdate loads an invoice holding a row lock until the
	// surrounding transaction ends
	FindInvoiceForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindAll lists documents matching filter, newest first
	FindAll(ctx context.Context, tenantID uuid.UUID, filter DocumentFilter) ([]Document, int64, error)

	// FindIssuedBetween returns every certified document whose issue date
	// falls within [start, end], ordered by type then sequence
	FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]Document, error)

	// FindOverdueCandidates returns issued invoices whose due date is before asOf
	FindOverdueCandidates(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]*Invoice, error)

	// SumCreditedAmount sums the totals of credit notes issued against an invoice
	SumCreditedAmount(ctx context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error)

	// Create inserts a new document with its lines
	Create(ctx context.Context, doc Document) error

	// Update persists status changes of an existing document using
	// optimistic locking on the version
	Update(ctx context.Context, doc Document) error

	// Delete removes a document and its lines
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
