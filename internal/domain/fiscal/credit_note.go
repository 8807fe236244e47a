package fiscal

import (
	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CreditNoteStatus represents the status of a credit note
type CreditNoteStatus string

// CreditNoteStatusIssued is the only, terminal, credit note status
const CreditNoteStatusIssued CreditNoteStatus = "issued"

// CreditNote corrects or annuls an issued invoice
type CreditNote struct {
	FiscalDocument
	Status                CreditNoteStatus `json:"status"`
	OriginalInvoiceID     uuid.UUID        `json:"original_invoice_id"`
	OriginalInvoiceNumber string           `json:"original_invoice_number"` // snapshot, never re-synced
	Reason                string           `json:"reason"`
}

// ValidateCreditNoteInput checks the preconditions of credit note creation
// before the original invoice is loaded.
func ValidateCreditNoteInput(originalInvoiceID uuid.UUID, reason string, items []LineItemInput) error {
	if originalInvoiceID == uuid.Nil {
		return shared.NewValidationError("original_invoice_id is required")
	}
	if NormalizeText(reason) == "" {
		return shared.NewValidationError("reason is required")
	}
	if len(items) == 0 {
		return shared.NewValidationError("at least one line item is required")
	}
	return nil
}

// NewCreditNote creates a credit note against original. alreadyCredited is the
// total of earlier credit notes for the same invoice; the new note may not
// take the credited total above the invoice total.
func NewCreditNote(
	tenantID, createdBy uuid.UUID,
	original *Invoice,
	header DocumentHeader,
	reason string,
	items []LineItemInput,
	alreadyCredited decimal.Decimal,
) (*CreditNote, error) {
	if original == nil {
		return nil, shared.NewValidationError("original_invoice_id is required")
	}
	if err := ValidateCreditNoteInput(original.ID, reason, items); err != nil {
		return nil, err
	}
	reason = NormalizeText(reason)
	if original.TenantID != tenantID {
		return nil, shared.NewNotFoundError("invoice")
	}
	if err := original.CanBeCredited(); err != nil {
		return nil, err
	}

	totals, lines, err := CalculateLines(items)
	if err != nil {
		return nil, err
	}
	remaining := original.TotalAmount.Sub(alreadyCredited)
	if totals.TotalAmount.GreaterThan(remaining) {
		return nil, shared.NewValidationError("credit note total %s exceeds the creditable amount %s of invoice %s",
			totals.TotalAmount.StringFixed(2), remaining.StringFixed(2), original.DocumentNumber)
	}

	if header.CompanyID == uuid.Nil {
		header.CompanyID = original.CompanyID
	}
	if header.ContactID == nil {
		header.ContactID = original.ContactID
	}
	if header.Currency == "" {
		header.Currency = original.Currency
	}
	if header.Currency != original.Currency {
		return nil, shared.NewValidationError("credit note currency must match invoice currency %s", original.Currency)
	}

	base, err := newFiscalDocument(tenantID, createdBy, DocumentTypeCreditNote, header, totals, lines)
	if err != nil {
		return nil, err
	}
	return &CreditNote{
		FiscalDocument:        base,
		Status:                CreditNoteStatusIssued,
		OriginalInvoiceID:     original.ID,
		OriginalInvoiceNumber: original.DocumentNumber,
		Reason:                reason,
	}, nil
}

// StatusValue implements Document
func (c *CreditNote) StatusValue() string {
	return string(c.Status)
}
