package fiscal

import (
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeProforma       = "Proforma"
	AggregateTypeInvoice        = "Invoice"
	AggregateTypeCreditNote     = "CreditNote"
	AggregateTypePaymentReceipt = "PaymentReceipt"
)

// Document is implemented by every fiscal document aggregate
type Document interface {
	shared.AggregateRoot
	// Header returns the fields shared by all document types
	Header() *FiscalDocument
	// StatusValue returns the variant-specific status as a string
	StatusValue() string
}

// DocumentHeader is the caller-supplied part of a document header
type DocumentHeader struct {
	CompanyID uuid.UUID
	ContactID *uuid.UUID
	IssueDate time.Time
	Currency  valueobject.Currency
	Notes     string
}

// FiscalDocument holds the shape shared by proformas, invoices, credit notes
// and payment receipts. Totals and lines are fixed at construction and the
// certification fields are written exactly once.
type FiscalDocument struct {
	shared.TenantAggregateRoot
	DocumentType     DocumentType         `json:"document_type"`
	DocumentNumber   string               `json:"document_number"`
	FiscalYear       int                  `json:"fiscal_year"`
	Sequence         int64                `json:"sequence"`
	ATCUD            string               `json:"atcud"`
	HashControl      string               `json:"hash_control"`
	PreviousHash     string               `json:"previous_hash,omitempty"`
	DigitalSignature string               `json:"digital_signature"`
	QRCodeData       string               `json:"qr_code_data"`
	CompanyID        uuid.UUID            `json:"company_id"`
	ContactID        *uuid.UUID           `json:"contact_id,omitempty"`
	IssueDate        time.Time            `json:"issue_date"`
	Currency         valueobject.Currency `json:"currency"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	DiscountAmount   decimal.Decimal      `json:"discount_amount"`
	TaxAmount        decimal.Decimal      `json:"tax_amount"`
	TotalAmount      decimal.Decimal      `json:"total_amount"`
	Lines            []DocumentLine       `json:"lines"`
	Notes            string               `json:"notes,omitempty"`
	CertifiedAt      *time.Time           `json:"certified_at,omitempty"`
}

func newFiscalDocument(
	tenantID, createdBy uuid.UUID,
	docType DocumentType,
	header DocumentHeader,
	totals DocumentTotals,
	lines []DocumentLine,
) (FiscalDocument, error) {
	if tenantID == uuid.Nil {
		return FiscalDocument{}, shared.NewValidationError("tenant ID cannot be empty")
	}
	if createdBy == uuid.Nil {
		return FiscalDocument{}, shared.NewDomainError(shared.CodeUnauthorized, "an authenticated user is required to issue documents")
	}
	if header.CompanyID == uuid.Nil {
		return FiscalDocument{}, shared.NewValidationError("company_id is required")
	}
	if header.Currency == "" {
		header.Currency = valueobject.DefaultCurrency
	}
	if !header.Currency.IsValid() {
		return FiscalDocument{}, shared.NewValidationError("unsupported currency %q", header.Currency)
	}
	if header.IssueDate.IsZero() {
		header.IssueDate = time.Now()
	}

	return FiscalDocument{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, createdBy),
		DocumentType:        docType,
		CompanyID:           header.CompanyID,
		ContactID:           header.ContactID,
		IssueDate:           DateOnly(header.IssueDate),
		Currency:            header.Currency,
		Subtotal:            totals.Subtotal,
		DiscountAmount:      totals.DiscountAmount,
		TaxAmount:           totals.TaxAmount,
		TotalAmount:         totals.TotalAmount,
		Lines:               lines,
		Notes:               NormalizeText(header.Notes),
	}, nil
}

// Header returns the document itself
func (d *FiscalDocument) Header() *FiscalDocument {
	return d
}

// Totals returns the document totals
func (d *FiscalDocument) Totals() DocumentTotals {
	return DocumentTotals{
		Subtotal:       d.Subtotal,
		DiscountAmount: d.DiscountAmount,
		TaxAmount:      d.TaxAmount,
		TotalAmount:    d.TotalAmount,
	}
}

// TotalMoney returns the total as Money
func (d *FiscalDocument) TotalMoney() valueobject.Money {
	m, err := valueobject.NewMoney(d.TotalAmount, d.Currency)
	if err != nil {
		return valueobject.NewMoneyAOA(d.TotalAmount)
	}
	return m
}

// IsCertified returns true once a certification bundle was applied
func (d *FiscalDocument) IsCertified() bool {
	return d.CertifiedAt != nil
}

// CertificationRequest returns the request binding this document's fields
func (d *FiscalDocument) CertificationRequest() CertificationRequest {
	return CertificationRequest{
		TenantID:    d.TenantID,
		Type:        d.DocumentType,
		IssueDate:   d.IssueDate,
		TotalAmount: d.TotalAmount,
	}
}

// ApplyCertification stamps the certification bundle onto the document
func (d *FiscalDocument) ApplyCertification(b *CertificationBundle) error {
	if d.IsCertified() {
		return shared.NewInvalidStateError("document %s is already certified", d.DocumentNumber)
	}
	if b == nil || b.DocumentNumber == "" || b.HashControl == "" {
		return shared.NewDomainError(shared.CodeCertification, "incomplete certification bundle")
	}
	certifiedAt := b.CertifiedAt
	d.DocumentNumber = b.DocumentNumber
	d.FiscalYear = b.FiscalYear
	d.Sequence = b.Sequence
	d.ATCUD = b.ATCUD
	d.HashControl = b.HashControl
	d.PreviousHash = b.PreviousHash
	d.DigitalSignature = b.DigitalSignature
	d.QRCodeData = b.QRCodeData
	d.CertifiedAt = &certifiedAt
	d.Touch()

	d.AddDomainEvent(NewDocumentIssuedEvent(d))
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
