package fiscal

import (
	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeDocumentIssued        = "DocumentIssued"
	EventTypeProformaStatusChanged = "ProformaStatusChanged"
	EventTypeProformaConverted     = "ProformaConverted"
	EventTypeInvoiceStatusChanged  = "InvoiceStatusChanged"
	EventTypeInvoicePaymentApplied = "InvoicePaymentApplied"
)

func aggregateTypeOf(t DocumentType) string {
	switch t {
	case DocumentTypeProforma:
		return AggregateTypeProforma
	case DocumentTypeInvoice:
		return AggregateTypeInvoice
	case DocumentTypeCreditNote:
		return AggregateTypeCreditNote
	default:
		return AggregateTypePaymentReceipt
	}
}

// DocumentIssuedEvent is raised when a document receives its certification bundle
type DocumentIssuedEvent struct {
	shared.BaseDomainEvent
	DocumentType   DocumentType    `json:"document_type"`
	DocumentNumber string          `json:"document_number"`
	ATCUD          string          `json:"atcud"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
}

// NewDocumentIssuedEvent creates a new DocumentIssuedEvent
func NewDocumentIssuedEvent(d *FiscalDocument) *DocumentIssuedEvent {
	return &DocumentIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentIssued, aggregateTypeOf(d.DocumentType), d.ID, d.TenantID),
		DocumentType:    d.DocumentType,
		DocumentNumber:  d.DocumentNumber,
		ATCUD:           d.ATCUD,
		TotalAmount:     d.TotalAmount,
		Currency:        string(d.Currency),
	}
}

// ProformaStatusChangedEvent is raised on every proforma transition
type ProformaStatusChangedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string         `json:"document_number"`
	From           ProformaStatus `json:"from"`
	To             ProformaStatus `json:"to"`
}

// NewProformaStatusChangedEvent creates a new ProformaStatusChangedEvent
func NewProformaStatusChangedEvent(p *Proforma, from, to ProformaStatus) *ProformaStatusChangedEvent {
	return &ProformaStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProformaStatusChanged, AggregateTypeProforma, p.ID, p.TenantID),
		DocumentNumber:  p.DocumentNumber,
		From:            from,
		To:              to,
	}
}

// ProformaConvertedEvent is raised when a proforma becomes an invoice
type ProformaConvertedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string    `json:"document_number"`
	InvoiceID      uuid.UUID `json:"invoice_id"`
}

// NewProformaConvertedEvent creates a new ProformaConvertedEvent
func NewProformaConvertedEvent(p *Proforma, invoiceID uuid.UUID) *ProformaConvertedEvent {
	return &ProformaConvertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProformaConverted, AggregateTypeProforma, p.ID, p.TenantID),
		DocumentNumber:  p.DocumentNumber,
		InvoiceID:       invoiceID,
	}
}

// InvoiceStatusChangedEvent is raised when an invoice is paid, becomes overdue or is cancelled
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string        `json:"document_number"`
	From           InvoiceStatus `json:"from"`
	To             InvoiceStatus `json:"to"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(i *Invoice, from, to InvoiceStatus) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, i.ID, i.TenantID),
		DocumentNumber:  i.DocumentNumber,
		From:            from,
		To:              to,
	}
}

// InvoicePaymentAppliedEvent is raised when a receipt settles part of an invoice
type InvoicePaymentAppliedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string          `json:"document_number"`
	ReceiptID      uuid.UUID       `json:"receipt_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
}

// NewInvoicePaymentAppliedEvent creates a new InvoicePaymentAppliedEvent
func NewInvoicePaymentAppliedEvent(i *Invoice, receiptID uuid.UUID, amount decimal.Decimal) *InvoicePaymentAppliedEvent {
	return &InvoicePaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaymentApplied, AggregateTypeInvoice, i.ID, i.TenantID),
		DocumentNumber:  i.DocumentNumber,
		ReceiptID:       receiptID,
		Amount:          amount,
		PaidAmount:      i.PaidAmount,
		PaymentStatus:   i.PaymentStatus,
	}
}
