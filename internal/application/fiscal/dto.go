package fiscal

import (
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one line of a create request
type LineItemRequest struct {
	ProductID          *uuid.UUID      `json:"product_id"`
	Description        string          `json:"description" binding:"required,max=500"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	TaxExemptionCode   string          `json:"tax_exemption_code" binding:"omitempty,max=3"`
	TaxExemptionReason string          `json:"tax_exemption_reason" binding:"omitempty,max=255"`
}

func toLineInputs(items []LineItemRequest) []fiscal.LineItemInput {
	out := make([]fiscal.LineItemInput, len(items))
	for i, it := range items {
		out[i] = fiscal.LineItemInput{
			ProductID:          it.ProductID,
			Description:        it.Description,
			Quantity:           it.Quantity,
			UnitPrice:          it.UnitPrice,
			DiscountPercentage: it.DiscountPercentage,
			TaxRate:            it.TaxRate,
			TaxExemptionCode:   it.TaxExemptionCode,
			TaxExemptionReason: it.TaxExemptionReason,
		}
	}
	return out
}

// DocumentHeaderRequest carries the header fields shared by create requests
type DocumentHeaderRequest struct {
	CompanyID uuid.UUID  `json:"company_id"`
	ContactID *uuid.UUID `json:"contact_id"`
	IssueDate *time.Time `json:"issue_date"`
	Currency  string     `json:"currency" binding:"omitempty,len=3"`
	Notes     string     `json:"notes" binding:"omitempty,max=1000"`
}

func (h DocumentHeaderRequest) toHeader() fiscal.DocumentHeader {
	header := fiscal.DocumentHeader{
		CompanyID: h.CompanyID,
		ContactID: h.ContactID,
		Currency:  valueobject.Currency(h.Currency),
		Notes:     h.Notes,
	}
	if h.IssueDate != nil {
		header.IssueDate = *h.IssueDate
	}
	return header
}

// CreateProformaRequest creates a proforma
type CreateProformaRequest struct {
	DocumentHeaderRequest
	ValidUntil     *time.Time        `json:"valid_until"`
	Items          []LineItemRequest `json:"items" binding:"dive"`
	IdempotencyKey string            `json:"-"`
}

// CreateInvoiceRequest creates an invoice
type CreateInvoiceRequest struct {
	DocumentHeaderRequest
	DueDate        *time.Time        `json:"due_date"`
	Items          []LineItemRequest `json:"items" binding:"dive"`
	IdempotencyKey string            `json:"-"`
}

// ConvertProformaRequest converts an accepted proforma into an invoice
type ConvertProformaRequest struct {
	IssueDate      *time.Time `json:"issue_date"`
	DueDate        *time.Time `json:"due_date"`
	IdempotencyKey string     `json:"-"`
}

// CreateCreditNoteRequest creates a credit note
type CreateCreditNoteRequest struct {
	DocumentHeaderRequest
	OriginalInvoiceID uuid.UUID         `json:"original_invoice_id"`
	Reason            string            `json:"reason" binding:"max=500"`
	Items             []LineItemRequest `json:"items" binding:"dive"`
	IdempotencyKey    string            `json:"-"`
}

// ReceiptInvoiceRequest is one invoice settled by a payment receipt
type ReceiptInvoiceRequest struct {
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
}

// CreatePaymentReceiptRequest creates a payment receipt
type CreatePaymentReceiptRequest struct {
	DocumentHeaderRequest
	PaymentMethodID uuid.UUID               `json:"payment_method_id"`
	Invoices        []ReceiptInvoiceRequest `json:"invoices"`
	IdempotencyKey  string                  `json:"-"`
}

func (r CreatePaymentReceiptRequest) allocations() []fiscal.ReceiptAllocation {
	out := make([]fiscal.ReceiptAllocation, len(r.Invoices))
	for i, inv := range r.Invoices {
		out[i] = fiscal.ReceiptAllocation{InvoiceID: inv.InvoiceID, PaidAmount: inv.PaidAmount}
	}
	return out
}

// ReasonRequest carries a free-text reason for reject/cancel transitions
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListDocumentsFilter defines filtering options for document list queries
type ListDocumentsFilter struct {
	Type      string     `form:"type"`
	Status    string     `form:"status"`
	CompanyID *uuid.UUID `form:"company_id"`
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// LineResponse is a computed document line
type LineResponse = fiscal.DocumentLine

// ReceiptLineResponse is a settled invoice of a payment receipt
type ReceiptLineResponse = fiscal.ReceiptLine

// DocumentResponse represents any fiscal document in API responses.
// Type-specific fields are omitted when they do not apply.
type DocumentResponse struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	DocumentType     string          `json:"document_type"`
	DocumentNumber   string          `json:"document_number"`
	Status           string          `json:"status"`
	ATCUD            string          `json:"atcud"`
	HashControl      string          `json:"hash_control"`
	DigitalSignature string          `json:"digital_signature"`
	QRCodeData       string          `json:"qr_code_data"`
	CompanyID        uuid.UUID       `json:"company_id"`
	ContactID        *uuid.UUID      `json:"contact_id,omitempty"`
	IssueDate        string          `json:"issue_date"`
	Currency         string          `json:"currency"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Notes            string          `json:"notes,omitempty"`
	Lines            []LineResponse  `json:"lines,omitempty"`
	CertifiedAt      *time.Time      `json:"certified_at,omitempty"`
	CreatedBy        uuid.UUID       `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`

	// Proforma
	ValidUntil           string     `json:"valid_until,omitempty"`
	RejectionReason      string     `json:"rejection_reason,omitempty"`
	ConvertedToInvoiceID *uuid.UUID `json:"converted_to_invoice_id,omitempty"`

	// Invoice
	PaymentStatus string           `json:"payment_status,omitempty"`
	PaidAmount    *decimal.Decimal `json:"paid_amount,omitempty"`
	DueDate       string           `json:"due_date,omitempty"`
	ProformaID    *uuid.UUID       `json:"proforma_id,omitempty"`
	CancelReason  string           `json:"cancel_reason,omitempty"`

	// Credit note
	OriginalInvoiceID     *uuid.UUID `json:"original_invoice_id,omitempty"`
	OriginalInvoiceNumber string     `json:"original_invoice_number,omitempty"`
	Reason                string     `json:"reason,omitempty"`

	// Payment receipt
	PaymentMethodID *uuid.UUID            `json:"payment_method_id,omitempty"`
	ReceiptLines    []ReceiptLineResponse `json:"receipt_lines,omitempty"`
}

// ToDocumentResponse converts any fiscal document to its API shape
func ToDocumentResponse(doc fiscal.Document) *DocumentResponse {
	h := doc.Header()
	resp := &DocumentResponse{
		ID:               h.ID,
		TenantID:         h.TenantID,
		DocumentType:     string(h.DocumentType),
		DocumentNumber:   h.DocumentNumber,
		Status:           doc.StatusValue(),
		ATCUD:            h.ATCUD,
		HashControl:      h.HashControl,
		DigitalSignature: h.DigitalSignature,
		QRCodeData:       h.QRCodeData,
		CompanyID:        h.CompanyID,
		ContactID:        h.ContactID,
		IssueDate:        h.IssueDate.Format(time.DateOnly),
		Currency:         string(h.Currency),
		Subtotal:         h.Subtotal,
		DiscountAmount:   h.DiscountAmount,
		TaxAmount:        h.TaxAmount,
		TotalAmount:      h.TotalAmount,
		Notes:            h.Notes,
		Lines:            h.Lines,
		CertifiedAt:      h.CertifiedAt,
		CreatedBy:        h.CreatedBy,
		CreatedAt:        h.CreatedAt,
		UpdatedAt:        h.UpdatedAt,
		Version:          h.Version,
	}

	switch d := doc.(type) {
	case *fiscal.Proforma:
		resp.ValidUntil = d.ValidUntil.Format(time.DateOnly)
		resp.RejectionReason = d.RejectionReason
		resp.ConvertedToInvoiceID = d.ConvertedToInvoiceID
	case *fiscal.Invoice:
		paid := d.PaidAmount
		resp.PaymentStatus = string(d.PaymentStatus)
		resp.PaidAmount = &paid
		resp.DueDate = d.DueDate.Format(time.DateOnly)
		resp.ProformaID = d.ProformaID
		resp.CancelReason = d.CancelReason
	case *fiscal.CreditNote:
		original := d.OriginalInvoiceID
		resp.OriginalInvoiceID = &original
		resp.OriginalInvoiceNumber = d.OriginalInvoiceNumber
		resp.Reason = d.Reason
	case *fiscal.PaymentReceipt:
		method := d.PaymentMethodID
		resp.PaymentMethodID = &method
		resp.ReceiptLines = d.Receipts
	}
	return resp
}

// OverdueSweepResult reports the invoices flagged by a sweep
type OverdueSweepResult struct {
	AsOf            string   `json:"as_of"`
	MarkedCount     int      `json:"marked_count"`
	DocumentNumbers []string `json:"document_numbers"`
}
