package fiscal

import (
	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentReceiptStatus represents the status of a payment receipt
type PaymentReceiptStatus string

// PaymentReceiptStatusIssued is the only, terminal, receipt status
const PaymentReceiptStatusIssued PaymentReceiptStatus = "issued"

// ReceiptLine settles part or all of one invoice
type ReceiptLine struct {
	ID            uuid.UUID       `json:"id"`
	LineNumber    int             `json:"line_number"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	InvoiceTotal  decimal.Decimal `json:"invoice_total"` // snapshot at receipt time
	PaidAmount    decimal.Decimal `json:"paid_amount"`
}

// ReceiptAllocation is the caller-supplied payment of one invoice
type ReceiptAllocation struct {
	InvoiceID  uuid.UUID
	PaidAmount decimal.Decimal
}

// PaymentReceipt acknowledges payment of one or more invoices
type PaymentReceipt struct {
	FiscalDocument
	Status          PaymentReceiptStatus `json:"status"`
	PaymentMethodID uuid.UUID            `json:"payment_method_id"`
	Receipts        []ReceiptLine        `json:"receipt_lines"`
}

// ValidateReceiptInput checks the preconditions of receipt creation
// before any invoice is loaded. Paid amounts are rounded to cents in place,
// so the receipt line and the invoice it settles see the same value.
func ValidateReceiptInput(companyID, paymentMethodID uuid.UUID, allocations []ReceiptAllocation) error {
	if companyID == uuid.Nil {
		return shared.NewValidationError("company_id is required")
	}
	if paymentMethodID == uuid.Nil {
		return shared.NewValidationError("payment_method_id is required")
	}
	if len(allocations) == 0 {
		return shared.NewValidationError("at least one invoice is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(allocations))
	for n, a := range allocations {
		if a.InvoiceID == uuid.Nil {
			return shared.NewValidationError("invoice %d: invoice_id is required", n+1)
		}
		paid := a.PaidAmount.Round(2)
		if !paid.IsPositive() {
			return shared.NewValidationError("invoice %d: paid_amount must be at least 0.01", n+1)
		}
		allocations[n].PaidAmount = paid
		if _, dup := seen[a.InvoiceID]; dup {
			return shared.NewValidationError("invoice %s listed more than once", a.InvoiceID)
		}
		seen[a.InvoiceID] = struct{}{}
	}
	return nil
}

// NewPaymentReceipt creates a receipt. invoices must be in allocation order.
// Receipts carry no tax: subtotal and total are the sum of paid amounts.
func NewPaymentReceipt(
	tenantID, createdBy uuid.UUID,
	header DocumentHeader,
	paymentMethodID uuid.UUID,
	allocations []ReceiptAllocation,
	invoices []*Invoice,
) (*PaymentReceipt, error) {
	if err := ValidateReceiptInput(header.CompanyID, paymentMethodID, allocations); err != nil {
		return nil, err
	}
	if len(invoices) != len(allocations) {
		return nil, shared.NewValidationError("every listed invoice must be resolved")
	}

	total := decimal.Zero
	lines := make([]ReceiptLine, len(allocations))
	for n, a := range allocations {
		inv := invoices[n]
		if inv == nil || inv.ID != a.InvoiceID || inv.TenantID != tenantID {
			return nil, shared.NewNotFoundError("invoice " + a.InvoiceID.String())
		}
		if inv.CompanyID != header.CompanyID {
			return nil, shared.NewValidationError("invoice %s belongs to another company", inv.DocumentNumber)
		}
		if header.Currency == "" {
			header.Currency = inv.Currency
		}
		if inv.Currency != header.Currency {
			return nil, shared.NewValidationError("invoice %s is in %s, receipt is in %s", inv.DocumentNumber, inv.Currency, header.Currency)
		}
		lines[n] = ReceiptLine{
			ID:            uuid.New(),
			LineNumber:    n + 1,
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.DocumentNumber,
			InvoiceDate:   inv.IssueDate.Format("2006-01-02"),
			InvoiceTotal:  inv.TotalAmount,
			PaidAmount:    a.PaidAmount,
		}
		total = total.Add(lines[n].PaidAmount)
	}

	totals := DocumentTotals{
		Subtotal:       total,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		TotalAmount:    total,
	}
	base, err := newFiscalDocument(tenantID, createdBy, DocumentTypePaymentReceipt, header, totals, nil)
	if err != nil {
		return nil, err
	}
	return &PaymentReceipt{
		FiscalDocument:  base,
		Status:          PaymentReceiptStatusIssued,
		PaymentMethodID: paymentMethodID,
		Receipts:        lines,
	}, nil
}

// StatusValue implements Document
func (r *PaymentReceipt) StatusValue() string {
	return string(r.Status)
}
