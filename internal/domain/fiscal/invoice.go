package fiscal

import (
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusIssued, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// IsOpen returns true while the invoice can still receive payments or credit
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusIssued || s == InvoiceStatusOverdue
}

// PaymentStatus tracks cumulative payment independently of InvoiceStatus
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// DefaultPaymentTerm is the due date offset used when none is given
const DefaultPaymentTerm = 30 * 24 * time.Hour

// Invoice is a legally binding sale document
type Invoice struct {
	FiscalDocument
	Status        InvoiceStatus   `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	DueDate       time.Time       `json:"due_date"`
	ProformaID    *uuid.UUID      `json:"proforma_id,omitempty"` // weak reference to the originating proforma
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
}

// NewInvoice creates an issued invoice, computing its totals from items
func NewInvoice(tenantID, createdBy uuid.UUID, header DocumentHeader, items []LineItemInput, dueDate *time.Time) (*Invoice, error) {
	totals, lines, err := CalculateLines(items)
	if err != nil {
		return nil, err
	}
	base, err := newFiscalDocument(tenantID, createdBy, DocumentTypeInvoice, header, totals, lines)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		FiscalDocument: base,
		Status:         InvoiceStatusIssued,
		PaymentStatus:  PaymentStatusPending,
		PaidAmount:     decimal.Zero,
		DueDate:        DateOnly(base.IssueDate.Add(DefaultPaymentTerm)),
	}
	if dueDate != nil {
		if DateOnly(*dueDate).Before(base.IssueDate) {
			return nil, shared.NewValidationError("due_date cannot be before the issue date")
		}
		inv.DueDate = DateOnly(*dueDate)
	}
	return inv, nil
}

// NewInvoiceFromProforma creates an invoice carrying the proforma's lines
func NewInvoiceFromProforma(createdBy uuid.UUID, p *Proforma, issueDate time.Time, dueDate *time.Time) (*Invoice, error) {
	if err := p.CanConvert(); err != nil {
		return nil, err
	}
	header := DocumentHeader{
		CompanyID: p.CompanyID,
		ContactID: p.ContactID,
		IssueDate: issueDate,
		Currency:  p.Currency,
		Notes:     p.Notes,
	}
	inv, err := NewInvoice(p.TenantID, createdBy, header, p.LineInputs(), dueDate)
	if err != nil {
		return nil, err
	}
	proformaID := p.ID
	inv.ProformaID = &proformaID
	return inv, nil
}

// StatusValue implements Document
func (i *Invoice) StatusValue() string {
	return string(i.Status)
}

// RemainingAmount returns the amount still to be paid
func (i *Invoice) RemainingAmount() decimal.Decimal {
	r := i.TotalAmount.Sub(i.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// ApplyPayment accumulates a payment and recomputes the payment status
func (i *Invoice) ApplyPayment(amount decimal.Decimal, receiptID uuid.UUID) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("payment amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return shared.NewValidationError("payment amount %s has more than two decimals", amount)
	}
	if !i.Status.IsOpen() {
		return shared.NewInvalidStateError("cannot apply payment to invoice %s in %s status", i.DocumentNumber, i.Status)
	}
	if amount.GreaterThan(i.RemainingAmount()) {
		return shared.NewValidationError("payment of %s exceeds the remaining amount %s of invoice %s",
			amount.StringFixed(2), i.RemainingAmount().StringFixed(2), i.DocumentNumber)
	}

	i.PaidAmount = i.PaidAmount.Add(amount)
	i.PaymentStatus = paymentStatusFor(i.PaidAmount, i.TotalAmount)
	i.Touch()
	i.AddDomainEvent(NewInvoicePaymentAppliedEvent(i, receiptID, amount))
	if i.PaymentStatus == PaymentStatusPaid {
		now := time.Now()
		i.PaidAt = &now
		i.setStatus(InvoiceStatusPaid)
	}
	return nil
}

func paymentStatusFor(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentStatusPaid
	case paid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}

// IsPastDue reports whether the due date has passed at now without full payment
func (i *Invoice) IsPastDue(now time.Time) bool {
	return i.Status == InvoiceStatusIssued && DateOnly(now).After(i.DueDate)
}

// MarkOverdue flags an unpaid invoice whose due date has passed
func (i *Invoice) MarkOverdue(now time.Time) error {
	if i.Status != InvoiceStatusIssued {
		return shared.NewInvalidStateError("cannot mark invoice in %s status as overdue", i.Status)
	}
	if !i.IsPastDue(now) {
		return shared.NewInvalidStateError("invoice %s is not past its due date", i.DocumentNumber)
	}
	i.setStatus(InvoiceStatusOverdue)
	return nil
}

// Cancel voids an invoice that has received no payments
func (i *Invoice) Cancel(reason string) error {
	if !i.Status.IsOpen() {
		return shared.NewInvalidStateError("cannot cancel invoice in %s status", i.Status)
	}
	if i.PaidAmount.IsPositive() {
		return shared.NewInvalidStateError("cannot cancel invoice %s with payments applied", i.DocumentNumber)
	}
	reason = NormalizeText(reason)
	if reason == "" {
		return shared.NewValidationError("cancellation reason is required")
	}
	now := time.Now()
	i.CancelledAt = &now
	i.CancelReason = reason
	i.setStatus(InvoiceStatusCancelled)
	return nil
}

// CanBeCredited checks whether a credit note may reference this invoice
func (i *Invoice) CanBeCredited() error {
	if !i.IsCertified() {
		return shared.NewInvalidStateError("invoice is not certified")
	}
	switch i.Status {
	case InvoiceStatusIssued, InvoiceStatusPaid, InvoiceStatusOverdue:
		return nil
	}
	return shared.NewInvalidStateError("cannot credit invoice %s in %s status", i.DocumentNumber, i.Status)
}

func (i *Invoice) setStatus(to InvoiceStatus) {
	from := i.Status
	i.Status = to
	i.Touch()
	i.AddDomainEvent(NewInvoiceStatusChangedEvent(i, from, to))
}
