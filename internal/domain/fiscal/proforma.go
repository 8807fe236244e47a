package fiscal

import (
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
)

// ProformaStatus represents the status of a proforma
type ProformaStatus string

const (
	ProformaStatusDraft     ProformaStatus = "draft"
	ProformaStatusSent      ProformaStatus = "sent"
	ProformaStatusAccepted  ProformaStatus = "accepted"
	ProformaStatusRejected  ProformaStatus = "rejected"
	ProformaStatusExpired   ProformaStatus = "expired"
	ProformaStatusConverted ProformaStatus = "converted"
)

// IsValid checks if the status is a valid ProformaStatus
func (s ProformaStatus) IsValid() bool {
	switch s {
	case ProformaStatusDraft, ProformaStatusSent, ProformaStatusAccepted,
		ProformaStatusRejected, ProformaStatusExpired, ProformaStatusConverted:
		return true
	}
	return false
}

// IsTerminal returns true if no further transition is possible
func (s ProformaStatus) IsTerminal() bool {
	return s == ProformaStatusRejected || s == ProformaStatusExpired || s == ProformaStatusConverted
}

// DefaultProformaValidity is how long a proforma stays open when no validity date is given
const DefaultProformaValidity = 30 * 24 * time.Hour

// Proforma is a non-binding quote that can be converted into an invoice
type Proforma struct {
	FiscalDocument
	Status               ProformaStatus `json:"status"`
	ValidUntil           time.Time      `json:"valid_until"`
	SentAt               *time.Time     `json:"sent_at,omitempty"`
	AcceptedAt           *time.Time     `json:"accepted_at,omitempty"`
	RejectedAt           *time.Time     `json:"rejected_at,omitempty"`
	RejectionReason      string         `json:"rejection_reason,omitempty"`
	ConvertedToInvoiceID *uuid.UUID     `json:"converted_to_invoice_id,omitempty"`
	ConvertedAt          *time.Time     `json:"converted_at,omitempty"`
}

// NewProforma creates a draft proforma, computing its totals from items
func NewProforma(tenantID, createdBy uuid.UUID, header DocumentHeader, items []LineItemInput, validUntil *time.Time) (*Proforma, error) {
	totals, lines, err := CalculateLines(items)
	if err != nil {
		return nil, err
	}
	base, err := newFiscalDocument(tenantID, createdBy, DocumentTypeProforma, header, totals, lines)
	if err != nil {
		return nil, err
	}

	p := &Proforma{
		FiscalDocument: base,
		Status:         ProformaStatusDraft,
		ValidUntil:     DateOnly(base.IssueDate.Add(DefaultProformaValidity)),
	}
	if validUntil != nil {
		if DateOnly(*validUntil).Before(base.IssueDate) {
			return nil, shared.NewValidationError("valid_until cannot be before the issue date")
		}
		p.ValidUntil = DateOnly(*validUntil)
	}
	return p, nil
}

// StatusValue implements Document
func (p *Proforma) StatusValue() string {
	return string(p.Status)
}

// Send marks the proforma as sent to the customer
func (p *Proforma) Send() error {
	if p.Status != ProformaStatusDraft {
		return shared.NewInvalidStateError("cannot send a proforma in %s status", p.Status)
	}
	p.transition(ProformaStatusSent, func(now time.Time) { p.SentAt = &now })
	return nil
}

// Accept records the customer's acceptance
func (p *Proforma) Accept() error {
	if p.Status != ProformaStatusSent {
		return shared.NewInvalidStateError("only sent proformas can be accepted, current status is %s", p.Status)
	}
	p.transition(ProformaStatusAccepted, func(now time.Time) { p.AcceptedAt = &now })
	return nil
}

// Reject records the customer's refusal
func (p *Proforma) Reject(reason string) error {
	if p.Status != ProformaStatusSent {
		return shared.NewInvalidStateError("only sent proformas can be rejected, current status is %s", p.Status)
	}
	reason = NormalizeText(reason)
	p.transition(ProformaStatusRejected, func(now time.Time) {
		p.RejectedAt = &now
		p.RejectionReason = reason
	})
	return nil
}

// Expire closes a proforma that was never accepted
func (p *Proforma) Expire() error {
	if p.Status != ProformaStatusDraft && p.Status != ProformaStatusSent {
		return shared.NewInvalidStateError("cannot expire a proforma in %s status", p.Status)
	}
	p.transition(ProformaStatusExpired, nil)
	return nil
}

// IsExpired reports whether the validity date has passed at now
func (p *Proforma) IsExpired(now time.Time) bool {
	return DateOnly(now).After(p.ValidUntil)
}

// CanConvert checks whether the proforma may become an invoice
func (p *Proforma) CanConvert() error {
	if p.Status != ProformaStatusAccepted {
		return shared.NewInvalidStateError("only accepted proformas can be converted, current status is %s", p.Status)
	}
	return nil
}

// MarkConverted records the invoice created from this proforma
func (p *Proforma) MarkConverted(invoiceID uuid.UUID) error {
	if err := p.CanConvert(); err != nil {
		return err
	}
	if invoiceID == uuid.Nil {
		return shared.NewValidationError("invoice ID cannot be empty")
	}
	p.transition(ProformaStatusConverted, func(now time.Time) {
		p.ConvertedToInvoiceID = &invoiceID
		p.ConvertedAt = &now
	})
	p.AddDomainEvent(NewProformaConvertedEvent(p, invoiceID))
	return nil
}

// LineInputs returns the proforma lines as inputs for a new document
func (p *Proforma) LineInputs() []LineItemInput {
	inputs := make([]LineItemInput, len(p.Lines))
	for i, l := range p.Lines {
		inputs[i] = l.Input()
	}
	return inputs
}

func (p *Proforma) transition(to ProformaStatus, apply func(now time.Time)) {
	from := p.Status
	now := time.Now()
	if apply != nil {
		apply(now)
	}
	p.Status = to
	p.Touch()
	p.AddDomainEvent(NewProformaStatusChangedEvent(p, from, to))
}
