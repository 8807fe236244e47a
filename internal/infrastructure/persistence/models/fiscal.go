package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FiscalDocumentModel is the persistence model for every fiscal document type.
// DocumentType discriminates the variant; variant columns are nullable.
type FiscalDocumentModel struct {
	TenantAggregateModel
	DocumentType     string          `gorm:"type:varchar(2);not null;index:idx_fiscal_documents_series,priority:2"`
	DocumentNumber   string          `gorm:"type:varchar(30);not null;index"`
	FiscalYear       int             `gorm:"not null;index:idx_fiscal_documents_series,priority:3"`
	Sequence         int64           `gorm:"not null;index:idx_fiscal_documents_series,priority:4"`
	ATCUD            string          `gorm:"column:atcud;type:varchar(100);not null"`
	HashControl      string          `gorm:"type:char(64);not null"`
	PreviousHash     string          `gorm:"type:varchar(64);not null;default:''"`
	DigitalSignature string          `gorm:"type:text;not null"`
	QRCodeData       string          `gorm:"column:qr_code_data;type:text;not null"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
	CompanyID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ContactID        *uuid.UUID      `gorm:"type:uuid"`
	IssueDate        time.Time       `gorm:"type:date;not null;index"`
	Currency         string          `gorm:"type:varchar(3);not null;default:'AOA'"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TaxAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Notes            string          `gorm:"type:text"`
	CertifiedAt      *time.Time

	// Proforma
	ValidUntil           *time.Time `gorm:"type:date"`
	SentAt               *time.Time
	AcceptedAt           *time.Time
	RejectedAt           *time.Time
	RejectionReason      string     `gorm:"type:varchar(500)"`
	ConvertedToInvoiceID *uuid.UUID `gorm:"type:uuid"`
	ConvertedAt          *time.Time

	// Invoice
	PaymentStatus string           `gorm:"type:varchar(20)"`
	PaidAmount    *decimal.Decimal `gorm:"type:decimal(18,2)"`
	DueDate       *time.Time       `gorm:"type:date;index"`
	ProformaID    *uuid.UUID       `gorm:"type:uuid"`
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CancelReason  string `gorm:"type:varchar(500)"`

	// Credit note
	OriginalInvoiceID     *uuid.UUID `gorm:"type:uuid;index"`
	OriginalInvoiceNumber string     `gorm:"type:varchar(30)"`
	Reason                string     `gorm:"type:varchar(500)"`

	// Payment receipt
	PaymentMethodID *uuid.UUID `gorm:"type:uuid"`

	Lines        []DocumentLineModel `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE"`
	ReceiptLines []ReceiptLineModel  `gorm:"foreignKey:ReceiptID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (FiscalDocumentModel) TableName() string {
	return "fiscal_documents"
}

// DocumentLineModel is the persistence model for a computed document line
type DocumentLineModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNumber         int             `gorm:"not null"`
	ProductID          *uuid.UUID      `gorm:"type:uuid"`
	Description        string          `gorm:"type:varchar(500);not null"`
	Quantity           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	TaxRate            decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	TaxExemptionCode   string          `gorm:"type:varchar(3)"`
	TaxExemptionReason string          `gorm:"type:varchar(255)"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	NetAmount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TaxAmount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (DocumentLineModel) TableName() string {
	return "fiscal_document_lines"
}

// ReceiptLineModel is an invoice settled by a payment receipt
type ReceiptLineModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReceiptID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNumber    int             `gorm:"not null"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceNumber string          `gorm:"type:varchar(30);not null"`
	InvoiceDate   string          `gorm:"type:varchar(10);not null"`
	InvoiceTotal  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (ReceiptLineModel) TableName() string {
	return "fiscal_receipt_lines"
}

// FiscalDocumentModelFromDomain creates a persistence model from any document type
func FiscalDocumentModelFromDomain(doc fiscal.Document) *FiscalDocumentModel {
	h := doc.Header()
	m := &FiscalDocumentModel{
		DocumentType:     string(h.DocumentType),
		DocumentNumber:   h.DocumentNumber,
		FiscalYear:       h.FiscalYear,
		Sequence:         h.Sequence,
		ATCUD:            h.ATCUD,
		HashControl:      h.HashControl,
		PreviousHash:     h.PreviousHash,
		DigitalSignature: h.DigitalSignature,
		QRCodeData:       h.QRCodeData,
		Status:           doc.StatusValue(),
		CompanyID:        h.CompanyID,
		ContactID:        h.ContactID,
		IssueDate:        h.IssueDate,
		Currency:         string(h.Currency),
		Subtotal:         h.Subtotal,
		DiscountAmount:   h.DiscountAmount,
		TaxAmount:        h.TaxAmount,
		TotalAmount:      h.TotalAmount,
		Notes:            h.Notes,
		CertifiedAt:      h.CertifiedAt,
	}
	m.FromDomainTenantAggregateRoot(h.TenantAggregateRoot)

	m.Lines = make([]DocumentLineModel, len(h.Lines))
	for i, l := range h.Lines {
		m.Lines[i] = DocumentLineModel{
			ID:                 l.ID,
			DocumentID:         h.ID,
			LineNumber:         l.LineNumber,
			ProductID:          l.ProductID,
			Description:        l.Description,
			Quantity:           l.Quantity,
			UnitPrice:          l.UnitPrice,
			DiscountPercentage: l.DiscountPercentage,
			TaxRate:            l.TaxRate,
			TaxExemptionCode:   l.TaxExemptionCode,
			TaxExemptionReason: l.TaxExemptionReason,
			Subtotal:           l.Subtotal,
			DiscountAmount:     l.DiscountAmount,
			NetAmount:          l.NetAmount,
			TaxAmount:          l.TaxAmount,
			TotalAmount:        l.TotalAmount,
		}
	}

	switch d := doc.(type) {
	case *fiscal.Proforma:
		validUntil := d.ValidUntil
		m.ValidUntil = &validUntil
		m.SentAt = d.SentAt
		m.AcceptedAt = d.AcceptedAt
		m.RejectedAt = d.RejectedAt
		m.RejectionReason = d.RejectionReason
		m.ConvertedToInvoiceID = d.ConvertedToInvoiceID
		m.ConvertedAt = d.ConvertedAt
	case *fiscal.Invoice:
		paid, due := d.PaidAmount, d.DueDate
		m.PaymentStatus = string(d.PaymentStatus)
		m.PaidAmount = &paid
		m.DueDate = &due
		m.ProformaID = d.ProformaID
		m.PaidAt = d.PaidAt
		m.CancelledAt = d.CancelledAt
		m.CancelReason = d.CancelReason
	case *fiscal.CreditNote:
		original := d.OriginalInvoiceID
		m.OriginalInvoiceID = &original
		m.OriginalInvoiceNumber = d.OriginalInvoiceNumber
		m.Reason = d.Reason
	case *fiscal.PaymentReceipt:
		method := d.PaymentMethodID
		m.PaymentMethodID = &method
		m.ReceiptLines = make([]ReceiptLineModel, len(d.Receipts))
		for i, r := range d.Receipts {
			m.ReceiptLines[i] = ReceiptLineModel{
				ID:            r.ID,
				ReceiptID:     h.ID,
				LineNumber:    r.LineNumber,
				InvoiceID:     r.InvoiceID,
				InvoiceNumber: r.InvoiceNumber,
				InvoiceDate:   r.InvoiceDate,
				InvoiceTotal:  r.InvoiceTotal,
				PaidAmount:    r.PaidAmount,
			}
		}
	}
	return m
}

// ToDomain rebuilds the document variant named by DocumentType
func (m *FiscalDocumentModel) ToDomain() (fiscal.Document, error) {
	base := fiscal.FiscalDocument{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		DocumentType:        fiscal.DocumentType(m.DocumentType),
		DocumentNumber:      m.DocumentNumber,
		FiscalYear:          m.FiscalYear,
		Sequence:            m.Sequence,
		ATCUD:               m.ATCUD,
		HashControl:         m.HashControl,
		PreviousHash:        m.PreviousHash,
		DigitalSignature:    m.DigitalSignature,
		QRCodeData:          m.QRCodeData,
		CompanyID:           m.CompanyID,
		ContactID:           m.ContactID,
		IssueDate:           fiscal.DateOnly(m.IssueDate),
		Currency:            valueobject.Currency(m.Currency),
		Subtotal:            m.Subtotal,
		DiscountAmount:      m.DiscountAmount,
		TaxAmount:           m.TaxAmount,
		TotalAmount:         m.TotalAmount,
		Notes:               m.Notes,
		CertifiedAt:         m.CertifiedAt,
		Lines:               make([]fiscal.DocumentLine, len(m.Lines)),
	}
	for i, l := range m.Lines {
		base.Lines[i] = fiscal.DocumentLine{
			ID:                 l.ID,
			LineNumber:         l.LineNumber,
			ProductID:          l.ProductID,
			Description:        l.Description,
			Quantity:           l.Quantity,
			UnitPrice:          l.UnitPrice,
			DiscountPercentage: l.DiscountPercentage,
			TaxRate:            l.TaxRate,
			TaxExemptionCode:   l.TaxExemptionCode,
			TaxExemptionReason: l.TaxExemptionReason,
			Subtotal:           l.Subtotal,
			DiscountAmount:     l.DiscountAmount,
			NetAmount:          l.NetAmount,
			TaxAmount:          l.TaxAmount,
			TotalAmount:        l.TotalAmount,
		}
	}

	switch base.DocumentType {
	case fiscal.DocumentTypeProforma:
		p := &fiscal.Proforma{
			FiscalDocument:       base,
			Status:               fiscal.ProformaStatus(m.Status),
			SentAt:               m.SentAt,
			AcceptedAt:           m.AcceptedAt,
			RejectedAt:           m.RejectedAt,
			RejectionReason:      m.RejectionReason,
			ConvertedToInvoiceID: m.ConvertedToInvoiceID,
			ConvertedAt:          m.ConvertedAt,
		}
		if m.ValidUntil != nil {
			p.ValidUntil = fiscal.DateOnly(*m.ValidUntil)
		}
		return p, nil
	case fiscal.DocumentTypeInvoice:
		inv := &fiscal.Invoice{
			FiscalDocument: base,
			Status:         fiscal.InvoiceStatus(m.Status),
			PaymentStatus:  fiscal.PaymentStatus(m.PaymentStatus),
			PaidAmount:     decimal.Zero,
			ProformaID:     m.ProformaID,
			PaidAt:         m.PaidAt,
			CancelledAt:    m.CancelledAt,
			CancelReason:   m.CancelReason,
		}
		if m.PaidAmount != nil {
			inv.PaidAmount = *m.PaidAmount
		}
		if m.DueDate != nil {
			inv.DueDate = fiscal.DateOnly(*m.DueDate)
		}
		return inv, nil
	case fiscal.DocumentTypeCreditNote:
		cn := &fiscal.CreditNote{
			FiscalDocument:        base,
			Status:                fiscal.CreditNoteStatus(m.Status),
			OriginalInvoiceNumber: m.OriginalInvoiceNumber,
			Reason:                m.Reason,
		}
		if m.OriginalInvoiceID != nil {
			cn.OriginalInvoiceID = *m.OriginalInvoiceID
		}
		return cn, nil
	case fiscal.DocumentTypePaymentReceipt:
		rg := &fiscal.PaymentReceipt{
			FiscalDocument: base,
			Status:         fiscal.PaymentReceiptStatus(m.Status),
			Receipts:       make([]fiscal.ReceiptLine, len(m.ReceiptLines)),
		}
		if m.PaymentMethodID != nil {
			rg.PaymentMethodID = *m.PaymentMethodID
		}
		for i, r := range m.ReceiptLines {
			rg.Receipts[i] = fiscal.ReceiptLine{
				ID:            r.ID,
				LineNumber:    r.LineNumber,
				InvoiceID:     r.InvoiceID,
				InvoiceNumber: r.InvoiceNumber,
				InvoiceDate:   r.InvoiceDate,
				InvoiceTotal:  r.InvoiceTotal,
				PaidAmount:    r.PaidAmount,
			}
		}
		return rg, nil
	}
	return nil, fmt.Errorf("unknown document type %q for document %s", m.DocumentType, m.ID)
}
