package saft

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	saftapp "github.com/kwanza/fiscal/internal/application/saft"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

const (
	countryRegion     = "AO"
	finalConsumerID   = "999999999"
	genericProduct    = "GEN"
	unitOfMeasure     = "UN"
	sourceProduced    = "P"
	otherMechanism    = "OU"
	proformaWorkType  = "PP"
	systemEntryLayout = "2006-01-02T15:04:05"
	fileCurrency      = valueobject.DefaultCurrency
)

// Ensure XMLWriter implements saftapp.Writer
var _ saftapp.Writer = (*XMLWriter)(nil)

// XMLWriter renders documents with encoding/xml
type XMLWriter struct{}

// NewXMLWriter creates a new XMLWriter
func NewXMLWriter() *XMLWriter {
	return &XMLWriter{}
}

// Write builds the audit file. Documents are ordered by type and sequence so
// the output is stable for the same input. Amounts of foreign currency
// documents are converted to kwanza at the reference rate and the original
// total is kept in DocumentTotals/Currency.
func (w *XMLWriter) Write(h saftapp.AuditHeader, docs []fiscal.Document) ([]byte, error) {
	file := AuditFile{
		Xmlns:  Namespace,
		Header: buildHeader(h),
	}

	sorted := make([]fiscal.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Header(), sorted[j].Header()
		if a.DocumentType != b.DocumentType {
			return a.DocumentType < b.DocumentType
		}
		if a.FiscalYear != b.FiscalYear {
			return a.FiscalYear < b.FiscalYear
		}
		return a.Sequence < b.Sequence
	})

	rates := map[string]decimal.Decimal{}
	sales := &file.SourceDocuments.SalesInvoices
	work := &file.SourceDocuments.WorkingDocuments
	payments := &file.SourceDocuments.Payments
	salesDebit, salesCredit := decimal.Zero, decimal.Zero
	workCredit, paymentCredit := decimal.Zero, decimal.Zero

	for _, doc := range sorted {
		d := doc.Header()
		cv, err := converterFor(d.Currency)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", d.DocumentNumber, err)
		}
		for _, l := range d.Lines {
			rates[fiscal.TaxCodeFor(l.TaxRate)+l.TaxRate.String()] = l.TaxRate
		}
		switch v := doc.(type) {
		case *fiscal.Invoice:
			inv := invoiceEntry(h, d, cv)
			if v.Status == fiscal.InvoiceStatusCancelled {
				inv.DocumentStatus.InvoiceStatus = "A"
				inv.DocumentStatus.Reason = v.CancelReason
				if v.CancelledAt != nil {
					inv.DocumentStatus.InvoiceStatusDate = v.CancelledAt.UTC().Format(systemEntryLayout)
				}
			} else {
				salesCredit = salesCredit.Add(cv.aoa(d.Subtotal))
			}
			inv.Lines = lines(d, cv, false, nil)
			sales.Invoices = append(sales.Invoices, inv)
		case *fiscal.CreditNote:
			inv := invoiceEntry(h, d, cv)
			inv.Lines = lines(d, cv, true, &References{Reference: v.OriginalInvoiceNumber, Reason: v.Reason})
			salesDebit = salesDebit.Add(cv.aoa(d.Subtotal))
			sales.Invoices = append(sales.Invoices, inv)
		case *fiscal.Proforma:
			status := "N"
			if v.Status == fiscal.ProformaStatusConverted {
				status = "F"
			}
			work.WorkDocuments = append(work.WorkDocuments, WorkDocument{
				DocumentNumber: d.DocumentNumber,
				ATCUD:          d.ATCUD,
				DocumentStatus: WorkStatus{
					WorkStatus:     status,
					WorkStatusDate: systemEntry(d),
					SourceID:       d.CreatedBy.String(),
					SourceBilling:  sourceProduced,
				},
				Hash:            d.DigitalSignature,
				HashControl:     h.KeyVersion,
				Period:          int(d.IssueDate.Month()),
				WorkDate:        d.IssueDate.Format(time.DateOnly),
				WorkType:        proformaWorkType,
				SourceID:        d.CreatedBy.String(),
				SystemEntryDate: systemEntry(d),
				CustomerID:      customerID(d.ContactID),
				Lines:           lines(d, cv, false, nil),
				DocumentTotals:  totals(d, cv),
			})
			workCredit = workCredit.Add(cv.aoa(d.Subtotal))
		case *fiscal.PaymentReceipt:
			payments.Payments = append(payments.Payments, paymentEntry(d, v, cv))
			paymentCredit = paymentCredit.Add(cv.aoa(d.TotalAmount))
		default:
			return nil, fmt.Errorf("unsupported document type %s", d.DocumentType)
		}
	}

	sales.NumberOfEntries = len(sales.Invoices)
	sales.TotalDebit = amount(salesDebit)
	sales.TotalCredit = amount(salesCredit)
	work.NumberOfEntries = len(work.WorkDocuments)
	work.TotalDebit = amount(decimal.Zero)
	work.TotalCredit = amount(workCredit)
	payments.NumberOfEntries = len(payments.Payments)
	payments.TotalDebit = amount(decimal.Zero)
	payments.TotalCredit = amount(paymentCredit)
	file.MasterFiles.TaxTable = taxTable(rates)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(file); err != nil {
		return nil, fmt.Errorf("failed to encode SAF-T file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode SAF-T file: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func buildHeader(h saftapp.AuditHeader) Header {
	return Header{
		AuditFileVersion:      AuditFileVersion,
		CompanyID:             h.Company.TaxRegistrationNumber,
		TaxRegistrationNumber: h.Company.TaxRegistrationNumber,
		TaxAccountingBasis:    "F",
		CompanyName:           h.Company.CompanyName,
		CompanyAddress: CompanyAddress{
			AddressDetail: h.Company.AddressDetail,
			City:          h.Company.City,
			Country:       countryRegion,
		},
		FiscalYear:               h.Start.Year(),
		StartDate:                h.Start.Format(time.DateOnly),
		EndDate:                  h.End.Format(time.DateOnly),
		CurrencyCode:             string(fileCurrency),
		DateCreated:              h.DateCreated.Format(time.DateOnly),
		TaxEntity:                "Global",
		ProductCompanyTaxID:      h.Company.ProductCompanyTaxID,
		SoftwareValidationNumber: h.Company.SoftwareValidationNumber,
		ProductID:                h.Company.ProductID,
		ProductVersion:           h.Company.ProductVersion,
	}
}

func invoiceEntry(h saftapp.AuditHeader, d *fiscal.FiscalDocument, cv converter) Invoice {
	return Invoice{
		InvoiceNo: d.DocumentNumber,
		ATCUD:     d.ATCUD,
		DocumentStatus: InvoiceStatus{
			InvoiceStatus:     "N",
			InvoiceStatusDate: systemEntry(d),
			SourceID:          d.CreatedBy.String(),
			SourceBilling:     sourceProduced,
		},
		Hash:            d.DigitalSignature,
		HashControl:     h.KeyVersion,
		Period:          int(d.IssueDate.Month()),
		InvoiceDate:     d.IssueDate.Format(time.DateOnly),
		InvoiceType:     string(d.DocumentType),
		SourceID:        d.CreatedBy.String(),
		SystemEntryDate: systemEntry(d),
		CustomerID:      customerID(d.ContactID),
		DocumentTotals:  totals(d, cv),
	}
}

func paymentEntry(d *fiscal.FiscalDocument, r *fiscal.PaymentReceipt, cv converter) Payment {
	p := Payment{
		PaymentRefNo:    d.DocumentNumber,
		ATCUD:           d.ATCUD,
		Period:          int(d.IssueDate.Month()),
		TransactionDate: d.IssueDate.Format(time.DateOnly),
		PaymentType:     string(d.DocumentType),
		DocumentStatus: PaymentStatus{
			PaymentStatus:     "N",
			PaymentStatusDate: systemEntry(d),
			SourceID:          d.CreatedBy.String(),
			SourcePayment:     sourceProduced,
		},
		PaymentMethod: PaymentMethod{
			PaymentMechanism: otherMechanism,
			PaymentAmount:    amount(cv.aoa(d.TotalAmount)),
			PaymentDate:      d.IssueDate.Format(time.DateOnly),
		},
		SourceID:        d.CreatedBy.String(),
		SystemEntryDate: systemEntry(d),
		CustomerID:      customerID(d.ContactID),
		DocumentTotals:  totals(d, cv),
	}
	for _, l := range r.Receipts {
		p.Lines = append(p.Lines, PaymentLine{
			LineNumber:       l.LineNumber,
			SourceDocumentID: SourceDocumentID{OriginatingON: l.InvoiceNumber, InvoiceDate: l.InvoiceDate},
			CreditAmount:     amount(cv.aoa(l.PaidAmount)),
		})
	}
	return p
}

// lines maps document lines; credit notes debit the sale, everything else credits it
func lines(d *fiscal.FiscalDocument, cv converter, debit bool, refs *References) []Line {
	out := make([]Line, 0, len(d.Lines))
	for _, l := range d.Lines {
		line := Line{
			LineNumber:         l.LineNumber,
			ProductCode:        genericProduct,
			ProductDescription: l.Description,
			Quantity:           l.Quantity.String(),
			UnitOfMeasure:      unitOfMeasure,
			UnitPrice:          cv.unitPrice(l.UnitPrice).String(),
			TaxPointDate:       d.IssueDate.Format(time.DateOnly),
			References:         refs,
			Description:        l.Description,
			Tax: LineTax{
				TaxType:          fiscal.TaxTypeIVA,
				TaxCountryRegion: countryRegion,
				TaxCode:          fiscal.TaxCodeFor(l.TaxRate),
				TaxPercentage:    l.TaxRate.StringFixed(2),
			},
			TaxExemptionReason: l.TaxExemptionReason,
			TaxExemptionCode:   l.TaxExemptionCode,
			SettlementAmount:   amount(cv.aoa(l.DiscountAmount)),
		}
		if l.ProductID != nil {
			line.ProductCode = l.ProductID.String()
		}
		if debit {
			line.DebitAmount = amount(cv.aoa(l.NetAmount))
		} else {
			line.CreditAmount = amount(cv.aoa(l.NetAmount))
		}
		out = append(out, line)
	}
	return out
}

// taxTable lists the standard IVA table plus any non-standard rate in use
func taxTable(used map[string]decimal.Decimal) TaxTable {
	var t TaxTable
	for _, r := range fiscal.TaxRates() {
		t.Entries = append(t.Entries, TaxTableEntry{
			TaxType:          fiscal.TaxTypeIVA,
			TaxCountryRegion: countryRegion,
			TaxCode:          r.Code,
			Description:      r.Description,
			TaxPercentage:    r.Percentage.StringFixed(2),
		})
		delete(used, r.Code+r.Percentage.String())
	}
	other := make([]decimal.Decimal, 0, len(used))
	for _, rate := range used {
		other = append(other, rate)
	}
	sort.Slice(other, func(i, j int) bool { return other[i].LessThan(other[j]) })
	for _, rate := range other {
		t.Entries = append(t.Entries, TaxTableEntry{
			TaxType:          fiscal.TaxTypeIVA,
			TaxCountryRegion: countryRegion,
			TaxCode:          fiscal.TaxCodeFor(rate),
			Description:      "Outras taxas",
			TaxPercentage:    rate.StringFixed(2),
		})
	}
	return t
}

func totals(d *fiscal.FiscalDocument, cv converter) DocumentTotals {
	t := DocumentTotals{
		TaxPayable: amount(cv.aoa(d.TaxAmount)),
		NetTotal:   amount(cv.aoa(d.Subtotal)),
		GrossTotal: amount(cv.aoa(d.TotalAmount)),
	}
	if cv.foreign() {
		t.Currency = &Currency{
			CurrencyCode:   string(cv.currency),
			CurrencyAmount: amount(d.TotalAmount),
			ExchangeRate:   cv.rate.String(),
		}
	}
	return t
}

// converter expresses the amounts of one document in the file currency
type converter struct {
	currency valueobject.Currency
	rate     decimal.Decimal
}

func converterFor(c valueobject.Currency) (converter, error) {
	if c == "" {
		c = fileCurrency
	}
	info, ok := valueobject.LookupCurrency(c)
	if !ok {
		return converter{}, fmt.Errorf("no exchange rate for currency %q", c)
	}
	return converter{currency: c, rate: info.ExchangeRate}, nil
}

func (cv converter) foreign() bool {
	return cv.currency != fileCurrency
}

func (cv converter) aoa(v decimal.Decimal) decimal.Decimal {
	if !cv.foreign() {
		return v
	}
	return v.Mul(cv.rate).Round(2)
}

func (cv converter) unitPrice(v decimal.Decimal) decimal.Decimal {
	if !cv.foreign() {
		return v
	}
	return v.Mul(cv.rate).Round(4)
}

func systemEntry(d *fiscal.FiscalDocument) string {
	if d.CertifiedAt != nil {
		return d.CertifiedAt.UTC().Format(systemEntryLayout)
	}
	return d.CreatedAt.UTC().Format(systemEntryLayout)
}

func customerID(contactID *uuid.UUID) string {
	if contactID == nil {
		return finalConsumerID
	}
	return contactID.String()
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
