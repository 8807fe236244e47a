// Package saft renders fiscal documents as a SAF-T (AO) audit file.
package saft

import "encoding/xml"

// Namespace of the Angolan SAF-T schema
const Namespace = "urn:OECD:StandardAuditFile-Tax:AO_1.01_01"

// AuditFileVersion written to every header
const AuditFileVersion = "1.01_01"

type AuditFile struct {
	XMLName         xml.Name        `xml:"AuditFile"`
	Xmlns           string          `xml:"xmlns,attr"`
	Header          Header          `xml:"Header"`
	MasterFiles     MasterFiles     `xml:"MasterFiles"`
	SourceDocuments SourceDocuments `xml:"SourceDocuments"`
}

type Header struct {
	AuditFileVersion         string         `xml:"AuditFileVersion"`
	CompanyID                string         `xml:"CompanyID"`
	TaxRegistrationNumber    string         `xml:"TaxRegistrationNumber"`
	TaxAccountingBasis       string         `xml:"TaxAccountingBasis"`
	CompanyName              string         `xml:"CompanyName"`
	CompanyAddress           CompanyAddress `xml:"CompanyAddress"`
	FiscalYear               int            `xml:"FiscalYear"`
	StartDate                string         `xml:"StartDate"`
	EndDate                  string         `xml:"EndDate"`
	CurrencyCode             string         `xml:"CurrencyCode"`
	DateCreated              string         `xml:"DateCreated"`
	TaxEntity                string         `xml:"TaxEntity"`
	ProductCompanyTaxID      string         `xml:"ProductCompanyTaxID"`
	SoftwareValidationNumber string         `xml:"SoftwareValidationNumber"`
	ProductID                string         `xml:"ProductID"`
	ProductVersion           string         `xml:"ProductVersion"`
}

type CompanyAddress struct {
	AddressDetail string `xml:"AddressDetail"`
	City          string `xml:"City"`
	Country       string `xml:"Country"`
}

type MasterFiles struct {
	TaxTable TaxTable `xml:"TaxTable"`
}

type TaxTable struct {
	Entries []TaxTableEntry `xml:"TaxTableEntry"`
}

type TaxTableEntry struct {
	TaxType          string `xml:"TaxType"`
	TaxCountryRegion string `xml:"TaxCountryRegion"`
	TaxCode          string `xml:"TaxCode"`
	Description      string `xml:"Description"`
	TaxPercentage    string `xml:"TaxPercentage"`
}

type SourceDocuments struct {
	SalesInvoices    SalesInvoices    `xml:"SalesInvoices"`
	WorkingDocuments WorkingDocuments `xml:"WorkingDocuments"`
	Payments         Payments         `xml:"Payments"`
}

type SalesInvoices struct {
	NumberOfEntries int       `xml:"NumberOfEntries"`
	TotalDebit      string    `xml:"TotalDebit"`
	TotalCredit     string    `xml:"TotalCredit"`
	Invoices        []Invoice `xml:"Invoice"`
}

type Invoice struct {
	InvoiceNo       string         `xml:"InvoiceNo"`
	ATCUD           string         `xml:"ATCUD"`
	DocumentStatus  InvoiceStatus  `xml:"DocumentStatus"`
	Hash            string         `xml:"Hash"`
	HashControl     string         `xml:"HashControl"`
	Period          int            `xml:"Period"`
	InvoiceDate     string         `xml:"InvoiceDate"`
	InvoiceType     string         `xml:"InvoiceType"`
	SourceID        string         `xml:"SourceID"`
	SystemEntryDate string         `xml:"SystemEntryDate"`
	CustomerID      string         `xml:"CustomerID"`
	Lines           []Line         `xml:"Line"`
	DocumentTotals  DocumentTotals `xml:"DocumentTotals"`
}

type InvoiceStatus struct {
	InvoiceStatus     string `xml:"InvoiceStatus"`
	InvoiceStatusDate string `xml:"InvoiceStatusDate"`
	Reason            string `xml:"Reason,omitempty"`
	SourceID          string `xml:"SourceID"`
	SourceBilling     string `xml:"SourceBilling"`
}

type Line struct {
	LineNumber         int         `xml:"LineNumber"`
	ProductCode        string      `xml:"ProductCode"`
	ProductDescription string      `xml:"ProductDescription"`
	Quantity           string      `xml:"Quantity"`
	UnitOfMeasure      string      `xml:"UnitOfMeasure"`
	UnitPrice          string      `xml:"UnitPrice"`
	TaxPointDate       string      `xml:"TaxPointDate"`
	References         *References `xml:"References,omitempty"`
	Description        string      `xml:"Description"`
	DebitAmount        string      `xml:"DebitAmount,omitempty"`
	CreditAmount       string      `xml:"CreditAmount,omitempty"`
	Tax                LineTax     `xml:"Tax"`
	TaxExemptionReason string      `xml:"TaxExemptionReason,omitempty"`
	TaxExemptionCode   string      `xml:"TaxExemptionCode,omitempty"`
	SettlementAmount   string      `xml:"SettlementAmount"`
}

type References struct {
	Reference string `xml:"Reference"`
	Reason    string `xml:"Reason"`
}

type LineTax struct {
	TaxType          string `xml:"TaxType"`
	TaxCountryRegion string `xml:"TaxCountryRegion"`
	TaxCode          string `xml:"TaxCode"`
	TaxPercentage    string `xml:"TaxPercentage"`
}

type DocumentTotals struct {
	TaxPayable string    `xml:"TaxPayable"`
	NetTotal   string    `xml:"NetTotal"`
	GrossTotal string    `xml:"GrossTotal"`
	Currency   *Currency `xml:"Currency,omitempty"`
}

// Currency carries the original amount of a document issued in a foreign
// currency. Every other amount of the file is in kwanza.
type Currency struct {
	CurrencyCode   string `xml:"CurrencyCode"`
	CurrencyAmount string `xml:"CurrencyAmount"`
	ExchangeRate   string `xml:"ExchangeRate"`
}

type WorkingDocuments struct {
	NumberOfEntries int            `xml:"NumberOfEntries"`
	TotalDebit      string         `xml:"TotalDebit"`
	TotalCredit     string         `xml:"TotalCredit"`
	WorkDocuments   []WorkDocument `xml:"WorkDocument"`
}

type WorkDocument struct {
	DocumentNumber  string         `xml:"DocumentNumber"`
	ATCUD           string         `xml:"ATCUD"`
	DocumentStatus  WorkStatus     `xml:"DocumentStatus"`
	Hash            string         `xml:"Hash"`
	HashControl     string         `xml:"HashControl"`
	Period          int            `xml:"Period"`
	WorkDate        string         `xml:"WorkDate"`
	WorkType        string         `xml:"WorkType"`
	SourceID        string         `xml:"SourceID"`
	SystemEntryDate string         `xml:"SystemEntryDate"`
	CustomerID      string         `xml:"CustomerID"`
	Lines           []Line         `xml:"Line"`
	DocumentTotals  DocumentTotals `xml:"DocumentTotals"`
}

type WorkStatus struct {
	WorkStatus     string `xml:"WorkStatus"`
	WorkStatusDate string `xml:"WorkStatusDate"`
	SourceID       string `xml:"SourceID"`
	SourceBilling  string `xml:"SourceBilling"`
}

type Payments struct {
	NumberOfEntries int       `xml:"NumberOfEntries"`
	TotalDebit      string    `xml:"TotalDebit"`
	TotalCredit     string    `xml:"TotalCredit"`
	Payments        []Payment `xml:"Payment"`
}

type Payment struct {
	PaymentRefNo    string         `xml:"PaymentRefNo"`
	ATCUD           string         `xml:"ATCUD"`
	Period          int            `xml:"Period"`
	TransactionDate string         `xml:"TransactionDate"`
	PaymentType     string         `xml:"PaymentType"`
	DocumentStatus  PaymentStatus  `xml:"DocumentStatus"`
	PaymentMethod   PaymentMethod  `xml:"PaymentMethod"`
	SourceID        string         `xml:"SourceID"`
	SystemEntryDate string         `xml:"SystemEntryDate"`
	CustomerID      string         `xml:"CustomerID"`
	Lines           []PaymentLine  `xml:"Line"`
	DocumentTotals  DocumentTotals `xml:"DocumentTotals"`
}

type PaymentStatus struct {
	PaymentStatus     string `xml:"PaymentStatus"`
	PaymentStatusDate string `xml:"PaymentStatusDate"`
	SourceID          string `xml:"SourceID"`
	SourcePayment     string `xml:"SourcePayment"`
}

type PaymentMethod struct {
	PaymentMechanism string `xml:"PaymentMechanism"`
	PaymentAmount    string `xml:"PaymentAmount"`
	PaymentDate      string `xml:"PaymentDate"`
}

type PaymentLine struct {
	LineNumber       int              `xml:"LineNumber"`
	SourceDocumentID SourceDocumentID `xml:"SourceDocumentID"`
	CreditAmount     string           `xml:"CreditAmount"`
}

type SourceDocumentID struct {
	OriginatingON string `xml:"OriginatingON"`
	InvoiceDate   string `xml:"InvoiceDate"`
}
