package fiscal

// DocumentType is the AGT document type tag that prefixes every document number
type DocumentType string

const (
	DocumentTypeProforma       DocumentType = "PF" // Fatura proforma
	DocumentTypeInvoice        DocumentType = "FT" // Fatura
	DocumentTypeCreditNote     DocumentType = "NC" // Nota de crédito
	DocumentTypePaymentReceipt DocumentType = "RG" // Recibo
)

// AllDocumentTypes returns every supported document type
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeProforma,
		DocumentTypeInvoice,
		DocumentTypeCreditNote,
		DocumentTypePaymentReceipt,
	}
}

// IsValid checks if the type is a supported DocumentType
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeProforma, DocumentTypeInvoice, DocumentTypeCreditNote, DocumentTypePaymentReceipt:
		return true
	}
	return false
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// Name returns the human readable name of the document type
func (t DocumentType) Name() string {
	switch t {
	case DocumentTypeProforma:
		return "Proforma"
	case DocumentTypeInvoice:
		return "Invoice"
	case DocumentTypeCreditNote:
		return "CreditNote"
	case DocumentTypePaymentReceipt:
		return "PaymentReceipt"
	}
	return "Unknown"
}
