package fiscal

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Signer produces the digital signature of a document's canonical hash input.
// Implementations live in the certification infrastructure package.
type Signer interface {
	Sign(ctx context.Context, payload []byte) ([]byte, error)
	// KeyVersion identifies the key material, reported in SAF-T exports
	KeyVersion() string
}

// CertificationBundle is everything that makes a document legally issued
type CertificationBundle struct {
	DocumentNumber   string    `json:"document_number"`
	FiscalYear       int       `json:"fiscal_year"`
	Sequence         int64     `json:"sequence"`
	ATCUD            string    `json:"atcud"`
	HashControl      string    `json:"hash_control"`
	PreviousHash     string    `json:"previous_hash,omitempty"`
	DigitalSignature string    `json:"digital_signature"`
	QRCodeData       string    `json:"qr_code_data"`
	CertifiedAt      time.Time `json:"certified_at"`
}

// CertificationRequest carries the document fields the bundle is bound to
type CertificationRequest struct {
	TenantID    uuid.UUID
	Type        DocumentType
	IssueDate   time.Time
	TotalAmount decimal.Decimal
}

// Certifier numbers and certifies documents
type Certifier struct {
	signer         Signer
	validationCode string
	seriesCodes    map[string]string
	now            func() time.Time
}

// CertifierOption configures a Certifier
type CertifierOption func(*Certifier)

// WithValidationCode sets the issuer-wide validation code. A series without
// its own code gets "<code><TYPE><YEAR>" as ATCUD prefix.
func WithValidationCode(code string) CertifierOption {
	return func(c *Certifier) {
		if code != "" {
			c.validationCode = code
		}
	}
}

// WithSeriesValidationCodes sets the validation codes AGT assigned to
// individual series, keyed by SeriesCodeKey ("FT_2026"). Keys are case
// insensitive.
func WithSeriesValidationCodes(codes map[string]string) CertifierOption {
	return func(c *Certifier) {
		for k, v := range codes {
			if v == "" {
				continue
			}
			if c.seriesCodes == nil {
				c.seriesCodes = make(map[string]string, len(codes))
			}
			c.seriesCodes[strings.ToUpper(k)] = v
		}
	}
}

// WithClock overrides the clock used for the system entry timestamp
func WithClock(now func() time.Time) CertifierOption {
	return func(c *Certifier) {
		c.now = now
	}
}

// NewCertifier creates a Certifier signing with signer
func NewCertifier(signer Signer, opts ...CertifierOption) *Certifier {
	c := &Certifier{
		signer:         signer,
		validationCode: "0",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyVersion returns the version of the signing key
func (c *Certifier) KeyVersion() string {
	return c.signer.KeyVersion()
}

// Certify reserves the next number of the document's series from allocator
// and builds the certification bundle. The allocator must be bound to the
// transaction that persists the document, so a rollback releases the number.
func (c *Certifier) Certify(ctx context.Context, allocator SequenceAllocator, req CertificationRequest) (*CertificationBundle, error) {
	if !req.Type.IsValid() {
		return nil, shared.NewDomainError(shared.CodeCertification, "unknown document type "+string(req.Type))
	}
	if req.IssueDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeCertification, "issue date is required for certification")
	}

	key := SequenceKey{TenantID: req.TenantID, Type: req.Type, Year: req.IssueDate.Year()}
	alloc, err := allocator.Next(ctx, key)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeCertification, "failed to allocate document number", err)
	}

	entry := c.now().UTC().Truncate(time.Second)
	number := FormatDocumentNumber(req.Type, key.Year, alloc.Sequence)
	canonical := CanonicalHashInput(req.IssueDate, entry, number, req.TotalAmount, alloc.PreviousHash)
	sum := sha256.Sum256([]byte(canonical))
	hash := hex.EncodeToString(sum[:])

	sig, err := c.signer.Sign(ctx, []byte(canonical))
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeCertification, "failed to sign document", err)
	}
	signature := base64.StdEncoding.EncodeToString(sig)

	if err := allocator.RecordHash(ctx, key, alloc.Sequence, hash); err != nil {
		return nil, shared.WrapDomainError(shared.CodeCertification, "failed to record hash control", err)
	}

	return &CertificationBundle{
		DocumentNumber:   number,
		FiscalYear:       key.Year,
		Sequence:         alloc.Sequence,
		ATCUD:            FormatATCUD(c.SeriesValidationCode(req.Type, key.Year), alloc.Sequence),
		HashControl:      hash,
		PreviousHash:     alloc.PreviousHash,
		DigitalSignature: signature,
		QRCodeData:       QRPayload(req.Type, req.IssueDate, req.TotalAmount, hash, signature),
		CertifiedAt:      entry,
	}, nil
}

// SeriesValidationCode returns the ATCUD prefix of a series. Without a
// configured code the issuer code is qualified with type and year so two
// series never share an ATCUD.
func (c *Certifier) SeriesValidationCode(t DocumentType, year int) string {
	if code, ok := c.seriesCodes[SeriesCodeKey(t, year)]; ok {
		return code
	}
	return c.validationCode + string(t) + strconv.Itoa(year)
}

// SeriesCodeKey renders the "<TYPE>_<YEAR>" key of a series validation code
func SeriesCodeKey(t DocumentType, year int) string {
	return string(t) + "_" + strconv.Itoa(year)
}

// ParseSeriesCodeKey is the inverse of SeriesCodeKey
func ParseSeriesCodeKey(key string) (DocumentType, int, error) {
	typ, yr, ok := strings.Cut(strings.ToUpper(key), "_")
	t := DocumentType(typ)
	year, err := strconv.Atoi(yr)
	if !ok || !t.IsValid() || err != nil || year < 1 {
		return "", 0, shared.NewValidationError("invalid series key %q, want <TYPE>_<YEAR> such as FT_2026", key)
	}
	return t, year, nil
}

// CanonicalHashInput is the ';'-joined string the hash control and the
// signature are computed over.
func CanonicalHashInput(issueDate, systemEntry time.Time, number string, total decimal.Decimal, previousHash string) string {
	return strings.Join([]string{
		issueDate.Format(time.DateOnly),
		systemEntry.UTC().Format(time.RFC3339),
		number,
		total.StringFixed(2),
		previousHash,
	}, ";")
}

// FormatATCUD renders "<validation code>-<sequence>"
func FormatATCUD(validationCode string, seq int64) string {
	return validationCode + "-" + strconv.FormatInt(seq, 10)
}

// QRPayload renders the pipe-delimited QR content:
// TYPE|ISSUE_DATE|TOTAL|HASH|SIGNATURE_FRAGMENT
func QRPayload(t DocumentType, issueDate time.Time, total decimal.Decimal, hash, signature string) string {
	return strings.Join([]string{
		string(t),
		issueDate.Format(time.DateOnly),
		total.StringFixed(2),
		hash,
		SignatureFragment(signature),
	}, "|")
}

// SignatureFragment returns characters 1, 11, 21 and 31 of the signature
// (1-based), the printable excerpt AGT requires on documents.
func SignatureFragment(signature string) string {
	var b strings.Builder
	for _, pos := range []int{1, 11, 21, 31} {
		if pos <= len(signature) {
			b.WriteByte(signature[pos-1])
		}
	}
	return b.String()
}

// VerifyHashControl recomputes the hash of a certified document header
func VerifyHashControl(doc *FiscalDocument) bool {
	if doc.CertifiedAt == nil {
		return false
	}
	canonical := CanonicalHashInput(doc.IssueDate, *doc.CertifiedAt, doc.DocumentNumber, doc.TotalAmount, doc.PreviousHash)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]) == doc.HashControl
}
