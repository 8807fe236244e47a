// Package saft builds the SAF-T (AO) audit file for a tenant and date range.
package saft

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultQueryTimeout bounds the document query of one export
const DefaultQueryTimeout = 30 * time.Second

// CompanyInfo identifies the taxpayer and the certified software in the file header
type CompanyInfo struct {
	TaxRegistrationNumber    string
	CompanyName              string
	AddressDetail            string
	City                     string
	ProductCompanyTaxID      string
	SoftwareValidationNumber string
	ProductID                string
	ProductVersion           string
}

// AuditHeader is everything a Writer needs besides the documents
type AuditHeader struct {
	Company     CompanyInfo
	TenantID    uuid.UUID
	Start       time.Time
	End         time.Time
	DateCreated time.Time
	KeyVersion  string
}

// Writer serialises documents into a SAF-T (AO) XML file.
// Implemented by infrastructure/saft.XMLWriter.
type Writer interface {
	Write(header AuditHeader, docs []fiscal.Document) ([]byte, error)
}

// ArchiveStorage stores a copy of every produced file.
// Implemented by storage.S3ObjectStorage.
type ArchiveStorage interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

// Metrics records export durations. Implemented by telemetry.FiscalMetrics.
type Metrics interface {
	SAFTExported(ctx context.Context, duration time.Duration, documents int)
}

// Export is a generated audit file
type Export struct {
	FileName      string
	Content       []byte
	DocumentCount int
	ArchiveKey    string
}

// ExportService produces SAF-T (AO) files
type ExportService struct {
	documents  fiscal.DocumentRepository
	writer     Writer
	company    CompanyInfo
	keyVersion string
	archive    ArchiveStorage
	prefix     string
	metrics    Metrics
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

// ExportServiceOption is a functional option for configuring ExportService
type ExportServiceOption func(*ExportService)

// WithArchive stores each produced file in object storage
func WithArchive(a ArchiveStorage) ExportServiceOption {
	return func(s *ExportService) {
		s.archive = a
	}
}

// WithArchivePrefix sets the object key prefix used for archived files
func WithArchivePrefix(prefix string) ExportServiceOption {
	return func(s *ExportService) {
		if prefix != "" {
			s.prefix = strings.TrimSuffix(prefix, "/")
		}
	}
}

// WithExportMetrics sets the metrics recorder
func WithExportMetrics(m Metrics) ExportServiceOption {
	return func(s *ExportService) {
		s.metrics = m
	}
}

// WithExportLogger sets the service logger
func WithExportLogger(l *zap.Logger) ExportServiceOption {
	return func(s *ExportService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQueryTimeout bounds the document query
func WithQueryTimeout(d time.Duration) ExportServiceOption {
	return func(s *ExportService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithKeyVersion sets the signing key version written as HashControl
func WithKeyVersion(v string) ExportServiceOption {
	return func(s *ExportService) {
		s.keyVersion = v
	}
}

// WithExportClock overrides the clock used for DateCreated
func WithExportClock(now func() time.Time) ExportServiceOption {
	return func(s *ExportService) {
		s.now = now
	}
}

// NewExportService creates a new ExportService
func NewExportService(documents fiscal.DocumentRepository, writer Writer, company CompanyInfo, opts ...ExportServiceOption) *ExportService {
	s := &ExportService{
		documents:  documents,
		writer:     writer,
		company:    company,
		keyVersion: "1",
		prefix:     "saft",
		logger:     zap.NewNop(),
		timeout:    DefaultQueryTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileName returns SAFT_AO_<start>_<end>.xml
func FileName(start, end time.Time) string {
	return "SAFT_AO_" + start.Format(time.DateOnly) + "_" + end.Format(time.DateOnly) + ".xml"
}

// Export collects the certified documents issued between start and end
// (inclusive, by issue date) and renders them as one audit file. An empty
// period still yields a valid file. Query failures are returned as
// EXPORT_ERROR and are not retried.
func (s *ExportService) Export(ctx context.Context, p fiscalapp.Principal, start, end time.Time) (*Export, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() {
		return nil, shared.NewValidationError("start_date and end_date are required")
	}
	start, end = fiscal.DateOnly(start), fiscal.DateOnly(end)
	if end.Before(start) {
		return nil, shared.NewValidationError("end_date cannot be before start_date")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "saft", "export")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, p.TenantID.String(),
		"period_start", start.Format(time.DateOnly),
		"period_end", end.Format(time.DateOnly))

	began := time.Now()
	docs, err := s.query(ctx, p.TenantID, start, end)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("SAF-T export query failed",
			zap.String("tenant_id", p.TenantID.String()),
			zap.Error(err))
		return nil, shared.WrapDomainError(shared.CodeExport, "failed to read documents for the export period", err)
	}

	content, err := s.writer.Write(AuditHeader{
		Company:     s.company,
		TenantID:    p.TenantID,
		Start:       start,
		End:         end,
		DateCreated: s.now(),
		KeyVersion:  s.keyVersion,
	}, docs)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("SAF-T serialisation failed", zap.Error(err))
		return nil, shared.WrapDomainError(shared.CodeExport, "failed to build the SAF-T file", err)
	}

	export := &Export{
		FileName:      FileName(start, end),
		Content:       content,
		DocumentCount: len(docs),
	}
	export.ArchiveKey = s.store(ctx, p, export)
	telemetry.SetAttributes(span, "document_count", export.DocumentCount)
	telemetry.SetOK(span)

	if s.metrics != nil {
		s.metrics.SAFTExported(ctx, time.Since(began), export.DocumentCount)
	}
	s.logger.Info("SAF-T export generated",
		zap.String("tenant_id", p.TenantID.String()),
		zap.String("file_name", export.FileName),
		zap.Int("documents", export.DocumentCount),
		zap.Int("bytes", len(content)))
	return export, nil
}

func (s *ExportService) query(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]fiscal.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	docs, err := s.documents.FindIssuedBetween(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapDomainError(shared.CodeTimeout, "document query did not finish in time", err)
	}
	return docs, nil
}

// store archives the file; a failure is logged and never fails the export
func (s *ExportService) store(ctx context.Context, p fiscalapp.Principal, e *Export) string {
	if s.archive == nil {
		return ""
	}
	key := s.prefix + "/" + p.TenantID.String() + "/" + e.FileName
	if err := s.archive.PutObject(ctx, key, "application/xml", e.Content); err != nil {
		s.logger.Warn("Failed to archive SAF-T export", zap.String("key", key), zap.Error(err))
		return ""
	}
	return key
}
