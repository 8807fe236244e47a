package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics recorder is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// FiscalMetrics records fiscal document activity.
// It satisfies the Metrics ports of the fiscal and SAF-T application services.
type FiscalMetrics struct {
	logger *zap.Logger

	documentsIssued      *Counter
	documentAmount       metric.Float64Counter
	certificationFailure *Counter
	saftExports          *Counter
	saftExportDuration   *Histogram
	saftExportDocuments  *Counter
}

// NewFiscalMetrics creates the fiscal instruments on the given meter.
func NewFiscalMetrics(meter metric.Meter, logger *zap.Logger) (*FiscalMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fm := &FiscalMetrics{logger: logger}
	var err error

	fm.documentsIssued, err = NewCounter(meter,
		"fiscal_documents_issued_total",
		"Total number of certified fiscal documents",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	// Float counter: totals carry two decimal places in kwanza.
	fm.documentAmount, err = meter.Float64Counter("fiscal_documents_amount_total",
		metric.WithDescription("Sum of document totals in the document currency"),
		metric.WithUnit("{AOA}"),
	)
	if err != nil {
		return nil, err
	}

	fm.certificationFailure, err = NewCounter(meter,
		"fiscal_certification_failures_total",
		"Total number of documents whose issuance failed",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	fm.saftExports, err = NewCounter(meter,
		"fiscal_saft_exports_total",
		"Total number of SAF-T files generated",
		"{files}",
	)
	if err != nil {
		return nil, err
	}

	fm.saftExportDocuments, err = NewCounter(meter,
		"fiscal_saft_exported_documents_total",
		"Total number of documents written to SAF-T files",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	fm.saftExportDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "fiscal_saft_export_duration_seconds",
		Description: "SAF-T generation latency in seconds",
		Unit:        "s",
		Boundaries:  ExportDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return fm, nil
}

// DocumentIssued records a certified document and its total.
func (m *FiscalMetrics) DocumentIssued(ctx context.Context, docType string, total decimal.Decimal) {
	attr := AttrDocumentType.String(docType)
	m.documentsIssued.Inc(ctx, attr)
	m.documentAmount.Add(ctx, total.InexactFloat64(), metric.WithAttributes(attr))
}

// CertificationFailed records an issuance failure by error code.
func (m *FiscalMetrics) CertificationFailed(ctx context.Context, docType string, code string) {
	m.certificationFailure.Inc(ctx, AttrDocumentType.String(docType), AttrErrorCode.String(code))
	m.logger.Debug("certification failure recorded",
		zap.String("document_type", docType),
		zap.String("error_code", code),
	)
}

// SAFTExported records a generated audit file.
func (m *FiscalMetrics) SAFTExported(ctx context.Context, duration time.Duration, documents int) {
	m.saftExports.Inc(ctx)
	m.saftExportDocuments.Add(ctx, int64(documents))
	m.saftExportDuration.RecordDuration(ctx, duration)
}
