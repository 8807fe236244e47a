package event

import (
	"context"

	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured log line per fiscal event so that
// every issued document and status change can be traced in the log pipeline.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(l *zap.Logger) *AuditLogHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuditLogHandler{logger: l.Named("audit")}
}

// EventTypes subscribes to every event
func (h *AuditLogHandler) EventTypes() []string { return nil }

// Handle logs the event with its type-specific fields
func (h *AuditLogHandler) Handle(ctx context.Context, e shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", e.EventType()),
		zap.String("event_id", e.EventID().String()),
		zap.String("aggregate_type", e.AggregateType()),
		zap.String("aggregate_id", e.AggregateID().String()),
		zap.String("tenant_id", e.TenantID().String()),
		zap.Time("occurred_at", e.OccurredAt()),
	}
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	switch ev := e.(type) {
	case *fiscal.DocumentIssuedEvent:
		fields = append(fields,
			zap.String("document_type", string(ev.DocumentType)),
			zap.String("document_number", ev.DocumentNumber),
			zap.String("atcud", ev.ATCUD),
			zap.String("total_amount", ev.TotalAmount.StringFixed(2)),
			zap.String("currency", ev.Currency))
	case *fiscal.ProformaStatusChangedEvent:
		fields = append(fields,
			zap.String("document_number", ev.DocumentNumber),
			zap.String("from", string(ev.From)),
			zap.String("to", string(ev.To)))
	case *fiscal.ProformaConvertedEvent:
		fields = append(fields,
			zap.String("document_number", ev.DocumentNumber),
			zap.String("invoice_id", ev.InvoiceID.String()))
	case *fiscal.InvoiceStatusChangedEvent:
		fields = append(fields,
			zap.String("document_number", ev.DocumentNumber),
			zap.String("from", string(ev.From)),
			zap.String("to", string(ev.To)))
	case *fiscal.InvoicePaymentAppliedEvent:
		fields = append(fields,
			zap.String("document_number", ev.DocumentNumber),
			zap.String("receipt_id", ev.ReceiptID.String()),
			zap.String("amount", ev.Amount.StringFixed(2)),
			zap.String("paid_amount", ev.PaidAmount.StringFixed(2)),
			zap.String("payment_status", string(ev.PaymentStatus)))
	}

	h.logger.Info("Fiscal event", fields...)
	return nil
}
