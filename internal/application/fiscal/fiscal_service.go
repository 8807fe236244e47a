package fiscal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/domain/shared/valueobject"
	"github.com/kwanza/fiscal/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultStorageTimeout bounds the storage work of a single operation
const DefaultStorageTimeout = 5 * time.Second

// Metrics records fiscal business metrics. Implemented by telemetry.FiscalMetrics.
type Metrics interface {
	DocumentIssued(ctx context.Context, docType string, total decimal.Decimal)
	CertificationFailed(ctx context.Context, docType string, code string)
}

type noopMetrics struct{}

func (noopMetrics) DocumentIssued(context.Context, string, decimal.Decimal) {}
func (noopMetrics) CertificationFailed(context.Context, string, string)     {}

// FiscalService issues, certifies and transitions fiscal documents
type FiscalService struct {
	scope          TransactionScope
	documents      fiscal.DocumentRepository
	certifier      *fiscal.Certifier
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	publisher      shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	timeout        time.Duration
	currency       valueobject.Currency
	now            func() time.Time
}

// FiscalServiceOption is a functional option for configuring FiscalService
type FiscalServiceOption func(*FiscalService)

// WithIdempotencyStore enables Idempotency-Key handling on create operations
func WithIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) FiscalServiceOption {
	return func(s *FiscalService) {
		if !cfg.Enabled {
			return
		}
		s.idempotency = store
		s.idempotencyTTL = cfg.TTL
	}
}

// WithEventPublisher sets where domain events go after commit
func WithEventPublisher(p shared.EventPublisher) FiscalServiceOption {
	return func(s *FiscalService) {
		s.publisher = p
	}
}

// WithMetrics sets the business metrics recorder
func WithMetrics(m Metrics) FiscalServiceOption {
	return func(s *FiscalService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) FiscalServiceOption {
	return func(s *FiscalService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStorageTimeout bounds each operation's storage work
func WithStorageTimeout(d time.Duration) FiscalServiceOption {
	return func(s *FiscalService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDefaultCurrency sets the currency of documents whose request names none
func WithDefaultCurrency(code string) FiscalServiceOption {
	return func(s *FiscalService) {
		if code != "" {
			s.currency = valueobject.Currency(code)
		}
	}
}

// WithServiceClock overrides the clock used for default dates and sweeps
func WithServiceClock(now func() time.Time) FiscalServiceOption {
	return func(s *FiscalService) {
		s.now = now
	}
}

// NewFiscalService creates a new FiscalService
func NewFiscalService(
	scope TransactionScope,
	documents fiscal.DocumentRepository,
	certifier *fiscal.Certifier,
	opts ...FiscalServiceOption,
) *FiscalService {
	s := &FiscalService{
		scope:     scope,
		documents: documents,
		certifier: certifier,
		metrics:   noopMetrics{},
		logger:    zap.NewNop(),
		timeout:   DefaultStorageTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===================== Proforma Operations =====================

// CreateProforma creates and certifies a draft proforma
func (s *FiscalService) CreateProforma(ctx context.Context, p Principal, req CreateProformaRequest) (*DocumentResponse, error) {
	return s.issue(ctx, p, fiscal.DocumentTypeProforma, req.IdempotencyKey, func(_ context.Context, _ TransactionalRepositories) (fiscal.Document, error) {
		return fiscal.NewProforma(p.TenantID, p.UserID, s.header(req.DocumentHeaderRequest), toLineInputs(req.Items), req.ValidUntil)
	}, nil)
}

// SendProforma marks a draft proforma as sent
func (s *FiscalService) SendProforma(ctx context.Context, p Principal, id uuid.UUID) (*DocumentResponse, error) {
	return s.transitionProforma(ctx, p, id, func(pf *fiscal.Proforma) error { return pf.Send() })
}

// AcceptProforma records the customer's acceptance
func (s *FiscalService) AcceptProforma(ctx context.Context, p Principal, id uuid.UUID) (*DocumentResponse, error) {
	return s.transitionProforma(ctx, p, id, func(pf *fiscal.Proforma) error { return pf.Accept() })
}

// RejectProforma records the customer's refusal
func (s *FiscalService) RejectProforma(ctx context.Context, p Principal, id uuid.UUID, reason string) (*DocumentResponse, error) {
	return s.transitionProforma(ctx, p, id, func(pf *fiscal.Proforma) error { return pf.Reject(reason) })
}

// ExpireProforma closes a proforma that was never accepted
func (s *FiscalService) ExpireProforma(ctx context.Context, p Principal, id uuid.UUID) (*DocumentResponse, error) {
	return s.transitionProforma(ctx, p, id, func(pf *fiscal.Proforma) error { return pf.Expire() })
}

// ConvertProforma creates an invoice from an accepted proforma and marks the
// proforma converted, both in one transaction
func (s *FiscalService) ConvertProforma(ctx context.Context, p Principal, id uuid.UUID, req ConvertProformaRequest) (*DocumentResponse, error) {
	var proforma *fiscal.Proforma
	return s.issue(ctx, p, fiscal.DocumentTypeInvoice, req.IdempotencyKey,
		func(ctx context.Context, repos TransactionalRepositories) (fiscal.Document, error) {
			var err error
			proforma, err = repos.Documents().FindProforma(ctx, p.TenantID, id)
			if err != nil {
				return nil, err
			}
			issueDate := s.now()
			if req.IssueDate != nil {
				issueDate = *req.IssueDate
			}
			return fiscal.NewInvoiceFromProforma(p.UserID, proforma, issueDate, req.DueDate)
		},
		func(ctx context.Context, repos TransactionalRepositories, doc fiscal.Document) ([]shared.AggregateRoot, error) {
			if err := proforma.MarkConverted(doc.Header().ID); err != nil {
				return nil, err
			}
			if err := repos.Documents().Update(ctx, proforma); err != nil {
				return nil, err
			}
			return []shared.AggregateRoot{proforma}, nil
		})
}

// DeleteDraftProforma removes a proforma that never left draft status
func (s *FiscalService) DeleteDraftProforma(ctx context.Context, p Principal, id uuid.UUID) error {
	if err := p.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		pf, err := repos.Documents().FindProforma(ctx, p.TenantID, id)
		if err != nil {
			return err
		}
		if pf.Status != fiscal.ProformaStatusDraft {
			return shared.NewInvalidStateError("only draft proformas can be deleted, current status is %s", pf.Status)
		}
		return repos.Documents().Delete(ctx, p.TenantID, id)
	})
	if err != nil {
		return s.fail(ctx, "delete proforma", err)
	}
	s.logger.Info("Proforma deleted", zap.String("tenant_id", p.TenantID.String()), zap.String("proforma_id", id.String()))
	return nil
}

// ===================== Invoice Operations =====================

// CreateInvoice creates and certifies an invoice
func (s *FiscalService) CreateInvoice(ctx context.Context, p Principal, req CreateInvoiceRequest) (*DocumentResponse, error) {
	return s.issue(ctx, p, fiscal.DocumentTypeInvoice, req.IdempotencyKey, func(_ context.Context, _ TransactionalRepositories) (fiscal.Document, error) {
		if req.CompanyID == uuid.Nil {
			return nil, shared.NewValidationError("company_id is required")
		}
		return fiscal.NewInvoice(p.TenantID, p.UserID, s.header(req.DocumentHeaderRequest), toLineInputs(req.Items), req.DueDate)
	}, nil)
}

// CancelInvoice voids an invoice with no payments applied
func (s *FiscalService) CancelInvoice(ctx context.Context, p Principal, id uuid.UUID, reason string) (*DocumentResponse, error) {
	return s.transitionInvoice(ctx, p, id, func(inv *fiscal.Invoice) error { return inv.Cancel(reason) })
}

// MarkInvoiceOverdue flags a single invoice whose due date has passed
func (s *FiscalService) MarkInvoiceOverdue(ctx context.Context, p Principal, id uuid.UUID) (*DocumentResponse, error) {
	now := s.now()
	return s.transitionInvoice(ctx, p, id, func(inv *fiscal.Invoice) error { return inv.MarkOverdue(now) })
}

// MarkOverdueInvoices flags every issued invoice of the tenant past its due date at asOf
func (s *FiscalService) MarkOverdueInvoices(ctx context.Context, p Principal, asOf time.Time) (*OverdueSweepResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var marked []*fiscal.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		marked = nil
		candidates, err := repos.Documents().FindOverdueCandidates(ctx, p.TenantID, fiscal.DateOnly(asOf))
		if err != nil {
			return err
		}
		for _, inv := range candidates {
			if !inv.IsPastDue(asOf) {
				continue
			}
			if err := inv.MarkOverdue(asOf); err != nil {
				return err
			}
			if err := repos.Documents().Update(ctx, inv); err != nil {
				return err
			}
			marked = append(marked, inv)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "overdue sweep", err)
	}

	result := &OverdueSweepResult{
		AsOf:            fiscal.DateOnly(asOf).Format(time.DateOnly),
		MarkedCount:     len(marked),
		DocumentNumbers: make([]string, 0, len(marked)),
	}
	roots := make([]shared.AggregateRoot, 0, len(marked))
	for _, inv := range marked {
		result.DocumentNumbers = append(result.DocumentNumbers, inv.DocumentNumber)
		roots = append(roots, inv)
	}
	s.publish(ctx, roots...)
	s.logger.Info("Overdue sweep completed",
		zap.String("tenant_id", p.TenantID.String()),
		zap.Int("marked", result.MarkedCount))
	return result, nil
}

// ===================== Credit Note Operations =====================

// CreateCreditNote creates and certifies a credit note against an issued invoice
func (s *FiscalService) CreateCreditNote(ctx context.Context, p Principal, req CreateCreditNoteRequest) (*DocumentResponse, error) {
	items := toLineInputs(req.Items)
	if err := fiscal.ValidateCreditNoteInput(req.OriginalInvoiceID, req.Reason, items); err != nil {
		return nil, err
	}
	return s.issue(ctx, p, fiscal.DocumentTypeCreditNote, req.IdempotencyKey, func(ctx context.Context, repos TransactionalRepositories) (fiscal.Document, error) {
		// the row lock serialises concurrent credit notes against the same invoice
		original, err := repos.Documents().FindInvoiceForUpdate(ctx, p.TenantID, req.OriginalInvoiceID)
		if err != nil {
			return nil, err
		}
		credited, err := repos.Documents().SumCreditedAmount(ctx, p.TenantID, original.ID)
		if err != nil {
			return nil, err
		}
		return fiscal.NewCreditNote(p.TenantID, p.UserID, original, s.header(req.DocumentHeaderRequest), req.Reason, items, credited)
	}, nil)
}

// ===================== Payment Receipt Operations =====================

// CreatePaymentReceipt creates a receipt and applies each payment to its
// invoice. The receipt and every invoice update commit together; any failure
// while applying payments rolls everything back as PAYMENT_APPLICATION_ERROR.
func (s *FiscalService) CreatePaymentReceipt(ctx context.Context, p Principal, req CreatePaymentReceiptRequest) (*DocumentResponse, error) {
	allocations := req.allocations()
	if err := fiscal.ValidateReceiptInput(req.CompanyID, req.PaymentMethodID, allocations); err != nil {
		return nil, err
	}

	var invoices []*fiscal.Invoice
	return s.issue(ctx, p, fiscal.DocumentTypePaymentReceipt, req.IdempotencyKey,
		func(ctx context.Context, repos TransactionalRepositories) (fiscal.Document, error) {
			invoices = make([]*fiscal.Invoice, len(allocations))
			for i, a := range allocations {
				inv, err := repos.Documents().FindInvoiceForUpdate(ctx, p.TenantID, a.InvoiceID)
				if err != nil {
					return nil, err
				}
				if !inv.Status.IsOpen() {
					return nil, shared.NewInvalidStateError("invoice %s is %s and cannot receive payments", inv.DocumentNumber, inv.Status)
				}
				if a.PaidAmount.GreaterThan(inv.RemainingAmount()) {
					return nil, shared.NewValidationError("payment of %s exceeds the remaining amount %s of invoice %s",
						a.PaidAmount.StringFixed(2), inv.RemainingAmount().StringFixed(2), inv.DocumentNumber)
				}
				invoices[i] = inv
			}
			return fiscal.NewPaymentReceipt(p.TenantID, p.UserID, s.header(req.DocumentHeaderRequest), req.PaymentMethodID, allocations, invoices)
		},
		func(ctx context.Context, repos TransactionalRepositories, doc fiscal.Document) ([]shared.AggregateRoot, error) {
			touched := make([]shared.AggregateRoot, 0, len(invoices))
			for i, inv := range invoices {
				if err := inv.ApplyPayment(allocations[i].PaidAmount, doc.Header().ID); err != nil {
					return nil, paymentApplicationError(inv, err)
				}
				if err := repos.Documents().Update(ctx, inv); err != nil {
					return nil, paymentApplicationError(inv, err)
				}
				touched = append(touched, inv)
			}
			return touched, nil
		})
}

func paymentApplicationError(inv *fiscal.Invoice, cause error) error {
	return shared.WrapDomainError(shared.CodePaymentApplication,
		"failed to apply payment to invoice "+inv.DocumentNumber+", receipt was not recorded", translateError(cause))
}

// ===================== Queries =====================

// GetDocument returns a document of any type
func (s *FiscalService) GetDocument(ctx context.Context, p Principal, id uuid.UUID) (*DocumentResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.documents.FindByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, translateError(err)
	}
	return ToDocumentResponse(doc), nil
}

// ListDocuments lists documents with filtering and pagination
func (s *FiscalService) ListDocuments(ctx context.Context, p Principal, filter ListDocumentsFilter) ([]DocumentResponse, int64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	domainFilter, err := toDomainFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, total, err := s.documents.FindAll(ctx, p.TenantID, domainFilter)
	if err != nil {
		return nil, 0, translateError(err)
	}
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = *ToDocumentResponse(d)
	}
	return out, total, nil
}

func toDomainFilter(f ListDocumentsFilter) (fiscal.DocumentFilter, error) {
	out := fiscal.DocumentFilter{
		Filter:    shared.DefaultFilter(),
		Status:    f.Status,
		CompanyID: f.CompanyID,
		FromDate:  f.From,
		ToDate:    f.To,
	}
	out.OrderBy = "issue_date"
	if f.Page > 0 {
		out.Page = f.Page
	}
	if f.PageSize > 0 {
		out.PageSize = min(f.PageSize, 100)
	}
	if f.Type != "" {
		t := fiscal.DocumentType(f.Type)
		if !t.IsValid() {
			return out, shared.NewValidationError("unknown document type %q", f.Type)
		}
		out.Type = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return out, shared.NewValidationError("'to' date cannot be before 'from' date")
	}
	return out, nil
}

// ===================== Internals =====================

type buildFunc func(ctx context.Context, repos TransactionalRepositories) (fiscal.Document, error)

type afterFunc func(ctx context.Context, repos TransactionalRepositories, doc fiscal.Document) ([]shared.AggregateRoot, error)

// issue runs the common create pipeline: build the document, certify it
// with a number from the transaction's allocator, insert it and apply any
// cross-document effects, all inside one transaction.
func (s *FiscalService) issue(ctx context.Context, p Principal, docType fiscal.DocumentType, idemKey string, build buildFunc, after afterFunc) (*DocumentResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "fiscal", "issue_"+docType.Name())
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, p.TenantID.String(),
		telemetry.SpanAttrDocumentType, string(docType))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if existing, ok := s.replay(ctx, p, docType, idemKey); ok {
		return existing, nil
	}

	var (
		doc     fiscal.Document
		touched []shared.AggregateRoot
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = build(ctx, repos)
		if err != nil {
			return err
		}
		bundle, err := s.certifier.Certify(ctx, repos.Sequences(), doc.Header().CertificationRequest())
		if err != nil {
			return err
		}
		if err := doc.Header().ApplyCertification(bundle); err != nil {
			return err
		}
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		if after != nil {
			touched, err = after(ctx, repos, doc)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if shared.HasCode(err, shared.CodeCertification) {
			s.metrics.CertificationFailed(ctx, string(docType), shared.CodeOf(err))
		}
		return nil, s.fail(ctx, "issue "+docType.Name(), err)
	}

	h := doc.Header()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, h.ID.String(),
		telemetry.SpanAttrDocumentNumber, h.DocumentNumber,
		telemetry.SpanAttrAmount, h.TotalAmount.StringFixed(2))
	telemetry.SetOK(span)
	s.remember(ctx, p, docType, idemKey, h.ID)
	s.publish(ctx, append([]shared.AggregateRoot{doc}, touched...)...)
	s.metrics.DocumentIssued(ctx, string(docType), h.TotalAmount)
	s.logger.Info("Fiscal document issued",
		zap.String("tenant_id", p.TenantID.String()),
		zap.String("document_type", string(docType)),
		zap.String("document_number", h.DocumentNumber),
		zap.String("atcud", h.ATCUD),
		zap.String("total", h.TotalAmount.StringFixed(2)))
	return ToDocumentResponse(doc), nil
}

func (s *FiscalService) transitionProforma(ctx context.Context, p Principal, id uuid.UUID, fn func(*fiscal.Proforma) error) (*DocumentResponse, error) {
	return s.transition(ctx, p, "proforma transition", func(ctx context.Context, repos TransactionalRepositories) (fiscal.Document, error) {
		pf, err := repos.Documents().FindProforma(ctx, p.TenantID, id)
		if err != nil {
			return nil, err
		}
		return pf, fn(pf)
	})
}

func (s *FiscalService) transitionInvoice(ctx context.Context, p Principal, id uuid.UUID, fn func(*fiscal.Invoice) error) (*DocumentResponse, error) {
	return s.transition(ctx, p, "invoice transition", func(ctx context.Context, repos TransactionalRepositories) (fiscal.Document, error) {
		inv, err := repos.Documents().FindInvoiceForUpdate(ctx, p.TenantID, id)
		if err != nil {
			return nil, err
		}
		return inv, fn(inv)
	})
}

func (s *FiscalService) transition(ctx context.Context, p Principal, op string, load buildFunc) (*DocumentResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "fiscal", strings.ReplaceAll(op, " ", "_"))
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, p.TenantID.String())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc fiscal.Document
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = load(ctx, repos)
		if err != nil {
			return err
		}
		return repos.Documents().Update(ctx, doc)
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentNumber, doc.Header().DocumentNumber)
	telemetry.SetOK(span)
	s.publish(ctx, doc)
	s.logger.Info("Fiscal document updated",
		zap.String("tenant_id", p.TenantID.String()),
		zap.String("document_number", doc.Header().DocumentNumber),
		zap.String("status", doc.StatusValue()))
	return ToDocumentResponse(doc), nil
}

func (s *FiscalService) header(h DocumentHeaderRequest) fiscal.DocumentHeader {
	header := h.toHeader()
	if header.IssueDate.IsZero() {
		header.IssueDate = s.now()
	}
	if header.Currency == "" {
		header.Currency = s.currency
	}
	return header
}

func (s *FiscalService) fail(ctx context.Context, op string, err error) error {
	err = translateError(err)
	span := trace.SpanFromContext(ctx)
	telemetry.SetAttributes(span, telemetry.SpanAttrErrorCode, shared.CodeOf(err))
	telemetry.RecordError(span, err)
	fields := []zap.Field{zap.String("operation", op), zap.String("code", shared.CodeOf(err)), zap.Error(err)}
	switch shared.CodeOf(err) {
	case shared.CodeValidation, shared.CodeNotFound, shared.CodeInvalidState, shared.CodeUnauthorized:
		s.logger.Warn("Fiscal operation rejected", fields...)
	default:
		s.logger.Error("Fiscal operation failed", fields...)
	}
	return err
}

func (s *FiscalService) publish(ctx context.Context, roots ...shared.AggregateRoot) {
	var events []shared.DomainEvent
	for _, r := range roots {
		events = append(events, r.GetDomainEvents()...)
		r.ClearDomainEvents()
	}
	if s.publisher == nil || len(events) == 0 {
		return
	}
	// events describe committed state, so a publish failure is logged, not returned
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish fiscal events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// idempotencyKey scopes a client key to the tenant and the document type, so
// the same key sent to two endpoints issues two documents
func idempotencyKey(p Principal, docType fiscal.DocumentType, key string) string {
	return "fiscal:" + p.TenantID.String() + ":" + string(docType) + ":" + key
}

func (s *FiscalService) replay(ctx context.Context, p Principal, docType fiscal.DocumentType, key string) (*DocumentResponse, bool) {
	if s.idempotency == nil || key == "" {
		return nil, false
	}
	id, err := s.idempotency.Lookup(ctx, idempotencyKey(p, docType, key))
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if id == "" {
		return nil, false
	}
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	doc, err := s.documents.FindByID(ctx, p.TenantID, docID)
	if err != nil {
		return nil, false
	}
	s.logger.Info("Replaying idempotent request", zap.String("key", key), zap.String("document_id", id))
	return ToDocumentResponse(doc), true
}

func (s *FiscalService) remember(ctx context.Context, p Principal, docType fiscal.DocumentType, key string, id uuid.UUID) {
	if s.idempotency == nil || key == "" {
		return
	}
	stored, err := s.idempotency.Remember(ctx, idempotencyKey(p, docType, key), id.String(), s.idempotencyTTL)
	if err != nil {
		s.logger.Warn("Failed to record idempotency key", zap.String("key", key), zap.Error(err))
		return
	}
	if !stored {
		s.logger.Warn("Idempotency key raced with a concurrent request", zap.String("key", key), zap.String("document_id", id.String()))
	}
}
