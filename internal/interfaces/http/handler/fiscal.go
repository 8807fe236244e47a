package handler

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
)

// QRCodeSize is the edge length in pixels of rendered document QR codes
const QRCodeSize = 256

// FiscalService is the application surface the handler drives.
// Implemented by fiscalapp.FiscalService.
type FiscalService interface {
	CreateProforma(ctx context.Context, p fiscalapp.Principal, req fiscalapp.CreateProformaRequest) (*fiscalapp.DocumentResponse, error)
	SendProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error)
	AcceptProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error)
	RejectProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID, reason string) (*fiscalapp.DocumentResponse, error)
	ExpireProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error)
	ConvertProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID, req fiscalapp.ConvertProformaRequest) (*fiscalapp.DocumentResponse, error)
	DeleteDraftProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) error
	CreateInvoice(ctx context.Context, p fiscalapp.Principal, req fiscalapp.CreateInvoiceRequest) (*fiscalapp.DocumentResponse, error)
	CancelInvoice(ctx context.Context, p fiscalapp.Principal, id uuid.UUID, reason string) (*fiscalapp.DocumentResponse, error)
	MarkInvoiceOverdue(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error)
	MarkOverdueInvoices(ctx context.Context, p fiscalapp.Principal, asOf time.Time) (*fiscalapp.OverdueSweepResult, error)
	CreateCreditNote(ctx context.Context, p fiscalapp.Principal, req fiscalapp.CreateCreditNoteRequest) (*fiscalapp.DocumentResponse, error)
	CreatePaymentReceipt(ctx context.Context, p fiscalapp.Principal, req fiscalapp.CreatePaymentReceiptRequest) (*fiscalapp.DocumentResponse, error)
	GetDocument(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error)
	ListDocuments(ctx context.Context, p fiscalapp.Principal, filter fiscalapp.ListDocumentsFilter) ([]fiscalapp.DocumentResponse, int64, error)
}

// FiscalHandler handles the fiscal document lifecycle endpoints
type FiscalHandler struct {
	BaseHandler
	service FiscalService
}

// NewFiscalHandler creates a new FiscalHandler
func NewFiscalHandler(service FiscalService) *FiscalHandler {
	return &FiscalHandler{service: service}
}

// ListDocumentsQuery is the query string of GET /documents
type ListDocumentsQuery struct {
	Type      string `form:"type"`
	Status    string `form:"status"`
	CompanyID string `form:"company_id"`
	From      string `form:"from"`
	To        string `form:"to"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (q ListDocumentsQuery) toFilter() (fiscalapp.ListDocumentsFilter, error) {
	filter := fiscalapp.ListDocumentsFilter{
		Type:     q.Type,
		Status:   q.Status,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	if q.Type != "" && !fiscal.DocumentType(q.Type).IsValid() {
		return filter, shared.NewValidationError("type must be one of PF, FT, NC, RG")
	}
	if q.CompanyID != "" {
		id, err := uuid.Parse(q.CompanyID)
		if err != nil {
			return filter, shared.NewValidationError("company_id must be a UUID")
		}
		filter.CompanyID = &id
	}
	var err error
	if filter.From, err = parseQueryDate("from", q.From); err != nil {
		return filter, err
	}
	if filter.To, err = parseQueryDate("to", q.To); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseQueryDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, shared.NewValidationError("%s must be a date in YYYY-MM-DD format", name)
	}
	return &t, nil
}

// OverdueSweepRequest selects the reference date of an overdue sweep
type OverdueSweepRequest struct {
	AsOf *time.Time `json:"as_of"`
}

// CreateProforma godoc
// @ID           createProforma
// @Summary      Issue a proforma
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client key for safe retries"
// @Param        request body fiscalapp.CreateProformaRequest true "Proforma"
// @Success      201 {object} APIResponse[fiscalapp.DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/proformas [post]
func (h *FiscalHandler) CreateProforma(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req fiscalapp.CreateProformaRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	doc, err := h.service.CreateProforma(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// SendProforma marks a draft proforma as sent to the customer
func (h *FiscalHandler) SendProforma(c *gin.Context) {
	h.transition(c, h.service.SendProforma)
}

// AcceptProforma records the customer's acceptance
func (h *FiscalHandler) AcceptProforma(c *gin.Context) {
	h.transition(c, h.service.AcceptProforma)
}

// ExpireProforma expires a proforma past its validity
func (h *FiscalHandler) ExpireProforma(c *gin.Context) {
	h.transition(c, h.service.ExpireProforma)
}

// RejectProforma records the customer's rejection with an optional reason
func (h *FiscalHandler) RejectProforma(c *gin.Context) {
	h.transitionWithReason(c, h.service.RejectProforma)
}

// ConvertProforma godoc
// @ID           convertProforma
// @Summary      Convert an accepted proforma into an invoice
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        id path string true "Proforma ID"
// @Param        request body fiscalapp.ConvertProformaRequest false "Invoice dates"
// @Success      201 {object} APIResponse[fiscalapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/proformas/{id}/convert [post]
func (h *FiscalHandler) ConvertProforma(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req fiscalapp.ConvertProformaRequest
	if !h.bindJSON(c, &req, true) {
		return
	}
	req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	doc, err := h.service.ConvertProforma(c.Request.Context(), p, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// DeleteProforma removes a proforma that is still a draft
func (h *FiscalHandler) DeleteProforma(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteDraftProforma(c.Request.Context(), p, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CreateInvoice godoc
// @ID           createInvoice
// @Summary      Issue and certify an invoice
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client key for safe retries"
// @Param        request body fiscalapp.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} APIResponse[fiscalapp.DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/invoices [post]
func (h *FiscalHandler) CreateInvoice(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req fiscalapp.CreateInvoiceRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	doc, err := h.service.CreateInvoice(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// CancelInvoice cancels an unpaid invoice
func (h *FiscalHandler) CancelInvoice(c *gin.Context) {
	h.transitionWithReason(c, h.service.CancelInvoice)
}

// MarkInvoiceOverdue flags one invoice whose due date has passed
func (h *FiscalHandler) MarkInvoiceOverdue(c *gin.Context) {
	h.transition(c, h.service.MarkInvoiceOverdue)
}

// SweepOverdueInvoices flags every outstanding invoice due before as_of
// (today when omitted).
func (h *FiscalHandler) SweepOverdueInvoices(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req OverdueSweepRequest
	if !h.bindJSON(c, &req, true) {
		return
	}
	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	result, err := h.service.MarkOverdueInvoices(c.Request.Context(), p, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// CreateCreditNote godoc
// @ID           createCreditNote
// @Summary      Issue a credit note against a certified invoice
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client key for safe retries"
// @Param        request body fiscalapp.CreateCreditNoteRequest true "Credit note"
// @Success      201 {object} APIResponse[fiscalapp.DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/credit-notes [post]
func (h *FiscalHandler) CreateCreditNote(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req fiscalapp.CreateCreditNoteRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	doc, err := h.service.CreateCreditNote(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// CreatePaymentReceipt godoc
// @ID           createPaymentReceipt
// @Summary      Issue a payment receipt settling one or more invoices
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client key for safe retries"
// @Param        request body fiscalapp.CreatePaymentReceiptRequest true "Payment receipt"
// @Success      201 {object} APIResponse[fiscalapp.DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/payment-receipts [post]
func (h *FiscalHandler) CreatePaymentReceipt(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req fiscalapp.CreatePaymentReceiptRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	doc, err := h.service.CreatePaymentReceipt(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// GetDocument returns one document of the caller's tenant
func (h *FiscalHandler) GetDocument(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.service.GetDocument(c.Request.Context(), p, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// ListDocuments godoc
// @ID           listDocuments
// @Summary      List fiscal documents
// @Tags         fiscal
// @Produce      json
// @Param        type      query string false "PF, FT, NC or RG"
// @Param        status    query string false "Document status"
// @Param        from      query string false "Issue date lower bound (YYYY-MM-DD)"
// @Param        to        query string false "Issue date upper bound (YYYY-MM-DD)"
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]fiscalapp.DocumentResponse]
// @Security     BearerAuth
// @Router       /fiscal/documents [get]
func (h *FiscalHandler) ListDocuments(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var query ListDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.Error(c, http.StatusBadRequest, shared.CodeValidation, "Invalid query parameters: "+err.Error())
		return
	}
	filter, err := query.toFilter()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	docs, total, err := h.service.ListDocuments(c.Request.Context(), p, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, docs, total, filter.Page, filter.PageSize)
}

// GetDocumentQRCode renders the QR payload of a certified document as PNG
func (h *FiscalHandler) GetDocumentQRCode(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.service.GetDocument(c.Request.Context(), p, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if doc.QRCodeData == "" {
		h.Error(c, http.StatusUnprocessableEntity, shared.CodeInvalidState, "Document "+doc.DocumentNumber+" is not certified")
		return
	}

	img, err := renderQRCode(doc.QRCodeData, QRCodeSize)
	if err != nil {
		h.HandleError(c, shared.WrapDomainError(shared.CodeInternal, "failed to render QR code", err))
		return
	}
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, "image/png", img)
}

func renderQRCode(payload string, size int) ([]byte, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type transitionFunc func(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error)

type reasonTransitionFunc func(ctx context.Context, p fiscalapp.Principal, id uuid.UUID, reason string) (*fiscalapp.DocumentResponse, error)

func (h *FiscalHandler) transition(c *gin.Context, fn transitionFunc) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := fn(c.Request.Context(), p, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

func (h *FiscalHandler) transitionWithReason(c *gin.Context, fn reasonTransitionFunc) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req fiscalapp.ReasonRequest
	if !h.bindJSON(c, &req, true) {
		return
	}
	doc, err := fn(c.Request.Context(), p, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// RegisterRoutes mounts the document routes on an authenticated group
func (h *FiscalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	proformas := rg.Group("/proformas")
	proformas.POST("", h.CreateProforma)
	proformas.POST("/:id/send", h.SendProforma)
	proformas.POST("/:id/accept", h.AcceptProforma)
	proformas.POST("/:id/reject", h.RejectProforma)
	proformas.POST("/:id/expire", h.ExpireProforma)
	proformas.POST("/:id/convert", h.ConvertProforma)
	proformas.DELETE("/:id", h.DeleteProforma)

	invoices := rg.Group("/invoices")
	invoices.POST("", h.CreateInvoice)
	invoices.POST("/overdue-sweep", h.SweepOverdueInvoices)
	invoices.POST("/:id/cancel", h.CancelInvoice)
	invoices.POST("/:id/overdue", h.MarkInvoiceOverdue)

	rg.POST("/credit-notes", h.CreateCreditNote)
	rg.POST("/payment-receipts", h.CreatePaymentReceipt)

	documents := rg.Group("/documents")
	documents.GET("", h.ListDocuments)
	documents.GET("/:id", h.GetDocument)
	documents.GET("/:id/qr.png", h.GetDocumentQRCode)
}

var _ FiscalService = (*fiscalapp.FiscalService)(nil)
