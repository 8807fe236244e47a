package handler

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFiscalService implements FiscalService for testing
type MockFiscalService struct {
	mock.Mock
}

func (m *MockFiscalService) document(args mock.Arguments) (*fiscalapp.DocumentResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscalapp.DocumentResponse), args.Error(1)
}

func (m *MockFiscalService) CreateProforma(ctx context.Context, p fiscalapp.Principal, req fiscalapp.CreateProformaRequest) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, req))
}

func (m *MockFiscalService) SendProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, id))
}

func (m *MockFiscalService) AcceptProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, id))
}

func (m *MockFiscalService) RejectProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID, reason string) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, id, reason))
}

func (m *MockFiscalService) ExpireProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, id))
}

func (m *MockFiscalService) ConvertProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID, req fiscalapp.ConvertProformaRequest) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, id, req))
}

func (m *MockFiscalService) DeleteDraftProforma(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) error {
	return m.Called(ctx, p, id).Error(0)
}

func (m *MockFiscalService) CreateInvoice(ctx context.Context, p fiscalapp.Principal, req fiscalapp.CreateInvoiceRequest) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, req))
}

func (m *MockFiscalService) CancelInvoice(ctx context.Context, p fiscalapp.Principal, id uuid.UUID, reason string) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, id, reason))
}

func (m *MockFiscalService) MarkInvoiceOverdue(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, id))
}

func (m *MockFiscalService) MarkOverdueInvoices(ctx context.Context, p fiscalapp.Principal, asOf time.Time) (*fiscalapp.OverdueSweepResult, error) {
	args := m.Called(ctx, p, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscalapp.OverdueSweepResult), args.Error(1)
}

func (m *MockFiscalService) CreateCreditNote(ctx context.Context, p fiscalapp.Principal, req fiscalapp.CreateCreditNoteRequest) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, req))
}

func (m *MockFiscalService) CreatePaymentReceipt(ctx context.Context, p fiscalapp.Principal, req fiscalapp.CreatePaymentReceiptRequest) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, req))
}

func (m *MockFiscalService) GetDocument(ctx context.Context, p fiscalapp.Principal, id uuid.UUID) (*fiscalapp.DocumentResponse, error) {
	return m.document(m.Called(ctx, p, id))
}

func (m *MockFiscalService) ListDocuments(ctx context.Context, p fiscalapp.Principal, filter fiscalapp.ListDocumentsFilter) ([]fiscalapp.DocumentResponse, int64, error) {
	args := m.Called(ctx, p, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]fiscalapp.DocumentResponse), args.Get(1).(int64), args.Error(2)
}

// newFiscalRouter mounts the handler behind a fake authentication step
func newFiscalRouter(svc *MockFiscalService, p fiscalapp.Principal) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	api := router.Group("/api/v1/fiscal")
	api.Use(func(c *gin.Context) {
		setPrincipal(c, p)
		c.Next()
	})
	NewFiscalHandler(svc).RegisterRoutes(api)
	return router
}

func doRequest(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleInvoice() *fiscalapp.DocumentResponse {
	return &fiscalapp.DocumentResponse{
		ID:             uuid.New(),
		DocumentType:   "INVOICE",
		DocumentNumber: "FT 2026/00001",
		Status:         "ISSUED",
		ATCUD:          "AGT-FT-2026-00001",
		QRCodeData:     "A:5000000000*B:999999999*C:AO*D:FT*E:N*F:20260301*G:FT 2026/00001",
		Currency:       "AOA",
		TotalAmount:    decimal.RequireFromString("11400.00"),
	}
}

func TestFiscalHandler_CreateInvoice(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	company := uuid.New()

	svc.On("CreateInvoice", mock.Anything, p, mock.MatchedBy(func(req fiscalapp.CreateInvoiceRequest) bool {
		return req.CompanyID == company &&
			req.IdempotencyKey == "retry-42" &&
			len(req.Items) == 1 &&
			req.Items[0].UnitPrice.Equal(decimal.NewFromInt(10000))
	})).Return(sampleInvoice(), nil)

	body := `{"company_id":"` + company.String() + `","currency":"AOA","items":[{"description":"Consultoria","quantity":"1","unit_price":"10000","tax_rate":"14"}]}`
	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/invoices", body, map[string]string{IdempotencyKeyHeader: "retry-42"})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "FT 2026/00001", data["document_number"])
	svc.AssertExpectations(t)
}

func TestFiscalHandler_CreateInvoice_MalformedBody(t *testing.T) {
	svc := new(MockFiscalService)
	router := newFiscalRouter(svc, testPrincipal())

	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/invoices", `{"items":`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, shared.CodeValidation, decodeResponse(t, w).Error.Code)
	svc.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestFiscalHandler_CreateInvoice_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty items", shared.NewValidationError("a document needs at least one line"), http.StatusBadRequest, shared.CodeValidation},
		{"certification", shared.WrapDomainError(shared.CodeCertification, "failed to sign document", assert.AnError), http.StatusInternalServerError, shared.CodeCertification},
		{"storage down", shared.NewDomainError(shared.CodeStorageUnavailable, "database unavailable"), http.StatusServiceUnavailable, shared.CodeStorageUnavailable},
		{"timeout", shared.NewDomainError(shared.CodeTimeout, "storage did not answer in time"), http.StatusGatewayTimeout, shared.CodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockFiscalService)
			router := newFiscalRouter(svc, testPrincipal())
			svc.On("CreateInvoice", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			w := doRequest(router, http.MethodPost, "/api/v1/fiscal/invoices", `{"items":[]}`, nil)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestFiscalHandler_ProformaTransitions(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		path   string
		method string
	}{
		{"/send", "SendProforma"},
		{"/accept", "AcceptProforma"},
		{"/expire", "ExpireProforma"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			svc := new(MockFiscalService)
			p := testPrincipal()
			router := newFiscalRouter(svc, p)
			svc.On(tt.method, mock.Anything, p, id).Return(&fiscalapp.DocumentResponse{ID: id, Status: "SENT"}, nil)

			w := doRequest(router, http.MethodPost, "/api/v1/fiscal/proformas/"+id.String()+tt.path, "", nil)

			assert.Equal(t, http.StatusOK, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestFiscalHandler_RejectProforma(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	id := uuid.New()
	svc.On("RejectProforma", mock.Anything, p, id, "Preço acima do orçamento").
		Return(&fiscalapp.DocumentResponse{ID: id, Status: "REJECTED"}, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/proformas/"+id.String()+"/reject",
		`{"reason":"Preço acima do orçamento"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestFiscalHandler_RejectProforma_WithoutBody(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	id := uuid.New()
	svc.On("RejectProforma", mock.Anything, p, id, "").Return(&fiscalapp.DocumentResponse{ID: id}, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/proformas/"+id.String()+"/reject", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFiscalHandler_InvalidStateIs422(t *testing.T) {
	svc := new(MockFiscalService)
	router := newFiscalRouter(svc, testPrincipal())
	id := uuid.New()
	svc.On("AcceptProforma", mock.Anything, mock.Anything, id).
		Return(nil, shared.NewInvalidStateError("cannot accept proforma in status DRAFT"))

	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/proformas/"+id.String()+"/accept", "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, shared.CodeInvalidState, decodeResponse(t, w).Error.Code)
}

func TestFiscalHandler_ConvertProforma(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	id := uuid.New()
	svc.On("ConvertProforma", mock.Anything, p, id, mock.MatchedBy(func(req fiscalapp.ConvertProformaRequest) bool {
		return req.DueDate != nil && req.IdempotencyKey == "conv-1"
	})).Return(sampleInvoice(), nil)

	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/proformas/"+id.String()+"/convert",
		`{"due_date":"2026-04-30T00:00:00Z"}`, map[string]string{IdempotencyKeyHeader: "conv-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestFiscalHandler_DeleteProforma(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	id := uuid.New()
	missing := uuid.New()
	svc.On("DeleteDraftProforma", mock.Anything, p, id).Return(nil)
	svc.On("DeleteDraftProforma", mock.Anything, p, missing).Return(shared.NewNotFoundError("proforma"))

	w := doRequest(router, http.MethodDelete, "/api/v1/fiscal/proformas/"+id.String(), "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/fiscal/proformas/"+missing.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFiscalHandler_InvalidID(t *testing.T) {
	svc := new(MockFiscalService)
	router := newFiscalRouter(svc, testPrincipal())

	w := doRequest(router, http.MethodGet, "/api/v1/fiscal/documents/not-a-uuid", "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, shared.CodeValidation, decodeResponse(t, w).Error.Code)
}

func TestFiscalHandler_CancelInvoice(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	id := uuid.New()
	svc.On("CancelInvoice", mock.Anything, p, id, "Emitida em duplicado").
		Return(&fiscalapp.DocumentResponse{ID: id, Status: "CANCELLED"}, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/invoices/"+id.String()+"/cancel",
		`{"reason":"Emitida em duplicado"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestFiscalHandler_SweepOverdueInvoices(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	asOf := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.On("MarkOverdueInvoices", mock.Anything, p, asOf).Return(&fiscalapp.OverdueSweepResult{
		AsOf:            "2026-05-01",
		MarkedCount:     2,
		DocumentNumbers: []string{"FT 2026/00001", "FT 2026/00002"},
	}, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/invoices/overdue-sweep", `{"as_of":"2026-05-01T00:00:00Z"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.EqualValues(t, 2, data["marked_count"])
}

func TestFiscalHandler_MarkInvoiceOverdue(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	id := uuid.New()
	svc.On("MarkInvoiceOverdue", mock.Anything, p, id).Return(&fiscalapp.DocumentResponse{ID: id, Status: "OVERDUE"}, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/invoices/"+id.String()+"/overdue", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFiscalHandler_CreateCreditNote(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	original := uuid.New()
	svc.On("CreateCreditNote", mock.Anything, p, mock.MatchedBy(func(req fiscalapp.CreateCreditNoteRequest) bool {
		return req.OriginalInvoiceID == original && req.Reason == "Devolução"
	})).Return(&fiscalapp.DocumentResponse{DocumentType: "CREDIT_NOTE", DocumentNumber: "NC 2026/00001"}, nil)

	body := `{"original_invoice_id":"` + original.String() + `","reason":"Devolução","items":[{"description":"Consultoria","quantity":"1","unit_price":"5000","tax_rate":"14"}]}`
	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/credit-notes", body, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestFiscalHandler_CreatePaymentReceipt(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	inv1, inv2 := uuid.New(), uuid.New()
	svc.On("CreatePaymentReceipt", mock.Anything, p, mock.MatchedBy(func(req fiscalapp.CreatePaymentReceiptRequest) bool {
		return len(req.Invoices) == 2 && req.Invoices[1].InvoiceID == inv2 && req.IdempotencyKey == "rc-7"
	})).Return(&fiscalapp.DocumentResponse{DocumentType: "PAYMENT_RECEIPT"}, nil)

	body := `{"payment_method_id":"` + uuid.NewString() + `","invoices":[{"invoice_id":"` + inv1.String() + `","paid_amount":"100"},{"invoice_id":"` + inv2.String() + `","paid_amount":"50.5"}]}`
	w := doRequest(router, http.MethodPost, "/api/v1/fiscal/payment-receipts", body, map[string]string{IdempotencyKeyHeader: "rc-7"})

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestFiscalHandler_ListDocuments(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	svc.On("ListDocuments", mock.Anything, p, mock.MatchedBy(func(f fiscalapp.ListDocumentsFilter) bool {
		return f.Type == "FT" && f.Page == 2 && f.PageSize == 20 &&
			f.From != nil && f.From.Format(time.DateOnly) == "2026-01-01" && f.To == nil
	})).Return([]fiscalapp.DocumentResponse{*sampleInvoice()}, int64(21), nil)

	w := doRequest(router, http.MethodGet, "/api/v1/fiscal/documents?type=FT&page=2&from=2026-01-01", "", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(21), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
}

func TestFiscalHandler_ListDocuments_BadQuery(t *testing.T) {
	tests := []string{
		"?from=01-01-2026",
		"?company_id=acme",
		"?page_size=1000",
		"?type=INVOICE",
	}
	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			svc := new(MockFiscalService)
			router := newFiscalRouter(svc, testPrincipal())

			w := doRequest(router, http.MethodGet, "/api/v1/fiscal/documents"+query, "", nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestFiscalHandler_GetDocumentQRCode(t *testing.T) {
	svc := new(MockFiscalService)
	p := testPrincipal()
	router := newFiscalRouter(svc, p)
	doc := sampleInvoice()
	svc.On("GetDocument", mock.Anything, p, doc.ID).Return(doc, nil)

	w := doRequest(router, http.MethodGet, "/api/v1/fiscal/documents/"+doc.ID.String()+"/qr.png", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, QRCodeSize, img.Bounds().Dx())
}

func TestFiscalHandler_GetDocumentQRCode_Uncertified(t *testing.T) {
	svc := new(MockFiscalService)
	router := newFiscalRouter(svc, testPrincipal())
	doc := &fiscalapp.DocumentResponse{ID: uuid.New(), DocumentNumber: "PP 2026/00003"}
	svc.On("GetDocument", mock.Anything, mock.Anything, doc.ID).Return(doc, nil)

	w := doRequest(router, http.MethodGet, "/api/v1/fiscal/documents/"+doc.ID.String()+"/qr.png", "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestFiscalHandler_RequiresPrincipal(t *testing.T) {
	router := gin.New()
	NewFiscalHandler(new(MockFiscalService)).RegisterRoutes(router.Group("/api/v1/fiscal"))

	w := doRequest(router, http.MethodGet, "/api/v1/fiscal/documents", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, shared.CodeUnauthorized, decodeResponse(t, w).Error.Code)
}
