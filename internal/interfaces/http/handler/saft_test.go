package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	saftapp "github.com/kwanza/fiscal/internal/application/saft"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSAFTExporter implements SAFTExporter for testing
type MockSAFTExporter struct {
	mock.Mock
}

func (m *MockSAFTExporter) Export(ctx context.Context, p fiscalapp.Principal, start, end time.Time) (*saftapp.Export, error) {
	args := m.Called(ctx, p, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*saftapp.Export), args.Error(1)
}

func newSAFTRouter(exporter *MockSAFTExporter, p fiscalapp.Principal) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), func(c *gin.Context) {
		setPrincipal(c, p)
		c.Next()
	})
	router.GET("/saft", NewSAFTHandler(exporter).Export)
	return router
}

func TestSAFTHandler_Export(t *testing.T) {
	exporter := new(MockSAFTExporter)
	p := testPrincipal()
	router := newSAFTRouter(exporter, p)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	content := []byte(`<?xml version="1.0" encoding="UTF-8"?><AuditFile/>`)
	exporter.On("Export", mock.Anything, p, start, end).Return(&saftapp.Export{
		FileName:      saftapp.FileName(start, end),
		Content:       content,
		DocumentCount: 12,
	}, nil)

	w := doRequest(router, http.MethodGet, "/saft?start_date=2026-01-01&end_date=2026-01-31", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="SAFT_AO_2026-01-01_2026-01-31.xml"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "12", w.Header().Get("X-Document-Count"))
	assert.Equal(t, content, w.Body.Bytes())
}

func TestSAFTHandler_Export_BadDates(t *testing.T) {
	tests := []string{
		"",
		"?start_date=2026-01-01",
		"?start_date=2026-13-01&end_date=2026-12-31",
		"?start_date=2026-01-01&end_date=31/01/2026",
	}
	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			exporter := new(MockSAFTExporter)
			router := newSAFTRouter(exporter, testPrincipal())

			w := doRequest(router, http.MethodGet, "/saft"+query, "", nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, shared.CodeValidation, decodeResponse(t, w).Error.Code)
			exporter.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSAFTHandler_Export_Failure(t *testing.T) {
	exporter := new(MockSAFTExporter)
	router := newSAFTRouter(exporter, testPrincipal())
	exporter.On("Export", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, shared.WrapDomainError(shared.CodeExport, "failed to read documents for the export period", assert.AnError))

	w := doRequest(router, http.MethodGet, "/saft?start_date=2026-01-01&end_date=2026-01-31", "", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, shared.CodeExport, decodeResponse(t, w).Error.Code)
}
