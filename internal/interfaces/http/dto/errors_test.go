package dto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{shared.CodeValidation, http.StatusBadRequest},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeInvalidState, http.StatusUnprocessableEntity},
		{shared.CodeCertification, http.StatusInternalServerError},
		{shared.CodePaymentApplication, http.StatusInternalServerError},
		{shared.CodeExport, http.StatusInternalServerError},
		{shared.CodeStorageUnavailable, http.StatusServiceUnavailable},
		{shared.CodeUnauthorized, http.StatusUnauthorized},
		{shared.CodeTimeout, http.StatusGatewayTimeout},
		{shared.CodeConcurrency, http.StatusConflict},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestStatusForError(t *testing.T) {
	storageDown := shared.WrapDomainError(shared.CodeStorageUnavailable, "sequence store unreachable", errors.New("dial tcp: refused"))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"plain error", errors.New("boom"), http.StatusInternalServerError, shared.CodeInternal},
		{"validation", shared.NewValidationError("at least one line item is required"), http.StatusBadRequest, shared.CodeValidation},
		{"wrapped not found", fmt.Errorf("load: %w", shared.NewNotFoundError("invoice")), http.StatusNotFound, shared.CodeNotFound},
		{"certification fault", shared.WrapDomainError(shared.CodeCertification, "signing failed", errors.New("bad key")), http.StatusInternalServerError, shared.CodeCertification},
		{"certification on storage outage", shared.WrapDomainError(shared.CodeCertification, "sequence allocation failed", storageDown), http.StatusServiceUnavailable, shared.CodeCertification},
		{"timeout", shared.WrapDomainError(shared.CodeTimeout, "storage did not respond in time", context.DeadlineExceeded), http.StatusGatewayTimeout, shared.CodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := StatusForError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponse(shared.CodeNotFound, "invoice not found", "req-test-123")

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"NOT_FOUND","message":"invoice not found","request_id":"req-test-123"}}`, string(data))
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "items", Message: "This field is required"},
		{Field: "currency", Message: "Must be exactly 3 characters"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	assert.Equal(t, details, resp.Error.Details)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total     int64
		pageSize  int
		wantPages int
	}{
		{0, 20, 0},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta([]string{}, tt.total, 1, tt.pageSize)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, tt.wantPages, resp.Meta.TotalPages, "total=%d size=%d", tt.total, tt.pageSize)
	}
}
