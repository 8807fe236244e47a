package dto

import (
	"net/http"

	"github.com/kwanza/fiscal/internal/domain/shared"
)

// Codes produced by the HTTP layer itself. Everything else comes from the
// domain taxonomy in the shared package.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:         http.StatusBadRequest,
	shared.CodeNotFound:           http.StatusNotFound,
	shared.CodeInvalidState:       http.StatusUnprocessableEntity,
	shared.CodeCertification:      http.StatusInternalServerError,
	shared.CodePaymentApplication: http.StatusInternalServerError,
	shared.CodeExport:             http.StatusInternalServerError,
	shared.CodeStorageUnavailable: http.StatusServiceUnavailable,
	shared.CodeUnauthorized:       http.StatusUnauthorized,
	shared.CodeTimeout:            http.StatusGatewayTimeout,
	shared.CodeConcurrency:        http.StatusConflict,
	shared.CodeInternal:           http.StatusInternalServerError,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRouteNotFound:   http.StatusNotFound,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusForError returns the status and code for err. A certification
// failure caused by unavailable storage is reported as 503 so clients
// know the request can be retried later.
func StatusForError(err error) (int, string) {
	code := shared.CodeOf(err)
	if code == "" {
		return http.StatusInternalServerError, shared.CodeInternal
	}
	if code == shared.CodeCertification && shared.HasCode(err, shared.CodeStorageUnavailable) {
		return http.StatusServiceUnavailable, code
	}
	return GetHTTPStatus(code), code
}
