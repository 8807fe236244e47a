package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every layer. HTTP status mapping lives in the dto package.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidState       = "INVALID_STATE"
	CodeCertification      = "CERTIFICATION_ERROR"
	CodePaymentApplication = "PAYMENT_APPLICATION_ERROR"
	CodeExport             = "EXPORT_ERROR"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTimeout            = "TIMEOUT"
	CodeConcurrency        = "CONCURRENCY_CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches any cause-less DomainError with the same code, so
// errors.Is(err, ErrNotFound) holds for every NOT_FOUND error.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.cause == nil && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error carrying an underlying cause
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrency, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrStorageUnavailable  = NewDomainError(CodeStorageUnavailable, "Storage not configured or unavailable")
	ErrTimeout             = NewDomainError(CodeTimeout, "Operation timed out")
)

// NewValidationError creates a VALIDATION_ERROR
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a NOT_FOUND error for the named resource
func NewNotFoundError(resource string) *DomainError {
	return NewDomainError(CodeNotFound, resource+" not found")
}

// NewInvalidStateError creates an INVALID_STATE error
func NewInvalidStateError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the outermost DomainError in err's chain, or "" if none
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether any DomainError in err's chain carries code
func HasCode(err error, code string) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}
