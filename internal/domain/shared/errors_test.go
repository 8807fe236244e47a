package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Wrapping(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	storage := WrapDomainError(CodeStorageUnavailable, "database unreachable", cause)
	cert := WrapDomainError(CodeCertification, "failed to allocate document number", storage)

	assert.Equal(t, CodeCertification, CodeOf(cert))
	assert.True(t, HasCode(cert, CodeStorageUnavailable))
	assert.True(t, errors.Is(cert, cause))
	assert.Contains(t, cert.Error(), "connection refused")
	assert.False(t, HasCode(cert, CodeNotFound))
}

func TestDomainError_SentinelComparison(t *testing.T) {
	err := NewNotFoundError("invoice")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidState))

	wrapped := fmt.Errorf("load: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("boom")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestNewValidationError_Formats(t *testing.T) {
	err := NewValidationError("line %d: quantity must be positive", 2)
	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, "line 2: quantity must be positive", err.Message)
}
