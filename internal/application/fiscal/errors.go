package fiscal

import (
	"context"
	"errors"

	"github.com/kwanza/fiscal/internal/domain/shared"
)

// translateError maps infrastructure failures onto the error taxonomy.
// Domain errors pass through unchanged; deadline expiry becomes a retryable
// TIMEOUT and anything unclassified becomes INTERNAL_ERROR.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if shared.HasCode(err, shared.CodeTimeout) {
			return err
		}
		return shared.WrapDomainError(shared.CodeTimeout, "storage did not respond in time, the request may be retried", err)
	}
	if shared.CodeOf(err) != "" {
		return err
	}
	return shared.WrapDomainError(shared.CodeInternal, "unexpected error", err)
}
