package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/kwanza/fiscal/internal/domain/shared"
	"gorm.io/gorm"
)

// mapError converts GORM and driver errors into domain errors. Domain
// errors and context expiry are returned untouched.
func mapError(err error, resource string) error {
	if err == nil || shared.CodeOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewNotFoundError(resource)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.WrapDomainError(shared.CodeConcurrency, resource+" already exists", err)
	case isConnectionError(err):
		return shared.WrapDomainError(shared.CodeStorageUnavailable, "database unavailable", err)
	}
	return err
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
