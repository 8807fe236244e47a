package fiscal

import (
	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
)

// Principal is the authenticated caller every operation acts on behalf of
type Principal struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// Validate rejects anonymous principals
func (p Principal) Validate() error {
	if p.TenantID == uuid.Nil || p.UserID == uuid.Nil {
		return shared.NewDomainError(shared.CodeUnauthorized, "an authenticated tenant and user are required")
	}
	return nil
}
