// Package event delivers committed fiscal domain events to in-process
// subscribers such as the audit log.
package event

import (
	"context"

	"github.com/kwanza/fiscal/internal/domain/shared"
)

// Handler reacts to published domain events
type Handler interface {
	Handle(ctx context.Context, event shared.DomainEvent) error
	// EventTypes lists the subscribed types; none means every event
	EventTypes() []string
}
