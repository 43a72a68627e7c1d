// Package messaging holds event bus implementations that do not talk
// to an external broker.
package messaging

import (
	"context"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/events"
)

// NoopBus discards events. Used in local development and tests when no
// bus is configured; event publication is best-effort everywhere, so
// dropping is safe.
type NoopBus struct{}

// NewNoopBus creates a bus that discards everything
func NewNoopBus() ports.EventBus {
	return NoopBus{}
}

func (NoopBus) Publish(ctx context.Context, event events.DomainEvent) error {
	return nil
}

func (NoopBus) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	return nil
}
