package events

import (
	"context"

	"github.com/fossodjateng-gif/afrofood-app/internal/models"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
)

// OutboxStore persists events for the Kafka export.
type OutboxStore interface {
	Create(ctx context.Context, msg *models.OutboxMessage) error
}

// Dispatcher hands each lifecycle event to the live hub and, when the export
// is enabled, to the outbox table. Both legs are best-effort: the orders
// table stays the source of truth.
type Dispatcher struct {
	hub    *Hub
	outbox OutboxStore
	logger logger.Logger
}

// NewDispatcher creates a dispatcher. A nil outbox disables the export leg.
func NewDispatcher(hub *Hub, outbox OutboxStore, logger logger.Logger) *Dispatcher {
	return &Dispatcher{
		hub:    hub,
		outbox: outbox,
		logger: logger,
	}
}

// Publish fans one event out.
func (d *Dispatcher) Publish(ctx context.Context, event models.OrderEvent) {
	d.hub.Publish(event)

	if d.outbox == nil {
		return
	}

	msg, err := models.NewOutboxMessage(event)

	if err != nil {
		d.logger.Error("Failed to build outbox message", "error", err, "type", event.Type)
		return
	}

	if err := d.outbox.Create(ctx, msg); err != nil {
		d.logger.Error("Failed to enqueue outbox message",
			"error", err,
			"type", event.Type,
			"orderID", event.OrderID)
	}
}
