package service

import (
	"context"

	"github.com/fossodjateng-gif/afrofood-app/internal/clients"
	"github.com/fossodjateng-gif/afrofood-app/internal/models"
)

// OrderStore is the narrow persistence surface the services need. The
// conditional-update methods carry the idempotence rules (set-if-null paid_at,
// advance-only-from-PENDING_PAYMENT) so overlapping writes converge instead of
// corrupting state.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, id string, status models.OrderStatus) ([]*models.Order, error)
	LatestIDWithPrefix(ctx context.Context, prefix string) (string, error)
	SetStatus(ctx context.Context, id string, status models.OrderStatus) error
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error)
	AttachPaymentIntent(ctx context.Context, id, provider, paymentIntentID string, amountCents int64, currency string) error
	MarkCardPaymentConfirmed(ctx context.Context, id, provider, paymentIntentID string) error
	ReconcileWebhookPayment(ctx context.Context, id, provider, paymentIntentID string) error
}

// EventPublisher receives every lifecycle event. Publishing is best-effort:
// events are re-fetch hints for viewers, never the source of truth, so a
// failed delivery is not an error the caller sees.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent)
}

// PaymentProvider is the card-payment provider surface used by the
// reconciliation adapter.
type PaymentProvider interface {
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*clients.PaymentIntent, error)
	CreatePaymentIntent(ctx context.Context, params clients.PaymentIntentParams) (*clients.PaymentIntent, error)
	CreateConnectionToken(ctx context.Context) (string, error)
}
