package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fossodjateng-gif/afrofood-app/internal/database"
	"github.com/fossodjateng-gif/afrofood-app/internal/models"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
	ErrDatabase  = errors.New("database error")
)

const orderColumns = `id, created_at, customer_name, payment, payment_provider,
	stripe_payment_intent_id, amount_cents, currency, paid_at, payment_error,
	UPPER(status) AS status, items`

// OrderRepository handles database operations for orders
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new order. A second insert with the same id fails with
// ErrDuplicate; the id allocator relies on this as its race backstop.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, created_at, customer_name, payment, payment_provider,
			stripe_payment_intent_id, amount_cents, currency, paid_at, payment_error, status, items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		order.ID,
		order.CreatedAt,
		order.CustomerName,
		order.Payment,
		order.PaymentProvider,
		order.PaymentIntentID,
		order.AmountCents,
		order.Currency,
		order.PaidAt,
		order.PaymentError,
		order.Status,
		order.Items,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}

		r.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &order, nil
}

// List retrieves orders newest first, optionally filtered by id and/or
// status. Status filtering is case-insensitive.
func (r *OrderRepository) List(ctx context.Context, id string, status models.OrderStatus) ([]*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders`, orderColumns)

	var args []interface{}
	where := ""

	if id != "" {
		args = append(args, id)
		where = fmt.Sprintf(" WHERE id = $%d", len(args))
	}

	if status != "" {
		args = append(args, string(status))
		if where == "" {
			where = fmt.Sprintf(" WHERE UPPER(status) = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND UPPER(status) = $%d", len(args))
		}
	}

	query += where + " ORDER BY created_at DESC"

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, args...)

	if err != nil {
		r.logger.Error("Failed to list orders", "error", err, "id", id, "status", status)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return orders, nil
}

// LatestIDWithPrefix returns the highest order id sharing the given day
// prefix, or "" when no order exists for that day yet.
func (r *OrderRepository) LatestIDWithPrefix(ctx context.Context, prefix string) (string, error) {
	query := `
		SELECT id
		FROM orders
		WHERE id LIKE $1
		ORDER BY id DESC
		LIMIT 1
	`

	var id string
	err := r.db.DB.GetContext(ctx, &id, query, prefix+"%")

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		r.logger.Error("Failed to query latest order id", "error", err, "prefix", prefix)
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return id, nil
}

// SetStatus overwrites the status column of a single order.
func (r *OrderRepository) SetStatus(ctx context.Context, id string, status models.OrderStatus) error {
	query := `UPDATE orders SET status = $1 WHERE id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, status, id)

	if err != nil {
		r.logger.Error("Failed to update order status", "error", err, "orderID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// FindByPaymentIntentID resolves an order by its stored provider reference.
func (r *OrderRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE stripe_payment_intent_id = $1 LIMIT 1`, orderColumns)

	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, paymentIntentID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to find order by payment intent", "error", err, "paymentIntentID", paymentIntentID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &order, nil
}

// AttachPaymentIntent records the provider reference and the charge amount
// when a terminal payment intent is created for an order.
func (r *OrderRepository) AttachPaymentIntent(ctx context.Context, id, provider, paymentIntentID string, amountCents int64, currency string) error {
	query := `
		UPDATE orders
		SET payment_provider = $1,
			stripe_payment_intent_id = $2,
			amount_cents = $3,
			currency = $4,
			payment_error = NULL
		WHERE id = $5
	`

	result, err := r.db.DB.ExecContext(ctx, query, provider, paymentIntentID, amountCents, currency, id)

	if err != nil {
		r.logger.Error("Failed to attach payment intent", "error", err, "orderID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkCardPaymentConfirmed applies the client-confirm payment updates:
// provider and reference are written, paid_at is set only if still null, any
// previous payment error is cleared. Status is left alone; the lifecycle
// engine owns that edge.
func (r *OrderRepository) MarkCardPaymentConfirmed(ctx context.Context, id, provider, paymentIntentID string) error {
	query := `
		UPDATE orders
		SET payment_provider = $1,
			stripe_payment_intent_id = $2,
			paid_at = COALESCE(paid_at, NOW()),
			payment_error = NULL
		WHERE id = $3
	`

	result, err := r.db.DB.ExecContext(ctx, query, provider, paymentIntentID, id)

	if err != nil {
		r.logger.Error("Failed to confirm card payment", "error", err, "orderID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ReconcileWebhookPayment applies the webhook payment updates in one
// conditional statement: keep an existing reference, set paid_at only once,
// clear the error, and advance the status only when it is still
// PENDING_PAYMENT. A duplicate delivery after the order moved on is a no-op
// on status.
func (r *OrderRepository) ReconcileWebhookPayment(ctx context.Context, id, provider, paymentIntentID string) error {
	query := `
		UPDATE orders
		SET payment_provider = $1,
			stripe_payment_intent_id = COALESCE(stripe_payment_intent_id, $2),
			paid_at = COALESCE(paid_at, NOW()),
			payment_error = NULL,
			status = CASE WHEN UPPER(status) = 'PENDING_PAYMENT' THEN 'NEW' ELSE status END
		WHERE id = $3
	`

	result, err := r.db.DB.ExecContext(ctx, query, provider, paymentIntentID, id)

	if err != nil {
		r.logger.Error("Failed to reconcile webhook payment", "error", err, "orderID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
