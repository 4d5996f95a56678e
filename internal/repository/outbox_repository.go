package repository

import (
	"context"
	"fmt"

	"github.com/fossodjateng-gif/afrofood-app/internal/database"
	"github.com/fossodjateng-gif/afrofood-app/internal/models"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
)

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *database.Database, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending outbox message.
func (r *OutboxRepository) Create(ctx context.Context, msg *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (aggregate_type, aggregate_id, event_type, payload, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.DB.QueryRowxContext(
		ctx,
		query,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.CreatedAt,
		msg.Status,
	).Scan(&msg.ID)

	if err != nil {
		r.logger.Error("Failed to create outbox message", "error", err, "aggregateID", msg.AggregateID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetPendingMessages fetches the oldest pending messages up to limit.
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at,
			processed_at, processing_attempts, last_error, status
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	var messages []*models.OutboxMessage
	err := r.db.DB.SelectContext(ctx, &messages, query, models.OutboxStatusPending, limit)

	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// MarkAsProcessing claims a message and bumps its attempt counter.
func (r *OutboxRepository) MarkAsProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1
		WHERE id = $2
	`

	if _, err := r.db.DB.ExecContext(ctx, query, models.OutboxStatusProcessing, id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// MarkAsCompleted records a successful export.
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processed_at = NOW(), last_error = NULL
		WHERE id = $2
	`

	if _, err := r.db.DB.ExecContext(ctx, query, models.OutboxStatusCompleted, id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// MarkAsPending returns a claimed message to the queue for a later retry.
func (r *OutboxRepository) MarkAsPending(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	if _, err := r.db.DB.ExecContext(ctx, query, models.OutboxStatusPending, lastError, id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// MarkAsFailed parks a message permanently with its final error.
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processed_at = NOW(), last_error = $2
		WHERE id = $3
	`

	if _, err := r.db.DB.ExecContext(ctx, query, models.OutboxStatusFailed, lastError, id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}
