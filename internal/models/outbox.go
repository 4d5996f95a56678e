package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxMessage is a durable copy of a lifecycle event waiting to be exported
// to Kafka. Live viewers get the same event over the SSE hub; this table only
// feeds external consumers.
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxEnvelope wraps an order event with export metadata.
type OutboxEnvelope struct {
	EventType   string     `json:"event_type"`
	EventID     string     `json:"event_id"`
	AggregateID string     `json:"aggregate_id"`
	OccurredAt  time.Time  `json:"occurred_at"`
	Data        OrderEvent `json:"data"`
}

// NewOutboxMessage turns a lifecycle event into a pending outbox row.
func NewOutboxMessage(event OrderEvent) (*OutboxMessage, error) {
	envelope := OutboxEnvelope{
		EventType:   event.Type,
		EventID:     GenerateID("evt"),
		AggregateID: event.OrderID,
		OccurredAt:  GetCurrentTime(),
		Data:        event,
	}

	payload, err := json.Marshal(envelope)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: "order",
		AggregateID:   event.OrderID,
		EventType:     event.Type,
		Payload:       payload,
		CreatedAt:     GetCurrentTime(),
		Status:        OutboxStatusPending,
	}, nil
}
