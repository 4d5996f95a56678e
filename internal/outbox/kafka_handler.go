package outbox

import (
	"context"
	"fmt"

	"github.com/fossodjateng-gif/afrofood-app/internal/models"
	"github.com/fossodjateng-gif/afrofood-app/pkg/kafka"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
	"github.com/fossodjateng-gif/afrofood-app/pkg/retry"
)

// KafkaHandler publishes outbox messages to the orders topic.
type KafkaHandler struct {
	producer    *kafka.Producer
	topic       string
	logger      logger.Logger
	retryConfig *retry.RetryConfig
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(producer *kafka.Producer, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		logger:   logger,
		retryConfig: &retry.RetryConfig{
			MaxAttempts:     3,
			BackoffStrategy: retry.NewDefaultExponentialBackoff(),
			Logger:          logger,
		},
	}
}

// HandleMessage publishes one message, keyed by order id so all events of an
// order land on the same partition.
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	key := message.AggregateID

	err := retry.Retry(ctx, func() error {
		return h.producer.SendMessage(ctx, h.topic, key, message.Payload)
	}, h.retryConfig)

	if err != nil {
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	h.logger.Debug("Published outbox message to Kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)

	return nil
}
