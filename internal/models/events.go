package models

// Order event types pushed to live viewers. They are re-fetch hints: the
// orders table stays the only source of truth.
const (
	EventOrderCreated       = "ORDER_CREATED"
	EventPaymentValidated   = "PAYMENT_VALIDATED"
	EventOrderReady         = "ORDER_READY"
	EventOrderDone          = "ORDER_DONE"
	EventOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

// OrderEvent is the wire payload for a single lifecycle notification.
type OrderEvent struct {
	Type           string `json:"type"`
	OrderID        string `json:"orderId"`
	At             int64  `json:"at"` // unix milliseconds
	Status         string `json:"status,omitempty"`
	PreviousStatus string `json:"previousStatus,omitempty"`
}

// NewOrderEvent stamps an event with the current time.
func NewOrderEvent(eventType, orderID string, status, previousStatus OrderStatus) OrderEvent {
	return OrderEvent{
		Type:           eventType,
		OrderID:        orderID,
		At:             GetCurrentTime().UnixMilli(),
		Status:         string(status),
		PreviousStatus: string(previousStatus),
	}
}
