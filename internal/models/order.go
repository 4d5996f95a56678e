package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrderStatus represents where an order is in the fulfillment flow.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusNew            OrderStatus = "NEW"
	StatusInProgress     OrderStatus = "IN_PROGRESS"
	StatusReady          OrderStatus = "READY"
	StatusDone           OrderStatus = "DONE"
)

// AllStatuses lists the recognized statuses in happy-path order.
var AllStatuses = []OrderStatus{
	StatusPendingPayment,
	StatusNew,
	StatusInProgress,
	StatusReady,
	StatusDone,
}

// ParseStatus normalizes case-insensitive input to a known status.
func ParseStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))

	for _, known := range AllStatuses {
		if status == known {
			return status, true
		}
	}

	return "", false
}

// PaymentMethod is how the customer pays at the stall.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// ParsePaymentMethod validates a payment method string.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentCash:
		return PaymentCash, true
	case PaymentCard:
		return PaymentCard, true
	default:
		return "", false
	}
}

// OrderItem is one line of the ticket. Price is per unit in EUR and optional:
// when absent the pricing fallback table applies.
type OrderItem struct {
	ID    string   `json:"id,omitempty"`
	Name  string   `json:"name"`
	Qty   int      `json:"qty"`
	Price *float64 `json:"price,omitempty"`
}

// OrderItems is stored as a JSONB column.
type OrderItems []OrderItem

// Value implements driver.Valuer for the items column.
func (items OrderItems) Value() (driver.Value, error) {
	return json.Marshal(items)
}

// Scan implements sql.Scanner for the items column.
func (items *OrderItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, items)
	case string:
		return json.Unmarshal([]byte(v), items)
	case nil:
		*items = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into OrderItems", src)
	}
}

// Order is the durable source of truth for one ticket. Items and amount are
// fixed at creation time; status moves only through the lifecycle engine and
// the payment fields only through the reconciliation rules.
type Order struct {
	ID              string        `db:"id" json:"id"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	CustomerName    *string       `db:"customer_name" json:"customer_name,omitempty"`
	Payment         PaymentMethod `db:"payment" json:"payment"`
	PaymentProvider *string       `db:"payment_provider" json:"payment_provider,omitempty"`
	PaymentIntentID *string       `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	AmountCents     int64         `db:"amount_cents" json:"amount_cents"`
	Currency        string        `db:"currency" json:"currency"`
	PaidAt          *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	PaymentError    *string       `db:"payment_error" json:"payment_error,omitempty"`
	Status          OrderStatus   `db:"status" json:"status"`
	Items           OrderItems    `db:"items" json:"items"`
}

// NewOrder builds an order in its initial state. The id must already be
// allocated by the day-scoped sequence.
func NewOrder(id string, customerName string, payment PaymentMethod, items []OrderItem, amountCents int64, currency string) *Order {
	order := &Order{
		ID:          id,
		CreatedAt:   GetCurrentTime(),
		Payment:     payment,
		AmountCents: amountCents,
		Currency:    currency,
		Status:      StatusPendingPayment,
		Items:       items,
	}

	if name := strings.TrimSpace(customerName); name != "" {
		order.CustomerName = &name
	}

	return order
}
