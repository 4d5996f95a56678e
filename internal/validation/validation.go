package validation

import (
	"encoding/json"
	"errors"
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/fossodjateng-gif/afrofood-app/internal/models"
)

// OrderItemRequest is one cart line as submitted by a client. Quantity and
// price are not constrained here: the pricing calculator skips nonpositive
// quantities and the fallback table covers missing prices.
type OrderItemRequest struct {
	ID    string   `json:"id" validate:"omitempty,max=100"`
	Name  string   `json:"name" validate:"required,max=200"`
	Qty   int      `json:"qty"`
	Price *float64 `json:"price" validate:"omitempty,gte=0"`
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	CustomerName string             `json:"customerName" validate:"omitempty,max=80"`
	Payment      string             `json:"payment" validate:"required,oneof=cash card"`
	Items        []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ToItems converts the request lines into the domain representation.
func (r *CreateOrderRequest) ToItems() []models.OrderItem {
	items := make([]models.OrderItem, 0, len(r.Items))

	for _, item := range r.Items {
		items = append(items, models.OrderItem{
			ID:    item.ID,
			Name:  item.Name,
			Qty:   item.Qty,
			Price: item.Price,
		})
	}

	return items
}

// New returns a configured validator.
func New() *validatorv10.Validate {
	return validatorv10.New()
}

// DecodeAndValidate decodes the request body into out and validates it. The
// caller turns the returned error into a message with ErrorMessage.
func DecodeAndValidate(r *http.Request, out interface{}, v *validatorv10.Validate) error {
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(out); err != nil {
		return err
	}

	return v.Struct(out)
}

// ErrorMessage maps a decode/validation failure to the stable messages the
// clients display.
func ErrorMessage(err error) string {
	var validationErrs validatorv10.ValidationErrors

	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			switch fieldErr.Field() {
			case "Payment":
				return "Invalid payment"
			case "Items":
				return "Missing items"
			}
		}

		return "Invalid request"
	}

	return "Invalid request payload"
}
