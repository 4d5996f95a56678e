package errors

import (
	"errors"
	"net/http"
)

// Standard error types
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("business rule violation")
	ErrInternal         = errors.New("internal server error")
	ErrUpstream         = errors.New("upstream service error")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Machine-readable reason codes carried next to the human message. The
// payment flows key operational diagnosis off these.
const (
	ReasonAmountMismatch      = "amount_mismatch"
	ReasonNotCardPayment      = "payment_not_card"
	ReasonNotAwaitingPayment  = "not_awaiting_payment"
	ReasonPaymentNotSucceeded = "payment_not_succeeded"
	ReasonLinkedToOtherOrder  = "linked_to_another_order"
	ReasonMissingReference    = "missing_payment_intent_id"
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Reason     string
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithReason attaches a machine-readable reason code to the error.
func (e *AppError) WithReason(reason string) *AppError {
	e.Reason = reason
	return e
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
	}
}

// StatusCode resolves the HTTP status for any error, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	return http.StatusInternalServerError
}

// Is reports whether err matches the target, following wrapped errors.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound)
}

// NewInvalidInputError creates an invalid input error
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest)
}

// NewConflictError creates a business-rule violation error. These map to 400
// rather than 409: the request was well formed but the current order state
// rejects it.
func NewConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusBadRequest)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError)
}

// NewUpstreamError wraps a payment-provider failure.
func NewUpstreamError(message string) *AppError {
	return NewAppError(ErrUpstream, message, http.StatusBadGateway)
}

// NewSignatureError rejects a webhook whose signature failed verification.
func NewSignatureError(message string) *AppError {
	return NewAppError(ErrInvalidSignature, message, http.StatusBadRequest)
}
