package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fossodjateng-gif/afrofood-app/internal/clients"
	"github.com/fossodjateng-gif/afrofood-app/internal/models"
	"github.com/fossodjateng-gif/afrofood-app/internal/pricing"
	"github.com/fossodjateng-gif/afrofood-app/internal/repository"
	apperrors "github.com/fossodjateng-gif/afrofood-app/pkg/errors"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
)

const providerName = "stripe"

// The only provider event type that carries a payment to reconcile.
const eventPaymentSucceeded = "payment_intent.succeeded"

// PaymentService bridges the card-payment provider's asynchronous
// notifications into the order lifecycle. Its two entry points (client
// confirm poll, provider webhook) converge on the same idempotent updates:
// paid_at is set at most once and the status only ever advances from
// PENDING_PAYMENT to NEW.
type PaymentService struct {
	store         OrderStore
	engine        *OrderService
	provider      PaymentProvider
	publisher     EventPublisher
	logger        logger.Logger
	webhookSecret string
	currency      string
}

// PaymentServiceConfig holds the provider-facing settings.
type PaymentServiceConfig struct {
	WebhookSecret string
	Currency      string
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	store OrderStore,
	engine *OrderService,
	provider PaymentProvider,
	publisher EventPublisher,
	logger logger.Logger,
	config PaymentServiceConfig,
) *PaymentService {
	if config.Currency == "" {
		config.Currency = "eur"
	}

	return &PaymentService{
		store:         store,
		engine:        engine,
		provider:      provider,
		publisher:     publisher,
		logger:        logger,
		webhookSecret: config.WebhookSecret,
		currency:      config.Currency,
	}
}

// ConfirmPayment is the client-initiated confirmation poll. It verifies the
// payment against the provider (succeeded, linked to this order, amounts
// match) and then moves the order to NEW through the lifecycle engine so the
// usual events fire. Safe to call twice: paid_at keeps its first value.
func (s *PaymentService) ConfirmPayment(ctx context.Context, orderID, inputPaymentIntentID string) (*models.Order, string, error) {
	orderID = strings.TrimSpace(orderID)

	if orderID == "" {
		return nil, "", apperrors.NewInvalidInputError("Missing order id")
	}

	order, err := s.store.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", apperrors.NewNotFoundError("Order not found")
		}
		return nil, "", apperrors.NewInternalError(fmt.Sprintf("failed to load order: %v", err))
	}

	if order.Payment != models.PaymentCard {
		return nil, "", apperrors.NewConflictError("Order payment is not card").
			WithReason(apperrors.ReasonNotCardPayment)
	}

	if order.Status != models.StatusPendingPayment {
		return nil, "", apperrors.NewConflictError("Order is not waiting for payment").
			WithReason(apperrors.ReasonNotAwaitingPayment)
	}

	paymentIntentID := strings.TrimSpace(inputPaymentIntentID)

	if paymentIntentID == "" && order.PaymentIntentID != nil {
		paymentIntentID = strings.TrimSpace(*order.PaymentIntentID)
	}

	if paymentIntentID == "" {
		return nil, "", apperrors.NewInvalidInputError("Missing payment intent id").
			WithReason(apperrors.ReasonMissingReference)
	}

	pi, err := s.provider.GetPaymentIntent(ctx, paymentIntentID)

	if err != nil {
		return nil, "", err
	}

	if pi.Status != "succeeded" {
		status := pi.Status

		if status == "" {
			status = "unknown"
		}

		return nil, "", apperrors.NewConflictError(
			fmt.Sprintf("PaymentIntent %s is not succeeded (%s)", paymentIntentID, status)).
			WithReason(apperrors.ReasonPaymentNotSucceeded)
	}

	// A reference replayed from another transaction must not pay this order.
	metadataOrderID := strings.TrimSpace(pi.Metadata["order_id"])

	if metadataOrderID != "" && metadataOrderID != orderID {
		return nil, "", apperrors.NewConflictError(
			fmt.Sprintf("PaymentIntent is linked to another order (%s)", metadataOrderID)).
			WithReason(apperrors.ReasonLinkedToOtherOrder)
	}

	amountReceived := pi.AmountReceived

	if amountReceived == 0 {
		amountReceived = pi.Amount
	}

	if amountReceived > 0 && order.AmountCents > 0 && amountReceived != order.AmountCents {
		return nil, "", apperrors.NewConflictError(
			fmt.Sprintf("Amount mismatch: provider=%d order=%d", amountReceived, order.AmountCents)).
			WithReason(apperrors.ReasonAmountMismatch)
	}

	if err := s.store.MarkCardPaymentConfirmed(ctx, orderID, providerName, paymentIntentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", apperrors.NewNotFoundError("Order not found")
		}
		return nil, "", apperrors.NewInternalError(fmt.Sprintf("failed to record payment: %v", err))
	}

	updated, err := s.engine.ApplyTransition(ctx, orderID, string(models.StatusNew))

	if err != nil {
		return nil, "", err
	}

	s.logger.Info("Card payment confirmed",
		"orderID", orderID,
		"paymentIntentID", paymentIntentID)

	return updated, paymentIntentID, nil
}

// WebhookResult reports what a webhook delivery did. Ignored deliveries still
// count as success towards the provider so it stops retrying; the reason is
// kept observable for operations.
type WebhookResult struct {
	OK         bool              `json:"ok"`
	Ignored    bool              `json:"ignored,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Diagnostic map[string]string `json:"diagnostic,omitempty"`
}

// providerEvent is the loosely-typed webhook envelope; every nested field may
// be absent.
type providerEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string            `json:"id"`
			Status         string            `json:"status"`
			Metadata       map[string]string `json:"metadata"`
			AmountReceived int64             `json:"amount_received"`
			Amount         int64             `json:"amount"`
		} `json:"object"`
	} `json:"data"`
}

func ignored(reason string, diagnostic map[string]string) *WebhookResult {
	return &WebhookResult{
		OK:         true,
		Ignored:    true,
		Reason:     reason,
		Diagnostic: diagnostic,
	}
}

// HandleWebhook is the provider-pushed entry point. Signature failures and
// malformed JSON are errors (the provider should retry); every business
// mismatch is an "ignored" success so permanently-unresolvable events do not
// cause retry storms. A duplicate delivery after the order progressed leaves
// the status untouched.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	if s.webhookSecret != "" {
		if !clients.VerifyWebhookSignature(payload, signatureHeader, s.webhookSecret) {
			return nil, apperrors.NewSignatureError("Invalid signature")
		}
	} else {
		s.logger.Warn("Webhook signature check skipped: no secret configured")
	}

	var event providerEvent

	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperrors.NewInvalidInputError("Invalid webhook payload")
	}

	if event.Type != eventPaymentSucceeded {
		return ignored("unsupported_event_type", map[string]string{
			"eventId":   event.ID,
			"eventType": event.Type,
		}), nil
	}

	paymentIntentID := strings.TrimSpace(event.Data.Object.ID)
	metadataOrderID := strings.TrimSpace(event.Data.Object.Metadata["order_id"])

	orderID := metadataOrderID

	if orderID == "" && paymentIntentID != "" {
		linked, err := s.store.FindByPaymentIntentID(ctx, paymentIntentID)

		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(fmt.Sprintf("failed to resolve payment intent: %v", err))
		}

		if linked != nil {
			orderID = linked.ID
		}
	}

	if orderID == "" {
		reason := "missing_payment_intent_id"

		if paymentIntentID != "" {
			reason = "payment_intent_not_linked"
		}

		return ignored(reason, map[string]string{
			"eventId":         event.ID,
			"paymentIntentId": paymentIntentID,
		}), nil
	}

	before, err := s.store.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			reason := "missing_order"

			if metadataOrderID != "" {
				reason = "metadata_order_not_found"
			}

			return ignored(reason, map[string]string{
				"eventId":         event.ID,
				"paymentIntentId": paymentIntentID,
				"orderId":         orderID,
			}), nil
		}
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to load order: %v", err))
	}

	previousStatus := before.Status

	if err := s.store.ReconcileWebhookPayment(ctx, orderID, providerName, paymentIntentID); err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to reconcile payment: %v", err))
	}

	after, err := s.store.GetByID(ctx, orderID)

	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to reload order: %v", err))
	}

	if after.Status != previousStatus {
		s.publisher.Publish(ctx, models.NewOrderEvent(models.EventOrderStatusChanged, orderID, after.Status, previousStatus))
	}

	if previousStatus == models.StatusPendingPayment && after.Status == models.StatusNew {
		s.publisher.Publish(ctx, models.NewOrderEvent(models.EventPaymentValidated, orderID, after.Status, previousStatus))
	}

	s.logger.Info("Webhook payment reconciled",
		"orderID", orderID,
		"paymentIntentID", paymentIntentID,
		"previousStatus", previousStatus,
		"status", after.Status)

	return &WebhookResult{OK: true}, nil
}

// TerminalPayment describes a freshly created card-present payment intent.
type TerminalPayment struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	AmountCents     int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

// CreateTerminalPayment creates a payment intent for a card order awaiting
// payment and stores the reference so both reconciliation paths can find it.
func (s *PaymentService) CreateTerminalPayment(ctx context.Context, orderID string) (*TerminalPayment, error) {
	orderID = strings.TrimSpace(orderID)

	if orderID == "" {
		return nil, apperrors.NewInvalidInputError("Missing orderId")
	}

	order, err := s.store.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Order not found")
		}
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to load order: %v", err))
	}

	if order.Payment != models.PaymentCard {
		return nil, apperrors.NewConflictError("Order payment is not card").
			WithReason(apperrors.ReasonNotCardPayment)
	}

	if order.Status != models.StatusPendingPayment {
		return nil, apperrors.NewConflictError("Order is not waiting for payment").
			WithReason(apperrors.ReasonNotAwaitingPayment)
	}

	amountCents := order.AmountCents

	if amountCents <= 0 {
		amountCents = pricing.TotalCents(order.Items)
	}

	if amountCents <= 0 {
		return nil, apperrors.NewInvalidInputError("Invalid amount")
	}

	pi, err := s.provider.CreatePaymentIntent(ctx, clients.PaymentIntentParams{
		AmountCents: amountCents,
		Currency:    s.currency,
		OrderID:     orderID,
	})

	if err != nil {
		return nil, err
	}

	if err := s.store.AttachPaymentIntent(ctx, orderID, providerName, pi.ID, amountCents, s.currency); err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to store payment intent: %v", err))
	}

	s.logger.Info("Terminal payment intent created",
		"orderID", orderID,
		"paymentIntentID", pi.ID,
		"amountCents", amountCents)

	return &TerminalPayment{
		OrderID:         orderID,
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		AmountCents:     amountCents,
		Currency:        s.currency,
		Status:          pi.Status,
	}, nil
}

// ConnectionToken mints a terminal connection token for the card reader app.
func (s *PaymentService) ConnectionToken(ctx context.Context) (string, error) {
	return s.provider.CreateConnectionToken(ctx)
}
