package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fossodjateng-gif/afrofood-app/internal/clients"
	"github.com/fossodjateng-gif/afrofood-app/internal/models"
	apperrors "github.com/fossodjateng-gif/afrofood-app/pkg/errors"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
)

func newTestPaymentService(store *fakeOrderStore, provider *fakePaymentProvider, publisher *recordingPublisher, webhookSecret string) *PaymentService {
	engine := newTestOrderService(store, publisher, false)

	return NewPaymentService(store, engine, provider, publisher, logger.NewNopLogger(), PaymentServiceConfig{
		WebhookSecret: webhookSecret,
		Currency:      "eur",
	})
}

func createCardOrder(t *testing.T, store *fakeOrderStore, publisher *recordingPublisher) *models.Order {
	t.Helper()

	engine := newTestOrderService(store, publisher, false)
	order, err := engine.CreateOrder(context.Background(), "Awa", "card", testItems())

	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	publisher.events = nil
	return order
}

func succeededIntent(orderID string, amountCents int64) *clients.PaymentIntent {
	return &clients.PaymentIntent{
		ID:             "pi_123",
		Status:         "succeeded",
		AmountReceived: amountCents,
		Currency:       "eur",
		Metadata:       map[string]string{"order_id": orderID},
	}
}

func signWebhookPayload(payload []byte, secret string) string {
	timestamp := "1700000000"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))

	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func succeededWebhookPayload(paymentIntentID, orderID string) []byte {
	metadata := ""

	if orderID != "" {
		metadata = fmt.Sprintf(`,"metadata":{"order_id":"%s"}`, orderID)
	}

	return []byte(fmt.Sprintf(
		`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"%s","status":"succeeded"%s}}}`,
		paymentIntentID, metadata))
}

func TestConfirmPaymentMovesOrderToNew(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	provider := &fakePaymentProvider{intent: succeededIntent(order.ID, order.AmountCents)}
	svc := newTestPaymentService(store, provider, publisher, "")

	updated, paymentIntentID, err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if paymentIntentID != "pi_123" {
		t.Fatalf("expected pi_123, got %s", paymentIntentID)
	}

	if updated.Status != models.StatusNew {
		t.Fatalf("expected NEW, got %s", updated.Status)
	}

	stored, _ := store.GetByID(context.Background(), order.ID)

	if stored.PaidAt == nil {
		t.Fatal("expected paidAt to be set")
	}

	want := []string{models.EventOrderStatusChanged, models.EventPaymentValidated}

	if got := publisher.types(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestConfirmThenWebhookKeepsFirstPaidAt(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	provider := &fakePaymentProvider{intent: succeededIntent(order.ID, order.AmountCents)}
	svc := newTestPaymentService(store, provider, publisher, "")

	if _, _, err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	confirmed, _ := store.GetByID(context.Background(), order.ID)
	firstPaidAt := *confirmed.PaidAt
	publisher.events = nil

	// the provider's push arrives after the poll already reconciled
	result, err := svc.HandleWebhook(context.Background(), succeededWebhookPayload("pi_123", order.ID), "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OK || result.Ignored {
		t.Fatalf("expected plain ok result, got %+v", result)
	}

	after, _ := store.GetByID(context.Background(), order.ID)

	if !after.PaidAt.Equal(firstPaidAt) {
		t.Fatalf("paidAt changed on duplicate delivery: %v -> %v", firstPaidAt, after.PaidAt)
	}

	if after.Status != models.StatusNew {
		t.Fatalf("expected NEW, got %s", after.Status)
	}

	if len(publisher.events) != 0 {
		t.Fatalf("expected no events on a no-op delivery, got %v", publisher.types())
	}
}

func TestWebhookDoesNotRegressAdvancedOrder(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	provider := &fakePaymentProvider{intent: succeededIntent(order.ID, order.AmountCents)}
	svc := newTestPaymentService(store, provider, publisher, "")

	if _, _, err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	engine := newTestOrderService(store, publisher, false)

	if _, err := engine.ApplyTransition(context.Background(), order.ID, "READY"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	publisher.events = nil

	result, err := svc.HandleWebhook(context.Background(), succeededWebhookPayload("pi_123", order.ID), "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OK {
		t.Fatalf("expected ok result, got %+v", result)
	}

	after, _ := store.GetByID(context.Background(), order.ID)

	if after.Status != models.StatusReady {
		t.Fatalf("late delivery regressed status to %s", after.Status)
	}

	if len(publisher.events) != 0 {
		t.Fatalf("expected no events, got %v", publisher.types())
	}
}

func TestConfirmPaymentAmountMismatch(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	provider := &fakePaymentProvider{intent: succeededIntent(order.ID, order.AmountCents+100)}
	svc := newTestPaymentService(store, provider, publisher, "")

	_, _, err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123")

	if err == nil {
		t.Fatal("expected amount mismatch error")
	}

	var appErr *apperrors.AppError

	if !apperrors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	if ok := errors.As(err, &appErr); !ok || appErr.Reason != apperrors.ReasonAmountMismatch {
		t.Fatalf("expected reason %s, got %+v", apperrors.ReasonAmountMismatch, appErr)
	}

	stored, _ := store.GetByID(context.Background(), order.ID)

	if stored.Status != models.StatusPendingPayment {
		t.Fatalf("expected order to stay PENDING_PAYMENT, got %s", stored.Status)
	}

	if stored.PaidAt != nil {
		t.Fatal("expected paidAt to stay unset")
	}

	if len(publisher.events) != 0 {
		t.Fatalf("expected no events, got %v", publisher.types())
	}
}

func TestConfirmPaymentRejectsNonCardOrder(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	engine := newTestOrderService(store, publisher, false)

	order, err := engine.CreateOrder(context.Background(), "Awa", "cash", testItems())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := newTestPaymentService(store, &fakePaymentProvider{}, publisher, "")

	_, _, err = svc.ConfirmPayment(context.Background(), order.ID, "pi_123")

	if err == nil || err.Error() != "Order payment is not card" {
		t.Fatalf("expected card-only rejection, got %v", err)
	}
}

func TestConfirmPaymentRejectsNonPendingOrder(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	engine := newTestOrderService(store, publisher, false)

	if _, err := engine.ApplyTransition(context.Background(), order.ID, "NEW"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := newTestPaymentService(store, &fakePaymentProvider{}, publisher, "")

	_, _, err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123")

	if err == nil || err.Error() != "Order is not waiting for payment" {
		t.Fatalf("expected awaiting-payment rejection, got %v", err)
	}
}

func TestConfirmPaymentNotSucceededIntent(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	provider := &fakePaymentProvider{intent: &clients.PaymentIntent{
		ID:     "pi_123",
		Status: "requires_payment_method",
	}}
	svc := newTestPaymentService(store, provider, publisher, "")

	_, _, err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123")

	if err == nil || !strings.Contains(err.Error(), "is not succeeded (requires_payment_method)") {
		t.Fatalf("expected not-succeeded rejection, got %v", err)
	}
}

func TestConfirmPaymentRejectsForeignIntent(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	provider := &fakePaymentProvider{intent: succeededIntent("20250101-099", order.AmountCents)}
	svc := newTestPaymentService(store, provider, publisher, "")

	_, _, err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123")

	if err == nil || !strings.Contains(err.Error(), "linked to another order (20250101-099)") {
		t.Fatalf("expected foreign-intent rejection, got %v", err)
	}
}

func TestConfirmPaymentMissingReference(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	svc := newTestPaymentService(store, &fakePaymentProvider{}, publisher, "")

	_, _, err := svc.ConfirmPayment(context.Background(), order.ID, "")

	if err == nil || err.Error() != "Missing payment intent id" {
		t.Fatalf("expected missing reference rejection, got %v", err)
	}
}

func TestConfirmPaymentUsesStoredReference(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	if err := store.AttachPaymentIntent(context.Background(), order.ID, "stripe", "pi_stored", order.AmountCents, "eur"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	provider := &fakePaymentProvider{intent: succeededIntent(order.ID, order.AmountCents)}
	svc := newTestPaymentService(store, provider, publisher, "")

	_, paymentIntentID, err := svc.ConfirmPayment(context.Background(), order.ID, "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if paymentIntentID != "pi_stored" {
		t.Fatalf("expected stored reference pi_stored, got %s", paymentIntentID)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	svc := newTestPaymentService(store, &fakePaymentProvider{}, publisher, "whsec_test")

	payload := succeededWebhookPayload("pi_123", "20250101-001")

	_, err := svc.HandleWebhook(context.Background(), payload, "t=1700000000,v1=deadbeef")

	if err == nil || !apperrors.Is(err, apperrors.ErrInvalidSignature) {
		t.Fatalf("expected signature rejection, got %v", err)
	}
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	svc := newTestPaymentService(store, &fakePaymentProvider{}, publisher, "whsec_test")

	payload := succeededWebhookPayload("pi_123", order.ID)

	result, err := svc.HandleWebhook(context.Background(), payload, signWebhookPayload(payload, "whsec_test"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OK || result.Ignored {
		t.Fatalf("expected reconciliation, got %+v", result)
	}

	after, _ := store.GetByID(context.Background(), order.ID)

	if after.Status != models.StatusNew {
		t.Fatalf("expected NEW, got %s", after.Status)
	}
}

func TestWebhookAdvancesPendingOrderAndEmitsEvents(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	svc := newTestPaymentService(store, &fakePaymentProvider{}, publisher, "")

	result, err := svc.HandleWebhook(context.Background(), succeededWebhookPayload("pi_123", order.ID), "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OK {
		t.Fatalf("expected ok result, got %+v", result)
	}

	want := []string{models.EventOrderStatusChanged, models.EventPaymentValidated}

	if got := publisher.types(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestWebhookResolvesOrderByStoredIntent(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	if err := store.AttachPaymentIntent(context.Background(), order.ID, "stripe", "pi_123", order.AmountCents, "eur"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := newTestPaymentService(store, &fakePaymentProvider{}, publisher, "")

	// no metadata on the event, only the stored link resolves the order
	result, err := svc.HandleWebhook(context.Background(), succeededWebhookPayload("pi_123", ""), "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OK || result.Ignored {
		t.Fatalf("expected reconciliation, got %+v", result)
	}

	after, _ := store.GetByID(context.Background(), order.ID)

	if after.Status != models.StatusNew {
		t.Fatalf("expected NEW, got %s", after.Status)
	}
}

func TestWebhookIgnoresUnsupportedEventType(t *testing.T) {
	svc := newTestPaymentService(newFakeOrderStore(), &fakePaymentProvider{}, &recordingPublisher{}, "")

	payload := []byte(`{"id":"evt_1","type":"charge.refunded","data":{"object":{}}}`)

	result, err := svc.HandleWebhook(context.Background(), payload, "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Ignored || result.Reason != "unsupported_event_type" {
		t.Fatalf("expected unsupported_event_type, got %+v", result)
	}
}

func TestWebhookIgnoresUnresolvableDeliveries(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		reason  string
	}{
		{
			name:    "no intent id and no metadata",
			payload: []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{}}}`),
			reason:  "missing_payment_intent_id",
		},
		{
			name:    "metadata names a missing order",
			payload: succeededWebhookPayload("pi_123", "20250101-404"),
			reason:  "metadata_order_not_found",
		},
		{
			name:    "intent not linked to any order",
			payload: succeededWebhookPayload("pi_unknown", ""),
			reason:  "payment_intent_not_linked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestPaymentService(newFakeOrderStore(), &fakePaymentProvider{}, &recordingPublisher{}, "")

			result, err := svc.HandleWebhook(context.Background(), tt.payload, "")

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !result.OK || !result.Ignored || result.Reason != tt.reason {
				t.Fatalf("expected ignored reason %s, got %+v", tt.reason, result)
			}
		})
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	svc := newTestPaymentService(newFakeOrderStore(), &fakePaymentProvider{}, &recordingPublisher{}, "")

	_, err := svc.HandleWebhook(context.Background(), []byte("{not json"), "")

	if err == nil || err.Error() != "Invalid webhook payload" {
		t.Fatalf("expected payload rejection, got %v", err)
	}
}

func TestCreateTerminalPaymentAttachesIntent(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	order := createCardOrder(t, store, publisher)

	provider := &fakePaymentProvider{}
	svc := newTestPaymentService(store, provider, publisher, "")

	payment, err := svc.CreateTerminalPayment(context.Background(), order.ID)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payment.AmountCents != order.AmountCents {
		t.Fatalf("expected amount %d, got %d", order.AmountCents, payment.AmountCents)
	}

	if len(provider.createdParams) != 1 || provider.createdParams[0].OrderID != order.ID {
		t.Fatalf("expected intent created for %s, got %+v", order.ID, provider.createdParams)
	}

	stored, _ := store.GetByID(context.Background(), order.ID)

	if stored.PaymentIntentID == nil || *stored.PaymentIntentID != payment.PaymentIntentID {
		t.Fatalf("expected stored intent reference %s", payment.PaymentIntentID)
	}
}

func TestCreateTerminalPaymentRejectsCashOrder(t *testing.T) {
	store := newFakeOrderStore()
	publisher := &recordingPublisher{}
	engine := newTestOrderService(store, publisher, false)

	order, err := engine.CreateOrder(context.Background(), "Awa", "cash", testItems())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := newTestPaymentService(store, &fakePaymentProvider{}, publisher, "")

	if _, err := svc.CreateTerminalPayment(context.Background(), order.ID); err == nil {
		t.Fatal("expected card-only rejection")
	}
}
