package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fossodjateng-gif/afrofood-app/internal/models"
	"github.com/fossodjateng-gif/afrofood-app/internal/pricing"
	"github.com/fossodjateng-gif/afrofood-app/internal/repository"
	apperrors "github.com/fossodjateng-gif/afrofood-app/pkg/errors"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
)

// How often a create retries when the non-atomic day-sequence allocation
// loses the race and the insert hits the primary-key backstop.
const maxIDAllocationAttempts = 3

// strictTransitionTable is the happy-path adjacency graph enforced when
// StrictTransitions is on. Writing the current status again is always
// allowed.
var strictTransitionTable = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPendingPayment: {models.StatusNew},
	models.StatusNew:            {models.StatusInProgress, models.StatusReady},
	models.StatusInProgress:     {models.StatusReady},
	models.StatusReady:          {models.StatusDone},
	models.StatusDone:           {},
}

// OrderServiceConfig tunes the lifecycle engine.
type OrderServiceConfig struct {
	// StrictTransitions rejects jumps outside the happy-path graph. The
	// default (false) keeps the historical behavior: staff may move an order
	// to any status to correct mistakes.
	StrictTransitions bool
	Currency          string
}

// OrderService is the order lifecycle engine: it owns id allocation, the
// status state machine and the decision of which events each change produces.
type OrderService struct {
	store     OrderStore
	publisher EventPublisher
	logger    logger.Logger
	config    OrderServiceConfig
}

// NewOrderService creates a new OrderService
func NewOrderService(store OrderStore, publisher EventPublisher, logger logger.Logger, config OrderServiceConfig) *OrderService {
	if config.Currency == "" {
		config.Currency = "eur"
	}

	return &OrderService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// CreateOrder allocates a day-scoped id, prices the items once and persists
// the order in PENDING_PAYMENT. The allocation is read-then-write; on a
// duplicate-key insert the sequence is recomputed and the insert retried.
func (s *OrderService) CreateOrder(ctx context.Context, customerName, payment string, items []models.OrderItem) (*models.Order, error) {
	method, ok := models.ParsePaymentMethod(payment)

	if !ok {
		return nil, apperrors.NewInvalidInputError("Invalid payment")
	}

	if len(items) == 0 {
		return nil, apperrors.NewInvalidInputError("Missing items")
	}

	amountCents := pricing.TotalCents(items)

	var order *models.Order

	for attempt := 1; attempt <= maxIDAllocationAttempts; attempt++ {
		id, err := s.nextOrderID(ctx)

		if err != nil {
			return nil, err
		}

		order = models.NewOrder(id, customerName, method, items, amountCents, s.config.Currency)
		err = s.store.Create(ctx, order)

		if err == nil {
			break
		}

		if errors.Is(err, repository.ErrDuplicate) && attempt < maxIDAllocationAttempts {
			s.logger.Warn("Order id collision, reallocating", "orderID", id, "attempt", attempt)
			continue
		}

		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to create order: %v", err))
	}

	s.logger.Info("Order created",
		"orderID", order.ID,
		"payment", order.Payment,
		"amountCents", order.AmountCents)

	s.publisher.Publish(ctx, models.NewOrderEvent(models.EventOrderCreated, order.ID, order.Status, ""))

	return order, nil
}

// ApplyTransition overwrites the order's status with the requested one and
// emits the matching events. Any recognized status is accepted from any
// current status unless StrictTransitions is on.
func (s *OrderService) ApplyTransition(ctx context.Context, orderID, requestedStatus string) (*models.Order, error) {
	orderID = strings.TrimSpace(orderID)

	if orderID == "" {
		return nil, apperrors.NewInvalidInputError("Missing id")
	}

	status, ok := models.ParseStatus(requestedStatus)

	if !ok {
		return nil, apperrors.NewInvalidInputError("Invalid status")
	}

	order, err := s.store.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Order not found")
		}
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to load order: %v", err))
	}

	previousStatus := order.Status

	if s.config.StrictTransitions && !transitionAllowed(previousStatus, status) {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("Transition %s -> %s is not allowed", previousStatus, status))
	}

	if err := s.store.SetStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Order not found")
		}
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to update status: %v", err))
	}

	order.Status = status

	s.logger.Info("Order status changed",
		"orderID", orderID,
		"previousStatus", previousStatus,
		"status", status)

	s.publishTransitionEvents(ctx, orderID, previousStatus, status)

	return order, nil
}

// publishTransitionEvents emits the generic status-changed event plus the
// specialized ones for the payment, ready and done edges.
func (s *OrderService) publishTransitionEvents(ctx context.Context, orderID string, previousStatus, status models.OrderStatus) {
	s.publisher.Publish(ctx, models.NewOrderEvent(models.EventOrderStatusChanged, orderID, status, previousStatus))

	if previousStatus == models.StatusPendingPayment && status == models.StatusNew {
		s.publisher.Publish(ctx, models.NewOrderEvent(models.EventPaymentValidated, orderID, status, previousStatus))
	}

	if status == models.StatusReady {
		s.publisher.Publish(ctx, models.NewOrderEvent(models.EventOrderReady, orderID, status, previousStatus))
	}

	if status == models.StatusDone {
		s.publisher.Publish(ctx, models.NewOrderEvent(models.EventOrderDone, orderID, status, previousStatus))
	}
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.store.GetByID(ctx, strings.TrimSpace(id))

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Order not found")
		}
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to load order: %v", err))
	}

	return order, nil
}

// ListOrders retrieves orders newest first, optionally filtered by id and/or
// status (case-insensitive).
func (s *OrderService) ListOrders(ctx context.Context, id, statusFilter string) ([]*models.Order, error) {
	var status models.OrderStatus

	if strings.TrimSpace(statusFilter) != "" {
		parsed, ok := models.ParseStatus(statusFilter)

		if !ok {
			return nil, apperrors.NewInvalidInputError("Invalid status")
		}

		status = parsed
	}

	orders, err := s.store.List(ctx, strings.TrimSpace(id), status)

	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to list orders: %v", err))
	}

	return orders, nil
}

// nextOrderID computes the next id in today's sequence by reading the
// highest existing id with today's prefix. Not atomic; the primary key plus
// the caller's retry loop close the race.
func (s *OrderService) nextOrderID(ctx context.Context) (string, error) {
	dayKey := models.DayKey(models.GetCurrentTime())

	latest, err := s.store.LatestIDWithPrefix(ctx, dayKey+"-")

	if err != nil {
		return "", apperrors.NewInternalError(fmt.Sprintf("failed to allocate order id: %v", err))
	}

	next := 1

	if latest != "" {
		if seq := models.SequenceFromID(latest); seq >= 1 {
			next = seq + 1
		}
	}

	return models.FormatOrderID(dayKey, next), nil
}

func transitionAllowed(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}

	for _, allowed := range strictTransitionTable[from] {
		if to == allowed {
			return true
		}
	}

	return false
}
