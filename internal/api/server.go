package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/fossodjateng-gif/afrofood-app/internal/clients"
	"github.com/fossodjateng-gif/afrofood-app/internal/config"
	"github.com/fossodjateng-gif/afrofood-app/internal/database"
	"github.com/fossodjateng-gif/afrofood-app/internal/events"
	"github.com/fossodjateng-gif/afrofood-app/internal/outbox"
	"github.com/fossodjateng-gif/afrofood-app/internal/repository"
	"github.com/fossodjateng-gif/afrofood-app/internal/service"
	"github.com/fossodjateng-gif/afrofood-app/internal/validation"
	"github.com/fossodjateng-gif/afrofood-app/pkg/kafka"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
	"github.com/fossodjateng-gif/afrofood-app/pkg/middleware"
)

type Server struct {
	config          *config.Config
	logger          logger.Logger
	router          *mux.Router
	httpServer      *http.Server
	db              *database.Database
	orderRepo       *repository.OrderRepository
	outboxRepo      *repository.OutboxRepository
	hub             *events.Hub
	orderService    *service.OrderService
	paymentService  *service.PaymentService
	outboxProcessor *outbox.Processor
	kafkaProducer   *kafka.Producer
	validate        *validatorv10.Validate
}

// NewServer creates a new API server with the given configuration and logger.
func NewServer(cfg *config.Config, logger logger.Logger) *Server {
	r := mux.NewRouter()
	db, err := database.New(cfg, logger)

	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		panic(err)
	}

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		panic(err)
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db, logger)
	outboxRepo := repository.NewOutboxRepository(db, logger)

	// Initialize event fan-out. The Kafka export is optional: without brokers
	// configured, events only reach the in-process SSE hub.
	hub := events.NewHub(logger)

	var outboxStore events.OutboxStore
	var kafkaProducer *kafka.Producer
	var outboxProcessor *outbox.Processor

	if cfg.Kafka.Enabled() {
		kafkaProducer, err = kafka.NewProducer(cfg.Kafka.Brokers, logger)

		if err != nil {
			logger.Error("Failed to create Kafka producer", "error", err)
			panic(err)
		}

		outboxStore = outboxRepo

		processorConfig := outbox.ProcessorConfig{
			PollingInterval: 5 * time.Second,
			BatchSize:       10,
			MaxRetries:      3,
		}
		outboxProcessor = outbox.NewProcessor(outboxRepo, processorConfig, logger)

		kafkaHandler := outbox.NewKafkaHandler(kafkaProducer, cfg.Kafka.OrdersTopic, logger)
		outboxProcessor.RegisterHandler("ORDER_CREATED", kafkaHandler)
		outboxProcessor.RegisterHandler("ORDER_STATUS_CHANGED", kafkaHandler)
		outboxProcessor.RegisterHandler("PAYMENT_VALIDATED", kafkaHandler)
		outboxProcessor.RegisterHandler("ORDER_READY", kafkaHandler)
		outboxProcessor.RegisterHandler("ORDER_DONE", kafkaHandler)
	}

	dispatcher := events.NewDispatcher(hub, outboxStore, logger)

	// Initialize services
	orderService := service.NewOrderService(orderRepo, dispatcher, logger, service.OrderServiceConfig{
		StrictTransitions: cfg.StrictTransitions,
		Currency:          cfg.Stripe.Currency,
	})

	stripeClient := clients.NewStripeClient(cfg.Stripe.APIBaseURL, cfg.Stripe.SecretKey, logger)

	paymentService := service.NewPaymentService(orderRepo, orderService, stripeClient, dispatcher, logger, service.PaymentServiceConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Stripe.Currency,
	})

	server := &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // the SSE stream must outlive any write deadline
			IdleTimeout:  60 * time.Second,
		},
		logger:          logger,
		config:          cfg,
		db:              db,
		orderRepo:       orderRepo,
		outboxRepo:      outboxRepo,
		hub:             hub,
		orderService:    orderService,
		paymentService:  paymentService,
		outboxProcessor: outboxProcessor,
		kafkaProducer:   kafkaProducer,
		validate:        validation.New(),
	}

	server.setupRoutes()

	if outboxProcessor != nil {
		outboxProcessor.Start()
	}

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.outboxProcessor != nil {
		s.outboxProcessor.Stop()
	}

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	// The webhook sits outside the rate-limited subrouter so provider retries
	// are never throttled.
	s.router.HandleFunc("/webhooks/stripe", s.stripeWebhookHandler).Methods(http.MethodPost)

	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	rateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		IPMaxTokens:       s.config.RateLimit.IPMaxTokens,
		IPRefillRate:      s.config.RateLimit.IPRefillRate,
		TrustForwardedFor: s.config.RateLimit.TrustForwardedFor,
	}, s.logger)
	api.Use(rateLimiter.Middleware)

	// Health check endpoint
	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Registered before /orders/{id} so "events" is not captured as an order id.
	api.HandleFunc("/orders/events", s.orderEventsHandler).Methods(http.MethodGet)

	// Resource endpoints
	api.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.getOrderByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", s.updateOrderStatusHandler).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id}/confirm-payment", s.confirmPaymentHandler).Methods(http.MethodPatch)

	// Card reader endpoints
	api.HandleFunc("/terminal/payment-intent", s.terminalPaymentIntentHandler).Methods(http.MethodPost)
	api.HandleFunc("/terminal/connection-token", s.connectionTokenHandler).Methods(http.MethodPost)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
