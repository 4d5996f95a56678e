package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fossodjateng-gif/afrofood-app/pkg/circuitbreaker"
	"github.com/fossodjateng-gif/afrofood-app/pkg/errors"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
)

// PaymentIntent is the subset of the provider's payment-intent resource the
// reconciliation logic reads. Fields are optional on the wire and default to
// their zero values.
type PaymentIntent struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	ClientSecret   string            `json:"client_secret"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
}

// PaymentIntentParams describes a card-present charge to create. The order id
// travels in the intent's metadata so a webhook can find its way back.
type PaymentIntentParams struct {
	AmountCents int64
	Currency    string
	OrderID     string
}

type connectionToken struct {
	Secret string `json:"secret"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StripeClient talks to the Stripe REST API with form-encoded requests. No
// automatic retry: callers and the provider's own webhook retry policy own
// retries. A circuit breaker fails fast when Stripe is down.
type StripeClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     logger.Logger
}

// NewStripeClient creates a new StripeClient
func NewStripeClient(baseURL, secretKey string, logger logger.Logger) *StripeClient {
	return &StripeClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			HalfOpenMaxCalls: 2,
		}),
		logger: logger,
	}
}

// GetPaymentIntent fetches the current state of a payment intent.
func (c *StripeClient) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	var pi PaymentIntent

	path := "/payment_intents/" + url.PathEscape(paymentIntentID)

	if err := c.do(ctx, http.MethodGet, path, nil, &pi); err != nil {
		return nil, err
	}

	return &pi, nil
}

// CreatePaymentIntent creates a card-present payment intent tagged with the
// order id.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", params.Currency)
	form.Set("payment_method_types[0]", "card_present")
	form.Set("capture_method", "automatic")
	form.Set("metadata[order_id]", params.OrderID)

	var pi PaymentIntent

	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, &pi); err != nil {
		return nil, err
	}

	return &pi, nil
}

// CreateConnectionToken mints a terminal connection token.
func (c *StripeClient) CreateConnectionToken(ctx context.Context) (string, error) {
	var token connectionToken

	if err := c.do(ctx, http.MethodPost, "/terminal/connection_tokens", url.Values{}, &token); err != nil {
		return "", err
	}

	return token.Secret, nil
}

// do runs one API call through the circuit breaker and decodes the response
// into out.
func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	if c.secretKey == "" {
		return errors.NewUpstreamError("Missing STRIPE_SECRET_KEY")
	}

	if !c.breaker.Allow() {
		return errors.NewUpstreamError("Payment provider temporarily unavailable")
	}

	var body io.Reader

	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)

	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)

	if err != nil {
		c.breaker.Failure()
		c.logger.Error("Payment provider request failed", "error", err, "path", path)
		return errors.NewUpstreamError(fmt.Sprintf("payment provider request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)

	if err != nil {
		c.breaker.Failure()
		return errors.NewUpstreamError(fmt.Sprintf("failed to read provider response: %v", err))
	}

	if resp.StatusCode >= 400 {
		// 4xx means we spoke to a healthy API; only server errors trip the breaker.
		if resp.StatusCode >= 500 {
			c.breaker.Failure()
		} else {
			c.breaker.Success()
		}

		var apiErr apiError

		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return errors.NewUpstreamError(apiErr.Error.Message)
		}

		return errors.NewUpstreamError(fmt.Sprintf("Stripe API error (%d)", resp.StatusCode))
	}

	c.breaker.Success()

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewUpstreamError(fmt.Sprintf("failed to parse provider response: %v", err))
	}

	return nil
}
