package api

import (
	"io"
	"net/http"
)

// Webhook deliveries are small JSON events; anything bigger is hostile.
const maxWebhookBodyBytes = 1 << 20

// stripeWebhookHandler receives provider push notifications. The raw body is
// what the signature covers, so it is read before any decoding. The response
// shape is the provider contract ({"ok":true,...}), not the API envelope.
func (s *Server) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	defer r.Body.Close()

	result, err := s.paymentService.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, result)
}
