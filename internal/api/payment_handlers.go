package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

type confirmPaymentResponse struct {
	Order           interface{} `json:"order"`
	PaymentIntentID string      `json:"paymentIntentId"`
}

type terminalPaymentRequest struct {
	OrderID string `json:"orderId"`
}

type connectionTokenResponse struct {
	Secret string `json:"secret"`
}

// confirmPaymentHandler is the client-side confirmation poll for a card order.
func (s *Server) confirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req confirmPaymentRequest

	// an empty body is fine, the stored payment intent reference is used
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	defer r.Body.Close()

	order, paymentIntentID, err := s.paymentService.ConfirmPayment(r.Context(), vars["id"], req.PaymentIntentID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: confirmPaymentResponse{
			Order:           order,
			PaymentIntentID: paymentIntentID,
		},
	})
}

// terminalPaymentIntentHandler creates a card-present payment intent for an
// order awaiting payment.
func (s *Server) terminalPaymentIntentHandler(w http.ResponseWriter, r *http.Request) {
	var req terminalPaymentRequest

	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	defer r.Body.Close()

	payment, err := s.paymentService.CreateTerminalPayment(r.Context(), req.OrderID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    payment,
	})
}

// connectionTokenHandler mints a connection token for the card reader app.
func (s *Server) connectionTokenHandler(w http.ResponseWriter, r *http.Request) {
	secret, err := s.paymentService.ConnectionToken(r.Context())

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    connectionTokenResponse{Secret: secret},
	})
}
