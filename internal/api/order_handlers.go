package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fossodjateng-gif/afrofood-app/internal/validation"
)

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// createOrderHandler creates a new order
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateOrderRequest

	if err := validation.DecodeAndValidate(r, &req, s.validate); err != nil {
		s.respondWithError(w, http.StatusBadRequest, validation.ErrorMessage(err))
		return
	}

	defer r.Body.Close()

	order, err := s.orderService.CreateOrder(r.Context(), req.CustomerName, req.Payment, req.ToItems())

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// getOrdersHandler returns orders newest first, optionally filtered by the
// id and status query parameters.
func (s *Server) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	orders, err := s.orderService.ListOrders(r.Context(), query.Get("id"), query.Get("status"))

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

// getOrderByIDHandler returns an order by ID
func (s *Server) getOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	order, err := s.orderService.GetOrder(r.Context(), vars["id"])

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// updateOrderStatusHandler moves an order to the requested status.
func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req updateOrderStatusRequest

	if err := validation.DecodeAndValidate(r, &req, s.validate); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	defer r.Body.Close()

	order, err := s.orderService.ApplyTransition(r.Context(), vars["id"], req.Status)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}
