package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/order"
)

type CheckoutPayload struct {
	Billing    order.Address `json:"billing"`
	Shipping   order.Address `json:"shipping"`
	CouponCode string        `json:"coupon_code" validate:"max=50"`
	Notes      string        `json:"notes"`
}

type CancelOrderRequest struct {
	Notes string `json:"notes"`
}

type UpdateOrderStatusRequest struct {
	Status         string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	Notes          string `json:"notes"`
	TrackingNumber string `json:"tracking_number" validate:"max=100"`
}

type OrderHandler struct {
	service  order.Service
	guard    *Guard
	validate *validator.Validate
}

func NewOrderHandler(service order.Service, guard *Guard) *OrderHandler {
	return &OrderHandler{
		service:  service,
		guard:    guard,
		validate: newValidator(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(h.guard.RequireUser)
		r.Post("/orders", h.handleCheckout)
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/stats", h.handleStats)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Post("/orders/{id}/cancel", h.handleCancelOrder)
	})
	router.With(h.guard.RequireStaff).Patch("/orders/{id}/status", h.handleUpdateStatus)
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var requestPayload CheckoutPayload
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.Checkout(r.Context(), userIDFrom(r.Context()), order.CheckoutRequest{
		Billing:    requestPayload.Billing,
		Shipping:   requestPayload.Shipping,
		CouponCode: requestPayload.CouponCode,
		Notes:      requestPayload.Notes,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), userIDFrom(r.Context()), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	o, err := h.service.Cancel(r.Context(), userIDFrom(r.Context()), orderID, requestPayload.Notes)
	if err != nil {
		respondWithServiceError(w, err, "Failed to cancel order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), userIDFrom(r.Context()), orderID, order.StatusUpdate{
		Status:         order.Status(requestPayload.Status),
		Notes:          requestPayload.Notes,
		TrackingNumber: requestPayload.TrackingNumber,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}
