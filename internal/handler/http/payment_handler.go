package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/payment"
)

type CreatePaymentIntentRequest struct {
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	service  payment.Service
	guard    *Guard
	validate *validator.Validate
}

func NewPaymentHandler(service payment.Service, guard *Guard) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		guard:    guard,
		validate: newValidator(),
	}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(h.guard.RequireUser)
		r.Post("/orders/{id}/payments", h.handleCreateIntent)
		r.Post("/payments/{id}/confirm", h.handleConfirm)
		r.Get("/payments", h.handleListPayments)
		r.Get("/payments/{id}", h.handleGetPayment)
	})
	router.Post("/webhooks/payments", h.handleWebhook)
}

func (h *PaymentHandler) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload CreatePaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return
	}

	result, err := h.service.CreateIntent(r.Context(), userIDFrom(r.Context()), orderID, requestPayload.Currency)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create payment intent")
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *PaymentHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	confirmation, err := h.service.Confirm(r.Context(), userIDFrom(r.Context()), paymentID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to confirm payment")
		return
	}

	code := http.StatusOK
	if confirmation.Status == payment.ConfirmationFailed {
		code = http.StatusBadRequest
	}
	respondWithJSON(w, code, confirmation)
}

func (h *PaymentHandler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, err, "Failed to list payments")
		return
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *PaymentHandler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetPayment(r.Context(), userIDFrom(r.Context()), paymentID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get payment")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// handleWebhook acknowledges every well-formed event with 200, including
// duplicates and events whose processing failed.
func (h *PaymentHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var event payment.WebhookEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&event); err != nil {
		log.Warn().Err(err).Msg("Failed to decode webhook payload")
		respondWithError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	if err := h.service.HandleWebhook(r.Context(), event); err != nil {
		respondWithServiceError(w, err, "Failed to record webhook event")
		return
	}
	w.WriteHeader(http.StatusOK)
}
