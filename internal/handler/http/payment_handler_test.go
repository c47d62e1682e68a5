package http_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	handler "github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/payment"
)

func TestPaymentHandler_CreateIntent(t *testing.T) {
	guard, _, customerID := staffGuard(t)
	orderID := newID()

	t.Run("created", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreateIntent", mock.Anything, customerID, orderID, "EUR").Return(&payment.IntentResult{
			ClientSecret:    "pi_sandbox_1_secret_2",
			PaymentIntentID: "pi_sandbox_1",
			Payment:         &payment.Payment{ID: newID(), OrderID: orderID, Status: payment.StatusPending},
		}, nil).Once()

		rr := do(t, handler.NewPaymentHandler(mockService, guard), http.MethodPost, "/orders/"+orderID.String()+"/payments",
			handler.CreatePaymentIntentRequest{Currency: "EUR"}, asUser(customerID))

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp payment.IntentResult
		decodeBody(t, rr, &resp)
		assert.Equal(t, "pi_sandbox_1_secret_2", resp.ClientSecret)
	})

	t.Run("already_exists", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreateIntent", mock.Anything, customerID, orderID, "").Return(nil, payment.ErrPaymentExists).Once()

		rr := do(t, handler.NewPaymentHandler(mockService, guard), http.MethodPost, "/orders/"+orderID.String()+"/payments", nil, asUser(customerID))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "Payment already exists for this order", errorBody(t, rr))
	})

	t.Run("bad_currency", func(t *testing.T) {
		rr := do(t, handler.NewPaymentHandler(new(MockPaymentService), guard), http.MethodPost, "/orders/"+orderID.String()+"/payments",
			handler.CreatePaymentIntentRequest{Currency: "EURO"}, asUser(customerID))

		details := validationDetails(t, rr)
		assert.Equal(t, "must be exactly 3 characters long", details["currency"])
	})

	t.Run("cancelled_order", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreateIntent", mock.Anything, customerID, orderID, "").Return(nil, payment.ErrOrderCancelled).Once()

		rr := do(t, handler.NewPaymentHandler(mockService, guard), http.MethodPost, "/orders/"+orderID.String()+"/payments", nil, asUser(customerID))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Cannot pay for a cancelled order", errorBody(t, rr))
	})
}

func TestPaymentHandler_GetPayment(t *testing.T) {
	guard, _, customerID := staffGuard(t)
	paymentID := newID()

	t.Run("owner", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("GetPayment", mock.Anything, customerID, paymentID).
			Return(&payment.Payment{ID: paymentID, Status: payment.StatusCompleted, Currency: "USD"}, nil).Once()

		rr := do(t, handler.NewPaymentHandler(mockService, guard), http.MethodGet, "/payments/"+paymentID.String(), nil, asUser(customerID))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp payment.Payment
		decodeBody(t, rr, &resp)
		assert.Equal(t, paymentID, resp.ID)
		assert.Equal(t, payment.StatusCompleted, resp.Status)
	})

	t.Run("not_found", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("GetPayment", mock.Anything, customerID, paymentID).Return(nil, payment.ErrPaymentNotFound).Once()

		rr := do(t, handler.NewPaymentHandler(mockService, guard), http.MethodGet, "/payments/"+paymentID.String(), nil, asUser(customerID))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Payment not found", errorBody(t, rr))
	})

	t.Run("anonymous", func(t *testing.T) {
		rr := do(t, handler.NewPaymentHandler(new(MockPaymentService), guard), http.MethodGet, "/payments/"+paymentID.String(), nil, nil)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("bad_id", func(t *testing.T) {
		rr := do(t, handler.NewPaymentHandler(new(MockPaymentService), guard), http.MethodGet, "/payments/nope", nil, asUser(customerID))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestPaymentHandler_Confirm(t *testing.T) {
	guard, _, customerID := staffGuard(t)
	paymentID := newID()

	tests := []struct {
		name         string
		confirmation *payment.Confirmation
		err          error
		wantStatus   int
	}{
		{
			name:         "success",
			confirmation: &payment.Confirmation{Status: payment.ConfirmationSuccess},
			wantStatus:   http.StatusOK,
		},
		{
			name:         "requires_action",
			confirmation: &payment.Confirmation{Status: payment.ConfirmationRequiresAction, ClientSecret: "secret"},
			wantStatus:   http.StatusOK,
		},
		{
			name:         "failed",
			confirmation: &payment.Confirmation{Status: payment.ConfirmationFailed, Error: "Payment failed with status: canceled"},
			wantStatus:   http.StatusBadRequest,
		},
		{
			name:       "not_pending",
			err:        payment.ErrPaymentNotPending,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not_found",
			err:        payment.ErrPaymentNotFound,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			if tt.err != nil {
				mockService.On("Confirm", mock.Anything, customerID, paymentID).Return(nil, tt.err).Once()
			} else {
				mockService.On("Confirm", mock.Anything, customerID, paymentID).Return(tt.confirmation, nil).Once()
			}

			rr := do(t, handler.NewPaymentHandler(mockService, guard), http.MethodPost, "/payments/"+paymentID.String()+"/confirm", nil, asUser(customerID))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.confirmation != nil {
				var resp payment.Confirmation
				decodeBody(t, rr, &resp)
				assert.Equal(t, tt.confirmation.Status, resp.Status)
			}
		})
	}
}

func TestPaymentHandler_Webhook(t *testing.T) {
	guard, _, _ := staffGuard(t)

	t.Run("accepted_without_identity", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandleWebhook", mock.Anything, mock.MatchedBy(func(e payment.WebhookEvent) bool {
			return e.EventID == "evt_1" && e.EventType == payment.EventPaymentIntentSucceeded && len(e.Data) > 0
		})).Return(nil).Once()

		rr := do(t, handler.NewPaymentHandler(mockService, guard), http.MethodPost, "/webhooks/payments",
			`{"id":"evt_1","type":"payment_intent.succeeded","created":1718000000,"data":{"object":{"id":"pi_1"}}}`, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("unsupported_type", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandleWebhook", mock.Anything, mock.Anything).Return(payment.ErrUnsupportedEvent).Once()

		rr := do(t, handler.NewPaymentHandler(mockService, guard), http.MethodPost, "/webhooks/payments",
			`{"id":"evt_2","type":"customer.created","data":{}}`, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Unsupported webhook event type", errorBody(t, rr))
	})

	t.Run("malformed", func(t *testing.T) {
		rr := do(t, handler.NewPaymentHandler(new(MockPaymentService), guard), http.MethodPost, "/webhooks/payments", `{"id":`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
