package payment

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

func (s Status) String() string {
	return string(s)
}

type Payment struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	UserID          uuid.UUID       `json:"-"`
	Method          string          `json:"payment_method"`
	Status          Status          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentIntentID string          `json:"payment_intent_id"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p *Payment) IsSuccessful() bool {
	return p.Status == StatusCompleted
}

type IntentResult struct {
	ClientSecret    string   `json:"client_secret"`
	PaymentIntentID string   `json:"payment_intent_id"`
	Payment         *Payment `json:"payment"`
}

type ConfirmationStatus string

const (
	ConfirmationSuccess        ConfirmationStatus = "success"
	ConfirmationRequiresAction ConfirmationStatus = "requires_action"
	ConfirmationFailed         ConfirmationStatus = "failed"
)

type Confirmation struct {
	Status       ConfirmationStatus `json:"status"`
	Payment      *Payment           `json:"payment,omitempty"`
	ClientSecret string             `json:"client_secret,omitempty"`
	Error        string             `json:"error,omitempty"`
}

const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventPaymentIntentFailed     = "payment_intent.payment_failed"
	EventChargeSucceeded         = "charge.succeeded"
	EventChargeFailed            = "charge.failed"
	EventChargeDisputeCreated    = "charge.dispute.created"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

var eventTypes = map[string]bool{
	EventPaymentIntentSucceeded:  true,
	EventPaymentIntentFailed:     true,
	EventChargeSucceeded:         true,
	EventChargeFailed:            true,
	EventChargeDisputeCreated:    true,
	EventInvoicePaymentSucceeded: true,
	EventInvoicePaymentFailed:    true,
}

func KnownEventType(t string) bool {
	return eventTypes[t]
}

// WebhookEvent is a gateway notification, stored once per EventID.
type WebhookEvent struct {
	EventID   string          `json:"id"`
	EventType string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Processed bool            `json:"processed"`
	CreatedAt time.Time       `json:"created_at"`
}

// intentEventData is the part of a payment_intent.* payload we act on.
type intentEventData struct {
	Object struct {
		ID               string `json:"id"`
		LastPaymentError *struct {
			Message string `json:"message"`
		} `json:"last_payment_error"`
	} `json:"object"`
}
