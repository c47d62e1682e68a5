package payment

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
)

type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	// AmountMinor is the amount in the currency's minor unit.
	AmountMinor int64
	Currency    string
	LastError   string
}

type IntentParams struct {
	Amount      decimal.Decimal
	Currency    string
	OrderID     uuid.UUID
	OrderNumber string
	UserID      uuid.UUID
}

// Gateway is the payment provider boundary.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

var ErrIntentNotFound = fmt.Errorf("payment intent %w", apperror.ErrNotFound)

// SandboxGateway keeps intents in memory. New intents settle with the
// configured outcome; Settle overrides it per intent.
type SandboxGateway struct {
	mu      sync.Mutex
	intents map[string]*Intent
	outcome IntentStatus
}

func NewSandboxGateway(outcome IntentStatus) *SandboxGateway {
	if outcome == "" {
		outcome = IntentSucceeded
	}
	return &SandboxGateway{intents: make(map[string]*Intent), outcome: outcome}
}

func (g *SandboxGateway) Name() string {
	return "sandbox"
}

func (g *SandboxGateway) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !params.Amount.IsPositive() {
		return nil, apperror.Validation("amount", "must be positive")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to generate intent ID: %w", err)
	}
	secret, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to generate client secret: %w", err)
	}

	intentID := "pi_sandbox_" + hex.EncodeToString(id.Bytes()[:12])
	intent := &Intent{
		ID:           intentID,
		ClientSecret: intentID + "_secret_" + hex.EncodeToString(secret.Bytes()[:8]),
		Status:       g.outcome,
		AmountMinor:  params.Amount.Shift(2).Round(0).IntPart(),
		Currency:     strings.ToLower(params.Currency),
	}

	g.mu.Lock()
	g.intents[intentID] = intent
	g.mu.Unlock()

	copied := *intent
	return &copied, nil
}

func (g *SandboxGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	copied := *intent
	return &copied, nil
}

// Settle forces the outcome of an existing intent.
func (g *SandboxGateway) Settle(id string, status IntentStatus, lastError string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	intent.Status = status
	intent.LastError = lastError
	return nil
}
