package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/order"
)

var (
	ErrPaymentNotPending = fmt.Errorf("payment is not in pending status: %w", apperror.ErrInvalidState)
	ErrOrderAlreadyPaid  = fmt.Errorf("order is already paid: %w", apperror.ErrConflict)
	ErrOrderCancelled    = fmt.Errorf("cannot pay for a cancelled order: %w", apperror.ErrInvalidState)
	ErrUnsupportedEvent  = fmt.Errorf("unsupported webhook event type: %w", apperror.ErrValidation)
)

// Orders is what payments need from the order service.
type Orders interface {
	GetOrder(ctx context.Context, userID, id uuid.UUID) (*order.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID) error
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) error
}

type Service interface {
	CreateIntent(ctx context.Context, userID, orderID uuid.UUID, currency string) (*IntentResult, error)
	Confirm(ctx context.Context, userID, paymentID uuid.UUID) (*Confirmation, error)
	HandleWebhook(ctx context.Context, event WebhookEvent) error
	GetPayment(ctx context.Context, userID, paymentID uuid.UUID) (*Payment, error)
	ListPayments(ctx context.Context, userID uuid.UUID) ([]Payment, error)
}

type service struct {
	tx              db.Transactor
	repo            Repository
	orders          Orders
	gateway         Gateway
	defaultCurrency string
	now             func() time.Time
}

func NewService(tx db.Transactor, repo Repository, orders Orders, gateway Gateway, defaultCurrency string) Service {
	return &service{
		tx:              tx,
		repo:            repo,
		orders:          orders,
		gateway:         gateway,
		defaultCurrency: strings.ToUpper(defaultCurrency),
		now:             time.Now,
	}
}

func (s *service) CreateIntent(ctx context.Context, userID, orderID uuid.UUID, currency string) (*IntentResult, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperror.Validation("currency", "must be a 3-letter ISO code")
	}

	o, err := s.orders.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid() {
		return nil, ErrOrderAlreadyPaid
	}
	if o.Status == order.StatusCancelled {
		log.Warn().Stringer("order_id", orderID).Msg("service: payment requested for a cancelled order")
		return nil, ErrOrderCancelled
	}

	exists, err := s.repo.ExistsForOrder(ctx, orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to check existing payment")
		return nil, fmt.Errorf("service: failed to check existing payment: %w", err)
	}
	if exists {
		log.Warn().Stringer("order_id", orderID).Msg("service: payment already exists for order")
		return nil, ErrPaymentExists
	}

	intent, err := s.gateway.CreateIntent(ctx, IntentParams{
		Amount:      o.TotalAmount,
		Currency:    currency,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      userID,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Str("gateway", s.gateway.Name()).Msg("service: gateway failed to create intent")
		return nil, fmt.Errorf("service: failed to create payment intent: %w", err)
	}

	p := &Payment{
		OrderID:         o.ID,
		UserID:          userID,
		Method:          s.gateway.Name(),
		Status:          StatusPending,
		Amount:          o.TotalAmount,
		Currency:        currency,
		PaymentIntentID: intent.ID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrPaymentExists) {
			return nil, ErrPaymentExists
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to store payment")
		return nil, fmt.Errorf("service: failed to store payment: %w", err)
	}

	log.Info().Stringer("payment_id", p.ID).Stringer("order_id", orderID).Str("intent_id", intent.ID).Msg("service: payment intent created")
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID, Payment: p}, nil
}

func (s *service) Confirm(ctx context.Context, userID, paymentID uuid.UUID) (*Confirmation, error) {
	var result *Confirmation

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return ErrPaymentNotFound
		}
		if p.Status != StatusPending {
			return ErrPaymentNotPending
		}

		intent, err := s.gateway.GetIntent(ctx, p.PaymentIntentID)
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}

		switch intent.Status {
		case IntentSucceeded:
			if err := s.complete(ctx, p); err != nil {
				return err
			}
			result = &Confirmation{Status: ConfirmationSuccess, Payment: p}
		case IntentRequiresAction:
			result = &Confirmation{Status: ConfirmationRequiresAction, ClientSecret: intent.ClientSecret}
		default:
			msg := fmt.Sprintf("Payment failed with status: %s", intent.Status)
			if err := s.fail(ctx, p, msg); err != nil {
				return err
			}
			result = &Confirmation{Status: ConfirmationFailed, Payment: p, Error: msg}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrInvalidState) {
			log.Warn().Err(err).Stringer("payment_id", paymentID).Msg("service: payment confirmation rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("payment_id", paymentID).Msg("service: failed to confirm payment")
		return nil, fmt.Errorf("service: failed to confirm payment: %w", err)
	}

	log.Info().Stringer("payment_id", paymentID).Str("status", string(result.Status)).Msg("service: payment confirmation handled")
	return result, nil
}

func (s *service) complete(ctx context.Context, p *Payment) error {
	now := s.now().UTC()
	p.Status = StatusCompleted
	p.ProcessedAt = &now
	p.ErrorMessage = ""
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.orders.MarkPaid(ctx, p.OrderID)
}

func (s *service) fail(ctx context.Context, p *Payment, msg string) error {
	p.Status = StatusFailed
	p.ErrorMessage = msg
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.orders.MarkPaymentFailed(ctx, p.OrderID)
}

// HandleWebhook records the event once and applies it. A delivery whose
// event id was already recorded is acknowledged without effect. Failures
// while applying are logged and leave the event unprocessed.
func (s *service) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	if strings.TrimSpace(event.EventID) == "" {
		return apperror.Validation("id", "cannot be empty")
	}
	if !KnownEventType(event.EventType) {
		log.Warn().Str("event_id", event.EventID).Str("event_type", event.EventType).Msg("service: unsupported webhook event type")
		return ErrUnsupportedEvent
	}

	created, err := s.repo.RecordEvent(ctx, &event)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.EventID).Msg("service: failed to record webhook event")
		return fmt.Errorf("service: failed to record webhook event: %w", err)
	}
	if !created {
		log.Info().Str("event_id", event.EventID).Msg("service: duplicate webhook event ignored")
		return nil
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.applyEvent(ctx, event); err != nil {
			return err
		}
		return s.repo.MarkEventProcessed(ctx, event.EventID)
	})
	if err != nil {
		log.Error().Err(err).Str("event_id", event.EventID).Str("event_type", event.EventType).Msg("service: failed to process webhook event")
		return nil
	}

	log.Info().Str("event_id", event.EventID).Str("event_type", event.EventType).Msg("service: webhook event processed")
	return nil
}

func (s *service) applyEvent(ctx context.Context, event WebhookEvent) error {
	if event.EventType != EventPaymentIntentSucceeded && event.EventType != EventPaymentIntentFailed {
		return nil
	}

	var data intentEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	if data.Object.ID == "" {
		return errors.New("event data has no payment intent id")
	}

	p, err := s.repo.GetByIntentForUpdate(ctx, data.Object.ID)
	if err != nil {
		return err
	}

	if event.EventType == EventPaymentIntentSucceeded {
		if p.IsSuccessful() {
			return nil
		}
		return s.complete(ctx, p)
	}

	if p.IsSuccessful() {
		log.Warn().Stringer("payment_id", p.ID).Msg("service: failure event for a completed payment ignored")
		return nil
	}
	msg := ""
	if data.Object.LastPaymentError != nil {
		msg = data.Object.LastPaymentError.Message
	}
	return s.fail(ctx, p, msg)
}

func (s *service) GetPayment(ctx context.Context, userID, paymentID uuid.UUID) (*Payment, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		log.Error().Err(err).Stringer("payment_id", paymentID).Msg("service: failed to get payment")
		return nil, fmt.Errorf("service: failed to get payment: %w", err)
	}
	if p.UserID != userID {
		log.Warn().Stringer("payment_id", paymentID).Stringer("user_id", userID).Msg("service: payment requested by another user")
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

func (s *service) ListPayments(ctx context.Context, userID uuid.UUID) ([]Payment, error) {
	payments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to list payments")
		return nil, fmt.Errorf("service: failed to list payments: %w", err)
	}
	return payments, nil
}
