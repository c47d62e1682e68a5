package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
)

var (
	ErrPaymentNotFound = fmt.Errorf("payment %w", apperror.ErrNotFound)
	ErrPaymentExists   = fmt.Errorf("payment already exists for this order: %w", apperror.ErrConflict)
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByIntentForUpdate(ctx context.Context, intentID string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Payment, error)

	// RecordEvent stores the event and reports false when its id was seen
	// before.
	RecordEvent(ctx context.Context, e *WebhookEvent) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
}

type postgresRepository struct {
	db *db.Postgres
}

func NewRepository(db *db.Postgres) Repository {
	return &postgresRepository{db: db}
}

const paymentSelect = `
	SELECT p.id, p.order_id, o.user_id, p.payment_method, p.status, p.amount, p.currency,
		p.payment_intent_id, p.error_message, p.processed_at, p.created_at, p.updated_at
	FROM payments p
	JOIN orders o ON o.id = p.order_id`

func scanPayment(row pgx.Row, p *Payment) error {
	var status string
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.UserID,
		&p.Method,
		&status,
		&p.Amount,
		&p.Currency,
		&p.PaymentIntentID,
		&p.ErrorMessage,
		&p.ProcessedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.Status = Status(status)
	return err
}

func (r *postgresRepository) Create(ctx context.Context, p *Payment) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate payment ID: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO payments (id, order_id, payment_method, status, amount, currency, payment_intent_id,
			error_message, processed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.Conn(ctx).Exec(ctx, query,
		id,
		p.OrderID,
		p.Method,
		string(p.Status),
		p.Amount,
		p.Currency,
		p.PaymentIntentID,
		p.ErrorMessage,
		p.ProcessedAt,
		now,
		now,
	)
	if err != nil {
		if db.IsUniqueViolation(err, "payments_order_key") {
			return ErrPaymentExists
		}
		return fmt.Errorf("repository: failed to insert payment: %w", err)
	}

	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *postgresRepository) ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.Conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check payment for order %s: %w", orderID, err)
	}
	return exists, nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.getByID(ctx, id, "")
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.getByID(ctx, id, " FOR UPDATE OF p")
}

func (r *postgresRepository) getByID(ctx context.Context, id uuid.UUID, suffix string) (*Payment, error) {
	var p Payment
	err := scanPayment(r.db.Conn(ctx).QueryRow(ctx, paymentSelect+` WHERE p.id = $1`+suffix, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment %s: %w", id, err)
	}
	return &p, nil
}

func (r *postgresRepository) GetByIntentForUpdate(ctx context.Context, intentID string) (*Payment, error) {
	var p Payment
	err := scanPayment(r.db.Conn(ctx).QueryRow(ctx, paymentSelect+` WHERE p.payment_intent_id = $1 FOR UPDATE OF p`, intentID), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment by intent %s: %w", intentID, err)
	}
	return &p, nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Payment) error {
	query := `
		UPDATE payments
		SET status = $1, error_message = $2, processed_at = $3, updated_at = $4
		WHERE id = $5
	`
	now := time.Now().UTC()
	tag, err := r.db.Conn(ctx).Exec(ctx, query, string(p.Status), p.ErrorMessage, p.ProcessedAt, now, p.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to update payment %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}

	p.UpdatedAt = now
	return nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Payment, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, paymentSelect+` WHERE o.user_id = $1 ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query payments for user %s: %w", userID, err)
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating payments: %w", err)
	}

	return payments, nil
}

func (r *postgresRepository) RecordEvent(ctx context.Context, e *WebhookEvent) (bool, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO webhook_events (event_id, event_type, data, processed, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (event_id) DO NOTHING
	`
	data := e.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, query, e.EventID, e.EventType, string(data), now)
	if err != nil {
		return false, fmt.Errorf("repository: failed to record webhook event %s: %w", e.EventID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	e.CreatedAt = now
	return true, nil
}

func (r *postgresRepository) MarkEventProcessed(ctx context.Context, eventID string) error {
	_, err := r.db.Conn(ctx).Exec(ctx, `UPDATE webhook_events SET processed = TRUE WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("repository: failed to mark webhook event %s processed: %w", eventID, err)
	}
	return nil
}
