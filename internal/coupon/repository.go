package coupon

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
	ErrNotFound     = fmt.Errorf("coupon %w", apperror.ErrNotFound)
	ErrCodeExists   = fmt.Errorf("coupon code already exists: %w", apperror.ErrConflict)
	ErrUsageReached = fmt.Errorf("coupon usage limit reached: %w", apperror.ErrInvalidState)
)

type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	// CreateIfAbsent reports false when the code is already taken.
	CreateIfAbsent(ctx context.Context, c *Coupon) (bool, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*Coupon, error)
	ListActive(ctx context.Context, now time.Time) ([]Coupon, error)
	Redeem(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
}

type postgresRepository struct {
	db *db.Postgres
}

func NewRepository(db *db.Postgres) Repository {
	return &postgresRepository{db: db}
}

const couponColumns = `id, code, description, coupon_type, value, minimum_amount, maximum_discount,
	usage_limit, used_count, is_active, valid_from, valid_until, created_at, updated_at`

func (r *postgresRepository) insert(ctx context.Context, c *Coupon, onConflictNothing bool) (bool, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return false, fmt.Errorf("repository: failed to generate coupon ID: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO coupons (id, code, description, coupon_type, value, minimum_amount, maximum_discount,
			usage_limit, used_count, is_active, valid_from, valid_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12, $13)`
	if onConflictNothing {
		query += ` ON CONFLICT (code) DO NOTHING`
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, query,
		id,
		c.Code,
		c.Description,
		string(c.Type),
		c.Value,
		c.MinimumAmount,
		c.MaximumDiscount,
		c.UsageLimit,
		c.IsActive,
		c.ValidFrom,
		c.ValidUntil,
		now,
		now,
	)
	if err != nil {
		if db.IsUniqueViolation(err, "coupons_code_key") {
			return false, ErrCodeExists
		}
		return false, fmt.Errorf("repository: failed to insert coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	c.ID = id
	c.UsedCount = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	return true, nil
}

func (r *postgresRepository) Create(ctx context.Context, c *Coupon) error {
	_, err := r.insert(ctx, c, false)
	return err
}

func (r *postgresRepository) CreateIfAbsent(ctx context.Context, c *Coupon) (bool, error) {
	return r.insert(ctx, c, true)
}

func (r *postgresRepository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	return r.getByCode(ctx, code, "")
}

// GetByCodeForUpdate holds the coupon row until the surrounding transaction
// ends.
func (r *postgresRepository) GetByCodeForUpdate(ctx context.Context, code string) (*Coupon, error) {
	return r.getByCode(ctx, code, " FOR UPDATE")
}

func (r *postgresRepository) getByCode(ctx context.Context, code, suffix string) (*Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1` + suffix

	var c Coupon
	var couponType string
	err := r.db.Conn(ctx).QueryRow(ctx, query, code).Scan(
		&c.ID,
		&c.Code,
		&c.Description,
		&couponType,
		&c.Value,
		&c.MinimumAmount,
		&c.MaximumDiscount,
		&c.UsageLimit,
		&c.UsedCount,
		&c.IsActive,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select coupon by code: %w", err)
	}
	c.Type = Type(couponType)

	return &c, nil
}

func (r *postgresRepository) ListActive(ctx context.Context, now time.Time) ([]Coupon, error) {
	query := `SELECT ` + couponColumns + `
		FROM coupons
		WHERE is_active AND valid_from <= $1 AND valid_until >= $1
		ORDER BY created_at DESC`

	coupons := make([]Coupon, 0)
	if err := r.db.Reports().SelectContext(ctx, &coupons, query, now); err != nil {
		return nil, fmt.Errorf("repository: failed to list active coupons: %w", err)
	}
	return coupons, nil
}

// Redeem counts one use, refusing once the usage limit is reached even when
// callers race.
func (r *postgresRepository) Redeem(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`
	tag, err := r.db.Conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("repository: failed to redeem coupon %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageReached
	}
	return nil
}

func (r *postgresRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM coupons`)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to delete coupons: %w", err)
	}
	return tag.RowsAffected(), nil
}
