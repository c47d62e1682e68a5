package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
)

const (
	msgNotFound       = "Coupon not found"
	msgInvalidExpired = "Invalid or expired coupon"
)

type Service interface {
	Create(ctx context.Context, c *Coupon) (*Coupon, error)
	ListActive(ctx context.Context) ([]Coupon, error)
	Validate(ctx context.Context, code string, amount decimal.Decimal) (*Preview, error)
	// Redeem evaluates code against subtotal and counts a use when it
	// grants a discount. It must run inside the checkout transaction.
	// An unknown, invalid or exhausted code yields a zero discount and an
	// empty applied code, never an error.
	Redeem(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, string, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// NewServiceWithClock pins the evaluation time.
func NewServiceWithClock(repo Repository, now func() time.Time) Service {
	return &service{repo: repo, now: now}
}

func (s *service) Create(ctx context.Context, c *Coupon) (*Coupon, error) {
	c.Code = NormalizeCode(c.Code)

	fields := apperror.FieldErrors{}
	if c.Code == "" {
		fields["code"] = "cannot be empty"
	}
	if !c.Type.Valid() {
		fields["coupon_type"] = "must be percentage or fixed"
	}
	if c.Value.IsNegative() {
		fields["value"] = "cannot be negative"
	}
	if c.Type == TypePercentage && c.Value.GreaterThan(decimal.NewFromInt(100)) {
		fields["value"] = "percentage cannot exceed 100"
	}
	if c.MinimumAmount != nil && c.MinimumAmount.IsNegative() {
		fields["minimum_amount"] = "cannot be negative"
	}
	if c.MaximumDiscount != nil && c.MaximumDiscount.IsNegative() {
		fields["maximum_discount"] = "cannot be negative"
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		fields["usage_limit"] = "cannot be negative"
	}
	if !c.ValidUntil.After(c.ValidFrom) {
		fields["valid_until"] = "must be after valid_from"
	}
	if len(fields) > 0 {
		return nil, fields
	}

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCodeExists) {
			log.Warn().Str("code", c.Code).Msg("service: coupon code already exists")
			return nil, ErrCodeExists
		}
		log.Error().Err(err).Msg("service: failed to create coupon in repository")
		return nil, fmt.Errorf("service: failed to create coupon: %w", err)
	}

	log.Info().Stringer("coupon_id", c.ID).Str("code", c.Code).Msg("service: coupon created")
	return c, nil
}

func (s *service) ListActive(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list active coupons")
		return nil, fmt.Errorf("service: failed to list active coupons: %w", err)
	}
	return coupons, nil
}

func (s *service) Validate(ctx context.Context, code string, amount decimal.Decimal) (*Preview, error) {
	if amount.IsNegative() {
		return nil, apperror.Validation("order_amount", "cannot be negative")
	}

	c, err := s.repo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Preview{Valid: false, Error: msgNotFound, DiscountAmount: decimal.Zero, FinalAmount: amount}, nil
		}
		log.Error().Err(err).Msg("service: failed to look up coupon")
		return nil, fmt.Errorf("service: failed to look up coupon: %w", err)
	}

	now := s.now()
	preview := &Preview{Coupon: c, DiscountAmount: decimal.Zero, FinalAmount: amount}
	switch {
	case !c.IsValid(now):
		preview.Error = msgInvalidExpired
	case !c.MeetsMinimum(amount):
		preview.Error = fmt.Sprintf("Minimum order amount of $%s required for this coupon", c.MinimumAmount.StringFixed(2))
	default:
		preview.Valid = true
		preview.DiscountAmount = c.Discount(amount, now)
		preview.FinalAmount = amount.Sub(preview.DiscountAmount)
	}

	return preview, nil
}

func (s *service) Redeem(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, string, error) {
	code = NormalizeCode(code)
	if code == "" {
		return decimal.Zero, "", nil
	}

	c, err := s.repo.GetByCodeForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info().Str("code", code).Msg("service: unknown coupon ignored at checkout")
			return decimal.Zero, "", nil
		}
		return decimal.Zero, "", fmt.Errorf("service: failed to load coupon: %w", err)
	}

	now := s.now()
	if !c.Applicable(subtotal, now) {
		return decimal.Zero, "", nil
	}

	discount := c.Discount(subtotal, now)
	if err := s.repo.Redeem(ctx, c.ID); err != nil {
		if errors.Is(err, ErrUsageReached) {
			log.Warn().Str("code", code).Msg("service: coupon exhausted during checkout")
			return decimal.Zero, "", nil
		}
		return decimal.Zero, "", fmt.Errorf("service: failed to redeem coupon: %w", err)
	}

	log.Info().Str("code", code).Str("discount", discount.StringFixed(2)).Msg("service: coupon redeemed")
	return discount, c.Code, nil
}
