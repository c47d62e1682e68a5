package coupon

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

func (t Type) Valid() bool {
	return t == TypePercentage || t == TypeFixed
}

type Coupon struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	Code            string           `json:"code" db:"code"`
	Description     string           `json:"description" db:"description"`
	Type            Type             `json:"coupon_type" db:"coupon_type"`
	Value           decimal.Decimal  `json:"value" db:"value"`
	MinimumAmount   *decimal.Decimal `json:"minimum_amount" db:"minimum_amount"`
	MaximumDiscount *decimal.Decimal `json:"maximum_discount" db:"maximum_discount"`
	UsageLimit      *int             `json:"usage_limit" db:"usage_limit"`
	UsedCount       int              `json:"used_count" db:"used_count"`
	IsActive        bool             `json:"is_active" db:"is_active"`
	ValidFrom       time.Time        `json:"valid_from" db:"valid_from"`
	ValidUntil      time.Time        `json:"valid_until" db:"valid_until"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// NormalizeCode maps user input onto the stored form of a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// IsValid reports whether the coupon can be redeemed at all at now:
// active, inside [ValidFrom, ValidUntil] and not exhausted.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.IsActive &&
		!now.Before(c.ValidFrom) &&
		!now.After(c.ValidUntil) &&
		!c.Exhausted()
}

func (c *Coupon) MeetsMinimum(amount decimal.Decimal) bool {
	return c.MinimumAmount == nil || !amount.LessThan(*c.MinimumAmount)
}

// Applicable gates redemption during checkout.
func (c *Coupon) Applicable(amount decimal.Decimal, now time.Time) bool {
	return c.IsValid(now) && c.MeetsMinimum(amount)
}

// Discount returns the reduction the coupon grants on amount, always within
// [0, amount] and rounded to cents. It has no side effects.
func (c *Coupon) Discount(amount decimal.Decimal, now time.Time) decimal.Decimal {
	if !amount.IsPositive() || !c.Applicable(amount, now) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		discount = amount.Mul(c.Value).Div(decimal.NewFromInt(100))
		if c.MaximumDiscount != nil && discount.GreaterThan(*c.MaximumDiscount) {
			discount = *c.MaximumDiscount
		}
	case TypeFixed:
		discount = c.Value
	default:
		return decimal.Zero
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	// Rounding happens before the cap; the cap is the amount truncated to
	// cents so the result stays in cents and never exceeds amount.
	discount = discount.Round(2)
	if limit := amount.Truncate(2); discount.GreaterThan(limit) {
		discount = limit
	}
	return discount
}

// Preview is the answer to a coupon check that does not redeem anything.
type Preview struct {
	Valid          bool            `json:"valid"`
	Error          string          `json:"error,omitempty"`
	Coupon         *Coupon         `json:"coupon,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}
