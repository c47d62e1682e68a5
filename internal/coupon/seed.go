package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type seedSpec struct {
	code        string
	description string
	kind        Type
	value       int64
	minimum     int64
	maxDiscount int64
	usageLimit  int
	days        int
}

var sampleCoupons = []seedSpec{
	{"WELCOME10", "Welcome discount - 10% off your first order", TypePercentage, 10, 50, 25, 100, 30},
	{"SAVE20", "Save $20 on orders over $100", TypeFixed, 20, 100, 0, 50, 60},
	{"FREESHIP", "Free shipping on orders over $75", TypeFixed, 15, 75, 15, 200, 90},
	{"HOLIDAY25", "Holiday special - 25% off", TypePercentage, 25, 200, 100, 25, 14},
	{"STUDENT15", "Student discount - 15% off", TypePercentage, 15, 30, 0, 500, 365},
}

// SampleCoupons returns the demo coupons, valid from now.
func SampleCoupons(now time.Time) []Coupon {
	coupons := make([]Coupon, 0, len(sampleCoupons))
	for _, s := range sampleCoupons {
		minimum := decimal.NewFromInt(s.minimum)
		limit := s.usageLimit
		c := Coupon{
			Code:          s.code,
			Description:   s.description,
			Type:          s.kind,
			Value:         decimal.NewFromInt(s.value),
			MinimumAmount: &minimum,
			UsageLimit:    &limit,
			IsActive:      true,
			ValidFrom:     now,
			ValidUntil:    now.AddDate(0, 0, s.days),
		}
		if s.maxDiscount > 0 {
			maxDiscount := decimal.NewFromInt(s.maxDiscount)
			c.MaximumDiscount = &maxDiscount
		}
		coupons = append(coupons, c)
	}
	return coupons
}

type SeedResult struct {
	Deleted int64
	Created []string
	Skipped []string
}

// Seed inserts the sample coupons, leaving codes that already exist alone.
// With clearFirst set every coupon is removed first.
func Seed(ctx context.Context, repo Repository, clearFirst bool, now time.Time) (*SeedResult, error) {
	res := &SeedResult{}
	if clearFirst {
		n, err := repo.DeleteAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed: failed to clear coupons: %w", err)
		}
		res.Deleted = n
		log.Info().Int64("deleted", n).Msg("Existing coupons removed")
	}

	for _, c := range SampleCoupons(now) {
		created, err := repo.CreateIfAbsent(ctx, &c)
		if err != nil {
			return nil, fmt.Errorf("seed: failed to create coupon %s: %w", c.Code, err)
		}
		if created {
			log.Info().Str("code", c.Code).Msg("Coupon created")
			res.Created = append(res.Created, c.Code)
			continue
		}
		log.Info().Str("code", c.Code).Msg("Coupon already exists, skipped")
		res.Skipped = append(res.Skipped, c.Code)
	}
	return res, nil
}
