// Package coupon holds coupon rules, validity checks, and discount math.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the items total.
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountFixed applies a fixed monetary discount capped at the items total.
	DiscountFixed DiscountType = "FIXED"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponInactive is returned when a coupon exists but is disabled.
	ErrCouponInactive = errors.New("coupon is not active")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinPurchaseNotMet is returned when the items total is below the
	// coupon's minimum purchase amount.
	ErrMinPurchaseNotMet = errors.New("minimum purchase amount not met")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinPurchase  *decimal.Decimal
	MaxDiscount  *decimal.Decimal
	UsageLimit   int
	Uses         int
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	Active       bool
}

// Repository provides lookup and mutation of coupon rules.
//
// IncrementUses must be called inside the same storage transaction that
// commits the order using the coupon, so usage counts stay exact under
// concurrent checkouts.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}

// Validate checks every eligibility predicate of the rule against the items
// total at the given instant. Each failing predicate maps to its own sentinel
// error so callers can surface a specific rejection reason.
func Validate(rule *Rule, itemsTotal decimal.Decimal, at time.Time) error {
	if !rule.Active {
		return ErrCouponInactive
	}
	if rule.ValidFrom != nil && at.Before(*rule.ValidFrom) {
		return ErrCouponExpired
	}
	if rule.ValidUntil != nil && at.After(*rule.ValidUntil) {
		return ErrCouponExpired
	}
	if rule.UsageLimit > 0 && rule.Uses >= rule.UsageLimit {
		return ErrCouponUsageLimitReached
	}
	if rule.MinPurchase != nil && itemsTotal.LessThan(*rule.MinPurchase) {
		return ErrMinPurchaseNotMet
	}
	return nil
}
