package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	fixedNow := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)
	minPurchase := decimal.NewFromInt(500000)

	active := func(mutate func(*Rule)) *Rule {
		r := &Rule{
			Code:         "SAVE10",
			DiscountType: DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			Active:       true,
		}
		if mutate != nil {
			mutate(r)
		}
		return r
	}

	tests := []struct {
		name       string
		rule       *Rule
		itemsTotal decimal.Decimal
		wantErr    error
	}{
		{
			name:       "active rule with no constraints passes",
			rule:       active(nil),
			itemsTotal: decimal.NewFromInt(100000),
		},
		{
			name:       "inactive rule rejected",
			rule:       active(func(r *Rule) { r.Active = false }),
			itemsTotal: decimal.NewFromInt(100000),
			wantErr:    ErrCouponInactive,
		},
		{
			name:       "not yet valid rejected as expired",
			rule:       active(func(r *Rule) { r.ValidFrom = &futureTime }),
			itemsTotal: decimal.NewFromInt(100000),
			wantErr:    ErrCouponExpired,
		},
		{
			name:       "past validity window rejected",
			rule:       active(func(r *Rule) { r.ValidUntil = &pastTime }),
			itemsTotal: decimal.NewFromInt(100000),
			wantErr:    ErrCouponExpired,
		},
		{
			name: "usage limit exhausted",
			rule: active(func(r *Rule) {
				r.UsageLimit = 5
				r.Uses = 5
			}),
			itemsTotal: decimal.NewFromInt(100000),
			wantErr:    ErrCouponUsageLimitReached,
		},
		{
			name: "one use left still passes",
			rule: active(func(r *Rule) {
				r.UsageLimit = 5
				r.Uses = 4
			}),
			itemsTotal: decimal.NewFromInt(100000),
		},
		{
			name:       "zero usage limit means unlimited",
			rule:       active(func(r *Rule) { r.Uses = 1000 }),
			itemsTotal: decimal.NewFromInt(100000),
		},
		{
			name:       "below minimum purchase rejected",
			rule:       active(func(r *Rule) { r.MinPurchase = &minPurchase }),
			itemsTotal: decimal.NewFromInt(499999),
			wantErr:    ErrMinPurchaseNotMet,
		},
		{
			name:       "exactly minimum purchase passes",
			rule:       active(func(r *Rule) { r.MinPurchase = &minPurchase }),
			itemsTotal: decimal.NewFromInt(500000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule, tt.itemsTotal, fixedNow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
