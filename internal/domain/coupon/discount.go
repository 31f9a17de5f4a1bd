package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// moneyScale is the number of decimal places kept for monetary amounts.
const moneyScale = 2

// Apply calculates the discount amount for the given rule and items total.
// Percentage discounts are capped at the rule's MaxDiscount when present, and
// any discount is capped at the items total so an order can never go negative.
//
// Apply performs no eligibility checks; callers run Validate first.
func Apply(rule *Rule, itemsTotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal

	switch rule.DiscountType {
	case DiscountPercentage:
		amount = itemsTotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount != nil && amount.GreaterThan(*rule.MaxDiscount) {
			amount = *rule.MaxDiscount
		}
	case DiscountFixed:
		amount = rule.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	amount = decimal.Min(amount, itemsTotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(moneyScale), nil
}
