// Package pricing computes line totals, shipping cost, coupon discount, and
// the final order total from catalog snapshots. All arithmetic uses
// shopspring/decimal, so repeated calls on the same inputs yield identical
// currency amounts.
package pricing

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/domain/catalog"
	"github.com/stylino/fulfillment-core/internal/domain/coupon"
	"github.com/stylino/fulfillment-core/internal/domain/shipping"
)

// moneyScale is the number of decimal places kept for monetary amounts.
const moneyScale = 2

// LineItem is one cart entry to be priced. VariantID is empty when the buyer
// ordered the plain product.
type LineItem struct {
	ProductID string
	VariantID string
	Quantity  int
}

// Line is a priced cart entry with the unit price captured at quote time.
type Line struct {
	ProductID   string
	VariantID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// Quote is the full pricing breakdown for a cart.
// Total = ItemsTotal + ShippingAmount - DiscountAmount, never negative.
type Quote struct {
	Lines          []Line
	ItemsTotal     decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// Engine prices carts. The clock is injectable for coupon validity tests.
type Engine struct {
	now func() time.Time
}

// NewEngine creates a pricing Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Price builds a Quote for the given items against already-fetched catalog
// snapshots. rule and method are optional; a non-nil rule is validated and
// applied, a non-nil method must be active.
//
// Duplicate product ids in items produce independent lines.
func (e *Engine) Price(
	items []LineItem,
	products map[string]catalog.Product,
	rule *coupon.Rule,
	method *shipping.Method,
) (*Quote, error) {
	lines := make([]Line, len(items))
	itemsTotal := decimal.Zero

	for i, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, catalog.ErrNotFound
		}

		unitPrice := p.UnitPrice()
		if item.VariantID != "" {
			v, ok := p.FindVariant(item.VariantID)
			if !ok {
				return nil, &catalog.VariantNotFoundError{
					ProductID: item.ProductID,
					VariantID: item.VariantID,
				}
			}
			unitPrice = v.Price
		}

		total := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(moneyScale)
		lines[i] = Line{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  total,
		}
		itemsTotal = itemsTotal.Add(total)
	}
	itemsTotal = itemsTotal.Round(moneyScale)

	shippingAmount := decimal.Zero
	if method != nil {
		if !method.Active {
			return nil, shipping.ErrMethodUnavailable
		}
		shippingAmount = method.Cost.Round(moneyScale)
	}

	discountAmount := decimal.Zero
	if rule != nil {
		if err := coupon.Validate(rule, itemsTotal, e.now()); err != nil {
			return nil, err
		}
		var err error
		discountAmount, err = coupon.Apply(rule, itemsTotal)
		if err != nil {
			return nil, errors.Wrap(err, "apply coupon")
		}
	}

	total := itemsTotal.Add(shippingAmount).Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &Quote{
		Lines:          lines,
		ItemsTotal:     itemsTotal,
		ShippingAmount: shippingAmount,
		DiscountAmount: discountAmount,
		Total:          total.Round(moneyScale),
	}, nil
}
