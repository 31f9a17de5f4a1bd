package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylino/fulfillment-core/internal/domain/catalog"
	"github.com/stylino/fulfillment-core/internal/domain/coupon"
	"github.com/stylino/fulfillment-core/internal/domain/shipping"
)

func testEngine() *Engine {
	return &Engine{now: func() time.Time {
		return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	}}
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testCatalog() map[string]catalog.Product {
	discounted := money(180000)
	return map[string]catalog.Product{
		"shirt": {
			ID:        "shirt",
			Name:      "Classic Cotton Shirt",
			BasePrice: money(200000),
			Variants: []catalog.Variant{
				{ID: "shirt-navy-l", Color: "navy", Size: "L", Price: money(210000)},
			},
		},
		"scarf": {
			ID:            "scarf",
			Name:          "Wool Scarf",
			BasePrice:     money(120000),
			DiscountPrice: &discounted,
		},
	}
}

func TestPrice(t *testing.T) {
	e := testEngine()

	t.Run("items with shipping and percentage coupon", func(t *testing.T) {
		rule := &coupon.Rule{
			Code:         "SAVE10",
			DiscountType: coupon.DiscountPercentage,
			Value:        money(10),
			Active:       true,
		}
		method := &shipping.Method{ID: "post", Cost: money(50000), Active: true}

		quote, err := e.Price(
			[]LineItem{{ProductID: "shirt", Quantity: 2}},
			testCatalog(), rule, method,
		)
		require.NoError(t, err)

		assert.True(t, money(400000).Equal(quote.ItemsTotal), "items total: %s", quote.ItemsTotal)
		assert.True(t, money(50000).Equal(quote.ShippingAmount))
		assert.True(t, money(40000).Equal(quote.DiscountAmount), "discount: %s", quote.DiscountAmount)
		assert.True(t, money(410000).Equal(quote.Total), "total: %s", quote.Total)

		require.Len(t, quote.Lines, 1)
		assert.Equal(t, "Classic Cotton Shirt", quote.Lines[0].ProductName)
		assert.True(t, money(200000).Equal(quote.Lines[0].UnitPrice))
		assert.True(t, money(400000).Equal(quote.Lines[0].TotalPrice))
	})

	t.Run("discount price wins over base price", func(t *testing.T) {
		quote, err := e.Price(
			[]LineItem{{ProductID: "scarf", Quantity: 1}},
			testCatalog(), nil, nil,
		)
		require.NoError(t, err)
		assert.True(t, money(180000).Equal(quote.ItemsTotal))
	})

	t.Run("variant price overrides product price", func(t *testing.T) {
		quote, err := e.Price(
			[]LineItem{{ProductID: "shirt", VariantID: "shirt-navy-l", Quantity: 1}},
			testCatalog(), nil, nil,
		)
		require.NoError(t, err)
		assert.True(t, money(210000).Equal(quote.Total))
	})

	t.Run("unknown variant fails", func(t *testing.T) {
		_, err := e.Price(
			[]LineItem{{ProductID: "shirt", VariantID: "nope", Quantity: 1}},
			testCatalog(), nil, nil,
		)
		var variantErr *catalog.VariantNotFoundError
		require.ErrorAs(t, err, &variantErr)
		assert.Equal(t, "nope", variantErr.VariantID)
	})

	t.Run("missing product fails", func(t *testing.T) {
		_, err := e.Price(
			[]LineItem{{ProductID: "ghost", Quantity: 1}},
			testCatalog(), nil, nil,
		)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("inactive shipping method fails", func(t *testing.T) {
		method := &shipping.Method{ID: "post", Cost: money(50000), Active: false}
		_, err := e.Price(
			[]LineItem{{ProductID: "shirt", Quantity: 1}},
			testCatalog(), nil, method,
		)
		assert.ErrorIs(t, err, shipping.ErrMethodUnavailable)
	})

	t.Run("ineligible coupon aborts the quote", func(t *testing.T) {
		rule := &coupon.Rule{
			Code:         "DEAD",
			DiscountType: coupon.DiscountPercentage,
			Value:        money(10),
			Active:       false,
		}
		_, err := e.Price(
			[]LineItem{{ProductID: "shirt", Quantity: 1}},
			testCatalog(), rule, nil,
		)
		assert.ErrorIs(t, err, coupon.ErrCouponInactive)
	})

	t.Run("discount never drives total negative", func(t *testing.T) {
		rule := &coupon.Rule{
			Code:         "HUGE",
			DiscountType: coupon.DiscountFixed,
			Value:        money(9999999),
			Active:       true,
		}
		quote, err := e.Price(
			[]LineItem{{ProductID: "scarf", Quantity: 1}},
			testCatalog(), rule, nil,
		)
		require.NoError(t, err)
		assert.True(t, quote.Total.GreaterThanOrEqual(decimal.Zero))
	})

	t.Run("duplicate product ids price independently", func(t *testing.T) {
		quote, err := e.Price(
			[]LineItem{
				{ProductID: "shirt", Quantity: 1},
				{ProductID: "shirt", VariantID: "shirt-navy-l", Quantity: 1},
			},
			testCatalog(), nil, nil,
		)
		require.NoError(t, err)
		require.Len(t, quote.Lines, 2)
		assert.True(t, money(410000).Equal(quote.ItemsTotal))
	})

	t.Run("same inputs give identical totals", func(t *testing.T) {
		items := []LineItem{{ProductID: "shirt", Quantity: 3}}
		first, err := e.Price(items, testCatalog(), nil, nil)
		require.NoError(t, err)
		second, err := e.Price(items, testCatalog(), nil, nil)
		require.NoError(t, err)
		assert.True(t, first.Total.Equal(second.Total))
	})
}
