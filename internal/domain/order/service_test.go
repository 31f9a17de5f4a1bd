package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/stylino/fulfillment-core/internal/domain/catalog"
	"github.com/stylino/fulfillment-core/internal/domain/coupon"
	"github.com/stylino/fulfillment-core/internal/domain/pricing"
	"github.com/stylino/fulfillment-core/internal/domain/shipping"
)

// memTx is an in-memory Tx implementation. memStore counts transactions and
// discards writes when fn fails, mirroring rollback.
type memTx struct {
	products map[string]catalog.Product
	stock    map[string]int // keyed by productID or productID/variantID
	coupons  map[string]*coupon.Rule
	shipping map[string]*shipping.Method

	created        []*Order
	couponUses     map[string]int
	productsErr    error
	createOrderErr error
}

func (t *memTx) Products() catalog.Repository { return (*memProducts)(t) }
func (t *memTx) Stock() catalog.Ledger        { return (*memStock)(t) }
func (t *memTx) Coupons() coupon.Repository   { return (*memCoupons)(t) }
func (t *memTx) Shipping() shipping.Repository {
	return (*memShipping)(t)
}
func (t *memTx) Orders() Repository { return (*memOrders)(t) }

type memProducts memTx

func (m *memProducts) GetActiveByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	if m.productsErr != nil {
		return nil, m.productsErr
	}
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memStock memTx

func (m *memStock) Reserve(_ context.Context, res catalog.Reservation) error {
	key := res.ProductID
	if res.VariantID != "" {
		key = res.ProductID + "/" + res.VariantID
	}
	if m.stock[key] < res.Quantity {
		return &catalog.InsufficientStockError{
			ProductID: res.ProductID,
			VariantID: res.VariantID,
			Requested: res.Quantity,
		}
	}
	m.stock[key] -= res.Quantity
	return nil
}

type memCoupons memTx

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	r, ok := m.coupons[code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return r, nil
}

func (m *memCoupons) IncrementUses(_ context.Context, code string) error {
	m.couponUses[code]++
	return nil
}

type memShipping memTx

func (m *memShipping) GetByID(_ context.Context, id string) (*shipping.Method, error) {
	s, ok := m.shipping[id]
	if !ok {
		return nil, shipping.ErrMethodUnavailable
	}
	return s, nil
}

type memOrders memTx

func (m *memOrders) Create(_ context.Context, o *Order) error {
	if m.createOrderErr != nil {
		return m.createOrderErr
	}
	m.created = append(m.created, o)
	return nil
}

func (m *memOrders) GetByID(context.Context, string) (*Order, error) { return nil, ErrNotFound }
func (m *memOrders) GetByAuthority(context.Context, string) (*Order, error) {
	return nil, ErrNotFound
}
func (m *memOrders) ListForCustomer(context.Context, string) ([]Order, error) { return nil, nil }
func (m *memOrders) UpdatePayment(context.Context, *Order) error              { return nil }
func (m *memOrders) SetAuthority(context.Context, string, string, string) error {
	return nil
}

// memStore runs fn against the tx and snapshots state for rollback when fn
// fails. Transactions serialize on a mutex the way the real store serializes
// conflicting serializable transactions.
type memStore struct {
	mu      sync.Mutex
	tx      *memTx
	txCount int
}

func (s *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	stockBefore := make(map[string]int, len(s.tx.stock))
	for k, v := range s.tx.stock {
		stockBefore[k] = v
	}
	usesBefore := make(map[string]int, len(s.tx.couponUses))
	for k, v := range s.tx.couponUses {
		usesBefore[k] = v
	}
	createdBefore := len(s.tx.created)

	if err := fn(s.tx); err != nil {
		s.tx.stock = stockBefore
		s.tx.couponUses = usesBefore
		s.tx.created = s.tx.created[:createdBefore]
		return err
	}
	return nil
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newFixture() (*Service, *memTx, *memStore) {
	discounted := money(180000)
	tx := &memTx{
		products: map[string]catalog.Product{
			"shirt": {
				ID:        "shirt",
				Name:      "Classic Cotton Shirt",
				BasePrice: money(200000),
				Variants: []catalog.Variant{
					{ID: "shirt-navy-l", Price: money(210000)},
				},
			},
			"scarf": {
				ID:            "scarf",
				Name:          "Wool Scarf",
				BasePrice:     money(120000),
				DiscountPrice: &discounted,
			},
		},
		stock: map[string]int{
			"shirt":              5,
			"shirt/shirt-navy-l": 2,
			"scarf":              10,
		},
		coupons: map[string]*coupon.Rule{
			"SAVE10": {
				Code:         "SAVE10",
				DiscountType: coupon.DiscountPercentage,
				Value:        money(10),
				Active:       true,
			},
		},
		shipping: map[string]*shipping.Method{
			"post": {ID: "post", Name: "Standard Post", Cost: money(50000), Active: true},
		},
		couponUses: make(map[string]int),
	}
	store := &memStore{tx: tx}
	svc := NewService(store, pricing.NewEngine())
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc, tx, store
}

func TestPlaceOrderValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty items", func(t *testing.T) {
		svc, _, store := newFixture()
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{CustomerID: "buyer"})
		assert.ErrorIs(t, err, ErrEmptyItems)
		assert.Zero(t, store.txCount, "validation failures never open a transaction")
	})

	t.Run("guest without contact info", func(t *testing.T) {
		svc, _, _ := newFixture()
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			Items: []pricing.LineItem{{ProductID: "shirt", Quantity: 1}},
			Guest: &GuestInfo{Name: "G", Email: "g@example.com"},
		})
		assert.ErrorIs(t, err, ErrMissingContact)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		svc, _, _ := newFixture()
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "buyer",
			Items:      []pricing.LineItem{{ProductID: "shirt", Quantity: 0}},
		})
		var qtyErr *InvalidQuantityError
		require.ErrorAs(t, err, &qtyErr)
		assert.Equal(t, "shirt", qtyErr.ProductID)
	})
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("full checkout with coupon and shipping", func(t *testing.T) {
		svc, tx, _ := newFixture()
		o, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID:       "buyer",
			Items:            []pricing.LineItem{{ProductID: "shirt", Quantity: 2}},
			CouponCode:       "SAVE10",
			ShippingMethodID: "post",
		})
		require.NoError(t, err)

		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, PaymentUnpaid, o.PaymentStatus)
		require.NotNil(t, o.CustomerID)
		assert.Equal(t, "buyer", *o.CustomerID)

		assert.True(t, money(400000).Equal(o.ItemsTotal))
		assert.True(t, money(50000).Equal(o.ShippingAmount))
		assert.True(t, money(40000).Equal(o.DiscountAmount))
		assert.True(t, money(410000).Equal(o.TotalAmount))

		require.Len(t, o.Items, 1)
		assert.Equal(t, "Classic Cotton Shirt", o.Items[0].ProductName)
		assert.Equal(t, o.ID, o.Items[0].OrderID)

		assert.Equal(t, 3, tx.stock["shirt"], "stock decremented")
		assert.Equal(t, 1, tx.couponUses["SAVE10"], "coupon burned in same tx")
		require.Len(t, tx.created, 1)
	})

	t.Run("guest checkout", func(t *testing.T) {
		svc, _, _ := newFixture()
		o, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			Guest: &GuestInfo{Name: "Guest", Email: "guest@example.com", Phone: "0912"},
			Items: []pricing.LineItem{{ProductID: "scarf", Quantity: 1}},
		})
		require.NoError(t, err)
		assert.Nil(t, o.CustomerID)
		assert.Equal(t, "Guest", o.GuestName)
		assert.True(t, money(180000).Equal(o.TotalAmount), "discount price used")
	})

	t.Run("unknown product aborts without naming it", func(t *testing.T) {
		svc, tx, _ := newFixture()
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "buyer",
			Items: []pricing.LineItem{
				{ProductID: "shirt", Quantity: 1},
				{ProductID: "ghost", Quantity: 1},
			},
		})
		assert.ErrorIs(t, err, ErrProductsUnavailable)
		assert.NotContains(t, err.Error(), "ghost")
		assert.Equal(t, 5, tx.stock["shirt"], "no partial reservation")
	})

	t.Run("insufficient stock rolls back everything", func(t *testing.T) {
		svc, tx, _ := newFixture()
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "buyer",
			Items: []pricing.LineItem{
				{ProductID: "scarf", Quantity: 1},
				{ProductID: "shirt", Quantity: 6},
			},
			CouponCode: "SAVE10",
		})
		var stockErr *catalog.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "shirt", stockErr.ProductID)

		assert.Equal(t, 10, tx.stock["scarf"], "earlier line rolled back")
		assert.Zero(t, tx.couponUses["SAVE10"], "coupon usage rolled back")
		assert.Empty(t, tx.created)
	})

	t.Run("variant stock tracked separately", func(t *testing.T) {
		svc, tx, _ := newFixture()
		o, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "buyer",
			Items:      []pricing.LineItem{{ProductID: "shirt", VariantID: "shirt-navy-l", Quantity: 2}},
		})
		require.NoError(t, err)
		assert.True(t, money(420000).Equal(o.TotalAmount), "variant price used")
		assert.Equal(t, 0, tx.stock["shirt/shirt-navy-l"])
		assert.Equal(t, 5, tx.stock["shirt"], "product counter untouched")
	})

	t.Run("invalid coupon aborts before reserving", func(t *testing.T) {
		svc, tx, _ := newFixture()
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "buyer",
			Items:      []pricing.LineItem{{ProductID: "shirt", Quantity: 1}},
			CouponCode: "BOGUS",
		})
		assert.ErrorIs(t, err, coupon.ErrInvalidCoupon)
		assert.Equal(t, 5, tx.stock["shirt"])
	})

	t.Run("persistence failure rolls back stock", func(t *testing.T) {
		svc, tx, _ := newFixture()
		tx.createOrderErr = assert.AnError
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "buyer",
			Items:      []pricing.LineItem{{ProductID: "shirt", Quantity: 1}},
		})
		require.Error(t, err)
		assert.Equal(t, 5, tx.stock["shirt"])
		assert.Empty(t, tx.created)
	})

	t.Run("sequential orders drain stock to exactly zero", func(t *testing.T) {
		svc, tx, _ := newFixture()
		for range 5 {
			_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
				CustomerID: "buyer",
				Items:      []pricing.LineItem{{ProductID: "shirt", Quantity: 1}},
			})
			require.NoError(t, err)
		}
		assert.Equal(t, 0, tx.stock["shirt"])

		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "buyer",
			Items:      []pricing.LineItem{{ProductID: "shirt", Quantity: 1}},
		})
		var stockErr *catalog.InsufficientStockError
		assert.ErrorAs(t, err, &stockErr)
	})

	t.Run("racing buyers of the last unit", func(t *testing.T) {
		svc, tx, _ := newFixture()
		tx.stock["shirt"] = 1

		var (
			mu        sync.Mutex
			placed    int
			conflicts int
		)
		var g errgroup.Group
		for range 8 {
			g.Go(func() error {
				_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
					CustomerID: "buyer",
					Items:      []pricing.LineItem{{ProductID: "shirt", Quantity: 1}},
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					placed++
					return nil
				}
				var stockErr *catalog.InsufficientStockError
				if !errors.As(err, &stockErr) {
					return err
				}
				conflicts++
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, 1, placed, "exactly one buyer gets the last unit")
		assert.Equal(t, 7, conflicts, "everyone else sees a stock conflict")
		assert.Equal(t, 0, tx.stock["shirt"])
		require.Len(t, tx.created, 1)
	})
}
