package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/stylino/fulfillment-core/internal/domain/catalog"
	"github.com/stylino/fulfillment-core/internal/domain/coupon"
	"github.com/stylino/fulfillment-core/internal/domain/pricing"
	"github.com/stylino/fulfillment-core/internal/domain/shipping"
)

// Sentinel errors for order placement validation.
var (
	ErrEmptyItems = errors.New("items required")
	// ErrMissingContact is returned for guest checkouts lacking name, email,
	// or phone.
	ErrMissingContact = errors.New("buyer identity or complete guest contact info required")
	// ErrProductsUnavailable is returned when some requested products do not
	// exist or are inactive. It deliberately names no product.
	ErrProductsUnavailable = errors.New("some products are unavailable")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Tx is the transactional view of storage available while placing an order.
// Reads observe the transaction's own uncommitted writes.
type Tx interface {
	Products() catalog.Repository
	Stock() catalog.Ledger
	Coupons() coupon.Repository
	Shipping() shipping.Repository
	Orders() Repository
}

// TxStore runs a function inside one atomic storage transaction: either every
// write performed through the Tx commits, or none do. Implementations retry
// serialization conflicts, so fn may run more than once and must not carry
// side effects outside the Tx.
type TxStore interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// GuestInfo is the contact information required for guest checkout.
type GuestInfo struct {
	Name  string
	Email string
	Phone string
}

// PlaceOrderRequest holds the input for placing an order. CustomerID and
// Guest are mutually exclusive; exactly one must be provided.
type PlaceOrderRequest struct {
	CustomerID       string
	Guest            *GuestInfo
	Items            []pricing.LineItem
	CouponCode       string
	ShippingMethodID string
	AddressID        string
}

// Service is the order transaction coordinator. It prices the cart, reserves
// stock, burns coupon usage, and persists the order as one all-or-nothing
// unit.
type Service struct {
	store   TxStore
	pricing *pricing.Engine
	now     func() time.Time
}

// NewService creates an order Service over the given transactional store.
func NewService(store TxStore, engine *pricing.Engine) *Service {
	return &Service{
		store:   store,
		pricing: engine,
		now:     time.Now,
	}
}

// PlaceOrder validates the request and executes the order transaction.
// Any failure in pricing, coupon, stock, or persistence aborts the whole
// operation with no visible change.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.CustomerID == "" {
		if req.Guest == nil || req.Guest.Name == "" || req.Guest.Email == "" || req.Guest.Phone == "" {
			return nil, ErrMissingContact
		}
	}

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}

	var placed *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := s.placeInTx(ctx, tx, req)
		if err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (s *Service) placeInTx(ctx context.Context, tx Tx, req PlaceOrderRequest) (*Order, error) {
	// Batch fetch all referenced products. Duplicate ids collapse here but
	// stay independent line items.
	ids := uniqueProductIDs(req.Items)
	fetched, err := tx.Products().GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	if len(fetched) != len(ids) {
		return nil, ErrProductsUnavailable
	}
	products := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		products[p.ID] = p
	}

	var rule *coupon.Rule
	if req.CouponCode != "" {
		rule, err = tx.Coupons().FindByCode(ctx, req.CouponCode)
		if err != nil {
			return nil, err
		}
	}

	var method *shipping.Method
	if req.ShippingMethodID != "" {
		method, err = tx.Shipping().GetByID(ctx, req.ShippingMethodID)
		if err != nil {
			return nil, err
		}
	}

	quote, err := s.pricing.Price(req.Items, products, rule, method)
	if err != nil {
		return nil, err
	}

	// Reserve stock per line. The ledger checks and decrements atomically, so
	// a concurrent order racing for the last unit fails exactly here.
	for _, line := range quote.Lines {
		err := tx.Stock().Reserve(ctx, catalog.Reservation{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		})
		if err != nil {
			return nil, err
		}
	}

	// Burn coupon usage inside the same transaction as the stock decrement so
	// the usage cap holds under concurrency.
	if rule != nil {
		if err := tx.Coupons().IncrementUses(ctx, rule.Code); err != nil {
			return nil, errors.Wrap(err, "increment coupon uses")
		}
	}

	o := buildOrder(req, quote, s.now())
	if err := tx.Orders().Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

func buildOrder(req PlaceOrderRequest, quote *pricing.Quote, at time.Time) *Order {
	o := &Order{
		ID:               uuid.New().String(),
		ItemsTotal:       quote.ItemsTotal,
		ShippingAmount:   quote.ShippingAmount,
		DiscountAmount:   quote.DiscountAmount,
		TotalAmount:      quote.Total,
		Status:           StatusPending,
		PaymentStatus:    PaymentUnpaid,
		CouponCode:       req.CouponCode,
		ShippingMethodID: req.ShippingMethodID,
		AddressID:        req.AddressID,
		CreatedAt:        at,
	}
	if req.CustomerID != "" {
		id := req.CustomerID
		o.CustomerID = &id
	} else {
		o.GuestName = req.Guest.Name
		o.GuestEmail = req.Guest.Email
		o.GuestPhone = req.Guest.Phone
	}

	o.Items = make([]Item, len(quote.Lines))
	for i, line := range quote.Lines {
		o.Items[i] = Item{
			ID:          uuid.New().String(),
			OrderID:     o.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  line.TotalPrice,
		}
	}
	return o
}

func uniqueProductIDs(items []pricing.LineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
