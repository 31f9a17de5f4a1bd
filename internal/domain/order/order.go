// Package order holds the order model and the transaction coordinator that
// turns a cart into a priced, stock-checked, persisted order.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the overall order lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
)

// PaymentStatus is the payment lifecycle state of an order.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
	PaymentFailed PaymentStatus = "FAILED"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrAlreadyPaid signals that a paid order cannot leave the PAID state.
var ErrAlreadyPaid = errors.New("order already paid")

// GatewayDetails carries gateway-supplied payment fields merged into an order
// when its payment is confirmed.
type GatewayDetails struct {
	Authority string
	RefID     string
	CardPan   string
	Fee       *decimal.Decimal
	Gateway   string
	Message   string
}

// Order is a customer (or guest) order. Monetary totals satisfy
// TotalAmount = ItemsTotal + ShippingAmount - DiscountAmount and are
// immutable once PaymentStatus is PAID.
type Order struct {
	ID         string
	CustomerID *string

	// Guest contact fields, required when CustomerID is nil.
	GuestName  string
	GuestEmail string
	GuestPhone string

	Items []Item

	ItemsTotal     decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal

	Status        Status
	PaymentStatus PaymentStatus

	CouponCode       string
	ShippingMethodID string
	AddressID        string

	Authority      string
	RefID          string
	CardPan        string
	Fee            *decimal.Decimal
	PaymentGateway string
	PaymentMessage string

	CreatedAt time.Time
}

// Item is a single order line. The unit price is captured at order time and
// never recomputed, even if the catalog price changes later.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	VariantID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// MarkPaid transitions the order to the PAID state, merging in any
// gateway-supplied details. PAID is absorbing: calling MarkPaid on an
// already-paid order returns ErrAlreadyPaid, which callers treat as the
// idempotent short-circuit signal.
func (o *Order) MarkPaid(details *GatewayDetails) error {
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	o.Status = StatusPaid
	o.PaymentStatus = PaymentPaid
	if details != nil {
		if details.Authority != "" {
			o.Authority = details.Authority
		}
		if details.RefID != "" {
			o.RefID = details.RefID
		}
		if details.CardPan != "" {
			o.CardPan = details.CardPan
		}
		if details.Fee != nil {
			o.Fee = details.Fee
		}
		if details.Gateway != "" {
			o.PaymentGateway = details.Gateway
		}
		if details.Message != "" {
			o.PaymentMessage = details.Message
		}
	}
	return nil
}

// MarkFailed records a failed or canceled payment attempt. Paid orders are
// untouchable.
func (o *Order) MarkFailed(message string) error {
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	o.Status = StatusCanceled
	o.PaymentStatus = PaymentFailed
	o.PaymentMessage = message
	return nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order and its items in one shot.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByAuthority(ctx context.Context, authority string) (*Order, error)
	ListForCustomer(ctx context.Context, customerID string) ([]Order, error)
	// UpdatePayment persists the order's payment state and gateway fields.
	UpdatePayment(ctx context.Context, o *Order) error
	// SetAuthority records the gateway authority handed out for a payment attempt.
	SetAuthority(ctx context.Context, id, authority, gateway string) error
}
