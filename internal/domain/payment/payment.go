// Package payment coordinates payment confirmation: the exactly-once
// UNPAID to PAID transition, the payment transaction record, and the
// commission fan-out it triggers.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/domain/commission"
	"github.com/stylino/fulfillment-core/internal/domain/order"
	"github.com/stylino/fulfillment-core/internal/domain/user"
)

// ErrForbidden is returned when the requester is neither an admin nor the
// order's own buyer.
var ErrForbidden = errors.New("not the owner of this order")

// StatusSuccess marks a successful payment transaction record.
const StatusSuccess = "SUCCESS"

// Transaction is an append-only record of one successful payment
// confirmation.
type Transaction struct {
	ID        string
	OrderID   string
	Authority string
	RefID     string
	Gateway   string
	Amount    decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// Repository defines persistence operations for payment transactions.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
}

// Tx is the transactional view of storage available while confirming a
// payment.
type Tx interface {
	Orders() order.Repository
	Payments() Repository
	Commissions() commission.Repository
	Users() user.Repository
}

// TxStore runs a function inside one atomic storage transaction. Two
// confirmations racing on the same order must serialize: one commits the
// PAID transition, the other re-runs against the committed state and
// observes PAID.
type TxStore interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// InitiateResult is the outcome of starting a payment attempt at the gateway.
type InitiateResult struct {
	Authority  string
	PaymentURL string
}

// VerifyResult is the gateway's verdict on a payment attempt.
type VerifyResult struct {
	Success bool
	Code    int
	Message string
	RefID   string
	CardPan string
	Fee     *decimal.Decimal
}

// Gateway is the external payment provider contract consumed by the
// confirmation coordinator. Implementations translate provider failures into
// their own gateway-error kind, distinct from validation errors.
type Gateway interface {
	Name() string
	Initiate(ctx context.Context, orderID string, amount decimal.Decimal, description, email, mobile string) (*InitiateResult, error)
	Verify(ctx context.Context, authority string, amount decimal.Decimal, orderID string) (*VerifyResult, error)
}
