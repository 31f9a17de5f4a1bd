package commission

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/domain/user"
)

// moneyScale is the number of decimal places kept for monetary amounts.
const moneyScale = 2

// Engine computes commission payouts. Both levels are computed from the
// original order amount, not compounded.
type Engine struct {
	level1Rate decimal.Decimal
	level2Rate decimal.Decimal
	now        func() time.Time
}

// NewEngine creates an Engine with the standard 10%/5% rates.
func NewEngine() *Engine {
	return &Engine{
		level1Rate: decimal.RequireFromString("0.10"),
		level2Rate: decimal.RequireFromString("0.05"),
		now:        time.Now,
	}
}

// Pay creates commissions for the buyer's referrer (level 1) and the
// referrer's referrer (level 2), returning the created records. A buyer with
// no referrer yields none.
//
// The traversal walks exactly two pointer hops by construction, never
// following the chain to exhaustion, so it stays correct even if the
// referral data contains a cycle. Callers invoke Pay at most once per order;
// exactly-once is enforced by the payment confirmation's PAID-state guard.
func (e *Engine) Pay(
	ctx context.Context,
	users user.Repository,
	repo Repository,
	buyerID, orderID string,
	amount decimal.Decimal,
) ([]Commission, error) {
	buyer, err := users.GetByID(ctx, buyerID)
	if err != nil {
		return nil, errors.Wrap(err, "get buyer")
	}
	if buyer.ReferredByID == nil {
		return nil, nil
	}

	level1, err := users.GetByID(ctx, *buyer.ReferredByID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get level 1 referrer")
	}

	created := make([]Commission, 0, 2)
	c1 := e.build(orderID, buyerID, level1.ID, 1, amount.Mul(e.level1Rate))
	if err := repo.Create(ctx, &c1); err != nil {
		return nil, errors.Wrap(err, "create level 1 commission")
	}
	created = append(created, c1)

	if level1.ReferredByID == nil {
		return created, nil
	}
	level2, err := users.GetByID(ctx, *level1.ReferredByID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return created, nil
		}
		return nil, errors.Wrap(err, "get level 2 referrer")
	}

	c2 := e.build(orderID, buyerID, level2.ID, 2, amount.Mul(e.level2Rate))
	if err := repo.Create(ctx, &c2); err != nil {
		return nil, errors.Wrap(err, "create level 2 commission")
	}
	created = append(created, c2)

	return created, nil
}

func (e *Engine) build(orderID, fromID, toID string, level int, amount decimal.Decimal) Commission {
	return Commission{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		FromUserID: fromID,
		ToUserID:   toID,
		Level:      level,
		Amount:     amount.Round(moneyScale),
		Status:     StatusPaid,
		CreatedAt:  e.now(),
	}
}
