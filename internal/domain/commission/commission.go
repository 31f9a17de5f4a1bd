// Package commission computes and records referral commissions for paid
// orders across a two-level referrer chain.
package commission

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StatusPaid marks a commission as settled. Commissions are created already
// settled in this design.
const StatusPaid = "PAID"

// Commission is a payout owed to a referrer for a paid order placed by a
// user they referred, directly (level 1) or one hop further (level 2).
type Commission struct {
	ID         string
	OrderID    string
	FromUserID string
	ToUserID   string
	Level      int
	Amount     decimal.Decimal
	Status     string
	CreatedAt  time.Time
}

// Repository defines persistence operations for commissions.
type Repository interface {
	Create(ctx context.Context, c *Commission) error
	ListForUser(ctx context.Context, userID string) ([]Commission, error)
}
