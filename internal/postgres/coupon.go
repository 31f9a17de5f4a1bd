package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, min_purchase, max_discount,
		usage_limit, uses, valid_from, valid_until, active
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1 WHERE code = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db Querier
}

// NewCouponRepository returns a CouponRepository over the given querier.
func NewCouponRepository(db Querier) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no such code exists; eligibility
// checks (active, window, usage) are the caller's concern.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.db.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "finding coupon by code %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrapf(err, "finding coupon by code %q", code)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the given coupon code.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	if _, err := r.db.Exec(ctx, incrementCouponUsesSQL, code); err != nil {
		return errors.Wrapf(err, "incrementing uses for coupon %q", code)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule        coupon.Rule
		discount    string
		minPurchase *decimal.Decimal
		maxDiscount *decimal.Decimal
		validFrom   *time.Time
		validUntil  *time.Time
	)
	err := row.Scan(
		&rule.Code, &discount, &rule.Value, &minPurchase, &maxDiscount,
		&rule.UsageLimit, &rule.Uses, &validFrom, &validUntil, &rule.Active,
	)
	rule.DiscountType = coupon.DiscountType(discount)
	rule.MinPurchase = minPurchase
	rule.MaxDiscount = maxDiscount
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	return rule, err
}
