package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/stylino/fulfillment-core/internal/domain/commission"
)

const (
	createCommissionSQL = `INSERT INTO commissions
		(id, order_id, from_user_id, to_user_id, level, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listCommissionsForUserSQL = `SELECT id, order_id, from_user_id, to_user_id,
		level, amount, status, created_at
		FROM commissions WHERE to_user_id = $1 ORDER BY created_at DESC`
)

var _ commission.Repository = (*CommissionRepository)(nil)

// CommissionRepository implements commission.Repository backed by PostgreSQL.
type CommissionRepository struct {
	db Querier
}

// NewCommissionRepository returns a CommissionRepository over the given querier.
func NewCommissionRepository(db Querier) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// Create persists a commission record.
func (r *CommissionRepository) Create(ctx context.Context, c *commission.Commission) error {
	_, err := r.db.Exec(ctx, createCommissionSQL,
		c.ID, c.OrderID, c.FromUserID, c.ToUserID, c.Level, c.Amount, c.Status, c.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "creating commission for order %q", c.OrderID)
	}
	return nil
}

// ListForUser returns commissions payable to the given user, newest first.
func (r *CommissionRepository) ListForUser(ctx context.Context, userID string) ([]commission.Commission, error) {
	rows, err := r.db.Query(ctx, listCommissionsForUserSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query commissions")
	}
	list, err := pgx.CollectRows(rows, scanCommission)
	if err != nil {
		return nil, errors.Wrap(err, "scan commissions")
	}
	return list, nil
}

func scanCommission(row pgx.CollectableRow) (commission.Commission, error) {
	var c commission.Commission
	err := row.Scan(&c.ID, &c.OrderID, &c.FromUserID, &c.ToUserID, &c.Level, &c.Amount, &c.Status, &c.CreatedAt)
	return c, err
}
