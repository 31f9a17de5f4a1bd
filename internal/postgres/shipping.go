package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/stylino/fulfillment-core/internal/domain/shipping"
)

const getShippingMethodSQL = `SELECT id, name, cost, active
	FROM shipping_methods WHERE id = $1`

var _ shipping.Repository = (*ShippingRepository)(nil)

// ShippingRepository implements shipping.Repository backed by PostgreSQL.
type ShippingRepository struct {
	db Querier
}

// NewShippingRepository returns a ShippingRepository over the given querier.
func NewShippingRepository(db Querier) *ShippingRepository {
	return &ShippingRepository{db: db}
}

// GetByID returns the shipping method, or shipping.ErrMethodUnavailable when
// it does not exist.
func (r *ShippingRepository) GetByID(ctx context.Context, id string) (*shipping.Method, error) {
	var m shipping.Method
	err := r.db.QueryRow(ctx, getShippingMethodSQL, id).Scan(&m.ID, &m.Name, &m.Cost, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrMethodUnavailable
		}
		return nil, errors.Wrapf(err, "finding shipping method %q", id)
	}
	return &m, nil
}
