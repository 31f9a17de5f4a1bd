package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stylino/fulfillment-core/internal/domain/catalog"
)

const (
	reserveProductStockSQL = `UPDATE products SET stock = stock - $1
		WHERE id = $2 AND stock >= $1`

	reserveVariantStockSQL = `UPDATE product_variants SET stock = stock - $1
		WHERE id = $2 AND product_id = $3 AND stock >= $1`
)

var _ catalog.Ledger = (*StockLedger)(nil)

// StockLedger implements catalog.Ledger with a conditional UPDATE: the stock
// check and the decrement are a single statement, so concurrent orders can
// never both claim the last unit regardless of isolation level.
type StockLedger struct {
	db Querier
}

// NewStockLedger returns a StockLedger over the given querier.
func NewStockLedger(db Querier) *StockLedger {
	return &StockLedger{db: db}
}

// Reserve decrements the variant- or product-level stock counter, failing
// with catalog.InsufficientStockError when not enough units remain.
func (l *StockLedger) Reserve(ctx context.Context, res catalog.Reservation) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if res.VariantID != "" {
		tag, err = l.db.Exec(ctx, reserveVariantStockSQL, res.Quantity, res.VariantID, res.ProductID)
	} else {
		tag, err = l.db.Exec(ctx, reserveProductStockSQL, res.Quantity, res.ProductID)
	}
	if err != nil {
		return errors.Wrapf(err, "reserve stock for product %s", res.ProductID)
	}
	if tag.RowsAffected() == 0 {
		return &catalog.InsufficientStockError{
			ProductID: res.ProductID,
			VariantID: res.VariantID,
			Requested: res.Quantity,
		}
	}
	return nil
}
