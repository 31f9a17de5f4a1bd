package postgres

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/stylino/fulfillment-core/internal/domain/payment"
)

const createPaymentTransactionSQL = `INSERT INTO payment_transactions
	(id, order_id, authority, ref_id, gateway, amount, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	db Querier
}

// NewPaymentRepository returns a PaymentRepository over the given querier.
func NewPaymentRepository(db Querier) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create appends a payment transaction record.
func (r *PaymentRepository) Create(ctx context.Context, t *payment.Transaction) error {
	_, err := r.db.Exec(ctx, createPaymentTransactionSQL,
		t.ID, t.OrderID, t.Authority, t.RefID, t.Gateway, t.Amount, t.Status,
	)
	if err != nil {
		return errors.Wrapf(err, "creating payment transaction for order %q", t.OrderID)
	}
	return nil
}
