// Package postgres implements the domain repositories and transactional
// stores on PostgreSQL via pgx.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stylino/fulfillment-core/db"
	"github.com/stylino/fulfillment-core/internal/domain/catalog"
	"github.com/stylino/fulfillment-core/internal/domain/commission"
	"github.com/stylino/fulfillment-core/internal/domain/coupon"
	"github.com/stylino/fulfillment-core/internal/domain/order"
	"github.com/stylino/fulfillment-core/internal/domain/payment"
	"github.com/stylino/fulfillment-core/internal/domain/shipping"
	"github.com/stylino/fulfillment-core/internal/domain/user"
)

// maxTxAttempts bounds retries of serialization conflicts before the error
// is surfaced to the caller.
const maxTxAttempts = 5

// Querier is the subset of pgx operations shared by pools and transactions,
// letting every repository run either standalone or inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}
	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "running migrations")
	}
	return nil
}

// inSerializableTx runs fn inside a SERIALIZABLE transaction, retrying on
// serialization failures and deadlocks. fn may therefore run multiple times
// and must confine its side effects to the transaction.
func inSerializableTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := runOnce(ctx, pool, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return errors.Wrap(lastErr, "transaction retries exhausted")
}

func runOnce(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// isRetryable reports whether the error is a serialization failure (40001)
// or deadlock (40P01) that a fresh attempt can resolve.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// OrderStore implements order.TxStore over a pgx pool.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore using the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

var _ order.TxStore = (*OrderStore)(nil)

// InTx runs fn inside one serializable transaction.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return inSerializableTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&orderTx{db: tx})
	})
}

type orderTx struct {
	db pgx.Tx
}

func (t *orderTx) Products() catalog.Repository  { return NewProductRepository(t.db) }
func (t *orderTx) Stock() catalog.Ledger         { return NewStockLedger(t.db) }
func (t *orderTx) Coupons() coupon.Repository    { return NewCouponRepository(t.db) }
func (t *orderTx) Shipping() shipping.Repository { return NewShippingRepository(t.db) }
func (t *orderTx) Orders() order.Repository      { return NewOrderRepository(t.db) }

// PaymentStore implements payment.TxStore over a pgx pool.
type PaymentStore struct {
	pool *pgxpool.Pool
}

// NewPaymentStore returns a PaymentStore using the given pool.
func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

var _ payment.TxStore = (*PaymentStore)(nil)

// InTx runs fn inside one serializable transaction.
func (s *PaymentStore) InTx(ctx context.Context, fn func(tx payment.Tx) error) error {
	return inSerializableTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&paymentTx{db: tx})
	})
}

type paymentTx struct {
	db pgx.Tx
}

func (t *paymentTx) Orders() order.Repository           { return NewOrderRepository(t.db) }
func (t *paymentTx) Payments() payment.Repository       { return NewPaymentRepository(t.db) }
func (t *paymentTx) Commissions() commission.Repository { return NewCommissionRepository(t.db) }
func (t *paymentTx) Users() user.Repository             { return NewUserRepository(t.db) }
