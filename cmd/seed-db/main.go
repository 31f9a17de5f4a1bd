// Command seed-db populates a development database with a referral chain of
// users, a small catalog, shipping methods, and demo coupons.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/postgres"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedUsers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedShipping(ctx, pool); err != nil {
		return errors.Wrap(err, "seed shipping")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

const upsertUserSQL = `
INSERT INTO users (id, name, email, role, referred_by_id)
VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	email = EXCLUDED.email,
	role = EXCLUDED.role,
	referred_by_id = EXCLUDED.referred_by_id`

// seedUsers builds a three-deep referral chain: grandparent referred parent,
// parent referred buyer. A paid order from the buyer pays commissions up both
// levels.
func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	users := []struct {
		id, name, email, role, referredBy string
	}{
		{"00000000-0000-0000-0000-000000000001", "Grandparent Referrer", "grandparent@example.com", "CUSTOMER", ""},
		{"00000000-0000-0000-0000-000000000002", "Parent Referrer", "parent@example.com", "CUSTOMER", "00000000-0000-0000-0000-000000000001"},
		{"00000000-0000-0000-0000-000000000003", "Buyer", "buyer@example.com", "CUSTOMER", "00000000-0000-0000-0000-000000000002"},
		{"00000000-0000-0000-0000-000000000008", "Seller", "seller@example.com", "SELLER", ""},
		{"00000000-0000-0000-0000-000000000009", "Admin", "admin@example.com", "ADMIN", ""},
	}
	for _, u := range users {
		if _, err := pool.Exec(ctx, upsertUserSQL, u.id, u.name, u.email, u.role, u.referredBy); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.email)
		}
		slog.Info("upserted user", slog.String("email", u.email))
	}
	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, seller_id, name, base_price, discount_price, stock, active)
VALUES ($1, $2, $3, $4, $5, $6, true)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	base_price = EXCLUDED.base_price,
	discount_price = EXCLUDED.discount_price,
	stock = EXCLUDED.stock,
	active = EXCLUDED.active`

const upsertVariantSQL = `
INSERT INTO product_variants (id, product_id, color, size, price, stock)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	color = EXCLUDED.color,
	size = EXCLUDED.size,
	price = EXCLUDED.price,
	stock = EXCLUDED.stock`

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	const sellerID = "00000000-0000-0000-0000-000000000008"
	discount := decimal.NewFromInt(180000)
	products := []struct {
		id, name      string
		basePrice     decimal.Decimal
		discountPrice *decimal.Decimal
		stock         int
	}{
		{"10000000-0000-0000-0000-000000000001", "Classic Cotton Shirt", decimal.NewFromInt(200000), &discount, 50},
		{"10000000-0000-0000-0000-000000000002", "Linen Trousers", decimal.NewFromInt(350000), nil, 30},
		{"10000000-0000-0000-0000-000000000003", "Wool Scarf", decimal.NewFromInt(120000), nil, 100},
		{"10000000-0000-0000-0000-000000000004", "Silk Pocket Square", decimal.NewFromInt(90000), nil, 1},
	}
	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.id, sellerID, p.name, p.basePrice, p.discountPrice, p.stock); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.name)
		}
		slog.Info("upserted product", slog.String("name", p.name))
	}

	variants := []struct {
		id, productID, color, size string
		price                      decimal.Decimal
		stock                      int
	}{
		{"20000000-0000-0000-0000-000000000001", "10000000-0000-0000-0000-000000000001", "white", "M", decimal.NewFromInt(200000), 20},
		{"20000000-0000-0000-0000-000000000002", "10000000-0000-0000-0000-000000000001", "navy", "L", decimal.NewFromInt(210000), 15},
		{"20000000-0000-0000-0000-000000000003", "10000000-0000-0000-0000-000000000002", "beige", "32", decimal.NewFromInt(350000), 10},
	}
	for _, v := range variants {
		if _, err := pool.Exec(ctx, upsertVariantSQL, v.id, v.productID, v.color, v.size, v.price, v.stock); err != nil {
			return errors.Wrapf(err, "upsert variant %s/%s", v.color, v.size)
		}
	}
	return nil
}

const upsertShippingSQL = `
INSERT INTO shipping_methods (id, name, cost, active)
VALUES ($1, $2, $3, true)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	cost = EXCLUDED.cost,
	active = EXCLUDED.active`

func seedShipping(ctx context.Context, pool *pgxpool.Pool) error {
	methods := []struct {
		id, name string
		cost     decimal.Decimal
	}{
		{"30000000-0000-0000-0000-000000000001", "Standard Post", decimal.NewFromInt(50000)},
		{"30000000-0000-0000-0000-000000000002", "Express Courier", decimal.NewFromInt(120000)},
	}
	for _, m := range methods {
		if _, err := pool.Exec(ctx, upsertShippingSQL, m.id, m.name, m.cost); err != nil {
			return errors.Wrapf(err, "upsert shipping method %s", m.name)
		}
		slog.Info("upserted shipping method", slog.String("name", m.name))
	}
	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (code, discount_type, value, max_discount, min_purchase, usage_limit, uses, active, valid_from, valid_until)
VALUES ($1, $2, $3, $4, $5, $6, 0, true, now(), now() + interval '1 year')
ON CONFLICT (code) DO UPDATE SET
	discount_type = EXCLUDED.discount_type,
	value = EXCLUDED.value,
	max_discount = EXCLUDED.max_discount,
	min_purchase = EXCLUDED.min_purchase,
	usage_limit = EXCLUDED.usage_limit,
	active = EXCLUDED.active,
	valid_until = EXCLUDED.valid_until`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	maxDiscount := decimal.NewFromInt(100000)
	minPurchase := decimal.NewFromInt(500000)
	coupons := []struct {
		code, discountType string
		value              decimal.Decimal
		maxDiscount        *decimal.Decimal
		minPurchase        *decimal.Decimal
		usageLimit         int
	}{
		{"WELCOME10", "PERCENTAGE", decimal.NewFromInt(10), &maxDiscount, nil, 0},
		{"BIGSPENDER", "FIXED", decimal.NewFromInt(75000), nil, &minPurchase, 100},
	}
	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.discountType, c.value, c.maxDiscount, c.minPurchase, c.usageLimit,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code))
	}
	return nil
}
