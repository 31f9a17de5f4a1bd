package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, guest_name, guest_email, guest_phone,
		items_total, shipping_amount, discount_amount, total_amount,
		status, payment_status, coupon_code, shipping_method_id, address_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			NULLIF($13, '')::uuid, NULLIF($14, '')::uuid, $15)`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, variant_id,
		product_name, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8)`

	selectOrderSQL = `SELECT id, customer_id, guest_name, guest_email, guest_phone,
		items_total, shipping_amount, discount_amount, total_amount,
		status, payment_status, coupon_code,
		COALESCE(shipping_method_id::text, ''), COALESCE(address_id::text, ''),
		authority, ref_id, card_pan, fee, payment_gateway, payment_message, created_at
		FROM orders`

	selectOrderItemsSQL = `SELECT id, order_id, product_id, COALESCE(variant_id::text, ''),
		product_name, quantity, unit_price, total_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	updateOrderPaymentSQL = `UPDATE orders SET status = $2, payment_status = $3,
		authority = $4, ref_id = $5, card_pan = $6, fee = $7,
		payment_gateway = $8, payment_message = $9
		WHERE id = $1 AND payment_status <> 'PAID'`

	setOrderAuthoritySQL = `UPDATE orders SET authority = $2, payment_gateway = $3
		WHERE id = $1 AND payment_status <> 'PAID'`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db Querier
}

// NewOrderRepository returns an OrderRepository over the given querier.
func NewOrderRepository(db Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists the order and all of its items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.db.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, o.GuestName, o.GuestEmail, o.GuestPhone,
		o.ItemsTotal, o.ShippingAmount, o.DiscountAmount, o.TotalAmount,
		string(o.Status), string(o.PaymentStatus), o.CouponCode,
		o.ShippingMethodID, o.AddressID, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}

	for _, item := range o.Items {
		_, err := r.db.Exec(ctx, createOrderItemSQL,
			item.ID, item.OrderID, item.ProductID, item.VariantID,
			item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice,
		)
		if err != nil {
			return errors.Wrapf(err, "creating order item for product %q", item.ProductID)
		}
	}
	return nil
}

// GetByID fetches one order with its items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderSQL+` WHERE id = $1`, id)
}

// GetByAuthority fetches the order holding the given gateway authority.
func (r *OrderRepository) GetByAuthority(ctx context.Context, authority string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderSQL+` WHERE authority = $1 AND authority <> ''`, authority)
}

// ListForCustomer returns the customer's orders, most recent first.
func (r *OrderRepository) ListForCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, selectOrderSQL+` WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return orders, nil
}

// UpdatePayment persists the order's payment state and gateway fields. The
// statement refuses to touch already-paid rows, making PAID absorbing at the
// storage level as well.
func (r *OrderRepository) UpdatePayment(ctx context.Context, o *order.Order) error {
	tag, err := r.db.Exec(ctx, updateOrderPaymentSQL,
		o.ID, string(o.Status), string(o.PaymentStatus),
		o.Authority, o.RefID, o.CardPan, o.Fee,
		o.PaymentGateway, o.PaymentMessage,
	)
	if err != nil {
		return errors.Wrapf(err, "updating payment for order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrAlreadyPaid
	}
	return nil
}

// SetAuthority records the gateway authority issued for a payment attempt.
func (r *OrderRepository) SetAuthority(ctx context.Context, id, authority, gateway string) error {
	if _, err := r.db.Exec(ctx, setOrderAuthoritySQL, id, authority, gateway); err != nil {
		return errors.Wrapf(err, "setting authority for order %q", id)
	}
	return nil
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}

	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) ([]order.Item, error) {
	rows, err := r.db.Query(ctx, selectOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan order items")
	}
	return items, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentStatus string
		fee           *decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.GuestName, &o.GuestEmail, &o.GuestPhone,
		&o.ItemsTotal, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount,
		&status, &paymentStatus, &o.CouponCode,
		&o.ShippingMethodID, &o.AddressID,
		&o.Authority, &o.RefID, &o.CardPan, &fee,
		&o.PaymentGateway, &o.PaymentMessage, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.Fee = fee
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var item order.Item
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
		&item.ProductName, &item.Quantity, &item.UnitPrice, &item.TotalPrice,
	)
	return item, err
}
