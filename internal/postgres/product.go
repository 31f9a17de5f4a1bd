package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/domain/catalog"
)

const (
	getActiveProductsSQL = `SELECT id, seller_id, name, base_price, discount_price, stock, active
		FROM products WHERE id = ANY($1) AND active = TRUE`

	getVariantsSQL = `SELECT id, product_id, color, size, price, stock
		FROM product_variants WHERE product_id = ANY($1)`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	db Querier
}

// NewProductRepository returns a ProductRepository over the given querier.
func NewProductRepository(db Querier) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetActiveByIDs fetches active products and their variants in two batched
// queries. Missing or inactive ids are absent from the result.
func (r *ProductRepository) GetActiveByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.db.Query(ctx, getActiveProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	if len(products) == 0 {
		return products, nil
	}

	productIDs := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		productIDs[i] = p.ID
		index[p.ID] = i
	}

	vrows, err := r.db.Query(ctx, getVariantsSQL, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query variants")
	}
	defer vrows.Close()

	for vrows.Next() {
		var (
			v         catalog.Variant
			productID string
		)
		if err := vrows.Scan(&v.ID, &productID, &v.Color, &v.Size, &v.Price, &v.Stock); err != nil {
			return nil, errors.Wrap(err, "scan variant")
		}
		if i, ok := index[productID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate variants")
	}

	return products, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p             catalog.Product
		discountPrice *decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.BasePrice, &discountPrice, &p.Stock, &p.Active)
	p.DiscountPrice = discountPrice
	return p, err
}
