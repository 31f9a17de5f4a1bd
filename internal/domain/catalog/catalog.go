// Package catalog provides read-only product snapshots at order time and the
// inventory ledger used to reserve stock for an order.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is inactive.
var ErrNotFound = errors.New("product not found")

// Product is a snapshot of a catalog item taken at order time.
type Product struct {
	ID            string
	SellerID      string
	Name          string
	BasePrice     decimal.Decimal
	DiscountPrice *decimal.Decimal
	Stock         int
	Active        bool
	Variants      []Variant
}

// Variant is a concrete color+size combination of a product with its own
// price and stock counter.
type Variant struct {
	ID    string
	Color string
	Size  string
	Price decimal.Decimal
	Stock int
}

// UnitPrice returns the price a buyer pays for one unit of the product
// without a variant: the discount price when set, otherwise the base price.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.BasePrice
}

// FindVariant returns the variant with the given id, if the product has one.
func (p *Product) FindVariant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	// GetActiveByIDs fetches active products for the given ids in one batch.
	// Missing or inactive ids are simply absent from the result.
	GetActiveByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Reservation identifies one line item's stock claim. VariantID is empty for
// products without variants, in which case the product-level counter is used.
type Reservation struct {
	ProductID string
	VariantID string
	Quantity  int
}

// Ledger validates and decrements stock. Implementations must perform the
// check and the decrement as a single atomic operation so that two concurrent
// orders can never both claim the last unit.
type Ledger interface {
	Reserve(ctx context.Context, res Reservation) error
}

// InsufficientStockError indicates a reservation could not be satisfied.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("insufficient stock for product %s variant %s", e.ProductID, e.VariantID)
	}
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// VariantNotFoundError indicates a requested variant does not belong to the
// referenced product.
type VariantNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s not found for product %s", e.VariantID, e.ProductID)
}
