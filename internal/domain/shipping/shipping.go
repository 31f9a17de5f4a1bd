// Package shipping resolves shipping methods and their costs.
package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrMethodUnavailable is returned when a shipping method referenced by id
// does not exist or is not active.
var ErrMethodUnavailable = errors.New("shipping method unavailable")

// Method is a configured shipping option.
type Method struct {
	ID     string
	Name   string
	Cost   decimal.Decimal
	Active bool
}

// Repository defines read operations for shipping methods.
type Repository interface {
	// GetByID returns the method or ErrMethodUnavailable when absent.
	GetByID(ctx context.Context, id string) (*Method, error)
}
