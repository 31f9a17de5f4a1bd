// Package user holds the minimal user model the fulfillment core needs:
// identity, role, and the referral chain pointer.
package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Role enumerates the marketplace user roles.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleSeller   Role = "SELLER"
	RoleAdmin    Role = "ADMIN"
)

// User is a marketplace account. ReferredByID points to the user who referred
// this one; the data model does not forbid cycles, so traversals must bound
// their depth explicitly.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	ReferredByID *string
}

// Repository defines read operations on users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
