package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/stylino/fulfillment-core/internal/domain/user"
)

const getUserByIDSQL = `SELECT id, name, email, role, referred_by_id
	FROM users WHERE id = $1`

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db Querier
}

// NewUserRepository returns a UserRepository over the given querier.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns the user, or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var (
		u    user.User
		role string
	)
	err := r.db.QueryRow(ctx, getUserByIDSQL, id).Scan(&u.ID, &u.Name, &u.Email, &role, &u.ReferredByID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding user %q", id)
	}
	u.Role = user.Role(role)
	return &u, nil
}
