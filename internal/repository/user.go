package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/order"
)

const getUserEmailSQL = `SELECT email FROM users WHERE id = $1`

// ErrUserNotFound is returned when a user id does not exist.
var ErrUserNotFound = errors.New("user not found")

var _ order.UserDirectory = (*UserRepository)(nil)

// UserRepository reads user contact details.
type UserRepository struct {
	db *DB
}

// NewUserRepository returns a UserRepository that uses the given DB.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Email returns the user's email address.
func (r *UserRepository) Email(ctx context.Context, userID string) (string, error) {
	if !validID(userID) {
		return "", ErrUserNotFound
	}
	var email string
	if err := r.db.q(ctx).QueryRow(ctx, getUserEmailSQL, userID).Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("getting email for user %q: %w", userID, err)
	}
	return email, nil
}
