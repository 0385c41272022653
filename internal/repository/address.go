package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/address"
)

const getAddressSQL = `SELECT first_name, last_name, company, address1, address2,
		city, state, postal_code, country, phone
	FROM addresses WHERE id = $1 AND user_id = $2`

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	db *DB
}

// NewAddressRepository returns an AddressRepository that uses the given DB.
func NewAddressRepository(db *DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// FindByID returns the saved address owned by userID.
func (r *AddressRepository) FindByID(ctx context.Context, id, userID string) (*address.Address, error) {
	if !validID(id) || !validID(userID) {
		return nil, address.ErrNotFound
	}

	var a address.Address
	err := r.db.q(ctx).QueryRow(ctx, getAddressSQL, id, userID).Scan(
		&a.FirstName, &a.LastName, &a.Company, &a.Address1, &a.Address2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}
