// Package address holds postal addresses saved in a user's address book and
// the flat snapshot copied onto orders.
package address

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a saved address does not exist or belongs to
// another user.
var ErrNotFound = errors.New("address not found")

// Address is a flat postal address. Orders store it by value.
type Address struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Company    string `json:"company,omitempty"`
	Address1   string `json:"address1" validate:"required"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country"`
	Phone      string `json:"phone" validate:"required"`
}

// DefaultCountry is used when an inline address omits the country.
const DefaultCountry = "India"

// WithDefaults returns a copy of a with empty optional fields defaulted.
func (a Address) WithDefaults() Address {
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	return a
}

// Repository is a read-only view of the address book.
type Repository interface {
	FindByID(ctx context.Context, id, userID string) (*Address, error)
}
