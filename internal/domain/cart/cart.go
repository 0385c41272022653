// Package cart manages shopping carts and produces the resolved line snapshot
// consumed by checkout.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for cart operations.
var (
	ErrEmpty        = errors.New("cart is empty")
	ErrItemNotFound = errors.New("cart item not found")
)

// InvalidQuantityError indicates a non-positive quantity for a cart line.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1, got %d", e.Quantity)
}

// Item is a stored cart line. Items are unique per (ProductID, VariantID).
type Item struct {
	ID        string
	ProductID string
	VariantID string
	Quantity  int
}

// Cart is a user's cart with items in insertion order.
type Cart struct {
	ID     string
	UserID string
	Items  []Item
}

// Item returns the line with the given id.
func (c *Cart) Item(id string) (Item, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Repository defines persistence operations for carts. Get returns a cart
// with no items when the user has none stored.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	// AddItem inserts the line or increases the quantity of the existing
	// (product, variant) line.
	AddItem(ctx context.Context, userID, productID, variantID string, quantity int) error
	SetQuantity(ctx context.Context, userID, itemID string, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
	// Lock blocks writes to the user's cart until the transaction carried by
	// ctx ends. A user without a cart is not an error.
	Lock(ctx context.Context, userID string) error
}
