package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// VariantNotFoundError indicates that a product no longer carries the
// referenced variant.
type VariantNotFoundError struct {
	ProductID   string
	ProductName string
	VariantID   string
}

func (e *VariantNotFoundError) Error() string {
	if e.ProductName != "" {
		return fmt.Sprintf("variant not found for product: %s", e.ProductName)
	}
	return fmt.Sprintf("variant %s not found for product %s", e.VariantID, e.ProductID)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Category    string
	Price       decimal.Decimal
	Images      []string
	Variants    []Variant
}

// Variant is a purchasable configuration of a product with its own SKU,
// price and stock counter.
type Variant struct {
	ID        string
	ProductID string
	Name      string
	SKU       string
	Size      string
	Color     string
	Price     decimal.Decimal
	Stock     int
}

// Variant returns the variant with the given id.
func (p *Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// ListFilter narrows a catalog listing.
type ListFilter struct {
	Category string
	Limit    int
	Offset   int
}

// Repository defines read operations for the product catalog. Returned
// products always carry their variants.
type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Product, int, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
