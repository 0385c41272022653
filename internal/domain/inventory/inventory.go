// Package inventory defines the variant stock store used by checkout and
// cancellation.
package inventory

import (
	"context"
	"fmt"
)

// Line is a stock movement for a single variant.
type Line struct {
	ProductID   string
	ProductName string
	VariantID   string
	VariantName string
	Quantity    int
}

// InsufficientStockError reports that a variant cannot cover the requested
// quantity.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	VariantID   string
	VariantName string
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	if e.VariantName != "" {
		return fmt.Sprintf("not enough stock for %s - %s", name, e.VariantName)
	}
	return fmt.Sprintf("not enough stock for %s", name)
}

// Store adjusts variant stock counters.
//
// Reserve must check and decrement every line atomically: either all lines
// are decremented or none are, and a line is only decremented when the
// current stock covers it. Release increments stock unconditionally.
type Store interface {
	Reserve(ctx context.Context, lines []Line) error
	Release(ctx context.Context, lines []Line) error
}
