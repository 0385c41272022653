package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/xenking/storefront/internal/domain/inventory"
)

const (
	reserveStockSQL = `UPDATE product_variants SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	releaseStockSQL = `UPDATE product_variants SET stock = stock + $2 WHERE id = $1`
)

var _ inventory.Store = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Store with conditional updates on
// product_variants.stock.
type InventoryRepository struct {
	db *DB
}

// NewInventoryRepository returns an InventoryRepository that uses the given DB.
func NewInventoryRepository(db *DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Reserve decrements stock for every line in one transaction (a savepoint
// when called inside checkout). A line whose stock does not cover it fails
// the whole reservation with *inventory.InsufficientStockError.
//
// Rows are updated in variant id order so concurrent reservations over the
// same variants acquire row locks in the same order.
func (r *InventoryRepository) Reserve(ctx context.Context, lines []inventory.Line) error {
	ordered := mergeLines(lines)
	return r.db.InTx(ctx, func(ctx context.Context) error {
		q := r.db.q(ctx)
		for _, l := range ordered {
			tag, err := q.Exec(ctx, reserveStockSQL, l.VariantID, l.Quantity)
			if err != nil {
				return fmt.Errorf("reserving stock for variant %q: %w", l.VariantID, err)
			}
			if tag.RowsAffected() == 0 {
				return &inventory.InsufficientStockError{
					ProductID:   l.ProductID,
					ProductName: l.ProductName,
					VariantID:   l.VariantID,
					VariantName: l.VariantName,
					Requested:   l.Quantity,
				}
			}
		}
		return nil
	})
}

// Release returns stock for every line. Variants deleted from the catalog
// are skipped.
func (r *InventoryRepository) Release(ctx context.Context, lines []inventory.Line) error {
	ordered := mergeLines(lines)
	return r.db.InTx(ctx, func(ctx context.Context) error {
		q := r.db.q(ctx)
		for _, l := range ordered {
			if _, err := q.Exec(ctx, releaseStockSQL, l.VariantID, l.Quantity); err != nil {
				return fmt.Errorf("releasing stock for variant %q: %w", l.VariantID, err)
			}
		}
		return nil
	})
}

// mergeLines sums quantities per variant and sorts by variant id.
func mergeLines(lines []inventory.Line) []inventory.Line {
	byVariant := make(map[string]int, len(lines))
	out := make([]inventory.Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := byVariant[l.VariantID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		byVariant[l.VariantID] = len(out)
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b inventory.Line) int {
		return strings.Compare(a.VariantID, b.VariantID)
	})
	return out
}
