package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, name, slug, description, category, price, images`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products
		WHERE active AND ($1 = '' OR category = $1)
		ORDER BY created_at DESC, id
		LIMIT NULLIF($2, 0) OFFSET $3`

	countProductsSQL = `SELECT count(*) FROM products WHERE active AND ($1 = '' OR category = $1)`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND active`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	variantsByProductsSQL = `SELECT id, product_id, name, sku, size, color, price, stock
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, name, id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository that uses the given DB.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns a page of active products and the total number of matches.
func (r *ProductRepository) List(ctx context.Context, f product.ListFilter) ([]product.Product, int, error) {
	q := r.db.q(ctx)

	var total int
	if err := q.QueryRow(ctx, countProductsSQL, f.Category).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	rows, err := q.Query(ctx, listProductsSQL, f.Category, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}

	if err := r.attachVariants(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetByID returns a single active product with its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	if !validID(id) {
		return nil, product.ErrNotFound
	}

	rows, err := r.db.q(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	products := []product.Product{p}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByIDs returns products matching any of the given IDs, including
// inactive ones still referenced by carts and orders.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.q(ctx).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductRepository) attachVariants(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	idx := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		idx[p.ID] = i
	}

	rows, err := r.db.q(ctx).Query(ctx, variantsByProductsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting variants: %w", err)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return fmt.Errorf("getting variants: %w", err)
	}

	for _, v := range variants {
		i := idx[v.ProductID]
		products[i].Variants = append(products[i].Variants, v)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Category, &p.Price, &p.Images,
	)
	return p, err
}

func scanVariant(row pgx.CollectableRow) (product.Variant, error) {
	var v product.Variant
	err := row.Scan(
		&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Size, &v.Color, &v.Price, &v.Stock,
	)
	return v, err
}
