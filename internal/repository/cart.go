package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	getCartIDSQL = `SELECT id FROM carts WHERE user_id = $1`

	lockCartSQL = getCartIDSQL + ` FOR UPDATE`

	ensureCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING id`

	listCartItemsSQL = `SELECT id, product_id, variant_id, quantity
		FROM cart_items WHERE cart_id = $1 ORDER BY position`

	addCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`

	setCartItemQuantitySQL = `WITH c AS (SELECT id FROM carts WHERE user_id = $1 FOR UPDATE)
		UPDATE cart_items ci SET quantity = $3, updated_at = now()
		FROM c
		WHERE ci.cart_id = c.id AND ci.id = $2`

	removeCartItemSQL = `WITH c AS (SELECT id FROM carts WHERE user_id = $1 FOR UPDATE)
		DELETE FROM cart_items ci USING c
		WHERE ci.cart_id = c.id AND ci.id = $2`

	clearCartSQL = `DELETE FROM cart_items ci USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository that uses the given DB.
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

// Get returns the user's cart with items in insertion order.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID, Items: []cart.Item{}}
	if !validID(userID) {
		return c, nil
	}

	q := r.db.q(ctx)
	err := q.QueryRow(ctx, getCartIDSQL, userID).Scan(&c.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}

	rows, err := q.Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	c.Items, err = pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	return c, nil
}

// AddItem inserts a cart line or increases the quantity of the existing line
// for the same product variant.
func (r *CartRepository) AddItem(ctx context.Context, userID, productID, variantID string, quantity int) error {
	return r.db.InTx(ctx, func(ctx context.Context) error {
		q := r.db.q(ctx)

		var cartID string
		if err := q.QueryRow(ctx, ensureCartSQL, uuid.NewString(), userID).Scan(&cartID); err != nil {
			return fmt.Errorf("ensuring cart for user %q: %w", userID, err)
		}
		if _, err := q.Exec(ctx, addCartItemSQL, uuid.NewString(), cartID, productID, variantID, quantity); err != nil {
			return fmt.Errorf("adding cart item: %w", err)
		}
		return nil
	})
}

// SetQuantity sets the quantity of one of the user's cart lines.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	if !validID(itemID) {
		return cart.ErrItemNotFound
	}
	tag, err := r.db.q(ctx).Exec(ctx, setCartItemQuantitySQL, userID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// RemoveItem deletes one of the user's cart lines.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, itemID string) error {
	if !validID(itemID) {
		return cart.ErrItemNotFound
	}
	tag, err := r.db.q(ctx).Exec(ctx, removeCartItemSQL, userID, itemID)
	if err != nil {
		return fmt.Errorf("removing cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// Clear deletes every line of the user's cart. The cart row is kept.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.q(ctx).Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}

// Lock takes a row lock on the user's cart. Item writes lock the same row,
// so they wait for the transaction carried by ctx.
func (r *CartRepository) Lock(ctx context.Context, userID string) error {
	if !validID(userID) {
		return nil
	}
	var id string
	err := r.db.q(ctx).QueryRow(ctx, lockCartSQL, userID).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("locking cart for user %q: %w", userID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.Quantity)
	return it, err
}
