package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderNumberConstraint = "orders_order_number_key"

	orderColumns = `id, order_number, user_id, status, payment_status, payment_method,
		payment_intent_id, shipping_address, billing_address, items,
		subtotal, tax, shipping, discount, total, coupon_code, notes, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (id, order_number, user_id, status, payment_status,
		payment_method, payment_intent_id, shipping_address, billing_address, items,
		subtotal, tax, shipping, discount, total, coupon_code, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderByIDSQL + ` FOR UPDATE`

	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	updateOrderSQL = `UPDATE orders
		SET status = $2, payment_status = $3, payment_intent_id = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	orderFilterSQL = `WHERE ($1::uuid IS NULL OR user_id = $1::uuid)
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR payment_status = $3)
		AND ($4 = '' OR order_number ILIKE $4
			OR shipping_address->>'firstName' ILIKE $4
			OR shipping_address->>'lastName' ILIKE $4
			OR (shipping_address->>'firstName' || ' ' || (shipping_address->>'lastName')) ILIKE $4)`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ` + orderFilterSQL + `
		ORDER BY created_at DESC, id
		LIMIT NULLIF($5, 0) OFFSET $6`

	countOrdersSQL = `SELECT count(*) FROM orders ` + orderFilterSQL
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository that uses the given DB.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order. Addresses and items are stored as JSONB
// snapshots. The insert runs in its own savepoint so a number collision
// leaves the surrounding transaction usable.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	id := uuid.NewString()
	err = r.db.InTx(ctx, func(ctx context.Context) error {
		return r.db.q(ctx).QueryRow(ctx, createOrderSQL,
			id, o.Number, o.UserID, string(o.Status), string(o.PaymentStatus),
			o.PaymentMethod, o.PaymentIntentID, shipping, billing, items,
			o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total, o.CouponCode, o.Notes,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
	})
	if err != nil {
		if isUniqueViolation(err, orderNumberConstraint) {
			return order.ErrNumberConflict
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}

	o.ID = id
	return nil
}

// GetByID returns an order by its id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if !validID(id) {
		return nil, order.ErrNotFound
	}
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByNumber returns an order by its human-readable number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByNumberSQL, number)
}

// GetForUpdate returns an order and locks its row until the surrounding
// transaction ends.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	if !validID(id) {
		return nil, order.ErrNotFound
	}
	return r.getOne(ctx, getOrderForUpdateSQL, id)
}

func (r *OrderRepository) getOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	return &o, nil
}

// Update persists the order's status, payment status and payment intent id.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	err := r.db.q(ctx).QueryRow(ctx, updateOrderSQL,
		o.ID, string(o.Status), string(o.PaymentStatus), o.PaymentIntentID,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	return nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	if f.UserID != "" && !validID(f.UserID) {
		return nil, nil
	}
	rows, err := r.db.q(ctx).Query(ctx, listOrdersSQL,
		nullableID(f.UserID), string(f.Status), string(f.PaymentStatus), searchPattern(f.Search), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// Count returns the number of orders matching f.
func (r *OrderRepository) Count(ctx context.Context, f order.ListFilter) (int, error) {
	if f.UserID != "" && !validID(f.UserID) {
		return 0, nil
	}
	var n int
	err := r.db.q(ctx).QueryRow(ctx, countOrdersSQL,
		nullableID(f.UserID), string(f.Status), string(f.PaymentStatus), searchPattern(f.Search),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

// nullableID maps an empty id to NULL so the filter is skipped.
func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchPattern turns free text into a substring ILIKE pattern with the
// wildcards in the text matched literally.
func searchPattern(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(search) + "%"
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                     order.Order
		status, paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &status, &paymentStatus, &o.PaymentMethod,
		&o.PaymentIntentID, &o.ShippingAddress, &o.BillingAddress, &o.Items,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total, &o.CouponCode, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return o, err
}
