package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, description, discount_type, discount_value,
		min_order_value, max_discount, usage_limit, used_count, active, starts_at, expires_at
		FROM coupons WHERE code = $1`

	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db *DB
}

// NewCouponRepository returns a CouponRepository that uses the given DB.
func NewCouponRepository(db *DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindByCode looks up a coupon by its normalized (upper-case) code.
// Returns coupon.ErrNotFound when no coupon matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUses consumes one use of the coupon. It reports false when the
// usage limit has been reached, leaving the counter unchanged.
func (r *CouponRepository) IncrementUses(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, incrementCouponUsesSQL, id)
	if err != nil {
		return false, fmt.Errorf("incrementing uses for coupon %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.Value,
		&c.MinOrderValue, &c.MaxDiscount, &c.UsageLimit, &c.UsedCount, &c.Active,
		&c.StartsAt, &c.ExpiresAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
