package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	listCouponCodesSQL = `SELECT code FROM coupons`

	insertCouponIfAbsentSQL = `INSERT INTO coupons (id, code, description, discount_type, discount_value,
		min_order_value, max_discount, usage_limit, used_count, active, starts_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11)
		ON CONFLICT (code) DO NOTHING`
)

var couponCopyColumns = []string{
	"id", "code", "description", "discount_type", "discount_value",
	"min_order_value", "max_discount", "usage_limit", "active", "starts_at", "expires_at",
}

// EachCode streams every stored coupon code to fn.
func (r *CouponRepository) EachCode(ctx context.Context, fn func(code string)) error {
	rows, err := r.db.q(ctx).Query(ctx, listCouponCodesSQL)
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	var code string
	_, err = pgx.ForEachRow(rows, []any{&code}, func() error {
		fn(code)
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	return nil
}

// CopyNew bulk-inserts coupons with COPY. Codes must not exist yet.
func (r *CouponRepository) CopyNew(ctx context.Context, coupons []coupon.Coupon) (int64, error) {
	n, err := r.db.pool.CopyFrom(ctx, pgx.Identifier{"coupons"}, couponCopyColumns,
		pgx.CopyFromSlice(len(coupons), func(i int) ([]any, error) {
			c := coupons[i]
			return []any{
				uuid.NewString(), c.Code, c.Description, string(c.DiscountType), c.Value,
				c.MinOrderValue, c.MaxDiscount, c.UsageLimit, c.Active, c.StartsAt, c.ExpiresAt,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying coupons: %w", err)
	}
	return n, nil
}

// InsertIfAbsent stores c unless its code already exists. It reports whether
// a row was inserted.
func (r *CouponRepository) InsertIfAbsent(ctx context.Context, c coupon.Coupon) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, insertCouponIfAbsentSQL,
		uuid.NewString(), c.Code, c.Description, string(c.DiscountType), c.Value,
		c.MinOrderValue, c.MaxDiscount, c.UsageLimit, c.Active, c.StartsAt, c.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting coupon %q: %w", c.Code, err)
	}
	return tag.RowsAffected() == 1, nil
}
