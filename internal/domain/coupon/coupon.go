package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the order value, optionally
	// capped by MaxDiscount.
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountFixed takes a fixed amount off the order value.
	DiscountFixed DiscountType = "FIXED"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("invalid coupon code")
	// ErrInactive is returned when the coupon has been switched off.
	ErrInactive = errors.New("coupon is not active")
	// ErrNotStarted is returned before the coupon's activity window opens.
	ErrNotStarted = errors.New("coupon is not yet valid")
	// ErrExpired is returned after the coupon's activity window closes.
	ErrExpired = errors.New("coupon has expired")
	// ErrUsageLimitReached is returned when the coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// MinOrderValueError is returned when the order value is below the coupon's
// minimum.
type MinOrderValueError struct {
	Min decimal.Decimal
}

func (e *MinOrderValueError) Error() string {
	return fmt.Sprintf("minimum order value of %s required", e.Min.StringFixed(2))
}

var hundred = decimal.NewFromInt(100)

// Coupon is a discount code with its eligibility constraints.
type Coupon struct {
	ID            string
	Code          string
	Description   string
	DiscountType  DiscountType
	Value         decimal.Decimal
	MinOrderValue decimal.NullDecimal
	MaxDiscount   decimal.NullDecimal
	UsageLimit    *int
	UsedCount     int
	Active        bool
	StartsAt      *time.Time
	ExpiresAt     *time.Time
}

// Check evaluates the eligibility rules in order and returns the first
// failure, or nil when the coupon can be applied to orderValue at now.
func (c *Coupon) Check(now time.Time, orderValue decimal.Decimal) error {
	if !c.Active {
		return ErrInactive
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return ErrNotStarted
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if c.MinOrderValue.Valid && orderValue.LessThan(c.MinOrderValue.Decimal) {
		return &MinOrderValueError{Min: c.MinOrderValue.Decimal}
	}
	return nil
}

// CalculateDiscount returns the discount for orderValue. The result never
// exceeds orderValue and is never negative.
func (c *Coupon) CalculateDiscount(orderValue decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = orderValue.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid {
			amount = decimal.Min(amount, c.MaxDiscount.Decimal)
		}
	default:
		amount = c.Value
	}

	amount = decimal.Min(amount, orderValue)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

// Repository provides lookup and usage accounting of coupons.
type Repository interface {
	// FindByCode returns the coupon for an upper-case code regardless of its
	// active flag. It returns ErrNotFound when no coupon matches.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUses adds one use to the coupon unless that would exceed its
	// usage limit. It reports whether the increment happened.
	IncrementUses(ctx context.Context, id string) (bool, error)
}
