package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	coupon       *Coupon
	err          error
	incrementErr error
	incrementOK  bool
	lookedUp     string
	incremented  []string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.lookedUp = code
	return m.coupon, m.err
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, id string) (bool, error) {
	if m.incrementErr != nil {
		return false, m.incrementErr
	}
	if m.incrementOK {
		m.incremented = append(m.incremented, id)
	}
	return m.incrementOK, nil
}

func intPtr(v int) *int { return &v }

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestCoupon_Check(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name       string
		coupon     Coupon
		orderValue string
		wantErr    error
	}{
		{
			name:       "active coupon without constraints",
			coupon:     Coupon{Active: true},
			orderValue: "100",
		},
		{
			name:       "inactive",
			coupon:     Coupon{Active: false},
			orderValue: "100",
			wantErr:    ErrInactive,
		},
		{
			name:       "not yet started",
			coupon:     Coupon{Active: true, StartsAt: &future},
			orderValue: "100",
			wantErr:    ErrNotStarted,
		},
		{
			name:       "expired",
			coupon:     Coupon{Active: true, ExpiresAt: &past},
			orderValue: "100",
			wantErr:    ErrExpired,
		},
		{
			name:       "inside window",
			coupon:     Coupon{Active: true, StartsAt: &past, ExpiresAt: &future},
			orderValue: "100",
		},
		{
			name:       "start equal to now is valid",
			coupon:     Coupon{Active: true, StartsAt: &now},
			orderValue: "100",
		},
		{
			name:       "expiry equal to now is valid",
			coupon:     Coupon{Active: true, ExpiresAt: &now},
			orderValue: "100",
		},
		{
			name:       "usage limit reached",
			coupon:     Coupon{Active: true, UsageLimit: intPtr(10), UsedCount: 10},
			orderValue: "100",
			wantErr:    ErrUsageLimitReached,
		},
		{
			name:       "usage below limit",
			coupon:     Coupon{Active: true, UsageLimit: intPtr(10), UsedCount: 9},
			orderValue: "100",
		},
		{
			name:       "below minimum order value",
			coupon:     Coupon{Active: true, MinOrderValue: nullDec("3000")},
			orderValue: "2999.99",
			wantErr:    &MinOrderValueError{},
		},
		{
			name:       "minimum order value is inclusive",
			coupon:     Coupon{Active: true, MinOrderValue: nullDec("3000")},
			orderValue: "3000",
		},
		{
			name:       "inactive wins over expiry",
			coupon:     Coupon{Active: false, ExpiresAt: &past},
			orderValue: "100",
			wantErr:    ErrInactive,
		},
		{
			name:       "expiry wins over usage limit",
			coupon:     Coupon{Active: true, ExpiresAt: &past, UsageLimit: intPtr(1), UsedCount: 1},
			orderValue: "100",
			wantErr:    ErrExpired,
		},
		{
			name: "usage limit wins over minimum order value",
			coupon: Coupon{
				Active:        true,
				UsageLimit:    intPtr(1),
				UsedCount:     1,
				MinOrderValue: nullDec("5000"),
			},
			orderValue: "100",
			wantErr:    ErrUsageLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coupon.Check(now, decimal.RequireFromString(tt.orderValue))

			var minErr *MinOrderValueError
			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
			case errors.As(tt.wantErr, &minErr):
				require.ErrorAs(t, err, &minErr)
			default:
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCoupon_CalculateDiscount(t *testing.T) {
	tests := []struct {
		name       string
		coupon     Coupon
		orderValue string
		want       string
	}{
		{
			name:       "percentage",
			coupon:     Coupon{DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10)},
			orderValue: "4000",
			want:       "400",
		},
		{
			name: "percentage capped by max discount",
			coupon: Coupon{
				DiscountType: DiscountPercentage,
				Value:        decimal.NewFromInt(50),
				MaxDiscount:  nullDec("300"),
			},
			orderValue: "4000",
			want:       "300",
		},
		{
			name:       "percentage over 100 capped at order value",
			coupon:     Coupon{DiscountType: DiscountPercentage, Value: decimal.NewFromInt(150)},
			orderValue: "80",
			want:       "80",
		},
		{
			name:       "percentage rounded to cents",
			coupon:     Coupon{DiscountType: DiscountPercentage, Value: decimal.NewFromInt(15)},
			orderValue: "33.33",
			want:       "5",
		},
		{
			name:       "fixed",
			coupon:     Coupon{DiscountType: DiscountFixed, Value: decimal.NewFromInt(500)},
			orderValue: "4000",
			want:       "500",
		},
		{
			name:       "fixed capped at order value",
			coupon:     Coupon{DiscountType: DiscountFixed, Value: decimal.NewFromInt(500)},
			orderValue: "120",
			want:       "120",
		},
		{
			name:       "fixed ignores max discount",
			coupon:     Coupon{DiscountType: DiscountFixed, Value: decimal.NewFromInt(500), MaxDiscount: nullDec("100")},
			orderValue: "4000",
			want:       "500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.coupon.CalculateDiscount(decimal.RequireFromString(tt.orderValue))
			want := decimal.RequireFromString(tt.want)
			assert.True(t, want.Equal(got), "expected %s, got %s", want, got)
		})
	}
}

func TestRepoValidator_Check(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("normalizes code and returns quote", func(t *testing.T) {
		repo := &mockCouponRepo{coupon: &Coupon{
			ID:            "c1",
			Code:          "FLAT500",
			DiscountType:  DiscountFixed,
			Value:         decimal.NewFromInt(500),
			MinOrderValue: nullDec("3000"),
			Active:        true,
		}}
		v := NewRepoValidator(repo)
		v.now = func() time.Time { return fixedNow }

		q, err := v.Check(context.Background(), "  flat500 ", decimal.NewFromInt(4000))
		require.NoError(t, err)
		assert.Equal(t, "FLAT500", repo.lookedUp)
		assert.True(t, decimal.NewFromInt(500).Equal(q.Discount))
		assert.Empty(t, repo.incremented, "check must not consume a use")
	})

	t.Run("unknown code", func(t *testing.T) {
		v := NewRepoValidator(&mockCouponRepo{err: ErrNotFound})
		_, err := v.Check(context.Background(), "BOGUS", decimal.NewFromInt(100))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("storage error is wrapped", func(t *testing.T) {
		v := NewRepoValidator(&mockCouponRepo{err: errors.New("db down")})
		_, err := v.Check(context.Background(), "ANY", decimal.NewFromInt(100))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lookup coupon")
	})
}

func TestRepoValidator_Apply(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-time.Hour)

	t.Run("valid coupon consumes one use", func(t *testing.T) {
		repo := &mockCouponRepo{
			coupon: &Coupon{
				ID:           "c1",
				Code:         "SAVE10",
				DiscountType: DiscountPercentage,
				Value:        decimal.NewFromInt(10),
				Active:       true,
			},
			incrementOK: true,
		}
		v := NewRepoValidator(repo)
		v.now = func() time.Time { return fixedNow }

		app, err := v.Apply(context.Background(), "save10", decimal.NewFromInt(2000))
		require.NoError(t, err)
		assert.True(t, app.Applied)
		assert.Equal(t, "SAVE10", app.Code)
		assert.True(t, decimal.NewFromInt(200).Equal(app.Discount))
		assert.Equal(t, []string{"c1"}, repo.incremented)
	})

	t.Run("invalid coupon yields zero discount without error", func(t *testing.T) {
		repo := &mockCouponRepo{
			coupon: &Coupon{
				ID:           "c2",
				Code:         "OLD",
				DiscountType: DiscountFixed,
				Value:        decimal.NewFromInt(50),
				Active:       true,
				ExpiresAt:    &past,
			},
			incrementOK: true,
		}
		v := NewRepoValidator(repo)
		v.now = func() time.Time { return fixedNow }

		app, err := v.Apply(context.Background(), "OLD", decimal.NewFromInt(2000))
		require.NoError(t, err)
		assert.False(t, app.Applied)
		assert.True(t, app.Discount.IsZero())
		assert.ErrorIs(t, app.Reason, ErrExpired)
		assert.Empty(t, repo.incremented)
	})

	t.Run("unknown coupon yields zero discount without error", func(t *testing.T) {
		v := NewRepoValidator(&mockCouponRepo{err: ErrNotFound})

		app, err := v.Apply(context.Background(), "nope", decimal.NewFromInt(2000))
		require.NoError(t, err)
		assert.False(t, app.Applied)
		assert.Equal(t, "NOPE", app.Code)
		assert.ErrorIs(t, app.Reason, ErrNotFound)
	})

	t.Run("limit exhausted between check and increment", func(t *testing.T) {
		repo := &mockCouponRepo{
			coupon: &Coupon{
				ID:           "c3",
				Code:         "LAST",
				DiscountType: DiscountFixed,
				Value:        decimal.NewFromInt(50),
				Active:       true,
				UsageLimit:   intPtr(1),
				UsedCount:    0,
			},
			incrementOK: false,
		}
		v := NewRepoValidator(repo)
		v.now = func() time.Time { return fixedNow }

		app, err := v.Apply(context.Background(), "LAST", decimal.NewFromInt(2000))
		require.NoError(t, err)
		assert.False(t, app.Applied)
		assert.True(t, app.Discount.IsZero())
		assert.ErrorIs(t, app.Reason, ErrUsageLimitReached)
	})

	t.Run("increment error aborts", func(t *testing.T) {
		repo := &mockCouponRepo{
			coupon: &Coupon{
				ID:           "c4",
				Code:         "FAIL",
				DiscountType: DiscountFixed,
				Value:        decimal.NewFromInt(5),
				Active:       true,
			},
			incrementErr: errors.New("db error"),
		}
		v := NewRepoValidator(repo)

		_, err := v.Apply(context.Background(), "FAIL", decimal.NewFromInt(100))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "increment coupon uses")
	})
}
