package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutConfig_Pricing(t *testing.T) {
	e, err := CheckoutConfig{TaxRate: "0.18", FreeShippingThreshold: "2999", FlatShippingFee: "99"}.Pricing()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.18").Equal(e.TaxRate))
	assert.True(t, decimal.NewFromInt(2999).Equal(e.FreeShippingThreshold))
	assert.True(t, decimal.NewFromInt(99).Equal(e.FlatShippingFee))

	_, err = CheckoutConfig{TaxRate: "x", FreeShippingThreshold: "1", FlatShippingFee: "1"}.Pricing()
	require.Error(t, err)

	_, err = CheckoutConfig{TaxRate: "-0.1", FreeShippingThreshold: "1", FlatShippingFee: "1"}.Pricing()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		DatabaseURL: "postgres://localhost/storefront",
		JWTSecret:   "secret",
		Checkout:    CheckoutConfig{TaxRate: "0.18", FreeShippingThreshold: "2999", FlatShippingFee: "99"},
	}
	require.NoError(t, valid.validate())

	noDB := valid
	noDB.DatabaseURL = ""
	assert.ErrorContains(t, noDB.validate(), "database URL")

	noSecret := valid
	noSecret.JWTSecret = ""
	assert.ErrorContains(t, noSecret.validate(), "JWT secret")
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}
