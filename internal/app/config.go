package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string `usage:"HMAC secret verifying access tokens (STOREFRONT_JWT_SECRET)" flag:"jwt-secret"`
	RedisAddr   string `default:"" usage:"Redis address for checkout idempotency keys; disabled when empty" flag:"redis-addr"`
	FrontendURL string `default:"http://localhost:3000" usage:"Storefront URL used in emails" flag:"frontend-url"`
	Stripe      StripeConfig
	SMTP        SMTPConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// StripeConfig configures the payment gateway.
type StripeConfig struct {
	SecretKey     string        `usage:"Stripe secret API key" flag:"stripe-secret-key"`
	WebhookSecret string        `usage:"Stripe webhook signing secret" flag:"stripe-webhook-secret"`
	Currency      string        `default:"inr" usage:"Charge currency"`
	Timeout       time.Duration `default:"15s" usage:"Bound on a single gateway call" flag:"stripe-timeout"`
}

// SMTPConfig configures confirmation emails. Mail is logged instead of sent
// when Host is empty.
type SMTPConfig struct {
	Host     string `default:"" usage:"SMTP host" flag:"smtp-host"`
	Port     int    `default:"587" usage:"SMTP port" flag:"smtp-port"`
	Username string `usage:"SMTP username" flag:"smtp-username"`
	Password string `usage:"SMTP password" flag:"smtp-password"`
	From     string `default:"orders@storefront.local" usage:"Sender address" flag:"smtp-from"`
}

// CheckoutConfig holds the pricing policy and checkout tunables.
type CheckoutConfig struct {
	TaxRate               string        `default:"0.18" usage:"Tax rate applied after discount" flag:"tax-rate"`
	FreeShippingThreshold string        `default:"2999" usage:"Subtotal from which shipping is free" flag:"free-shipping-threshold"`
	FlatShippingFee       string        `default:"99" usage:"Shipping fee below the threshold" flag:"flat-shipping-fee"`
	NotifyTimeout         time.Duration `default:"10s" usage:"Bound on confirmation delivery" flag:"notify-timeout"`
	IdempotencyTTL        time.Duration `default:"24h" usage:"How long checkout idempotency keys replay" flag:"idempotency-ttl"`
}

// Pricing parses the pricing policy.
func (c CheckoutConfig) Pricing() (pricing.Engine, error) {
	var (
		e   pricing.Engine
		err error
	)
	if e.TaxRate, err = decimal.NewFromString(c.TaxRate); err != nil {
		return e, errors.Wrap(err, "tax rate")
	}
	if e.FreeShippingThreshold, err = decimal.NewFromString(c.FreeShippingThreshold); err != nil {
		return e, errors.Wrap(err, "free shipping threshold")
	}
	if e.FlatShippingFee, err = decimal.NewFromString(c.FlatShippingFee); err != nil {
		return e, errors.Wrap(err, "flat shipping fee")
	}
	if e.TaxRate.IsNegative() || e.FreeShippingThreshold.IsNegative() || e.FlatShippingFee.IsNegative() {
		return e, errors.New("pricing policy values must not be negative")
	}
	return e, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT secret is required: set STOREFRONT_JWT_SECRET")
	}
	if _, err := c.Checkout.Pricing(); err != nil {
		return errors.Wrap(err, "checkout")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisAddr == "" {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			c.RedisAddr = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
