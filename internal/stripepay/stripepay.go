// Package stripepay implements the payment gateway on Stripe PaymentIntents.
package stripepay

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/storefront/internal/domain/payment"
)

// Config configures the Stripe gateway.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
	// BaseURL overrides the Stripe API endpoint.
	BaseURL string
}

// Gateway implements payment.Gateway.
type Gateway struct {
	api           *client.API
	webhookSecret string
}

var _ payment.Gateway = (*Gateway)(nil)

// New creates a Gateway. Outgoing calls are traced and bounded by
// cfg.Timeout.
func New(cfg Config) *Gateway {
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	backends := stripe.NewBackends(httpClient)
	if cfg.BaseURL != "" {
		backends.API = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient:        httpClient,
			URL:               stripe.String(cfg.BaseURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
	}

	return &Gateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateIntent creates a PaymentIntent for amount in the currency's minor
// units with automatic payment methods enabled.
func (g *Gateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(amount)),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, &payment.GatewayError{Op: "create intent", Err: err}
	}
	return toIntent(pi), nil
}

// GetIntent fetches the current state of a PaymentIntent.
func (g *Gateway) GetIntent(ctx context.Context, id string) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, &payment.GatewayError{Op: "get intent", Err: err}
	}
	return toIntent(pi), nil
}

// VerifyWebhook checks the Stripe-Signature header and decodes payment
// intent events. Other event types are returned with only ID and Type set.
func (g *Gateway) VerifyWebhook(payload []byte, signature string) (*payment.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, errors.Wrap(payment.ErrInvalidSignature, err.Error())
	}

	out := &payment.Event{ID: ev.ID, Type: payment.EventType(ev.Type)}
	if !strings.HasPrefix(string(ev.Type), "payment_intent.") || ev.Data == nil {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return nil, errors.Wrap(err, "decode payment intent")
	}
	out.IntentID = pi.ID
	out.OrderID = pi.Metadata[payment.MetaOrderID]
	return out, nil
}

// MinorUnits converts an amount to the smallest currency unit, rounding
// half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func toIntent(pi *stripe.PaymentIntent) *payment.Intent {
	return &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       payment.IntentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
}
