package stripepay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/xenking/storefront/internal/domain/payment"
)

const testSecret = "whsec_test"

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"2459", 245900},
		{"4835.64", 483564},
		{"0.005", 1},
		{"99.999", 10000},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.in)))
		})
	}
}

func signed(t *testing.T, payload map[string]any, secret string) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   raw,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func intentEvent(eventType string) map[string]any {
	return map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2023-10-16",
		"data": map[string]any{
			"object": map[string]any{
				"id":       "pi_123",
				"object":   "payment_intent",
				"status":   "succeeded",
				"metadata": map[string]string{payment.MetaOrderID: "order-1"},
			},
		},
	}
}

func TestGateway_VerifyWebhook(t *testing.T) {
	g := New(Config{SecretKey: "sk_test", WebhookSecret: testSecret, Timeout: time.Second})

	t.Run("payment intent succeeded", func(t *testing.T) {
		payload, header := signed(t, intentEvent("payment_intent.succeeded"), testSecret)

		ev, err := g.VerifyWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, payment.EventIntentSucceeded, ev.Type)
		assert.Equal(t, "pi_123", ev.IntentID)
		assert.Equal(t, "order-1", ev.OrderID)
	})

	t.Run("other event", func(t *testing.T) {
		payload, header := signed(t, map[string]any{
			"id": "evt_2", "object": "event", "type": "customer.created",
			"data": map[string]any{"object": map[string]any{"id": "cus_1"}},
		}, testSecret)

		ev, err := g.VerifyWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, payment.EventType("customer.created"), ev.Type)
		assert.Empty(t, ev.OrderID)
	})

	t.Run("forged signature", func(t *testing.T) {
		payload, header := signed(t, intentEvent("payment_intent.succeeded"), "whsec_other")

		_, err := g.VerifyWebhook(payload, header)
		require.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		payload, _ := signed(t, intentEvent("payment_intent.succeeded"), testSecret)

		_, err := g.VerifyWebhook(payload, "")
		require.ErrorIs(t, err, payment.ErrInvalidSignature)
	})
}

func TestGateway_CreateIntent(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_new","object":"payment_intent","client_secret":"pi_new_secret","status":"requires_payment_method"}`))
	}))
	defer srv.Close()

	g := New(Config{SecretKey: "sk_test", Timeout: time.Second, BaseURL: srv.URL})

	intent, err := g.CreateIntent(context.Background(), decimal.RequireFromString("2459"), "INR",
		map[string]string{payment.MetaOrderID: "order-1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_new", intent.ID)
	assert.Equal(t, "pi_new_secret", intent.ClientSecret)
	assert.Equal(t, payment.IntentRequiresPaymentMethod, intent.Status)

	assert.Equal(t, "245900", form.Get("amount"))
	assert.Equal(t, "inr", form.Get("currency"))
	assert.Equal(t, "order-1", form.Get("metadata[orderId]"))
	assert.Equal(t, "true", form.Get("automatic_payment_methods[enabled]"))
}

func TestGateway_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","message":"declined"}}`))
	}))
	defer srv.Close()

	g := New(Config{SecretKey: "sk_test", Timeout: time.Second, BaseURL: srv.URL})

	_, err := g.GetIntent(context.Background(), "pi_1")
	var gErr *payment.GatewayError
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, "get intent", gErr.Op)
}
