// Package payment connects orders to the external payment gateway.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for payment operations.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNoIntent         = errors.New("order has no payment intent")
)

// IntentStatus is the gateway-side state of a payment intent.
type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentCanceled              IntentStatus = "canceled"
)

// Intent is a payment intent created at the gateway.
type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	Metadata     map[string]string
}

// EventType classifies gateway webhook events.
type EventType string

const (
	EventIntentSucceeded EventType = "payment_intent.succeeded"
	EventIntentFailed    EventType = "payment_intent.payment_failed"
)

// Event is a verified webhook event about a payment intent.
type Event struct {
	ID       string
	Type     EventType
	IntentID string
	OrderID  string
}

// Metadata keys attached to intents.
const (
	MetaOrderID     = "orderId"
	MetaOrderNumber = "orderNumber"
	MetaUserID      = "userId"
)

// GatewayError wraps a failure talking to the payment gateway.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NotCompletedError indicates the intent has not succeeded yet.
type NotCompletedError struct {
	Status IntentStatus
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("payment not completed: %s", e.Status)
}

// Gateway is the payment processor adapter.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	// VerifyWebhook checks the payload signature and decodes the event.
	// It returns ErrInvalidSignature for forged or stale payloads.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
