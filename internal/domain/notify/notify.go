// Package notify defines the customer notification port.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderConfirmation is the content of an order confirmation message.
type OrderConfirmation struct {
	Email       string
	OrderNumber string
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	Shipping    decimal.Decimal
	Total       decimal.Decimal
}

// Sender delivers customer notifications.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error
}

// LogSender logs notifications instead of delivering them. It is used when no
// mail server is configured.
type LogSender struct{}

// SendOrderConfirmation implements Sender.
func (LogSender) SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	zctx.From(ctx).Info("Order confirmation not delivered: mail is disabled",
		zap.String("order_number", msg.OrderNumber),
		zap.String("total", msg.Total.StringFixed(2)),
	)
	return nil
}
