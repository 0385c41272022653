package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

// DefaultTimeout bounds a single gateway call.
const DefaultTimeout = 15 * time.Second

// Orders is the order lifecycle used by payments.
type Orders interface {
	Get(ctx context.Context, userID string, admin bool, ref string) (*order.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID, intentID string) error
	UpdatePaymentStatus(ctx context.Context, u order.PaymentUpdate) (*order.Order, error)
}

var _ Orders = (*order.Service)(nil)

// Checkout is a created payment session for the client.
type Checkout struct {
	IntentID     string
	ClientSecret string
}

// Service implements payment use cases.
type Service struct {
	gateway  Gateway
	orders   Orders
	currency string
	timeout  time.Duration
}

// NewService creates a payment Service charging in currency.
func NewService(gateway Gateway, orders Orders, currency string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		gateway:  gateway,
		orders:   orders,
		currency: currency,
		timeout:  timeout,
	}
}

// CreateCheckout creates a payment intent for the order total.
func (s *Service) CreateCheckout(ctx context.Context, userID, orderID string) (*Checkout, error) {
	o, err := s.orders.Get(ctx, userID, false, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, order.ErrAlreadyPaid
	}
	if o.Status == order.StatusCancelled {
		return nil, &order.InvalidTransitionError{Field: "payment status", From: string(o.Status), To: string(order.PaymentPaid)}
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.gateway.CreateIntent(gctx, o.Total, s.currency, map[string]string{
		MetaOrderID:     o.ID,
		MetaOrderNumber: o.Number,
		MetaUserID:      o.UserID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.orders.AttachPaymentIntent(ctx, o.ID, intent.ID); err != nil {
		return nil, errors.Wrap(err, "attach payment intent")
	}

	zctx.From(ctx).Info("Payment intent created",
		zap.String("order_id", o.ID),
		zap.String("intent_id", intent.ID),
	)
	return &Checkout{IntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// Confirm checks the order's intent at the gateway and marks the order paid
// when it has succeeded.
func (s *Service) Confirm(ctx context.Context, userID, orderID string) (*order.Order, error) {
	o, err := s.orders.Get(ctx, userID, false, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentIntentID == "" {
		return nil, ErrNoIntent
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.gateway.GetIntent(gctx, o.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != IntentSucceeded {
		return nil, &NotCompletedError{Status: intent.Status}
	}

	return s.orders.UpdatePaymentStatus(ctx, order.PaymentUpdate{
		OrderID:  o.ID,
		UserID:   userID,
		Status:   order.PaymentPaid,
		IntentID: intent.ID,
	})
}

// Status returns the order with its current payment state.
func (s *Service) Status(ctx context.Context, userID, orderID string) (*order.Order, error) {
	return s.orders.Get(ctx, userID, false, orderID)
}

// HandleWebhook verifies and applies a gateway event. Events that do not
// concern a known order, or that conflict with its current payment state,
// are logged and acknowledged so the gateway stops redelivering them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}

	lg := zctx.From(ctx).With(
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.String("intent_id", ev.IntentID),
	)

	var status order.PaymentStatus
	switch ev.Type {
	case EventIntentSucceeded:
		status = order.PaymentPaid
	case EventIntentFailed:
		status = order.PaymentFailed
	default:
		lg.Debug("Ignoring webhook event")
		return nil
	}
	if ev.OrderID == "" {
		lg.Warn("Webhook event without order id")
		return nil
	}

	o, err := s.orders.UpdatePaymentStatus(ctx, order.PaymentUpdate{
		OrderID:  ev.OrderID,
		Status:   status,
		IntentID: ev.IntentID,
	})
	var trErr *order.InvalidTransitionError
	switch {
	case errors.Is(err, order.ErrNotFound):
		lg.Warn("Webhook event for unknown order", zap.String("order_id", ev.OrderID))
		return nil
	case errors.As(err, &trErr):
		lg.Warn("Webhook event conflicts with payment state", zap.Error(err))
		return nil
	case err != nil:
		return errors.Wrap(err, "update payment status")
	}

	lg.Info("Webhook applied",
		zap.String("order_id", o.ID),
		zap.String("payment_status", string(o.PaymentStatus)),
	)
	return nil
}
