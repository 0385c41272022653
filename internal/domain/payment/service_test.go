package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/order"
)

type mockGateway struct {
	created   map[string]string
	amount    decimal.Decimal
	intent    *Intent
	event     *Event
	err       error
	verifyErr error
}

func (m *mockGateway) CreateIntent(_ context.Context, amount decimal.Decimal, _ string, metadata map[string]string) (*Intent, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.amount = amount
	m.created = metadata
	return &Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: IntentRequiresPaymentMethod}, nil
}

func (m *mockGateway) GetIntent(_ context.Context, id string) (*Intent, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.intent == nil {
		return &Intent{ID: id, Status: IntentProcessing}, nil
	}
	return m.intent, nil
}

func (m *mockGateway) VerifyWebhook([]byte, string) (*Event, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.event, nil
}

type mockOrders struct {
	order    *order.Order
	attached string
	updates  []order.PaymentUpdate
	err      error
}

func (m *mockOrders) Get(_ context.Context, userID string, _ bool, ref string) (*order.Order, error) {
	if m.order == nil || m.order.ID != ref || m.order.UserID != userID {
		return nil, order.ErrNotFound
	}
	o := *m.order
	return &o, nil
}

func (m *mockOrders) AttachPaymentIntent(_ context.Context, _, intentID string) error {
	m.attached = intentID
	return nil
}

func (m *mockOrders) UpdatePaymentStatus(_ context.Context, u order.PaymentUpdate) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.updates = append(m.updates, u)
	o := *m.order
	o.PaymentStatus = u.Status
	return &o, nil
}

func pendingOrder() *order.Order {
	return &order.Order{
		ID:            "o1",
		Number:        "ORD-1",
		UserID:        "u1",
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Total:         decimal.RequireFromString("2459"),
	}
}

func TestService_CreateCheckout(t *testing.T) {
	t.Run("creates intent for order total", func(t *testing.T) {
		gw := &mockGateway{}
		orders := &mockOrders{order: pendingOrder()}
		svc := NewService(gw, orders, "inr", time.Second)

		c, err := svc.CreateCheckout(context.Background(), "u1", "o1")
		require.NoError(t, err)
		assert.Equal(t, "pi_1_secret", c.ClientSecret)
		assert.Equal(t, "pi_1", orders.attached)
		assert.True(t, decimal.RequireFromString("2459").Equal(gw.amount))
		assert.Equal(t, "ORD-1", gw.created[MetaOrderNumber])
		assert.Equal(t, "o1", gw.created[MetaOrderID])
	})

	t.Run("already paid", func(t *testing.T) {
		o := pendingOrder()
		o.PaymentStatus = order.PaymentPaid
		svc := NewService(&mockGateway{}, &mockOrders{order: o}, "inr", time.Second)

		_, err := svc.CreateCheckout(context.Background(), "u1", "o1")
		require.ErrorIs(t, err, order.ErrAlreadyPaid)
	})

	t.Run("foreign order", func(t *testing.T) {
		svc := NewService(&mockGateway{}, &mockOrders{order: pendingOrder()}, "inr", time.Second)

		_, err := svc.CreateCheckout(context.Background(), "u2", "o1")
		require.ErrorIs(t, err, order.ErrNotFound)
	})

	t.Run("gateway failure", func(t *testing.T) {
		gwErr := &GatewayError{Op: "create intent", Err: errors.New("timeout")}
		orders := &mockOrders{order: pendingOrder()}
		svc := NewService(&mockGateway{err: gwErr}, orders, "inr", time.Second)

		_, err := svc.CreateCheckout(context.Background(), "u1", "o1")
		var gErr *GatewayError
		require.ErrorAs(t, err, &gErr)
		assert.Empty(t, orders.attached)
	})
}

func TestService_Confirm(t *testing.T) {
	t.Run("succeeded intent marks paid", func(t *testing.T) {
		o := pendingOrder()
		o.PaymentIntentID = "pi_1"
		orders := &mockOrders{order: o}
		gw := &mockGateway{intent: &Intent{ID: "pi_1", Status: IntentSucceeded}}
		svc := NewService(gw, orders, "inr", time.Second)

		got, err := svc.Confirm(context.Background(), "u1", "o1")
		require.NoError(t, err)
		assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
		require.Len(t, orders.updates, 1)
		assert.Equal(t, "pi_1", orders.updates[0].IntentID)
	})

	t.Run("pending intent", func(t *testing.T) {
		o := pendingOrder()
		o.PaymentIntentID = "pi_1"
		svc := NewService(&mockGateway{}, &mockOrders{order: o}, "inr", time.Second)

		_, err := svc.Confirm(context.Background(), "u1", "o1")
		var ncErr *NotCompletedError
		require.ErrorAs(t, err, &ncErr)
		assert.Equal(t, IntentProcessing, ncErr.Status)
	})

	t.Run("no intent", func(t *testing.T) {
		svc := NewService(&mockGateway{}, &mockOrders{order: pendingOrder()}, "inr", time.Second)

		_, err := svc.Confirm(context.Background(), "u1", "o1")
		require.ErrorIs(t, err, ErrNoIntent)
	})
}

func TestService_HandleWebhook(t *testing.T) {
	tests := []struct {
		name       string
		event      *Event
		verifyErr  error
		updateErr  error
		wantErr    error
		wantStatus order.PaymentStatus
	}{
		{
			name:       "succeeded",
			event:      &Event{ID: "evt_1", Type: EventIntentSucceeded, IntentID: "pi_1", OrderID: "o1"},
			wantStatus: order.PaymentPaid,
		},
		{
			name:       "failed",
			event:      &Event{ID: "evt_2", Type: EventIntentFailed, IntentID: "pi_1", OrderID: "o1"},
			wantStatus: order.PaymentFailed,
		},
		{
			name:  "other events ignored",
			event: &Event{ID: "evt_3", Type: "charge.refunded", OrderID: "o1"},
		},
		{
			name:  "missing order id ignored",
			event: &Event{ID: "evt_4", Type: EventIntentSucceeded, IntentID: "pi_1"},
		},
		{
			name:      "bad signature",
			verifyErr: ErrInvalidSignature,
			wantErr:   ErrInvalidSignature,
		},
		{
			name:      "unknown order acknowledged",
			event:     &Event{ID: "evt_5", Type: EventIntentSucceeded, OrderID: "o404"},
			updateErr: order.ErrNotFound,
		},
		{
			name:      "conflicting state acknowledged",
			event:     &Event{ID: "evt_6", Type: EventIntentFailed, OrderID: "o1"},
			updateErr: &order.InvalidTransitionError{Field: "payment status", From: "PAID", To: "FAILED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrders{order: pendingOrder(), err: tt.updateErr}
			gw := &mockGateway{event: tt.event, verifyErr: tt.verifyErr}
			svc := NewService(gw, orders, "inr", time.Second)

			err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantStatus == "" {
				assert.Empty(t, orders.updates)
				return
			}
			require.Len(t, orders.updates, 1)
			assert.Equal(t, tt.wantStatus, orders.updates[0].Status)
		})
	}
}

func TestService_HandleWebhook_StorageError(t *testing.T) {
	orders := &mockOrders{order: pendingOrder(), err: errors.New("connection reset")}
	gw := &mockGateway{event: &Event{Type: EventIntentSucceeded, OrderID: "o1"}}
	svc := NewService(gw, orders, "inr", time.Second)

	err := svc.HandleWebhook(context.Background(), nil, "sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update payment status")
}
