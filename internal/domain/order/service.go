package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/notify"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// maxNumberAttempts bounds order number regeneration on collisions.
const maxNumberAttempts = 3

// DefaultNotifyTimeout bounds a single confirmation delivery.
const DefaultNotifyTimeout = 10 * time.Second

// Carts is the cart collaborator used by checkout.
type Carts interface {
	// Lock holds the user's cart until the transaction carried by ctx ends.
	Lock(ctx context.Context, userID string) error
	Snapshot(ctx context.Context, userID string) ([]cart.Line, error)
	Clear(ctx context.Context, userID string) error
}

// AddressSource selects a saved address by id or carries one inline.
type AddressSource struct {
	SavedID string
	Inline  *address.Address
}

func (a AddressSource) empty() bool {
	return a.SavedID == "" && a.Inline == nil
}

// PlaceOrderRequest holds the input for placing an order from the user's cart.
type PlaceOrderRequest struct {
	UserID         string
	Shipping       AddressSource
	Billing        AddressSource
	SameAsShipping bool
	PaymentMethod  string
	CouponCode     string
	Notes          string
	IdempotencyKey string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products map[string]product.Product
	// Replayed is set when the result was returned for a repeated
	// idempotency key.
	Replayed bool
}

// Deps are the collaborators of the order Service.
type Deps struct {
	Tx        Transactor
	Orders    Repository
	Carts     Carts
	Products  product.Repository
	Addresses address.Repository
	Coupons   coupon.Validator
	Inventory inventory.Store
	Users     UserDirectory
	Notifier  notify.Sender
}

// Option configures a Service.
type Option func(*Service)

// WithPricing overrides the default pricing engine.
func WithPricing(e pricing.Engine) Option {
	return func(s *Service) { s.pricing = e }
}

// WithNumberGenerator overrides the order number generator.
func WithNumberGenerator(gen NumberGenerator) Option {
	return func(s *Service) { s.numbers = gen }
}

// WithIdempotency enables idempotency keys on PlaceOrder.
func WithIdempotency(store IdempotencyStore) Option {
	return func(s *Service) { s.idem = store }
}

// WithNotifyTimeout bounds confirmation delivery.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("storefront/order") }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter("storefront/order") }
}

// Service encapsulates order placement and lifecycle business logic.
type Service struct {
	tx        Transactor
	orders    Repository
	carts     Carts
	products  product.Repository
	addresses address.Repository
	coupons   coupon.Validator
	inventory inventory.Store
	users     UserDirectory
	notifier  notify.Sender

	pricing       pricing.Engine
	numbers       NumberGenerator
	idem          IdempotencyStore
	notifyTimeout time.Duration

	tracer trace.Tracer
	meter  metric.Meter

	placed   metric.Int64Counter
	rejected metric.Int64Counter
	revenue  metric.Float64Counter

	// wait for background notifications, for tests.
	notified func()
}

// NewService creates an order Service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	s := &Service{
		tx:            deps.Tx,
		orders:        deps.Orders,
		carts:         deps.Carts,
		products:      deps.Products,
		addresses:     deps.Addresses,
		coupons:       deps.Coupons,
		inventory:     deps.Inventory,
		users:         deps.Users,
		notifier:      deps.Notifier,
		pricing:       pricing.NewEngine(),
		numbers:       NewNumberGenerator(time.Now),
		notifyTimeout: DefaultNotifyTimeout,
		tracer:        tracenoop.NewTracerProvider().Tracer(""),
		meter:         metricnoop.NewMeterProvider().Meter(""),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.placed, err = s.meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.placed")
	}
	if s.rejected, err = s.meter.Int64Counter("orders.rejected",
		metric.WithDescription("Checkouts rejected, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.rejected")
	}
	if s.revenue, err = s.meter.Float64Counter("orders.revenue",
		metric.WithDescription("Total value of placed orders"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.revenue")
	}
	return s, nil
}

// PlaceOrder converts the user's cart into an order.
//
// The cart is locked and snapshotted in the same transaction that applies
// the coupon, reserves stock, inserts the order and clears the cart. Cart
// writes racing the checkout land either before the snapshot or after the
// clear. Any failure rolls back every stock decrement. The confirmation
// email is sent after commit and never fails the checkout.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (res *PlaceOrderResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(rerr))))
		}
		span.End()
	}()

	if req.IdempotencyKey != "" && s.idem != nil {
		replay, err := s.claimKey(ctx, req)
		if err != nil || replay != nil {
			return replay, err
		}
		defer func() {
			s.settleKey(ctx, req, res, rerr)
		}()
	}

	shipping, billing, err := s.resolveAddresses(ctx, req)
	if err != nil {
		return nil, err
	}

	o := &Order{
		UserID:          req.UserID,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Notes:           req.Notes,
	}

	var lines []cart.Line
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.carts.Lock(ctx, req.UserID); err != nil {
			return err
		}
		var err error
		if lines, err = s.carts.Snapshot(ctx, req.UserID); err != nil {
			return err
		}
		for _, l := range lines {
			if l.Variant.Stock < l.Quantity {
				return &inventory.InsufficientStockError{
					ProductID:   l.Product.ID,
					ProductName: l.Product.Name,
					VariantID:   l.Variant.ID,
					VariantName: l.Variant.Name,
					Requested:   l.Quantity,
				}
			}
		}
		o.Items = frozenItems(lines)
		priceLines := cart.PricingLines(lines)

		discount := decimal.Zero
		if req.CouponCode != "" {
			app, err := s.coupons.Apply(ctx, req.CouponCode, pricing.Subtotal(priceLines))
			if err != nil {
				return errors.Wrap(err, "apply coupon")
			}
			if app.Applied {
				discount = app.Discount
				o.CouponCode = app.Code
			} else {
				zctx.From(ctx).Info("Coupon not applied",
					zap.String("code", app.Code),
					zap.String("reason", app.Reason.Error()),
				)
			}
		}

		totals := s.pricing.Compute(priceLines, discount)
		o.Subtotal = totals.Subtotal
		o.Discount = totals.Discount
		o.Tax = totals.Tax
		o.Shipping = totals.Shipping
		o.Total = totals.Total

		if err := s.inventory.Reserve(ctx, cart.InventoryLines(lines)); err != nil {
			return err
		}
		if err := s.create(ctx, o); err != nil {
			return err
		}
		if err := s.carts.Clear(ctx, req.UserID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("total", o.Total.StringFixed(2)),
	)
	s.placed.Add(ctx, 1)
	s.revenue.Add(ctx, o.Total.InexactFloat64())
	s.sendConfirmation(ctx, o)

	products := make(map[string]product.Product, len(lines))
	for _, l := range lines {
		products[l.Product.ID] = l.Product
	}
	return &PlaceOrderResult{Order: o, Products: products}, nil
}

func (s *Service) update(ctx context.Context, o *Order) error {
	if err := s.orders.Update(ctx, o); err != nil {
		return errors.Wrap(err, "update order")
	}
	return nil
}

// create inserts the order, regenerating the number on collisions.
func (s *Service) create(ctx context.Context, o *Order) error {
	for attempt := 1; ; attempt++ {
		o.Number = s.numbers()
		err := s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNumberConflict) || attempt >= maxNumberAttempts {
			return errors.Wrap(err, "create order")
		}
		zctx.From(ctx).Warn("Order number collision, regenerating",
			zap.String("order_number", o.Number),
			zap.Int("attempt", attempt),
		)
	}
}

func (s *Service) resolveAddresses(ctx context.Context, req PlaceOrderRequest) (shipping, billing address.Address, err error) {
	if req.Shipping.empty() {
		return shipping, billing, ErrShippingAddressRequired
	}
	shipping, err = s.resolveAddress(ctx, req.UserID, req.Shipping, "shipping address")
	if err != nil {
		return shipping, billing, err
	}

	if req.SameAsShipping {
		return shipping, shipping, nil
	}
	if req.Billing.empty() {
		return shipping, billing, ErrBillingAddressRequired
	}
	billing, err = s.resolveAddress(ctx, req.UserID, req.Billing, "billing address")
	return shipping, billing, err
}

func (s *Service) resolveAddress(ctx context.Context, userID string, src AddressSource, kind string) (address.Address, error) {
	if src.SavedID != "" {
		a, err := s.addresses.FindByID(ctx, src.SavedID, userID)
		if err != nil {
			return address.Address{}, errors.Wrap(err, kind)
		}
		return a.WithDefaults(), nil
	}
	return src.Inline.WithDefaults(), nil
}

func frozenItems(lines []cart.Line) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductID: l.Product.ID,
			Variant: VariantSnapshot{
				ID:    l.Variant.ID,
				Name:  l.Variant.Name,
				SKU:   l.Variant.SKU,
				Size:  l.Variant.Size,
				Color: l.Variant.Color,
			},
			Quantity: l.Quantity,
			Price:    l.Variant.Price,
		}
	}
	return items
}

func (s *Service) claimKey(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	orderID, claimed, err := s.idem.Claim(ctx, req.UserID, req.IdempotencyKey)
	if err != nil {
		return nil, errors.Wrap(err, "claim idempotency key")
	}
	if claimed {
		return nil, nil
	}
	if orderID == "" {
		return nil, ErrCheckoutInProgress
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get replayed order")
	}
	products, err := s.ProductsFor(ctx, o)
	if err != nil {
		return nil, err
	}
	return &PlaceOrderResult{Order: o, Products: products, Replayed: true}, nil
}

// settleKey stores the placed order under the key, or frees the key after a
// failure so the client can retry.
func (s *Service) settleKey(ctx context.Context, req PlaceOrderRequest, res *PlaceOrderResult, placeErr error) {
	lg := zctx.From(ctx).With(zap.String("idempotency_key", req.IdempotencyKey))
	ctx = context.WithoutCancel(ctx)
	if placeErr != nil {
		if err := s.idem.Release(ctx, req.UserID, req.IdempotencyKey); err != nil {
			lg.Warn("Release idempotency key", zap.Error(err))
		}
		return
	}
	if err := s.idem.Complete(ctx, req.UserID, req.IdempotencyKey, res.Order.ID); err != nil {
		lg.Warn("Complete idempotency key", zap.Error(err))
	}
}

// sendConfirmation dispatches the confirmation email in the background.
func (s *Service) sendConfirmation(ctx context.Context, o *Order) {
	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
	)
	ctx = context.WithoutCancel(ctx)
	msg := notify.OrderConfirmation{
		OrderNumber: o.Number,
		Subtotal:    o.Subtotal,
		Discount:    o.Discount,
		Tax:         o.Tax,
		Shipping:    o.Shipping,
		Total:       o.Total,
	}
	userID := o.UserID

	go func() {
		if s.notified != nil {
			defer s.notified()
		}
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()

		email, err := s.users.Email(ctx, userID)
		if err != nil {
			lg.Warn("Resolve confirmation recipient", zap.Error(err))
			return
		}
		msg.Email = email
		if err := s.notifier.SendOrderConfirmation(ctx, msg); err != nil {
			lg.Warn("Send order confirmation", zap.Error(err))
			return
		}
		lg.Debug("Order confirmation sent")
	}()
}

// Get returns an order by id or order number. Non-admin callers only see
// their own orders.
func (s *Service) Get(ctx context.Context, userID string, admin bool, ref string) (*Order, error) {
	var (
		o   *Order
		err error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		o, err = s.orders.GetByID(ctx, ref)
	} else {
		o, err = s.orders.GetByNumber(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if !admin && o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns a page of orders matching f and the total match count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, &InvalidStatusError{Value: string(f.Status)}
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return nil, 0, &InvalidStatusError{Value: string(f.PaymentStatus)}
	}

	var (
		orders []Order
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if orders, err = s.orders.List(gctx, f); err != nil {
			return errors.Wrap(err, "list orders")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if total, err = s.orders.Count(gctx, f); err != nil {
			return errors.Wrap(err, "count orders")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ProductsFor resolves display data for the products referenced by orders.
// Products removed from the catalog are absent from the result.
func (s *Service) ProductsFor(ctx context.Context, orders ...*Order) (map[string]product.Product, error) {
	ids := ProductIDs(orders...)
	out := make(map[string]product.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	for _, p := range fetched {
		out[p.ID] = p
	}
	return out, nil
}

// Cancel cancels an order and returns its stock. Non-admin callers may only
// cancel their own orders.
func (s *Service) Cancel(ctx context.Context, userID string, admin bool, orderID string) (*Order, error) {
	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !admin && o.UserID != userID {
			return ErrNotFound
		}
		return s.cancelLocked(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order cancelled",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
	)
	return o, nil
}

func (s *Service) cancelLocked(ctx context.Context, o *Order) error {
	if !o.Status.Cancellable() {
		return &InvalidTransitionError{Field: "status", From: string(o.Status), To: string(StatusCancelled)}
	}
	if err := s.inventory.Release(ctx, o.InventoryLines()); err != nil {
		return errors.Wrap(err, "release stock")
	}
	o.Status = StatusCancelled
	return s.update(ctx, o)
}

// UpdateStatus moves an order to status. Setting the current status is a
// no-op; CANCELLED goes through cancellation and returns stock.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, &InvalidStatusError{Value: string(status)}
	}

	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		switch {
		case o.Status == status:
			return nil
		case status == StatusCancelled:
			return s.cancelLocked(ctx, o)
		case !o.Status.CanAdvanceTo(status):
			return &InvalidTransitionError{Field: "status", From: string(o.Status), To: string(status)}
		}
		o.Status = status
		return s.update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// PaymentUpdate is a payment status change reported by the client or the
// payment gateway.
type PaymentUpdate struct {
	OrderID string
	// UserID restricts the update to the owner's order when set.
	UserID   string
	Status   PaymentStatus
	IntentID string
}

// UpdatePaymentStatus applies a payment status change. Repeating the current
// status is a no-op, so redelivered gateway events are harmless. PAID also
// confirms a PENDING order.
func (s *Service) UpdatePaymentStatus(ctx context.Context, u PaymentUpdate) (*Order, error) {
	if !u.Status.Valid() {
		return nil, &InvalidStatusError{Value: string(u.Status)}
	}

	var (
		o       *Order
		changed bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetForUpdate(ctx, u.OrderID)
		if err != nil {
			return err
		}
		if u.UserID != "" && o.UserID != u.UserID {
			return ErrNotFound
		}
		if o.PaymentStatus == u.Status {
			return nil
		}
		if !o.PaymentStatus.CanTransitionTo(u.Status) {
			return &InvalidTransitionError{Field: "payment status", From: string(o.PaymentStatus), To: string(u.Status)}
		}

		o.PaymentStatus = u.Status
		if u.IntentID != "" {
			o.PaymentIntentID = u.IntentID
		}
		if u.Status == PaymentPaid && o.Status == StatusPending {
			o.Status = StatusConfirmed
		}
		changed = true
		return s.update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		zctx.From(ctx).Info("Payment status updated",
			zap.String("order_id", o.ID),
			zap.String("payment_status", string(o.PaymentStatus)),
			zap.String("status", string(o.Status)),
		)
	}
	return o, nil
}

// AttachPaymentIntent records the gateway intent created for an order.
func (s *Service) AttachPaymentIntent(ctx context.Context, orderID, intentID string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		o.PaymentIntentID = intentID
		return s.update(ctx, o)
	})
}

func rejectReason(err error) string {
	var (
		stockErr *inventory.InsufficientStockError
		varErr   *product.VariantNotFoundError
	)
	switch {
	case errors.Is(err, cart.ErrEmpty):
		return "empty_cart"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.Is(err, product.ErrNotFound), errors.As(err, &varErr):
		return "stale_cart"
	case errors.Is(err, address.ErrNotFound),
		errors.Is(err, ErrShippingAddressRequired),
		errors.Is(err, ErrBillingAddressRequired):
		return "address"
	case errors.Is(err, ErrCheckoutInProgress):
		return "in_progress"
	default:
		return "internal"
	}
}
