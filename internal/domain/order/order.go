package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/inventory"
)

// Status is the fulfillment status of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// fulfillment order of statuses; CANCELLED is off the main line.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

// Cancellable reports whether an order in status s may be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanAdvanceTo reports whether the order may move forward from s to next.
// Cancellation is handled separately by Cancellable.
func (s Status) CanAdvanceTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentFailed:  {PaymentPaid},
	PaymentPaid:    {PaymentRefunded},
}

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether payment may move from p to next.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, s := range paymentTransitions[p] {
		if s == next {
			return true
		}
	}
	return false
}

// VariantSnapshot is the variant as it was when the order was placed.
type VariantSnapshot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// Item is an order line with the unit price frozen at purchase time.
type Item struct {
	ProductID string          `json:"productId"`
	Variant   VariantSnapshot `json:"variant"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is a placed customer order. Monetary fields satisfy
// Total = Subtotal - Discount + Tax + Shipping.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Status          Status
	PaymentStatus   PaymentStatus
	PaymentMethod   string
	PaymentIntentID string
	ShippingAddress address.Address
	BillingAddress  address.Address
	Items           []Item
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	CouponCode      string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InventoryLines returns the stock lines held by the order.
func (o *Order) InventoryLines() []inventory.Line {
	lines := make([]inventory.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = inventory.Line{
			ProductID:   it.ProductID,
			VariantID:   it.Variant.ID,
			VariantName: it.Variant.Name,
			Quantity:    it.Quantity,
		}
	}
	return lines
}

// ProductIDs returns the distinct product ids referenced by the orders.
func ProductIDs(orders ...*Order) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; ok {
				continue
			}
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

// ListFilter narrows order listings. Empty fields do not filter.
type ListFilter struct {
	UserID        string
	Status        Status
	PaymentStatus PaymentStatus
	// Search matches the order number or the shipping first or last name
	// case-insensitively, as a substring.
	Search string
	Limit  int
	Offset int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create assigns ID and timestamps and stores the order. It returns
	// ErrNumberConflict when the order number is already taken.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	// GetForUpdate loads the order and locks it for the current transaction.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// Update persists status, payment status and payment intent id.
	Update(ctx context.Context, o *Order) error
	List(ctx context.Context, f ListFilter) ([]Order, error)
	Count(ctx context.Context, f ListFilter) (int, error)
}

// Transactor runs fn in a database transaction carried by the context.
// Nested calls run in a savepoint of the outer transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserDirectory resolves contact details for notifications.
type UserDirectory interface {
	Email(ctx context.Context, userID string) (string, error)
}

// IdempotencyStore remembers checkout requests by client-supplied key.
type IdempotencyStore interface {
	// Claim reserves key for the user. When the key was already claimed it
	// returns claimed=false and the order id stored for it, which is empty
	// while the first request is still running.
	Claim(ctx context.Context, userID, key string) (orderID string, claimed bool, err error)
	Complete(ctx context.Context, userID, key, orderID string) error
	Release(ctx context.Context, userID, key string) error
}
