package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrNotFound                = errors.New("order not found")
	ErrShippingAddressRequired = errors.New("shipping address is required")
	ErrBillingAddressRequired  = errors.New("billing address is required")
	ErrNumberConflict          = errors.New("order number already exists")
	ErrCheckoutInProgress      = errors.New("checkout with this idempotency key is in progress")
	ErrAlreadyPaid             = errors.New("order is already paid")
)

// InvalidTransitionError indicates a status change the order's state machine
// does not allow.
type InvalidTransitionError struct {
	Field string
	From  string
	To    string
}

func (e *InvalidTransitionError) Error() string {
	if e.To == string(StatusCancelled) && e.Field == "status" {
		return fmt.Sprintf("order cannot be cancelled in status %s", e.From)
	}
	return fmt.Sprintf("cannot change %s from %s to %s", e.Field, e.From, e.To)
}

// InvalidStatusError indicates an unknown status value.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Value)
}
