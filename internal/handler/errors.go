package handler

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/review"
)

// Error codes of the envelope.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeEmptyCart           = "EMPTY_CART"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeInvalidCoupon       = "INVALID_COUPON"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeInvalidState        = "INVALID_STATE"
	CodeCheckoutInProgress  = "CHECKOUT_IN_PROGRESS"
	CodeConflict            = "CONFLICT"
	CodeAlreadyPaid         = "ALREADY_PAID"
	CodeNoPaymentIntent     = "NO_PAYMENT_INTENT"
	CodePaymentNotCompleted = "PAYMENT_NOT_COMPLETED"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeGateway             = "PAYMENT_GATEWAY_ERROR"
	CodeInternal            = "INTERNAL"
)

var (
	errForbidden        = errors.New("admin access required")
	errRouteNotFound    = errors.New("route not found")
	errMethodNotAllowed = errors.New("method not allowed")
)

// badRequestError is a malformed request.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string { return e.msg }
func (e *badRequestError) Unwrap() error { return e.err }

// invalidFieldsError lists failed validation rules.
type invalidFieldsError struct {
	fields []string
}

func (e *invalidFieldsError) Error() string {
	return "validation failed: " + strings.Join(e.fields, "; ")
}

type apiError struct {
	status  int
	code    string
	message string
	details []string
}

// classify maps domain errors to HTTP statuses and envelope codes.
func classify(err error) apiError {
	var (
		badReq     *badRequestError
		invalid    *invalidFieldsError
		qtyErr     *cart.InvalidQuantityError
		statusErr  *order.InvalidStatusError
		minErr     *coupon.MinOrderValueError
		variantErr *product.VariantNotFoundError
		stockErr   *inventory.InsufficientStockError
		transErr   *order.InvalidTransitionError
		pendingErr *payment.NotCompletedError
		gwErr      *payment.GatewayError
	)
	e := func(status int, code string) apiError {
		return apiError{status: status, code: code, message: err.Error()}
	}

	switch {
	case errors.As(err, &invalid):
		ae := e(http.StatusBadRequest, CodeValidation)
		ae.message = "validation failed"
		ae.details = invalid.fields
		return ae
	case errors.As(err, &badReq):
		return e(http.StatusBadRequest, CodeBadRequest)
	case errors.Is(err, auth.ErrUnauthorized):
		return e(http.StatusUnauthorized, CodeUnauthorized)
	case errors.Is(err, errForbidden):
		return e(http.StatusForbidden, CodeForbidden)
	case errors.Is(err, errMethodNotAllowed):
		return e(http.StatusMethodNotAllowed, CodeMethodNotAllowed)

	case errors.Is(err, cart.ErrEmpty):
		return e(http.StatusBadRequest, CodeEmptyCart)
	case errors.As(err, &qtyErr):
		return e(http.StatusBadRequest, CodeInvalidQuantity)
	case errors.As(err, &statusErr):
		return e(http.StatusBadRequest, CodeInvalidStatus)
	case errors.Is(err, order.ErrShippingAddressRequired),
		errors.Is(err, order.ErrBillingAddressRequired):
		return e(http.StatusBadRequest, CodeBadRequest)
	case errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrNotStarted),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.As(err, &minErr):
		return e(http.StatusBadRequest, CodeInvalidCoupon)
	case errors.Is(err, order.ErrAlreadyPaid):
		return e(http.StatusBadRequest, CodeAlreadyPaid)
	case errors.Is(err, payment.ErrNoIntent):
		return e(http.StatusBadRequest, CodeNoPaymentIntent)
	case errors.As(err, &pendingErr):
		return e(http.StatusBadRequest, CodePaymentNotCompleted)
	case errors.Is(err, payment.ErrInvalidSignature):
		return e(http.StatusBadRequest, CodeInvalidSignature)

	case errors.Is(err, errRouteNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.As(err, &variantErr),
		errors.Is(err, address.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, review.ErrNotFound):
		return e(http.StatusNotFound, CodeNotFound)

	case errors.As(err, &stockErr):
		ae := e(http.StatusConflict, CodeInsufficientStock)
		ae.message = stockErr.Error()
		return ae
	case errors.As(err, &transErr):
		ae := e(http.StatusConflict, CodeInvalidState)
		ae.message = transErr.Error()
		return ae
	case errors.Is(err, order.ErrCheckoutInProgress):
		return e(http.StatusConflict, CodeCheckoutInProgress)
	case errors.Is(err, order.ErrNumberConflict),
		errors.Is(err, review.ErrAlreadyReviewed):
		return e(http.StatusConflict, CodeConflict)

	case errors.As(err, &gwErr):
		return apiError{status: http.StatusBadGateway, code: CodeGateway, message: "payment gateway unavailable"}
	default:
		return apiError{status: http.StatusInternalServerError, code: CodeInternal, message: "internal server error"}
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFailure converts validator errors to an invalidFieldsError.
func validationFailure(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &badRequestError{msg: "invalid request", err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, describe(fe))
	}
	return &invalidFieldsError{fields: fields}
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), firstSegment(fe.Namespace()))
	field = strings.TrimPrefix(field, ".")
	if field == "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// firstSegment returns the struct name prefix of a validator namespace.
func firstSegment(ns string) string {
	name, _, _ := strings.Cut(ns, ".")
	return name
}
