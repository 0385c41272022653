package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Quote is the outcome of a successful coupon check.
type Quote struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Application is the outcome of applying a coupon during checkout. When the
// coupon could not be applied, Applied is false, Discount is zero and Reason
// holds the rule that failed.
type Application struct {
	Code     string
	Discount decimal.Decimal
	Applied  bool
	Reason   error
}

// Validator checks and applies coupon codes.
type Validator interface {
	// Check validates code against orderValue without consuming a use.
	Check(ctx context.Context, code string, orderValue decimal.Decimal) (*Quote, error)
	// Apply validates code, computes the discount and consumes one use. Only
	// storage failures are returned as errors; an unusable code yields a zero
	// discount.
	Apply(ctx context.Context, code string, orderValue decimal.Decimal) (Application, error)
}

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check looks up the coupon and evaluates its rules against orderValue.
func (v *RepoValidator) Check(ctx context.Context, code string, orderValue decimal.Decimal) (*Quote, error) {
	c, err := v.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := c.Check(v.now(), orderValue); err != nil {
		return nil, err
	}

	return &Quote{
		Coupon:   c,
		Discount: c.CalculateDiscount(orderValue),
	}, nil
}

// Apply checks the coupon and, when it is valid, increments its usage
// counter exactly once. A concurrent checkout exhausting the usage limit
// between the check and the increment is reported as ErrUsageLimitReached.
func (v *RepoValidator) Apply(ctx context.Context, code string, orderValue decimal.Decimal) (Application, error) {
	app := Application{Code: NormalizeCode(code), Discount: decimal.Zero}

	q, err := v.Check(ctx, code, orderValue)
	if err != nil {
		if isRuleFailure(err) {
			app.Reason = err
			return app, nil
		}
		return app, err
	}

	ok, err := v.repo.IncrementUses(ctx, q.Coupon.ID)
	if err != nil {
		return app, errors.Wrap(err, "increment coupon uses")
	}
	if !ok {
		app.Reason = ErrUsageLimitReached
		return app, nil
	}

	app.Code = q.Coupon.Code
	app.Discount = q.Discount
	app.Applied = true
	return app, nil
}

// isRuleFailure reports whether err is a coupon eligibility failure rather
// than a storage error.
func isRuleFailure(err error) bool {
	var minErr *MinOrderValueError
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrNotStarted) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrUsageLimitReached) ||
		errors.As(err, &minErr)
}
