// Package pricing computes order and cart totals. It performs no I/O.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Default checkout constants, in the store currency.
var (
	DefaultTaxRate               = decimal.RequireFromString("0.18")
	DefaultFreeShippingThreshold = decimal.NewFromInt(2999)
	DefaultFlatShippingFee       = decimal.NewFromInt(99)
)

// Line is a priced line item.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals holds the monetary breakdown of a cart or order. All amounts are
// rounded to two decimal places and Total always equals
// Subtotal - Discount + Tax + Shipping.
type Totals struct {
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Tax       decimal.Decimal
	Shipping  decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
}

// Engine holds the tax and shipping policy.
type Engine struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
}

// NewEngine returns an Engine with the default policy.
func NewEngine() Engine {
	return Engine{
		TaxRate:               DefaultTaxRate,
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		FlatShippingFee:       DefaultFlatShippingFee,
	}
}

// Subtotal returns the sum of unit price times quantity across lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return Round(sum)
}

// ItemCount returns the sum of quantities across lines.
func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// Compute prices lines with the given discount. The discount is clamped to
// [0, subtotal] and tax is charged on the discounted subtotal. Shipping is
// waived when the undiscounted subtotal reaches the free shipping threshold
// and is never charged for an empty set of lines.
func (e Engine) Compute(lines []Line, discount decimal.Decimal) Totals {
	subtotal := Subtotal(lines)

	discount = Round(discount)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	tax := Round(subtotal.Sub(discount).Mul(e.TaxRate))

	shipping := Round(e.FlatShippingFee)
	if len(lines) == 0 || subtotal.GreaterThanOrEqual(e.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal:  subtotal,
		Discount:  discount,
		Tax:       tax,
		Shipping:  shipping,
		Total:     subtotal.Sub(discount).Add(tax).Add(shipping),
		ItemCount: ItemCount(lines),
	}
}

// Round rounds to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
