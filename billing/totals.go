// Package billing holds the invoice arithmetic and state rules. It has no I/O; services
// load and persist the records it operates on.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ErrNegativeQuantity is returned for line items with quantity < 0. Credits are expressed
// with a negative rate instead.
var ErrNegativeQuantity = errors.New("quantity must not be negative")

// Line is the input of one invoice row. TaxRate is a percentage; nil means no tax type attached.
type Line struct {
	Quantity decimal.Decimal
	Rate     decimal.Decimal
	TaxRate  *decimal.Decimal
}

// LineAmounts are the rounded amounts of one row.
type LineAmounts struct {
	Net       decimal.Decimal
	TaxAmount decimal.Decimal
	LineTotal decimal.Decimal
}

type Totals struct {
	Lines     []LineAmounts
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Shipping  decimal.Decimal
	Total     decimal.Decimal
}

// Round2 rounds half away from zero to 2 places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeLine rounds net and tax individually so the sums are reproducible.
func ComputeLine(l Line) LineAmounts {
	net := Round2(l.Quantity.Mul(l.Rate))
	tax := decimal.Zero
	if l.TaxRate != nil {
		tax = Round2(net.Mul(*l.TaxRate).Div(hundred))
	}
	return LineAmounts{Net: net, TaxAmount: tax, LineTotal: net.Add(tax)}
}

// ComputeTotals returns subtotal (tax exclusive), aggregate tax and total = subtotal + tax + shipping.
func ComputeTotals(lines []Line, shipping decimal.Decimal) (Totals, error) {
	if shipping.IsNegative() {
		return Totals{}, errors.New("shipping must not be negative")
	}
	t := Totals{
		Lines:     make([]LineAmounts, 0, len(lines)),
		Subtotal:  decimal.Zero,
		TaxAmount: decimal.Zero,
		Shipping:  Round2(shipping),
	}
	for i, l := range lines {
		if l.Quantity.IsNegative() {
			return Totals{}, fmt.Errorf("item %d: %w", i, ErrNegativeQuantity)
		}
		if l.TaxRate != nil && l.TaxRate.IsNegative() {
			return Totals{}, fmt.Errorf("item %d: tax rate must not be negative", i)
		}
		amounts := ComputeLine(l)
		t.Lines = append(t.Lines, amounts)
		t.Subtotal = t.Subtotal.Add(amounts.Net)
		t.TaxAmount = t.TaxAmount.Add(amounts.TaxAmount)
	}
	t.Total = t.Subtotal.Add(t.TaxAmount).Add(t.Shipping)
	return t, nil
}
