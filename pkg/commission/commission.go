// Package commission computes the platform's cut of a sale. It is pure and
// deterministic: the same gross amount and rates always produce the same
// split, which is what makes invoices reproducible for auditing.
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rates carries the platform fee rates in basis points.
type Rates struct {
	CommissionBps int
	GSTBps        int
}

// DefaultRates reflects the platform's standing policy: 10% commission with
// 18% GST charged on the commission.
var DefaultRates = Rates{CommissionBps: 1000, GSTBps: 1800}

// Breakdown is the full split of a gross sale amount, in paise.
//
// GST is a platform-side cost layered on top of the commission; it is
// tracked for invoicing but never deducted from the seller's share.
type Breakdown struct {
	AmountPaise          int64
	CommissionPaise      int64
	GSTOnCommissionPaise int64
	SellerAmountPaise    int64
	TotalPlatformPaise   int64
}

var tenThousand = decimal.NewFromInt(10000)

// Split divides a gross sale amount into commission, GST on commission and
// the seller's share. All rounding is half-up to the paise, applied once per
// component, so repeated computation reproduces identical results.
func Split(amountPaise int64, rates Rates) (Breakdown, error) {
	if amountPaise <= 0 {
		return Breakdown{}, fmt.Errorf("amount must be positive, got %d", amountPaise)
	}
	if rates.CommissionBps < 0 || rates.CommissionBps > 10000 {
		return Breakdown{}, fmt.Errorf("commission rate out of range: %d bps", rates.CommissionBps)
	}
	if rates.GSTBps < 0 {
		return Breakdown{}, fmt.Errorf("gst rate out of range: %d bps", rates.GSTBps)
	}

	amount := decimal.NewFromInt(amountPaise)

	commission := roundHalfUp(amount.Mul(decimal.NewFromInt(int64(rates.CommissionBps))).Div(tenThousand))
	gst := roundHalfUp(commission.Mul(decimal.NewFromInt(int64(rates.GSTBps))).Div(tenThousand))

	breakdown := Breakdown{
		AmountPaise:          amountPaise,
		CommissionPaise:      commission.IntPart(),
		GSTOnCommissionPaise: gst.IntPart(),
	}
	breakdown.SellerAmountPaise = amountPaise - breakdown.CommissionPaise
	breakdown.TotalPlatformPaise = breakdown.CommissionPaise + breakdown.GSTOnCommissionPaise
	return breakdown, nil
}

// roundHalfUp rounds to the nearest integer paise, halves away from zero.
// All inputs here are non-negative, so away-from-zero equals half-up.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
