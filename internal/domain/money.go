package domain

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every stored amount.
// Micro-royalty lines are frequently below one cent, so rounding to cents
// only happens when a value is presented.
const MoneyScale = 6

// DefaultTolerance is the largest aggregate difference treated as rounding noise.
var DefaultTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount to MoneyScale fractional digits
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// WithinTolerance reports whether |a-b| <= tolerance
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// SplitShare returns amount * split/100
func SplitShare(amount, splitPercentage decimal.Decimal) decimal.Decimal {
	return amount.Mul(splitPercentage).Div(hundred)
}

// NetOfCommission splits the payee share of revenue into net revenue and commission.
// Commission is rounded once and net is derived from it, so
// net + commission == revenue * split/100 holds exactly at MoneyScale.
func NetOfCommission(revenue, splitPercentage, commissionRate decimal.Decimal) (net, commission decimal.Decimal) {
	share := RoundMoney(SplitShare(revenue, splitPercentage))
	commission = RoundMoney(share.Mul(commissionRate))
	net = share.Sub(commission)
	return net, commission
}

// SumMoney adds amounts without intermediate rounding
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
