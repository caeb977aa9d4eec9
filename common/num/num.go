// Package num holds the decimal helpers shared by the tax split and the aggregators.
package num

import "github.com/shopspring/decimal"

// Precision is the number of fractional digits kept by divisions.
const Precision = 18

// SafeDiv divides with Precision digits; division by zero yields zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, Precision)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
