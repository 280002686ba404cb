// Package pricing holds the pure rate computations: the sell-rate waterfall,
// room differentials and guardrails. Arithmetic runs on decimal.Decimal and
// every result is rounded to cents. A result that is not a finite positive
// number is reported as unavailable, never coerced to zero.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// less returns 1 - p/100.
func less(p float64) decimal.Decimal {
	return one.Sub(decimal.NewFromFloat(p).Div(hundred))
}

// more returns 1 + p/100.
func more(p float64) decimal.Decimal {
	return one.Add(decimal.NewFromFloat(p).Div(hundred))
}

// cents rounds to 2 places and applies the never-zero guard.
func cents(d decimal.Decimal) (float64, bool) {
	f := d.Round(2).InexactFloat64()
	if !domain.ValidRate(f) {
		return 0, false
	}
	return f, true
}

// Round2 rounds a float to cents.
func Round2(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
