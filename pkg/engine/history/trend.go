// Package history derives spend direction from a daily cost series.
package history

import (
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/shopspring/decimal"
)

// Window is the number of days in each half of the comparison.
const Window = 7

var hundred = decimal.NewFromInt(100)

// Analyze compares the most recent Window days against the Window days before
// them. Fewer than 2*Window entries yields insufficient_data with a 0% change.
//
// Equal windows report decreasing: only a strictly larger recent window counts
// as increasing.
func Analyze(daily []decimal.Decimal) model.TrendResult {
	res := model.TrendResult{
		Trend:           model.TrendInsufficientData,
		TrendPercentage: decimal.Zero,
		Previous:        decimal.Zero,
		Recent:          decimal.Zero,
		AverageDaily:    average(daily),
		Days:            len(daily),
	}

	n := len(daily)
	if n < 2*Window {
		return res
	}

	res.Previous = sum(daily[n-2*Window : n-Window])
	res.Recent = sum(daily[n-Window:])

	if res.Recent.GreaterThan(res.Previous) {
		res.Trend = model.TrendIncreasing
	} else {
		res.Trend = model.TrendDecreasing
	}

	if !res.Previous.IsZero() {
		res.TrendPercentage = res.Recent.Sub(res.Previous).Div(res.Previous).Mul(hundred)
	}
	return res
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func average(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return sum(values).Div(decimal.NewFromInt(int64(len(values))))
}
