// Package aggregate folds billing samples into comparable totals.
//
// All arithmetic is done on decimals at full precision. Callers round only
// when presenting values.
package aggregate

import (
	"sort"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/shopspring/decimal"
)

// DefaultTopN is the ranking length used by the cost report.
const DefaultTopN = 5

// Aggregate sums samples per category. topN <= 0 keeps every category in the ranking.
// An empty input returns a zero-valued Aggregation.
func Aggregate(samples []model.CostSample, topN int) model.Aggregation {
	agg := model.Aggregation{
		TotalCost:   decimal.Zero,
		PerCategory: make(map[string]model.CategoryTotal),
		TopN:        []model.RankedCategory{},
		Order:       []string{},
	}

	for _, s := range samples {
		cur, seen := agg.PerCategory[s.Category]
		if !seen {
			agg.Order = append(agg.Order, s.Category)
			cur = model.CategoryTotal{Cost: decimal.Zero, Usage: decimal.Zero, Trend: []model.PeriodCost{}}
		}
		cur.Cost = cur.Cost.Add(s.Amount)
		cur.Usage = cur.Usage.Add(s.UsageQuantity)
		cur.Trend = addToPeriod(cur.Trend, periodKey(s.PeriodStart), s.Amount)
		agg.PerCategory[s.Category] = cur
	}
	for name, t := range agg.PerCategory {
		sort.SliceStable(t.Trend, func(i, j int) bool { return t.Trend[i].Period < t.Trend[j].Period })
		agg.PerCategory[name] = t
	}

	// Total is the sum of the category totals so the two can never drift apart.
	for _, name := range agg.Order {
		agg.TotalCost = agg.TotalCost.Add(agg.PerCategory[name].Cost)
	}

	agg.TopN = Ranked(agg, topN)

	return agg
}

// Ranked orders the categories of agg by cost descending. Equal costs keep
// discovery order. topN <= 0 returns every category.
func Ranked(agg model.Aggregation, topN int) []model.RankedCategory {
	ranked := make([]model.RankedCategory, 0, len(agg.Order))
	for _, name := range agg.Order {
		t := agg.PerCategory[name]
		ranked = append(ranked, model.RankedCategory{Service: name, Cost: t.Cost, Usage: t.Usage})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Cost.GreaterThan(ranked[j].Cost)
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func periodKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func addToPeriod(series []model.PeriodCost, period string, amount decimal.Decimal) []model.PeriodCost {
	for i := range series {
		if series[i].Period == period {
			series[i].Cost = series[i].Cost.Add(amount)
			return series
		}
	}
	return append(series, model.PeriodCost{Period: period, Cost: amount})
}

// DailySeries collapses samples into one total per day, preserving the
// chronological (insertion) order of the first sample of each day.
func DailySeries(samples []model.CostSample) []model.DailyCost {
	index := make(map[string]int)
	series := []model.DailyCost{}
	for _, s := range samples {
		day := periodKey(s.PeriodStart)
		i, ok := index[day]
		if !ok {
			i = len(series)
			index[day] = i
			series = append(series, model.DailyCost{Date: day, Cost: decimal.Zero})
		}
		series[i].Cost = series[i].Cost.Add(s.Amount)
	}
	return series
}

// DailyTotals is DailySeries without the dates.
func DailyTotals(samples []model.CostSample) []decimal.Decimal {
	series := DailySeries(samples)
	totals := make([]decimal.Decimal, len(series))
	for i, d := range series {
		totals[i] = d.Cost
	}
	return totals
}

// LatestPeriod returns the samples belonging to the most recent period start.
func LatestPeriod(samples []model.CostSample) []model.CostSample {
	var latest time.Time
	for _, s := range samples {
		if s.PeriodStart.After(latest) {
			latest = s.PeriodStart
		}
	}
	var out []model.CostSample
	for _, s := range samples {
		if s.PeriodStart.Equal(latest) {
			out = append(out, s)
		}
	}
	return out
}

// Round2 rounds a value for presentation.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
