// Package remediation turns opportunities into an idempotent action plan and
// gates its execution.
package remediation

import (
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/shopspring/decimal"
)

// Planner maps opportunities to plan entries.
type Planner struct {
	// Savings holds the estimated monthly saving per operation.
	Savings map[string]float64
	// MaxHorizon is the least urgent horizon planned as an executable entry.
	// Less urgent opportunities become recommendations.
	MaxHorizon model.Horizon
}

// NewPlanner builds a planner.
func NewPlanner(savings map[string]float64, maxHorizon model.Horizon) *Planner {
	if !maxHorizon.Valid() {
		maxHorizon = model.HorizonShortTerm
	}
	return &Planner{Savings: savings, MaxHorizon: maxHorizon}
}

// Plan converts opportunities in order. Duplicate (target, operation) pairs
// collapse into the first occurrence, so replaying the same input yields the same plan.
func (p *Planner) Plan(opps []model.Opportunity) ([]model.ActionPlanEntry, []model.Recommendation) {
	type key struct {
		target model.ResourceRef
		op     model.Operation
	}
	seen := make(map[key]bool)

	entries := []model.ActionPlanEntry{}
	var demoted []model.Recommendation
	for _, o := range opps {
		k := key{o.Target, o.Operation}
		if seen[k] {
			continue
		}
		seen[k] = true

		saving := decimal.NewFromFloat(p.Savings[string(o.Operation)])
		horizon := model.HorizonOf(o.Operation)

		if horizon.Rank() > p.MaxHorizon.Rank() {
			rec := model.Recommendation{Text: o.Description, Horizon: horizon}
			if saving.IsPositive() {
				rec.EstimatedMonthlySaving = &saving
			}
			demoted = append(demoted, rec)
			continue
		}

		entries = append(entries, model.ActionPlanEntry{
			Target:                 o.Target,
			Operation:              o.Operation,
			Description:            o.Description,
			Horizon:                horizon,
			Parameters:             o.Parameters,
			Mode:                   model.ModeSimulated,
			EstimatedMonthlySaving: saving,
		})
	}
	return entries, demoted
}

// TotalSavings sums the estimates of entries and recommendations.
func TotalSavings(entries []model.ActionPlanEntry, recs []model.Recommendation) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.EstimatedMonthlySaving)
	}
	for _, r := range recs {
		if r.EstimatedMonthlySaving != nil {
			total = total.Add(*r.EstimatedMonthlySaving)
		}
	}
	return total
}
