package remediation

import (
	"reflect"
	"testing"

	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/shopspring/decimal"
)

func opp(cat model.Category, name string, op model.Operation) model.Opportunity {
	return model.Opportunity{
		Target:      model.ResourceRef{Category: cat, Name: name},
		Operation:   op,
		Description: string(op) + " " + name,
	}
}

func samplePlanInput() []model.Opportunity {
	return []model.Opportunity{
		opp(model.CategoryStorage, "dev-assets", model.OpEnsureIntelligentTiering),
		opp(model.CategoryStorage, "dev-assets", model.OpEnsureLifecycleRule),
		opp(model.CategoryTable, "dev-users", model.OpEnsureTTL),
		opp(model.CategoryTable, "dev-users", model.OpEnsureOnDemandBilling),
		opp(model.CategoryStorage, "dev-assets", model.OpEnsureIntelligentTiering),
	}
}

func TestPlan_DeterministicAndDeduplicated(t *testing.T) {
	p := NewPlanner(config.DefaultOptimizationConfig().Savings, model.HorizonShortTerm)

	first, _ := p.Plan(samplePlanInput())
	second, _ := p.Plan(samplePlanInput())

	if !reflect.DeepEqual(first, second) {
		t.Fatal("same input produced different plans")
	}
	if len(first) != 4 {
		t.Fatalf("expected duplicate to collapse into 4 entries, got %d", len(first))
	}

	wantOps := []model.Operation{
		model.OpEnsureIntelligentTiering,
		model.OpEnsureLifecycleRule,
		model.OpEnsureTTL,
		model.OpEnsureOnDemandBilling,
	}
	for i, op := range wantOps {
		if first[i].Operation != op {
			t.Errorf("position %d: expected %s, got %s", i, op, first[i].Operation)
		}
		if first[i].Mode != model.ModeSimulated {
			t.Errorf("position %d: planned entries start simulated, got %s", i, first[i].Mode)
		}
	}
}

func TestPlan_Horizons(t *testing.T) {
	p := NewPlanner(config.DefaultOptimizationConfig().Savings, model.HorizonShortTerm)
	entries, _ := p.Plan(samplePlanInput())

	want := map[model.Operation]model.Horizon{
		model.OpEnsureIntelligentTiering: model.HorizonImmediate,
		model.OpEnsureLifecycleRule:      model.HorizonImmediate,
		model.OpEnsureTTL:                model.HorizonImmediate,
		model.OpEnsureOnDemandBilling:    model.HorizonShortTerm,
	}
	for _, e := range entries {
		if e.Horizon != want[e.Operation] {
			t.Errorf("%s: expected %s, got %s", e.Operation, want[e.Operation], e.Horizon)
		}
	}
}

func TestPlan_MaxHorizonDemotes(t *testing.T) {
	p := NewPlanner(config.DefaultOptimizationConfig().Savings, model.HorizonImmediate)
	entries, recs := p.Plan(samplePlanInput())

	if len(entries) != 3 {
		t.Fatalf("expected 3 immediate entries, got %d", len(entries))
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 demoted recommendation, got %d", len(recs))
	}
	if recs[0].Horizon != model.HorizonShortTerm {
		t.Errorf("expected short_term recommendation, got %s", recs[0].Horizon)
	}
	if recs[0].EstimatedMonthlySaving == nil || !recs[0].EstimatedMonthlySaving.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected saving 15 on demoted recommendation, got %v", recs[0].EstimatedMonthlySaving)
	}
}

func TestTotalSavings(t *testing.T) {
	p := NewPlanner(config.DefaultOptimizationConfig().Savings, model.HorizonShortTerm)
	entries, _ := p.Plan(samplePlanInput())

	ten := decimal.NewFromInt(10)
	total := TotalSavings(entries, []model.Recommendation{{Text: "arm64", EstimatedMonthlySaving: &ten}, {Text: "none"}})

	// 30 + 15 + 10 + 15 + 10
	if !total.Equal(decimal.NewFromInt(80)) {
		t.Errorf("expected 80, got %s", total)
	}
}
