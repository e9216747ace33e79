package checks

import (
	"fmt"
	"strconv"

	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/shopspring/decimal"
)

// Analysis is the output of an optimization analyzer for one category.
type Analysis struct {
	Opportunities   []model.Opportunity
	Recommendations []model.Recommendation
	Findings        []model.Finding
}

// Analyzer looks for cost optimizations in one category.
type Analyzer interface {
	Category() model.Category
	Analyze(environment string, records []model.ResourceRecord) Analysis
}

// Analyzers returns the built-in optimization analyzers in plan order.
func Analyzers(s config.Settings) []Analyzer {
	cfg := s.Optimization
	return []Analyzer{
		StorageAnalyzer{Config: cfg},
		TableAnalyzer{Config: cfg},
		ComputeAnalyzer{Config: cfg},
		EdgeAnalyzer{},
		BudgetAnalyzer{AppName: s.AppName, Config: s.Cost},
	}
}

// StorageAnalyzer plans tiering, lifecycle and multipart cleanup for buckets.
type StorageAnalyzer struct {
	Config config.OptimizationConfig
}

func (StorageAnalyzer) Category() model.Category { return model.CategoryStorage }

func (a StorageAnalyzer) Analyze(env string, records []model.ResourceRecord) Analysis {
	var out Analysis
	for _, b := range records {
		if b.Kind() != model.KindBucket {
			continue
		}
		if !b.Bool(model.AttrIntelligentTiering) {
			out.Opportunities = append(out.Opportunities, model.Opportunity{
				Target:      b.Ref(),
				Operation:   model.OpEnsureIntelligentTiering,
				Description: fmt.Sprintf("Ensure intelligent tiering configuration EntireBucket on %s", b.Name),
				Parameters:  withRegion(b, map[string]string{"id": "EntireBucket", "archive_days": "90", "deep_archive_days": "180"}),
			})
		}
		if !b.Bool(model.AttrLifecycleRule) {
			out.Opportunities = append(out.Opportunities, model.Opportunity{
				Target:      b.Ref(),
				Operation:   model.OpEnsureLifecycleRule,
				Description: fmt.Sprintf("Ensure lifecycle rule %s on %s", a.Config.LifecycleRuleID, b.Name),
				Parameters:  withRegion(b, map[string]string{"rule_id": a.Config.LifecycleRuleID}),
			})
		}
		if n := b.Int(model.AttrStaleUploads); n > 0 {
			out.Opportunities = append(out.Opportunities, model.Opportunity{
				Target:      b.Ref(),
				Operation:   model.OpAbortStaleMultipartUploads,
				Description: fmt.Sprintf("Abort %d incomplete multipart uploads on %s", n, b.Name),
				Parameters:  withRegion(b, map[string]string{"older_than_hours": strconv.Itoa(int(a.Config.StaleUploadAge.Hours()))}),
			})
		}
	}
	return out
}

// TableAnalyzer plans backup, expiry and billing changes for tables.
type TableAnalyzer struct {
	Config config.OptimizationConfig
}

func (TableAnalyzer) Category() model.Category { return model.CategoryTable }

func (a TableAnalyzer) Analyze(env string, records []model.ResourceRecord) Analysis {
	var out Analysis
	for _, t := range records {
		if t.Kind() != model.KindTable {
			continue
		}
		if !t.Bool(model.AttrPITREnabled) {
			out.Opportunities = append(out.Opportunities, model.Opportunity{
				Target:      t.Ref(),
				Operation:   model.OpEnsurePointInTimeRecovery,
				Description: fmt.Sprintf("Ensure point-in-time recovery on %s", t.Name),
			})
		}
		if !t.Bool(model.AttrTTLEnabled) {
			out.Opportunities = append(out.Opportunities, model.Opportunity{
				Target:      t.Ref(),
				Operation:   model.OpEnsureTTL,
				Description: fmt.Sprintf("Ensure TTL on attribute %s of %s", a.Config.TTLAttribute, t.Name),
				Parameters:  map[string]string{"attribute": a.Config.TTLAttribute},
			})
		}
		if t.String(model.AttrBillingMode) == "PROVISIONED" {
			out.Opportunities = append(out.Opportunities, model.Opportunity{
				Target:      t.Ref(),
				Operation:   model.OpEnsureOnDemandBilling,
				Description: fmt.Sprintf("Switch %s to on-demand billing", t.Name),
			})
		}
	}
	return out
}

// ComputeAnalyzer recommends function shape changes. Nothing here is automated.
type ComputeAnalyzer struct {
	Config config.OptimizationConfig
}

func (ComputeAnalyzer) Category() model.Category { return model.CategoryCompute }

func (a ComputeAnalyzer) Analyze(env string, records []model.ResourceRecord) Analysis {
	var out Analysis
	maxTimeout := int(a.Config.FunctionTimeout.Seconds())
	for _, f := range records {
		if f.Kind() != model.KindFunction {
			continue
		}
		if f.String(model.AttrArchitecture) == "x86_64" {
			out.Recommendations = append(out.Recommendations, advisory(model.HorizonShortTerm,
				a.Config.Saving(config.SavingFunctionArchitecture),
				"Move function %s to arm64 (Graviton) for lower duration cost", f.Name))
		}
		if m := f.Int(model.AttrMemoryMB); m > a.Config.FunctionMemoryMB {
			out.Recommendations = append(out.Recommendations, advisory(model.HorizonShortTerm,
				a.Config.Saving(config.SavingFunctionMemory),
				"Right-size memory of function %s (%d MB)", f.Name, m))
		}
		if s := f.Int(model.AttrTimeoutSeconds); s > maxTimeout {
			out.Recommendations = append(out.Recommendations, advisory(model.HorizonShortTerm,
				a.Config.Saving(config.SavingFunctionTimeout),
				"Review timeout of function %s (%d s)", f.Name, s))
		}
	}
	return out
}

// EdgeAnalyzer plans price class and compression changes for distributions.
type EdgeAnalyzer struct{}

func (EdgeAnalyzer) Category() model.Category { return model.CategoryEdge }

func (EdgeAnalyzer) Analyze(env string, records []model.ResourceRecord) Analysis {
	var out Analysis
	for _, d := range records {
		if d.Kind() != model.KindDistribution {
			continue
		}
		if env != "prod" && d.String(model.AttrPriceClass) == "PriceClass_All" {
			out.Opportunities = append(out.Opportunities, model.Opportunity{
				Target:      d.Ref(),
				Operation:   model.OpEnsurePriceClass100,
				Description: fmt.Sprintf("Use PriceClass_100 for non-production distribution %s", d.Name),
			})
		}
		if !d.Bool(model.AttrCompression) {
			out.Opportunities = append(out.Opportunities, model.Opportunity{
				Target:      d.Ref(),
				Operation:   model.OpEnsureCompression,
				Description: fmt.Sprintf("Enable compression on the default behavior of %s", d.Name),
			})
		}
	}
	return out
}

// BudgetAnalyzer keeps the environment budget at its configured limit with
// actual and forecasted alerts. Environments without a limit are left alone.
type BudgetAnalyzer struct {
	AppName string
	Config  config.CostConfig
}

func (BudgetAnalyzer) Category() model.Category { return model.CategoryBudget }

func (a BudgetAnalyzer) Analyze(env string, records []model.ResourceRecord) Analysis {
	var out Analysis
	limit, ok := a.Config.BudgetLimits[env]
	if !ok {
		return out
	}
	want := decimal.NewFromFloat(limit)
	name := model.BudgetName(a.AppName, env)

	for _, b := range records {
		if b.Kind() != model.KindBudget || b.Name != name {
			continue
		}
		drift := !b.Bool(model.AttrBudgetExists)
		if !drift {
			have, err := decimal.NewFromString(b.String(model.AttrBudgetLimit))
			drift = err != nil || !have.Equal(want)
		}
		alerts := b.Bool(model.AttrActualAlert) && b.Bool(model.AttrForecastAlert)
		if !alerts && a.Config.AlertEmail == "" {
			out.Recommendations = append(out.Recommendations, advisory(model.HorizonImmediate, 0,
				"Set cost.alert_email so budget %s can alert at %d%% actual and %d%% forecasted spend",
				name, model.BudgetActualThreshold, model.BudgetForecastThreshold))
		}
		if !drift && (alerts || a.Config.AlertEmail == "") {
			continue
		}

		params := map[string]string{"limit": want.StringFixed(2)}
		if a.Config.AlertEmail != "" {
			params["alert_email"] = a.Config.AlertEmail
		}
		out.Opportunities = append(out.Opportunities, model.Opportunity{
			Target:      b.Ref(),
			Operation:   model.OpEnsureBudget,
			Description: fmt.Sprintf("Ensure monthly budget %s at $%s", name, want.StringFixed(2)),
			Parameters:  params,
		})
	}
	return out
}

// withRegion carries the bucket region so the applier can reach buckets outside the session region.
func withRegion(b model.ResourceRecord, params map[string]string) map[string]string {
	if r := b.String(model.AttrRegion); r != "" {
		params["region"] = r
	}
	return params
}

func advisory(h model.Horizon, saving float64, format string, args ...any) model.Recommendation {
	rec := model.Recommendation{Text: fmt.Sprintf(format, args...), Horizon: h}
	if saving > 0 {
		d := decimal.NewFromFloat(saving)
		rec.EstimatedMonthlySaving = &d
	}
	return rec
}
