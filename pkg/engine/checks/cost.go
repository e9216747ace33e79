package checks

import (
	"fmt"

	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine/aggregate"
	"github.com/DrSkyle/cloudgov/pkg/engine/history"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/shopspring/decimal"
)

// CostInputs is everything the billing section is derived from.
type CostInputs struct {
	Environment string
	AppName     string
	Monthly     []model.CostSample
	Daily       []model.CostSample
	Advice      []model.Recommendation
	Config      config.CostConfig
}

// AnalyzeCost builds the billing section and its action items.
func AnalyzeCost(in CostInputs) (*model.CostAnalysis, []string) {
	monthly := aggregate.Aggregate(in.Monthly, aggregate.DefaultTopN)
	trend := history.Analyze(aggregate.DailyTotals(in.Daily))
	trend.Daily = aggregate.DailySeries(in.Daily)
	current := aggregate.Aggregate(aggregate.LatestPeriod(in.Monthly), 0).TotalCost

	res := &model.CostAnalysis{
		Status:          model.StatusPass,
		Monthly:         &monthly,
		Daily:           &trend,
		Findings:        []model.Finding{},
		Recommendations: []model.Recommendation{},
	}
	var recs recommender

	if users := in.Config.ActiveUsers[in.Environment]; users > 0 {
		target := decimal.NewFromFloat(in.Config.CostPerUserTarget)
		perUser := current.Div(decimal.NewFromInt(int64(users)))
		res.CostPerUser = &model.CostPerUser{ActiveUsers: users, Cost: perUser, Target: target}
		if perUser.GreaterThan(target) {
			res.Findings = append(res.Findings, model.Finding{
				Subsystem: "billing",
				Severity:  model.SeverityWarning,
				Message: fmt.Sprintf("cost per active user $%s exceeds target $%s",
					aggregate.Round2(perUser).StringFixed(2), target.StringFixed(2)),
			})
		}
	}

	budget := model.BudgetName(in.AppName, in.Environment)
	if limit, ok := in.Config.BudgetLimits[in.Environment]; ok {
		l := decimal.NewFromFloat(limit)
		if current.GreaterThan(l) {
			res.Findings = append(res.Findings, model.Finding{
				Subsystem:   "billing",
				Severity:    model.SeverityWarning,
				Message:     fmt.Sprintf("latest monthly spend $%s exceeds budget $%s", aggregate.Round2(current).StringFixed(2), l.StringFixed(2)),
				ResourceRef: budget,
			})
		}
		recs.add(model.HorizonImmediate, fmt.Sprintf("Keep budget %s at $%s with alerts at 80%% actual and 100%% forecasted spend", budget, l.StringFixed(2)))
	}

	if trend.Trend == model.TrendIncreasing {
		res.Findings = append(res.Findings, model.Finding{
			Subsystem: "billing",
			Severity:  model.SeverityInfo,
			Message:   fmt.Sprintf("daily spend increased %s%% week over week", aggregate.Round2(trend.TrendPercentage).StringFixed(2)),
		})
	}

	res.Recommendations = append(recs.out, in.Advice...)
	res.Recommendations = append(res.Recommendations, CostCatalog()...)
	res.Status = model.StatusFor(res.Findings)

	return res, actionItems(in, monthly, trend, budget)
}

func actionItems(in CostInputs, monthly model.Aggregation, trend model.TrendResult, budget string) []string {
	var items []string
	if trend.Trend == model.TrendIncreasing {
		items = append(items, fmt.Sprintf("Investigate the %s%% week-over-week spend increase", aggregate.Round2(trend.TrendPercentage).StringFixed(2)))
	}
	if len(monthly.TopN) > 0 {
		top := monthly.TopN[0]
		items = append(items, fmt.Sprintf("Review %s, the largest cost ($%s)", top.Service, aggregate.Round2(top.Cost).StringFixed(2)))
	}
	items = append(items,
		fmt.Sprintf("Confirm budget %s and its alert recipients", budget),
		"Apply the immediate optimization recommendations",
		"Schedule a monthly cost review",
	)
	return items
}
