package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryTotal is the accumulated cost and usage of one billing category.
type CategoryTotal struct {
	Cost  decimal.Decimal `json:"cost"`
	Usage decimal.Decimal `json:"usage"`
	// Trend is the category cost per period, oldest first.
	Trend []PeriodCost `json:"trend"`
}

// PeriodCost is the cost of one billing period, keyed by its start date (YYYY-MM-DD).
type PeriodCost struct {
	Period string          `json:"period"`
	Cost   decimal.Decimal `json:"cost"`
}

// DailyCost is the total cost of one day.
type DailyCost struct {
	Date string          `json:"date"`
	Cost decimal.Decimal `json:"cost"`
}

// RankedCategory is one row of a top-N ranking.
type RankedCategory struct {
	Service string          `json:"service"`
	Cost    decimal.Decimal `json:"cost"`
	Usage   decimal.Decimal `json:"usage"`
}

// Aggregation is the Aggregator output. Order preserves category discovery order.
type Aggregation struct {
	TotalCost   decimal.Decimal          `json:"total_cost"`
	PerCategory map[string]CategoryTotal `json:"per_category"`
	TopN        []RankedCategory         `json:"top_services"`
	Order       []string                 `json:"-"`
}

// TrendDirection is the outcome of a fixed-window comparison.
type TrendDirection string

const (
	TrendIncreasing       TrendDirection = "increasing"
	TrendDecreasing       TrendDirection = "decreasing"
	TrendInsufficientData TrendDirection = "insufficient_data"
)

// TrendResult describes the direction of daily spend.
type TrendResult struct {
	Trend           TrendDirection  `json:"trend"`
	TrendPercentage decimal.Decimal `json:"trend_percentage"`
	Previous        decimal.Decimal `json:"previous_week"`
	Recent          decimal.Decimal `json:"recent_week"`
	AverageDaily    decimal.Decimal `json:"avg_daily_cost"`
	Days            int             `json:"days"`
	Daily           []DailyCost     `json:"daily_costs"`
}

// CostAnalysis is the billing section of a report.
type CostAnalysis struct {
	Status          Status           `json:"status"`
	Error           string           `json:"error,omitempty"`
	Monthly         *Aggregation     `json:"monthly_costs,omitempty"`
	Daily           *TrendResult     `json:"daily_trends,omitempty"`
	CostPerUser     *CostPerUser     `json:"cost_per_user,omitempty"`
	Findings        []Finding        `json:"findings"`
	Recommendations []Recommendation `json:"recommendations"`
}

// CostPerUser relates spend to the number of active users of an environment.
type CostPerUser struct {
	ActiveUsers int             `json:"active_users"`
	Cost        decimal.Decimal `json:"cost_per_user"`
	Target      decimal.Decimal `json:"target"`
}

// Summary is the aggregate view of a run.
type Summary struct {
	OverallStatus         Status           `json:"overall_status"`
	TotalChecks           int              `json:"total_checks"`
	ErroredChecks         int              `json:"errored_checks"`
	TotalFindings         int              `json:"total_findings"`
	ComplianceScore       int              `json:"compliance_score"`
	TotalCost             *decimal.Decimal `json:"total_cost,omitempty"`
	Trend                 TrendDirection   `json:"trend,omitempty"`
	TrendPercentage       *decimal.Decimal `json:"trend_percentage,omitempty"`
	TotalEstimatedSavings decimal.Decimal  `json:"total_estimated_savings"`
	PlannedActions        int              `json:"planned_actions"`
	AppliedActions        int              `json:"applied_actions"`
	FailedActions         int              `json:"failed_actions"`
}

// AnalysisReport is the complete result of one run for one environment.
type AnalysisReport struct {
	RunID           string                 `json:"run_id"`
	Environment     string                 `json:"environment"`
	AssessmentDate  string                 `json:"assessment_date"`
	Timestamp       time.Time              `json:"timestamp"`
	Mode            Mode                   `json:"mode"`
	Cost            *CostAnalysis          `json:"cost_analysis,omitempty"`
	Checks          map[string]CheckResult `json:"checks,omitempty"`
	Optimizations   map[string]CheckResult `json:"optimizations,omitempty"`
	ActionPlan      []ActionPlanEntry      `json:"action_plan"`
	Summary         Summary                `json:"summary"`
	PriorityActions []string               `json:"priority_actions,omitempty"`
	ActionItems     []string               `json:"action_items,omitempty"`
}

// AllFindings returns every finding in the report in a stable order:
// cost section, then checks and optimizations by sorted key.
func (r *AnalysisReport) AllFindings() []Finding {
	var out []Finding
	if r.Cost != nil {
		out = append(out, r.Cost.Findings...)
	}
	for _, k := range SortedKeys(r.Checks) {
		out = append(out, r.Checks[k].Findings...)
	}
	for _, k := range SortedKeys(r.Optimizations) {
		out = append(out, r.Optimizations[k].Findings...)
	}
	return out
}
