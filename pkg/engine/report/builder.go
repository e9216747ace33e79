// Package report assembles an AnalysisReport and renders it as JSON, CSV or a
// terminal summary.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/aggregate"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/DrSkyle/cloudgov/pkg/engine/score"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrModeMismatch is returned when a plan entry disagrees with the run mode.
var ErrModeMismatch = errors.New("plan entry mode does not match run mode")

// Input is everything a report is built from. Nil sections were not requested.
type Input struct {
	Cost            *model.CostAnalysis
	ActionItems     []string
	Checks          map[string]model.CheckResult
	PriorityActions []string
	Optimizations   map[string]model.CheckResult
	Plan            []model.ActionPlanEntry
}

// Builder stamps reports for one environment and mode.
type Builder struct {
	Environment string
	Mode        model.Mode
	Now         func() time.Time
	NewID       func() string
}

// NewBuilder returns a builder using the wall clock and random run IDs.
func NewBuilder(environment string, mode model.Mode) *Builder {
	return &Builder{
		Environment: environment,
		Mode:        mode,
		Now:         time.Now,
		NewID:       uuid.NewString,
	}
}

// Build assembles the report. Amounts are rounded to cents here and nowhere
// upstream.
func (b *Builder) Build(in Input) (*model.AnalysisReport, error) {
	for _, e := range in.Plan {
		if e.Mode != b.Mode {
			return nil, fmt.Errorf("%w: %s %s is %s, run is %s", ErrModeMismatch, e.Operation, e.Target, e.Mode, b.Mode)
		}
	}

	now := b.Now().UTC()
	rep := &model.AnalysisReport{
		RunID:           b.NewID(),
		Environment:     b.Environment,
		AssessmentDate:  now.Format("2006-01-02"),
		Timestamp:       now,
		Mode:            b.Mode,
		Cost:            roundCost(in.Cost),
		Checks:          in.Checks,
		Optimizations:   roundResults(in.Optimizations),
		ActionPlan:      roundPlan(in.Plan),
		PriorityActions: in.PriorityActions,
		ActionItems:     in.ActionItems,
	}
	rep.Summary = summarize(rep)
	return rep, nil
}

func summarize(rep *model.AnalysisReport) model.Summary {
	s := model.Summary{
		OverallStatus:         model.StatusPass,
		TotalChecks:           len(rep.Checks) + len(rep.Optimizations),
		TotalEstimatedSavings: decimal.Zero,
		PlannedActions:        len(rep.ActionPlan),
	}

	for _, results := range []map[string]model.CheckResult{rep.Checks, rep.Optimizations} {
		if score.Overall(results) == model.StatusFail {
			s.OverallStatus = model.StatusFail
		}
		for _, r := range results {
			if r.Status == model.StatusError {
				s.ErroredChecks++
			}
		}
	}
	for _, r := range rep.Optimizations {
		if r.EstimatedSavings != nil {
			s.TotalEstimatedSavings = s.TotalEstimatedSavings.Add(*r.EstimatedSavings)
		}
	}

	if c := rep.Cost; c != nil {
		if c.Status == model.StatusFail {
			s.OverallStatus = model.StatusFail
		}
		if c.Status == model.StatusError {
			s.ErroredChecks++
		}
		if c.Monthly != nil {
			total := c.Monthly.TotalCost
			s.TotalCost = &total
		}
		if c.Daily != nil {
			pct := c.Daily.TrendPercentage
			s.Trend = c.Daily.Trend
			s.TrendPercentage = &pct
		}
	}

	s.TotalFindings = len(rep.AllFindings())
	s.ComplianceScore = score.Compliance(s.TotalFindings)

	for _, e := range rep.ActionPlan {
		switch e.Outcome {
		case model.OutcomeApplied:
			s.AppliedActions++
		case model.OutcomeFailed:
			s.FailedActions++
		}
	}
	return s
}

func roundCost(c *model.CostAnalysis) *model.CostAnalysis {
	if c == nil {
		return nil
	}
	out := *c
	if c.Monthly != nil {
		m := roundAggregation(*c.Monthly)
		out.Monthly = &m
	}
	if c.Daily != nil {
		d := *c.Daily
		d.TrendPercentage = aggregate.Round2(d.TrendPercentage)
		d.Previous = aggregate.Round2(d.Previous)
		d.Recent = aggregate.Round2(d.Recent)
		d.AverageDaily = aggregate.Round2(d.AverageDaily)
		d.Daily = make([]model.DailyCost, len(c.Daily.Daily))
		for i, day := range c.Daily.Daily {
			d.Daily[i] = model.DailyCost{Date: day.Date, Cost: aggregate.Round2(day.Cost)}
		}
		out.Daily = &d
	}
	if c.CostPerUser != nil {
		u := *c.CostPerUser
		u.Cost = aggregate.Round2(u.Cost)
		out.CostPerUser = &u
	}
	return &out
}

func roundAggregation(a model.Aggregation) model.Aggregation {
	out := model.Aggregation{
		TotalCost:   aggregate.Round2(a.TotalCost),
		PerCategory: make(map[string]model.CategoryTotal, len(a.PerCategory)),
		TopN:        make([]model.RankedCategory, len(a.TopN)),
		Order:       a.Order,
	}
	for name, t := range a.PerCategory {
		trend := make([]model.PeriodCost, len(t.Trend))
		for i, p := range t.Trend {
			trend[i] = model.PeriodCost{Period: p.Period, Cost: aggregate.Round2(p.Cost)}
		}
		out.PerCategory[name] = model.CategoryTotal{Cost: aggregate.Round2(t.Cost), Usage: aggregate.Round2(t.Usage), Trend: trend}
	}
	for i, r := range a.TopN {
		out.TopN[i] = model.RankedCategory{Service: r.Service, Cost: aggregate.Round2(r.Cost), Usage: aggregate.Round2(r.Usage)}
	}
	return out
}

func roundResults(results map[string]model.CheckResult) map[string]model.CheckResult {
	if results == nil {
		return nil
	}
	out := make(map[string]model.CheckResult, len(results))
	for k, r := range results {
		if r.EstimatedSavings != nil {
			v := aggregate.Round2(*r.EstimatedSavings)
			r.EstimatedSavings = &v
		}
		r.Actions = roundPlan(r.Actions)
		out[k] = r
	}
	return out
}

func roundPlan(plan []model.ActionPlanEntry) []model.ActionPlanEntry {
	out := make([]model.ActionPlanEntry, len(plan))
	for i, e := range plan {
		e.EstimatedMonthlySaving = aggregate.Round2(e.EstimatedMonthlySaving)
		out[i] = e
	}
	return out
}
