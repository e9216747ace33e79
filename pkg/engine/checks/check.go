// Package checks evaluates collected records against the desired security and cost posture.
// Everything here is pure over a scanner.Snapshot; no check talks to a provider.
package checks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/DrSkyle/cloudgov/pkg/engine/scanner"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Inputs maps each successfully collected category to its records.
type Inputs map[model.Category][]model.ResourceRecord

// Of returns the records of a category with the given kind.
func (in Inputs) Of(cat model.Category, kind string) []model.ResourceRecord {
	var out []model.ResourceRecord
	for _, r := range in[cat] {
		if r.Kind() == kind {
			out = append(out, r)
		}
	}
	return out
}

// Check is one compliance check. Requires lists the categories it reads.
type Check interface {
	Name() string
	Requires() []model.Category
	Evaluate(environment string, in Inputs) model.CheckResult
}

// Runner evaluates registered checks against a snapshot.
type Runner struct {
	checks []Check
	Logger *slog.Logger
}

// NewRunner initializes an empty runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Logger: logger}
}

// Register adds a check.
func (r *Runner) Register(c Check) {
	r.checks = append(r.checks, c)
}

// Categories returns the union of categories required by registered checks, in AllCategories order.
func (r *Runner) Categories() []model.Category {
	need := make(map[model.Category]bool)
	for _, c := range r.checks {
		for _, cat := range c.Requires() {
			need[cat] = true
		}
	}
	var out []model.Category
	for _, cat := range model.AllCategories {
		if need[cat] {
			out = append(out, cat)
		}
	}
	return out
}

// Run evaluates every check. A check whose required category failed to
// collect is recorded with status error; the result map always has one entry per check.
func (r *Runner) Run(ctx context.Context, snap *scanner.Snapshot) map[string]model.CheckResult {
	results := make([]model.CheckResult, len(r.checks))
	tracer := otel.Tracer("cloudgov/checks")

	var wg sync.WaitGroup
	for i, c := range r.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			start := time.Now()
			_, span := tracer.Start(ctx, "Check."+c.Name())
			defer span.End()

			res := r.evaluate(c, snap)
			if res.Status == model.StatusError {
				span.SetStatus(codes.Error, res.Error)
			}
			span.SetAttributes(
				attribute.String("check", c.Name()),
				attribute.String("status", string(res.Status)),
				attribute.Int("findings", len(res.Findings)),
				attribute.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			results[i] = res
		}()
	}
	wg.Wait()

	out := make(map[string]model.CheckResult, len(r.checks))
	for i, c := range r.checks {
		out[c.Name()] = results[i]
	}
	return out
}

func (r *Runner) evaluate(c Check, snap *scanner.Snapshot) (res model.CheckResult) {
	in := make(Inputs)
	for _, cat := range c.Requires() {
		records, err := snap.Get(cat)
		if err != nil {
			r.Logger.Warn("Check skipped", "check", c.Name(), "category", cat, "error", err)
			return model.ErrorResult(err)
		}
		in[cat] = records
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("Check panicked", "check", c.Name(), "error", rec, "stack", string(debug.Stack()))
			res = model.ErrorResult(fmt.Errorf("check %s panicked: %v", c.Name(), rec))
		}
	}()

	res = c.Evaluate(snap.Environment, in)
	if res.Findings == nil {
		res.Findings = []model.Finding{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []model.Recommendation{}
	}
	return res
}

// recommender collects recommendations once each, in first-seen order.
type recommender struct {
	seen map[string]bool
	out  []model.Recommendation
}

func (r *recommender) add(h model.Horizon, text string) {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	if r.seen[text] {
		return
	}
	r.seen[text] = true
	r.out = append(r.out, model.Recommendation{Text: text, Horizon: h})
}

func finding(subsystem string, sev model.Severity, ref model.ResourceRecord, format string, args ...any) model.Finding {
	return model.Finding{
		Subsystem:   subsystem,
		Severity:    sev,
		Message:     fmt.Sprintf(format, args...),
		ResourceRef: ref.Ref().String(),
	}
}
