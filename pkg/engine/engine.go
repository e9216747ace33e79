// Package engine runs the analysis pipeline: collect, aggregate, score, plan,
// gate and report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"slices"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine/checks"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/DrSkyle/cloudgov/pkg/engine/policy"
	"github.com/DrSkyle/cloudgov/pkg/engine/remediation"
	"github.com/DrSkyle/cloudgov/pkg/engine/report"
	"github.com/DrSkyle/cloudgov/pkg/engine/scanner"
	"github.com/DrSkyle/cloudgov/pkg/telemetry"
	"github.com/DrSkyle/cloudgov/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPartialResult indicates the run was cancelled before every section
// finished. The report returned with it is complete for what did run.
var ErrPartialResult = errors.New("run completed with partial results")

// ErrNoCollectors means nothing was registered that could produce a report.
var ErrNoCollectors = errors.New("no collectors configured")

// ErrNoBilling is recorded in the cost section when no billing source is set.
var ErrNoBilling = errors.New("no billing source configured")

// Section is one part of a run.
type Section string

const (
	SectionCost       Section = "cost"
	SectionOptimize   Section = "optimize"
	SectionCompliance Section = "compliance"
)

// AllSections is the order sections run in.
var AllSections = []Section{SectionCost, SectionOptimize, SectionCompliance}

// Request selects what one run does.
type Request struct {
	Environment string
	// Execute switches the gate to applied mode. It is never inferred.
	Execute bool
	// Sections to run; empty runs all of them.
	Sections []Section
}

// Engine is the runtime core.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	settings  config.Settings
	registry  *scanner.Registry
	billing   scanner.Billing
	appliers  []remediation.Applier
	rules     []policy.Rule
	recorder  remediation.Recorder
	validator remediation.PlanValidator

	now   func() time.Time
	newID func() string

	skipTelemetry bool
	shutdown      func(context.Context) error
}

// Option defines a functional configuration override.
type Option func(*Engine)

// New initializes the Engine.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Logger:   slog.New(handler),
		Tracer:   otel.Tracer("cloudgov/engine"),
		settings: config.Default(),
	}
	e.registry = scanner.NewRegistry(e.Logger)

	for _, opt := range opts {
		opt(e)
	}

	e.registry.Logger = e.Logger
	e.registry.Concurrency = e.settings.MaxConcurrency
	e.registry.Timeout = e.settings.CollectTimeout
	if e.validator == nil {
		e.validator = policy.NewValidator(e.settings.Gate)
	}

	if !e.skipTelemetry {
		shutdown, err := telemetry.Init(ctx, telemetry.Options{
			ServiceName:    version.AppName,
			ServiceVersion: version.Current,
			Endpoint:       e.settings.OtelEndpoint,
		})
		if err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		} else {
			e.shutdown = shutdown
		}
	}

	return e, nil
}

// NewLogger builds the JSON logger used by the CLI.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSensitiveData,
	}))
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.Logger = l
		}
	}
}

// WithSettings replaces the default settings.
func WithSettings(s config.Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithCollectors registers one collector per category.
func WithCollectors(cs ...scanner.Collector) Option {
	return func(e *Engine) {
		for _, c := range cs {
			e.registry.Register(c)
		}
	}
}

// WithBilling sets the cost sample source.
func WithBilling(b scanner.Billing) Option {
	return func(e *Engine) {
		e.billing = b
	}
}

// WithAppliers sets the appliers used in applied mode.
func WithAppliers(a ...remediation.Applier) Option {
	return func(e *Engine) {
		e.appliers = append(e.appliers, a...)
	}
}

// WithRules adds user-defined CEL rules, run as the custom_policies check.
func WithRules(rules []policy.Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithRecorder sets the audit recorder for applied actions.
func WithRecorder(r remediation.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithValidator overrides the gate safety policy built from settings.
func WithValidator(v remediation.PlanValidator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

// WithClock fixes the report timestamp and run ID, for tests.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(e *Engine) {
		e.now = now
		e.newID = newID
	}
}

// WithoutTelemetry skips tracer provider setup, for embedding in a process that owns it.
func WithoutTelemetry() Option {
	return func(e *Engine) {
		e.skipTelemetry = true
	}
}

// Close flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	if e.shutdown == nil {
		return nil
	}
	return e.shutdown(ctx)
}

// Run executes the requested sections and builds the report. Configuration
// errors are returned before anything is collected. Everything that goes
// wrong afterwards is recorded in the report.
func (e *Engine) Run(ctx context.Context, req Request) (rep *model.AnalysisReport, err error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Run")
	defer span.End()

	defer e.recoverPanic(ctx, &err)

	sections, err := e.validate(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if e.registry.Len() == 0 && e.billing == nil {
		return nil, ErrNoCollectors
	}

	span.SetAttributes(
		attribute.String("environment", req.Environment),
		attribute.Bool("execute", req.Execute),
	)

	var runner *checks.Runner
	if slices.Contains(sections, SectionCompliance) {
		runner, err = e.complianceRunner()
		if err != nil {
			return nil, err
		}
	}
	analyzers := checks.Analyzers(e.settings)

	gate := remediation.NewGate(req.Execute,
		remediation.WithAppliers(e.appliers...),
		remediation.WithValidator(e.validator),
		remediation.WithRecorder(e.recorder),
		remediation.WithTimeout(e.settings.ActionTimeout),
		remediation.WithConcurrency(e.settings.MaxConcurrency),
		remediation.WithLogger(e.Logger),
	)

	e.Logger.Info("Starting run", "environment", req.Environment, "mode", gate.Mode(), "sections", sections)

	snap := e.registry.Collect(ctx, req.Environment, e.categories(sections, runner, analyzers))

	var in report.Input
	partial := snap.Canceled
	for _, s := range sections {
		if ctx.Err() != nil {
			partial = true
			break
		}
		switch s {
		case SectionCost:
			in.Cost, in.ActionItems = e.costSection(ctx, req.Environment)
		case SectionCompliance:
			in.Checks = runner.Run(ctx, snap)
			in.PriorityActions = checks.PriorityActions(in.Checks)
		case SectionOptimize:
			in.Optimizations, in.Plan = e.optimizeSection(ctx, gate, snap, analyzers)
		}
	}

	b := report.NewBuilder(req.Environment, gate.Mode())
	if e.now != nil {
		b.Now = e.now
	}
	if e.newID != nil {
		b.NewID = e.newID
	}
	rep, err = b.Build(in)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("findings", rep.Summary.TotalFindings),
		attribute.Int("score", rep.Summary.ComplianceScore),
		attribute.Int("actions", rep.Summary.PlannedActions),
	)
	e.Logger.Info("Run finished",
		"status", rep.Summary.OverallStatus,
		"score", rep.Summary.ComplianceScore,
		"findings", rep.Summary.TotalFindings,
		"applied", rep.Summary.AppliedActions,
		"failed", rep.Summary.FailedActions,
	)

	if partial {
		span.SetAttributes(attribute.Bool("run.partial", true))
		e.Logger.Warn("Run cancelled before every section finished")
		return rep, ErrPartialResult
	}
	return rep, nil
}

func (e *Engine) validate(req Request) ([]Section, error) {
	s := e.settings
	s.Environment = req.Environment
	if err := s.Validate(); err != nil {
		return nil, err
	}

	sections := req.Sections
	if len(sections) == 0 {
		sections = AllSections
	}
	var out []Section
	for _, want := range AllSections {
		if slices.Contains(sections, want) {
			out = append(out, want)
		}
	}
	for _, s := range sections {
		if !slices.Contains(AllSections, s) {
			return nil, &config.ConfigurationError{Field: "section", Reason: fmt.Sprintf("unknown section %q", s)}
		}
	}
	if req.Execute && !slices.Contains(out, SectionOptimize) {
		return nil, &config.ConfigurationError{Field: "execute", Reason: "only the optimize section has actions to execute"}
	}
	return out, nil
}

func (e *Engine) complianceRunner() (*checks.Runner, error) {
	runner := checks.NewRunner(e.Logger)
	for _, c := range checks.ComplianceChecks(e.settings.AppName) {
		runner.Register(c)
	}
	if len(e.rules) == 0 {
		return runner, nil
	}

	rules, err := policy.NewCELEngine(e.Logger)
	if err != nil {
		return nil, err
	}
	if err := rules.Compile(e.rules); err != nil {
		return nil, &config.ConfigurationError{Field: "rules_file", Reason: err.Error()}
	}
	runner.Register(checks.CustomPolicies{Engine: rules})
	return runner, nil
}

// categories returns the record categories the requested sections read.
func (e *Engine) categories(sections []Section, runner *checks.Runner, analyzers []checks.Analyzer) []model.Category {
	need := make(map[model.Category]bool)
	if runner != nil {
		for _, c := range runner.Categories() {
			need[c] = true
		}
	}
	if slices.Contains(sections, SectionOptimize) {
		for _, a := range analyzers {
			need[a.Category()] = true
		}
	}
	var out []model.Category
	for _, c := range model.AllCategories {
		if need[c] {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) costSection(ctx context.Context, env string) (*model.CostAnalysis, []string) {
	ctx, span := e.Tracer.Start(ctx, "Section.cost")
	defer span.End()

	failed := func(err error) (*model.CostAnalysis, []string) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.Logger.Error("Cost analysis failed", "error", err)
		return &model.CostAnalysis{
			Status:          model.StatusError,
			Error:           err.Error(),
			Findings:        []model.Finding{},
			Recommendations: []model.Recommendation{},
		}, nil
	}

	if e.billing == nil {
		return failed(ErrNoBilling)
	}
	monthly, err := e.costSamples(ctx, env, model.GranularityMonthly)
	if err != nil {
		return failed(fmt.Errorf("monthly costs: %w", err))
	}
	daily, err := e.costSamples(ctx, env, model.GranularityDaily)
	if err != nil {
		return failed(fmt.Errorf("daily costs: %w", err))
	}

	var advice []model.Recommendation
	if a, ok := e.billing.(scanner.BillingAdvisor); ok {
		actx, cancel := e.billingContext(ctx)
		advice, err = a.Advice(actx, env)
		cancel()
		if err != nil {
			e.Logger.Warn("Billing advice unavailable", "error", err)
			advice = nil
		}
	}

	return checks.AnalyzeCost(checks.CostInputs{
		Environment: env,
		AppName:     e.settings.AppName,
		Monthly:     monthly,
		Daily:       daily,
		Advice:      advice,
		Config:      e.settings.Cost,
	})
}

// billingContext bounds one billing call like a collector.
func (e *Engine) billingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.settings.CollectTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.settings.CollectTimeout)
}

func (e *Engine) costSamples(ctx context.Context, env string, g model.Granularity) ([]model.CostSample, error) {
	ctx, cancel := e.billingContext(ctx)
	defer cancel()
	return e.billing.CostSamples(ctx, env, g)
}

// optimizeSection analyzes each category, plans its opportunities and passes
// the whole plan through the gate. Failed actions come back as warning
// findings on their category.
func (e *Engine) optimizeSection(ctx context.Context, gate *remediation.Gate, snap *scanner.Snapshot, analyzers []checks.Analyzer) (map[string]model.CheckResult, []model.ActionPlanEntry) {
	planner := remediation.NewPlanner(e.settings.Optimization.Savings, model.Horizon(e.settings.Optimization.MaxHorizon))

	results := make(map[string]model.CheckResult, len(analyzers))
	plan := []model.ActionPlanEntry{}
	for _, a := range analyzers {
		key := string(a.Category())
		records, err := snap.Get(a.Category())
		if err != nil {
			results[key] = model.ErrorResult(err)
			continue
		}

		analysis := a.Analyze(snap.Environment, records)
		entries, demoted := planner.Plan(analysis.Opportunities)
		plan = append(plan, entries...)

		res := model.CheckResult{
			Findings:        analysis.Findings,
			Recommendations: append(analysis.Recommendations, demoted...),
		}
		if res.Findings == nil {
			res.Findings = []model.Finding{}
		}
		if res.Recommendations == nil {
			res.Recommendations = []model.Recommendation{}
		}
		results[key] = res
	}

	executed, failures := gate.Execute(ctx, plan)

	for _, a := range analyzers {
		key := string(a.Category())
		res := results[key]
		if res.Status == model.StatusError {
			continue
		}
		for _, entry := range executed {
			if entry.Target.Category == a.Category() {
				res.Actions = append(res.Actions, entry)
			}
		}
		for _, f := range failures {
			if f.Subsystem == key {
				res.Findings = append(res.Findings, f)
			}
		}
		savings := remediation.TotalSavings(res.Actions, res.Recommendations)
		res.EstimatedSavings = &savings
		res.Status = model.StatusFor(res.Findings)
		results[key] = res
	}
	return results, executed
}

// recoverPanic turns a panic in the pipeline into an error on the run.
func (e *Engine) recoverPanic(ctx context.Context, errp *error) {
	if r := recover(); r != nil {
		tr := otel.Tracer("cloudgov/engine")
		_, span := tr.Start(ctx, "CriticalPanic")

		stack := debug.Stack()

		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "CRITICAL FAILURE")
		span.SetAttributes(
			attribute.String("crash.stack", string(stack)),
			attribute.String("crash.reason", fmt.Sprintf("%v", r)),
		)
		span.End()

		e.Logger.Error("CRITICAL FAILURE", "error", r, "stack", string(stack))
		*errp = fmt.Errorf("engine panicked: %v", r)
	}
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"account": true, "password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"refresh_token": true, "credential": true, "webhook": true,
		"slack_webhook": true, "session_token": true,
	}

	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}
