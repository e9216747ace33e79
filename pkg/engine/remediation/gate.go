package remediation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ErrNoApplier is returned for an operation no registered applier supports.
var ErrNoApplier = errors.New("no applier supports operation")

// Applier performs operations against one external subsystem. Apply must be
// idempotent: applying the same entry twice leaves the same end state.
type Applier interface {
	Supports(op model.Operation) bool
	Apply(ctx context.Context, entry model.ActionPlanEntry) error
}

// PlanValidator checks a plan before anything is applied. It returns one
// error per entry; a non-nil error keeps that entry from being applied.
type PlanValidator interface {
	ValidatePlan(entries []model.ActionPlanEntry) []error
}

// Recorder persists a record of every applied entry.
type Recorder interface {
	Record(entry model.ActionPlanEntry) error
}

// ApplyError is a failed entry in applied mode.
type ApplyError struct {
	Entry model.ActionPlanEntry
	Err   error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s to %s: %v", e.Entry.Operation, e.Entry.Target, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// PolicyError is the reason the safety policy rejected an entry. The entry was not applied.
type PolicyError struct {
	Err error
}

func (e *PolicyError) Error() string { return e.Err.Error() }

func (e *PolicyError) Unwrap() error { return e.Err }

// Gate is the only component allowed to mutate external state. Its mode is
// fixed at construction.
type Gate struct {
	mode        model.Mode
	appliers    []Applier
	Validator   PlanValidator
	Recorder    Recorder
	Timeout     time.Duration
	Concurrency int
	Logger      *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithAppliers registers appliers, consulted in order.
func WithAppliers(a ...Applier) GateOption {
	return func(g *Gate) { g.appliers = append(g.appliers, a...) }
}

// WithValidator sets the safety policy.
func WithValidator(v PlanValidator) GateOption {
	return func(g *Gate) { g.Validator = v }
}

// WithRecorder sets the audit recorder.
func WithRecorder(r Recorder) GateOption {
	return func(g *Gate) { g.Recorder = r }
}

// WithTimeout bounds every external call.
func WithTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.Timeout = d
		}
	}
}

// WithConcurrency bounds the number of targets processed in parallel.
func WithConcurrency(n int) GateOption {
	return func(g *Gate) {
		if n > 0 {
			g.Concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.Logger = l
		}
	}
}

// NewGate builds a gate. Only an explicit execute flag selects applied mode.
func NewGate(execute bool, opts ...GateOption) *Gate {
	g := &Gate{
		mode:        model.ModeSimulated,
		Timeout:     30 * time.Second,
		Concurrency: 4,
		Logger:      slog.Default(),
	}
	if execute {
		g.mode = model.ModeApplied
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mode returns the gate state.
func (g *Gate) Mode() model.Mode { return g.mode }

// Execute processes a plan. It returns the entries with mode and outcome set,
// plus one warning finding per failed or rejected entry, in plan order.
func (g *Gate) Execute(ctx context.Context, plan []model.ActionPlanEntry) ([]model.ActionPlanEntry, []model.Finding) {
	entries := make([]model.ActionPlanEntry, len(plan))
	copy(entries, plan)

	if g.mode == model.ModeSimulated {
		for i := range entries {
			entries[i].Mode = model.ModeSimulated
			entries[i].Outcome = model.OutcomeSimulated
		}
		return entries, []model.Finding{}
	}

	failures := make([]error, len(entries))
	if g.Validator != nil {
		for i, err := range g.Validator.ValidatePlan(entries) {
			if err != nil && i < len(entries) {
				failures[i] = g.reject(&entries[i], err)
			}
		}
	}

	// Group entries by target, keeping first-appearance order.
	groups := make(map[model.ResourceRef][]int)
	var order []model.ResourceRef
	for i := range entries {
		entries[i].Mode = model.ModeApplied
		if failures[i] != nil {
			continue
		}
		t := entries[i].Target
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], i)
	}

	var eg errgroup.Group
	eg.SetLimit(g.Concurrency)
	for _, target := range order {
		idx := groups[target]
		eg.Go(func() error {
			// Entries on one target run sequentially.
			for _, i := range idx {
				failures[i] = g.applyOne(ctx, &entries[i])
			}
			return nil
		})
	}
	_ = eg.Wait()

	findings := []model.Finding{}
	for i, err := range failures {
		if err == nil {
			continue
		}
		findings = append(findings, model.Finding{
			Subsystem:   string(entries[i].Target.Category),
			Severity:    model.SeverityWarning,
			Message:     err.Error(),
			ResourceRef: entries[i].Target.String(),
		})
	}
	return entries, findings
}

// reject marks an entry the safety policy refused. Nothing is called for it.
func (g *Gate) reject(entry *model.ActionPlanEntry, reason error) error {
	err := &ApplyError{Entry: *entry, Err: &PolicyError{Err: reason}}
	entry.Mode = model.ModeApplied
	entry.Outcome = model.OutcomeFailed
	entry.Error = reason.Error()
	g.Logger.Warn("Action rejected by safety policy", "operation", entry.Operation, "target", entry.Target.String(), "reason", reason)
	return err
}

func (g *Gate) applyOne(ctx context.Context, entry *model.ActionPlanEntry) error {
	tr := otel.Tracer("cloudgov/remediation")
	ctx, span := tr.Start(ctx, "Apply."+string(entry.Operation))
	defer span.End()
	span.SetAttributes(attribute.String("target", entry.Target.String()))

	err := g.invoke(ctx, *entry)
	if err != nil {
		applyErr := &ApplyError{Entry: *entry, Err: err}
		entry.Outcome = model.OutcomeFailed
		entry.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.Logger.Warn("Action failed", "operation", entry.Operation, "target", entry.Target.String(), "error", err)
		return applyErr
	}

	entry.Outcome = model.OutcomeApplied
	g.Logger.Info("Action applied", "operation", entry.Operation, "target", entry.Target.String())
	if g.Recorder != nil {
		if err := g.Recorder.Record(*entry); err != nil {
			g.Logger.Warn("Failed to write audit record", "error", err)
		}
	}
	return nil
}

func (g *Gate) invoke(ctx context.Context, entry model.ActionPlanEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	applier := g.applierFor(entry.Operation)
	if applier == nil {
		return fmt.Errorf("%w %s", ErrNoApplier, entry.Operation)
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("applier panicked: %v", r)
			}
		}()
		done <- applier.Apply(ctx, entry)
	}()

	// An applier that ignores its context is abandoned at the deadline.
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) applierFor(op model.Operation) Applier {
	for _, a := range g.appliers {
		if a.Supports(op) {
			return a
		}
	}
	return nil
}
