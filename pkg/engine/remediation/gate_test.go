package remediation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyApplier records every mutating call and the peak concurrency per target.
type spyApplier struct {
	mu        sync.Mutex
	calls     []string
	inFlight  map[model.ResourceRef]int
	maxFlight map[model.ResourceRef]int
	ApplyFunc func(ctx context.Context, e model.ActionPlanEntry) error
}

func newSpy() *spyApplier {
	return &spyApplier{inFlight: map[model.ResourceRef]int{}, maxFlight: map[model.ResourceRef]int{}}
}

func (s *spyApplier) Supports(op model.Operation) bool { return op != model.OpEnsureCompression }

func (s *spyApplier) Apply(ctx context.Context, e model.ActionPlanEntry) error {
	s.mu.Lock()
	s.calls = append(s.calls, string(e.Operation)+" "+e.Target.String())
	s.inFlight[e.Target]++
	if s.inFlight[e.Target] > s.maxFlight[e.Target] {
		s.maxFlight[e.Target] = s.inFlight[e.Target]
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight[e.Target]--
		s.mu.Unlock()
	}()

	if s.ApplyFunc != nil {
		return s.ApplyFunc(ctx, e)
	}
	time.Sleep(time.Millisecond)
	return nil
}

type memRecorder struct {
	mu      sync.Mutex
	entries []model.ActionPlanEntry
}

func (m *memRecorder) Record(e model.ActionPlanEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func entry(cat model.Category, name string, op model.Operation) model.ActionPlanEntry {
	return model.ActionPlanEntry{
		Target:    model.ResourceRef{Category: cat, Name: name},
		Operation: op,
		Mode:      model.ModeSimulated,
	}
}

func samplePlan() []model.ActionPlanEntry {
	return []model.ActionPlanEntry{
		entry(model.CategoryStorage, "a", model.OpEnsureIntelligentTiering),
		entry(model.CategoryStorage, "a", model.OpEnsureLifecycleRule),
		entry(model.CategoryStorage, "a", model.OpAbortStaleMultipartUploads),
		entry(model.CategoryTable, "t", model.OpEnsurePointInTimeRecovery),
		entry(model.CategoryTable, "t", model.OpEnsureTTL),
	}
}

func TestGate_SimulatedNeverCallsAppliers(t *testing.T) {
	spy := newSpy()
	g := NewGate(false, WithAppliers(spy))

	out, findings := g.Execute(context.Background(), samplePlan())

	assert.Empty(t, spy.calls, "simulated mode must not mutate")
	assert.Empty(t, findings)
	require.Len(t, out, 5)
	for _, e := range out {
		assert.Equal(t, model.ModeSimulated, e.Mode)
		assert.Equal(t, model.OutcomeSimulated, e.Outcome)
	}
}

func TestGate_AppliedSequentialPerTarget(t *testing.T) {
	spy := newSpy()
	rec := &memRecorder{}
	g := NewGate(true, WithAppliers(spy), WithRecorder(rec), WithConcurrency(4))

	out, findings := g.Execute(context.Background(), samplePlan())

	assert.Empty(t, findings)
	assert.Len(t, spy.calls, 5)
	for ref, n := range spy.maxFlight {
		assert.Equal(t, 1, n, "target %s had concurrent updates", ref)
	}
	for _, e := range out {
		assert.Equal(t, model.ModeApplied, e.Mode)
		assert.Equal(t, model.OutcomeApplied, e.Outcome)
	}
	assert.Len(t, rec.entries, 5)

	// Per-target order is preserved.
	var storage []string
	for _, c := range spy.calls {
		if strings.HasSuffix(c, "storage/a") {
			storage = append(storage, c)
		}
	}
	assert.Equal(t, []string{
		"ensure_intelligent_tiering storage/a",
		"ensure_lifecycle_rule storage/a",
		"abort_stale_multipart_uploads storage/a",
	}, storage)
}

func TestGate_FailureBecomesWarningAndRunContinues(t *testing.T) {
	spy := newSpy()
	spy.ApplyFunc = func(ctx context.Context, e model.ActionPlanEntry) error {
		if e.Operation == model.OpEnsureLifecycleRule {
			return errors.New("AccessDenied")
		}
		return nil
	}
	plan := append(samplePlan(), entry(model.CategoryEdge, "E1", model.OpEnsureCompression))
	g := NewGate(true, WithAppliers(spy))

	out, findings := g.Execute(context.Background(), plan)

	require.Len(t, out, 6, "failed entries are kept in the plan")
	require.Len(t, findings, 2)

	assert.Equal(t, model.SeverityWarning, findings[0].Severity)
	assert.Equal(t, "storage/a", findings[0].ResourceRef)
	assert.Contains(t, findings[0].Message, "AccessDenied")
	assert.Contains(t, findings[1].Message, "no applier")

	assert.Equal(t, model.OutcomeFailed, out[1].Outcome)
	assert.Equal(t, model.OutcomeApplied, out[2].Outcome, "later entries on the same target still run")
	assert.Equal(t, model.OutcomeApplied, out[4].Outcome)
	assert.Equal(t, model.ModeApplied, out[5].Mode)
}

func TestGate_TimeoutIsPerResourceFailure(t *testing.T) {
	spy := newSpy()
	spy.ApplyFunc = func(ctx context.Context, e model.ActionPlanEntry) error {
		if e.Target.Name == "t" {
			time.Sleep(time.Second)
		}
		return nil
	}
	g := NewGate(true, WithAppliers(spy), WithTimeout(20*time.Millisecond))

	out, findings := g.Execute(context.Background(), samplePlan())

	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, "table/t", f.ResourceRef)
		assert.Contains(t, f.Message, context.DeadlineExceeded.Error())
	}
	assert.Equal(t, model.OutcomeApplied, out[0].Outcome)
}

// denyOp rejects one operation and accepts everything else.
type denyOp struct{ op model.Operation }

func (d denyOp) ValidatePlan(entries []model.ActionPlanEntry) []error {
	errs := make([]error, len(entries))
	for i, e := range entries {
		if e.Operation == d.op {
			errs[i] = errors.New("SAFETY TRIP: not allowed")
		}
	}
	return errs
}

func TestGate_PolicyRejectionSkipsOnlyThatEntry(t *testing.T) {
	spy := newSpy()
	rec := &memRecorder{}
	g := NewGate(true, WithAppliers(spy), WithRecorder(rec), WithValidator(denyOp{model.OpEnsureLifecycleRule}))

	out, findings := g.Execute(context.Background(), samplePlan())

	require.Len(t, out, 5)
	assert.Len(t, spy.calls, 4)
	for _, c := range spy.calls {
		assert.NotContains(t, c, string(model.OpEnsureLifecycleRule))
	}

	rejected := out[1]
	assert.Equal(t, model.ModeApplied, rejected.Mode)
	assert.Equal(t, model.OutcomeFailed, rejected.Outcome)
	assert.Contains(t, rejected.Error, "SAFETY TRIP")

	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityWarning, findings[0].Severity)
	assert.Equal(t, "storage/a", findings[0].ResourceRef)
	assert.Contains(t, findings[0].Message, "SAFETY TRIP")
	assert.Len(t, rec.entries, 4, "rejected entries are not audited as applied")
}

type denyAll struct{}

func (denyAll) ValidatePlan(entries []model.ActionPlanEntry) []error {
	errs := make([]error, len(entries))
	for i := range errs {
		errs[i] = errors.New("SAFETY TRIP: plan has 5 actions, limit is 1")
	}
	return errs
}

func TestGate_PlanWideRejectionAppliesNothing(t *testing.T) {
	spy := newSpy()
	g := NewGate(true, WithAppliers(spy), WithValidator(denyAll{}))

	out, findings := g.Execute(context.Background(), samplePlan())

	assert.Empty(t, spy.calls)
	require.Len(t, out, 5)
	require.Len(t, findings, 5)
	for _, e := range out {
		assert.Equal(t, model.OutcomeFailed, e.Outcome)
	}
}

func TestGate_EmptyPlan(t *testing.T) {
	g := NewGate(true, WithAppliers(newSpy()))
	out, findings := g.Execute(context.Background(), nil)

	assert.Empty(t, out)
	assert.Empty(t, findings)
}
