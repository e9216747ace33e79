// Package scanner runs collectors concurrently and merges their output by category.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrNoCollector is recorded for a requested category nobody registered.
var ErrNoCollector = errors.New("no collector registered")

// Registry manages one collector per category.
type Registry struct {
	collectors  map[model.Category]Collector
	Logger      *slog.Logger
	Timeout     time.Duration
	Concurrency int
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		collectors:  make(map[model.Category]Collector),
		Logger:      logger,
		Timeout:     60 * time.Second,
		Concurrency: 8,
	}
}

// Register adds a collector, replacing any previous one for the same category.
func (r *Registry) Register(c Collector) {
	r.collectors[c.Category()] = c
}

// Len returns the number of registered collectors.
func (r *Registry) Len() int { return len(r.collectors) }

// Snapshot is the merged collection output of one run.
type Snapshot struct {
	Environment string
	Records     map[model.Category][]model.ResourceRecord
	Errors      map[model.Category]error
	// Canceled is set when the run was cancelled before every category finished.
	Canceled bool
}

// Get returns the records of a category, or the error that prevented collecting it.
func (s *Snapshot) Get(cat model.Category) ([]model.ResourceRecord, error) {
	if err, ok := s.Errors[cat]; ok {
		return nil, err
	}
	return s.Records[cat], nil
}

type slot struct {
	records []model.ResourceRecord
	err     error
}

// Collect runs the collectors of the requested categories concurrently. Each
// goroutine writes only its own slot; the slots are merged after Wait.
// Failures never abort other categories.
func (r *Registry) Collect(ctx context.Context, environment string, categories []model.Category) *Snapshot {
	slots := make([]slot, len(categories))

	var g errgroup.Group
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}

	for i, cat := range categories {
		c, ok := r.collectors[cat]
		if !ok {
			slots[i].err = &CollectionError{Category: cat, Err: ErrNoCollector}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				slots[i].err = &CollectionError{Category: cat, Err: err}
				return nil
			}
			records, err := r.runWithTelemetry(ctx, c, environment)
			if err != nil {
				slots[i].err = &CollectionError{Category: cat, Err: err}
				return nil
			}
			slots[i].records = records
			return nil
		})
	}
	_ = g.Wait()

	snap := &Snapshot{
		Environment: environment,
		Records:     make(map[model.Category][]model.ResourceRecord, len(categories)),
		Errors:      make(map[model.Category]error),
		Canceled:    ctx.Err() != nil,
	}
	for i, cat := range categories {
		if slots[i].err != nil {
			snap.Errors[cat] = slots[i].err
			continue
		}
		snap.Records[cat] = slots[i].records
	}
	return snap
}

func (r *Registry) runWithTelemetry(ctx context.Context, c Collector, environment string) (records []model.ResourceRecord, err error) {
	name := string(c.Category())
	tr := otel.Tracer("cloudgov/scanner")
	ctx, span := tr.Start(ctx, "Collect."+name, trace.WithAttributes(
		attribute.String("provider", "aws"),
		attribute.String("environment", environment),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("collector panicked: %v", rec)
			span.SetAttributes(attribute.String("crash.stack", string(debug.Stack())))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.Logger.Error("Collector encountered error", "category", name, "error", err)
		}
	}()

	r.Logger.Debug("Starting collector", "category", name)
	records, err = c.Collect(ctx, environment)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	r.Logger.Debug("Collector completed", "category", name, "records", len(records))
	return records, nil
}
