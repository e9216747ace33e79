package scanner

import (
	"context"
	"fmt"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
)

// Collector fetches resource descriptors of one category for an environment.
// Implementations must be read-only.
type Collector interface {
	Category() model.Category
	Collect(ctx context.Context, environment string) ([]model.ResourceRecord, error)
}

// Billing fetches cost samples for an environment.
type Billing interface {
	CostSamples(ctx context.Context, environment string, granularity model.Granularity) ([]model.CostSample, error)
}

// BillingAdvisor is implemented by billing sources that also return purchase or sizing advice.
type BillingAdvisor interface {
	Advice(ctx context.Context, environment string) ([]model.Recommendation, error)
}

// CollectionError marks a category whose subsystem was unreachable or denied access.
type CollectionError struct {
	Category model.Category
	Err      error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Category, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }
