package policy

import (
	"fmt"
	"slices"

	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
)

// Validator enforces the limits the Execution Gate must respect before applying anything.
type Validator struct {
	Config config.GateConfig
}

// NewValidator builds a validator from gate settings.
func NewValidator(cfg config.GateConfig) *Validator {
	return &Validator{Config: cfg}
}

// ValidatePlan returns one error per entry, nil for entries that may be
// applied. A disallowed operation rejects only its own entry. When the
// remaining entries exceed the action cap, every entry is rejected.
func (v *Validator) ValidatePlan(entries []model.ActionPlanEntry) []error {
	errs := make([]error, len(entries))
	allowed := 0
	for i, e := range entries {
		if !slices.Contains(v.Config.AllowedOperations, string(e.Operation)) {
			errs[i] = fmt.Errorf("SAFETY TRIP: operation %s is not allowed", e.Operation)
			continue
		}
		allowed++
	}
	if v.Config.MaxActions > 0 && allowed > v.Config.MaxActions {
		trip := fmt.Errorf("SAFETY TRIP: plan has %d actions, limit is %d", allowed, v.Config.MaxActions)
		for i := range errs {
			if errs[i] == nil {
				errs[i] = trip
			}
		}
	}
	return errs
}
