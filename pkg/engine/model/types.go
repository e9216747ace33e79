// Package model defines the values that flow through an analysis run.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category identifies a resource subsystem.
type Category string

const (
	CategoryStorage  Category = "storage"
	CategoryTable    Category = "table"
	CategoryCompute  Category = "compute"
	CategoryEdge     Category = "edge"
	CategoryIdentity Category = "identity"
	CategoryNetwork  Category = "network"
	CategoryAudit    Category = "audit"
	CategoryBudget   Category = "budget"
)

// AllCategories lists every category in the stable order used for iteration.
var AllCategories = []Category{
	CategoryStorage,
	CategoryTable,
	CategoryCompute,
	CategoryEdge,
	CategoryIdentity,
	CategoryNetwork,
	CategoryAudit,
	CategoryBudget,
}

// Severity of a Finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityFail    Severity = "fail"
)

// Horizon is the urgency bucket of a recommended action.
type Horizon string

const (
	HorizonImmediate Horizon = "immediate"
	HorizonShortTerm Horizon = "short_term"
	HorizonLongTerm  Horizon = "long_term"
)

// Rank orders horizons from most to least urgent.
func (h Horizon) Rank() int {
	switch h {
	case HorizonImmediate:
		return 0
	case HorizonShortTerm:
		return 1
	case HorizonLongTerm:
		return 2
	}
	return 3
}

// Valid reports whether h is a known horizon.
func (h Horizon) Valid() bool { return h.Rank() < 3 }

// Mode is the Execution Gate state for a run.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeApplied   Mode = "applied"
)

// Status of a check or optimization result.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
)

// Granularity of billing samples.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
)

// ResourceRecord is a raw resource descriptor captured by a collector.
type ResourceRecord struct {
	Category          Category       `json:"category"`
	Name              string         `json:"name"`
	EnvironmentTagged bool           `json:"environment_tagged"`
	Attributes        map[string]any `json:"attributes,omitempty"`
}

// Ref returns the reference used by findings and plan entries.
func (r ResourceRecord) Ref() ResourceRef {
	return ResourceRef{Category: r.Category, Name: r.Name}
}

// Kind returns the "kind" attribute, used when one category holds several resource types.
func (r ResourceRecord) Kind() string { return r.String("kind") }

// Bool returns a boolean attribute, false when absent.
func (r ResourceRecord) Bool(key string) bool {
	v, _ := r.Attributes[key].(bool)
	return v
}

// String returns a string attribute, "" when absent.
func (r ResourceRecord) String(key string) string {
	v, _ := r.Attributes[key].(string)
	return v
}

// Int returns an integer attribute, 0 when absent.
func (r ResourceRecord) Int(key string) int {
	switch v := r.Attributes[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Strings returns a string slice attribute.
func (r ResourceRecord) Strings(key string) []string {
	v, _ := r.Attributes[key].([]string)
	return v
}

// ResourceRef points at a ResourceRecord without copying it.
type ResourceRef struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
}

func (r ResourceRef) String() string { return string(r.Category) + "/" + r.Name }

// CostSample is one billing data point. Amount and UsageQuantity keep full precision.
type CostSample struct {
	PeriodStart   time.Time       `json:"period_start"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	UsageQuantity decimal.Decimal `json:"usage_quantity"`
}

// Finding is a discrete observation that a resource deviates from the desired posture.
type Finding struct {
	Subsystem   string   `json:"subsystem"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	ResourceRef string   `json:"resource_ref,omitempty"`
}

// Recommendation is a catalog or generated piece of advice tagged with a horizon.
type Recommendation struct {
	Text    string  `json:"text"`
	Horizon Horizon `json:"horizon"`
	// EstimatedMonthlySaving is a fixed per-resource estimate, not a measured value.
	EstimatedMonthlySaving *decimal.Decimal `json:"estimated_monthly_saving,omitempty"`
}

// Outcome of an ActionPlanEntry after the gate has processed it.
type Outcome string

const (
	OutcomePending   Outcome = ""
	OutcomeSimulated Outcome = "simulated"
	OutcomeApplied   Outcome = "applied"
	OutcomeFailed    Outcome = "failed"
)

// ActionPlanEntry is one idempotent remediation step.
type ActionPlanEntry struct {
	Target      ResourceRef       `json:"target"`
	Operation   Operation         `json:"operation"`
	Description string            `json:"description"`
	Horizon     Horizon           `json:"horizon"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Mode        Mode              `json:"mode"`
	Outcome     Outcome           `json:"outcome,omitempty"`
	Error       string            `json:"error,omitempty"`
	// EstimatedMonthlySaving is a fixed per-operation estimate, not verified against billing.
	EstimatedMonthlySaving decimal.Decimal `json:"estimated_monthly_saving"`
}

// CheckResult is the per-category slot of a report. A failed check keeps its slot with Status=error.
type CheckResult struct {
	Status           Status            `json:"status"`
	Error            string            `json:"error,omitempty"`
	Findings         []Finding         `json:"findings"`
	Recommendations  []Recommendation  `json:"recommendations"`
	Actions          []ActionPlanEntry `json:"actions,omitempty"`
	EstimatedSavings *decimal.Decimal  `json:"estimated_savings,omitempty"`
}

// ErrorResult builds the slot recorded for a check that could not run.
func ErrorResult(err error) CheckResult {
	return CheckResult{
		Status:          StatusError,
		Error:           err.Error(),
		Findings:        []Finding{},
		Recommendations: []Recommendation{},
	}
}

// StatusFor derives a check status from its findings.
func StatusFor(findings []Finding) Status {
	status := StatusPass
	for _, f := range findings {
		switch f.Severity {
		case SeverityFail:
			return StatusFail
		case SeverityWarning:
			status = StatusWarning
		}
	}
	return status
}

// Opportunity is a detected deviation that an operation can fix. The planner
// turns opportunities into ActionPlanEntry values.
type Opportunity struct {
	Target      ResourceRef       `json:"target"`
	Operation   Operation         `json:"operation"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}
