package model

// Operation names an idempotent "ensure" action understood by an applier.
type Operation string

const (
	OpEnsureIntelligentTiering   Operation = "ensure_intelligent_tiering"
	OpEnsureLifecycleRule        Operation = "ensure_lifecycle_rule"
	OpAbortStaleMultipartUploads Operation = "abort_stale_multipart_uploads"
	OpEnsurePointInTimeRecovery  Operation = "ensure_point_in_time_recovery"
	OpEnsureTTL                  Operation = "ensure_ttl"
	OpEnsureOnDemandBilling      Operation = "ensure_on_demand_billing"
	OpEnsureCompression          Operation = "ensure_compression"
	OpEnsurePriceClass100        Operation = "ensure_price_class_100"
	OpEnsureBudget               Operation = "ensure_budget"
)

// AllOperations lists every operation the planner can emit.
var AllOperations = []Operation{
	OpEnsureIntelligentTiering,
	OpEnsureLifecycleRule,
	OpAbortStaleMultipartUploads,
	OpEnsurePointInTimeRecovery,
	OpEnsureTTL,
	OpEnsureOnDemandBilling,
	OpEnsureCompression,
	OpEnsurePriceClass100,
	OpEnsureBudget,
}

// HorizonOf classifies an operation. Configuration toggles are immediate,
// shape changes are short term.
func HorizonOf(op Operation) Horizon {
	switch op {
	case OpEnsureOnDemandBilling, OpEnsurePriceClass100:
		return HorizonShortTerm
	default:
		return HorizonImmediate
	}
}
