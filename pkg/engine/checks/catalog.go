package checks

import "github.com/DrSkyle/cloudgov/pkg/engine/model"

var costCatalog = []model.Recommendation{
	{Text: "Enable S3 Intelligent-Tiering on buckets with unpredictable access", Horizon: model.HorizonImmediate},
	{Text: "Configure DynamoDB TTL for session and ephemeral data", Horizon: model.HorizonImmediate},
	{Text: "Move Lambda functions to arm64", Horizon: model.HorizonShortTerm},
	{Text: "Use DynamoDB on-demand capacity for spiky workloads", Horizon: model.HorizonShortTerm},
	{Text: "Use CloudFront PriceClass_100 outside production", Horizon: model.HorizonShortTerm},
	{Text: "Evaluate Compute Savings Plans for steady baseline usage", Horizon: model.HorizonLongTerm},
	{Text: "Adopt a tagging standard for cost allocation", Horizon: model.HorizonLongTerm},
	{Text: "Review architecture cost quarterly", Horizon: model.HorizonLongTerm},
}

// CostCatalog returns a copy of the static cost recommendations.
func CostCatalog() []model.Recommendation {
	out := make([]model.Recommendation, len(costCatalog))
	copy(out, costCatalog)
	return out
}

// ByHorizon groups recommendations by horizon, preserving order within each group.
func ByHorizon(recs []model.Recommendation) map[model.Horizon][]model.Recommendation {
	out := map[model.Horizon][]model.Recommendation{
		model.HorizonImmediate: {},
		model.HorizonShortTerm: {},
		model.HorizonLongTerm:  {},
	}
	for _, r := range recs {
		out[r.Horizon] = append(out[r.Horizon], r)
	}
	return out
}
