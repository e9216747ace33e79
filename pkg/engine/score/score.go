// Package score turns findings into a bounded health score.
package score

import "github.com/DrSkyle/cloudgov/pkg/engine/model"

const (
	// Max is the score of a run without findings.
	Max = 100
	// PenaltyPerFinding applies to every finding regardless of severity.
	PenaltyPerFinding = 5
)

// Compliance returns max(0, 100 - 5n).
func Compliance(findingCount int) int {
	if findingCount <= 0 {
		return Max
	}
	if findingCount >= Max/PenaltyPerFinding {
		return 0
	}
	return Max - PenaltyPerFinding*findingCount
}

// Overall is fail when any result failed, pass otherwise. Errored results do not fail the run.
func Overall(results map[string]model.CheckResult) model.Status {
	for _, r := range results {
		if r.Status == model.StatusFail {
			return model.StatusFail
		}
	}
	return model.StatusPass
}
