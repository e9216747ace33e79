package score

import (
	"math"
	"testing"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
)

func TestCompliance(t *testing.T) {
	tests := []struct {
		findings int
		want     int
	}{
		{0, 100},
		{1, 95},
		{7, 65},
		{19, 5},
		{20, 0},
		{25, 0},
		{30, 0},
		{-3, 100},
		{math.MaxInt, 0},
		{math.MaxInt/PenaltyPerFinding + 1, 0},
	}

	for _, tt := range tests {
		if got := Compliance(tt.findings); got != tt.want {
			t.Errorf("Compliance(%d) = %d, want %d", tt.findings, got, tt.want)
		}
	}
}

func TestCompliance_MonotonicAndBounded(t *testing.T) {
	prev := Compliance(0)
	for n := 1; n < 200; n++ {
		s := Compliance(n)
		if s > prev {
			t.Fatalf("score increased from %d to %d at n=%d", prev, s, n)
		}
		if s < 0 || s > Max {
			t.Fatalf("score %d out of bounds at n=%d", s, n)
		}
		prev = s
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]model.CheckResult
		want    model.Status
	}{
		{"empty", nil, model.StatusPass},
		{"all pass", map[string]model.CheckResult{"a": {Status: model.StatusPass}}, model.StatusPass},
		{"warning only", map[string]model.CheckResult{"a": {Status: model.StatusWarning}}, model.StatusPass},
		{"error only", map[string]model.CheckResult{"a": {Status: model.StatusError}}, model.StatusPass},
		{"one fail", map[string]model.CheckResult{
			"a": {Status: model.StatusPass},
			"b": {Status: model.StatusFail},
		}, model.StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.results); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
