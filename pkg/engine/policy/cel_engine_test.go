package policy

import (
	"testing"

	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
)

func TestCELEngine(t *testing.T) {
	engine, err := NewCELEngine(nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	rules, err := ParseRules([]byte(`
rules:
  - id: unversioned_prod_bucket
    description: Production buckets must be tagged
    category: storage
    condition: "environment == 'prod' && !tagged"
    severity: fail
  - id: big_function
    category: compute
    condition: "has(attrs.memory_mb) && attrs.memory_mb > 2048"
`))
	if err != nil {
		t.Fatalf("ParseRules failed: %v", err)
	}

	if err := engine.Compile(rules); err != nil {
		t.Fatalf("Compilation failed: %v", err)
	}

	// Default severity is applied at compile time.
	if got := engine.Rules()[1].Severity; got != model.SeverityWarning {
		t.Errorf("expected default severity warning, got %s", got)
	}

	bucket := model.ResourceRecord{Category: model.CategoryStorage, Name: "prod-assets"}
	if m := engine.Evaluate("prod", bucket); len(m) != 1 || m[0].ID != "unversioned_prod_bucket" {
		t.Errorf("expected bucket rule to match, got %v", m)
	}
	if m := engine.Evaluate("dev", bucket); len(m) != 0 {
		t.Errorf("expected no match in dev, got %v", m)
	}

	fn := model.ResourceRecord{
		Category:   model.CategoryCompute,
		Name:       "worker",
		Attributes: map[string]any{"memory_mb": 3008},
	}
	if m := engine.Evaluate("dev", fn); len(m) != 1 || m[0].ID != "big_function" {
		t.Errorf("expected function rule to match, got %v", m)
	}

	// Missing attribute does not match and does not fail.
	if m := engine.Evaluate("dev", model.ResourceRecord{Category: model.CategoryCompute, Name: "bare"}); len(m) != 0 {
		t.Errorf("expected no match without attributes, got %v", m)
	}

	if cats := engine.Categories(); len(cats) != 2 || cats[0] != model.CategoryStorage {
		t.Errorf("unexpected categories %v", cats)
	}
}

func TestCELEngine_CompileErrors(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"missing id", Rule{Category: model.CategoryStorage, Condition: "true"}},
		{"unknown category", Rule{ID: "x", Category: "database", Condition: "true"}},
		{"unknown severity", Rule{ID: "x", Category: model.CategoryStorage, Condition: "true", Severity: "critical"}},
		{"syntax", Rule{ID: "x", Category: model.CategoryStorage, Condition: "name =="}},
		{"not boolean", Rule{ID: "x", Category: model.CategoryStorage, Condition: "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewCELEngine(nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := engine.Compile([]Rule{tt.rule}); err == nil {
				t.Error("expected compile error")
			}
		})
	}
}

func TestValidatePlan(t *testing.T) {
	entry := func(op model.Operation) model.ActionPlanEntry {
		return model.ActionPlanEntry{Target: model.ResourceRef{Category: model.CategoryStorage, Name: "b"}, Operation: op}
	}

	v := NewValidator(config.GateConfig{
		AllowedOperations: []string{string(model.OpEnsureTTL)},
		MaxActions:        2,
	})

	if errs := v.ValidatePlan([]model.ActionPlanEntry{entry(model.OpEnsureTTL)}); errs[0] != nil {
		t.Errorf("expected plan to pass, got %v", errs[0])
	}

	errs := v.ValidatePlan([]model.ActionPlanEntry{entry(model.OpEnsureCompression), entry(model.OpEnsureTTL)})
	if errs[0] == nil {
		t.Error("expected disallowed operation to trip")
	}
	if errs[1] != nil {
		t.Errorf("an allowed entry next to a disallowed one should pass, got %v", errs[1])
	}

	errs = v.ValidatePlan([]model.ActionPlanEntry{entry(model.OpEnsureTTL), entry(model.OpEnsureTTL), entry(model.OpEnsureTTL)})
	for i, err := range errs {
		if err == nil {
			t.Errorf("expected action cap to reject entry %d", i)
		}
	}

	// Disallowed entries do not count against the cap.
	errs = v.ValidatePlan([]model.ActionPlanEntry{entry(model.OpEnsureCompression), entry(model.OpEnsureTTL), entry(model.OpEnsureTTL)})
	if errs[1] != nil || errs[2] != nil {
		t.Errorf("expected the two allowed entries to pass, got %v", errs)
	}
}
