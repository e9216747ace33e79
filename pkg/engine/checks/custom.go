package checks

import (
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/DrSkyle/cloudgov/pkg/engine/policy"
)

// CustomPolicies reports records matched by user-defined CEL rules.
type CustomPolicies struct {
	Engine *policy.CELEngine
}

func (CustomPolicies) Name() string { return NameCustomPolicies }

func (c CustomPolicies) Requires() []model.Category { return c.Engine.Categories() }

func (c CustomPolicies) Evaluate(env string, in Inputs) model.CheckResult {
	var findings []model.Finding
	for _, cat := range c.Requires() {
		for _, rec := range in[cat] {
			for _, rule := range c.Engine.Evaluate(env, rec) {
				msg := rule.Description
				if msg == "" {
					msg = "matched rule " + rule.ID
				}
				findings = append(findings, model.Finding{
					Subsystem:   "policy:" + rule.ID,
					Severity:    rule.Severity,
					Message:     msg,
					ResourceRef: rec.Ref().String(),
				})
			}
		}
	}
	return model.CheckResult{Status: model.StatusFor(findings), Findings: findings}
}
