// Package policy evaluates user-defined rules and the gate safety policy.
package policy

import (
	"fmt"
	"log/slog"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// Rule is a user-defined check over one category of records.
type Rule struct {
	ID          string         `yaml:"id"`
	Description string         `yaml:"description"`
	Category    model.Category `yaml:"category"`
	Condition   string         `yaml:"condition"` // CEL, e.g. "kind == 'bucket' && !attrs.encrypted"
	Severity    model.Severity `yaml:"severity"`
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// CELEngine compiles rules once and evaluates them against records.
type CELEngine struct {
	env    *cel.Env
	rules  []compiledRule
	Logger *slog.Logger
}

// NewCELEngine initializes the CEL environment with the record variables.
func NewCELEngine(logger *slog.Logger) (*CELEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("name", decls.String),
			decls.NewVar("category", decls.String),
			decls.NewVar("kind", decls.String),
			decls.NewVar("environment", decls.String),
			decls.NewVar("tagged", decls.Bool),
			decls.NewVar("attrs", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &CELEngine{env: env, Logger: logger}, nil
}

// Compile validates and compiles rules, keeping their order.
func (e *CELEngine) Compile(rules []Rule) error {
	known := make(map[model.Category]bool)
	for _, c := range model.AllCategories {
		known[c] = true
	}

	for _, r := range rules {
		if r.ID == "" {
			return fmt.Errorf("rule without id")
		}
		if !known[r.Category] {
			return fmt.Errorf("rule %s: unknown category %q", r.ID, r.Category)
		}
		switch r.Severity {
		case "":
			r.Severity = model.SeverityWarning
		case model.SeverityInfo, model.SeverityWarning, model.SeverityFail:
		default:
			return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
		}

		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %s compilation error: %w", r.ID, issues.Err())
		}
		if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
			return fmt.Errorf("rule %s must evaluate to bool, got %s", r.ID, t)
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("rule %s program creation error: %w", r.ID, err)
		}
		e.rules = append(e.rules, compiledRule{Rule: r, prg: prg})
	}
	return nil
}

// Rules returns the compiled rules in order.
func (e *CELEngine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Rule
	}
	return out
}

// Categories returns the distinct categories referenced by the rules, in rule order.
func (e *CELEngine) Categories() []model.Category {
	seen := make(map[model.Category]bool)
	var out []model.Category
	for _, r := range e.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// Evaluate returns the rules matched by a record. Rules for other categories
// are skipped; evaluation errors are logged and treated as no match.
func (e *CELEngine) Evaluate(environment string, rec model.ResourceRecord) []Rule {
	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	vars := map[string]any{
		"name":        rec.Name,
		"category":    string(rec.Category),
		"kind":        rec.Kind(),
		"environment": environment,
		"tagged":      rec.EnvironmentTagged,
		"attrs":       attrs,
	}

	var matches []Rule
	for _, r := range e.rules {
		if r.Category != rec.Category {
			continue
		}
		out, _, err := r.prg.Eval(vars)
		if err != nil {
			e.Logger.Debug("Rule evaluation failed", "rule_id", r.ID, "resource", rec.Name, "error", err)
			continue
		}
		if match, ok := out.Value().(bool); ok && match {
			matches = append(matches, r.Rule)
		}
	}
	return matches
}
