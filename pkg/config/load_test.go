package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudgov.yaml")
	yaml := `app_name: acme
action_timeout: 10s
cost:
  budget_limits:
    dev: 50
optimization:
  max_horizon: immediate
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLOUDGOV_ENVIRONMENT", "staging")
	t.Setenv("CLOUDGOV_GATE_MAX_ACTIONS", "5")

	s, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.AppName != "acme" {
		t.Errorf("expected app_name from file, got %q", s.AppName)
	}
	if s.Environment != "staging" {
		t.Errorf("expected environment from env, got %q", s.Environment)
	}
	if s.Gate.MaxActions != 5 {
		t.Errorf("expected gate.max_actions from env, got %d", s.Gate.MaxActions)
	}
	if s.ActionTimeout != 10*time.Second {
		t.Errorf("expected 10s action timeout, got %s", s.ActionTimeout)
	}
	if s.Cost.BudgetLimits["dev"] != 50 {
		t.Errorf("expected dev budget 50, got %f", s.Cost.BudgetLimits["dev"])
	}
	if s.Cost.BudgetLimits["prod"] != 2000 {
		t.Errorf("expected the default prod budget to survive, got %f", s.Cost.BudgetLimits["prod"])
	}
	if s.Optimization.MaxHorizon != "immediate" {
		t.Errorf("expected immediate horizon, got %q", s.Optimization.MaxHorizon)
	}
	if s.CollectTimeout != time.Minute || s.MaxConcurrency != 8 {
		t.Errorf("expected defaults for untouched keys, got %s / %d", s.CollectTimeout, s.MaxConcurrency)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("loaded settings should validate: %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if !IsConfigurationError(err) {
		t.Fatalf("expected a ConfigurationError, got %v", err)
	}
}
