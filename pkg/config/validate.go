package config

import (
	"fmt"
	"slices"
	"strings"
)

// ConfigurationError reports settings that make a run impossible. It is fatal.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

var horizons = []string{"immediate", "short_term", "long_term"}

// Validate checks the settings before any collection starts.
func (s Settings) Validate() error {
	if s.Environment == "" {
		return &ConfigurationError{Field: "environment", Reason: "required"}
	}
	if !slices.Contains(Environments, s.Environment) {
		return &ConfigurationError{Field: "environment", Reason: fmt.Sprintf("%q is not one of %v", s.Environment, Environments)}
	}
	if s.AppName == "" {
		return &ConfigurationError{Field: "app_name", Reason: "required"}
	}
	if s.MaxConcurrency < 1 {
		return &ConfigurationError{Field: "max_concurrency", Reason: "must be at least 1"}
	}
	if s.CollectTimeout <= 0 {
		return &ConfigurationError{Field: "collect_timeout", Reason: "must be positive"}
	}
	if s.ActionTimeout <= 0 {
		return &ConfigurationError{Field: "action_timeout", Reason: "must be positive"}
	}
	if !slices.Contains(horizons, s.Optimization.MaxHorizon) {
		return &ConfigurationError{Field: "optimization.max_horizon", Reason: fmt.Sprintf("%q is not one of %v", s.Optimization.MaxHorizon, horizons)}
	}
	if s.Cost.CostPerUserTarget < 0 {
		return &ConfigurationError{Field: "cost.cost_per_user_target", Reason: "must not be negative"}
	}
	for env, limit := range s.Cost.BudgetLimits {
		if limit <= 0 {
			return &ConfigurationError{Field: "cost.budget_limits." + env, Reason: "must be positive"}
		}
	}
	if s.Cost.AlertEmail != "" && !strings.Contains(s.Cost.AlertEmail, "@") {
		return &ConfigurationError{Field: "cost.alert_email", Reason: fmt.Sprintf("%q is not an email address", s.Cost.AlertEmail)}
	}
	if s.Gate.MaxActions < 0 {
		return &ConfigurationError{Field: "gate.max_actions", Reason: "must not be negative"}
	}
	for op, v := range s.Optimization.Savings {
		if v < 0 {
			return &ConfigurationError{Field: "optimization.savings." + op, Reason: "must not be negative"}
		}
	}
	return nil
}
