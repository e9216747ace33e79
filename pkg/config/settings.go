// Package config defines run settings, their defaults and validation.
package config

import (
	"time"
)

// Environments accepted by --environment.
var Environments = []string{"dev", "staging", "prod"}

// Settings holds every tunable of a run. Keys map to ~/.cloudgov.yaml and CLOUDGOV_* variables.
type Settings struct {
	AppName     string `mapstructure:"app_name"`
	Environment string `mapstructure:"environment"`
	Region      string `mapstructure:"region"`
	Profile     string `mapstructure:"profile"`
	Verbose     bool   `mapstructure:"verbose"`

	MaxConcurrency int           `mapstructure:"max_concurrency"`
	CollectTimeout time.Duration `mapstructure:"collect_timeout"`
	ActionTimeout  time.Duration `mapstructure:"action_timeout"`

	Cost         CostConfig         `mapstructure:"cost"`
	Optimization OptimizationConfig `mapstructure:"optimization"`
	Gate         GateConfig         `mapstructure:"gate"`

	RulesFile    string `mapstructure:"rules_file"`
	SlackWebhook string `mapstructure:"slack_webhook"`
	SlackChannel string `mapstructure:"slack_channel"`
	OtelEndpoint string `mapstructure:"otel_endpoint"`
	AuditLog     string `mapstructure:"audit_log"`
}

// CostConfig drives the billing section.
type CostConfig struct {
	// ActiveUsers per environment, used for cost-per-user.
	ActiveUsers map[string]int `mapstructure:"active_users"`
	// CostPerUserTarget is the monthly spend per active user considered healthy.
	CostPerUserTarget float64 `mapstructure:"cost_per_user_target"`
	// BudgetLimits is the monthly budget per environment.
	BudgetLimits map[string]float64 `mapstructure:"budget_limits"`
	// MonthlyLookback is the number of whole months queried.
	MonthlyLookback int `mapstructure:"monthly_lookback"`
	// DailyLookback is the number of days queried for the trend.
	DailyLookback int `mapstructure:"daily_lookback"`
	// AlertEmail receives the budget notifications. Empty keeps budgets without alerts.
	AlertEmail string `mapstructure:"alert_email"`
}

// OptimizationConfig drives the optimization analyzers and the planner.
type OptimizationConfig struct {
	// Savings is the estimated monthly saving per operation or advisory key.
	Savings map[string]float64 `mapstructure:"savings"`
	// MaxHorizon is the least urgent horizon still planned as an executable action.
	MaxHorizon string `mapstructure:"max_horizon"`
	// StaleUploadAge is the age after which an incomplete multipart upload is aborted.
	StaleUploadAge time.Duration `mapstructure:"stale_upload_age"`
	// LifecycleRuleID is the rule ID the lifecycle operation maintains.
	LifecycleRuleID string `mapstructure:"lifecycle_rule_id"`
	// TTLAttribute is the attribute enabled by the TTL operation.
	TTLAttribute string `mapstructure:"ttl_attribute"`
	// FunctionMemoryMB and FunctionTimeout are the thresholds above which functions are flagged.
	FunctionMemoryMB int           `mapstructure:"function_memory_mb"`
	FunctionTimeout  time.Duration `mapstructure:"function_timeout"`
}

// GateConfig constrains what the Execution Gate may apply in one run.
type GateConfig struct {
	// AllowedOperations lists operations that may be applied. Empty allows none.
	AllowedOperations []string `mapstructure:"allowed_operations"`
	// MaxActions caps the number of entries applied in one run.
	MaxActions int `mapstructure:"max_actions"`
}

// Saving returns the configured estimate for key, 0 when unset.
func (o OptimizationConfig) Saving(key string) float64 {
	return o.Savings[key]
}
