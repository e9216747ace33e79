package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides, e.g. CLOUDGOV_GATE_MAX_ACTIONS.
const EnvPrefix = "CLOUDGOV"

// DefaultFile is ~/.cloudgov.yaml, or "" when the home directory is unknown.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cloudgov.yaml")
}

// SetDefaults registers every key on v so environment overrides are seen.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("app_name", d.AppName)
	v.SetDefault("environment", "")
	v.SetDefault("region", d.Region)
	v.SetDefault("profile", "")
	v.SetDefault("verbose", false)
	v.SetDefault("max_concurrency", d.MaxConcurrency)
	v.SetDefault("collect_timeout", d.CollectTimeout)
	v.SetDefault("action_timeout", d.ActionTimeout)

	setMapDefaults(v, "cost.active_users", d.Cost.ActiveUsers)
	v.SetDefault("cost.cost_per_user_target", d.Cost.CostPerUserTarget)
	setMapDefaults(v, "cost.budget_limits", d.Cost.BudgetLimits)
	v.SetDefault("cost.monthly_lookback", d.Cost.MonthlyLookback)
	v.SetDefault("cost.daily_lookback", d.Cost.DailyLookback)
	v.SetDefault("cost.alert_email", "")

	setMapDefaults(v, "optimization.savings", d.Optimization.Savings)
	v.SetDefault("optimization.max_horizon", d.Optimization.MaxHorizon)
	v.SetDefault("optimization.stale_upload_age", d.Optimization.StaleUploadAge)
	v.SetDefault("optimization.lifecycle_rule_id", d.Optimization.LifecycleRuleID)
	v.SetDefault("optimization.ttl_attribute", d.Optimization.TTLAttribute)
	v.SetDefault("optimization.function_memory_mb", d.Optimization.FunctionMemoryMB)
	v.SetDefault("optimization.function_timeout", d.Optimization.FunctionTimeout)

	v.SetDefault("gate.allowed_operations", d.Gate.AllowedOperations)
	v.SetDefault("gate.max_actions", d.Gate.MaxActions)

	v.SetDefault("rules_file", "")
	v.SetDefault("slack_webhook", "")
	v.SetDefault("slack_channel", "")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("audit_log", "")
}

// setMapDefaults registers one key per entry so a file that sets only some
// entries keeps the defaults of the others.
func setMapDefaults[V any](v *viper.Viper, prefix string, m map[string]V) {
	for k, val := range m {
		v.SetDefault(prefix+"."+k, val)
	}
}

// Load merges defaults, the config file, CLOUDGOV_* variables and any flags
// already bound on v. An explicit file must exist; the default file is optional.
func Load(v *viper.Viper, file string) (Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := file != ""
	if !explicit {
		file = DefaultFile()
	}
	if file != "" {
		if _, err := os.Stat(file); err == nil || explicit {
			v.SetConfigFile(file)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Settings{}, &ConfigurationError{Field: "config", Reason: err.Error()}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, &ConfigurationError{Field: "config", Reason: fmt.Sprintf("decode: %v", err)}
	}
	return s, nil
}

// IsConfigurationError reports whether err is fatal misconfiguration.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
