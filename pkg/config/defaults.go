package config

import "time"

// Defaults.
const (
	DefaultRegion  = "us-east-1"
	DefaultAppName = "medeez"
)

// Advisory saving keys used for recommendations that have no executable operation.
const (
	SavingFunctionArchitecture = "function_architecture"
	SavingFunctionMemory       = "function_memory"
	SavingFunctionTimeout      = "function_timeout"
)

// Default returns a Settings value with every field populated.
func Default() Settings {
	return Settings{
		AppName:        DefaultAppName,
		Region:         DefaultRegion,
		MaxConcurrency: 8,
		CollectTimeout: 60 * time.Second,
		ActionTimeout:  30 * time.Second,
		Cost:           DefaultCostConfig(),
		Optimization:   DefaultOptimizationConfig(),
		Gate:           DefaultGateConfig(),
	}
}

// DefaultCostConfig returns the billing defaults.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		ActiveUsers:       map[string]int{"prod": 100, "staging": 10, "dev": 5},
		CostPerUserTarget: 50,
		BudgetLimits:      map[string]float64{"prod": 2000, "staging": 500, "dev": 200},
		MonthlyLookback:   3,
		DailyLookback:     30,
	}
}

// DefaultOptimizationConfig returns the analyzer defaults. Savings are coarse
// per-resource estimates: 50 per bucket, 25 per table, 10 per function, 15 per distribution.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		Savings: map[string]float64{
			"ensure_intelligent_tiering":    30,
			"ensure_lifecycle_rule":         15,
			"abort_stale_multipart_uploads": 5,
			"ensure_point_in_time_recovery": 0,
			"ensure_ttl":                    10,
			"ensure_on_demand_billing":      15,
			"ensure_compression":            5,
			"ensure_price_class_100":        10,
			"ensure_budget":                 0,
			SavingFunctionArchitecture:      10,
			SavingFunctionMemory:            0,
			SavingFunctionTimeout:           0,
		},
		MaxHorizon:       "short_term",
		StaleUploadAge:   7 * 24 * time.Hour,
		LifecycleRuleID:  "cloudgov-lifecycle",
		TTLAttribute:     "ttl",
		FunctionMemoryMB: 1024,
		FunctionTimeout:  300 * time.Second,
	}
}

// DefaultGateConfig allows every planned operation, at most 100 per run.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		AllowedOperations: []string{
			"ensure_intelligent_tiering",
			"ensure_lifecycle_rule",
			"abort_stale_multipart_uploads",
			"ensure_point_in_time_recovery",
			"ensure_ttl",
			"ensure_on_demand_billing",
			"ensure_compression",
			"ensure_price_class_100",
			"ensure_budget",
		},
		MaxActions: 100,
	}
}
