package model

import "fmt"

// Alert thresholds kept on every environment budget, in percent of the limit.
const (
	BudgetActualThreshold   = 80
	BudgetForecastThreshold = 100
)

// BudgetName is the name of the monthly budget kept for an environment.
func BudgetName(app, env string) string {
	return fmt.Sprintf("%s-%s-monthly-budget", app, env)
}
