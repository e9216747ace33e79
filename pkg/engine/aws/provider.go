package aws

import (
	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine/remediation"
	"github.com/DrSkyle/cloudgov/pkg/engine/scanner"
)

// Collectors returns one read-only collector per category. The budget
// collector needs AccountID, so call VerifyIdentity first.
func (c *Client) Collectors(s config.Settings) []scanner.Collector {
	opt := s.Optimization
	return []scanner.Collector{
		NewStorageCollector(c.Config, opt.LifecycleRuleID, opt.StaleUploadAge),
		NewTableCollector(c.Config),
		NewComputeCollector(c.Config),
		NewEdgeCollector(c.Config),
		NewIdentityCollector(c.Config),
		NewNetworkCollector(c.Config),
		NewAuditCollector(c.Config),
		NewBudgetCollector(c.Config, c.AccountID, s.AppName),
	}
}

// Billing returns the Cost Explorer source.
func (c *Client) Billing(cost config.CostConfig) *BillingCollector {
	return NewBillingCollector(c.Config, cost.MonthlyLookback, cost.DailyLookback)
}

// Appliers returns the mutating adapters. Only the Execution Gate calls them.
func (c *Client) Appliers() []remediation.Applier {
	return []remediation.Applier{
		NewStorageApplier(c.Config),
		NewTableApplier(c.Config),
		NewEdgeApplier(c.Config),
		NewBudgetApplier(c.Config, c.AccountID),
	}
}
