package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/shopspring/decimal"
)

const ceDate = "2006-01-02"

// CostExplorerAPI is the Cost Explorer surface used for billing and advice.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetRightsizingRecommendation(ctx context.Context, params *costexplorer.GetRightsizingRecommendationInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetRightsizingRecommendationOutput, error)
	GetReservationPurchaseRecommendation(ctx context.Context, params *costexplorer.GetReservationPurchaseRecommendationInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetReservationPurchaseRecommendationOutput, error)
}

// BillingCollector fetches cost samples grouped by service for resources whose
// ID contains the environment name.
type BillingCollector struct {
	Client CostExplorerAPI
	// Months is the number of calendar months queried, the current one included.
	Months int
	// Days is the number of whole days queried for the daily series.
	Days int
	Now  func() time.Time
}

func NewBillingCollector(cfg aws.Config, months, days int) *BillingCollector {
	return &BillingCollector{
		Client: costexplorer.NewFromConfig(cfg),
		Months: months,
		Days:   days,
		Now:    time.Now,
	}
}

// CostSamples returns samples in chronological order, services in the order Cost Explorer lists them.
func (b *BillingCollector) CostSamples(ctx context.Context, env string, g model.Granularity) ([]model.CostSample, error) {
	start, end := b.window(g)

	in := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(ceDate)),
			End:   aws.String(end.Format(ceDate)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{"UnblendedCost", "UsageQuantity"},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
		},
		Filter: &cetypes.Expression{
			Dimensions: &cetypes.DimensionValues{
				Key:          cetypes.DimensionResourceId,
				Values:       []string{env},
				MatchOptions: []cetypes.MatchOption{cetypes.MatchOptionContains},
			},
		},
	}
	if g == model.GranularityDaily {
		in.Granularity = cetypes.GranularityDaily
	}

	var samples []model.CostSample
	for {
		out, err := b.Client.GetCostAndUsage(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("get cost and usage (%s): %w", g, err)
		}
		for _, r := range out.ResultsByTime {
			period, err := time.Parse(ceDate, aws.ToString(r.TimePeriod.Start))
			if err != nil {
				return nil, fmt.Errorf("parse period %q: %w", aws.ToString(r.TimePeriod.Start), err)
			}
			for _, grp := range r.Groups {
				if len(grp.Keys) == 0 {
					continue
				}
				amount, err := metric(grp.Metrics, "UnblendedCost")
				if err != nil {
					return nil, fmt.Errorf("%s on %s: %w", grp.Keys[0], period.Format(ceDate), err)
				}
				usage, err := metric(grp.Metrics, "UsageQuantity")
				if err != nil {
					return nil, fmt.Errorf("%s on %s: %w", grp.Keys[0], period.Format(ceDate), err)
				}
				samples = append(samples, model.CostSample{
					PeriodStart:   period,
					Category:      grp.Keys[0],
					Amount:        amount,
					UsageQuantity: usage,
				})
			}
		}
		if out.NextPageToken == nil {
			break
		}
		in.NextPageToken = out.NextPageToken
	}
	return samples, nil
}

func (b *BillingCollector) window(g model.Granularity) (time.Time, time.Time) {
	now := b.Now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if g == model.GranularityDaily {
		days := b.Days
		if days <= 0 {
			days = 30
		}
		return end.AddDate(0, 0, -days), end
	}
	months := b.Months
	if months <= 0 {
		months = 3
	}
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	// End is exclusive; on the first of a month the current month has no data yet.
	if !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	return start, end
}

// metric reads one metric amount. A metric Cost Explorer left out is zero.
func metric(m map[string]cetypes.MetricValue, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v.Amount == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(aws.ToString(v.Amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s amount %q: %w", key, aws.ToString(v.Amount), err)
	}
	return d, nil
}

// Advice turns Cost Explorer sizing and reservation recommendations into
// Recommendations. Both are account-wide.
func (b *BillingCollector) Advice(ctx context.Context, env string) ([]model.Recommendation, error) {
	var recs []model.Recommendation

	rs, err := b.Client.GetRightsizingRecommendation(ctx, &costexplorer.GetRightsizingRecommendationInput{
		Service: aws.String("AmazonEC2"),
		Configuration: &cetypes.RightsizingRecommendationConfiguration{
			BenefitsConsidered:   true,
			RecommendationTarget: cetypes.RecommendationTargetSameInstanceFamily,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get rightsizing recommendations: %w", err)
	}
	if s := rs.Summary; s != nil && aws.ToString(s.TotalRecommendationCount) != "" && aws.ToString(s.TotalRecommendationCount) != "0" {
		rec := model.Recommendation{
			Text:    fmt.Sprintf("Apply %s EC2 rightsizing recommendations", aws.ToString(s.TotalRecommendationCount)),
			Horizon: model.HorizonShortTerm,
		}
		if saving, err := decimal.NewFromString(aws.ToString(s.EstimatedTotalMonthlySavingsAmount)); err == nil && saving.IsPositive() {
			rec.EstimatedMonthlySaving = &saving
		}
		recs = append(recs, rec)
	}

	rp, err := b.Client.GetReservationPurchaseRecommendation(ctx, &costexplorer.GetReservationPurchaseRecommendationInput{
		Service:              aws.String("Amazon Elastic Compute Cloud - Compute"),
		AccountScope:         cetypes.AccountScopePayer,
		LookbackPeriodInDays: cetypes.LookbackPeriodInDaysSixtyDays,
		TermInYears:          cetypes.TermInYearsOneYear,
		PaymentOption:        cetypes.PaymentOptionNoUpfront,
	})
	if err != nil {
		return nil, fmt.Errorf("get reservation recommendations: %w", err)
	}
	for _, r := range rp.Recommendations {
		if r.RecommendationSummary == nil {
			continue
		}
		saving, err := decimal.NewFromString(aws.ToString(r.RecommendationSummary.TotalEstimatedMonthlySavingsAmount))
		if err != nil || !saving.IsPositive() {
			continue
		}
		recs = append(recs, model.Recommendation{
			Text:                   "Purchase reserved capacity for steady EC2 usage",
			Horizon:                model.HorizonLongTerm,
			EstimatedMonthlySaving: &saving,
		})
	}
	return recs, nil
}
