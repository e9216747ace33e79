package aws

import (
	"context"
	"testing"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCostExplorer struct {
	GetCostAndUsageFunc                      func(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetRightsizingRecommendationFunc         func(ctx context.Context, params *costexplorer.GetRightsizingRecommendationInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetRightsizingRecommendationOutput, error)
	GetReservationPurchaseRecommendationFunc func(ctx context.Context, params *costexplorer.GetReservationPurchaseRecommendationInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetReservationPurchaseRecommendationOutput, error)
}

func (m *mockCostExplorer) GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	return m.GetCostAndUsageFunc(ctx, params, optFns...)
}

func (m *mockCostExplorer) GetRightsizingRecommendation(ctx context.Context, params *costexplorer.GetRightsizingRecommendationInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetRightsizingRecommendationOutput, error) {
	if m.GetRightsizingRecommendationFunc != nil {
		return m.GetRightsizingRecommendationFunc(ctx, params, optFns...)
	}
	return &costexplorer.GetRightsizingRecommendationOutput{}, nil
}

func (m *mockCostExplorer) GetReservationPurchaseRecommendation(ctx context.Context, params *costexplorer.GetReservationPurchaseRecommendationInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetReservationPurchaseRecommendationOutput, error) {
	if m.GetReservationPurchaseRecommendationFunc != nil {
		return m.GetReservationPurchaseRecommendationFunc(ctx, params, optFns...)
	}
	return &costexplorer.GetReservationPurchaseRecommendationOutput{}, nil
}

func group(service, cost, usage string) cetypes.Group {
	return cetypes.Group{
		Keys: []string{service},
		Metrics: map[string]cetypes.MetricValue{
			"UnblendedCost": {Amount: aws.String(cost), Unit: aws.String("USD")},
			"UsageQuantity": {Amount: aws.String(usage), Unit: aws.String("N/A")},
		},
	}
}

func TestBillingCollector_CostSamples(t *testing.T) {
	var inputs []*costexplorer.GetCostAndUsageInput
	m := &mockCostExplorer{
		GetCostAndUsageFunc: func(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
			cp := *params
			inputs = append(inputs, &cp)
			if params.NextPageToken == nil {
				return &costexplorer.GetCostAndUsageOutput{
					ResultsByTime: []cetypes.ResultByTime{{
						TimePeriod: &cetypes.DateInterval{Start: aws.String("2026-01-01"), End: aws.String("2026-02-01")},
						Groups:     []cetypes.Group{group("Amazon S3", "10.105", "42"), group("AWS Lambda", "3.3", "1000")},
					}},
					NextPageToken: aws.String("p2"),
				}, nil
			}
			return &costexplorer.GetCostAndUsageOutput{
				ResultsByTime: []cetypes.ResultByTime{{
					TimePeriod: &cetypes.DateInterval{Start: aws.String("2026-02-01"), End: aws.String("2026-03-01")},
					Groups:     []cetypes.Group{group("Amazon S3", "12", "50")},
				}},
			}, nil
		},
	}

	b := &BillingCollector{Client: m, Months: 3, Days: 30, Now: func() time.Time { return fixedNow }}
	samples, err := b.CostSamples(context.Background(), "dev", model.GranularityMonthly)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, "Amazon S3", samples[0].Category)
	assert.True(t, samples[0].Amount.Equal(decimal.RequireFromString("10.105")), "full precision is kept")
	assert.True(t, samples[1].UsageQuantity.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), samples[2].PeriodStart)

	require.Len(t, inputs, 2)
	first := inputs[0]
	assert.Equal(t, cetypes.GranularityMonthly, first.Granularity)
	assert.Equal(t, "2026-01-01", aws.ToString(first.TimePeriod.Start))
	assert.Equal(t, "2026-03-15", aws.ToString(first.TimePeriod.End))
	assert.Equal(t, []string{"dev"}, first.Filter.Dimensions.Values)
	assert.Equal(t, cetypes.DimensionResourceId, first.Filter.Dimensions.Key)
}

func TestBillingCollector_UnparseableAmountFails(t *testing.T) {
	m := &mockCostExplorer{
		GetCostAndUsageFunc: func(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
			return &costexplorer.GetCostAndUsageOutput{
				ResultsByTime: []cetypes.ResultByTime{{
					TimePeriod: &cetypes.DateInterval{Start: aws.String("2026-01-01"), End: aws.String("2026-02-01")},
					Groups:     []cetypes.Group{group("Amazon S3", "1,234.50", "42")},
				}},
			}, nil
		},
	}

	b := &BillingCollector{Client: m, Months: 3, Days: 30, Now: func() time.Time { return fixedNow }}
	_, err := b.CostSamples(context.Background(), "dev", model.GranularityMonthly)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Amazon S3")
	assert.Contains(t, err.Error(), "1,234.50")
}

func TestMetric_MissingIsZero(t *testing.T) {
	d, err := metric(map[string]cetypes.MetricValue{}, "UsageQuantity")
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}

func TestBillingCollector_DailyWindow(t *testing.T) {
	var got *costexplorer.GetCostAndUsageInput
	m := &mockCostExplorer{
		GetCostAndUsageFunc: func(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
			got = params
			return &costexplorer.GetCostAndUsageOutput{}, nil
		},
	}
	b := &BillingCollector{Client: m, Days: 30, Now: func() time.Time { return fixedNow }}

	samples, err := b.CostSamples(context.Background(), "prod", model.GranularityDaily)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Equal(t, cetypes.GranularityDaily, got.Granularity)
	assert.Equal(t, "2026-02-13", aws.ToString(got.TimePeriod.Start))
	assert.Equal(t, "2026-03-15", aws.ToString(got.TimePeriod.End))
}

func TestBillingCollector_Advice(t *testing.T) {
	m := &mockCostExplorer{
		GetRightsizingRecommendationFunc: func(ctx context.Context, params *costexplorer.GetRightsizingRecommendationInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetRightsizingRecommendationOutput, error) {
			if params.Configuration == nil || !params.Configuration.BenefitsConsidered {
				t.Errorf("expected rightsizing to consider savings plan benefits")
			}
			return &costexplorer.GetRightsizingRecommendationOutput{
				Summary: &cetypes.RightsizingRecommendationSummary{
					TotalRecommendationCount:           aws.String("4"),
					EstimatedTotalMonthlySavingsAmount: aws.String("81.5"),
				},
			}, nil
		},
		GetReservationPurchaseRecommendationFunc: func(ctx context.Context, params *costexplorer.GetReservationPurchaseRecommendationInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetReservationPurchaseRecommendationOutput, error) {
			return &costexplorer.GetReservationPurchaseRecommendationOutput{
				Recommendations: []cetypes.ReservationPurchaseRecommendation{
					{RecommendationSummary: &cetypes.ReservationPurchaseRecommendationSummary{TotalEstimatedMonthlySavingsAmount: aws.String("120")}},
					{RecommendationSummary: &cetypes.ReservationPurchaseRecommendationSummary{TotalEstimatedMonthlySavingsAmount: aws.String("0")}},
				},
			}, nil
		},
	}

	recs, err := (&BillingCollector{Client: m}).Advice(context.Background(), "prod")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, model.HorizonShortTerm, recs[0].Horizon)
	assert.Contains(t, recs[0].Text, "4")
	assert.True(t, recs[0].EstimatedMonthlySaving.Equal(decimal.RequireFromString("81.5")))
	assert.Equal(t, model.HorizonLongTerm, recs[1].Horizon)
	assert.True(t, recs[1].EstimatedMonthlySaving.Equal(decimal.NewFromInt(120)))
}
