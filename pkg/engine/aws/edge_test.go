package aws

import (
	"context"
	"testing"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

type mockCloudFront struct {
	Pages  [][]types.DistributionSummary
	Config *types.DistributionConfig
	ETag   string

	Updates []*cloudfront.UpdateDistributionInput
}

func (m *mockCloudFront) ListDistributions(ctx context.Context, params *cloudfront.ListDistributionsInput, optFns ...func(*cloudfront.Options)) (*cloudfront.ListDistributionsOutput, error) {
	page := 0
	if params.Marker != nil {
		page = 1
	}
	list := &types.DistributionList{Items: m.Pages[page]}
	if page+1 < len(m.Pages) {
		list.IsTruncated = aws.Bool(true)
		list.NextMarker = aws.String("next")
	} else {
		list.IsTruncated = aws.Bool(false)
	}
	return &cloudfront.ListDistributionsOutput{DistributionList: list}, nil
}

func (m *mockCloudFront) GetDistributionConfig(ctx context.Context, params *cloudfront.GetDistributionConfigInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionConfigOutput, error) {
	// Return a copy so the applier mutates its own value.
	cfg := *m.Config
	cb := *m.Config.DefaultCacheBehavior
	cfg.DefaultCacheBehavior = &cb
	return &cloudfront.GetDistributionConfigOutput{DistributionConfig: &cfg, ETag: aws.String(m.ETag)}, nil
}

func (m *mockCloudFront) UpdateDistribution(ctx context.Context, params *cloudfront.UpdateDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateDistributionOutput, error) {
	m.Updates = append(m.Updates, params)
	m.Config = params.DistributionConfig
	m.ETag += "'"
	return &cloudfront.UpdateDistributionOutput{}, nil
}

func TestEdgeCollector_PaginatesAndFilters(t *testing.T) {
	m := &mockCloudFront{Pages: [][]types.DistributionSummary{
		{
			{Id: aws.String("E1"), Comment: aws.String("medeez dev web"), PriceClass: types.PriceClassPriceClassAll,
				DefaultCacheBehavior: &types.DefaultCacheBehavior{Compress: aws.Bool(false)}},
			{Id: aws.String("E2"), Comment: aws.String("medeez prod web"), PriceClass: types.PriceClassPriceClassAll},
		},
		{
			{Id: aws.String("E3"), Aliases: &types.Aliases{Items: []string{"app.dev.medeez.com"}}, PriceClass: types.PriceClassPriceClass100,
				DefaultCacheBehavior: &types.DefaultCacheBehavior{Compress: aws.Bool(true)}},
		},
	}}

	records, err := (&EdgeCollector{Client: m}).Collect(context.Background(), "dev")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected E1 and E3, got %d records", len(records))
	}
	if records[0].Name != "E1" || records[0].String(model.AttrPriceClass) != "PriceClass_All" || records[0].Bool(model.AttrCompression) {
		t.Errorf("E1: unexpected record %+v", records[0])
	}
	if records[1].Name != "E3" || !records[1].Bool(model.AttrCompression) {
		t.Errorf("E3: unexpected record %+v", records[1])
	}
}

func TestEdgeApplier_UsesETagAndSkipsNoOps(t *testing.T) {
	m := &mockCloudFront{
		Config: &types.DistributionConfig{
			PriceClass:           types.PriceClassPriceClassAll,
			DefaultCacheBehavior: &types.DefaultCacheBehavior{Compress: aws.Bool(false)},
		},
		ETag: "v1",
	}
	a := &EdgeApplier{Client: m}
	target := model.ResourceRef{Category: model.CategoryEdge, Name: "E1"}

	for round := 0; round < 2; round++ {
		for _, op := range []model.Operation{model.OpEnsureCompression, model.OpEnsurePriceClass100} {
			if err := a.Apply(context.Background(), model.ActionPlanEntry{Target: target, Operation: op}); err != nil {
				t.Fatalf("%s failed: %v", op, err)
			}
		}
	}

	if len(m.Updates) != 2 {
		t.Fatalf("expected 2 updates across both rounds, got %d", len(m.Updates))
	}
	if aws.ToString(m.Updates[0].IfMatch) != "v1" {
		t.Errorf("expected first update conditioned on v1, got %s", aws.ToString(m.Updates[0].IfMatch))
	}
	if m.Config.PriceClass != types.PriceClassPriceClass100 || !aws.ToBool(m.Config.DefaultCacheBehavior.Compress) {
		t.Errorf("unexpected final config: %+v", m.Config)
	}
}
