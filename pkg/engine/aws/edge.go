package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

// CloudFrontReadAPI lists distributions.
type CloudFrontReadAPI interface {
	ListDistributions(ctx context.Context, params *cloudfront.ListDistributionsInput, optFns ...func(*cloudfront.Options)) (*cloudfront.ListDistributionsOutput, error)
}

// EdgeCollector describes the environment's distributions. A distribution
// belongs to an environment when its comment or an alias names it.
type EdgeCollector struct {
	Client CloudFrontReadAPI
}

func NewEdgeCollector(cfg aws.Config) *EdgeCollector {
	return &EdgeCollector{Client: cloudfront.NewFromConfig(cfg)}
}

func (c *EdgeCollector) Category() model.Category { return model.CategoryEdge }

func (c *EdgeCollector) Collect(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	var records []model.ResourceRecord

	var marker *string
	for {
		out, err := c.Client.ListDistributions(ctx, &cloudfront.ListDistributionsInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("failed to list distributions: %w", err)
		}
		list := out.DistributionList
		if list == nil {
			break
		}
		for _, d := range list.Items {
			comment := aws.ToString(d.Comment)
			var aliases []string
			if d.Aliases != nil {
				aliases = d.Aliases.Items
			}
			if !inEnvironment(comment+" "+strings.Join(aliases, " "), env) {
				continue
			}
			compress := false
			if d.DefaultCacheBehavior != nil {
				compress = aws.ToBool(d.DefaultCacheBehavior.Compress)
			}
			records = append(records, newRecord(model.CategoryEdge, model.KindDistribution, aws.ToString(d.Id), true, map[string]any{
				model.AttrPriceClass:  string(d.PriceClass),
				model.AttrCompression: compress,
				model.AttrComment:     comment,
			}))
		}
		if !aws.ToBool(list.IsTruncated) || list.NextMarker == nil {
			break
		}
		marker = list.NextMarker
	}
	return records, nil
}

// CloudFrontWriteAPI reads and updates a distribution config.
type CloudFrontWriteAPI interface {
	GetDistributionConfig(ctx context.Context, params *cloudfront.GetDistributionConfigInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionConfigOutput, error)
	UpdateDistribution(ctx context.Context, params *cloudfront.UpdateDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateDistributionOutput, error)
}

// EdgeApplier updates distribution settings. Updates are conditional on the
// ETag read in the same call, so a concurrent edit fails instead of being overwritten.
type EdgeApplier struct {
	Client CloudFrontWriteAPI
}

func NewEdgeApplier(cfg aws.Config) *EdgeApplier {
	return &EdgeApplier{Client: cloudfront.NewFromConfig(cfg)}
}

func (a *EdgeApplier) Supports(op model.Operation) bool {
	return op == model.OpEnsureCompression || op == model.OpEnsurePriceClass100
}

func (a *EdgeApplier) Apply(ctx context.Context, e model.ActionPlanEntry) error {
	id := e.Target.Name
	out, err := a.Client.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{Id: aws.String(id)})
	if err != nil {
		return fmt.Errorf("get distribution config %s: %w", id, err)
	}
	cfg := out.DistributionConfig
	if cfg == nil {
		return fmt.Errorf("distribution %s has no config", id)
	}

	switch e.Operation {
	case model.OpEnsureCompression:
		if cfg.DefaultCacheBehavior == nil {
			return fmt.Errorf("distribution %s has no default cache behavior", id)
		}
		if aws.ToBool(cfg.DefaultCacheBehavior.Compress) {
			return nil
		}
		cfg.DefaultCacheBehavior.Compress = aws.Bool(true)
	case model.OpEnsurePriceClass100:
		if cfg.PriceClass == types.PriceClassPriceClass100 {
			return nil
		}
		cfg.PriceClass = types.PriceClassPriceClass100
	default:
		return fmt.Errorf("unsupported operation %s", e.Operation)
	}

	_, err = a.Client.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 aws.String(id),
		IfMatch:            out.ETag,
		DistributionConfig: cfg,
	})
	return err
}
