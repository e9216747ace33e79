package aws

import (
	"context"
	"fmt"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
)

// CloudTrailAPI describes trails and their status.
type CloudTrailAPI interface {
	DescribeTrails(ctx context.Context, params *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error)
	GetTrailStatus(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error)
}

// AuditCollector describes the account trails. Trails are account-wide, so
// none of them is tagged with the environment.
type AuditCollector struct {
	Client CloudTrailAPI
}

func NewAuditCollector(cfg aws.Config) *AuditCollector {
	return &AuditCollector{Client: cloudtrail.NewFromConfig(cfg)}
}

func (c *AuditCollector) Category() model.Category { return model.CategoryAudit }

func (c *AuditCollector) Collect(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	out, err := c.Client.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe trails: %w", err)
	}

	records := make([]model.ResourceRecord, 0, len(out.TrailList))
	for _, t := range out.TrailList {
		name := aws.ToString(t.Name)
		status, err := c.Client.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: t.TrailARN})
		if err != nil {
			return nil, fmt.Errorf("get status of trail %s: %w", name, err)
		}
		records = append(records, newRecord(model.CategoryAudit, model.KindTrail, name, false, map[string]any{
			model.AttrIsLogging:         aws.ToBool(status.IsLogging),
			model.AttrLogFileValidation: aws.ToBool(t.LogFileValidationEnabled),
			model.AttrKMSEncrypted:      aws.ToString(t.KmsKeyId) != "",
			model.AttrRegion:            aws.ToString(t.HomeRegion),
		}))
	}
	return records, nil
}
