package aws

import (
	"context"
	"fmt"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// LambdaAPI lists functions.
type LambdaAPI interface {
	ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
}

// LogsAPI looks up log groups.
type LogsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

// ComputeCollector describes the environment's functions and whether each has a log group.
type ComputeCollector struct {
	Lambda LambdaAPI
	Logs   LogsAPI
}

func NewComputeCollector(cfg aws.Config) *ComputeCollector {
	return &ComputeCollector{
		Lambda: lambda.NewFromConfig(cfg),
		Logs:   cloudwatchlogs.NewFromConfig(cfg),
	}
}

func (c *ComputeCollector) Category() model.Category { return model.CategoryCompute }

func (c *ComputeCollector) Collect(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	var records []model.ResourceRecord

	paginator := lambda.NewListFunctionsPaginator(c.Lambda, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list functions: %w", err)
		}
		for _, fn := range page.Functions {
			name := aws.ToString(fn.FunctionName)
			if !inEnvironment(name, env) {
				continue
			}

			arch := "x86_64"
			if len(fn.Architectures) > 0 {
				arch = string(fn.Architectures[0])
			}

			logGroup := "/aws/lambda/" + name
			if fn.LoggingConfig != nil && aws.ToString(fn.LoggingConfig.LogGroup) != "" {
				logGroup = aws.ToString(fn.LoggingConfig.LogGroup)
			}
			hasLogs, err := c.logGroupExists(ctx, logGroup)
			if err != nil {
				return nil, err
			}

			records = append(records, newRecord(model.CategoryCompute, model.KindFunction, name, true, map[string]any{
				model.AttrArchitecture:   arch,
				model.AttrMemoryMB:       int(aws.ToInt32(fn.MemorySize)),
				model.AttrTimeoutSeconds: int(aws.ToInt32(fn.Timeout)),
				model.AttrRuntime:        string(fn.Runtime),
				model.AttrLogGroup:       hasLogs,
			}))
		}
	}
	return records, nil
}

func (c *ComputeCollector) logGroupExists(ctx context.Context, name string) (bool, error) {
	out, err := c.Logs.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	if err != nil {
		return false, fmt.Errorf("describe log group %s: %w", name, err)
	}
	for _, g := range out.LogGroups {
		if aws.ToString(g.LogGroupName) == name {
			return true, nil
		}
	}
	return false, nil
}
