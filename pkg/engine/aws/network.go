package aws

import (
	"context"
	"fmt"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// EC2API lists security groups.
type EC2API interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

// APIGatewayAPI lists REST APIs and their stages.
type APIGatewayAPI interface {
	GetRestApis(ctx context.Context, params *apigateway.GetRestApisInput, optFns ...func(*apigateway.Options)) (*apigateway.GetRestApisOutput, error)
	GetStages(ctx context.Context, params *apigateway.GetStagesInput, optFns ...func(*apigateway.Options)) (*apigateway.GetStagesOutput, error)
}

// NetworkCollector describes security groups and API stages of the environment.
type NetworkCollector struct {
	EC2        EC2API
	APIGateway APIGatewayAPI
}

func NewNetworkCollector(cfg aws.Config) *NetworkCollector {
	return &NetworkCollector{
		EC2:        ec2.NewFromConfig(cfg),
		APIGateway: apigateway.NewFromConfig(cfg),
	}
}

func (c *NetworkCollector) Category() model.Category { return model.CategoryNetwork }

func (c *NetworkCollector) Collect(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	var records []model.ResourceRecord

	groups := ec2.NewDescribeSecurityGroupsPaginator(c.EC2, &ec2.DescribeSecurityGroupsInput{})
	for groups.HasMorePages() {
		page, err := groups.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}
		for _, sg := range page.SecurityGroups {
			name := aws.ToString(sg.GroupName)
			if !inEnvironment(name, env) {
				continue
			}
			records = append(records, newRecord(model.CategoryNetwork, model.KindSecurityGroup, name, true, map[string]any{
				model.AttrOpenIngress: openIngress(sg.IpPermissions),
			}))
		}
	}

	apis := apigateway.NewGetRestApisPaginator(c.APIGateway, &apigateway.GetRestApisInput{})
	for apis.HasMorePages() {
		page, err := apis.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list rest apis: %w", err)
		}
		for _, api := range page.Items {
			apiName := aws.ToString(api.Name)
			if !inEnvironment(apiName, env) {
				continue
			}
			stages, err := c.APIGateway.GetStages(ctx, &apigateway.GetStagesInput{RestApiId: api.Id})
			if err != nil {
				return nil, fmt.Errorf("get stages of %s: %w", apiName, err)
			}
			for _, st := range stages.Item {
				records = append(records, newRecord(model.CategoryNetwork, model.KindAPIStage, apiName+"/"+aws.ToString(st.StageName), true, map[string]any{
					model.AttrAccessLogs: st.AccessLogSettings != nil && aws.ToString(st.AccessLogSettings.DestinationArn) != "",
					model.AttrTracing:    st.TracingEnabled,
					model.AttrThrottling: len(st.MethodSettings) > 0,
				}))
			}
		}
	}
	return records, nil
}

// openIngress lists the permissions reachable from 0.0.0.0/0 as "protocol:from-to".
func openIngress(perms []ec2types.IpPermission) []string {
	var open []string
	for _, p := range perms {
		for _, r := range p.IpRanges {
			if aws.ToString(r.CidrIp) != "0.0.0.0/0" {
				continue
			}
			proto := aws.ToString(p.IpProtocol)
			if proto == "-1" {
				open = append(open, "all")
				continue
			}
			open = append(open, fmt.Sprintf("%s:%d-%d", proto, aws.ToInt32(p.FromPort), aws.ToInt32(p.ToPort)))
		}
	}
	return open
}
