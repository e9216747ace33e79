package aws

import (
	"context"
	"fmt"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBReadAPI is the read-only DynamoDB surface.
type DynamoDBReadAPI interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DescribeContinuousBackups(ctx context.Context, params *dynamodb.DescribeContinuousBackupsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeContinuousBackupsOutput, error)
	DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
}

// TableCollector describes the environment's tables.
type TableCollector struct {
	Client DynamoDBReadAPI
}

func NewTableCollector(cfg aws.Config) *TableCollector {
	return &TableCollector{Client: dynamodb.NewFromConfig(cfg)}
}

func (c *TableCollector) Category() model.Category { return model.CategoryTable }

func (c *TableCollector) Collect(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	var records []model.ResourceRecord

	paginator := dynamodb.NewListTablesPaginator(c.Client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		for _, name := range page.TableNames {
			if !inEnvironment(name, env) {
				continue
			}
			state, err := describeTable(ctx, c.Client, name)
			if err != nil {
				return nil, err
			}
			records = append(records, newRecord(model.CategoryTable, model.KindTable, name, true, map[string]any{
				model.AttrBillingMode: state.billingMode,
				model.AttrSSEEnabled:  state.sseEnabled,
				model.AttrSSEType:     state.sseType,
				model.AttrPITREnabled: state.pitr,
				model.AttrTTLEnabled:  state.ttl,
			}))
		}
	}
	return records, nil
}

type tableState struct {
	billingMode string
	sseEnabled  bool
	sseType     string
	pitr        bool
	ttl         bool
}

func describeTable(ctx context.Context, client DynamoDBReadAPI, name string) (tableState, error) {
	var st tableState

	desc, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return st, fmt.Errorf("describe table %s: %w", name, err)
	}
	t := desc.Table

	// Tables created before on-demand existed have no billing summary.
	st.billingMode = string(types.BillingModeProvisioned)
	if t.BillingModeSummary != nil && t.BillingModeSummary.BillingMode != "" {
		st.billingMode = string(t.BillingModeSummary.BillingMode)
	}
	if t.SSEDescription != nil {
		st.sseEnabled = t.SSEDescription.Status == types.SSEStatusEnabled
		st.sseType = string(t.SSEDescription.SSEType)
	}

	backups, err := client.DescribeContinuousBackups(ctx, &dynamodb.DescribeContinuousBackupsInput{TableName: aws.String(name)})
	if err != nil {
		return st, fmt.Errorf("describe backups of %s: %w", name, err)
	}
	if d := backups.ContinuousBackupsDescription; d != nil && d.PointInTimeRecoveryDescription != nil {
		st.pitr = d.PointInTimeRecoveryDescription.PointInTimeRecoveryStatus == types.PointInTimeRecoveryStatusEnabled
	}

	ttl, err := client.DescribeTimeToLive(ctx, &dynamodb.DescribeTimeToLiveInput{TableName: aws.String(name)})
	if err != nil {
		return st, fmt.Errorf("describe ttl of %s: %w", name, err)
	}
	if d := ttl.TimeToLiveDescription; d != nil {
		st.ttl = d.TimeToLiveStatus == types.TimeToLiveStatusEnabled || d.TimeToLiveStatus == types.TimeToLiveStatusEnabling
	}
	return st, nil
}

// DynamoDBWriteAPI is the DynamoDB surface used by TableApplier.
type DynamoDBWriteAPI interface {
	DynamoDBReadAPI
	UpdateContinuousBackups(ctx context.Context, params *dynamodb.UpdateContinuousBackupsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateContinuousBackupsOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
	UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error)
}

// TableApplier performs the table operations. Each one reads the current
// state first and only writes when the table is not already in the target state.
type TableApplier struct {
	Client DynamoDBWriteAPI
}

func NewTableApplier(cfg aws.Config) *TableApplier {
	return &TableApplier{Client: dynamodb.NewFromConfig(cfg)}
}

func (a *TableApplier) Supports(op model.Operation) bool {
	switch op {
	case model.OpEnsurePointInTimeRecovery, model.OpEnsureTTL, model.OpEnsureOnDemandBilling:
		return true
	}
	return false
}

func (a *TableApplier) Apply(ctx context.Context, e model.ActionPlanEntry) error {
	name := e.Target.Name
	st, err := describeTable(ctx, a.Client, name)
	if err != nil {
		return err
	}

	switch e.Operation {
	case model.OpEnsurePointInTimeRecovery:
		if st.pitr {
			return nil
		}
		_, err = a.Client.UpdateContinuousBackups(ctx, &dynamodb.UpdateContinuousBackupsInput{
			TableName: aws.String(name),
			PointInTimeRecoverySpecification: &types.PointInTimeRecoverySpecification{
				PointInTimeRecoveryEnabled: aws.Bool(true),
			},
		})
		return err

	case model.OpEnsureTTL:
		// DynamoDB rejects enabling TTL twice.
		if st.ttl {
			return nil
		}
		_, err = a.Client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
			TableName: aws.String(name),
			TimeToLiveSpecification: &types.TimeToLiveSpecification{
				AttributeName: aws.String(param(e, "attribute", "ttl")),
				Enabled:       aws.Bool(true),
			},
		})
		return err

	case model.OpEnsureOnDemandBilling:
		if st.billingMode == string(types.BillingModePayPerRequest) {
			return nil
		}
		_, err = a.Client.UpdateTable(ctx, &dynamodb.UpdateTableInput{
			TableName:   aws.String(name),
			BillingMode: types.BillingModePayPerRequest,
		})
		return err
	}
	return fmt.Errorf("unsupported operation %s", e.Operation)
}
