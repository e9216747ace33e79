package aws

import (
	"context"
	"testing"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakeTable struct {
	billing types.BillingMode
	sse     *types.SSEDescription
	pitr    bool
	ttl     bool
}

type mockDynamoDB struct {
	Tables  map[string]*fakeTable
	Order   []string
	Updates []string
}

func (m *mockDynamoDB) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return &dynamodb.ListTablesOutput{TableNames: m.Order}, nil
}

func (m *mockDynamoDB) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	t := m.Tables[aws.ToString(params.TableName)]
	desc := &types.TableDescription{TableName: params.TableName, SSEDescription: t.sse}
	if t.billing != "" {
		desc.BillingModeSummary = &types.BillingModeSummary{BillingMode: t.billing}
	}
	return &dynamodb.DescribeTableOutput{Table: desc}, nil
}

func (m *mockDynamoDB) DescribeContinuousBackups(ctx context.Context, params *dynamodb.DescribeContinuousBackupsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeContinuousBackupsOutput, error) {
	status := types.PointInTimeRecoveryStatusDisabled
	if m.Tables[aws.ToString(params.TableName)].pitr {
		status = types.PointInTimeRecoveryStatusEnabled
	}
	return &dynamodb.DescribeContinuousBackupsOutput{
		ContinuousBackupsDescription: &types.ContinuousBackupsDescription{
			PointInTimeRecoveryDescription: &types.PointInTimeRecoveryDescription{PointInTimeRecoveryStatus: status},
		},
	}, nil
}

func (m *mockDynamoDB) DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	status := types.TimeToLiveStatusDisabled
	if m.Tables[aws.ToString(params.TableName)].ttl {
		status = types.TimeToLiveStatusEnabled
	}
	return &dynamodb.DescribeTimeToLiveOutput{TimeToLiveDescription: &types.TimeToLiveDescription{TimeToLiveStatus: status}}, nil
}

func (m *mockDynamoDB) UpdateContinuousBackups(ctx context.Context, params *dynamodb.UpdateContinuousBackupsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateContinuousBackupsOutput, error) {
	m.Updates = append(m.Updates, "pitr")
	m.Tables[aws.ToString(params.TableName)].pitr = true
	return &dynamodb.UpdateContinuousBackupsOutput{}, nil
}

func (m *mockDynamoDB) UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	m.Updates = append(m.Updates, "ttl:"+aws.ToString(params.TimeToLiveSpecification.AttributeName))
	m.Tables[aws.ToString(params.TableName)].ttl = true
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

func (m *mockDynamoDB) UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error) {
	m.Updates = append(m.Updates, "billing:"+string(params.BillingMode))
	m.Tables[aws.ToString(params.TableName)].billing = params.BillingMode
	return &dynamodb.UpdateTableOutput{}, nil
}

func TestTableCollector_Collect(t *testing.T) {
	m := &mockDynamoDB{
		Order: []string{"medeez-dev-users", "medeez-prod-users", "medeez-dev-legacy"},
		Tables: map[string]*fakeTable{
			"medeez-dev-users": {
				billing: types.BillingModePayPerRequest,
				sse:     &types.SSEDescription{Status: types.SSEStatusEnabled, SSEType: types.SSETypeKms},
				pitr:    true,
				ttl:     true,
			},
			"medeez-prod-users": {},
			"medeez-dev-legacy": {},
		},
	}

	records, err := (&TableCollector{Client: m}).Collect(context.Background(), "dev")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 dev tables, got %d", len(records))
	}

	users, legacy := records[0], records[1]
	if users.String(model.AttrBillingMode) != "PAY_PER_REQUEST" || !users.Bool(model.AttrSSEEnabled) || users.String(model.AttrSSEType) != "KMS" {
		t.Errorf("users: unexpected attributes %v", users.Attributes)
	}
	if legacy.String(model.AttrBillingMode) != "PROVISIONED" {
		t.Errorf("legacy: tables without a billing summary are provisioned, got %s", legacy.String(model.AttrBillingMode))
	}
	if legacy.Bool(model.AttrPITREnabled) || legacy.Bool(model.AttrTTLEnabled) {
		t.Errorf("legacy: expected PITR and TTL off, got %v", legacy.Attributes)
	}
}

func TestTableApplier_Idempotent(t *testing.T) {
	m := &mockDynamoDB{Tables: map[string]*fakeTable{"medeez-dev-users": {}}}
	a := &TableApplier{Client: m}
	target := model.ResourceRef{Category: model.CategoryTable, Name: "medeez-dev-users"}

	plan := []model.ActionPlanEntry{
		{Target: target, Operation: model.OpEnsurePointInTimeRecovery},
		{Target: target, Operation: model.OpEnsureTTL, Parameters: map[string]string{"attribute": "expires_at"}},
		{Target: target, Operation: model.OpEnsureOnDemandBilling},
	}

	// Replaying the plan must not issue a second round of updates.
	for round := 0; round < 2; round++ {
		for _, e := range plan {
			if err := a.Apply(context.Background(), e); err != nil {
				t.Fatalf("round %d %s failed: %v", round, e.Operation, err)
			}
		}
	}

	want := []string{"pitr", "ttl:expires_at", "billing:PAY_PER_REQUEST"}
	if len(m.Updates) != len(want) {
		t.Fatalf("expected %v, got %v", want, m.Updates)
	}
	for i := range want {
		if m.Updates[i] != want[i] {
			t.Errorf("update %d: expected %s, got %s", i, want[i], m.Updates[i])
		}
	}
}
