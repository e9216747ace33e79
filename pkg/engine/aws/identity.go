package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// IAMAPI is the read-only IAM surface.
type IAMAPI interface {
	ListRoles(ctx context.Context, params *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
}

// KMSAPI is the read-only KMS surface.
type KMSAPI interface {
	ListKeys(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error)
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	GetKeyRotationStatus(ctx context.Context, params *kms.GetKeyRotationStatusInput, optFns ...func(*kms.Options)) (*kms.GetKeyRotationStatusOutput, error)
	GetKeyPolicy(ctx context.Context, params *kms.GetKeyPolicyInput, optFns ...func(*kms.Options)) (*kms.GetKeyPolicyOutput, error)
}

// CognitoAPI is the read-only user pool surface.
type CognitoAPI interface {
	ListUserPools(ctx context.Context, params *cip.ListUserPoolsInput, optFns ...func(*cip.Options)) (*cip.ListUserPoolsOutput, error)
	DescribeUserPool(ctx context.Context, params *cip.DescribeUserPoolInput, optFns ...func(*cip.Options)) (*cip.DescribeUserPoolOutput, error)
}

// IdentityCollector describes roles, customer keys and user pools of the environment.
type IdentityCollector struct {
	IAM     IAMAPI
	KMS     KMSAPI
	Cognito CognitoAPI
}

func NewIdentityCollector(cfg aws.Config) *IdentityCollector {
	return &IdentityCollector{
		IAM:     iam.NewFromConfig(cfg),
		KMS:     kms.NewFromConfig(cfg),
		Cognito: cip.NewFromConfig(cfg),
	}
}

func (c *IdentityCollector) Category() model.Category { return model.CategoryIdentity }

func (c *IdentityCollector) Collect(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	roles, err := c.roles(ctx, env)
	if err != nil {
		return nil, err
	}
	keys, err := c.keys(ctx, env)
	if err != nil {
		return nil, err
	}
	pools, err := c.userPools(ctx, env)
	if err != nil {
		return nil, err
	}

	records := make([]model.ResourceRecord, 0, len(roles)+len(keys)+len(pools))
	records = append(records, roles...)
	records = append(records, keys...)
	return append(records, pools...), nil
}

func (c *IdentityCollector) roles(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	var records []model.ResourceRecord

	paginator := iam.NewListRolesPaginator(c.IAM, &iam.ListRolesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list roles: %w", err)
		}
		for _, r := range page.Roles {
			name := aws.ToString(r.RoleName)
			if !inEnvironment(name, env) {
				continue
			}

			var admin []string
			attached := iam.NewListAttachedRolePoliciesPaginator(c.IAM, &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(name)})
			for attached.HasMorePages() {
				p, err := attached.NextPage(ctx)
				if err != nil {
					return nil, fmt.Errorf("list attached policies of %s: %w", name, err)
				}
				for _, pol := range p.AttachedPolicies {
					pn := aws.ToString(pol.PolicyName)
					if strings.Contains(pn, "Admin") || strings.HasSuffix(aws.ToString(pol.PolicyArn), "AdministratorAccess") {
						admin = append(admin, pn)
					}
				}
			}

			var wildcard []string
			inline := iam.NewListRolePoliciesPaginator(c.IAM, &iam.ListRolePoliciesInput{RoleName: aws.String(name)})
			for inline.HasMorePages() {
				p, err := inline.NextPage(ctx)
				if err != nil {
					return nil, fmt.Errorf("list inline policies of %s: %w", name, err)
				}
				for _, pn := range p.PolicyNames {
					doc, err := c.IAM.GetRolePolicy(ctx, &iam.GetRolePolicyInput{RoleName: aws.String(name), PolicyName: aws.String(pn)})
					if err != nil {
						return nil, fmt.Errorf("get policy %s of %s: %w", pn, name, err)
					}
					parsed, err := parsePolicy(aws.ToString(doc.PolicyDocument))
					if err == nil && parsed.grantsWildcard() {
						wildcard = append(wildcard, pn)
					}
				}
			}

			records = append(records, newRecord(model.CategoryIdentity, model.KindRole, name, true, map[string]any{
				model.AttrAdminPolicies:          admin,
				model.AttrWildcardInlinePolicies: wildcard,
			}))
		}
	}
	return records, nil
}

// keys returns customer keys whose description names the environment.
func (c *IdentityCollector) keys(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	var records []model.ResourceRecord

	paginator := kms.NewListKeysPaginator(c.KMS, &kms.ListKeysInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list keys: %w", err)
		}
		for _, k := range page.Keys {
			id := aws.ToString(k.KeyId)
			desc, err := c.KMS.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(id)})
			if err != nil {
				return nil, fmt.Errorf("describe key %s: %w", id, err)
			}
			meta := desc.KeyMetadata
			if meta == nil || meta.Origin != kmstypes.OriginTypeAwsKms || meta.KeyManager != kmstypes.KeyManagerTypeCustomer {
				continue
			}
			if !inEnvironment(aws.ToString(meta.Description), env) {
				continue
			}

			rot, err := c.KMS.GetKeyRotationStatus(ctx, &kms.GetKeyRotationStatusInput{KeyId: aws.String(id)})
			if err != nil {
				return nil, fmt.Errorf("get rotation status of %s: %w", id, err)
			}

			wildcard := false
			pol, err := c.KMS.GetKeyPolicy(ctx, &kms.GetKeyPolicyInput{KeyId: aws.String(id), PolicyName: aws.String("default")})
			if err != nil {
				return nil, fmt.Errorf("get key policy of %s: %w", id, err)
			}
			if doc, err := parsePolicy(aws.ToString(pol.Policy)); err == nil {
				wildcard = doc.allowsWildcardPrincipal()
			}

			records = append(records, newRecord(model.CategoryIdentity, model.KindKMSKey, id, true, map[string]any{
				model.AttrRotationEnabled:   rot.KeyRotationEnabled,
				model.AttrWildcardPrincipal: wildcard,
			}))
		}
	}
	return records, nil
}

func (c *IdentityCollector) userPools(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	var records []model.ResourceRecord

	paginator := cip.NewListUserPoolsPaginator(c.Cognito, &cip.ListUserPoolsInput{MaxResults: aws.Int32(60)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list user pools: %w", err)
		}
		for _, p := range page.UserPools {
			if !inEnvironment(aws.ToString(p.Name), env) {
				continue
			}
			id := aws.ToString(p.Id)
			out, err := c.Cognito.DescribeUserPool(ctx, &cip.DescribeUserPoolInput{UserPoolId: aws.String(id)})
			if err != nil {
				return nil, fmt.Errorf("describe user pool %s: %w", id, err)
			}
			pool := out.UserPool
			if pool == nil {
				continue
			}

			minLength := 0
			if pool.Policies != nil && pool.Policies.PasswordPolicy != nil {
				minLength = int(aws.ToInt32(pool.Policies.PasswordPolicy.MinimumLength))
			}
			recovery := pool.AccountRecoverySetting != nil && len(pool.AccountRecoverySetting.RecoveryMechanisms) > 0

			records = append(records, newRecord(model.CategoryIdentity, model.KindUserPool, id, true, map[string]any{
				model.AttrMinPasswordLength:  minLength,
				model.AttrMFA:                string(pool.MfaConfiguration),
				model.AttrRecoveryConfigured: recovery,
			}))
		}
	}
	return records, nil
}
