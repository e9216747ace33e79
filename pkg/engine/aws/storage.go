package aws

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3ReadAPI is the read-only S3 surface used by StorageCollector.
type S3ReadAPI interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetBucketPolicy(ctx context.Context, params *s3.GetBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyOutput, error)
	ListBucketIntelligentTieringConfigurations(ctx context.Context, params *s3.ListBucketIntelligentTieringConfigurationsInput, optFns ...func(*s3.Options)) (*s3.ListBucketIntelligentTieringConfigurationsOutput, error)
	GetBucketLifecycleConfiguration(ctx context.Context, params *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error)
	ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
}

// StorageCollector describes the environment's buckets.
type StorageCollector struct {
	Client          S3ReadAPI
	LifecycleRuleID string
	StaleAfter      time.Duration
	Now             func() time.Time
}

func NewStorageCollector(cfg aws.Config, ruleID string, staleAfter time.Duration) *StorageCollector {
	return &StorageCollector{
		Client:          s3.NewFromConfig(cfg),
		LifecycleRuleID: ruleID,
		StaleAfter:      staleAfter,
		Now:             time.Now,
	}
}

func (c *StorageCollector) Category() model.Category { return model.CategoryStorage }

func (c *StorageCollector) Collect(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	var records []model.ResourceRecord

	paginator := s3.NewListBucketsPaginator(c.Client, &s3.ListBucketsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list buckets: %w", err)
		}
		for _, b := range page.Buckets {
			name := aws.ToString(b.Name)
			if !inEnvironment(name, env) {
				continue
			}
			rec, err := c.describe(ctx, name)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (c *StorageCollector) describe(ctx context.Context, name string) (model.ResourceRecord, error) {
	attrs := map[string]any{}

	// Buckets outside the session region need a regional endpoint for most calls.
	region := c.bucketRegion(ctx, name)
	attrs[model.AttrRegion] = region
	regional := inRegion(region)

	enc, err := c.Client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(name)}, regional)
	switch {
	case err == nil && enc.ServerSideEncryptionConfiguration != nil && len(enc.ServerSideEncryptionConfiguration.Rules) > 0:
		attrs[model.AttrEncrypted] = true
		if def := enc.ServerSideEncryptionConfiguration.Rules[0].ApplyServerSideEncryptionByDefault; def != nil {
			attrs[model.AttrEncryptionAlgorithm] = string(def.SSEAlgorithm)
		}
	case err == nil || isErrorCode(err, "ServerSideEncryptionConfigurationNotFoundError"):
		attrs[model.AttrEncrypted] = false
	default:
		return model.ResourceRecord{}, fmt.Errorf("get encryption of %s: %w", name, err)
	}

	attrs[model.AttrSSLEnforced] = false
	if pol, err := c.Client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(name)}, regional); err == nil {
		if doc, err := parsePolicy(aws.ToString(pol.Policy)); err == nil {
			attrs[model.AttrSSLEnforced] = doc.enforcesTLS()
		}
	} else if !isErrorCode(err, "NoSuchBucketPolicy") {
		return model.ResourceRecord{}, fmt.Errorf("get policy of %s: %w", name, err)
	}

	tiering, err := c.Client.ListBucketIntelligentTieringConfigurations(ctx, &s3.ListBucketIntelligentTieringConfigurationsInput{Bucket: aws.String(name)}, regional)
	if err != nil {
		return model.ResourceRecord{}, fmt.Errorf("list tiering configurations of %s: %w", name, err)
	}
	attrs[model.AttrIntelligentTiering] = false
	for _, t := range tiering.IntelligentTieringConfigurationList {
		if t.Status == types.IntelligentTieringStatusEnabled {
			attrs[model.AttrIntelligentTiering] = true
			break
		}
	}

	rules, err := lifecycleRules(ctx, c.Client, name, regional)
	if err != nil {
		return model.ResourceRecord{}, err
	}
	attrs[model.AttrLifecycleRule] = false
	for _, r := range rules {
		if aws.ToString(r.ID) == c.LifecycleRuleID && r.Status == types.ExpirationStatusEnabled {
			attrs[model.AttrLifecycleRule] = true
		}
	}

	stale, err := staleUploads(ctx, c.Client, name, c.Now().Add(-c.StaleAfter), regional)
	if err != nil {
		return model.ResourceRecord{}, err
	}
	attrs[model.AttrStaleUploads] = len(stale)

	return newRecord(model.CategoryStorage, model.KindBucket, name, true, attrs), nil
}

func (c *StorageCollector) bucketRegion(ctx context.Context, name string) string {
	loc, err := c.Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil || loc.LocationConstraint == "" {
		return "us-east-1"
	}
	// Legacy constraint.
	if loc.LocationConstraint == "EU" {
		return "eu-west-1"
	}
	return string(loc.LocationConstraint)
}

func inRegion(region string) func(*s3.Options) {
	return func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
	}
}

type lifecycleReader interface {
	GetBucketLifecycleConfiguration(ctx context.Context, params *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error)
}

func lifecycleRules(ctx context.Context, client lifecycleReader, bucket string, optFns ...func(*s3.Options)) ([]types.LifecycleRule, error) {
	out, err := client.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{Bucket: aws.String(bucket)}, optFns...)
	if err != nil {
		if isErrorCode(err, "NoSuchLifecycleConfiguration") {
			return nil, nil
		}
		return nil, fmt.Errorf("get lifecycle of %s: %w", bucket, err)
	}
	return out.Rules, nil
}

func staleUploads(ctx context.Context, client s3.ListMultipartUploadsAPIClient, bucket string, before time.Time, optFns ...func(*s3.Options)) ([]types.MultipartUpload, error) {
	var stale []types.MultipartUpload
	paginator := s3.NewListMultipartUploadsPaginator(client, &s3.ListMultipartUploadsInput{Bucket: aws.String(bucket)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("list multipart uploads of %s: %w", bucket, err)
		}
		for _, u := range page.Uploads {
			if u.Initiated != nil && u.Initiated.Before(before) {
				stale = append(stale, u)
			}
		}
	}
	return stale, nil
}

// S3WriteAPI is the S3 surface used by StorageApplier.
type S3WriteAPI interface {
	PutBucketIntelligentTieringConfiguration(ctx context.Context, params *s3.PutBucketIntelligentTieringConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketIntelligentTieringConfigurationOutput, error)
	GetBucketLifecycleConfiguration(ctx context.Context, params *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
	ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// StorageApplier performs the bucket operations. Every operation is an "ensure":
// the tiering configuration and lifecycle rule are written under fixed IDs.
type StorageApplier struct {
	Client S3WriteAPI
	Now    func() time.Time
}

func NewStorageApplier(cfg aws.Config) *StorageApplier {
	return &StorageApplier{Client: s3.NewFromConfig(cfg), Now: time.Now}
}

func (a *StorageApplier) Supports(op model.Operation) bool {
	switch op {
	case model.OpEnsureIntelligentTiering, model.OpEnsureLifecycleRule, model.OpAbortStaleMultipartUploads:
		return true
	}
	return false
}

func (a *StorageApplier) Apply(ctx context.Context, e model.ActionPlanEntry) error {
	bucket := e.Target.Name
	regional := inRegion(e.Parameters["region"])

	switch e.Operation {
	case model.OpEnsureIntelligentTiering:
		id := param(e, "id", "EntireBucket")
		_, err := a.Client.PutBucketIntelligentTieringConfiguration(ctx, &s3.PutBucketIntelligentTieringConfigurationInput{
			Bucket: aws.String(bucket),
			Id:     aws.String(id),
			IntelligentTieringConfiguration: &types.IntelligentTieringConfiguration{
				Id:     aws.String(id),
				Status: types.IntelligentTieringStatusEnabled,
				Tierings: []types.Tiering{
					{AccessTier: types.IntelligentTieringAccessTierArchiveAccess, Days: aws.Int32(intParam(e, "archive_days", 90))},
					{AccessTier: types.IntelligentTieringAccessTierDeepArchiveAccess, Days: aws.Int32(intParam(e, "deep_archive_days", 180))},
				},
			},
		}, regional)
		return err

	case model.OpEnsureLifecycleRule:
		existing, err := lifecycleRules(ctx, a.Client, bucket, regional)
		if err != nil {
			return err
		}
		rules := mergeLifecycleRule(existing, costLifecycleRule(param(e, "rule_id", "cloudgov-lifecycle")))
		_, err = a.Client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
			Bucket:                 aws.String(bucket),
			LifecycleConfiguration: &types.BucketLifecycleConfiguration{Rules: rules},
		}, regional)
		return err

	case model.OpAbortStaleMultipartUploads:
		age := time.Duration(intParam(e, "older_than_hours", 168)) * time.Hour
		stale, err := staleUploads(ctx, a.Client, bucket, a.Now().Add(-age), regional)
		if err != nil {
			return err
		}
		for _, u := range stale {
			_, err := a.Client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(bucket),
				Key:      u.Key,
				UploadId: u.UploadId,
			}, regional)
			if err != nil && !isErrorCode(err, "NoSuchUpload") {
				return fmt.Errorf("abort upload %s: %w", aws.ToString(u.UploadId), err)
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported operation %s", e.Operation)
}

// costLifecycleRule moves objects to cheaper classes as they age and cleans up abandoned uploads.
func costLifecycleRule(id string) types.LifecycleRule {
	return types.LifecycleRule{
		ID:     aws.String(id),
		Status: types.ExpirationStatusEnabled,
		Filter: &types.LifecycleRuleFilter{Prefix: aws.String("")},
		Transitions: []types.Transition{
			{Days: aws.Int32(30), StorageClass: types.TransitionStorageClassStandardIa},
			{Days: aws.Int32(90), StorageClass: types.TransitionStorageClassGlacier},
			{Days: aws.Int32(365), StorageClass: types.TransitionStorageClassDeepArchive},
		},
		AbortIncompleteMultipartUpload: &types.AbortIncompleteMultipartUpload{DaysAfterInitiation: aws.Int32(7)},
	}
}

// mergeLifecycleRule replaces the rule with the same ID or appends it. Other rules are kept as-is.
func mergeLifecycleRule(existing []types.LifecycleRule, rule types.LifecycleRule) []types.LifecycleRule {
	out := make([]types.LifecycleRule, 0, len(existing)+1)
	replaced := false
	for _, r := range existing {
		if aws.ToString(r.ID) == aws.ToString(rule.ID) {
			if !replaced {
				out = append(out, rule)
				replaced = true
			}
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, rule)
	}
	return out
}

func param(e model.ActionPlanEntry, key, def string) string {
	if v, ok := e.Parameters[key]; ok && v != "" {
		return v
	}
	return def
}

func intParam(e model.ActionPlanEntry, key string, def int32) int32 {
	v, err := strconv.Atoi(e.Parameters[key])
	if err != nil || v <= 0 {
		return def
	}
	return int32(v)
}
