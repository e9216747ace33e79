package checks

import (
	"strings"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
)

// Check names used as report keys.
const (
	NameEncryptionAtRest = "encryption_at_rest"
	NameAccessControls   = "access_controls"
	NameAuditLogging     = "audit_logging"
	NameNetworkSecurity  = "network_security"
	NameHIPAA            = "hipaa_compliance"
	NameCustomPolicies   = "custom_policies"
)

// MinPasswordLength is the shortest acceptable user-pool password policy.
const MinPasswordLength = 12

// ComplianceChecks returns the built-in checks in report order.
func ComplianceChecks(appName string) []Check {
	return []Check{
		EncryptionAtRest{},
		AccessControls{},
		AuditLogging{},
		NetworkSecurity{AppName: appName},
		HIPAA{},
	}
}

// EncryptionAtRest verifies that data stores and keys protect data at rest.
type EncryptionAtRest struct{}

func (EncryptionAtRest) Name() string { return NameEncryptionAtRest }

func (EncryptionAtRest) Requires() []model.Category {
	return []model.Category{model.CategoryStorage, model.CategoryTable, model.CategoryIdentity}
}

func (EncryptionAtRest) Evaluate(env string, in Inputs) model.CheckResult {
	var findings []model.Finding
	var recs recommender

	for _, b := range in.Of(model.CategoryStorage, model.KindBucket) {
		switch {
		case !b.Bool(model.AttrEncrypted):
			findings = append(findings, finding("s3", model.SeverityFail, b, "bucket %s has no default encryption", b.Name))
			recs.add(model.HorizonImmediate, "Enable default encryption (SSE-KMS) on every bucket")
		case !isStrongAlgorithm(b.String(model.AttrEncryptionAlgorithm)):
			findings = append(findings, finding("s3", model.SeverityWarning, b, "bucket %s uses unsupported encryption algorithm %q", b.Name, b.String(model.AttrEncryptionAlgorithm)))
		}
		if !b.Bool(model.AttrSSLEnforced) {
			findings = append(findings, finding("s3", model.SeverityWarning, b, "bucket %s does not enforce SSL-only access", b.Name))
			recs.add(model.HorizonImmediate, "Add a bucket policy denying requests without aws:SecureTransport")
		}
	}

	for _, t := range in.Of(model.CategoryTable, model.KindTable) {
		if !t.Bool(model.AttrSSEEnabled) || t.String(model.AttrSSEType) != "KMS" {
			findings = append(findings, finding("dynamodb", model.SeverityWarning, t, "table %s is not encrypted with a KMS key", t.Name))
			recs.add(model.HorizonShortTerm, "Encrypt tables with customer managed KMS keys")
		}
		if !t.Bool(model.AttrPITREnabled) {
			findings = append(findings, finding("dynamodb", model.SeverityWarning, t, "table %s has point-in-time recovery disabled", t.Name))
			recs.add(model.HorizonImmediate, "Enable point-in-time recovery on every table")
		}
	}

	for _, k := range in.Of(model.CategoryIdentity, model.KindKMSKey) {
		if !k.Bool(model.AttrRotationEnabled) {
			findings = append(findings, finding("kms", model.SeverityWarning, k, "key %s has automatic rotation disabled", k.Name))
			recs.add(model.HorizonImmediate, "Enable automatic rotation on customer managed keys")
		}
		if k.Bool(model.AttrWildcardPrincipal) {
			findings = append(findings, finding("kms", model.SeverityFail, k, "key %s policy grants access to principal *", k.Name))
			recs.add(model.HorizonImmediate, "Restrict key policies to named principals")
		}
	}

	recs.add(model.HorizonLongTerm, "Review encryption coverage for new data stores during design review")
	return model.CheckResult{Status: model.StatusFor(findings), Findings: findings, Recommendations: recs.out}
}

func isStrongAlgorithm(alg string) bool {
	switch alg {
	case "AES256", "aws:kms", "aws:kms:dsse":
		return true
	}
	return false
}

// AccessControls verifies least-privilege identity and API configuration.
type AccessControls struct{}

func (AccessControls) Name() string { return NameAccessControls }

func (AccessControls) Requires() []model.Category {
	return []model.Category{model.CategoryIdentity, model.CategoryNetwork}
}

func (AccessControls) Evaluate(env string, in Inputs) model.CheckResult {
	var findings []model.Finding
	var recs recommender

	for _, r := range in.Of(model.CategoryIdentity, model.KindRole) {
		for _, p := range r.Strings(model.AttrAdminPolicies) {
			findings = append(findings, finding("iam", model.SeverityFail, r, "role %s has administrative policy %s attached", r.Name, p))
			recs.add(model.HorizonImmediate, "Replace administrative policies with scoped policies")
		}
		for _, p := range r.Strings(model.AttrWildcardInlinePolicies) {
			findings = append(findings, finding("iam", model.SeverityFail, r, "role %s inline policy %s allows wildcard actions on all resources", r.Name, p))
			recs.add(model.HorizonImmediate, "Scope inline policies to explicit actions and resources")
		}
	}

	for _, p := range in.Of(model.CategoryIdentity, model.KindUserPool) {
		if n := p.Int(model.AttrMinPasswordLength); n < MinPasswordLength {
			findings = append(findings, finding("cognito", model.SeverityWarning, p, "user pool %s requires only %d character passwords", p.Name, n))
			recs.add(model.HorizonImmediate, "Require passwords of at least 12 characters")
		}
		if env == "prod" && p.String(model.AttrMFA) != "ON" {
			findings = append(findings, finding("cognito", model.SeverityFail, p, "user pool %s does not enforce MFA in production", p.Name))
			recs.add(model.HorizonImmediate, "Enforce MFA for production user pools")
		}
		if !p.Bool(model.AttrRecoveryConfigured) {
			findings = append(findings, finding("cognito", model.SeverityWarning, p, "user pool %s has no account recovery mechanism", p.Name))
		}
	}

	for _, s := range in.Of(model.CategoryNetwork, model.KindAPIStage) {
		if !s.Bool(model.AttrAccessLogs) {
			findings = append(findings, finding("apigateway", model.SeverityWarning, s, "stage %s has access logging disabled", s.Name))
			recs.add(model.HorizonImmediate, "Enable access logging on every API stage")
		}
		if !s.Bool(model.AttrTracing) {
			findings = append(findings, finding("apigateway", model.SeverityInfo, s, "stage %s has tracing disabled", s.Name))
		}
		if !s.Bool(model.AttrThrottling) {
			findings = append(findings, finding("apigateway", model.SeverityWarning, s, "stage %s has no throttling limits", s.Name))
			recs.add(model.HorizonShortTerm, "Configure throttling limits on API stages")
		}
	}

	recs.add(model.HorizonLongTerm, "Run quarterly access reviews")
	return model.CheckResult{Status: model.StatusFor(findings), Findings: findings, Recommendations: recs.out}
}

// AuditLogging verifies that API activity and function output are retained.
type AuditLogging struct{}

func (AuditLogging) Name() string { return NameAuditLogging }

func (AuditLogging) Requires() []model.Category {
	return []model.Category{model.CategoryAudit, model.CategoryCompute}
}

func (AuditLogging) Evaluate(env string, in Inputs) model.CheckResult {
	var findings []model.Finding
	var recs recommender

	trails := in.Of(model.CategoryAudit, model.KindTrail)
	if len(trails) == 0 {
		findings = append(findings, model.Finding{
			Subsystem: "cloudtrail",
			Severity:  model.SeverityFail,
			Message:   "no CloudTrail trails configured",
		})
		recs.add(model.HorizonImmediate, "Create a multi-region trail with log file validation")
	}
	for _, t := range trails {
		if !t.Bool(model.AttrIsLogging) {
			findings = append(findings, finding("cloudtrail", model.SeverityFail, t, "trail %s is not logging", t.Name))
			recs.add(model.HorizonImmediate, "Start logging on every trail")
		}
		if !t.Bool(model.AttrLogFileValidation) {
			findings = append(findings, finding("cloudtrail", model.SeverityWarning, t, "trail %s has log file validation disabled", t.Name))
			recs.add(model.HorizonImmediate, "Enable log file validation on every trail")
		}
		if !t.Bool(model.AttrKMSEncrypted) {
			findings = append(findings, finding("cloudtrail", model.SeverityWarning, t, "trail %s logs are not encrypted with KMS", t.Name))
		}
	}

	for _, f := range in.Of(model.CategoryCompute, model.KindFunction) {
		if !f.Bool(model.AttrLogGroup) {
			findings = append(findings, finding("lambda", model.SeverityWarning, f, "function %s has no log group", f.Name))
			recs.add(model.HorizonShortTerm, "Ensure every function writes to a log group with retention")
		}
	}

	recs.add(model.HorizonLongTerm, "Retain audit logs for at least six years")
	return model.CheckResult{Status: model.StatusFor(findings), Findings: findings, Recommendations: recs.out}
}

// NetworkSecurity flags environment security groups open to the internet.
type NetworkSecurity struct {
	AppName string
}

func (NetworkSecurity) Name() string { return NameNetworkSecurity }

func (NetworkSecurity) Requires() []model.Category {
	return []model.Category{model.CategoryNetwork}
}

func (n NetworkSecurity) Evaluate(env string, in Inputs) model.CheckResult {
	var findings []model.Finding
	var recs recommender

	prefix := n.AppName + "-" + env
	for _, sg := range in.Of(model.CategoryNetwork, model.KindSecurityGroup) {
		if n.AppName != "" && !strings.Contains(sg.Name, prefix) {
			continue
		}
		if open := sg.Strings(model.AttrOpenIngress); len(open) > 0 {
			findings = append(findings, finding("ec2", model.SeverityFail, sg, "security group %s allows 0.0.0.0/0 ingress on %s", sg.Name, strings.Join(open, ", ")))
			recs.add(model.HorizonImmediate, "Restrict security group ingress to known CIDR ranges")
		}
	}

	recs.add(model.HorizonShortTerm, "Place data stores in private subnets behind VPC endpoints")
	return model.CheckResult{Status: model.StatusFor(findings), Findings: findings, Recommendations: recs.out}
}

// HIPAA contributes the administrative safeguards that cannot be verified from configuration.
type HIPAA struct{}

func (HIPAA) Name() string { return NameHIPAA }

func (HIPAA) Requires() []model.Category { return nil }

func (HIPAA) Evaluate(env string, in Inputs) model.CheckResult {
	var recs recommender
	for _, text := range hipaaSafeguards {
		recs.add(model.HorizonLongTerm, text)
	}
	return model.CheckResult{Status: model.StatusPass, Findings: []model.Finding{}, Recommendations: recs.out}
}

var hipaaSafeguards = []string{
	"Keep a signed Business Associate Agreement for every service that stores PHI",
	"Document the risk assessment and review it annually",
	"Train staff on PHI handling and record completion",
	"Maintain an incident response plan covering breach notification",
	"Review access to PHI at least quarterly",
}

// PriorityActions returns five ordered actions, leading with checks that failed.
func PriorityActions(results map[string]model.CheckResult) []string {
	order := []struct {
		check  string
		action string
	}{
		{NameEncryptionAtRest, "Enable encryption at rest for all data stores"},
		{NameAccessControls, "Enforce least-privilege access and MFA"},
		{NameAuditLogging, "Enable comprehensive audit logging"},
		{NameNetworkSecurity, "Restrict public network access"},
		{NameHIPAA, "Complete HIPAA administrative safeguards documentation"},
	}

	var first, rest []string
	for _, o := range order {
		if r, ok := results[o.check]; ok && (r.Status == model.StatusFail || r.Status == model.StatusError) {
			first = append(first, o.action)
		} else {
			rest = append(rest, o.action)
		}
	}
	return append(first, rest...)
}
