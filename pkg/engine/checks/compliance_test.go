package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/DrSkyle/cloudgov/pkg/engine/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(cat model.Category, kind, name string, attrs map[string]any) model.ResourceRecord {
	a := map[string]any{model.AttrKind: kind}
	for k, v := range attrs {
		a[k] = v
	}
	return model.ResourceRecord{Category: cat, Name: name, EnvironmentTagged: true, Attributes: a}
}

func TestEncryptionAtRest(t *testing.T) {
	in := Inputs{
		model.CategoryStorage: {
			rec(model.CategoryStorage, model.KindBucket, "dev-ok", map[string]any{
				model.AttrEncrypted: true, model.AttrEncryptionAlgorithm: "aws:kms", model.AttrSSLEnforced: true,
			}),
			rec(model.CategoryStorage, model.KindBucket, "dev-plain", nil),
		},
		model.CategoryTable: {
			rec(model.CategoryTable, model.KindTable, "dev-users", map[string]any{
				model.AttrSSEEnabled: true, model.AttrSSEType: "KMS", model.AttrPITREnabled: true,
			}),
		},
		model.CategoryIdentity: {
			rec(model.CategoryIdentity, model.KindKMSKey, "key-1", map[string]any{
				model.AttrRotationEnabled: true, model.AttrWildcardPrincipal: true,
			}),
		},
	}

	res := EncryptionAtRest{}.Evaluate("dev", in)

	require.Len(t, res.Findings, 3)
	assert.Equal(t, model.StatusFail, res.Status)
	assert.Equal(t, "storage/dev-plain", res.Findings[0].ResourceRef)
	assert.Equal(t, model.SeverityFail, res.Findings[0].Severity)
	assert.Equal(t, model.SeverityWarning, res.Findings[1].Severity)
	assert.Equal(t, "kms", res.Findings[2].Subsystem)
	assert.NotEmpty(t, res.Recommendations)
}

func TestAccessControls_MFAOnlyInProd(t *testing.T) {
	pool := rec(model.CategoryIdentity, model.KindUserPool, "prod-users", map[string]any{
		model.AttrMinPasswordLength: 12, model.AttrMFA: "OPTIONAL", model.AttrRecoveryConfigured: true,
	})
	in := Inputs{model.CategoryIdentity: {pool}, model.CategoryNetwork: {}}

	dev := AccessControls{}.Evaluate("dev", in)
	assert.Equal(t, model.StatusPass, dev.Status)
	assert.Empty(t, dev.Findings)

	prod := AccessControls{}.Evaluate("prod", in)
	require.Len(t, prod.Findings, 1)
	assert.Equal(t, model.StatusFail, prod.Status)
	assert.Contains(t, prod.Findings[0].Message, "MFA")
}

func TestAccessControls_Roles(t *testing.T) {
	role := rec(model.CategoryIdentity, model.KindRole, "dev-api", map[string]any{
		model.AttrAdminPolicies:          []string{"AdministratorAccess"},
		model.AttrWildcardInlinePolicies: []string{"everything"},
	})
	stage := rec(model.CategoryNetwork, model.KindAPIStage, "api/dev", map[string]any{
		model.AttrAccessLogs: true, model.AttrThrottling: true,
	})

	res := AccessControls{}.Evaluate("dev", Inputs{
		model.CategoryIdentity: {role},
		model.CategoryNetwork:  {stage},
	})

	require.Len(t, res.Findings, 3)
	assert.Equal(t, model.StatusFail, res.Status)
	assert.Equal(t, model.SeverityInfo, res.Findings[2].Severity, "tracing is informational")
}

func TestAuditLogging_NoTrails(t *testing.T) {
	res := AuditLogging{}.Evaluate("dev", Inputs{model.CategoryAudit: {}, model.CategoryCompute: {}})

	require.Len(t, res.Findings, 1)
	assert.Equal(t, model.StatusFail, res.Status)
	assert.Empty(t, res.Findings[0].ResourceRef)
}

func TestAuditLogging_Trails(t *testing.T) {
	in := Inputs{
		model.CategoryAudit: {
			rec(model.CategoryAudit, model.KindTrail, "org", map[string]any{
				model.AttrIsLogging: true, model.AttrLogFileValidation: true, model.AttrKMSEncrypted: true,
			}),
		},
		model.CategoryCompute: {
			rec(model.CategoryCompute, model.KindFunction, "dev-fn", map[string]any{model.AttrLogGroup: false}),
		},
	}

	res := AuditLogging{}.Evaluate("dev", in)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, model.StatusWarning, res.Status)
}

func TestNetworkSecurity(t *testing.T) {
	in := Inputs{model.CategoryNetwork: {
		rec(model.CategoryNetwork, model.KindSecurityGroup, "medeez-dev-api", map[string]any{
			model.AttrOpenIngress: []string{"tcp:22"},
		}),
		rec(model.CategoryNetwork, model.KindSecurityGroup, "other-team", map[string]any{
			model.AttrOpenIngress: []string{"all"},
		}),
	}}

	res := NetworkSecurity{AppName: "medeez"}.Evaluate("dev", in)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "network/medeez-dev-api", res.Findings[0].ResourceRef)
	assert.Equal(t, model.StatusFail, res.Status)
}

func TestRunner_ErrorSlotForFailedCategory(t *testing.T) {
	snap := &scanner.Snapshot{
		Environment: "dev",
		Records: map[model.Category][]model.ResourceRecord{
			model.CategoryNetwork: {},
		},
		Errors: map[model.Category]error{
			model.CategoryAudit: &scanner.CollectionError{Category: model.CategoryAudit, Err: errors.New("AccessDenied")},
		},
	}

	r := NewRunner(nil)
	r.Register(AuditLogging{})
	r.Register(NetworkSecurity{AppName: "medeez"})
	r.Register(HIPAA{})

	results := r.Run(context.Background(), snap)

	require.Len(t, results, 3)
	audit := results[NameAuditLogging]
	assert.Equal(t, model.StatusError, audit.Status)
	assert.Contains(t, audit.Error, "AccessDenied")
	assert.NotNil(t, audit.Findings)
	assert.NotNil(t, audit.Recommendations)

	assert.Equal(t, model.StatusPass, results[NameNetworkSecurity].Status)
	assert.Equal(t, model.StatusPass, results[NameHIPAA].Status)
	assert.Len(t, results[NameHIPAA].Recommendations, len(hipaaSafeguards))
}

type panickyCheck struct{}

func (panickyCheck) Name() string               { return "panicky" }
func (panickyCheck) Requires() []model.Category { return nil }
func (panickyCheck) Evaluate(string, Inputs) model.CheckResult {
	panic("nil map")
}

func TestRunner_RecoversPanics(t *testing.T) {
	r := NewRunner(nil)
	r.Register(panickyCheck{})

	results := r.Run(context.Background(), &scanner.Snapshot{Environment: "dev"})

	assert.Equal(t, model.StatusError, results["panicky"].Status)
}

func TestRunner_Categories(t *testing.T) {
	r := NewRunner(nil)
	for _, c := range ComplianceChecks("medeez") {
		r.Register(c)
	}
	assert.Equal(t, []model.Category{
		model.CategoryStorage,
		model.CategoryTable,
		model.CategoryCompute,
		model.CategoryIdentity,
		model.CategoryNetwork,
		model.CategoryAudit,
	}, r.Categories())
}

func TestPriorityActions(t *testing.T) {
	actions := PriorityActions(map[string]model.CheckResult{
		NameNetworkSecurity: {Status: model.StatusFail},
		NameAuditLogging:    {Status: model.StatusError},
	})

	require.Len(t, actions, 5)
	assert.Equal(t, "Enable comprehensive audit logging", actions[0])
	assert.Equal(t, "Restrict public network access", actions[1])
	assert.Equal(t, "Enable encryption at rest for all data stores", actions[2])
}
