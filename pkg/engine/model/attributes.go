package model

// Resource kinds for categories that hold more than one resource type.
const (
	KindBucket        = "bucket"
	KindTable         = "table"
	KindFunction      = "function"
	KindDistribution  = "distribution"
	KindRole          = "role"
	KindKMSKey        = "kms_key"
	KindUserPool      = "user_pool"
	KindSecurityGroup = "security_group"
	KindAPIStage      = "api_stage"
	KindTrail         = "trail"
	KindBudget        = "budget"
)

// Attribute keys written by collectors and read by checks.
const (
	AttrKind   = "kind"
	AttrRegion = "region"

	// Storage.
	AttrEncrypted           = "encrypted"
	AttrEncryptionAlgorithm = "encryption_algorithm"
	AttrSSLEnforced         = "ssl_enforced"
	AttrIntelligentTiering  = "intelligent_tiering"
	AttrLifecycleRule       = "lifecycle_rule"
	AttrStaleUploads        = "stale_uploads"

	// Tables.
	AttrBillingMode = "billing_mode"
	AttrSSEEnabled  = "sse_enabled"
	AttrSSEType     = "sse_type"
	AttrPITREnabled = "pitr_enabled"
	AttrTTLEnabled  = "ttl_enabled"

	// Functions.
	AttrArchitecture   = "architecture"
	AttrMemoryMB       = "memory_mb"
	AttrTimeoutSeconds = "timeout_seconds"
	AttrRuntime        = "runtime"
	AttrLogGroup       = "log_group"

	// Distributions.
	AttrPriceClass  = "price_class"
	AttrCompression = "compression"
	AttrComment     = "comment"

	// Identity.
	AttrAdminPolicies          = "admin_policies"
	AttrWildcardInlinePolicies = "wildcard_inline_policies"
	AttrRotationEnabled        = "rotation_enabled"
	AttrWildcardPrincipal      = "wildcard_principal"
	AttrMinPasswordLength      = "min_password_length"
	AttrMFA                    = "mfa"
	AttrRecoveryConfigured     = "recovery_configured"

	// Network.
	AttrOpenIngress = "open_ingress"
	AttrAccessLogs  = "access_logs"
	AttrTracing     = "tracing"
	AttrThrottling  = "throttling"

	// Audit.
	AttrIsLogging         = "is_logging"
	AttrLogFileValidation = "log_file_validation"
	AttrKMSEncrypted      = "kms_encrypted"

	// Budgets. The limit is a decimal string in the budget unit.
	AttrBudgetExists  = "exists"
	AttrBudgetLimit   = "limit"
	AttrActualAlert   = "actual_alert"
	AttrForecastAlert = "forecast_alert"
)
