package errors

// Generic error code definitions used as sensible defaults across modules.
const (
	CodeSystemGeneric     = "SYS-000"
	CodeConfigGeneric     = "CFG-000"
	CodeValidationGeneric = "VAL-000"
	CodeDependencyGeneric = "DEP-000"
	CodeProvisionGeneric  = "PRV-000"
	CodeDatabaseGeneric   = "DB-000"
)

// Failure kinds raised while provisioning a backend and rewriting configuration.
const (
	CodeCopyFailure         = "PRV-101"
	CodeScriptFailure       = "PRV-102"
	CodeUserCreationFailure = "PRV-103"
	CodeConfigParseFailure  = "CFG-101"
	CodeConfigIOFailure     = "CFG-102"
	CodePreemptionFailure   = "SYS-101"
)
