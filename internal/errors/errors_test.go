package errors

import (
	stderrors "errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorFormat(t *testing.T) {
	err := ProvisionError(CodeScriptFailure, "script failed", stderrors.New("exit status 1"))
	assert.Equal(t, "[PROVISION:PRV-102] script failed: exit status 1", err.Error())

	bare := ConfigError(CodeConfigParseFailure, "bad document", nil)
	assert.Equal(t, "[CONFIG:CFG-101] bad document", bare.Error())
}

func TestHasCode_WalksWrappedChain(t *testing.T) {
	inner := ProvisionError(CodeCopyFailure, "copy failed", nil)
	outer := SystemError(CodeSystemGeneric, "step failed", inner)
	wrapped := pkgerrors.Wrap(outer, "Provision backend failed")

	assert.True(t, HasCode(wrapped, CodeCopyFailure))
	assert.True(t, HasCode(wrapped, CodeSystemGeneric))
	assert.False(t, HasCode(wrapped, CodeScriptFailure))
	assert.False(t, HasCode(stderrors.New("plain"), CodeCopyFailure))
}

func TestAs_FindsAppError(t *testing.T) {
	appErr := ValidationError(CodeValidationGeneric, "host is required", nil).
		WithModule("model").
		WithField("field", "host")

	got, ok := As(pkgerrors.Wrap(appErr, "validate"))
	require.True(t, ok)
	assert.Equal(t, "model", got.Module)
	assert.Equal(t, "host", got.Metadata["field"])
}

func TestPreemptionError_IsRecoverable(t *testing.T) {
	err := PreemptionError("service stop timed out", nil)
	assert.True(t, err.Recoverable)
	assert.Equal(t, CodePreemptionFailure, err.Code)
}
