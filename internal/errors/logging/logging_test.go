package logging

import (
	"context"
	"strings"
	"testing"

	apperrors "CSU/internal/errors"
	"CSU/internal/logger"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldMap(fields []logger.Field) map[string]interface{} {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

func TestFieldsForScriptFailure(t *testing.T) {
	stderr := strings.Join([]string{"l1", "l2", "l3", "l4", "l5", "l6", "l7"}, "\n") + "\n"
	appErr := apperrors.ProvisionError(apperrors.CodeScriptFailure, "script InitialDataSet.sql failed", errors.New("exit status 1")).
		WithModule("provisioner").
		WithOperation("provisioner.runScripts").
		WithFields(apperrors.Metadata{"script": "InitialDataSet.sql", "stderr": stderr, "run_id": "spoofed"})

	fields := Fields(appErr)
	got := fieldMap(fields)

	assert.Equal(t, apperrors.CodeScriptFailure, got["error_code"])
	assert.Equal(t, "provisioner.runScripts", got["operation"])
	assert.Equal(t, "InitialDataSet.sql", got["script"])
	assert.Equal(t, "l3\nl4\nl5\nl6\nl7", got["stderr"])
	assert.NotContains(t, got, "run_id")
	assert.NotContains(t, got, "recoverable")

	// metadata follows the fixed fields in sorted order
	assert.Equal(t, "script", fields[len(fields)-2].Key)
	assert.Equal(t, "stderr", fields[len(fields)-1].Key)
}

func TestErrorCarriesRunContext(t *testing.T) {
	log := logger.NewMockLogger()
	ctx := logger.ContextWithRun(context.Background(), logger.RunContext{RunID: "run-7", Step: "Provision backend"})

	Error(ctx, log, "run failed", errors.Wrap(
		apperrors.ProvisionError(apperrors.CodeUserCreationFailure, "failed to grant access on openPDC to pdc", nil), "step"))

	entries := log.GetEntries()
	require.Len(t, entries, 1)
	got := fieldMap(entries[0].Fields)
	assert.Equal(t, "run-7", got["run_id"])
	assert.Equal(t, "Provision backend", got["step"])
	assert.Equal(t, apperrors.CodeUserCreationFailure, got["error_code"])
}

func TestErrorWithPlainError(t *testing.T) {
	log := logger.NewMockLogger()

	Error(context.Background(), log, "failed to record run history", errors.New("disk full"))
	Error(context.Background(), nil, "ignored", errors.New("nobody listens"))

	entries := log.GetEntries()
	require.Len(t, entries, 1)
	assert.Contains(t, fieldMap(entries[0].Fields), "error")
}
