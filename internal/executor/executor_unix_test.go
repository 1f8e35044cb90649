//go:build unix

package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemExecutorStreamsLines(t *testing.T) {
	var got []string
	res, err := NewSystemExecutor().Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo one; echo two 1>&2; echo three"},
	}, func(stream Stream, line string) {
		got = append(got, stream.String()+":"+line)
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, got, "stdout:one")
	assert.Contains(t, got, "stdout:three")
	assert.Contains(t, got, "stderr:two")
	assert.Equal(t, []string{"two"}, res.Stderr)
}

func TestSystemExecutorReportsExitCode(t *testing.T) {
	res, err := NewSystemExecutor().Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo broken >&2; exit 3"},
	}, nil)

	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken", res.StderrText())
}

func TestSystemExecutorFeedsStdinAndEnv(t *testing.T) {
	input := filepath.Join(t.TempDir(), "script.sql")
	require.NoError(t, os.WriteFile(input, []byte("select 1;\n"), 0o600))

	var lines []string
	_, err := NewSystemExecutor().Run(context.Background(), Command{
		Name:      "sh",
		Args:      []string{"-c", "cat; echo \"$CSU_TEST_VALUE\""},
		Env:       []string{"CSU_TEST_VALUE=hello"},
		StdinFile: input,
	}, func(_ Stream, line string) { lines = append(lines, line) })

	require.NoError(t, err)
	assert.Equal(t, []string{"select 1;", "hello"}, lines)
}

func TestSystemExecutorMissingInput(t *testing.T) {
	_, err := NewSystemExecutor().Run(context.Background(), Command{
		Name:      "sh",
		StdinFile: filepath.Join(t.TempDir(), "missing.sql"),
	}, nil)
	assert.Error(t, err)
}

func TestOutput(t *testing.T) {
	out, err := NewSystemExecutor().Output(context.Background(), "sh", "-c", "printf active")
	require.NoError(t, err)
	assert.Equal(t, "active", string(out))
}
