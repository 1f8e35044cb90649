package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestStandardLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewStandardLogger(WithOutput(&buf), WithLevel(LevelWarn), WithFormatter(&TextFormatter{DisableTimestamp: true, DisableColors: true}))

	log.Info("hidden")
	log.Warn("shown %d", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN] shown 1")
}

func TestContextFieldsIncludeRun(t *testing.T) {
	var buf bytes.Buffer
	log := NewStandardLogger(WithOutput(&buf), WithFormatter(&JSONFormatter{}))

	ctx := ContextWithRun(context.Background(), RunContext{RunID: "abc", Step: "provision"})
	log.InfoContext(ctx, "copying", String("target", "openPDC.db"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "abc", decoded["run_id"])
	assert.Equal(t, "provision", decoded["step"])
	assert.Equal(t, "openPDC.db", decoded["target"])
}

func TestSensitiveFieldsAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	log := NewStandardLogger(WithOutput(&buf), WithFormatter(&TextFormatter{DisableTimestamp: true, DisableColors: true}))

	log.InfoContext(context.Background(), "patched", String("password", "hunter2"), String("file", "a b.config"))

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "password="+redacted)
	assert.Contains(t, out, `file="a b.config"`)
}

func TestWithCopiesFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewStandardLogger(WithOutput(&buf), WithFormatter(&TextFormatter{DisableTimestamp: true, DisableColors: true}))
	child := base.With(String("component", "configurator"))

	child.Info("one")
	base.Info("two")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "component=configurator")
	assert.NotContains(t, string(lines[1]), "component=")
}

func TestMockLoggerRecordsRunFields(t *testing.T) {
	mock := NewMockLogger()
	ctx := ContextWithRun(context.Background(), RunContext{RunID: "r1"})

	mock.WarnContext(ctx, "slow")
	mock.Error("boom %s", "now")

	assert.True(t, mock.HasEntry(LevelWarn, "slow"))
	assert.Equal(t, 1, mock.CountEntries(LevelError))
	assert.Equal(t, []string{"boom now"}, mock.Messages(LevelError))
	entries := mock.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, []Field{String("run_id", "r1")}, entries[0].Fields)
}
