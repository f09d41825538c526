package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestCliLogger_VerboseFalse(t *testing.T) {
	t.Parallel()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	logger := NewCliLogger(stdout, stderr, false)

	ctx := context.Background()
	logger = logger.WithComponent("gate").With(attribute.String("task", "lint"))
	logger.Debug(ctx, "Debug msg")
	logger.Info(ctx, "Info msg")
	logger.Warn(ctx, "Warn msg")
	logger.Error(ctx, "Error msg")

	// info      -> stdout
	// warn, err -> stderr
	assert.Equal(t, "Info msg\n", stdout.String())
	assert.Equal(t, "Warn msg\nError msg\n", stderr.String())
}

func TestCliLogger_VerboseTrue(t *testing.T) {
	t.Parallel()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	logger := NewCliLogger(stdout, stderr, true)

	ctx := context.Background()
	logger.Debug(ctx, "Debug msg")
	logger.Info(ctx, "Info msg")
	logger.Warn(ctx, "Warn msg")
	logger.Error(ctx, "Error msg")

	// debug (verbose), info -> stdout
	// warn, err             -> stderr
	assert.Equal(t, "DEBUG\tDebug msg\nINFO\tInfo msg\n", stdout.String())
	assert.Equal(t, "WARN\tWarn msg\nERROR\tError msg\n", stderr.String())
}

func TestDebugLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := NewDebugLogger()
	logger.Debug(ctx, "debug")
	logger.Infof(ctx, "info %d", 1)
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	assert.Equal(t, `{"level":"warn","message":"warn"}`+"\n", logger.WarnMessages())
	assert.Equal(t, `{"level":"error","message":"error"}`+"\n", logger.ErrorMessages())
	assert.Equal(t, `{"level":"warn","message":"warn"}`+"\n"+`{"level":"error","message":"error"}`+"\n", logger.WarnAndErrorMessages())

	logger.AssertJSONMessages(t, `
{"level":"debug","message":"debug"}
{"level":"info","message":"info %d"}
`)

	logger.Truncate()
	assert.Empty(t, logger.AllMessages())
}

func TestDebugLogger_Component(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := NewDebugLogger()
	child := logger.WithComponent("gate").With(attribute.String("task", "full-tests")).WithComponent("churn")
	child.Info(ctx, "Advanced.")

	logger.AssertJSONMessages(t, `{"level":"info","message":"Advanced.","component":"gate.churn","task":"full-tests"}`)
	assert.Equal(t, 1, bytes.Count([]byte(logger.AllMessages()), []byte(`"component"`)))
}

func TestNopLogger(t *testing.T) {
	t.Parallel()
	logger := NewNopLogger()
	logger.Info(context.Background(), "ignored")
	assert.NoError(t, logger.Sync())
}
