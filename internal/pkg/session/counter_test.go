package session_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/devgate/internal/pkg/dependencies"
	"github.com/keboola/devgate/internal/pkg/session"
)

func openCounter(t *testing.T, d dependencies.Mocked, path string) *session.Counter {
	t.Helper()
	counter, err := session.Open(context.Background(), d, path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, counter.Close()) })
	return counter
}

func TestCounter_SinceLastRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := dependencies.NewMocked()
	counter := openCounter(t, d, filepath.Join(t.TempDir(), "nested", "sessions.db"))

	assert.Equal(t, int64(0), counter.SinceLastRun(ctx, "s1", "review"))

	require.NoError(t, counter.RecordWrite(ctx, "s1", 120))
	require.NoError(t, counter.RecordWrite(ctx, "s1", 30))
	require.NoError(t, counter.RecordWrite(ctx, "s2", 7))
	assert.Equal(t, int64(150), counter.SinceLastRun(ctx, "s1", "review"))
	assert.Equal(t, int64(150), counter.SinceLastRun(ctx, "s1", "lint"))
	assert.Equal(t, int64(7), counter.SinceLastRun(ctx, "s2", "review"))

	// Only the (session, task) pair is reset
	require.NoError(t, counter.RecordTaskRun(ctx, "s1", "review"))
	assert.Equal(t, int64(0), counter.SinceLastRun(ctx, "s1", "review"))
	assert.Equal(t, int64(150), counter.SinceLastRun(ctx, "s1", "lint"))
	assert.Equal(t, int64(7), counter.SinceLastRun(ctx, "s2", "review"))
	assert.Equal(t, int64(150), counter.Total(ctx, "s1"))

	require.NoError(t, counter.RecordWrite(ctx, "s1", 40))
	assert.Equal(t, int64(40), counter.SinceLastRun(ctx, "s1", "review"))
	assert.Equal(t, int64(190), counter.SinceLastRun(ctx, "s1", "lint"))

	// A task run in a session without writes
	require.NoError(t, counter.RecordTaskRun(ctx, "s3", "review"))
	assert.Equal(t, int64(0), counter.SinceLastRun(ctx, "s3", "review"))
	require.NoError(t, counter.RecordWrite(ctx, "s3", 5))
	assert.Equal(t, int64(5), counter.SinceLastRun(ctx, "s3", "review"))
}

func TestCounter_MissingSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := dependencies.NewMocked()
	counter := openCounter(t, d, filepath.Join(t.TempDir(), "sessions.db"))

	require.NoError(t, counter.RecordWrite(ctx, "", 100))
	require.NoError(t, counter.RecordTaskRun(ctx, "", "review"))
	assert.Equal(t, int64(0), counter.SinceLastRun(ctx, "", "review"))
	assert.Equal(t, int64(0), counter.Total(ctx, ""))
}

func TestCounter_IgnoresNonPositiveWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := dependencies.NewMocked()
	counter := openCounter(t, d, filepath.Join(t.TempDir(), "sessions.db"))

	require.NoError(t, counter.RecordWrite(ctx, "s1", 10))
	require.NoError(t, counter.RecordWrite(ctx, "s1", 0))
	require.NoError(t, counter.RecordWrite(ctx, "s1", -4))
	assert.Equal(t, int64(10), counter.SinceLastRun(ctx, "s1", "review"))
}

func TestCounter_Persistence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := dependencies.NewMocked()
	path := filepath.Join(t.TempDir(), "sessions.db")

	// Each invocation is a separate process
	first, err := session.Open(ctx, d, path)
	require.NoError(t, err)
	require.NoError(t, first.RecordWrite(ctx, "s1", 25))
	require.NoError(t, first.RecordTaskRun(ctx, "s1", "lint"))
	require.NoError(t, first.RecordWrite(ctx, "s1", 5))
	require.NoError(t, first.Close())

	// Migrations are applied only once
	second := openCounter(t, d, path)
	assert.Equal(t, int64(5), second.SinceLastRun(ctx, "s1", "lint"))
	assert.Equal(t, int64(30), second.SinceLastRun(ctx, "s1", "review"))
}

func TestCounter_Prune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := dependencies.NewMocked()
	counter := openCounter(t, d, filepath.Join(t.TempDir(), "sessions.db"))

	require.NoError(t, counter.RecordWrite(ctx, "old", 10))
	require.NoError(t, counter.RecordTaskRun(ctx, "old", "lint"))
	d.MockedClock().Advance(2 * time.Hour)
	require.NoError(t, counter.RecordWrite(ctx, "active", 20))

	count, err := counter.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(0), counter.Total(ctx, "old"))
	assert.Equal(t, int64(20), counter.Total(ctx, "active"))

	// The mark of the pruned session is gone too
	require.NoError(t, counter.RecordWrite(ctx, "old", 3))
	assert.Equal(t, int64(3), counter.SinceLastRun(ctx, "old", "lint"))

	count, err = counter.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestOpen_EmptyPath(t *testing.T) {
	t.Parallel()
	_, err := session.Open(context.Background(), dependencies.NewMocked(), " ")
	assert.Error(t, err)
}

func TestDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	counter := session.Disabled(dependencies.NewMocked())
	assert.False(t, counter.Enabled())

	require.NoError(t, counter.RecordWrite(ctx, "s1", 120))
	require.NoError(t, counter.RecordTaskRun(ctx, "s1", "review"))
	assert.Equal(t, int64(0), counter.SinceLastRun(ctx, "s1", "review"))
	assert.Equal(t, int64(0), counter.Total(ctx, "s1"))

	count, err := counter.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.NoError(t, counter.Close())
}
