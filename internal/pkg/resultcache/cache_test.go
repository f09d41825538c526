package resultcache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/devgate/internal/pkg/dependencies"
	"github.com/keboola/devgate/internal/pkg/filesystem/aferofs"
	. "github.com/keboola/devgate/internal/pkg/resultcache"
)

var tracked = []string{"src/**/*.go"}

type fixture struct {
	d       dependencies.Mocked
	stateFs *aferofs.Fs
	project *aferofs.Fs
	cache   *Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{d: dependencies.NewMocked(), stateFs: aferofs.NewMemoryFs(), project: aferofs.NewMemoryFs()}
	f.cache = New(f.d, f.stateFs, f.project)
	f.touch(t, "src/main.go", -time.Hour)
	f.touch(t, "src/pkg/util.go", -time.Hour)
	f.touch(t, "README.md", -time.Hour)
	return f
}

// touch sets modification time of the file relative to the mocked start time.
func (f *fixture) touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	if !f.project.Exists(path) {
		require.NoError(t, f.project.WriteFileAtomic(path, []byte("content\n")))
	}
	mtime := dependencies.MockedStartTime.Add(offset)
	require.NoError(t, f.project.Chtimes(path, mtime, mtime))
}

func (f *fixture) writeCacheFile(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, f.stateFs.WriteFileAtomic(FileName, []byte(content)))
}

func TestCache_Lookup_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	result := f.cache.Lookup(context.Background(), "lint", tracked)
	assert.Equal(t, StatusMiss, result.Status)
	assert.Nil(t, result.Record)
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	record, err := f.cache.Store(ctx, "lint", VerdictPass)
	require.NoError(t, err)
	assert.True(t, record.At.Equal(dependencies.MockedStartTime))

	// Tracked files are unmodified since the record
	result := f.cache.Lookup(ctx, "lint", tracked)
	assert.Equal(t, StatusHitPass, result.Status)
	require.NotNil(t, result.Record)
	assert.True(t, result.Record.Passed())

	// Time passes, it does not matter
	f.d.MockedClock().Advance(24 * time.Hour)
	assert.Equal(t, StatusHitPass, f.cache.Lookup(ctx, "lint", tracked).Status)

	// Untracked file modified
	f.touch(t, "README.md", time.Minute)
	assert.Equal(t, StatusHitPass, f.cache.Lookup(ctx, "lint", tracked).Status)

	// Tracked file modified after the record
	f.touch(t, "src/pkg/util.go", time.Minute)
	result = f.cache.Lookup(ctx, "lint", tracked)
	assert.Equal(t, StatusMiss, result.Status)
	require.NotNil(t, result.Record)
	assert.Equal(t, VerdictPass, result.Record.Result)
}

func TestCache_Lookup_EqualTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.cache.Store(ctx, "lint", VerdictPass)
	require.NoError(t, err)

	// The record must be strictly newer
	f.touch(t, "src/main.go", 0)
	assert.Equal(t, StatusMiss, f.cache.Lookup(ctx, "lint", tracked).Status)
}

func TestCache_StickyFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.cache.Store(ctx, "lint", VerdictFail)
	require.NoError(t, err)
	f.d.MockedClock().Advance(time.Hour)

	result := f.cache.Lookup(ctx, "lint", tracked)
	assert.Equal(t, StatusHitFail, result.Status)
	assert.Equal(t, "hit-fail", result.Status.String())

	// A fix of the code invalidates the failure
	f.touch(t, "src/main.go", 30*time.Minute)
	assert.Equal(t, StatusMiss, f.cache.Lookup(ctx, "lint", tracked).Status)

	// The new run passes
	_, err = f.cache.Store(ctx, "lint", VerdictPass)
	require.NoError(t, err)
	assert.Equal(t, StatusHitPass, f.cache.Lookup(ctx, "lint", tracked).Status)
}

func TestCache_Lookup_NoTrackedFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.cache.Store(ctx, "lint", VerdictPass)
	require.NoError(t, err)

	// No patterns, no way to detect a change
	assert.Equal(t, StatusMiss, f.cache.Lookup(ctx, "lint", nil).Status)

	// Patterns without a match, nothing has been modified
	assert.Equal(t, StatusHitPass, f.cache.Lookup(ctx, "lint", []string{"**/*.js"}).Status)
}

func TestCache_LegacyRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	at := dependencies.MockedStartTime.UnixMilli()

	f.writeCacheFile(t, fmt.Sprintf(`{
  "legacy-pass": {"at": %d, "pass": true},
  "legacy-fail": {"at": %d, "pass": false},
  "current-pass": {"at": %d, "result": "pass"},
  "current-fail": {"at": %d, "result": "fail"},
  "iso-pass": {"at": "2024-06-01T10:00:00Z", "pass": true},
  "string-ms": {"at": "%d", "result": "pass"}
}`, at, at, at, at, at))

	for name, expected := range map[string]Verdict{
		"legacy-pass":  VerdictPass,
		"legacy-fail":  VerdictFail,
		"current-pass": VerdictPass,
		"current-fail": VerdictFail,
		"iso-pass":     VerdictPass,
		"string-ms":    VerdictPass,
	} {
		record, found := f.cache.Record(ctx, name)
		require.True(t, found, name)
		assert.Equal(t, expected, record.Result, name)
		assert.Equal(t, at, record.At.UnixMilli(), name)
	}

	// Legacy and current records behave the same
	assert.Equal(t, f.cache.Lookup(ctx, "current-pass", tracked), f.cache.Lookup(ctx, "legacy-pass", tracked))
	assert.Equal(t, StatusHitPass, f.cache.Lookup(ctx, "legacy-pass", tracked).Status)
	assert.Equal(t, StatusHitFail, f.cache.Lookup(ctx, "legacy-fail", tracked).Status)
}

func TestCache_CorruptRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.writeCacheFile(t, `{
  "unknown-result": {"at": 1717236000000, "result": "maybe"},
  "missing-result": {"at": 1717236000000},
  "missing-at": {"result": "pass"},
  "invalid-at": {"at": "yesterday", "result": "pass"},
  "negative-at": {"at": -5, "result": "pass"},
  "not-object": [1, 2, 3]
}`)

	for _, name := range []string{"unknown-result", "missing-result", "missing-at", "invalid-at", "negative-at", "not-object"} {
		result := f.cache.Lookup(ctx, name, tracked)
		assert.Equal(t, StatusMiss, result.Status, name)
		assert.Nil(t, result.Record, name)
	}
	assert.Contains(t, f.d.DebugLogger().WarnMessages(), `unexpected result \"maybe\"`)

	// A new record replaces only its own entry
	_, err := f.cache.Store(ctx, "unknown-result", VerdictPass)
	require.NoError(t, err)
	assert.Equal(t, StatusHitPass, f.cache.Lookup(ctx, "unknown-result", tracked).Status)
	names, err := f.cache.TaskNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"invalid-at", "missing-at", "missing-result", "negative-at", "not-object", "unknown-result"}, names)
}

func TestCache_CorruptFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.writeCacheFile(t, `{"lint": {"at": 17`)
	assert.Equal(t, StatusMiss, f.cache.Lookup(ctx, "lint", tracked).Status)
	assert.Contains(t, f.d.DebugLogger().WarnMessages(), "Cannot read result cache, ignoring it")

	// The file is replaced
	_, err := f.cache.Store(ctx, "lint", VerdictFail)
	require.NoError(t, err)
	assert.Equal(t, StatusHitFail, f.cache.Lookup(ctx, "lint", tracked).Status)
}

func TestCache_StoredFormat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.cache.Store(ctx, "lint", VerdictPass)
	require.NoError(t, err)
	f.d.MockedClock().Advance(1500 * time.Millisecond)
	_, err = f.cache.Store(ctx, "full-tests", VerdictFail)
	require.NoError(t, err)

	content, err := f.stateFs.ReadFile(FileName)
	require.NoError(t, err)
	assert.JSONEq(t, `{
  "lint": {"at": 1717236000000, "result": "pass"},
  "full-tests": {"at": 1717236001500, "result": "fail"}
}`, string(content))

	// The state dir is ignored by git
	gitIgnore, err := f.stateFs.ReadFile(".gitignore")
	require.NoError(t, err)
	assert.Equal(t, "*\n", string(gitIgnore))

	_, err = f.cache.Store(ctx, "lint", Verdict("unknown"))
	assert.Error(t, err)

	require.NoError(t, f.cache.Remove(ctx, "lint"))
	_, found := f.cache.Record(ctx, "lint")
	assert.False(t, found)
}
