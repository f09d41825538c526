// Package resultcache stores the last verdict of idempotent checks
// and reports it while no tracked file has been modified since.
package resultcache

import (
	"context"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/keboola/devgate/internal/pkg/encoding/json"
	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/log"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

const (
	FileName      = "cache.json"
	gitIgnoreFile = ".gitignore"
)

type Status int

const (
	StatusMiss Status = iota
	StatusHitPass
	StatusHitFail
)

func (s Status) String() string {
	switch s {
	case StatusHitPass:
		return "hit-pass"
	case StatusHitFail:
		return "hit-fail"
	default:
		return "miss"
	}
}

type Result struct {
	Status Status
	// Record is set, if a valid record exists, even if it is stale.
	Record *Record
}

type Cache struct {
	logger  log.Logger
	clock   clockwork.Clock
	stateFs filesystem.Fs
	files   filesystem.Fs
}

type dependencies interface {
	Logger() log.Logger
	Clock() clockwork.Clock
}

// New creates the cache stored in the stateFs, tracked files are resolved in the projectFs.
func New(d dependencies, stateFs, projectFs filesystem.Fs) *Cache {
	return &Cache{
		logger:  d.Logger().WithComponent("resultcache"),
		clock:   d.Clock(),
		stateFs: stateFs,
		files:   projectFs,
	}
}

// Lookup returns a hit if the task record is newer than modification time of all tracked files.
// Tracked files are glob patterns. Without tracked files, the result is always a miss.
func (c *Cache) Lookup(ctx context.Context, taskName string, trackedFiles []string) Result {
	logger := c.logger.With(attribute.String("task", taskName))

	record, found := c.Record(ctx, taskName)
	if !found {
		return Result{Status: StatusMiss}
	}
	if len(trackedFiles) == 0 {
		return Result{Status: StatusMiss, Record: &record}
	}

	latest, modified, err := c.files.LatestModTime(trackedFiles)
	if err != nil {
		logger.Warnf(ctx, `Cannot check tracked files: %s`, err.Error())
		return Result{Status: StatusMiss, Record: &record}
	}

	// The persisted timestamp is compared, not the current time
	if modified && !record.At.After(latest) {
		logger.Debugf(ctx, `Cached result is stale, tracked files modified at %s.`, latest.UTC().Format(time.RFC3339Nano))
		return Result{Status: StatusMiss, Record: &record}
	}

	if record.Passed() {
		return Result{Status: StatusHitPass, Record: &record}
	}
	return Result{Status: StatusHitFail, Record: &record}
}

// Record returns the last run record of the task. A corrupt record is reported as not found.
func (c *Cache) Record(ctx context.Context, taskName string) (Record, bool) {
	entries, err := c.readEntries()
	if err != nil {
		c.logger.Warnf(ctx, `Cannot read result cache, ignoring it: %s`, err.Error())
		return Record{}, false
	}

	data, found := entries[taskName]
	if !found {
		return Record{}, false
	}

	record, err := decodeRecord(data)
	if err != nil {
		c.logger.With(attribute.String("task", taskName)).Warnf(ctx, `Ignoring cached result: %s`, err.Error())
		return Record{}, false
	}
	return record, true
}

// LastRun returns time of the last recorded run of the task, regardless of the verdict.
func (c *Cache) LastRun(ctx context.Context, taskName string) (time.Time, bool) {
	record, found := c.Record(ctx, taskName)
	return record.At, found
}

// Store writes a fresh record {at: now, result: verdict}.
// Other entries are kept untouched, even if they cannot be decoded.
func (c *Cache) Store(ctx context.Context, taskName string, verdict Verdict) (Record, error) {
	if verdict != VerdictPass && verdict != VerdictFail {
		return Record{}, errors.Errorf(`unexpected verdict "%s"`, verdict)
	}
	record := Record{At: c.clock.Now().Truncate(time.Millisecond), Result: verdict}
	err := c.update(ctx, func(entries map[string]json.RawMessage) error {
		data, err := json.Encode(encodeRecord(record), false)
		if err != nil {
			return err
		}
		entries[taskName] = data
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

// Remove the task record.
func (c *Cache) Remove(ctx context.Context, taskName string) error {
	return c.update(ctx, func(entries map[string]json.RawMessage) error {
		delete(entries, taskName)
		return nil
	})
}

// TaskNames returns names of all tasks with a record, sorted.
func (c *Cache) TaskNames() ([]string, error) {
	entries, err := c.readEntries()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for name := range entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Cache) update(ctx context.Context, fn func(entries map[string]json.RawMessage) error) error {
	unlock, err := c.stateFs.Lock(ctx, FileName)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := c.readEntries()
	if err != nil {
		c.logger.Warnf(ctx, `Replacing unreadable result cache: %s`, err.Error())
		entries = make(map[string]json.RawMessage)
	}

	if err := fn(entries); err != nil {
		return err
	}

	content, err := json.Encode(entries, true)
	if err != nil {
		return err
	}
	if err := c.stateFs.WriteFileAtomic(FileName, content); err != nil {
		return errors.Errorf(`cannot write result cache: %w`, err)
	}
	return c.ensureGitIgnore()
}

func (c *Cache) readEntries() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)
	if !c.stateFs.IsFile(FileName) {
		return entries, nil
	}

	content, err := c.stateFs.ReadFile(FileName)
	if err != nil {
		return nil, errors.Errorf(`cannot read "%s": %w`, FileName, err)
	}
	if err := json.Decode(content, &entries); err != nil {
		return nil, errors.Errorf(`cannot decode "%s": %w`, FileName, err)
	}
	if entries == nil {
		entries = make(map[string]json.RawMessage)
	}
	return entries, nil
}

// ensureGitIgnore keeps the state dir out of the working tree, so it does not count as churn.
func (c *Cache) ensureGitIgnore() error {
	if c.stateFs.Exists(gitIgnoreFile) {
		return nil
	}
	if err := c.stateFs.WriteFileAtomic(gitIgnoreFile, []byte("*\n")); err != nil {
		return errors.Errorf(`cannot write "%s": %w`, gitIgnoreFile, err)
	}
	return nil
}
