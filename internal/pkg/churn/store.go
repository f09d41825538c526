// Package churn persists per task watermarks and measures line churn since them.
//
// The watermark of a task is a git ref pointing to the state already accounted for.
// Net churn is the size of the diff between the watermark and the working tree.
// Gross churn is a counter of written lines, it is stored next to the refs,
// because a ref cannot hold a number.
package churn

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/filesystem/aferofs"
	"github.com/keboola/devgate/internal/pkg/git"
	"github.com/keboola/devgate/internal/pkg/log"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

const (
	DefaultRefNamespace = "refs/devgate/watermarks"
	grossDir            = "devgate/gross"
)

// ErrRegress is returned by Advance if the target commit is an ancestor of the current watermark.
var ErrRegress = errors.New("watermark cannot move backwards")

// Repository is the subset of git.Repository used by the store.
type Repository interface {
	Head(ctx context.Context) (string, error)
	RootCommit(ctx context.Context) (string, error)
	ReadRef(ctx context.Context, name string) (string, bool, error)
	UpdateRef(ctx context.Context, name, hash string) error
	DeleteRef(ctx context.Context, name string) error
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
	IsSnapshot(ctx context.Context, hash string) (bool, error)
	WorkingTree(ctx context.Context) (string, error)
	SnapshotWorkingTree(ctx context.Context) (string, error)
	DiffLines(ctx context.Context, from, to string, patterns []string) (int64, error)
}

type Store struct {
	logger    log.Logger
	clock     clockwork.Clock
	repo      Repository
	counters  filesystem.Fs
	namespace string
}

type dependencies interface {
	Logger() log.Logger
	Clock() clockwork.Clock
}

// Open creates the store for the repository containing the dir.
// Outside a repository, or without the git binary, the store is disabled:
// churn is always 0 and writes are no-op.
func Open(ctx context.Context, d dependencies, dir, namespace string) (*Store, error) {
	logger := d.Logger().WithComponent("churn")

	repo, err := git.Open(ctx, logger, dir)
	if errors.Is(err, git.ErrNotRepository) || errors.Is(err, git.ErrGitUnavailable) {
		logger.Debugf(ctx, `Churn tracking is disabled: %s`, err.Error())
		return New(d, nil, nil, namespace), nil
	} else if err != nil {
		return nil, err
	}

	counters, err := aferofs.NewLocalFs(repo.GitDir())
	if err != nil {
		return nil, err
	}

	return New(d, repo, counters, namespace), nil
}

// New creates the store, a nil repo disables it.
// Gross counters are stored in the counters filesystem, usually the ".git" dir.
func New(d dependencies, repo Repository, counters filesystem.Fs, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultRefNamespace
	}
	s := &Store{
		logger:    d.Logger().WithComponent("churn"),
		clock:     d.Clock(),
		counters:  counters,
		namespace: namespace,
	}
	if repo != nil && counters != nil {
		s.repo = repo
	}
	return s
}

// Enabled is false outside a git repository.
func (s *Store) Enabled() bool {
	return s.repo != nil
}

// RefName of the task watermark.
func (s *Store) RefName(key string) string {
	return s.namespace + "/" + key
}

// Read returns the watermark commit, found is false if the task has no watermark yet.
// An unreadable ref is reported as missing.
func (s *Store) Read(ctx context.Context, key string) (hash string, found bool) {
	if !s.Enabled() {
		return "", false
	}
	hash, found, err := s.repo.ReadRef(ctx, s.RefName(key))
	if err != nil {
		s.logger.With(attribute.String("task.key", key)).Warnf(ctx, `Cannot read watermark, using the origin: %s`, err.Error())
		return "", false
	}
	return hash, found
}

// NetChurnSince returns the number of added plus removed lines between the watermark and the working tree,
// restricted to the patterns. Without a watermark, the root commit of the repository is the baseline.
// Errors are logged and reported as 0.
func (s *Store) NetChurnSince(ctx context.Context, key string, patterns []string) int64 {
	if !s.Enabled() {
		return 0
	}
	logger := s.logger.With(attribute.String("task.key", key))

	from, err := s.baseline(ctx, key)
	if err != nil {
		logger.Warnf(ctx, `Cannot resolve churn baseline: %s`, err.Error())
		return 0
	}

	to, err := s.repo.WorkingTree(ctx)
	if err != nil {
		logger.Warnf(ctx, `Cannot read working tree: %s`, err.Error())
		return 0
	}

	lines, err := s.repo.DiffLines(ctx, from, to, patterns)
	if err != nil {
		logger.Warnf(ctx, `Cannot count changed lines: %s`, err.Error())
		return 0
	}

	logger.Debugf(ctx, `Net churn since "%s": %d lines`, from, lines)
	return lines
}

// GrossChurnSince returns the gross churn counter, the counter is created at 0 if it does not exist.
func (s *Store) GrossChurnSince(ctx context.Context, key string) int64 {
	if !s.Enabled() {
		return 0
	}
	logger := s.logger.With(attribute.String("task.key", key))

	c, found, err := s.readCounter(key)
	if err != nil {
		logger.Warnf(ctx, `Gross churn counter is corrupted, starting from 0: %s`, err.Error())
	}
	if !found || err != nil {
		// Another process may have created the counter meanwhile, keep its value.
		c, err = s.writeCounter(ctx, key, func(c counter) counter { return c })
		if err != nil {
			logger.Warnf(ctx, `Cannot create gross churn counter: %s`, err.Error())
			return 0
		}
	}
	return c.Lines
}

// IncrementGross adds n written lines to the gross churn counter.
func (s *Store) IncrementGross(ctx context.Context, key string, n int64) error {
	if !s.Enabled() || n <= 0 {
		return nil
	}
	_, err := s.writeCounter(ctx, key, func(c counter) counter {
		c.Lines += n
		return c
	})
	return err
}

// Advance moves the watermark to the commit and resets the gross churn counter.
// It fails with ErrRegress if the commit is an ancestor of the current watermark,
// unless the watermark is a working tree snapshot, a snapshot is always replaced.
// Unrelated histories, for example after a rebase, are accepted.
func (s *Store) Advance(ctx context.Context, key, to string) error {
	if !s.Enabled() {
		return nil
	}
	logger := s.logger.With(attribute.String("task.key", key))

	if current, found := s.Read(ctx, key); found && current != to {
		regress, err := s.repo.IsAncestor(ctx, to, current)
		if err != nil {
			logger.Warnf(ctx, `Cannot compare "%s" with the current watermark "%s", overwriting: %s`, to, current, err.Error())
		} else if regress && !s.isSnapshot(ctx, current) {
			return errors.Wrapf(ErrRegress, `cannot advance watermark of "%s" to "%s": it is an ancestor of the current watermark "%s"`, key, to, current)
		}
	}

	if err := s.repo.UpdateRef(ctx, s.RefName(key), to); err != nil {
		return err
	}
	if err := s.resetCounter(ctx, key); err != nil {
		return err
	}

	logger.Debugf(ctx, `Watermark advanced to "%s".`, to)
	return nil
}

func (s *Store) isSnapshot(ctx context.Context, hash string) bool {
	ok, err := s.repo.IsSnapshot(ctx, hash)
	if err != nil {
		s.logger.Warnf(ctx, `Cannot load watermark "%s": %s`, hash, err.Error())
		return false
	}
	return ok
}

// AdvanceToHead moves the watermark to the current HEAD, see Advance.
func (s *Store) AdvanceToHead(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	head, err := s.repo.Head(ctx)
	if errors.Is(err, git.ErrNoCommits) {
		// Nothing to point to, the origin is the baseline.
		return s.resetCounter(ctx, key)
	} else if err != nil {
		return err
	}
	return s.Advance(ctx, key, head)
}

// SnapshotReset moves the watermark to a snapshot commit of the working tree, including uncommitted changes,
// and resets the gross churn counter. It bypasses the ancestry check.
func (s *Store) SnapshotReset(ctx context.Context, key string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	snapshot, err := s.repo.SnapshotWorkingTree(ctx)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateRef(ctx, s.RefName(key), snapshot); err != nil {
		return "", err
	}
	if err := s.resetCounter(ctx, key); err != nil {
		return "", err
	}

	s.logger.With(attribute.String("task.key", key)).Debugf(ctx, `Watermark reset to working tree snapshot "%s".`, snapshot)
	return snapshot, nil
}

// Reset removes the watermark and the gross churn counter, the task starts from the origin again.
func (s *Store) Reset(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteRef(ctx, s.RefName(key)); err != nil {
		return err
	}
	if err := s.counters.Remove(counterPath(key)); err != nil {
		return errors.Errorf(`cannot remove gross churn counter of "%s": %w`, key, err)
	}
	return nil
}

func (s *Store) baseline(ctx context.Context, key string) (string, error) {
	if hash, found := s.Read(ctx, key); found {
		return hash, nil
	}
	root, err := s.repo.RootCommit(ctx)
	if errors.Is(err, git.ErrNoCommits) {
		return git.EmptyTreeHash, nil
	}
	return root, err
}
