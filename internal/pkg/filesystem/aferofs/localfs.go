package aferofs

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

const (
	lockSuffix     = ".lock"
	lockRetryDelay = 10 * time.Millisecond
	// LockTimeout limits waiting for a lock held by another process.
	LockTimeout = 5 * time.Second
)

// NewLocalFs creates the filesystem abstraction of a local directory.
func NewLocalFs(basePath string) (*Fs, error) {
	if !filepath.IsAbs(basePath) {
		return nil, errors.Errorf(`base path "%s" must be absolute`, basePath)
	}
	return &Fs{
		apiName:  "local",
		backend:  afero.NewBasePathFs(afero.NewOsFs(), basePath),
		basePath: basePath,
		locker:   &fileLocker{basePath: basePath},
	}, nil
}

// fileLocker uses OS file locks, so the lock is shared between processes.
type fileLocker struct {
	basePath string
}

func (l *fileLocker) lock(ctx context.Context, path string) (func(), error) {
	lockPath := filepath.Join(l.basePath, filesystem.FromSlash(path)+lockSuffix)
	if err := afero.NewOsFs().MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, errors.Errorf(`cannot create lock dir: %w`, err)
	}

	ctx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	fileLock := flock.New(lockPath)
	if locked, err := fileLock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return nil, errors.Errorf(`cannot acquire lock "%s": %w`, lockPath, err)
	} else if !locked {
		return nil, errors.Errorf(`cannot acquire lock "%s": already locked`, lockPath)
	}

	return func() { _ = fileLock.Unlock() }, nil
}
