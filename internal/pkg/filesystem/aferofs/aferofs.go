// Package aferofs implements filesystem.Fs on top of the afero library.
package aferofs

import (
	"context"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// gitDir is never matched by Glob.
const gitDir = ".git"

type locker interface {
	lock(ctx context.Context, path string) (func(), error)
}

// Fs - filesystem abstraction implemented by the afero library.
type Fs struct {
	apiName  string
	backend  afero.Fs
	basePath string
	locker   locker
	ignored  []string
}

// WithIgnored returns a copy of the filesystem, Glob never matches files in the dirs.
func (f *Fs) WithIgnored(dirs ...string) *Fs {
	out := *f
	out.ignored = append([]string(nil), f.ignored...)
	for _, dir := range dirs {
		if dir = path.Clean(filesystem.ToSlash(dir)); dir != "." {
			out.ignored = append(out.ignored, dir)
		}
	}
	return &out
}

func (f *Fs) isIgnored(match string) bool {
	for _, dir := range append([]string{gitDir}, f.ignored...) {
		if match == dir || strings.HasPrefix(match, dir+"/") {
			return true
		}
	}
	return false
}

func (f *Fs) ApiName() string {
	return f.apiName
}

func (f *Fs) BasePath() string {
	return f.basePath
}

// Backend returns the underlying afero filesystem.
func (f *Fs) Backend() afero.Fs {
	return f.backend
}

func (f *Fs) Stat(path string) (filesystem.FileInfo, error) {
	return f.backend.Stat(filesystem.FromSlash(path))
}

func (f *Fs) Exists(path string) bool {
	_, err := f.Stat(path)
	return err == nil
}

func (f *Fs) IsFile(path string) bool {
	info, err := f.Stat(path)
	return err == nil && !info.IsDir()
}

func (f *Fs) IsDir(path string) bool {
	info, err := f.Stat(path)
	return err == nil && info.IsDir()
}

func (f *Fs) Mkdir(path string) error {
	return f.backend.MkdirAll(filesystem.FromSlash(path), 0o755)
}

func (f *Fs) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(f.backend, filesystem.FromSlash(path))
}

func (f *Fs) WriteFileAtomic(path string, content []byte) (err error) {
	dir := filesystem.Dir(path)
	if err := f.Mkdir(dir); err != nil {
		return errors.Errorf(`cannot create dir "%s": %w`, dir, err)
	}

	tmp, err := afero.TempFile(f.backend, filesystem.FromSlash(dir), filesystem.Base(path)+".tmp.*")
	if err != nil {
		return errors.Errorf(`cannot create temp file for "%s": %w`, path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = f.backend.Remove(tmpName)
		}
	}()

	if _, err := io.WriteString(tmp, string(content)); err != nil {
		return errors.Errorf(`cannot write "%s": %w`, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return errors.Errorf(`cannot sync "%s": %w`, path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Errorf(`cannot close "%s": %w`, path, err)
	}
	if err := f.backend.Rename(tmpName, filesystem.FromSlash(path)); err != nil {
		return errors.Errorf(`cannot rename temp file to "%s": %w`, path, err)
	}
	committed = true
	return nil
}

func (f *Fs) Remove(path string) error {
	err := f.backend.Remove(filesystem.FromSlash(path))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *Fs) Chtimes(path string, atime, mtime time.Time) error {
	return f.backend.Chtimes(filesystem.FromSlash(path), atime, mtime)
}

func (f *Fs) Glob(pattern string) ([]string, error) {
	pattern = filesystem.NormalizePattern(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.Errorf(`pattern "%s" is not valid`, pattern)
	}
	matches, err := doublestar.Glob(afero.NewIOFS(f.backend), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}

	out := matches[:0]
	for _, match := range matches {
		if !f.isIgnored(match) {
			out = append(out, match)
		}
	}
	return out, nil
}

func (f *Fs) LatestModTime(patterns []string) (latest time.Time, found bool, err error) {
	for _, pattern := range patterns {
		matches, err := f.Glob(pattern)
		if err != nil {
			return time.Time{}, false, err
		}
		for _, match := range matches {
			info, err := f.Stat(match)
			if err != nil {
				// The file has been removed in the meantime.
				continue
			}
			if !found || info.ModTime().After(latest) {
				latest = info.ModTime()
				found = true
			}
		}
	}
	return latest, found, nil
}

func (f *Fs) Lock(ctx context.Context, path string) (func(), error) {
	return f.locker.lock(ctx, path)
}
