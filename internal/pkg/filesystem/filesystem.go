// Package filesystem defines the filesystem abstraction used by the gate.
// All paths are relative to the base path of the filesystem and use forward slashes.
package filesystem

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"time"
)

// MetadataDir is the default project-local state directory.
const MetadataDir = ".devgate"

type FileInfo = fs.FileInfo

// Fs - filesystem interface.
type Fs interface {
	ApiName() string // name of the used implementation, for example local, memory, ...
	BasePath() string
	Stat(path string) (FileInfo, error)
	Exists(path string) bool
	IsFile(path string) bool
	IsDir(path string) bool
	Mkdir(path string) error
	ReadFile(path string) ([]byte, error)
	// WriteFileAtomic writes content to a temp file and renames it, so a reader never sees a half-written file.
	WriteFileAtomic(path string, content []byte) error
	Remove(path string) error
	Chtimes(path string, atime, mtime time.Time) error
	// Glob returns files matching the pattern, "**" matches any number of directories.
	Glob(pattern string) ([]string, error)
	// LatestModTime returns the newest modification time of files matching any of the patterns.
	// The found flag is false, if no file matches.
	LatestModTime(patterns []string) (latest time.Time, found bool, err error)
	// Lock acquires an exclusive lock for the path, it is used to serialize read-modify-write cycles
	// of concurrent processes. The lock is released by the returned function.
	Lock(ctx context.Context, path string) (unlock func(), err error)
}

// Join joins any number of path elements into a single slash separated path.
func Join(elem ...string) string {
	return path.Join(elem...)
}

// Dir returns all but the last element of path.
func Dir(p string) string {
	return path.Dir(p)
}

// Base returns the last element of path.
func Base(p string) string {
	return path.Base(p)
}

// ToSlash converts an OS path to the internal representation.
func ToSlash(p string) string {
	return filepath.ToSlash(p)
}

// FromSlash converts an internal path to the OS representation.
func FromSlash(p string) string {
	return filepath.FromSlash(p)
}

// Rel returns path relative to the base, both paths must be absolute or both relative.
func Rel(base, p string) (string, error) {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return "", err
	}
	return ToSlash(rel), nil
}
