package git

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

const snapshotMessage = "devgate: working tree snapshot"

// snapshotIdentity is used by commit-tree, the user may have no identity configured.
var snapshotIdentity = []string{
	"GIT_AUTHOR_NAME=devgate",
	"GIT_AUTHOR_EMAIL=devgate@localhost",
	"GIT_COMMITTER_NAME=devgate",
	"GIT_COMMITTER_EMAIL=devgate@localhost",
}

// WorkingTree writes a tree object of the current working tree state and returns its hash.
// Tracked, staged and untracked not ignored files are included.
// The user's index is not modified, a temporary copy of it is used instead.
func (r *Repository) WorkingTree(ctx context.Context) (string, error) {
	indexFile, cleanup, err := r.tempIndex()
	if err != nil {
		return "", err
	}
	defer cleanup()

	opts := cmdOptions{env: []string{"GIT_INDEX_FILE=" + indexFile}}
	if result, err := r.runGitCmd(ctx, opts, "add", "--all", "--", "."); err != nil {
		return "", errors.Errorf(`cannot stage working tree: %s`, errorMsg(result, err))
	}

	result, err := r.runGitCmd(ctx, opts, "write-tree")
	if err != nil {
		return "", errors.Errorf(`cannot write working tree: %s`, errorMsg(result, err))
	}
	return strings.TrimSpace(result.stdOut), nil
}

// SnapshotWorkingTree stores the current working tree state as a commit and returns its hash.
// The commit is not referenced by any branch, its parent is HEAD, if any.
func (r *Repository) SnapshotWorkingTree(ctx context.Context) (string, error) {
	tree, err := r.WorkingTree(ctx)
	if err != nil {
		return "", err
	}

	args := []string{"commit-tree", tree, "-m", snapshotMessage}
	if head, err := r.Head(ctx); err == nil {
		args = append(args, "-p", head)
	} else if !errors.Is(err, ErrNoCommits) {
		return "", err
	}

	result, err := r.runGitCmd(ctx, cmdOptions{env: snapshotIdentity}, args...)
	if err != nil {
		return "", errors.Errorf(`cannot commit working tree snapshot: %s`, errorMsg(result, err))
	}
	return strings.TrimSpace(result.stdOut), nil
}

// DiffLines returns the number of added plus removed lines between two tree-ish objects.
// Only paths matching at least one of the glob patterns are counted, no patterns means all paths.
// Binary files count zero lines.
func (r *Repository) DiffLines(ctx context.Context, from, to string, patterns []string) (int64, error) {
	args := []string{"-c", "core.quotepath=off", "diff", "--numstat", "--no-renames", "--no-ext-diff", "--no-color", from, to, "--"}
	args = append(args, pathspecs(patterns)...)

	result, err := r.runGitCmd(ctx, cmdOptions{}, args...)
	if err != nil {
		return 0, errors.Errorf(`cannot diff "%s" and "%s": %s`, from, to, errorMsg(result, err))
	}
	return parseNumStat(strings.NewReader(result.stdOut))
}

// tempIndex creates a copy of the user's index, so "git add" can reuse its stat cache.
func (r *Repository) tempIndex() (path string, cleanup func(), err error) {
	path = filepath.Join(r.gitDir, "devgate-index-"+gonanoid.Must(10))
	cleanup = func() {
		_ = os.Remove(path)
		_ = os.Remove(path + ".lock")
	}

	src, err := os.Open(filepath.Join(r.gitDir, "index"))
	if errors.Is(err, os.ErrNotExist) {
		return path, cleanup, nil
	} else if err != nil {
		return "", nil, errors.Errorf(`cannot open git index: %w`, err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return "", nil, errors.Errorf(`cannot create temporary git index: %w`, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		cleanup()
		return "", nil, errors.Errorf(`cannot copy git index: %w`, err)
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, errors.Errorf(`cannot copy git index: %w`, err)
	}
	return path, cleanup, nil
}

func pathspecs(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, ":(glob)"+strings.TrimPrefix(p, "./"))
	}
	return out
}

// parseNumStat sums "<added>\t<removed>\t<path>" lines, binary files are reported as "-\t-\t<path>".
func parseNumStat(r io.Reader) (int64, error) {
	var total int64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			return 0, errors.Errorf(`unexpected numstat line %q`, line)
		}
		if fields[0] == "-" && fields[1] == "-" {
			continue
		}
		for _, f := range fields[:2] {
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return 0, errors.Errorf(`unexpected numstat line %q: %w`, line, err)
			}
			total += n
		}
	}
	return total, scanner.Err()
}
