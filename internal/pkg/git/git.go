// nolint: forbidigo
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gogit "github.com/go-git/go-git/v5"
	"github.com/sasha-s/go-deadlock"
	"go.opentelemetry.io/otel/attribute"

	"github.com/keboola/devgate/internal/pkg/log"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// EmptyTreeHash is the well-known hash of an empty tree, git accepts it even if it is not stored.
const EmptyTreeHash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

var (
	ErrGitUnavailable = errors.New("git command is not available")
	ErrNotRepository  = errors.New("not a git repository")
	// ErrNoCommits is returned if HEAD points to an unborn branch.
	ErrNoCommits = errors.New("repository has no commits")
)

// Repository provides the queries needed to measure churn in a local working tree.
// Refs and ancestry are read by go-git, diffs and writes are delegated to the git binary,
// so git's own lock files protect concurrent processes.
type Repository struct {
	rootDir string
	gitDir  string
	logger  log.Logger
	// lock serializes access to the go-git repository, it is not safe for concurrent use.
	lock *deadlock.Mutex
	repo *gogit.Repository
}

type cmdResult struct {
	exitCode int
	stdOut   string
	stdErr   string
}

type cmdOptions struct {
	env   []string
	retry bool
}

func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepository is a cheap check, it does not require the git binary.
func IsRepository(dir string) bool {
	_, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	return err == nil
}

// FindRoot returns the top level directory of the working tree containing the dir.
// The found flag is false outside a repository or in a bare repository.
func FindRoot(dir string) (root string, found bool) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	if err != nil {
		return "", false
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", false
	}
	return wt.Filesystem.Root(), true
}

// Open the repository containing the dir.
func Open(ctx context.Context, logger log.Logger, dir string) (*Repository, error) {
	if !Available() {
		return nil, ErrGitUnavailable
	}

	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, ErrNotRepository
	} else if err != nil {
		return nil, errors.Wrapf(ErrNotRepository, `cannot open git repository "%s": %s`, dir, err.Error())
	}

	r := &Repository{repo: repo, lock: &deadlock.Mutex{}, logger: logger.WithComponent("git"), rootDir: dir}

	result, err := r.runGitCmd(ctx, cmdOptions{}, "rev-parse", "--show-toplevel", "--absolute-git-dir")
	if err != nil {
		return nil, errors.Wrapf(ErrNotRepository, `cannot resolve git dirs: %s`, errorMsg(result, err))
	}
	lines := strings.Split(strings.TrimSpace(result.stdOut), "\n")
	if len(lines) != 2 {
		return nil, errors.Wrapf(ErrNotRepository, `unexpected output of "git rev-parse": %q`, result.stdOut)
	}
	r.rootDir, r.gitDir = filepath.Clean(lines[0]), filepath.Clean(lines[1])
	r.logger = r.logger.With(attribute.String("git.root", r.rootDir))
	return r, nil
}

// RootDir is the top level directory of the working tree.
func (r *Repository) RootDir() string {
	return r.rootDir
}

// GitDir is the absolute path of the ".git" directory of the working tree.
func (r *Repository) GitDir() string {
	return r.gitDir
}

func (r *Repository) runGitCmd(ctx context.Context, opts cmdOptions, args ...string) (cmdResult, error) {
	if !opts.retry {
		return r.doRunGitCmd(ctx, opts, args...)
	}

	retry := newBackoff()
	for {
		result, err := r.doRunGitCmd(ctx, opts, args...)
		if result.exitCode == 0 && err == nil {
			return result, err
		}
		delay := retry.NextBackOff()
		if delay == backoff.Stop {
			return result, err
		}
		select {
		case <-ctx.Done():
			return result, err
		case <-time.After(delay):
		}
	}
}

func (r *Repository) doRunGitCmd(ctx context.Context, opts cmdOptions, args ...string) (cmdResult, error) {
	r.logger.Debugf(ctx, `Running git command: git %s`, strings.Join(args, " "))

	var stdOutBuffer bytes.Buffer
	var stdErrBuffer bytes.Buffer

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.rootDir
	cmd.Stdout = &stdOutBuffer
	cmd.Stderr = &stdErrBuffer
	cmd.Env = os.Environ()
	// Our commands must not take index.lock of the user's index.
	cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0", "GIT_OPTIONAL_LOCKS=0")
	cmd.Env = append(cmd.Env, opts.env...)

	err := cmd.Run()
	result := cmdResult{}
	result.stdOut = stdOutBuffer.String()
	result.stdErr = stdErrBuffer.String()
	if err != nil {
		// nolint: errorlint
		if exitError, ok := err.(*exec.ExitError); ok {
			result.exitCode = exitError.ExitCode()
		} else {
			result.exitCode = -1
		}
	}

	return result, err
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 1 * time.Second
	b.Reset()
	return b
}

func errorMsg(result cmdResult, err error) string {
	return fmt.Sprintf("%s\n\nstderr:\n%s\n\nstdout:\n%s", err.Error(), strings.TrimSpace(result.stdErr), strings.TrimSpace(result.stdOut))
}
