package git

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// Head returns hash of the commit checked out in the working tree.
func (r *Repository) Head(_ context.Context) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", ErrNoCommits
	} else if err != nil {
		return "", errors.Errorf(`cannot resolve HEAD: %w`, err)
	}
	return ref.Hash().String(), nil
}

// RootCommit returns the oldest parentless commit reachable from HEAD.
func (r *Repository) RootCommit(ctx context.Context) (string, error) {
	if _, err := r.Head(ctx); err != nil {
		return "", err
	}

	result, err := r.runGitCmd(ctx, cmdOptions{}, "rev-list", "--max-parents=0", "HEAD")
	if err != nil {
		return "", errors.Errorf(`cannot find root commit: %s`, errorMsg(result, err))
	}

	// Unrelated histories may be merged, so there can be more roots.
	lines := strings.Fields(result.stdOut)
	if len(lines) == 0 {
		return "", ErrNoCommits
	}
	return lines[len(lines)-1], nil
}

// ReadRef returns the commit hash stored in the ref, found is false if the ref does not exist.
func (r *Repository) ReadRef(_ context.Context, name string) (hash string, found bool, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ref, err := r.repo.Reference(plumbing.ReferenceName(name), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, errors.Errorf(`cannot read ref "%s": %w`, name, err)
	}
	return ref.Hash().String(), true, nil
}

// UpdateRef points the ref to the commit, the ref is created if it does not exist.
func (r *Repository) UpdateRef(ctx context.Context, name, hash string) error {
	if !plumbing.IsHash(hash) {
		return errors.Errorf(`cannot update ref "%s": "%s" is not a commit hash`, name, hash)
	}
	result, err := r.runGitCmd(ctx, cmdOptions{retry: true}, "update-ref", "-m", "devgate: watermark", name, hash)
	if err != nil {
		return errors.Errorf(`cannot update ref "%s": %s`, name, errorMsg(result, err))
	}
	return nil
}

func (r *Repository) DeleteRef(ctx context.Context, name string) error {
	if _, found, err := r.ReadRef(ctx, name); err != nil {
		return err
	} else if !found {
		return nil
	}
	result, err := r.runGitCmd(ctx, cmdOptions{retry: true}, "update-ref", "-d", name)
	if err != nil {
		return errors.Errorf(`cannot delete ref "%s": %s`, name, errorMsg(result, err))
	}
	return nil
}

// IsAncestor returns true if the ancestor commit is reachable from the descendant commit.
// A commit is an ancestor of itself.
func (r *Repository) IsAncestor(_ context.Context, ancestor, descendant string) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	a, err := r.commit(ancestor)
	if err != nil {
		return false, err
	}
	d, err := r.commit(descendant)
	if err != nil {
		return false, err
	}

	ok, err := a.IsAncestor(d)
	if err != nil {
		return false, errors.Errorf(`cannot check ancestry of "%s" and "%s": %w`, ancestor, descendant, err)
	}
	return ok, nil
}

// IsSnapshot returns true if the commit was created by SnapshotWorkingTree.
func (r *Repository) IsSnapshot(_ context.Context, hash string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, err := r.commit(hash)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(c.Message) == snapshotMessage, nil
}

func (r *Repository) commit(hash string) (*object.Commit, error) {
	if !plumbing.IsHash(hash) {
		return nil, errors.Errorf(`"%s" is not a commit hash`, hash)
	}
	c, err := r.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, errors.Errorf(`cannot load commit "%s": %w`, hash, err)
	}
	return c, nil
}
