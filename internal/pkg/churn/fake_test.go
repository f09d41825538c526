package churn_test

import (
	"context"

	"github.com/keboola/devgate/internal/pkg/git"
)

// fakeRepository has no commits and an empty working tree.
type fakeRepository struct{}

func (r *fakeRepository) Head(context.Context) (string, error) {
	return "", git.ErrNoCommits
}

func (r *fakeRepository) RootCommit(context.Context) (string, error) {
	return "", git.ErrNoCommits
}

func (r *fakeRepository) ReadRef(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (r *fakeRepository) UpdateRef(context.Context, string, string) error {
	return nil
}

func (r *fakeRepository) DeleteRef(context.Context, string) error {
	return nil
}

func (r *fakeRepository) IsAncestor(context.Context, string, string) (bool, error) {
	return false, nil
}

func (r *fakeRepository) IsSnapshot(context.Context, string) (bool, error) {
	return false, nil
}

func (r *fakeRepository) WorkingTree(context.Context) (string, error) {
	return git.EmptyTreeHash, nil
}

func (r *fakeRepository) SnapshotWorkingTree(context.Context) (string, error) {
	return "", git.ErrNoCommits
}

func (r *fakeRepository) DiffLines(context.Context, string, string, []string) (int64, error) {
	return 0, nil
}
