package git_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/devgate/internal/pkg/git"
	"github.com/keboola/devgate/internal/pkg/git/gittest"
	"github.com/keboola/devgate/internal/pkg/log"
)

func TestOpen_NotRepository(t *testing.T) {
	t.Parallel()
	if !git.Available() {
		t.Skip("git is not installed")
	}

	dir := t.TempDir()
	assert.False(t, git.IsRepository(dir))

	_, err := git.Open(context.Background(), log.NewNopLogger(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrNotRepository)
}

func TestOpen_Subdir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := gittest.NewRepo(t)
	r.WriteFile("sub/dir/file.txt", "foo\n")
	r.Commit("initial")

	repo, err := git.Open(ctx, log.NewNopLogger(), r.Dir+"/sub/dir")
	require.NoError(t, err)
	assert.Equal(t, r.Dir, repo.RootDir())
	assert.Equal(t, r.Dir+"/.git", repo.GitDir())
	assert.True(t, git.IsRepository(r.Dir+"/sub"))
}

func TestRepository_Head_NoCommits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := gittest.NewRepo(t)

	repo, err := git.Open(ctx, log.NewNopLogger(), r.Dir)
	require.NoError(t, err)

	_, err = repo.Head(ctx)
	assert.ErrorIs(t, err, git.ErrNoCommits)
	_, err = repo.RootCommit(ctx)
	assert.ErrorIs(t, err, git.ErrNoCommits)
}

func TestRepository_Refs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := gittest.NewRepo(t)
	r.WriteFile("a.txt", "a\n")
	first := r.Commit("first")
	r.WriteFile("a.txt", "b\n")
	second := r.Commit("second")

	repo, err := git.Open(ctx, log.NewNopLogger(), r.Dir)
	require.NoError(t, err)

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, head)

	root, err := repo.RootCommit(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, root)

	const name = "refs/devgate/watermarks/lint"
	_, found, err := repo.ReadRef(ctx, name)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.UpdateRef(ctx, name, first))
	hash, found, err := repo.ReadRef(ctx, name)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, first, hash)
	assert.Equal(t, first, r.Git("rev-parse", name))

	require.NoError(t, repo.UpdateRef(ctx, name, second))
	hash, _, err = repo.ReadRef(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, second, hash)

	assert.Error(t, repo.UpdateRef(ctx, name, "not-a-hash"))

	require.NoError(t, repo.DeleteRef(ctx, name))
	_, found, err = repo.ReadRef(ctx, name)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting a missing ref is a no-op
	require.NoError(t, repo.DeleteRef(ctx, name))
}

func TestRepository_IsAncestor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := gittest.NewRepo(t)
	r.WriteFile("a.txt", "a\n")
	first := r.Commit("first")
	r.WriteFile("a.txt", "b\n")
	second := r.Commit("second")

	// Side branch from the first commit
	r.Git("checkout", "--quiet", "-b", "side", first)
	r.WriteFile("b.txt", "b\n")
	side := r.Commit("side")

	repo, err := git.Open(ctx, log.NewNopLogger(), r.Dir)
	require.NoError(t, err)

	cases := []struct {
		ancestor, descendant string
		expected             bool
	}{
		{first, second, true},
		{second, first, false},
		{first, first, true},
		{first, side, true},
		{second, side, false},
		{side, second, false},
	}
	for _, c := range cases {
		ok, err := repo.IsAncestor(ctx, c.ancestor, c.descendant)
		require.NoError(t, err)
		assert.Equal(t, c.expected, ok, "%s -> %s", c.ancestor, c.descendant)
	}

	_, err = repo.IsAncestor(ctx, strings.Repeat("1", 40), second)
	assert.Error(t, err)
}

func TestRepository_DiffLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := gittest.NewRepo(t)
	r.WriteLines("src/main.go", "line", 10)
	r.WriteLines("docs/readme.md", "doc", 4)
	base := r.Commit("base")

	repo, err := git.Open(ctx, log.NewNopLogger(), r.Dir)
	require.NoError(t, err)

	// Clean working tree
	tree, err := repo.WorkingTree(ctx)
	require.NoError(t, err)
	lines, err := repo.DiffLines(ctx, base, tree, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), lines)

	// 5 lines appended to a tracked file, 1 line replaced, untracked and binary files
	r.WriteFile("src/main.go", strings.Replace(gittest.Lines("line", 15), "line 3\n", "changed\n", 1))
	r.WriteLines("src/new.go", "new", 3)
	r.WriteFile("src/image.bin", "\x00\x01\x02\n\x00")
	r.Git("add", "src/image.bin")
	r.Remove("docs/readme.md")

	tree, err = repo.WorkingTree(ctx)
	require.NoError(t, err)

	lines, err = repo.DiffLines(ctx, base, tree, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5+2+3+4), lines)

	lines, err = repo.DiffLines(ctx, base, tree, []string{"src/**/*.go"})
	require.NoError(t, err)
	assert.Equal(t, int64(5+2+3), lines)

	lines, err = repo.DiffLines(ctx, base, tree, []string{"./docs/*.md", "*.txt"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), lines)

	lines, err = repo.DiffLines(ctx, git.EmptyTreeHash, base, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(14), lines)
}

func TestRepository_SnapshotWorkingTree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := gittest.NewRepo(t)
	r.WriteLines("main.go", "line", 10)
	head := r.Commit("base")

	r.WriteLines("main.go", "line", 20)
	r.WriteLines("untracked.go", "new", 7)
	statusBefore := r.Git("status", "--porcelain")

	repo, err := git.Open(ctx, log.NewNopLogger(), r.Dir)
	require.NoError(t, err)

	snapshot, err := repo.SnapshotWorkingTree(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, head, snapshot)

	// The snapshot is a child of HEAD, HEAD and index are untouched
	ok, err := repo.IsAncestor(ctx, head, snapshot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, head, r.Head())
	assert.Equal(t, statusBefore, r.Git("status", "--porcelain"))

	// The snapshot contains uncommitted and untracked changes
	tree, err := repo.WorkingTree(ctx)
	require.NoError(t, err)
	lines, err := repo.DiffLines(ctx, snapshot, tree, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), lines)

	lines, err = repo.DiffLines(ctx, head, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(17), lines)

	// Only the snapshot is recognized as a snapshot
	ok, err = repo.IsSnapshot(ctx, snapshot)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsSnapshot(ctx, head)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_SnapshotWorkingTree_NoCommits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := gittest.NewRepo(t)
	r.WriteLines("main.go", "line", 3)

	repo, err := git.Open(ctx, log.NewNopLogger(), r.Dir)
	require.NoError(t, err)

	snapshot, err := repo.SnapshotWorkingTree(ctx)
	require.NoError(t, err)

	lines, err := repo.DiffLines(ctx, git.EmptyTreeHash, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), lines)
}

func TestFindRoot(t *testing.T) {
	t.Parallel()
	r := gittest.NewRepo(t)
	r.WriteFile("sub/file.txt", "foo\n")

	root, found := git.FindRoot(r.Dir + "/sub")
	assert.True(t, found)
	assert.Equal(t, r.Dir, root)

	_, found = git.FindRoot(t.TempDir())
	assert.False(t, found)
}
