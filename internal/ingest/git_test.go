package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	writeTree(t, dir, files)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name := range files {
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, hash.String()
}

func TestCloneRepository(t *testing.T) {
	src, commit := initRepo(t, map[string]string{
		"README.md":      "hello",
		"docs/guide.txt": "guide",
	})
	dst := filepath.Join(t.TempDir(), "checkout")

	co, err := CloneRepository(context.Background(), src, dst, CloneOptions{})
	require.NoError(t, err)
	assert.Equal(t, commit, co.Commit)
	assert.Equal(t, dst, co.Dir)
	assert.NotEmpty(t, co.Branch)

	raw, err := os.ReadFile(filepath.Join(dst, "docs", "guide.txt"))
	require.NoError(t, err)
	assert.Equal(t, "guide", string(raw))

	ing := newRecordingIngester()
	report, err := NewBatch(ing, nil, nil).Run(context.Background(), co.Dir, Options{SourcePrefix: "git:example"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, []string{"git:example/README.md", "git:example/docs/guide.txt"}, ing.sources())
}

func TestCloneRepository_Errors(t *testing.T) {
	_, err := CloneRepository(context.Background(), "", t.TempDir(), CloneOptions{})
	assert.Error(t, err)

	_, err = CloneRepository(context.Background(), filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x"), CloneOptions{})
	assert.Error(t, err)
}
