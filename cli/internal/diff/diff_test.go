package diff

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@cm.local")
	runGit(t, dir, "config", "user.name", "Test")
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "old.txt", "old\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "init")
	return dir
}

func TestStaged_emptyIndex(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	got, err := Staged(context.Background(), repo)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStaged_mixedChanges(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	writeFile(t, repo, "main.go", "package main\n\nfunc main() { println(1) }\n")
	writeFile(t, repo, "pkg/util.go", "package pkg\n")
	writeFile(t, repo, "unstaged.go", "package main\n")
	runGit(t, repo, "rm", "-q", "old.txt")
	runGit(t, repo, "add", "main.go", "pkg/util.go")

	got, err := Staged(context.Background(), repo)
	require.NoError(t, err)
	byPath := make(map[string]FileChange, len(got))
	for _, f := range got {
		byPath[f.Path] = f
	}
	require.Len(t, byPath, 3)
	assert.Equal(t, Modified, byPath["main.go"].Kind)
	assert.Equal(t, 1, byPath["main.go"].Added)
	assert.Equal(t, 1, byPath["main.go"].Removed)
	assert.Equal(t, Added, byPath["pkg/util.go"].Kind)
	assert.Equal(t, Deleted, byPath["old.txt"].Kind)
	_, hasUnstaged := byPath["unstaged.go"]
	assert.False(t, hasUnstaged)
}

func TestStaged_notARepo(t *testing.T) {
	t.Parallel()
	_, err := Staged(context.Background(), t.TempDir())
	require.Error(t, err)
}

func TestStaged_thenProcess_noStaged(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	changes, err := Staged(context.Background(), repo)
	require.NoError(t, err)
	_, err = Process(changes, 1000, nil)
	assert.True(t, errors.Is(err, ErrNoStagedChanges))
}
