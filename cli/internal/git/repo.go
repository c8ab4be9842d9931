// Package git runs the few git commands cm needs: repository discovery and
// reading the staged diff. Commands run with a minimal environment so user
// pagers, external diff drivers and credential prompts never interfere.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"cm/cli/internal/erruser"
)

// RepoRoot returns the absolute path of the git repository root containing dir.
// Runs "git rev-parse --show-toplevel" with Dir=dir.
func RepoRoot(dir string) (string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", erruser.WithHint("Git is not installed or not on PATH.", "Install git and retry.", err)
	}
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	if err != nil {
		return "", erruser.New("This directory is not inside a Git repository.", err)
	}
	root := strings.TrimSpace(string(out))
	return filepath.Abs(root)
}

// StagedDiff returns the unified diff of the index against HEAD for the
// repository at repoRoot. Renames are detected. An empty string means nothing
// is staged; a failing git command is always an error.
func StagedDiff(ctx context.Context, repoRoot string) (string, error) {
	if repoRoot == "" {
		return "", errors.New("git: repoRoot required")
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "--staged", "--no-color", "--no-ext-diff", "-M")
	cmd.Dir = repoRoot
	cmd.Env = minimalEnv()
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", erruser.New("Could not read staged changes.",
			fmt.Errorf("git diff --staged: %w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return string(out), nil
}

// Version returns the output of "git --version", trimmed.
func Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "--version")
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git --version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func minimalEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat",
	}
	if home := os.Getenv("HOME"); home != "" {
		env = append(env, "HOME="+home)
	} else if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			env = append(env, "HOME="+profile)
		}
	}
	return env
}
