// Package diff turns the staged changes of a repository into a bounded,
// prioritized context for prompt building.
//
// # Reading
// Staged runs git diff --staged and parses it into one FileChange per file.
// Renames are detected (-M). Binary files produce a FileChange with Binary
// set and no hunks.
//
// # Filtering
// Lock files, minified bundles, generated code, build output and vendored
// directories are noise. Noise and binary files never reach the prompt; they
// are reported in Context.Omitted with reason "noise". Options.ExcludePatterns
// extends the default noise patterns.
//
// # Ranking and budget
// Remaining files are ranked source, config, test, docs (ties by path) and
// packed greedily into a byte budget. A file that does not fit is cut at a
// line boundary and marked truncated; once that happens the budget is spent
// and every later file is listed with its line counts only.
package diff

import (
	"context"
	"fmt"
	"strings"

	"cm/cli/internal/git"
)

// ChangeKind is how a file changed in the index.
type ChangeKind int

const (
	Modified ChangeKind = iota
	Added
	Deleted
	Renamed
)

// String returns the lowercase kind name.
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "modified"
	}
}

// FileChange is one file's staged change.
type FileChange struct {
	Path    string // path relative to repo root (new side)
	OldPath string // previous path for renames; empty otherwise
	Kind    ChangeKind
	Added   int // "+" lines across all hunks
	Removed int // "-" lines across all hunks
	Hunks   []string
	Binary  bool
}

// Content returns the hunks joined by newlines.
func (f FileChange) Content() string {
	return strings.Join(f.Hunks, "\n")
}

// Staged reads the staged changes of the repository at repoRoot. An empty
// index returns a nil slice and no error; git failures are returned.
func Staged(ctx context.Context, repoRoot string) ([]FileChange, error) {
	out, err := git.StagedDiff(ctx, repoRoot)
	if err != nil {
		return nil, err
	}
	changes, err := ParseUnifiedDiff(out)
	if err != nil {
		return nil, fmt.Errorf("parse staged diff: %w", err)
	}
	return changes, nil
}
