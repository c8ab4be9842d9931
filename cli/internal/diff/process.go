package diff

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoStagedChanges is returned when there are no files to describe.
	ErrNoStagedChanges = errors.New("no staged changes")
	// ErrAllFiltered is returned when every staged file is noise.
	ErrAllFiltered = errors.New("all staged changes were filtered as noise")
)

// OmitReason says why a file is not in Context.Included.
type OmitReason string

const (
	OmitNoise  OmitReason = "noise"
	OmitBudget OmitReason = "budget"
)

// IncludedFile is a file whose (possibly cut) diff goes into the prompt.
type IncludedFile struct {
	FileChange
	Category  Category
	Truncated bool
}

// OmittedFile is a file left out of the prompt body.
type OmittedFile struct {
	Path     string
	Kind     ChangeKind
	Added    int
	Removed  int
	Category Category
	Reason   OmitReason
}

// StatsOnly reports whether the file is still listed in the prompt with its
// line counts. Noise files are counted but not listed.
func (o OmittedFile) StatsOnly() bool {
	return o.Reason == OmitBudget
}

// Context is the processed, budgeted view of a change set.
type Context struct {
	Included   []IncludedFile
	Omitted    []OmittedFile
	TotalFiles int
	Budget     int
	Used       int // bytes of diff content emitted
}

// NoiseCount returns the number of files omitted as noise.
func (c *Context) NoiseCount() int {
	n := 0
	for _, o := range c.Omitted {
		if o.Reason == OmitNoise {
			n++
		}
	}
	return n
}

// Truncated reports whether any included file was cut or any file was
// dropped for budget.
func (c *Context) Truncated() bool {
	for _, f := range c.Included {
		if f.Truncated {
			return true
		}
	}
	for _, o := range c.Omitted {
		if o.Reason == OmitBudget {
			return true
		}
	}
	return false
}

// Options configures Process. Nil means default noise patterns only.
type Options struct {
	// ExcludePatterns are filepath.Match-style patterns treated as noise in
	// addition to the built-in list (e.g. "*.snap", "testdata/").
	ExcludePatterns []string
}

// Process filters noise, ranks the remaining files and packs their diffs into
// budget bytes. Every input file ends up in exactly one of Included or
// Omitted. The first ranked file is always included, cut to fit if needed.
func Process(changes []FileChange, budget int, opts *Options) (*Context, error) {
	if len(changes) == 0 {
		return nil, ErrNoStagedChanges
	}
	if budget <= 0 {
		return nil, fmt.Errorf("diff: budget must be positive, got %d", budget)
	}
	var extra []string
	if opts != nil {
		extra = opts.ExcludePatterns
	}

	ctx := &Context{TotalFiles: len(changes), Budget: budget}
	candidates := make([]IncludedFile, 0, len(changes))
	for _, f := range changes {
		cat := Classify(f.Path)
		if IsNoise(f, extra) {
			ctx.Omitted = append(ctx.Omitted, omitted(f, cat, OmitNoise))
			log.Debug().Str("path", f.Path).Msg("skipping noise file")
			continue
		}
		candidates = append(candidates, IncludedFile{FileChange: f, Category: cat})
	}
	if len(candidates) == 0 {
		return nil, ErrAllFiltered
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Category != candidates[j].Category {
			return candidates[i].Category < candidates[j].Category
		}
		return candidates[i].Path < candidates[j].Path
	})

	remaining := budget
	exhausted := false
	for _, c := range candidates {
		if exhausted {
			ctx.Omitted = append(ctx.Omitted, omitted(c.FileChange, c.Category, OmitBudget))
			continue
		}
		kept, used, cut := fitHunks(c.Hunks, remaining)
		if cut && len(kept) == 0 && len(ctx.Included) > 0 {
			exhausted = true
			ctx.Omitted = append(ctx.Omitted, omitted(c.FileChange, c.Category, OmitBudget))
			continue
		}
		remaining -= used
		c.Hunks = kept
		c.Truncated = cut
		ctx.Included = append(ctx.Included, c)
		if cut {
			exhausted = true
		}
	}
	ctx.Used = budget - remaining

	for _, o := range ctx.Omitted {
		if o.Reason == OmitBudget {
			log.Debug().Str("path", o.Path).Msg("diff omitted for budget")
		}
	}
	return ctx, nil
}

func omitted(f FileChange, cat Category, reason OmitReason) OmittedFile {
	return OmittedFile{
		Path:     f.Path,
		Kind:     f.Kind,
		Added:    f.Added,
		Removed:  f.Removed,
		Category: cat,
		Reason:   reason,
	}
}

// fitHunks keeps whole hunks while they fit in limit bytes, counting one
// separator byte per hunk. The first hunk that does not fit is cut at a line
// boundary and nothing after it is kept. used never exceeds limit.
func fitHunks(hunks []string, limit int) (kept []string, used int, cut bool) {
	for _, h := range hunks {
		cost := len(h) + 1
		if used+cost <= limit {
			kept = append(kept, h)
			used += cost
			continue
		}
		part := truncateLines(h, limit-used-1)
		if part != "" {
			kept = append(kept, part)
			used += len(part) + 1
		}
		return kept, used, true
	}
	return kept, used, false
}

// truncateLines returns the longest prefix of s made of whole lines whose
// length is at most limit bytes.
func truncateLines(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	end := strings.LastIndexByte(s[:limit+1], '\n')
	if end <= 0 {
		return ""
	}
	return s[:end]
}
