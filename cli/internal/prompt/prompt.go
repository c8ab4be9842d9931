// Package prompt builds the instruction text sent to the model from a
// processed diff context and the user's directives. Build is pure: the same
// Request always yields the same string.
package prompt

import (
	"fmt"
	"strings"

	"cm/cli/internal/commit"
	"cm/cli/internal/diff"
)

// SystemPrompt is sent as the provider's system instruction for every call.
const SystemPrompt = `You are a senior software engineer writing git commit messages for a busy team. Commit messages are documentation for the next developer who runs git log at 2am.

The diff shows what changed. Your message explains the purpose of the change.

Rules:
- Identify the primary purpose of the change; there is usually one.
- Write the subject so it completes "If applied, this commit will ...".
- Use specific verbs. Never "Update", "Change", "Modify" or "Fix stuff".
- Bullets explain impact or non-obvious details; never restate the subject.
- Output only the commit message: no markdown, no code fences, no quotes, no preamble, no explanation after it.`

// Request is everything Build needs to describe one commit message.
type Request struct {
	Context *diff.Context
	// Hint is free-form developer context; empty means none.
	Hint string
	// Type forces the conventional type; empty lets the model choose.
	Type commit.Type
	// Ticket is an issue id such as "PROJ-123"; empty means none.
	Ticket       string
	TicketPrefix string
	Style        commit.MessageStyle
	IncludeBody  bool
	// MaxSubjectLength is the subject ceiling in characters.
	MaxSubjectLength int
	// OptionCount is how many alternatives the user asked for (1-4) and
	// Option is the zero-based index of the one being requested.
	OptionCount int
	Option      int
}

// optionFocus gives each alternative a distinct angle so options differ.
var optionFocus = []string{
	"the technical change: what was done to the code and where",
	"the user or business impact: why the change matters",
	"the affected component and its new behavior, in the fewest words",
	"the problem that existed before this change and how it is resolved",
}

// Build renders the user prompt for req.
func Build(req Request) string {
	sections := []string{
		formatSection(req),
		examplesSection(req),
		ChangesSection(req.Context),
		constraintsSection(req),
		thinkingSection(req),
		instructionsSection(req),
	}
	var nonEmpty []string
	for _, s := range sections {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func formatSection(req Request) string {
	var b strings.Builder
	b.WriteString("<format>\n")
	if req.Style.Typed() {
		fmt.Fprintf(&b, "Subject line: type(scope): description, imperative mood, at most %d characters, no trailing period.\n", req.MaxSubjectLength)
		b.WriteString("Scope is one short word naming the module, feature area or component (auth, api, config).\n")
		if req.Type != "" {
			fmt.Fprintf(&b, "Use type %q for this commit.\n", string(req.Type))
		} else {
			b.WriteString("Choose the most appropriate type:\n")
			for _, ti := range commit.Types {
				fmt.Fprintf(&b, "  - %s: %s\n", ti.Type, ti.Description)
			}
			b.WriteString("Append ! after the type or scope for breaking changes.\n")
		}
	} else {
		fmt.Fprintf(&b, "Subject line: a plain sentence in imperative mood, at most %d characters, no type prefix, no trailing period.\n", req.MaxSubjectLength)
	}
	if req.IncludeBody {
		b.WriteString("\nAfter the subject, a blank line, then bullets starting with \"- \".\n")
		b.WriteString(bulletGuidance(req))
		b.WriteString("\nEach bullet is one complete thought of 10-20 words that names the file, component or function involved.\n")
		if req.Style == commit.Detailed {
			b.WriteString("Bullets first describe what changed. The last one or two are rationale bullets that explain why: the problem it solves, the constraint it meets or the trade-off it accepts.\n")
		}
	} else {
		b.WriteString("\nOutput the subject line only. No body, no bullets.\n")
	}
	b.WriteString("</format>")
	return b.String()
}

// bulletGuidance scales the expected bullet count with the number of
// meaningful files in the change.
func bulletGuidance(req Request) string {
	fc := 0
	if req.Context != nil {
		fc = req.Context.TotalFiles - req.Context.NoiseCount()
	}
	low, high := 1, 2
	switch {
	case fc >= 15:
		low, high = 5, 6
	case fc >= 8:
		low, high = 4, 5
	case fc >= 4:
		low, high = 3, 4
	}
	if req.Style == commit.Detailed {
		low++
		high++
	}
	return fmt.Sprintf("Write %d-%d bullets for this change (%d files).", low, high, fc)
}

func examplesSection(req Request) string {
	var ex []string
	switch {
	case !req.Style.Typed() && req.IncludeBody:
		ex = []string{
			"Handle expired tokens without crashing\n\n- Return 401 with a clear message from AuthMiddleware instead of panicking",
			"Add rate limiting to the login endpoint\n\n- Allow 5 attempts per minute per IP in LoginHandler\n- Respond 429 with a Retry-After header when exceeded",
		}
	case !req.Style.Typed():
		ex = []string{
			"Handle expired tokens without crashing",
			"Add rate limiting to the login endpoint",
		}
	case req.Style == commit.Detailed && req.IncludeBody:
		ex = []string{
			"fix(auth): handle expired token gracefully\n\n- Return 401 with a clear message from AuthMiddleware instead of panicking\n- Expired sessions were crashing the worker and dropping unrelated requests",
			"refactor(db): extract query builders into own module\n\n- Move complex queries from UserService into QueryBuilder\n- Remove duplication across four service files\n- Query logic could not be tested without a live database; it now can be tested in isolation",
		}
	case req.IncludeBody:
		ex = []string{
			"fix(auth): handle expired token gracefully\n\n- Return 401 with a clear message instead of crashing",
			"feat(api): add rate limiting to login endpoint\n\n- Limit to 5 attempts per minute per IP\n- Return 429 with a Retry-After header when exceeded",
			"refactor(db): extract query builders into own module\n\n- Move complex queries from UserService into QueryBuilder\n- Remove duplication across four service files\n- Make query logic testable in isolation",
		}
	default:
		ex = []string{
			"fix(auth): handle expired token gracefully",
			"feat(api): add rate limiting to login endpoint",
			"chore(deps): bump lodash to 4.17.21",
		}
	}
	var b strings.Builder
	b.WriteString("<examples>\n")
	for i, e := range ex {
		fmt.Fprintf(&b, "Example %d:\n%s\n\n", i+1, e)
	}
	return strings.TrimRight(b.String(), "\n") + "\n</examples>"
}

// ChangesSection renders the file list and per-file diffs of ctx. Noise files
// are only counted; files dropped for budget are listed with line counts.
func ChangesSection(ctx *diff.Context) string {
	if ctx == nil {
		return "<changes>\nFILES CHANGED: 0\n</changes>"
	}
	var b strings.Builder
	b.WriteString("<changes>\n")
	fmt.Fprintf(&b, "FILES CHANGED: %d\n", ctx.TotalFiles)
	if n := ctx.NoiseCount(); n > 0 {
		fmt.Fprintf(&b, "(%d generated, lock or binary files not shown)\n", n)
	}

	b.WriteString("\nFILES:\n")
	for _, f := range ctx.Included {
		fmt.Fprintf(&b, "- [%s] %s (%s, +%d -%d", f.Category, f.Path, describeKind(f.Kind, f.OldPath), f.Added, f.Removed)
		if f.Truncated {
			b.WriteString(", truncated")
		}
		b.WriteString(")\n")
	}
	for _, o := range ctx.Omitted {
		if !o.StatsOnly() {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s (%s, +%d -%d, diff omitted)\n", o.Category, o.Path, o.Kind, o.Added, o.Removed)
	}

	var details strings.Builder
	for _, f := range ctx.Included {
		content := f.Content()
		if content == "" {
			continue
		}
		label := f.Path
		if f.Truncated {
			label += " (truncated)"
		}
		fmt.Fprintf(&details, "=== %s ===\n%s\n", label, content)
	}
	if details.Len() > 0 {
		b.WriteString("\nDIFF DETAILS:\n")
		b.WriteString(details.String())
	}
	if ctx.Truncated() {
		b.WriteString("\n[Note: the diff was cut to fit. Use the file list above for the overall scope.]\n")
	}
	b.WriteString("</changes>")
	return b.String()
}

func describeKind(k diff.ChangeKind, oldPath string) string {
	if k == diff.Renamed && oldPath != "" {
		return "renamed from " + oldPath
	}
	return k.String()
}

func constraintsSection(req Request) string {
	var lines []string
	if h := strings.TrimSpace(req.Hint); h != "" {
		lines = append(lines, fmt.Sprintf("The developer describes this change as: %q. Use it to inform the message, but it must agree with the diff.", h))
	}
	if req.Type != "" && req.Style.Typed() {
		lines = append(lines, fmt.Sprintf("The type MUST be %q.", string(req.Type)))
	}
	if t := strings.TrimSpace(req.Ticket); t != "" {
		prefix := req.TicketPrefix
		if prefix == "" {
			prefix = "Refs"
		}
		lines = append(lines, fmt.Sprintf("Do not put the ticket id in the subject. The line %q is added after the message.", prefix+": "+strings.ToUpper(t)))
	}
	if len(lines) == 0 {
		return ""
	}
	return "<constraints>\n" + strings.Join(lines, "\n") + "\n</constraints>"
}

func thinkingSection(req Request) string {
	var b strings.Builder
	b.WriteString("<thinking>\nBefore writing, decide internally:\n")
	questions := []string{"What is the primary change?"}
	if req.Style.Typed() {
		questions = append(questions, "Which type fits it best?", "What is the scope?")
	}
	questions = append(questions, "What would a future developer need to know?")
	if req.Style == commit.Detailed && req.IncludeBody {
		questions = append(questions, "Why was the change needed?")
	}
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	b.WriteString("Do not output this analysis.\n</thinking>")
	return b.String()
}

func instructionsSection(req Request) string {
	var b strings.Builder
	b.WriteString("<instructions>\n")
	if req.OptionCount > 1 {
		focus := optionFocus[req.Option%len(optionFocus)]
		fmt.Fprintf(&b, "This is alternative %d of %d. Focus on %s.\n", req.Option+1, req.OptionCount, focus)
	}
	b.WriteString("Generate exactly one commit message.\n")
	if req.Style.Typed() {
		b.WriteString("Start directly with the type(scope): line.\n")
	} else {
		b.WriteString("Start directly with the subject line.\n")
	}
	b.WriteString("No markdown, no code fences, no preamble such as \"Here is a commit message\", nothing after the message.\n")
	b.WriteString("</instructions>")
	return b.String()
}
