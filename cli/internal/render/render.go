// Package render formats commit message options and status lines for the
// terminal. Boxes are drawn with lipgloss; status lines are coloured with
// fatih/color, which honours NO_COLOR.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	fcolor "github.com/fatih/color"
	"github.com/mitchellh/go-wordwrap"

	"cm/cli/internal/commit"
	"cm/cli/internal/diff"
	"cm/cli/internal/llm"
	"cm/cli/internal/tokens"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

const _minWidth = 40

var (
	accentColor = lipgloss.ANSIColor(14)
	dimColor    = lipgloss.ANSIColor(8)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	subjectStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(dimColor)
)

func clampWidth(width int) int {
	if width <= 0 {
		return DefaultWidth
	}
	if width < _minWidth {
		return _minWidth
	}
	return width
}

// Body lays out a message for a terminal of the given width: the subject,
// then bullets wrapped with a hanging indent, then the trailer.
func Body(m commit.Message, width int) string {
	inner := clampWidth(width) - 4 // border plus padding
	var b strings.Builder
	b.WriteString(subjectStyle.Render(m.Subject))
	if len(m.Bullets) > 0 {
		b.WriteString("\n")
		for _, bullet := range m.Bullets {
			b.WriteString("\n")
			b.WriteString(wrapBullet(bullet, inner))
		}
	}
	if m.Trailer != "" {
		b.WriteString("\n\n")
		b.WriteString(m.Trailer)
	}
	return b.String()
}

func wrapBullet(text string, width int) string {
	lines := strings.Split(wordwrap.WrapString(text, uint(width-2)), "\n")
	for i := range lines {
		if i == 0 {
			lines[i] = "- " + lines[i]
		} else {
			lines[i] = "  " + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// Box renders one message in a rounded border.
func Box(m commit.Message, width int) string {
	return boxStyle.Render(Body(m, width))
}

// Label is the "provider · model" caption shown above a result.
func Label(r llm.Result) string {
	parts := []string{r.Provider}
	if r.Model != "" {
		parts = append(parts, r.Model)
	}
	if n := r.Usage.Total(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", n))
	}
	return labelStyle.Render(strings.Join(parts, " · "))
}

// Options writes every result as a numbered box.
func Options(w io.Writer, results []llm.Result, width int) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		caption := Label(r)
		if len(results) > 1 {
			caption = fmt.Sprintf("Option %d  %s", i+1, caption)
		}
		fmt.Fprintln(w, caption)
		fmt.Fprintln(w, Box(r.Message, width))
	}
}

// Plain writes messages without decoration, separated by a blank line and
// a "---" rule, for pipes and scripts.
func Plain(w io.Writer, results []llm.Result) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprint(w, "\n---\n\n")
		}
		fmt.Fprintln(w, r.Message.String())
	}
}

// Success writes a green check line.
func Success(w io.Writer, format string, a ...any) {
	fcolor.New(fcolor.FgGreen).Fprintf(w, "✔ "+format+"\n", a...)
}

// Warning writes a yellow warning line.
func Warning(w io.Writer, format string, a ...any) {
	fcolor.New(fcolor.FgYellow).Fprintf(w, "⚠ "+format+"\n", a...)
}

// Info writes a dim status line.
func Info(w io.Writer, format string, a ...any) {
	fcolor.New(fcolor.FgHiBlack).Fprintf(w, format+"\n", a...)
}

// Error writes err as a red line, then its cause as "Details:" when the
// message hides one, then the remediation hint if any.
func Error(w io.Writer, err error, hint string) {
	if err == nil {
		return
	}
	fcolor.New(fcolor.FgRed).Fprintf(w, "✗ %s\n", err)
	if u := errors.Unwrap(err); u != nil {
		fmt.Fprintf(w, "Details: %v\n", u)
	}
	if hint == "" {
		return
	}
	lines := strings.Split(hint, "\n")
	hintColor := fcolor.New(fcolor.FgYellow)
	hintColor.Fprintf(w, "Hint: %s\n", lines[0])
	for _, l := range lines[1:] {
		hintColor.Fprintf(w, "      %s\n", l)
	}
}

// RawResponse prints the model output behind err when err carries one, so a
// malformed response can be diagnosed.
func RawResponse(w io.Writer, err error) {
	var e *llm.Error
	if !errors.As(err, &e) || strings.TrimSpace(e.Raw) == "" {
		return
	}
	Info(w, "Raw response:")
	for _, l := range strings.Split(strings.TrimRight(e.Raw, "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

// Stats summarizes what went into the prompt and what came back.
func Stats(w io.Writer, ctx *diff.Context, results []llm.Result, took time.Duration) {
	if ctx == nil {
		return
	}
	Info(w, "%d of %d files in prompt (%s of diff, budget %s)",
		len(ctx.Included), ctx.TotalFiles,
		tokens.Format(tokens.FromBytes(ctx.Used)), tokens.Format(tokens.FromBytes(ctx.Budget)))
	if n := ctx.NoiseCount(); n > 0 {
		Info(w, "%d noise files skipped", n)
	}
	if ctx.Truncated() {
		Info(w, "diff truncated to fit the budget")
	}
	used := 0
	for _, r := range results {
		used += r.Usage.Total()
	}
	if used > 0 {
		Info(w, "%d tokens used in %s", used, took.Round(time.Millisecond))
	} else {
		Info(w, "generated in %s", took.Round(time.Millisecond))
	}
}
