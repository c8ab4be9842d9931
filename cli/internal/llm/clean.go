package llm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"cm/cli/internal/commit"
)

// CleanOptions carries the user directives cleaning must enforce.
type CleanOptions struct {
	Style       commit.MessageStyle
	IncludeBody bool
	// Type, when set, replaces or supplies the conventional type.
	Type             commit.Type
	MaxSubjectLength int
	Ticket           string
	TicketPrefix     string
}

var (
	typeAlt = strings.Join(commit.TypeNames(), "|")
	// typeLineRe finds the first line that opens a conventional subject,
	// tolerating leading fences, quotes or emphasis.
	typeLineRe = regexp.MustCompile("^[\\s`\"'*]*(" + typeAlt + `)[(!:]`)
	// subjectRe splits a conventional subject into type, scope, bang and text.
	subjectRe = regexp.MustCompile(`^(` + typeAlt + `)(\([^)]*\))?(!)?:\s*(.*)$`)
	// junkRe marks the end of the message: echoed diff output or a fence.
	junkRe = regexp.MustCompile("^(diff --git |@@\\s|[+-]{3}\\s[ab]/|index [0-9a-f]|```)")
	// preambleRe matches chatty lead-ins and option labels that are not the subject.
	preambleRe = regexp.MustCompile(`(?i)^(here('s| is| are)\b.*|sure\b.*|certainly\b.*|okay\b.*|.*commit message\b.*:|\[?option \d+\]?:?)$`)
	bulletRe   = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)
)

// Clean extracts a commit message from raw model output and enforces the
// directives in opts. It is idempotent: Clean(m.String(), opts) returns m for
// any m it produced. A response with no usable subject is ErrMalformedResponse.
func Clean(raw string, opts CleanOptions) (commit.Message, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	start := findStart(lines)
	if start < 0 {
		return commit.Message{}, malformed(raw, "no commit subject found")
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if junkRe.MatchString(lines[i]) {
			end = i
			break
		}
	}

	subject := cleanSubject(lines[start])
	bullets, trailer := parseBody(lines[start+1:end], opts)

	subject = applyType(subject, opts)
	subject = strings.TrimRight(subject, ". ")
	subject = truncateSubject(subject, opts.MaxSubjectLength)
	if strings.TrimSpace(subject) == "" {
		return commit.Message{}, malformed(raw, "empty subject")
	}
	if m := subjectRe.FindStringSubmatch(subject); m != nil && strings.TrimSpace(m[4]) == "" {
		return commit.Message{}, malformed(raw, "subject has a type but no description")
	}

	if !opts.IncludeBody {
		bullets = nil
	}

	msg := commit.Message{Subject: subject, Bullets: bullets}
	if id := strings.ToUpper(strings.TrimSpace(opts.Ticket)); id != "" {
		switch {
		case trailer != "":
			msg.Trailer = ticketTrailer(opts.TicketPrefix, id)
		case !mentions(msg, id):
			msg.Trailer = ticketTrailer(opts.TicketPrefix, id)
		}
	}
	return msg, nil
}

func malformed(raw, reason string) error {
	return &Error{
		Kind: ErrMalformedResponse,
		Raw:  raw,
		Hint: "Try again, or pick a different model with --model.",
		Err:  errString(reason),
	}
}

type errString string

func (e errString) Error() string { return string(e) }

// findStart returns the index of the subject line: the first conventional
// subject if any, otherwise the first line that is not blank, a fence, or a
// preamble. Returns -1 when there is none.
func findStart(lines []string) int {
	for i, l := range lines {
		if typeLineRe.MatchString(l) {
			return i
		}
	}
	for i, l := range lines {
		s := strings.TrimSpace(l)
		if s == "" || strings.HasPrefix(s, "```") || preambleRe.MatchString(s) {
			continue
		}
		if cleanSubject(s) == "" {
			continue
		}
		return i
	}
	return -1
}

func cleanSubject(s string) string {
	for {
		next := strings.TrimSpace(s)
		next = strings.TrimLeft(next, "#> ")
		next = strings.Trim(next, "`\"'*“” \t")
		next = strings.TrimSpace(next)
		if next == s {
			return s
		}
		s = next
	}
}

// parseBody collects bullets from the lines after the subject. Marked lines
// start a bullet, indented lines continue the previous one, other prose lines
// become bullets of their own. A line naming the requested ticket in
// "Prefix: ID" form is returned as the trailer instead.
func parseBody(lines []string, opts CleanOptions) (bullets []string, trailer string) {
	id := strings.ToUpper(strings.TrimSpace(opts.Ticket))
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			continue
		}
		if loc := bulletRe.FindStringIndex(trimmed); loc != nil {
			if text := strings.TrimSpace(trimmed[loc[1]:]); text != "" {
				bullets = append(bullets, text)
			}
			continue
		}
		if id != "" && isTrailerLine(trimmed, id) {
			trailer = trimmed
			continue
		}
		if len(bullets) > 0 && (strings.HasPrefix(l, " ") || strings.HasPrefix(l, "\t")) {
			bullets[len(bullets)-1] += " " + trimmed
			continue
		}
		bullets = append(bullets, trimmed)
	}
	return bullets, trailer
}

func isTrailerLine(line, id string) bool {
	i := strings.Index(line, ":")
	if i <= 0 || strings.ContainsAny(line[:i], " \t") {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line[i+1:]), id)
}

func ticketTrailer(prefix, id string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "Refs"
	}
	return prefix + ": " + id
}

func mentions(m commit.Message, id string) bool {
	if strings.Contains(strings.ToUpper(m.Subject), id) {
		return true
	}
	for _, b := range m.Bullets {
		if strings.Contains(strings.ToUpper(b), id) {
			return true
		}
	}
	return false
}

// applyType enforces the style's type rules on subject.
func applyType(subject string, opts CleanOptions) string {
	m := subjectRe.FindStringSubmatch(subject)
	if !opts.Style.Typed() {
		if m == nil {
			return subject
		}
		return capitalize(m[4])
	}
	if opts.Type == "" {
		return subject
	}
	if m == nil {
		return string(opts.Type) + ": " + subject
	}
	return string(opts.Type) + m[2] + m[3] + ": " + m[4]
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// truncateSubject shortens s to at most max runes. A conventional prefix is
// kept whole and only the description is cut, at the last word boundary when
// there is one. The description keeps at least its first word, so a prefix
// longer than max yields a subject over the limit. max <= 0 disables
// truncation.
func truncateSubject(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	prefix, desc := "", s
	if m := subjectRe.FindStringSubmatch(s); m != nil && strings.TrimSpace(m[4]) != "" {
		prefix = m[1] + m[2] + m[3] + ": "
		desc = m[4]
	}
	return prefix + truncateWords(desc, max-utf8.RuneCountInString(prefix))
}

func truncateWords(s string, room int) string {
	first := s
	if f := strings.Fields(s); len(f) > 0 {
		first = strings.TrimRight(f[0], ",;:-.")
	}
	runes := []rune(s)
	if room <= 0 {
		return first
	}
	if len(runes) <= room {
		return s
	}
	cut := runes[:room]
	if !unicode.IsSpace(runes[room]) {
		if i := lastSpace(cut); i > 0 {
			cut = cut[:i]
		}
	}
	if out := strings.TrimRight(string(cut), " ,;:-."); out != "" {
		return out
	}
	return first
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if unicode.IsSpace(rs[i]) {
			return i
		}
	}
	return -1
}
