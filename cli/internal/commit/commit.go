// Package commit defines the commit-message vocabulary shared by prompt
// building and response cleaning: conventional types, message styles and the
// structured Message with its canonical text rendering.
package commit

import (
	"fmt"
	"strings"
)

// Type is a conventional-commit type such as "feat" or "fix".
type Type string

// Conventional types, in the order they are presented to the model.
const (
	Feat     Type = "feat"
	Fix      Type = "fix"
	Refactor Type = "refactor"
	Chore    Type = "chore"
	Docs     Type = "docs"
	Test     Type = "test"
	Style    Type = "style"
	Perf     Type = "perf"
	CI       Type = "ci"
	Build    Type = "build"
)

// TypeInfo pairs a type with the one-line description shown to the model.
type TypeInfo struct {
	Type        Type
	Description string
}

// Types lists every supported type with its description.
var Types = []TypeInfo{
	{Feat, "New feature or capability"},
	{Fix, "Bug fix"},
	{Refactor, "Code restructuring without behavior change"},
	{Chore, "Maintenance, dependencies, tooling"},
	{Docs, "Documentation only"},
	{Test, "Adding or updating tests"},
	{Style, "Formatting, whitespace, no logic change"},
	{Perf, "Performance improvement"},
	{CI, "CI/CD configuration"},
	{Build, "Build system or external dependencies"},
}

// ParseType normalizes s and returns the matching Type.
func ParseType(s string) (Type, error) {
	norm := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, ti := range Types {
		if ti.Type == norm {
			return norm, nil
		}
	}
	return "", fmt.Errorf("unknown commit type %q; use one of %s", s, strings.Join(TypeNames(), ", "))
}

// TypeNames returns the type names in presentation order.
func TypeNames() []string {
	names := make([]string, len(Types))
	for i, ti := range Types {
		names[i] = string(ti.Type)
	}
	return names
}

// MessageStyle selects the shape of the generated subject line.
type MessageStyle string

const (
	// Conventional is "type(scope): description".
	Conventional MessageStyle = "conventional"
	// Simple is a plain imperative subject with no type prefix.
	Simple MessageStyle = "simple"
	// Detailed is conventional with a richer body.
	Detailed MessageStyle = "detailed"
)

// ParseStyle normalizes s and returns the matching MessageStyle.
func ParseStyle(s string) (MessageStyle, error) {
	switch MessageStyle(strings.ToLower(strings.TrimSpace(s))) {
	case Conventional:
		return Conventional, nil
	case Simple:
		return Simple, nil
	case Detailed:
		return Detailed, nil
	}
	return "", fmt.Errorf("unknown style %q; use conventional, simple, or detailed", s)
}

// Typed reports whether the style carries a conventional type prefix.
func (s MessageStyle) Typed() bool {
	return s != Simple
}

// Message is a cleaned commit message.
type Message struct {
	Subject string
	Bullets []string
	// Trailer is an optional final line such as "Refs: PROJ-123".
	Trailer string
}

// String renders the message as commit text: subject, blank line, "- " bullets,
// blank line, trailer. Empty sections are omitted.
func (m Message) String() string {
	var b strings.Builder
	b.WriteString(m.Subject)
	if len(m.Bullets) > 0 {
		b.WriteString("\n\n")
		for i, bullet := range m.Bullets {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- ")
			b.WriteString(bullet)
		}
	}
	if m.Trailer != "" {
		b.WriteString("\n\n")
		b.WriteString(m.Trailer)
	}
	return b.String()
}

// Body returns everything after the subject, or "" when there is no body.
func (m Message) Body() string {
	full := m.String()
	if i := strings.Index(full, "\n\n"); i >= 0 {
		return full[i+2:]
	}
	return ""
}
