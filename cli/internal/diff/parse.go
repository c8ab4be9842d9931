package diff

import (
	"bufio"
	"regexp"
	"strings"
)

// binaryMarker is the prefix git uses when a file is binary.
const binaryMarker = "Binary files "

// hunkHeader matches @@ -oldStart,oldCount +newStart,newCount @@ optional
var hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)

// ParseUnifiedDiff parses the output of `git diff --no-color` into one
// FileChange per file section. Empty diff produces nil.
func ParseUnifiedDiff(diffOutput string) ([]FileChange, error) {
	if strings.TrimSpace(diffOutput) == "" {
		return nil, nil
	}

	var changes []FileChange
	for _, section := range splitByFileSections(diffOutput) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		section = strings.TrimRight(section, "\n")
		fc, err := parseFileSection(section)
		if err != nil {
			return nil, err
		}
		if fc.Path == "" {
			continue
		}
		changes = append(changes, fc)
	}
	return changes, nil
}

// splitByFileSections splits diff output by "diff --git " so each section
// is one file's diff.
func splitByFileSections(out string) []string {
	const prefix = "diff --git "
	var sections []string
	start := 0
	for {
		i := strings.Index(out[start:], prefix)
		if i < 0 {
			if start < len(out) && strings.TrimSpace(out[start:]) != "" {
				sections = append(sections, out[start:])
			}
			break
		}
		pos := start + i
		if pos > start && strings.TrimSpace(out[start:pos]) != "" {
			sections = append(sections, out[start:pos])
		}
		start = pos
		next := strings.Index(out[start+len(prefix):], "\n"+prefix)
		if next < 0 {
			sections = append(sections, out[start:])
			break
		}
		end := start + len(prefix) + next + 1
		sections = append(sections, out[start:end])
		start = end
	}
	return sections
}

func parseFileSection(section string) (FileChange, error) {
	var (
		fc           FileChange
		pathA, pathB string
		inHunk       bool
		currentLines []string
	)
	scanner := bufio.NewScanner(strings.NewReader(section))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if hunkHeaderRegex.MatchString(line) {
			if inHunk && len(currentLines) > 0 {
				fc.Hunks = append(fc.Hunks, strings.Join(currentLines, "\n"))
			}
			currentLines = []string{line}
			inHunk = true
			continue
		}
		if inHunk {
			if line == "" || line[0] == ' ' || line[0] == '\\' {
				currentLines = append(currentLines, line)
				continue
			}
			switch line[0] {
			case '+':
				fc.Added++
				currentLines = append(currentLines, line)
				continue
			case '-':
				fc.Removed++
				currentLines = append(currentLines, line)
				continue
			}
		}
		switch {
		case strings.HasPrefix(line, "diff --git "):
			pathA, pathB = parseDiffGitLine(line)
		case strings.HasPrefix(line, "new file mode"):
			fc.Kind = Added
		case strings.HasPrefix(line, "deleted file mode"):
			fc.Kind = Deleted
		case strings.HasPrefix(line, "rename from "):
			fc.Kind = Renamed
			pathA = strings.TrimPrefix(line, "rename from ")
		case strings.HasPrefix(line, "rename to "):
			fc.Kind = Renamed
			pathB = strings.TrimPrefix(line, "rename to ")
		case strings.HasPrefix(line, binaryMarker):
			fc.Binary = true
		case strings.HasPrefix(line, "--- "):
			if p := parsePathLine(line, "--- "); p != devNull {
				pathA = p
			}
		case strings.HasPrefix(line, "+++ "):
			if p := parsePathLine(line, "+++ "); p != devNull {
				pathB = p
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return FileChange{}, err
	}
	if inHunk && len(currentLines) > 0 {
		fc.Hunks = append(fc.Hunks, strings.Join(currentLines, "\n"))
	}
	fc.Path = pathB
	if fc.Kind == Deleted || fc.Path == "" {
		fc.Path = pathA
	}
	if fc.Kind == Renamed && pathA != fc.Path {
		fc.OldPath = pathA
	}
	return fc, nil
}

const devNull = "/dev/null"

// parseDiffGitLine splits "diff --git a/x b/x". Paths with spaces are handled
// by cutting at the last " b/" separator.
func parseDiffGitLine(line string) (a, b string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	if i := strings.LastIndex(rest, " b/"); i > 0 && strings.HasPrefix(rest, "a/") {
		return rest[2:i], rest[i+3:]
	}
	parts := strings.Fields(rest)
	if len(parts) >= 2 {
		a = trimDiffPath(parts[0])
		b = trimDiffPath(parts[1])
	}
	return a, b
}

func trimDiffPath(s string) string {
	if len(s) >= 2 && (s[0] == 'a' || s[0] == 'b') && s[1] == '/' {
		return s[2:]
	}
	return s
}

func parsePathLine(line, prefix string) string {
	s := strings.TrimPrefix(line, prefix)
	if idx := strings.Index(s, "\t"); idx >= 0 {
		s = s[:idx]
	}
	return trimDiffPath(s)
}
