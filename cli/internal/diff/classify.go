package diff

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Category is the kind of content a file holds. Lower values rank first.
type Category int

const (
	Source Category = iota
	Config
	Test
	Docs
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case Config:
		return "config"
	case Test:
		return "test"
	case Docs:
		return "docs"
	default:
		return "source"
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

var (
	noisePatterns = compileAll(
		`(^|/)package-lock\.json$`,
		`(^|/)yarn\.lock$`,
		`(^|/)pnpm-lock\.yaml$`,
		`(^|/)poetry\.lock$`,
		`(^|/)Cargo\.lock$`,
		`(^|/)Gemfile\.lock$`,
		`(^|/)composer\.lock$`,
		`(^|/)go\.sum$`,
		`\.min\.(js|css)$`,
		`\.map$`,
		`\.pyc$`,
		`\.class$`,
		`\.pb\.go$`,
		`_generated\.go$`,
		`(^|/)__pycache__/`,
		`(^|/)(dist|build)/`,
		`\.egg-info/`,
		`(^|/)\.(idea|vscode)/`,
		`(^|/)\.DS_Store$`,
		`(^|/)(node_modules|vendor|venv|\.venv)/`,
	)
	testPatterns = compileAll(
		`(^|/)tests?/`,
		`(^|/)specs?/`,
		`(^|/)__tests__/`,
		`\.(test|spec)\.`,
		`_(test|spec)\.`,
		`Tests?\.java$`,
	)
	docsPatterns = compileAll(
		`\.(md|rst|txt|adoc)$`,
		`(^|/)docs?/`,
		`(?i)(^|/)(readme|changelog|license)[^/]*$`,
	)
	configPatterns = compileAll(
		`\.(json|ya?ml|toml|ini|cfg)$`,
		`(^|/)\.env`,
		`\.config\.`,
		`(^|/)(config|settings)/`,
		`(^|/)(Makefile|Dockerfile)`,
		`docker-compose`,
		`(^|/)go\.mod$`,
	)
)

// Classify returns the category of path. Test patterns are checked first,
// then docs, then config; anything else is source.
func Classify(path string) Category {
	p := filepath.ToSlash(path)
	switch {
	case matchAny(testPatterns, p):
		return Test
	case matchAny(docsPatterns, p):
		return Docs
	case matchAny(configPatterns, p):
		return Config
	default:
		return Source
	}
}

// IsNoise reports whether f should never be shown to the model: binary files,
// default noise paths, and paths matching any of extra.
func IsNoise(f FileChange, extra []string) bool {
	if f.Binary {
		return true
	}
	p := filepath.ToSlash(f.Path)
	if matchAny(noisePatterns, p) {
		return true
	}
	return matchGlobs(extra, p)
}

func matchAny(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// matchGlobs matches path against filepath.Match patterns, trying the full
// path and then the base name. Patterns ending in "/", "/*" or "/**" match
// everything under that directory.
func matchGlobs(patterns []string, path string) bool {
	for _, p := range patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if dir, ok := dirPrefix(p); ok {
			if path == dir || strings.HasPrefix(path, dir+"/") || strings.Contains(path, "/"+dir+"/") {
				return true
			}
			continue
		}
		if ok, err := filepath.Match(p, path); err == nil && ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

func dirPrefix(p string) (string, bool) {
	for _, suffix := range []string{"/**/*", "/**", "/*", "/"} {
		if strings.HasSuffix(p, suffix) {
			dir := strings.TrimSuffix(p, suffix)
			if dir != "" && !strings.ContainsAny(dir, "*?[") {
				return dir, true
			}
		}
	}
	return "", false
}
