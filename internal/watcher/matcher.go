package watcher

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ignoreFileName is an optional gitignore-style file at the workspace root
// listing extra paths the watcher must skip.
const ignoreFileName = ".checkwatchignore"

// pathMatcher matches slash-separated relative paths against gitignore-style
// patterns. Supports: globs (*.md), directory-only (build/), root-relative
// (/SPEC.md), double-star (**/foo, foo/**, a/**/b), negation (!keep.md) and
// comments (#). The same matcher serves include patterns and exclusions.
type pathMatcher struct {
	rules []matchRule
}

type matchRule struct {
	pattern  string // cleaned pattern (no leading /, no trailing /)
	negate   bool   // ! prefix
	dirOnly  bool   // trailing /, only matches directories
	anchored bool   // leading / or an inner /, match against the full path
}

func newPathMatcher(patterns []string) *pathMatcher {
	m := &pathMatcher{}
	for _, p := range patterns {
		m.add(p)
	}
	return m
}

// newIgnoreMatcher builds the exclusion matcher from directory names plus
// the optional ignore file in root.
func newIgnoreMatcher(root string, dirs []string) *pathMatcher {
	m := &pathMatcher{}
	for _, d := range dirs {
		m.add(strings.TrimSuffix(d, "/") + "/")
	}
	m.loadFile(filepath.Join(root, ignoreFileName))
	return m
}

func (m *pathMatcher) loadFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.add(scanner.Text())
	}
}

func (m *pathMatcher) add(pattern string) {
	if rule, ok := parseRule(pattern); ok {
		m.rules = append(m.rules, rule)
	}
}

// Includes reports whether the file at relPath matches an include pattern.
func (m *pathMatcher) Includes(relPath string) bool {
	return m.match(filepath.ToSlash(relPath), false)
}

// Excludes reports whether relPath, or any of its parent directories, is
// excluded.
func (m *pathMatcher) Excludes(relPath string, isDir bool) bool {
	if len(m.rules) == 0 {
		return false
	}
	relPath = filepath.ToSlash(relPath)

	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		if m.match(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return m.match(relPath, isDir)
}

// match evaluates the rules in order; the last matching rule wins.
func (m *pathMatcher) match(relPath string, isDir bool) bool {
	matched := false
	for _, rule := range m.rules {
		if rule.dirOnly && !isDir {
			continue
		}
		if rule.matches(relPath) {
			matched = !rule.negate
		}
	}
	return matched
}

func parseRule(line string) (matchRule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return matchRule{}, false
	}

	var r matchRule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		r.anchored = true
	}

	r.pattern = line
	if line == "" {
		return matchRule{}, false
	}
	return r, true
}

func (r matchRule) matches(relPath string) bool {
	pattern := r.pattern

	if strings.HasPrefix(pattern, "**/") {
		return matchAnySuffix(pattern[3:], relPath)
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
	}

	if idx := strings.Index(pattern, "/**/"); idx >= 0 {
		prefix := pattern[:idx]
		suffix := pattern[idx+4:]
		if !strings.HasPrefix(relPath, prefix+"/") {
			return false
		}
		return matchAnySuffix(suffix, strings.TrimPrefix(relPath, prefix+"/"))
	}

	if r.anchored {
		return matchGlob(pattern, relPath)
	}
	return matchGlob(pattern, pathBase(relPath))
}

// matchAnySuffix tries pattern against relPath and every suffix that starts
// after a separator.
func matchAnySuffix(pattern, relPath string) bool {
	if matchGlob(pattern, relPath) {
		return true
	}
	for i := 0; i < len(relPath); i++ {
		if relPath[i] == '/' && matchGlob(pattern, relPath[i+1:]) {
			return true
		}
	}
	return false
}

func pathBase(relPath string) string {
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		return relPath[i+1:]
	}
	return relPath
}

// matchGlob wraps filepath.Match, returning false on malformed patterns.
func matchGlob(pattern, name string) bool {
	matched, _ := filepath.Match(pattern, name)
	return matched
}
