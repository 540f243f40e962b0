package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"

	"colsync/internal/collection"
)

// IgnoreFileName is the optional file in the colsync home listing extra
// ignore patterns, one per line.
const IgnoreFileName = "ignore"

// defaultIgnorePatterns are always applied regardless of config or ignore file.
var defaultIgnorePatterns = []string{"@eaDir", "#recycle", "$RECYCLE.BIN", "lost+found"}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against each path element
}

// IgnoreMatcher checks album paths against a set of ignore patterns.
// Patterns without '/' match any single directory name along the path.
// Patterns with '/' match the relative path from the album root or any
// of its ancestors, so the whole subtree is excluded.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings plus
// the built-in defaults. Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range defaultIgnorePatterns {
		patterns = append(patterns, ignorePattern{pattern: raw})
	}
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.Trim(raw, "/")
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given album path should be ignored.
// relativePath uses forward slashes and has no leading slash.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	relativePath = strings.Trim(relativePath, "/")
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	elems := strings.Split(relativePath, "/")
	for _, p := range m.patterns {
		for i := range elems {
			var subject string
			if p.matchPath {
				subject = strings.Join(elems[:i+1], "/")
			} else {
				subject = elems[i]
			}
			matched, err := path.Match(p.pattern, subject)
			if err != nil {
				// Bad pattern, skip rather than crash.
				break
			}
			if matched {
				return true
			}
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}

var _ collection.Matcher = (*IgnoreMatcher)(nil)
