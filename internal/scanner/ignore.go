package scanner

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnorePattern represents a single gitignore-style pattern.
type IgnorePattern struct {
	pattern     string // Original pattern
	isNegation  bool   // True if pattern starts with !
	isDirectory bool   // True if pattern ends with /
	isAnchored  bool   // True if pattern contains a slash before its end
	base        string // Directory of the ignore file, relative to the scan root
	segments    []string
}

// ParseIgnorePattern parses a gitignore-style pattern string found in the
// scan root.
func ParseIgnorePattern(pattern string) IgnorePattern {
	return parseIgnorePattern(pattern, "")
}

func parseIgnorePattern(pattern, base string) IgnorePattern {
	p := IgnorePattern{pattern: pattern, base: base}

	if strings.HasPrefix(pattern, "!") {
		p.isNegation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.isDirectory = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.Contains(pattern, "/") {
		p.isAnchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	p.segments = strings.Split(pattern, "/")
	return p
}

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.isNegation
}

// Match reports whether rel, a slash-separated path relative to the scan
// root, matches the pattern. isDir tells whether rel names a directory;
// directory patterns also match everything below a matching directory.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	if p.base != "" {
		if !strings.HasPrefix(rel, p.base+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, p.base+"/")
	}
	parts := strings.Split(rel, "/")

	// A match of a prefix of the path means a parent directory matched.
	for n := 1; n <= len(parts); n++ {
		last := n == len(parts)
		if p.isDirectory && last && !isDir {
			break
		}
		if p.matchPrefix(parts[:n]) {
			return true
		}
	}
	return false
}

// matchPrefix matches the pattern against the full path parts. Unanchored
// patterns may match the trailing parts only.
func (p IgnorePattern) matchPrefix(parts []string) bool {
	if p.isAnchored {
		return matchSegments(p.segments, parts)
	}
	for start := 0; start < len(parts); start++ {
		if matchSegments(p.segments, parts[start:]) {
			return true
		}
	}
	return false
}

// matchSegments matches glob segments against path parts. "**" matches any
// number of parts.
func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}

// loadIgnoreFile reads patterns from the ignore file at file. base is the
// directory holding it, relative to the scan root.
func loadIgnoreFile(file, base string) ([]IgnorePattern, error) {
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, parseIgnorePattern(line, base))
	}
	return patterns, sc.Err()
}

// ignored applies patterns in order; a later negation re-includes a path.
func ignored(rel string, isDir bool, patterns []IgnorePattern) bool {
	out := false
	for _, p := range patterns {
		if p.Match(rel, isDir) {
			out = !p.isNegation
		}
	}
	return out
}
