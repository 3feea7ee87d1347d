// Package scanner finds the files of a CUDA project that take part in a
// migration. It respects .c2signore files with gitignore-style patterns and
// classifies files by extension.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Kind     Kind
	Size     int64
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow file symlinks that stay within root
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Name of the ignore file (default: .c2signore)
	// Extensions selects files to report. Empty means every C, C++ or CUDA
	// file.
	Extensions []string
	// Exclude lists directories, absolute or relative to the working
	// directory, that are skipped. The output root goes here when it lies
	// inside the input root.
	Exclude []string
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".c2signore",
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			"CMakeFiles",
			".c2s",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".c2signore"
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns the matching files sorted by path.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	exclude := make(map[string]bool, len(s.opts.Exclude))
	for _, e := range s.opts.Exclude {
		if abs, err := filepath.Abs(e); err == nil {
			exclude[abs] = true
		}
	}

	patterns, err := loadIgnoreFile(filepath.Join(absRoot, s.opts.IgnoreFileName), "")
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == absRoot {
				return err
			}
			return nil
		}
		if p == absRoot {
			return nil
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.skipDir(d.Name()) || exclude[p] || ignored(rel, true, patterns) {
				return filepath.SkipDir
			}
			nested, err := loadIgnoreFile(filepath.Join(p, s.opts.IgnoreFileName), rel)
			if err != nil {
				return fmt.Errorf("loading ignore patterns in %s: %w", rel, err)
			}
			patterns = append(patterns, nested...)
			return nil
		}

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if ignored(rel, false, patterns) {
			return nil
		}
		kind := DetectKind(filepath.Ext(p))
		if kind == "" || !s.wanted(p) {
			return nil
		}
		info, ok := s.stat(absRoot, p, d)
		if !ok {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: p, Kind: kind, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *Scanner) skipDir(name string) bool {
	if s.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

func (s *Scanner) wanted(p string) bool {
	if len(s.opts.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(p)
	for _, e := range s.opts.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// stat returns the file info of p, resolving a symlink when allowed and its
// target is a regular file inside root.
func (s *Scanner) stat(root, p string, d fs.DirEntry) (os.FileInfo, bool) {
	if d.Type()&os.ModeSymlink == 0 {
		info, err := d.Info()
		return info, err == nil
	}
	if !s.opts.FollowSymlinks {
		return nil, false
	}
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		return nil, false
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, false
	}
	if !strings.HasPrefix(real, realRoot+string(filepath.Separator)) {
		return nil, false
	}
	info, err := os.Stat(real)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return info, true
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
