// Package source holds the byte-level model of the files being migrated:
// file identities, spans, front-end locations and macro expansion records.
package source

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"fortio.org/safecast"
)

// FileID uniquely identifies a file within a FileSet. Zero is never a valid ID.
type FileID uint32

// NoFile is the zero FileID.
const NoFile FileID = 0

// File captures the content of a single source file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // byte offset of each line start
}

// FileSet owns every file seen during a migration run together with the
// macro expansion records the front end produced for them.
type FileSet struct {
	mu     sync.RWMutex
	files  []*File
	byPath map[string]FileID
	macros *MacroTable
}

// NewFileSet creates an empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files:  []*File{nil}, // slot 0 is NoFile
		byPath: make(map[string]FileID),
		macros: NewMacroTable(),
	}
}

// Add registers a file. Adding a path twice returns the original ID and
// keeps the first content.
func (fs *FileSet) Add(path string, content []byte) (FileID, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	clean := filepath.Clean(path)
	if id, ok := fs.byPath[clean]; ok {
		return id, nil
	}
	id, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		return NoFile, fmt.Errorf("too many files: %w", err)
	}
	f := &File{
		ID:      FileID(id),
		Path:    clean,
		Content: content,
	}
	if f.LineIdx, err = buildLineIndex(content); err != nil {
		return NoFile, fmt.Errorf("indexing %s: %w", clean, err)
	}
	fs.files = append(fs.files, f)
	fs.byPath[clean] = f.ID
	return f.ID, nil
}

// Get returns the file for id, or nil.
func (fs *FileSet) Get(id FileID) *File {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if id == NoFile || int(id) >= len(fs.files) {
		return nil
	}
	return fs.files[id]
}

// Lookup finds a file by path.
func (fs *FileSet) Lookup(path string) (FileID, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	id, ok := fs.byPath[filepath.Clean(path)]
	return id, ok
}

// Path returns the path of id, or "" when unknown.
func (fs *FileSet) Path(id FileID) string {
	if f := fs.Get(id); f != nil {
		return f.Path
	}
	return ""
}

// Files returns all files ordered by ID.
func (fs *FileSet) Files() []*File {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]*File, 0, len(fs.files)-1)
	out = append(out, fs.files[1:]...)
	return out
}

// Macros returns the macro expansion table shared by all files.
func (fs *FileSet) Macros() *MacroTable {
	return fs.macros
}

// Text returns the content between two offsets, clamped to the file.
func (f *File) Text(start, end uint32) string {
	if f == nil {
		return ""
	}
	n := uint32(len(f.Content))
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	if end < start {
		return ""
	}
	return string(f.Content[start:end])
}

// LineCol converts a byte offset to a 1-based line/column pair.
func (f *File) LineCol(off uint32) LineCol {
	if f == nil || len(f.LineIdx) == 0 {
		return LineCol{Line: 1, Col: 1}
	}
	i := sort.Search(len(f.LineIdx), func(i int) bool { return f.LineIdx[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return LineCol{Line: uint32(i) + 1, Col: off - f.LineIdx[i] + 1}
}

// LineStart returns the offset of the first byte of the line containing off.
func (f *File) LineStart(off uint32) uint32 {
	if f == nil || len(f.LineIdx) == 0 {
		return 0
	}
	i := sort.Search(len(f.LineIdx), func(i int) bool { return f.LineIdx[i] > off }) - 1
	if i < 0 {
		return 0
	}
	return f.LineIdx[i]
}

// Indent returns the leading whitespace of the line containing off.
func (f *File) Indent(off uint32) string {
	if f == nil {
		return ""
	}
	start := f.LineStart(off)
	end := start
	for int(end) < len(f.Content) && (f.Content[end] == ' ' || f.Content[end] == '\t') {
		end++
	}
	return string(f.Content[start:end])
}

func buildLineIndex(content []byte) ([]uint32, error) {
	idx := []uint32{0}
	for i, b := range content {
		if b != '\n' {
			continue
		}
		next, err := safecast.Conv[uint32](i + 1)
		if err != nil {
			return nil, err
		}
		idx = append(idx, next)
	}
	return idx, nil
}
