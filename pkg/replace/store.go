// Package replace collects the text replacements produced by migration and
// applies them to file contents.
package replace

import (
	"errors"
	"fmt"
	"sort"
)

// ErrConflict is returned when a replacement overlaps one already stored.
var ErrConflict = errors.New("conflicting replacement")

// Flags carry formatting requests for a replacement.
type Flags uint8

const (
	// FlagLineEnd asks PostProcess to terminate the text with a newline.
	FlagLineEnd Flags = 1 << iota
	// FlagInsertBefore orders an insertion ahead of other insertions at the
	// same offset when they are merged.
	FlagInsertBefore
)

// Replacement rewrites Length bytes at Offset of FilePath with Text. A zero
// Length is an insertion.
type Replacement struct {
	FilePath string
	Offset   uint32
	Length   uint32
	Text     string
	Flags    Flags
	// Origin names the component that produced the replacement.
	Origin string
}

// End returns the first offset after the replaced region.
func (r Replacement) End() uint32 { return r.Offset + r.Length }

// IsInsert reports whether r replaces nothing.
func (r Replacement) IsInsert() bool { return r.Length == 0 }

func (r Replacement) String() string {
	return fmt.Sprintf("%s:%d+%d=%q", r.FilePath, r.Offset, r.Length, r.Text)
}

// Conflict records a rejected replacement and the one that kept its place.
type Conflict struct {
	Kept     Replacement
	Rejected Replacement
}

// Sink receives finalized per-file replacement sets.
type Sink interface {
	Emit(path string, reps []Replacement) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(path string, reps []Replacement) error

func (f SinkFunc) Emit(path string, reps []Replacement) error { return f(path, reps) }

type shift struct {
	at    uint32
	delta int64
}

// Store is the ordered per-file replacement collection of one migration round.
// It is not safe for concurrent use.
type Store struct {
	files     map[string][]Replacement
	conflicts []Conflict
	shifts    map[string][]shift
	processed bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{files: make(map[string][]Replacement)}
}

// Add inserts r keeping each file ordered by offset. An identical replacement
// is dropped silently. Two insertions at the same offset are merged by
// concatenation. Any other overlap keeps the earlier replacement and returns
// ErrConflict.
func (s *Store) Add(r Replacement) error {
	reps := s.files[r.FilePath]
	i := sort.Search(len(reps), func(i int) bool {
		if reps[i].Offset == r.Offset {
			return reps[i].Length >= r.Length
		}
		return reps[i].Offset > r.Offset
	})

	for j := i - 1; j >= 0 && reps[j].End() >= r.Offset; j-- {
		if err := s.check(reps, j, r); err != nil {
			return err
		}
	}
	for j := i; j < len(reps) && reps[j].Offset <= r.End(); j++ {
		if reps[j] == r {
			return nil
		}
		if reps[j].IsInsert() && r.IsInsert() && reps[j].Offset == r.Offset {
			if reps[j].Text == r.Text {
				return nil
			}
			if r.Flags&FlagInsertBefore != 0 {
				reps[j].Text = r.Text + reps[j].Text
			} else {
				reps[j].Text += r.Text
			}
			reps[j].Flags |= r.Flags &^ FlagInsertBefore
			s.processed = false
			return nil
		}
		if err := s.check(reps, j, r); err != nil {
			return err
		}
	}

	reps = append(reps, Replacement{})
	copy(reps[i+1:], reps[i:])
	reps[i] = r
	s.files[r.FilePath] = reps
	s.processed = false
	return nil
}

func (s *Store) check(reps []Replacement, j int, r Replacement) error {
	if reps[j] == r {
		return nil
	}
	if overlaps(reps[j], r) {
		s.conflicts = append(s.conflicts, Conflict{Kept: reps[j], Rejected: r})
		return fmt.Errorf("%w: %s overlaps %s", ErrConflict, r, reps[j])
	}
	return nil
}

// overlaps uses half-open spans. Insertions touching a boundary do not
// overlap; an insertion strictly inside a replaced region does.
func overlaps(a, b Replacement) bool {
	aStart, aEnd := a.Offset, a.End()
	bStart, bEnd := b.Offset, b.End()
	if aStart == aEnd && bStart == bEnd {
		return false
	}
	if aStart == aEnd {
		return bStart < aStart && aStart < bEnd
	}
	if bStart == bEnd {
		return aStart < bStart && bStart < aEnd
	}
	return aStart < bEnd && bStart < aEnd
}

// AddAll adds every replacement and returns the first error.
func (s *Store) AddAll(reps []Replacement) error {
	var first error
	for _, r := range reps {
		if err := s.Add(r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Files returns the paths with at least one replacement, sorted.
func (s *Store) Files() []string {
	out := make([]string, 0, len(s.files))
	for p, reps := range s.files {
		if len(reps) > 0 {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// For returns the ordered replacements of path.
func (s *Store) For(path string) []Replacement {
	return s.files[path]
}

// Len returns the total number of replacements.
func (s *Store) Len() int {
	n := 0
	for _, reps := range s.files {
		n += len(reps)
	}
	return n
}

// Conflicts returns every rejected replacement.
func (s *Store) Conflicts() []Conflict {
	return s.conflicts
}

// PostProcess applies formatting flags and builds the offset shift table
// used by Shift. It is idempotent.
func (s *Store) PostProcess() {
	if s.processed {
		return
	}
	s.shifts = make(map[string][]shift, len(s.files))
	for path, reps := range s.files {
		var delta int64
		table := make([]shift, 0, len(reps))
		for i := range reps {
			if reps[i].Flags&FlagLineEnd != 0 && !endsWithNewline(reps[i].Text) {
				reps[i].Text += "\n"
			}
			delta += int64(len(reps[i].Text)) - int64(reps[i].Length)
			table = append(table, shift{at: reps[i].End(), delta: delta})
		}
		s.shifts[path] = table
	}
	s.processed = true
}

func endsWithNewline(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '\n'
}

// Shift maps an offset in the original content of path to the matching
// offset in the rewritten content. Offsets inside a replaced region are only
// shifted by the edits before it.
func (s *Store) Shift(path string, off uint32) uint32 {
	s.PostProcess()
	table := s.shifts[path]
	i := sort.Search(len(table), func(i int) bool { return table[i].at > off })
	if i == 0 {
		return off
	}
	return uint32(int64(off) + table[i-1].delta)
}

// EmplaceInto post-processes the store and hands every file's replacement
// set to sink in path order.
func (s *Store) EmplaceInto(sink Sink) error {
	s.PostProcess()
	for _, p := range s.Files() {
		out := make([]Replacement, len(s.files[p]))
		copy(out, s.files[p])
		if err := sink.Emit(p, out); err != nil {
			return fmt.Errorf("emit %s: %w", p, err)
		}
	}
	return nil
}

// Reset drops all replacements and conflicts.
func (s *Store) Reset() {
	s.files = make(map[string][]Replacement)
	s.conflicts = nil
	s.shifts = nil
	s.processed = false
}
