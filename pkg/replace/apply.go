package replace

import (
	"fmt"
	"sort"
	"strings"
)

// Apply rewrites content with reps. Replacements are applied from the highest
// offset down so that the offsets of the ones not yet applied stay valid.
func Apply(content []byte, reps []Replacement) ([]byte, error) {
	sorted := make([]Replacement, len(reps))
	copy(sorted, reps)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Offset != sorted[j].Offset {
			return sorted[i].Offset > sorted[j].Offset
		}
		// an insertion at the start of a replaced region goes in front of it
		return sorted[i].Length > sorted[j].Length
	})

	out := content
	limit := uint32(len(content))
	for _, r := range sorted {
		if r.End() > uint32(len(content)) {
			return nil, fmt.Errorf("replacement %s past end of content (%d bytes)", r, len(content))
		}
		if r.End() > limit {
			return nil, fmt.Errorf("%w: %s", ErrConflict, r)
		}
		next := make([]byte, 0, len(out)+len(r.Text)-int(r.Length))
		next = append(next, out[:r.Offset]...)
		next = append(next, r.Text...)
		next = append(next, out[r.End():]...)
		out = next
		limit = r.Offset
	}
	return out, nil
}

type edit struct {
	off    int
	length int
	text   string
	seq    int
}

// StringReplacements composes one string out of several edits expressed in
// offsets of the original string.
type StringReplacements struct {
	edits []edit
}

// Add records an edit replacing length bytes at off.
func (sr *StringReplacements) Add(off, length int, text string) {
	sr.edits = append(sr.edits, edit{off: off, length: length, text: text, seq: len(sr.edits)})
}

// Len returns the number of recorded edits.
func (sr *StringReplacements) Len() int { return len(sr.edits) }

// Apply applies the edits to s in descending offset order. Edits that fall
// outside s or overlap an edit with a higher offset are skipped.
func (sr *StringReplacements) Apply(s string) string {
	edits := make([]edit, len(sr.edits))
	copy(edits, sr.edits)
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].off != edits[j].off {
			return edits[i].off > edits[j].off
		}
		return edits[i].seq > edits[j].seq
	})
	return applyInOrder(s, edits)
}

func applyInOrder(s string, edits []edit) string {
	limit := len(s)
	for _, e := range edits {
		end := e.off + e.length
		if e.off < 0 || end > len(s) || end > limit {
			continue
		}
		var b strings.Builder
		b.Grow(len(s) + len(e.text) - e.length)
		b.WriteString(s[:e.off])
		b.WriteString(e.text)
		b.WriteString(s[end:])
		s = b.String()
		limit = e.off
	}
	return s
}
