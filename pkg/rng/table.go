// Package rng migrates cuRAND. Host generators become dpct host RNG
// objects; device states become rng_generator engines whose vector width
// is taken from how the states are read across the whole run.
package rng

import (
	"sort"
	"strconv"
	"strings"
)

// Placeholder stands in for an engine vector width that could not be
// determined.
const Placeholder = "dpct_placeholder/*Fix the vec_size manually*/"

// Table is the run-wide record of the widths each device engine is read
// with. Widths are observed during discovery and read during synthesis.
type Table struct {
	widths map[string]map[int]bool
	seen   map[string]bool
	// width text each engine was spelled with this round
	used map[string]string
}

// NewTable creates an empty table.
func NewTable() *Table {
	t := &Table{}
	t.Reset()
	return t
}

// Reset drops everything.
func (t *Table) Reset() {
	t.widths = make(map[string]map[int]bool)
	t.seen = make(map[string]bool)
	t.BeginRound()
}

// BeginRound forgets the spellings of the previous round.
func (t *Table) BeginRound() {
	t.used = make(map[string]string)
}

// Observe records that engine is read width values at a time by the call
// site at loc. Repeated observations of one site count once.
func (t *Table) Observe(loc, engine string, width int) {
	if t.seen[loc] {
		return
	}
	t.seen[loc] = true
	w, ok := t.widths[engine]
	if !ok {
		w = make(map[int]bool)
		t.widths[engine] = w
	}
	w[width] = true
}

// Widths returns the distinct widths observed for engine, ascending.
func (t *Table) Widths(engine string) []int {
	out := make([]int, 0, len(t.widths[engine]))
	for w := range t.widths[engine] {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

// Width resolves the vector width of engine. An engine never read uses 1;
// one read with several widths has none.
func (t *Table) Width(engine string) (string, bool) {
	ws := t.Widths(engine)
	switch len(ws) {
	case 0:
		return "1", true
	case 1:
		return strconv.Itoa(ws[0]), true
	}
	return Placeholder, false
}

// Spell returns the width text for engine and remembers it for the
// run-again check.
func (t *Table) Spell(engine string) string {
	w, _ := t.Width(engine)
	t.used[engine] = w
	return w
}

// Observed lists the widths of engine for messages, e.g. "1, 4".
func (t *Table) Observed(engine string) string {
	ws := t.Widths(engine)
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, ", ")
}

// NeedRunAgain reports whether an engine was spelled this round with a
// width that later observations changed.
func (t *Table) NeedRunAgain() bool {
	for engine, w := range t.used {
		if now, _ := t.Width(engine); now != w {
			return true
		}
	}
	return false
}
