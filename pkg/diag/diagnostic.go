// Package diag carries non-fatal migration diagnostics from the analysis
// components to the report and to inline source comments.
package diag

import (
	"sort"
	"sync"

	"github.com/l3aro/cuda2sycl/pkg/source"
)

// Severity orders diagnostics by importance.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// Diagnostic is one (location, id, arguments) record.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Args     []string
	Message  string
	Path     string
	Span     source.Span
	Pos      source.LineCol
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// Bag collects diagnostics. It is safe for concurrent use.
type Bag struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewBag creates an empty Bag.
func NewBag() *Bag {
	return &Bag{}
}

// Report implements Reporter.
func (b *Bag) Report(d Diagnostic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, d)
}

// Len returns the number of collected diagnostics.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items returns a copy of the collected diagnostics.
func (b *Bag) Items() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// HasWarnings reports whether any diagnostic is at least a warning.
func (b *Bag) HasWarnings() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

// Reset drops every diagnostic.
func (b *Bag) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
}

// Sort orders diagnostics by path, start, end, severity (desc) and code.
func (b *Bag) Sort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Span.Start != dj.Span.Start {
			return di.Span.Start < dj.Span.Start
		}
		if di.Span.End != dj.Span.End {
			return di.Span.End < dj.Span.End
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Dedup removes diagnostics with the same code, location and message,
// keeping the first. Call Sort first for deterministic output.
func (b *Bag) Dedup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	type key struct {
		code Code
		path string
		span source.Span
		msg  string
	}
	seen := make(map[key]struct{}, len(b.items))
	out := b.items[:0]
	for _, d := range b.items {
		k := key{d.Code, d.Path, d.Span, d.Message}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	b.items = out
}

// ForFile returns the diagnostics of one path in their current order.
func (b *Bag) ForFile(path string) []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Diagnostic
	for _, d := range b.items {
		if d.Path == path {
			out = append(out, d)
		}
	}
	return out
}
