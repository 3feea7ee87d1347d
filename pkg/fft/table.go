// Package fft migrates cuFFT plans and executions to oneMKL DFT
// descriptors. Plans are tracked per handle across the whole run so that
// execution calls and handle declarations can use what the plans revealed,
// even when they are migrated first.
package fft

import (
	"sort"
)

// Placeholder stands in for a descriptor precision and domain that could
// not be determined.
const Placeholder = "dpct_placeholder/*Fix the precision and domain type manually*/"

// Kind is a descriptor's precision and domain.
type Kind struct {
	Precision string // SINGLE or DOUBLE
	Domain    string // REAL or COMPLEX
}

// Descriptor spells the oneMKL descriptor type of k.
func (k Kind) Descriptor() string {
	return "oneapi::mkl::dft::descriptor<oneapi::mkl::dft::precision::" + k.Precision +
		", oneapi::mkl::dft::domain::" + k.Domain + ">"
}

// State is the life-cycle position of a plan handle.
type State uint8

const (
	Uninitialized State = iota
	PlanSeen
	ExecSeen
	Finalized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case PlanSeen:
		return "planned"
	case ExecSeen:
		return "executed"
	case Finalized:
		return "finalized"
	}
	return "unknown"
}

// Handle is what the run knows about one plan handle.
type Handle struct {
	Key   string
	State State
	// Transform is the cufftType name the plan was created with, or "".
	Transform string
	// Dims holds the migrated extents, slowest varying first.
	Dims  []string
	Batch string
	// Stream is the spelled stream bound with cufftSetStream, or "".
	Stream string
	// InPlace and OutOfPlace count the executions of each kind.
	InPlace, OutOfPlace int
}

// Execs returns how many executions were seen.
func (h *Handle) Execs() int { return h.InPlace + h.OutOfPlace }

// PlanInPlace reports whether the plan should be committed in place: every
// execution seen so far reads and writes the same buffer.
func (h *Handle) PlanInPlace() bool { return h.InPlace > 0 && h.OutOfPlace == 0 }

// Known reports whether a plan for h has been seen.
func (h *Handle) Known() bool { return h != nil && h.State >= PlanSeen && h.Transform != "" }

// advance moves h forward; states never go back.
func (h *Handle) advance(s State) {
	if s > h.State {
		h.State = s
	}
}

// Table is the run-wide record of plan handles and observed descriptor
// kinds. Writes happen during discovery; reads during synthesis.
type Table struct {
	handles map[string]*Handle
	kinds   map[Kind]bool
	// call sites already observed, so repeated rounds count each once
	seen map[string]bool

	// handles migrated this round without the information they needed
	pendingDecl map[string]bool
	pendingExec map[string]bool
	// plans committed before any execution of theirs was seen
	pendingPlan map[string]bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	t := &Table{}
	t.Reset()
	return t
}

// Reset drops everything.
func (t *Table) Reset() {
	t.handles = make(map[string]*Handle)
	t.kinds = make(map[Kind]bool)
	t.seen = make(map[string]bool)
	t.BeginRound()
}

// BeginRound forgets the pending records of the previous round.
func (t *Table) BeginRound() {
	t.pendingDecl = make(map[string]bool)
	t.pendingExec = make(map[string]bool)
	t.pendingPlan = make(map[string]bool)
}

// firstSight reports whether the call site at loc is observed for the first
// time in the run.
func (t *Table) firstSight(loc string) bool {
	if t.seen[loc] {
		return false
	}
	t.seen[loc] = true
	return true
}

// Handle returns the record for key, creating it on first use.
func (t *Table) Handle(key string) *Handle {
	if h, ok := t.handles[key]; ok {
		return h
	}
	h := &Handle{Key: key}
	t.handles[key] = h
	return h
}

// Lookup returns the record for key, or nil.
func (t *Table) Lookup(key string) *Handle {
	if key == "" {
		return nil
	}
	return t.handles[key]
}

// Handles returns every record sorted by key.
func (t *Table) Handles() []*Handle {
	out := make([]*Handle, 0, len(t.handles))
	for _, h := range t.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Observe records a descriptor kind used somewhere in the run.
func (t *Table) Observe(k Kind) { t.kinds[k] = true }

// Singleton returns the only kind observed in the run.
func (t *Table) Singleton() (Kind, bool) {
	if len(t.kinds) != 1 {
		return Kind{}, false
	}
	for k := range t.kinds {
		return k, true
	}
	return Kind{}, false
}

// KindOf resolves the descriptor kind of a handle: from its plan, or from
// the only kind the run uses.
func (t *Table) KindOf(key string) (Kind, bool) {
	if h := t.Lookup(key); h.Known() {
		return transforms[h.Transform].kind, true
	}
	return t.Singleton()
}

// NeedRunAgain reports whether something migrated this round with missing
// information could now be resolved.
func (t *Table) NeedRunAgain() bool {
	for key := range t.pendingDecl {
		if _, ok := t.KindOf(key); ok {
			return true
		}
	}
	for key := range t.pendingExec {
		if t.Lookup(key).Known() {
			return true
		}
	}
	for key := range t.pendingPlan {
		if h := t.Lookup(key); h != nil && h.Execs() > 0 {
			return true
		}
	}
	return false
}
