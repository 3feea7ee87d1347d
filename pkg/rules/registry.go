package rules

import (
	"sort"
	"strings"
	"sync"
)

// Priority decides which of two rules for the same name wins.
type Priority uint8

const (
	// Fallback rules only fill names nobody else handles.
	Fallback Priority = iota
	// Default is the priority of built-in rules.
	Default
	// Takeover rules replace any rule of lower or equal priority.
	Takeover
)

func (p Priority) String() string {
	switch p {
	case Fallback:
		return "Fallback"
	case Takeover:
		return "Takeover"
	}
	return "Default"
}

// ParsePriority reads a rule-file priority name.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default, true
	case "takeover":
		return Takeover, true
	case "fallback":
		return Fallback, true
	}
	return Default, false
}

// Kind is what a rule matches.
type Kind uint8

const (
	KindAPI Kind = iota
	KindMacro
	KindType
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindMacro:
		return "Macro"
	case KindType:
		return "Type"
	case KindEnum:
		return "Enum"
	}
	return "API"
}

// Info describes a registered rule.
type Info struct {
	Name     string
	Kind     Kind
	Priority Priority
	Origin   string
	// UsesItem is set when the rewrite refers to the work-item object.
	UsesItem bool
}

type callEntry struct {
	Info
	factory Factory
}

type nameEntry struct {
	Info
	to string
}

// Registry maps callee, type, enum and macro names to rewrites.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]callEntry
	names map[Kind]map[string]nameEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		calls: make(map[string]callEntry),
		names: map[Kind]map[string]nameEntry{
			KindMacro: {},
			KindType:  {},
			KindEnum:  {},
		},
	}
}

// NewDefaultRegistry creates a registry holding the built-in rules.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

func wins(existing *Info, prio Priority) bool {
	if existing == nil {
		return true
	}
	if prio == Fallback {
		return false
	}
	return prio >= existing.Priority
}

// Register binds name to a call factory. It reports whether the binding was
// installed: a higher or equal priority replaces an existing rule, except
// that Fallback rules never replace anything.
func (r *Registry) Register(name string, prio Priority, origin string, f Factory) bool {
	return r.register(Info{Name: name, Kind: KindAPI, Priority: prio, Origin: origin}, f)
}

// RegisterItem is Register for rewrites that reference the work-item object.
func (r *Registry) RegisterItem(name string, prio Priority, origin string, f Factory) bool {
	return r.register(Info{Name: name, Kind: KindAPI, Priority: prio, Origin: origin, UsesItem: true}, f)
}

func (r *Registry) register(info Info, f Factory) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var existing *Info
	if e, ok := r.calls[info.Name]; ok {
		existing = &e.Info
	}
	if !wins(existing, info.Priority) {
		return false
	}
	r.calls[info.Name] = callEntry{Info: info, factory: f}
	return true
}

// RegisterName binds a type, enum or macro name to its replacement spelling.
func (r *Registry) RegisterName(kind Kind, name, to string, prio Priority, origin string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	table, ok := r.names[kind]
	if !ok {
		return false
	}
	var existing *Info
	if e, ok := table[name]; ok {
		existing = &e.Info
	}
	if !wins(existing, prio) {
		return false
	}
	table[name] = nameEntry{Info: Info{Name: name, Kind: kind, Priority: prio, Origin: origin}, to: to}
	return true
}

// Create returns a rewriter for the call, or nil when no rule matches.
func (r *Registry) Create(ctx *CallContext) Rewriter {
	r.mu.RLock()
	e, ok := r.calls[ctx.Name]
	r.mu.RUnlock()
	if !ok || e.factory == nil {
		return nil
	}
	return e.factory(ctx)
}

// Has reports whether a call rule exists for name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.calls[name]
	return ok
}

// Lookup returns the rule info for a callee name.
func (r *Registry) Lookup(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.calls[name]
	return e.Info, ok
}

// UsesItem reports whether the rule for name references the work-item object.
func (r *Registry) UsesItem(name string) bool {
	info, ok := r.Lookup(name)
	return ok && info.UsesItem
}

// Name returns the replacement spelling of a type, enum or macro name.
func (r *Registry) Name(kind Kind, name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.names[kind][name]
	return e.to, ok
}

// Rules lists every registered rule sorted by kind and name.
func (r *Registry) Rules() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.calls))
	for _, e := range r.calls {
		out = append(out, e.Info)
	}
	for _, table := range r.names {
		for _, e := range table {
			out = append(out, e.Info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}
