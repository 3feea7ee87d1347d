package source

import (
	"sort"
	"sync"
)

// MacroID identifies one macro expansion. Zero means "not in a macro".
type MacroID uint32

// NoMacro is the zero MacroID.
const NoMacro MacroID = 0

// Expansion records one macro invocation.
type Expansion struct {
	ID     MacroID
	Name   string
	Parent MacroID // enclosing expansion for macros invoked inside macro bodies
	// Invocation is where the macro name and its argument list are spelled.
	// For top-level expansions this is text in a regular file; for nested
	// expansions it is text inside the parent macro's definition.
	Invocation Span
	// Args are the spelled argument spans inside Invocation.
	Args []Span
}

// Definition records a #define directive.
type Definition struct {
	Name       string
	Span       Span // the whole directive
	Body       Span // replacement list
	Params     []string
	FuncLike   bool
	IsEmpty    bool
	Definition string
}

// MacroTable holds expansion and definition records.
type MacroTable struct {
	mu          sync.RWMutex
	expansions  []*Expansion
	definitions map[string]*Definition
	emptyUses   map[FileID][]Span
}

// NewMacroTable creates an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{
		expansions:  []*Expansion{nil},
		definitions: make(map[string]*Definition),
		emptyUses:   make(map[FileID][]Span),
	}
}

// AddExpansion stores e and returns its assigned ID.
func (t *MacroTable) AddExpansion(e Expansion) MacroID {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.ID = MacroID(len(t.expansions))
	t.expansions = append(t.expansions, &e)
	return e.ID
}

// Expansion returns the record for id, or nil.
func (t *MacroTable) Expansion(id MacroID) *Expansion {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == NoMacro || int(id) >= len(t.expansions) {
		return nil
	}
	return t.expansions[id]
}

// Outermost walks parent links up to the top-level expansion of id.
func (t *MacroTable) Outermost(id MacroID) *Expansion {
	e := t.Expansion(id)
	for e != nil && e.Parent != NoMacro {
		p := t.Expansion(e.Parent)
		if p == nil {
			break
		}
		e = p
	}
	return e
}

// IsMacroArg reports whether l is spelled inside one of the arguments of its
// immediate expansion.
func (t *MacroTable) IsMacroArg(l Loc) bool {
	e := t.Expansion(l.Macro)
	if e == nil {
		return false
	}
	for _, a := range e.Args {
		if a.File == l.File && a.Start <= l.Offset && l.Offset <= a.End {
			return true
		}
	}
	return false
}

// Define records a #define. Later definitions of the same name replace earlier ones.
func (t *MacroTable) Define(d Definition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	def := d
	t.definitions[d.Name] = &def
}

// Definition returns the definition for name.
func (t *MacroTable) Definition(name string) (*Definition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.definitions[name]
	return d, ok
}

// AddEmptyUse records a use of a macro that expands to nothing.
func (t *MacroTable) AddEmptyUse(s Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	uses := t.emptyUses[s.File]
	i := sort.Search(len(uses), func(i int) bool { return uses[i].Start >= s.Start })
	if i < len(uses) && uses[i] == s {
		return
	}
	uses = append(uses, Span{})
	copy(uses[i+1:], uses[i:])
	uses[i] = s
	t.emptyUses[s.File] = uses
}

// EmptyUses returns the sorted empty-macro uses of a file.
func (t *MacroTable) EmptyUses(file FileID) []Span {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.emptyUses[file]
}
