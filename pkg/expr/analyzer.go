// Package expr rewrites CUDA expressions into SYCL text. It maps built-in
// variables, vector and property fields, types and enumerators through
// lookup tables, sends calls through the rule registry and composes the
// edits of nested sub-expressions into one replacement per expression.
package expr

import (
	"fmt"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/rules"
	"github.com/l3aro/cuda2sycl/pkg/source"
	"github.com/l3aro/cuda2sycl/pkg/srcloc"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

const origin = "expr"

// Hooks let the launch and library builders take over constructs the
// analyzer meets. Every hook is optional.
type Hooks struct {
	// LaunchStmt rewrites a launch that is a whole statement. It reports
	// whether it handled the statement.
	LaunchStmt func(s *ast.ExprStmt, l *ast.KernelLaunch) bool
	// LaunchExpr renders a launch used inside a larger expression.
	LaunchExpr func(l *ast.KernelLaunch) (string, bool)
	// Call offers a call to the library builders before the registry.
	Call func(ctx *rules.CallContext) rules.Rewriter
	// DeclType retypes a declaration, e.g. a library handle.
	DeclType func(d ast.Decl, t *ast.Type) (string, bool)
	// TypeName maps a single type name before the registry tables.
	TypeName func(name string) (string, bool)
	// ObserveCall and ObserveLaunch see every call and launch during
	// discovery.
	ObserveCall   func(c *ast.Call, fn *ast.FunctionDecl)
	ObserveLaunch func(l *ast.KernelLaunch, fn *ast.FunctionDecl)
}

type result struct {
	text    string
	changed bool
}

type ruleEntry struct {
	rw  rules.Rewriter
	ctx *rules.CallContext
}

// Analyzer migrates the expressions of one translation unit at a time.
type Analyzer struct {
	R     *srcloc.Resolver
	Rules *rules.Registry
	Graph *usage.Graph
	Diag  diag.Emitter
	USM   bool
	// OneDimItems allows one-dimensional work-item indexing in functions
	// whose launch group is provably one-dimensional.
	OneDimItems bool
	Hooks       Hooks

	parents ast.ParentMap
	fn      *ast.FunctionDecl
	info    *usage.DeviceFunctionInfo

	memo map[ast.Expr]result
	rws  map[*ast.Call]ruleEntry
	sub  []replace.Replacement
}

// New creates an Analyzer.
func New(r *srcloc.Resolver, reg *rules.Registry, g *usage.Graph) *Analyzer {
	return &Analyzer{
		R:     r,
		Rules: reg,
		Graph: g,
		memo:  make(map[ast.Expr]result),
		rws:   make(map[*ast.Call]ruleEntry),
	}
}

// SetParents installs the parent map of the translation unit being migrated.
func (a *Analyzer) SetParents(pm ast.ParentMap) { a.parents = pm }

// Parents returns the current parent map.
func (a *Analyzer) Parents() ast.ParentMap { return a.parents }

// Enter sets the function whose body is analyzed next. info is nil for
// host functions.
func (a *Analyzer) Enter(fn *ast.FunctionDecl, info *usage.DeviceFunctionInfo) {
	a.fn, a.info = fn, info
}

// Func returns the function being analyzed, or nil at file scope.
func (a *Analyzer) Func() *ast.FunctionDecl { return a.fn }

// Info returns the usage record of the function being analyzed.
func (a *Analyzer) Info() *usage.DeviceFunctionInfo { return a.info }

// InDevice reports whether the current function runs on the device.
func (a *Analyzer) InDevice() bool { return a.fn != nil && a.fn.IsDevice() }

// Dim returns the work-item dimensionality used in the current function.
func (a *Analyzer) Dim() int {
	if a.OneDimItems && a.info != nil && a.Graph.Dim(a.info) == 1 {
		return 1
	}
	return 3
}

// KeyOf returns the stable identity of the declaration spelled at rng.
func (a *Analyzer) KeyOf(rng source.Range) usage.Key {
	reg := a.R.Resolve(rng)
	if !reg.Valid {
		return usage.Key{Path: a.R.Files().Path(rng.Begin.File), Offset: rng.Begin.Offset}
	}
	return usage.Key{Path: reg.Path, Offset: reg.CoreStart()}
}

// FuncKey returns the identity of the logical function fn belongs to.
func (a *Analyzer) FuncKey(fn *ast.FunctionDecl) usage.Key {
	root := fn.Root()
	if root.NameRng.IsValid() {
		return a.KeyOf(root.NameRng)
	}
	return a.KeyOf(root.Range())
}

// Migrate returns the migrated text of e and whether it differs from the
// source text.
func (a *Analyzer) Migrate(e ast.Expr) (string, bool) {
	if e == nil {
		return "", false
	}
	if r, ok := a.memo[e]; ok {
		return r.text, r.changed
	}
	text, changed := a.rewrite(e)
	a.memo[e] = result{text: text, changed: changed}
	return text, changed
}

// Text returns the migrated text of e, or its source text when nothing
// changed.
func (a *Analyzer) Text(e ast.Expr) string {
	if text, ok := a.Migrate(e); ok {
		return text
	}
	return a.R.SourceText(e.Range())
}

// Expr migrates e and records a replacement when it changed.
func (a *Analyzer) Expr(e ast.Expr) {
	if e == nil {
		return
	}
	if text, ok := a.Migrate(e); ok {
		a.ReplaceCore(e.Range(), text)
	}
}

// ReplaceCore records a replacement of the core of rng.
func (a *Analyzer) ReplaceCore(rng source.Range, text string) {
	reg := a.R.Resolve(rng)
	if !reg.Valid {
		return
	}
	a.sub = append(a.sub, replace.Replacement{
		FilePath: reg.Path,
		Offset:   reg.CoreStart(),
		Length:   reg.CoreEnd() - reg.CoreStart(),
		Text:     text,
		Origin:   origin,
	})
}

// Replace records a replacement of the whole region of rng, re-emitting
// any empty macros folded into it.
func (a *Analyzer) Replace(rng source.Range, text string) {
	reg := a.R.Resolve(rng)
	if !reg.Valid {
		return
	}
	a.sub = append(a.sub, replace.Replacement{
		FilePath: reg.Path,
		Offset:   reg.Offset,
		Length:   reg.Length,
		Text:     reg.Prefix + text + reg.Postfix,
		Origin:   origin,
	})
}

// InsertAt records an insertion at off in the file of rng.
func (a *Analyzer) InsertAt(path string, off uint32, text string) {
	a.sub = append(a.sub, replace.Replacement{FilePath: path, Offset: off, Text: text, Origin: origin})
}

// InsertBeforeStmt inserts stmts, one per line, ahead of the statement
// enclosing n.
func (a *Analyzer) InsertBeforeStmt(n ast.Node, stmts []string) {
	if len(stmts) == 0 || a.parents == nil {
		return
	}
	st := a.parents.EnclosingStmt(n)
	if st == nil {
		return
	}
	reg := a.R.Resolve(st.Range())
	if !reg.Valid {
		return
	}
	indent := a.R.Files().Get(reg.File).Indent(reg.Offset)
	a.InsertAt(reg.Path, reg.Offset, strings.Join(stmts, "\n"+indent)+"\n"+indent)
}

// Subs returns the replacements accumulated so far.
func (a *Analyzer) Subs() []replace.Replacement { return a.sub }

// ApplyAllSubExprRepl moves the accumulated replacements into store and
// returns how many were rejected as conflicts.
func (a *Analyzer) ApplyAllSubExprRepl(store *replace.Store) int {
	conflicts := 0
	for _, r := range a.sub {
		if err := store.Add(r); err != nil {
			conflicts++
		}
	}
	a.sub = nil
	return conflicts
}

// Reset forgets per-translation-unit state.
func (a *Analyzer) Reset() {
	a.memo = make(map[ast.Expr]result)
	a.rws = make(map[*ast.Call]ruleEntry)
	a.sub = nil
	a.parents = nil
	a.fn, a.info = nil, nil
}

type pending struct {
	reg  srcloc.Region
	text string
	// insert places text at reg's core end without replacing anything.
	insert bool
}

// compose migrates the children of e and splices their edits, plus extra,
// into e's source text. Edits that fall outside e's region, as happens for
// macro arguments spelled elsewhere, go to the sub-replacement list.
func (a *Analyzer) compose(e ast.Expr, extra ...pending) (string, bool) {
	reg := a.R.Resolve(e.Range())
	if !reg.Valid {
		return "", false
	}
	base := a.R.CoreText(reg)
	var sr replace.StringReplacements
	type span struct{ s, e uint32 }
	var taken []span

	add := func(p pending) {
		cr := p.reg
		if !cr.Valid {
			return
		}
		start, end := cr.CoreStart(), cr.CoreEnd()
		if p.insert {
			start = end
		}
		inside := cr.File == reg.File && start >= reg.CoreStart() && end <= reg.CoreEnd()
		if !inside {
			a.sub = append(a.sub, replace.Replacement{
				FilePath: cr.Path, Offset: start, Length: end - start, Text: p.text, Origin: origin,
			})
			return
		}
		if start < end {
			for _, t := range taken {
				if start < t.e && t.s < end {
					return
				}
			}
			taken = append(taken, span{start, end})
		}
		sr.Add(int(start-reg.CoreStart()), int(end-start), p.text)
	}

	for _, c := range ast.Children(e) {
		ce, ok := c.(ast.Expr)
		if !ok {
			continue
		}
		if text, changed := a.Migrate(ce); changed {
			add(pending{reg: a.R.Resolve(ce.Range()), text: text})
		}
	}
	for _, p := range extra {
		add(p)
	}
	if sr.Len() == 0 {
		return base, false
	}
	return sr.Apply(base), true
}

func (a *Analyzer) rewrite(e ast.Expr) (string, bool) {
	switch x := e.(type) {
	case *ast.DeclRef:
		if text, ok := a.declRef(x); ok {
			return text, true
		}
	case *ast.Member:
		if text, ok := a.member(x); ok {
			return text, true
		}
	case *ast.Call:
		return a.call(x)
	case *ast.KernelLaunch:
		if a.Hooks.LaunchExpr != nil {
			if text, ok := a.Hooks.LaunchExpr(x); ok {
				return text, true
			}
		}
	case *ast.Binary:
		if text, ok := a.textureAssign(x); ok {
			return text, true
		}
	case *ast.Cast:
		if x.Kind != ast.ImplicitCast {
			return a.compose(x, a.typeEdit(x.TypeRng)...)
		}
	case *ast.SizeOf:
		if x.Arg != nil {
			return a.compose(x, a.typeEdit(x.TypeRng)...)
		}
	case *ast.Construct:
		if x.Type().Is("dim3") {
			return a.dim3(x.Args), true
		}
		return a.compose(x, a.typeEdit(x.TypeRng)...)
	}
	return a.compose(e)
}

func (a *Analyzer) typeEdit(rng source.Range) []pending {
	if !rng.IsValid() {
		return nil
	}
	text, ok := a.MigrateTypeText(a.R.SourceText(rng))
	if !ok {
		return nil
	}
	return []pending{{reg: a.R.Resolve(rng), text: text}}
}

func (a *Analyzer) declRef(x *ast.DeclRef) (string, bool) {
	switch d := x.Decl.(type) {
	case nil:
		if x.Name == "warpSize" && a.InDevice() {
			return warpSizeExpr, true
		}
		if to, ok := a.macroName(x.Name, false); ok {
			return to, true
		}
		return a.Rules.Name(rules.KindEnum, x.Name)
	case *ast.EnumConstant:
		if to, ok := a.macroName(x.Name, true); ok {
			return to, true
		}
		return a.Rules.Name(rules.KindEnum, x.Name)
	case *ast.VarDecl:
		if a.info == nil {
			return "", false
		}
		v := a.info.Vars.Lookup(a.KeyOf(d.NameRng))
		if v == nil {
			return "", false
		}
		name := v.DisplayName()
		switch v.Kind {
		case usage.Global, usage.Constant, usage.Managed, usage.Shared:
			if v.Dims() == 0 {
				return "*" + name, true
			}
		}
		return name, name != x.Name
	}
	return "", false
}

// macroName maps a macro use through the macro rules. Unresolved names may
// come from headers that were not parsed; a resolved one must be a #define
// seen by the front end when defined is set.
func (a *Analyzer) macroName(name string, defined bool) (string, bool) {
	if a.Rules == nil {
		return "", false
	}
	if defined {
		if _, ok := a.R.Files().Macros().Definition(name); !ok {
			return "", false
		}
	}
	return a.Rules.Name(rules.KindMacro, name)
}

func (a *Analyzer) member(x *ast.Member) (string, bool) {
	if ref, ok := ast.Unparen(x.X).(*ast.DeclRef); ok && ref.Decl == nil {
		if getter, ok := builtinIndex[ref.Name]; ok {
			idx, ok := dimIndex[x.Name]
			if !ok {
				return "", false
			}
			if a.Dim() == 1 {
				idx = 0
			}
			return fmt.Sprintf("%s.%s(%d)", usage.ItemName, getter, idx), true
		}
	}

	t := x.X.Type()
	if x.Arrow {
		t = t.Pointee()
	}
	if t == nil {
		return "", false
	}
	op := "."
	if x.Arrow {
		op = "->"
	}
	switch {
	case t.Is("dim3"):
		idx, ok := dimIndex[x.Name]
		if !ok {
			return "", false
		}
		obj := a.Text(x.X)
		if x.Arrow {
			obj = "(*" + obj + ")"
		}
		return fmt.Sprintf("%s[%d]", obj, idx), true
	case isVector(t) && vectorFields[x.Name]:
		return a.Text(x.X) + op + x.Name + "()", true
	case t.Is("cudaDeviceProp"):
		if getter, ok := deviceProps[x.Name]; ok {
			return a.Text(x.X) + op + getter + "()", true
		}
	}
	return "", false
}

func isVector(t *ast.Type) bool {
	c := t.Canonical()
	return vectorTypes[t.Name] || (c != nil && vectorTypes[c.Name])
}

// textureAssign turns tex.filterMode = m into tex.set(m).
func (a *Analyzer) textureAssign(b *ast.Binary) (string, bool) {
	if b.Op != "=" {
		return "", false
	}
	lhs := ast.Unparen(b.X)
	if ix, ok := lhs.(*ast.Index); ok {
		lhs = ast.Unparen(ix.X)
	}
	m, ok := lhs.(*ast.Member)
	if !ok {
		return "", false
	}
	setter, ok := textureFields[m.Name]
	if !ok {
		return "", false
	}
	t := m.X.Type()
	if m.Arrow {
		t = t.Pointee()
	}
	if t == nil || !(textureTypes[t.Name] || textureTypes[t.BaseName()]) {
		return "", false
	}
	op := "."
	if m.Arrow {
		op = "->"
	}
	return a.Text(m.X) + op + setter + "(" + a.Text(b.Y) + ")", true
}

// dim3 renders a dim3 construction as a range with the components reversed.
func (a *Analyzer) dim3(args []ast.Expr) string {
	dims := []string{"1", "1", "1"}
	for i, arg := range args {
		if i > 2 {
			break
		}
		dims[2-i] = a.Text(arg)
	}
	return "sycl::range<3>(" + strings.Join(dims, ", ") + ")"
}
