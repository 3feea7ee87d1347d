package rules

import (
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
)

// Rewriter produces the replacement text for one call. A false result means
// "leave the original text", never an error.
type Rewriter interface {
	Rewrite() (string, bool)
}

// Factory builds a rewriter for a call, or returns nil when the call does not
// match the rule structurally.
type Factory func(ctx *CallContext) Rewriter

// Expansion is the statement-level output of a multi-statement rewriter.
type Expansion struct {
	// Stmts replace the enclosing statement when the call is its full
	// expression; otherwise they are inserted before it.
	Stmts []string
	// Value stands in for the call when it is part of a larger expression.
	Value string
}

// Expander is implemented by rewriters that need more than one statement.
type Expander interface {
	Rewriter
	Expand() (Expansion, bool)
}

// Rename swaps the callee and keeps the arguments. When CastTo is set, integer
// literal arguments are wrapped in a cast so overload resolution picks the
// intended floating point version.
type Rename struct {
	Ctx    *CallContext
	To     string
	CastTo string
}

func (r *Rename) Rewrite() (string, bool) {
	args := make([]string, len(r.Ctx.Args))
	for i, a := range r.Ctx.Args {
		args[i] = a
		if r.CastTo == "" {
			continue
		}
		if lit, ok := ast.StripCasts(r.Ctx.ArgExpr(i)).(*ast.Literal); ok && lit.Kind == ast.IntLit {
			args[i] = "(" + r.CastTo + ")" + a
		}
	}
	return r.To + "(" + strings.Join(args, ", ") + ")", true
}

// Assign turns an out-parameter call into an assignment: the argument at LHS
// is dereferenced and receives RHS.
type Assign struct {
	Ctx *CallContext
	LHS int
	RHS *Template
}

func (a *Assign) Rewrite() (string, bool) {
	if a.LHS >= a.Ctx.NumArgs() {
		return "", false
	}
	rhs, ok := a.RHS.Eval(a.Ctx)
	if !ok {
		return "", false
	}
	return deref(a.Ctx, a.LHS) + " = " + rhs, true
}

// Templated builds Callee<TemplateArgs...>(args...). Args selects and orders
// the original arguments by index; nil keeps them all.
type Templated struct {
	Ctx          *CallContext
	Callee       string
	TemplateArgs []string
	Args         []int
}

func (t *Templated) Rewrite() (string, bool) {
	var b strings.Builder
	b.WriteString(t.Callee)
	if len(t.TemplateArgs) > 0 {
		b.WriteString("<")
		b.WriteString(strings.Join(t.TemplateArgs, ", "))
		b.WriteString(">")
	}
	b.WriteString("(")
	if t.Args == nil {
		b.WriteString(strings.Join(t.Ctx.Args, ", "))
	} else {
		for i, idx := range t.Args {
			if idx >= t.Ctx.NumArgs() {
				return "", false
			}
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(t.Ctx.Arg(idx))
		}
	}
	b.WriteString(")")
	return b.String(), true
}

// Unsupported never produces text. Its diagnostic is raised when the
// rewriter is created.
type Unsupported struct{}

// NewUnsupported reports the call and returns a rewriter that leaves it alone.
func NewUnsupported(ctx *CallContext) *Unsupported {
	ctx.Emit(diag.UnsupportedAPI, ctx.Name)
	return &Unsupported{}
}

func (*Unsupported) Rewrite() (string, bool) { return "", false }

// Assignable keeps the shape of code that consumed a CUDA status code: when
// the result is used, the rewrite becomes (inner, 0).
type Assignable struct {
	Ctx   *CallContext
	Inner Rewriter
}

func (a *Assignable) Rewrite() (string, bool) {
	text, ok := a.Inner.Rewrite()
	if !ok {
		return "", false
	}
	if !a.Ctx.ResultUsed {
		return text, true
	}
	a.Ctx.Emit(diag.ErrorCodeReplaced, a.Ctx.Name)
	return "(" + text + ", 0)", true
}

// FromTemplate evaluates an output template.
type FromTemplate struct {
	Ctx *CallContext
	T   *Template
}

func (f *FromTemplate) Rewrite() (string, bool) {
	return f.T.Eval(f.Ctx)
}

// Func adapts a closure.
type Func func() (string, bool)

func (f Func) Rewrite() (string, bool) { return f() }

// MultiStmt expands a call into several statements.
type MultiStmt struct {
	Fn func() (Expansion, bool)
}

func (m *MultiStmt) Expand() (Expansion, bool) { return m.Fn() }

func (m *MultiStmt) Rewrite() (string, bool) {
	e, ok := m.Fn()
	if !ok {
		return "", false
	}
	if e.Value == "" {
		return "0", true
	}
	return e.Value, true
}

// Factory constructors

// RenameTo returns a Rename factory.
func RenameTo(to string) Factory {
	return func(ctx *CallContext) Rewriter { return &Rename{Ctx: ctx, To: to} }
}

// RenameCast returns a Rename factory that casts integer literal arguments.
func RenameCast(to, castTo string) Factory {
	return func(ctx *CallContext) Rewriter { return &Rename{Ctx: ctx, To: to, CastTo: castTo} }
}

// AssignTo returns an Assign factory with a template right-hand side.
func AssignTo(lhs int, rhs string) Factory {
	t := MustParseTemplate(rhs)
	return func(ctx *CallContext) Rewriter { return &Assign{Ctx: ctx, LHS: lhs, RHS: t} }
}

// TemplatedCall returns a Templated factory with fixed template arguments.
func TemplatedCall(callee string, targs []string, args []int) Factory {
	return func(ctx *CallContext) Rewriter {
		return &Templated{Ctx: ctx, Callee: callee, TemplateArgs: targs, Args: args}
	}
}

// UnsupportedAPI returns a factory that reports the call.
func UnsupportedAPI() Factory {
	return func(ctx *CallContext) Rewriter { return NewUnsupported(ctx) }
}

// WithAssignable wraps a factory with the status-code preserving wrapper.
func WithAssignable(f Factory) Factory {
	return func(ctx *CallContext) Rewriter {
		inner := f(ctx)
		if inner == nil {
			return nil
		}
		return &Assignable{Ctx: ctx, Inner: inner}
	}
}

// Conditional picks then or els per call. A nil branch means no rewrite.
func Conditional(pred func(*CallContext) bool, then, els Factory) Factory {
	return func(ctx *CallContext) Rewriter {
		f := els
		if pred(ctx) {
			f = then
		}
		if f == nil {
			return nil
		}
		return f(ctx)
	}
}

// Output returns a factory evaluating an output template.
func Output(src string) Factory {
	t := MustParseTemplate(src)
	return func(ctx *CallContext) Rewriter { return &FromTemplate{Ctx: ctx, T: t} }
}

// Removed deletes the call. A consumed result becomes 0.
func Removed() Factory {
	return func(ctx *CallContext) Rewriter {
		return &MultiStmt{Fn: func() (Expansion, bool) { return Expansion{Value: "0"}, true }}
	}
}

// Predicates

// IsUSM selects the unified shared memory model.
func IsUSM(ctx *CallContext) bool { return ctx.USM }

// InDevice selects device code.
func InDevice(ctx *CallContext) bool { return ctx.InDevice }

// ResultUsed selects calls whose value is consumed.
func ResultUsed(ctx *CallContext) bool { return ctx.ResultUsed }
