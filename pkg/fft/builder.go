package fft

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/expr"
	"github.com/l3aro/cuda2sycl/pkg/rules"
)

const (
	dftNS    = "oneapi::mkl::dft::"
	cfgParam = dftNS + "config_param::"
	cfgValue = dftNS + "config_value::"
)

// Builder rewrites cuFFT calls met by an analyzer. Plan and execution
// facts live in T, which outlives a single translation unit.
type Builder struct {
	A *expr.Analyzer
	T *Table
}

// New creates a Builder over a and t.
func New(a *expr.Analyzer, t *Table) *Builder {
	return &Builder{A: a, T: t}
}

// Install chains the builder into the analyzer's hooks.
func (b *Builder) Install() {
	h := &b.A.Hooks
	h.OnCall(b.Rewriter)
	h.OnDeclType(b.DeclType)
	h.OnTypeName(b.typeName)
	h.OnObserveCall(b.Observe)
}

// Observe records plan, execution, stream and destruction facts during
// discovery. Each call site counts once per run.
func (b *Builder) Observe(c *ast.Call, _ *ast.FunctionDecl) {
	name := c.CalleeName()
	_, isPlan := plans[name]
	_, isExec := execs[name]
	switch {
	case isPlan, isExec, name == "cufftDestroy", name == "cufftSetStream", name == "cufftCreate":
	default:
		return
	}
	if len(c.Args) == 0 || !b.T.firstSight(b.A.KeyOf(c.Range()).String()) {
		return
	}
	// facts about a handle without a stable key still feed the kind set
	h := &Handle{}
	if key := b.keyOf(c.Args[0]); key != "" {
		h = b.T.Handle(key)
	}
	src := func(i int) string {
		if i < 0 || i >= len(c.Args) {
			return ""
		}
		return b.A.R.SourceText(c.Args[i].Range())
	}

	switch {
	case isPlan:
		shape := plans[name]
		if i := shape.typ; i < len(c.Args) {
			if t, ok := transformOf(c.Args[i]); ok {
				h.Transform = t
				b.T.Observe(transforms[t].kind)
			}
		}
		h.Dims = h.Dims[:0]
		if shape.many {
			if rank, ok := ast.IntValue(argAt(c.Args, 1)); ok {
				for i := int64(0); i < rank; i++ {
					h.Dims = append(h.Dims, src(2)+"["+strconv.FormatInt(i, 10)+"]")
				}
			}
		} else {
			for _, i := range shape.dims {
				h.Dims = append(h.Dims, src(i))
			}
		}
		h.Batch = "1"
		if shape.batch >= 0 && shape.batch < len(c.Args) {
			h.Batch = src(shape.batch)
		}
		h.advance(PlanSeen)
	case isExec:
		b.T.Observe(transforms[execs[name]].kind)
		if b.sameBuffer(argAt(c.Args, 1), argAt(c.Args, 2)) {
			h.InPlace++
		} else {
			h.OutOfPlace++
		}
		h.advance(ExecSeen)
	case name == "cufftDestroy":
		h.advance(Finalized)
	case name == "cufftSetStream":
		h.Stream = src(1)
	}
}

// Rewriter returns the rewriter of a cuFFT call, or nil for other calls.
func (b *Builder) Rewriter(ctx *rules.CallContext) rules.Rewriter {
	if ctx.InDevice || ctx.NumArgs() == 0 {
		return nil
	}
	if shape, ok := plans[ctx.Name]; ok {
		return multi(func() (rules.Expansion, bool) { return b.plan(ctx, shape) })
	}
	if t, ok := execs[ctx.Name]; ok {
		return multi(func() (rules.Expansion, bool) { return b.exec(ctx, transforms[t]) })
	}
	switch ctx.Name {
	case "cufftCreate":
		return multi(func() (rules.Expansion, bool) { return rules.Expansion{Value: "0"}, true })
	case "cufftDestroy":
		return &rules.Assignable{Ctx: ctx, Inner: rules.Func(func() (string, bool) {
			return ctx.Arg(0) + ".reset()", true
		})}
	case "cufftSetStream":
		return &rules.Assignable{Ctx: ctx, Inner: rules.Func(func() (string, bool) {
			return arrow(ctx.Arg(0)) + "commit(" + ctx.QueueFor(1) + ")", true
		})}
	}
	return nil
}

// DeclType retypes cufftHandle declarations to a shared descriptor.
func (b *Builder) DeclType(d ast.Decl, t *ast.Type) (string, bool) {
	if t == nil || !t.Is("cufftHandle") {
		return "", false
	}
	key := declKey(b.A, d)
	if k, ok := b.T.KindOf(key); ok {
		return "std::shared_ptr<" + k.Descriptor() + ">", true
	}
	b.A.Diag.Emit(d.Range(), diag.FFTPrecisionUndeducible, declName(d))
	b.T.pendingDecl[key] = true
	return "std::shared_ptr<" + Placeholder + ">", true
}

// typeName covers cufftHandle spelled inside larger types, e.g. pointers.
func (b *Builder) typeName(name string) (string, bool) {
	if name != "cufftHandle" {
		return "", false
	}
	if k, ok := b.T.Singleton(); ok {
		return "std::shared_ptr<" + k.Descriptor() + ">", true
	}
	return "std::shared_ptr<" + Placeholder + ">", true
}

func (b *Builder) plan(ctx *rules.CallContext, shape planShape) (rules.Expansion, bool) {
	h := b.handleText(ctx, shape.byValue)
	key := b.keyOf(ctx.ArgExpr(0))
	info := b.T.Lookup(key)

	desc := Placeholder
	var tr transform
	name, known := transformOf(ctx.ArgExpr(shape.typ))
	if known {
		tr = transforms[name]
		desc = tr.kind.Descriptor()
	} else if k, ok := b.T.KindOf(key); ok {
		desc = k.Descriptor()
		tr.kind = k
	} else {
		ctx.Emit(diag.FFTPrecisionUndeducible, h)
		b.T.pendingDecl[key] = true
	}

	var dims []string
	ctor := ""
	if shape.many {
		n := ctx.Arg(2)
		rank, ok := ast.IntValue(ctx.ArgExpr(1))
		if ok && rank > 0 {
			for i := int64(0); i < rank; i++ {
				dims = append(dims, n+"["+strconv.FormatInt(i, 10)+"]")
			}
		} else {
			ctx.Emit(diag.FFTPlanManyRankUnknown, ctx.Name)
			ctor = fmt.Sprintf("std::vector<std::int64_t>(%s, %s + %s)", n, n, ctx.Arg(1))
		}
	} else {
		for _, i := range shape.dims {
			dims = append(dims, ctx.Arg(i))
		}
	}
	switch {
	case ctor != "":
	case len(dims) == 1:
		ctor = dims[0]
	default:
		ctor = "std::vector<std::int64_t>{" + strings.Join(dims, ", ") + "}"
	}

	batch := "1"
	if shape.batch >= 0 && shape.batch < ctx.NumArgs() {
		batch = ctx.Arg(shape.batch)
	}
	inPlace := info != nil && info.PlanInPlace()
	if key != "" && (info == nil || info.Execs() == 0) {
		b.T.pendingPlan[key] = true
	}

	hp := arrow(h)
	stmts := []string{fmt.Sprintf("%s = std::make_shared<%s>(%s);", h, desc, ctor)}
	if batch != "1" {
		stmts = append(stmts, fmt.Sprintf("%sset_value(%sNUMBER_OF_TRANSFORMS, %s);", hp, cfgParam, batch))
		if fwd, bwd, ok := b.planDistances(ctx, shape, tr, dims, inPlace); ok {
			stmts = append(stmts, distanceStmts(hp, fwd, bwd)...)
		}
	}
	if tr.real() {
		stmts = append(stmts, fmt.Sprintf("%sset_value(%sCONJUGATE_EVEN_STORAGE, %sCOMPLEX_COMPLEX);", hp, cfgParam, cfgValue))
	}
	stmts = append(stmts,
		placementStmt(hp, inPlace),
		fmt.Sprintf("%scommit(%s);", hp, b.queue(info)))
	return rules.Expansion{Stmts: stmts, Value: "0"}, true
}

// planDistances takes explicit distances from an advanced-layout plan and
// computes packed ones otherwise.
func (b *Builder) planDistances(ctx *rules.CallContext, shape planShape, tr transform, dims []string, inPlace bool) (fwd, bwd string, ok bool) {
	if shape.many && !isNull(ctx.Arg(3)) {
		idist, odist := ctx.Arg(5), ctx.Arg(8)
		if tr.dir == dirBackward {
			return odist, idist, true
		}
		return idist, odist, true
	}
	if len(dims) == 0 {
		return "", "", false
	}
	fwd, bwd = distances(dims, tr.real(), inPlace)
	return fwd, bwd, true
}

func (b *Builder) exec(ctx *rules.CallContext, tr transform) (rules.Expansion, bool) {
	if ctx.NumArgs() < 3 {
		return rules.Expansion{}, false
	}
	h := ctx.Arg(0)
	key := b.keyOf(ctx.ArgExpr(0))
	info := b.T.Lookup(key)
	if key != "" && !info.Known() {
		b.T.pendingExec[key] = true
	}

	in, out := ctx.ArgExpr(1), ctx.ArgExpr(2)
	inPlace := b.sameBuffer(in, out)
	if inPlace {
		ctx.Emit(diag.FFTInPlaceHeuristic, ctx.Name)
	}
	dir := tr.dir
	if dir == dirUnknown {
		dir = directionOf(ctx.ArgExpr(3), ctx.Arg(3))
	}

	hp := arrow(h)
	q := b.queue(info)
	recommit := info.Known() && inPlace != info.PlanInPlace()
	var stmts []string

	if recommit {
		stmts = append(stmts, placementStmt(hp, inPlace))
		stmts = append(stmts, b.execDistances(hp, info, inPlace)...)
		stmts = append(stmts, fmt.Sprintf("%scommit(%s);", hp, q))
	}

	inText := b.A.Text(ast.StripCasts(in))
	outText := b.A.Text(ast.StripCasts(out))
	var args []string
	if ctx.USM {
		args = append(args, fmt.Sprintf("(%s *)%s", tr.in, inText))
		if !inPlace {
			args = append(args, fmt.Sprintf("(%s *)%s", tr.out, outText))
		}
	} else {
		inBuf := bufferName(in, "in")
		stmts = append(stmts, fmt.Sprintf("auto %s = dpct::get_buffer<%s>(%s);", inBuf, tr.in, inText))
		args = append(args, inBuf)
		if !inPlace {
			outBuf := bufferName(out, "out")
			if outBuf == inBuf {
				outBuf = "out_buf_ct"
			}
			stmts = append(stmts, fmt.Sprintf("auto %s = dpct::get_buffer<%s>(%s);", outBuf, tr.out, outText))
			args = append(args, outBuf)
		}
	}

	call := func(which string) string {
		return fmt.Sprintf("%scompute_%s(*%s, %s);", dftNS, which, h, strings.Join(args, ", "))
	}
	switch dir {
	case dirForward:
		stmts = append(stmts, call("forward"))
	case dirBackward:
		stmts = append(stmts, call("backward"))
	default:
		ctx.Emit(diag.FFTDirectionUnknown, ctx.Name)
		stmts = append(stmts,
			fmt.Sprintf("if ((%s) == 1) {", ctx.Arg(3)),
			"  "+call("backward"),
			"} else {",
			"  "+call("forward"),
			"}")
	}

	if recommit {
		stmts = append(stmts, placementStmt(hp, !inPlace))
		stmts = append(stmts, b.execDistances(hp, info, !inPlace)...)
		stmts = append(stmts, fmt.Sprintf("%scommit(%s);", hp, q))
	}
	return rules.Expansion{Stmts: stmts, Value: "0"}, true
}

// execDistances re-sets the distances of a batched real plan for the given
// placement. Complex distances do not depend on it.
func (b *Builder) execDistances(hp string, info *Handle, inPlace bool) []string {
	if info.Batch == "1" || info.Batch == "" || len(info.Dims) == 0 || !transforms[info.Transform].real() {
		return nil
	}
	fwd, bwd := distances(info.Dims, true, inPlace)
	return distanceStmts(hp, fwd, bwd)
}

// queue returns the queue a plan commits to.
func (b *Builder) queue(h *Handle) string {
	if h == nil || h.Stream == "" {
		return rules.DefaultQueue
	}
	return rules.NewCallContext(nil, "", []string{h.Stream}).QueueFor(0)
}

// handleText spells the handle a plan call initializes.
func (b *Builder) handleText(ctx *rules.CallContext, byValue bool) string {
	if byValue {
		return ctx.Arg(0)
	}
	if u, ok := ast.StripCasts(ctx.ArgExpr(0)).(*ast.Unary); ok && u.Op == "&" {
		return b.A.Text(u.X)
	}
	return "*" + ctx.Arg(0)
}

// keyOf identifies the handle an argument refers to: by declaration for
// variables, by field name for members. Parameters have no stable key.
func (b *Builder) keyOf(e ast.Expr) string {
	if e == nil {
		return ""
	}
	e = ast.StripCasts(e)
	if u, ok := e.(*ast.Unary); ok && u.Op == "&" {
		e = ast.StripCasts(u.X)
	}
	if m, ok := e.(*ast.Member); ok {
		return "." + m.Name
	}
	if d := ast.RefDecl(e); d != nil {
		return declKey(b.A, d)
	}
	return ""
}

func declKey(a *expr.Analyzer, d ast.Decl) string {
	switch x := d.(type) {
	case *ast.VarDecl:
		if x.Global {
			return "::" + x.Name
		}
		return a.KeyOf(x.NameRng).String()
	case *ast.FieldDecl:
		return "." + x.Name
	}
	return ""
}

func declName(d ast.Decl) string {
	switch x := d.(type) {
	case *ast.VarDecl:
		return x.Name
	case *ast.ParamDecl:
		return x.Name
	case *ast.FieldDecl:
		return x.Name
	}
	return "handle"
}

// sameBuffer is the in-place test: both pointers spell the same expression
// once casts are stripped.
func (b *Builder) sameBuffer(in, out ast.Expr) bool {
	if in == nil || out == nil {
		return false
	}
	x := strings.Join(strings.Fields(b.A.R.SourceText(ast.StripCasts(in).Range())), "")
	y := strings.Join(strings.Fields(b.A.R.SourceText(ast.StripCasts(out).Range())), "")
	return x != "" && x == y
}

// distances returns packed forward and backward distances. Real transforms
// keep n/2+1 complex values on the last axis; in place the real side is
// padded to twice that.
func distances(dims []string, real, inPlace bool) (fwd, bwd string) {
	terms := make([]string, len(dims))
	for i, d := range dims {
		terms[i] = factor(d)
	}
	if !real {
		p := strings.Join(terms, " * ")
		return p, p
	}
	last := "(" + dims[len(dims)-1] + " / 2 + 1)"
	prefix := terms[:len(terms)-1]
	bwd = strings.Join(append(append([]string{}, prefix...), last), " * ")
	if inPlace {
		fwd = strings.Join(append(append([]string{}, prefix...), "2", last), " * ")
	} else {
		fwd = strings.Join(terms, " * ")
	}
	return fwd, bwd
}

func distanceStmts(hp, fwd, bwd string) []string {
	return []string{
		fmt.Sprintf("%sset_value(%sFWD_DISTANCE, %s);", hp, cfgParam, fwd),
		fmt.Sprintf("%sset_value(%sBWD_DISTANCE, %s);", hp, cfgParam, bwd),
	}
}

func placementStmt(hp string, inPlace bool) string {
	v := "NOT_INPLACE"
	if inPlace {
		v = "INPLACE"
	}
	return fmt.Sprintf("%sset_value(%sPLACEMENT, %s%s);", hp, cfgParam, cfgValue, v)
}

// arrow returns the member-access prefix for a handle expression.
func arrow(h string) string {
	if strings.HasPrefix(h, "*") {
		return "(" + h + ")->"
	}
	return h + "->"
}

func factor(s string) string {
	for _, c := range s {
		if !(c == '_' || c == '.' || c == '[' || c == ']' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return "(" + s + ")"
		}
	}
	return s
}

func bufferName(e ast.Expr, fallback string) string {
	if r, ok := ast.StripCasts(e).(*ast.DeclRef); ok {
		return r.Name + "_buf_ct"
	}
	return fallback + "_buf_ct"
}

func isNull(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "0", "NULL", "nullptr":
		return true
	}
	return false
}

func argAt(args []ast.Expr, i int) ast.Expr {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

// multi wraps fn so the expansion, and the diagnostics it raises, are
// computed once however often the analyzer asks.
func multi(fn func() (rules.Expansion, bool)) *rules.MultiStmt {
	var (
		done bool
		e    rules.Expansion
		ok   bool
	)
	return &rules.MultiStmt{Fn: func() (rules.Expansion, bool) {
		if !done {
			e, ok = fn()
			done = true
		}
		return e, ok
	}}
}
