package rng

import (
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/expr"
	"github.com/l3aro/cuda2sycl/pkg/rules"
)

// host generator methods keyed by the cuRAND call. The generator is
// always the first argument; the rest pass through.
var hostMethods = map[string]string{
	"curandSetPseudoRandomGeneratorSeed":      "set_seed",
	"curandSetQuasiRandomGeneratorDimensions": "set_dimensions",
	"curandGenerate":                          "generate_uniform_bits",
	"curandGenerateLongLong":                  "generate_uniform_bits",
	"curandGenerateUniform":                   "generate_uniform",
	"curandGenerateUniformDouble":             "generate_uniform",
	"curandGenerateNormal":                    "generate_gaussian",
	"curandGenerateNormalDouble":              "generate_gaussian",
	"curandGenerateLogNormal":                 "generate_lognormal",
	"curandGenerateLogNormalDouble":           "generate_lognormal",
	"curandGeneratePoisson":                   "generate_poisson",
	"curandSkipAheadSequence":                 "skip_ahead",
}

const engineEnumPrefix = "dpct::rng::random_engine_type::"

// Builder rewrites cuRAND calls and state types met by an analyzer.
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
	h.OnTypeName(b.TypeName)
	h.OnObserveCall(b.Observe)
}

// Observe records the width each device generate call reads its engine
// with.
func (b *Builder) Observe(c *ast.Call, _ *ast.FunctionDecl) {
	g, ok := generators[c.CalleeName()]
	if !ok || len(c.Args) == 0 {
		return
	}
	engine, ok := engineOf(c.Args[0])
	if !ok {
		return
	}
	b.T.Observe(b.A.KeyOf(c.Range()).String(), engine, g.count)
}

// Rewriter returns the rewriter of a cuRAND call, or nil for other calls.
func (b *Builder) Rewriter(ctx *rules.CallContext) rules.Rewriter {
	if rw := b.deviceRewriter(ctx); rw != nil {
		return rw
	}
	if ctx.InDevice || ctx.NumArgs() == 0 {
		return nil
	}
	gen := ctx.Arg(0)
	switch ctx.Name {
	case "curandCreateGenerator", "curandCreateGeneratorHost":
		if ctx.NumArgs() < 2 {
			return nil
		}
		engine := strings.TrimSpace(ctx.Arg(1))
		if !strings.HasPrefix(engine, engineEnumPrefix) && strings.HasPrefix(engine, "CURAND_RNG_") {
			ctx.Emit(diag.RNGEngineTypeUnsupported, engine)
			return &rules.Unsupported{}
		}
		return assignable(ctx, b.target(ctx)+" = dpct::rng::create_host_rng("+engine+")")
	case "curandDestroyGenerator":
		return assignable(ctx, gen+".reset()")
	case "curandSetStream":
		q := "&" + rules.DefaultQueue
		if !ctx.IsDefaultStream(1) {
			q = ctx.Arg(1)
		}
		return assignable(ctx, gen+"->set_queue("+q+")")
	}
	if m, ok := hostMethods[ctx.Name]; ok {
		return assignable(ctx, gen+"->"+m+"("+ctx.JoinArgs(1)+")")
	}
	return nil
}

// target spells the generator a create call writes through its first
// argument.
func (b *Builder) target(ctx *rules.CallContext) string {
	if u, ok := ast.StripCasts(ctx.ArgExpr(0)).(*ast.Unary); ok && u.Op == "&" {
		return b.A.Text(u.X)
	}
	return "*" + ctx.Arg(0)
}

// TypeName maps device state types to generator types.
func (b *Builder) TypeName(name string) (string, bool) {
	engine, ok := engines[name]
	if !ok {
		return "", false
	}
	return b.engineType(engine), true
}

// DeclType reports a state declaration whose engine width is ambiguous.
// The spelling itself comes from TypeName.
func (b *Builder) DeclType(d ast.Decl, t *ast.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	engine, ok := engines[t.BaseName()]
	if !ok {
		return "", false
	}
	if _, ok := b.T.Width(engine); !ok {
		b.A.Diag.Emit(d.Range(), diag.RNGVecSizeUndeducible, engine, b.T.Observed(engine))
	}
	return "", false
}

func assignable(ctx *rules.CallContext, text string) rules.Rewriter {
	return &rules.Assignable{Ctx: ctx, Inner: rules.Func(func() (string, bool) { return text, true })}
}
