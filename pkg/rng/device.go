package rng

import (
	"fmt"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/rules"
)

const deviceNS = "oneapi::mkl::rng::device::"

// engines maps device state types to oneMKL device engines.
var engines = map[string]string{
	"curandState":                "mcg59",
	"curandState_t":              "mcg59",
	"curandStateXORWOW":          "mcg59",
	"curandStateXORWOW_t":        "mcg59",
	"curandStatePhilox4_32_10":   "philox4x32x10",
	"curandStatePhilox4_32_10_t": "philox4x32x10",
	"curandStateMRG32k3a":        "mrg32k3a",
	"curandStateMRG32k3a_t":      "mrg32k3a",
}

type generate struct {
	distr string
	count int
	// nargs is how many distribution parameters follow the state
	nargs int
}

var generators = map[string]generate{
	"curand":                    {"bits<std::uint32_t>", 1, 0},
	"curand4":                   {"bits<std::uint32_t>", 4, 0},
	"curand_uniform":            {"uniform<float>", 1, 0},
	"curand_uniform4":           {"uniform<float>", 4, 0},
	"curand_uniform_double":     {"uniform<double>", 1, 0},
	"curand_uniform2_double":    {"uniform<double>", 2, 0},
	"curand_normal":             {"gaussian<float>", 1, 0},
	"curand_normal2":            {"gaussian<float>", 2, 0},
	"curand_normal4":            {"gaussian<float>", 4, 0},
	"curand_normal_double":      {"gaussian<double>", 1, 0},
	"curand_normal2_double":     {"gaussian<double>", 2, 0},
	"curand_log_normal":         {"lognormal<float>", 1, 2},
	"curand_log_normal2":        {"lognormal<float>", 2, 2},
	"curand_log_normal4":        {"lognormal<float>", 4, 2},
	"curand_log_normal_double":  {"lognormal<double>", 1, 2},
	"curand_log_normal2_double": {"lognormal<double>", 2, 2},
	"curand_poisson":            {"poisson<std::uint32_t>", 1, 1},
	"curand_poisson4":           {"poisson<std::uint32_t>", 4, 1},
}

// stateArg returns the index of the state argument of a device cuRAND
// call, or -1.
func stateArg(name string) int {
	if name == "curand_init" {
		return 3
	}
	if _, ok := generators[name]; ok {
		return 0
	}
	return -1
}

// engineOf names the oneMKL engine of the state e points to.
func engineOf(e ast.Expr) (string, bool) {
	if e == nil {
		return "", false
	}
	t := e.Type()
	if t == nil {
		return "", false
	}
	if t.IsPointer() {
		t = t.Pointee()
	}
	if eng, ok := engines[t.Name]; ok {
		return eng, true
	}
	eng, ok := engines[t.BaseName()]
	return eng, ok
}

// engineType spells the generator type of engine with the run's width.
func (b *Builder) engineType(engine string) string {
	return fmt.Sprintf("dpct::rng::device::rng_generator<%s%s<%s>>", deviceNS, engine, b.T.Spell(engine))
}

// state spells the object a state pointer argument refers to. &s becomes
// s; any other pointer p becomes *p.
func (b *Builder) state(ctx *rules.CallContext, i int) (obj, member string) {
	e := ast.StripCasts(ctx.ArgExpr(i))
	if u, ok := e.(*ast.Unary); ok && u.Op == "&" {
		x := b.A.Text(u.X)
		return x, x + "."
	}
	p := ctx.Arg(i)
	if strings.ContainsAny(p, " +-*/()") {
		p = "(" + p + ")"
	}
	return "*" + p, p + "->"
}

func (b *Builder) deviceRewriter(ctx *rules.CallContext) rules.Rewriter {
	i := stateArg(ctx.Name)
	if i < 0 || i >= ctx.NumArgs() {
		return nil
	}
	engine, ok := engineOf(ctx.ArgExpr(i))
	if !ok {
		return nil
	}
	if ctx.Name == "curand_init" {
		return rules.Func(func() (string, bool) {
			obj, _ := b.state(ctx, 3)
			return fmt.Sprintf("%s = %s(%s, {%s, %s * 8})",
				obj, b.engineType(engine), ctx.Arg(0), ctx.Arg(2), factor(ctx.Arg(1))), true
		})
	}
	g := generators[ctx.Name]
	return rules.Func(func() (string, bool) {
		_, m := b.state(ctx, 0)
		args := ""
		if g.nargs > 0 {
			if ctx.NumArgs() < 1+g.nargs {
				return "", false
			}
			args = ctx.JoinArgs(1)
		}
		return fmt.Sprintf("%sgenerate<%s%s, %d>(%s)", m, deviceNS, g.distr, g.count, args), true
	})
}

func factor(s string) string {
	if strings.ContainsAny(s, " +-*/?:") {
		return "(" + s + ")"
	}
	return s
}
