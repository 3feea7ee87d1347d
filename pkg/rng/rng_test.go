package rng

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/expr"
	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/rules"
	"github.com/l3aro/cuda2sycl/pkg/source"
	"github.com/l3aro/cuda2sycl/pkg/srcloc"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

type fixture struct {
	src   string
	b     *ast.Builder
	a     *expr.Analyzer
	rb    *Builder
	bag   *diag.Bag
	decls map[string]ast.Decl
}

func newFixture(t *testing.T, src string) *fixture {
	t.Helper()
	fs := source.NewFileSet()
	id, err := fs.Add("a.cu", []byte(src))
	require.NoError(t, err)
	r := srcloc.New(fs)
	a := expr.New(r, rules.NewDefaultRegistry(), usage.NewGraph())
	a.USM = true
	bag := diag.NewBag()
	a.Diag = diag.Emitter{R: bag, L: r}
	rb := New(a, NewTable())
	rb.Install()
	f := &fixture{src: src, b: ast.NewBuilder(id, src), a: a, rb: rb, bag: bag, decls: make(map[string]ast.Decl)}
	f.decls["s"] = &ast.VarDecl{Name: "s", Type: ast.Named("curandState", nil)}
	f.decls["p"] = &ast.ParamDecl{Name: "p", Type: ast.PointerTo(ast.Named("curandStatePhilox4_32_10_t", nil))}
	f.decls["gen"] = &ast.VarDecl{Name: "gen", Type: ast.Named("curandGenerator_t", nil), Global: true}
	return f
}

// call builds the call spelled as text after anchor. Arguments may be
// integer literals, &x or plain names; names found in f.decls are bound to
// their declarations.
func (f *fixture) call(anchor, text string) *ast.Call {
	rng := f.b.RangeAfter(anchor, text)
	open := strings.Index(text, "(")
	base := rng.Begin.Offset
	fun := f.b.Ref(source.FileRange(f.b.File, base, base+uint32(open)), text[:open], nil, nil)
	var args []ast.Expr
	off := base + uint32(open) + 1
	for _, part := range strings.Split(text[open+1:len(text)-1], ", ") {
		args = append(args, f.arg(part, off))
		off += uint32(len(part)) + 2
	}
	return f.b.Call(rng, fun, args...)
}

func (f *fixture) arg(text string, off uint32) ast.Expr {
	rng := source.FileRange(f.b.File, off, off+uint32(len(text)))
	switch {
	case text[0] >= '0' && text[0] <= '9':
		return f.b.Int(rng)
	case text[0] == '&':
		x := f.arg(text[1:], off+1)
		return &ast.Unary{ExprBase: ast.ExprBase{Base: ast.Base{Rng: rng}, Typ: ast.PointerTo(x.Type())}, Op: "&", X: x}
	}
	d := f.decls[text]
	var t *ast.Type
	switch x := d.(type) {
	case *ast.VarDecl:
		t = x.Type
	case *ast.ParamDecl:
		t = x.Type
	}
	return f.b.Ref(rng, text, d, t)
}

// observe runs discovery over a kernel whose body holds calls.
func (f *fixture) observe(calls ...*ast.Call) {
	body := &ast.CompoundStmt{}
	for _, c := range calls {
		body.List = append(body.List, &ast.ExprStmt{X: c})
	}
	f.a.Discover(&ast.FunctionDecl{Name: "k", Attrs: ast.AttrGlobal, Body: body}, nil)
}

func (f *fixture) codes() []diag.Code {
	var out []diag.Code
	for _, d := range f.bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func TestDeviceCalls(t *testing.T) {
	tests := []struct {
		call string
		want string
	}{
		{"curand_uniform(&s)", "s.generate<oneapi::mkl::rng::device::uniform<float>, 1>()"},
		{"curand_normal4(&s)", "s.generate<oneapi::mkl::rng::device::gaussian<float>, 4>()"},
		{"curand_normal2_double(p)", "p->generate<oneapi::mkl::rng::device::gaussian<double>, 2>()"},
		{"curand_log_normal(&s, mean, sd)", "s.generate<oneapi::mkl::rng::device::lognormal<float>, 1>(mean, sd)"},
		{"curand_poisson(&s, lambda)", "s.generate<oneapi::mkl::rng::device::poisson<std::uint32_t>, 1>(lambda)"},
		{"curand(&s)", "s.generate<oneapi::mkl::rng::device::bits<std::uint32_t>, 1>()"},
		{"curand_init(seed, id, 0, &s)", "s = dpct::rng::device::rng_generator<oneapi::mkl::rng::device::mcg59<1>>(seed, {0, id * 8})"},
		{"curand_init(seed, id, off, p)", "*p = dpct::rng::device::rng_generator<oneapi::mkl::rng::device::philox4x32x10<1>>(seed, {off, id * 8})"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			f := newFixture(t, tt.call)
			got, ok := f.a.Migrate(f.call("", tt.call))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObservedWidthFeedsStateType(t *testing.T) {
	src := "curandState s; curand_uniform4(&s); curand_normal4(&s);"
	f := newFixture(t, src)
	f.observe(f.call("", "curand_uniform4(&s)"), f.call("", "curand_normal4(&s)"))

	got, ok := f.a.MigrateTypeText("curandState *")
	require.True(t, ok)
	assert.Equal(t, "dpct::rng::device::rng_generator<oneapi::mkl::rng::device::mcg59<4>> *", got)
	assert.Empty(t, f.codes())
}

func TestPlaceholderOnAmbiguousWidth(t *testing.T) {
	src := "curandState s; curand_uniform(&s); curand_uniform4(&s);"
	f := newFixture(t, src)
	f.observe(f.call("", "curand_uniform(&s)"), f.call("", "curand_uniform4(&s)"))

	v := f.decls["s"].(*ast.VarDecl)
	v.Rng = f.b.Range("curandState s;")
	v.TypeRng = f.b.Range("curandState")
	v.NameRng = f.b.RangeAfter("curandState ", "s")
	f.a.VarDecl(v)

	store := replace.NewStore()
	require.Zero(t, f.a.ApplyAllSubExprRepl(store))
	out, err := replace.Apply([]byte(src), store.For("a.cu"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(out),
		"dpct::rng::device::rng_generator<oneapi::mkl::rng::device::mcg59<"+Placeholder+">> s;"), string(out))
	assert.Contains(t, string(out), "dpct_placeholder")
	require.Equal(t, []diag.Code{diag.RNGVecSizeUndeducible}, f.codes())
	assert.Equal(t, []string{"mcg59", "1, 4"}, f.bag.Items()[0].Args)
}

func TestWidthChangeRunsAgain(t *testing.T) {
	tb := NewTable()
	assert.Equal(t, "1", tb.Spell("mcg59"))
	assert.False(t, tb.NeedRunAgain())

	tb.Observe("a.cu:10", "mcg59", 2)
	tb.Observe("a.cu:10", "mcg59", 4)
	assert.Equal(t, []int{2}, tb.Widths("mcg59"), "a call site counts once")
	assert.True(t, tb.NeedRunAgain())

	tb.BeginRound()
	assert.Equal(t, "2", tb.Spell("mcg59"))
	assert.False(t, tb.NeedRunAgain())

	tb.Reset()
	assert.Empty(t, tb.Widths("mcg59"))
}

func TestHostGenerator(t *testing.T) {
	tests := []struct {
		call string
		want string
	}{
		{"curandCreateGenerator(&gen, CURAND_RNG_PSEUDO_MRG32K3A)", "gen = dpct::rng::create_host_rng(dpct::rng::random_engine_type::mrg32k3a)"},
		{"curandSetPseudoRandomGeneratorSeed(gen, seed)", "gen->set_seed(seed)"},
		{"curandGenerateUniform(gen, out, n)", "gen->generate_uniform(out, n)"},
		{"curandGenerateNormal(gen, out, n, 0, 1)", "gen->generate_gaussian(out, n, 0, 1)"},
		{"curandGenerate(gen, bits, n)", "gen->generate_uniform_bits(bits, n)"},
		{"curandSetStream(gen, stream)", "gen->set_queue(stream)"},
		{"curandSetStream(gen, 0)", "gen->set_queue(&dpct::get_in_order_queue())"},
		{"curandDestroyGenerator(gen)", "gen.reset()"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			f := newFixture(t, tt.call)
			got, ok := f.a.Migrate(f.call("", tt.call))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, f.codes())
		})
	}
}

func TestUnsupportedHostEngine(t *testing.T) {
	src := "curandCreateGenerator(&gen, CURAND_RNG_QUASI_SCRAMBLED_SOBOL64)"
	f := newFixture(t, src)
	_, ok := f.a.Migrate(f.call("", src))
	assert.False(t, ok)
	require.Equal(t, []diag.Code{diag.RNGEngineTypeUnsupported}, f.codes())
	assert.Equal(t, []string{"CURAND_RNG_QUASI_SCRAMBLED_SOBOL64"}, f.bag.Items()[0].Args)
}
