package frontend

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/source"
)

func parse(t *testing.T, src string) (*ast.TranslationUnit, *source.FileSet) {
	t.Helper()
	fs := source.NewFileSet()
	tu, err := New(fs).ParseSource(context.Background(), "a.cu", []byte(src))
	require.NoError(t, err)
	return tu, fs
}

func funcNamed(tu *ast.TranslationUnit, name string) *ast.FunctionDecl {
	for _, d := range tu.Decls {
		if fd, ok := d.(*ast.FunctionDecl); ok && fd.Name == name {
			return fd
		}
	}
	return nil
}

func varNamed(tu *ast.TranslationUnit, name string) *ast.VarDecl {
	var found *ast.VarDecl
	for _, d := range tu.Decls {
		if v, ok := d.(*ast.VarDecl); ok && v.Name == name {
			return v
		}
		fd, ok := d.(*ast.FunctionDecl)
		if !ok || fd.Body == nil {
			continue
		}
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			if ds, ok := n.(*ast.DeclStmt); ok {
				for _, v := range ds.Decls {
					if v.Name == name && found == nil {
						found = v
					}
				}
			}
			return true
		})
	}
	return found
}

func launches(fd *ast.FunctionDecl) []*ast.KernelLaunch {
	var out []*ast.KernelLaunch
	ast.Inspect(fd.Body, func(n ast.Node) bool {
		if l, ok := n.(*ast.KernelLaunch); ok {
			out = append(out, l)
		}
		return true
	})
	return out
}

func text(src string, rng source.Range) string {
	return src[rng.Begin.Offset:rng.End.Offset]
}

func TestMaskKeepsOffsets(t *testing.T) {
	src := "__global__ void k(float *__restrict__ p) {}\nvoid h() { k<<<1, 2>>>(p); }\n"
	m := mask(1, []byte(src))

	require.Len(t, m.src, len(src))
	assert.Contains(t, string(m.src), "k  (1, 2)  (p)")
	assert.True(t, m.launches[uint32(strings.Index(src, "<<<")+2)])
	require.Len(t, m.quals, 2)
	assert.Equal(t, ast.AttrGlobal, m.quals[0].attr)
	assert.Equal(t, "__global__", src[m.quals[0].start:m.quals[0].end])
	assert.NotContains(t, string(m.src), "__restrict__")
}

func TestMaskSkipsCommentsAndStrings(t *testing.T) {
	src := "// __global__ in a comment\nconst char *s = \"<<<__device__>>>\";\n/* __shared__ */ int x;\n"
	m := mask(1, []byte(src))
	assert.Equal(t, src, string(m.src))
	assert.Empty(t, m.quals)
	assert.Empty(t, m.launches)
}

func TestMaskDefines(t *testing.T) {
	src := "#define N 16\n#define HOST_ONLY\n#define SQR(x) ((x) * (x))\nHOST_ONLY int y = N;\n"
	m := mask(1, []byte(src))

	assert.Equal(t, int64(16), m.defines["N"])
	require.Len(t, m.defs, 3)
	assert.True(t, m.defs[1].IsEmpty)
	assert.True(t, m.defs[2].FuncLike)
	assert.Equal(t, []string{"x"}, m.defs[2].Params)

	require.Len(t, m.empty, 1)
	assert.Equal(t, "HOST_ONLY", src[m.empty[0].Start:m.empty[0].End])
	assert.Contains(t, string(m.src), "#define HOST_ONLY", "directive lines are not masked")
}

func TestParseKernelAndLaunch(t *testing.T) {
	src := `__global__ void scale(float *data, int n) {
  int i = blockIdx.x * blockDim.x + threadIdx.x;
  if (i < n) data[i] *= 2.0f;
}

void run(float *d, int n) {
  scale<<<(n + 255) / 256, 256>>>(d, n);
}
`
	tu, _ := parse(t, src)

	k := funcNamed(tu, "scale")
	require.NotNil(t, k)
	assert.True(t, k.IsKernel())
	require.Len(t, k.AttrRanges, 1)
	assert.Equal(t, "__global__", text(src, k.AttrRanges[0]))
	assert.Equal(t, uint32(0), k.Range().Begin.Offset, "declaration starts at its first qualifier")
	require.Len(t, k.Params, 2)
	assert.True(t, k.Params[0].Type.IsPointer())
	assert.Equal(t, "(float *data, int n)", text(src, k.ParamsRng))

	run := funcNamed(tu, "run")
	require.NotNil(t, run)
	ls := launches(run)
	require.Len(t, ls, 1)
	l := ls[0]
	assert.Len(t, l.Config, 2)
	assert.Len(t, l.Call.Args, 2)
	assert.Same(t, k, l.Call.Callee())
	assert.False(t, l.Call.ResultUsed)
	assert.Equal(t, "scale<<<(n + 255) / 256, 256>>>(d, n)", text(src, l.Range()))
	assert.Equal(t, "(d, n)", text(src, l.Call.ArgsRng))
}

func TestParseBuiltinIndexMembers(t *testing.T) {
	src := "__global__ void k(int *o) { o[threadIdx.x] = blockIdx.y; }\n"
	tu, _ := parse(t, src)
	k := funcNamed(tu, "k")
	require.NotNil(t, k)

	var members []*ast.Member
	ast.Inspect(k.Body, func(n ast.Node) bool {
		if m, ok := n.(*ast.Member); ok {
			members = append(members, m)
		}
		return true
	})
	require.Len(t, members, 2)
	ref, ok := members[0].X.(*ast.DeclRef)
	require.True(t, ok)
	assert.Equal(t, "threadIdx", ref.Name)
	assert.Nil(t, ref.Decl)
	assert.Equal(t, "x", members[0].Name)
	assert.True(t, members[0].Type().Is("unsigned int"))
}

func TestParseSharedDeclaration(t *testing.T) {
	src := "__global__ void k() {\n  __shared__ float tile[16];\n  tile[0] = 1;\n}\n"
	tu, _ := parse(t, src)

	v := varNamed(tu, "tile")
	require.NotNil(t, v)
	assert.True(t, v.Attrs.Has(ast.AttrShared))
	assert.False(t, v.Global)
	require.Equal(t, ast.ArrayType, v.Type.Kind)
	assert.Equal(t, int64(16), v.Type.Len)

	k := funcNamed(tu, "k")
	ds, ok := k.Body.List[0].(*ast.DeclStmt)
	require.True(t, ok)
	assert.Equal(t, "__shared__ float tile[16];", text(src, ds.Range()))
}

func TestParseDeviceGlobalsFoldMacros(t *testing.T) {
	src := "#define N 8\n__constant__ float coeff[N * 2];\n__device__ int counter;\n"
	tu, _ := parse(t, src)

	coeff := varNamed(tu, "coeff")
	require.NotNil(t, coeff)
	assert.True(t, coeff.Global)
	assert.True(t, coeff.Attrs.Has(ast.AttrConstant))
	assert.True(t, coeff.IsDeviceVar())
	assert.Equal(t, int64(16), coeff.Type.Len)

	counter := varNamed(tu, "counter")
	require.NotNil(t, counter)
	assert.True(t, counter.Attrs.Has(ast.AttrDevice))
	assert.Equal(t, "__device__", text(src, counter.AttrRanges[0]))
}

func TestParseDim3Declarations(t *testing.T) {
	src := "void h(int n) {\n  dim3 grid(4, 2);\n  dim3 block;\n  dim3 g2 = dim3(n);\n}\n"
	tu, _ := parse(t, src)

	grid := varNamed(tu, "grid")
	require.NotNil(t, grid)
	assert.True(t, grid.Type.Is("dim3"))
	assert.True(t, grid.HasCtor)
	assert.Len(t, grid.CtorArgs, 2)

	block := varNamed(tu, "block")
	require.NotNil(t, block)
	assert.False(t, block.HasCtor)
	assert.Nil(t, block.Init)

	g2 := varNamed(tu, "g2")
	require.NotNil(t, g2)
	c, ok := g2.Init.(*ast.Construct)
	require.True(t, ok)
	assert.True(t, c.Type().Is("dim3"))
	assert.Len(t, c.Args, 1)
}

func TestParseTemplateKernel(t *testing.T) {
	src := `template <typename T>
__global__ void fill(T *p, T v) { p[threadIdx.x] = v; }

void h(float *d) {
  fill<float><<<1, 32>>>(d, 1.0f);
}
`
	tu, _ := parse(t, src)
	fill := funcNamed(tu, "fill")
	require.NotNil(t, fill)
	assert.True(t, fill.IsKernel())
	require.Len(t, fill.TemplateParams, 1)
	assert.Equal(t, "T", fill.TemplateParams[0].Name)
	assert.Equal(t, ast.TemplateParamType, fill.Params[0].Type.Pointee().Kind)

	ls := launches(funcNamed(tu, "h"))
	require.Len(t, ls, 1)
	targs := ls[0].Call.ExplicitTemplateArgs()
	require.Len(t, targs, 1)
	assert.Equal(t, ast.TypeArg, targs[0].Kind)
	assert.True(t, targs[0].Type.Is("float"))
	assert.Same(t, fill, ls[0].Call.Callee())
}

func TestParseCastsAndCalls(t *testing.T) {
	src := `void h() {
  float *d;
  cudaMalloc((void **)&d, 16 * sizeof(float));
  int x = static_cast<int>(2.5);
  float y = float(x);
}
`
	tu, _ := parse(t, src)
	h := funcNamed(tu, "h")
	require.NotNil(t, h)

	es, ok := h.Body.List[1].(*ast.ExprStmt)
	require.True(t, ok)
	call, ok := es.X.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "cudaMalloc", call.CalleeName())
	assert.Nil(t, call.Callee())
	require.Len(t, call.Args, 2)
	cast, ok := call.Args[0].(*ast.Cast)
	require.True(t, ok)
	assert.Equal(t, ast.CStyleCast, cast.Kind)
	assert.Equal(t, "void **", text(src, cast.TypeRng))
	size, ok := ast.IntValue(call.Args[1])
	require.True(t, ok)
	assert.Equal(t, int64(64), size)

	x := varNamed(tu, "x")
	sc, ok := x.Init.(*ast.Cast)
	require.True(t, ok)
	assert.Equal(t, ast.StaticCast, sc.Kind)
	assert.True(t, sc.To.Is("int"))

	y := varNamed(tu, "y")
	fc, ok := y.Init.(*ast.Cast)
	require.True(t, ok)
	assert.Equal(t, ast.FunctionalCast, fc.Kind)
}

func TestParseIncludes(t *testing.T) {
	src := "#include <cuda_runtime.h>\n#include \"util.cuh\"\nint x;\n"
	tu, _ := parse(t, src)
	require.Len(t, tu.Includes, 2)
	assert.True(t, tu.Includes[0].Angled)
	assert.Equal(t, "cuda_runtime.h", tu.Includes[0].Path)
	assert.Equal(t, "<cuda_runtime.h>", text(src, tu.Includes[0].PathRng))
	assert.False(t, tu.Includes[1].Angled)
	assert.Equal(t, "util.cuh", tu.Includes[1].Path)
}

func TestBuildLinksDeclarationsAcrossIncludes(t *testing.T) {
	header := "__global__ void step(float *p);\n"
	kernels := "#include \"step.cuh\"\n__global__ void step(float *p) { p[threadIdx.x] += 1; }\n"
	main := "#include \"step.cuh\"\nvoid run(float *d) { step<<<1, 1>>>(d); }\n"

	ctx := context.Background()
	fs := source.NewFileSet()
	fe := New(fs)
	var trees []*Tree
	for _, f := range []struct{ path, src string }{
		{"src/main.cu", main},
		{"src/kernels.cu", kernels},
		{"src/step.cuh", header},
	} {
		_, err := fs.Add(f.path, []byte(f.src))
		require.NoError(t, err)
		tr, err := fe.Parse(ctx, f.path)
		require.NoError(t, err)
		trees = append(trees, tr)
	}
	tus := fe.Build(trees)
	require.Len(t, tus, 3)

	decl := funcNamed(tus[2], "step")
	require.NotNil(t, decl)
	assert.Nil(t, decl.Body)
	assert.True(t, decl.IsKernel())

	def := funcNamed(tus[1], "step")
	require.NotNil(t, def)
	require.NotNil(t, def.Body)
	assert.Same(t, decl, def.Root(), "definition links to the header declaration")

	ls := launches(funcNamed(tus[0], "run"))
	require.Len(t, ls, 1)
	assert.Same(t, decl, ls[0].Call.Callee().Root())
}

func TestParseRegistersMacros(t *testing.T) {
	src := "#define EMPTY\n#define BLOCK 128\nEMPTY void f() {}\n"
	_, fs := parse(t, src)
	d, ok := fs.Macros().Definition("BLOCK")
	require.True(t, ok)
	assert.Equal(t, "128", d.Definition)
	assert.Len(t, fs.Macros().EmptyUses(1), 1)
}

func TestParseMacroUsesKeepSpellingLocations(t *testing.T) {
	src := "#define SCALE 2.5f\n#define TWICE(x) ((x) * 2)\nfloat f(float v) { return TWICE(v) * SCALE; }\n"
	tu, _ := parse(t, src)
	fd := funcNamed(tu, "f")
	require.NotNil(t, fd)

	var refs []*ast.DeclRef
	ast.Inspect(fd.Body, func(n ast.Node) bool {
		if r, ok := n.(*ast.DeclRef); ok {
			refs = append(refs, r)
		}
		return true
	})
	names := map[string]bool{}
	for _, r := range refs {
		names[r.Name] = true
		assert.False(t, r.Range().Begin.InMacro(), r.Name)
		assert.False(t, r.Range().End.InMacro(), r.Name)
		assert.Equal(t, r.Name, text(src, r.Range()))
	}
	assert.True(t, names["SCALE"])
	assert.True(t, names["TWICE"])
}
