package migrate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/deduce"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/expr"
	"github.com/l3aro/cuda2sycl/pkg/launch"
	"github.com/l3aro/cuda2sycl/pkg/output"
	"github.com/l3aro/cuda2sycl/pkg/source"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// function rewrites a function declaration or definition: CUDA qualifiers
// go away, device functions gain the parameters their usage set needs and
// the body is migrated statement by statement.
func (m *Migrator) function(a *expr.Analyzer, fn *ast.FunctionDecl) {
	var info *usage.DeviceFunctionInfo
	if fn.IsDevice() {
		info = m.S.Graph.Lookup(a.FuncKey(fn))
	}
	a.Enter(fn, info)
	defer a.Enter(nil, nil)

	stripQualifiers(a, fn.AttrRanges)
	if fn.ReturnRng.IsValid() {
		if to, ok := a.MigrateTypeText(a.R.SourceText(fn.ReturnRng)); ok {
			a.ReplaceCore(fn.ReturnRng, to)
		}
	}
	for _, p := range fn.Params {
		m.param(a, fn, info, p)
	}
	if info != nil {
		appendParams(a, fn, info.Vars.ExtraParams(a.Dim()))
	}
	if fn.Body != nil {
		a.Stmt(fn.Body)
		templateCalls(a, fn)
	}
}

// param retypes one parameter. Texture objects become image accessors whose
// element type and dimensionality come from how the body fetches them.
func (m *Migrator) param(a *expr.Analyzer, fn *ast.FunctionDecl, info *usage.DeviceFunctionInfo, p *ast.ParamDecl) {
	if !p.TypeRng.IsValid() {
		return
	}
	if info != nil && p.Type.Is("cudaTextureObject_t") {
		elem, dim := "", info.TexDim(p.Index)
		if t := info.TexType(p.Index); t != nil {
			elem = a.TypeString(t)
		}
		if elem == "" {
			elem = launch.TexTypePlaceholder
			a.Diag.Emit(p.Range(), diag.TextureTypeUnresolved, p.Name)
		}
		if dim == 0 {
			dim = 2
		}
		a.ReplaceCore(p.TypeRng, fmt.Sprintf("dpct::image_accessor_ext<%s, %d>", elem, dim))
		return
	}
	if to, ok := a.MigrateDeclType(p, p.Type, a.R.SourceText(p.TypeRng)); ok {
		a.ReplaceCore(p.TypeRng, to)
	}
}

// stripQualifiers removes CUDA qualifier tokens with the blanks after them.
// __forceinline__ keeps its meaning under the target's spelling.
func stripQualifiers(a *expr.Analyzer, ranges []source.Range) {
	for _, rng := range ranges {
		reg := a.R.Resolve(rng)
		if !reg.Valid {
			continue
		}
		f := a.R.Files().Get(reg.File)
		end := reg.CoreEnd()
		for int(end) < len(f.Content) && (f.Content[end] == ' ' || f.Content[end] == '\t') {
			end++
		}
		text := ""
		if strings.HasPrefix(a.R.CoreText(reg), "__forceinline__") {
			text = "__dpct_inline__ "
		}
		a.ReplaceCore(source.FileRange(reg.File, reg.CoreStart(), end), text)
	}
}

// appendParams adds extra parameters before the closing parenthesis of
// fn's parameter list, replacing an empty or "void" list.
func appendParams(a *expr.Analyzer, fn *ast.FunctionDecl, extra []string) {
	if len(extra) == 0 || !fn.ParamsRng.IsValid() {
		return
	}
	reg := a.R.Resolve(fn.ParamsRng)
	if !reg.Valid || reg.CoreEnd()-reg.CoreStart() < 2 {
		return
	}
	open, closing := reg.CoreStart()+1, reg.CoreEnd()-1
	f := a.R.Files().Get(reg.File)
	text := strings.Join(extra, ", ")
	if inner := strings.TrimSpace(f.Text(open, closing)); inner == "" || inner == "void" {
		a.ReplaceCore(source.FileRange(reg.File, open, closing), text)
		return
	}
	a.InsertAt(reg.Path, closing, ", "+text)
}

// templateCalls reports template arguments of called function templates
// that are neither written nor deducible. Launches report their own.
func templateCalls(a *expr.Analyzer, fn *ast.FunctionDecl) {
	launched := make(map[*ast.Call]bool)
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.KernelLaunch:
			launched[x.Call] = true
		case *ast.Call:
			if launched[x] {
				break
			}
			res, ok := deduce.Call(x)
			if !ok {
				break
			}
			params := x.Callee().Root().TemplateParams
			for _, i := range res.Unresolved {
				name := strconv.Itoa(i)
				if i < len(params) && params[i].Name != "" {
					name = params[i].Name
				}
				a.Diag.Emit(x.Range(), diag.TemplateArgNotDeducible, name, x.CalleeName())
			}
		}
		return true
	})
}

// memoryClass names the wrapper a device variable is declared with.
func memoryClass(v *ast.VarDecl) string {
	switch {
	case v.Attrs.Has(ast.AttrConstant):
		return "constant_memory"
	case v.Attrs.Has(ast.AttrManaged):
		return "shared_memory"
	}
	return "global_memory"
}

// globals rewrites one file-scope declaration statement. Device variables
// and texture references are redeclared through their wrapper types; other
// variables only get their types and initializers migrated.
func (m *Migrator) globals(a *expr.Analyzer, group []ast.Decl) {
	a.Enter(nil, nil)
	var parts []string
	wrapped := false
	for _, d := range group {
		v := d.(*ast.VarDecl)
		switch {
		case v.IsDeviceVar():
			parts = append(parts, deviceVar(a, v))
			wrapped = true
		case v.Type.Is("texture"):
			parts = append(parts, textureRef(a, v))
			wrapped = true
		default:
			parts = append(parts, "")
		}
	}
	if !wrapped {
		for _, d := range group {
			a.VarDecl(d.(*ast.VarDecl))
		}
		return
	}
	for i, p := range parts {
		if p == "" {
			v := group[i].(*ast.VarDecl)
			m.Log.Debug("host variable shares a device declaration", "name", v.Name)
			parts[i] = fmt.Sprintf("%s %s;", a.TypeString(v.Type), v.Name)
		}
	}
	a.Replace(group[0].Range(), strings.Join(parts, " "))
}

// deviceVar spells a device, constant or managed variable as a
// dpct::*_memory object, e.g. "__device__ float g[16];" becoming
// "static dpct::global_memory<float, 1> g(16);".
func deviceVar(a *expr.Analyzer, v *ast.VarDecl) string {
	vi := a.VarInfoOf(v)
	dims := len(vi.Sizes)
	var args []string
	if dims > 0 {
		if v.Init != nil {
			args = append(args, fmt.Sprintf("sycl::range<%d>(%s)", dims, strings.Join(vi.Sizes, ", ")))
		} else {
			args = append(args, vi.Sizes...)
		}
	}
	if v.Init != nil && !v.Attrs.Has(ast.AttrExtern) {
		args = append(args, a.Text(v.Init))
	}
	storage := "static "
	if v.Attrs.Has(ast.AttrExtern) {
		storage = "extern "
	}
	decl := v.Name
	if len(args) > 0 {
		decl += "(" + strings.Join(args, ", ") + ")"
	}
	return fmt.Sprintf("%sdpct::%s<%s, %d> %s;", storage, memoryClass(v), vi.Type, dims, decl)
}

// textureRef spells a legacy texture reference as an image wrapper.
func textureRef(a *expr.Analyzer, v *ast.VarDecl) string {
	wrapper, ok := a.MigrateTypeText(a.R.SourceText(v.TypeRng))
	if !ok {
		vi := a.VarInfoOf(v)
		wrapper = fmt.Sprintf("dpct::image_wrapper<%s, %d>", vi.Type, vi.TexDim)
	}
	return fmt.Sprintf("static %s %s;", wrapper, v.Name)
}

// runtimeHeaders are replaced by the SYCL and helper headers.
var runtimeHeaders = map[string]bool{
	"cuda.h":                     true,
	"cuda_runtime.h":             true,
	"cuda_runtime_api.h":         true,
	"device_launch_parameters.h": true,
	"device_functions.h":         true,
}

// libraryHeaders maps library headers to their replacements.
var libraryHeaders = map[string][]string{
	"cufft.h":         {"<oneapi/mkl.hpp>", "<dpct/fft_utils.hpp>"},
	"cufftXt.h":       {"<oneapi/mkl.hpp>", "<dpct/fft_utils.hpp>"},
	"curand.h":        {"<oneapi/mkl.hpp>", "<oneapi/mkl/rng/device.hpp>", "<dpct/rng_utils.hpp>"},
	"curand_kernel.h": {"<oneapi/mkl.hpp>", "<oneapi/mkl/rng/device.hpp>"},
}

var syclHeaders = []string{"<sycl/sycl.hpp>", "<dpct/dpct.hpp>"}

func includeLines(headers []string) string {
	return strings.Join(headers, "\n#include ")
}

// includes rewrites the #include directives of tu. The first runtime header
// becomes the SYCL headers and later ones are dropped. A unit with CUDA
// code but no runtime header gets the SYCL headers at its top.
func (m *Migrator) includes(a *expr.Analyzer, tu *ast.TranslationUnit) {
	seen := false
	for _, inc := range tu.Includes {
		switch {
		case runtimeHeaders[inc.Path]:
			if seen {
				a.Replace(inc.Range(), "")
				continue
			}
			seen = true
			a.ReplaceCore(inc.PathRng, includeLines(syclHeaders))
		case libraryHeaders[inc.Path] != nil:
			a.ReplaceCore(inc.PathRng, includeLines(libraryHeaders[inc.Path]))
		case !inc.Angled:
			if to := output.TargetPath(inc.Path); to != inc.Path {
				a.ReplaceCore(inc.PathRng, strconv.Quote(to))
			}
		}
	}
	if seen || !usesCUDA(tu) {
		return
	}
	a.InsertAt(tu.Path, 0, "#include "+includeLines(syclHeaders)+"\n")
}

// usesCUDA reports whether tu declares device code or device variables or
// launches a kernel.
func usesCUDA(tu *ast.TranslationUnit) bool {
	found := false
	for _, d := range tu.Decls {
		switch x := d.(type) {
		case *ast.FunctionDecl:
			if x.IsDevice() {
				return true
			}
			if x.Body != nil {
				ast.Inspect(x.Body, func(n ast.Node) bool {
					if _, ok := n.(*ast.KernelLaunch); ok {
						found = true
					}
					return !found
				})
			}
		case *ast.VarDecl:
			if x.IsDeviceVar() || x.Type.Is("texture") {
				return true
			}
		}
		if found {
			return true
		}
	}
	return false
}
