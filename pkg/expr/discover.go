package expr

import (
	"strconv"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/rules"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// textureFetches maps fetch functions to the image dimensionality they read.
var textureFetches = map[string]int{
	"tex1D": 1, "tex2D": 2, "tex3D": 3, "tex1Dfetch": 1, "tex2DLayered": 2,
}

// Discover records what fn's body uses: device variables, calls to other
// device functions, the work-item and stream objects and the element types
// texture object parameters are read as. info is nil for host functions,
// whose calls and launches are only passed to the observe hooks.
func (a *Analyzer) Discover(fn *ast.FunctionDecl, info *usage.DeviceFunctionInfo) {
	if fn == nil || fn.Body == nil {
		return
	}
	a.Enter(fn, info)
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.KernelLaunch:
			if a.Hooks.ObserveLaunch != nil {
				a.Hooks.ObserveLaunch(x, fn)
			}
		case *ast.Call:
			if a.Hooks.ObserveCall != nil {
				a.Hooks.ObserveCall(x, fn)
			}
			if info != nil {
				a.discoverCall(fn, info, x)
			}
		case *ast.DeclRef:
			if info == nil {
				break
			}
			if x.Decl == nil && x.Name == "warpSize" {
				info.Vars.Item = true
			}
			if vd, ok := x.Decl.(*ast.VarDecl); ok && isTracked(vd) {
				a.Graph.AddVar(info, a.VarInfoOf(vd))
			}
		case *ast.Member:
			if info == nil {
				break
			}
			if ref, ok := ast.Unparen(x.X).(*ast.DeclRef); ok && ref.Decl == nil {
				if _, ok := builtinIndex[ref.Name]; ok {
					info.Vars.Item = true
					if x.Name == "y" || x.Name == "z" {
						info.HighDimItem = true
					}
				}
			}
		}
		return true
	})
}

func (a *Analyzer) discoverCall(fn *ast.FunctionDecl, info *usage.DeviceFunctionInfo, c *ast.Call) {
	name := c.CalleeName()
	if fd := c.Callee(); fd != nil && fd.Root().IsDevice() {
		callee := a.Graph.Register(a.FuncKey(fd), fd.Root())
		params := make([]int, len(c.Args))
		for i, arg := range c.Args {
			params[i] = -1
			if p, ok := ast.RefDecl(arg).(*ast.ParamDecl); ok {
				params[i] = p.Index
			}
		}
		a.Graph.AddCall(info, callee, a.KeyOf(c.Range()), params)
		return
	}
	if a.Rules != nil && a.Rules.UsesItem(name) {
		info.Vars.Item = true
	}
	if name == "printf" && len(c.Args) > 0 {
		args := make([]string, len(c.Args))
		for i, arg := range c.Args {
			args[i] = a.R.SourceText(arg.Range())
		}
		if rules.PrintfUsesStream(args) {
			info.Vars.Stream = true
		}
	}
	if dim, ok := textureFetches[name]; ok && len(c.Args) > 0 {
		p, ok := ast.RefDecl(c.Args[0]).(*ast.ParamDecl)
		if !ok {
			return
		}
		info.SetTexDim(p.Index, dim)
		if targs := c.ExplicitTemplateArgs(); len(targs) > 0 && targs[0].Kind == ast.TypeArg {
			info.SetTexType(p.Index, targs[0].Type)
		}
	}
}

// isTracked reports whether references to v become injected parameters.
func isTracked(v *ast.VarDecl) bool {
	if v.Attrs.Has(ast.AttrShared) {
		return true
	}
	if !v.Global {
		return false
	}
	return v.IsDeviceVar() || v.Type.Is("texture")
}

// VarInfoOf describes a tracked variable declaration.
func (a *Analyzer) VarInfoOf(v *ast.VarDecl) usage.VarInfo {
	info := usage.VarInfo{Key: a.KeyOf(v.NameRng), Name: v.Name}
	switch {
	case v.Attrs.Has(ast.AttrShared) && v.Attrs.Has(ast.AttrExtern):
		info.Kind = usage.ExternShared
	case v.Attrs.Has(ast.AttrShared):
		info.Kind = usage.Shared
	case v.Attrs.Has(ast.AttrConstant):
		info.Kind = usage.Constant
	case v.Attrs.Has(ast.AttrManaged):
		info.Kind = usage.Managed
	case v.Type.Is("texture"):
		info.Kind = usage.Texture
		info.Type, info.TexDim = "float", 1
		if args := v.Type.Canonical().Args; len(args) > 0 {
			info.Type = a.TypeString(args[0].Type)
			if len(args) > 1 && args[1].Known {
				info.TexDim = int(args[1].Value)
			}
		}
		return info
	default:
		info.Kind = usage.Global
	}

	t := v.Type
	for t != nil && t.Canonical().Kind == ast.ArrayType {
		c := t.Canonical()
		switch {
		case c.Len >= 0:
			info.Sizes = append(info.Sizes, strconv.FormatInt(c.Len, 10))
		case c.LenExpr != nil:
			info.Sizes = append(info.Sizes, a.R.SourceText(c.LenExpr.Range()))
		default:
			info.Sizes = append(info.Sizes, "")
		}
		t = c.Elem
	}
	if info.Kind == usage.ExternShared {
		info.Sizes = nil
	}
	info.Type = a.TypeString(t)
	return info
}
