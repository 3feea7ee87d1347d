package launch

import (
	"fmt"
	"strconv"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/deduce"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// TexTypePlaceholder stands in for a texture element type that could not
// be determined.
const TexTypePlaceholder = "dpct_placeholder/*Fix the type manually*/"

// ArgClass says how an actual kernel argument crosses into the dispatch.
type ArgClass uint8

const (
	PassThrough ArgClass = iota
	// BufferWrap is a raw pointer under the buffer memory model.
	BufferWrap
	// Redeclare copies the value into a command-group local first.
	Redeclare
	// TextureObject becomes an image accessor and sampler pair.
	TextureObject
)

func (c ArgClass) String() string {
	switch c {
	case PassThrough:
		return "pass-through"
	case BufferWrap:
		return "buffer"
	case Redeclare:
		return "redeclare"
	case TextureObject:
		return "texture"
	}
	return "class(" + strconv.Itoa(int(c)) + ")"
}

// Arg is one classified kernel argument.
type Arg struct {
	Index int
	Class ArgClass
	// Text is what the kernel call inside the dispatch receives.
	Text string
}

const (
	pointerBytes  = 8
	accessorBytes = 32
)

// ResolveArgs classifies every actual argument against the kernel's formal
// parameters and collects the declarations the dispatch needs.
func (s *Site) ResolveArgs() error {
	if s.State != ConfigResolved {
		return &StateError{Step: "resolve args", Have: s.State}
	}
	var params []*ast.ParamDecl
	if s.Kernel != nil {
		params = s.Kernel.Root().Params
	}
	s.Args = s.Args[:0]
	s.Pre, s.Decls = nil, nil
	s.ParamBytes = 0
	s.deduce()
	for i, e := range s.Launch.Call.Args {
		var p *ast.ParamDecl
		if i < len(params) {
			p = params[i]
		}
		s.Args = append(s.Args, s.classify(i, e, p))
	}
	if s.Info != nil {
		for _, c := range []usage.Category{usage.GlobalVars, usage.LocalVars, usage.TextureVars} {
			for _, v := range s.Info.Vars.Vars(c) {
				s.ParamBytes += s.varBytes(v)
			}
		}
	}
	if lim := s.b.ParamLimit; lim > 0 && s.ParamBytes > lim {
		s.b.A.Diag.Emit(s.Launch.Range(), diag.KernelParamSizeExceeded,
			s.kernelName(), strconv.FormatInt(s.ParamBytes, 10), strconv.FormatInt(lim, 10))
	}
	s.State = ArgsResolved
	return nil
}

// deduce fills TemplateArgs for a template kernel and reports every slot
// neither written nor deducible.
func (s *Site) deduce() {
	s.TemplateArgs = nil
	res, ok := deduce.Call(s.Launch.Call)
	if !ok {
		return
	}
	s.TemplateArgs = res.Args
	params := s.Kernel.Root().TemplateParams
	for _, i := range res.Unresolved {
		name := strconv.Itoa(i)
		if i < len(params) && params[i].Name != "" {
			name = params[i].Name
		}
		s.b.A.Diag.Emit(s.Launch.Range(), diag.TemplateArgNotDeducible, name, s.kernelName())
	}
}

// substitute replaces template parameter types in t with the arguments
// bound to them.
func substitute(t *ast.Type, args []ast.TemplateArg) *ast.Type {
	if t == nil || len(args) == 0 {
		return t
	}
	switch t.Kind {
	case ast.TemplateParamType:
		if t.Index < len(args) && args[t.Index].Kind == ast.TypeArg && args[t.Index].Type != nil {
			return args[t.Index].Type
		}
	case ast.PointerType:
		if elem := substitute(t.Elem, args); elem != t.Elem {
			p := ast.PointerTo(elem)
			p.Const = t.Const
			return p
		}
	case ast.ReferenceType:
		if elem := substitute(t.Elem, args); elem != t.Elem {
			return ast.ReferenceTo(elem)
		}
	}
	return t
}

func (s *Site) varBytes(v *usage.VarInfo) int64 {
	if s.b.A.USM && v.Kind != usage.Texture && v.Dims() < 2 {
		return pointerBytes
	}
	return accessorBytes
}

func (s *Site) classify(i int, e ast.Expr, p *ast.ParamDecl) Arg {
	a := s.b.A
	text := a.Text(e)
	t := e.Type()
	if p != nil && p.Type != nil {
		t = substitute(p.Type, s.TemplateArgs)
	}
	name := argName(e, i)

	switch {
	case t.Is("cudaTextureObject_t"):
		return s.textureArg(i, text, name)
	case !a.USM && t.IsPointer():
		if t.Pointee().IsPointer() {
			a.Diag.Emit(e.Range(), diag.DoublePointerInBuffer, strconv.Itoa(i), s.kernelName())
			s.ParamBytes += pointerBytes
			return Arg{Index: i, Class: PassThrough, Text: text}
		}
		buf := fmt.Sprintf("%s_buf_ct%d", name, i)
		off := fmt.Sprintf("%s_offset_ct%d", name, i)
		acc := fmt.Sprintf("%s_acc_ct%d", name, i)
		s.Pre = append(s.Pre,
			fmt.Sprintf("std::pair<dpct::buffer_t, size_t> %s = dpct::get_buffer_and_offset(%s);", buf, text),
			fmt.Sprintf("size_t %s = %s.second;", off, buf))
		s.Decls = append(s.Decls,
			fmt.Sprintf("auto %s = %s.first.get_access<sycl::access::mode::read_write>(cgh);", acc, buf))
		s.ParamBytes += accessorBytes
		elem := a.TypeString(t.Pointee())
		return Arg{Index: i, Class: BufferWrap, Text: fmt.Sprintf("(%s *)(&%s[0] + %s)", elem, acc, off)}
	case needsRedeclare(e, p):
		local := fmt.Sprintf("%s_ct%d", name, i)
		s.Decls = append(s.Decls, fmt.Sprintf("auto %s = %s;", local, text))
		s.ParamBytes += sizeOf(t)
		return Arg{Index: i, Class: Redeclare, Text: local}
	}
	s.ParamBytes += sizeOf(t)
	return Arg{Index: i, Class: PassThrough, Text: text}
}

// textureArg binds a texture object to an accessor and sampler. The
// element type comes from how the kernel body fetches the parameter.
func (s *Site) textureArg(i int, text, name string) Arg {
	a := s.b.A
	elem, dim := "", 0
	if s.Info != nil {
		if t := s.Info.TexType(i); t != nil {
			elem = a.TypeString(t)
		}
		dim = s.Info.TexDim(i)
	}
	if elem == "" {
		elem = TexTypePlaceholder
		a.Diag.Emit(s.Launch.Call.Args[i].Range(), diag.TextureTypeUnresolved, text)
	}
	if dim == 0 {
		dim = 2
	}
	wrapper := fmt.Sprintf("dpct::image_wrapper<%s, %d>", elem, dim)
	s.Decls = append(s.Decls,
		fmt.Sprintf("auto %s_acc = static_cast<%s *>(%s)->get_access(cgh);", name, wrapper, text),
		fmt.Sprintf("auto %s_smpl = %s->get_sampler();", name, text))
	s.ParamBytes += accessorBytes
	return Arg{Index: i, Class: TextureObject,
		Text: fmt.Sprintf("dpct::image_accessor_ext<%s, %d>(%s_smpl, %s_acc)", elem, dim, name, name)}
}

// needsRedeclare reports arguments that must not be captured directly:
// reference parameters, host globals, this, and by-value structs without
// standard layout.
func needsRedeclare(e ast.Expr, p *ast.ParamDecl) bool {
	if p != nil && p.Type.IsReference() {
		return true
	}
	usesThis := false
	ast.Inspect(e, func(n ast.Node) bool {
		if _, ok := n.(*ast.This); ok {
			usesThis = true
		}
		return !usesThis
	})
	if usesThis {
		return true
	}
	if v, ok := ast.RefDecl(e).(*ast.VarDecl); ok && v.Global && !v.IsDeviceVar() {
		return true
	}
	t := e.Type()
	if p != nil && p.Type != nil {
		t = p.Type
	}
	if c := t.Canonical(); c != nil && c.Kind == ast.RecordType && c.Record != nil && !c.Record.StandardLayout {
		return true
	}
	return false
}

// argName picks a readable stem for locals derived from argument i.
func argName(e ast.Expr, i int) string {
	switch x := ast.StripCasts(e).(type) {
	case *ast.DeclRef:
		return x.Name
	case *ast.Member:
		return x.Name
	case *ast.Unary:
		if r, ok := ast.StripCasts(x.X).(*ast.DeclRef); ok {
			return r.Name
		}
	}
	return "arg" + strconv.Itoa(i)
}

func sizeOf(t *ast.Type) int64 {
	if n := t.Size(); n > 0 {
		return n
	}
	return pointerBytes
}
