package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/source"
)

// builder converts one parse tree into a TranslationUnit.
type builder struct {
	t   *Tree
	src []byte
	sc  *scope
	tu  *ast.TranslationUnit
	// tparams are the parameters of the template being converted, taken by
	// the next function signature.
	tparams []*ast.TemplateParam
}

func newBuilder(t *Tree, globals *scope) *builder {
	return &builder{
		t:   t,
		src: t.m.src,
		sc:  globals,
		tu:  &ast.TranslationUnit{File: t.File, Path: t.Path},
	}
}

func (b *builder) unit() *ast.TranslationUnit {
	b.tu.Decls = b.decls(b.t.tree.RootNode(), b.sc)
	return b.tu
}

func (b *builder) push() { b.sc = newScope(b.sc) }
func (b *builder) pop()  { b.sc = b.sc.parent }

func (b *builder) rng(n *sitter.Node) source.Range {
	return source.FileRange(b.t.File, n.StartByte(), n.EndByte())
}

// text returns the masked spelling of n with runs of blanks collapsed.
func (b *builder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(string(b.src[n.StartByte():n.EndByte()])), " ")
}

// decls converts the declarations directly under n, declaring names in into.
func (b *builder) decls(n *sitter.Node, into *scope) []ast.Decl {
	var out []ast.Decl
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, b.topLevel(n.NamedChild(i), into)...)
	}
	return out
}

func (b *builder) topLevel(n *sitter.Node, into *scope) []ast.Decl {
	switch n.Type() {
	case "preproc_include":
		b.include(n)
	case "preproc_def":
		if ec := b.define(n); ec != nil {
			into.declare(ec.Name, ec)
			return []ast.Decl{ec}
		}
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif",
		"declaration_list":
		return b.decls(n, into)
	case "namespace_definition":
		if body := n.ChildByFieldName("body"); body != nil {
			return b.decls(body, into)
		}
	case "linkage_specification":
		if body := n.ChildByFieldName("body"); body != nil {
			if body.Type() == "declaration_list" {
				return b.decls(body, into)
			}
			return b.topLevel(body, into)
		}
	case "function_definition":
		return []ast.Decl{b.function(n, into)}
	case "declaration":
		return b.declaration(n, true, into)
	case "template_declaration":
		return b.template(n, into)
	case "type_definition":
		b.typedef(n, into)
	case "alias_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			into.declareType(b.text(name), ast.Named(b.text(name), b.typeDescriptor(n.ChildByFieldName("type"))))
		}
	case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
		b.typeSpec(n, into)
		return b.typeDecls(n)
	}
	return nil
}

func (b *builder) include(n *sitter.Node) {
	p := n.ChildByFieldName("path")
	if p == nil {
		return
	}
	spelled := string(b.src[p.StartByte():p.EndByte()])
	b.tu.Includes = append(b.tu.Includes, &ast.Include{
		Base:    ast.Base{Rng: b.rng(n)},
		Path:    strings.Trim(spelled, `"<>`),
		PathRng: b.rng(p),
		Angled:  p.Type() == "system_lib_string",
	})
}

// define turns an integer object-like macro into an enumerator so that
// constant folding sees through it.
func (b *builder) define(n *sitter.Node) *ast.EnumConstant {
	name := n.ChildByFieldName("name")
	if name == nil {
		return nil
	}
	v, ok := b.t.m.defines[b.text(name)]
	if !ok {
		return nil
	}
	return &ast.EnumConstant{Base: ast.Base{Rng: b.rng(n)}, Name: b.text(name), Value: v}
}

// typeDecls returns the record and enumerator declarations a type specifier
// defined, so a unit lists them in source order.
func (b *builder) typeDecls(n *sitter.Node) []ast.Decl {
	if n == nil {
		return nil
	}
	t := b.sc.typ(b.text(n.ChildByFieldName("name")))
	if t != nil && t.Record != nil && t.Record.Range() == b.rng(n) {
		return []ast.Decl{t.Record}
	}
	return nil
}

// template converts a template declaration. Its parameters are visible only
// while the templated entity is built.
func (b *builder) template(n *sitter.Node, into *scope) []ast.Decl {
	b.push()
	defer b.pop()
	params := b.templateParams(n.ChildByFieldName("parameters"))
	var out []ast.Decl
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "function_definition":
			b.tparams = params
			out = append(out, b.function(c, into))
		case "declaration":
			b.tparams = params
			out = append(out, b.declaration(c, true, into)...)
		case "template_declaration":
			out = append(out, b.template(c, into)...)
		case "struct_specifier", "class_specifier", "alias_declaration", "type_definition":
			out = append(out, b.topLevel(c, into)...)
		}
	}
	b.tparams = nil
	return out
}

func (b *builder) templateParams(list *sitter.Node) []*ast.TemplateParam {
	if list == nil {
		return nil
	}
	var out []*ast.TemplateParam
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		p := &ast.TemplateParam{Base: ast.Base{Rng: b.rng(c)}, Index: len(out)}
		switch c.Type() {
		case "type_parameter_declaration", "variadic_type_parameter_declaration":
			p.Kind = ast.TypeParam
			if c.NamedChildCount() > 0 {
				p.Name = b.text(c.NamedChild(int(c.NamedChildCount()) - 1))
			}
		case "optional_type_parameter_declaration":
			p.Kind = ast.TypeParam
			p.Name = b.text(c.ChildByFieldName("name"))
			if def := c.ChildByFieldName("default_type"); def != nil {
				arg := ast.TemplateArg{Kind: ast.TypeArg, Type: b.typeSpec(def, b.sc), Text: b.text(def)}
				p.Default = &arg
			}
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
			p.Kind = ast.NonTypeParam
			base := b.specType(c)
			name, _, t := b.declarator(c.ChildByFieldName("declarator"), base)
			p.Name, p.Type = name, t
			if def := c.ChildByFieldName("default_value"); def != nil {
				arg := b.valueArg(def)
				p.Default = &arg
			}
		default:
			continue
		}
		if p.Kind == ast.TypeParam {
			b.sc.declareType(p.Name, &ast.Type{Kind: ast.TemplateParamType, Name: p.Name, Index: p.Index})
		} else {
			b.sc.declare(p.Name, p)
		}
		out = append(out, p)
	}
	return out
}

// function converts a function definition.
func (b *builder) function(n *sitter.Node, into *scope) *ast.FunctionDecl {
	dn := n.ChildByFieldName("declarator")
	if dn == nil {
		return &ast.FunctionDecl{Base: ast.Base{Rng: b.rng(n)}}
	}
	fd := b.functionDecl(n, dn, b.specType(n))
	b.link(fd, into)
	into.declare(fd.Name, fd)

	if body := n.ChildByFieldName("body"); body != nil {
		b.push()
		for _, p := range fd.Params {
			b.sc.declare(p.Name, p)
		}
		fd.Body = b.compound(body)
		b.pop()
	}
	return fd
}

// functionDecl builds the signature of a function whose declarator is dn.
func (b *builder) functionDecl(n, dn *sitter.Node, base *ast.Type) *ast.FunctionDecl {
	quals := b.t.m.claim(b.prevEnd(n), dn.StartByte())
	fd := &ast.FunctionDecl{Base: ast.Base{Rng: b.extend(b.rng(n), quals)}, TemplateParams: b.tparams}
	b.tparams = nil
	fd.Attrs, fd.AttrRanges = b.attrs(n, quals)
	if tn := n.ChildByFieldName("type"); tn != nil {
		fd.ReturnRng = b.rng(tn)
	}

	var fn *sitter.Node
	fd.Return, fn = b.funcDeclarator(dn, base)
	if fn == nil {
		return fd
	}
	if name := fn.ChildByFieldName("declarator"); name != nil {
		fd.NameRng = b.rng(name)
		if name.Type() == "template_function" {
			fd.Name = b.text(name.ChildByFieldName("name"))
			fd.TemplateArgs = b.templateArgs(name.ChildByFieldName("arguments"))
		} else {
			fd.Name = b.text(name)
		}
	}
	if params := fn.ChildByFieldName("parameters"); params != nil {
		fd.ParamsRng = b.rng(params)
		fd.Params = b.params(params)
	}
	return fd
}

// funcDeclarator applies pointer and reference wrappers to the return type
// and returns the function_declarator they wrap.
func (b *builder) funcDeclarator(n *sitter.Node, t *ast.Type) (*ast.Type, *sitter.Node) {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return t, n
		case "pointer_declarator":
			t = ast.PointerTo(t)
			n = n.ChildByFieldName("declarator")
		case "reference_declarator":
			t = ast.ReferenceTo(t)
			n = lastNamed(n)
		case "parenthesized_declarator":
			n = n.NamedChild(0)
		default:
			return t, nil
		}
	}
	return t, nil
}

func (b *builder) params(list *sitter.Node) []*ast.ParamDecl {
	var out []*ast.ParamDecl
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
		default:
			continue
		}
		base := b.specType(c)
		if base != nil && base.Kind == ast.BuiltinType && base.Name == "void" && c.ChildByFieldName("declarator") == nil {
			continue
		}
		p := &ast.ParamDecl{Base: ast.Base{Rng: b.rng(c)}, Index: len(out)}
		var nameNode *sitter.Node
		p.Name, nameNode, p.Type = b.declarator(c.ChildByFieldName("declarator"), base)
		if nameNode != nil {
			p.NameRng = b.rng(nameNode)
		}
		if tn := c.ChildByFieldName("type"); tn != nil {
			p.TypeRng = b.rng(tn)
		}
		if def := c.ChildByFieldName("default_value"); def != nil {
			p.Default = b.expr(def)
		}
		out = append(out, p)
	}
	return out
}

// link points a redeclaration at the first declaration of the same
// function and a specialization at its primary template.
func (b *builder) link(fd *ast.FunctionDecl, in *scope) {
	for _, prev := range in.overloads(fd.Name) {
		if prev == fd {
			continue
		}
		if fd.TemplateArgs != nil && prev.IsTemplate() && prev.TemplateArgs == nil {
			if fd.Primary == nil {
				fd.Primary = prev.Root()
			}
			continue
		}
		if sameSignature(prev, fd) && fd.Canonical == nil {
			fd.Canonical = prev.Root()
			fd.Attrs |= prev.Attrs &^ (ast.AttrExtern | ast.AttrStatic)
		}
	}
}

func sameSignature(x, y *ast.FunctionDecl) bool {
	if len(x.Params) != len(y.Params) || x.IsTemplate() != y.IsTemplate() {
		return false
	}
	if (x.TemplateArgs == nil) != (y.TemplateArgs == nil) {
		return false
	}
	for i := range x.Params {
		if x.Params[i].Type.String() != y.Params[i].Type.String() {
			return false
		}
	}
	return true
}

// declaration converts a simple declaration into variables and function
// prototypes.
func (b *builder) declaration(n *sitter.Node, global bool, into *scope) []ast.Decl {
	base := b.specType(n)
	dns := declarators(n)
	if len(dns) == 0 {
		return b.typeDecls(n.ChildByFieldName("type"))
	}
	quals := b.t.m.claim(b.prevEnd(n), dns[0].StartByte())
	attrs, ranges := b.attrs(n, quals)
	rng := b.extend(b.rng(n), quals)

	var out []ast.Decl
	for _, dn := range dns {
		if _, fn := b.funcDeclarator(dn, base); fn != nil {
			if args, ok := b.vexingArgs(fn, global); ok {
				v := b.variable(n, fn.ChildByFieldName("declarator"), base, rng, attrs, ranges, global)
				v.CtorArgs, v.HasCtor = args, true
				into.declare(v.Name, v)
				out = append(out, v)
				continue
			}
			fd := b.functionDecl(n, dn, base)
			fd.Rng = rng
			fd.Attrs |= attrs
			fd.AttrRanges = ranges
			b.link(fd, into)
			into.declare(fd.Name, fd)
			out = append(out, fd)
			continue
		}
		v := b.variable(n, dn, base, rng, attrs, ranges, global)
		into.declare(v.Name, v)
		out = append(out, v)
	}
	return out
}

func (b *builder) variable(n, dn *sitter.Node, base *ast.Type, rng source.Range, attrs ast.Attr, ranges []source.Range, global bool) *ast.VarDecl {
	v := &ast.VarDecl{
		Base:       ast.Base{Rng: rng},
		Attrs:      attrs,
		AttrRanges: ranges,
		Global:     global,
	}
	if tn := n.ChildByFieldName("type"); tn != nil {
		v.TypeRng = b.rng(tn)
	}
	var init *sitter.Node
	if dn.Type() == "init_declarator" {
		init = dn.ChildByFieldName("value")
		dn = dn.ChildByFieldName("declarator")
	}
	var nameNode *sitter.Node
	v.Name, nameNode, v.Type = b.declarator(dn, base)
	if nameNode != nil {
		v.NameRng = b.rng(nameNode)
	}
	if init == nil {
		return v
	}
	if init.Type() == "argument_list" {
		v.HasCtor = true
		v.CtorArgs = b.args(init)
		return v
	}
	v.Init = b.expr(init)
	if v.Type != nil && v.Type.Kind == ast.ArrayType && v.Type.Len < 0 {
		if l, ok := v.Init.(*ast.InitList); ok {
			c := *v.Type
			c.Len = int64(len(l.Elems))
			v.Type = &c
		}
	}
	return v
}

// vexingArgs recognizes "dim3 block(n);" parsed as a function declaration
// whose parameter types are names of variables in scope.
func (b *builder) vexingArgs(fn *sitter.Node, global bool) ([]ast.Expr, bool) {
	if global {
		return nil, false
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil || params.NamedChildCount() == 0 {
		return nil, false
	}
	var args []ast.Expr
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		tn := p.ChildByFieldName("type")
		if p.Type() != "parameter_declaration" || p.ChildByFieldName("declarator") != nil ||
			tn == nil || tn.Type() != "type_identifier" {
			return nil, false
		}
		name := b.text(tn)
		d := b.sc.value(name)
		if d == nil {
			return nil, false
		}
		args = append(args, b.ref(tn, name, d))
	}
	return args, true
}

func (b *builder) typedef(n *sitter.Node, into *scope) {
	base := b.specType(n)
	for _, dn := range declarators(n) {
		name, _, t := b.declarator(dn, base)
		into.declareType(name, ast.Named(name, t))
	}
}

// attrs combines the claimed CUDA qualifiers with C++ storage classes.
func (b *builder) attrs(n *sitter.Node, quals []qualifier) (ast.Attr, []source.Range) {
	var a ast.Attr
	var ranges []source.Range
	for _, q := range quals {
		a |= q.attr
		ranges = append(ranges, source.FileRange(b.t.File, q.start, q.end))
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "storage_class_specifier" {
			continue
		}
		switch b.text(c) {
		case "static":
			a |= ast.AttrStatic
		case "extern":
			a |= ast.AttrExtern
		}
	}
	return a, ranges
}

// extend moves the start of rng back to the first claimed qualifier.
func (b *builder) extend(rng source.Range, quals []qualifier) source.Range {
	if len(quals) > 0 && quals[0].start < rng.Begin.Offset {
		rng.Begin.Offset = quals[0].start
	}
	return rng
}

// prevEnd is where the text belonging to n begins: the end of the token
// before it.
func (b *builder) prevEnd(n *sitter.Node) uint32 {
	for ; n != nil; n = n.Parent() {
		if p := n.PrevSibling(); p != nil {
			return p.EndByte()
		}
	}
	return 0
}

var declaratorTypes = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"init_declarator":          true,
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"array_declarator":         true,
	"function_declarator":      true,
	"parenthesized_declarator": true,
	"type_identifier":          true,
}

// declarators returns the declarator children of a declaration.
func declarators(n *sitter.Node) []*sitter.Node {
	tn := n.ChildByFieldName("type")
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if !declaratorTypes[c.Type()] {
			continue
		}
		if tn != nil && c.StartByte() == tn.StartByte() && c.EndByte() == tn.EndByte() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func lastNamed(n *sitter.Node) *sitter.Node {
	if c := int(n.NamedChildCount()); c > 0 {
		return n.NamedChild(c - 1)
	}
	return nil
}
