package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/cuda2sycl/pkg/ast"
)

// builtinVars are the CUDA index variables. They stay unresolved so the
// analyzer can map them to nd_item queries.
var builtinVars = map[string]string{
	"threadIdx": "uint3",
	"blockIdx":  "uint3",
	"blockDim":  "dim3",
	"gridDim":   "dim3",
	"warpSize":  "int",
}

var cppCasts = map[string]ast.CastKind{
	"static_cast":      ast.StaticCast,
	"reinterpret_cast": ast.ReinterpretCast,
	"const_cast":       ast.ConstCast,
	"dynamic_cast":     ast.StaticCast,
}

func (b *builder) base(n *sitter.Node, t *ast.Type) ast.ExprBase {
	return ast.ExprBase{Base: ast.Base{Rng: b.rng(n)}, Typ: t}
}

func (b *builder) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		name := b.text(n)
		return b.ref(n, name, b.sc.value(name))
	case "qualified_identifier":
		name := b.text(n)
		return b.ref(n, name, b.sc.value(name))
	case "template_function":
		name := b.text(n.ChildByFieldName("name"))
		r := b.ref(n, name, b.sc.value(name))
		r.TemplateArgs = b.templateArgs(n.ChildByFieldName("arguments"))
		return r
	case "number_literal":
		return b.number(n)
	case "string_literal", "concatenated_string", "raw_string_literal":
		return &ast.Literal{ExprBase: b.base(n, ast.PointerTo(withConst(ast.Builtin("char")))), Kind: ast.StringLit, Text: b.text(n)}
	case "char_literal":
		return b.char(n)
	case "true", "false":
		v := int64(0)
		if n.Type() == "true" {
			v = 1
		}
		return &ast.Literal{ExprBase: b.base(n, ast.Builtin("bool")), Kind: ast.BoolLit, Text: n.Type(), Value: v}
	case "null", "nullptr":
		return &ast.Literal{ExprBase: b.base(n, ast.Builtin("nullptr_t")), Kind: ast.NullLit, Text: b.text(n)}
	case "this":
		return &ast.This{ExprBase: b.base(n, nil)}
	case "parenthesized_expression":
		if n.NamedChildCount() == 0 {
			break
		}
		x := b.expr(n.NamedChild(0))
		return &ast.Paren{ExprBase: b.base(n, typeOf(x)), X: x}
	case "field_expression":
		x := b.expr(n.ChildByFieldName("argument"))
		field := n.ChildByFieldName("field")
		arrow := strings.TrimSpace(b.text(n.ChildByFieldName("operator"))) == "->"
		m := &ast.Member{X: x, Arrow: arrow}
		if field != nil {
			m.Name, m.NameRng = b.text(field), b.rng(field)
		}
		m.ExprBase = b.base(n, fieldType(typeOf(x), m.Name, arrow))
		return m
	case "call_expression":
		return b.call(n)
	case "cast_expression":
		tn := n.ChildByFieldName("type")
		to := b.typeDescriptor(tn)
		c := &ast.Cast{ExprBase: b.base(n, to), Kind: ast.CStyleCast, To: to, X: b.expr(n.ChildByFieldName("value"))}
		if tn != nil {
			c.TypeRng = b.rng(tn)
		}
		return c
	case "unary_expression":
		op := b.text(n.ChildByFieldName("operator"))
		x := b.expr(n.ChildByFieldName("argument"))
		t := typeOf(x)
		if op == "!" {
			t = ast.Builtin("bool")
		}
		return &ast.Unary{ExprBase: b.base(n, t), Op: op, X: x}
	case "pointer_expression":
		op := b.text(n.ChildByFieldName("operator"))
		x := b.expr(n.ChildByFieldName("argument"))
		var t *ast.Type
		if op == "&" {
			if xt := typeOf(x); xt != nil {
				t = ast.PointerTo(xt)
			}
		} else {
			t = typeOf(x).Pointee()
		}
		return &ast.Unary{ExprBase: b.base(n, t), Op: op, X: x}
	case "update_expression":
		arg := n.ChildByFieldName("argument")
		x := b.expr(arg)
		return &ast.Unary{
			ExprBase: b.base(n, typeOf(x)),
			Op:       b.text(n.ChildByFieldName("operator")),
			X:        x,
			Postfix:  arg != nil && arg.StartByte() == n.StartByte(),
		}
	case "binary_expression", "assignment_expression":
		op := b.text(n.ChildByFieldName("operator"))
		x := b.expr(n.ChildByFieldName("left"))
		y := b.expr(n.ChildByFieldName("right"))
		t := binaryType(op, x, y)
		if n.Type() == "assignment_expression" {
			t = typeOf(x)
		}
		return &ast.Binary{ExprBase: b.base(n, t), Op: op, X: x, Y: y}
	case "comma_expression":
		x := b.expr(n.ChildByFieldName("left"))
		y := b.expr(n.ChildByFieldName("right"))
		return &ast.Binary{ExprBase: b.base(n, typeOf(y)), Op: ",", X: x, Y: y}
	case "conditional_expression":
		c := &ast.Conditional{
			Cond: b.expr(n.ChildByFieldName("condition")),
			Then: b.expr(n.ChildByFieldName("consequence")),
			Else: b.expr(n.ChildByFieldName("alternative")),
		}
		c.ExprBase = b.base(n, typeOf(c.Then))
		return c
	case "sizeof_expression", "alignof_expression":
		return b.sizeOf(n)
	case "subscript_expression":
		x := b.expr(n.ChildByFieldName("argument"))
		idx := n.ChildByFieldName("index")
		if idx == nil {
			if list := n.ChildByFieldName("indices"); list != nil && list.NamedChildCount() > 0 {
				idx = list.NamedChild(0)
			}
		}
		return &ast.Index{ExprBase: b.base(n, typeOf(x).Pointee()), X: x, Idx: b.expr(idx)}
	case "initializer_list":
		l := &ast.InitList{ExprBase: b.base(n, nil)}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "comment" {
				l.Elems = append(l.Elems, b.expr(c))
			}
		}
		return l
	case "compound_literal_expression":
		tn := n.ChildByFieldName("type")
		c := &ast.Construct{ExprBase: b.base(n, b.typeDescriptor(tn)), Braced: true}
		if tn != nil {
			c.TypeRng = b.rng(tn)
		}
		if v := n.ChildByFieldName("value"); v != nil {
			if l, ok := b.expr(v).(*ast.InitList); ok {
				c.Args = l.Elems
			}
		}
		return c
	}
	return &ast.Unknown{ExprBase: b.base(n, nil), Children: b.children(n)}
}

// ref builds a reference to d named name. Unknown names keep a nil Decl.
func (b *builder) ref(n *sitter.Node, name string, d ast.Decl) *ast.DeclRef {
	var t *ast.Type
	switch d := d.(type) {
	case *ast.VarDecl:
		t = d.Type
	case *ast.ParamDecl:
		t = d.Type
	case *ast.TemplateParam:
		t = d.Type
	case *ast.EnumConstant:
		t = ast.Builtin("int")
	case nil:
		if tn, ok := builtinVars[name]; ok {
			t = ast.Named(tn, nil)
		}
	}
	return &ast.DeclRef{ExprBase: b.base(n, t), Name: name, Decl: d}
}

func typeOf(e ast.Expr) *ast.Type {
	if e == nil {
		return nil
	}
	return e.Type()
}

// binaryType is the result type of x op y.
func binaryType(op string, x, y ast.Expr) *ast.Type {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		return ast.Builtin("bool")
	}
	xt, yt := typeOf(x), typeOf(y)
	switch {
	case xt.IsPointer():
		return xt
	case yt.IsPointer() && op == "+":
		return yt
	case yt.Is("double"):
		return yt
	case yt.Is("float") && !xt.Is("double"):
		return yt
	}
	if xt == nil {
		return yt
	}
	return xt
}

func (b *builder) number(n *sitter.Node) ast.Expr {
	text := b.text(n)
	lower := strings.ToLower(text)
	hex := strings.HasPrefix(lower, "0x")
	isFloat := !hex && strings.ContainsAny(lower, ".e") || hex && strings.Contains(lower, "p")
	if isFloat {
		t := ast.Builtin("double")
		if strings.HasSuffix(lower, "f") {
			t = ast.Builtin("float")
		}
		return &ast.Literal{ExprBase: b.base(n, t), Kind: ast.FloatLit, Text: text}
	}
	l := &ast.Literal{ExprBase: b.base(n, ast.Builtin(intLitType(lower))), Kind: ast.IntLit, Text: text}
	l.Value, _ = ast.IntValue(l)
	return l
}

func intLitType(lower string) string {
	suffix := strings.TrimLeft(lower, "0123456789'")
	if strings.HasPrefix(lower, "0x") {
		suffix = strings.TrimLeft(lower[2:], "0123456789abcdef'")
	}
	unsigned := strings.Contains(suffix, "u")
	long := strings.Count(suffix, "l")
	switch {
	case long >= 2 && unsigned:
		return "unsigned long long"
	case long >= 2:
		return "long long"
	case long == 1 && unsigned:
		return "unsigned long"
	case long == 1:
		return "long"
	case unsigned:
		return "unsigned int"
	}
	return "int"
}

func (b *builder) char(n *sitter.Node) ast.Expr {
	text := b.text(n)
	l := &ast.Literal{ExprBase: b.base(n, ast.Builtin("char")), Kind: ast.CharLit, Text: text}
	body := strings.TrimSuffix(strings.TrimPrefix(text, "'"), "'")
	switch {
	case len(body) == 1:
		l.Value = int64(body[0])
	case len(body) == 2 && body[0] == '\\':
		l.Value = int64(map[byte]byte{'n': '\n', 't': '\t', 'r': '\r', '0': 0, '\\': '\\', '\'': '\''}[body[1]])
	}
	return l
}

func (b *builder) sizeOf(n *sitter.Node) ast.Expr {
	op := "sizeof"
	if n.Type() == "alignof_expression" {
		op = "alignof"
	}
	s := &ast.SizeOf{ExprBase: b.base(n, ast.Builtin("size_t")), Op: op}
	if tn := n.ChildByFieldName("type"); tn != nil {
		s.Arg, s.TypeRng = b.typeDescriptor(tn), b.rng(tn)
		return s
	}
	v := n.ChildByFieldName("value")
	if v == nil {
		return s
	}
	// sizeof(T) with a type name reads as a parenthesized identifier.
	if v.Type() == "parenthesized_expression" && v.NamedChildCount() == 1 {
		if id := v.NamedChild(0); id.Type() == "identifier" && b.sc.value(b.text(id)) == nil {
			if t := b.sc.typ(b.text(id)); t != nil {
				s.Arg, s.TypeRng = t, b.rng(id)
				return s
			}
		}
	}
	s.X = b.expr(v)
	return s
}

// call converts a call expression, which may also be a kernel launch, a
// C++ cast, a functional cast or a constructor call.
func (b *builder) call(n *sitter.Node) ast.Expr {
	fn := n.ChildByFieldName("function")
	argsNode := n.ChildByFieldName("arguments")
	if fn == nil || argsNode == nil {
		return &ast.Unknown{ExprBase: b.base(n, nil), Children: b.children(n)}
	}

	if fn.Type() == "call_expression" {
		if inner := fn.ChildByFieldName("arguments"); inner != nil && b.t.m.launches[inner.StartByte()] {
			c := b.plainCall(n, fn.ChildByFieldName("function"), argsNode, b.args(argsNode))
			return &ast.KernelLaunch{ExprBase: b.base(n, nil), Call: c, Config: b.args(inner)}
		}
	}

	args := b.args(argsNode)
	switch fn.Type() {
	case "template_function":
		name := b.text(fn.ChildByFieldName("name"))
		if kind, ok := cppCasts[name]; ok {
			c := &ast.Cast{Kind: kind}
			if targs := fn.ChildByFieldName("arguments"); targs != nil && targs.NamedChildCount() > 0 {
				tn := targs.NamedChild(0)
				c.To, c.TypeRng = b.typeDescriptor(tn), b.rng(tn)
			}
			if len(args) > 0 {
				c.X = args[0]
			}
			c.ExprBase = b.base(n, c.To)
			return c
		}
	case "primitive_type", "sized_type_specifier":
		to := b.typeSpec(fn, b.sc)
		c := &ast.Cast{ExprBase: b.base(n, to), Kind: ast.FunctionalCast, To: to, TypeRng: b.rng(fn)}
		if len(args) > 0 {
			c.X = args[0]
		}
		return c
	case "identifier", "type_identifier", "template_type":
		if t := b.constructed(fn); t != nil {
			return &ast.Construct{ExprBase: b.base(n, t), TypeRng: b.rng(fn), Args: args}
		}
	}
	return b.plainCall(n, fn, argsNode, args)
}

// constructed returns the class type a callee names, or nil when the callee
// is a function.
func (b *builder) constructed(fn *sitter.Node) *ast.Type {
	if fn.Type() == "template_type" {
		return b.typeSpec(fn, b.sc)
	}
	name := b.text(fn)
	if b.sc.value(name) != nil {
		return nil
	}
	if t := b.sc.typ(name); t != nil {
		return t
	}
	if name == "dim3" {
		return ast.Named(name, nil)
	}
	return nil
}

// plainCall builds a function call with the callee resolved by argument
// count.
func (b *builder) plainCall(n, fn, argsNode *sitter.Node, args []ast.Expr) *ast.Call {
	c := &ast.Call{ExprBase: b.base(n, nil), Args: args, ArgsRng: b.rng(argsNode), ResultUsed: true}
	c.Fun = b.expr(fn)
	if r, ok := c.Fun.(*ast.DeclRef); ok {
		if fd := resolve(b.sc.overloads(r.Name), len(c.Args)); fd != nil {
			r.Decl = fd
			c.Typ = fd.Return
		}
	}
	return c
}

func (b *builder) args(list *sitter.Node) []ast.Expr {
	var out []ast.Expr
	for i := 0; i < int(list.NamedChildCount()); i++ {
		if c := list.NamedChild(i); c.Type() != "comment" {
			out = append(out, b.expr(c))
		}
	}
	return out
}
