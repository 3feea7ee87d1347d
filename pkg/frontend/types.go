package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/cuda2sycl/pkg/ast"
)

// sizedTypes normalizes spellings of sized integer types.
var sizedTypes = map[string]string{
	"unsigned":               "unsigned int",
	"signed":                 "int",
	"signed int":             "int",
	"short int":              "short",
	"unsigned short int":     "unsigned short",
	"long int":               "long",
	"unsigned long int":      "unsigned long",
	"long long int":          "long long",
	"unsigned long long int": "unsigned long long",
	"long unsigned int":      "unsigned long",
	"long unsigned":          "unsigned long",
}

// specType returns the type named by the specifiers of a declaration-like
// node, including a leading or trailing const.
func (b *builder) specType(n *sitter.Node) *ast.Type {
	tn := n.ChildByFieldName("type")
	if tn == nil {
		return nil
	}
	t := b.typeSpec(tn, b.sc)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "type_qualifier" && b.text(c) == "const" {
			return withConst(t)
		}
	}
	return t
}

func withConst(t *ast.Type) *ast.Type {
	if t == nil || t.Const {
		return t
	}
	c := *t
	c.Const = true
	return &c
}

// typeSpec converts a type specifier. Struct, class and enum definitions are
// declared in sc.
func (b *builder) typeSpec(n *sitter.Node, sc *scope) *ast.Type {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "primitive_type":
		return ast.Builtin(b.text(n))
	case "sized_type_specifier":
		name := b.text(n)
		if norm, ok := sizedTypes[name]; ok {
			name = norm
		}
		return ast.Builtin(name)
	case "type_identifier":
		name := b.text(n)
		if t := b.sc.typ(name); t != nil {
			return t
		}
		return ast.Named(name, nil)
	case "template_type":
		name := b.text(n.ChildByFieldName("name"))
		return &ast.Type{
			Kind: ast.SpecializationType,
			Name: name,
			Args: b.templateArgs(n.ChildByFieldName("arguments")),
		}
	case "qualified_identifier", "dependent_type", "decltype", "auto", "placeholder_type_specifier":
		return ast.Named(b.text(n), nil)
	case "struct_specifier", "class_specifier", "union_specifier":
		return b.record(n, sc)
	case "enum_specifier":
		b.enum(n, sc)
		return ast.Builtin("int")
	case "type_descriptor":
		return b.typeDescriptor(n)
	}
	return ast.Named(b.text(n), nil)
}

// typeDescriptor converts a type written without a declarator name, as in
// casts, sizeof and template arguments.
func (b *builder) typeDescriptor(n *sitter.Node) *ast.Type {
	if n == nil {
		return nil
	}
	if n.Type() != "type_descriptor" {
		return b.typeSpec(n, b.sc)
	}
	t := b.specType(n)
	_, _, t = b.declarator(n.ChildByFieldName("declarator"), t)
	return t
}

// declarator applies a declarator to base and returns the declared name,
// the node spelling it and the resulting type.
func (b *builder) declarator(n *sitter.Node, t *ast.Type) (string, *sitter.Node, *ast.Type) {
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier", "type_identifier", "qualified_identifier", "operator_name", "destructor_name":
			return b.text(n), n, t
		case "template_function":
			return b.text(n.ChildByFieldName("name")), n, t
		case "init_declarator", "function_declarator", "attributed_declarator":
			n = n.ChildByFieldName("declarator")
			if n == nil {
				return "", nil, t
			}
		case "pointer_declarator", "abstract_pointer_declarator":
			t = ast.PointerTo(t)
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if c := n.NamedChild(i); c.Type() == "type_qualifier" && b.text(c) == "const" {
					t.Const = true
				}
			}
			n = n.ChildByFieldName("declarator")
		case "reference_declarator", "abstract_reference_declarator":
			t = ast.ReferenceTo(t)
			n = declaratorChild(n)
		case "array_declarator", "abstract_array_declarator":
			t = b.arrayOf(t, n.ChildByFieldName("size"))
			n = n.ChildByFieldName("declarator")
		case "parenthesized_declarator", "abstract_parenthesized_declarator":
			n = declaratorChild(n)
		default:
			return "", nil, t
		}
	}
	return "", nil, t
}

// declaratorChild returns the nested declarator of a wrapper without a
// declarator field.
func declaratorChild(n *sitter.Node) *sitter.Node {
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		c := n.NamedChild(i)
		if c.Type() != "type_qualifier" {
			return c
		}
	}
	return nil
}

func (b *builder) arrayOf(elem *ast.Type, size *sitter.Node) *ast.Type {
	if size == nil {
		return ast.ArrayOf(elem, -1)
	}
	e := b.expr(size)
	if v, ok := ast.IntValue(e); ok {
		return ast.ArrayOf(elem, v)
	}
	t := ast.ArrayOf(elem, -1)
	t.LenExpr = e
	return t
}

// templateArgs converts a template argument list. A bare name that refers
// to a value is a non-type argument even when the grammar read it as a type.
func (b *builder) templateArgs(list *sitter.Node) []ast.TemplateArg {
	if list == nil {
		return nil
	}
	out := []ast.TemplateArg{}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		if c.Type() != "type_descriptor" {
			out = append(out, b.valueArg(c))
			continue
		}
		if tn := c.ChildByFieldName("type"); tn != nil && tn.Type() == "type_identifier" &&
			c.ChildByFieldName("declarator") == nil && b.sc.typ(b.text(tn)) == nil {
			if d := b.sc.value(b.text(tn)); d != nil {
				e := b.ref(tn, b.text(tn), d)
				v, ok := ast.IntValue(e)
				out = append(out, ast.TemplateArg{Kind: ast.ValueArg, Expr: e, Value: v, Known: ok, Text: b.text(c)})
				continue
			}
		}
		out = append(out, ast.TemplateArg{Kind: ast.TypeArg, Type: b.typeDescriptor(c), Text: b.text(c)})
	}
	return out
}

func (b *builder) valueArg(n *sitter.Node) ast.TemplateArg {
	e := b.expr(n)
	v, ok := ast.IntValue(e)
	return ast.TemplateArg{Kind: ast.ValueArg, Expr: e, Value: v, Known: ok, Text: b.text(n)}
}

// record converts a struct or class specifier. A body makes it a definition
// registered in sc; a bare name refers to a known or forward-declared record.
func (b *builder) record(n *sitter.Node, sc *scope) *ast.Type {
	name := b.text(n.ChildByFieldName("name"))
	body := n.ChildByFieldName("body")
	if body == nil {
		if t := b.sc.typ(name); t != nil {
			return t
		}
		t := &ast.Type{Kind: ast.RecordType, Name: name}
		sc.declareType(name, t)
		return t
	}

	rd := &ast.RecordDecl{Base: ast.Base{Rng: b.rng(n)}, Name: name, StandardLayout: true}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == "base_class_clause" {
			rd.StandardLayout = false
		}
	}
	t := b.sc.typ(name)
	if t == nil || t.Kind != ast.RecordType || t.Record != nil {
		t = &ast.Type{Kind: ast.RecordType, Name: name}
	}
	t.Record = rd
	sc.declareType(name, t)

	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "field_declaration":
			ft := b.specType(c)
			if strings.Contains(b.text(c), "virtual") {
				rd.StandardLayout = false
			}
			for _, dn := range declarators(c) {
				fname, _, ftype := b.declarator(dn, ft)
				if fname == "" {
					continue
				}
				rd.Fields = append(rd.Fields, &ast.FieldDecl{Base: ast.Base{Rng: b.rng(c)}, Name: fname, Type: ftype})
			}
		case "function_definition", "declaration":
			if strings.Contains(b.text(c), "virtual") {
				rd.StandardLayout = false
			}
		}
	}
	return t
}

// enum declares the enumerators of an enum specifier in sc.
func (b *builder) enum(n *sitter.Node, sc *scope) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	var next int64
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() != "enumerator" {
			continue
		}
		if v := c.ChildByFieldName("value"); v != nil {
			if val, ok := ast.IntValue(b.expr(v)); ok {
				next = val
			}
		}
		name := b.text(c.ChildByFieldName("name"))
		sc.declare(name, &ast.EnumConstant{Base: ast.Base{Rng: b.rng(c)}, Name: name, Value: next})
		next++
	}
	if name := n.ChildByFieldName("name"); name != nil {
		sc.declareType(b.text(name), ast.Named(b.text(name), ast.Builtin("int")))
	}
}

// fieldType returns the type of member name of t, looking through pointers
// when arrow is set.
func fieldType(t *ast.Type, name string, arrow bool) *ast.Type {
	if arrow {
		t = t.Pointee()
	}
	c := t.Canonical()
	if c == nil {
		return nil
	}
	if c.Record != nil {
		for _, f := range c.Record.Fields {
			if f.Name == name {
				return f.Type
			}
		}
	}
	if elem, ok := vectorElem(c.Name); ok && len(name) == 1 {
		return ast.Builtin(elem)
	}
	return nil
}

// vectorElem returns the component type of a CUDA vector type.
func vectorElem(name string) (string, bool) {
	base := strings.TrimRight(name, "1234")
	if base == name || base == "" {
		return "", false
	}
	switch base {
	case "dim", "uint":
		return "unsigned int", true
	case "char", "short", "int", "long", "longlong", "float", "double":
		if base == "longlong" {
			return "long long", true
		}
		return base, true
	case "uchar", "ushort", "ulong", "ulonglong":
		return "unsigned " + strings.Replace(strings.TrimPrefix(base, "u"), "longlong", "long long", 1), true
	}
	return "", false
}
