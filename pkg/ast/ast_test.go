package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		name string
		typ  *Type
		want string
	}{
		{"builtin", Builtin("float"), "float"},
		{"pointer", PointerTo(Builtin("float")), "float *"},
		{"double pointer", PointerTo(PointerTo(Builtin("int"))), "int **"},
		{"const", &Type{Kind: BuiltinType, Name: "int", Const: true}, "const int"},
		{"reference", ReferenceTo(Builtin("int")), "int &"},
		{"array", ArrayOf(Builtin("char"), 4), "char[4]"},
		{"specialization", &Type{
			Kind: SpecializationType,
			Name: "Vec",
			Args: []TemplateArg{TypeArgOf(Builtin("float")), ValueArgOf(4)},
		}, "Vec<float, 4>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestTypeSize(t *testing.T) {
	rec := &RecordDecl{Name: "P", Fields: []*FieldDecl{
		{Name: "a", Type: Builtin("float")},
		{Name: "b", Type: PointerTo(Builtin("int"))},
	}}
	assert.Equal(t, int64(4), Builtin("float").Size())
	assert.Equal(t, int64(8), PointerTo(Builtin("char")).Size())
	assert.Equal(t, int64(64), ArrayOf(Builtin("int"), 16).Size())
	assert.Equal(t, int64(12), (&Type{Kind: RecordType, Name: "P", Record: rec}).Size())
	assert.Equal(t, int64(16), Named("float4", nil).Size())
	assert.Equal(t, int64(-1), ArrayOf(Builtin("int"), -1).Size())
}

func TestIntValue(t *testing.T) {
	b := NewBuilder(1, "N = 4 * 2 + 1")
	four := b.Int(b.Range("4"))
	two := b.Int(b.Range("2"))
	one := b.Int(b.Range("1"))
	mul := &Binary{Op: "*", X: four, Y: two}
	sum := &Binary{Op: "+", X: mul, Y: one}

	v, ok := IntValue(sum)
	require.True(t, ok)
	assert.Equal(t, int64(9), v)

	constVar := &VarDecl{Name: "N", Type: &Type{Kind: BuiltinType, Name: "int", Const: true}, Init: sum}
	v, ok = IntValue(&DeclRef{Name: "N", Decl: constVar})
	require.True(t, ok)
	assert.Equal(t, int64(9), v)

	_, ok = IntValue(&DeclRef{Name: "x", Decl: &VarDecl{Name: "x", Type: Builtin("int")}})
	assert.False(t, ok)

	v, ok = IntValue(&Literal{Kind: IntLit, Text: "0x10u"})
	require.True(t, ok)
	assert.Equal(t, int64(16), v)
}

func TestInspectAndParents(t *testing.T) {
	src := "f(a, b);"
	b := NewBuilder(1, src)
	fn := b.Ref(b.Range("f"), "f", nil, nil)
	a := b.Ref(b.Range("a"), "a", nil, nil)
	bb := b.Ref(b.Range("b"), "b", nil, nil)
	call := b.Call(b.Range("f(a, b)"), fn, a, bb)
	stmt := &ExprStmt{X: call}
	body := &CompoundStmt{List: []Stmt{stmt}}

	var names []string
	Inspect(body, func(n Node) bool {
		if r, ok := n.(*DeclRef); ok {
			names = append(names, r.Name)
		}
		return true
	})
	assert.Equal(t, []string{"f", "a", "b"}, names)

	pm := NewParentMap(body)
	assert.Equal(t, Node(call), pm.Parent(a))
	assert.Equal(t, Stmt(stmt), pm.EnclosingStmt(a))
	assert.Equal(t, "f", call.CalleeName())
	assert.Equal(t, "(a, b)", b.Text(call.ArgsRng))
}

func TestFunctionRoot(t *testing.T) {
	primary := &FunctionDecl{Name: "k"}
	redecl := &FunctionDecl{Name: "k", Canonical: primary}
	spec := &FunctionDecl{Name: "k", Primary: redecl}
	assert.Same(t, primary, spec.Root())
	assert.Same(t, primary, primary.Root())
}
