package deduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/pkg/ast"
)

func typeParam(i int, name string) (*ast.TemplateParam, *ast.Type) {
	return &ast.TemplateParam{Index: i, Name: name, Kind: ast.TypeParam},
		&ast.Type{Kind: ast.TemplateParamType, Name: name, Index: i}
}

func nonTypeParam(i int, name string) (*ast.TemplateParam, ast.Expr) {
	p := &ast.TemplateParam{Index: i, Name: name, Kind: ast.NonTypeParam, Type: ast.Builtin("int")}
	return p, &ast.DeclRef{Name: name, Decl: p}
}

func expr(t *ast.Type) ast.Expr {
	return &ast.DeclRef{ExprBase: ast.ExprBase{Typ: t}, Name: "x"}
}

func TestDeduceThroughPointer(t *testing.T) {
	tp, T := typeParam(0, "T")
	fn := &ast.FunctionDecl{
		Name:           "scale",
		TemplateParams: []*ast.TemplateParam{tp},
		Params:         []*ast.ParamDecl{{Name: "p", Type: ast.PointerTo(T)}},
	}
	res := Deduce(fn, nil, []ast.Expr{expr(ast.PointerTo(ast.Builtin("float")))})
	require.True(t, res.Complete())
	assert.Equal(t, "float", res.Args[0].String())
}

func TestDefaultFallback(t *testing.T) {
	tp, T := typeParam(0, "T")
	up, _ := typeParam(1, "U")
	def := ast.TypeArgOf(ast.Builtin("double"))
	up.Default = &def
	fn := &ast.FunctionDecl{
		Name:           "f",
		TemplateParams: []*ast.TemplateParam{tp, up},
		Params:         []*ast.ParamDecl{{Name: "a", Type: T}},
	}

	res := Deduce(fn, nil, []ast.Expr{expr(ast.Builtin("int"))})
	require.True(t, res.Complete())
	assert.Equal(t, "int", res.Args[0].String())
	assert.False(t, res.Args[1].IsNull())
	assert.Equal(t, "double", res.Args[1].String())
}

func TestDefaultReferringToEarlierParam(t *testing.T) {
	tp, T := typeParam(0, "T")
	up, _ := typeParam(1, "U")
	def := ast.TypeArgOf(T)
	up.Default = &def
	fn := &ast.FunctionDecl{
		TemplateParams: []*ast.TemplateParam{tp, up},
		Params:         []*ast.ParamDecl{{Type: ast.ReferenceTo(T)}},
	}
	res := Deduce(fn, nil, []ast.Expr{expr(ast.Builtin("short"))})
	assert.Equal(t, "short", res.Args[1].String())
}

func TestExplicitNeverOverwritten(t *testing.T) {
	tp, T := typeParam(0, "T")
	fn := &ast.FunctionDecl{
		TemplateParams: []*ast.TemplateParam{tp},
		Params:         []*ast.ParamDecl{{Type: T}},
	}
	explicit := []ast.TemplateArg{ast.TypeArgOf(ast.Builtin("double"))}
	res := Deduce(fn, explicit, []ast.Expr{expr(ast.Builtin("int"))})
	assert.Equal(t, "double", res.Args[0].String())
	assert.Empty(t, res.Conflicts)
}

func TestDependentSizedArray(t *testing.T) {
	tp, T := typeParam(0, "T")
	np, N := nonTypeParam(1, "N")
	fn := &ast.FunctionDecl{
		TemplateParams: []*ast.TemplateParam{tp, np},
		Params: []*ast.ParamDecl{{
			Type: ast.ReferenceTo(&ast.Type{Kind: ast.ArrayType, Elem: T, Len: -1, LenExpr: N}),
		}},
	}
	res := Deduce(fn, nil, []ast.Expr{expr(ast.ArrayOf(ast.Builtin("int"), 8))})
	require.True(t, res.Complete())
	assert.Equal(t, "int", res.Args[0].String())
	assert.Equal(t, "8", res.Args[1].String())
}

func TestSpecialization(t *testing.T) {
	tp, T := typeParam(0, "T")
	np, N := nonTypeParam(1, "N")
	param := &ast.Type{
		Kind: ast.SpecializationType,
		Name: "Vec",
		Args: []ast.TemplateArg{ast.TypeArgOf(T), {Kind: ast.ValueArg, Expr: N}},
	}
	fn := &ast.FunctionDecl{
		TemplateParams: []*ast.TemplateParam{tp, np},
		Params:         []*ast.ParamDecl{{Type: ast.ReferenceTo(param)}},
	}
	two := &ast.Literal{Kind: ast.IntLit, Text: "2", Value: 2}
	four := &ast.Literal{Kind: ast.IntLit, Text: "4", Value: 4}
	arg := &ast.Type{
		Kind: ast.SpecializationType,
		Name: "Vec",
		Args: []ast.TemplateArg{ast.TypeArgOf(ast.Builtin("float")), {Kind: ast.ValueArg, Expr: &ast.Binary{Op: "*", X: two, Y: four}}},
	}
	res := Deduce(fn, nil, []ast.Expr{expr(arg)})
	require.True(t, res.Complete())
	assert.Equal(t, "float", res.Args[0].String())
	assert.Equal(t, "8", res.Args[1].String())
}

func TestUnresolvedAndConflicts(t *testing.T) {
	tp, T := typeParam(0, "T")
	up, _ := typeParam(1, "U")
	fn := &ast.FunctionDecl{
		TemplateParams: []*ast.TemplateParam{tp, up},
		Params:         []*ast.ParamDecl{{Type: T}, {Type: T}},
	}
	res := Deduce(fn, nil, []ast.Expr{expr(ast.Builtin("int")), expr(ast.Builtin("float"))})
	assert.Equal(t, []int{1}, res.Unresolved)
	assert.Equal(t, []int{0}, res.Conflicts)
	assert.Equal(t, "int", res.Args[0].String())
}

func TestCallUsesPrimaryTemplate(t *testing.T) {
	tp, T := typeParam(0, "T")
	primary := &ast.FunctionDecl{
		Name:           "g",
		TemplateParams: []*ast.TemplateParam{tp},
		Params:         []*ast.ParamDecl{{Type: ast.PointerTo(T)}},
	}
	call := &ast.Call{
		Fun:  &ast.DeclRef{Name: "g", Decl: primary},
		Args: []ast.Expr{expr(ast.PointerTo(ast.Builtin("double")))},
	}
	res, ok := Call(call)
	require.True(t, ok)
	assert.Equal(t, "double", res.Args[0].String())

	_, ok = Call(&ast.Call{Fun: &ast.DeclRef{Name: "h", Decl: &ast.FunctionDecl{Name: "h"}}})
	assert.False(t, ok)
}

func TestDeduceByValueDecays(t *testing.T) {
	constInt := ast.Builtin("int")
	constInt.Const = true
	constPtr := ast.PointerTo(ast.Builtin("float"))
	constPtr.Const = true

	tests := []struct {
		name  string
		param func(T *ast.Type) *ast.Type
		arg   *ast.Type
		want  string
	}{
		{"array decays to pointer", func(T *ast.Type) *ast.Type { return T }, ast.ArrayOf(ast.Builtin("float"), 4), "float *"},
		{"top-level const dropped", func(T *ast.Type) *ast.Type { return T }, constInt, "int"},
		{"const pointer keeps pointee", func(T *ast.Type) *ast.Type { return T }, constPtr, "float *"},
		{"reference argument", func(T *ast.Type) *ast.Type { return T }, ast.ReferenceTo(constInt), "int"},
		{"const reference parameter keeps array", func(T *ast.Type) *ast.Type {
			c := *T
			c.Const = true
			return ast.ReferenceTo(&c)
		}, ast.ArrayOf(ast.Builtin("float"), 4), "float[4]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, T := typeParam(0, "T")
			fn := &ast.FunctionDecl{
				Name:           "k",
				TemplateParams: []*ast.TemplateParam{tp},
				Params:         []*ast.ParamDecl{{Name: "p", Type: tt.param(T)}},
			}
			res := Deduce(fn, nil, []ast.Expr{expr(tt.arg)})
			require.True(t, res.Complete())
			assert.Equal(t, tt.want, res.Args[0].String())
		})
	}
}
