// Package ast is the resolved syntax tree the migration core consumes. A
// front end builds it; every node carries the source.Range it was parsed from.
package ast

import (
	"github.com/l3aro/cuda2sycl/pkg/source"
)

// Node is any syntax tree node.
type Node interface {
	Range() source.Range
}

// Expr is an expression node.
type Expr interface {
	Node
	Type() *Type
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Decl is a declaration node.
type Decl interface {
	Node
	declNode()
}

// Base carries the source range of a node.
type Base struct {
	Rng source.Range
}

func (b *Base) Range() source.Range { return b.Rng }

// ExprBase carries the range and the front end's computed type.
type ExprBase struct {
	Base
	Typ *Type
}

func (e *ExprBase) Type() *Type { return e.Typ }
func (*ExprBase) exprNode()     {}

// Attr is a set of CUDA declaration attributes.
type Attr uint16

const (
	AttrGlobal Attr = 1 << iota
	AttrDevice
	AttrHost
	AttrShared
	AttrConstant
	AttrManaged
	AttrForceInline
	AttrExtern
	AttrStatic
)

// Has reports whether all bits of x are set.
func (a Attr) Has(x Attr) bool { return a&x == x }

// TranslationUnit is one parsed main file together with the headers it pulled in.
type TranslationUnit struct {
	File     source.FileID
	Path     string
	Decls    []Decl
	Includes []*Include
}

// Include is an #include directive.
type Include struct {
	Base
	Path    string
	PathRng source.Range // the spelled "<...>" or "..." including delimiters
	Angled  bool
}

// FunctionDecl is a function declaration or definition.
type FunctionDecl struct {
	Base
	Name    string
	NameRng source.Range
	Attrs   Attr
	// AttrRanges are the spelled CUDA qualifier tokens, in source order.
	AttrRanges []source.Range
	Return     *Type
	ReturnRng  source.Range
	Params     []*ParamDecl
	// ParamsRng spans the parameter list including both parentheses.
	ParamsRng      source.Range
	TemplateParams []*TemplateParam
	// TemplateArgs are set on explicit specializations and instantiations.
	TemplateArgs []TemplateArg
	Body         *CompoundStmt
	// Canonical is the first declaration of the same function.
	Canonical *FunctionDecl
	// Primary links a specialization to its primary template.
	Primary *FunctionDecl
}

func (*FunctionDecl) declNode() {}

// IsDevice reports whether the function runs on the device.
func (f *FunctionDecl) IsDevice() bool {
	return f.Attrs&(AttrGlobal|AttrDevice) != 0
}

// IsKernel reports whether the function is a __global__ kernel.
func (f *FunctionDecl) IsKernel() bool { return f.Attrs.Has(AttrGlobal) }

// IsTemplate reports whether f declares template parameters.
func (f *FunctionDecl) IsTemplate() bool { return len(f.TemplateParams) > 0 }

// Root follows Primary and Canonical links to the declaration that identifies
// the logical function.
func (f *FunctionDecl) Root() *FunctionDecl {
	for f != nil {
		switch {
		case f.Primary != nil && f.Primary != f:
			f = f.Primary
		case f.Canonical != nil && f.Canonical != f:
			f = f.Canonical
		default:
			return f
		}
	}
	return nil
}

// NonDefaultParams counts parameters without a default argument.
func (f *FunctionDecl) NonDefaultParams() int {
	n := 0
	for _, p := range f.Params {
		if p.Default == nil {
			n++
		}
	}
	return n
}

// ParamDecl is a function parameter.
type ParamDecl struct {
	Base
	Name    string
	NameRng source.Range
	Type    *Type
	TypeRng source.Range
	Default Expr
	Index   int
}

func (*ParamDecl) declNode() {}

// TemplateParamKind distinguishes type and non-type template parameters.
type TemplateParamKind uint8

const (
	TypeParam TemplateParamKind = iota
	NonTypeParam
)

// TemplateParam is one entry in a template parameter list.
type TemplateParam struct {
	Base
	Index   int
	Name    string
	Kind    TemplateParamKind
	Type    *Type // declared type of a non-type parameter
	Default *TemplateArg
}

func (*TemplateParam) declNode() {}

// VarDecl declares a variable at any scope.
type VarDecl struct {
	Base
	Name       string
	NameRng    source.Range
	Type       *Type
	TypeRng    source.Range
	Attrs      Attr
	AttrRanges []source.Range
	Init       Expr
	// CtorArgs holds direct-initialization arguments, e.g. dim3 g(2, 3).
	CtorArgs []Expr
	HasCtor  bool
	Global   bool
}

func (*VarDecl) declNode() {}

// IsDeviceVar reports whether the variable lives in device, constant or managed memory.
func (v *VarDecl) IsDeviceVar() bool {
	return v.Attrs&(AttrDevice|AttrConstant|AttrManaged) != 0
}

// RecordDecl is a struct or class definition.
type RecordDecl struct {
	Base
	Name           string
	Fields         []*FieldDecl
	StandardLayout bool
}

func (*RecordDecl) declNode() {}

// FieldDecl is a data member.
type FieldDecl struct {
	Base
	Name string
	Type *Type
}

func (*FieldDecl) declNode() {}

// EnumConstant is an enumerator.
type EnumConstant struct {
	Base
	Name  string
	Value int64
}

func (*EnumConstant) declNode() {}

// OtherDecl is any declaration the core does not inspect.
type OtherDecl struct {
	Base
}

func (*OtherDecl) declNode() {}

// Statements

type StmtBase struct {
	Base
}

func (*StmtBase) stmtNode() {}

type CompoundStmt struct {
	StmtBase
	List []Stmt
}

type DeclStmt struct {
	StmtBase
	Decls []*VarDecl
}

type ExprStmt struct {
	StmtBase
	X Expr
}

type IfStmt struct {
	StmtBase
	Cond Expr
	Then Stmt
	Else Stmt
}

type ForStmt struct {
	StmtBase
	Init Stmt
	Cond Expr
	Post Expr
	Body Stmt
}

type WhileStmt struct {
	StmtBase
	Cond Expr
	Body Stmt
}

type DoStmt struct {
	StmtBase
	Body Stmt
	Cond Expr
}

type ReturnStmt struct {
	StmtBase
	Result Expr
}

// OtherStmt is any statement the core only descends into.
type OtherStmt struct {
	StmtBase
	Children []Node
}

// Expressions

// DeclRef names a declaration.
type DeclRef struct {
	ExprBase
	Name string
	Decl Decl
	// TemplateArgs are explicitly written arguments, e.g. f<float>.
	TemplateArgs []TemplateArg
}

// Member is x.name or x->name.
type Member struct {
	ExprBase
	X       Expr
	Name    string
	NameRng source.Range
	Arrow   bool
}

// Call is a function call.
type Call struct {
	ExprBase
	Fun  Expr
	Args []Expr
	// ArgsRng spans the argument list including parentheses.
	ArgsRng source.Range
	// ResultUsed is set when the call's value is consumed.
	ResultUsed bool
}

// KernelLaunch is kernel<<<config>>>(args).
type KernelLaunch struct {
	ExprBase
	Call   *Call
	Config []Expr
}

// CastKind classifies explicit and implicit conversions.
type CastKind uint8

const (
	CStyleCast CastKind = iota
	FunctionalCast
	StaticCast
	ReinterpretCast
	ConstCast
	ImplicitCast
)

type Cast struct {
	ExprBase
	Kind    CastKind
	To      *Type
	TypeRng source.Range
	X       Expr
}

type Paren struct {
	ExprBase
	X Expr
}

type Unary struct {
	ExprBase
	Op      string
	X       Expr
	Postfix bool
}

type Binary struct {
	ExprBase
	Op string
	X  Expr
	Y  Expr
}

type Conditional struct {
	ExprBase
	Cond Expr
	Then Expr
	Else Expr
}

// LitKind classifies literals.
type LitKind uint8

const (
	IntLit LitKind = iota
	FloatLit
	StringLit
	CharLit
	BoolLit
	NullLit
)

type Literal struct {
	ExprBase
	Kind  LitKind
	Text  string
	Value int64
}

// SizeOf is sizeof/alignof applied to a type or an expression.
type SizeOf struct {
	ExprBase
	Op      string
	Arg     *Type
	TypeRng source.Range
	X       Expr
}

// Construct is T(args) or T{args} for class types.
type Construct struct {
	ExprBase
	TypeRng source.Range
	Args    []Expr
	Braced  bool
}

type Index struct {
	ExprBase
	X   Expr
	Idx Expr
}

type InitList struct {
	ExprBase
	Elems []Expr
}

// This is the implicit object pointer.
type This struct {
	ExprBase
}

// Unknown is an expression the front end could not classify.
type Unknown struct {
	ExprBase
	Children []Node
}

// CalleeName returns the spelled name of the called function, or "".
func (c *Call) CalleeName() string {
	switch f := Unparen(c.Fun).(type) {
	case *DeclRef:
		return f.Name
	case *Member:
		return f.Name
	}
	return ""
}

// Callee returns the called function declaration when it is known.
func (c *Call) Callee() *FunctionDecl {
	if r, ok := Unparen(c.Fun).(*DeclRef); ok {
		if fd, ok := r.Decl.(*FunctionDecl); ok {
			return fd
		}
	}
	return nil
}

// ExplicitTemplateArgs returns template arguments written at the call.
func (c *Call) ExplicitTemplateArgs() []TemplateArg {
	if r, ok := Unparen(c.Fun).(*DeclRef); ok {
		return r.TemplateArgs
	}
	return nil
}

// Unparen strips parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}
		e = p.X
	}
}

// StripCasts strips parentheses and casts of any kind.
func StripCasts(e Expr) Expr {
	for {
		switch x := e.(type) {
		case *Paren:
			e = x.X
		case *Cast:
			e = x.X
		default:
			return e
		}
	}
}

// RefDecl returns the declaration referenced by e after stripping parentheses
// and implicit casts.
func RefDecl(e Expr) Decl {
	for {
		switch x := e.(type) {
		case *Paren:
			e = x.X
		case *Cast:
			if x.Kind != ImplicitCast {
				return nil
			}
			e = x.X
		case *DeclRef:
			return x.Decl
		default:
			return nil
		}
	}
}
