package expr

import (
	"fmt"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// Stmt migrates every declaration and expression under s.
func (a *Analyzer) Stmt(s ast.Stmt) {
	switch x := s.(type) {
	case *ast.CompoundStmt:
		if x == nil {
			return
		}
		for _, c := range x.List {
			a.Stmt(c)
		}
	case *ast.DeclStmt:
		a.declStmt(x)
	case *ast.ExprStmt:
		if l, ok := ast.Unparen(x.X).(*ast.KernelLaunch); ok && a.Hooks.LaunchStmt != nil {
			if a.Hooks.LaunchStmt(x, l) {
				return
			}
		}
		if a.ExpandStmt(x) {
			return
		}
		a.Expr(x.X)
	case *ast.IfStmt:
		a.Expr(x.Cond)
		a.Stmt(x.Then)
		a.Stmt(x.Else)
	case *ast.ForStmt:
		a.Stmt(x.Init)
		a.Expr(x.Cond)
		a.Expr(x.Post)
		a.Stmt(x.Body)
	case *ast.WhileStmt:
		a.Expr(x.Cond)
		a.Stmt(x.Body)
	case *ast.DoStmt:
		a.Stmt(x.Body)
		a.Expr(x.Cond)
	case *ast.ReturnStmt:
		a.Expr(x.Result)
	case *ast.OtherStmt:
		for _, c := range x.Children {
			switch n := c.(type) {
			case ast.Stmt:
				a.Stmt(n)
			case ast.Expr:
				a.Expr(n)
			case *ast.VarDecl:
				a.VarDecl(n)
			}
		}
	}
}

func (a *Analyzer) declStmt(s *ast.DeclStmt) {
	if len(s.Decls) == 1 && a.InDevice() && s.Decls[0].Attrs.Has(ast.AttrShared) {
		v := s.Decls[0]
		if v.Attrs.Has(ast.AttrExtern) {
			elem := v.Type
			for elem != nil && elem.Canonical().Kind == ast.ArrayType {
				elem = elem.Canonical().Elem
			}
			a.Replace(s.Range(), fmt.Sprintf("auto %s = (%s *)%s;", v.Name, a.TypeString(elem), usage.LocalName))
			return
		}
		a.Replace(s.Range(), "")
		return
	}
	for _, v := range s.Decls {
		a.VarDecl(v)
	}
}

// VarDecl migrates a local or file-scope variable declaration: its spelled
// type, dim3 constructor arguments and initializer.
func (a *Analyzer) VarDecl(v *ast.VarDecl) {
	if v.TypeRng.IsValid() {
		if to, ok := a.MigrateDeclType(v, v.Type, a.R.SourceText(v.TypeRng)); ok {
			a.ReplaceCore(v.TypeRng, to)
		}
	}

	if v.Type.Is("dim3") && v.Init == nil {
		a.dim3Decl(v)
		return
	}
	a.Expr(v.Init)
	for _, arg := range v.CtorArgs {
		a.Expr(arg)
	}
}

// dim3Decl reverses direct-initialization arguments, dim3 g(x, y) becoming
// sycl::range<3> g(1, y, x). A default-constructed dim3 gets explicit ones.
func (a *Analyzer) dim3Decl(v *ast.VarDecl) {
	if len(v.CtorArgs) == 0 {
		reg := a.R.Resolve(v.NameRng)
		if reg.Valid {
			a.InsertAt(reg.Path, reg.CoreEnd(), "(1, 1, 1)")
		}
		return
	}
	first := a.R.Resolve(v.CtorArgs[0].Range())
	last := a.R.Resolve(v.CtorArgs[len(v.CtorArgs)-1].Range())
	if !first.Valid || !last.Valid || first.File != last.File {
		return
	}
	full := a.dim3(v.CtorArgs)
	inner := strings.TrimSuffix(strings.TrimPrefix(full, "sycl::range<3>("), ")")
	a.sub = append(a.sub, replaceSpan(first.Path, first.CoreStart(), last.CoreEnd(), inner))
}

func replaceSpan(path string, start, end uint32, text string) replace.Replacement {
	return replace.Replacement{FilePath: path, Offset: start, Length: end - start, Text: text, Origin: origin}
}
