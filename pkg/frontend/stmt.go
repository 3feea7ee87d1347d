package frontend

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/cuda2sycl/pkg/ast"
)

var stmtTypes = map[string]bool{
	"compound_statement":   true,
	"expression_statement": true,
	"declaration":          true,
	"if_statement":         true,
	"for_statement":        true,
	"for_range_loop":       true,
	"while_statement":      true,
	"do_statement":         true,
	"return_statement":     true,
	"break_statement":      true,
	"continue_statement":   true,
	"goto_statement":       true,
	"switch_statement":     true,
	"case_statement":       true,
	"labeled_statement":    true,
	"try_statement":        true,
	"throw_statement":      true,
}

// skipped are named nodes that carry no expression or statement.
var skipped = map[string]bool{
	"comment":              true,
	"primitive_type":       true,
	"type_identifier":      true,
	"type_descriptor":      true,
	"statement_identifier": true,
	"field_identifier":     true,
	"type_qualifier":       true,
}

func (b *builder) compound(n *sitter.Node) *ast.CompoundStmt {
	b.push()
	defer b.pop()
	s := &ast.CompoundStmt{}
	s.Rng = b.rng(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if st := b.stmt(n.NamedChild(i)); st != nil {
			s.List = append(s.List, st)
		}
	}
	return s
}

func (b *builder) stmt(n *sitter.Node) ast.Stmt {
	if n == nil {
		return nil
	}
	base := ast.StmtBase{Base: ast.Base{Rng: b.rng(n)}}
	switch n.Type() {
	case "comment":
		return nil
	case "compound_statement":
		return b.compound(n)
	case "declaration":
		return b.declStmt(n)
	case "expression_statement":
		s := &ast.ExprStmt{StmtBase: base}
		if n.NamedChildCount() == 0 {
			return s
		}
		s.X = b.expr(n.NamedChild(0))
		switch x := ast.Unparen(s.X).(type) {
		case *ast.Call:
			x.ResultUsed = false
		case *ast.KernelLaunch:
			x.Call.ResultUsed = false
		}
		return s
	case "if_statement":
		s := &ast.IfStmt{StmtBase: base}
		s.Cond = b.condition(n.ChildByFieldName("condition"))
		s.Then = b.stmt(n.ChildByFieldName("consequence"))
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			if alt.Type() == "else_clause" {
				alt = alt.NamedChild(0)
			}
			s.Else = b.stmt(alt)
		}
		return s
	case "for_statement":
		b.push()
		defer b.pop()
		s := &ast.ForStmt{StmtBase: base}
		if init := n.ChildByFieldName("initializer"); init != nil {
			s.Init = b.forInit(init)
		} else {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if c := n.NamedChild(i); c.Type() == "declaration" {
					s.Init = b.declStmt(c)
					break
				}
			}
		}
		if c := n.ChildByFieldName("condition"); c != nil {
			s.Cond = b.expr(c)
		}
		if u := n.ChildByFieldName("update"); u != nil {
			s.Post = b.expr(u)
		}
		s.Body = b.stmt(n.ChildByFieldName("body"))
		return s
	case "while_statement":
		return &ast.WhileStmt{
			StmtBase: base,
			Cond:     b.condition(n.ChildByFieldName("condition")),
			Body:     b.stmt(n.ChildByFieldName("body")),
		}
	case "do_statement":
		return &ast.DoStmt{
			StmtBase: base,
			Body:     b.stmt(n.ChildByFieldName("body")),
			Cond:     b.condition(n.ChildByFieldName("condition")),
		}
	case "return_statement":
		s := &ast.ReturnStmt{StmtBase: base}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "comment" {
				s.Result = b.expr(c)
				break
			}
		}
		return s
	}
	return &ast.OtherStmt{StmtBase: base, Children: b.children(n)}
}

// declStmt converts a block-scope declaration. Local function prototypes
// are dropped.
func (b *builder) declStmt(n *sitter.Node) *ast.DeclStmt {
	s := &ast.DeclStmt{}
	for _, d := range b.declaration(n, false, b.sc) {
		if v, ok := d.(*ast.VarDecl); ok {
			s.Decls = append(s.Decls, v)
		}
	}
	s.Rng = b.rng(n)
	if len(s.Decls) > 0 {
		s.Rng = s.Decls[0].Rng
	}
	return s
}

func (b *builder) forInit(n *sitter.Node) ast.Stmt {
	if n.Type() == "declaration" {
		return b.declStmt(n)
	}
	return &ast.ExprStmt{StmtBase: ast.StmtBase{Base: ast.Base{Rng: b.rng(n)}}, X: b.expr(n)}
}

// condition unwraps a condition clause or a parenthesized condition.
func (b *builder) condition(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "condition_clause":
		if v := n.ChildByFieldName("value"); v != nil {
			return b.expr(v)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "comment" && c.Type() != "declaration" {
				return b.expr(c)
			}
		}
		return nil
	case "parenthesized_expression":
		if n.NamedChildCount() > 0 {
			return b.expr(n.NamedChild(0))
		}
	}
	return b.expr(n)
}

// children converts the named children of a node the core only descends
// into.
func (b *builder) children(n *sitter.Node) []ast.Node {
	var out []ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch {
		case skipped[c.Type()]:
		case stmtTypes[c.Type()]:
			if s := b.stmt(c); s != nil {
				out = append(out, s)
			}
		default:
			out = append(out, b.expr(c))
		}
	}
	return out
}
