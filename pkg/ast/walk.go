package ast

import "reflect"

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(xs ...Node) {
		for _, x := range xs {
			if !isNil(x) {
				out = append(out, x)
			}
		}
	}
	switch n := n.(type) {
	case *FunctionDecl:
		for _, p := range n.Params {
			add(p)
		}
		if n.Body != nil {
			add(n.Body)
		}
	case *ParamDecl:
		if n.Default != nil {
			add(n.Default)
		}
	case *VarDecl:
		if n.Init != nil {
			add(n.Init)
		}
		for _, a := range n.CtorArgs {
			add(a)
		}
	case *CompoundStmt:
		for _, s := range n.List {
			add(s)
		}
	case *DeclStmt:
		for _, d := range n.Decls {
			add(d)
		}
	case *ExprStmt:
		add(n.X)
	case *IfStmt:
		add(n.Cond, n.Then, n.Else)
	case *ForStmt:
		add(n.Init, n.Cond, n.Post, n.Body)
	case *WhileStmt:
		add(n.Cond, n.Body)
	case *DoStmt:
		add(n.Body, n.Cond)
	case *ReturnStmt:
		add(n.Result)
	case *OtherStmt:
		add(n.Children...)
	case *Member:
		add(n.X)
	case *Call:
		add(n.Fun)
		for _, a := range n.Args {
			add(a)
		}
	case *KernelLaunch:
		add(n.Call.Fun)
		for _, c := range n.Config {
			add(c)
		}
		for _, a := range n.Call.Args {
			add(a)
		}
	case *Cast:
		add(n.X)
	case *Paren:
		add(n.X)
	case *Unary:
		add(n.X)
	case *Binary:
		add(n.X, n.Y)
	case *Conditional:
		add(n.Cond, n.Then, n.Else)
	case *SizeOf:
		add(n.X)
	case *Construct:
		for _, a := range n.Args {
			add(a)
		}
	case *Index:
		add(n.X, n.Idx)
	case *InitList:
		for _, e := range n.Elems {
			add(e)
		}
	case *Unknown:
		add(n.Children...)
	}
	return out
}

// isNil catches typed nil pointers stored in an interface, e.g. a nil *IfStmt
// assigned to a Stmt field.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// Inspect traverses the tree rooted at n in depth-first order. If f returns
// false the children of the current node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if isNil(n) || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// ParentMap answers parent queries for one tree.
type ParentMap map[Node]Node

// NewParentMap indexes every node reachable from roots.
func NewParentMap(roots ...Node) ParentMap {
	pm := make(ParentMap)
	for _, r := range roots {
		pm.index(r)
	}
	return pm
}

func (pm ParentMap) index(n Node) {
	for _, c := range Children(n) {
		pm[c] = n
		pm.index(c)
	}
}

// Parent returns the parent of n, or nil for roots.
func (pm ParentMap) Parent(n Node) Node {
	return pm[n]
}

// EnclosingStmt returns the closest statement that contains n, skipping n itself.
func (pm ParentMap) EnclosingStmt(n Node) Stmt {
	for p := pm[n]; p != nil; p = pm[p] {
		if s, ok := p.(Stmt); ok {
			return s
		}
	}
	return nil
}

// EnclosingFunc returns the function whose body contains n.
func (pm ParentMap) EnclosingFunc(n Node) *FunctionDecl {
	for p := pm[n]; p != nil; p = pm[p] {
		if f, ok := p.(*FunctionDecl); ok {
			return f
		}
	}
	return nil
}
