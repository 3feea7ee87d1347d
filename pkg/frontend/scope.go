package frontend

import (
	"github.com/l3aro/cuda2sycl/pkg/ast"
)

// scope is one level of name lookup. Values and types live in separate
// tables, as C++ lets a struct and a variable share a name.
type scope struct {
	parent *scope
	values map[string]ast.Decl
	types  map[string]*ast.Type
	// funcs keeps every overload of a name in declaration order.
	funcs map[string][]*ast.FunctionDecl
}

func newScope(parent *scope) *scope {
	return &scope{
		parent: parent,
		values: make(map[string]ast.Decl),
		types:  make(map[string]*ast.Type),
		funcs:  make(map[string][]*ast.FunctionDecl),
	}
}

func (s *scope) value(name string) ast.Decl {
	for ; s != nil; s = s.parent {
		if d, ok := s.values[name]; ok {
			return d
		}
	}
	return nil
}

func (s *scope) typ(name string) *ast.Type {
	for ; s != nil; s = s.parent {
		if t, ok := s.types[name]; ok {
			return t
		}
	}
	return nil
}

func (s *scope) overloads(name string) []*ast.FunctionDecl {
	for ; s != nil; s = s.parent {
		if fs, ok := s.funcs[name]; ok {
			return fs
		}
	}
	return nil
}

// declare binds a value name. Functions are also kept as overloads.
func (s *scope) declare(name string, d ast.Decl) {
	if name == "" {
		return
	}
	if fd, ok := d.(*ast.FunctionDecl); ok {
		s.funcs[name] = append(s.funcs[name], fd)
		if _, ok := s.values[name]; ok {
			return
		}
	}
	s.values[name] = d
}

func (s *scope) declareType(name string, t *ast.Type) {
	if name != "" {
		s.types[name] = t
	}
}

// importFrom copies the file-scope names of another unit into s.
func (s *scope) importFrom(o *scope) {
	for k, v := range o.values {
		if _, ok := s.values[k]; !ok {
			s.values[k] = v
		}
	}
	for k, v := range o.types {
		if _, ok := s.types[k]; !ok {
			s.types[k] = v
		}
	}
	for k, v := range o.funcs {
		s.funcs[k] = append(s.funcs[k], v...)
	}
}

// resolve picks the overload of name callable with n arguments. Any
// redeclaration resolves to the same logical function through Root.
func resolve(cands []*ast.FunctionDecl, n int) *ast.FunctionDecl {
	var fallback *ast.FunctionDecl
	for _, fd := range cands {
		if n >= fd.NonDefaultParams() && n <= len(fd.Params) {
			if fd.Body != nil {
				return fd
			}
			if fallback == nil {
				fallback = fd
			}
		}
	}
	if fallback == nil && len(cands) > 0 {
		fallback = cands[0]
	}
	return fallback
}
