package expr

import (
	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/rules"
)

// OnCall chains f ahead of the installed call hook.
func (h *Hooks) OnCall(f func(ctx *rules.CallContext) rules.Rewriter) {
	prev := h.Call
	h.Call = func(ctx *rules.CallContext) rules.Rewriter {
		if rw := f(ctx); rw != nil {
			return rw
		}
		if prev != nil {
			return prev(ctx)
		}
		return nil
	}
}

// OnDeclType chains f ahead of the installed declaration type hook.
func (h *Hooks) OnDeclType(f func(d ast.Decl, t *ast.Type) (string, bool)) {
	prev := h.DeclType
	h.DeclType = func(d ast.Decl, t *ast.Type) (string, bool) {
		if s, ok := f(d, t); ok {
			return s, true
		}
		if prev != nil {
			return prev(d, t)
		}
		return "", false
	}
}

// OnTypeName chains f ahead of the installed type name hook.
func (h *Hooks) OnTypeName(f func(name string) (string, bool)) {
	prev := h.TypeName
	h.TypeName = func(name string) (string, bool) {
		if s, ok := f(name); ok {
			return s, true
		}
		if prev != nil {
			return prev(name)
		}
		return "", false
	}
}

// OnObserveCall adds f to the discovery-time call observers.
func (h *Hooks) OnObserveCall(f func(c *ast.Call, fn *ast.FunctionDecl)) {
	prev := h.ObserveCall
	h.ObserveCall = func(c *ast.Call, fn *ast.FunctionDecl) {
		if prev != nil {
			prev(c, fn)
		}
		f(c, fn)
	}
}
