// Package deduce infers the template arguments of a call to a function
// template from its explicit arguments, its call arguments and declared
// defaults.
package deduce

import (
	"github.com/l3aro/cuda2sycl/pkg/ast"
)

// Result holds one slot per template parameter.
type Result struct {
	Args []ast.TemplateArg
	// Unresolved lists parameter indices left empty after defaults.
	Unresolved []int
	// Conflicts lists parameter indices two call arguments disagreed on.
	// The first binding is kept.
	Conflicts []int
}

// Complete reports whether every slot is filled.
func (r Result) Complete() bool { return len(r.Unresolved) == 0 }

type deducer struct {
	params    []*ast.TemplateParam
	args      []ast.TemplateArg
	conflicts map[int]bool
}

// Call deduces template arguments for a call expression. It returns false
// when the callee is not a known function template.
func Call(call *ast.Call) (Result, bool) {
	fn := call.Callee()
	if fn == nil {
		return Result{}, false
	}
	if p := fn.Root(); p != nil && p.IsTemplate() {
		fn = p
	}
	if !fn.IsTemplate() {
		return Result{}, false
	}
	return Deduce(fn, call.ExplicitTemplateArgs(), call.Args), true
}

// Deduce fills fn's template parameter slots. Explicit arguments are
// written first and never replaced; deduction only fills empty slots;
// declared defaults fill whatever is still empty.
func Deduce(fn *ast.FunctionDecl, explicit []ast.TemplateArg, args []ast.Expr) Result {
	d := &deducer{
		params:    fn.TemplateParams,
		args:      make([]ast.TemplateArg, len(fn.TemplateParams)),
		conflicts: map[int]bool{},
	}
	for i, a := range explicit {
		if i < len(d.args) {
			d.args[i] = a
		}
	}
	explicitN := len(explicit)

	for i, p := range fn.Params {
		if i >= len(args) || args[i] == nil {
			break
		}
		at := args[i].Type()
		if p.Type != nil && !p.Type.IsReference() {
			at = decay(at)
		}
		d.matchType(p.Type, at, explicitN)
	}

	for i, p := range d.params {
		if !d.args[i].IsNull() || p.Default == nil {
			continue
		}
		d.args[i] = d.substituteDefault(*p.Default)
	}

	res := Result{Args: d.args}
	for i, a := range d.args {
		if a.IsNull() {
			res.Unresolved = append(res.Unresolved, i)
		}
		if d.conflicts[i] {
			res.Conflicts = append(res.Conflicts, i)
		}
	}
	return res
}

func (d *deducer) bind(idx int, arg ast.TemplateArg, explicitN int) {
	if idx < 0 || idx >= len(d.args) || idx < explicitN {
		return
	}
	cur := d.args[idx]
	if cur.IsNull() {
		d.args[idx] = arg
		return
	}
	if !sameArg(cur, arg) {
		d.conflicts[idx] = true
	}
}

// matchType walks param and arg in lock step, binding template parameters
// where param refers to one.
func (d *deducer) matchType(param, arg *ast.Type, explicitN int) {
	if param == nil || arg == nil {
		return
	}
	if param.Kind == ast.ReferenceType {
		param = param.Elem
		if arg.IsReference() {
			arg = arg.Canonical().Elem
		}
		d.matchType(param, arg, explicitN)
		return
	}
	if arg.IsReference() {
		arg = arg.Canonical().Elem
	}

	switch param.Kind {
	case ast.TemplateParamType:
		bound := *arg
		bound.Const = bound.Const && !param.Const
		d.bind(param.Index, ast.TypeArgOf(&bound), explicitN)

	case ast.PointerType:
		c := arg.Canonical()
		if c.Kind == ast.PointerType || c.Kind == ast.ArrayType {
			d.matchType(param.Elem, c.Elem, explicitN)
		}

	case ast.ArrayType:
		c := arg.Canonical()
		if c.Kind != ast.ArrayType {
			return
		}
		if idx, ok := d.paramRef(param.LenExpr); ok && c.Len >= 0 {
			d.bind(idx, ast.ValueArgOf(c.Len), explicitN)
		}
		d.matchType(param.Elem, c.Elem, explicitN)

	case ast.SpecializationType:
		c := arg.Canonical()
		if c.Kind != ast.SpecializationType || c.Name != param.Name {
			return
		}
		for i, pa := range param.Args {
			if i >= len(c.Args) {
				break
			}
			aa := c.Args[i]
			switch pa.Kind {
			case ast.TypeArg:
				if aa.Kind == ast.TypeArg {
					d.matchType(pa.Type, aa.Type, explicitN)
				}
			case ast.ValueArg:
				idx, ok := d.paramRef(pa.Expr)
				if !ok {
					continue
				}
				if v, known := valueOf(aa); known {
					d.bind(idx, ast.ValueArgOf(v), explicitN)
				} else if aa.Kind == ast.ValueArg {
					d.bind(idx, aa, explicitN)
				}
			}
		}
	}
}

// decay adjusts the type of an argument passed by value: a reference is
// dropped, an array becomes a pointer to its element and top-level const
// goes away. Function types are not modeled.
func decay(t *ast.Type) *ast.Type {
	if t == nil {
		return nil
	}
	if t.IsReference() {
		t = t.Canonical().Elem
	}
	if c := t.Canonical(); c != nil && c.Kind == ast.ArrayType {
		return ast.PointerTo(c.Elem)
	}
	if t.Const {
		u := *t
		u.Const = false
		return &u
	}
	return t
}

// paramRef reports whether e names a non-type template parameter of the
// function being deduced.
func (d *deducer) paramRef(e ast.Expr) (int, bool) {
	if e == nil {
		return 0, false
	}
	tp, ok := ast.RefDecl(e).(*ast.TemplateParam)
	if !ok || tp.Kind != ast.NonTypeParam {
		return 0, false
	}
	for _, p := range d.params {
		if p == tp {
			return tp.Index, true
		}
	}
	return 0, false
}

// substituteDefault resolves a default that refers to earlier parameters,
// e.g. template <typename T, typename U = T>.
func (d *deducer) substituteDefault(def ast.TemplateArg) ast.TemplateArg {
	switch def.Kind {
	case ast.TypeArg:
		if def.Type != nil && def.Type.Kind == ast.TemplateParamType {
			if i := def.Type.Index; i >= 0 && i < len(d.args) && !d.args[i].IsNull() {
				return d.args[i]
			}
			return ast.TemplateArg{}
		}
	case ast.ValueArg:
		if idx, ok := d.paramRef(def.Expr); ok {
			if !d.args[idx].IsNull() {
				return d.args[idx]
			}
			return ast.TemplateArg{}
		}
		if !def.Known && def.Expr != nil {
			if v, ok := ast.IntValue(def.Expr); ok {
				def.Value, def.Known = v, true
			}
		}
	}
	return def
}

func valueOf(a ast.TemplateArg) (int64, bool) {
	if a.Kind != ast.ValueArg {
		return 0, false
	}
	if a.Known {
		return a.Value, true
	}
	if a.Expr != nil {
		return ast.IntValue(a.Expr)
	}
	return 0, false
}

func sameArg(a, b ast.TemplateArg) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ast.TypeArg:
		return a.String() == b.String()
	case ast.ValueArg:
		av, aok := valueOf(a)
		bv, bok := valueOf(b)
		if aok && bok {
			return av == bv
		}
		return a.Text == b.Text
	}
	return true
}
