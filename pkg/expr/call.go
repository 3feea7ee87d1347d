package expr

import (
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/rules"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// CallContext builds the rule context of c with migrated argument text.
func (a *Analyzer) CallContext(c *ast.Call) *rules.CallContext {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = a.Text(arg)
	}
	ctx := rules.NewCallContext(c, c.CalleeName(), args)
	ctx.InDevice = a.InDevice()
	ctx.USM = a.USM
	ctx.Diag = a.Diag
	ctx.ExprText = a.Text
	return ctx
}

// rewriter finds the library or registry rewriter for c, creating it at
// most once so rule-time diagnostics are not repeated.
func (a *Analyzer) rewriter(c *ast.Call) (rules.Rewriter, *rules.CallContext) {
	if e, ok := a.rws[c]; ok {
		return e.rw, e.ctx
	}
	var rw rules.Rewriter
	var ctx *rules.CallContext
	if a.deviceCallee(c) == nil {
		ctx = a.CallContext(c)
		if a.Hooks.Call != nil {
			rw = a.Hooks.Call(ctx)
		}
		if rw == nil && !isMemberCall(c) && a.Rules != nil {
			rw = a.Rules.Create(ctx)
		}
	}
	a.rws[c] = ruleEntry{rw: rw, ctx: ctx}
	return rw, ctx
}

func isMemberCall(c *ast.Call) bool {
	_, ok := ast.Unparen(c.Fun).(*ast.Member)
	return ok
}

// deviceCallee returns the usage record of a user device function called by
// c, or nil.
func (a *Analyzer) deviceCallee(c *ast.Call) *usage.DeviceFunctionInfo {
	fd := c.Callee()
	if fd == nil || !fd.Root().IsDevice() || a.Graph == nil {
		return nil
	}
	return a.Graph.Lookup(a.FuncKey(fd))
}

func (a *Analyzer) call(c *ast.Call) (string, bool) {
	if callee := a.deviceCallee(c); callee != nil {
		return a.deviceCall(c, callee)
	}
	if rw, _ := a.rewriter(c); rw != nil {
		if exp, ok := rw.(rules.Expander); ok {
			e, ok := exp.Expand()
			if ok {
				a.InsertBeforeStmt(c, e.Stmts)
				if e.Value == "" {
					return "0", true
				}
				return e.Value, true
			}
		} else if text, ok := rw.Rewrite(); ok {
			return text, true
		}
	}
	return a.compose(c)
}

// deviceCall appends the callee's injected arguments, spelling out default
// arguments the call relied on so positions still line up.
func (a *Analyzer) deviceCall(c *ast.Call, callee *usage.DeviceFunctionInfo) (string, bool) {
	if a.info == nil {
		return a.compose(c)
	}
	extra := a.info.Vars.CallArgs(callee.Vars)
	if len(extra) == 0 {
		return a.compose(c)
	}
	var fill []string
	if fd := c.Callee(); fd != nil {
		params := fd.Root().Params
		for i := len(c.Args); i < len(params); i++ {
			if params[i].Default == nil {
				break
			}
			fill = append(fill, a.R.SourceText(params[i].Default.Range()))
		}
	}
	all := append(fill, extra...)
	text := strings.Join(all, ", ")
	if len(c.Args) > 0 {
		text = ", " + text
	}

	argsReg := a.R.Resolve(c.ArgsRng)
	if !argsReg.Valid || argsReg.CoreEnd() == argsReg.CoreStart() {
		return a.compose(c)
	}
	at := argsReg
	at.Prefix, at.Postfix = "", ""
	at.Offset = argsReg.CoreEnd() - 1
	at.Length = 0
	return a.compose(c, pending{reg: at, text: text, insert: true})
}

// ExpandStmt rewrites a statement whose whole expression is a call with a
// multi-statement rule. It reports whether the statement was handled.
func (a *Analyzer) ExpandStmt(s *ast.ExprStmt) bool {
	c, ok := ast.Unparen(s.X).(*ast.Call)
	if !ok {
		return false
	}
	rw, _ := a.rewriter(c)
	exp, ok := rw.(rules.Expander)
	if !ok {
		return false
	}
	e, ok := exp.Expand()
	if !ok {
		return false
	}
	indent := a.R.Indent(s.Range())
	a.Replace(s.Range(), strings.Join(e.Stmts, "\n"+indent))
	a.memo[s.X] = result{}
	return true
}
