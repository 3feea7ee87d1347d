// Package rules holds the call rewriter registry: named factories that turn a
// CUDA call into target text, the built-in rule set, the output-template
// interpreter and the loader for user rule files.
package rules

import (
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
)

// Default accessor expressions substituted for $queue, $context and $device.
const (
	DefaultQueue   = "dpct::get_in_order_queue()"
	DefaultContext = "dpct::get_default_context()"
	DefaultDevice  = "dpct::get_current_device()"
)

// CallContext is everything a rewriter may look at for one call.
type CallContext struct {
	Call *ast.Call
	// Name is the resolved callee name used for lookup.
	Name string
	// Args holds the migrated text of every argument.
	Args []string
	// ResultUsed is set when the call's value is consumed.
	ResultUsed bool
	// InDevice is set inside device functions.
	InDevice bool
	// USM selects the unified shared memory model.
	USM bool

	Queue   string
	Context string
	Device  string

	Diag diag.Emitter
	// ExprText returns the migrated text of any sub-expression. When nil,
	// only whole arguments are available.
	ExprText func(ast.Expr) string
}

// NewCallContext fills the accessor defaults.
func NewCallContext(call *ast.Call, name string, args []string) *CallContext {
	return &CallContext{
		Call:       call,
		Name:       name,
		Args:       args,
		ResultUsed: call != nil && call.ResultUsed,
		Queue:      DefaultQueue,
		Context:    DefaultContext,
		Device:     DefaultDevice,
	}
}

// NumArgs returns the number of call arguments.
func (c *CallContext) NumArgs() int { return len(c.Args) }

// Arg returns the migrated text of argument i, or "".
func (c *CallContext) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// ArgExpr returns the expression of argument i, or nil.
func (c *CallContext) ArgExpr(i int) ast.Expr {
	if c.Call == nil || i < 0 || i >= len(c.Call.Args) {
		return nil
	}
	return c.Call.Args[i]
}

// ArgType returns the front end's type of argument i, or nil.
func (c *CallContext) ArgType(i int) *ast.Type {
	if e := c.ArgExpr(i); e != nil {
		return e.Type()
	}
	return nil
}

// TemplateArgs returns the explicitly written template arguments.
func (c *CallContext) TemplateArgs() []ast.TemplateArg {
	if c.Call == nil {
		return nil
	}
	return c.Call.ExplicitTemplateArgs()
}

// Emit raises a diagnostic at the call.
func (c *CallContext) Emit(code diag.Code, args ...string) {
	if c.Call == nil {
		return
	}
	c.Diag.Emit(c.Call.Range(), code, args...)
}

// JoinArgs joins the migrated arguments from index from onward.
func (c *CallContext) JoinArgs(from int) string {
	if from >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[from:], ", ")
}

// IsDefaultStream reports whether argument i is absent or names the legacy
// default stream.
func (c *CallContext) IsDefaultStream(i int) bool {
	switch strings.TrimSpace(c.Arg(i)) {
	case "", "0", "NULL", "nullptr", "cudaStreamDefault", "cudaStreamLegacy", "cudaStreamPerThread":
		return true
	}
	return false
}

// QueueFor returns a queue object expression for the stream in argument i.
func (c *CallContext) QueueFor(i int) string {
	if c.IsDefaultStream(i) {
		return c.Queue
	}
	return "*" + paren(strings.TrimSpace(c.Arg(i)))
}

// QueueMember returns the member-access prefix for calling a queue method
// on the stream in argument i, e.g. "s->" or "dpct::get_in_order_queue().".
func (c *CallContext) QueueMember(i int) string {
	if c.IsDefaultStream(i) {
		return c.Queue + "."
	}
	return paren(strings.TrimSpace(c.Arg(i))) + "->"
}

// paren wraps s in parentheses unless it is a plain identifier or call.
func paren(s string) string {
	if isSimple(s) {
		return s
	}
	return "(" + s + ")"
}

func isSimple(s string) bool {
	if s == "" {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case depth > 0:
		case c == '_' || c == ':' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
		case c == '-' && i+1 < len(s) && s[i+1] == '>':
			i++
		default:
			return false
		}
	}
	return depth == 0
}
