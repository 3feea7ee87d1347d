// Package launch rewrites kernel launches into SYCL command-group
// submissions. Each launch site moves through a fixed sequence of states:
// the execution configuration is resolved, then the kernel arguments are
// classified, then the replacement text is emitted.
package launch

import (
	"fmt"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/expr"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// DefaultParamLimit is the kernel argument budget in bytes.
const DefaultParamLimit = 1024

// State is the build progress of one launch site.
type State uint8

const (
	Unbuilt State = iota
	ConfigResolved
	ArgsResolved
	ReplacementEmitted
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case ConfigResolved:
		return "config-resolved"
	case ArgsResolved:
		return "args-resolved"
	case ReplacementEmitted:
		return "emitted"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// StateError reports a build step taken out of order.
type StateError struct {
	Step string
	Have State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("launch: cannot %s in state %s", e.Step, e.Have)
}

// Builder turns launches met by an analyzer into dispatch code.
type Builder struct {
	A *expr.Analyzer
	// ParamLimit is the argument byte budget; zero disables the check.
	ParamLimit int64

	sites map[*ast.KernelLaunch]*Site
}

// New creates a Builder for a.
func New(a *expr.Analyzer) *Builder {
	return &Builder{A: a, ParamLimit: DefaultParamLimit, sites: make(map[*ast.KernelLaunch]*Site)}
}

// Install hooks the builder into its analyzer.
func (b *Builder) Install() {
	b.A.Hooks.LaunchStmt = b.rewriteStmt
	b.A.Hooks.LaunchExpr = b.rewriteExpr
	b.A.Hooks.ObserveLaunch = b.observe
}

// Reset forgets every site.
func (b *Builder) Reset() {
	b.sites = make(map[*ast.KernelLaunch]*Site)
}

// Site returns the build record of l, creating it on first use.
func (b *Builder) Site(l *ast.KernelLaunch) *Site {
	if s, ok := b.sites[l]; ok {
		return s
	}
	s := &Site{Launch: l, Kernel: l.Call.Callee(), b: b}
	if s.Kernel != nil && b.A.Graph != nil {
		s.Info = b.A.Graph.Lookup(b.A.FuncKey(s.Kernel))
	}
	b.sites[l] = s
	return s
}

// observe records the launch in the usage graph during discovery.
func (b *Builder) observe(l *ast.KernelLaunch, fn *ast.FunctionDecl) {
	k := l.Call.Callee()
	if k == nil || b.A.Graph == nil {
		return
	}
	info := b.A.Graph.Register(b.A.FuncKey(k), k.Root())
	oneDim := len(l.Config) >= 2 && isOneDim(l.Config[0]) && isOneDim(l.Config[1])
	b.A.Graph.AddLaunch(info, oneDim)
}

func (b *Builder) inDeviceCode(l *ast.KernelLaunch) bool {
	if !b.A.InDevice() {
		return false
	}
	b.A.Diag.Emit(l.Range(), diag.LaunchInDeviceCode, l.Call.CalleeName())
	return true
}

func (b *Builder) rewriteStmt(st *ast.ExprStmt, l *ast.KernelLaunch) bool {
	if b.inDeviceCode(l) {
		return true
	}
	s := b.Site(l)
	text, err := s.Build(b.needsBraces(st), false, b.A.R.Indent(st.Range()))
	if err != nil {
		return false
	}
	b.A.Replace(st.Range(), text)
	return true
}

func (b *Builder) rewriteExpr(l *ast.KernelLaunch) (string, bool) {
	if b.inDeviceCode(l) {
		return "", false
	}
	indent := ""
	if pm := b.A.Parents(); pm != nil {
		if st := pm.EnclosingStmt(l); st != nil {
			indent = b.A.R.Indent(st.Range())
		}
	}
	text, err := b.Site(l).Build(false, true, indent)
	if err != nil {
		return "", false
	}
	return text, true
}

// needsBraces reports whether a multi-statement rewrite of st must be
// wrapped in a block. A launch alone in its block is already scoped.
func (b *Builder) needsBraces(st *ast.ExprStmt) bool {
	pm := b.A.Parents()
	if pm == nil {
		return true
	}
	if c, ok := pm.Parent(st).(*ast.CompoundStmt); ok && len(c.List) == 1 {
		return false
	}
	return true
}

// Site is the build record of one launch.
type Site struct {
	Launch *ast.KernelLaunch
	Kernel *ast.FunctionDecl
	Info   *usage.DeviceFunctionInfo
	State  State

	Config Config
	Args   []Arg
	// TemplateArgs are the kernel's template arguments as written or
	// deduced from the launch arguments.
	TemplateArgs []ast.TemplateArg
	// Pre holds statements placed ahead of the submission.
	Pre []string
	// Decls holds command-group scope declarations.
	Decls []string
	// ParamBytes is the estimated size of the migrated kernel arguments.
	ParamBytes int64
	Text       string

	b *Builder
}

// Build runs every remaining step and returns the replacement text. braces
// wraps statements in a block when more than one is emitted; exprCtx wraps
// the dispatch in an immediately invoked lambda.
func (s *Site) Build(braces, exprCtx bool, indent string) (string, error) {
	if s.State == ReplacementEmitted {
		return s.Text, nil
	}
	if s.State == Unbuilt {
		if err := s.ResolveConfig(); err != nil {
			return "", err
		}
	}
	if s.State == ConfigResolved {
		if err := s.ResolveArgs(); err != nil {
			return "", err
		}
	}
	return s.Emit(braces, exprCtx, indent)
}

// Dim returns the dispatch dimensionality: 1 only when one-dimensional
// items are allowed, the kernel's launch group is one-dimensional and this
// launch's configuration is too.
func (s *Site) Dim() int {
	a := s.b.A
	if a.OneDimItems && s.Config.OneDim && s.Info != nil && a.Graph.Dim(s.Info) == 1 {
		return 1
	}
	return 3
}

func (s *Site) kernelName() string {
	if s.Kernel != nil {
		return s.Kernel.Name
	}
	return s.Launch.Call.CalleeName()
}
