package launch

import (
	"github.com/l3aro/cuda2sycl/pkg/ast"
)

// Config is the rendered execution configuration of a launch.
type Config struct {
	// Grid and Block are sycl::range<3> expressions.
	Grid, Block string
	// Grid1 and Block1 are the one-dimensional renderings, used when the
	// kernel's launch group turns out to be one-dimensional.
	Grid1, Block1 string
	// OneDim is set when both grid and block are literally one-dimensional.
	OneDim bool
	// LocalMem is the dynamic shared memory byte count, or "".
	LocalMem string
	// Stream is the migrated stream argument, or "" for the default queue.
	Stream string
}

// ResolveConfig renders the grid, block, shared memory and stream
// arguments.
func (s *Site) ResolveConfig() error {
	if s.State != Unbuilt {
		return &StateError{Step: "resolve config", Have: s.State}
	}
	a := s.b.A
	cfg := s.Launch.Config
	var c Config
	if len(cfg) > 0 {
		c.Grid, c.Grid1 = s.range3(cfg[0]), s.range1(cfg[0])
	}
	if len(cfg) > 1 {
		c.Block, c.Block1 = s.range3(cfg[1]), s.range1(cfg[1])
	}
	c.OneDim = len(cfg) > 1 && isOneDim(cfg[0]) && isOneDim(cfg[1])
	if len(cfg) > 2 {
		if v, ok := ast.IntValue(cfg[2]); !ok || v != 0 {
			c.LocalMem = a.Text(cfg[2])
		}
	}
	if len(cfg) > 3 {
		c.Stream = a.Text(cfg[3])
	}
	s.Config = c
	s.State = ConfigResolved
	return nil
}

// range3 renders a grid or block argument as a three-dimensional range.
// dim3 values already migrate to ranges; scalars fill the x slot.
func (s *Site) range3(e ast.Expr) string {
	text := s.b.A.Text(e)
	if isDim3(e) {
		return text
	}
	return "sycl::range<3>(1, 1, " + text + ")"
}

// range1 renders the x extent of a grid or block argument.
func (s *Site) range1(e ast.Expr) string {
	a := s.b.A
	if !isDim3(e) {
		return a.Text(e)
	}
	if c, ok := ast.Unparen(e).(*ast.Construct); ok {
		if len(c.Args) == 0 {
			return "1"
		}
		return a.Text(c.Args[0])
	}
	return a.Text(e) + "[2]"
}

func isDim3(e ast.Expr) bool {
	t := e.Type()
	return t != nil && t.Is("dim3")
}

// isOneDim reports whether a configuration argument is literally
// one-dimensional: a scalar, or a dim3 whose y and z are literally 1.
func isOneDim(e ast.Expr) bool {
	if !isDim3(e) {
		return true
	}
	c, ok := ast.Unparen(e).(*ast.Construct)
	if !ok {
		return false
	}
	for i, arg := range c.Args {
		if i == 0 {
			continue
		}
		if v, ok := ast.IntValue(arg); !ok || v != 1 {
			return false
		}
	}
	return true
}
