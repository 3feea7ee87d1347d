package diag

import (
	"github.com/l3aro/cuda2sycl/pkg/source"
)

// Locator turns a front-end range into a reportable position.
type Locator interface {
	Locate(rng source.Range) (path string, span source.Span, pos source.LineCol)
}

// Emitter is the handle analysis components use to raise diagnostics. The
// zero value discards everything.
type Emitter struct {
	R Reporter
	L Locator
}

// Emit reports code at rng with positional arguments.
func (e Emitter) Emit(rng source.Range, code Code, args ...string) {
	if e.R == nil {
		return
	}
	d := Diagnostic{
		Code:     code,
		Severity: code.DefaultSeverity(),
		Args:     args,
		Message:  Format(code, args...),
	}
	if e.L != nil {
		d.Path, d.Span, d.Pos = e.L.Locate(rng)
	}
	e.R.Report(d)
}

// Enabled reports whether emitted diagnostics go anywhere.
func (e Emitter) Enabled() bool {
	return e.R != nil
}
