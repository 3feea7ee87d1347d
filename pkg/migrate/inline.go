package migrate

import (
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/replace"
)

// inlineDiagnostics inserts every warning as a comment block above the line
// it points at, indented like that line.
func (m *Migrator) inlineDiagnostics() {
	s := m.S
	for _, d := range s.Diags.Items() {
		if d.Severity < diag.SevWarning {
			continue
		}
		id, ok := s.Files.Lookup(d.Path)
		if !ok {
			continue
		}
		f := s.Files.Get(id)
		start := f.LineStart(d.Span.Start)
		indent := f.Indent(start)
		lines := strings.Split(diag.InlineComment(d), "\n")
		text := indent + strings.Join(lines, "\n"+indent) + "\n"
		err := s.Store.Add(replace.Replacement{
			FilePath: f.Path,
			Offset:   start,
			Text:     text,
			Origin:   "diag",
		})
		if err != nil {
			m.Log.Debug("diagnostic comment not placed", "code", d.Code.ID(), "path", d.Path, "error", err)
		}
	}
}
