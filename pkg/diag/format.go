package diag

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	pathColor    = color.New(color.Bold)
)

// WriteText prints diagnostics as "path:line:col: severity: C2Sxxxx: message".
// Colour follows fatih/color's terminal detection unless useColor is false.
func WriteText(w io.Writer, items []Diagnostic, useColor bool) error {
	for _, d := range items {
		sev := d.Severity.String()
		loc := fmt.Sprintf("%s:%d:%d", d.Path, d.Pos.Line, d.Pos.Col)
		if useColor {
			loc = pathColor.Sprint(loc)
			sev = severityColor(d.Severity).Sprint(sev)
		}
		if _, err := fmt.Fprintf(w, "%s: %s: %s: %s\n", loc, sev, d.Code.ID(), d.Message); err != nil {
			return err
		}
	}
	return nil
}

func severityColor(s Severity) *color.Color {
	switch s {
	case SevError:
		return errorColor
	case SevWarning:
		return warningColor
	}
	return infoColor
}

type jsonDiagnostic struct {
	ID       string   `json:"id"`
	Severity string   `json:"severity"`
	Path     string   `json:"path"`
	Line     uint32   `json:"line"`
	Column   uint32   `json:"column"`
	Offset   uint32   `json:"offset"`
	Length   uint32   `json:"length"`
	Message  string   `json:"message"`
	Args     []string `json:"args,omitempty"`
}

// WriteJSON prints diagnostics as one JSON array.
func WriteJSON(w io.Writer, items []Diagnostic) error {
	out := make([]jsonDiagnostic, 0, len(items))
	for _, d := range items {
		out = append(out, jsonDiagnostic{
			ID:       d.Code.ID(),
			Severity: d.Severity.String(),
			Path:     d.Path,
			Line:     d.Pos.Line,
			Column:   d.Pos.Col,
			Offset:   d.Span.Start,
			Length:   d.Span.Len(),
			Message:  d.Message,
			Args:     d.Args,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// InlineComment renders d as the comment inserted above the affected line.
func InlineComment(d Diagnostic) string {
	return fmt.Sprintf("/*\n%s:%s\n*/", d.Code.ID(), d.Message)
}
