package output

import (
	"bytes"
	"context"
	"fmt"

	"github.com/l3aro/cuda2sycl/pkg/diag"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// FormatReport renders items in format.
func FormatReport(items []diag.Diagnostic, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatText, "":
		err = diag.WriteText(&buf, items, false)
	case FormatJSON:
		err = diag.WriteJSON(&buf, items)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteReport writes the diagnostics report to location.
func (w *Writer) WriteReport(ctx context.Context, location string, items []diag.Diagnostic, format string) error {
	data, err := FormatReport(items, format)
	if err != nil {
		return err
	}
	if err := w.fs.Upload(ctx, location, fileMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing report %s: %w", location, err)
	}
	return nil
}
