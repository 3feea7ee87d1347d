package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/source"
)

func TestTargetPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"main.cu", "main.dp.cpp"},
		{"src/kernels.cuh", "src/kernels.dp.hpp"},
		{"KERNEL.CU", "KERNEL.dp.cpp"},
		{"host.cpp", "host.cpp"},
		{"common.h", "common.h"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetPath(tt.in))
		})
	}
}

func TestWriterTarget(t *testing.T) {
	w := NewWriter("/in", "/out")

	got, err := w.Target("/in/a/b.cu")
	require.NoError(t, err)
	assert.Equal(t, "/out/a/b.dp.cpp", got)

	_, err = w.Target("/elsewhere/c.cu")
	assert.Error(t, err)
}

func fixture(t *testing.T) (string, *source.FileSet, *replace.Store) {
	t.Helper()
	in := t.TempDir()
	files := source.NewFileSet()
	main := filepath.Join(in, "main.cu")
	util := filepath.Join(in, "lib", "util.h")
	_, err := files.Add(main, []byte("__global__ void k() {}\n"))
	require.NoError(t, err)
	_, err = files.Add(util, []byte("int util();\n"))
	require.NoError(t, err)

	store := replace.NewStore()
	require.NoError(t, store.Add(replace.Replacement{FilePath: main, Offset: 0, Length: 11, Text: ""}))
	return in, files, store
}

func TestWriterWrite(t *testing.T) {
	in, files, store := fixture(t)
	out := t.TempDir()
	w := NewWriter(in, out)

	written, err := w.Write(context.Background(), files, store)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "main.dp.cpp"),
		filepath.Join(out, "lib", "util.h"),
	}, written)

	b, err := os.ReadFile(filepath.Join(out, "main.dp.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "void k() {}\n", string(b))

	b, err = os.ReadFile(filepath.Join(out, "lib", "util.h"))
	require.NoError(t, err)
	assert.Equal(t, "int util();\n", string(b))
}

func TestExport(t *testing.T) {
	in, _, store := fixture(t)
	out := t.TempDir()
	w := NewWriter(in, out)

	written, err := w.Export(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(out, "main.cu.yaml")}, written)

	f, err := os.Open(written[0])
	require.NoError(t, err)
	defer f.Close()
	set, err := ReadYAML(f)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(in, "main.cu"), set.MainSourceFile)
	require.Len(t, set.Replacements, 1)
	assert.Equal(t, uint32(11), set.Replacements[0].Length)
	assert.Equal(t, "", set.Replacements[0].ReplacementText)
}

func TestWriteYAMLFieldNames(t *testing.T) {
	var buf bytes.Buffer
	set := NewReplacementSet("a.cu", []replace.Replacement{{FilePath: "a.cu", Offset: 3, Length: 2, Text: "x"}})
	require.NoError(t, WriteYAML(&buf, set))

	got := buf.String()
	assert.Contains(t, got, "MainSourceFile: a.cu")
	assert.Contains(t, got, "- FilePath: a.cu")
	assert.Contains(t, got, "Offset: 3")
	assert.Contains(t, got, "Length: 2")
	assert.Contains(t, got, "ReplacementText: x")
}

func TestFormatReport(t *testing.T) {
	items := []diag.Diagnostic{{
		Code:     diag.TemplateArgNotDeducible,
		Severity: diag.SevWarning,
		Args:     []string{"T", "zero"},
		Message:  diag.Format(diag.TemplateArgNotDeducible, "T", "zero"),
		Path:     "t.cu",
		Pos:      source.LineCol{Line: 9, Col: 3},
	}}

	text, err := FormatReport(items, FormatText)
	require.NoError(t, err)
	assert.Equal(t, "t.cu:9:3: warning: C2S1020: Template argument T of zero could not be deduced. Fix the type manually.\n", string(text))

	js, err := FormatReport(items, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"id": "C2S1020"`)

	_, err = FormatReport(items, "xml")
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, dir)
	loc := filepath.Join(dir, "report.json")

	require.NoError(t, w.WriteReport(context.Background(), loc, nil, FormatJSON))
	b, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(b))
}
