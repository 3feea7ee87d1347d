// Package output writes the results of a migration run: the rewritten
// source tree, replacement sets in YAML for external appliers, and the
// diagnostics report.
package output

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"

	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/source"
)

const fileMode os.FileMode = 0o644

// Writer places migrated files under OutRoot, mirroring their location
// relative to InRoot.
type Writer struct {
	InRoot  string
	OutRoot string

	fs afs.Service
}

// NewWriter creates a Writer.
func NewWriter(inRoot, outRoot string) *Writer {
	return &Writer{InRoot: inRoot, OutRoot: outRoot, fs: afs.New()}
}

// Target returns the output location of the input at path.
func (w *Writer) Target(path string) (string, error) {
	rel := path
	if w.InRoot != "" && filepath.IsAbs(path) == filepath.IsAbs(w.InRoot) {
		r, err := filepath.Rel(w.InRoot, path)
		if err != nil {
			return "", fmt.Errorf("locating %s under %s: %w", path, w.InRoot, err)
		}
		rel = r
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, w.InRoot)
	}
	return filepath.Join(w.OutRoot, TargetPath(rel)), nil
}

// Write applies the replacements of store to every file of files and
// uploads the result. Files without replacements are copied unchanged. It
// returns the written locations in file order.
func (w *Writer) Write(ctx context.Context, files *source.FileSet, store *replace.Store) ([]string, error) {
	store.PostProcess()
	var written []string
	for _, f := range files.Files() {
		content, err := replace.Apply(f.Content, store.For(f.Path))
		if err != nil {
			return written, fmt.Errorf("applying replacements to %s: %w", f.Path, err)
		}
		target, err := w.Target(f.Path)
		if err != nil {
			return written, err
		}
		if err := w.fs.Upload(ctx, target, fileMode, bytes.NewReader(content)); err != nil {
			return written, fmt.Errorf("writing %s: %w", target, err)
		}
		written = append(written, target)
	}
	return written, nil
}
