package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/cuda2sycl/pkg/replace"
)

// ReplacementRecord is one replacement in the exported YAML.
type ReplacementRecord struct {
	FilePath        string `yaml:"FilePath"`
	Offset          uint32 `yaml:"Offset"`
	Length          uint32 `yaml:"Length"`
	ReplacementText string `yaml:"ReplacementText"`
}

// ReplacementSet is the exported replacement file of one source file.
type ReplacementSet struct {
	MainSourceFile string              `yaml:"MainSourceFile"`
	Replacements   []ReplacementRecord `yaml:"Replacements"`
}

// NewReplacementSet builds the export record of path from reps.
func NewReplacementSet(path string, reps []replace.Replacement) ReplacementSet {
	set := ReplacementSet{MainSourceFile: path, Replacements: make([]ReplacementRecord, 0, len(reps))}
	for _, r := range reps {
		set.Replacements = append(set.Replacements, ReplacementRecord{
			FilePath:        r.FilePath,
			Offset:          r.Offset,
			Length:          r.Length,
			ReplacementText: r.Text,
		})
	}
	return set
}

// WriteYAML encodes set to w.
func WriteYAML(w io.Writer, set ReplacementSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("encoding replacements of %s: %w", set.MainSourceFile, err)
	}
	return enc.Close()
}

// ReadYAML decodes an exported replacement set.
func ReadYAML(r io.Reader) (ReplacementSet, error) {
	var set ReplacementSet
	if err := yaml.NewDecoder(r).Decode(&set); err != nil {
		return set, fmt.Errorf("decoding replacement set: %w", err)
	}
	return set, nil
}

// Export writes one "<file>.yaml" replacement set per file of store next to
// where the migrated file would be written. It returns the written
// locations.
func (w *Writer) Export(ctx context.Context, store *replace.Store) ([]string, error) {
	var written []string
	err := store.EmplaceInto(replace.SinkFunc(func(path string, reps []replace.Replacement) error {
		target, err := w.Target(path)
		if err != nil {
			return err
		}
		target = filepath.Join(filepath.Dir(target), filepath.Base(path)+".yaml")
		var buf bytes.Buffer
		if err := WriteYAML(&buf, NewReplacementSet(path, reps)); err != nil {
			return err
		}
		if err := w.fs.Upload(ctx, target, fileMode, &buf); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
		written = append(written, target)
		return nil
	}))
	return written, err
}
