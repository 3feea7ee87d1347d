// Package frontend turns CUDA sources into the ast model with tree-sitter's
// C++ grammar. CUDA-only syntax is masked before parsing without moving any
// byte, names are resolved with a scope stack and expression types are
// computed where the declarations make them known.
package frontend

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/viant/afs"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/source"
)

// Frontend parses the files of one FileSet.
type Frontend struct {
	Files *source.FileSet
	fs    afs.Service
}

// New creates a Frontend over files.
func New(files *source.FileSet) *Frontend {
	return &Frontend{Files: files, fs: afs.New()}
}

// NewParser creates a tree-sitter parser for C++.
func NewParser() *sitter.Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())
	return parser
}

// Tree is a parsed file whose ast is not built yet.
type Tree struct {
	Path string
	File source.FileID

	content []byte
	m       *masked
	tree    *sitter.Tree
}

// Close releases the parse tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Load reads the file at url and registers it under path.
func (f *Frontend) Load(ctx context.Context, url, path string) (source.FileID, error) {
	content, err := f.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return source.NoFile, fmt.Errorf("reading %s: %w", url, err)
	}
	return f.Files.Add(path, content)
}

// Parse masks and parses a registered file. It is safe to call from
// several goroutines; each call uses its own parser.
func (f *Frontend) Parse(ctx context.Context, path string) (*Tree, error) {
	id, ok := f.Files.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("parsing %s: file not loaded", path)
	}
	file := f.Files.Get(id)
	m := mask(id, file.Content)
	macros := f.Files.Macros()
	for _, d := range m.defs {
		macros.Define(d)
	}
	for _, s := range m.empty {
		macros.AddEmptyUse(s)
	}

	tree, err := NewParser().ParseCtx(ctx, nil, m.src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parsing %s failed", path)
	}
	return &Tree{Path: file.Path, File: id, content: file.Content, m: m, tree: tree}, nil
}

type unit struct {
	tu       *ast.TranslationUnit
	globals  *scope
	building bool
}

// Build converts trees into translation units in input order. A file's
// quoted includes that are among trees are built first and their file-scope
// names become visible in the including unit.
func (f *Frontend) Build(trees []*Tree) []*ast.TranslationUnit {
	byPath := make(map[string]*Tree, len(trees))
	for _, t := range trees {
		byPath[t.Path] = t
	}
	units := make(map[string]*unit, len(trees))
	var build func(t *Tree) *unit
	build = func(t *Tree) *unit {
		if u, ok := units[t.Path]; ok {
			if u.building {
				return nil
			}
			return u
		}
		u := &unit{building: true}
		units[t.Path] = u
		globals := newScope(nil)
		for _, inc := range includesOf(t) {
			dep, ok := byPath[filepath.Join(filepath.Dir(t.Path), inc)]
			if !ok {
				continue
			}
			if du := build(dep); du != nil {
				globals.importFrom(du.globals)
			}
		}
		b := newBuilder(t, globals)
		u.tu = b.unit()
		u.globals = globals
		u.building = false
		return u
	}

	out := make([]*ast.TranslationUnit, 0, len(trees))
	for _, t := range trees {
		out = append(out, build(t).tu)
	}
	for _, t := range trees {
		t.Close()
	}
	return out
}

// ParseSource registers content as path, parses it and builds its unit.
func (f *Frontend) ParseSource(ctx context.Context, path string, content []byte) (*ast.TranslationUnit, error) {
	if _, err := f.Files.Add(path, content); err != nil {
		return nil, err
	}
	t, err := f.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	return f.Build([]*Tree{t})[0], nil
}

// includesOf lists the quoted include paths of t, including those nested
// in conditional blocks.
func includesOf(t *Tree) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "preproc_include":
				p := c.ChildByFieldName("path")
				if p != nil && p.Type() == "string_literal" {
					out = append(out, strings.Trim(string(t.content[p.StartByte():p.EndByte()]), `"`))
				}
			case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif":
				walk(c)
			}
		}
	}
	walk(t.tree.RootNode())
	return out
}
