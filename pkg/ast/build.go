package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/source"
)

// Builder places nodes over a known source text by locating spelled
// snippets. It backs synthetic trees in tests.
type Builder struct {
	File source.FileID
	Src  string
}

// NewBuilder creates a Builder for file.
func NewBuilder(file source.FileID, src string) *Builder {
	return &Builder{File: file, Src: src}
}

// Range returns the range of the first occurrence of snippet.
func (b *Builder) Range(snippet string) source.Range {
	return b.RangeAfter("", snippet)
}

// RangeAfter returns the range of the first occurrence of snippet that
// starts at or after the first occurrence of anchor.
func (b *Builder) RangeAfter(anchor, snippet string) source.Range {
	from := 0
	if anchor != "" {
		i := strings.Index(b.Src, anchor)
		if i < 0 {
			panic(fmt.Sprintf("anchor %q not found", anchor))
		}
		from = i
	}
	i := strings.Index(b.Src[from:], snippet)
	if i < 0 {
		panic(fmt.Sprintf("snippet %q not found after %q", snippet, anchor))
	}
	start := from + i
	return source.FileRange(b.File, uint32(start), uint32(start+len(snippet)))
}

// Ref builds a DeclRef spelled at rng.
func (b *Builder) Ref(rng source.Range, name string, d Decl, t *Type) *DeclRef {
	return &DeclRef{ExprBase: ExprBase{Base: Base{Rng: rng}, Typ: t}, Name: name, Decl: d}
}

// Int builds an integer literal spelled at rng.
func (b *Builder) Int(rng source.Range) *Literal {
	text := b.Text(rng)
	v, _ := strconv.ParseInt(text, 0, 64)
	return &Literal{ExprBase: ExprBase{Base: Base{Rng: rng}, Typ: Builtin("int")}, Kind: IntLit, Text: text, Value: v}
}

// Call builds a call spelled at rng. The argument list range runs from the
// end of fun to the end of rng.
func (b *Builder) Call(rng source.Range, fun Expr, args ...Expr) *Call {
	argsRng := rng
	argsRng.Begin = fun.Range().End
	return &Call{ExprBase: ExprBase{Base: Base{Rng: rng}}, Fun: fun, Args: args, ArgsRng: argsRng}
}

// Member builds x.name spelled at rng.
func (b *Builder) Member(rng source.Range, x Expr, name string, t *Type) *Member {
	nameRng := rng
	nameRng.Begin.Offset = rng.End.Offset - uint32(len(name))
	return &Member{
		ExprBase: ExprBase{Base: Base{Rng: rng}, Typ: t},
		X:        x,
		Name:     name,
		NameRng:  nameRng,
		Arrow:    strings.Contains(b.Text(rng), "->"),
	}
}

// Text returns the spelled text of rng.
func (b *Builder) Text(rng source.Range) string {
	return b.Src[rng.Begin.Offset:rng.End.Offset]
}
