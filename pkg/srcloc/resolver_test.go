package srcloc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/pkg/source"
)

func setup(t *testing.T, src string) (*source.FileSet, source.FileID, *Resolver) {
	t.Helper()
	fs := source.NewFileSet()
	id, err := fs.Add("a.cu", []byte(src))
	require.NoError(t, err)
	return fs, id, New(fs)
}

func off(src, snippet string) uint32 {
	return uint32(strings.Index(src, snippet))
}

func TestResolvePlainRange(t *testing.T) {
	src := "int y = foo(x);"
	_, id, r := setup(t, src)

	reg := r.Resolve(source.FileRange(id, off(src, "foo"), off(src, ";")))
	require.True(t, reg.Valid)
	assert.Equal(t, "foo(x)", r.Text(reg))
	assert.False(t, reg.Straddled)
	assert.Equal(t, "a.cu", reg.Path)
}

func TestResolveInvalidRange(t *testing.T) {
	src := "x"
	_, id, r := setup(t, src)

	reg := r.Resolve(source.Range{})
	assert.False(t, reg.Valid)
	assert.Equal(t, Sentinel, reg.Offset)
	assert.Equal(t, uint32(0), reg.Length)

	reg = r.Resolve(source.FileRange(id, 1, 0))
	assert.False(t, reg.Valid)
}

func TestResolveMacroArgumentUsesSpelling(t *testing.T) {
	src := "#define CALL(x) x\nCALL(threadIdx.x);"
	fs, id, r := setup(t, src)
	arg := source.Span{File: id, Start: off(src, "threadIdx.x);"), End: off(src, ");")}
	m := fs.Macros().AddExpansion(source.Expansion{
		Name:       "CALL",
		Invocation: source.Span{File: id, Start: off(src, "CALL(threadIdx"), End: off(src, ";")},
		Args:       []source.Span{arg},
	})

	rng := source.Range{
		Begin: source.Loc{File: id, Offset: arg.Start, Macro: m},
		End:   source.Loc{File: id, Offset: arg.End, Macro: m},
	}
	reg := r.Resolve(rng)
	require.True(t, reg.Valid)
	assert.False(t, reg.Straddled)
	assert.Equal(t, "threadIdx.x", r.Text(reg))
}

func TestResolveStraddleFallsBackToInvocation(t *testing.T) {
	src := "#define BEGIN foo(\nBEGIN 1);"
	fs, id, r := setup(t, src)
	m := fs.Macros().AddExpansion(source.Expansion{
		Name:       "BEGIN",
		Invocation: source.Span{File: id, Start: off(src, "BEGIN 1"), End: off(src, " 1);")},
	})

	rng := source.Range{
		Begin: source.Loc{File: id, Offset: off(src, "foo("), Macro: m},
		End:   source.Loc{File: id, Offset: off(src, ";")},
	}
	reg := r.Resolve(rng)
	require.True(t, reg.Valid)
	assert.True(t, reg.Straddled)
	assert.Equal(t, "BEGIN 1)", r.Text(reg))
}

func TestResolveNestedMacroUsesOutermostInvocation(t *testing.T) {
	src := "#define IN(a) a\n#define OUT(b) IN(b) + 1\nint v = OUT(2);"
	fs, id, r := setup(t, src)
	outer := fs.Macros().AddExpansion(source.Expansion{
		Name:       "OUT",
		Invocation: source.Span{File: id, Start: off(src, "OUT(2)"), End: off(src, ";")},
	})
	inner := fs.Macros().AddExpansion(source.Expansion{
		Name:       "IN",
		Parent:     outer,
		Invocation: source.Span{File: id, Start: off(src, "IN(b)"), End: off(src, " + 1")},
	})

	rng := source.Range{
		Begin: source.Loc{File: id, Offset: off(src, "IN(b)"), Macro: inner},
		End:   source.Loc{File: id, Offset: off(src, "\nint"), Macro: outer},
	}
	reg := r.Resolve(rng)
	require.True(t, reg.Valid)
	assert.True(t, reg.Straddled)
	assert.Equal(t, "OUT(2)", r.Text(reg))
}

func TestResolveFoldsEmptyMacros(t *testing.T) {
	src := "x = PRE foo(1) POST;\ny = bar() POST2 int;"
	fs, id, r := setup(t, src)
	fs.Macros().AddEmptyUse(source.Span{File: id, Start: off(src, "PRE"), End: off(src, "PRE") + 3})
	fs.Macros().AddEmptyUse(source.Span{File: id, Start: off(src, "POST;"), End: off(src, "POST;") + 4})
	fs.Macros().AddEmptyUse(source.Span{File: id, Start: off(src, "POST2"), End: off(src, "POST2") + 5})

	reg := r.Resolve(source.FileRange(id, off(src, "foo"), off(src, " POST;")))
	require.True(t, reg.Valid)
	assert.Equal(t, "PRE ", reg.Prefix)
	assert.Equal(t, " POST", reg.Postfix)
	assert.Equal(t, "PRE foo(1) POST", r.Text(reg))
	assert.Equal(t, "foo(1)", r.CoreText(reg))

	// POST2 is followed by an identifier and stays outside.
	reg = r.Resolve(source.FileRange(id, off(src, "bar"), off(src, " POST2")))
	assert.Equal(t, "", reg.Postfix)
	assert.Equal(t, "bar()", r.Text(reg))
}

func TestLocate(t *testing.T) {
	src := "a\n  b"
	_, id, r := setup(t, src)
	path, span, pos := r.Locate(source.FileRange(id, 4, 5))
	assert.Equal(t, "a.cu", path)
	assert.Equal(t, uint32(4), span.Start)
	assert.Equal(t, source.LineCol{Line: 2, Col: 3}, pos)
}
