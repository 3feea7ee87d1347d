package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSetAddAndLookup(t *testing.T) {
	fs := NewFileSet()

	id, err := fs.Add("src/a.cu", []byte("int x;\nint y;\n"))
	require.NoError(t, err)
	assert.Equal(t, FileID(1), id)

	again, err := fs.Add("src/./a.cu", []byte("ignored"))
	require.NoError(t, err)
	assert.Equal(t, id, again, "same path should keep its ID")
	assert.Equal(t, "int x;\nint y;\n", string(fs.Get(id).Content))

	got, ok := fs.Lookup("src/a.cu")
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.Nil(t, fs.Get(NoFile))
	assert.Len(t, fs.Files(), 1)
}

func TestFileLineCol(t *testing.T) {
	fs := NewFileSet()
	id, err := fs.Add("a.cu", []byte("ab\n  cd\nef"))
	require.NoError(t, err)
	f := fs.Get(id)

	tests := []struct {
		off    uint32
		want   LineCol
		indent string
	}{
		{0, LineCol{1, 1}, ""},
		{1, LineCol{1, 2}, ""},
		{5, LineCol{2, 3}, "  "},
		{8, LineCol{3, 1}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.LineCol(tt.off), "offset %d", tt.off)
		assert.Equal(t, tt.indent, f.Indent(tt.off), "offset %d", tt.off)
	}
	assert.Equal(t, "cd", f.Text(5, 7))
	assert.Equal(t, "", f.Text(7, 5))
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 6}
	b := Span{File: 1, Start: 2, End: 5}
	assert.Equal(t, Span{File: 1, Start: 2, End: 6}, a.Cover(b))
	assert.True(t, a.Cover(b).Contains(a))
	assert.False(t, a.Contains(b))
	assert.True(t, Span{Start: 3, End: 3}.Empty())
}

func TestMacroTable(t *testing.T) {
	mt := NewMacroTable()
	outer := mt.AddExpansion(Expansion{Name: "OUTER", Invocation: Span{File: 1, Start: 10, End: 20}})
	inner := mt.AddExpansion(Expansion{
		Name:       "INNER",
		Parent:     outer,
		Invocation: Span{File: 1, Start: 2, End: 9},
		Args:       []Span{{File: 1, Start: 8, End: 9}},
	})

	assert.Equal(t, "OUTER", mt.Outermost(inner).Name)
	assert.True(t, mt.IsMacroArg(Loc{File: 1, Offset: 8, Macro: inner}))
	assert.False(t, mt.IsMacroArg(Loc{File: 1, Offset: 3, Macro: inner}))

	mt.AddEmptyUse(Span{File: 1, Start: 30, End: 35})
	mt.AddEmptyUse(Span{File: 1, Start: 5, End: 9})
	mt.AddEmptyUse(Span{File: 1, Start: 30, End: 35})
	assert.Equal(t, []Span{{File: 1, Start: 5, End: 9}, {File: 1, Start: 30, End: 35}}, mt.EmptyUses(1))
}
