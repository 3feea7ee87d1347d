package replace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveAscending applies edits front to back without adjusting offsets.
func naiveAscending(s string, edits []edit) string {
	for _, e := range edits {
		end := e.off + e.length
		if end > len(s) {
			continue
		}
		s = s[:e.off] + e.text + s[end:]
	}
	return s
}

func TestStringReplacementsDescendingOrder(t *testing.T) {
	var sr StringReplacements
	sr.Add(1, 1, "X")
	sr.Add(3, 1, "Y")
	assert.Equal(t, "aXcYef", sr.Apply("abcdef"))

	// The order is load-bearing once an edit changes the length.
	var grow StringReplacements
	grow.Add(1, 1, "XX")
	grow.Add(3, 1, "Y")
	assert.Equal(t, "aXXcYef", grow.Apply("abcdef"))
	assert.Equal(t, "aXXYdef", naiveAscending("abcdef", grow.edits))
	assert.NotEqual(t, grow.Apply("abcdef"), naiveAscending("abcdef", grow.edits))
}

func TestStringReplacementsInsertionsKeepOrder(t *testing.T) {
	var sr StringReplacements
	sr.Add(2, 0, "1")
	sr.Add(2, 0, "2")
	assert.Equal(t, "ab12cd", sr.Apply("abcd"))
}

func TestStoreAdd(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 4, Length: 3, Text: "foo"}))

	// identical replacement is deduplicated
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 4, Length: 3, Text: "foo"}))
	assert.Equal(t, 1, s.Len())

	// overlapping replacement loses to the first one
	err := s.Add(Replacement{FilePath: "a.cu", Offset: 5, Length: 4, Text: "bar"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	require.Len(t, s.Conflicts(), 1)
	assert.Equal(t, "foo", s.Conflicts()[0].Kept.Text)

	// insertions at a boundary are fine, insertions inside are not
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 7, Text: "+"}))
	require.Error(t, s.Add(Replacement{FilePath: "a.cu", Offset: 5, Text: "!"}))

	// two insertions at the same offset merge
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 0, Text: "A"}))
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 0, Text: "B"}))
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 0, Text: "C", Flags: FlagInsertBefore}))

	reps := s.For("a.cu")
	require.Len(t, reps, 3)
	assert.Equal(t, "CAB", reps[0].Text)
	assert.Equal(t, uint32(4), reps[1].Offset)
	assert.Equal(t, uint32(7), reps[2].Offset)
}

func TestStorePostProcessAndShift(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 2, Length: 1, Text: "xyz"}))
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 0, Text: "#include <x>", Flags: FlagLineEnd}))
	s.PostProcess()

	assert.Equal(t, "#include <x>\n", s.For("a.cu")[0].Text)
	assert.Equal(t, uint32(13), s.Shift("a.cu", 0))
	assert.Equal(t, uint32(15), s.Shift("a.cu", 2), "start of a replaced region moves by the earlier edits only")
	assert.Equal(t, uint32(18), s.Shift("a.cu", 3))
	assert.Equal(t, uint32(9), s.Shift("b.cu", 9))
}

func TestStoreEmplaceInto(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Replacement{FilePath: "b.cu", Offset: 1, Length: 1, Text: "B"}))
	require.NoError(t, s.Add(Replacement{FilePath: "a.cu", Offset: 0, Length: 1, Text: "A"}))

	var order []string
	err := s.EmplaceInto(SinkFunc(func(path string, reps []Replacement) error {
		order = append(order, path)
		assert.Len(t, reps, 1)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.cu", "b.cu"}, order)

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Files())
}

func TestApply(t *testing.T) {
	content := []byte("cudaFree(p);\n")
	out, err := Apply(content, []Replacement{
		{Offset: 0, Length: 11, Text: "dpct::dpct_free(p, q)"},
		{Offset: 0, Text: "// migrated\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "// migrated\ndpct::dpct_free(p, q);\n", string(out))

	_, err = Apply(content, []Replacement{{Offset: 10, Length: 10, Text: "x"}})
	assert.Error(t, err)

	_, err = Apply(content, []Replacement{
		{Offset: 0, Length: 5, Text: "x"},
		{Offset: 3, Length: 4, Text: "y"},
	})
	assert.ErrorIs(t, err, ErrConflict)
}
