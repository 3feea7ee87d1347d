package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/source"
)

func result(rounds int) Result {
	return Result{Rounds: rounds}
}

func TestCacheGetPut(t *testing.T) {
	c := New(Options{})
	c.Put("a", result(1))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, got.Rounds)

	_, ok = c.Get("b")
	assert.False(t, ok)

	c.Put("a", result(2))
	got, _ = c.Get("a")
	assert.Equal(t, 2, got.Rounds)
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := New(Options{MaxEntries: 3, OnEvict: func(k string) { evicted = append(evicted, k) }})
	c.Put("a", result(1))
	c.Put("b", result(1))
	c.Put("c", result(1))

	// Touch a so that b is the oldest.
	c.Get("a")
	c.Put("d", result(1))

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 3, c.Len())
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(Options{})
	c.Put("a", result(1))

	require.NoError(t, c.Delete("a"))
	assert.Equal(t, 0, c.Len())
	assert.ErrorIs(t, c.Delete("a"), ErrKeyNotFound)

	c.Put("b", result(1))
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCacheSaveLoadKeepsOrder(t *testing.T) {
	c := New(Options{})
	c.Put("old", result(1))
	c.Put("new", Result{
		Rounds:       2,
		Replacements: map[string][]replace.Replacement{"a.cu": {{FilePath: "a.cu", Offset: 4, Length: 1, Text: "x"}}},
		Diagnostics:  []diag.Diagnostic{{Code: diag.TemplateArgNotDeducible, Severity: diag.SevWarning, Path: "a.cu", Pos: source.LineCol{Line: 2, Col: 1}}},
	})

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	// A bounded cache keeps the most recent entry when loading.
	loaded := New(Options{MaxEntries: 1})
	require.NoError(t, loaded.Load(&buf))
	assert.Equal(t, 1, loaded.Len())

	got, ok := loaded.Get("new")
	require.True(t, ok)
	assert.Equal(t, 2, got.Rounds)
	assert.Equal(t, "x", got.Replacements["a.cu"][0].Text)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, diag.TemplateArgNotDeducible, got.Diagnostics[0].Code)
}

func TestCacheDirRoundTrip(t *testing.T) {
	dir := t.TempDir()

	empty := New(Options{})
	require.NoError(t, empty.LoadDir(dir))
	assert.Equal(t, 0, empty.Len())

	c := New(Options{})
	c.Put("k", result(3))
	require.NoError(t, c.SaveDir(dir))

	again := New(Options{})
	require.NoError(t, again.LoadDir(dir))
	got, ok := again.Get("k")
	require.True(t, ok)
	assert.Equal(t, 3, got.Rounds)
}

func TestFingerprintKey(t *testing.T) {
	build := func(order []string, usm string) string {
		f := NewFingerprint()
		for _, p := range order {
			f.AddInput(p, []byte("content of "+p))
		}
		f.AddRules("rules.yaml", []byte("- rule: x"))
		f.AddOption("usm=" + usm)
		f.AddOption("dim=3")
		k, err := f.Key()
		require.NoError(t, err)
		return k
	}

	base := build([]string{"a.cu", "b.cu"}, "true")
	assert.Len(t, base, 16)
	assert.Equal(t, base, build([]string{"b.cu", "a.cu"}, "true"))
	assert.NotEqual(t, base, build([]string{"a.cu", "b.cu"}, "false"))
	assert.NotEqual(t, base, build([]string{"a.cu"}, "true"))
}

func TestFingerprintSeparatesFields(t *testing.T) {
	a := NewFingerprint()
	a.AddInput("ab", []byte("c"))
	b := NewFingerprint()
	b.AddInput("a", []byte("bc"))

	ka, err := a.Key()
	require.NoError(t, err)
	kb, err := b.Key()
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}

func TestCaptureRestore(t *testing.T) {
	store := replace.NewStore()
	require.NoError(t, store.Add(replace.Replacement{FilePath: "a.cu", Offset: 0, Length: 3, Text: "int"}))
	require.NoError(t, store.Add(replace.Replacement{FilePath: "b.cu", Offset: 5, Text: "y"}))
	items := []diag.Diagnostic{{Code: diag.TemplateArgNotDeducible, Path: "a.cu"}}

	r := Capture(1, store, items)

	into := replace.NewStore()
	require.NoError(t, into.Add(replace.Replacement{FilePath: "stale.cu", Offset: 1, Text: "z"}))
	bag := diag.NewBag()
	bag.Report(diag.Diagnostic{Path: "stale.cu"})

	require.NoError(t, r.Restore(into, bag))
	assert.Equal(t, []string{"a.cu", "b.cu"}, into.Files())
	assert.Equal(t, store.For("a.cu"), into.For("a.cu"))
	assert.Equal(t, items, bag.Items())
}
