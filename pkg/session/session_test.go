package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

func TestNewAppliesDefaults(t *testing.T) {
	s := New(Options{}, nil)
	assert.Equal(t, DefaultMaxRounds, s.Opts.MaxRounds)
	assert.True(t, s.Rules.Has("cudaMalloc"))
	assert.Zero(t, s.Round())
	assert.False(t, s.NeedRunAgain())

	d := DefaultOptions()
	assert.True(t, d.USM)
	assert.EqualValues(t, 1024, d.ParamLimit)
}

func TestBeginRoundDropsPerPassState(t *testing.T) {
	s := New(DefaultOptions(), nil)
	s.BeginRound()
	require.NoError(t, s.Store.Add(replace.Replacement{FilePath: "a.cu", Offset: 1, Length: 1, Text: "x"}))
	s.Diags.Report(diag.Diagnostic{Code: diag.UnsupportedAPI})
	s.Graph.Register(usage.Key{Path: "a.cu", Offset: 4}, &ast.FunctionDecl{Name: "k", Attrs: ast.AttrGlobal})
	s.RNG.Observe("a.cu:10", "mcg59", 4)
	s.RequestRunAgain()
	assert.True(t, s.NeedRunAgain())

	s.BeginRound()
	assert.Equal(t, 2, s.Round())
	assert.Zero(t, s.Store.Len())
	assert.Zero(t, s.Diags.Len())
	assert.Empty(t, s.Graph.Functions())
	assert.False(t, s.NeedRunAgain())
	assert.Equal(t, []int{4}, s.RNG.Widths("mcg59"), "library observations survive rounds")
}

func TestLibraryTablesDriveRunAgain(t *testing.T) {
	s := New(DefaultOptions(), nil)
	s.BeginRound()
	assert.Equal(t, "1", s.RNG.Spell("philox4x32x10"))
	s.RNG.Observe("a.cu:20", "philox4x32x10", 2)
	assert.True(t, s.NeedRunAgain())

	s.BeginRound()
	assert.Equal(t, "2", s.RNG.Spell("philox4x32x10"))
	assert.False(t, s.NeedRunAgain())
}

func TestRoundLimit(t *testing.T) {
	s := New(Options{MaxRounds: 2}, nil)
	s.BeginRound()
	assert.True(t, s.CanRunAgain())
	s.BeginRound()
	assert.False(t, s.CanRunAgain())

	s.Reset()
	assert.Zero(t, s.Round())
	assert.True(t, s.CanRunAgain())
}

func TestResetClearsObservations(t *testing.T) {
	s := New(DefaultOptions(), nil)
	s.BeginRound()
	s.RNG.Observe("a.cu:10", "mcg59", 4)
	s.FFT.Handle("::plan").Transform = "CUFFT_C2C"

	s.Reset()
	assert.Empty(t, s.RNG.Widths("mcg59"))
	assert.Nil(t, s.FFT.Lookup("::plan"))
	assert.Empty(t, s.FFT.Handles())
}
