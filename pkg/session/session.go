// Package session holds the state one migration run accumulates: the usage
// graph, the library side tables, the replacement store and diagnostics.
// Nothing in the core is package-global; every component reaches this state
// through the Session it was built with.
package session

import (
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/fft"
	"github.com/l3aro/cuda2sycl/pkg/launch"
	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/rng"
	"github.com/l3aro/cuda2sycl/pkg/rules"
	"github.com/l3aro/cuda2sycl/pkg/source"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// DefaultMaxRounds bounds the number of passes over the inputs.
const DefaultMaxRounds = 3

// Options select the target memory model and pass limits.
type Options struct {
	// USM emits unified shared memory pointers instead of buffers.
	USM bool
	// OneDimItems dispatches provably one-dimensional kernels with
	// nd_item<1>.
	OneDimItems bool
	MaxRounds   int
	// ParamLimit is the kernel argument budget in bytes.
	ParamLimit int64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		USM:        true,
		MaxRounds:  DefaultMaxRounds,
		ParamLimit: launch.DefaultParamLimit,
	}
}

// Session is the state of one migration run. Tables that link facts across
// call sites survive rounds; the store and diagnostics are rebuilt by every
// round.
type Session struct {
	Opts  Options
	Files *source.FileSet
	Rules *rules.Registry
	Graph *usage.Graph
	FFT   *fft.Table
	RNG   *rng.Table
	Store *replace.Store
	Diags *diag.Bag

	round    int
	runAgain bool
}

// New creates a session over reg. A nil reg gets the builtin rules.
func New(opts Options, reg *rules.Registry) *Session {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if reg == nil {
		reg = rules.NewDefaultRegistry()
	}
	return &Session{
		Opts:  opts,
		Files: source.NewFileSet(),
		Rules: reg,
		Graph: usage.NewGraph(),
		FFT:   fft.NewTable(),
		RNG:   rng.NewTable(),
		Store: replace.NewStore(),
		Diags: diag.NewBag(),
	}
}

// Round returns the number of the current round, starting at 1. It is 0
// before the first round.
func (s *Session) Round() int { return s.round }

// BeginRound starts the next pass. Replacements and diagnostics of the
// previous pass are dropped, the usage graph is rediscovered, and the
// library tables keep what they observed.
func (s *Session) BeginRound() {
	s.round++
	s.runAgain = false
	s.Store.Reset()
	s.Diags.Reset()
	s.Graph.Reset()
	s.FFT.BeginRound()
	s.RNG.BeginRound()
}

// RequestRunAgain asks for another round.
func (s *Session) RequestRunAgain() { s.runAgain = true }

// NeedRunAgain reports whether text emitted this round was based on facts
// that later observations changed.
func (s *Session) NeedRunAgain() bool {
	return s.runAgain || s.FFT.NeedRunAgain() || s.RNG.NeedRunAgain()
}

// CanRunAgain reports whether the round limit allows another pass.
func (s *Session) CanRunAgain() bool { return s.round < s.Opts.MaxRounds }

// Reset returns the session to its initial state, keeping options, rules
// and loaded files.
func (s *Session) Reset() {
	s.round = 0
	s.runAgain = false
	s.Store.Reset()
	s.Diags.Reset()
	s.Graph.Reset()
	s.FFT.Reset()
	s.RNG.Reset()
}
