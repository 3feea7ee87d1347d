// Package migrate drives a migration run. Inputs are parsed in parallel,
// then every translation unit goes through discovery and synthesis rounds
// until no library builder asks for another pass or the round limit is hit.
package migrate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/cuda2sycl/internal/log"
	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/expr"
	"github.com/l3aro/cuda2sycl/pkg/fft"
	"github.com/l3aro/cuda2sycl/pkg/frontend"
	"github.com/l3aro/cuda2sycl/pkg/launch"
	"github.com/l3aro/cuda2sycl/pkg/rng"
	"github.com/l3aro/cuda2sycl/pkg/session"
	"github.com/l3aro/cuda2sycl/pkg/srcloc"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// Migrator runs one session over a set of input files.
type Migrator struct {
	S   *session.Session
	Log log.Logger
	// Workers bounds parallel parsing. Zero means no limit.
	Workers int
	// InlineDiagnostics inserts a comment above the line of every warning.
	InlineDiagnostics bool

	fe    *frontend.Frontend
	paths []string
	units []*ast.TranslationUnit
}

// Result summarizes a run.
type Result struct {
	Rounds       int
	Files        []string
	Replacements int
	// Conflicts counts replacements rejected by the store in the last round.
	Conflicts   int
	Diagnostics []diag.Diagnostic
}

// New creates a Migrator over s. A nil logger uses the default one.
func New(s *session.Session, logger log.Logger) *Migrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Migrator{S: s, Log: logger, fe: frontend.New(s.Files)}
}

// AddSource registers content as an input file.
func (m *Migrator) AddSource(path string, content []byte) error {
	if _, err := m.S.Files.Add(path, content); err != nil {
		return fmt.Errorf("adding %s: %w", path, err)
	}
	m.paths = append(m.paths, path)
	m.units = nil
	return nil
}

// Load reads the input at url and registers it under path.
func (m *Migrator) Load(ctx context.Context, url, path string) error {
	if _, err := m.fe.Load(ctx, url, path); err != nil {
		return err
	}
	m.paths = append(m.paths, path)
	m.units = nil
	return nil
}

// Units returns the translation units built by Parse.
func (m *Migrator) Units() []*ast.TranslationUnit { return m.units }

// Parse parses every input concurrently and builds the translation units.
func (m *Migrator) Parse(ctx context.Context) error {
	trees := make([]*frontend.Tree, len(m.paths))
	g, gctx := errgroup.WithContext(ctx)
	if m.Workers > 0 {
		g.SetLimit(m.Workers)
	}
	for i, p := range m.paths {
		i, p := i, p
		g.Go(func() error {
			t, err := m.fe.Parse(gctx, p)
			if err != nil {
				return err
			}
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, t := range trees {
			if t != nil {
				t.Close()
			}
		}
		return err
	}
	m.units = m.fe.Build(trees)
	m.Log.Debug("parsed inputs", "files", len(m.units))
	return nil
}

// Run migrates every input. The session's store and diagnostic bag hold the
// outcome afterwards.
//
// Discovery covers every unit before any unit is synthesized, and the
// library tables keep what they saw across rounds, so facts spread over
// several units, such as an FFT plan made in one file and executed in
// another, are all known by the first synthesis. Another round runs only
// when a table reports text spelled from facts that changed after it was
// emitted, or a builder calls Session.RequestRunAgain. MaxRounds bounds the
// loop either way.
func (m *Migrator) Run(ctx context.Context) (*Result, error) {
	if m.units == nil {
		if err := m.Parse(ctx); err != nil {
			return nil, err
		}
	}
	s := m.S
	s.Reset()
	res := &Result{}
	for {
		conflicts, err := m.round(ctx)
		if err != nil {
			return nil, err
		}
		res.Conflicts = conflicts
		m.Log.Debug("round finished", "round", s.Round(), "replacements", s.Store.Len(), "conflicts", conflicts)
		if !s.NeedRunAgain() {
			break
		}
		if !s.CanRunAgain() {
			m.Log.Warn("round limit reached with facts still changing", "rounds", s.Round())
			break
		}
		m.Log.Info("running again", "round", s.Round()+1)
	}

	s.Diags.Sort()
	s.Diags.Dedup()
	if m.InlineDiagnostics {
		m.inlineDiagnostics()
	}
	s.Store.PostProcess()

	res.Rounds = s.Round()
	res.Files = s.Store.Files()
	res.Replacements = s.Store.Len()
	res.Diagnostics = s.Diags.Items()
	return res, nil
}

// round runs discovery over every unit, finalizes the usage graph and then
// synthesizes replacements. It returns the number of rejected replacements.
func (m *Migrator) round(ctx context.Context) (int, error) {
	s := m.S
	s.BeginRound()
	a := m.analyzer()

	for _, tu := range m.units {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m.discover(a, tu)
	}
	s.Graph.BuildUnionFindSet()
	s.Graph.BuildAll(nil)

	conflicts := 0
	for _, tu := range m.units {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		a.Reset()
		m.synthesize(a, tu)
		conflicts += a.ApplyAllSubExprRepl(s.Store)
	}
	return conflicts, nil
}

// analyzer builds a fresh analyzer with the launch and library builders
// installed.
func (m *Migrator) analyzer() *expr.Analyzer {
	s := m.S
	r := srcloc.New(s.Files)
	a := expr.New(r, s.Rules, s.Graph)
	a.Diag = diag.Emitter{R: s.Diags, L: r}
	a.USM = s.Opts.USM
	a.OneDimItems = s.Opts.OneDimItems

	lb := launch.New(a)
	lb.ParamLimit = s.Opts.ParamLimit
	lb.Install()
	fft.New(a, s.FFT).Install()
	rng.New(a, s.RNG).Install()
	return a
}

func (m *Migrator) discover(a *expr.Analyzer, tu *ast.TranslationUnit) {
	for _, d := range tu.Decls {
		fn, ok := d.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		var info *usage.DeviceFunctionInfo
		if fn.IsDevice() {
			info = m.S.Graph.Register(a.FuncKey(fn), fn.Root())
		}
		a.Discover(fn, info)
	}
}

func (m *Migrator) synthesize(a *expr.Analyzer, tu *ast.TranslationUnit) {
	roots := make([]ast.Node, 0, len(tu.Decls))
	for _, d := range tu.Decls {
		roots = append(roots, d)
	}
	a.SetParents(ast.NewParentMap(roots...))

	m.includes(a, tu)
	for _, group := range declGroups(tu.Decls) {
		switch d := group[0].(type) {
		case *ast.FunctionDecl:
			m.function(a, d)
		case *ast.VarDecl:
			m.globals(a, group)
		}
	}
}

// declGroups splits decls into runs sharing one declaration statement, so
// that "__device__ int a, b;" is rewritten as a whole.
func declGroups(decls []ast.Decl) [][]ast.Decl {
	var out [][]ast.Decl
	for _, d := range decls {
		if v, ok := d.(*ast.VarDecl); ok && len(out) > 0 {
			last := out[len(out)-1]
			if pv, ok := last[0].(*ast.VarDecl); ok && pv.Range() == v.Range() {
				out[len(out)-1] = append(last, d)
				continue
			}
		}
		out = append(out, []ast.Decl{d})
	}
	return out
}
