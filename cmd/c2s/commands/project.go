package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/l3aro/cuda2sycl/internal/config"
	"github.com/l3aro/cuda2sycl/internal/log"
	"github.com/l3aro/cuda2sycl/internal/scanner"
	"github.com/l3aro/cuda2sycl/pkg/cache"
	"github.com/l3aro/cuda2sycl/pkg/migrate"
	"github.com/l3aro/cuda2sycl/pkg/rules"
	"github.com/l3aro/cuda2sycl/pkg/session"
)

// project is a loaded input tree ready to be migrated.
type project struct {
	cfg     *config.Config
	log     log.Logger
	m       *migrate.Migrator
	inRoot  string
	outRoot string
	files   []scanner.FileInfo
}

// sessionOptions maps the configuration onto session options.
func sessionOptions(cfg *config.Config) session.Options {
	opts := session.DefaultOptions()
	opts.USM = cfg.USM
	opts.OneDimItems = cfg.AssumeNdRangeDim == 1
	opts.MaxRounds = cfg.MaxRounds
	opts.ParamLimit = int64(cfg.KernelParamLimit)
	return opts
}

// openProject loads the rule files, then scans and reads the input tree.
// Rule files are loaded first so that a broken one fails before any source
// is touched.
func openProject(ctx context.Context, cfg *config.Config, logger log.Logger) (*project, error) {
	reg := rules.NewDefaultRegistry()
	n, err := rules.LoadInto(reg, cfg.RuleFiles...)
	if err != nil {
		return nil, err
	}
	if len(cfg.RuleFiles) > 0 {
		logger.Debug("loaded user rules", "files", len(cfg.RuleFiles), "rules", n)
	}

	inRoot, err := filepath.Abs(cfg.InRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving input root: %w", err)
	}
	outRoot, err := filepath.Abs(cfg.OutRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving output root: %w", err)
	}
	info, err := os.Stat(inRoot)
	if err != nil {
		return nil, fmt.Errorf("input root: %w", err)
	}
	if !info.IsDir() {
		return nil, &usageError{fmt.Errorf("input root is not a directory: %s", cfg.InRoot)}
	}

	opts := scanner.DefaultOptions()
	opts.Extensions = cfg.Extensions
	opts.Exclude = []string{outRoot}
	if cfg.CacheDir != "" {
		opts.Exclude = append(opts.Exclude, cfg.CacheDir)
	}
	files, err := scanner.New(opts).Scan(inRoot)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", cfg.InRoot, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no source files with extensions %s under %s", strings.Join(cfg.Extensions, ","), cfg.InRoot)
	}

	m := migrate.New(session.New(sessionOptions(cfg), reg), logger)
	m.Workers = cfg.Jobs
	if m.Workers == 0 {
		m.Workers = runtime.NumCPU()
	}
	m.InlineDiagnostics = cfg.InlineDiagnostics
	for _, f := range files {
		if err := m.Load(ctx, f.FullPath, f.FullPath); err != nil {
			return nil, err
		}
	}
	logger.Debug("loaded inputs", "root", inRoot, "files", len(files))

	return &project{cfg: cfg, log: logger, m: m, inRoot: inRoot, outRoot: outRoot, files: files}, nil
}

// fingerprint returns the cache key of the project's inputs, rule files and
// output-affecting options.
func (p *project) fingerprint() (string, error) {
	fp := cache.NewFingerprint()
	for _, f := range p.m.S.Files.Files() {
		rel, err := filepath.Rel(p.inRoot, f.Path)
		if err != nil {
			rel = f.Path
		}
		fp.AddInput(filepath.ToSlash(rel), f.Content)
	}
	for _, path := range p.cfg.RuleFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading rule file %s: %w", path, err)
		}
		fp.AddRules(path, data)
	}
	fp.AddOption("root=" + p.inRoot)
	fp.AddOption("usm=" + strconv.FormatBool(p.cfg.USM))
	fp.AddOption("dim=" + strconv.Itoa(p.cfg.AssumeNdRangeDim))
	fp.AddOption("rounds=" + strconv.Itoa(p.cfg.MaxRounds))
	fp.AddOption("param_limit=" + strconv.Itoa(p.cfg.KernelParamLimit))
	fp.AddOption("inline=" + strconv.FormatBool(p.cfg.InlineDiagnostics))
	return fp.Key()
}
