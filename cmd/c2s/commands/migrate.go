package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/cuda2sycl/internal/config"
	"github.com/l3aro/cuda2sycl/internal/log"
	"github.com/l3aro/cuda2sycl/pkg/cache"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/output"
)

// cacheEntries bounds the results kept in the cache directory.
const cacheEntries = 16

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate [in-root]",
	Short: "Migrate a CUDA source tree to SYCL",
	Long: `Migrates every CUDA, C and C++ file under the input root and writes the result
under the output root. .cu files become .dp.cpp and .cuh files become .dp.hpp.
Warnings are printed and, unless disabled, inserted as comments into the output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, args)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, cfg.Verbose)
		return runMigrate(cmd.Context(), cmd, cfg, logger)
	},
}

func init() {
	addProjectFlags(migrateCmd)
	addOutputFlags(migrateCmd)
}

// migrateSummary describes a finished run.
type migrateSummary struct {
	Files        int
	Written      []string
	Rounds       int
	Replacements int
	Diagnostics  []diag.Diagnostic
	Cached       bool
}

func runMigrate(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := openProject(ctx, cfg, logger)
	if err != nil {
		return err
	}

	spinner := log.NewProgressSpinnerTo(cmd.ErrOrStderr(), fmt.Sprintf("Migrating %d files...", len(p.files)))
	spinner.Start()
	sum, err := p.migrate(ctx, spinner)
	spinner.Stop()
	if err != nil {
		return err
	}

	if err := diag.WriteText(cmd.ErrOrStderr(), sum.Diagnostics, true); err != nil {
		return err
	}
	if cfg.ReportFile != "" {
		loc, err := filepath.Abs(cfg.ReportFile)
		if err != nil {
			return fmt.Errorf("resolving report file: %w", err)
		}
		w := output.NewWriter(p.inRoot, p.outRoot)
		if err := w.WriteReport(ctx, loc, sum.Diagnostics, cfg.ReportFormat); err != nil {
			return err
		}
		logger.Debug("wrote report", "path", loc)
	}

	note := ""
	if sum.Cached {
		note = ", cached"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d files into %s (%d rounds, %d replacements, %d diagnostics%s)\n",
		sum.Files, cfg.OutRoot, sum.Rounds, sum.Replacements, len(sum.Diagnostics), note)
	return nil
}

// migrate runs or restores the migration and writes the output tree.
func (p *project) migrate(ctx context.Context, spinner *log.ProgressSpinner) (*migrateSummary, error) {
	s := p.m.S
	sum := &migrateSummary{Files: len(p.files)}

	var results *cache.Cache
	key := ""
	if p.cfg.UseCache {
		results = cache.New(cache.Options{MaxEntries: cacheEntries})
		if err := results.LoadDir(p.cfg.CacheDir); err != nil {
			p.log.Warn("ignoring unreadable result cache", "dir", p.cfg.CacheDir, "error", err)
			results.Clear()
		}
		k, err := p.fingerprint()
		if err != nil {
			return nil, err
		}
		key = k
		if hit, ok := results.Get(key); ok {
			if err := hit.Restore(s.Store, s.Diags); err != nil {
				p.log.Warn("discarding cached result", "key", key, "error", err)
			} else {
				sum.Cached = true
				sum.Rounds = hit.Rounds
				p.log.Info("reusing cached result", "key", key)
			}
		}
	}

	if !sum.Cached {
		res, err := p.m.Run(ctx)
		if err != nil {
			return nil, err
		}
		sum.Rounds = res.Rounds
		if res.Conflicts > 0 {
			p.log.Warn("conflicting replacements dropped", "count", res.Conflicts)
		}
		if results != nil {
			results.Put(key, cache.Capture(res.Rounds, s.Store, res.Diagnostics))
			if err := results.SaveDir(p.cfg.CacheDir); err != nil {
				p.log.Warn("could not save result cache", "dir", p.cfg.CacheDir, "error", err)
			}
		}
	}
	sum.Replacements = s.Store.Len()
	sum.Diagnostics = s.Diags.Items()

	spinner.Message("Writing output...")
	w := output.NewWriter(p.inRoot, p.outRoot)
	written, err := w.Write(ctx, s.Files, s.Store)
	if err != nil {
		return nil, err
	}
	sum.Written = written
	for _, path := range written {
		p.log.Debug("wrote file", "path", path)
	}
	if p.cfg.ExportReplacements {
		exported, err := w.Export(ctx, s.Store)
		if err != nil {
			return nil, err
		}
		p.log.Debug("exported replacement sets", "files", len(exported))
	}
	return sum, nil
}
