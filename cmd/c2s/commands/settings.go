package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/l3aro/cuda2sycl/internal/config"
)

// addProjectFlags registers the flags shared by commands that analyze a
// source tree. Their defaults are shown for reference only; unset flags
// leave the loaded configuration alone.
func addProjectFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	f := cmd.Flags()
	f.String("config", "", "Config file to use instead of the global and project ones")
	f.Bool("usm", def.USM, "Use unified shared memory; false selects the buffer model")
	f.Int("assume-nd-range-dim", def.AssumeNdRangeDim, "nd_item dimension for kernels that are not provably 1-D (1 or 3)")
	f.StringSlice("rule-file", nil, "User rule file (repeatable)")
	f.Int("max-rounds", def.MaxRounds, "Maximum number of analysis rounds")
	f.Int("kernel-param-limit", def.KernelParamLimit, "Kernel argument budget in bytes")
	f.StringSlice("extensions", def.Extensions, "Source file extensions to migrate")
	f.Int("jobs", def.Jobs, "Parallel parser workers (0 = one per CPU)")
}

// addOutputFlags registers the flags of commands that write results.
func addOutputFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	f := cmd.Flags()
	f.StringP("out-root", "o", def.OutRoot, "Directory receiving the migrated tree")
	f.String("cache-dir", def.CacheDir, "Result cache directory")
	f.Bool("use-cache", def.UseCache, "Reuse the result of an identical earlier run")
	f.String("report-file", "", "Write the diagnostics report to this file")
	f.String("report-format", def.ReportFormat, "Report format: text or json")
	f.Bool("export-replacements", def.ExportReplacements, "Write YAML replacement sets next to the outputs")
	f.Bool("inline-diagnostics", def.InlineDiagnostics, "Insert a comment above every line with a warning")
}

// resolveConfig loads the configuration files and environment, then applies
// the flags the user set. args[0], when present, is the input root.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	f := cmd.Flags()
	var cfg *config.Config
	var err error
	if path, _ := f.GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if len(args) > 0 {
		cfg.InRoot = args[0]
	}

	strs := map[string]*string{
		"out-root":      &cfg.OutRoot,
		"cache-dir":     &cfg.CacheDir,
		"report-file":   &cfg.ReportFile,
		"report-format": &cfg.ReportFormat,
	}
	ints := map[string]*int{
		"assume-nd-range-dim": &cfg.AssumeNdRangeDim,
		"max-rounds":          &cfg.MaxRounds,
		"kernel-param-limit":  &cfg.KernelParamLimit,
		"jobs":                &cfg.Jobs,
	}
	bools := map[string]*bool{
		"usm":                 &cfg.USM,
		"use-cache":           &cfg.UseCache,
		"export-replacements": &cfg.ExportReplacements,
		"inline-diagnostics":  &cfg.InlineDiagnostics,
		"verbose":             &cfg.Verbose,
	}
	lists := map[string]*[]string{
		"rule-file":  &cfg.RuleFiles,
		"extensions": &cfg.Extensions,
	}

	var flagErr error
	f.Visit(func(fl *pflag.Flag) {
		if flagErr != nil {
			return
		}
		name := fl.Name
		switch {
		case strs[name] != nil:
			*strs[name], flagErr = f.GetString(name)
		case ints[name] != nil:
			*ints[name], flagErr = f.GetInt(name)
		case bools[name] != nil:
			*bools[name], flagErr = f.GetBool(name)
		case lists[name] != nil:
			*lists[name], flagErr = f.GetStringSlice(name)
		}
	})
	if flagErr != nil {
		return nil, &usageError{flagErr}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
