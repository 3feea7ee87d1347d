package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/cuda2sycl/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a c2s configuration interactively",
	Long: `Guides you through the migration settings and saves them to ./.c2s/config.yaml,
or to ~/.c2s/config.yaml with --global.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		path := config.ProjectConfigFilePath()
		if global {
			path = config.GlobalConfigFilePath()
		}
		cfg, err := promptConfig(config.DefaultConfig())
		if err != nil {
			return err
		}
		return saveInitConfig(cmd.OutOrStdout(), cfg, path)
	},
}

func init() {
	initCmd.Flags().Bool("global", false, "Write the global configuration instead of the project one")
}

// promptConfig asks for the settings a project usually changes, starting
// from base.
func promptConfig(base *config.Config) (*config.Config, error) {
	cfg := *base
	memory := "usm"
	if !cfg.USM {
		memory = "buffer"
	}
	dim := strconv.Itoa(cfg.AssumeNdRangeDim)
	ruleFiles := strings.Join(cfg.RuleFiles, ",")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Input root").
				Description("Directory holding the CUDA sources").
				Value(&cfg.InRoot),
			huh.NewInput().
				Title("Output root").
				Description("Directory receiving the migrated tree").
				Value(&cfg.OutRoot),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Memory model").
				Options(
					huh.NewOption("Unified shared memory (pointers)", "usm"),
					huh.NewOption("Buffers and accessors", "buffer"),
				).
				Value(&memory),
			huh.NewSelect[string]().
				Title("nd_item dimension for kernels").
				Description("1 lets provably one-dimensional kernels use nd_item<1>").
				Options(
					huh.NewOption("3 (always)", "3"),
					huh.NewOption("1 where possible", "1"),
				).
				Value(&dim),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("User rule files (comma separated, optional)").
				Value(&ruleFiles),
			huh.NewSelect[string]().
				Title("Report format").
				Options(
					huh.NewOption("Text", config.ReportText),
					huh.NewOption("JSON", config.ReportJSON),
				).
				Value(&cfg.ReportFormat),
			huh.NewConfirm().
				Title("Write YAML replacement sets next to the outputs?").
				Value(&cfg.ExportReplacements),
			huh.NewConfirm().
				Title("Insert warnings as comments into the migrated code?").
				Value(&cfg.InlineDiagnostics),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.USM = memory == "usm"
	cfg.AssumeNdRangeDim, _ = strconv.Atoi(dim)
	cfg.RuleFiles = nil
	for _, f := range strings.Split(ruleFiles, ",") {
		if f = strings.TrimSpace(f); f != "" {
			cfg.RuleFiles = append(cfg.RuleFiles, f)
		}
	}
	return &cfg, nil
}

// saveInitConfig validates cfg, prints a preview and writes it to path.
func saveInitConfig(w io.Writer, cfg *config.Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	memory := "usm"
	if !cfg.USM {
		memory = "buffer"
	}
	fmt.Fprintln(w, "\n=== Configuration Preview ===")
	fmt.Fprintf(w, "Config path: %s\n", path)
	fmt.Fprintf(w, "Input root: %s\n", cfg.InRoot)
	fmt.Fprintf(w, "Output root: %s\n", cfg.OutRoot)
	fmt.Fprintf(w, "Memory model: %s\n", memory)
	fmt.Fprintf(w, "nd_item dimension: %d\n", cfg.AssumeNdRangeDim)
	if len(cfg.RuleFiles) > 0 {
		fmt.Fprintf(w, "Rule files: %s\n", strings.Join(cfg.RuleFiles, ", "))
	}
	fmt.Fprintf(w, "Report format: %s\n", cfg.ReportFormat)
	fmt.Fprintln(w, "================================")

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fmt.Fprintf(w, "Configuration saved to: %s\n", abs)
	return nil
}
