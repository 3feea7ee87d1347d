package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/cuda2sycl/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "c2s",
	Short: "c2s - CUDA to SYCL source migration",
	Long: `c2s rewrites CUDA C++ sources into SYCL C++ that uses the dpct helper headers.

Commands:
  migrate     Migrate a source tree
  graph       Show device functions, their variables and dispatch dimension
  rules       List built-in and user rules or check rule files
  init        Create a project configuration interactively
  version     Print version information

Use "c2s [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().BoolP("verbose", "V", false, "Verbose logging")
	RootCmd.PersistentFlags().Bool("log-json", false, "Write log lines as JSON")
	RootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	RootCmd.AddCommand(migrateCmd)
	RootCmd.AddCommand(graphCmd)
	RootCmd.AddCommand(rulesCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(versionCmd)
}

// newLogger builds the logger for a command run.
func newLogger(cmd *cobra.Command, verbose bool) log.Logger {
	jsonOut, _ := cmd.Flags().GetBool("log-json")
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: jsonOut,
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
	})
}
