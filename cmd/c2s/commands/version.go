package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = ""
)

// SetVersion records the build information printed by "c2s version".
func SetVersion(v, built string) {
	version, buildTime = v, built
	RootCmd.Version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if buildTime != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "c2s version %s (built %s)\n", version, buildTime)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "c2s version %s\n", version)
	},
}
