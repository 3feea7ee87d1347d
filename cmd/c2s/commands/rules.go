package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/l3aro/cuda2sycl/internal/config"
	"github.com/l3aro/cuda2sycl/pkg/rules"
)

// rulesCmd groups the rule commands
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List or check migration rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in rules and the rules of configured rule files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		extra, _ := cmd.Flags().GetStringSlice("rule-file")
		files := append(append([]string(nil), cfg.RuleFiles...), extra...)

		reg := rules.NewDefaultRegistry()
		if _, err := rules.LoadInto(reg, files...); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tNAME\tPRIORITY\tORIGIN")
		for _, r := range reg.Rules() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Kind, r.Name, r.Priority, r.Origin)
		}
		return tw.Flush()
	},
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Validate rule files without migrating anything",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			f, err := rules.LoadFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules OK\n", path, len(f.Rules))
		}
		return nil
	},
}

func init() {
	rulesListCmd.Flags().StringSlice("rule-file", nil, "Additional rule file (repeatable)")
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
}
