package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/cuda2sycl/pkg/usage"
)

// FunctionNode is one device function in the graph output.
type FunctionNode struct {
	Name   string    `json:"name"`
	Key    string    `json:"key"`
	Kernel bool      `json:"kernel"`
	Dim    int       `json:"dim"`
	Vars   []VarNode `json:"vars,omitempty"`
	Calls  []string  `json:"calls,omitempty"`
}

// VarNode is one device variable used by a function.
type VarNode struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [in-root]",
	Short: "Show device functions, their variables and dispatch dimension",
	Long: `Analyzes the input tree without writing anything and prints every device
function with the device variables it uses (directly or through callees), the
functions it calls and the nd_item dimension its group is dispatched with.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, args)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, cfg.Verbose)
		p, err := openProject(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		if _, err := p.m.Run(cmd.Context()); err != nil {
			return err
		}

		nodes := graphNodes(p.m.S.Graph)
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		}
		return outputGraphText(cmd.OutOrStdout(), nodes)
	},
}

func init() {
	addProjectFlags(graphCmd)
	graphCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

// graphNodes lists the functions of g in registration order.
func graphNodes(g *usage.Graph) []FunctionNode {
	var out []FunctionNode
	for _, f := range g.Functions() {
		n := FunctionNode{
			Name:   f.Name,
			Key:    f.Key.String(),
			Kernel: f.IsKernel,
			Dim:    g.Dim(f),
		}
		for _, c := range []usage.Category{usage.GlobalVars, usage.LocalVars, usage.ExternVars, usage.TextureVars} {
			for _, v := range f.Vars.Vars(c) {
				n.Vars = append(n.Vars, VarNode{Name: v.DisplayName(), Kind: v.Kind.String(), Type: v.Type})
			}
		}
		for _, cs := range f.Calls() {
			n.Calls = append(n.Calls, cs.Callee.Name)
		}
		out = append(out, n)
	}
	return out
}

func outputGraphText(w io.Writer, nodes []FunctionNode) error {
	for _, n := range nodes {
		kind := "device"
		if n.Kernel {
			kind = "kernel"
		}
		if _, err := fmt.Fprintf(w, "%s %s  nd_item<%d>  %s\n", kind, n.Name, n.Dim, n.Key); err != nil {
			return err
		}
		for _, v := range n.Vars {
			fmt.Fprintf(w, "    uses %s %s %s\n", v.Kind, v.Type, v.Name)
		}
		for _, c := range n.Calls {
			fmt.Fprintf(w, "    calls %s\n", c)
		}
	}
	return nil
}
