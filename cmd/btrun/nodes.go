package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zeusync/behaviour/internal/core/bt"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the built-in node types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tTYPE\tNAME\tKIND")
		for _, info := range bt.Builtins().Types() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Category, info.Name, info.DisplayName(), info.Kind)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}
