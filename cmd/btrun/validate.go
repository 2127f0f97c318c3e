package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/behaviour/internal/core/bt"
)

var validateCmd = &cobra.Command{
	Use:   "validate <template>...",
	Short: "Build templates and print their trees",
	Long:  `Loads each template, builds the tree and prints it in execution order. Every broken template is reported.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		var errs []error
		for _, path := range args {
			tree, err := buildTemplate(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(out, "%s (%d nodes)\n%s", tree.Name(), tree.Len(), tree.Format())
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func buildTemplate(path string) (*bt.Tree, error) {
	tpl, err := bt.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return tpl.Build()
}
