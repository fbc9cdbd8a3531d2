package cmd

import (
	"github.com/spf13/cobra"

	"github.com/squeaker/squeaker/internal/dot"
)

var dotCmd = &cobra.Command{
	Use:   "dot",
	Short: "Emit the derivation graph as Graphviz DOT",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}
		return dot.Write(cmd.OutOrStdout(), store)
	},
}

func init() {
	rootCmd.AddCommand(dotCmd)
}
