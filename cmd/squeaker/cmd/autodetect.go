package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/squeaker/squeaker/internal/vm"
)

var printAutodetectCmd = &cobra.Command{
	Use:   "print-autodetect",
	Short: "Print the autodetected VM executable path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := vm.Autodetect()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(printAutodetectCmd)
}
