package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/squeaker/squeaker/internal/maintain"
)

var (
	gcDryRun           bool
	gcDeleteUnrefURLs  bool
	gcDeleteAllURLs    bool
	gcDiscardAllInter  bool
	gcKeepIntermediate int
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Garbage-collect unreachable stages and images",
	Long: `Marks stages and image blobs reachable from the tags (and, by default,
from every downloaded URL stage), then deletes the rest. Intermediate
image blobs beyond --keep-intermediate steps from a tag are dropped;
their stage records are kept so they can be replayed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if gcDeleteUnrefURLs && gcDeleteAllURLs {
			return errors.New("--delete-unreferenced-urls and --delete-all-urls are mutually exclusive")
		}
		if gcDiscardAllInter && cmd.Flags().Changed("keep-intermediate") {
			return errors.New("--discard-all-intermediate and --keep-intermediate are mutually exclusive")
		}

		opts := maintain.GCOptions{
			KeepIntermediate: gcKeepIntermediate,
			DryRun:           gcDryRun,
		}
		if gcDiscardAllInter {
			opts.KeepIntermediate = 0
		}
		switch {
		case gcDeleteUnrefURLs:
			opts.URLs = maintain.URLDeleteUnreferenced
		case gcDeleteAllURLs:
			opts.URLs = maintain.URLDeleteAll
		}

		store, err := newStore()
		if err != nil {
			return err
		}
		result, err := newMaintainer(store).GC(opts)
		if err != nil {
			return err
		}

		if gcDryRun {
			for _, img := range result.DoomedImages {
				fmt.Fprintln(cmd.OutOrStdout(), "image", img)
			}
			for _, sd := range result.DoomedStages {
				fmt.Fprintln(cmd.OutOrStdout(), "stage", sd)
			}
			logger.Info("dry run, nothing deleted", "doomed", result.String())
			return nil
		}
		logger.Info("collected", "deleted", result.String())
		return nil
	},
}

func init() {
	gcCmd.Flags().BoolVarP(&gcDryRun, "dry-run", "n", false, "list what would be deleted without acting")
	gcCmd.Flags().BoolVar(&gcDeleteUnrefURLs, "delete-unreferenced-urls", false, "delete downloads no tag depends on")
	gcCmd.Flags().BoolVar(&gcDeleteAllURLs, "delete-all-urls", false, "delete all downloaded image blobs")
	gcCmd.Flags().BoolVar(&gcDiscardAllInter, "discard-all-intermediate", false, "keep only tagged tip images")
	gcCmd.Flags().IntVar(&gcKeepIntermediate, "keep-intermediate", -1, "keep intermediate images up to N steps from a tag (-1 keeps all)")

	rootCmd.AddCommand(gcCmd)
}
