package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}
		tags, err := newMaintainer(store).Tags()
		if err != nil {
			return err
		}
		for _, tag := range tags {
			fmt.Fprintln(cmd.OutOrStdout(), tag.Name)
		}
		return nil
	},
}

var resolveTagCmd = &cobra.Command{
	Use:   "resolve-tag TAG",
	Short: "Print the image digest a tag points at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}
		tag, err := newMaintainer(store).ResolveTag(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tag.ImageDigest)
		return nil
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag TAG...",
	Short: "Remove tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}
		return newMaintainer(store).Untag(args...)
	},
}

var unstageCmd = &cobra.Command{
	Use:   "unstage DIGEST...",
	Short: "Remove stage records by digest prefix",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}
		resolved, err := newMaintainer(store).Unstage(args...)
		for _, full := range resolved {
			fmt.Fprintln(cmd.OutOrStdout(), full)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(resolveTagCmd)
	rootCmd.AddCommand(untagCmd)
	rootCmd.AddCommand(unstageCmd)
}
