package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/squeaker/squeaker/internal/archive"
)

var createVM string

var createCmd = &cobra.Command{
	Use:   "create IMAGE DIR",
	Short: "Export a cached image into a directory",
	Long: `Materializes the referenced image (tag name or image-digest prefix) and
extracts its squeak.image and squeak.changes into DIR. Existing files
with those names are left alone.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}

		dir, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolving destination: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}

		vmPath, err := resolveVM(createVM)
		if err != nil {
			// Exporting a present blob needs no VM; autodetection may
			// legitimately fail on machines that only export.
			logger.Debug("no vm available for replay", "err", err)
			vmPath = ""
		}
		resolver := newResolver(store, dir, vmPath, true)
		imageDigest, err := materializeRef(cmd.Context(), store, resolver, args[0])
		if err != nil {
			return err
		}

		if err := archive.Extract(store.BlobPath(imageDigest), dir, logger); err != nil {
			return err
		}
		logger.Info("created image", "image", imageDigest[:12], "dir", dir)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createVM, "vm", "", "VM executable used if stages must be replayed")
	rootCmd.AddCommand(createCmd)
}
