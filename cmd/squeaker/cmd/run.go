package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/squeaker/squeaker/internal/archive"
	"github.com/squeaker/squeaker/internal/vm"
)

var (
	runVM         string
	runRoot       bool
	runHeadless   bool
	runNoHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] IMAGE [ARGS...]",
	Short: "Run a cached image interactively",
	Long: `Materializes the referenced image (tag name or image-digest prefix)
into a fresh working directory and starts the VM on it, passing ARGS
through to the image. The resulting changes file is kept in the
recentchanges audit trail afterwards.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vmPath, err := resolveVM(runVM)
		if err != nil {
			return err
		}
		headless, err := resolveHeadless(runHeadless, runNoHeadless, false)
		if err != nil {
			return err
		}

		store, err := newStore()
		if err != nil {
			return err
		}

		squeakerDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		if runRoot {
			squeakerDir = string(os.PathSeparator)
		}

		resolver := newResolver(store, squeakerDir, vmPath, headless)
		imageDigest, err := materializeRef(cmd.Context(), store, resolver, args[0])
		if err != nil {
			return err
		}

		workDir, err := os.MkdirTemp("", "squeaker-run-")
		if err != nil {
			return fmt.Errorf("creating working directory: %w", err)
		}
		defer os.RemoveAll(workDir)

		if err := archive.Extract(store.BlobPath(imageDigest), workDir, logger); err != nil {
			return err
		}

		runner := &vm.ExecRunner{Log: logger}
		runErr := runner.Run(cmd.Context(), vm.RunSpec{
			VM:          vmPath,
			WorkDir:     workDir,
			SqueakerDir: squeakerDir,
			Args:        args[1:],
			Headless:    headless,
		})

		// Keep the session's changes for the audit trail even when the
		// VM exited nonzero.
		changes := filepath.Join(workDir, archive.ChangesName)
		if dest, archiveErr := store.AddRecentChanges(changes); archiveErr != nil {
			logger.Warn("could not archive changes file", "err", archiveErr)
		} else {
			logger.Debug("archived changes", "path", dest)
		}

		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runVM, "vm", "", "VM executable (default: config, then autodetect)")
	runCmd.Flags().BoolVar(&runRoot, "root", false, "expose the filesystem root as the squeaker directory")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run the VM headless")
	runCmd.Flags().BoolVar(&runNoHeadless, "no-headless", false, "run the VM with a display (default)")

	rootCmd.AddCommand(runCmd)
}
