package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	cacheDir string
	verbose  bool
	quiet    bool
)

// logger is shared by every subcommand; its level follows the
// --verbose/--quiet flags.
var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: false,
})

var rootCmd = &cobra.Command{
	Use:   "squeaker",
	Short: "Build Smalltalk images from declarative recipes",
	Long: `squeaker derives customized Smalltalk images from a base image plus a
sequence of in-image expressions, caching every intermediate derivation
so repeated builds are incremental. Stages and images are
content-addressed; tags name finished images and act as garbage
collection roots.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case quiet:
			logger.SetLevel(log.ErrorLevel)
		case verbose:
			logger.SetLevel(log.DebugLevel)
		default:
			logger.SetLevel(log.InfoLevel)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("squeaker %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (default: $XDG_CACHE_HOME/squeaker)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
