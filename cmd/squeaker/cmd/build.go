package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/squeaker/squeaker/internal/recipe"
	"github.com/squeaker/squeaker/internal/stage"
)

// defaultRecipeName is looked up inside the project directory when -f
// is not given.
const defaultRecipeName = "squeaker.st"

var (
	buildFile         string
	buildTag          string
	buildNoCacheURLs  bool
	buildNoCacheStage bool
	buildHeadless     bool
	buildNoHeadless   bool
	buildVM           string
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] DIR",
	Short: "Build an image from a recipe",
	Long: `Reads the !-delimited recipe in DIR (or the file given with -f) and
resolves each chunk against the cache, materializing image blobs only
on cache miss. The final image digest is printed to standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving project directory: %w", err)
		}

		recipePath := buildFile
		if recipePath == "" {
			recipePath = filepath.Join(dir, defaultRecipeName)
		}
		f, err := os.Open(recipePath)
		if err != nil {
			return fmt.Errorf("opening recipe %s: %w", recipePath, err)
		}
		defer f.Close()

		vmPath, err := resolveVM(buildVM)
		if err != nil {
			return err
		}
		headless, err := resolveHeadless(buildHeadless, buildNoHeadless, true)
		if err != nil {
			return err
		}

		store, err := newStore()
		if err != nil {
			return err
		}

		resolver := newResolver(store, dir, vmPath, headless)
		if buildNoCacheURLs {
			resolver.NoCache[stage.TypeURL] = true
		}
		if buildNoCacheStage {
			resolver.NoCache[stage.TypeChunk] = true
		}

		interp := &recipe.Interpreter{
			Resolver: resolver,
			Store:    store,
			Log:      logger,
			Out:      cmd.OutOrStdout(),
		}
		_, err = interp.Run(cmd.Context(), f, recipe.Options{Tag: buildTag})
		return err
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", "", "recipe file (default: DIR/"+defaultRecipeName+")")
	buildCmd.Flags().StringVarP(&buildTag, "tag", "t", "", "tag the final image")
	buildCmd.Flags().BoolVar(&buildNoCacheURLs, "no-cache-urls", false, "refetch URLs even when cached")
	buildCmd.Flags().BoolVar(&buildNoCacheStage, "no-cache-stages", false, "rerun chunk stages even when cached")
	buildCmd.Flags().BoolVar(&buildHeadless, "headless", false, "run the VM headless (default)")
	buildCmd.Flags().BoolVar(&buildNoHeadless, "no-headless", false, "run the VM with a display")
	buildCmd.Flags().StringVar(&buildVM, "vm", "", "VM executable (default: config, then autodetect)")

	rootCmd.AddCommand(buildCmd)
}
