// Command odavl is the autopilot CLI: it observes code quality metrics,
// applies trusted fix recipes, verifies the result against quality gates,
// and learns from the outcome.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/odavlstudio/odavl/internal/config"
	"github.com/odavlstudio/odavl/internal/storage"
)

var (
	flagDir   string
	flagDebug bool

	workspace *config.Workspace
	settings  *config.Config
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "odavl",
	Short: "Self-correcting code quality autopilot",
	Long: `ODAVL runs an observe-decide-act-verify-learn cycle over a workspace:
it measures code quality, picks the most trusted fix recipe whose condition
matches, applies it behind an undo snapshot, verifies the result against
quality gates, and adjusts the recipe's trust score from the outcome.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace = config.NewWorkspace(flagDir)
		settings = config.LoadFromEnv()

		var err error
		if flagDebug {
			logger, err = zap.NewDevelopment()
		} else {
			logger = zap.NewNop()
		}
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// openStore opens the audit log database for the current workspace.
func openStore(cmd *cobra.Command) (storage.Storage, error) {
	store, err := storage.NewStorage(cmd.Context(), &storage.Config{Path: workspace.DatabaseFile()})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "d", ".", "Workspace directory")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}
