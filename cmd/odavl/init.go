package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/storage"
	"github.com/odavlstudio/odavl/internal/types"
)

const defaultGatesYAML = `# Quality gate thresholds evaluated after every recipe run.
# A gate fails when the detector's issue count grows by more than
# max_increase, or drops by less than min_improvement (when set).
gates:
  typescript:
    max_increase: 0
  eslint:
    max_increase: 0
total:
  max_increase: 0
`

var sampleRecipe = &types.Recipe{
	ID:          "remove-console-log",
	Name:        "Remove console.log statements",
	Description: "Strips console.log calls when the console detector finds any",
	Condition:   &types.Condition{Metric: "console", Op: types.OpGT, Value: 0},
	Actions: []types.Action{
		{
			Type:       types.ActionCommand,
			Run:        `grep -rl --include='*.ts' --include='*.js' 'console.log' src | xargs -r sed -i '/console\.log/d'`,
			TimeoutSec: 60,
		},
	},
	Files: []string{"src"},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the autopilot state directory",
	Long: `Initialize creates the .odavl/ state directory:

  .odavl/recipes/         recipe JSON files (a sample is included)
  .odavl/gates.yml        quality gate thresholds
  .odavl/undo/            undo snapshots
  .odavl/odavl.db         audit log database

Existing files are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, dir := range []string{
			workspace.StateDir(),
			workspace.RecipesDir(),
			workspace.UndoDir(),
			workspace.GuardianReportsDir(),
		} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}

		missing := func(path string) bool {
			_, err := os.Stat(path)
			return os.IsNotExist(err)
		}

		if missing(workspace.GatesFile()) {
			if err := atomicio.WriteFile(workspace.GatesFile(), []byte(defaultGatesYAML), 0644); err != nil {
				return err
			}
		}

		samplePath := workspace.RecipesDir() + "/" + sampleRecipe.ID + ".json"
		if missing(samplePath) {
			if err := atomicio.WriteJSON(samplePath, sampleRecipe); err != nil {
				return err
			}
		}

		// Opening the database initializes the schema
		db, err := storage.NewStorage(cmd.Context(), &storage.Config{Path: workspace.DatabaseFile()})
		if err != nil {
			return fmt.Errorf("failed to initialize audit log: %w", err)
		}
		_ = db.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized ODAVL workspace\n\n", green("✓"))
		fmt.Printf("  State directory: %s\n", cyan(workspace.StateDir()))
		fmt.Printf("  Audit log:       %s\n", cyan(workspace.DatabaseFile()))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("odavl observe   # measure current metrics"))
		fmt.Printf("  %s\n", gray("odavl run       # run one autopilot cycle"))
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
