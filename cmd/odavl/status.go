package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odavlstudio/odavl/internal/recipe"
	"github.com/odavlstudio/odavl/internal/trust"
	"github.com/odavlstudio/odavl/internal/types"
	"github.com/odavlstudio/odavl/internal/undo"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace autopilot status",
	Long:  `Display recipe counts, trust summary, recent cycles, and undo snapshots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== ODAVL Status ==="))

		// Recipes and trust
		fmt.Printf("%s\n", yellow("Recipes:"))
		recipes, err := recipe.Load(workspace.RecipesDir(), logger)
		if err != nil {
			return err
		}
		store, err := trust.LoadStore(workspace.TrustFile())
		if err != nil {
			return err
		}
		blacklisted := 0
		for _, rec := range store.Records() {
			if rec.Blacklisted {
				blacklisted++
			}
		}
		fmt.Printf("  %d recipe(s) loaded", len(recipes))
		if blacklisted > 0 {
			fmt.Printf(", %s", red(fmt.Sprintf("%d blacklisted", blacklisted)))
		}
		fmt.Println()
		fmt.Println()

		// Recent cycles from the audit log
		fmt.Printf("%s\n", yellow("Recent Cycles:"))
		auditLog, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer auditLog.Close()

		cycles, err := auditLog.ListCycles(cmd.Context(), 5)
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			fmt.Printf("  %s\n", gray("No cycles recorded"))
		}
		for _, cycle := range cycles {
			icon := green("✓")
			switch {
			case cycle.Phase == types.PhaseFailed:
				icon = red("✗")
			case cycle.RolledBack:
				icon = yellow("⚠")
			case cycle.RecipeID == types.NoopRecipeID:
				icon = gray("○")
			}
			fmt.Printf("  %s %s  %s  %s\n", icon,
				cycle.StartedAt.Format("2006-01-02 15:04:05"),
				cycle.RecipeID,
				gray(fmt.Sprintf("(%s)", cycle.CompletedAt.Sub(cycle.StartedAt).Round(time.Millisecond))))
		}
		fmt.Println()

		// Undo snapshots
		fmt.Printf("%s\n", yellow("Undo Snapshots:"))
		manager := undo.NewManager(workspace.UndoDir(), workspace.Root, settings.SnapshotRetention, logger)
		ids, err := manager.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Printf("  %s\n", gray("No snapshots"))
		} else {
			fmt.Printf("  %d snapshot(s), latest restorable with 'odavl undo'\n", len(ids))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
