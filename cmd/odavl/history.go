package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odavlstudio/odavl/internal/types"
)

var (
	historyLimit  int
	historyRecipe string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent cycles and trust changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		auditLog, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer auditLog.Close()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Cycle History ==="))
		cycles, err := auditLog.ListCycles(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			fmt.Printf("  %s\n", gray("No cycles recorded"))
		}
		for _, cycle := range cycles {
			if historyRecipe != "" && cycle.RecipeID != historyRecipe {
				continue
			}
			icon := green("✓")
			detail := "verified"
			switch {
			case cycle.Phase == types.PhaseFailed:
				icon, detail = red("✗"), cycle.Error
			case cycle.RolledBack:
				icon, detail = yellow("⚠"), "gates failed, rolled back"
			case cycle.RecipeID == types.NoopRecipeID:
				icon, detail = gray("○"), "nothing to do"
			}
			fmt.Printf("  %s %s  %-20s %s\n", icon,
				cycle.StartedAt.Format("2006-01-02 15:04:05"),
				cycle.RecipeID, gray(detail))
		}
		fmt.Println()

		fmt.Printf("%s\n", yellow("Trust Changes:"))
		events, err := auditLog.GetTrustEvents(cmd.Context(), historyRecipe, historyLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Printf("  %s\n", gray("No trust events recorded"))
		}
		for _, ev := range events {
			c := green
			outcome := "success"
			if !ev.Success {
				c = red
				outcome = "failure"
			}
			fmt.Printf("  %s  %-20s %s trust=%.2f runs=%d\n",
				ev.CreatedAt.Format(time.RFC3339),
				ev.RecipeID, c(outcome), ev.Trust, ev.Runs)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum entries per section")
	historyCmd.Flags().StringVar(&historyRecipe, "recipe", "", "Filter by recipe ID")
}
