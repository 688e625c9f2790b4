package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odavlstudio/odavl/internal/recipe"
	"github.com/odavlstudio/odavl/internal/trust"
)

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List recipes with their trust scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		recipes, err := recipe.Load(workspace.RecipesDir(), logger)
		if err != nil {
			return err
		}
		store, err := trust.LoadStore(workspace.TrustFile())
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Recipes ==="))
		if len(recipes) == 0 {
			fmt.Printf("  %s\n\n", gray("No recipes in "+workspace.RecipesDir()))
			return nil
		}

		for _, r := range recipes {
			rec := store.Get(r.ID)
			trustValue := r.Trust
			runs := 0
			blacklisted := false
			if rec != nil {
				trustValue = rec.Trust
				runs = rec.Runs
				blacklisted = rec.Blacklisted
			}

			c := green
			icon := "●"
			switch {
			case blacklisted:
				c = red
				icon = "✗"
			case trustValue < 0.5:
				c = yellow
				icon = "◐"
			}

			fmt.Printf("  %s %-24s trust=%s runs=%d", c(icon), r.ID, c(fmt.Sprintf("%.2f", trustValue)), runs)
			if blacklisted {
				fmt.Printf(" %s", red("BLACKLISTED"))
			}
			fmt.Println()
			if r.Description != "" {
				fmt.Printf("    %s\n", gray(r.Description))
			}
		}
		fmt.Println()
		return nil
	},
}

var recipesResetCmd = &cobra.Command{
	Use:   "reset-trust <recipe-id>",
	Short: "Clear a recipe's trust record and blacklist flag",
	Long: `Reset-trust deletes the stored trust record for a recipe, clearing its
run history and blacklist flag. The recipe starts fresh on its next run.
This is the only way to un-blacklist a recipe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := trust.LoadStore(workspace.TrustFile())
		if err != nil {
			return err
		}
		id := args[0]
		if store.Get(id) == nil {
			return fmt.Errorf("no trust record for recipe %s", id)
		}
		store.Reset(id)
		if err := store.Save(); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Trust record for %s cleared\n", green("✓"), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recipesCmd)
	recipesCmd.AddCommand(recipesResetCmd)
}
