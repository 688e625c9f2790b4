package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odavlstudio/odavl/internal/undo"
)

var (
	undoList bool
	undoTo   string
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore files from an undo snapshot",
	Long: `Undo restores the workspace files captured before a recipe ran.
By default the most recent snapshot is restored; --to restores a specific
one. Files that did not exist at snapshot time are deleted.

Example:
  odavl undo            # restore the latest snapshot
  odavl undo --list     # list available snapshots
  odavl undo --to <id>  # restore a specific snapshot`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := undo.NewManager(workspace.UndoDir(), workspace.Root, settings.SnapshotRetention, logger)

		if undoList {
			ids, err := manager.List()
			if err != nil {
				return err
			}
			gray := color.New(color.FgHiBlack).SprintFunc()
			if len(ids) == 0 {
				fmt.Printf("%s\n", gray("No snapshots available"))
				return nil
			}
			for _, id := range ids {
				snap, err := manager.Get(id)
				if err != nil {
					fmt.Printf("  %s %s\n", id, gray("(unreadable)"))
					continue
				}
				fmt.Printf("  %s  recipe=%s files=%d\n", id, snap.RecipeID, len(snap.Data))
			}
			return nil
		}

		restored, err := manager.RestoreByID(undoTo)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Restored %d file(s)\n", green("✓"), restored)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undoCmd)
	undoCmd.Flags().BoolVar(&undoList, "list", false, "List available snapshots")
	undoCmd.Flags().StringVar(&undoTo, "to", "", "Snapshot ID to restore (default: latest)")
}
