package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odavlstudio/odavl/internal/autopilot"
	"github.com/odavlstudio/odavl/internal/types"
)

var (
	runWatch  bool
	runCycles int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run autopilot cycles",
	Long: `Run one or more observe-decide-act-verify-learn cycles.

Each cycle observes the current metrics, selects the highest-trust recipe
whose condition matches, applies it behind an undo snapshot, verifies the
change against the quality gates in .odavl/gates.yml, and updates the
recipe's trust score. Failed gates roll the change back.

With --watch the autopilot keeps running, triggered by file changes and
rate limited to one cycle per ODAVL_WATCH_INTERVAL (default 30s).

Example:
  odavl run                 # one cycle
  odavl run --cycles 5      # up to five chained cycles
  odavl run --watch         # continuous mode, Ctrl-C to stop`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if runCycles > 0 {
			settings.MaxCyclesPerRun = runCycles
		}

		engine, err := autopilot.New(&autopilot.Config{
			Workspace: workspace,
			Settings:  settings,
			Logger:    logger,
			Store:     store,
		})
		if err != nil {
			return err
		}

		if runWatch {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s Watching %s (Ctrl-C to stop)\n", gray("→"), workspace.Root)
			if err := engine.Watch(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		}

		results, err := engine.Run(cmd.Context())
		for _, cycle := range results {
			printCycle(cycle)
		}
		return err
	},
}

// printCycle renders one cycle result for the terminal.
func printCycle(cycle *types.CycleResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	switch {
	case cycle.Phase == types.PhaseFailed:
		fmt.Printf("%s Cycle failed: %s\n", red("✗"), cycle.Error)
	case cycle.RecipeID == types.NoopRecipeID:
		fmt.Printf("%s Nothing to do\n", gray("○"))
	case cycle.RolledBack:
		fmt.Printf("%s Recipe %s failed gates, rolled back\n", yellow("⚠"), cycle.RecipeID)
	default:
		fmt.Printf("%s Recipe %s applied and verified\n", green("✓"), cycle.RecipeID)
	}

	for metric, delta := range cycle.Deltas {
		if delta == 0 {
			continue
		}
		c := gray
		if delta < 0 {
			c = green
		} else {
			c = red
		}
		fmt.Printf("    %s %s\n", metric, c(fmt.Sprintf("%+d", delta)))
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Keep running, triggered by file changes")
	runCmd.Flags().IntVar(&runCycles, "cycles", 0, "Maximum cycles for this run (default from ODAVL_MAX_CYCLES_PER_RUN)")
}
