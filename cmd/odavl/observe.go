package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odavlstudio/odavl/internal/insight"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Measure current code quality metrics",
	Long: `Observe reads the latest analysis report (.odavl/insight.json, falling
back to .odavl/insight/latest-analysis.json) or, when neither exists, runs
a shallow source scan. The snapshot is written to
.odavl/metrics/latest-observe.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		observer := insight.NewObserver(workspace, settings, logger)
		m, err := observer.Observe()
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Observation ==="))
		fmt.Printf("  Source: %s\n", m.Source)
		if m.FilesScanned > 0 {
			fmt.Printf("  Files scanned: %d\n", m.FilesScanned)
		}
		fmt.Println()

		if len(m.Counts) == 0 {
			fmt.Printf("  %s\n\n", gray("No issues detected"))
			return nil
		}

		detectors := make([]string, 0, len(m.Counts))
		for d := range m.Counts {
			detectors = append(detectors, d)
		}
		sort.Strings(detectors)

		for _, d := range detectors {
			count := m.Counts[d]
			c := green
			if count > 0 {
				c = red
			}
			fmt.Printf("  %-14s %s\n", d, c(fmt.Sprintf("%d", count)))
		}
		fmt.Printf("\n  Total: %s\n\n", red(fmt.Sprintf("%d", m.TotalIssues)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(observeCmd)
}
