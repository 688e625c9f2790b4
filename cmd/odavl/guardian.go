package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odavlstudio/odavl/internal/guardian"
)

var (
	guardianHeadful     bool
	guardianTimeout     time.Duration
	guardianConcurrency int
	guardianDebugger    string
)

var guardianCmd = &cobra.Command{
	Use:   "guardian <url> [url...]",
	Short: "Audit running web pages with a headless browser",
	Long: `Guardian loads each URL in a headless browser and audits four
categories, each scored 0-100:

  accessibility  missing alt text, unlabeled controls, empty buttons/links
  performance    load time, DOM size, request count
  security       response headers on the main document
  console        JavaScript errors during load

Reports are written to reports/guardian/ as JSON and HTML, and each page
is recorded in the audit log.

Example:
  odavl guardian http://localhost:3000
  odavl guardian https://example.com https://example.com/about`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := guardian.New(&guardian.Config{
			URLs:              args,
			ReportsDir:        workspace.GuardianReportsDir(),
			Headless:          !guardianHeadful,
			NavigationTimeout: guardianTimeout,
			Concurrency:       guardianConcurrency,
			DebuggerURL:       guardianDebugger,
			Logger:            logger,
		})
		if err != nil {
			return err
		}

		report, err := g.Run(cmd.Context())
		if err != nil {
			return err
		}

		jsonPath, err := report.WriteJSON(workspace.GuardianReportsDir())
		if err != nil {
			return err
		}
		htmlPath, err := report.WriteHTML(workspace.GuardianReportsDir())
		if err != nil {
			return err
		}

		auditLog, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer auditLog.Close()
		for _, page := range report.Pages {
			if err := auditLog.RecordGuardianRun(cmd.Context(), page.Row(jsonPath)); err != nil {
				logger.Warn(fmt.Sprintf("failed to record guardian run for %s: %v", page.URL, err))
			}
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== Guardian Report: %d/100 ===", report.Score)))
		for _, page := range report.Pages {
			if page.Error != "" {
				fmt.Printf("  %s %s\n", red("✗"), page.URL)
				fmt.Printf("    %s\n", red(page.Error))
				continue
			}
			fmt.Printf("  %s %s\n", scoreColor(page.Score())(fmt.Sprintf("%3d", page.Score())), page.URL)
			fmt.Printf("    a11y=%d perf=%d security=%d console=%d issues=%d\n",
				page.Accessibility.Score, page.Performance.Score,
				page.Security.Score, page.Console.Score, page.IssueCount())
		}
		fmt.Printf("\n  JSON: %s\n  HTML: %s\n\n", gray(jsonPath), gray(htmlPath))
		return nil
	},
}

func scoreColor(score int) func(a ...interface{}) string {
	switch {
	case score >= 80:
		return color.New(color.FgGreen).SprintFunc()
	case score >= 50:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

func init() {
	rootCmd.AddCommand(guardianCmd)
	guardianCmd.Flags().BoolVar(&guardianHeadful, "headful", false, "Show the browser window")
	guardianCmd.Flags().DurationVar(&guardianTimeout, "timeout", 30*time.Second, "Navigation timeout per URL")
	guardianCmd.Flags().IntVar(&guardianConcurrency, "concurrency", 2, "Pages audited in parallel")
	guardianCmd.Flags().StringVar(&guardianDebugger, "debugger-url", "", "Attach to an existing browser instead of launching one")
}
