// Package stats implements the `stats` subcommand (§6): runs C9's
// trailing-window analysis over the feedback history on demand.
package stats

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kazuyaegusa/deskautomata/internal/commands/shared"
	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/log"
	"github.com/kazuyaegusa/deskautomata/internal/meta"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// NewStatsCommand creates the `stats` command.
func NewStatsCommand() *cobra.Command {
	var workflowDir string
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show trailing-window success rates and suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(workflowDir, days)
		},
	}

	cmd.Flags().StringVar(&workflowDir, "workflow-dir", "./workflows", "directory holding stored workflows")
	cmd.Flags().IntVar(&days, "days", 7, "trailing window size in days")

	return cmd
}

func runStats(workflowDir string, days int) error {
	logger := log.New(log.FromEnv())

	store, err := workflow.NewStore(workflowDir, logger)
	if err != nil {
		return shared.NewFailure("open workflow store", err)
	}
	feedbacks, err := feedback.NewStore(filepath.Join(workflowDir, "feedback"), logger)
	if err != nil {
		return shared.NewFailure("open feedback store", err)
	}

	window := time.Duration(days) * 24 * time.Hour
	analyzer := meta.New(feedbacks, store, window, time.Now)

	report, err := analyzer.Analyze()
	if err != nil {
		return shared.NewFailure("analyze feedback history", err)
	}

	if shared.GetJSON() {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return shared.NewFailure("marshal stats report", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("window: %s - %s\n", report.WindowStart.Format(time.RFC3339), report.WindowEnd.Format(time.RFC3339))
	fmt.Printf("overall success rate: %.1f%%\n", report.OverallSuccessRate*100)
	if report.RegressionDetected {
		fmt.Println("regression detected")
	}
	for _, app := range report.PerApp {
		fmt.Printf("  %-20s count=%-4d success=%.1f%% avg_duration=%.1fs\n", app.AppName, app.Count, app.SuccessRate*100, app.AvgDuration)
	}
	for _, s := range report.Suggestions {
		fmt.Printf("suggestion [%s]: %s\n", s.Priority, s.Message)
	}
	return nil
}
