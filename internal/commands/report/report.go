// Package report implements the `report` subcommand (§6): generates C8's
// reproducibility report on demand.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kazuyaegusa/deskautomata/internal/catalog"
	"github.com/kazuyaegusa/deskautomata/internal/commands/shared"
	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/log"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// NewReportCommand creates the `report` command.
func NewReportCommand() *cobra.Command {
	var workflowDir, category, format, output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the workflow reproducibility report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(workflowDir, category, format, output)
		},
	}

	cmd.Flags().StringVar(&workflowDir, "workflow-dir", "./workflows", "directory holding stored workflows")
	cmd.Flags().StringVar(&category, "category", "", "filter to a single category (empty includes every category)")
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown or json")
	cmd.Flags().StringVar(&output, "output", "", "write report to this path instead of stdout")

	return cmd
}

func runReport(workflowDir, category, format, output string) error {
	if format != "markdown" && format != "json" {
		return &shared.ExitError{Code: shared.ExitFailure, Message: fmt.Sprintf("unknown format %q, expected markdown or json", format)}
	}

	logger := log.New(log.FromEnv())

	store, err := workflow.NewStore(workflowDir, logger)
	if err != nil {
		return shared.NewFailure("open workflow store", err)
	}
	feedbacks, err := feedback.NewStore(filepath.Join(workflowDir, "feedback"), logger)
	if err != nil {
		return shared.NewFailure("open feedback store", err)
	}

	gen := catalog.New(store, feedbacks, logger)
	out, err := gen.Report(format, category, workflowDir)
	if err != nil {
		return shared.NewFailure("generate report", err)
	}

	if output == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
		return shared.NewFailure("write report file", err)
	}
	fmt.Printf("report written to %s\n", output)
	return nil
}
