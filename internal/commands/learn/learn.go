// Package learn implements the `learn` subcommand (§6): runs C1->C2->C4->C5
// over a capture directory, optionally stopping after segmentation.
package learn

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kazuyaegusa/deskautomata/internal/capture"
	"github.com/kazuyaegusa/deskautomata/internal/commands/shared"
	"github.com/kazuyaegusa/deskautomata/internal/extractor"
	"github.com/kazuyaegusa/deskautomata/internal/log"
	"github.com/kazuyaegusa/deskautomata/internal/oracle"
	"github.com/kazuyaegusa/deskautomata/internal/segment"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// NewLearnCommand creates the `learn` command.
func NewLearnCommand() *cobra.Command {
	var jsonDir, workflowDir, model string
	var minConfidence float64
	var segmentsOnly bool

	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Learn workflows from a capture directory",
		Long:  `Scans --json-dir for new capture records, segments them, and extracts confirmed workflows into --workflow-dir (§4.1/§4.2/§4.4/§4.5).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearn(cmd.Context(), jsonDir, workflowDir, model, minConfidence, segmentsOnly)
		},
	}

	cmd.Flags().StringVar(&jsonDir, "json-dir", "./captures", "directory to scan for capture records")
	cmd.Flags().StringVar(&workflowDir, "workflow-dir", "./workflows", "directory to store extracted workflows")
	cmd.Flags().StringVar(&model, "model", "", "oracle model override")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.5, "minimum confidence for a segment to be saved as a workflow; not applied: extraction saves every segment the oracle confirms as a workflow")
	cmd.Flags().BoolVar(&segmentsOnly, "segments-only", false, "stop after building segments, skip extraction")

	return cmd
}

func runLearn(ctx context.Context, jsonDir, workflowDir, model string, minConfidence float64, segmentsOnly bool) error {
	logger := log.New(log.FromEnv())

	ingest, err := capture.New(jsonDir, "", logger)
	if err != nil {
		return shared.NewFailure("open capture directory", err)
	}

	records, err := ingest.ScanNewFiles()
	if err != nil {
		return shared.NewFailure("scan capture directory", err)
	}
	fmt.Printf("found %d new capture records\n", len(records))

	if segmentsOnly {
		builder := segment.NewBuilder(segment.DefaultWorkflowConfig())
		var built int
		for _, r := range records {
			if seg := builder.Add(r); seg != nil {
				built++
			}
		}
		if seg := builder.Flush(); seg != nil {
			built++
		}
		fmt.Printf("built %d segments\n", built)
		return nil
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	provider := shared.OracleProvider(cfg, model)
	adapter := oracle.NewAdapter(provider, oracle.DefaultRetryConfig(), 1.0, logger)

	store, err := workflow.NewStore(workflowDir, logger)
	if err != nil {
		return shared.NewFailure("open workflow store", err)
	}

	segCfg := segment.DefaultWorkflowConfig()
	ex := extractor.New(adapter, store, segCfg, logger)

	result, err := ex.ExtractAll(ctx, records)
	if err != nil {
		return shared.NewFailure("extraction failed", err)
	}

	for _, r := range records {
		if err := ingest.MarkProcessed(r.SourcePath); err != nil {
			logger.Warn("mark processed failed", "path", r.SourcePath, "error", err)
		}
	}

	fmt.Printf("segments built: %d, workflows saved: %d, skipped: %d\n",
		result.SegmentsBuilt, result.WorkflowsSaved, result.WorkflowsSkipped)

	return nil
}
