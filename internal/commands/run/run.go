// Package run implements the `run` subcommand (§6): drives a single
// autonomous or workflow-directed execution via C14.
package run

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kazuyaegusa/deskautomata/internal/autoloop"
	"github.com/kazuyaegusa/deskautomata/internal/commands/shared"
	"github.com/kazuyaegusa/deskautomata/internal/log"
)

// NewRunCommand creates the `run` command.
func NewRunCommand() *cobra.Command {
	var workflowID, workflowDir string
	var dryRun bool
	var maxSteps int
	var delay time.Duration
	var noConfirm bool

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Pursue a goal, replaying a known workflow or exploring autonomously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args[0], workflowID, workflowDir, dryRun, maxSteps, delay, noConfirm)
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "skip search, replay this workflow directly")
	cmd.Flags().StringVar(&workflowDir, "workflow-dir", "./workflows", "directory holding stored workflows")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "select actions without executing them")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 50, "free-exploration step budget")
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "delay between steps")
	cmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "deny every dangerous-app confirmation instead of prompting")

	return cmd
}

func runRun(ctx context.Context, goal, workflowID, workflowDir string, dryRun bool, maxSteps int, delay time.Duration, noConfirm bool) error {
	logger := log.New(log.FromEnv())
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	provider := shared.OracleProvider(cfg, "")
	loop, err := shared.BuildLoop(workflowDir, provider, !noConfirm, logger)
	if err != nil {
		return err
	}

	opts := autoloop.Options{
		Goal:       goal,
		WorkflowID: workflowID,
		DryRun:     dryRun,
		MaxSteps:   maxSteps,
		StepDelay:  delay,
	}

	result, err := loop.Run(ctx, opts)
	if err != nil {
		return shared.NewFailure("run failed", err)
	}

	shared.PrintLoopResult(result)
	return nil
}
