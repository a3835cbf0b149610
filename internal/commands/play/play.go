// Package play implements the `play` subcommand (§6): replays one stored
// workflow directly via C14's PlayWorkflow, with optional parameter
// substitution.
package play

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/kazuyaegusa/deskautomata/internal/autoloop"
	"github.com/kazuyaegusa/deskautomata/internal/commands/shared"
	"github.com/kazuyaegusa/deskautomata/internal/log"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// NewPlayCommand creates the `play` command.
func NewPlayCommand() *cobra.Command {
	var workflowDir string
	var dryRun bool
	var delay time.Duration
	var params []string

	cmd := &cobra.Command{
		Use:   "play <workflow_id>",
		Short: "Replay a stored workflow directly, step by step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseParams(params)
			if err != nil {
				return &shared.ExitError{Code: shared.ExitFailure, Message: err.Error()}
			}
			return runPlay(cmd.Context(), args[0], workflowDir, dryRun, delay, parsed)
		},
	}

	cmd.Flags().StringVar(&workflowDir, "workflow-dir", "./workflows", "directory holding stored workflows")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "select actions without executing them")
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "delay between steps")
	cmd.Flags().StringArrayVar(&params, "param", nil, "key=value parameter substitution, repeatable")

	return cmd
}

func parseParams(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}

// fillMissingParams prompts interactively (via survey.Input) for any
// parameter the stored workflow declares that --param didn't supply,
// mutating params in place. A workflow lookup failure here is non-fatal;
// PlayWorkflow reports the real error with full context.
func fillMissingParams(workflowDir, workflowID string, params map[string]string, logger *slog.Logger) error {
	store, err := workflow.NewStore(workflowDir, logger)
	if err != nil {
		return nil
	}
	w, err := store.Get(workflowID)
	if err != nil || w == nil {
		return nil
	}

	for _, p := range w.Parameters {
		if _, ok := params[p.Name]; ok {
			continue
		}
		var answer string
		prompt := &survey.Input{
			Message: fmt.Sprintf("%s: %s", p.Name, p.Description),
		}
		if err := survey.AskOne(prompt, &answer); err != nil {
			return fmt.Errorf("prompt for parameter %q: %w", p.Name, err)
		}
		params[p.Name] = answer
	}
	return nil
}

func runPlay(ctx context.Context, workflowID, workflowDir string, dryRun bool, delay time.Duration, params map[string]string) error {
	logger := log.New(log.FromEnv())
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	if err := fillMissingParams(workflowDir, workflowID, params, logger); err != nil {
		return shared.NewFailure("collect workflow parameters", err)
	}

	provider := shared.OracleProvider(cfg, "")
	loop, err := shared.BuildLoop(workflowDir, provider, true, logger)
	if err != nil {
		return err
	}

	opts := autoloop.Options{
		Params:    params,
		DryRun:    dryRun,
		StepDelay: delay,
	}

	result, err := loop.PlayWorkflow(ctx, workflowID, opts)
	if err != nil {
		return shared.NewFailure("play failed", err)
	}

	shared.PrintLoopResult(result)
	return nil
}
