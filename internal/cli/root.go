// Package cli builds the root Cobra command, matching the teacher's
// internal/cli/root.go split (global flags registered here, subcommands
// added by main).
package cli

import (
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kazuyaegusa/deskautomata/internal/commands/shared"
	"github.com/kazuyaegusa/deskautomata/internal/observability"
)

// NewRootCommand creates the root command for the CLI.
func NewRootCommand() *cobra.Command {
	var tp *sdktrace.TracerProvider

	cmd := &cobra.Command{
		Use:   "deskautomata",
		Short: "Learn desktop workflows from captured user actions and replay them autonomously",
		Long: `deskautomata turns captured desktop interactions into reusable
workflows, scores their reproducibility, and can replay or extend them
autonomously toward a stated goal.

Run 'deskautomata learn' to build workflows from a capture directory.
Run 'deskautomata watch' to keep learning continuously in the background.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			tp, err = observability.NewTracerProvider("deskautomata", shared.GetVerbose())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return observability.Shutdown(cmd.Context(), tp)
		},
	}

	verbose, jsonOut, config := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "enable verbose logging")
	cmd.PersistentFlags().BoolVar(jsonOut, "json", false, "output machine-readable JSON")
	cmd.PersistentFlags().StringVar(config, "config", "", "path to a YAML config file layered over environment and defaults (no file is loaded when unset)")

	return cmd
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
