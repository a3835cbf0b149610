// Package list implements the `list` subcommand (§6): lists stored
// workflows, optionally filtered by a search query (C5/C6's Search ranking).
package list

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kazuyaegusa/deskautomata/internal/commands/shared"
	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/log"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// NewListCommand creates the `list` command.
func NewListCommand() *cobra.Command {
	var workflowDir, query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(workflowDir, query)
		},
	}

	cmd.Flags().StringVar(&workflowDir, "workflow-dir", "./workflows", "directory holding stored workflows")
	cmd.Flags().StringVar(&query, "query", "", "search query to rank workflows against (empty lists every workflow)")

	return cmd
}

func runList(workflowDir, query string) error {
	logger := log.New(log.FromEnv())

	store, err := workflow.NewStore(workflowDir, logger)
	if err != nil {
		return shared.NewFailure("open workflow store", err)
	}
	feedbacks, err := feedback.NewStore(filepath.Join(workflowDir, "feedback"), logger)
	if err != nil {
		return shared.NewFailure("open feedback store", err)
	}

	var workflows []*workflow.Workflow
	if query != "" {
		workflows, err = store.Search(query, feedbacks)
	} else {
		workflows, err = store.ListAll()
	}
	if err != nil {
		return shared.NewFailure("list workflows", err)
	}

	if shared.GetJSON() {
		data, err := json.MarshalIndent(workflows, "", "  ")
		if err != nil {
			return shared.NewFailure("marshal workflow list", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(workflows) == 0 {
		fmt.Println("no workflows found")
		return nil
	}
	for _, w := range workflows {
		fmt.Printf("%-36s %-30s %-20s conf=%.2f status=%s\n", w.WorkflowID, w.Name, w.AppName, w.Confidence, w.Status)
	}
	return nil
}
