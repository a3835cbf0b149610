package list

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

func TestNewListCommand_RegistersFlags(t *testing.T) {
	cmd := NewListCommand()

	assert.Equal(t, "list", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("workflow-dir"))
	assert.NotNil(t, cmd.Flags().Lookup("query"))
}

func TestRunList_EmptyStorePrintsNoWorkflows(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, runList(dir, ""))
}

func TestRunList_ListsSavedWorkflows(t *testing.T) {
	dir := t.TempDir()
	store, err := workflow.NewStore(dir, slog.Default())
	assert.NoError(t, err)

	assert.NoError(t, store.Save(&workflow.Workflow{
		WorkflowID: "wf-1",
		Name:       "Send Slack Message",
		AppName:    "Slack",
		Confidence: 0.9,
		Status:     workflow.StatusActive,
	}))

	assert.NoError(t, runList(dir, ""))
}
