package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunCommand_RegistersFlags(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run <goal>", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("workflow-id"))
	assert.NotNil(t, cmd.Flags().Lookup("workflow-dir"))
	assert.NotNil(t, cmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, cmd.Flags().Lookup("max-steps"))
	assert.NotNil(t, cmd.Flags().Lookup("delay"))
	assert.NotNil(t, cmd.Flags().Lookup("no-confirm"))
}

func TestNewRunCommand_RequiresExactlyOneGoalArg(t *testing.T) {
	cmd := NewRunCommand()
	assert.Error(t, cmd.Args(cmd, nil))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
	assert.NoError(t, cmd.Args(cmd, []string{"close all Slack notifications"}))
}
