package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatsCommand_RegistersFlags(t *testing.T) {
	cmd := NewStatsCommand()

	assert.Equal(t, "stats", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("workflow-dir"))
	assert.NotNil(t, cmd.Flags().Lookup("days"))
}

func TestRunStats_EmptyStoreSucceeds(t *testing.T) {
	assert.NoError(t, runStats(t.TempDir(), 7))
}
