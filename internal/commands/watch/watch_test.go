package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWatchCommand_RegistersFlags(t *testing.T) {
	cmd := NewWatchCommand()

	assert.Equal(t, "watch", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("background"))
	assert.NotNil(t, cmd.Flags().Lookup("metrics-addr"))
}

func TestBackgroundFlagName_MatchesRegisteredFlag(t *testing.T) {
	cmd := NewWatchCommand()
	assert.Equal(t, "--background", BackgroundFlagName)
	assert.NotNil(t, cmd.Flags().Lookup("background"))
}
