package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReportCommand_RegistersFlags(t *testing.T) {
	cmd := NewReportCommand()

	assert.Equal(t, "report", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("format"))
	assert.NotNil(t, cmd.Flags().Lookup("output"))
}

func TestRunReport_RejectsUnknownFormat(t *testing.T) {
	err := runReport(t.TempDir(), "", "yaml", "")
	assert.Error(t, err)
}

func TestRunReport_WritesToOutputFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.md")

	assert.NoError(t, runReport(dir, "", "markdown", out))

	contents, err := os.ReadFile(out)
	assert.NoError(t, err)
	assert.NotEmpty(t, contents)
}
