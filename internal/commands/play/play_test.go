package play

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPlayCommand_RegistersFlags(t *testing.T) {
	cmd := NewPlayCommand()

	assert.Equal(t, "play <workflow_id>", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("param"))
	assert.NotNil(t, cmd.Flags().Lookup("delay"))
}

func TestParseParams_SplitsKeyValuePairs(t *testing.T) {
	got, err := parseParams([]string{"name=Alice", "city=Tokyo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["name"] != "Alice" || got["city"] != "Tokyo" {
		t.Fatalf("unexpected params: %+v", got)
	}
}

func TestParseParams_RejectsMissingEquals(t *testing.T) {
	_, err := parseParams([]string{"invalid"})
	if err == nil {
		t.Fatal("expected an error for a param without '='")
	}
}

func TestParseParams_ValueContainingEquals(t *testing.T) {
	got, err := parseParams([]string{"query=a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["query"] != "a=b" {
		t.Fatalf("expected value to keep embedded '=', got %q", got["query"])
	}
}
