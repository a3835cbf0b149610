package cli

import (
	"context"
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "deskautomata" {
		t.Errorf("expected use 'deskautomata', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("expected short description to be set")
	}
	if cmd.Long == "" {
		t.Error("expected long description to be set")
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("verbose flag not registered")
	}
	if cmd.PersistentFlags().Lookup("json") == nil {
		t.Error("json flag not registered")
	}
	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("config flag not registered")
	}
}

func TestPersistentPreRunE_RegistersTracerProvider(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetContext(context.Background())

	if cmd.PersistentPreRunE == nil {
		t.Fatal("expected PersistentPreRunE to be set")
	}
	if err := cmd.PersistentPreRunE(cmd, nil); err != nil {
		t.Fatalf("unexpected error initializing tracing: %v", err)
	}
	if cmd.PersistentPostRunE == nil {
		t.Fatal("expected PersistentPostRunE to be set")
	}
	if err := cmd.PersistentPostRunE(cmd, nil); err != nil {
		t.Fatalf("unexpected error shutting down tracing: %v", err)
	}
}
