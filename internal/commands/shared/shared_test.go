package shared

import (
	"errors"
	"testing"
)

func TestRegisterFlagPointers_BindsPackageVars(t *testing.T) {
	verbose, jsonOut, config := RegisterFlagPointers()

	*verbose = true
	*jsonOut = true
	*config = "/tmp/deskautomata.yaml"

	if !GetVerbose() {
		t.Error("expected GetVerbose to reflect the bound pointer")
	}
	if !GetJSON() {
		t.Error("expected GetJSON to reflect the bound pointer")
	}
	if GetConfigPath() != "/tmp/deskautomata.yaml" {
		t.Errorf("expected config path to reflect the bound pointer, got %q", GetConfigPath())
	}

	*verbose, *jsonOut, *config = false, false, ""
}

func TestExitError_ErrorIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewFailure("save workflow", cause)

	if err.Code != ExitFailure {
		t.Errorf("expected exit code %d, got %d", ExitFailure, err.Code)
	}
	if got := err.Error(); got != "save workflow: disk full" {
		t.Errorf("unexpected error message: %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to unwrap to the cause")
	}
}

func TestExitError_ErrorWithoutCause(t *testing.T) {
	err := &ExitError{Code: ExitFailure, Message: "no workflows found"}
	if got := err.Error(); got != "no workflows found" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestExitError_SatisfiesErrorsAs(t *testing.T) {
	var wrapped error = NewFailure("replay failed", errors.New("step 3 timed out"))

	var exitErr *ExitError
	if !errors.As(wrapped, &exitErr) {
		t.Fatal("expected errors.As to find the *ExitError")
	}
	if exitErr.Code != ExitFailure {
		t.Errorf("expected code %d, got %d", ExitFailure, exitErr.Code)
	}
}
