// Package approval adapts the confirmation gate C14 needs before acting in a
// dangerous app (§4.12, §4.14 step 4) from the teacher's tool-approval
// mechanism: same Approver interface and "always" remembered-approval
// semantics, CLI prompt replaced with a huh.Select form (yes/no/always).
package approval

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
)

// Approver decides whether an action against a dangerous app should proceed.
type Approver interface {
	// Approve returns true if the action should proceed. appName and
	// actionDescription are shown to the operator.
	Approve(ctx context.Context, appName, actionDescription string) (bool, error)
}

// HuhApprover prompts interactively via a huh.Select form.
type HuhApprover struct {
	alwaysApprove map[string]bool // apps the operator said "always" to this run
}

func NewHuhApprover() *HuhApprover {
	return &HuhApprover{alwaysApprove: make(map[string]bool)}
}

func (a *HuhApprover) Approve(ctx context.Context, appName, actionDescription string) (bool, error) {
	if a.alwaysApprove[appName] {
		return true, nil
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Confirm action in %s", appName)).
				Description(actionDescription).
				Options(
					huh.NewOption("Yes", "yes"),
					huh.NewOption("No", "no"),
					huh.NewOption("Always allow "+appName, "always"),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return false, nil
	}

	switch choice {
	case "yes":
		return true, nil
	case "always":
		a.alwaysApprove[appName] = true
		return true, nil
	default:
		return false, nil
	}
}

// AutoSkipApprover denies every dangerous-app confirmation, for unattended
// runs (§4.14: a denied confirmation records "skipped_dangerous", never a
// failure).
type AutoSkipApprover struct{}

func (AutoSkipApprover) Approve(ctx context.Context, appName, actionDescription string) (bool, error) {
	return false, nil
}
