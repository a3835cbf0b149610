// Package action implements C12, the Action Selector: turns either a stored
// Workflow step or an autonomous oracle choice into the next concrete
// ActionStep to execute (§4.12).
package action

import (
	"context"
	"strings"

	"github.com/kazuyaegusa/deskautomata/internal/oracle"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// dangerousApps gates autonomous actions on apps where an irreversible side
// effect (sending a message, deleting mail) is one click away (§4.12).
var dangerousApps = []string{"mail", "slack", "discord", "messages", "line", "telegram", "whatsapp"}

// isDangerousApp matches exact or lowercase-containment, per §4.12.
func isDangerousApp(appName string) bool {
	lower := strings.ToLower(appName)
	for _, d := range dangerousApps {
		if lower == d || strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// Selector is C12.
type Selector struct {
	oracleAdapter *oracle.Adapter
}

func New(oracleAdapter *oracle.Adapter) *Selector {
	return &Selector{oracleAdapter: oracleAdapter}
}

// SelectFromWorkflow returns the step at stepIndex with runtime parameters
// substituted, or nil if stepIndex is out of range (§4.12).
func (s *Selector) SelectFromWorkflow(w *workflow.Workflow, stepIndex int, params map[string]string) *workflow.ActionStep {
	if stepIndex < 0 || stepIndex >= len(w.Steps) {
		return nil
	}

	step := w.Steps[stepIndex]
	if step.IsParameterized && step.ParamName != "" {
		if value, ok := params[step.ParamName]; ok && value != "" {
			if step.Text != "" {
				step.Text = value
			}
			if step.Target.Value != "" {
				step.Target.Value = value
			}
		}
	}

	return &step
}

// SelectAutonomous asks the oracle for the next action toward goal and sets
// RequiresConfirmation when the current app is on the dangerous list (§4.12).
func (s *Selector) SelectAutonomous(ctx context.Context, goal string, state oracle.State, available []oracle.AvailableAction, history []oracle.HistoryEntry) oracle.ActionChoice {
	choice := s.oracleAdapter.SelectNextAction(ctx, goal, state, available, history)
	if isDangerousApp(state.AppName) {
		choice.RequiresConfirmation = true
	}
	return choice
}

// ActionDictToStep converts an oracle's action choice into an executable
// ActionStep, shallowly: fields not applicable to the chosen action type are
// simply left zero-valued (§4.12).
func ActionDictToStep(choice oracle.ActionChoice) workflow.ActionStep {
	step := workflow.ActionStep{
		X:         choice.X,
		Y:         choice.Y,
		Text:      choice.Text,
		Keycode:   choice.Keycode,
		Modifiers: choice.Modifiers,
		Target:    workflow.Target{Description: choice.TargetDescription},
	}

	switch choice.ActionType {
	case oracle.ActionClick:
		step.ActionType = workflow.ActionClick
	case oracle.ActionRightClick:
		step.ActionType = workflow.ActionRightClick
	case oracle.ActionTextInput:
		step.ActionType = workflow.ActionTextInput
	case oracle.ActionKeyShortcut:
		step.ActionType = workflow.ActionKeyShortcut
	default:
		// "wait"/"done" have no ActionStep equivalent; caller handles those
		// action types before reaching this conversion (§4.14).
	}

	return step
}
