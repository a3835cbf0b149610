// Package verify implements C13, the Execution Verifier: a thin layer over
// the oracle's vision-based checks that enforces the "never upgrade a
// false verdict" contract (§4.13).
package verify

import (
	"context"

	"github.com/kazuyaegusa/deskautomata/internal/oracle"
)

// StepResult is the result of verify_step (§4.13). Verified=false means "no
// signal" — callers must not treat it as a negative result, only as an
// absent one; the executor's own outcome stands.
type StepResult struct {
	Success    bool
	Confidence float64
	Verified   bool
	Reasoning  string
}

// Verifier is C13.
type Verifier struct {
	oracleAdapter *oracle.Adapter
}

func New(oracleAdapter *oracle.Adapter) *Verifier {
	return &Verifier{oracleAdapter: oracleAdapter}
}

// VerifyStep compares before/after screenshots against an expected change.
// A dry run, a missing screenshot path, or an unreachable oracle all yield
// the same unverified zero result (§4.13).
func (v *Verifier) VerifyStep(ctx context.Context, beforeImagePath, afterImagePath, expectedChange string, dryRun bool) StepResult {
	if dryRun || beforeImagePath == "" || afterImagePath == "" {
		return StepResult{Reasoning: "verification skipped"}
	}
	if v.oracleAdapter == nil {
		return StepResult{Reasoning: "oracle unavailable"}
	}

	result, err := v.oracleAdapter.VerifyExecution(ctx, beforeImagePath, afterImagePath, expectedChange)
	if err != nil {
		return StepResult{Reasoning: result.Reasoning}
	}

	return StepResult{
		Success:   result.Success,
		Verified:  true,
		Reasoning: result.Reasoning,
	}
}

// CheckGoal delegates to the oracle's check_goal_achieved (§4.13).
func (v *Verifier) CheckGoal(ctx context.Context, goal string, state oracle.State, history []oracle.HistoryEntry) oracle.GoalCheck {
	if v.oracleAdapter == nil {
		return oracle.GoalCheck{}
	}
	return v.oracleAdapter.CheckGoalAchieved(ctx, goal, state, history)
}
