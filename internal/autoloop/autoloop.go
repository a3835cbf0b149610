// Package autoloop implements C14, the Autonomous Loop: the two execution
// entry points (workflow replay and free exploration) that drive the probe,
// oracle, and recovery learner through a goal to completion (§4.14).
package autoloop

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/kazuyaegusa/deskautomata/internal/action"
	"github.com/kazuyaegusa/deskautomata/internal/approval"
	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/observe"
	"github.com/kazuyaegusa/deskautomata/internal/oracle"
	"github.com/kazuyaegusa/deskautomata/internal/probe"
	"github.com/kazuyaegusa/deskautomata/internal/recovery"
	"github.com/kazuyaegusa/deskautomata/internal/verify"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

const (
	defaultMaxConsecutiveFailures = 5
	defaultMaxSteps               = 50
	defaultStepDelay              = 500 * time.Millisecond
	goalCheckEveryNSteps          = 5
	minGoalConfidence             = 0.7
	minVisionFallbackConfidence   = 0.5
)

// WorkflowStore is the subset of C5 the loop needs.
type WorkflowStore interface {
	Get(id string) (*workflow.Workflow, error)
	Search(query string, feedback workflow.SuccessRateLookup) ([]*workflow.Workflow, error)
}

// FeedbackStore is the subset of C6 the loop needs.
type FeedbackStore interface {
	Record(f *feedback.Feedback) (string, error)
	GetSuccessRate(workflowID string) float64
}

// StepOutcome is one executed-and-recorded step within a run (§4.14).
type StepOutcome struct {
	StepIndex        int
	ActionType       string
	Success          bool
	Verified         bool
	SkippedDangerous bool
	ErrorCode        string
	ErrorMsg         string
}

// Result is what either loop returns; ExecutionFeedback is built from it
// and recorded unless DryRun (§4.14).
type Result struct {
	Success          bool
	GoalAchieved     bool
	TotalTimeSeconds float64
	Steps            []StepOutcome
	FeedbackID       string
}

// Options configures a single run.
type Options struct {
	Goal                   string
	WorkflowID             string // non-empty selects PlayWorkflow-style replay via Run
	Params                 map[string]string
	DryRun                 bool
	MaxConsecutiveFailures int
	MaxSteps               int
	StepDelay              time.Duration
}

func (o Options) maxConsecutiveFailures() int {
	if o.MaxConsecutiveFailures > 0 {
		return o.MaxConsecutiveFailures
	}
	return defaultMaxConsecutiveFailures
}

func (o Options) maxSteps() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

func (o Options) stepDelay() time.Duration {
	if o.StepDelay > 0 {
		return o.StepDelay
	}
	return defaultStepDelay
}

// Loop is C14.
type Loop struct {
	workflows WorkflowStore
	feedbacks FeedbackStore
	observer  *observe.Observer
	selector  *action.Selector
	verifier  *verify.Verifier
	recovery  *recovery.Learner
	probe     probe.Probe
	approver  approval.Approver
	oracle    *oracle.Adapter
	logger    *slog.Logger
	sleep     func(time.Duration)
	now       func() time.Time
}

func New(
	workflows WorkflowStore,
	feedbacks FeedbackStore,
	observer *observe.Observer,
	selector *action.Selector,
	verifier *verify.Verifier,
	learner *recovery.Learner,
	p probe.Probe,
	approver approval.Approver,
	oracleAdapter *oracle.Adapter,
	logger *slog.Logger,
) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		workflows: workflows, feedbacks: feedbacks, observer: observer,
		selector: selector, verifier: verifier, recovery: learner,
		probe: p, approver: approver, oracle: oracleAdapter, logger: logger,
		sleep: time.Sleep, now: time.Now,
	}
}

// Run resolves a workflow by id, else searches for goal and plays the first
// hit, else falls through to free exploration (§4.14).
func (l *Loop) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.WorkflowID != "" {
		return l.PlayWorkflow(ctx, opts.WorkflowID, opts)
	}

	hits, err := l.workflows.Search(opts.Goal, l.feedbacks)
	if err != nil {
		l.logger.Warn("workflow search failed, falling through to exploration", "error", err)
	} else if len(hits) > 0 {
		return l.PlayWorkflow(ctx, hits[0].WorkflowID, opts)
	}

	return l.runFreeExploration(ctx, opts)
}

// PlayWorkflow replays a stored workflow step by step (§4.14).
func (l *Loop) PlayWorkflow(ctx context.Context, workflowID string, opts Options) (Result, error) {
	w, err := l.workflows.Get(workflowID)
	if err != nil {
		return Result{}, err
	}

	start := l.now()
	var outcomes []StepOutcome
	consecutiveFailures := 0

	for i := range w.Steps {
		if consecutiveFailures >= opts.maxConsecutiveFailures() {
			break
		}

		snap := l.observer.ObserveCurrentState(ctx)
		step := l.selector.SelectFromWorkflow(w, i, opts.Params)
		if step == nil {
			break
		}

		outcome := l.executeStep(ctx, *step, i, snap, opts.DryRun)
		if !outcome.SkippedDangerous && !outcome.Success {
			consecutiveFailures++
		} else if outcome.Success {
			consecutiveFailures = 0
		}
		outcomes = append(outcomes, outcome)

		if i < len(w.Steps)-1 {
			l.sleep(opts.stepDelay())
		}
	}

	result := l.finalize(outcomes, false, start)
	if id, err := l.recordFeedback(w.WorkflowID, opts, result); err != nil {
		l.logger.Warn("failed to record feedback", "error", err)
	} else {
		result.FeedbackID = id
	}
	return result, nil
}

// runFreeExploration asks the oracle for the next action each step, with a
// goal check every goalCheckEveryNSteps steps (§4.14).
func (l *Loop) runFreeExploration(ctx context.Context, opts Options) (Result, error) {
	start := l.now()
	var outcomes []StepOutcome
	var history []oracle.HistoryEntry
	consecutiveFailures := 0
	achieved := false

	for i := 0; i < opts.maxSteps(); i++ {
		if consecutiveFailures >= opts.maxConsecutiveFailures() {
			break
		}

		snap := l.observer.ObserveCurrentState(ctx)
		state := oracle.State{AppName: snap.AppName, ScreenshotPath: snap.ScreenshotPath}

		if i > 0 && i%goalCheckEveryNSteps == 0 {
			check := l.verifier.CheckGoal(ctx, opts.Goal, state, history)
			if check.Achieved && check.Confidence >= minGoalConfidence {
				achieved = true
				break
			}
		}

		choice := l.selector.SelectAutonomous(ctx, opts.Goal, state, availableActions(), history)

		if choice.ActionType == oracle.ActionDone {
			achieved = true
			break
		}
		if choice.ActionType == oracle.ActionWait {
			l.sleep(2 * time.Second)
			history = append(history, oracle.HistoryEntry{ActionType: oracle.ActionWait, Success: true})
			continue
		}

		if choice.RequiresConfirmation && l.approver != nil {
			approved, err := l.approver.Approve(ctx, snap.AppName, choice.Reasoning)
			if err != nil || !approved {
				outcomes = append(outcomes, StepOutcome{StepIndex: i, ActionType: string(choice.ActionType), SkippedDangerous: true})
				history = append(history, oracle.HistoryEntry{ActionType: choice.ActionType, Success: false})
				continue
			}
		}

		step := action.ActionDictToStep(choice)
		outcome := l.executeStep(ctx, step, i, snap, opts.DryRun)
		outcomes = append(outcomes, outcome)
		history = append(history, oracle.HistoryEntry{ActionType: choice.ActionType, Target: choice.TargetDescription, Success: outcome.Success})

		if !outcome.Success {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}
	}

	result := l.finalize(outcomes, achieved, start)
	if id, err := l.recordFeedback("", opts, result); err != nil {
		l.logger.Warn("failed to record feedback", "error", err)
	} else {
		result.FeedbackID = id
	}
	return result, nil
}

// executeStep runs one ActionStep through the probe, applying the
// coordinate-fallback vision path, then verifies the outcome when possible.
// Exactly one click/key event reaches the probe regardless of which path
// supplied the coordinates (§4.14).
func (l *Loop) executeStep(ctx context.Context, step workflow.ActionStep, index int, before observe.Snapshot, dryRun bool) StepOutcome {
	outcome := StepOutcome{StepIndex: index, ActionType: string(step.ActionType)}

	if dryRun {
		outcome.Success = true
		return outcome
	}

	x, y := step.X, step.Y
	if step.Target.HasDescriptor() && l.probe != nil {
		match, err := l.probe.FindElement(ctx, probe.TargetDescriptor{
			Role: step.Target.Role, Title: step.Target.Title, Value: step.Target.Value,
			Description: step.Target.Description, Identifier: step.Target.Identifier,
		})
		if err == nil {
			x, y = match.X, match.Y
			if match.Method == probe.MatchCoordinateFallback && l.oracle != nil {
				if vision := l.oracle.FindElementByVision(ctx, before.ScreenshotPath, step.Target.Description); vision != nil && vision.Confidence >= minVisionFallbackConfidence {
					x, y = vision.X, vision.Y
				}
			}
		}
	}

	var execErr error
	if l.probe != nil {
		switch step.ActionType {
		case workflow.ActionClick:
			execErr = l.probe.Click(ctx, x, y, "left")
		case workflow.ActionRightClick:
			execErr = l.probe.Click(ctx, x, y, "right")
		case workflow.ActionTextInput:
			execErr = l.probe.TypeKeys(ctx, 0, nil, step.Text)
		case workflow.ActionKeyShortcut, workflow.ActionKeyInput:
			execErr = l.probe.TypeKeys(ctx, step.Keycode, step.Modifiers, "")
		}
	} else {
		execErr = &pkgerrors.OracleError{Provider: "probe", Message: "no probe configured"}
	}

	if execErr != nil {
		outcome.Success = false
		outcome.ErrorCode = "EXECUTION_FAILED"
		outcome.ErrorMsg = execErr.Error()
		l.consultRecovery(ctx, step, outcome.ErrorCode)
		return outcome
	}

	outcome.Success = true
	afterPath := l.observer.TakeScreenshot(ctx, "after")
	vr := l.verifier.VerifyStep(ctx, before.ScreenshotPath, afterPath, "", dryRun)
	if vr.Verified {
		outcome.Success = vr.Success
		outcome.Verified = true
	}
	return outcome
}

// consultRecovery looks up a learned recovery pattern and, if one is found,
// makes exactly one recovery attempt, a left click at the failed step's
// coordinates, feeding its outcome back regardless of result. The pattern's
// RecoveryAction is not interpreted, and the failed step is not re-attempted.
func (l *Loop) consultRecovery(ctx context.Context, step workflow.ActionStep, errorCode string) {
	if l.recovery == nil {
		return
	}
	pattern, err := l.recovery.GetLearnedRecovery(errorCode, "", string(step.ActionType))
	if err != nil || pattern == nil {
		return
	}
	success := l.probe != nil && l.probe.Click(ctx, step.X, step.Y, "left") == nil
	_ = l.recovery.RecordRecovery(errorCode, pattern.AppName, pattern.FailedAction, pattern.RecoveryAction, success)
}

func (l *Loop) finalize(outcomes []StepOutcome, achieved bool, start time.Time) Result {
	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}
	return Result{
		Success:          succeeded > 0,
		GoalAchieved:     achieved,
		TotalTimeSeconds: l.now().Sub(start).Seconds(),
		Steps:            outcomes,
	}
}

func (l *Loop) recordFeedback(workflowID string, opts Options, result Result) (string, error) {
	if opts.DryRun || l.feedbacks == nil {
		return "", nil
	}

	var failedIndices []int
	var details []feedback.ErrorDetail
	succeeded := 0
	for _, o := range result.Steps {
		if o.Success {
			succeeded++
			continue
		}
		if o.SkippedDangerous {
			continue
		}
		failedIndices = append(failedIndices, o.StepIndex)
		details = append(details, feedback.ErrorDetail{StepIndex: o.StepIndex, ErrorCode: o.ErrorCode, ErrorMsg: o.ErrorMsg})
	}

	mode := feedback.ModeAutonomous
	if workflowID != "" {
		mode = feedback.ModeWorkflow
	}

	f := &feedback.Feedback{
		FeedbackID:        newFeedbackID(),
		WorkflowID:        workflowID,
		Goal:              opts.Goal,
		Success:           result.Success,
		StepsExecuted:     len(result.Steps),
		StepsSucceeded:    succeeded,
		FailedStepIndices: failedIndices,
		ErrorDetails:      details,
		Timestamp:         l.now(),
		ExecutionMode:     mode,
		DurationSeconds:   result.TotalTimeSeconds,
	}

	return l.feedbacks.Record(f)
}

func availableActions() []oracle.AvailableAction {
	return []oracle.AvailableAction{
		{ActionType: oracle.ActionClick, Description: "click at a location or on an element"},
		{ActionType: oracle.ActionRightClick, Description: "right-click at a location or on an element"},
		{ActionType: oracle.ActionTextInput, Description: "type text into the focused field"},
		{ActionType: oracle.ActionKeyShortcut, Description: "send a keyboard shortcut"},
		{ActionType: oracle.ActionWait, Description: "wait for the UI to settle"},
		{ActionType: oracle.ActionDone, Description: "the goal has been achieved"},
	}
}

func newFeedbackID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "fb-0"
	}
	return "fb-" + hex.EncodeToString(buf)
}
