package oracle

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("github.com/kazuyaegusa/deskautomata/internal/oracle")

// Adapter is the uniform request layer over the remote oracle (§4.3). On
// exhausted retries it logs and returns the call's neutral result; only
// VerifyExecution also returns the Provider error alongside that result.
type Adapter struct {
	provider Provider
	retry    RetryConfig
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewAdapter wraps provider with retry/backoff and rate-limiting. ratePerSec
// bounds outbound oracle calls independent of the retry layer, so a
// free-exploration loop (§4.14) cannot hammer the oracle faster than the
// configured budget; 0 disables limiting.
func NewAdapter(provider Provider, retry RetryConfig, ratePerSec float64, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &Adapter{provider: provider, retry: retry, limiter: limiter, logger: logger}
}

func (a *Adapter) wait(ctx context.Context) {
	if a.limiter == nil {
		return
	}
	_ = a.limiter.Wait(ctx)
}

func (a *Adapter) call(ctx context.Context, op string, fn func() error) error {
	a.wait(ctx)

	ctx, span := tracer.Start(ctx, "oracle."+op, trace.WithAttributes(
		attribute.String("oracle.provider", a.provider.Name()),
	))
	defer span.End()

	err := withRetry(ctx, a.retry, fn)
	if err != nil && isSchemaError(err) {
		err = fn()
	}
	return err
}

// AnalyzeSession returns a plain-text summary, or an empty summary on
// failure (§4.3).
func (a *Adapter) AnalyzeSession(ctx context.Context, sessionText string) SessionSummary {
	var out SessionSummary
	err := a.call(ctx, "analyze_session", func() error {
		var innerErr error
		out, innerErr = a.provider.AnalyzeSession(ctx, sessionText)
		return innerErr
	})
	if err != nil {
		a.logger.Warn("oracle analyze_session failed, returning neutral result", "error", err)
		return SessionSummary{}
	}
	return out
}

// ExtractSkill returns nil on transport/schema failure or when the oracle
// itself decides IsSkill=false (§4.3).
func (a *Adapter) ExtractSkill(ctx context.Context, sessionText string) *ExtractedSkill {
	var out *ExtractedSkill
	err := a.call(ctx, "extract_skill", func() error {
		var innerErr error
		out, innerErr = a.provider.ExtractSkill(ctx, sessionText)
		return innerErr
	})
	if err != nil {
		a.logger.Warn("oracle extract_skill failed, returning neutral result", "error", err)
		return nil
	}
	if out != nil && !out.IsSkill {
		return nil
	}
	return out
}

// AnalyzeWorkflowSegment returns nil on failure or IsWorkflow=false (§4.3,
// §4.4).
func (a *Adapter) AnalyzeWorkflowSegment(ctx context.Context, actionsText, appName string) *WorkflowAnalysis {
	var out *WorkflowAnalysis
	err := a.call(ctx, "analyze_workflow_segment", func() error {
		var innerErr error
		out, innerErr = a.provider.AnalyzeWorkflowSegment(ctx, actionsText, appName)
		return innerErr
	})
	if err != nil {
		a.logger.Warn("oracle analyze_workflow_segment failed, returning neutral result", "error", err)
		return nil
	}
	if out != nil && !out.IsWorkflow {
		return nil
	}
	return out
}

// SelectNextAction returns a zero-confidence "done" action on failure;
// callers should treat a zero-confidence ActionChoice as "no good option".
func (a *Adapter) SelectNextAction(ctx context.Context, goal string, state State, available []AvailableAction, history []HistoryEntry) ActionChoice {
	var out ActionChoice
	err := a.call(ctx, "select_next_action", func() error {
		var innerErr error
		out, innerErr = a.provider.SelectNextAction(ctx, goal, state, available, history)
		return innerErr
	})
	if err != nil {
		a.logger.Warn("oracle select_next_action failed, returning neutral result", "error", err)
		return ActionChoice{ActionType: ActionDone, Reasoning: "oracle unavailable"}
	}
	return out
}

// VerifyExecution returns success=false with a reasoning string on failure,
// and a non-nil error when the oracle itself was unreachable — callers must
// not treat that neutral result as a verified negative (§4.3, §4.13).
func (a *Adapter) VerifyExecution(ctx context.Context, beforeImagePath, afterImagePath, expectedChange string) (VerificationResult, error) {
	var out VerificationResult
	err := a.call(ctx, "verify_execution", func() error {
		var innerErr error
		out, innerErr = a.provider.VerifyExecution(ctx, beforeImagePath, afterImagePath, expectedChange)
		return innerErr
	})
	if err != nil {
		a.logger.Warn("oracle verify_execution failed, returning neutral result", "error", err)
		return VerificationResult{Success: false, Reasoning: "oracle unavailable"}, err
	}
	return out, nil
}

// CheckGoalAchieved returns achieved=false with confidence=0 on failure
// (§4.3, §4.13).
func (a *Adapter) CheckGoalAchieved(ctx context.Context, goal string, state State, history []HistoryEntry) GoalCheck {
	var out GoalCheck
	err := a.call(ctx, "check_goal_achieved", func() error {
		var innerErr error
		out, innerErr = a.provider.CheckGoalAchieved(ctx, goal, state, history)
		return innerErr
	})
	if err != nil {
		a.logger.Warn("oracle check_goal_achieved failed, returning neutral result", "error", err)
		return GoalCheck{Achieved: false, Confidence: 0, Reasoning: "oracle unavailable"}
	}
	return out
}

// FindElementByVision returns nil on failure or when the oracle found
// nothing (§4.3, §4.14 vision fallback).
func (a *Adapter) FindElementByVision(ctx context.Context, imagePath, description string) *ElementMatch {
	var out *ElementMatch
	err := a.call(ctx, "find_element_by_vision", func() error {
		var innerErr error
		out, innerErr = a.provider.FindElementByVision(ctx, imagePath, description)
		return innerErr
	})
	if err != nil {
		a.logger.Warn("oracle find_element_by_vision failed, returning neutral result", "error", err)
		return nil
	}
	return out
}
