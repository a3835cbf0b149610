package oracle

import "context"

// Provider is the raw transport contract a concrete oracle client (OpenAI,
// Gemini, ...) implements. Unlike Adapter, a Provider method MAY return an
// error — Adapter is responsible for retrying and ultimately neutralizing
// failures (§4.3, §7).
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "gemini").
	Name() string

	AnalyzeSession(ctx context.Context, sessionText string) (SessionSummary, error)
	ExtractSkill(ctx context.Context, sessionText string) (*ExtractedSkill, error)
	AnalyzeWorkflowSegment(ctx context.Context, actionsText, appName string) (*WorkflowAnalysis, error)
	SelectNextAction(ctx context.Context, goal string, state State, available []AvailableAction, history []HistoryEntry) (ActionChoice, error)
	VerifyExecution(ctx context.Context, beforeImagePath, afterImagePath, expectedChange string) (VerificationResult, error)
	CheckGoalAchieved(ctx context.Context, goal string, state State, history []HistoryEntry) (GoalCheck, error)
	FindElementByVision(ctx context.Context, imagePath, description string) (*ElementMatch, error)
}
