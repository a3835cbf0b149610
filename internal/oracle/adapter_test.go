package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

type fakeProvider struct {
	name string

	selectErrs  []error
	selectCalls int
	selectOut   ActionChoice

	extractOut *ExtractedSkill
	extractErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) AnalyzeSession(ctx context.Context, sessionText string) (SessionSummary, error) {
	return SessionSummary{}, nil
}

func (f *fakeProvider) ExtractSkill(ctx context.Context, sessionText string) (*ExtractedSkill, error) {
	return f.extractOut, f.extractErr
}

func (f *fakeProvider) AnalyzeWorkflowSegment(ctx context.Context, actionsText, appName string) (*WorkflowAnalysis, error) {
	return nil, nil
}

func (f *fakeProvider) SelectNextAction(ctx context.Context, goal string, state State, available []AvailableAction, history []HistoryEntry) (ActionChoice, error) {
	idx := f.selectCalls
	f.selectCalls++
	if idx < len(f.selectErrs) && f.selectErrs[idx] != nil {
		return ActionChoice{}, f.selectErrs[idx]
	}
	return f.selectOut, nil
}

func (f *fakeProvider) VerifyExecution(ctx context.Context, beforeImagePath, afterImagePath, expectedChange string) (VerificationResult, error) {
	return VerificationResult{}, nil
}

func (f *fakeProvider) CheckGoalAchieved(ctx context.Context, goal string, state State, history []HistoryEntry) (GoalCheck, error) {
	return GoalCheck{}, nil
}

func (f *fakeProvider) FindElementByVision(ctx context.Context, imagePath, description string) (*ElementMatch, error) {
	return nil, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestAdapter_SelectNextAction_RetriesThenSucceeds(t *testing.T) {
	provider := &fakeProvider{
		name:        "fake",
		selectErrs:  []error{&pkgerrors.OracleError{Provider: "fake", StatusCode: 500, Message: "boom"}},
		selectCalls: 0,
		selectOut:   ActionChoice{ActionType: ActionClick, Confidence: 0.9},
	}
	adapter := NewAdapter(provider, fastRetryConfig(), 0, nil)

	out := adapter.SelectNextAction(context.Background(), "goal", State{}, nil, nil)

	assert.Equal(t, ActionClick, out.ActionType)
	assert.Equal(t, 2, provider.selectCalls)
}

func TestAdapter_SelectNextAction_NeutralResultOnExhaustedRetries(t *testing.T) {
	failAlways := &pkgerrors.OracleError{Provider: "fake", StatusCode: 503, Message: "down"}
	provider := &fakeProvider{
		name:       "fake",
		selectErrs: []error{failAlways, failAlways, failAlways, failAlways, failAlways},
	}
	adapter := NewAdapter(provider, fastRetryConfig(), 0, nil)

	out := adapter.SelectNextAction(context.Background(), "goal", State{}, nil, nil)

	assert.Equal(t, ActionDone, out.ActionType)
	assert.Equal(t, "oracle unavailable", out.Reasoning)
}

func TestAdapter_ExtractSkill_NilWhenNotASkill(t *testing.T) {
	provider := &fakeProvider{name: "fake", extractOut: &ExtractedSkill{IsSkill: false}}
	adapter := NewAdapter(provider, fastRetryConfig(), 0, nil)

	out := adapter.ExtractSkill(context.Background(), "session text")

	assert.Nil(t, out)
}

func TestAdapter_ExtractSkill_ReturnsSkill(t *testing.T) {
	provider := &fakeProvider{name: "fake", extractOut: &ExtractedSkill{IsSkill: true, Name: "export-report"}}
	adapter := NewAdapter(provider, fastRetryConfig(), 0, nil)

	out := adapter.ExtractSkill(context.Background(), "session text")

	require.NotNil(t, out)
	assert.Equal(t, "export-report", out.Name)
}

func TestRetryConfig_DelayIsLinearAndCapped(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 4*time.Second, cfg.delay(1))
	assert.Equal(t, 8*time.Second, cfg.delay(2))
	assert.Equal(t, 30*time.Second, cfg.delay(20))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&pkgerrors.OracleError{StatusCode: 500}))
	assert.True(t, isRetryableError(&pkgerrors.OracleError{StatusCode: 429}))
	assert.False(t, isRetryableError(&pkgerrors.OracleError{StatusCode: 400}))
	assert.True(t, isRetryableError(&pkgerrors.TimeoutError{}))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(errors.New("plain")))
}
