package meta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

type fakeFeedbackLister struct {
	items []*feedback.Feedback
}

func (f *fakeFeedbackLister) ListAll() ([]*feedback.Feedback, error) {
	return f.items, nil
}

type fakeWorkflowLister struct {
	items []*workflow.Workflow
}

func (f *fakeWorkflowLister) ListAll() ([]*workflow.Workflow, error) {
	return f.items, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
}

func TestAnalyzer_Analyze_OverallSuccessRate(t *testing.T) {
	now := fixedNow()
	fb := []*feedback.Feedback{
		{WorkflowID: "w1", AppName: "Finder", Success: true, Timestamp: now.Add(-time.Hour), DurationSeconds: 2},
		{WorkflowID: "w1", AppName: "Finder", Success: false, Timestamp: now.Add(-2 * time.Hour), DurationSeconds: 4},
	}
	analyzer := New(&fakeFeedbackLister{items: fb}, &fakeWorkflowLister{}, 0, func() time.Time { return now })

	report, err := analyzer.Analyze()

	require.NoError(t, err)
	assert.Equal(t, 0.5, report.OverallSuccessRate)
	require.Len(t, report.PerApp, 1)
	assert.Equal(t, "Finder", report.PerApp[0].AppName)
	assert.Equal(t, 3.0, report.PerApp[0].AvgDuration)
}

func TestAnalyzer_Analyze_ExcludesOutsideWindow(t *testing.T) {
	now := fixedNow()
	fb := []*feedback.Feedback{
		{WorkflowID: "w1", Success: true, Timestamp: now.Add(-8 * 24 * time.Hour)},
	}
	analyzer := New(&fakeFeedbackLister{items: fb}, &fakeWorkflowLister{}, 0, func() time.Time { return now })

	report, err := analyzer.Analyze()

	require.NoError(t, err)
	assert.Equal(t, 0.0, report.OverallSuccessRate)
}

func TestDetectRegression_DropBelowThresholdDetected(t *testing.T) {
	now := fixedNow()
	var fs []*feedback.Feedback
	for i := 0; i < 10; i++ {
		fs = append(fs, &feedback.Feedback{Success: true, Timestamp: now.Add(time.Duration(i) * time.Minute)})
	}
	for i := 10; i < 20; i++ {
		fs = append(fs, &feedback.Feedback{Success: false, Timestamp: now.Add(time.Duration(i) * time.Minute)})
	}

	assert.True(t, detectRegression(fs))
}

func TestDetectRegression_NotEnoughFeedback(t *testing.T) {
	assert.False(t, detectRegression(nil))
}

func TestAnalyzer_Suggestions_DeprecatedWorkflowFlagged(t *testing.T) {
	now := fixedNow()
	workflows := []*workflow.Workflow{{WorkflowID: "w1", Name: "old", Status: workflow.StatusDeprecated}}
	analyzer := New(&fakeFeedbackLister{}, &fakeWorkflowLister{items: workflows}, 0, func() time.Time { return now })

	report, err := analyzer.Analyze()

	require.NoError(t, err)
	require.Len(t, report.Suggestions, 1)
	assert.Equal(t, "medium", report.Suggestions[0].Priority)
}
