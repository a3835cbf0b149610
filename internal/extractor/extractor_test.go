package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuyaegusa/deskautomata/internal/capture"
	"github.com/kazuyaegusa/deskautomata/internal/oracle"
	"github.com/kazuyaegusa/deskautomata/internal/segment"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

type fakeOracle struct {
	analysis *oracle.WorkflowAnalysis
}

func (f *fakeOracle) AnalyzeWorkflowSegment(ctx context.Context, actionsText, appName string) *oracle.WorkflowAnalysis {
	return f.analysis
}

type fakeStore struct {
	saved []*workflow.Workflow
}

func (f *fakeStore) SaveWithDedup(w *workflow.Workflow) error {
	f.saved = append(f.saved, w)
	return nil
}

func record(t time.Time, app, actionType string) *capture.Record {
	return &capture.Record{
		Timestamp:  t,
		UserAction: capture.UserAction{Type: actionType},
		App:        capture.App{Name: app},
		SourcePath: "cap_" + t.Format(time.RFC3339Nano) + ".json",
	}
}

func TestExtractor_ExtractAll_SavesConfirmedWorkflow(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	records := []*capture.Record{
		record(base, "Finder", "click"),
		record(base.Add(1*time.Second), "Finder", "click"),
	}
	fo := &fakeOracle{analysis: &oracle.WorkflowAnalysis{
		Name: "export-report", Description: "exports a report", Confidence: 0.8, IsWorkflow: true,
	}}
	store := &fakeStore{}
	ext := New(fo, store, segment.DefaultWorkflowConfig(), nil)

	result, err := ext.ExtractAll(context.Background(), records)

	require.NoError(t, err)
	assert.Equal(t, 1, result.SegmentsBuilt)
	assert.Equal(t, 1, result.WorkflowsSaved)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "export-report", store.saved[0].Name)
	assert.Equal(t, workflow.StatusDraft, store.saved[0].Status)
	assert.Len(t, store.saved[0].WorkflowID, 8)
}

func TestExtractor_ExtractAll_SkipsNonWorkflowSegment(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	records := []*capture.Record{record(base, "Finder", "click")}
	store := &fakeStore{}
	ext := New(&fakeOracle{analysis: nil}, store, segment.DefaultWorkflowConfig(), nil)

	result, err := ext.ExtractAll(context.Background(), records)

	require.NoError(t, err)
	assert.Equal(t, 1, result.WorkflowsSkipped)
	assert.Empty(t, store.saved)
}

func TestExtractor_ExtractIncremental_SkipsAlreadyProcessed(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	r1 := record(base, "Finder", "click")
	r2 := record(base.Add(1*time.Second), "Finder", "click")
	processed := map[string]bool{r1.SourcePath: true}

	store := &fakeStore{}
	fo := &fakeOracle{analysis: &oracle.WorkflowAnalysis{Name: "wf", Confidence: 0.5, IsWorkflow: true}}
	ext := New(fo, store, segment.DefaultWorkflowConfig(), nil)

	_, updated, err := ext.ExtractIncremental(context.Background(), []*capture.Record{r1, r2}, processed)

	require.NoError(t, err)
	assert.True(t, updated[r1.SourcePath])
	assert.True(t, updated[r2.SourcePath])
}
