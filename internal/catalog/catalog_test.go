package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

type fakeWorkflowLister struct {
	workflows []*workflow.Workflow
}

func (f *fakeWorkflowLister) ListAll() ([]*workflow.Workflow, error) {
	return f.workflows, nil
}

type fakeFeedbackLookup struct {
	rates map[string]float64
}

func (f *fakeFeedbackLookup) GetSuccessRate(workflowID string) float64 {
	return f.rates[workflowID]
}

func (f *fakeFeedbackLookup) HasFeedback(workflowID string) bool {
	_, ok := f.rates[workflowID]
	return ok
}

func TestClassify_AppNameTakesPrecedenceOverTags(t *testing.T) {
	w := &workflow.Workflow{AppName: "Cursor", Tags: []string{"チャット"}}
	assert.Equal(t, "開発", Classify(w))
}

func TestClassify_FallsBackToTags(t *testing.T) {
	w := &workflow.Workflow{AppName: "UnknownApp", Tags: []string{"Web"}}
	assert.Equal(t, "ブラウザ/Web", Classify(w))
}

func TestClassify_DefaultsToOther(t *testing.T) {
	w := &workflow.Workflow{AppName: "UnknownApp", Tags: []string{"nothing-matches"}}
	assert.Equal(t, uncategorized, Classify(w))
}

func TestGenerator_Evaluate_RanksHighConfidenceReliableWorkflowA(t *testing.T) {
	w := &workflow.Workflow{
		WorkflowID: "w1", AppName: "Finder", Confidence: 0.9,
		Steps: []workflow.ActionStep{{ActionType: workflow.ActionKeyShortcut}},
	}
	gen := New(&fakeWorkflowLister{}, &fakeFeedbackLookup{rates: map[string]float64{"w1": 0.9}}, nil)

	repro := gen.Evaluate(w)

	assert.Equal(t, "A", repro.Rank)
	assert.InDelta(t, 0.95, repro.AXCompatibility, 0.001)
}

func TestGenerator_Evaluate_NoFeedbackUsesDefaultEffectiveRate(t *testing.T) {
	w := &workflow.Workflow{WorkflowID: "w1", AppName: "Discord", Confidence: 0.2, Steps: nil}
	gen := New(&fakeWorkflowLister{}, &fakeFeedbackLookup{rates: map[string]float64{}}, nil)

	repro := gen.Evaluate(w)

	assert.Equal(t, 0.15, repro.SuccessRate)
}

func TestGenerator_Report_WritesCatalogIndexAlways(t *testing.T) {
	dir := t.TempDir()
	workflows := []*workflow.Workflow{
		{WorkflowID: "w1", Name: "wf1", AppName: "Finder", Confidence: 0.9, Status: workflow.StatusActive},
	}
	gen := New(&fakeWorkflowLister{workflows: workflows}, &fakeFeedbackLookup{rates: map[string]float64{"w1": 1.0}}, nil)

	out, err := gen.Report("markdown", "非存在カテゴリ", dir)

	require.NoError(t, err)
	assert.Contains(t, out, "再現性レポート")

	_, statErr := os.Stat(filepath.Join(dir, "parts", "catalog.json"))
	assert.NoError(t, statErr)
}

func TestGenerator_Report_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	workflows := []*workflow.Workflow{
		{WorkflowID: "w1", Name: "wf1", AppName: "Finder", Confidence: 0.9, Status: workflow.StatusActive},
	}
	gen := New(&fakeWorkflowLister{workflows: workflows}, &fakeFeedbackLookup{rates: map[string]float64{"w1": 1.0}}, nil)

	out, err := gen.Report("json", "", dir)

	require.NoError(t, err)
	assert.Contains(t, out, `"workflow_id": "w1"`)
}
