package refine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

type memWorkflowStore struct {
	byID map[string]*workflow.Workflow
}

func newMemWorkflowStore(workflows ...*workflow.Workflow) *memWorkflowStore {
	s := &memWorkflowStore{byID: make(map[string]*workflow.Workflow)}
	for _, w := range workflows {
		s.byID[w.WorkflowID] = w
	}
	return s
}

func (s *memWorkflowStore) ListAll() ([]*workflow.Workflow, error) {
	var out []*workflow.Workflow
	for _, w := range s.byID {
		out = append(out, w)
	}
	return out, nil
}

func (s *memWorkflowStore) Save(w *workflow.Workflow) error {
	s.byID[w.WorkflowID] = w
	return nil
}

func (s *memWorkflowStore) Delete(id string) (bool, error) {
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	delete(s.byID, id)
	return true, nil
}

type memFeedbackStore struct {
	byWorkflow map[string][]*feedback.Feedback
}

func (s *memFeedbackStore) GetByWorkflow(workflowID string) ([]*feedback.Feedback, error) {
	return s.byWorkflow[workflowID], nil
}

func (s *memFeedbackStore) GetSuccessRate(workflowID string) float64 {
	fs := s.byWorkflow[workflowID]
	if len(fs) == 0 {
		return 0
	}
	successes := 0
	for _, f := range fs {
		if f.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(fs))
}

func (s *memFeedbackStore) GetStepFailureRates(workflowID string) (map[int]float64, error) {
	fs := s.byWorkflow[workflowID]
	if len(fs) == 0 {
		return map[int]float64{}, nil
	}
	counts := make(map[int]int)
	for _, f := range fs {
		for _, idx := range f.FailedStepIndices {
			counts[idx]++
		}
	}
	rates := make(map[int]float64, len(counts))
	for idx, c := range counts {
		rates[idx] = float64(c) / float64(len(fs))
	}
	return rates, nil
}

func TestRefiner_Run_DeprecatesLowSuccessWorkflow(t *testing.T) {
	w := &workflow.Workflow{WorkflowID: "w1", Name: "broken", AppName: "Finder", Status: workflow.StatusDraft, Confidence: 0.5}
	workflows := newMemWorkflowStore(w)
	feedbacks := &memFeedbackStore{byWorkflow: map[string][]*feedback.Feedback{
		"w1": {
			{WorkflowID: "w1", Success: false},
			{WorkflowID: "w1", Success: false},
			{WorkflowID: "w1", Success: false},
		},
	}}

	r := New(workflows, feedbacks, nil)
	_, err := r.Run()

	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDeprecated, workflows.byID["w1"].Status)
}

func TestRefiner_Run_ActivatesHighSuccessWorkflow(t *testing.T) {
	w := &workflow.Workflow{WorkflowID: "w1", Name: "reliable", AppName: "Finder", Status: workflow.StatusDraft, Confidence: 0.5}
	workflows := newMemWorkflowStore(w)
	fb := make([]*feedback.Feedback, 5)
	for i := range fb {
		fb[i] = &feedback.Feedback{WorkflowID: "w1", Success: true}
	}
	feedbacks := &memFeedbackStore{byWorkflow: map[string][]*feedback.Feedback{"w1": fb}}

	r := New(workflows, feedbacks, nil)
	_, err := r.Run()

	require.NoError(t, err)
	assert.Equal(t, workflow.StatusActive, workflows.byID["w1"].Status)
}

func TestRefiner_PruneFailingSteps(t *testing.T) {
	w := &workflow.Workflow{
		WorkflowID: "w1", Name: "leaky", AppName: "Finder", Status: workflow.StatusTested,
		Steps: []workflow.ActionStep{{ActionType: workflow.ActionClick}, {ActionType: workflow.ActionTextInput}},
	}
	workflows := newMemWorkflowStore(w)
	feedbacks := &memFeedbackStore{byWorkflow: map[string][]*feedback.Feedback{
		"w1": {
			{WorkflowID: "w1", Success: true, FailedStepIndices: []int{1}},
			{WorkflowID: "w1", Success: true, FailedStepIndices: []int{1}},
			{WorkflowID: "w1", Success: true, FailedStepIndices: []int{1}},
		},
	}}

	r := New(workflows, feedbacks, nil)
	summary, err := r.Run()

	require.NoError(t, err)
	assert.Equal(t, 1, summary.StepsPruned)
	assert.Len(t, workflows.byID["w1"].Steps, 1)
	assert.Equal(t, workflow.ActionClick, workflows.byID["w1"].Steps[0].ActionType)
}

func TestRefiner_GenerateVariants_HintNotFoundHighCount(t *testing.T) {
	w := &workflow.Workflow{
		WorkflowID: "w1", Name: "finicky", AppName: "Finder", Status: workflow.StatusTested, Confidence: 1.0,
		Steps: []workflow.ActionStep{{ActionType: workflow.ActionClick, Target: workflow.Target{Role: "button"}}},
	}
	workflows := newMemWorkflowStore(w)
	var fb []*feedback.Feedback
	for i := 0; i < 6; i++ {
		fb = append(fb, &feedback.Feedback{
			WorkflowID: "w1", Success: false,
			ErrorDetails: []feedback.ErrorDetail{{StepIndex: 0, ErrorCode: "HINT_NOT_FOUND"}},
		})
	}
	feedbacks := &memFeedbackStore{byWorkflow: map[string][]*feedback.Feedback{"w1": fb}}

	r := New(workflows, feedbacks, nil)
	summary, err := r.Run()

	require.NoError(t, err)
	assert.Equal(t, 1, summary.VariantsCreated)

	var variant *workflow.Workflow
	for _, w := range workflows.byID {
		if w.ParentID == "w1" {
			variant = w
		}
	}
	require.NotNil(t, variant)
	assert.Equal(t, "finicky_v1", variant.Name)
	assert.Equal(t, workflow.StatusDraft, variant.Status)
	assert.InDelta(t, 0.56, variant.Confidence, 1e-9)
	assert.True(t, variant.Steps[0].Target.Role == "")
}

func TestRefiner_MergeSimilar(t *testing.T) {
	a := &workflow.Workflow{
		WorkflowID: "a", Name: "export report", AppName: "Finder", Confidence: 0.6,
		Tags: []string{"export", "report"}, Steps: []workflow.ActionStep{{}, {}},
	}
	b := &workflow.Workflow{
		WorkflowID: "b", Name: "export reports", AppName: "Finder", Confidence: 0.8,
		Tags: []string{"export", "report"}, Steps: []workflow.ActionStep{{}},
	}
	workflows := newMemWorkflowStore(a, b)
	feedbacks := &memFeedbackStore{byWorkflow: map[string][]*feedback.Feedback{}}

	r := New(workflows, feedbacks, nil)
	summary, err := r.Run()

	require.NoError(t, err)
	assert.Equal(t, 1, summary.WorkflowsMerged)
	assert.Len(t, workflows.byID, 1)
}

func TestSelectBestVariant_PicksHighestSuccessRate(t *testing.T) {
	original := &workflow.Workflow{WorkflowID: "orig", Name: "wf", ExecutionCount: 3}
	variant := &workflow.Workflow{WorkflowID: "var", Name: "wf_v1", ParentID: "orig", ExecutionCount: 3}
	workflows := newMemWorkflowStore(original, variant)
	feedbacks := &memFeedbackStore{byWorkflow: map[string][]*feedback.Feedback{
		"orig": {{Success: false}, {Success: false}, {Success: true}},
		"var":  {{Success: true}, {Success: true}, {Success: true}},
	}}

	r := New(workflows, feedbacks, nil)
	best, err := r.SelectBestVariant("orig")

	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "var", best.WorkflowID)
}
