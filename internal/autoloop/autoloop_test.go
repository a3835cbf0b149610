package autoloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuyaegusa/deskautomata/internal/action"
	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/observe"
	"github.com/kazuyaegusa/deskautomata/internal/probe"
	"github.com/kazuyaegusa/deskautomata/internal/verify"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

type fakeWorkflowStore struct {
	workflows map[string]*workflow.Workflow
}

func (f *fakeWorkflowStore) Get(id string) (*workflow.Workflow, error) {
	w, ok := f.workflows[id]
	if !ok {
		return nil, assert.AnError
	}
	return w, nil
}

func (f *fakeWorkflowStore) Search(query string, fb workflow.SuccessRateLookup) ([]*workflow.Workflow, error) {
	return nil, nil
}

type fakeFeedbackStore struct {
	recorded []*feedback.Feedback
}

func (f *fakeFeedbackStore) Record(fb *feedback.Feedback) (string, error) {
	f.recorded = append(f.recorded, fb)
	return fb.FeedbackID, nil
}

func (f *fakeFeedbackStore) GetSuccessRate(workflowID string) float64 { return 0 }

type fakePlatform struct{}

func (fakePlatform) FrontmostApp(ctx context.Context) (string, error) { return "Finder", nil }
func (fakePlatform) Screenshot(ctx context.Context, prefix string) (string, error) {
	return "/tmp/" + prefix + ".png", nil
}
func (fakePlatform) ElementAt(ctx context.Context, x, y int) (observe.PositionObservation, error) {
	return observe.PositionObservation{}, nil
}
func (fakePlatform) VisibleElements(ctx context.Context, pid, maxDepth int) ([]observe.Element, error) {
	return nil, nil
}

type fakeProbe struct {
	clicks int
}

func (f *fakeProbe) ActivateApp(ctx context.Context, bundleID string) error { return nil }
func (f *fakeProbe) Click(ctx context.Context, x, y int, button string) error {
	f.clicks++
	return nil
}
func (f *fakeProbe) TypeKeys(ctx context.Context, keycode int, flags []string, text string) error {
	return nil
}
func (f *fakeProbe) FindElement(ctx context.Context, target probe.TargetDescriptor) (probe.ElementMatch, error) {
	return probe.ElementMatch{X: 5, Y: 5, Method: probe.MatchIdentifier}, nil
}

func newTestLoop(t *testing.T, p probe.Probe, ws WorkflowStore, fs FeedbackStore) *Loop {
	observer := observe.New(fakePlatform{}, nil)
	selector := action.New(nil)
	verifier := verify.New(nil)

	loop := New(ws, fs, observer, selector, verifier, nil, p, nil, nil, nil)
	loop.sleep = func(time.Duration) {}
	return loop
}

func TestPlayWorkflow_RunsAllStepsAndRecordsFeedback(t *testing.T) {
	w := &workflow.Workflow{
		WorkflowID: "w1",
		Steps: []workflow.ActionStep{
			{ActionType: workflow.ActionClick, Target: workflow.Target{Identifier: "ok-button"}},
			{ActionType: workflow.ActionTextInput, Text: "hello"},
		},
	}
	ws := &fakeWorkflowStore{workflows: map[string]*workflow.Workflow{"w1": w}}
	fs := &fakeFeedbackStore{}
	p := &fakeProbe{}
	loop := newTestLoop(t, p, ws, fs)

	result, err := loop.PlayWorkflow(context.Background(), "w1", Options{Goal: "test"})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Steps, 2)
	require.Len(t, fs.recorded, 1)
	assert.Equal(t, feedback.ModeWorkflow, fs.recorded[0].ExecutionMode)
}

func TestPlayWorkflow_DryRunSkipsFeedback(t *testing.T) {
	w := &workflow.Workflow{WorkflowID: "w1", Steps: []workflow.ActionStep{{ActionType: workflow.ActionClick}}}
	ws := &fakeWorkflowStore{workflows: map[string]*workflow.Workflow{"w1": w}}
	fs := &fakeFeedbackStore{}
	loop := newTestLoop(t, &fakeProbe{}, ws, fs)

	_, err := loop.PlayWorkflow(context.Background(), "w1", Options{Goal: "test", DryRun: true})

	require.NoError(t, err)
	assert.Empty(t, fs.recorded)
}

func TestPlayWorkflow_AbortsAfterConsecutiveFailures(t *testing.T) {
	steps := make([]workflow.ActionStep, 10)
	for i := range steps {
		steps[i] = workflow.ActionStep{ActionType: workflow.ActionClick}
	}
	w := &workflow.Workflow{WorkflowID: "w1", Steps: steps}
	ws := &fakeWorkflowStore{workflows: map[string]*workflow.Workflow{"w1": w}}
	fs := &fakeFeedbackStore{}
	loop := newTestLoop(t, nil, ws, fs) // nil probe -> every step fails

	result, err := loop.PlayWorkflow(context.Background(), "w1", Options{Goal: "test", MaxConsecutiveFailures: 3})

	require.NoError(t, err)
	assert.Len(t, result.Steps, 3)
	assert.False(t, result.Success)
}
