package action

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kazuyaegusa/deskautomata/internal/oracle"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

func TestSelectFromWorkflow_OutOfRangeReturnsNil(t *testing.T) {
	s := New(nil)
	w := &workflow.Workflow{Steps: []workflow.ActionStep{{ActionType: workflow.ActionClick}}}

	assert.Nil(t, s.SelectFromWorkflow(w, 5, nil))
}

func TestSelectFromWorkflow_SubstitutesParam(t *testing.T) {
	s := New(nil)
	w := &workflow.Workflow{Steps: []workflow.ActionStep{
		{ActionType: workflow.ActionTextInput, Text: "placeholder", IsParameterized: true, ParamName: "query"},
	}}

	step := s.SelectFromWorkflow(w, 0, map[string]string{"query": "hello"})

	assert.Equal(t, "hello", step.Text)
}

func TestSelectFromWorkflow_NoSubstitutionWhenParamMissing(t *testing.T) {
	s := New(nil)
	w := &workflow.Workflow{Steps: []workflow.ActionStep{
		{ActionType: workflow.ActionTextInput, Text: "placeholder", IsParameterized: true, ParamName: "query"},
	}}

	step := s.SelectFromWorkflow(w, 0, nil)

	assert.Equal(t, "placeholder", step.Text)
}

func TestIsDangerousApp_ExactAndContainment(t *testing.T) {
	assert.True(t, isDangerousApp("Slack"))
	assert.True(t, isDangerousApp("Slack Helper"))
	assert.False(t, isDangerousApp("Finder"))
}

func TestActionDictToStep_Click(t *testing.T) {
	choice := oracle.ActionChoice{ActionType: oracle.ActionClick, X: 10, Y: 20, TargetDescription: "OK button"}

	step := ActionDictToStep(choice)

	assert.Equal(t, workflow.ActionClick, step.ActionType)
	assert.Equal(t, 10, step.X)
	assert.Equal(t, "OK button", step.Target.Description)
}
