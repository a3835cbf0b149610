// Package workflow holds the core data model (§3) and the C5 Workflow Store
// (§4.5): ActionStep, Workflow, and their file-backed persistence.
package workflow

import (
	"encoding/json"
	"time"

	"github.com/kazuyaegusa/deskautomata/pkg/rawjson"
)

// ActionType enumerates the five executable step kinds (§3).
type ActionType string

const (
	ActionClick       ActionType = "click"
	ActionRightClick  ActionType = "right_click"
	ActionTextInput   ActionType = "text_input"
	ActionKeyInput    ActionType = "key_input"
	ActionKeyShortcut ActionType = "key_shortcut"
)

// Target is the executable target descriptor of an ActionStep (§3): role,
// title, value, description, identifier — the same vocabulary the UI-Probe
// contract's find_element uses to rank a match (§6).
type Target struct {
	Role        string `json:"role,omitempty"`
	Title       string `json:"title,omitempty"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
	Identifier  string `json:"identifier,omitempty"`
}

// HasDescriptor reports whether any structural hint is present at all, used
// by C8's ax_compatibility fallback and C12's vision-fallback decision.
func (t Target) HasDescriptor() bool {
	return t.Role != "" || t.Title != "" || t.Value != "" || t.Description != "" || t.Identifier != ""
}

// ActionStep is one executable unit within a Workflow (§3).
type ActionStep struct {
	ActionType ActionType `json:"action_type"`
	Target     Target     `json:"target,omitempty"`

	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	Text       string   `json:"text,omitempty"`
	Keycode    int       `json:"keycode,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`

	ScreenshotPath string `json:"screenshot_path,omitempty"`

	// IsParameterized/ParamName mark this step as accepting runtime
	// substitution (§4.12 select_from_workflow).
	IsParameterized bool   `json:"is_parameterized,omitempty"`
	ParamName       string `json:"param_name,omitempty"`

	// TimeoutSeconds, WaitBeforeSeconds, and RequireFocusCheck are all
	// variant-generation knobs (§4.7): a TIMEOUT variant multiplies
	// TimeoutSeconds by 1.5; a low-count HINT_NOT_FOUND variant sets
	// WaitBeforeSeconds; an INPUT_FAILED variant sets RequireFocusCheck.
	TimeoutSeconds    float64 `json:"timeout_seconds,omitempty"`
	WaitBeforeSeconds float64 `json:"wait_before_seconds,omitempty"`
	RequireFocusCheck bool    `json:"require_focus_check,omitempty"`
}

// Status is a Workflow's lifecycle stage (§3, §4.7).
type Status string

const (
	StatusDraft      Status = "draft"
	StatusTested     Status = "tested"
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// Parameter names a substitutable slot within a Workflow's steps.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StepIndex   int    `json:"step_index"`
}

var workflowKnownKeys = map[string]bool{
	"workflow_id": true, "name": true, "description": true, "steps": true,
	"app_name": true, "tags": true, "parameters": true, "confidence": true,
	"source_session_ids": true, "created_at": true, "status": true,
	"execution_count": true, "parent_id": true,
}

// Workflow is the central persisted unit (§3).
type Workflow struct {
	WorkflowID       string      `json:"workflow_id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	Steps            []ActionStep `json:"steps"`
	AppName          string      `json:"app_name"`
	Tags             []string    `json:"tags,omitempty"`
	Parameters       []Parameter `json:"parameters,omitempty"`
	Confidence       float64     `json:"confidence"`
	SourceSessionIDs []string    `json:"source_session_ids,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	Status           Status      `json:"status"`
	ExecutionCount    int        `json:"execution_count"`
	ParentID         string      `json:"parent_id,omitempty"`

	// Extra preserves unknown keys across a read-then-write round-trip
	// (§6 "unknown fields are preserved").
	Extra map[string]json.RawMessage `json:"-"`
}

type workflowAlias Workflow

// UnmarshalJSON keeps unrecognized keys in Extra.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	var aux workflowAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	extra, err := rawjson.ExtractUnknown(data, workflowKnownKeys)
	if err != nil {
		return err
	}
	*w = Workflow(aux)
	w.Extra = extra
	return nil
}

// MarshalJSON re-merges Extra back into the output.
func (w Workflow) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(workflowAlias(w))
	if err != nil {
		return nil, err
	}
	return rawjson.Merge(known, w.Extra)
}

// IsVariant reports whether this workflow was generated as a variant of
// another (§4.7).
func (w *Workflow) IsVariant() bool {
	return w.ParentID != ""
}
