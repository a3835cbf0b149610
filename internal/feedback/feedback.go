// Package feedback implements C6 Feedback Store: append-only execution
// outcomes and the per-workflow/per-step statistics derived from them (§4.6).
package feedback

import (
	"encoding/json"
	"time"

	"github.com/kazuyaegusa/deskautomata/pkg/rawjson"
)

// ExecutionMode distinguishes a workflow replay from free exploration (§3).
type ExecutionMode string

const (
	ModeWorkflow   ExecutionMode = "workflow"
	ModeAutonomous ExecutionMode = "autonomous"
)

// ErrorDetail names one step-level failure within an execution (§3).
type ErrorDetail struct {
	StepIndex int    `json:"step_index"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Feedback is one ExecutionFeedback record (§3). Append-only: never mutated
// or deleted once recorded.
type Feedback struct {
	FeedbackID        string        `json:"feedback_id"`
	WorkflowID        string        `json:"workflow_id,omitempty"`
	Goal              string        `json:"goal"`
	Success           bool          `json:"success"`
	StepsExecuted     int           `json:"steps_executed"`
	StepsSucceeded    int           `json:"steps_succeeded"`
	FailedStepIndices []int         `json:"failed_step_indices,omitempty"`
	ErrorDetails      []ErrorDetail `json:"error_details,omitempty"`
	Timestamp         time.Time     `json:"timestamp"`
	ExecutionMode     ExecutionMode `json:"execution_mode"`
	DurationSeconds   float64       `json:"duration_seconds"`
	AppName           string        `json:"app_name,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var feedbackKnownKeys = map[string]bool{
	"feedback_id": true, "workflow_id": true, "goal": true, "success": true,
	"steps_executed": true, "steps_succeeded": true, "failed_step_indices": true,
	"error_details": true, "timestamp": true, "execution_mode": true,
	"duration_seconds": true, "app_name": true,
}

type feedbackAlias Feedback

// UnmarshalJSON keeps unrecognized keys in Extra.
func (f *Feedback) UnmarshalJSON(data []byte) error {
	var aux feedbackAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	extra, err := rawjson.ExtractUnknown(data, feedbackKnownKeys)
	if err != nil {
		return err
	}
	*f = Feedback(aux)
	f.Extra = extra
	return nil
}

// MarshalJSON re-merges Extra back into the output.
func (f Feedback) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(feedbackAlias(f))
	if err != nil {
		return nil, err
	}
	return rawjson.Merge(known, f.Extra)
}
