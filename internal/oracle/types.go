// Package oracle implements C3, the AI Oracle Adapter: a uniform,
// provider-pluggable request layer over the remote AI service (§4.3).
package oracle

// ActionType enumerates the actions select_next_action may return. It
// shares click/right_click/text_input/key_shortcut with workflow.ActionType,
// lacks workflow's key_input, and adds "wait" and "done", which only ever
// occur in the free-exploration loop (§4.14), never inside a stored
// Workflow's steps.
type ActionType string

const (
	ActionClick       ActionType = "click"
	ActionRightClick  ActionType = "right_click"
	ActionTextInput   ActionType = "text_input"
	ActionKeyShortcut ActionType = "key_shortcut"
	ActionWait        ActionType = "wait"
	ActionDone        ActionType = "done"
)

// SessionSummary is the result of analyze_session.
type SessionSummary struct {
	Summary string `json:"summary"`
}

// ExtractedSkill is the structured result of extract_skill (§4.3). A nil
// *ExtractedSkill means the oracle decided IsSkill=false.
type ExtractedSkill struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	App         string   `json:"app"`
	Triggers    []string `json:"triggers"`
	Confidence  float64  `json:"confidence"`
	IsSkill     bool     `json:"is_skill"`
}

// ParameterHint names a substitutable slot the oracle identified within a
// segment (§4.3, §4.4).
type ParameterHint struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StepIndex   int    `json:"step_index"`
}

// WorkflowAnalysis is the structured result of analyze_workflow_segment
// (§4.3). A nil *WorkflowAnalysis means the oracle decided IsWorkflow=false.
type WorkflowAnalysis struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	Parameters  []ParameterHint `json:"parameters"`
	Confidence  float64         `json:"confidence"`
	IsWorkflow  bool            `json:"is_workflow"`
}

// ActionChoice is the structured result of select_next_action (§4.3).
type ActionChoice struct {
	ActionType           ActionType `json:"action_type"`
	TargetDescription    string     `json:"target_description"`
	X                    int        `json:"x"`
	Y                    int        `json:"y"`
	Text                 string     `json:"text"`
	Keycode              int        `json:"keycode"`
	Flags                []string   `json:"flags"`
	Modifiers            []string   `json:"modifiers"`
	Reasoning            string     `json:"reasoning"`
	Confidence           float64    `json:"confidence"`

	// RequiresConfirmation is not set by the oracle itself; C12 sets it
	// after the call when the current app is on the dangerous-apps list
	// (§4.12).
	RequiresConfirmation bool `json:"-"`
}

// VerificationResult is the result of verify_execution (§4.3).
type VerificationResult struct {
	Success   bool   `json:"success"`
	Reasoning string `json:"reasoning"`
}

// GoalCheck is the result of check_goal_achieved (§4.3).
type GoalCheck struct {
	Achieved   bool    `json:"achieved"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ElementMatch is the result of find_element_by_vision (§4.3). A nil
// *ElementMatch means the oracle found nothing.
type ElementMatch struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// AvailableAction describes one action select_next_action may choose from
// (§4.3's "available_actions" argument).
type AvailableAction struct {
	ActionType  ActionType `json:"action_type"`
	Description string     `json:"description"`
}

// HistoryEntry is one prior step's outcome, given as context to
// select_next_action and check_goal_achieved (§4.3).
type HistoryEntry struct {
	ActionType ActionType `json:"action_type"`
	Target     string     `json:"target"`
	Success    bool       `json:"success"`
}

// State is a snapshot handed to the oracle alongside a goal (§4.3, §4.11).
type State struct {
	AppName        string `json:"app_name"`
	ScreenshotPath string `json:"screenshot_path"`
}
