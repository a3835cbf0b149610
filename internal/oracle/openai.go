package oracle

import (
	"context"
	"fmt"
	"net/http"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

// OpenAIProvider implements Provider against the Chat Completions API with
// structured outputs (response_format: json_schema, strict:true), grounded
// on the original pipeline's ai_client.py request shapes.
type OpenAIProvider struct {
	apiKey         string
	model          string
	visionModel    string
	baseURL        string
	reasoningLevel string
	client         *http.Client
}

// NewOpenAIProvider builds a Provider. model is used for text-only calls,
// visionModel for the four calls that may attach a screenshot
// (select_next_action, verify_execution, check_goal_achieved,
// find_element_by_vision). reasoningLevel is passed through as the
// "reasoning_effort" request field for reasoning-capable models; an empty
// string omits it.
func NewOpenAIProvider(apiKey, model, visionModel, reasoningLevel string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:         apiKey,
		model:          model,
		visionModel:    visionModel,
		baseURL:        "https://api.openai.com/v1",
		reasoningLevel: reasoningLevel,
		client:         defaultHTTPClient(),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIJSONSchemaFormat struct {
	Type       string `json:"type"`
	JSONSchema struct {
		Name   string         `json:"name"`
		Strict bool           `json:"strict"`
		Schema map[string]any `json:"schema"`
	} `json:"json_schema"`
}

type openAIRequest struct {
	Model            string                  `json:"model"`
	Messages         []openAIMessage         `json:"messages"`
	ResponseFormat   openAIJSONSchemaFormat  `json:"response_format"`
	ReasoningEffort  string                  `json:"reasoning_effort,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) structuredFormat(name string, schema map[string]any) openAIJSONSchemaFormat {
	f := openAIJSONSchemaFormat{Type: "json_schema"}
	f.JSONSchema.Name = name
	f.JSONSchema.Strict = true
	f.JSONSchema.Schema = schema
	return f
}

func (p *OpenAIProvider) complete(ctx context.Context, model string, messages []openAIMessage, format openAIJSONSchemaFormat, dst any) error {
	req := openAIRequest{
		Model:           model,
		Messages:        messages,
		ResponseFormat:  format,
		ReasoningEffort: p.reasoningLevel,
	}
	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := httpPost(ctx, p.client, p.Name(), p.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return &pkgerrors.OracleError{Provider: p.Name(), Message: "empty choices in response"}
	}
	return decodeStructuredJSON(p.Name(), resp.Choices[0].Message.Content, dst)
}

func (p *OpenAIProvider) AnalyzeSession(ctx context.Context, sessionText string) (SessionSummary, error) {
	messages := []openAIMessage{
		{Role: "system", Content: "Summarize this desktop-automation capture session in two or three sentences."},
		{Role: "user", Content: sessionText},
	}
	var out SessionSummary
	err := p.complete(ctx, p.model, messages, p.structuredFormat("session_summary", map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"summary"},
		"properties":           map[string]any{"summary": map[string]any{"type": "string"}},
	}), &out)
	return out, err
}

func (p *OpenAIProvider) ExtractSkill(ctx context.Context, sessionText string) (*ExtractedSkill, error) {
	messages := []openAIMessage{
		{Role: "system", Content: "Decide whether this capture session demonstrates a repeatable skill. If so extract its name, steps, app, and triggers."},
		{Role: "user", Content: sessionText},
	}
	var out ExtractedSkill
	if err := p.complete(ctx, p.model, messages, p.structuredFormat("extracted_skill", skillSchema()), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *OpenAIProvider) AnalyzeWorkflowSegment(ctx context.Context, actionsText, appName string) (*WorkflowAnalysis, error) {
	messages := []openAIMessage{
		{Role: "system", Content: "Decide whether this action segment is a meaningful, repeatable workflow worth saving. If so name it, describe it, tag it, and identify any parameterizable steps."},
		{Role: "user", Content: fmt.Sprintf("app: %s\n\n%s", appName, actionsText)},
	}
	var out WorkflowAnalysis
	if err := p.complete(ctx, p.model, messages, p.structuredFormat("workflow_analysis", workflowSchema()), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *OpenAIProvider) SelectNextAction(ctx context.Context, goal string, state State, available []AvailableAction, history []HistoryEntry) (ActionChoice, error) {
	content := []any{
		map[string]any{"type": "text", "text": fmt.Sprintf("goal: %s\napp: %s\navailable actions: %v\nhistory: %v", goal, state.AppName, available, history)},
	}
	if state.ScreenshotPath != "" {
		if b64, err := encodeImage(state.ScreenshotPath); err == nil {
			content = append(content, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": "data:image/png;base64," + b64},
			})
		}
	}
	messages := []openAIMessage{
		{Role: "system", Content: "Choose the single next UI action that advances the goal, given the current screenshot and history."},
		{Role: "user", Content: content},
	}
	var out ActionChoice
	err := p.complete(ctx, p.visionModel, messages, p.structuredFormat("action_choice", actionSelectionSchema()), &out)
	return out, err
}

func (p *OpenAIProvider) VerifyExecution(ctx context.Context, beforeImagePath, afterImagePath, expectedChange string) (VerificationResult, error) {
	content := []any{
		map[string]any{"type": "text", "text": "Did the before/after screenshots change as expected: " + expectedChange},
	}
	for _, path := range []string{beforeImagePath, afterImagePath} {
		if path == "" {
			continue
		}
		b64, err := encodeImage(path)
		if err != nil {
			continue
		}
		content = append(content, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": "data:image/png;base64," + b64},
		})
	}
	messages := []openAIMessage{
		{Role: "system", Content: "Compare the before and after screenshots and judge whether the expected change happened."},
		{Role: "user", Content: content},
	}
	var out VerificationResult
	err := p.complete(ctx, p.visionModel, messages, p.structuredFormat("verification_result", verificationSchema()), &out)
	return out, err
}

func (p *OpenAIProvider) CheckGoalAchieved(ctx context.Context, goal string, state State, history []HistoryEntry) (GoalCheck, error) {
	content := []any{
		map[string]any{"type": "text", "text": fmt.Sprintf("goal: %s\napp: %s\nhistory: %v", goal, state.AppName, history)},
	}
	if state.ScreenshotPath != "" {
		if b64, err := encodeImage(state.ScreenshotPath); err == nil {
			content = append(content, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": "data:image/png;base64," + b64},
			})
		}
	}
	messages := []openAIMessage{
		{Role: "system", Content: "Judge from the current screenshot and action history whether the stated goal has been achieved."},
		{Role: "user", Content: content},
	}
	var out GoalCheck
	err := p.complete(ctx, p.visionModel, messages, p.structuredFormat("goal_check", goalCheckSchema()), &out)
	return out, err
}

func (p *OpenAIProvider) FindElementByVision(ctx context.Context, imagePath, description string) (*ElementMatch, error) {
	b64, err := encodeImage(imagePath)
	if err != nil {
		return nil, &pkgerrors.OracleError{Provider: p.Name(), Message: fmt.Sprintf("reading image: %v", err)}
	}
	messages := []openAIMessage{
		{Role: "system", Content: "Locate the described UI element in the screenshot and return its pixel coordinates, or found:false if absent."},
		{Role: "user", Content: []any{
			map[string]any{"type": "text", "text": description},
			map[string]any{"type": "image_url", "image_url": map[string]any{"url": "data:image/png;base64," + b64}},
		}},
	}
	var raw struct {
		Found       bool    `json:"found"`
		X           int     `json:"x"`
		Y           int     `json:"y"`
		Confidence  float64 `json:"confidence"`
		Description string  `json:"description"`
	}
	if err := p.complete(ctx, p.visionModel, messages, p.structuredFormat("element_match", elementMatchSchema()), &raw); err != nil {
		return nil, err
	}
	if !raw.Found {
		return nil, nil
	}
	return &ElementMatch{X: raw.X, Y: raw.Y, Confidence: raw.Confidence, Description: raw.Description}, nil
}
