package oracle

import (
	"context"
	"fmt"
	"net/http"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

// GeminiProvider implements Provider against the generateContent API with
// response_mime_type/response_schema structured output, grounded on the
// same request semantics as OpenAIProvider but shaped for Gemini's wire
// format (original ai_client.py supports both backends behind one contract).
type GeminiProvider struct {
	apiKey      string
	model       string
	visionModel string
	baseURL     string
	client      *http.Client
}

func NewGeminiProvider(apiKey, model, visionModel string) *GeminiProvider {
	return &GeminiProvider{
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
		baseURL:     "https://generativelanguage.googleapis.com/v1beta/models",
		client:      defaultHTTPClient(),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string             `json:"text,omitempty"`
	InlineData *geminiInlineData  `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"response_mime_type"`
	ResponseSchema   map[string]any `json:"response_schema"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) generate(ctx context.Context, model, systemPrompt string, parts []geminiPart, schema map[string]any, dst any) error {
	req := geminiRequest{
		SystemInstruction: &geminiContent{Role: "system", Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
	var resp geminiResponse
	if err := httpPost(ctx, p.client, p.Name(), url, nil, req, &resp); err != nil {
		return err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return &pkgerrors.OracleError{Provider: p.Name(), Message: "empty candidates in response"}
	}
	return decodeStructuredJSON(p.Name(), resp.Candidates[0].Content.Parts[0].Text, dst)
}

func (p *GeminiProvider) AnalyzeSession(ctx context.Context, sessionText string) (SessionSummary, error) {
	var out SessionSummary
	err := p.generate(ctx, p.model,
		"Summarize this desktop-automation capture session in two or three sentences.",
		[]geminiPart{{Text: sessionText}},
		map[string]any{
			"type":       "object",
			"required":   []string{"summary"},
			"properties": map[string]any{"summary": map[string]any{"type": "string"}},
		}, &out)
	return out, err
}

func (p *GeminiProvider) ExtractSkill(ctx context.Context, sessionText string) (*ExtractedSkill, error) {
	var out ExtractedSkill
	err := p.generate(ctx, p.model,
		"Decide whether this capture session demonstrates a repeatable skill. If so extract its name, steps, app, and triggers.",
		[]geminiPart{{Text: sessionText}}, skillSchema(), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *GeminiProvider) AnalyzeWorkflowSegment(ctx context.Context, actionsText, appName string) (*WorkflowAnalysis, error) {
	var out WorkflowAnalysis
	err := p.generate(ctx, p.model,
		"Decide whether this action segment is a meaningful, repeatable workflow worth saving. If so name it, describe it, tag it, and identify any parameterizable steps.",
		[]geminiPart{{Text: fmt.Sprintf("app: %s\n\n%s", appName, actionsText)}}, workflowSchema(), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *GeminiProvider) SelectNextAction(ctx context.Context, goal string, state State, available []AvailableAction, history []HistoryEntry) (ActionChoice, error) {
	parts := []geminiPart{{Text: fmt.Sprintf("goal: %s\napp: %s\navailable actions: %v\nhistory: %v", goal, state.AppName, available, history)}}
	if state.ScreenshotPath != "" {
		if b64, err := encodeImage(state.ScreenshotPath); err == nil {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: "image/png", Data: b64}})
		}
	}
	var out ActionChoice
	err := p.generate(ctx, p.visionModel,
		"Choose the single next UI action that advances the goal, given the current screenshot and history.",
		parts, actionSelectionSchema(), &out)
	return out, err
}

func (p *GeminiProvider) VerifyExecution(ctx context.Context, beforeImagePath, afterImagePath, expectedChange string) (VerificationResult, error) {
	parts := []geminiPart{{Text: "Did the before/after screenshots change as expected: " + expectedChange}}
	for _, path := range []string{beforeImagePath, afterImagePath} {
		if path == "" {
			continue
		}
		b64, err := encodeImage(path)
		if err != nil {
			continue
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: "image/png", Data: b64}})
	}
	var out VerificationResult
	err := p.generate(ctx, p.visionModel,
		"Compare the before and after screenshots and judge whether the expected change happened.",
		parts, verificationSchema(), &out)
	return out, err
}

func (p *GeminiProvider) CheckGoalAchieved(ctx context.Context, goal string, state State, history []HistoryEntry) (GoalCheck, error) {
	parts := []geminiPart{{Text: fmt.Sprintf("goal: %s\napp: %s\nhistory: %v", goal, state.AppName, history)}}
	if state.ScreenshotPath != "" {
		if b64, err := encodeImage(state.ScreenshotPath); err == nil {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: "image/png", Data: b64}})
		}
	}
	var out GoalCheck
	err := p.generate(ctx, p.visionModel,
		"Judge from the current screenshot and action history whether the stated goal has been achieved.",
		parts, goalCheckSchema(), &out)
	return out, err
}

func (p *GeminiProvider) FindElementByVision(ctx context.Context, imagePath, description string) (*ElementMatch, error) {
	b64, err := encodeImage(imagePath)
	if err != nil {
		return nil, &pkgerrors.OracleError{Provider: p.Name(), Message: fmt.Sprintf("reading image: %v", err)}
	}
	parts := []geminiPart{
		{Text: description},
		{InlineData: &geminiInlineData{MimeType: "image/png", Data: b64}},
	}
	var raw struct {
		Found       bool    `json:"found"`
		X           int     `json:"x"`
		Y           int     `json:"y"`
		Confidence  float64 `json:"confidence"`
		Description string  `json:"description"`
	}
	if err := p.generate(ctx, p.visionModel,
		"Locate the described UI element in the screenshot and return its pixel coordinates, or found:false if absent.",
		parts, elementMatchSchema(), &raw); err != nil {
		return nil, err
	}
	if !raw.Found {
		return nil, nil
	}
	return &ElementMatch{X: raw.X, Y: raw.Y, Confidence: raw.Confidence, Description: raw.Description}, nil
}
