package oracle

// The following JSON Schemas mirror the oracle contract's structured-call
// requirements (§4.3: "is_skill, is_workflow, and action_type enumerations
// are mandatory"), grounded on the original pipeline's ai_client.py schemas
// (additionalProperties:false, strict:true, explicit required lists). Both
// concrete providers pass these through their respective structured-output
// parameters.

func skillSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name", "description", "steps", "app", "triggers", "confidence", "is_skill"},
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"steps":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"app":         map[string]any{"type": "string"},
			"triggers":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"confidence":  map[string]any{"type": "number"},
			"is_skill":    map[string]any{"type": "boolean"},
		},
	}
}

func workflowSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name", "description", "tags", "parameters", "confidence", "is_workflow"},
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"parameters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"name", "description", "step_index"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"step_index":  map[string]any{"type": "integer"},
					},
				},
			},
			"confidence":  map[string]any{"type": "number"},
			"is_workflow": map[string]any{"type": "boolean"},
		},
	}
}

func actionSelectionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required": []string{
			"action_type", "target_description", "x", "y", "text", "keycode",
			"flags", "modifiers", "reasoning", "confidence",
		},
		"properties": map[string]any{
			"action_type": map[string]any{
				"type": "string",
				"enum": []string{"click", "right_click", "text_input", "key_shortcut", "wait", "done"},
			},
			"target_description": map[string]any{"type": "string"},
			"x":                   map[string]any{"type": "integer"},
			"y":                   map[string]any{"type": "integer"},
			"text":                map[string]any{"type": "string"},
			"keycode":             map[string]any{"type": "integer"},
			"flags":               map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"modifiers":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"reasoning":           map[string]any{"type": "string"},
			"confidence":          map[string]any{"type": "number"},
		},
	}
}

func verificationSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"success", "reasoning"},
		"properties": map[string]any{
			"success":   map[string]any{"type": "boolean"},
			"reasoning": map[string]any{"type": "string"},
		},
	}
}

func goalCheckSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"achieved", "confidence", "reasoning"},
		"properties": map[string]any{
			"achieved":   map[string]any{"type": "boolean"},
			"confidence": map[string]any{"type": "number"},
			"reasoning":  map[string]any{"type": "string"},
		},
	}
}

func elementMatchSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"found", "x", "y", "confidence", "description"},
		"properties": map[string]any{
			"found":       map[string]any{"type": "boolean"},
			"x":           map[string]any{"type": "integer"},
			"y":           map[string]any{"type": "integer"},
			"confidence":  map[string]any{"type": "number"},
			"description": map[string]any{"type": "string"},
		},
	}
}
