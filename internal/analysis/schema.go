package analysis

import "github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"

// Schema builds the JSON schema for the provider payload from the catalog.
// Lists are []any so the value converts cleanly to protobuf Struct values.
func Schema(cat *rubric.Catalog) map[string]any {
	dims := map[string]any{}
	for _, d := range cat.Dimensions() {
		ids := make([]any, 0, len(d.Bands))
		for _, b := range d.Bands {
			ids = append(ids, b.ID)
		}
		dims[d.ID] = map[string]any{
			"type":        "array",
			"description": d.Name,
			"items":       map[string]any{"type": "string", "enum": ids},
		}
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"conversational_response": map[string]any{"type": "string"},
			"bands":                   map[string]any{"type": "object", "properties": dims},
			"reasoning":               map[string]any{"type": "string"},
			"active_fix":              map[string]any{"type": []any{"string", "null"}},
			"task_density_balance":    map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"epistemic_status": map[string]any{
				"type": "string",
				"enum": []any{string(EpistemicFact), string(EpistemicInterpretation), string(EpistemicSpeculation), string(EpistemicUnknown)},
			},
			"srl_state": map[string]any{
				"type": "string",
				"enum": []any{string(SRLPlan), string(SRLMonitor), string(SRLReflect), string(SRLAdjust), string(SRLUnknown)},
			},
		},
		"required": []any{"conversational_response", "bands", "reasoning", "epistemic_status", "srl_state"},
	}
}
