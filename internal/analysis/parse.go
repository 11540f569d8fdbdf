package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// #region extract
// ExtractJSON strips code-fence wrappers and returns the outermost {...} span.
// Providers sometimes wrap structured output in prose or markdown.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, fence := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}
	return s[start : end+1], nil
}

// #endregion extract

// #region decode
// Decode parses a provider payload into the learner-facing text and the
// unvalidated analysis. Call Heal on the analysis before trusting it.
func Decode(raw string) (string, TurnAnalysis, error) {
	body, err := ExtractJSON(raw)
	if err != nil {
		return "", TurnAnalysis{}, err
	}
	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return "", TurnAnalysis{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return strings.TrimSpace(env.ConversationalResponse), env.TurnAnalysis, nil
}

// Encode renders text and analysis back into the provider payload shape.
// Used when replaying a rejected draft to the model as an assistant turn.
func Encode(text string, a TurnAnalysis) string {
	data, err := json.Marshal(envelope{ConversationalResponse: text, TurnAnalysis: a})
	if err != nil {
		return text
	}
	return string(data)
}

// #endregion decode

// #region fallback
// Fallback is the deterministic analysis used when output stays malformed
// after repair. The turn still finalizes with it.
func Fallback() TurnAnalysis {
	return TurnAnalysis{
		Bands:              map[string]BandList{},
		Reasoning:          "parse failure",
		TaskDensityBalance: 50,
		EpistemicStatus:    EpistemicUnknown,
		SRLState:           SRLUnknown,
	}
}

// #endregion fallback
