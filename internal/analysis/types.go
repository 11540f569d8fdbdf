package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

// ErrMalformedOutput reports provider output that could not be decoded into a TurnAnalysis.
var ErrMalformedOutput = errors.New("malformed structured output")

// #region enums
// EpistemicStatus is the model's claim about the certainty of its own content.
type EpistemicStatus string

const (
	EpistemicFact           EpistemicStatus = "fact"
	EpistemicInterpretation EpistemicStatus = "interpretation"
	EpistemicSpeculation    EpistemicStatus = "speculation"
	EpistemicUnknown        EpistemicStatus = "unknown"
)

// SRLState is the self-regulated-learning phase the learner appears to be in.
type SRLState string

const (
	SRLPlan    SRLState = "PLAN"
	SRLMonitor SRLState = "MONITOR"
	SRLReflect SRLState = "REFLECT"
	SRLAdjust  SRLState = "ADJUST"
	SRLUnknown SRLState = "UNKNOWN"
)

var epistemicValues = map[EpistemicStatus]bool{
	EpistemicFact: true, EpistemicInterpretation: true, EpistemicSpeculation: true, EpistemicUnknown: true,
}

var srlValues = map[SRLState]bool{
	SRLPlan: true, SRLMonitor: true, SRLReflect: true, SRLAdjust: true, SRLUnknown: true,
}

// #endregion enums

// #region band-list
// BandList is the set of band ids asserted for one dimension. It decodes from
// a JSON string, an array of strings, or null.
type BandList []string

// UnmarshalJSON accepts "K1", ["K1","K2"] and null.
func (b *BandList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*b = nil
			return nil
		}
		*b = BandList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*b = list
	return nil
}

// #endregion band-list

// #region turn-analysis
// TurnAnalysis is the structured classification of one generation call.
type TurnAnalysis struct {
	Bands              map[string]BandList `json:"bands"`
	Reasoning          string              `json:"reasoning"`
	ActiveFix          *string             `json:"active_fix"`
	TaskDensityBalance float64             `json:"task_density_balance"`
	EpistemicStatus    EpistemicStatus     `json:"epistemic_status"`
	SRLState           SRLState            `json:"srl_state"`
}

// Band returns the first band asserted for a dimension.
func (a TurnAnalysis) Band(dim string) (string, bool) {
	list := a.Bands[dim]
	if len(list) == 0 {
		return "", false
	}
	return list[0], true
}

// HasBand reports whether the band id is asserted in any dimension.
func (a TurnAnalysis) HasBand(id string) bool {
	for _, list := range a.Bands {
		for _, b := range list {
			if b == id {
				return true
			}
		}
	}
	return false
}

// AllBands returns every asserted band id, ordered by dimension id.
func (a TurnAnalysis) AllBands() []string {
	dims := make([]string, 0, len(a.Bands))
	for d := range a.Bands {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	var out []string
	for _, d := range dims {
		out = append(out, a.Bands[d]...)
	}
	return out
}

// Clone returns a deep copy.
func (a TurnAnalysis) Clone() TurnAnalysis {
	out := a
	if a.Bands != nil {
		out.Bands = make(map[string]BandList, len(a.Bands))
		for d, list := range a.Bands {
			out.Bands[d] = append(BandList(nil), list...)
		}
	}
	if a.ActiveFix != nil {
		fix := *a.ActiveFix
		out.ActiveFix = &fix
	}
	return out
}

// #endregion turn-analysis

// #region envelope
// envelope is the full provider payload: learner-facing text plus analysis.
type envelope struct {
	ConversationalResponse string `json:"conversational_response"`
	TurnAnalysis
}

// #endregion envelope
