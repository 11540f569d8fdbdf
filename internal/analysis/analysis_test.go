package analysis

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

func strPtr(s string) *string { return &s }

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`, false},
		{"no object", "sorry, I cannot", "", true},
		{"reversed braces", "} {", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	raw := "```json\n" + `{
  "conversational_response": "  Wat denk je zelf?  ",
  "bands": {"K": "K2", "TD": ["TD2"], "E": null},
  "reasoning": "learner asks for a definition",
  "active_fix": "/checkvraag",
  "task_density_balance": 62.5,
  "epistemic_status": "interpretation",
  "srl_state": "MONITOR"
}` + "\n```"

	text, a, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Wat denk je zelf?", text)
	assert.Equal(t, BandList{"K2"}, a.Bands["K"])
	assert.Equal(t, BandList{"TD2"}, a.Bands["TD"])
	assert.Nil(t, a.Bands["E"])
	require.NotNil(t, a.ActiveFix)
	assert.Equal(t, "/checkvraag", *a.ActiveFix)
	assert.Equal(t, 62.5, a.TaskDensityBalance)
	assert.Equal(t, SRLMonitor, a.SRLState)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{"", "no json here", `{"bands": [1, 2}`, `{"bands": {"K": 5}}`} {
		_, _, err := Decode(raw)
		if !errors.Is(err, ErrMalformedOutput) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformedOutput", raw, err)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	a := Fallback()
	a.Bands["K"] = BandList{"K1"}
	text, got, err := Decode(Encode("hallo", a))
	require.NoError(t, err)
	assert.Equal(t, "hallo", text)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestHealCommandAlias(t *testing.T) {
	cat := rubric.Default()
	in := TurnAnalysis{
		Bands:           map[string]BandList{"K": {"K2"}},
		ActiveFix:       strPtr("/proces_evaluatie"),
		EpistemicStatus: EpistemicInterpretation,
		SRLState:        SRLPlan,
	}

	out, warnings := Heal(cat, in)
	require.NotNil(t, out.ActiveFix)
	assert.Equal(t, "/proces_eval", *out.ActiveFix)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "/proces_evaluatie")
}

func TestHealActiveFix(t *testing.T) {
	cat := rubric.Default()
	tests := []struct {
		name     string
		in       *string
		want     *string
		warnings int
	}{
		{"nil", nil, nil, 0},
		{"literal null", strPtr("null"), nil, 0},
		{"exact", strPtr("/meta"), strPtr("/meta"), 0},
		{"missing slash", strPtr("meta"), strPtr("/meta"), 0},
		{"prefix extension", strPtr("/falsificatietest"), strPtr("/falsificatie"), 1},
		{"truncated", strPtr("/samenv"), strPtr("/samenvatting"), 1},
		{"unknown", strPtr("/dance"), nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, warnings := Heal(cat, TurnAnalysis{ActiveFix: tt.in})
			assert.Equal(t, tt.want, out.ActiveFix)
			assert.Len(t, warnings, tt.warnings)
		})
	}
}

func TestHealBands(t *testing.T) {
	cat := rubric.Default()
	in := TurnAnalysis{
		Bands: map[string]BandList{
			"k":  {"[k1]", "K1", "K7"},
			"TD": {"TD4", ""},
			"K2": {"P2"},
			"Q":  {"Q1"},
		},
	}
	out, warnings := Heal(cat, in)

	want := map[string]BandList{
		"K":  {"K1"},
		"P":  {"P2"},
		"TD": {"TD4"},
	}
	if diff := cmp.Diff(want, out.Bands); diff != "" {
		t.Errorf("bands mismatch (-want +got):\n%s", diff)
	}
	// K7 and Q1 pruned, P2 moved.
	assert.Len(t, warnings, 3)
}

func TestHealEnumsAndBalance(t *testing.T) {
	cat := rubric.Default()
	out, warnings := Heal(cat, TurnAnalysis{
		TaskDensityBalance: 140,
		EpistemicStatus:    "FACT",
		SRLState:           "daydreaming",
	})
	assert.Equal(t, 100.0, out.TaskDensityBalance)
	assert.Equal(t, EpistemicFact, out.EpistemicStatus)
	assert.Equal(t, SRLUnknown, out.SRLState)
	assert.Len(t, warnings, 2)

	out, _ = Heal(cat, TurnAnalysis{TaskDensityBalance: -3})
	assert.Equal(t, 0.0, out.TaskDensityBalance)
	assert.Equal(t, EpistemicUnknown, out.EpistemicStatus)
}

func TestHealIdempotent(t *testing.T) {
	cat := rubric.Default()
	inputs := []TurnAnalysis{
		{},
		Fallback(),
		{
			Bands:              map[string]BandList{"k": {"k1", "TD5"}, "E": {"E9", "E2"}, "X": {"X1"}},
			ActiveFix:          strPtr("/proces_evaluatie"),
			TaskDensityBalance: 250,
			EpistemicStatus:    "Speculation",
			SRLState:           "reflect",
			Reasoning:          "  padded  ",
		},
		{
			Bands:     map[string]BandList{"TD": {"TD1"}, "Z": {"TD3"}},
			ActiveFix: strPtr("/samenv"),
		},
	}
	for i, in := range inputs {
		once, _ := Heal(cat, in)
		twice, warnings := Heal(cat, once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("input %d: second heal changed analysis (-once +twice):\n%s", i, diff)
		}
		if len(warnings) != 0 {
			t.Errorf("input %d: second heal warned: %v", i, warnings)
		}
	}
}

func TestSchemaListsCatalog(t *testing.T) {
	cat := rubric.Default()
	s := Schema(cat)

	props := s["properties"].(map[string]any)
	bands := props["bands"].(map[string]any)["properties"].(map[string]any)
	assert.Len(t, bands, len(cat.Dimensions()))

	td := bands["TD"].(map[string]any)["items"].(map[string]any)["enum"].([]any)
	assert.Equal(t, []any{"TD1", "TD2", "TD3", "TD4", "TD5"}, td)
}

func TestAnalysisHelpers(t *testing.T) {
	a := TurnAnalysis{Bands: map[string]BandList{"TD": {"TD2"}, "K": {"K1", "K3"}}}
	b, ok := a.Band("K")
	assert.True(t, ok)
	assert.Equal(t, "K1", b)
	assert.True(t, a.HasBand("K3"))
	assert.False(t, a.HasBand("E1"))
	assert.Equal(t, []string{"K1", "K3", "TD2"}, a.AllBands())

	c := a.Clone()
	c.Bands["K"][0] = "K2"
	assert.Equal(t, "K1", a.Bands["K"][0])
}
