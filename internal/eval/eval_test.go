package eval

import (
	"testing"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/gate"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

func turn(status analysis.EpistemicStatus, bands map[string]analysis.BandList) analysis.TurnAnalysis {
	return analysis.TurnAnalysis{Bands: bands, EpistemicStatus: status}
}

func TestScoreTable(t *testing.T) {
	critical := &gate.Breach{TriggerBand: "K1", Priority: rubric.PriorityCritical, RuleText: "MAX_TD = TD2", DetectedValue: "TD5"}
	high := &gate.Breach{TriggerBand: "P2", Priority: rubric.PriorityHigh, RuleText: "MAX_TD = TD3", DetectedValue: "TD4"}

	tests := []struct {
		name      string
		a         analysis.TurnAnalysis
		breach    *gate.Breach
		want      float64
		status    Status
		penalties int
	}{
		{"clean", turn(analysis.EpistemicInterpretation, map[string]analysis.BandList{"K": {"K2"}}), nil, 1.0, StatusOptimal, 0},
		{"critical breach", turn(analysis.EpistemicInterpretation, nil), critical, 0.0, StatusCritical, 1},
		{"high breach", turn(analysis.EpistemicInterpretation, nil), high, 0.6, StatusDrift, 1},
		{"fact without E", turn(analysis.EpistemicFact, nil), nil, 0.7, StatusDrift, 1},
		{"fact with E2", turn(analysis.EpistemicFact, map[string]analysis.BandList{"E": {"E2"}}), nil, 0.7, StatusDrift, 1},
		{"fact with E3", turn(analysis.EpistemicFact, map[string]analysis.BandList{"E": {"E3"}}), nil, 1.0, StatusOptimal, 0},
		{"recall with critique", turn(analysis.EpistemicSpeculation, map[string]analysis.BandList{"K": {"K1"}, "E": {"E5"}}), nil, 0.8, StatusDrift, 1},
		{"instruction with autonomy", turn(analysis.EpistemicSpeculation, map[string]analysis.BandList{"P": {"P2"}, "TD": {"TD1"}}), nil, 0.8, StatusDrift, 1},
		{"boundary at half", turn(analysis.EpistemicFact, map[string]analysis.BandList{"K": {"K1"}, "E": {"E4", "E1"}}), nil, 0.5, StatusDrift, 2},
		{"everything", turn(analysis.EpistemicFact, map[string]analysis.BandList{"K": {"K1"}, "E": {"E4", "E1"}, "P": {"P2"}, "TD": {"TD2"}}), high, 0.0, StatusCritical, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.a, tt.breach)
			if got.GFactor != tt.want {
				t.Errorf("GFactor = %v, want %v (penalties %v)", got.GFactor, tt.want, got.Penalties)
			}
			if got.Status != tt.status {
				t.Errorf("Status = %s, want %s", got.Status, tt.status)
			}
			if len(got.Penalties) != tt.penalties {
				t.Errorf("penalties = %v, want %d", got.Penalties, tt.penalties)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	heavy := NewScorer(Weights{CriticalBreach: 5, Breach: 5, RecallWithCritique: 5, UnsupportedFact: 5, InstructionAutonomy: 5})
	got := heavy.Score(turn(analysis.EpistemicFact, nil), &gate.Breach{Priority: rubric.PriorityLow})
	if got.GFactor != 0 {
		t.Fatalf("score must clamp at 0, got %v", got.GFactor)
	}

	light := NewScorer(Weights{UnsupportedFact: -3})
	got = light.Score(turn(analysis.EpistemicFact, nil), nil)
	if got.GFactor != 1 {
		t.Fatalf("score must clamp at 1, got %v", got.GFactor)
	}
}

func TestStatusCriticalIffBelowHalf(t *testing.T) {
	for i := 0; i <= 100; i++ {
		s := float64(i) / 100
		if (statusFor(s) == StatusCritical) != (s < 0.5) {
			t.Errorf("statusFor(%v) = %s", s, statusFor(s))
		}
	}
}
