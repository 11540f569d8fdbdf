package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/gate"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

// #region scorer
// Scorer computes the semantic integrity score of a finalized analysis.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given penalty weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score uses the default weights.
func Score(a analysis.TurnAnalysis, breach *gate.Breach) SemanticValidation {
	return NewScorer(DefaultWeights()).Score(a, breach)
}

// Score starts at 1.0 and subtracts one penalty per inconsistency found.
// The result is clamped to [0,1] and rounded to two decimals.
func (s *Scorer) Score(a analysis.TurnAnalysis, breach *gate.Breach) SemanticValidation {
	score := 1.0
	var penalties []string
	penalize := func(w float64, format string, args ...any) {
		score -= w
		penalties = append(penalties, fmt.Sprintf("%s (-%.1f)", fmt.Sprintf(format, args...), w))
	}

	// 1. Gate breach still present after supervision
	if breach != nil {
		w := s.weights.Breach
		if breach.Priority == rubric.PriorityCritical {
			w = s.weights.CriticalBreach
		}
		penalize(w, "gate %s breached: %s, detected %s", breach.TriggerBand, breach.RuleText, detected(breach))
	}

	// 2. Factual recall paired with critical or synthesis epistemics
	if a.HasBand(rubric.BandFactualRecall) &&
		(a.HasBand(rubric.BandEpistemicCritical) || a.HasBand(rubric.BandEpistemicSynthesis)) {
		penalize(s.weights.RecallWithCritique, "factual recall asserted with critical epistemic stance")
	}

	// 3. Claimed fact without a verified epistemic band
	if a.EpistemicStatus == analysis.EpistemicFact {
		e := a.Bands[rubric.DimEpistemic]
		if len(e) == 0 || a.HasBand(rubric.BandEpistemicUnverified) || a.HasBand(rubric.BandEpistemicSourced) {
			penalize(s.weights.UnsupportedFact, "status fact without verified epistemic band")
		}
	}

	// 4. Direct instruction while claiming learner autonomy
	if a.HasBand(rubric.BandInstruction) && (a.HasBand(rubric.BandLearnerAutonomous) || a.HasBand(rubric.BandLearnerLeading)) {
		penalize(s.weights.InstructionAutonomy, "instruction asserted with high learner autonomy")
	}

	score = math.Round(clamp(score)*100) / 100
	return SemanticValidation{GFactor: score, Penalties: penalties, Status: statusFor(score)}
}

// #endregion scorer

// #region helpers
func statusFor(score float64) Status {
	switch {
	case score < 0.5:
		return StatusCritical
	case score < 0.9:
		return StatusDrift
	default:
		return StatusOptimal
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func detected(b *gate.Breach) string {
	if b.DetectedValue == "" {
		return "none"
	}
	return b.DetectedValue
}

// #endregion helpers
