package replay

import (
	"time"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/eval"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/gate"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/update"
)

// #region types
// Interaction is one recorded, finalized turn.
type Interaction struct {
	TurnID     string
	Trigger    string
	Message    string
	Response   string
	Analysis   analysis.TurnAnalysis
	RecordedAt time.Time // zero means Config.Epoch + turn index seconds
}

// ReplayConfig bundles the deterministic stage parameters.
type ReplayConfig struct {
	Weights    eval.Weights
	HistoryCap int
	Epoch      time.Time
}

// DefaultReplayConfig returns the production weights and history cap.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Weights:    eval.DefaultWeights(),
		HistoryCap: state.MaxHistory,
		Epoch:      time.Unix(0, 0).UTC(),
	}
}

// ReplayResult captures the outcome of replaying one interaction.
type ReplayResult struct {
	TurnID string
	Action string // "commit" | "no_op"
	Reason string
	Turn   int

	// Gate stage: the breach still present in the finalized analysis
	Breach *gate.Breach

	// Scorer stage
	Validation eval.SemanticValidation

	// Update stage
	UpdateDecision update.Decision
	UpdateMetrics  update.Metrics
	Scaffolding    state.ScaffoldingState
	HealWarnings   []string

	FinalVersionID string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns  int
	Commits     int
	NoOps       int
	Breaches    int
	Optimal     int
	Drift       int
	Critical    int
	MeanGFactor float64
	FinalState  state.LearnerState
}

// #endregion types

// #region replay
// Replay runs the deterministic stages (heal, gate, score, update) over
// recorded analyses, entirely in memory. No provider is involved.
func Replay(cat *rubric.Catalog, start state.LearnerState, interactions []Interaction, config ReplayConfig) ([]ReplayResult, state.LearnerState) {
	current := start.Clone()
	scorer := eval.NewScorer(config.Weights)
	results := make([]ReplayResult, 0, len(interactions))

	for i, inter := range interactions {
		// 1. Heal (idempotent for analyses recorded by the engine)
		a, warnings := analysis.Heal(cat, inter.Analysis)

		// 2. Gate
		breach := gate.Check(cat, a)

		// 3. Score
		validation := scorer.Score(a, breach)

		// 4. Update
		now := inter.RecordedAt
		if now.IsZero() {
			now = config.Epoch.Add(time.Duration(i+1) * time.Second)
		}
		upd := update.Update(current, update.UpdateInput{
			Analysis:   a,
			Now:        now,
			HistoryCap: config.HistoryCap,
		}, cat)
		current = upd.NewState

		results = append(results, ReplayResult{
			TurnID:         inter.TurnID,
			Action:         upd.Decision.Action,
			Reason:         upd.Decision.Reason,
			Turn:           current.Turn,
			Breach:         breach,
			Validation:     validation,
			UpdateDecision: upd.Decision,
			UpdateMetrics:  upd.Metrics,
			Scaffolding:    current.Scaffolding,
			HealWarnings:   warnings,
			FinalVersionID: current.VersionID,
		})
	}
	return results, current
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, finalState state.LearnerState) ReplaySummary {
	s := ReplaySummary{
		TotalTurns: len(results),
		FinalState: finalState,
	}
	var total float64
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
		case "no_op":
			s.NoOps++
		}
		if r.Breach != nil {
			s.Breaches++
		}
		switch r.Validation.Status {
		case eval.StatusOptimal:
			s.Optimal++
		case eval.StatusDrift:
			s.Drift++
		case eval.StatusCritical:
			s.Critical++
		}
		total += r.Validation.GFactor
	}
	if len(results) > 0 {
		s.MeanGFactor = total / float64(len(results))
	}
	return s
}

// #endregion replay
