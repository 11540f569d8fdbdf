package update

import (
	"time"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #region update-input
// UpdateInput carries one finalized turn into the pure update function.
type UpdateInput struct {
	Analysis   analysis.TurnAnalysis
	Mechanical state.Mechanical
	Now        time.Time
	HistoryCap int // 0 means state.MaxHistory
}

// #endregion update-input

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from an update cycle.
type Metrics struct {
	DimensionsHit []string
	Skipped       []string // band ids whose dimension is not in the catalog
	Evicted       int      // history entries dropped by the cap
	AgencyScore   int
}

// #endregion metrics

// #region update-result
// UpdateResult bundles everything returned by Update().
type UpdateResult struct {
	NewState state.LearnerState
	Decision Decision
	Metrics  Metrics
}

// #endregion update-result
