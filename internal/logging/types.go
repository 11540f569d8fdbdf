package logging

import "time"

// Trigger values for TurnRecord.Trigger.
const (
	TriggerLearnerTurn = "learner_turn"
	TriggerNudge       = "nudge"
)

// #region turn-record
// TurnRecord is a single row in the turn_log table: the full provenance of one
// finalized (or failed) turn. JSON columns are stored as produced by the
// orchestrator so the record can be replayed without the original session.
type TurnRecord struct {
	ID             int64
	SessionID      string
	VersionID      string // state version committed by this turn; empty on failure
	Turn           int
	Trigger        string // "learner_turn" | "nudge"
	Message        string
	Response       string
	Tier           string
	AnalysisJSON   string
	RepairJSON     string
	SupervisorJSON string
	GFactor        float64
	Status         string
	Degraded       bool
	Decision       string // "commit" | "no_op" | "failed"
	CreatedAt      time.Time
}

// #endregion turn-record
