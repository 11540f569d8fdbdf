package nudge

import "time"

// #region phase
// Phase is the scheduler's view of the session.
type Phase string

const (
	PhaseIdle    Phase = "IDLE"    // learner active recently, no nudge pending
	PhaseWaiting Phase = "WAITING" // at least one nudge sent, awaiting the learner
	PhaseBusy    Phase = "BUSY"    // a turn is in flight
)

// #endregion phase

// #region request
// MaxLevel is the last escalation level; no nudge follows it until the
// learner interacts again.
const MaxLevel = 3

// Request asks the engine for a proactive turn at an escalation level.
type Request struct {
	Level   int
	IdleFor time.Duration
}

// #endregion request

// #region ttl-bounds
const (
	BaseTTL = 60 * time.Second
	MinTTL  = 30 * time.Second
	MaxTTL  = 180 * time.Second

	// DefaultInterval is how often the scheduler checks the idle timer.
	DefaultInterval = 5 * time.Second
)

// #endregion ttl-bounds
