package state

import (
	"errors"
	"time"
)

// MaxHistory caps LearnerState.History; the oldest entries are evicted first.
const MaxHistory = 50

// ErrNotFound reports a missing session or version.
var ErrNotFound = errors.New("state not found")

// #region learner-state
// LearnerState is the longitudinal model of one learner session. A new
// version is derived per finalized turn; earlier versions stay in the store.
type LearnerState struct {
	SessionID    string            `json:"session_id"`
	VersionID    string            `json:"version_id"`
	ParentID     string            `json:"parent_id,omitempty"`
	Turn         int               `json:"turn"`
	CurrentBands map[string]string `json:"current_bands"` // dimension id -> latest band id
	History      []HistoryEntry    `json:"history"`
	Scaffolding  ScaffoldingState  `json:"scaffolding"`
	Mechanical   Mechanical        `json:"mechanical"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewLearnerState returns the empty state a session starts in.
func NewLearnerState(sessionID string) LearnerState {
	return LearnerState{
		SessionID:    sessionID,
		CurrentBands: map[string]string{},
		Scaffolding:  ScaffoldingState{Trend: TrendStable},
	}
}

// Clone returns a deep copy.
func (s LearnerState) Clone() LearnerState {
	out := s
	if s.CurrentBands != nil {
		out.CurrentBands = make(map[string]string, len(s.CurrentBands))
		for k, v := range s.CurrentBands {
			out.CurrentBands[k] = v
		}
	}
	if s.History != nil {
		out.History = make([]HistoryEntry, len(s.History))
		for i, h := range s.History {
			h.Bands = append([]string(nil), h.Bands...)
			out.History[i] = h
		}
	}
	return out
}

// #endregion learner-state

// #region history-entry
// HistoryEntry records one finalized turn.
type HistoryEntry struct {
	Turn        int       `json:"turn"`
	Bands       []string  `json:"bands"`
	SRL         string    `json:"srl"`
	AgencyScore int       `json:"agency_score"`
	Timestamp   time.Time `json:"timestamp"`
}

// #endregion history-entry

// #region scaffolding
// Trend is the direction of learner agency over the recent window.
type Trend string

const (
	TrendRising  Trend = "RISING"
	TrendFalling Trend = "FALLING"
	TrendStable  Trend = "STABLE"
)

// ScaffoldingState is the derived agency trend plus optional advice for the
// next system prompt.
type ScaffoldingState struct {
	Trend   Trend   `json:"trend"`
	Average float64 `json:"average"`
	Samples int     `json:"samples"`
	Advice  string  `json:"advice,omitempty"`
}

// #endregion scaffolding

// #region mechanical
// Mechanical is the telemetry of the turn that produced a state version.
type Mechanical struct {
	LatencyMs        int64  `json:"latency_ms"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Calls            int    `json:"calls"`
	Tier             string `json:"tier"`
	Model            string `json:"model"`
	Repaired         bool   `json:"repaired"`
	Rewritten        bool   `json:"rewritten"`
	Degraded         bool   `json:"degraded"`
}

// #endregion mechanical
