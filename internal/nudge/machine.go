package nudge

import (
	"time"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

// #region ttl
// DynamicTTL returns how long the learner may stay idle after a turn with
// the given analysis before the first nudge. High learner autonomy and
// metacognitive work earn more time; AI-dominant turns and factual recall
// less.
func DynamicTTL(a analysis.TurnAnalysis) time.Duration {
	ttl := BaseTTL
	if a.HasBand(rubric.BandLearnerAutonomous) || a.HasBand(rubric.BandLearnerLeading) {
		ttl += 60 * time.Second
	}
	if a.HasBand(rubric.BandMetacognition) {
		ttl += 45 * time.Second
	}
	if a.HasBand(rubric.BandAILeading) || a.HasBand(rubric.BandAIDominant) {
		ttl -= 20 * time.Second
	}
	if a.HasBand(rubric.BandFactualRecall) {
		ttl -= 15 * time.Second
	}
	switch {
	case ttl < MinTTL:
		return MinTTL
	case ttl > MaxTTL:
		return MaxTTL
	}
	return ttl
}

// #endregion ttl

// #region machine
// Machine is the pure scheduler state. It is not safe for concurrent use;
// Scheduler owns one inside its Run goroutine.
type Machine struct {
	phase    Phase
	level    int
	ready    bool
	ttl      time.Duration
	lastSeen time.Time
}

// NewMachine starts idle with the base TTL, counting from now.
func NewMachine(now time.Time) *Machine {
	return &Machine{phase: PhaseIdle, ttl: BaseTTL, lastSeen: now}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Level returns the last emitted escalation level, 0 when none.
func (m *Machine) Level() int { return m.level }

// TTL returns the current idle threshold.
func (m *Machine) TTL() time.Duration { return m.ttl }

// SetReady gates nudging until session setup has finished.
func (m *Machine) SetReady(ready bool, now time.Time) {
	if ready && !m.ready {
		m.lastSeen = now
	}
	m.ready = ready
}

// Touch records learner input (a keystroke or a message) and resets the
// escalation.
func (m *Machine) Touch(now time.Time) {
	m.lastSeen = now
	m.level = 0
	if m.phase != PhaseBusy {
		m.phase = PhaseIdle
	}
}

// Busy marks a turn in flight; no nudge fires while busy.
func (m *Machine) Busy() {
	m.phase = PhaseBusy
}

// Done ends a turn. A successful turn re-arms the timer with the TTL derived
// from its analysis; a failed one keeps the previous TTL.
func (m *Machine) Done(now time.Time, a analysis.TurnAnalysis, err error) {
	m.lastSeen = now
	if err == nil {
		m.ttl = DynamicTTL(a)
	}
	if m.level > 0 {
		m.phase = PhaseWaiting
	} else {
		m.phase = PhaseIdle
	}
}

// Tick reports whether a nudge is due at now and, if so, advances the
// escalation level.
func (m *Machine) Tick(now time.Time) (Request, bool) {
	if !m.ready || m.phase == PhaseBusy || m.level >= MaxLevel {
		return Request{}, false
	}
	idle := now.Sub(m.lastSeen)
	if idle < m.ttl {
		return Request{}, false
	}
	m.level++
	m.phase = PhaseWaiting
	m.lastSeen = now
	return Request{Level: m.level, IdleFor: idle}, true
}

// #endregion machine
