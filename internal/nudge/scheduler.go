package nudge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
)

// #region events
type eventKind int

const (
	evTouch eventKind = iota
	evBusy
	evDone
	evReady
)

type event struct {
	kind     eventKind
	at       time.Time
	analysis analysis.TurnAnalysis
	err      error
	ready    bool
	learner  bool // busy event opened by a learner turn
}

const eventBuffer = 64

// #endregion events

// #region scheduler
// Scheduler drives a Machine from a ticker and an event channel in a single
// goroutine. Its input methods are safe to call from any goroutine and
// satisfy orchestrator.TurnObserver.
type Scheduler struct {
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	events chan event
	out    chan Request
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the idle check interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// New creates a scheduler. Call Run to start it.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: DefaultInterval,
		now:      time.Now,
		events:   make(chan event, eventBuffer),
		out:      make(chan Request),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).Named("nudge")
	return s
}

// Nudges delivers due nudge requests. It is never closed; select on it
// together with the context passed to Run.
func (s *Scheduler) Nudges() <-chan Request { return s.out }

// Touch records learner input.
func (s *Scheduler) Touch() { s.send(event{kind: evTouch, at: s.now()}) }

// SetReady enables or disables nudging.
func (s *Scheduler) SetReady(ready bool) { s.send(event{kind: evReady, at: s.now(), ready: ready}) }

// TurnStarted marks the session busy. A learner turn also counts as
// learner input and resets the escalation.
func (s *Scheduler) TurnStarted(trigger string) {
	s.send(event{kind: evBusy, at: s.now(), learner: trigger == logging.TriggerLearnerTurn})
}

// TurnFinished re-arms the idle timer from the finalized analysis.
func (s *Scheduler) TurnFinished(a analysis.TurnAnalysis, err error) {
	s.send(event{kind: evDone, at: s.now(), analysis: a, err: err})
}

func (s *Scheduler) send(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run processes events until ctx is cancelled. A due nudge is held until
// the consumer takes it; learner input discards it. Run must be called at
// most once.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	m := NewMachine(s.now())
	var pending *Request
	for {
		var out chan<- Request
		var next Request
		if pending != nil {
			out, next = s.out, *pending
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.apply(m, ev)
			if (ev.kind == evTouch || ev.learner) && pending != nil {
				s.logger.Debug("learner input, pending nudge dropped", zap.Int("level", pending.Level))
				pending = nil
			}
		case <-ticker.C:
			if pending != nil {
				continue
			}
			if req, ok := m.Tick(s.now()); ok {
				s.logger.Info("nudge due",
					zap.Int("level", req.Level),
					zap.Duration("idle", req.IdleFor),
					zap.Duration("ttl", m.TTL()))
				pending = &req
			}
		case out <- next:
			pending = nil
		}
	}
}

func (s *Scheduler) apply(m *Machine, ev event) {
	switch ev.kind {
	case evTouch:
		m.Touch(ev.at)
	case evBusy:
		if ev.learner {
			m.Touch(ev.at)
		}
		m.Busy()
	case evDone:
		m.Done(ev.at, ev.analysis, ev.err)
		s.logger.Debug("idle timer re-armed", zap.Duration("ttl", m.TTL()), zap.String("phase", string(m.Phase())))
	case evReady:
		m.SetReady(ev.ready, ev.at)
	}
}

// #endregion scheduler
