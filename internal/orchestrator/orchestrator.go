package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/eval"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/metrics"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/update"
)

// #endregion

// #region engine-struct

const defaultTemperature = 0.7

// Engine runs the turn pipeline: route, generate, supervise, filter, score,
// update and commit. It is safe for concurrent use across sessions.
type Engine struct {
	cat         *rubric.Catalog
	p           provider.Provider
	router      *Router
	schema      map[string]any
	filter      *LeakFilter
	scorer      *eval.Scorer
	store       *state.Store
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	historyCap  int
	temperature float32
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists state versions and journals turns.
func WithStore(s *state.Store) Option { return func(e *Engine) { e.store = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithScorer overrides the default penalty weights.
func WithScorer(s *eval.Scorer) Option { return func(e *Engine) { e.scorer = s } }

// WithHistoryCap overrides state.MaxHistory.
func WithHistoryCap(n int) Option { return func(e *Engine) { e.historyCap = n } }

// WithTemperature sets the primary generation temperature.
func WithTemperature(t float32) Option { return func(e *Engine) { e.temperature = t } }

// #endregion

// #region constructor

// NewEngine wires an engine over a catalog and a provider.
func NewEngine(cat *rubric.Catalog, p provider.Provider, opts ...Option) *Engine {
	e := &Engine{
		cat:         cat,
		p:           p,
		schema:      analysis.Schema(cat),
		filter:      NewLeakFilter(cat),
		scorer:      eval.NewScorer(eval.DefaultWeights()),
		now:         time.Now,
		historyCap:  state.MaxHistory,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrNop(e.logger).Named("orch")
	e.router = NewRouter(p, e.logger, e.metrics)
	return e
}

// OpenSession resumes a stored session or starts a new one. An empty id
// starts a fresh session.
func (e *Engine) OpenSession(id string) (*Session, error) {
	if e.store == nil {
		if id == "" {
			id = uuid.New().String()
		}
		st := state.NewLearnerState(id)
		st.VersionID = uuid.New().String()
		st.CreatedAt = e.now().UTC()
		return newSession(st), nil
	}

	if id != "" {
		st, err := e.store.GetCurrent(id)
		if err == nil {
			e.logger.Info("session resumed", zap.String("session", id), zap.Int("turn", st.Turn))
			return newSession(st), nil
		}
		if !errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("open session: %w", err)
		}
	}
	st, err := e.store.CreateInitialState(id)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	e.logger.Info("session created", zap.String("session", st.SessionID))
	return newSession(st), nil
}

// #endregion

// #region process-turn

// ProcessTurn runs one learner turn end to end. On error the session state
// is unchanged.
func (e *Engine) ProcessTurn(ctx context.Context, s *Session, message string, profile Profile) (TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	if !s.turn.TryLock() {
		return TurnResult{}, ErrSessionBusy
	}
	defer s.turn.Unlock()
	s.setProfile(profile)

	start := e.now()
	meter := newTurnMeter(e.p, e.metrics)
	conv := s.Conversation()

	// The dialogue is not persisted, so a resumed session counts its turns.
	route := e.router.Route(ctx, message, s.State().Turn)
	meter.absorb(route.Calls, route.Usage)

	user := provider.Message{Role: provider.RoleUser, Content: message}
	return e.run(ctx, s, turnInput{
		trigger:  logging.TriggerLearnerTurn,
		message:  message,
		profile:  profile,
		route:    route,
		messages: append(conv, user),
		keep:     []provider.Message{user},
		purpose:  "turn",
		start:    start,
		meter:    meter,
	})
}

// ProcessNudge runs a scheduler-initiated turn at escalation level 1..3. It
// always uses the FAST tier and the instruction stays out of the dialogue.
func (e *Engine) ProcessNudge(ctx context.Context, s *Session, level int) (TurnResult, error) {
	if level < 1 || level > 3 {
		return TurnResult{}, fmt.Errorf("nudge level %d out of range 1..3", level)
	}
	if !s.turn.TryLock() {
		return TurnResult{}, ErrSessionBusy
	}
	defer s.turn.Unlock()

	start := e.now()
	conv := s.Conversation()
	instruction := NudgeInstruction(level, conv)
	e.metrics.Nudge(level)
	e.metrics.Route(string(provider.TierFast), "nudge")

	return e.run(ctx, s, turnInput{
		trigger: logging.TriggerNudge,
		message: instruction,
		profile: s.lastProfile(),
		route: RouteDecision{
			Tier:      provider.TierFast,
			Rationale: fmt.Sprintf("idle nudge level %d", level),
			Heuristic: true,
		},
		messages: append(conv, provider.Message{Role: provider.RoleUser, Content: instruction}),
		purpose:  "nudge",
		start:    start,
		meter:    newTurnMeter(e.p, e.metrics),
	})
}

// #endregion

// #region pipeline

type turnInput struct {
	trigger  string
	message  string
	profile  Profile
	route    RouteDecision
	messages []provider.Message
	keep     []provider.Message // appended to the dialogue before the reply
	purpose  string
	start    time.Time
	meter    *turnMeter
}

func (e *Engine) run(ctx context.Context, s *Session, in turnInput) (result TurnResult, err error) {
	if obs := s.currentObserver(); obs != nil {
		obs.TurnStarted(in.trigger)
		defer func() { obs.TurnFinished(result.Analysis, err) }()
	}

	prev := s.State()
	gen := newGenerator(e.cat, e.schema, in.meter, e.logger, e.metrics)
	req := GenerateRequest{
		SystemPrompt:    SystemPrompt(e.cat, in.profile, prev),
		Messages:        in.messages,
		Tier:            in.route.Tier,
		ReasoningBudget: in.route.ReasoningBudget,
		Temperature:     e.temperature,
		Purpose:         in.purpose,
	}

	draft, err := gen.Generate(ctx, req)
	if err != nil {
		return TurnResult{}, e.fail(s, prev, in, err)
	}
	final, supLog, breach, err := e.supervise(ctx, gen, draft, req)
	if err != nil {
		return TurnResult{}, e.fail(s, prev, in, err)
	}

	safe := e.filter.Filter(final.Text)
	validation := e.scorer.Score(final.Analysis, breach)
	degraded := final.Degraded || supLog.RewriteDegraded
	now := e.now()
	latency := now.Sub(in.start)

	model := in.meter.model
	if final.Model != "" {
		model = final.Model
	}
	mech := state.Mechanical{
		LatencyMs:        latency.Milliseconds(),
		PromptTokens:     in.meter.usage.PromptTokens,
		CompletionTokens: in.meter.usage.CompletionTokens,
		Calls:            in.meter.calls,
		Tier:             string(in.route.Tier),
		Model:            model,
		Repaired:         draft.Log.Repaired,
		Rewritten:        supLog.Rewritten,
		Degraded:         degraded,
	}
	upd := update.Update(prev, update.UpdateInput{
		Analysis:   final.Analysis,
		Mechanical: mech,
		Now:        now.UTC(),
		HistoryCap: e.historyCap,
	}, e.cat)

	if e.store != nil {
		if err := e.store.CommitState(upd.NewState); err != nil {
			return TurnResult{}, e.fail(s, prev, in, fmt.Errorf("commit state: %w", err))
		}
	}
	s.apply(upd.NewState, append(append([]provider.Message(nil), in.keep...),
		provider.Message{Role: provider.RoleAssistant, Content: safe})...)

	tel := Telemetry{
		Trigger:    in.trigger,
		Router:     in.route,
		Repair:     draft.Log,
		Supervisor: supLog,
		Validation: validation,
		Usage:      in.meter.usage,
		Calls:      in.meter.calls,
		LatencyMs:  mech.LatencyMs,
		Model:      model,
		Degraded:   degraded,
		Warnings:   turnWarnings(in.route, draft, supLog, upd),
		VersionID:  upd.NewState.VersionID,
		Decision:   upd.Decision.Action,
	}

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	e.metrics.Turn(in.trigger, outcome, latency)
	e.metrics.GFactor(validation.GFactor)

	e.logger.Info("turn finalized",
		zap.String("session", s.ID),
		zap.String("trigger", in.trigger),
		zap.Int("turn", upd.NewState.Turn),
		zap.String("tier", string(in.route.Tier)),
		zap.Int("calls", in.meter.calls),
		zap.Float64("g_factor", validation.GFactor),
		zap.String("status", string(validation.Status)),
		zap.Bool("degraded", degraded),
		zap.Duration("latency", latency))

	e.journal(logging.TurnRecord{
		SessionID:      s.ID,
		VersionID:      upd.NewState.VersionID,
		Turn:           upd.NewState.Turn,
		Trigger:        in.trigger,
		Message:        in.message,
		Response:       safe,
		Tier:           string(in.route.Tier),
		AnalysisJSON:   mustJSON(final.Analysis),
		RepairJSON:     mustJSON(draft.Log),
		SupervisorJSON: mustJSON(supLog),
		GFactor:        validation.GFactor,
		Status:         string(validation.Status),
		Degraded:       degraded,
		Decision:       upd.Decision.Action,
		CreatedAt:      now.UTC(),
	})

	return TurnResult{SafeText: safe, Analysis: final.Analysis, Telemetry: tel}, nil
}

// fail records a failed turn. The session keeps its previous state.
func (e *Engine) fail(s *Session, prev state.LearnerState, in turnInput, err error) error {
	latency := e.now().Sub(in.start)
	e.metrics.Turn(in.trigger, "failed", latency)
	e.logger.Error("turn failed",
		zap.String("session", s.ID),
		zap.String("trigger", in.trigger),
		zap.Int("calls", in.meter.calls),
		zap.Error(err))
	e.journal(logging.TurnRecord{
		SessionID: s.ID,
		Turn:      prev.Turn,
		Trigger:   in.trigger,
		Message:   in.message,
		Tier:      string(in.route.Tier),
		Decision:  "failed",
		CreatedAt: e.now().UTC(),
	})
	return err
}

func (e *Engine) journal(rec logging.TurnRecord) {
	if e.store == nil {
		return
	}
	if err := logging.LogTurn(e.store.DB(), rec); err != nil {
		e.logger.Warn("journal write failed", zap.String("session", rec.SessionID), zap.Error(err))
	}
}

// #endregion

// #region helpers

func turnWarnings(route RouteDecision, draft GenerateResult, sup SupervisorLog, upd update.UpdateResult) []string {
	var out []string
	if route.Degraded {
		out = append(out, route.Rationale)
	}
	out = append(out, draft.Log.HealWarnings...)
	if draft.Log.Fallback {
		out = append(out, "structured output unusable, fallback analysis used")
	}
	if sup.RewriteRepair != nil {
		out = append(out, sup.RewriteRepair.HealWarnings...)
	}
	if sup.RewriteDegraded {
		out = append(out, "rewrite output unusable, draft kept")
	}
	if b := sup.PersistingBreach; b != nil {
		out = append(out, fmt.Sprintf("breach persists after rewrite: %s %s", b.TriggerBand, b.RuleText))
	}
	for _, id := range upd.Metrics.Skipped {
		out = append(out, "unknown dimension for band "+id)
	}
	return out
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// #endregion
