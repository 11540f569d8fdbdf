package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region collectors
// Metrics holds the pipeline collectors. A nil *Metrics is valid and records
// nothing, so components can take it as an optional dependency.
type Metrics struct {
	turns         *prometheus.CounterVec
	turnLatency   prometheus.Histogram
	providerCalls *prometheus.CounterVec
	repairs       prometheus.Counter
	rewrites      prometheus.Counter
	degraded      prometheus.Counter
	routerTier    *prometheus.CounterVec
	gFactor       prometheus.Histogram
	nudges        *prometheus.CounterVec
}

// New registers the pipeline collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "didactic_turns_total",
			Help: "Total processed turns by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		turnLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "didactic_turn_latency_seconds",
			Help:    "End-to-end turn latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "didactic_provider_calls_total",
			Help: "Total provider calls by purpose",
		}, []string{"purpose"}),
		repairs: f.NewCounter(prometheus.CounterOpts{
			Name: "didactic_json_repairs_total",
			Help: "Total repair calls issued for malformed structured output",
		}),
		rewrites: f.NewCounter(prometheus.CounterOpts{
			Name: "didactic_gate_rewrites_total",
			Help: "Total supervised rewrites triggered by logic gate breaches",
		}),
		degraded: f.NewCounter(prometheus.CounterOpts{
			Name: "didactic_degraded_turns_total",
			Help: "Total turns finalized with the fallback analysis",
		}),
		routerTier: f.NewCounterVec(prometheus.CounterOpts{
			Name: "didactic_router_tier_total",
			Help: "Routing decisions by tier and source",
		}, []string{"tier", "source"}),
		gFactor: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "didactic_g_factor",
			Help:    "Semantic integrity score per finalized turn",
			Buckets: []float64{0, 0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		nudges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "didactic_nudges_total",
			Help: "Nudges emitted by escalation level",
		}, []string{"level"}),
	}
}

// #endregion collectors

// #region recorders
// Turn records one finished turn. outcome is "ok", "degraded" or "failed".
func (m *Metrics) Turn(trigger, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(trigger, outcome).Inc()
	m.turnLatency.Observe(latency.Seconds())
	if outcome == "degraded" {
		m.degraded.Inc()
	}
}

// ProviderCall counts one provider call.
func (m *Metrics) ProviderCall(purpose string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(purpose).Inc()
}

// Repair counts one repair call.
func (m *Metrics) Repair() {
	if m == nil {
		return
	}
	m.repairs.Inc()
}

// Rewrite counts one supervised rewrite.
func (m *Metrics) Rewrite() {
	if m == nil {
		return
	}
	m.rewrites.Inc()
}

// Route counts one routing decision. source is "heuristic", "model",
// "fallback" (router failure) or "nudge".
func (m *Metrics) Route(tier, source string) {
	if m == nil {
		return
	}
	m.routerTier.WithLabelValues(tier, source).Inc()
}

// GFactor observes one semantic integrity score.
func (m *Metrics) GFactor(v float64) {
	if m == nil {
		return
	}
	m.gFactor.Observe(v)
}

// Nudge counts one emitted nudge.
func (m *Metrics) Nudge(level int) {
	if m == nil {
		return
	}
	m.nudges.WithLabelValues(strconv.Itoa(level)).Inc()
}

// #endregion recorders
