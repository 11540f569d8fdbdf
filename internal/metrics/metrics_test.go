package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Turn("learner_turn", "ok", 200*time.Millisecond)
	m.Turn("learner_turn", "degraded", time.Second)
	m.Turn("nudge", "ok", 100*time.Millisecond)
	m.ProviderCall("primary")
	m.ProviderCall("primary")
	m.ProviderCall("router")
	m.Repair()
	m.Rewrite()
	m.Route("FAST", "heuristic")
	m.GFactor(0.6)
	m.Nudge(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("learner_turn", "degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repairs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rewrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routerTier.WithLabelValues("FAST", "heuristic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nudges.WithLabelValues("2")))

	count, err := testutil.GatherAndCount(reg, "didactic_g_factor", "didactic_turn_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Turn("learner_turn", "failed", time.Second)
		m.ProviderCall("primary")
		m.Repair()
		m.Rewrite()
		m.Route("MID", "fallback")
		m.GFactor(1)
		m.Nudge(1)
	})
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
