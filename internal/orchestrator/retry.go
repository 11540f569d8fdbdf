package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/metrics"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
)

// #endregion

// #region constants

const (
	maxCallsPerTurn    = 4 // router + primary + repair + rewrite
	maxRepairsPerTurn  = 1
	maxRewritesPerTurn = 1
)

var errCallBudget = errors.New("per-turn provider call budget exhausted")

// #endregion

// #region meter

// turnMeter enforces the per-turn call, repair and rewrite bounds and
// accumulates usage. It is owned by a single turn and never shared.
type turnMeter struct {
	p        provider.Provider
	metrics  *metrics.Metrics
	calls    int
	repairs  int
	rewrites int
	usage    provider.Usage
	model    string
}

func newTurnMeter(p provider.Provider, m *metrics.Metrics) *turnMeter {
	return &turnMeter{p: p, metrics: m}
}

// call issues one provider call if the budget allows. Unavailability is
// reported as ErrProviderUnavailable wrapping the provider error.
func (m *turnMeter) call(ctx context.Context, req provider.Request) (provider.Response, error) {
	if m.calls >= maxCallsPerTurn {
		return provider.Response{}, errCallBudget
	}
	m.calls++
	m.metrics.ProviderCall(req.Purpose)

	resp, err := m.p.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, provider.ErrUnavailable) {
			return provider.Response{}, fmt.Errorf("%w: %s call: %w", ErrProviderUnavailable, req.Purpose, err)
		}
		return provider.Response{}, fmt.Errorf("%s call: %w", req.Purpose, err)
	}
	m.usage = m.usage.Add(resp.Usage)
	if resp.Model != "" {
		m.model = resp.Model
	}
	return resp, nil
}

// absorb folds in calls made outside the meter, such as the router's.
func (m *turnMeter) absorb(calls int, usage provider.Usage) {
	m.calls += calls
	m.usage = m.usage.Add(usage)
}

func (m *turnMeter) canRepair() bool {
	return m.repairs < maxRepairsPerTurn && m.calls < maxCallsPerTurn
}

func (m *turnMeter) canRewrite() bool {
	return m.rewrites < maxRewritesPerTurn && m.calls < maxCallsPerTurn
}

// #endregion
