package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/metrics"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
)

// #endregion

// #region budgets

const (
	fastPathMaxWords = 4
	fastPathMaxChars = 40
)

var tierBudgets = map[provider.Tier]int{
	provider.TierFast: 0,
	provider.TierMid:  1024,
	provider.TierSlow: 8192,
}

var routerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"tier":      map[string]any{"type": "string", "enum": []any{"FAST", "MID", "SLOW"}},
		"rationale": map[string]any{"type": "string"},
	},
	"required": []any{"tier", "rationale"},
}

// #endregion

// #region router

// Router picks the model tier and reasoning budget for a learner turn.
type Router struct {
	p       provider.Provider
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRouter creates a router. logger and m may be nil.
func NewRouter(p provider.Provider, logger *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{p: p, logger: logging.OrNop(logger).Named("router"), metrics: m}
}

// Route classifies a message. It never fails: a provider or parse failure
// yields a degraded MID decision.
func (r *Router) Route(ctx context.Context, message string, historyLen int) RouteDecision {
	if fastPath(message, historyLen) {
		r.metrics.Route(string(provider.TierFast), "heuristic")
		return RouteDecision{
			Tier:      provider.TierFast,
			Rationale: "short opening message",
			Heuristic: true,
		}
	}

	r.metrics.ProviderCall("router")
	resp, err := r.p.Generate(ctx, provider.Request{
		SystemPrompt: RouterPrompt(),
		Messages:     []provider.Message{{Role: provider.RoleUser, Content: message}},
		Schema:       routerSchema,
		Temperature:  0,
		Tier:         provider.TierFast,
		Purpose:      "router",
	})
	if err != nil {
		return r.degraded(err, provider.Usage{})
	}

	tier, rationale, err := parseRoute(resp.Text)
	if err != nil {
		return r.degraded(err, resp.Usage)
	}
	r.metrics.Route(string(tier), "model")
	return RouteDecision{
		Tier:            tier,
		ReasoningBudget: tierBudgets[tier],
		Rationale:       rationale,
		Calls:           1,
		Usage:           resp.Usage,
	}
}

func (r *Router) degraded(err error, usage provider.Usage) RouteDecision {
	r.logger.Warn("router degraded, using MID", zap.Error(err))
	r.metrics.Route(string(provider.TierMid), "fallback")
	return RouteDecision{
		Tier:      provider.TierMid,
		Rationale: "router failure: " + err.Error(),
		Degraded:  true,
		Calls:     1,
		Usage:     usage,
	}
}

// #endregion

// #region helpers

func fastPath(message string, historyLen int) bool {
	msg := strings.TrimSpace(message)
	if historyLen != 0 || strings.HasPrefix(msg, "/") {
		return false
	}
	return len(strings.Fields(msg)) <= fastPathMaxWords && len([]rune(msg)) <= fastPathMaxChars
}

func parseRoute(raw string) (provider.Tier, string, error) {
	body, err := analysis.ExtractJSON(raw)
	if err != nil {
		return "", "", err
	}
	var out struct {
		Tier      string `json:"tier"`
		Rationale string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return "", "", fmt.Errorf("decode route: %w", err)
	}
	tier := provider.Tier(strings.ToUpper(strings.TrimSpace(out.Tier)))
	if !tier.Valid() {
		return "", "", fmt.Errorf("unknown tier %q", out.Tier)
	}
	return tier, strings.TrimSpace(out.Rationale), nil
}

// #endregion
