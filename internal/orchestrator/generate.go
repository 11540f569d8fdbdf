package orchestrator

// #region imports
import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/metrics"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

// #endregion

// #region types

const repairTemperature = 0.1

// GenerateRequest is one structured generation.
type GenerateRequest struct {
	SystemPrompt    string
	Messages        []provider.Message
	Tier            provider.Tier
	ReasoningBudget int
	Temperature     float32
	Purpose         string
}

// GenerateResult is a decoded, healed generation. Degraded marks a
// fallback analysis after the repair attempt also failed.
type GenerateResult struct {
	Text     string
	Raw      string
	Analysis analysis.TurnAnalysis
	Log      RepairLog
	Degraded bool
	Model    string
}

// #endregion

// #region generator

// Generator runs the primary call and at most one JSON repair call.
type Generator struct {
	cat     *rubric.Catalog
	schema  map[string]any
	meter   *turnMeter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewGenerator creates a standalone generator with its own call budget.
func NewGenerator(cat *rubric.Catalog, p provider.Provider, logger *zap.Logger, m *metrics.Metrics) *Generator {
	return newGenerator(cat, analysis.Schema(cat), newTurnMeter(p, m), logger, m)
}

func newGenerator(cat *rubric.Catalog, schema map[string]any, meter *turnMeter, logger *zap.Logger, m *metrics.Metrics) *Generator {
	return &Generator{
		cat:     cat,
		schema:  schema,
		meter:   meter,
		logger:  logging.OrNop(logger).Named("generate"),
		metrics: m,
	}
}

// Generate issues the call, decodes and heals the result. A provider error
// fails the generation; malformed output degrades it instead.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = "turn"
	}
	res := GenerateResult{Log: RepairLog{Purpose: purpose}}

	resp, err := g.meter.call(ctx, provider.Request{
		SystemPrompt:    req.SystemPrompt,
		Messages:        req.Messages,
		Schema:          g.schema,
		Temperature:     req.Temperature,
		Tier:            req.Tier,
		ReasoningBudget: req.ReasoningBudget,
		Purpose:         purpose,
	})
	if err != nil {
		return res, err
	}
	res.Raw, res.Model = resp.Text, resp.Model
	res.Log.Attempts = 1
	res.Log.RawSizes = append(res.Log.RawSizes, len(resp.Text))

	text, a, decodeErr := analysis.Decode(resp.Text)
	ok := decodeErr == nil
	if !ok {
		res.Log.DecodeErrors = append(res.Log.DecodeErrors, decodeErr.Error())
		text, a, ok, err = g.repair(ctx, req, purpose, resp.Text, &res)
		if err != nil {
			return res, err
		}
	}

	if !ok {
		g.logger.Warn("structured output unusable, using fallback analysis",
			zap.String("purpose", purpose), zap.Strings("errors", res.Log.DecodeErrors))
		res.Log.Fallback = true
		res.Degraded = true
		res.Analysis = analysis.Fallback()
		res.Text = fallbackText(res.Raw)
		return res, nil
	}

	healed, warnings := analysis.Heal(g.cat, a)
	res.Analysis = healed
	res.Text = text
	res.Log.HealWarnings = warnings
	for _, w := range warnings {
		g.logger.Debug("healed analysis", zap.String("purpose", purpose), zap.String("warning", w))
	}
	return res, nil
}

// repair spends the turn's single repair on a stronger tier. ok is false
// when the budget is already spent or the repaired payload is malformed too.
func (g *Generator) repair(ctx context.Context, req GenerateRequest, purpose, raw string, res *GenerateResult) (string, analysis.TurnAnalysis, bool, error) {
	if !g.meter.canRepair() {
		return "", analysis.TurnAnalysis{}, false, nil
	}
	g.meter.repairs++
	g.metrics.Repair()
	g.logger.Info("repairing structured output", zap.String("purpose", purpose), zap.Int("raw_size", len(raw)))

	resp, err := g.meter.call(ctx, provider.Request{
		SystemPrompt: RepairPrompt(),
		Messages:     []provider.Message{{Role: provider.RoleUser, Content: repairMessage(raw)}},
		Schema:       g.schema,
		Temperature:  repairTemperature,
		Tier:         req.Tier.Stronger(),
		Purpose:      purpose + "_repair",
	})
	if err != nil {
		return "", analysis.TurnAnalysis{}, false, err
	}
	res.Log.Attempts++
	res.Log.RawSizes = append(res.Log.RawSizes, len(resp.Text))
	if resp.Model != "" {
		res.Model = resp.Model
	}

	text, a, decodeErr := analysis.Decode(resp.Text)
	if decodeErr != nil {
		res.Log.DecodeErrors = append(res.Log.DecodeErrors, decodeErr.Error())
		return "", analysis.TurnAnalysis{}, false, nil
	}
	res.Raw = resp.Text
	res.Log.Repaired = true
	return text, a, true, nil
}

// #endregion

// #region fallback

// fallbackText salvages plain prose; anything that looks like broken JSON is
// replaced so no payload fragments reach the learner.
func fallbackText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.ContainsAny(trimmed, "{}") {
		return FallbackReply
	}
	return trimmed
}

// #endregion
