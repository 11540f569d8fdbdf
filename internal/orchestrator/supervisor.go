package orchestrator

// #region imports
import (
	"context"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/gate"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
)

// #endregion

// #region supervise

// supervise gates a draft. CRITICAL and HIGH breaches get exactly one
// rewrite; the returned breach is the one that applies to the finalized
// draft and feeds the scorer.
func (e *Engine) supervise(ctx context.Context, gen *Generator, draft GenerateResult, req GenerateRequest) (GenerateResult, SupervisorLog, *gate.Breach, error) {
	log := SupervisorLog{Phases: []Phase{PhaseDrafted}}

	breach := gate.Check(e.cat, draft.Analysis)
	log.Breach = breach
	if breach == nil {
		log.Phases = append(log.Phases, PhaseFinalized)
		return draft, log, nil, nil
	}
	e.logger.Info("logic gate breach",
		zap.String("trigger", breach.TriggerBand),
		zap.String("rule", breach.RuleText),
		zap.String("priority", string(breach.Priority)),
		zap.String("detected", breach.DetectedValue))

	if !breach.RequiresRewrite() || !gen.meter.canRewrite() {
		log.Phases = append(log.Phases, PhaseFinalized)
		return draft, log, breach, nil
	}

	log.Phases = append(log.Phases, PhaseRewriting)
	gen.meter.rewrites++
	e.metrics.Rewrite()

	rewriteReq := req
	rewriteReq.Purpose = "rewrite"
	rewriteReq.Messages = append(append([]provider.Message(nil), req.Messages...),
		provider.Message{Role: provider.RoleAssistant, Content: analysis.Encode(draft.Text, draft.Analysis)},
		provider.Message{Role: provider.RoleUser, Content: RewriteInstruction(breach)},
	)

	rewritten, err := gen.Generate(ctx, rewriteReq)
	if err != nil {
		return draft, log, breach, err
	}
	repairLog := rewritten.Log
	log.RewriteRepair = &repairLog
	log.Phases = append(log.Phases, PhaseFinalized)

	if rewritten.Degraded {
		e.logger.Warn("rewrite output unusable, keeping draft")
		log.RewriteDegraded = true
		return draft, log, breach, nil
	}

	log.Rewritten = true
	persisting := gate.Check(e.cat, rewritten.Analysis)
	if persisting != nil {
		e.logger.Warn("breach persists after rewrite",
			zap.String("trigger", persisting.TriggerBand),
			zap.String("detected", persisting.DetectedValue))
		log.PersistingBreach = persisting
	}
	return rewritten, log, persisting, nil
}

// #endregion
