package gate

import "github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"

// #region breach
// Breach describes the first logic gate violated by an analysis.
type Breach struct {
	TriggerBand   string          `json:"trigger_band"`
	Rule          rubric.Rule     `json:"rule"`
	RuleText      string          `json:"rule_text"`
	Priority      rubric.Priority `json:"priority"`
	DetectedValue string          `json:"detected_value"` // e.g. "TD5", or "" when the dimension was absent
	Limit         string          `json:"limit"`          // e.g. "TD2"
}

// RequiresRewrite reports whether the breach priority forces a supervised
// rewrite. MEDIUM and LOW breaches are only logged and scored.
func (b *Breach) RequiresRewrite() bool {
	return b != nil && b.Priority.Enforced()
}

// #endregion breach
