package gate

import (
	"fmt"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

// #region check
// Check evaluates the catalog's logic gates in source order and returns the
// first breach, or nil. A gate applies when its trigger band is asserted; it
// is breached when the highest asserted level of the rule's dimension exceeds
// the rule limit. An absent dimension counts as level 0. MAX and ALLOW rules
// are compared the same way.
func Check(cat *rubric.Catalog, a analysis.TurnAnalysis) *Breach {
	for _, g := range cat.LogicGates() {
		if !a.HasBand(g.TriggerBand) {
			continue
		}
		level, band := MaxLevel(a, g.Rule.Dimension)
		if level <= g.Rule.Limit {
			continue
		}
		return &Breach{
			TriggerBand:   g.TriggerBand,
			Rule:          g.Rule,
			RuleText:      g.Enforcement,
			Priority:      g.Priority,
			DetectedValue: band,
			Limit:         fmt.Sprintf("%s%d", g.Rule.Dimension, g.Rule.Limit),
		}
	}
	return nil
}

// #endregion check

// #region level
// MaxLevel returns the highest numeric level asserted for a dimension and the
// band that carries it. It returns 0 and "" when nothing is asserted.
func MaxLevel(a analysis.TurnAnalysis, dim string) (int, string) {
	best, band := 0, ""
	for _, id := range a.Bands[dim] {
		if n := rubric.Level(id); n > best {
			best, band = n, id
		}
	}
	return best, band
}

// #endregion level
