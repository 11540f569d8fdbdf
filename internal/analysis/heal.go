package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

// #region heal
// Heal validates an analysis against the catalog and repairs what it can:
// unknown band ids are pruned, bands filed under the wrong dimension are
// moved, near-miss command tokens are resolved through the alias map, and
// enum fields are normalized. Every repair adds a warning. Healing an
// already-healed analysis returns it unchanged with no warnings.
func Heal(cat *rubric.Catalog, a TurnAnalysis) (TurnAnalysis, []string) {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	out := TurnAnalysis{
		Bands:     healBands(cat, a.Bands, warn),
		Reasoning: strings.TrimSpace(a.Reasoning),
	}
	out.ActiveFix = healFix(cat, a.ActiveFix, warn)

	switch {
	case math.IsNaN(a.TaskDensityBalance) || math.IsInf(a.TaskDensityBalance, 0):
		warn("task_density_balance %v replaced with 50", a.TaskDensityBalance)
		out.TaskDensityBalance = 50
	case a.TaskDensityBalance < 0:
		warn("task_density_balance %.1f clamped to 0", a.TaskDensityBalance)
		out.TaskDensityBalance = 0
	case a.TaskDensityBalance > 100:
		warn("task_density_balance %.1f clamped to 100", a.TaskDensityBalance)
		out.TaskDensityBalance = 100
	default:
		out.TaskDensityBalance = a.TaskDensityBalance
	}

	es := EpistemicStatus(strings.ToLower(strings.TrimSpace(string(a.EpistemicStatus))))
	switch {
	case es == "":
		out.EpistemicStatus = EpistemicUnknown
	case epistemicValues[es]:
		out.EpistemicStatus = es
	default:
		warn("unknown epistemic_status %q replaced with %q", a.EpistemicStatus, EpistemicUnknown)
		out.EpistemicStatus = EpistemicUnknown
	}

	srl := SRLState(strings.ToUpper(strings.TrimSpace(string(a.SRLState))))
	switch {
	case srl == "":
		out.SRLState = SRLUnknown
	case srlValues[srl]:
		out.SRLState = srl
	default:
		warn("unknown srl_state %q replaced with %q", a.SRLState, SRLUnknown)
		out.SRLState = SRLUnknown
	}

	return out, warnings
}

// #endregion heal

// #region bands
func healBands(cat *rubric.Catalog, in map[string]BandList, warn func(string, ...any)) map[string]BandList {
	out := make(map[string]BandList)
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		filed := strings.ToUpper(strings.TrimSpace(key))
		for _, raw := range in[key] {
			id := normalizeBandID(raw)
			if id == "" {
				continue
			}
			if _, ok := cat.FindBand(id); !ok {
				warn("unknown band %q under %q pruned", raw, key)
				continue
			}
			dim, _ := cat.DimensionOf(id)
			if dim != filed {
				warn("band %s filed under %q moved to %s", id, key, dim)
			}
			if contains(out[dim], id) {
				continue
			}
			out[dim] = append(out[dim], id)
		}
	}
	return out
}

func normalizeBandID(raw string) string {
	return strings.ToUpper(strings.Trim(raw, " \t\n[](){}\"'"))
}

func contains(list BandList, id string) bool {
	for _, b := range list {
		if b == id {
			return true
		}
	}
	return false
}

// #endregion bands

// #region fix
// minFuzzyLen keeps very short fragments from matching every token.
const minFuzzyLen = 4

func healFix(cat *rubric.Catalog, fix *string, warn func(string, ...any)) *string {
	if fix == nil {
		return nil
	}
	raw := strings.TrimSpace(*fix)
	switch strings.ToLower(raw) {
	case "", "null", "none", "nil":
		return nil
	}

	if cmd, ok := cat.Command(raw); ok {
		tok := cmd.Token
		return &tok
	}
	if to, ok := cat.Alias(raw); ok {
		warn("active_fix %q healed to %q", raw, to)
		return &to
	}
	if to, ok := fuzzyCommand(cat, raw); ok {
		warn("active_fix %q healed to %q", raw, to)
		return &to
	}
	warn("unknown active_fix %q dropped", raw)
	return nil
}

// fuzzyCommand matches a token that is a prefix extension of a known command
// (or vice versa), preferring the longest known token.
func fuzzyCommand(cat *rubric.Catalog, raw string) (string, bool) {
	norm := strings.ToLower(raw)
	if !strings.HasPrefix(norm, "/") {
		norm = "/" + norm
	}
	if len(norm) < minFuzzyLen {
		return "", false
	}
	best := ""
	for _, cmd := range cat.Commands() {
		tok := cmd.Token
		if len(tok) < minFuzzyLen {
			continue
		}
		if strings.HasPrefix(norm, tok) || strings.HasPrefix(tok, norm) {
			if len(tok) > len(best) {
				best = tok
			}
		}
	}
	return best, best != ""
}

// #endregion fix
