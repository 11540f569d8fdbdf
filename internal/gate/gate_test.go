package gate

import (
	"fmt"
	"testing"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

func catalogWithLimit(t *testing.T, limit int, priority string) *rubric.Catalog {
	t.Helper()
	src := fmt.Sprintf(`
rubrics:
  - rubric_id: K
    bands: [{band_id: K1}, {band_id: K2}]
  - rubric_id: TD
    bands: [{band_id: TD1}, {band_id: TD2}, {band_id: TD3}, {band_id: TD4}, {band_id: TD5}]
interaction_protocol:
  logic_gates:
    - {trigger_band: K1, enforcement: "MAX_TD = TD%d", priority: %s}
`, limit, priority)
	c, err := rubric.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return c
}

func withBands(bands map[string]analysis.BandList) analysis.TurnAnalysis {
	return analysis.TurnAnalysis{Bands: bands}
}

func TestCheckMonotonic(t *testing.T) {
	for n := 0; n <= 5; n++ {
		cat := catalogWithLimit(t, n, "HIGH")
		for level := 0; level <= 5; level++ {
			bands := map[string]analysis.BandList{"K": {"K1"}}
			if level > 0 {
				bands["TD"] = analysis.BandList{fmt.Sprintf("TD%d", level)}
			}
			b := Check(cat, withBands(bands))
			want := level > n
			if (b != nil) != want {
				t.Errorf("limit TD%d, level %d: breach=%v, want %v", n, level, b != nil, want)
			}
		}
	}
}

func TestCheckCriticalScenario(t *testing.T) {
	cat := rubric.Default()
	a := withBands(map[string]analysis.BandList{"K": {"K1"}, "TD": {"TD5"}})

	b := Check(cat, a)
	if b == nil {
		t.Fatal("expected breach for K1 + TD5")
	}
	if b.TriggerBand != "K1" || b.Priority != rubric.PriorityCritical {
		t.Fatalf("unexpected breach: %+v", b)
	}
	if b.DetectedValue != "TD5" || b.Limit != "TD2" || b.RuleText != "MAX_TD = TD2" {
		t.Fatalf("unexpected breach detail: %+v", b)
	}
	if !b.RequiresRewrite() {
		t.Fatal("critical breach must require a rewrite")
	}
}

func TestCheckNoTrigger(t *testing.T) {
	cat := rubric.Default()
	a := withBands(map[string]analysis.BandList{"K": {"K2"}, "TD": {"TD5"}})
	if b := Check(cat, a); b != nil {
		t.Fatalf("expected no breach without trigger band, got %+v", b)
	}
}

func TestCheckFirstMatchOnly(t *testing.T) {
	cat := rubric.Default()
	// K1 (critical, TD2) precedes P2 (high, TD3) in source order.
	a := withBands(map[string]analysis.BandList{"K": {"K1"}, "P": {"P2"}, "TD": {"TD4"}})
	b := Check(cat, a)
	if b == nil || b.TriggerBand != "K1" {
		t.Fatalf("expected K1 breach first, got %+v", b)
	}
}

func TestCheckUsesHighestLevel(t *testing.T) {
	cat := catalogWithLimit(t, 2, "MEDIUM")
	a := withBands(map[string]analysis.BandList{"K": {"K1"}, "TD": {"TD1", "TD4", "TD2"}})
	b := Check(cat, a)
	if b == nil || b.DetectedValue != "TD4" {
		t.Fatalf("expected breach detected at TD4, got %+v", b)
	}
	if b.RequiresRewrite() {
		t.Fatal("medium breach must not require a rewrite")
	}
}

func TestRequiresRewriteNil(t *testing.T) {
	var b *Breach
	if b.RequiresRewrite() {
		t.Fatal("nil breach requires nothing")
	}
}
