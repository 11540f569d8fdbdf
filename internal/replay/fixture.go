package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/eval"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	SessionID       string                  `json:"session_id"`
	Config          FixtureConfig           `json:"config"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureInteraction is a recorded turn with its finalized analysis.
type FixtureInteraction struct {
	TurnID     string                `json:"turn_id"`
	Trigger    string                `json:"trigger,omitempty"`
	Message    string                `json:"message"`
	Response   string                `json:"response"`
	Analysis   analysis.TurnAnalysis `json:"analysis"`
	RecordedAt time.Time             `json:"recorded_at,omitzero"`
}

// FixtureExpectedResult captures the expected outcome per turn. Empty
// fields are not checked.
type FixtureExpectedResult struct {
	TurnID string `json:"turn_id"`
	Action string `json:"action"`
	Status string `json:"status,omitempty"`
	Trend  string `json:"trend,omitempty"`
}

// FixtureConfig overrides replay parameters. Zero values use the defaults.
type FixtureConfig struct {
	HistoryCap int           `json:"history_cap,omitempty"`
	Weights    *eval.Weights `json:"weights,omitempty"`
}

// Mismatch is one expected field that the replay did not reproduce.
type Mismatch struct {
	TurnID string
	Field  string
	Want   string
	Got    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s want %s, got %s", m.TurnID, m.Field, m.Want, m.Got)
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToInteraction converts a FixtureInteraction to a domain Interaction.
func (fi *FixtureInteraction) ToInteraction() Interaction {
	return Interaction{
		TurnID:     fi.TurnID,
		Trigger:    fi.Trigger,
		Message:    fi.Message,
		Response:   fi.Response,
		Analysis:   fi.Analysis.Clone(),
		RecordedAt: fi.RecordedAt,
	}
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if fc.HistoryCap > 0 {
		cfg.HistoryCap = fc.HistoryCap
	}
	if fc.Weights != nil {
		cfg.Weights = *fc.Weights
	}
	return cfg
}

// #endregion fixture-loader

// #region fixture-run

// RunFixture replays a fixture from an empty session and compares every
// result against the expectations.
func RunFixture(cat *rubric.Catalog, f *Fixture) ([]ReplayResult, []Mismatch) {
	interactions := make([]Interaction, len(f.Interactions))
	for i := range f.Interactions {
		interactions[i] = f.Interactions[i].ToInteraction()
	}
	sessionID := f.SessionID
	if sessionID == "" {
		sessionID = "replay"
	}
	results, _ := Replay(cat, state.NewLearnerState(sessionID), interactions, f.Config.ToReplayConfig())

	var mismatches []Mismatch
	if len(results) != len(f.ExpectedResults) {
		mismatches = append(mismatches, Mismatch{
			Field: "count",
			Want:  fmt.Sprint(len(f.ExpectedResults)),
			Got:   fmt.Sprint(len(results)),
		})
		return results, mismatches
	}
	for i, want := range f.ExpectedResults {
		got := results[i]
		check := func(field, w, g string) {
			if w != "" && w != g {
				mismatches = append(mismatches, Mismatch{TurnID: want.TurnID, Field: field, Want: w, Got: g})
			}
		}
		check("turn_id", want.TurnID, got.TurnID)
		check("action", want.Action, got.Action)
		check("status", want.Status, string(got.Validation.Status))
		check("trend", want.Trend, string(got.Scaffolding.Trend))
	}
	return results, mismatches
}

// #endregion fixture-run

// #region fixture-export

// FromTurnRecords builds a fixture from journaled turns. Failed turns carry
// no analysis and are skipped. The recorded decision and status become the
// expectations, so a fresh export replays clean.
func FromTurnRecords(description string, recs []logging.TurnRecord) (*Fixture, error) {
	f := &Fixture{Description: description}
	for _, rec := range recs {
		if rec.Decision == "failed" || rec.AnalysisJSON == "" {
			continue
		}
		if f.SessionID == "" {
			f.SessionID = rec.SessionID
		}
		var a analysis.TurnAnalysis
		if err := json.Unmarshal([]byte(rec.AnalysisJSON), &a); err != nil {
			return nil, fmt.Errorf("turn %d of %s: decode analysis: %w", rec.Turn, rec.SessionID, err)
		}
		id := rec.VersionID
		if id == "" {
			id = fmt.Sprintf("%s-%d", rec.SessionID, rec.Turn)
		}
		f.Interactions = append(f.Interactions, FixtureInteraction{
			TurnID:     id,
			Trigger:    rec.Trigger,
			Message:    rec.Message,
			Response:   rec.Response,
			Analysis:   a,
			RecordedAt: rec.CreatedAt,
		})
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			TurnID: id,
			Action: rec.Decision,
			Status: rec.Status,
		})
	}
	return f, nil
}

// #endregion fixture-export
