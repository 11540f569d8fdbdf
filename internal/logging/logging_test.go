package logging

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

func tempStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogAndListTurns(t *testing.T) {
	s := tempStore(t)
	db := s.DB()

	recs := []TurnRecord{
		{SessionID: "a", VersionID: "v1", Turn: 1, Trigger: TriggerLearnerTurn, Message: "hoi", Response: "hallo", Tier: "FAST", GFactor: 1, Status: "OPTIMAL", Decision: "commit"},
		{SessionID: "a", VersionID: "v2", Turn: 2, Trigger: TriggerNudge, Response: "nog daar?", Tier: "FAST", GFactor: 0.6, Status: "DRIFT", Degraded: true, Decision: "commit"},
		{SessionID: "b", Turn: 1, Trigger: TriggerLearnerTurn, Message: "x", Decision: "failed"},
	}
	for _, r := range recs {
		if err := LogTurn(db, r); err != nil {
			t.Fatalf("LogTurn: %v", err)
		}
	}

	got, err := ListTurns(db, "a", 10)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns for session a, got %d", len(got))
	}
	if got[0].Turn != 1 || got[1].Turn != 2 {
		t.Fatalf("expected chronological order, got %d then %d", got[0].Turn, got[1].Turn)
	}
	if !got[1].Degraded || got[1].Trigger != TriggerNudge || got[1].GFactor != 0.6 {
		t.Fatalf("unexpected second row: %+v", got[1])
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to be stamped")
	}

	all, err := ListTurns(db, "", 2)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(all) != 2 || all[1].SessionID != "b" || all[1].VersionID != "" {
		t.Fatalf("expected the two newest rows, got %+v", all)
	}
}

func TestNewLogger(t *testing.T) {
	for _, mode := range []string{"prod", "dev", ""} {
		l, err := New(mode, mode == "dev")
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.Debug("probe", zap.String("mode", mode))
	}
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) must return a logger")
	}
}
