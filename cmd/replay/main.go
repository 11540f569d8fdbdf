package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/replay"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #region main

var (
	dbPath      string
	sessionID   string
	fixturePath string
	rubricPath  string
)

var errDiverged = errors.New("replay diverged from the recording")

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run gate, scorer and state update over recorded turns",
	Long: `replay re-runs the deterministic pipeline stages over recorded analyses
and compares the outcome per turn.

  replay --db didactic.db --session <id>
  replay --fixture internal/replay/testdata/session.json

Exits 1 when any turn diverges.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if (dbPath == "") == (fixturePath == "") {
			return errors.New("exactly one of --db or --fixture is required")
		}
		cat, err := loadCatalog(rubricPath)
		if err != nil {
			return err
		}

		var f *replay.Fixture
		if fixturePath != "" {
			f, err = replay.LoadFixture(fixturePath)
		} else {
			f, err = fixtureFromDB(dbPath, sessionID)
		}
		if err != nil {
			return err
		}
		return printComparison(cat, f)
	},
}

func main() {
	rootCmd.Flags().StringVar(&dbPath, "db", "", "journal database (DB mode)")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "session to replay in DB mode")
	rootCmd.Flags().StringVar(&fixturePath, "fixture", "", "fixture JSON (fixture mode)")
	rootCmd.Flags().StringVar(&rubricPath, "rubric", "", "rubric source; empty uses the embedded rubric")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errDiverged) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

// #endregion main

// #region db-extract

func fixtureFromDB(path, session string) (*replay.Fixture, error) {
	if session == "" {
		return nil, errors.New("--session is required in DB mode")
	}
	store, err := state.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	recs, err := logging.ListTurns(store.DB(), session, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no turns recorded for session %s", session)
	}
	return replay.FromTurnRecords("db "+path, recs)
}

func loadCatalog(path string) (*rubric.Catalog, error) {
	if path == "" {
		return rubric.Default(), nil
	}
	return rubric.Load(path)
}

// #endregion db-extract

// #region output

func printComparison(cat *rubric.Catalog, f *replay.Fixture) error {
	results, mismatches := replay.RunFixture(cat, f)

	diff := map[string]bool{}
	for _, m := range mismatches {
		diff[m.TurnID] = true
	}

	fmt.Printf("%-12s| %-20s| %-20s| %s\n", "Turn", "Expected", "Replayed", "Match")
	fmt.Printf("%-12s+%-21s+%-21s+%s\n", "------------", "---------------------", "---------------------", "------")
	for i, r := range results {
		exp := "—"
		if i < len(f.ExpectedResults) {
			e := f.ExpectedResults[i]
			exp = e.Action + "/" + e.Status
		}
		got := r.Action + "/" + string(r.Validation.Status)
		match := "OK"
		if diff[r.TurnID] {
			match = "DIFF"
		}
		fmt.Printf("%-12s| %-20s| %-20s| %s\n", shortID(r.TurnID), exp, got, match)
	}

	for _, m := range mismatches {
		fmt.Printf("  %s\n", m)
	}

	_, final := replay.Replay(cat, state.NewLearnerState(f.SessionID), toInteractions(f), f.Config.ToReplayConfig())
	s := replay.Summarize(results, final)
	fmt.Printf("\nSummary: %d turns, %d commit, %d no_op, %d breach, mean g %.2f, %d diverge\n",
		s.TotalTurns, s.Commits, s.NoOps, s.Breaches, s.MeanGFactor, len(mismatches))
	fmt.Printf("Final trend: %s (avg %.1f)\n", final.Scaffolding.Trend, final.Scaffolding.Average)

	if len(mismatches) > 0 {
		return errDiverged
	}
	return nil
}

func toInteractions(f *replay.Fixture) []replay.Interaction {
	out := make([]replay.Interaction, len(f.Interactions))
	for i := range f.Interactions {
		out[i] = f.Interactions[i].ToInteraction()
	}
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
