package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/replay"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #region main

var (
	dbPath    string
	sessionID string
	last      int
	outPath   string
)

var rootCmd = &cobra.Command{
	Use:          "fixture-export",
	Short:        "Export journaled turns of a session as a replay fixture",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(dbPath, sessionID, last, outPath)
	},
}

func main() {
	rootCmd.Flags().StringVar(&dbPath, "db", "didactic.db", "journal database")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "session to export")
	rootCmd.Flags().IntVar(&last, "last", 0, "export only the N most recent turns (0 = all)")
	rootCmd.Flags().StringVar(&outPath, "out", "", "output fixture JSON path")
	_ = rootCmd.MarkFlagRequired("session")
	_ = rootCmd.MarkFlagRequired("out")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, session string, last int, outPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	recs, err := logging.ListTurns(store.DB(), session, last)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no turns recorded for session %s", session)
	}

	desc := fmt.Sprintf("exported from %s: session %s, %d turns", dbPath, session, len(recs))
	fixture, err := replay.FromTurnRecords(desc, recs)
	if err != nil {
		return err
	}
	if err := writeFixture(fixture, outPath); err != nil {
		return err
	}
	fmt.Printf("wrote %d interactions to %s\n", len(fixture.Interactions), outPath)
	return nil
}

// #endregion extract

// #region output

func writeFixture(fixture *replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// #endregion output
