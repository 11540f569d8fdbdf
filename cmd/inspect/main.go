package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #region main

var (
	dbPath    string
	sessionID string
	last      int
	versionID string
	jsonOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect learner state versions and the turn log",
	Long: `inspect reads the tutor's sqlite journal.

Without --session it lists sessions. With --session it shows the most
recent state versions and turns of that session. --version prints one
state version in full.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := state.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		switch {
		case versionID != "":
			return runDetailMode(store, versionID)
		case sessionID != "":
			return runListMode(store, sessionID, last)
		default:
			return runSessionsMode(store)
		}
	},
}

func main() {
	rootCmd.Flags().StringVar(&dbPath, "db", "didactic.db", "path to the journal database")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "session to list")
	rootCmd.Flags().IntVar(&last, "last", 20, "show N most recent versions and turns")
	rootCmd.Flags().StringVar(&versionID, "version", "", "show single version detail")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// #endregion main

// #region sessions-mode

func runSessionsMode(store *state.Store) error {
	ids, err := store.ListSessions()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}
	type sessionRow struct {
		SessionID string `json:"session_id"`
		Turn      int    `json:"turn"`
		Trend     string `json:"trend"`
		UpdatedAt string `json:"updated_at"`
	}
	rows := make([]sessionRow, 0, len(ids))
	for _, id := range ids {
		cur, err := store.GetCurrent(id)
		if err != nil {
			return err
		}
		rows = append(rows, sessionRow{
			SessionID: id,
			Turn:      cur.Turn,
			Trend:     string(cur.Scaffolding.Trend),
			UpdatedAt: cur.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-36s  %5s  %-8s  %s\n", "Session", "Turn", "Trend", "Updated")
	for _, r := range rows {
		fmt.Printf("%-36s  %5d  %-8s  %s\n", r.SessionID, r.Turn, r.Trend, r.UpdatedAt)
	}
	return nil
}

// #endregion sessions-mode

// #region list-mode

type listRow struct {
	VersionID string            `json:"version_id"`
	Turn      int               `json:"turn"`
	Bands     map[string]string `json:"bands"`
	Agency    int               `json:"agency"`
	Trend     string            `json:"trend"`
	Average   float64           `json:"average"`
	Advice    bool              `json:"advice"`
	CreatedAt string            `json:"created_at"`
}

type listOutput struct {
	Versions []listRow            `json:"versions"`
	Turns    []logging.TurnRecord `json:"turns"`
}

func runListMode(store *state.Store, session string, last int) error {
	versions, err := store.ListVersions(session, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}
	turns, err := logging.ListTurns(store.DB(), session, last)
	if err != nil {
		return err
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		agency := 0
		if n := len(v.History); n > 0 {
			agency = v.History[n-1].AgencyScore
		}
		rows[len(versions)-1-i] = listRow{
			VersionID: v.VersionID,
			Turn:      v.Turn,
			Bands:     v.CurrentBands,
			Agency:    agency,
			Trend:     string(v.Scaffolding.Trend),
			Average:   v.Scaffolding.Average,
			Advice:    v.Scaffolding.Advice != "",
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(listOutput{Versions: rows, Turns: turns})
	}

	fmt.Printf("%-10s  %4s  %-28s  %6s  %-8s  %6s  %s\n", "Version", "Turn", "Bands", "Agency", "Trend", "Avg", "Time")
	for _, r := range rows {
		fmt.Printf("%-10s  %4d  %-28s  %6d  %-8s  %6.1f  %s\n",
			shortID(r.VersionID), r.Turn, formatBands(r.Bands), r.Agency, r.Trend, r.Average, r.CreatedAt)
	}

	if len(turns) > 0 {
		fmt.Printf("\n%-4s  %-12s  %-4s  %5s  %-8s  %-8s  %s\n", "Turn", "Trigger", "Tier", "G", "Status", "Decision", "Response")
		for _, t := range turns {
			deg := ""
			if t.Degraded {
				deg = " (degraded)"
			}
			fmt.Printf("%-4d  %-12s  %-4s  %5.2f  %-8s  %-8s  %s%s\n",
				t.Turn, t.Trigger, t.Tier, t.GFactor, t.Status, t.Decision, truncate(t.Response, 60), deg)
		}
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(store *state.Store, id string) error {
	v, err := store.GetVersion(id)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(v)
	}

	fmt.Printf("Version:   %s\n", v.VersionID)
	fmt.Printf("Parent:    %s\n", v.ParentID)
	fmt.Printf("Session:   %s\n", v.SessionID)
	fmt.Printf("Turn:      %d\n", v.Turn)
	fmt.Printf("Created:   %s\n", v.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Bands:     %s\n", formatBands(v.CurrentBands))
	fmt.Printf("Trend:     %s (avg %.1f over %d)\n", v.Scaffolding.Trend, v.Scaffolding.Average, v.Scaffolding.Samples)
	if v.Scaffolding.Advice != "" {
		fmt.Printf("Advice:    %s\n", v.Scaffolding.Advice)
	}

	m := v.Mechanical
	fmt.Printf("\nLast turn:\n")
	fmt.Printf("  Tier/Model: %s / %s\n", m.Tier, m.Model)
	fmt.Printf("  Calls:      %d\n", m.Calls)
	fmt.Printf("  Tokens:     %d in / %d out\n", m.PromptTokens, m.CompletionTokens)
	fmt.Printf("  Latency:    %d ms\n", m.LatencyMs)
	fmt.Printf("  Repaired:   %v  Rewritten: %v  Degraded: %v\n", m.Repaired, m.Rewritten, m.Degraded)

	if len(v.History) > 0 {
		fmt.Printf("\nHistory (%d entries):\n", len(v.History))
		for _, h := range v.History {
			fmt.Printf("  %4d  %-8s  %3d  %s\n", h.Turn, h.SRL, h.AgencyScore, strings.Join(h.Bands, ","))
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func formatBands(bands map[string]string) string {
	dims := make([]string, 0, len(bands))
	for d := range bands {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, bands[d])
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, ",")
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

// #endregion output
