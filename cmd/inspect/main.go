package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/config"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/logging"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/report"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region main

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	dbPath := flag.String("db", "", "path to pod_state.db (overrides config)")
	last := flag.Int("last", 20, "show N most recent runs or sessions")
	sessions := flag.Bool("sessions", false, "list stored sessions instead of runs")
	run := flag.String("run", "", "show single run detail")
	snapshots := flag.Bool("snapshots", false, "with --run, print the stored snapshots as CSV")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *snapshots && *run == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect [--db path/to/pod_state.db] [--last N] [--sessions] [--run id [--snapshots]] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *run != "" && *snapshots:
		err = runSnapshotMode(store, *run)
	case *run != "":
		err = runDetailMode(store, *run, *jsonOut)
	case *sessions:
		err = runSessionMode(store, *last, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID      string `json:"run_id"`
	SessionID  string `json:"session_id,omitempty"`
	Source     string `json:"source"`
	Completed  int    `json:"completed"`
	Incomplete int    `json:"incomplete"`
	Skipped    int    `json:"skipped"`
	Failures   int    `json:"failures"`
	CreatedAt  string `json:"created_at"`
}

func runListMode(store *state.Store, last int, jsonOut bool) error {
	runs, err := logging.ListRuns(store.DB(), last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = listRow{
			RunID:      r.RunID,
			SessionID:  r.SessionID,
			Source:     r.Source,
			Completed:  r.Completed,
			Incomplete: r.Incomplete,
			Skipped:    r.Skipped,
			Failures:   r.Failures,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-12s  %-24s  %9s  %10s  %7s  %8s  %s\n",
		"Run", "Session", "Source", "Completed", "Incomplete", "Skipped", "Failures", "Time")
	fmt.Printf("%-12s+-%-12s+-%-24s+-%9s+-%10s+-%7s+-%8s+-%s\n",
		"------------", "------------", "------------------------", "---------", "----------",
		"-------", "--------", "--------------------")
	for _, r := range rows {
		session := "—"
		if r.SessionID != "" {
			session = shortID(r.SessionID)
		}
		fmt.Printf("%-12s  %-12s  %-24s  %9d  %10d  %7d  %8d  %s\n",
			shortID(r.RunID), session, clip(r.Source, 24), r.Completed, r.Incomplete, r.Skipped, r.Failures, r.CreatedAt)
	}
	return nil
}

func runSessionMode(store *state.Store, last int, jsonOut bool) error {
	infos, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}
	if jsonOut {
		return printJSON(infos)
	}

	fmt.Printf("%-26s  %-32s  %7s  %s\n", "Session", "Source", "Records", "Imported")
	fmt.Printf("%-26s+-%-32s+-%7s+-%s\n",
		"--------------------------", "--------------------------------", "-------", "--------------------")
	for _, s := range infos {
		fmt.Printf("%-26s  %-32s  %7d  %s\n", s.SessionID, clip(s.Source, 32), s.RecordCount, s.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run     listRow               `json:"run"`
	Actions []logging.ActionCount `json:"actions"`
	Pairs   []logging.PairCount   `json:"pairs"`
}

func runDetailMode(store *state.Store, runID string, jsonOut bool) error {
	r, err := logging.GetRun(store.DB(), runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		Run: listRow{
			RunID:      r.RunID,
			SessionID:  r.SessionID,
			Source:     r.Source,
			Completed:  r.Completed,
			Incomplete: r.Incomplete,
			Skipped:    r.Skipped,
			Failures:   r.Failures,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		},
	}
	if r.ActionsJSON != "" {
		if err := json.Unmarshal([]byte(r.ActionsJSON), &out.Actions); err != nil {
			return fmt.Errorf("actions json: %w", err)
		}
	}
	if r.PairsJSON != "" {
		if err := json.Unmarshal([]byte(r.PairsJSON), &out.Pairs); err != nil {
			return fmt.Errorf("pairs json: %w", err)
		}
	}
	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:        %s\n", r.RunID)
	if r.SessionID != "" {
		fmt.Printf("Session:    %s\n", r.SessionID)
	}
	fmt.Printf("Source:     %s\n", r.Source)
	fmt.Printf("Time:       %s\n", out.Run.CreatedAt)
	fmt.Printf("Skipped:    %d  decode failures: %d\n", r.Skipped, r.Failures)

	fmt.Printf("\n%-15s  %9s  %10s\n", "Action", "Completed", "Incomplete")
	for _, a := range out.Actions {
		fmt.Printf("%-15s  %9d  %10d\n", a.Name, a.Completed, a.Incomplete)
	}
	fmt.Printf("\n%-8s  %-18s  %7s  %s\n", "Request", "Label", "Success", "No response")
	for _, p := range out.Pairs {
		fmt.Printf("%-8s  %-18s  %7d  %d\n", p.Request, p.Label, p.Success, p.SendWithoutResponse)
	}
	return nil
}

func runSnapshotMode(store *state.Store, runID string) error {
	snaps, err := store.LoadSnapshots(runID)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("no snapshots stored for run %s", runID)
	}
	return report.WriteSnapshotsCSV(os.Stdout, snaps)
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// shortID keeps the head of an ID for table columns.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func clip(s string, n int) string {
	if len(s) > n {
		return "…" + s[len(s)-n+1:]
	}
	return s
}

// #endregion output
