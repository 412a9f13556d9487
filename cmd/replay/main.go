package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/config"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/logging"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/replay"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/report"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region main

func main() {
	configPath := flag.String("config", envOr("PODSTATE_CONFIG", ""), "path to YAML config")
	dbPath := flag.String("db", "", "path to pod_state.db (overrides config)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	sessionID := flag.String("session", "", "stored session ID (DB mode)")
	save := flag.Bool("save", false, "store the session, run and snapshots")
	jsonOut := flag.Bool("json", false, "print the analysis as JSON instead of tables")
	csvDir := flag.String("csv", "", "write actions.csv, pairs.csv and snapshots.csv to this directory")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if (*fixturePath == "" && *sessionID == "") || (*fixturePath != "" && *sessionID != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--save] [--json] [--csv dir]")
		fmt.Fprintln(os.Stderr, "       replay --session ID [--db path/to/pod_state.db] [--save]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	r := runner{cfg: cfg, save: *save, jsonOut: *jsonOut, csvDir: *csvDir}
	var exitCode int
	if *fixturePath != "" {
		exitCode = r.fixtureMode(*fixturePath)
	} else {
		exitCode = r.sessionMode(*sessionID)
	}
	os.Exit(exitCode)
}

// envOr returns the environment variable value or the fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion main

// #region runner

type runner struct {
	cfg     *config.Config
	save    bool
	jsonOut bool
	csvDir  string
}

func (r runner) fixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	opts, err := replay.ConfigOptions(r.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "options: %v\n", err)
		return 2
	}
	if f.OperationalStage > 0 {
		opts.OperationalStage = f.OperationalStage
	}

	records := f.MessageRecords()
	a, err := replay.Analyze(records, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		return 2
	}
	if err := r.output(filepath.Base(path), a, opts); err != nil {
		fmt.Fprintf(os.Stderr, "output: %v\n", err)
		return 2
	}

	if r.save {
		if err := r.persist(path, records, a); err != nil {
			fmt.Fprintf(os.Stderr, "save: %v\n", err)
			return 2
		}
	}
	return printComparison(replay.Compare(a, f.Expected))
}

// sessionMode analyzes a stored session and compares the action counts with
// the most recent logged run of that session, if there is one.
func (r runner) sessionMode(sessionID string) int {
	store, err := state.NewStore(r.cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	records, err := store.LoadSession(sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load session: %v\n", err)
		return 2
	}
	opts, err := replay.ConfigOptions(r.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "options: %v\n", err)
		return 2
	}
	a, err := replay.Analyze(records, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		return 2
	}
	if err := r.output(sessionID, a, opts); err != nil {
		fmt.Fprintf(os.Stderr, "output: %v\n", err)
		return 2
	}

	prior, err := logging.LatestRun(store.DB(), sessionID)
	hasPrior := err == nil
	if err != nil && !errors.Is(err, logging.ErrRunNotFound) {
		fmt.Fprintf(os.Stderr, "latest run: %v\n", err)
		return 2
	}

	if r.save {
		if err := saveRun(store, "session:"+sessionID, sessionID, a); err != nil {
			fmt.Fprintf(os.Stderr, "save: %v\n", err)
			return 2
		}
	}

	if !hasPrior {
		fmt.Println("\nNo previous run for this session")
		return 0
	}
	want, err := replay.ExpectedFromRun(prior)
	if err != nil {
		fmt.Fprintf(os.Stderr, "previous run %s: %v\n", prior.RunID, err)
		return 2
	}
	fmt.Printf("\nCompared with run %s\n", prior.RunID)
	return printComparison(replay.Compare(a, want))
}

// #endregion runner

// #region persist

// persist stores a fixture's records as a new session and logs the run
// against it.
func (r runner) persist(source string, records []state.MessageRecord, a *replay.Analysis) error {
	store, err := state.NewStore(r.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	sessionID, err := store.SaveSession(source, records)
	if err != nil {
		return err
	}
	return saveRun(store, source, sessionID, a)
}

func saveRun(store *state.Store, source, sessionID string, a *replay.Analysis) error {
	entry, err := a.RunEntry(source, sessionID)
	if err != nil {
		return err
	}
	runID, err := logging.LogRun(store.DB(), entry)
	if err != nil {
		return err
	}
	if err := store.SaveSnapshots(runID, a.Snapshots); err != nil {
		return err
	}
	slog.Info("run saved", "run", runID, "session", sessionID, "snapshots", len(a.Snapshots))
	return nil
}

// #endregion persist

// #region output

func (r runner) output(source string, a *replay.Analysis, opts replay.Options) error {
	if r.csvDir != "" {
		if err := writeCSV(r.csvDir, a, opts); err != nil {
			return err
		}
	}
	if r.jsonOut {
		return report.WriteJSON(os.Stdout, report.NewDocument(source, a, opts.Catalog))
	}

	fmt.Printf("Source: %s  records: %d  skipped: %d  decode failures: %d\n\n",
		source, len(a.Snapshots), len(a.Session.Skipped()), len(a.Session.Failures()))
	report.PrintActions(os.Stdout, a.ActionSummary)
	fmt.Println()
	report.PrintPairs(os.Stdout, a.PairSummary)
	return nil
}

func writeCSV(dir string, a *replay.Analysis, opts replay.Options) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tables := []struct {
		name  string
		write func(*os.File) error
	}{
		{"actions.csv", func(f *os.File) error { return report.WriteActionsCSV(f, report.ActionRows(a.Actions)) }},
		{"pairs.csv", func(f *os.File) error { return report.WritePairsCSV(f, report.PairRows(a.Pairs, opts.Catalog)) }},
		{"snapshots.csv", func(f *os.File) error { return report.WriteSnapshotsCSV(f, a.Snapshots) }},
	}
	for _, t := range tables {
		path := filepath.Join(dir, t.name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		werr := t.write(f)
		cerr := f.Close()
		if werr != nil {
			return werr
		}
		if cerr != nil {
			return fmt.Errorf("close %s: %w", path, cerr)
		}
	}
	slog.Debug("csv written", "dir", dir)
	return nil
}

// printComparison outputs the mismatch table and returns the exit code.
func printComparison(mismatches []replay.Mismatch) int {
	fmt.Printf("\n%-11s| %-15s| %9s| %9s\n", "Table", "Key", "Expected", "Replayed")
	fmt.Printf("%-11s+%-16s+%10s+%9s\n", "-----------", "----------------", "----------", "---------")
	for _, m := range mismatches {
		fmt.Printf("%-11s| %-15s| %9d| %9d\n", m.Table, m.Key, m.Want, m.Got)
	}
	if len(mismatches) == 0 {
		fmt.Println("\nSummary: all counts match")
		return 0
	}
	fmt.Printf("\nSummary: %d mismatches\n", len(mismatches))
	return 1
}

// #endregion output
