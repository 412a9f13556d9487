package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/config"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/logging"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/replay"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region main

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	dbPath := flag.String("db", "", "path to pod_state.db (overrides config)")
	sessionID := flag.String("session", "", "session to export (default: most recent)")
	outPath := flag.String("out", "", "output fixture JSON path")
	desc := flag.String("desc", "", "fixture description")
	flag.Parse()

	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --out path/to/fixture.json [--db path/to/db] [--session ID] [--desc text]")
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

	if err := run(cfg, *sessionID, *outPath, *desc); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(cfg *config.Config, sessionID, outPath, desc string) error {
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if sessionID == "" {
		infos, err := store.ListSessions(1)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			return errors.New("no sessions stored")
		}
		sessionID = infos[0].SessionID
		if desc == "" {
			desc = infos[0].Source
		}
	}
	if desc == "" {
		desc = "session " + sessionID
	}

	records, err := store.LoadSession(sessionID)
	if err != nil {
		return err
	}
	opts, err := replay.ConfigOptions(cfg)
	if err != nil {
		return err
	}
	a, err := replay.Analyze(records, opts)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	// the stored run may predate a table change; the fixture follows the
	// current analysis either way
	prior, err := logging.LatestRun(store.DB(), sessionID)
	switch {
	case err == nil:
		if want, err := replay.ExpectedFromRun(prior); err == nil {
			for _, m := range replay.Compare(a, want) {
				slog.Warn("analysis differs from logged run", "run", prior.RunID, "diff", m.String())
			}
		}
	case !errors.Is(err, logging.ErrRunNotFound):
		return err
	}

	return writeFixture(replay.NewFixture(desc, records, a), opts, outPath)
}

// #endregion extract

// #region output

func writeFixture(f *replay.Fixture, opts replay.Options, outPath string) error {
	f.OperationalStage = opts.OperationalStage
	if err := replay.WriteFixture(outPath, f); err != nil {
		return err
	}

	total := 0
	for _, n := range f.Expected.Actions {
		total += n
	}
	fmt.Printf("Wrote %d records to %s\n", len(f.Records), outPath)
	fmt.Printf("  actions: %d completed across %d rows\n", total, len(f.Expected.Actions))
	fmt.Printf("  pairs:   %d request tags\n", len(f.Expected.Pairs))
	if len(f.Expected.Skipped) > 0 {
		fmt.Printf("  skipped: %v\n", f.Expected.Skipped)
	}
	return nil
}

// #endregion output
