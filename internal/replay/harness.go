package replay

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/action"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/config"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/logging"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/pairing"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region types
// Options bundles the tables and thresholds of an analysis run.
type Options struct {
	OperationalStage int
	Patterns         []action.Pattern
	Catalog          *pairing.Catalog
	Thresholds       action.Thresholds
}

// DefaultOptions returns the built-in tables.
func DefaultOptions() Options {
	return Options{
		OperationalStage: state.StageOperational,
		Patterns:         action.DefaultPatterns(),
		Catalog:          pairing.DefaultCatalog(),
		Thresholds:       action.DefaultThresholds(),
	}
}

// ConfigOptions builds Options from a validated configuration.
func ConfigOptions(cfg *config.Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid config: %w", err)
	}
	patterns, err := cfg.Patterns()
	if err != nil {
		return Options{}, err
	}
	catalog, err := cfg.PairingCatalog()
	if err != nil {
		return Options{}, err
	}
	return Options{
		OperationalStage: cfg.OperationalStage,
		Patterns:         patterns,
		Catalog:          catalog,
		Thresholds:       cfg.ActionThresholds(),
	}, nil
}

// Analysis is the full outcome of one session.
type Analysis struct {
	Session    state.Session
	Snapshots  []state.Snapshot // both stage bands in log order
	InitWindow []int

	Actions       []action.Result
	ActionSummary action.Summary

	Pairs       pairing.Result
	PairSummary pairing.Summary
}

// #endregion types

// #region analyze
// Analyze tracks records in two stage bands, then runs the action matcher
// over the whole session and the pairer over the operational band. The two
// passes share the snapshot slices read-only and run concurrently.
func Analyze(records []state.MessageRecord, opts Options) (*Analysis, error) {
	if opts.Catalog == nil {
		return nil, errors.New("analyze: nil catalog")
	}
	if opts.OperationalStage < 1 || opts.OperationalStage >= state.StageLimit {
		return nil, fmt.Errorf("analyze: operational stage %d out of range", opts.OperationalStage)
	}

	session := state.TrackSession(records, opts.OperationalStage)
	a := &Analysis{
		Session:   session,
		Snapshots: session.Snapshots(),
	}
	a.InitWindow = state.InitWindow(a.Snapshots, opts.OperationalStage, message.TagStatusResponse)

	var g errgroup.Group
	g.Go(func() error {
		a.Actions = action.Match(a.Snapshots, opts.Patterns)
		sum, err := action.Summarize(a.Actions, a.Snapshots, opts.Thresholds)
		if err != nil {
			return fmt.Errorf("summarize actions: %w", err)
		}
		a.ActionSummary = sum
		return nil
	})
	g.Go(func() error {
		a.Pairs = pairing.Pair(session.Operational.Snapshots, opts.Catalog)
		a.PairSummary = pairing.Summarize(a.Pairs, opts.Catalog)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return a, nil
}

// #endregion analyze

// #region counts
// Completed returns the number of completed occurrences per action.
func (a *Analysis) Completed() map[string]int {
	out := make(map[string]int, len(a.Actions))
	for _, r := range a.Actions {
		out[r.Name] = r.Count()
	}
	return out
}

// Incomplete returns the number of incomplete anchors per action.
func (a *Analysis) Incomplete() map[string]int {
	out := make(map[string]int)
	for _, r := range a.Actions {
		if len(r.Incomplete) > 0 {
			out[r.Name] = len(r.Incomplete)
		}
	}
	return out
}

// PairCounts returns the number of successful pairs per request tag.
func (a *Analysis) PairCounts() map[string]int {
	out := make(map[string]int)
	for _, s := range a.Pairs.Success {
		out[string(s.Request)]++
	}
	return out
}

// RunEntry converts the analysis into an analysis_log row.
func (a *Analysis) RunEntry(source, sessionID string) (logging.RunEntry, error) {
	entry := logging.RunEntry{
		SessionID: sessionID,
		Source:    source,
		Skipped:   len(a.Session.Skipped()),
		Failures:  len(a.Session.Failures()),
	}

	actions := make([]logging.ActionCount, 0, len(a.Actions))
	for _, r := range a.Actions {
		entry.Completed += r.Count()
		entry.Incomplete += len(r.Incomplete)
		actions = append(actions, logging.ActionCount{Name: r.Name, Completed: r.Count(), Incomplete: len(r.Incomplete)})
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return logging.RunEntry{}, fmt.Errorf("marshal actions: %w", err)
	}
	entry.ActionsJSON = string(data)

	missed := make(map[message.Tag]int)
	for _, c := range a.PairSummary.SendWithoutResponse {
		missed[c.Tag] = c.Count
	}
	pairs := make([]logging.PairCount, 0, len(a.PairSummary.Requests))
	for _, st := range a.PairSummary.Requests {
		pairs = append(pairs, logging.PairCount{
			Request: string(st.Tag), Label: st.Label, Success: st.Count, SendWithoutResponse: missed[st.Tag],
		})
		delete(missed, st.Tag)
	}
	for _, c := range a.PairSummary.SendWithoutResponse {
		if _, ok := missed[c.Tag]; ok {
			pairs = append(pairs, logging.PairCount{Request: string(c.Tag), Label: c.Label, SendWithoutResponse: c.Count})
		}
	}
	data, err = json.Marshal(pairs)
	if err != nil {
		return logging.RunEntry{}, fmt.Errorf("marshal pairs: %w", err)
	}
	entry.PairsJSON = string(data)
	return entry, nil
}

// #endregion counts
