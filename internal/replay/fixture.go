package replay

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/logging"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description      string          `json:"description"`
	OperationalStage int             `json:"operational_stage,omitempty"`
	Records          []FixtureRecord `json:"records"`
	Expected         Expected        `json:"expected"`
}

// FixtureRecord mirrors state.MessageRecord with JSON tags.
type FixtureRecord struct {
	Index   int       `json:"index"`
	Time    time.Time `json:"time"`
	DeltaMS int64     `json:"delta_ms"`
	Raw     string    `json:"raw"`
}

// Expected holds the counts a fixture must reproduce. Actions and Incomplete
// are keyed by action name, Pairs by request tag.
type Expected struct {
	Actions    map[string]int `json:"actions"`
	Incomplete map[string]int `json:"incomplete,omitempty"`
	Pairs      map[string]int `json:"pairs"`
	Skipped    []int          `json:"skipped,omitempty"`
}

// Mismatch is one difference between an analysis and its expectations.
type Mismatch struct {
	Table string // "actions", "incomplete", "pairs" or "skipped"
	Key   string
	Want  int
	Got   int
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s[%s]: expected %d, got %d", m.Table, m.Key, m.Want, m.Got)
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

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// MessageRecords converts the fixture records to domain records.
func (f *Fixture) MessageRecords() []state.MessageRecord {
	out := make([]state.MessageRecord, len(f.Records))
	for i, r := range f.Records {
		out[i] = state.MessageRecord{
			Index: r.Index,
			Time:  r.Time,
			Delta: time.Duration(r.DeltaMS) * time.Millisecond,
			Raw:   r.Raw,
		}
	}
	return out
}

// Options returns DefaultOptions with the fixture's operational stage.
func (f *Fixture) Options() Options {
	opts := DefaultOptions()
	if f.OperationalStage > 0 {
		opts.OperationalStage = f.OperationalStage
	}
	return opts
}

// NewFixture builds a fixture from records, taking expectations from a.
func NewFixture(description string, records []state.MessageRecord, a *Analysis) *Fixture {
	f := &Fixture{
		Description:      description,
		OperationalStage: state.StageOperational,
		Records:          make([]FixtureRecord, len(records)),
		Expected: Expected{
			Actions:    a.Completed(),
			Incomplete: a.Incomplete(),
			Pairs:      a.PairCounts(),
			Skipped:    a.Session.Skipped(),
		},
	}
	for i, r := range records {
		f.Records[i] = FixtureRecord{
			Index:   r.Index,
			Time:    r.Time.UTC(),
			DeltaMS: r.Delta.Milliseconds(),
			Raw:     r.Raw,
		}
	}
	return f
}

// ExpectedFromRun rebuilds comparable counts from a logged run. Skipped is
// left nil since the run log only keeps its length.
func ExpectedFromRun(run logging.RunEntry) (Expected, error) {
	var actions []logging.ActionCount
	if err := json.Unmarshal([]byte(run.ActionsJSON), &actions); err != nil {
		return Expected{}, fmt.Errorf("run %s actions: %w", run.RunID, err)
	}
	var pairs []logging.PairCount
	if run.PairsJSON != "" {
		if err := json.Unmarshal([]byte(run.PairsJSON), &pairs); err != nil {
			return Expected{}, fmt.Errorf("run %s pairs: %w", run.RunID, err)
		}
	}

	want := Expected{
		Actions:    make(map[string]int, len(actions)),
		Incomplete: make(map[string]int),
		Pairs:      make(map[string]int, len(pairs)),
	}
	for _, c := range actions {
		want.Actions[c.Name] = c.Completed
		if c.Incomplete > 0 {
			want.Incomplete[c.Name] = c.Incomplete
		}
	}
	for _, p := range pairs {
		if p.Success > 0 {
			want.Pairs[p.Request] = p.Success
		}
	}
	return want, nil
}

// #endregion fixture-loader

// #region compare

// Compare returns every count in want that a does not reproduce, plus any
// action or pair that a found and want does not list. Output is sorted by
// table and key.
func Compare(a *Analysis, want Expected) []Mismatch {
	var out []Mismatch
	out = append(out, compareCounts("actions", want.Actions, a.Completed())...)
	if want.Incomplete != nil {
		out = append(out, compareCounts("incomplete", want.Incomplete, a.Incomplete())...)
	}
	out = append(out, compareCounts("pairs", want.Pairs, a.PairCounts())...)
	if want.Skipped != nil {
		got := a.Session.Skipped()
		if !slices.Equal(got, want.Skipped) {
			out = append(out, Mismatch{Table: "skipped", Key: fmt.Sprint(want.Skipped), Want: len(want.Skipped), Got: len(got)})
		}
	}
	return out
}

func compareCounts(table string, want, got map[string]int) []Mismatch {
	keys := slices.Collect(maps.Keys(want))
	for k, n := range got {
		if _, ok := want[k]; !ok && n != 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var out []Mismatch
	for _, k := range keys {
		if want[k] != got[k] {
			out = append(out, Mismatch{Table: table, Key: k, Want: want[k], Got: got[k]})
		}
	}
	return out
}

// #endregion compare
