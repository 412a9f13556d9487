// Package report renders an analysis as CSV tables, a JSON document or
// fixed-width text summaries.
package report

import (
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/action"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/pairing"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/replay"
)

// #region rows
// ActionRow is one completed occurrence of an action.
type ActionRow struct {
	Action         string    `json:"action"`
	Anchor         int       `json:"anchor"`
	Start          time.Time `json:"start"`
	ResponseTime   float64   `json:"response_s"`
	ScheduledBasal bool      `json:"scheduled_basal"`
	Indices        []int     `json:"indices"`
}

// PairRow is one successful request/response pair.
type PairRow struct {
	Index         int       `json:"index"`
	ResponseIndex int       `json:"response_index"`
	Time          time.Time `json:"time"`
	Request       string    `json:"request"`
	Response      string    `json:"response"`
	Label         string    `json:"label"`
	ResponseTime  float64   `json:"response_s"`
	TotalInsulin  float64   `json:"total_insulin"`
}

// OtherRow is one snapshot that did not start a pair.
type OtherRow struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Tag   string    `json:"tag"`
	Kind  string    `json:"kind"`
}

// ActionRows flattens results into one row per completed occurrence, in
// table order then anchor order.
func ActionRows(results []action.Result) []ActionRow {
	var out []ActionRow
	for _, r := range results {
		groups := r.Groups()
		for i, anchor := range r.Anchors {
			row := ActionRow{
				Action:         r.Name,
				Anchor:         anchor,
				Start:          r.StartTimes[i],
				ResponseTime:   r.ResponseTimes[i].Seconds(),
				ScheduledBasal: r.ScheduledBasal[i],
			}
			if i < len(groups) {
				row.Indices = groups[i]
			}
			out = append(out, row)
		}
	}
	return out
}

// PairRows converts the success table.
func PairRows(r pairing.Result, c *pairing.Catalog) []PairRow {
	out := make([]PairRow, len(r.Success))
	for i, s := range r.Success {
		out[i] = PairRow{
			Index:         s.Index,
			ResponseIndex: s.ResponseIndex,
			Time:          s.Time,
			Request:       string(s.Request),
			Response:      string(s.Response),
			Label:         c.Label(s.Request),
			ResponseTime:  s.ResponseTime.Seconds(),
			TotalInsulin:  s.State.TotalInsulin,
		}
	}
	return out
}

// OtherRows converts the other table.
func OtherRows(r pairing.Result) []OtherRow {
	out := make([]OtherRow, len(r.Other))
	for i, o := range r.Other {
		out[i] = OtherRow{Index: o.Index, Time: o.Time, Tag: string(o.Tag), Kind: string(o.Kind)}
	}
	return out
}

// #endregion rows

// #region document
// Document is the JSON form of an analysis.
type Document struct {
	Source     string           `json:"source,omitempty"`
	Records    int              `json:"records"`
	Skipped    []int            `json:"skipped"`
	Failures   []string         `json:"failures"`
	InitWindow []int            `json:"init_window"`
	Actions    []ActionRow      `json:"actions"`
	Stats      []action.Stats   `json:"action_stats"`
	TempBasal  *TempBasalReport `json:"temp_basal,omitempty"`
	Pairs      []PairRow        `json:"pairs"`
	Other      []OtherRow       `json:"other"`
	Negative   []int            `json:"negative_response_times"`
}

// TempBasalReport is the JSON form of action.TempBasalStats.
type TempBasalReport struct {
	ScheduledBasalBefore int                 `json:"scheduled_basal_before"`
	Short                int                 `json:"short_interval"`
	RepeatedShort        int                 `json:"repeated_short"`
	RepeatedInWindow     int                 `json:"repeated_in_window"`
	Repeated             []action.RepeatedTB `json:"repeated"`
}

// NewDocument assembles the JSON document. Slices are never nil so empty
// tables encode as [].
func NewDocument(source string, a *replay.Analysis, c *pairing.Catalog) Document {
	doc := Document{
		Source:     source,
		Records:    len(a.Snapshots),
		Skipped:    nonNil(a.Session.Skipped()),
		Failures:   []string{},
		InitWindow: nonNil(a.InitWindow),
		Actions:    nonNil(ActionRows(a.Actions)),
		Stats:      nonNil(a.ActionSummary.Actions),
		Pairs:      PairRows(a.Pairs, c),
		Other:      OtherRows(a.Pairs),
	}
	for _, f := range a.Session.Failures() {
		doc.Failures = append(doc.Failures, f.Error())
	}
	for _, r := range a.Actions {
		doc.Negative = append(doc.Negative, r.Negative...)
	}
	doc.Negative = append(doc.Negative, a.Pairs.Negative...)
	doc.Negative = nonNil(doc.Negative)

	if tb := a.ActionSummary.TempBasal; tb != nil {
		doc.TempBasal = &TempBasalReport{
			ScheduledBasalBefore: tb.ScheduledBasalBefore,
			Short:                tb.Short,
			RepeatedShort:        tb.RepeatedShort,
			RepeatedInWindow:     tb.RepeatedInWindow,
			Repeated:             nonNil(tb.Repeated),
		}
	}
	return doc
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// #endregion document
