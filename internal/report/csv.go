package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region csv
// WriteActionsCSV writes one line per completed occurrence.
func WriteActionsCSV(w io.Writer, rows []ActionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"action", "anchor", "start", "response_s", "scheduled_basal", "indices"}); err != nil {
		return fmt.Errorf("write actions header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Action,
			strconv.Itoa(r.Anchor),
			r.Start.UTC().Format(time.RFC3339Nano),
			formatSeconds(r.ResponseTime),
			strconv.FormatBool(r.ScheduledBasal),
			joinInts(r.Indices),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write action %s@%d: %w", r.Action, r.Anchor, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePairsCSV writes the success table.
func WritePairsCSV(w io.Writer, rows []PairRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "response_index", "time", "request", "response", "label", "response_s", "total_insulin"}); err != nil {
		return fmt.Errorf("write pairs header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.ResponseIndex),
			r.Time.UTC().Format(time.RFC3339Nano),
			r.Request,
			r.Response,
			r.Label,
			formatSeconds(r.ResponseTime),
			strconv.FormatFloat(r.TotalInsulin, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write pair %d: %w", r.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSnapshotsCSV writes the reconstructed state after every message.
func WriteSnapshotsCSV(w io.Writer, snaps []state.Snapshot) error {
	cw := csv.NewWriter(w)
	header := []string{
		"index", "time", "delta_s", "tag", "stage", "total_insulin", "last_temp_basal",
		"last_bolus", "bolus_active", "temp_basal_active", "scheduled_basal", "raw",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write snapshots header: %w", err)
	}
	for _, s := range snaps {
		rec := []string{
			strconv.Itoa(s.Index),
			s.Time.UTC().Format(time.RFC3339Nano),
			formatSeconds(s.Delta.Seconds()),
			string(s.Tag),
			strconv.Itoa(s.Stage),
			strconv.FormatFloat(s.TotalInsulin, 'f', 2, 64),
			strconv.FormatFloat(s.LastTempBasal, 'f', 2, 64),
			strconv.FormatFloat(s.LastBolus, 'f', 2, 64),
			strconv.FormatBool(s.BolusActive),
			strconv.FormatBool(s.TempBasalActive),
			strconv.FormatBool(s.ScheduledBasal),
			s.Raw,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write snapshot %d: %w", s.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// #endregion csv

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}
