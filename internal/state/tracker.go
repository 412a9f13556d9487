package state

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
)

// #region reduce
// Reduce is a pure function that folds one decoded message into the prior
// snapshot. Only the fields the message carries change; record metadata
// (index, time, raw payload) is left for the caller to set.
func Reduce(prior Snapshot, msg message.Message) Snapshot {
	next := prior
	next.Tag = msg.Tag()

	switch m := msg.(type) {
	case message.TempBasal:
		next.LastTempBasal = m.RateUPerHour
	case message.Bolus:
		next.LastBolus = m.Units
	case message.StatusResponse:
		next.Stage = m.Stage
		next.TotalInsulin = m.TotalInsulin
		next.BolusActive = m.Delivery.Bolus()
		next.TempBasalActive = m.Delivery.TempBasal()
		next.ScheduledBasal = m.Delivery.Basal()
	case message.CancelDelivery:
		next.BolusActive = next.BolusActive && !m.CancelsBolus()
		next.TempBasalActive = next.TempBasalActive && !m.CancelsTB()
		next.ScheduledBasal = next.ScheduledBasal && !m.Suspend()
	case message.StatusRequest, message.ErrorResponse, message.PodInfo,
		message.BasalSchedule, message.Raw:
		// tag only
	}
	return next
}

// #endregion reduce

// #region track
// Track folds records left to right and emits one snapshot per decoded
// record whose stage is in [minStage, maxStage). Records below minStage still
// update the running state. The pass stops at the first record that brings
// the stage to maxStage or beyond; that record is reported as Cutoff and not
// emitted.
func Track(records []MessageRecord, minStage, maxStage int) TrackResult {
	res := TrackResult{Cutoff: -1}
	var cur Snapshot

	for _, rec := range records {
		if strings.TrimSpace(rec.Raw) == "" {
			res.Skipped = append(res.Skipped, rec.Index)
			continue
		}

		msg, err := message.DecodeHex(rec.Raw)
		if err != nil {
			slog.Debug("message decode failed", "index", rec.Index, "error", err)
			res.Failures = append(res.Failures, DecodeError{Index: rec.Index, Err: err})
			continue
		}

		cur = Reduce(cur, msg)
		cur.Index = rec.Index
		cur.Time = rec.Time
		cur.Delta = rec.Delta
		cur.Raw = rec.Raw

		if cur.Stage < minStage {
			continue
		}
		if cur.Stage >= maxStage {
			res.Cutoff = rec.Index
			break
		}
		res.Snapshots = append(res.Snapshots, cur)
	}

	res.Final = cur
	return res
}

// #endregion track

// #region session
// Session holds the two stage bands of one pod session.
type Session struct {
	Init        TrackResult // stages below the operational stage
	Operational TrackResult // operational stage and later
}

// TrackSession runs Track once per stage band, split at operational, and
// warns once per record that failed to decode.
func TrackSession(records []MessageRecord, operational int) Session {
	s := Session{
		Init:        Track(records, 0, operational),
		Operational: Track(records, operational, StageLimit),
	}
	for _, f := range s.Failures() {
		slog.Warn("message decode failed", "index", f.Index, "error", f.Err)
	}
	return s
}

// Snapshots returns both bands concatenated in log order.
func (s Session) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(s.Init.Snapshots)+len(s.Operational.Snapshots))
	out = append(out, s.Init.Snapshots...)
	return append(out, s.Operational.Snapshots...)
}

// Skipped returns the indices of empty records seen by either band.
func (s Session) Skipped() []int {
	out := slices.Concat(s.Init.Skipped, s.Operational.Skipped)
	slices.Sort(out)
	return slices.Compact(out)
}

// Failures returns decode failures seen by either band, one per index.
func (s Session) Failures() []DecodeError {
	out := slices.Concat(s.Init.Failures, s.Operational.Failures)
	slices.SortStableFunc(out, func(a, b DecodeError) int { return a.Index - b.Index })
	return slices.CompactFunc(out, func(a, b DecodeError) bool { return a.Index == b.Index })
}

// #endregion session

// #region init-window
// InitWindow returns the indices of the pairing and priming exchange: every
// snapshot below the operational stage, extended one snapshot at a time
// past the last of them until a snapshot tagged terminal is included.
func InitWindow(snapshots []Snapshot, operational int, terminal message.Tag) []int {
	var window []int
	last := -1
	for i, s := range snapshots {
		if s.Stage < operational {
			window = append(window, s.Index)
			last = i
		}
	}
	if last < 0 {
		return nil
	}
	for i := last; snapshots[i].Tag != terminal && i+1 < len(snapshots); {
		i++
		window = append(window, snapshots[i].Index)
	}
	return window
}

// #endregion init-window
