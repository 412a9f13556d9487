package action

import (
	"fmt"
	"slices"
	"time"

	"github.com/caio/go-tdigest/v4"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region thresholds
// Thresholds tune the temp basal analysis.
type Thresholds struct {
	ShortInterval time.Duration // TBs closer than this to the previous one are short
	RepeatWindow  time.Duration // upper bound for the longer repeated-TB bucket
}

// DefaultThresholds returns 30 s and 19 min.
func DefaultThresholds() Thresholds {
	return Thresholds{ShortInterval: 30 * time.Second, RepeatWindow: 19 * time.Minute}
}

// firstInterval stands in for the interval before the first TB of a session.
const firstInterval = 399 * time.Second

// #endregion thresholds

// #region summary-types
// Stats aggregates one Result.
type Stats struct {
	Name       string
	Size       int
	Completed  int
	Incomplete int
	Mean       time.Duration
	Min        time.Duration
	Max        time.Duration
	P50        time.Duration
	P95        time.Duration
}

// RepeatedTB is a temp basal that re-requested the rate already in effect.
type RepeatedTB struct {
	Start     time.Time
	Rate      float64 // U/h
	Index     int     // sequence index of the 1a16 command
	SinceLast time.Duration
}

// TempBasalStats is the extra analysis for the temp basal action.
type TempBasalStats struct {
	ScheduledBasalBefore int // TBs started while scheduled basal was running
	Short                int
	Repeated             []RepeatedTB
	RepeatedShort        int
	RepeatedInWindow     int // at least ShortInterval and below RepeatWindow
}

// Summary is the per-action digest of a Match.
type Summary struct {
	Actions           []Stats
	TempBasal         *TempBasalStats
	CompletedMessages int
}

// #endregion summary-types

// #region summarize
// Summarize computes per-action statistics. snapshots must be the stream
// results were matched against.
func Summarize(results []Result, snapshots []state.Snapshot, th Thresholds) (Summary, error) {
	byIndex := make(map[int]state.Snapshot, len(snapshots))
	for _, s := range snapshots {
		byIndex[s.Index] = s
	}

	var sum Summary
	for _, r := range results {
		st, err := stats(r)
		if err != nil {
			return Summary{}, err
		}
		sum.Actions = append(sum.Actions, st)
		sum.CompletedMessages += len(r.Completed)
		if r.Name == TempBasalAction {
			sum.TempBasal = tempBasalStats(r, byIndex, th)
		}
	}
	return sum, nil
}

func stats(r Result) (Stats, error) {
	st := Stats{
		Name:       r.Name,
		Size:       r.Size,
		Completed:  r.Count(),
		Incomplete: len(r.Incomplete),
	}
	if len(r.ResponseTimes) == 0 {
		return st, nil
	}

	td, err := tdigest.New()
	if err != nil {
		return Stats{}, fmt.Errorf("tdigest for %s: %w", r.Name, err)
	}
	var total time.Duration
	for _, rt := range r.ResponseTimes {
		total += rt
		if err := td.Add(rt.Seconds()); err != nil {
			return Stats{}, fmt.Errorf("tdigest add %s: %w", r.Name, err)
		}
	}
	st.Mean = total / time.Duration(len(r.ResponseTimes))
	st.Min = slices.Min(r.ResponseTimes)
	st.Max = slices.Max(r.ResponseTimes)
	st.P50 = seconds(td.Quantile(0.50))
	st.P95 = seconds(td.Quantile(0.95))
	return st, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// tempBasalStats inspects every TB group. Position 0 is the cancel, which
// still carries the rate in effect, and position 2 the new 1a16 command.
func tempBasalStats(r Result, byIndex map[int]state.Snapshot, th Thresholds) *TempBasalStats {
	tb := &TempBasalStats{}
	for i, sched := range r.ScheduledBasal {
		if sched {
			tb.ScheduledBasalBefore++
		}
		since := firstInterval
		if i > 0 {
			since = r.StartTimes[i].Sub(r.StartTimes[i-1])
		}
		if since < th.ShortInterval {
			tb.Short++
		}

		if r.Size != 4 || sched {
			continue
		}
		group := r.Completed[i*r.Size : (i+1)*r.Size]
		prior, post := byIndex[group[0]], byIndex[group[2]]
		if post.LastTempBasal != prior.LastTempBasal {
			continue
		}
		tb.Repeated = append(tb.Repeated, RepeatedTB{
			Start:     r.StartTimes[i],
			Rate:      prior.LastTempBasal,
			Index:     group[2],
			SinceLast: since,
		})
		switch {
		case since < th.ShortInterval:
			tb.RepeatedShort++
		case since < th.RepeatWindow:
			tb.RepeatedInWindow++
		}
	}
	return tb
}

// #endregion summarize
