package action

import (
	"log/slog"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region result
// Result is the outcome of one pattern over a session. Per-occurrence
// slices (Anchors, StartTimes, ResponseTimes, ScheduledBasal) are parallel
// and ordered by anchor index. Completed holds the sequence indices of every
// completed occurrence, Size entries per occurrence.
type Result struct {
	Name           string
	Size           int
	Anchors        []int
	StartTimes     []time.Time
	ResponseTimes  []time.Duration
	ScheduledBasal []bool // scheduled basal active when the occurrence started
	Incomplete     []int  // anchor indices whose group did not match
	Completed      []int
	Negative       []int // anchor indices with a negative response time
}

// Count returns the number of completed occurrences.
func (r Result) Count() int { return len(r.Anchors) }

// Groups splits Completed into one slice per occurrence.
func (r Result) Groups() [][]int {
	if r.Size == 0 {
		return nil
	}
	groups := make([][]int, 0, len(r.Completed)/r.Size)
	for i := 0; i+r.Size <= len(r.Completed); i += r.Size {
		groups = append(groups, r.Completed[i:i+r.Size])
	}
	return groups
}

// #endregion result

// #region match
// Match runs patterns in order over snapshots. Neighbors are looked up by
// sequence index in the full stream, so gaps left by skipped records or by
// earlier claims never shift an offset. A completed occurrence claims every
// index of its group; later occurrences that need a claimed index are
// incomplete. An incomplete anchor is retired from later anchor searches
// while its neighbors stay available. A pattern with anchors but no
// completed occurrence still yields a row carrying only Incomplete; only a
// pattern with no anchors at all is left out.
func Match(snapshots []state.Snapshot, patterns []Pattern) []Result {
	pos := make(map[int]int, len(snapshots))
	for i, s := range snapshots {
		pos[s.Index] = i
	}
	claimed := make(map[int]bool)
	retired := make(map[int]bool)

	var out []Result
	for _, p := range patterns {
		var anchors []int
		for _, s := range snapshots {
			if s.Tag == p.AnchorTag() && !claimed[s.Index] && !retired[s.Index] {
				anchors = append(anchors, s.Index)
			}
		}
		if len(anchors) == 0 {
			continue
		}

		res := Result{Name: p.Name, Size: p.Size()}
		for _, a := range anchors {
			group, ok := occurrence(snapshots, pos, claimed, p, a)
			if !ok {
				res.Incomplete = append(res.Incomplete, a)
				retired[a] = true
				continue
			}
			for _, idx := range group {
				claimed[idx] = true
			}

			start := snapshots[pos[group[0]]]
			end := snapshots[pos[group[len(group)-1]]]
			rt := end.Time.Sub(start.Time)
			if rt < 0 {
				slog.Warn("negative action response time", "action", p.Name, "anchor", a, "response", rt)
				res.Negative = append(res.Negative, a)
			}

			res.Anchors = append(res.Anchors, a)
			res.StartTimes = append(res.StartTimes, start.Time)
			res.ResponseTimes = append(res.ResponseTimes, rt)
			res.ScheduledBasal = append(res.ScheduledBasal, start.ScheduledBasal)
			res.Completed = append(res.Completed, group...)
		}
		out = append(out, res)
	}
	return out
}

// occurrence returns the sequence indices of the group anchored at anchor,
// or false if any position is missing, claimed, or carries the wrong tag.
func occurrence(snapshots []state.Snapshot, pos map[int]int, claimed map[int]bool, p Pattern, anchor int) ([]int, bool) {
	group := make([]int, p.Size())
	for i, want := range p.Shape {
		idx := anchor + i - p.Anchor
		at, ok := pos[idx]
		if !ok || claimed[idx] || snapshots[at].Tag != want {
			return nil, false
		}
		group[i] = idx
	}
	return group, true
}

// #endregion match
