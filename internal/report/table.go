package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/action"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/pairing"
)

// #region action-table
// PrintActions writes the per-action summary table followed by the temp
// basal analysis, if any.
func PrintActions(w io.Writer, sum action.Summary) {
	fmt.Fprintf(w, "%-15s| %9s| %10s| %8s| %8s| %8s| %8s| %8s\n",
		"Action", "Completed", "Incomplete", "Mean", "Min", "Max", "P50", "P95")
	fmt.Fprintf(w, "%-15s+%10s+%11s+%9s+%9s+%9s+%9s+%9s\n",
		dashes(15), dashes(10), dashes(11), dashes(9), dashes(9), dashes(9), dashes(9), dashes(9))
	for _, st := range sum.Actions {
		if st.Completed == 0 && st.Incomplete == 0 {
			continue
		}
		fmt.Fprintf(w, "%-15s| %9d| %10d| %8s| %8s| %8s| %8s| %8s\n",
			st.Name, st.Completed, st.Incomplete,
			secs(st.Mean), secs(st.Min), secs(st.Max), secs(st.P50), secs(st.P95))
	}
	fmt.Fprintf(w, "\nCompleted messages: %d\n", sum.CompletedMessages)

	tb := sum.TempBasal
	if tb == nil {
		return
	}
	fmt.Fprintf(w, "\nTemp basal:\n")
	fmt.Fprintf(w, "  enacted with scheduled basal: %d\n", tb.ScheduledBasalBefore)
	fmt.Fprintf(w, "  short interval:               %d\n", tb.Short)
	fmt.Fprintf(w, "  repeated:                     %d (short %d, in window %d)\n",
		len(tb.Repeated), tb.RepeatedShort, tb.RepeatedInWindow)
	for _, r := range tb.Repeated {
		fmt.Fprintf(w, "    %s  #%-6d %6.2f U/h  +%s\n",
			r.Start.UTC().Format(time.DateTime), r.Index, r.Rate, r.SinceLast.Round(time.Second))
	}
}

// #endregion action-table

// #region pair-table
// PrintPairs writes the per-request table and the unpaired counts.
func PrintPairs(w io.Writer, sum pairing.Summary) {
	fmt.Fprintf(w, "%-8s| %-18s| %6s| %8s| %8s| %8s\n", "Request", "Label", "Count", "Mean", "Min", "Max")
	fmt.Fprintf(w, "%-8s+%-19s+%7s+%9s+%9s+%9s\n",
		dashes(8), dashes(19), dashes(7), dashes(9), dashes(9), dashes(9))
	for _, st := range sum.Requests {
		fmt.Fprintf(w, "%-8s| %-18s| %6d| %8s| %8s| %8s\n",
			st.Tag, st.Label, st.Count, secs(st.Mean), secs(st.Min), secs(st.Max))
	}
	printCounts(w, "Sent without response", sum.SendWithoutResponse)
	printCounts(w, "Off-nominal receive", sum.OffNominalReceive)
	printCounts(w, "Unknown request", sum.Unknown)
}

func printCounts(w io.Writer, title string, counts []pairing.TagCount) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "  %-8s %-18s %d\n", c.Tag, c.Label, c.Count)
	}
}

// #endregion pair-table

func secs(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func dashes(n int) string { return strings.Repeat("-", n) }
