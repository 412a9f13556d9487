package action

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/podtest"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

func snap(idx int, sec float64, tag message.Tag) state.Snapshot {
	return state.Snapshot{
		Index: idx,
		Time:  podtest.Epoch.Add(time.Duration(sec * float64(time.Second))),
		Tag:   tag,
	}
}

func find(results []Result, name string) (Result, bool) {
	for _, r := range results {
		if r.Name == name {
			return r, true
		}
	}
	return Result{}, false
}

func tempBasalStream() []state.Snapshot {
	return []state.Snapshot{
		snap(10, 100, message.TagCancelTempBasal),
		snap(11, 101, message.TagStatusResponse),
		snap(12, 150, message.TagTempBasal),
		snap(13, 151, message.TagStatusResponse),
	}
}

// #region scenario-tests
func TestMatch_CompletedTempBasal(t *testing.T) {
	results := Match(tempBasalStream(), DefaultPatterns())

	tb, ok := find(results, TempBasalAction)
	if !ok {
		t.Fatal("expected a TB row")
	}
	if !slices.Equal(tb.Completed, []int{10, 11, 12, 13}) {
		t.Errorf("expected completed [10 11 12 13], got %v", tb.Completed)
	}
	if len(tb.Incomplete) != 0 {
		t.Errorf("expected no incomplete, got %v", tb.Incomplete)
	}
	if tb.ResponseTimes[0] != 51*time.Second {
		t.Errorf("expected response 51s, got %v", tb.ResponseTimes[0])
	}
	if want := podtest.Epoch.Add(100 * time.Second); !tb.StartTimes[0].Equal(want) {
		t.Errorf("expected start %v, got %v", want, tb.StartTimes[0])
	}
	if _, ok := find(results, "CancelTB"); ok {
		t.Error("cancel claimed by TB must not match CancelTB")
	}
}

func TestMatch_IncompleteAnchorLeavesNeighbors(t *testing.T) {
	snaps := tempBasalStream()
	snaps[3].Tag = message.TagErrorResponse

	results := Match(snaps, DefaultPatterns())

	tb, ok := find(results, TempBasalAction)
	if !ok {
		t.Fatal("expected a TB row even with no completed occurrence")
	}
	if tb.Count() != 0 || len(tb.Completed) != 0 {
		t.Errorf("expected no completed TB, got %v", tb.Completed)
	}
	if !slices.Equal(tb.Incomplete, []int{12}) {
		t.Errorf("expected incomplete [12], got %v", tb.Incomplete)
	}

	cancel, ok := find(results, "CancelTB")
	if !ok {
		t.Fatal("expected CancelTB to claim 10 and 11")
	}
	if !slices.Equal(cancel.Completed, []int{10, 11}) {
		t.Errorf("expected CancelTB [10 11], got %v", cancel.Completed)
	}
}

func TestMatch_NoAnchorNoRow(t *testing.T) {
	snaps := tempBasalStream()
	snaps[2].Tag = message.TagStatusResponse

	results := Match(snaps, DefaultPatterns())
	if _, ok := find(results, TempBasalAction); ok {
		t.Error("expected no TB row without a 1a16 anchor")
	}
	if cancel, ok := find(results, "CancelTB"); !ok || !slices.Equal(cancel.Completed, []int{10, 11}) {
		t.Errorf("expected CancelTB [10 11], got %+v", cancel)
	}
}

// #endregion scenario-tests

// #region ordering-tests
func TestMatch_EarlierPatternWins(t *testing.T) {
	snaps := []state.Snapshot{
		snap(0, 0, message.TagStatusRequest),
		snap(1, 1, message.TagStatusResponse),
		snap(2, 2, message.TagBolus),
		snap(3, 3, message.TagStatusResponse),
		snap(4, 60, message.TagStatusRequest),
		snap(5, 61, message.TagStatusResponse),
	}
	results := Match(snaps, DefaultPatterns())

	if len(results) != 2 {
		t.Fatalf("expected Bolus and StatusCheck rows, got %d", len(results))
	}
	if results[0].Name != "Bolus" || !slices.Equal(results[0].Completed, []int{0, 1, 2, 3}) {
		t.Errorf("unexpected first row %+v", results[0])
	}
	if results[1].Name != "StatusCheck" || !slices.Equal(results[1].Completed, []int{4, 5}) {
		t.Errorf("unexpected second row %+v", results[1])
	}
}

func TestMatch_RetiredAnchorSkipsLaterPatterns(t *testing.T) {
	strict := mustPattern("StrictCheck", 0, message.TagStatusRequest, message.TagTempBasal)
	status := mustPattern("StatusCheck", 0, message.TagStatusRequest, message.TagStatusResponse)
	reply := mustPattern("Reply", 1, message.TagStatusRequest, message.TagStatusResponse)
	snaps := []state.Snapshot{
		snap(0, 0, message.TagStatusRequest),
		snap(1, 1, message.TagStatusResponse),
	}

	results := Match(snaps, []Pattern{strict, status, reply})

	if len(results) != 2 {
		t.Fatalf("expected StrictCheck and Reply rows, got %+v", results)
	}
	if !slices.Equal(results[0].Incomplete, []int{0}) {
		t.Errorf("expected StrictCheck incomplete [0], got %v", results[0].Incomplete)
	}
	// the retired anchor still serves as a neighbor
	if results[1].Name != "Reply" || !slices.Equal(results[1].Completed, []int{0, 1}) {
		t.Errorf("expected Reply [0 1], got %+v", results[1])
	}
}

func TestMatch_SelfOverlapClaimsOnce(t *testing.T) {
	pair := mustPattern("Pair", 0, message.TagStatusResponse, message.TagStatusResponse)
	snaps := []state.Snapshot{
		snap(0, 0, message.TagStatusResponse),
		snap(1, 1, message.TagStatusResponse),
		snap(2, 2, message.TagStatusResponse),
	}
	results := Match(snaps, []Pattern{pair})

	if !slices.Equal(results[0].Completed, []int{0, 1}) {
		t.Errorf("expected [0 1], got %v", results[0].Completed)
	}
	if !slices.Equal(results[0].Incomplete, []int{1, 2}) {
		t.Errorf("expected incomplete [1 2], got %v", results[0].Incomplete)
	}
}

// #endregion ordering-tests

// #region boundary-tests
func TestMatch_OffsetsUseSequenceIndices(t *testing.T) {
	// record 5 was empty and never became a snapshot
	snaps := []state.Snapshot{
		snap(3, 0, message.TagStatusResponse),
		snap(4, 1, message.TagStatusRequest),
		snap(6, 2, message.TagStatusResponse),
	}
	results := Match(snaps, DefaultPatterns())

	status, ok := find(results, "StatusCheck")
	if !ok {
		t.Fatal("expected a StatusCheck row")
	}
	if len(status.Completed) != 0 || !slices.Equal(status.Incomplete, []int{4}) {
		t.Errorf("expected 4 incomplete across the gap, got %+v", status)
	}
}

func TestMatch_StreamEdges(t *testing.T) {
	snaps := []state.Snapshot{
		snap(0, 0, message.TagStatusResponse),
		snap(1, 1, message.TagTempBasal),
		snap(2, 2, message.TagStatusResponse),
		snap(3, 3, message.TagStatusRequest),
	}
	results := Match(snaps, DefaultPatterns())

	tb, ok := find(results, TempBasalAction)
	if !ok || !slices.Equal(tb.Incomplete, []int{1}) {
		t.Errorf("expected TB anchored before the start to be incomplete, got %+v", tb)
	}
	status, ok := find(results, "StatusCheck")
	if !ok || !slices.Equal(status.Incomplete, []int{3}) {
		t.Errorf("expected trailing 0e to be incomplete, got %+v", status)
	}
}

func TestMatch_NegativeResponseFlagged(t *testing.T) {
	snaps := []state.Snapshot{
		snap(7, 50, message.TagStatusRequest),
		snap(8, 40, message.TagStatusResponse),
	}
	results := Match(snaps, DefaultPatterns())

	if len(results) != 1 {
		t.Fatalf("expected one row, got %d", len(results))
	}
	if !slices.Equal(results[0].Negative, []int{7}) {
		t.Errorf("expected negative [7], got %v", results[0].Negative)
	}
	if results[0].ResponseTimes[0] != -10*time.Second {
		t.Errorf("expected -10s, got %v", results[0].ResponseTimes[0])
	}
}

func TestMatch_Empty(t *testing.T) {
	if got := Match(nil, DefaultPatterns()); len(got) != 0 {
		t.Errorf("expected no rows, got %v", got)
	}
}

// #endregion boundary-tests

// #region property-tests
func sessionStream(t *testing.T) []state.Snapshot {
	t.Helper()
	records := podtest.Log(0,
		podtest.At(0, podtest.Status(8, message.DeliveryBasal, 100)),
		podtest.At(10, podtest.Cancel(message.CancelTempBasal)),
		podtest.At(11, podtest.Status(8, message.DeliveryBasal, 101)),
		podtest.At(12, podtest.TempBasal(10, 1)),
		podtest.At(13, podtest.Status(8, message.DeliveryBasal|message.DeliveryTempBasal, 102)),
		podtest.At(20, podtest.StatusRequest()),
		podtest.At(21, podtest.Status(8, message.DeliveryBasal|message.DeliveryTempBasal, 103)),
		podtest.At(22, podtest.Bolus(20)),
		podtest.At(23, podtest.Status(8, message.DeliveryBasal|message.DeliveryTempBasal|message.DeliveryBolus, 104)),
		podtest.At(30, podtest.Raw(0x11)),
		podtest.At(31, podtest.Status(8, message.DeliveryBasal|message.DeliveryTempBasal, 124)),
		podtest.At(40, podtest.Cancel(message.CancelTempBasal)),
		podtest.At(41, podtest.NonceResync()),
		podtest.At(42, podtest.Cancel(message.CancelTempBasal)),
		podtest.At(43, podtest.Status(8, message.DeliveryBasal, 125)),
		podtest.At(50, podtest.StatusRequest()),
		podtest.At(51, podtest.Status(8, message.DeliveryBasal, 126)),
	)
	res := state.Track(records, 0, state.StageLimit)
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected decode failures %v", res.Failures)
	}
	return res.Snapshots
}

func TestMatch_GroupsFollowShape(t *testing.T) {
	snaps := sessionStream(t)
	tags := make(map[int]message.Tag, len(snaps))
	for _, s := range snaps {
		tags[s.Index] = s.Tag
	}
	patterns := DefaultPatterns()
	results := Match(snaps, patterns)

	shapes := make(map[string]Pattern, len(patterns))
	for _, p := range patterns {
		shapes[p.Name] = p
	}
	for _, r := range results {
		p := shapes[r.Name]
		for _, g := range r.Groups() {
			if len(g) != p.Size() {
				t.Fatalf("%s: group %v has wrong size", r.Name, g)
			}
			for i, idx := range g {
				if idx != g[0]+i {
					t.Errorf("%s: group %v is not contiguous", r.Name, g)
				}
				if tags[idx] != p.Shape[i] {
					t.Errorf("%s: index %d has tag %s, want %s", r.Name, idx, tags[idx], p.Shape[i])
				}
			}
		}
	}
}

func TestMatch_CompletedSetsDisjoint(t *testing.T) {
	results := Match(sessionStream(t), DefaultPatterns())
	seen := make(map[int]string)
	for _, r := range results {
		for _, idx := range r.Completed {
			if prev, ok := seen[idx]; ok {
				t.Errorf("index %d claimed by %s and %s", idx, prev, r.Name)
			}
			seen[idx] = r.Name
		}
	}
}

func TestMatch_SessionCounts(t *testing.T) {
	results := Match(sessionStream(t), DefaultPatterns())
	want := map[string]int{
		TempBasalAction: 1,
		"Bolus":         1,
		"StatusCheck":   1,
		"AcknwlAlerts":  1,
		"CancelTB":      1,
	}
	got := make(map[string]int)
	for _, r := range results {
		got[r.Name] = r.Count()
	}
	for name, n := range want {
		if got[name] != n {
			t.Errorf("%s: expected %d completed, got %d", name, n, got[name])
		}
	}
	cancel, _ := find(results, "CancelTB")
	if !slices.Equal(cancel.Incomplete, []int{11}) {
		t.Errorf("expected the resynced cancel to be incomplete, got %v", cancel.Incomplete)
	}
}

// #endregion property-tests

// #region pattern-tests
func TestNewPattern_Validation(t *testing.T) {
	tests := []struct {
		name   string
		pname  string
		anchor int
		shape  []message.Tag
	}{
		{"empty name", "", 0, []message.Tag{"0e", "1d"}},
		{"three tags", "X", 0, []message.Tag{"0e", "1d", "1d"}},
		{"one tag", "X", 0, []message.Tag{"0e"}},
		{"anchor past end", "X", 4, []message.Tag{"1f02", "1d", "1a16", "1d"}},
		{"negative anchor", "X", -1, []message.Tag{"0e", "1d"}},
		{"empty tag", "X", 0, []message.Tag{"0e", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPattern(tt.pname, tt.anchor, tt.shape...)
			if !errors.Is(err, ErrInvalidPattern) {
				t.Errorf("expected ErrInvalidPattern, got %v", err)
			}
		})
	}
}

func TestDefaultPatterns_Order(t *testing.T) {
	var names []string
	for _, p := range DefaultPatterns() {
		if err := p.Validate(); err != nil {
			t.Errorf("default pattern invalid: %v", err)
		}
		names = append(names, p.Name)
	}
	want := []string{
		"TB", "Bolus", "Basal", "StatusCheck", "AcknwlAlerts", "CnfgAlerts", "DeactivatePod",
		"DiagnosePod", "CancelDelivery", "CancelBasal", "CancelTB", "CancelBolus", "CancelAll",
	}
	if !slices.Equal(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
}

func TestResult_Groups(t *testing.T) {
	r := Result{Size: 2, Completed: []int{4, 5, 9, 10}}
	g := r.Groups()
	if len(g) != 2 || !slices.Equal(g[1], []int{9, 10}) {
		t.Errorf("unexpected groups %v", g)
	}
}

// #endregion pattern-tests
