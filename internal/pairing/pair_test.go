package pairing

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/podtest"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// stream builds snapshots from consecutive indices starting at first, one
// second apart.
func stream(first int, tags ...message.Tag) []state.Snapshot {
	out := make([]state.Snapshot, len(tags))
	for i, tag := range tags {
		out[i] = state.Snapshot{
			Index: first + i,
			Time:  podtest.Epoch.Add(time.Duration(i) * time.Second),
			Delta: time.Second,
			Tag:   tag,
		}
	}
	out[0].Delta = 0
	return out
}

func otherIndices(r Result) []int {
	var out []int
	for _, o := range r.Other {
		out = append(out, o.Index)
	}
	return out
}

func successIndices(r Result) []int {
	var out []int
	for _, s := range r.Success {
		out = append(out, s.Index)
	}
	return out
}

// #region pair-tests
func TestPair_StatusCheck(t *testing.T) {
	snaps := stream(20, message.TagStatusRequest, message.TagStatusResponse)
	snaps[1].Delta = 2500 * time.Millisecond
	snaps[1].TotalInsulin = 12.35

	res := Pair(snaps, DefaultCatalog())
	if len(res.Success) != 1 {
		t.Fatalf("expected 1 success, got %d", len(res.Success))
	}
	s := res.Success[0]
	if s.Index != 20 || s.ResponseIndex != 21 || s.Position != 0 || s.ResponsePosition != 1 {
		t.Errorf("unexpected indices %+v", s)
	}
	if s.ResponseTime != 2500*time.Millisecond {
		t.Errorf("expected response time 2.5s, got %v", s.ResponseTime)
	}
	if s.Request != message.TagStatusRequest || s.Response != message.TagStatusResponse {
		t.Errorf("unexpected tags %s -> %s", s.Request, s.Response)
	}
	if s.State.TotalInsulin != 12.35 {
		t.Errorf("expected state at the response, got %+v", s.State)
	}
	if len(res.Other) != 0 {
		t.Errorf("expected no other records, got %v", res.Other)
	}
}

func TestPair_MismatchReexaminesSuccessor(t *testing.T) {
	snaps := stream(0,
		message.TagStatusRequest,
		message.TagTempBasal,
		message.TagStatusResponse,
		message.TagStatusRequest,
	)
	res := Pair(snaps, DefaultCatalog())

	if !slices.Equal(otherIndices(res), []int{0}) || res.Other[0].Kind != SendWithoutResponse {
		t.Errorf("expected send without response at 0, got %+v", res.Other)
	}
	if !slices.Equal(successIndices(res), []int{1}) || res.Success[0].Request != message.TagTempBasal {
		t.Errorf("expected TB success at 1, got %+v", res.Success)
	}
}

func TestPair_ReceiveWithoutSend(t *testing.T) {
	snaps := stream(0,
		message.TagStatusResponse,
		message.TagErrorResponse,
		message.TagStatusRequest,
		message.TagStatusResponse,
	)
	res := Pair(snaps, DefaultCatalog())

	if !slices.Equal(otherIndices(res), []int{0, 1}) {
		t.Fatalf("expected other [0 1], got %v", otherIndices(res))
	}
	for _, o := range res.Other {
		if o.Kind != ReceiveWithoutSend {
			t.Errorf("index %d: expected receive without send, got %s", o.Index, o.Kind)
		}
	}
	if !slices.Equal(successIndices(res), []int{2}) {
		t.Errorf("expected success [2], got %v", successIndices(res))
	}
}

func TestPair_LastSnapshotNeverStarts(t *testing.T) {
	snaps := stream(0, message.TagStatusRequest, message.TagStatusResponse, message.TagStatusResponse)
	res := Pair(snaps, DefaultCatalog())

	if len(res.Success) != 1 {
		t.Errorf("expected 1 success, got %d", len(res.Success))
	}
	if len(res.Other) != 0 {
		t.Errorf("expected trailing 1d to be ignored, got %+v", res.Other)
	}
}

func TestPair_UnknownRequest(t *testing.T) {
	snaps := stream(0,
		message.RawTag(0x42),
		message.TagStatusResponse,
		message.TagStatusRequest,
		message.TagStatusResponse,
	)
	res := Pair(snaps, DefaultCatalog())

	if len(res.Other) != 2 {
		t.Fatalf("expected 2 other records, got %+v", res.Other)
	}
	if res.Other[0].Kind != UnknownRequest || res.Other[0].Tag != "0x42" {
		t.Errorf("expected unknown request 0x42, got %+v", res.Other[0])
	}
	if res.Other[1].Kind != ReceiveWithoutSend {
		t.Errorf("expected the 1d after an unknown tag to be unpaired, got %+v", res.Other[1])
	}
	if !slices.Equal(successIndices(res), []int{2}) {
		t.Errorf("expected success [2], got %v", successIndices(res))
	}
}

func TestPair_NegativeResponseFlagged(t *testing.T) {
	snaps := stream(4, message.TagBolus, message.TagStatusResponse)
	snaps[1].Delta = -time.Second

	res := Pair(snaps, DefaultCatalog())
	if !slices.Equal(res.Negative, []int{4}) {
		t.Errorf("expected negative [4], got %v", res.Negative)
	}
}

func TestPair_ShortStreams(t *testing.T) {
	if res := Pair(nil, DefaultCatalog()); len(res.Success)+len(res.Other) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if res := Pair(stream(0, message.TagStatusRequest), DefaultCatalog()); len(res.Success)+len(res.Other) != 0 {
		t.Errorf("expected single snapshot to be ignored, got %+v", res)
	}
}

// #endregion pair-tests

// #region catalog-tests
func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	req, ok := c.Expect(message.TagCancelTempBasal)
	if !ok || req.Response != message.TagStatusResponse || req.Label != "CancelTB" {
		t.Errorf("unexpected 1f02 entry %+v", req)
	}
	if req, ok := c.Expect("0x03"); !ok || req.Response != "0x01" {
		t.Errorf("unexpected 0x03 entry %+v", req)
	}
	if !c.IsResponse(message.TagStatusResponse) || c.IsResponse(message.TagStatusRequest) {
		t.Error("1d is response-only, 0e is not")
	}
	if got := c.Label(message.TagErrorResponse); got != "NonceResync" {
		t.Errorf("expected NonceResync, got %s", got)
	}
	if got := c.Label("0x42"); got != "0x42" {
		t.Errorf("expected fallback label, got %s", got)
	}
	if len(c.Requests()) != 16 || len(c.Responses()) != 4 {
		t.Errorf("expected 16 requests and 4 responses, got %d and %d", len(c.Requests()), len(c.Responses()))
	}
}

func TestNewCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		requests  []Request
		responses []Response
	}{
		{"duplicate request", []Request{{"0e", "1d", "a"}, {"0e", "1d", "b"}}, nil},
		{"missing response", []Request{{"0e", "", "a"}}, nil},
		{"duplicate response", nil, []Response{{"1d", "a"}, {"1d", "b"}}},
		{"request and response", []Request{{"0e", "1d", "a"}}, []Response{{"0e", "b"}}},
		{"empty response tag", nil, []Response{{"", "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.requests, tt.responses); !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

// #endregion catalog-tests

// #region summary-tests
func TestSummarize(t *testing.T) {
	snaps := stream(0,
		message.TagStatusRequest, message.TagStatusResponse, // 1s
		message.TagStatusRequest, message.TagStatusResponse, // 3s
		message.TagTempBasal, message.TagErrorResponse,
		message.TagTempBasal, message.TagStatusResponse,
		message.TagErrorResponse,
		message.RawTag(0x42), message.RawTag(0x42),
		message.TagStatusResponse,
	)
	snaps[3].Delta = 3 * time.Second
	c := DefaultCatalog()
	sum := Summarize(Pair(snaps, c), c)

	if len(sum.Requests) != 2 {
		t.Fatalf("expected 0e and 1a16 rows, got %+v", sum.Requests)
	}
	st := sum.Requests[0]
	if st.Label != "StatusRequest" || st.Count != 2 || st.Mean != 2*time.Second || st.Min != time.Second || st.Max != 3*time.Second {
		t.Errorf("unexpected status stats %+v", st)
	}
	if sum.Requests[1].Label != "TB" || sum.Requests[1].Count != 1 {
		t.Errorf("unexpected TB stats %+v", sum.Requests[1])
	}
	if len(sum.SendWithoutResponse) != 1 || sum.SendWithoutResponse[0].Label != "TB" {
		t.Errorf("expected one TB without response, got %+v", sum.SendWithoutResponse)
	}
	if len(sum.OffNominalReceive) != 1 || sum.OffNominalReceive[0].Count != 2 {
		t.Errorf("expected two NonceResync receives, got %+v", sum.OffNominalReceive)
	}
	if len(sum.Unknown) != 1 || sum.Unknown[0].Count != 2 {
		t.Errorf("expected 0x42 twice, got %+v", sum.Unknown)
	}
}

// #endregion summary-tests
