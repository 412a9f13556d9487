package pairing

import (
	"log/slog"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// #region types
// Success is a request answered by its expected response on the very next
// snapshot. Positions index the snapshot slice that was paired; Index and
// ResponseIndex are sequence indices.
type Success struct {
	Index            int
	Position         int
	ResponseIndex    int
	ResponsePosition int
	Time             time.Time
	Request          message.Tag
	Response         message.Tag
	ResponseTime     time.Duration
	State            state.Snapshot // snapshot at the response
}

// OtherKind classifies an unpaired snapshot.
type OtherKind string

const (
	ReceiveWithoutSend  OtherKind = "receive_without_send"
	SendWithoutResponse OtherKind = "send_without_response"
	UnknownRequest      OtherKind = "unknown_request"
)

// Other is a snapshot that did not start a successful pair.
type Other struct {
	Index    int
	Position int
	Time     time.Time
	Tag      message.Tag
	Kind     OtherKind
}

// Result holds both pairing tables. Negative lists request indices whose
// response time was negative.
type Result struct {
	Success  []Success
	Other    []Other
	Negative []int
}

// #endregion types

// #region pair
// Pair walks snapshots once with a consumed-through cursor. A matched
// request consumes its response. A request whose next snapshot is not the
// expected response is recorded as Other and the cursor stays put, so that
// next snapshot is examined again as a start of its own. The last snapshot
// never starts a pair.
func Pair(snapshots []state.Snapshot, c *Catalog) Result {
	var res Result
	next := -1
	for i, s := range snapshots {
		if i <= next || i >= len(snapshots)-1 {
			continue
		}
		other := Other{Index: s.Index, Position: i, Time: s.Time, Tag: s.Tag}

		if c.IsResponse(s.Tag) {
			other.Kind = ReceiveWithoutSend
			res.Other = append(res.Other, other)
			continue
		}
		req, ok := c.Expect(s.Tag)
		if !ok {
			other.Kind = UnknownRequest
			res.Other = append(res.Other, other)
			continue
		}

		next = i + 1
		resp := snapshots[next]
		if resp.Tag != req.Response {
			other.Kind = SendWithoutResponse
			res.Other = append(res.Other, other)
			next = i
			continue
		}

		if resp.Delta < 0 {
			slog.Warn("negative pair response time", "request", s.Tag, "index", s.Index, "response", resp.Delta)
			res.Negative = append(res.Negative, s.Index)
		}
		res.Success = append(res.Success, Success{
			Index:            s.Index,
			Position:         i,
			ResponseIndex:    resp.Index,
			ResponsePosition: next,
			Time:             s.Time,
			Request:          s.Tag,
			Response:         resp.Tag,
			ResponseTime:     resp.Delta,
			State:            resp,
		})
	}
	return res
}

// #endregion pair
