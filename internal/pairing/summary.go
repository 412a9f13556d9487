package pairing

import (
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
)

// RequestStats aggregates the successful pairs of one request tag.
type RequestStats struct {
	Tag   message.Tag
	Label string
	Count int
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
}

// TagCount counts Other records of one tag.
type TagCount struct {
	Tag   message.Tag
	Label string
	Count int
}

// Summary is the digest of a pairing Result, in catalog order.
type Summary struct {
	Requests            []RequestStats
	SendWithoutResponse []TagCount
	OffNominalReceive   []TagCount
	Unknown             []TagCount // in order of first appearance
}

// Summarize aggregates r. Tags with no records are left out.
func Summarize(r Result, c *Catalog) Summary {
	var sum Summary

	byReq := make(map[message.Tag][]time.Duration)
	for _, s := range r.Success {
		byReq[s.Request] = append(byReq[s.Request], s.ResponseTime)
	}
	for _, req := range c.Requests() {
		times := byReq[req.Tag]
		if len(times) == 0 {
			continue
		}
		st := RequestStats{Tag: req.Tag, Label: req.Label, Count: len(times), Min: times[0], Max: times[0]}
		var total time.Duration
		for _, d := range times {
			total += d
			st.Min = min(st.Min, d)
			st.Max = max(st.Max, d)
		}
		st.Mean = total / time.Duration(len(times))
		sum.Requests = append(sum.Requests, st)
	}

	counts := make(map[OtherKind]map[message.Tag]int)
	var unknownOrder []message.Tag
	for _, o := range r.Other {
		if counts[o.Kind] == nil {
			counts[o.Kind] = make(map[message.Tag]int)
		}
		if o.Kind == UnknownRequest && counts[o.Kind][o.Tag] == 0 {
			unknownOrder = append(unknownOrder, o.Tag)
		}
		counts[o.Kind][o.Tag]++
	}
	for _, req := range c.Requests() {
		if n := counts[SendWithoutResponse][req.Tag]; n > 0 {
			sum.SendWithoutResponse = append(sum.SendWithoutResponse, TagCount{req.Tag, req.Label, n})
		}
	}
	for _, resp := range c.Responses() {
		if n := counts[ReceiveWithoutSend][resp.Tag]; n > 0 {
			sum.OffNominalReceive = append(sum.OffNominalReceive, TagCount{resp.Tag, resp.Label, n})
		}
	}
	for _, tag := range unknownOrder {
		sum.Unknown = append(sum.Unknown, TagCount{tag, string(tag), counts[UnknownRequest][tag]})
	}
	return sum
}
