// Package pairing audits a snapshot stream as plain request/response pairs.
package pairing

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
)

// ErrInvalidCatalog is returned by NewCatalog for inconsistent entries.
var ErrInvalidCatalog = errors.New("invalid message catalog")

// #region catalog
// Request is a message sent to the pod and the response it should get.
type Request struct {
	Tag      message.Tag
	Response message.Tag
	Label    string
}

// Response is a tag the pod only ever sends.
type Response struct {
	Tag   message.Tag
	Label string
}

// Catalog is an ordered, read-only lookup of requests and response-only
// tags.
type Catalog struct {
	requests  []Request
	responses []Response
	byRequest map[message.Tag]Request
	response  map[message.Tag]string
}

// NewCatalog builds a Catalog. A tag may appear only once across both lists.
func NewCatalog(requests []Request, responses []Response) (*Catalog, error) {
	c := &Catalog{
		requests:  append([]Request(nil), requests...),
		responses: append([]Response(nil), responses...),
		byRequest: make(map[message.Tag]Request, len(requests)),
		response:  make(map[message.Tag]string, len(responses)),
	}
	for _, r := range requests {
		if r.Tag == "" || r.Response == "" {
			return nil, fmt.Errorf("%w: request %q needs a tag and a response", ErrInvalidCatalog, r.Label)
		}
		if _, dup := c.byRequest[r.Tag]; dup {
			return nil, fmt.Errorf("%w: duplicate request %s", ErrInvalidCatalog, r.Tag)
		}
		c.byRequest[r.Tag] = r
	}
	for _, r := range responses {
		if r.Tag == "" {
			return nil, fmt.Errorf("%w: response %q needs a tag", ErrInvalidCatalog, r.Label)
		}
		if _, dup := c.response[r.Tag]; dup {
			return nil, fmt.Errorf("%w: duplicate response %s", ErrInvalidCatalog, r.Tag)
		}
		if _, clash := c.byRequest[r.Tag]; clash {
			return nil, fmt.Errorf("%w: %s is both a request and a response", ErrInvalidCatalog, r.Tag)
		}
		c.response[r.Tag] = r.Label
	}
	return c, nil
}

// Expect returns the request entry for tag.
func (c *Catalog) Expect(tag message.Tag) (Request, bool) {
	r, ok := c.byRequest[tag]
	return r, ok
}

// IsResponse reports whether tag is response-only.
func (c *Catalog) IsResponse(tag message.Tag) bool {
	_, ok := c.response[tag]
	return ok
}

// Label returns the human name of tag, or the tag itself.
func (c *Catalog) Label(tag message.Tag) string {
	if r, ok := c.byRequest[tag]; ok {
		return r.Label
	}
	if l, ok := c.response[tag]; ok {
		return l
	}
	return string(tag)
}

// Requests returns the request entries in declaration order.
func (c *Catalog) Requests() []Request { return append([]Request(nil), c.requests...) }

// Responses returns the response-only entries in declaration order.
func (c *Catalog) Responses() []Response { return append([]Response(nil), c.responses...) }

// #endregion catalog

// #region default-catalog
// DefaultCatalog returns the Eros request and response vocabulary.
func DefaultCatalog() *Catalog {
	raw := message.RawTag
	c, err := NewCatalog(
		[]Request{
			{raw(0x03), raw(0x01), "SetupPod"},
			{raw(0x07), raw(0x01), "AssignID"},
			{raw(0x08), message.TagStatusResponse, "CnfgDelivFlags"},
			{message.TagStatusRequest, message.TagStatusResponse, "StatusRequest"},
			{raw(0x11), message.TagStatusResponse, "AcknwlAlerts"},
			{raw(0x19), message.TagStatusResponse, "CnfgAlerts"},
			{raw(0x1c), message.TagStatusResponse, "DeactivatePod"},
			{raw(0x1e), message.TagStatusResponse, "DiagnosePod"},
			{message.TagBasalSchedule, message.TagStatusResponse, "Basal"},
			{message.TagTempBasal, message.TagStatusResponse, "TB"},
			{message.TagBolus, message.TagStatusResponse, "Bolus"},
			{message.TagCancel, message.TagStatusResponse, "CancelDelivery"},
			{message.TagCancelBasal, message.TagStatusResponse, "CancelBasal"},
			{message.TagCancelTempBasal, message.TagStatusResponse, "CancelTB"},
			{message.TagCancelBolus, message.TagStatusResponse, "CancelBolus"},
			{message.TagCancelAll, message.TagStatusResponse, "CancelAll"},
		},
		[]Response{
			{raw(0x01), "VersionResponse"},
			{message.TagStatusResponse, "StatusResponse"},
			{message.TagErrorResponse, "NonceResync"},
			{message.TagPodInfo, "Fault"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// #endregion default-catalog
