// Package action finds multi-message action groups (a command plus its
// confirmations) in a reconstructed snapshot stream.
package action

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
)

// ErrInvalidPattern is returned for a pattern that cannot be matched.
var ErrInvalidPattern = errors.New("invalid action pattern")

// #region pattern
// Pattern is the expected message shape of one action. Anchor is the
// position in Shape whose tag is searched for first.
type Pattern struct {
	Name   string
	Anchor int
	Shape  []message.Tag
}

// NewPattern validates and returns a Pattern. Shapes hold exactly 2 or 4
// tags and the anchor must point into the shape.
func NewPattern(name string, anchor int, shape ...message.Tag) (Pattern, error) {
	p := Pattern{Name: name, Anchor: anchor, Shape: shape}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// Validate reports why p cannot be used for matching.
func (p Pattern) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPattern)
	}
	if n := len(p.Shape); n != 2 && n != 4 {
		return fmt.Errorf("%w: %s has %d tags, want 2 or 4", ErrInvalidPattern, p.Name, n)
	}
	if p.Anchor < 0 || p.Anchor >= len(p.Shape) {
		return fmt.Errorf("%w: %s anchor %d outside shape", ErrInvalidPattern, p.Name, p.Anchor)
	}
	for i, tag := range p.Shape {
		if tag == "" {
			return fmt.Errorf("%w: %s has empty tag at %d", ErrInvalidPattern, p.Name, i)
		}
	}
	return nil
}

// Size is the number of messages in one occurrence.
func (p Pattern) Size() int { return len(p.Shape) }

// AnchorTag is the tag that starts a candidate search.
func (p Pattern) AnchorTag() message.Tag { return p.Shape[p.Anchor] }

// #endregion pattern

// #region defaults
// TempBasalAction is the name of the temp basal action in the default table.
const TempBasalAction = "TB"

// DefaultPatterns returns the standard action table in priority order.
// Multi-step commands come first so their cancel and status messages are
// claimed before the two-message patterns look at them.
func DefaultPatterns() []Pattern {
	raw := func(b byte) message.Tag { return message.RawTag(b) }
	return []Pattern{
		mustPattern(TempBasalAction, 2, message.TagCancelTempBasal, message.TagStatusResponse, message.TagTempBasal, message.TagStatusResponse),
		mustPattern("Bolus", 2, message.TagStatusRequest, message.TagStatusResponse, message.TagBolus, message.TagStatusResponse),
		mustPattern("Basal", 2, message.TagCancelAll, message.TagStatusResponse, message.TagBasalSchedule, message.TagStatusResponse),
		mustPattern("StatusCheck", 0, message.TagStatusRequest, message.TagStatusResponse),
		mustPattern("AcknwlAlerts", 0, raw(0x11), message.TagStatusResponse),
		mustPattern("CnfgAlerts", 0, raw(0x19), message.TagStatusResponse),
		mustPattern("DeactivatePod", 0, raw(0x1c), message.TagStatusResponse),
		mustPattern("DiagnosePod", 0, raw(0x1e), message.TagStatusResponse),
		mustPattern("CancelDelivery", 0, message.TagCancel, message.TagStatusResponse),
		mustPattern("CancelBasal", 0, message.TagCancelBasal, message.TagStatusResponse),
		mustPattern("CancelTB", 0, message.TagCancelTempBasal, message.TagStatusResponse),
		mustPattern("CancelBolus", 0, message.TagCancelBolus, message.TagStatusResponse),
		mustPattern("CancelAll", 0, message.TagCancelAll, message.TagStatusResponse),
	}
}

func mustPattern(name string, anchor int, shape ...message.Tag) Pattern {
	p, err := NewPattern(name, anchor, shape...)
	if err != nil {
		panic(err)
	}
	return p
}

// #endregion defaults
