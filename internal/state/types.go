package state

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
)

// Stage bounds of the pod lifecycle.
const (
	StageOperational = 8  // first stage after pairing and priming
	StageLimit       = 16 // one past the last stage (15 = deactivated)
)

// #region message-record
// MessageRecord is one entry of a captured message log. Raw is the hex
// payload; an empty Raw means nothing was captured for the slot.
type MessageRecord struct {
	Index int
	Time  time.Time
	Delta time.Duration
	Raw   string
}

// #endregion message-record

// #region snapshot
// Snapshot is the reconstructed pod state right after one message. Fields
// the message did not carry keep their previous value.
type Snapshot struct {
	Index int
	Time  time.Time
	Delta time.Duration
	Tag   message.Tag

	Stage           int
	TotalInsulin    float64
	LastTempBasal   float64 // U/h of the last temp basal command
	LastBolus       float64 // U of the last bolus command
	BolusActive     bool
	TempBasalActive bool
	ScheduledBasal  bool

	Raw string
}

// #endregion snapshot

// #region track-result
// DecodeError is a recognized message whose payload could not be decoded.
type DecodeError struct {
	Index int
	Err   error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e DecodeError) Unwrap() error { return e.Err }

// TrackResult is the output of one Track pass over a stage band.
type TrackResult struct {
	Snapshots []Snapshot
	Skipped   []int         // records with no payload
	Failures  []DecodeError // recognized records that failed to decode
	Cutoff    int           // index of the record that reached maxStage, -1 if none
	Final     Snapshot      // running state when the pass ended
}

// #endregion track-result
