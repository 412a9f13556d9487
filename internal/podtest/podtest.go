// Package podtest builds well-formed pod payloads and message logs for tests
// and fixtures.
package podtest

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// Epoch is the base time used by Log.
var Epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// #region payloads

// Status returns a 1d status response.
func Status(stage int, delivery message.DeliveryBits, pulses int) string {
	b := make([]byte, 10)
	b[0] = 0x1d
	b[1] = byte(delivery)<<4 | byte(stage&0x0f)
	b[2] = byte(pulses>>9) & 0x0f
	b[3] = byte(pulses >> 1)
	b[4] = byte(pulses&0x01) << 7
	return hex.EncodeToString(b)
}

// StatusRequest returns a 0e status request.
func StatusRequest() string { return "0e0100" }

// NonceResync returns a 06 bad-nonce error response.
func NonceResync() string { return "0603141234" }

// Cancel returns a 1f cancel command for the given bits.
func Cancel(bits message.CancelBits) string {
	return hex.EncodeToString([]byte{0x1f, 0x05, 0x01, 0x02, 0x03, 0x04, byte(bits)})
}

// TempBasal returns a 1a+16 temp basal command of pulses per half hour over
// halfHours half-hour segments.
func TempBasal(pulses, halfHours int) string {
	b := extended(0x01, halfHours, pulses)
	b = append(b, 0x16, 0x0e, 0x00, 0x00)
	b = binary.BigEndian.AppendUint16(b, uint16(pulses*10))
	b = binary.BigEndian.AppendUint32(b, 0x00030d40)
	b = binary.BigEndian.AppendUint16(b, uint16(pulses*10))
	b = binary.BigEndian.AppendUint32(b, 0x00030d40)
	return hex.EncodeToString(b)
}

// Bolus returns a 1a+17 immediate bolus of the given pulse count.
func Bolus(pulses int) string {
	b := extended(0x02, 1, pulses)
	b = append(b, 0x17, 0x0d, 0x00)
	b = binary.BigEndian.AppendUint16(b, uint16(pulses*10))
	b = binary.BigEndian.AppendUint32(b, 0x00030d40)
	b = binary.BigEndian.AppendUint16(b, 0)
	b = binary.BigEndian.AppendUint32(b, 0)
	return hex.EncodeToString(b)
}

// Basal returns a 1a+13 basal schedule command.
func Basal(segment, pulses int) string {
	b := extended(0x00, segment, pulses)
	b = append(b, 0x00, 0x10, 0x13, 0x0e, 0x40, 0x00)
	return hex.EncodeToString(b)
}

// Raw returns an unrecognized message with the given type byte.
func Raw(typ byte) string {
	return hex.EncodeToString([]byte{typ, 0x04, 0x00, 0x00, 0x00, 0x00})
}

// extended builds the 16-byte 1a block preceding the sub-command.
func extended(table byte, count, pulses int) []byte {
	b := []byte{0x1a, 0x0e, 0x01, 0x02, 0x03, 0x04, table, 0x00, 0x00, byte(count)}
	b = binary.BigEndian.AppendUint16(b, 0x3840)
	b = binary.BigEndian.AppendUint16(b, uint16(pulses))
	b = binary.BigEndian.AppendUint16(b, uint16(pulses))
	return b
}

// #endregion payloads

// #region log

// Entry is one line of a test log: seconds since Epoch and a hex payload.
type Entry struct {
	Second float64
	Raw    string
}

// At is shorthand for an Entry.
func At(second float64, raw string) Entry { return Entry{Second: second, Raw: raw} }

// Log numbers entries from first and fills in timestamps and deltas.
func Log(first int, entries ...Entry) []state.MessageRecord {
	records := make([]state.MessageRecord, len(entries))
	var prev time.Time
	for i, e := range entries {
		ts := Epoch.Add(time.Duration(e.Second * float64(time.Second)))
		var delta time.Duration
		if i > 0 {
			delta = ts.Sub(prev)
		}
		records[i] = state.MessageRecord{
			Index: first + i,
			Time:  ts,
			Delta: delta,
			Raw:   e.Raw,
		}
		prev = ts
	}
	return records
}

// #endregion log
