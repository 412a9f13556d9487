package message

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

// #region errors
var (
	// ErrMalformedPayload marks a recognized message type whose payload is
	// shorter than its fixed layout.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrEmptyPayload is returned when there are no bytes to dispatch on.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrInvalidHex is returned by DecodeHex for non-hex input.
	ErrInvalidHex = errors.New("invalid hex payload")
)

// PayloadError describes a payload too short for its recognized type.
type PayloadError struct {
	Type Tag
	Need int
	Got  int
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s payload needs %d bytes, got %d", e.Type, e.Need, e.Got)
}

func (e *PayloadError) Unwrap() error { return ErrMalformedPayload }

// #endregion errors

// #region constants
const (
	// PulsesPerUnit is the pod's insulin resolution (0.05 U per pulse).
	PulsesPerUnit = 20

	extendedSubtypeOffset = 16
	podInfoDetailed       = 0x02
)

// Minimum payload lengths per recognized layout.
const (
	minPodInfo         = 3
	minPodInfoDetailed = 17
	minErrorResponse   = 5
	minStatusRequest   = 3
	minExtended        = extendedSubtypeOffset + 1
	minTempBasal       = 19
	minBolus           = 25
	minStatusResponse  = 10
	minCancel          = 7
)

// Units converts a pulse count to insulin units rounded to 0.01 U.
func Units(pulses int) float64 {
	return math.Round(float64(pulses)/PulsesPerUnit*100) / 100
}

// #endregion constants

// #region decode
// DecodeHex decodes a hex-encoded payload. Whitespace is ignored.
func DecodeHex(s string) (Message, error) {
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return Decode(b)
}

// Decode dispatches on the first byte of payload. Unrecognized type bytes
// always decode to Raw; recognized ones fail with a *PayloadError when the
// payload is shorter than their layout.
func Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	switch payload[0] {
	case 0x02:
		return decodePodInfo(payload)
	case 0x06:
		return decodeErrorResponse(payload)
	case 0x0e:
		return decodeStatusRequest(payload)
	case 0x1a:
		return decodeExtended(payload)
	case 0x1d:
		return decodeStatusResponse(payload)
	case 0x1f:
		return decodeCancel(payload)
	}
	raw := make([]byte, len(payload))
	copy(raw, payload)
	return Raw{Type: payload[0], Payload: raw}, nil
}

func need(b []byte, tag Tag, n int) error {
	if len(b) < n {
		return &PayloadError{Type: tag, Need: n, Got: len(b)}
	}
	return nil
}

// #endregion decode

// #region status
// 1d SS 0PPPPPPP PPPPPPPP PNNNNBBB BBBBBBBB FAAAAAAA AMMMMMMM MMMMMMRR RRRRRRRR
func decodeStatusResponse(b []byte) (Message, error) {
	if err := need(b, TagStatusResponse, minStatusResponse); err != nil {
		return nil, err
	}
	pulses := int(b[2]&0x0f)<<9 | int(b[3])<<1 | int(b[4]>>7)
	return StatusResponse{
		Stage:             int(b[1] & 0x0f),
		Delivery:          DeliveryBits(b[1] >> 4),
		TotalPulses:       pulses,
		TotalInsulin:      Units(pulses),
		MessageCounter:    int(b[4]>>3) & 0x0f,
		BolusNotDelivered: Units(int(b[4]&0x03)<<8 | int(b[5])),
		FaultEvent:        b[6]&0x80 != 0,
		Alerts:            (b[6]&0x7f)<<1 | b[7]>>7,
		ActiveMinutes:     int(b[7]&0x7f)<<6 | int(b[8]>>2),
		ReservoirPulses:   int(b[8]&0x03)<<8 | int(b[9]),
	}, nil
}

// 0e 01 TT
func decodeStatusRequest(b []byte) (Message, error) {
	if err := need(b, TagStatusRequest, minStatusRequest); err != nil {
		return nil, err
	}
	return StatusRequest{RequestType: b[2]}, nil
}

// 06 03 EE WWWW
func decodeErrorResponse(b []byte) (Message, error) {
	if err := need(b, TagErrorResponse, minErrorResponse); err != nil {
		return nil, err
	}
	return ErrorResponse{
		Code:      b[2],
		NonceWord: binary.BigEndian.Uint16(b[3:5]),
	}, nil
}

// 02 LL TT ... ; detailed status (TT=02):
// 02 LL 02 PP DD BBBB NN TTTT FF MMMM RRRR AAAA ...
func decodePodInfo(b []byte) (Message, error) {
	if err := need(b, TagPodInfo, minPodInfo); err != nil {
		return nil, err
	}
	info := PodInfo{InfoType: b[2]}
	if info.InfoType != podInfoDetailed {
		return info, nil
	}
	if err := need(b, TagPodInfo, minPodInfoDetailed); err != nil {
		return nil, err
	}
	info.Stage = int(b[3] & 0x0f)
	info.Delivery = DeliveryBits(b[4] & 0x0f)
	info.BolusNotDelivered = Units(int(binary.BigEndian.Uint16(b[5:7]) & 0x03ff))
	info.MessageCounter = int(b[7] & 0x0f)
	info.TotalInsulin = Units(int(binary.BigEndian.Uint16(b[8:10])))
	info.FaultCode = b[10]
	info.FaultMinutes = int(binary.BigEndian.Uint16(b[11:13]))
	info.ReservoirPulses = int(binary.BigEndian.Uint16(b[13:15]) & 0x03ff)
	info.ActiveMinutes = int(binary.BigEndian.Uint16(b[15:17]))
	return info, nil
}

// 1f 05 NNNNNNNN AX
func decodeCancel(b []byte) (Message, error) {
	if err := need(b, TagCancel, minCancel); err != nil {
		return nil, err
	}
	return CancelDelivery{
		Nonce:  binary.BigEndian.Uint32(b[2:6]),
		Beep:   b[6] >> 4,
		Cancel: CancelBits(b[6] & 0x07),
	}, nil
}

// #endregion status

// #region extended
// decodeExtended handles the 1a insulin-schedule command. The sub-command
// byte that follows the 1a block picks the layout; unknown sub-commands are
// read as a basal schedule.
func decodeExtended(b []byte) (Message, error) {
	if err := need(b, TagBasalSchedule, minExtended); err != nil {
		return nil, err
	}
	switch b[extendedSubtypeOffset] {
	case 0x16:
		return decodeTempBasal(b)
	case 0x17:
		return decodeBolus(b)
	}
	return decodeBasalSchedule(b)
}

// 1a LL NNNNNNNN TT CCCC HH SSSS PPPP napp 16 LL RR ...
func decodeTempBasal(b []byte) (Message, error) {
	if err := need(b, TagTempBasal, minTempBasal); err != nil {
		return nil, err
	}
	pulses := int(binary.BigEndian.Uint16(b[12:14]))
	return TempBasal{
		Table:        b[6],
		HalfHours:    int(b[9]),
		Pulses:       pulses,
		RateUPerHour: Units(pulses * 2),
		Reminders:    b[18],
	}, nil
}

// 1a LL NNNNNNNN TT CCCC HH SSSS PPPP napp 17 LL RR NNNN XXXXXXXX ...
func decodeBolus(b []byte) (Message, error) {
	if err := need(b, TagBolus, minBolus); err != nil {
		return nil, err
	}
	tenths := int(binary.BigEndian.Uint16(b[19:21]))
	return Bolus{
		Table:          b[6],
		TenthPulses:    tenths,
		Units:          math.Round(float64(tenths)/10/PulsesPerUnit*100) / 100,
		IntervalMicros: int64(binary.BigEndian.Uint32(b[21:25])) * 10,
		Reminders:      b[18],
	}, nil
}

// 1a LL NNNNNNNN TT CCCC SS ssss pppp napp...
func decodeBasalSchedule(b []byte) (Message, error) {
	return BasalSchedule{
		Table:            b[6],
		Segment:          int(b[9]),
		SecondsRemaining: int(binary.BigEndian.Uint16(b[10:12])) / 8,
		PulsesRemaining:  int(binary.BigEndian.Uint16(b[12:14])),
	}, nil
}

// #endregion extended
