package message

import "fmt"

// #region tag
// Tag identifies a decoded message type. Recognized types use the short hex
// form of their type byte (plus the sub-command byte for 1a), anything else
// is rendered by RawTag.
type Tag string

const (
	TagPodInfo         Tag = "02"
	TagErrorResponse   Tag = "06"
	TagStatusRequest   Tag = "0e"
	TagBasalSchedule   Tag = "1a13"
	TagTempBasal       Tag = "1a16"
	TagBolus           Tag = "1a17"
	TagStatusResponse  Tag = "1d"
	TagCancel          Tag = "1f"
	TagCancelBasal     Tag = "1f01"
	TagCancelTempBasal Tag = "1f02"
	TagCancelBolus     Tag = "1f04"
	TagCancelAll       Tag = "1f07"
)

// RawTag renders an unrecognized type byte as a fixed-width tag, e.g. "0x03".
func RawTag(b byte) Tag {
	return Tag(fmt.Sprintf("0x%02x", b))
}

// #endregion tag

// #region message
// Message is the sealed result of Decode. The concrete types below are the
// only implementations.
type Message interface {
	Tag() Tag
	isMessage()
}

// DeliveryBits are the delivery-state flags reported by the pod.
type DeliveryBits uint8

const (
	DeliveryBasal         DeliveryBits = 0x1
	DeliveryTempBasal     DeliveryBits = 0x2
	DeliveryBolus         DeliveryBits = 0x4
	DeliveryExtendedBolus DeliveryBits = 0x8
)

func (d DeliveryBits) Basal() bool         { return d&DeliveryBasal != 0 }
func (d DeliveryBits) TempBasal() bool     { return d&DeliveryTempBasal != 0 }
func (d DeliveryBits) Bolus() bool         { return d&DeliveryBolus != 0 }
func (d DeliveryBits) ExtendedBolus() bool { return d&DeliveryExtendedBolus != 0 }

// CancelBits select what a cancel command stops.
type CancelBits uint8

const (
	CancelBasal     CancelBits = 0x1
	CancelTempBasal CancelBits = 0x2
	CancelBolus     CancelBits = 0x4
	CancelAll                  = CancelBasal | CancelTempBasal | CancelBolus
)

// StatusResponse (1d) is the pod's regular status reply.
type StatusResponse struct {
	Stage             int
	Delivery          DeliveryBits
	TotalPulses       int
	TotalInsulin      float64
	MessageCounter    int
	BolusNotDelivered float64
	FaultEvent        bool
	Alerts            uint8
	ActiveMinutes     int
	ReservoirPulses   int
}

// StatusRequest (0e) asks the pod for a status or info response.
type StatusRequest struct {
	RequestType uint8
}

// ErrorResponse (06) is returned for rejected commands, usually a bad nonce.
type ErrorResponse struct {
	Code      uint8
	NonceWord uint16
}

// BadNonce reports whether the pod asked for a nonce resync.
func (e ErrorResponse) BadNonce() bool { return e.Code == 0x14 }

// PodInfo (02) is an info response. Only the detailed-status layout is
// broken out; other info types keep just InfoType.
type PodInfo struct {
	InfoType          uint8
	Stage             int
	Delivery          DeliveryBits
	BolusNotDelivered float64
	MessageCounter    int
	TotalInsulin      float64
	FaultCode         uint8
	FaultMinutes      int
	ReservoirPulses   int
	ActiveMinutes     int
}

// Detailed reports whether the detailed-status fields were decoded.
func (p PodInfo) Detailed() bool { return p.InfoType == podInfoDetailed }

// TempBasal (1a+16) sets a temporary basal rate.
type TempBasal struct {
	Table        uint8
	HalfHours    int
	Pulses       int
	RateUPerHour float64
	Reminders    uint8
}

// Hours is the programmed duration in hours.
func (t TempBasal) Hours() float64 { return float64(t.HalfHours) / 2 }

// Bolus (1a+17) delivers an immediate bolus.
type Bolus struct {
	Table          uint8
	TenthPulses    int
	Units          float64
	IntervalMicros int64
	Reminders      uint8
}

// BasalSchedule (1a+13 and any other sub-command) programs the basal
// schedule.
type BasalSchedule struct {
	Table            uint8
	Segment          int
	SecondsRemaining int
	PulsesRemaining  int
}

// CancelDelivery (1f) stops some combination of basal, temp basal and bolus.
type CancelDelivery struct {
	Nonce  uint32
	Beep   uint8
	Cancel CancelBits
}

func (c CancelDelivery) Suspend() bool      { return c.Cancel&CancelBasal != 0 }
func (c CancelDelivery) CancelsTB() bool    { return c.Cancel&CancelTempBasal != 0 }
func (c CancelDelivery) CancelsBolus() bool { return c.Cancel&CancelBolus != 0 }

// Raw is any message whose type byte has no decoder.
type Raw struct {
	Type    byte
	Payload []byte
}

func (StatusResponse) Tag() Tag { return TagStatusResponse }
func (StatusRequest) Tag() Tag  { return TagStatusRequest }
func (ErrorResponse) Tag() Tag  { return TagErrorResponse }
func (PodInfo) Tag() Tag        { return TagPodInfo }
func (TempBasal) Tag() Tag      { return TagTempBasal }
func (Bolus) Tag() Tag          { return TagBolus }
func (BasalSchedule) Tag() Tag  { return TagBasalSchedule }
func (r Raw) Tag() Tag          { return RawTag(r.Type) }

func (c CancelDelivery) Tag() Tag {
	switch c.Cancel {
	case CancelBasal:
		return TagCancelBasal
	case CancelTempBasal:
		return TagCancelTempBasal
	case CancelBolus:
		return TagCancelBolus
	case CancelAll:
		return TagCancelAll
	}
	return TagCancel
}

func (StatusResponse) isMessage() {}
func (StatusRequest) isMessage()  {}
func (ErrorResponse) isMessage()  {}
func (PodInfo) isMessage()        {}
func (TempBasal) isMessage()      {}
func (Bolus) isMessage()          {}
func (BasalSchedule) isMessage()  {}
func (CancelDelivery) isMessage() {}
func (Raw) isMessage()            {}

// #endregion message
