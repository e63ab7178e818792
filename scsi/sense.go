// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI status and sense data classification.

package scsi

import "fmt"

// SCSI status codes, see http://www.t10.org/lists/2status.htm
const (
	STATUS_GOOD                 = 0x00
	STATUS_CHECK_CONDITION      = 0x02
	STATUS_CONDITION_MET        = 0x04
	STATUS_BUSY                 = 0x08
	STATUS_RESERVATION_CONFLICT = 0x18
	STATUS_COMMAND_TERMINATED   = 0x22
	STATUS_TASK_SET_FULL        = 0x28
	STATUS_ACA_ACTIVE           = 0x30
	STATUS_TASK_ABORTED         = 0x40
)

// Sense keys
const (
	SENSE_NO_SENSE        = 0x0
	SENSE_RECOVERED_ERROR = 0x1
	SENSE_NOT_READY       = 0x2
	SENSE_MEDIUM_ERROR    = 0x3
	SENSE_HARDWARE_ERROR  = 0x4
	SENSE_ILLEGAL_REQUEST = 0x5
	SENSE_UNIT_ATTENTION  = 0x6
	SENSE_DATA_PROTECT    = 0x7
	SENSE_BLANK_CHECK     = 0x8
	SENSE_VENDOR_SPECIFIC = 0x9
	SENSE_COPY_ABORTED    = 0xa
	SENSE_ABORTED_COMMAND = 0xb
	SENSE_VOLUME_OVERFLOW = 0xd
	SENSE_MISCOMPARE      = 0xe
)

var senseKeyNames = [16]string{
	"No Sense", "Recovered Error", "Not Ready", "Medium Error", "Hardware Error",
	"Illegal Request", "Unit Attention", "Data Protect", "Blank Check", "Vendor Specific",
	"Copy Aborted", "Aborted Command", "Reserved", "Volume Overflow", "Miscompare", "Completed",
}

// Additional sense codes likely to be seen from an enclosure services device.
var ascNames = map[[2]byte]string{
	{0x00, 0x00}: "No additional sense information",
	{0x04, 0x00}: "Logical unit not ready, cause not reportable",
	{0x04, 0x01}: "Logical unit is in process of becoming ready",
	{0x20, 0x00}: "Invalid command operation code",
	{0x24, 0x00}: "Invalid field in cdb",
	{0x25, 0x00}: "Logical unit not supported",
	{0x26, 0x00}: "Invalid field in parameter list",
	{0x29, 0x00}: "Power on, reset, or bus device reset occurred",
	{0x2a, 0x01}: "Mode parameters changed",
	{0x35, 0x00}: "Enclosure failure",
	{0x35, 0x01}: "Unsupported enclosure function",
	{0x35, 0x02}: "Enclosure services unavailable",
	{0x35, 0x03}: "Enclosure services transfer failure",
	{0x35, 0x04}: "Enclosure services transfer refused",
	{0x35, 0x05}: "Enclosure services checksum error",
	{0x3f, 0x01}: "Microcode has been changed",
}

// Kind is the coarse category of a command outcome, modelled on the sg3_utils SG_LIB_CAT_*
// values. Callers branch on the kind rather than on raw status and sense bytes.
type Kind int

const (
	KindClean Kind = iota
	KindNotReady
	KindMediumHard
	KindIllegalRequest
	KindInvalidOpcode
	KindUnitAttention
	KindDataProtect
	KindAbortedCommand
	KindMiscompare
	KindNoSense
	KindRecovered
	KindReservationConflict
	KindConditionMet
	KindBusy
	KindTaskSetFull
	KindAcaActive
	KindTaskAborted
	KindTransport
	KindOther
)

var kindNames = map[Kind]string{
	KindClean:               "no errors",
	KindNotReady:            "not ready",
	KindMediumHard:          "medium or hardware error",
	KindIllegalRequest:      "illegal request",
	KindInvalidOpcode:       "invalid operation code",
	KindUnitAttention:       "unit attention",
	KindDataProtect:         "data protect",
	KindAbortedCommand:      "aborted command",
	KindMiscompare:          "miscompare",
	KindNoSense:             "no sense",
	KindRecovered:           "recovered error",
	KindReservationConflict: "reservation conflict",
	KindConditionMet:        "condition met",
	KindBusy:                "device busy",
	KindTaskSetFull:         "task set full",
	KindAcaActive:           "ACA active",
	KindTaskAborted:         "task aborted",
	KindTransport:           "transport error",
	KindOther:               "other error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind %d", int(k))
}

// Sense holds the interesting fields of fixed or descriptor format sense data.
type Sense struct {
	ResponseCode uint8
	Key          uint8
	ASC          uint8
	ASCQ         uint8
}

// ParseSense decodes fixed (0x70, 0x71) and descriptor (0x72, 0x73) format sense data. The
// second return value is false when b does not hold recognisable sense data.
func ParseSense(b []byte) (Sense, bool) {
	var s Sense

	if len(b) < 2 {
		return s, false
	}

	s.ResponseCode = b[0] & 0x7f

	switch s.ResponseCode {
	case 0x70, 0x71:
		if len(b) < 3 {
			return s, false
		}
		s.Key = b[2] & 0x0f
		if len(b) >= 14 {
			s.ASC = b[12]
			s.ASCQ = b[13]
		}
	case 0x72, 0x73:
		s.Key = b[1] & 0x0f
		if len(b) >= 4 {
			s.ASC = b[2]
			s.ASCQ = b[3]
		}
	default:
		return s, false
	}

	return s, true
}

// Deferred reports whether the sense data describes a deferred error.
func (s Sense) Deferred() bool {
	return s.ResponseCode == 0x71 || s.ResponseCode == 0x73
}

func (s Sense) String() string {
	str := fmt.Sprintf("%s, asc/ascq: %#02x/%#02x", senseKeyNames[s.Key&0x0f], s.ASC, s.ASCQ)
	if name, ok := ascNames[[2]byte{s.ASC, s.ASCQ}]; ok {
		str += " (" + name + ")"
	}

	if s.Deferred() {
		str = "deferred: " + str
	}

	return str
}

// CategoryOf maps a SCSI status byte and any accompanying sense data to a Kind.
func CategoryOf(status uint8, sense []byte) Kind {
	switch status {
	case STATUS_GOOD:
		return KindClean
	case STATUS_CONDITION_MET:
		return KindConditionMet
	case STATUS_BUSY:
		return KindBusy
	case STATUS_RESERVATION_CONFLICT:
		return KindReservationConflict
	case STATUS_TASK_SET_FULL:
		return KindTaskSetFull
	case STATUS_ACA_ACTIVE:
		return KindAcaActive
	case STATUS_TASK_ABORTED:
		return KindTaskAborted
	case STATUS_CHECK_CONDITION, STATUS_COMMAND_TERMINATED:
		// handled below
	default:
		return KindOther
	}

	s, ok := ParseSense(sense)
	if !ok {
		return KindOther
	}

	switch s.Key {
	case SENSE_NO_SENSE:
		return KindNoSense
	case SENSE_RECOVERED_ERROR:
		return KindRecovered
	case SENSE_NOT_READY:
		return KindNotReady
	case SENSE_MEDIUM_ERROR, SENSE_HARDWARE_ERROR, SENSE_BLANK_CHECK:
		return KindMediumHard
	case SENSE_ILLEGAL_REQUEST:
		if s.ASC == 0x20 && s.ASCQ == 0x00 {
			return KindInvalidOpcode
		}
		return KindIllegalRequest
	case SENSE_UNIT_ATTENTION:
		return KindUnitAttention
	case SENSE_DATA_PROTECT:
		return KindDataProtect
	case SENSE_ABORTED_COMMAND, SENSE_COPY_ABORTED:
		return KindAbortedCommand
	case SENSE_MISCOMPARE:
		return KindMiscompare
	}

	return KindOther
}
