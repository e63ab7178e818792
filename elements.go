// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
	"strconv"
	"strings"
)

// ElementType is the element type code from a type descriptor header.
type ElementType uint8

const (
	ElementUnspecified         ElementType = 0x00
	ElementDeviceSlot          ElementType = 0x01
	ElementPowerSupply         ElementType = 0x02
	ElementCooling             ElementType = 0x03
	ElementTemperatureSensor   ElementType = 0x04
	ElementDoor                ElementType = 0x05
	ElementAudibleAlarm        ElementType = 0x06
	ElementESCE                ElementType = 0x07 // enclosure services controller electronics
	ElementSCCE                ElementType = 0x08 // SCC controller electronics
	ElementNonvolatileCache    ElementType = 0x09
	ElementInvalidOpReason     ElementType = 0x0a
	ElementUPS                 ElementType = 0x0b
	ElementDisplay             ElementType = 0x0c
	ElementKeyPadEntry         ElementType = 0x0d
	ElementEnclosure           ElementType = 0x0e
	ElementSCSIPortTransceiver ElementType = 0x0f
	ElementLanguage            ElementType = 0x10
	ElementCommunicationPort   ElementType = 0x11
	ElementVoltageSensor       ElementType = 0x12
	ElementCurrentSensor       ElementType = 0x13
	ElementSCSITargetPort      ElementType = 0x14
	ElementSCSIInitiatorPort   ElementType = 0x15
	ElementSimpleSubenclosure  ElementType = 0x16
	ElementArrayDeviceSlot     ElementType = 0x17
	ElementSASExpander         ElementType = 0x18
	ElementSASConnector        ElementType = 0x19

	lastStandardElementType = ElementSASConnector
)

type elementInfo struct {
	abbrev string
	name   string
}

var elementTable = [...]elementInfo{
	{"un", "Unspecified"},
	{"dev", "Device slot"},
	{"ps", "Power supply"},
	{"coo", "Cooling"},
	{"ts", "Temperature sensor"},
	{"do", "Door"},
	{"aa", "Audible alarm"},
	{"esc", "Enclosure services controller electronics"},
	{"sce", "SCC controller electronics"},
	{"nc", "Nonvolatile cache"},
	{"ior", "Invalid operation reason"},
	{"ups", "Uninterruptible power supply"},
	{"dis", "Display"},
	{"kpe", "Key pad entry"},
	{"enc", "Enclosure"},
	{"sp", "SCSI port/transceiver"},
	{"lan", "Language"},
	{"cp", "Communication port"},
	{"vs", "Voltage sensor"},
	{"cs", "Current sensor"},
	{"stp", "SCSI target port"},
	{"sip", "SCSI initiator port"},
	{"ss", "Simple subenclosure"},
	{"arr", "Array device slot"},
	{"sse", "SAS expander"},
	{"ssc", "SAS connector"},
}

func (t ElementType) String() string {
	switch {
	case t <= lastStandardElementType:
		return elementTable[t].name
	case t >= 0x80:
		return fmt.Sprintf("vendor specific [%#x]", uint8(t))
	}

	return fmt.Sprintf("reserved [%#x]", uint8(t))
}

// Abbrev returns the short element type name, or the type code in hex for non-standard types.
func (t ElementType) Abbrev() string {
	if t <= lastStandardElementType {
		return elementTable[t].abbrev
	}

	return fmt.Sprintf("%#x", uint8(t))
}

// ParseElementType accepts an element type abbreviation or number.
func ParseElementType(s string) (ElementType, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for i, info := range elementTable {
		if info.abbrev == s {
			return ElementType(i), nil
		}
	}

	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown element type %q", s)
	}

	return ElementType(n), nil
}

// AESRelevant reports whether individual elements of this type are counted in the
// Additional Element Status index space used when EIIOE is 0.
func (t ElementType) AESRelevant() bool {
	switch t {
	case ElementDeviceSlot, ElementESCE, ElementSCSITargetPort, ElementSCSIInitiatorPort,
		ElementArrayDeviceSlot, ElementSASExpander:
		return true
	}

	return false
}

// Element status codes, from byte 0 bits 3:0 of a status element.
var elementStatusCodes = [...]string{
	"Unsupported",
	"OK",
	"Critical",
	"Noncritical",
	"Unrecoverable",
	"Not installed",
	"Unknown",
	"Not available",
	"No access allowed",
}

// StatusCodeName returns the name of an element status code.
func StatusCodeName(code uint8) string {
	if int(code) < len(elementStatusCodes) {
		return elementStatusCodes[code]
	}

	return fmt.Sprintf("reserved [%d]", code)
}
