// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
	"strings"

	"github.com/dswarbrick/ses/utils"
)

const (
	elementLen = 4

	// Stands in for the element type when no type descriptor table covers an element.
	unknownElementType ElementType = 0xff
)

// ElementRef locates one element of a status or control page in terms of the type descriptor
// table. Index is -1 for the overall element of a type. TypeIndex is -1 when the element was
// decoded without a Configuration page.
type ElementRef struct {
	TypeIndex      int
	Index          int
	Type           ElementType
	SubenclosureID uint8
}

func (r ElementRef) String() string {
	if r.TypeIndex < 0 {
		return fmt.Sprintf("element %d", r.Index)
	}

	if r.Index < 0 {
		return fmt.Sprintf("%s [%d,-1] overall", r.Type, r.TypeIndex)
	}

	return fmt.Sprintf("%s [%d,%d]", r.Type, r.TypeIndex, r.Index)
}

// elementRefs expands a type descriptor table into the per-element order used by the
// Enclosure Status, Threshold In and Element Descriptor pages.
func elementRefs(headers []TypeDescriptorHeader) []ElementRef {
	refs := make([]ElementRef, 0, len(headers)*2)

	for ti, th := range headers {
		for ii := -1; ii < th.NumElements; ii++ {
			refs = append(refs, ElementRef{
				TypeIndex:      ti,
				Index:          ii,
				Type:           th.ElementType,
				SubenclosureID: th.SubenclosureID,
			})
		}
	}

	return refs
}

// FieldValue is one decoded bit-field of an element.
type FieldValue struct {
	Name  string
	Value uint64
	Text  string
}

func (f FieldValue) String() string {
	return f.Name + "=" + f.Text
}

// bitField describes a status or threshold field in terms of byte offset, highest bit number
// and width. A nil format prints the value in decimal.
type bitField struct {
	name string
	byte int
	bit  int
	bits int
	format func(uint64) string
}

func (f bitField) decode(b []byte) FieldValue {
	v := utils.GetBits(b, f.byte, f.bit, f.bits)
	fv := FieldValue{Name: f.name, Value: v}

	if f.format != nil {
		fv.Text = f.format(v)
	} else {
		fv.Text = fmt.Sprintf("%d", v)
	}

	return fv
}

func flag(name string, byteOff, bit int) bitField {
	return bitField{name: name, byte: byteOff, bit: bit, bits: 1}
}

func formatStatusCode(v uint64) string {
	return StatusCodeName(uint8(v))
}

func formatTemperature(v uint64) string {
	if v == 0 {
		return "reserved"
	}

	return fmt.Sprintf("%d C", int(v)-20)
}

func formatFanSpeed(v uint64) string {
	return fmt.Sprintf("%d rpm", v*10)
}

func formatVoltage(v uint64) string {
	return fmt.Sprintf("%.2f V", float64(int16(v))/100)
}

func formatCurrent(v uint64) string {
	return fmt.Sprintf("%.2f A", float64(int16(v))/100)
}

func formatLanguage(v uint64) string {
	return string([]byte{byte(v >> 8), byte(v)})
}

func formatHex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}

var commonStatusFields = []bitField{
	flag("prdfail", 0, 6),
	flag("disabled", 0, 5),
	flag("swap", 0, 4),
	{name: "status", byte: 0, bit: 3, bits: 4, format: formatStatusCode},
}

var slotStatusFields = []bitField{
	flag("app_client_bypassed_a", 2, 7),
	flag("do_not_remove", 2, 6),
	flag("enclosure_bypassed_a", 2, 5),
	flag("enclosure_bypassed_b", 2, 4),
	flag("ready_to_insert", 2, 3),
	flag("rmv", 2, 2),
	flag("ident", 2, 1),
	flag("report", 2, 0),
	flag("app_client_bypassed_b", 3, 7),
	flag("fault_sensed", 3, 6),
	flag("fault_reqstd", 3, 5),
	flag("device_off", 3, 4),
	flag("bypassed_a", 3, 3),
	flag("bypassed_b", 3, 2),
	flag("device_bypassed_a", 3, 1),
	flag("device_bypassed_b", 3, 0),
}

var portStatusFields = []bitField{
	flag("ident", 1, 7),
	flag("fail", 1, 6),
	flag("report", 2, 0),
	flag("enabled", 3, 0),
}

// Per element type status fields, following the common byte 0 fields.
var statusFields = map[ElementType][]bitField{
	ElementUnspecified: {},
	ElementDeviceSlot: append([]bitField{
		{name: "slot_address", byte: 1, bit: 7, bits: 8},
	}, slotStatusFields...),
	ElementArrayDeviceSlot: append([]bitField{
		flag("ok", 1, 7),
		flag("rsvd_device", 1, 6),
		flag("hot_spare", 1, 5),
		flag("cons_check", 1, 4),
		flag("in_crit_array", 1, 3),
		flag("in_failed_array", 1, 2),
		flag("rebuild_remap", 1, 1),
		flag("r_r_abort", 1, 0),
	}, slotStatusFields...),
	ElementPowerSupply: {
		flag("ident", 1, 7),
		flag("dc_overvoltage", 2, 3),
		flag("dc_undervoltage", 2, 2),
		flag("dc_overcurrent", 2, 1),
		flag("hot_swap", 3, 7),
		flag("fail", 3, 6),
		flag("rqsted_on", 3, 5),
		flag("off", 3, 4),
		flag("overtmp_fail", 3, 3),
		flag("temp_warn", 3, 2),
		flag("ac_fail", 3, 1),
		flag("dc_fail", 3, 0),
	},
	ElementCooling: {
		flag("ident", 1, 7),
		{name: "actual_speed", byte: 1, bit: 2, bits: 11, format: formatFanSpeed},
		flag("hot_swap", 3, 7),
		flag("fail", 3, 6),
		flag("rqsted_on", 3, 5),
		flag("off", 3, 4),
		{name: "speed_code", byte: 3, bit: 2, bits: 3},
	},
	ElementTemperatureSensor: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		{name: "temperature", byte: 2, bit: 7, bits: 8, format: formatTemperature},
		flag("ot_failure", 3, 3),
		flag("ot_warning", 3, 2),
		flag("ut_failure", 3, 1),
		flag("ut_warning", 3, 0),
	},
	ElementDoor: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		flag("open", 3, 1),
		flag("unlocked", 3, 0),
	},
	ElementAudibleAlarm: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		flag("rqst_mute", 3, 7),
		flag("muted", 3, 6),
		flag("remind", 3, 4),
		{name: "tone_urgency", byte: 3, bit: 3, bits: 4, format: formatHex},
	},
	ElementESCE: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		flag("report", 2, 0),
		flag("hot_swap", 3, 7),
	},
	ElementSCCE: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		flag("report", 2, 0),
	},
	ElementNonvolatileCache: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		{name: "size_multiplier", byte: 1, bit: 1, bits: 2},
		{name: "cache_size", byte: 2, bit: 7, bits: 16},
	},
	ElementInvalidOpReason: {
		{name: "invop_type", byte: 1, bit: 7, bits: 2},
		{name: "invop_data", byte: 1, bit: 5, bits: 22, format: formatHex},
	},
	ElementUPS: {
		{name: "battery_status", byte: 1, bit: 7, bits: 8},
		flag("ac_lo", 2, 7),
		flag("ac_hi", 2, 6),
		flag("ac_qual", 2, 5),
		flag("ac_fail", 2, 4),
		flag("dc_fail", 2, 3),
		flag("ups_fail", 2, 2),
		flag("warn", 2, 1),
		flag("intf_fail", 2, 0),
		flag("ident", 3, 7),
		flag("fail", 3, 6),
		flag("batt_fail", 3, 1),
		flag("bpf", 3, 0),
	},
	ElementDisplay: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		{name: "display_mode_status", byte: 1, bit: 1, bits: 2},
		{name: "display_character_status", byte: 2, bit: 7, bits: 16, format: formatHex},
	},
	ElementKeyPadEntry: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
	},
	ElementEnclosure: {
		flag("ident", 1, 7),
		{name: "time_until_power_cycle", byte: 2, bit: 7, bits: 6},
		flag("failure_indication", 2, 1),
		flag("warning_indication", 2, 0),
		{name: "requested_power_off_duration", byte: 3, bit: 7, bits: 6},
		flag("failure_requested", 3, 1),
		flag("warning_requested", 3, 0),
	},
	ElementSCSIPortTransceiver: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		flag("report", 2, 0),
		flag("disabled", 3, 4),
		flag("lol", 3, 1),
		flag("xmit_fail", 3, 0),
	},
	ElementLanguage: {
		flag("ident", 1, 7),
		{name: "language_code", byte: 2, bit: 7, bits: 16, format: formatLanguage},
	},
	ElementCommunicationPort: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		flag("disabled", 3, 0),
	},
	ElementVoltageSensor: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		flag("warn_over", 1, 3),
		flag("warn_under", 1, 2),
		flag("crit_over", 1, 1),
		flag("crit_under", 1, 0),
		{name: "voltage", byte: 2, bit: 7, bits: 16, format: formatVoltage},
	},
	ElementCurrentSensor: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		flag("warn_over", 1, 3),
		flag("crit_over", 1, 1),
		{name: "current", byte: 2, bit: 7, bits: 16, format: formatCurrent},
	},
	ElementSCSITargetPort:    portStatusFields,
	ElementSCSIInitiatorPort: portStatusFields,
	ElementSimpleSubenclosure: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
		{name: "short_enclosure_status", byte: 3, bit: 7, bits: 8, format: formatHex},
	},
	ElementSASExpander: {
		flag("ident", 1, 7),
		flag("fail", 1, 6),
	},
	ElementSASConnector: {
		flag("ident", 1, 7),
		{name: "connector_type", byte: 1, bit: 6, bits: 7, format: formatHex},
		{name: "connector_physical_link", byte: 2, bit: 7, bits: 8, format: formatHex},
		flag("fail", 3, 6),
	},
}

// DecodeElementStatus decodes a 4-byte status element of the given type. Element types without
// a known layout decode to a single "raw" field.
func DecodeElementStatus(t ElementType, b []byte) []FieldValue {
	fields, ok := statusFields[t]
	if !ok || len(b) < elementLen {
		return []FieldValue{rawField(b)}
	}

	out := make([]FieldValue, 0, len(commonStatusFields)+len(fields))
	for _, f := range commonStatusFields {
		out = append(out, f.decode(b))
	}

	for _, f := range fields {
		out = append(out, f.decode(b))
	}

	return out
}

func rawField(b []byte) FieldValue {
	hexBytes := make([]string, len(b))
	for i, c := range b {
		hexBytes[i] = fmt.Sprintf("%02x", c)
	}

	return FieldValue{Name: "raw", Text: strings.Join(hexBytes, " ")}
}

// DecodedElement is one element of a status, threshold or descriptor page.
type DecodedElement struct {
	ElementRef
	Raw    []byte
	Fields []FieldValue
}

// StatusPage is a decoded Enclosure Status page.
type StatusPage struct {
	Generation uint32
	Invop      bool
	Info       bool
	NonCrit    bool
	Crit       bool
	Unrecov    bool
	Elements   [][]byte
}

// ParseEnclosureStatus splits an Enclosure Status page into its 4-byte elements.
func ParseEnclosureStatus(b []byte) (*StatusPage, error) {
	hdr, page, _, err := parseHeader(PageEnclosureStatus, b, true)
	if err != nil {
		return nil, err
	}

	return &StatusPage{
		Generation: hdr.Generation,
		Invop:      hdr.Byte1&0x10 != 0,
		Info:       hdr.Byte1&0x08 != 0,
		NonCrit:    hdr.Byte1&0x04 != 0,
		Crit:       hdr.Byte1&0x02 != 0,
		Unrecov:    hdr.Byte1&0x01 != 0,
		Elements:   splitElements(page[statusPageHeaderLen:]),
	}, nil
}

func splitElements(b []byte) [][]byte {
	elems := make([][]byte, 0, len(b)/elementLen)
	for off := 0; off+elementLen <= len(b); off += elementLen {
		elems = append(elems, b[off:off+elementLen])
	}

	return elems
}

// Decode labels each element using the type descriptor table. With a nil table each element is
// decoded as raw bytes. Elements beyond the table are also left raw.
func (p *StatusPage) Decode(headers []TypeDescriptorHeader) []DecodedElement {
	return decodeElements(p.Elements, headers, DecodeElementStatus)
}

func decodeElements(elems [][]byte, headers []TypeDescriptorHeader,
	decode func(ElementType, []byte) []FieldValue) []DecodedElement {

	var refs []ElementRef
	if headers != nil {
		refs = elementRefs(headers)
	}

	out := make([]DecodedElement, len(elems))
	for i, e := range elems {
		if i < len(refs) {
			out[i] = DecodedElement{ElementRef: refs[i], Raw: e, Fields: decode(refs[i].Type, e)}
		} else {
			ref := ElementRef{TypeIndex: -1, Index: i, Type: unknownElementType}
			out[i] = DecodedElement{ElementRef: ref, Raw: e, Fields: decode(ref.Type, e)}
		}
	}

	return out
}

// ShortStatus is the Short Enclosure Status page, which carries no elements.
type ShortStatus struct {
	Status uint8
}

// ParseShortStatus decodes a Short Enclosure Status page.
func ParseShortStatus(b []byte) (*ShortStatus, error) {
	if len(b) < pageHeaderLen {
		return nil, truncated(PageShortEnclosureStatus, pageHeaderLen, len(b))
	}

	if PageCode(b[0]) != PageShortEnclosureStatus {
		return nil, fmt.Errorf("got page code %#02x: %w", b[0], ErrPageMismatch)
	}

	return &ShortStatus{Status: b[1]}, nil
}
