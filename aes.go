// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"encoding/binary"
	"fmt"
)

// Protocol identifiers of Additional Element Status descriptors.
type Protocol uint8

const (
	ProtocolFCP  Protocol = 0x0
	ProtocolSAS  Protocol = 0x6
	ProtocolPCIe Protocol = 0xb
)

func (p Protocol) String() string {
	switch p {
	case ProtocolFCP:
		return "Fibre Channel"
	case ProtocolSAS:
		return "SAS"
	case ProtocolPCIe:
		return "PCIe"
	}

	return fmt.Sprintf("protocol %#x", uint8(p))
}

const (
	aesHeaderLen     = 2
	sasPhyDescLen    = 28
	portPhyDescLen   = 12
	expanderPhyLen   = 2
	fcpPortDescLen   = 16
	pciePortDescLen  = 8
	pcieSerialLen    = 20
	pcieModelLen     = 40
	noElementIndex   = 0xff
	sasDescDevice    = 0
	sasDescNonDevice = 1
)

// SAS device types, from bits 6:4 of byte 0 of a phy descriptor.
var sasDeviceTypes = [...]string{
	"no SAS device attached",
	"SAS or SATA device",
	"expander device",
	"expander device (fanout, SAS-1.1)",
}

// SASDeviceTypeName returns the name of an attached SAS device type.
func SASDeviceTypeName(t uint8) string {
	if int(t) < len(sasDeviceTypes) {
		return sasDeviceTypes[t]
	}

	return fmt.Sprintf("reserved [%d]", t)
}

// SASPhy is a phy descriptor of a device slot descriptor (SAS descriptor type 0).
type SASPhy struct {
	DeviceType      uint8
	InitiatorFlags  uint8 // SSP (bit 3), STP (bit 2), SMP (bit 1)
	TargetFlags     uint8 // SATA port selector (bit 7), SSP, STP, SMP, SATA device (bit 0)
	AttachedSASAddr [8]byte
	SASAddr         [8]byte
	PhyID           uint8
}

func (p SASPhy) SATADevice() bool { return p.TargetFlags&0x01 != 0 }

// ExpanderPhy references the connector and other elements of one expander phy. 0xff means no
// element.
type ExpanderPhy struct {
	ConnectorElementIndex uint8
	OtherElementIndex     uint8
}

// PortPhy is a phy descriptor of an ESCE, SCSI target port or SCSI initiator port descriptor.
type PortPhy struct {
	PhyID                 uint8
	ConnectorElementIndex uint8
	OtherElementIndex     uint8
	SASAddr               [8]byte
}

// SASStatus is the SAS protocol specific part of an AES descriptor.
type SASStatus struct {
	DescriptorType uint8
	NotAllPhys     bool
	DeviceSlot     int // -1 when not reported
	Phys           []SASPhy
	ExpanderAddr   [8]byte
	ExpanderPhys   []ExpanderPhy
	PortPhys       []PortPhy
}

// FCPPort is one port descriptor of a Fibre Channel AES descriptor.
type FCPPort struct {
	LoopPosition      uint8
	BypassReason      uint8
	RequestedHardAddr uint8
	NPortID           uint32
	PortName          [8]byte
}

// FCPStatus is the Fibre Channel protocol specific part of an AES descriptor.
type FCPStatus struct {
	BayNumber int // -1 when not reported
	NodeName  [8]byte
	Ports     []FCPPort
}

// PCIePort is one port descriptor of a PCIe AES descriptor.
type PCIePort struct {
	PSNValid     bool
	BDFValid     bool
	CIDValid     bool
	ControllerID uint16
	Bus          uint8
	Device       uint8
	Function     uint8
	PhysicalSlot uint16
}

// PCIeStatus is the PCIe protocol specific part of an AES descriptor.
type PCIeStatus struct {
	NotAllPorts  bool
	DeviceSlot   int
	VendorID     uint16
	SubVendorID  uint16
	SerialNumber string
	ModelNumber  string
	Ports        []PCIePort
}

// AdditionalStatus is one decoded Additional Element Status descriptor.
type AdditionalStatus struct {
	Offset       int // offset of the descriptor within the page
	Raw          []byte
	Invalid      bool
	EIP          bool
	Protocol     Protocol
	Eiioe        uint8
	ElementIndex int // -1 when EIP is clear

	SAS  *SASStatus
	FCP  *FCPStatus
	PCIe *PCIeStatus
}

// protocolOffset returns the offset of the protocol specific information.
func (a *AdditionalStatus) protocolOffset() int {
	if a.EIP {
		return 4
	}

	return 2
}

// DeviceSlot returns the device slot or bay number reported by the descriptor.
func (a *AdditionalStatus) DeviceSlot() (int, bool) {
	switch {
	case a.Invalid:
		return 0, false
	case a.SAS != nil && a.SAS.DeviceSlot >= 0:
		return a.SAS.DeviceSlot, true
	case a.FCP != nil && a.FCP.BayNumber >= 0:
		return a.FCP.BayNumber, true
	case a.PCIe != nil && a.PCIe.DeviceSlot >= 0:
		return a.PCIe.DeviceSlot, true
	}

	return 0, false
}

// SASAddress returns the primary SAS address reported by the descriptor: the first phy's
// address for a device, or the expander's own address.
func (a *AdditionalStatus) SASAddress() ([8]byte, bool) {
	var addr [8]byte

	if a.Invalid || a.SAS == nil {
		return addr, false
	}

	switch {
	case len(a.SAS.Phys) > 0:
		addr = a.SAS.Phys[0].SASAddr
	case len(a.SAS.PortPhys) > 0:
		addr = a.SAS.PortPhys[0].SASAddr
	default:
		addr = a.SAS.ExpanderAddr
	}

	return addr, addr != [8]byte{}
}

// decodeAdditionalStatus decodes one descriptor. etype selects between the expander and port
// layouts of SAS descriptor type 1; pass unknownElementType to guess from the length.
func decodeAdditionalStatus(d []byte, off int, etype ElementType) *AdditionalStatus {
	a := &AdditionalStatus{
		Offset:       off,
		Raw:          d,
		Invalid:      d[0]&0x80 != 0,
		EIP:          d[0]&0x10 != 0,
		Protocol:     Protocol(d[0] & 0x0f),
		ElementIndex: -1,
	}

	if a.EIP && len(d) >= 4 {
		a.Eiioe = d[2] & 0x03
		a.ElementIndex = int(d[3])
	}

	ps := a.protocolOffset()
	if ps >= len(d) {
		return a
	}

	switch a.Protocol {
	case ProtocolSAS:
		a.SAS = decodeSAS(d, ps, a.EIP, etype)
	case ProtocolFCP:
		a.FCP = decodeFCP(d, ps, a.EIP)
	case ProtocolPCIe:
		if a.EIP {
			a.PCIe = decodePCIe(d, ps)
		}
	}

	return a
}

func decodeSAS(d []byte, ps int, eip bool, etype ElementType) *SASStatus {
	if ps+2 > len(d) {
		return nil
	}

	s := &SASStatus{
		DescriptorType: d[ps+1] >> 6,
		NotAllPhys:     d[ps+1]&0x01 != 0,
		DeviceSlot:     -1,
	}
	numPhys := int(d[ps])

	// Phy descriptors follow a 4 byte header with EIP set, 2 bytes otherwise.
	phys := ps + 2
	if eip {
		phys = ps + 4
		if phys > len(d) {
			return s
		}
	}

	switch s.DescriptorType {
	case sasDescDevice:
		if eip {
			s.DeviceSlot = int(d[ps+3])
		}

		for i := 0; i < numPhys; i++ {
			p := phys + i*sasPhyDescLen
			if p+sasPhyDescLen > len(d) {
				break
			}

			phy := SASPhy{
				DeviceType:     (d[p] >> 4) & 0x07,
				InitiatorFlags: d[p+2],
				TargetFlags:    d[p+3],
				PhyID:          d[p+20],
			}
			copy(phy.AttachedSASAddr[:], d[p+4:p+12])
			copy(phy.SASAddr[:], d[p+12:p+20])
			s.Phys = append(s.Phys, phy)
		}

	case sasDescNonDevice:
		expander := etype == ElementSASExpander
		if etype == unknownElementType {
			expander = len(d)-phys == 8+numPhys*expanderPhyLen
		}

		if expander {
			if phys+8 > len(d) {
				return s
			}

			copy(s.ExpanderAddr[:], d[phys:phys+8])
			for i := 0; i < numPhys; i++ {
				p := phys + 8 + i*expanderPhyLen
				if p+expanderPhyLen > len(d) {
					break
				}

				s.ExpanderPhys = append(s.ExpanderPhys, ExpanderPhy{
					ConnectorElementIndex: d[p],
					OtherElementIndex:     d[p+1],
				})
			}
		} else {
			for i := 0; i < numPhys; i++ {
				p := phys + i*portPhyDescLen
				if p+portPhyDescLen > len(d) {
					break
				}

				pp := PortPhy{
					PhyID:                 d[p],
					ConnectorElementIndex: d[p+2],
					OtherElementIndex:     d[p+3],
				}
				copy(pp.SASAddr[:], d[p+4:p+12])
				s.PortPhys = append(s.PortPhys, pp)
			}
		}
	}

	return s
}

func decodeFCP(d []byte, ps int, eip bool) *FCPStatus {
	f := &FCPStatus{BayNumber: -1}

	hdr := ps + 2
	if eip {
		hdr = ps + 4
		if hdr <= len(d) {
			f.BayNumber = int(d[ps+3])
		}
	}

	if hdr+8 > len(d) {
		return f
	}

	copy(f.NodeName[:], d[hdr:hdr+8])
	numPorts := int(d[ps])

	for i := 0; i < numPorts; i++ {
		p := hdr + 8 + i*fcpPortDescLen
		if p+fcpPortDescLen > len(d) {
			break
		}

		port := FCPPort{
			LoopPosition:      d[p],
			BypassReason:      d[p+1],
			RequestedHardAddr: d[p+3],
			NPortID:           uint32(d[p+4])<<16 | uint32(d[p+5])<<8 | uint32(d[p+6]),
		}
		copy(port.PortName[:], d[p+8:p+16])
		f.Ports = append(f.Ports, port)
	}

	return f
}

func decodePCIe(d []byte, ps int) *PCIeStatus {
	hdr := ps + 8 + pcieSerialLen + pcieModelLen
	if hdr > len(d) {
		return &PCIeStatus{DeviceSlot: -1}
	}

	p := &PCIeStatus{
		NotAllPorts:  d[ps+1]&0x01 != 0,
		DeviceSlot:   int(d[ps+3]),
		VendorID:     binary.BigEndian.Uint16(d[ps+4:]),
		SubVendorID:  binary.BigEndian.Uint16(d[ps+6:]),
		SerialNumber: asciiField(d[ps+8 : ps+8+pcieSerialLen]),
		ModelNumber:  asciiField(d[ps+8+pcieSerialLen : hdr]),
	}
	numPorts := int(d[ps])

	for i := 0; i < numPorts; i++ {
		o := hdr + i*pciePortDescLen
		if o+pciePortDescLen > len(d) {
			break
		}

		p.Ports = append(p.Ports, PCIePort{
			PSNValid:     d[o]&0x04 != 0,
			BDFValid:     d[o]&0x02 != 0,
			CIDValid:     d[o]&0x01 != 0,
			ControllerID: binary.BigEndian.Uint16(d[o+2:]),
			Bus:          d[o+4],
			Device:       d[o+5] >> 3,
			Function:     d[o+5] & 0x07,
			PhysicalSlot: binary.BigEndian.Uint16(d[o+6:]),
		})
	}

	return p
}

// aesSpan is the location of one descriptor within the AES page.
type aesSpan struct {
	off int
	len int
}

// walkAdditionalStatus splits the page body into descriptor spans. ok is false when the last
// descriptor runs past the end of the page; the spans before it are still returned.
func walkAdditionalStatus(page []byte) (spans []aesSpan, ok bool) {
	for off := statusPageHeaderLen; off < len(page); {
		if off+aesHeaderLen > len(page) {
			return spans, false
		}

		n := int(page[off+1]) + aesHeaderLen
		if off+n > len(page) {
			return spans, false
		}

		spans = append(spans, aesSpan{off: off, len: n})
		off += n
	}

	return spans, true
}

// AdditionalStatusPage is a decoded Additional Element Status page.
type AdditionalStatusPage struct {
	Generation  uint32
	Descriptors []*AdditionalStatus
}

// ParseAdditionalStatus decodes an Additional Element Status page without reference to the
// type descriptor table.
func ParseAdditionalStatus(b []byte) (*AdditionalStatusPage, error) {
	hdr, page, _, err := parseHeader(PageAdditionalStatus, b, true)
	if err != nil {
		return nil, err
	}

	spans, ok := walkAdditionalStatus(page)
	if !ok {
		return nil, truncated(PageAdditionalStatus, len(page)+1, len(page))
	}

	p := &AdditionalStatusPage{Generation: hdr.Generation}
	for _, s := range spans {
		p.Descriptors = append(p.Descriptors,
			decodeAdditionalStatus(page[s.off:s.off+s.len], s.off, unknownElementType))
	}

	return p, nil
}
