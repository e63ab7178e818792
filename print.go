// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
	"io"
	"strings"

	"github.com/dswarbrick/ses/utils"
)

// PrintConfiguration prints the enclosure descriptors and the type descriptor table.
func PrintConfiguration(w io.Writer, cfg *Configuration) {
	fmt.Fprintf(w, "Configuration diagnostic page:\n")
	fmt.Fprintf(w, "  number of secondary subenclosures: %d\n", len(cfg.Enclosures)-1)
	fmt.Fprintf(w, "  generation code: 0x%x\n", cfg.Generation)

	for _, e := range cfg.Enclosures {
		fmt.Fprintf(w, "  enclosure descriptor list\n")
		primary := ""
		if e.SubenclosureID == 0 {
			primary = " [primary]"
		}
		fmt.Fprintf(w, "    Subenclosure identifier: %d%s\n", e.SubenclosureID, primary)
		fmt.Fprintf(w, "      relative ES process id: %d, number of ES processes: %d\n",
			e.RelESProcessID, e.NumESProcesses)
		fmt.Fprintf(w, "      number of type descriptor headers: %d\n", e.NumTypeHeaders)
		fmt.Fprintf(w, "      enclosure logical identifier (hex): %x\n", e.LogicalID)
		fmt.Fprintf(w, "      enclosure vendor: %-8s  product: %-16s  rev: %s\n", e.Vendor, e.Product, e.Revision)

		if len(e.VendorSpecific) > 0 {
			fmt.Fprintf(w, "      vendor-specific data:\n")
			utils.HexDump(w, e.VendorSpecific, "        ")
		}
	}

	fmt.Fprintf(w, "  type descriptor header and text list\n")
	for ti, th := range cfg.TypeHeaders {
		fmt.Fprintf(w, "    [%d] Element type: %s, subenclosure id: %d\n", ti, th.ElementType, th.SubenclosureID)
		fmt.Fprintf(w, "      number of possible elements: %d\n", th.NumElements)
		if th.Text != "" {
			fmt.Fprintf(w, "      text: %s\n", th.Text)
		}
	}
}

func printFields(w io.Writer, indent string, fields []FieldValue) {
	var line []string
	width := len(indent)

	for _, f := range fields {
		s := f.String()
		if width+len(s) > 78 && len(line) > 0 {
			fmt.Fprintf(w, "%s%s\n", indent, strings.Join(line, ", "))
			line, width = nil, len(indent)
		}

		line = append(line, s)
		width += len(s) + 2
	}

	if len(line) > 0 {
		fmt.Fprintf(w, "%s%s\n", indent, strings.Join(line, ", "))
	}
}

func printElements(w io.Writer, elems []DecodedElement) {
	lastTI := -2
	for _, e := range elems {
		if e.TypeIndex != lastTI && e.TypeIndex >= 0 {
			fmt.Fprintf(w, "    Element type: %s, subenclosure id: %d [ti=%d]\n", e.Type, e.SubenclosureID,
				e.TypeIndex)
			lastTI = e.TypeIndex
		}

		if e.TypeIndex < 0 {
			fmt.Fprintf(w, "    Element %d:\n", e.Index)
		} else if e.Index < 0 {
			fmt.Fprintf(w, "      Overall descriptor:\n")
		} else {
			fmt.Fprintf(w, "      Element %d descriptor:\n", e.Index)
		}

		printFields(w, "        ", e.Fields)
	}
}

// PrintStatus prints an Enclosure Status page. cfg may be nil.
func PrintStatus(w io.Writer, p *StatusPage, cfg *Configuration) {
	fmt.Fprintf(w, "Enclosure Status diagnostic page:\n")
	fmt.Fprintf(w, "  INVOP=%d, INFO=%d, NON-CRIT=%d, CRIT=%d, UNRECOV=%d\n", b2i(p.Invop), b2i(p.Info),
		b2i(p.NonCrit), b2i(p.Crit), b2i(p.Unrecov))
	fmt.Fprintf(w, "  generation code: 0x%x\n", p.Generation)
	fmt.Fprintf(w, "  status descriptor list\n")
	printElements(w, p.Decode(typeHeaders(cfg)))
}

// PrintThreshold prints a Threshold In page. cfg may be nil.
func PrintThreshold(w io.Writer, p *ThresholdPage, cfg *Configuration) {
	fmt.Fprintf(w, "Threshold In diagnostic page:\n")
	fmt.Fprintf(w, "  INVOP=%d\n", b2i(p.Invop))
	fmt.Fprintf(w, "  generation code: 0x%x\n", p.Generation)
	fmt.Fprintf(w, "  threshold status descriptor list\n")
	printElements(w, p.Decode(typeHeaders(cfg)))
}

// PrintElementDescriptors prints an Element Descriptor page. cfg may be nil.
func PrintElementDescriptors(w io.Writer, p *ElementDescriptorPage, cfg *Configuration) {
	fmt.Fprintf(w, "Element Descriptor diagnostic page:\n")
	fmt.Fprintf(w, "  generation code: 0x%x\n", p.Generation)
	fmt.Fprintf(w, "  element descriptor list\n")
	printElements(w, p.Decode(typeHeaders(cfg)))
}

// PrintAdditionalStatusPage prints an Additional Element Status page without joining it.
func PrintAdditionalStatusPage(w io.Writer, p *AdditionalStatusPage) {
	fmt.Fprintf(w, "Additional Element Status diagnostic page:\n")
	fmt.Fprintf(w, "  generation code: 0x%x\n", p.Generation)
	fmt.Fprintf(w, "  additional element status descriptor list\n")

	for i, a := range p.Descriptors {
		fmt.Fprintf(w, "    descriptor %d:\n", i)
		printAdditionalStatus(w, "      ", a, nil, nil)
	}
}

func typeHeaders(cfg *Configuration) []TypeDescriptorHeader {
	if cfg == nil {
		return nil
	}

	return cfg.TypeHeaders
}

func b2i(b bool) int {
	if b {
		return 1
	}

	return 0
}

func elementIndexText(ei uint8) string {
	if ei == noElementIndex {
		return "none"
	}

	return fmt.Sprintf("%d", ei)
}

// printAdditionalStatus prints one AES descriptor. With a session and row, connector and other
// element indexes are resolved to elements.
func printAdditionalStatus(w io.Writer, indent string, a *AdditionalStatus, s *JoinSession, r *JoinRow) {
	ref := func(ei uint8, role IndexRole) string {
		if s != nil {
			if target, ok := s.ResolveReference(r, ei, role); ok {
				return fmt.Sprintf("%s [%s]", elementIndexText(ei), target)
			}
		}

		return elementIndexText(ei)
	}

	fmt.Fprintf(w, "%sTransport protocol: %s, invalid=%d, EIP=%d", indent, a.Protocol, b2i(a.Invalid), b2i(a.EIP))
	if a.EIP {
		fmt.Fprintf(w, ", EIIOE=%d, element index: %d", a.Eiioe, a.ElementIndex)
	}
	fmt.Fprintln(w)

	switch {
	case a.SAS != nil:
		sas := a.SAS
		fmt.Fprintf(w, "%sdescriptor type: %d, not all phys: %d", indent, sas.DescriptorType, b2i(sas.NotAllPhys))
		if sas.DeviceSlot >= 0 {
			fmt.Fprintf(w, ", device slot number: %d", sas.DeviceSlot)
		}
		fmt.Fprintln(w)

		for i, phy := range sas.Phys {
			fmt.Fprintf(w, "%sphy index %d:\n", indent, i)
			fmt.Fprintf(w, "%s  SAS device type: %s\n", indent, SASDeviceTypeName(phy.DeviceType))
			fmt.Fprintf(w, "%s  initiator port for: %s\n", indent, portFlags(phy.InitiatorFlags, false))
			fmt.Fprintf(w, "%s  target port for: %s\n", indent, portFlags(phy.TargetFlags, true))
			fmt.Fprintf(w, "%s  attached SAS address: %s\n", indent, utils.FormatSASAddress(phy.AttachedSASAddr))
			fmt.Fprintf(w, "%s  SAS address: %s\n", indent, utils.FormatSASAddress(phy.SASAddr))
			fmt.Fprintf(w, "%s  phy identifier: 0x%x\n", indent, phy.PhyID)
		}

		if len(sas.ExpanderPhys) > 0 || sas.ExpanderAddr != [8]byte{} {
			fmt.Fprintf(w, "%sSAS address: %s\n", indent, utils.FormatSASAddress(sas.ExpanderAddr))
			for i, phy := range sas.ExpanderPhys {
				fmt.Fprintf(w, "%s  [%d] connector element index: %s, other element index: %s\n", indent, i,
					ref(phy.ConnectorElementIndex, RoleConnector), ref(phy.OtherElementIndex, RoleOther))
			}
		}

		for i, phy := range sas.PortPhys {
			fmt.Fprintf(w, "%sphy index %d: phy identifier: 0x%x, SAS address: %s\n", indent, i, phy.PhyID,
				utils.FormatSASAddress(phy.SASAddr))
			fmt.Fprintf(w, "%s  connector element index: %s, other element index: %s\n", indent,
				ref(phy.ConnectorElementIndex, RoleConnector), ref(phy.OtherElementIndex, RoleOther))
		}

	case a.FCP != nil:
		fcp := a.FCP
		if fcp.BayNumber >= 0 {
			fmt.Fprintf(w, "%sbay number: %d\n", indent, fcp.BayNumber)
		}
		fmt.Fprintf(w, "%snode name: %x\n", indent, fcp.NodeName)
		for i, p := range fcp.Ports {
			fmt.Fprintf(w, "%sport index %d: loop position: %d, bypass reason: %#x, requested hard address: %d\n",
				indent, i, p.LoopPosition, p.BypassReason, p.RequestedHardAddr)
			fmt.Fprintf(w, "%s  N_Port identifier: %06x, N_Port name: %x\n", indent, p.NPortID, p.PortName)
		}

	case a.PCIe != nil:
		pcie := a.PCIe
		fmt.Fprintf(w, "%snot all ports: %d, device slot number: %d\n", indent, b2i(pcie.NotAllPorts), pcie.DeviceSlot)
		fmt.Fprintf(w, "%sPCIe vendor id: 0x%04x, subsystem vendor id: 0x%04x\n", indent, pcie.VendorID,
			pcie.SubVendorID)
		fmt.Fprintf(w, "%sserial number: %s\n", indent, pcie.SerialNumber)
		fmt.Fprintf(w, "%smodel number: %s\n", indent, pcie.ModelNumber)
		for i, p := range pcie.Ports {
			fmt.Fprintf(w, "%sport index %d: PSN_VALID=%d, BDF_VALID=%d, CID_VALID=%d\n", indent, i,
				b2i(p.PSNValid), b2i(p.BDFValid), b2i(p.CIDValid))
			fmt.Fprintf(w, "%s  controller id: 0x%04x, BDF: %02x:%02x.%d, physical slot: %d\n", indent,
				p.ControllerID, p.Bus, p.Device, p.Function, p.PhysicalSlot)
		}

	default:
		utils.HexDump(w, a.Raw, indent)
	}
}

func portFlags(flags uint8, target bool) string {
	var names []string

	if target && flags&0x80 != 0 {
		names = append(names, "SATA_port_selector")
	}
	if flags&0x08 != 0 {
		names = append(names, "SSP")
	}
	if flags&0x04 != 0 {
		names = append(names, "STP")
	}
	if flags&0x02 != 0 {
		names = append(names, "SMP")
	}
	if target && flags&0x01 != 0 {
		names = append(names, "SATA_device")
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, " ")
}

// PrintJoin prints the given rows of a join session, or every row if rows is nil.
func PrintJoin(w io.Writer, s *JoinSession, rows []*JoinRow, verbose bool) {
	if rows == nil {
		for i := range s.rows {
			rows = append(rows, &s.rows[i])
		}
	}

	if p := s.cfg.Primary(); p != nil {
		fmt.Fprintf(w, "  Primary enclosure logical identifier (hex): %x\n", p.LogicalID)
	}

	for _, r := range rows {
		if r.IsOverall() && !verbose {
			continue
		}

		if text, ok := s.Descriptor(r); ok && text != "" {
			fmt.Fprintf(w, "%s [%d,%d]  Element type: %s\n", text, r.ThIndex, r.IndivIndex, r.ElementType)
		} else {
			fmt.Fprintf(w, "[%d,%d]  Element type: %s\n", r.ThIndex, r.IndivIndex, r.ElementType)
		}

		printFields(w, "    ", DecodeElementStatus(r.ElementType, s.Status(r)))

		if th := s.Threshold(r); th != nil && verbose {
			printFields(w, "    ", DecodeThreshold(r.ElementType, th))
		}

		if a := s.AdditionalStatus(r); a != nil {
			fmt.Fprintf(w, "    Additional Element Status:\n")
			printAdditionalStatus(w, "      ", a, s, r)
		}
	}

	if s.brokenEI {
		fmt.Fprintf(w, "  >> element indexes of AES descriptors were ignored (broken firmware)\n")
	}
}

// RowView is a flat, serialisable summary of one join row.
type RowView struct {
	TypeIndex   int               `yaml:"type_index"`
	Index       int               `yaml:"index"`
	ElementType string            `yaml:"element_type"`
	Descriptor  string            `yaml:"descriptor,omitempty"`
	Status      map[string]string `yaml:"status"`
	Threshold   map[string]string `yaml:"threshold,omitempty"`
	DeviceSlot  *int              `yaml:"device_slot,omitempty"`
	SASAddress  string            `yaml:"sas_address,omitempty"`
	Protocol    string            `yaml:"protocol,omitempty"`
}

func fieldMap(fields []FieldValue) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Text
	}

	return m
}

// View summarises the given rows, or every individual row if rows is nil.
func (s *JoinSession) View(rows []*JoinRow) []RowView {
	if rows == nil {
		for i := range s.rows {
			if !s.rows[i].IsOverall() {
				rows = append(rows, &s.rows[i])
			}
		}
	}

	out := make([]RowView, 0, len(rows))
	for _, r := range rows {
		v := RowView{
			TypeIndex:   r.ThIndex,
			Index:       r.IndivIndex,
			ElementType: r.ElementType.Abbrev(),
			Status:      fieldMap(DecodeElementStatus(r.ElementType, s.Status(r))),
		}

		v.Descriptor, _ = s.Descriptor(r)

		if th := s.Threshold(r); th != nil {
			v.Threshold = fieldMap(DecodeThreshold(r.ElementType, th))
		}

		if slot, ok := r.DeviceSlot(); ok {
			v.DeviceSlot = &slot
		}

		if addr, ok := r.SASAddress(); ok {
			v.SASAddress = utils.FormatSASAddress(addr)
		}

		if a := s.AdditionalStatus(r); a != nil {
			v.Protocol = a.Protocol.String()
		}

		out = append(out, v)
	}

	return out
}

// PrintPage decodes and prints any supported page. cfg is used to label status, threshold and
// descriptor elements and may be nil.
func PrintPage(w io.Writer, raw []byte, cfg *Configuration) error {
	if len(raw) == 0 {
		return truncated(PageSupportedDiagnostic, pageHeaderLen, 0)
	}

	switch code := PageCode(raw[0]); code {
	case PageSupportedDiagnostic, PageSupportedSES:
		codes, err := ParseSupportedPages(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s:\n", code)
		for _, c := range codes {
			fmt.Fprintf(w, "  %s [%s] [0x%x]\n", c, c.Abbrev(), uint8(c))
		}

	case PageConfiguration:
		c, err := ParseConfiguration(raw, 0)
		if err != nil {
			return err
		}
		PrintConfiguration(w, c)

	case PageEnclosureStatus:
		p, err := ParseEnclosureStatus(raw)
		if err != nil {
			return err
		}
		PrintStatus(w, p, cfg)

	case PageHelpText:
		text, err := ParseHelpText(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Help text diagnostic page:\n  %s\n", text)

	case PageStringIn:
		data, err := ParseStringIn(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "String In diagnostic page (vendor specific):\n")
		utils.HexDump(w, data, "  ")

	case PageThresholdIn:
		p, err := ParseThresholdIn(raw)
		if err != nil {
			return err
		}
		PrintThreshold(w, p, cfg)

	case PageElementDescriptor:
		p, err := ParseElementDescriptors(raw)
		if err != nil {
			return err
		}
		PrintElementDescriptors(w, p, cfg)

	case PageShortEnclosureStatus:
		p, err := ParseShortStatus(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Short enclosure status diagnostic page:\n  status: 0x%x\n", p.Status)

	case PageAdditionalStatus:
		p, err := ParseAdditionalStatus(raw)
		if err != nil {
			return err
		}
		PrintAdditionalStatusPage(w, p)

	case PageSubenclosureHelpText, PageSubenclosureStringIn:
		p, err := ParseSubenclosurePage(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s diagnostic page:\n  generation code: 0x%x\n", p.Code, p.Generation)
		for _, e := range p.Entries {
			fmt.Fprintf(w, "  subenclosure identifier: %d\n", e.SubenclosureID)
			if p.Code == PageSubenclosureHelpText {
				fmt.Fprintf(w, "    %s\n", asciiField(e.Data))
			} else {
				utils.HexDump(w, e.Data, "    ")
			}
		}

	case PageMicrocodeStatus:
		gen, mc, err := ParseMicrocodeStatus(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Download microcode status diagnostic page:\n  generation code: 0x%x\n", gen)
		for _, m := range mc {
			fmt.Fprintf(w, "  subenclosure identifier: %d\n", m.SubenclosureID)
			fmt.Fprintf(w, "    download microcode status: %s [0x%x]\n", MicrocodeStatusName(m.Status), m.Status)
			fmt.Fprintf(w, "    download microcode additional status: 0x%x\n", m.AdditionalStatus)
			fmt.Fprintf(w, "    download microcode maximum size: %d bytes\n", m.MaxSize)
			fmt.Fprintf(w, "    download microcode expected buffer id: 0x%x\n", m.ExpectedBufferID)
			fmt.Fprintf(w, "    download microcode expected buffer id offset: %d\n", m.ExpectedBufferOffset)
		}

	case PageSubenclosureNickname:
		gen, names, err := ParseNicknames(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Subenclosure nickname status diagnostic page:\n  generation code: 0x%x\n", gen)
		for _, n := range names {
			fmt.Fprintf(w, "  subenclosure identifier: %d\n", n.SubenclosureID)
			fmt.Fprintf(w, "    nickname status: 0x%x, additional status: 0x%x, language code: %s\n",
				n.Status, n.AdditionalStatus, n.LanguageCode)
			fmt.Fprintf(w, "    nickname: %s\n", n.Name)
		}

	default:
		fmt.Fprintf(w, "%s:\n", code)
		utils.HexDump(w, raw, "  ")
	}

	return nil
}
