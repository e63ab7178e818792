// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// PageCode identifies an SES diagnostic page.
type PageCode uint8

const (
	PageSupportedDiagnostic  PageCode = 0x00
	PageConfiguration        PageCode = 0x01
	PageEnclosureStatus      PageCode = 0x02 // Enclosure Control when sent
	PageHelpText             PageCode = 0x03
	PageStringIn             PageCode = 0x04 // String Out when sent
	PageThresholdIn          PageCode = 0x05 // Threshold Out when sent
	PageElementDescriptor    PageCode = 0x07
	PageShortEnclosureStatus PageCode = 0x08
	PageAdditionalStatus     PageCode = 0x0a
	PageSubenclosureHelpText PageCode = 0x0b
	PageSubenclosureStringIn PageCode = 0x0c
	PageSupportedSES         PageCode = 0x0d
	PageMicrocodeStatus      PageCode = 0x0e // Download Microcode Control when sent
	PageSubenclosureNickname PageCode = 0x0f

	PageEnclosureControl = PageEnclosureStatus
	PageThresholdOut     = PageThresholdIn
)

type pageInfo struct {
	abbrev     string
	name       string
	generation bool // page carries a generation code at offset 4
}

var pageTable = map[PageCode]pageInfo{
	PageSupportedDiagnostic:  {"sdp", "Supported Diagnostic Pages", false},
	PageConfiguration:        {"cf", "Configuration (SES)", true},
	PageEnclosureStatus:      {"es", "Enclosure Status/Control (SES)", true},
	PageHelpText:             {"ht", "Help Text (SES)", false},
	PageStringIn:             {"str", "String In/Out (SES)", false},
	PageThresholdIn:          {"th", "Threshold In/Out (SES)", true},
	PageElementDescriptor:    {"ed", "Element Descriptor (SES)", true},
	PageShortEnclosureStatus: {"ses", "Short Enclosure Status (SES)", false},
	PageAdditionalStatus:     {"aes", "Additional Element Status (SES-2)", true},
	PageSubenclosureHelpText: {"ssht", "Subenclosure Help Text (SES-2)", true},
	PageSubenclosureStringIn: {"ssst", "Subenclosure String In/Out (SES-2)", true},
	PageSupportedSES:         {"ssp", "Supported SES Diagnostic Pages (SES-2)", false},
	PageMicrocodeStatus:      {"dm", "Download Microcode (SES-2)", true},
	PageSubenclosureNickname: {"snic", "Subenclosure Nickname (SES-2)", true},
}

func (p PageCode) String() string {
	if info, ok := pageTable[p]; ok {
		return info.name
	}

	switch {
	case p >= 0x10 && p <= 0x1f:
		return fmt.Sprintf("SES reserved page %#02x", uint8(p))
	case p >= 0x80:
		return fmt.Sprintf("vendor specific page %#02x", uint8(p))
	}

	return fmt.Sprintf("page %#02x", uint8(p))
}

// Abbrev returns the short name used on the command line, or "" for unnamed pages.
func (p PageCode) Abbrev() string {
	return pageTable[p].abbrev
}

// HasGeneration reports whether the page carries a generation code.
func (p PageCode) HasGeneration() bool {
	return pageTable[p].generation
}

// ParsePageCode accepts a page abbreviation, or a page number in decimal or 0x-prefixed hex.
func ParsePageCode(s string) (PageCode, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for code, info := range pageTable {
		if info.abbrev == s {
			return code, nil
		}
	}

	// Enclosure Control shares its code with Enclosure Status.
	switch s {
	case "ec":
		return PageEnclosureControl, nil
	case "sdt":
		return PageSupportedDiagnostic, nil
	}

	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown page %q", s)
	}

	return PageCode(n), nil
}

// Header is the common header of an SES diagnostic page.
type Header struct {
	Code       PageCode
	Byte1      uint8  // page specific: number of secondary subenclosures, status flags etc.
	Length     int    // page length field; the page is Length+4 bytes long
	Generation uint32 // only valid if the page code carries a generation code
}

// parseHeader validates the common page header. In strict mode a buffer shorter than the
// declared length is an error; otherwise the returned slice is clamped to the buffer and
// clamped is set.
func parseHeader(code PageCode, b []byte, strict bool) (hdr Header, page []byte, clamped bool, err error) {
	minLen := pageHeaderLen
	if code.HasGeneration() {
		minLen = statusPageHeaderLen
	}

	if len(b) < minLen {
		return hdr, nil, false, truncated(code, minLen, len(b))
	}

	if PageCode(b[0]) != code {
		return hdr, nil, false, fmt.Errorf("expected %s, got page code %#02x: %w", code, b[0], ErrPageMismatch)
	}

	hdr = Header{
		Code:   code,
		Byte1:  b[1],
		Length: int(binary.BigEndian.Uint16(b[2:])),
	}

	end := pageHeaderLen + hdr.Length
	switch {
	case end > len(b) && strict:
		return hdr, nil, false, truncated(code, end, len(b))
	case end > len(b):
		end = len(b)
		clamped = true
	case end < minLen:
		return hdr, nil, false, truncated(code, minLen, end)
	}

	if code.HasGeneration() {
		hdr.Generation = binary.BigEndian.Uint32(b[4:])
	}

	return hdr, b[:end], clamped, nil
}

// asciiField trims a fixed-width, space padded ASCII field.
func asciiField(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}
