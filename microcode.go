// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"encoding/binary"
	"fmt"
)

const microcodeDescLen = 16

var microcodeStatus = map[uint8]string{
	0x00: "No download microcode operation in progress",
	0x01: "Download in progress, awaiting more",
	0x02: "Download complete, updating storage",
	0x03: "Updating storage with deferred microcode",
	0x10: "Complete, no error, starting now",
	0x11: "Complete, no error, start after hard reset or power cycle",
	0x12: "Complete, no error, start after power cycle",
	0x13: "Complete, no error, start after activate, hard reset or power cycle",
	0x80: "Error, discarded, see additional status",
	0x81: "Error, discarded, image error",
	0x82: "Timeout, discarded",
	0x83: "Internal error, need new microcode before reset",
	0x84: "Internal error, need to reset to recover",
	0x85: "Internal error, recover with activate",
}

// MicrocodeStatusName returns the meaning of a download microcode status code.
func MicrocodeStatusName(code uint8) string {
	if s, ok := microcodeStatus[code]; ok {
		return s
	}

	if code >= 0x70 && code <= 0x7f {
		return fmt.Sprintf("vendor specific [%#x]", code)
	}

	return fmt.Sprintf("reserved [%#x]", code)
}

// MicrocodeStatus is the download microcode state of one subenclosure.
type MicrocodeStatus struct {
	SubenclosureID       uint8
	Status               uint8
	AdditionalStatus     uint8
	MaxSize              uint32
	ExpectedBufferID     uint8
	ExpectedBufferOffset uint32
}

// ParseMicrocodeStatus decodes a Download Microcode Status page.
func ParseMicrocodeStatus(b []byte) (uint32, []MicrocodeStatus, error) {
	hdr, page, _, err := parseHeader(PageMicrocodeStatus, b, true)
	if err != nil {
		return 0, nil, err
	}

	var out []MicrocodeStatus
	for off := statusPageHeaderLen; off+microcodeDescLen <= len(page); off += microcodeDescLen {
		d := page[off : off+microcodeDescLen]
		out = append(out, MicrocodeStatus{
			SubenclosureID:       d[1],
			Status:               d[2],
			AdditionalStatus:     d[3],
			MaxSize:              binary.BigEndian.Uint32(d[4:]),
			ExpectedBufferID:     d[11],
			ExpectedBufferOffset: binary.BigEndian.Uint32(d[12:]),
		})
	}

	return hdr.Generation, out, nil
}
