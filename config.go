// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
)

const (
	enclosureDescMinLen = 40
	typeHeaderLen       = 4
)

// EnclosureDescriptor describes the primary enclosure or one secondary subenclosure.
type EnclosureDescriptor struct {
	RelESProcessID uint8
	NumESProcesses uint8
	SubenclosureID uint8
	NumTypeHeaders int
	LogicalID      [8]byte
	Vendor         string
	Product        string
	Revision       string
	VendorSpecific []byte
}

// TypeDescriptorHeader is one entry of the type descriptor table. Its position in the table is
// the type header index ("TI"); the Enclosure Status page holds one overall element followed
// by NumElements individual elements for each header, in table order.
type TypeDescriptorHeader struct {
	ElementType    ElementType
	NumElements    int
	SubenclosureID uint8
	Text           string
}

// Configuration is a decoded Configuration diagnostic page.
type Configuration struct {
	Generation  uint32
	Enclosures  []EnclosureDescriptor // index 0 is the primary enclosure
	TypeHeaders []TypeDescriptorHeader
}

// Primary returns the primary subenclosure's descriptor.
func (c *Configuration) Primary() *EnclosureDescriptor {
	if len(c.Enclosures) == 0 {
		return nil
	}

	return &c.Enclosures[0]
}

// NumElements returns the number of Enclosure Status elements described by the type table,
// counting one overall element per header.
func (c *Configuration) NumElements() int {
	n := 0
	for _, th := range c.TypeHeaders {
		n += th.NumElements + 1
	}

	return n
}

// ParseConfiguration decodes a Configuration page and builds its type descriptor table.
// maxHeaders bounds the table size; zero selects MaxTypeHeaders.
func ParseConfiguration(b []byte, maxHeaders int) (*Configuration, error) {
	if maxHeaders <= 0 {
		maxHeaders = MaxTypeHeaders
	}

	hdr, page, _, err := parseHeader(PageConfiguration, b, true)
	if err != nil {
		return nil, err
	}

	cfg := &Configuration{Generation: hdr.Generation}
	numSubs := int(hdr.Byte1) + 1
	off := statusPageHeaderLen
	sumHeaders := 0

	for i := 0; i < numSubs; i++ {
		if off+4 > len(page) {
			return nil, truncated(PageConfiguration, off+4, len(page))
		}

		descLen := int(page[off+3]) + 4
		if off+descLen > len(page) {
			return nil, truncated(PageConfiguration, off+descLen, len(page))
		}

		d := page[off : off+descLen]
		enc := EnclosureDescriptor{
			RelESProcessID: (d[0] >> 4) & 0x07,
			NumESProcesses: d[0] & 0x07,
			SubenclosureID: d[1],
			NumTypeHeaders: int(d[2]),
		}

		if descLen >= enclosureDescMinLen {
			copy(enc.LogicalID[:], d[4:12])
			enc.Vendor = asciiField(d[12:20])
			enc.Product = asciiField(d[20:36])
			enc.Revision = asciiField(d[36:40])
			if descLen > enclosureDescMinLen {
				enc.VendorSpecific = d[enclosureDescMinLen:]
			}
		}

		sumHeaders += enc.NumTypeHeaders
		if sumHeaders > maxHeaders {
			return nil, fmt.Errorf("%d type descriptor headers, maximum %d: %w", sumHeaders, maxHeaders,
				ErrCapacityExceeded)
		}

		cfg.Enclosures = append(cfg.Enclosures, enc)
		off += descLen
	}

	if off+sumHeaders*typeHeaderLen > len(page) {
		return nil, truncated(PageConfiguration, off+sumHeaders*typeHeaderLen, len(page))
	}

	cfg.TypeHeaders = make([]TypeDescriptorHeader, sumHeaders)
	textLens := make([]int, sumHeaders)

	for i := range cfg.TypeHeaders {
		h := page[off : off+typeHeaderLen]
		cfg.TypeHeaders[i] = TypeDescriptorHeader{
			ElementType:    ElementType(h[0]),
			NumElements:    int(h[1]),
			SubenclosureID: h[2],
		}
		textLens[i] = int(h[3])
		off += typeHeaderLen
	}

	// Type descriptor texts follow the headers, in header order.
	for i, n := range textLens {
		if off+n > len(page) {
			return nil, truncated(PageConfiguration, off+n, len(page))
		}

		cfg.TypeHeaders[i].Text = asciiField(page[off : off+n])
		off += n
	}

	return cfg, nil
}
