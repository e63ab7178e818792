// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"encoding/binary"
)

const descriptorHeaderLen = 4

// ElementDescriptorPage is a decoded Element Descriptor page. Descriptors are in the same order
// as the elements of the Enclosure Status page, overall descriptors included.
type ElementDescriptorPage struct {
	Generation  uint32
	Descriptors []string
}

// descriptorSpan locates the text of the descriptor starting at off. ok is false when the
// descriptor header or its text runs past the end of the page.
func descriptorSpan(page []byte, off int) (textOff, textLen int, ok bool) {
	if off+descriptorHeaderLen > len(page) {
		return 0, 0, false
	}

	textLen = int(binary.BigEndian.Uint16(page[off+2:]))
	textOff = off + descriptorHeaderLen
	if textOff+textLen > len(page) {
		return 0, 0, false
	}

	return textOff, textLen, true
}

// ParseElementDescriptors decodes an Element Descriptor page.
func ParseElementDescriptors(b []byte) (*ElementDescriptorPage, error) {
	hdr, page, _, err := parseHeader(PageElementDescriptor, b, true)
	if err != nil {
		return nil, err
	}

	ed := &ElementDescriptorPage{Generation: hdr.Generation}

	for off := statusPageHeaderLen; off < len(page); {
		textOff, textLen, ok := descriptorSpan(page, off)
		if !ok {
			return nil, truncated(PageElementDescriptor, off+descriptorHeaderLen, len(page))
		}

		ed.Descriptors = append(ed.Descriptors, asciiField(page[textOff:textOff+textLen]))
		off = textOff + textLen
	}

	return ed, nil
}

// Decode pairs each descriptor text with its element.
func (p *ElementDescriptorPage) Decode(headers []TypeDescriptorHeader) []DecodedElement {
	elems := make([][]byte, len(p.Descriptors))
	for i, d := range p.Descriptors {
		elems[i] = []byte(d)
	}

	return decodeElements(elems, headers, func(_ ElementType, b []byte) []FieldValue {
		return []FieldValue{{Name: "descriptor", Text: string(b)}}
	})
}
