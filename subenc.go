// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"encoding/binary"
)

const nicknameDescLen = 40

// SubenclosureData is the per-subenclosure payload of the Subenclosure Help Text and
// Subenclosure String In pages.
type SubenclosureData struct {
	SubenclosureID uint8
	Data           []byte
}

// SubenclosurePage is a decoded Subenclosure Help Text or Subenclosure String In page.
type SubenclosurePage struct {
	Code       PageCode
	Generation uint32
	Entries    []SubenclosureData
}

// ParseSubenclosurePage decodes a Subenclosure Help Text or Subenclosure String In page. Each
// entry is a 4 byte header carrying the subenclosure id and data length, followed by the data.
func ParseSubenclosurePage(b []byte) (*SubenclosurePage, error) {
	code := PageSubenclosureHelpText
	if len(b) > 0 && PageCode(b[0]) == PageSubenclosureStringIn {
		code = PageSubenclosureStringIn
	}

	hdr, page, _, err := parseHeader(code, b, true)
	if err != nil {
		return nil, err
	}

	p := &SubenclosurePage{Code: code, Generation: hdr.Generation}
	off := statusPageHeaderLen

	for i := 0; i <= int(hdr.Byte1) && off < len(page); i++ {
		if off+4 > len(page) {
			return nil, truncated(code, off+4, len(page))
		}

		n := int(binary.BigEndian.Uint16(page[off+2:]))
		if off+4+n > len(page) {
			return nil, truncated(code, off+4+n, len(page))
		}

		p.Entries = append(p.Entries, SubenclosureData{
			SubenclosureID: page[off+1],
			Data:           page[off+4 : off+4+n],
		})
		off += 4 + n
	}

	return p, nil
}

// Nickname is one descriptor of the Subenclosure Nickname Status page.
type Nickname struct {
	SubenclosureID   uint8
	Status           uint8
	AdditionalStatus uint8
	LanguageCode     string
	Name             string
}

// ParseNicknames decodes a Subenclosure Nickname Status page.
func ParseNicknames(b []byte) (uint32, []Nickname, error) {
	hdr, page, _, err := parseHeader(PageSubenclosureNickname, b, true)
	if err != nil {
		return 0, nil, err
	}

	var names []Nickname
	for off := statusPageHeaderLen; off+nicknameDescLen <= len(page); off += nicknameDescLen {
		d := page[off : off+nicknameDescLen]
		lang := ""
		if d[6] != 0 || d[7] != 0 {
			lang = string(d[6:8])
		}

		names = append(names, Nickname{
			SubenclosureID:   d[1],
			Status:           d[2],
			AdditionalStatus: d[3],
			LanguageCode:     lang,
			Name:             asciiField(d[8:nicknameDescLen]),
		})
	}

	return hdr.Generation, names, nil
}
