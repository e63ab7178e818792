// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

// ParseSupportedPages decodes a Supported Diagnostic Pages or Supported SES Diagnostic Pages
// page into a list of page codes.
func ParseSupportedPages(b []byte) ([]PageCode, error) {
	if len(b) == 0 {
		return nil, truncated(PageSupportedDiagnostic, pageHeaderLen, 0)
	}

	code := PageCode(b[0])
	if code != PageSupportedSES {
		code = PageSupportedDiagnostic
	}

	_, page, _, err := parseHeader(code, b, true)
	if err != nil {
		return nil, err
	}

	codes := make([]PageCode, 0, len(page)-pageHeaderLen)
	for _, c := range page[pageHeaderLen:] {
		codes = append(codes, PageCode(c))
	}

	return codes, nil
}

// ParseHelpText returns the text of a Help Text page.
func ParseHelpText(b []byte) (string, error) {
	_, page, _, err := parseHeader(PageHelpText, b, true)
	if err != nil {
		return "", err
	}

	return asciiField(page[pageHeaderLen:]), nil
}

// ParseStringIn returns the vendor specific contents of a String In page.
func ParseStringIn(b []byte) ([]byte, error) {
	_, page, _, err := parseHeader(PageStringIn, b, true)
	if err != nil {
		return nil, err
	}

	return page[pageHeaderLen:], nil
}
