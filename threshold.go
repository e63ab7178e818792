// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
)

// ThresholdPage is a decoded Threshold In page.
type ThresholdPage struct {
	Generation uint32
	Invop      bool
	Elements   [][]byte
}

// ParseThresholdIn splits a Threshold In page into its 4-byte elements.
func ParseThresholdIn(b []byte) (*ThresholdPage, error) {
	hdr, page, _, err := parseHeader(PageThresholdIn, b, true)
	if err != nil {
		return nil, err
	}

	return &ThresholdPage{
		Generation: hdr.Generation,
		Invop:      hdr.Byte1&0x10 != 0,
		Elements:   splitElements(page[statusPageHeaderLen:]),
	}, nil
}

// Decode labels each threshold element using the type descriptor table.
func (p *ThresholdPage) Decode(headers []TypeDescriptorHeader) []DecodedElement {
	return decodeElements(p.Elements, headers, DecodeThreshold)
}

var thresholdNames = [4]string{"high_crit", "high_warn", "low_warn", "low_crit"}

// DecodeThreshold decodes the four threshold bytes of an element. Temperature thresholds are
// offset by 20 degrees C. Voltage and current thresholds are in units of 0.5% of nominal.
func DecodeThreshold(t ElementType, b []byte) []FieldValue {
	if len(b) < elementLen {
		return []FieldValue{rawField(b)}
	}

	out := make([]FieldValue, len(thresholdNames))
	for i, name := range thresholdNames {
		v := uint64(b[i])
		fv := FieldValue{Name: name, Value: v}

		switch t {
		case ElementTemperatureSensor:
			if v == 0 {
				fv.Text = "disabled"
			} else {
				fv.Text = fmt.Sprintf("%d C", int(v)-20)
			}
		case ElementVoltageSensor, ElementCurrentSensor:
			fv.Text = fmt.Sprintf("%.1f %%", float64(v)/2)
		default:
			fv.Text = fmt.Sprintf("%d", v)
		}

		out[i] = fv
	}

	return out
}
