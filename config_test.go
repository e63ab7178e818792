// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfiguration(t *testing.T) {
	b := buildConfig(7,
		TypeDescriptorHeader{ElementType: ElementDeviceSlot, NumElements: 12, Text: "Drive Slots"},
		TypeDescriptorHeader{ElementType: ElementPowerSupply, NumElements: 2},
		TypeDescriptorHeader{ElementType: ElementTemperatureSensor, NumElements: 3, Text: "Temp"},
	)

	cfg, err := ParseConfiguration(b, 0)
	require.NoError(t, err)

	assert.Equal(t, uint32(7), cfg.Generation)
	require.Len(t, cfg.Enclosures, 1)

	p := cfg.Primary()
	assert.Equal(t, "ACME", p.Vendor)
	assert.Equal(t, "Shelf 9000", p.Product)
	assert.Equal(t, "0102", p.Revision)
	assert.Equal(t, uint8(1), p.RelESProcessID)
	assert.Equal(t, uint8(1), p.NumESProcesses)
	assert.Equal(t, [8]byte{0x50, 1, 2, 3, 4, 5, 6, 7}, p.LogicalID)

	require.Len(t, cfg.TypeHeaders, 3)
	assert.Equal(t, ElementDeviceSlot, cfg.TypeHeaders[0].ElementType)
	assert.Equal(t, 12, cfg.TypeHeaders[0].NumElements)
	assert.Equal(t, "Drive Slots", cfg.TypeHeaders[0].Text)
	assert.Equal(t, "", cfg.TypeHeaders[1].Text)
	assert.Equal(t, "Temp", cfg.TypeHeaders[2].Text)
	assert.Equal(t, 13+3+4, cfg.NumElements())
}

func TestParseConfigurationSubenclosures(t *testing.T) {
	body := enclosureDesc(0, 1, "ACME", "Primary", "0001")
	body = append(body, enclosureDesc(1, 2, "ACME", "Secondary", "0002")...)
	body = append(body,
		byte(ElementEnclosure), 1, 0, 0,
		byte(ElementEnclosure), 1, 1, 0,
		byte(ElementPowerSupply), 2, 1, 0,
	)

	cfg, err := ParseConfiguration(buildPage(PageConfiguration, 1, 3, body), 0)
	require.NoError(t, err)

	require.Len(t, cfg.Enclosures, 2)
	assert.Equal(t, "Secondary", cfg.Enclosures[1].Product)
	assert.Equal(t, uint8(1), cfg.Enclosures[1].SubenclosureID)

	require.Len(t, cfg.TypeHeaders, 3)
	assert.Equal(t, uint8(1), cfg.TypeHeaders[2].SubenclosureID)
}

func TestParseConfigurationErrors(t *testing.T) {
	good := buildConfig(1, header(ElementDeviceSlot, 4), header(ElementCooling, 2))

	t.Run("truncated headers", func(t *testing.T) {
		// Declared page length still covers the cut-off buffer.
		b := append([]byte(nil), good[:len(good)-2]...)
		b[2], b[3] = 0, byte(len(b)-4)

		_, err := ParseConfiguration(b, 0)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("buffer shorter than page length", func(t *testing.T) {
		_, err := ParseConfiguration(good[:len(good)-1], 0)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("too many headers", func(t *testing.T) {
		_, err := ParseConfiguration(good, 1)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("wrong page", func(t *testing.T) {
		_, err := ParseConfiguration(buildStatus(1, 8), 0)
		assert.ErrorIs(t, err, ErrPageMismatch)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := ParseConfiguration([]byte{0x01, 0, 0, 0}, 0)
		assert.ErrorIs(t, err, ErrTruncated)
	})
}
