// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBits(t *testing.T) {
	assert := assert.New(t)

	b := []byte{0x80, 0x05, 0xa5, 0x3c}

	assert.Equal(uint64(1), GetBits(b, 0, 7, 1))
	assert.Equal(uint64(0), GetBits(b, 0, 6, 1))
	// Cooling element "actual speed": byte 1 bit 2, 11 bits wide
	assert.Equal(uint64(0x5a5), GetBits(b, 1, 2, 11))
	assert.Equal(uint64(0xa53c), GetBits(b, 2, 7, 16))
	assert.Equal(uint64(0x8005a53c), GetBits(b, 0, 7, 32))
	assert.Equal(uint64(0x3), GetBits(b, 3, 5, 2))
}

func TestGetBits64(t *testing.T) {
	b := []byte{0x50, 0x00, 0xc5, 0x00, 0x12, 0x34, 0x56, 0x78}
	assert.Equal(t, uint64(0x5000c50012345678), GetBits(b, 0, 7, 64))
}

func TestSetBits(t *testing.T) {
	assert := assert.New(t)

	b := []byte{0xff, 0x00, 0x00, 0xff}

	SetBits(b, 0, 5, 2, 0)
	assert.Equal(byte(0x9f), b[0])

	SetBits(b, 1, 2, 11, 0x5a5)
	assert.Equal([]byte{0x9f, 0x05, 0xa5, 0xff}, b)
	assert.Equal(uint64(0x5a5), GetBits(b, 1, 2, 11))

	// Only the low bits of the value are written
	SetBits(b, 3, 3, 4, 0xf0)
	assert.Equal(byte(0xf0), b[3])
}

func TestBitSpan(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1, BitSpan(0, 7, 1))
	assert.Equal(1, BitSpan(0, 7, 8))
	assert.Equal(2, BitSpan(0, 0, 2))
	assert.Equal(4, BitSpan(2, 7, 16))
	assert.Equal(20, BitSpan(12, 7, 64))
}

func TestFitsBits(t *testing.T) {
	assert := assert.New(t)

	assert.True(FitsBits(1, 1))
	assert.False(FitsBits(2, 1))
	assert.True(FitsBits(255, 8))
	assert.False(FitsBits(256, 8))
	assert.True(FitsBits(^uint64(0), 64))
}

func TestFormatSASAddress(t *testing.T) {
	addr := [8]byte{0x50, 0x00, 0xc5, 0x00, 0x12, 0x34, 0x56, 0x78}
	assert.Equal(t, "0x5000c50012345678", FormatSASAddress(addr))
}
