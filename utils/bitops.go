// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Big-endian bit-field operations.

package utils

import (
	"encoding/binary"
	"fmt"
)

// BitSpan returns the number of bytes, counted from the start of the buffer, needed to hold a
// bit-field starting at startBit (7 = MSB) of startByte and running for numBits bits.
func BitSpan(startByte, startBit, numBits int) int {
	last := startByte*8 + (7 - startBit) + numBits - 1
	return last/8 + 1
}

// GetBits reads an unsigned bit-field of up to 64 bits. Bit numbering follows the SCSI
// convention: startBit 7 is the most significant bit of startByte, and the field continues
// into the following bytes.
func GetBits(b []byte, startByte, startBit, numBits int) uint64 {
	var v uint64

	pos := startByte*8 + (7 - startBit)
	for i := 0; i < numBits; i++ {
		p := pos + i
		bit := (b[p/8] >> (7 - uint(p%8))) & 1
		v = v<<1 | uint64(bit)
	}

	return v
}

// SetBits writes the low numBits bits of v into a bit-field, leaving the surrounding bits
// untouched. The caller is responsible for range checking v.
func SetBits(b []byte, startByte, startBit, numBits int, v uint64) {
	pos := startByte*8 + (7 - startBit)
	for i := 0; i < numBits; i++ {
		p := pos + i
		mask := byte(1) << (7 - uint(p%8))

		if (v>>uint(numBits-1-i))&1 == 1 {
			b[p/8] |= mask
		} else {
			b[p/8] &^= mask
		}
	}
}

// FitsBits reports whether v can be stored in a field numBits wide.
func FitsBits(v uint64, numBits int) bool {
	if numBits >= 64 {
		return true
	}

	return v>>uint(numBits) == 0
}

// FormatSASAddress formats an 8 byte NAA SAS address the way sg3_utils prints it.
func FormatSASAddress(addr [8]byte) string {
	return fmt.Sprintf("0x%016x", binary.BigEndian.Uint64(addr[:]))
}
