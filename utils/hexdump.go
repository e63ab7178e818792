// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Hex dump and hex text parsing.

package utils

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// HexDump writes buf to w, 16 bytes per line, with a leading offset, the bytes grouped by four
// and a trailing ASCII rendering. Runs of all-zero lines are collapsed to a single "...." line,
// although the final line is always printed so that the length of the buffer remains visible.
func HexDump(w io.Writer, buf []byte, prefix string) {
	ow := 8
	if len(buf) < 0x100 {
		ow = 2
	} else if len(buf) < 0x10000 {
		ow = 4
	}

	lastLineZero := false
	printContinue := true

	for offset := 0; offset < len(buf); offset += 16 {
		end := offset + 16
		if end > len(buf) {
			end = len(buf)
		}

		line := buf[offset:end]

		if isZeros(line) && end < len(buf) {
			if lastLineZero {
				if printContinue {
					fmt.Fprintf(w, "%s        ....\n", prefix)
					printContinue = false
				}
				continue
			}
			lastLineZero = true
		} else {
			lastLineZero = false
			printContinue = true
		}

		fmt.Fprintf(w, "%s%0*x: ", prefix, ow, offset)
		for i, c := range line {
			fmt.Fprintf(w, "%02x", c)
			if i%4 == 3 {
				fmt.Fprint(w, " ")
			}
		}

		// Pad out short final line so that the ASCII column lines up
		pad := (16-len(line))*2 + (16-len(line)+3)/4
		fmt.Fprintf(w, "%*s  ", pad, "")

		for _, c := range line {
			if c >= ' ' && c <= '~' {
				fmt.Fprintf(w, "%c", c)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w)
	}
}

func isZeros(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}

	return true
}

// ParseHex parses whitespace or comma separated hex bytes, as produced by "sg_ses --hex" or
// typed by hand. Each token is either a single byte ("1c", "0x1c") or an even-length run of
// hex digits ("0100003c"). Anything after a '#' is a comment, and tokens ending in ':' are
// treated as offsets and skipped.
func ParseHex(r io.Reader) ([]byte, error) {
	var out []byte

	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		fields := strings.FieldsFunc(line, func(c rune) bool {
			return c == ' ' || c == '\t' || c == ','
		})

		for _, tok := range fields {
			if strings.HasSuffix(tok, ":") {
				continue
			}

			tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
			if len(tok) == 1 {
				tok = "0" + tok
			}

			if len(tok)%2 != 0 {
				return nil, fmt.Errorf("line %d: odd number of hex digits in %q", lineNum, tok)
			}

			for i := 0; i < len(tok); i += 2 {
				v, err := strconv.ParseUint(tok[i:i+2], 16, 8)
				if err != nil {
					return nil, fmt.Errorf("line %d: %v", lineNum, err)
				}
				out = append(out, byte(v))
			}
		}
	}

	return out, scanner.Err()
}
