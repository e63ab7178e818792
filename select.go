// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

type selectorKind int

const (
	selectIndividual selectorKind = iota // II counting individual elements of all types
	selectTyped                          // TI,II or TYPE,II
	selectSlot
	selectSASAddr
	selectDescriptor
)

// Selector picks join rows by index, device slot number, SAS address or descriptor text.
type Selector struct {
	kind      selectorKind
	typeIndex int         // -1 when selecting by element type
	etype     ElementType // only with typeIndex -1
	first     int
	last      int
	slot      int
	sasAddr   uint64
	text      string
}

// ParseSelector parses one of:
//
//	II            individual element II, counting individual elements of all types
//	TI,II         individual element II of type header TI; II -1 is the overall element
//	TYPE,II       as above, for the first type header of element type TYPE (e.g. "dev,3")
//	TI,II-JJ      a range of individual elements
//	dsn=N         the element whose additional status reports device slot N
//	sas=ADDR      the element whose additional status reports SAS address ADDR
//	desc=TEXT     the element whose descriptor is TEXT
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)

	if k, v, ok := strings.Cut(s, "="); ok {
		switch strings.ToLower(k) {
		case "dsn", "slot":
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return Selector{}, fmt.Errorf("bad device slot number %q", v)
			}
			return Selector{kind: selectSlot, slot: n}, nil

		case "sas", "sas_addr":
			n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(v), "0x"), 16, 64)
			if err != nil {
				return Selector{}, fmt.Errorf("bad SAS address %q", v)
			}
			return Selector{kind: selectSASAddr, sasAddr: n}, nil

		case "desc", "descriptor":
			return Selector{kind: selectDescriptor, text: v}, nil
		}

		return Selector{}, fmt.Errorf("unknown selector %q", k)
	}

	head, tail, typed := strings.Cut(s, ",")
	if !typed {
		n, err := strconv.Atoi(head)
		if err != nil || n < 0 {
			return Selector{}, fmt.Errorf("bad element index %q", s)
		}
		return Selector{kind: selectIndividual, first: n, last: n}, nil
	}

	sel := Selector{kind: selectTyped, typeIndex: -1}
	if n, err := strconv.Atoi(head); err == nil {
		sel.typeIndex = n
	} else {
		t, err := ParseElementType(head)
		if err != nil {
			return Selector{}, err
		}
		sel.etype = t
	}

	lo, hi, isRange := strings.Cut(tail, "-")
	if tail == "-1" {
		lo, isRange = "-1", false
	}

	first, err := strconv.Atoi(lo)
	if err != nil || first < -1 {
		return Selector{}, fmt.Errorf("bad individual index %q", tail)
	}
	sel.first, sel.last = first, first

	if isRange {
		last, err := strconv.Atoi(hi)
		if err != nil || last < first {
			return Selector{}, fmt.Errorf("bad individual index range %q", tail)
		}
		sel.last = last
	}

	return sel, nil
}

func (sel Selector) matches(s *JoinSession, r *JoinRow) bool {
	switch sel.kind {
	case selectIndividual:
		return r.EiEOE >= sel.first && r.EiEOE <= sel.last && r.EiEOE >= 0
	case selectTyped:
		return r.ThIndex == sel.typeIndex && r.IndivIndex >= sel.first && r.IndivIndex <= sel.last
	case selectSlot:
		slot, ok := r.DeviceSlot()
		return ok && slot == sel.slot
	case selectSASAddr:
		addr, ok := r.SASAddress()
		return ok && binary.BigEndian.Uint64(addr[:]) == sel.sasAddr
	case selectDescriptor:
		text, ok := s.Descriptor(r)
		return ok && text == sel.text
	}

	return false
}

// Find returns the rows picked by sel, in row order.
func (s *JoinSession) Find(sel Selector) ([]*JoinRow, error) {
	if sel.kind == selectTyped && sel.typeIndex < 0 {
		for ti, th := range s.cfg.TypeHeaders {
			if th.ElementType == sel.etype {
				sel.typeIndex = ti
				break
			}
		}
	}

	var out []*JoinRow
	for i := range s.rows {
		if sel.matches(s, &s.rows[i]) {
			out = append(out, &s.rows[i])
		}
	}

	if len(out) == 0 {
		return nil, ErrNoSuchElement
	}

	return out, nil
}
