// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
	"strings"
)

// EiioeMode selects how the element index of an Additional Element Status descriptor is
// interpreted. Overrides only apply to descriptors whose EIIOE field is 0.
type EiioeMode int

const (
	// Use the EIIOE field of each descriptor.
	EiioeDeclared EiioeMode = iota

	// Treat EIIOE as 1 if the first descriptor has EIP set and element index 1. Some
	// enclosures count overall elements but leave EIIOE at 0.
	EiioeAuto

	// Always treat EIIOE as 1.
	EiioeForce
)

func (m EiioeMode) String() string {
	switch m {
	case EiioeDeclared:
		return "declared"
	case EiioeAuto:
		return "auto"
	case EiioeForce:
		return "force"
	}

	return fmt.Sprintf("EiioeMode(%d)", int(m))
}

// ParseEiioeMode accepts "declared" (or ""), "auto" and "force".
func ParseEiioeMode(s string) (EiioeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "declared", "none":
		return EiioeDeclared, nil
	case "auto":
		return EiioeAuto, nil
	case "force":
		return EiioeForce, nil
	}

	return EiioeDeclared, fmt.Errorf("unknown EIIOE mode %q", s)
}

// IndexRole says what an element index in an AES descriptor refers to. The same numeric index
// maps to different index spaces depending on EIIOE and on its role.
type IndexRole int

const (
	// The element index of the descriptor itself.
	RoleElement IndexRole = iota

	// The connector element index of an expander or port phy.
	RoleConnector

	// The other element index of an expander or port phy.
	RoleOther
)

// resolve maps an element index to a row index. Overall rows are never a valid target.
//
//	EIIOE  element   connector  other
//	  0    ei_aess   ei_asc     ei_aess
//	  1    ei_ioe    ei_ioe     ei_ioe
//	  2    ei_eoe    ei_eoe     ei_eoe
//	  3    ei_ioe    ei_eoe     ei_eoe
func (s *JoinSession) resolve(ei int, eiioe uint8, role IndexRole) (int, bool) {
	var space []int

	switch eiioe {
	case 0:
		if role == RoleConnector {
			space = s.byASC
		} else {
			space = s.byAESS
		}
	case 1:
		return s.resolveIOE(ei)
	case 2:
		space = s.byEOE
	case 3:
		if role == RoleElement {
			return s.resolveIOE(ei)
		}
		space = s.byEOE
	}

	if ei < 0 || ei >= len(space) {
		return -1, false
	}

	return space[ei], true
}

func (s *JoinSession) resolveIOE(ei int) (int, bool) {
	if ei < 0 || ei >= len(s.rows) || s.rows[ei].IsOverall() {
		return -1, false
	}

	return ei, true
}

// effectiveEiioe applies the session's EIIOE mode to the declared field of descriptor k.
func (s *JoinSession) effectiveEiioe(k int, declared uint8, ei int) uint8 {
	switch s.opts.Eiioe {
	case EiioeForce:
		if declared == 0 {
			return 1
		}
	case EiioeAuto:
		if k == 0 && ei == 1 {
			s.autoOverride = true
			s.log.Debug("first AES descriptor has element index 1, treating EIIOE as 1")
		}

		if s.autoOverride && declared == 0 {
			return 1
		}
	}

	return declared
}

// brokenIndexSignature matches the SAS device descriptors of enclosures whose firmware reports
// element index 0 for every descriptor: EIP set, a single phy, and index 0.
func brokenIndexSignature(d []byte) bool {
	return len(d) > 4 &&
		d[0]&0x10 != 0 &&
		Protocol(d[0]&0x0f) == ProtocolSAS &&
		d[3] == 0 &&
		d[4] == 1
}

// ResolveReference resolves a connector or other element index found in the AES descriptor of
// row r, using the EIIOE convention that applied to that descriptor.
func (s *JoinSession) ResolveReference(r *JoinRow, ei uint8, role IndexRole) (*JoinRow, bool) {
	if ei == noElementIndex || !r.HasAdditionalStatus() {
		return nil, false
	}

	ri, ok := s.resolve(int(ei), r.aesEiioe, role)
	if !ok {
		return nil, false
	}

	return &s.rows[ri], true
}
