// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
	"log/slog"
)

// Pages holds the raw diagnostic pages used by a join. Configuration and EnclosureStatus are
// required; a nil optional page is treated as absent.
type Pages struct {
	Configuration     []byte
	EnclosureStatus   []byte
	ElementDescriptor []byte
	AdditionalStatus  []byte
	ThresholdIn       []byte
}

// JoinRow is one overall or individual element. The Ei* fields are the element's position in
// each of the index spaces that AES descriptors may use, or -1 where the element is not
// counted:
//
//	EiIOE   every element, overall ones included; this is also the row's position
//	EiEOE   individual elements only
//	EiAESS  individual elements of types that carry additional status
//	EiASC   individual SAS connector elements
type JoinRow struct {
	ThIndex        int
	IndivIndex     int // -1 for the overall element
	ElementType    ElementType
	SubenclosureID uint8

	EiIOE  int
	EiEOE  int
	EiAESS int
	EiASC  int

	esOff    int
	thOff    int
	edOff    int
	edLen    int
	aesOff   int
	aesLen   int
	aesEiioe uint8
	devSlot  int
	sasAddr  [8]byte
}

// IsOverall reports whether the row is the overall element of its type.
func (r *JoinRow) IsOverall() bool {
	return r.IndivIndex < 0
}

// Ref returns the row's position in the type descriptor table.
func (r *JoinRow) Ref() ElementRef {
	return ElementRef{
		TypeIndex:      r.ThIndex,
		Index:          r.IndivIndex,
		Type:           r.ElementType,
		SubenclosureID: r.SubenclosureID,
	}
}

func (r *JoinRow) String() string {
	return r.Ref().String()
}

// DeviceSlot returns the device slot number reported by the row's AES descriptor.
func (r *JoinRow) DeviceSlot() (int, bool) {
	return r.devSlot, r.devSlot >= 0
}

// SASAddress returns the SAS address reported by the row's AES descriptor.
func (r *JoinRow) SASAddress() ([8]byte, bool) {
	return r.sasAddr, r.sasAddr != [8]byte{}
}

func (r *JoinRow) HasThreshold() bool        { return r.thOff >= 0 }
func (r *JoinRow) HasDescriptor() bool       { return r.edOff >= 0 }
func (r *JoinRow) HasAdditionalStatus() bool { return r.aesOff >= 0 }

// JoinSession holds the pages of one join and the rows built from them. The pages are
// borrowed; callers must not modify them while the session is in use.
type JoinSession struct {
	opts Options
	log  *slog.Logger

	cfg        *Configuration
	generation uint32
	es         []byte
	ed         []byte
	aes        []byte
	th         []byte

	rows   []JoinRow
	byEOE  []int
	byAESS []int
	byASC  []int

	warnings     []error
	brokenEI     bool
	autoOverride bool

	// Control pages built by SetField, keyed by page code, pending until flushed.
	pending map[PageCode][]byte
	masked  map[int]bool
}

// Join builds one row per overall and individual element described by the Configuration page,
// and attaches the matching parts of the other pages. Fatal errors are returned; recoverable
// problems are logged and collected in Warnings.
func Join(pages Pages, opts Options) (*JoinSession, error) {
	s := &JoinSession{
		opts:    opts,
		log:     opts.logger().With("component", "join"),
		pending: make(map[PageCode][]byte),
		masked:  make(map[int]bool),
	}

	cfg, err := ParseConfiguration(pages.Configuration, opts.maxTypeHeaders())
	if err != nil {
		return nil, err
	}
	s.cfg = cfg

	esHdr, es, _, err := parseHeader(PageEnclosureStatus, pages.EnclosureStatus, true)
	if err != nil {
		return nil, err
	}
	s.es = es
	s.generation = esHdr.Generation

	if cfg.Generation != s.generation {
		return nil, &GenerationError{Page: PageConfiguration, Want: s.generation, Got: cfg.Generation}
	}

	if s.ed, err = s.optionalPage(PageElementDescriptor, pages.ElementDescriptor); err != nil {
		return nil, err
	}

	if s.aes, err = s.optionalPage(PageAdditionalStatus, pages.AdditionalStatus); err != nil {
		return nil, err
	}

	if s.th, err = s.optionalPage(PageThresholdIn, pages.ThresholdIn); err != nil {
		return nil, err
	}

	needed := cfg.NumElements()
	if needed > opts.maxRows() {
		return nil, fmt.Errorf("%d elements, maximum %d: %w", needed, opts.maxRows(), ErrCapacityExceeded)
	}

	have := (len(es) - statusPageHeaderLen) / elementLen
	if have < needed {
		return nil, truncated(PageEnclosureStatus, statusPageHeaderLen+needed*elementLen, len(es))
	}

	if have > needed {
		s.warn(fmt.Errorf("enclosure status page has %d elements, configuration describes %d", have, needed))
	}

	s.buildRows(needed)

	if s.aes != nil {
		s.attachAdditionalStatus()
	}

	return s, nil
}

// optionalPage validates a secondary page. A missing page is not an error; a page claiming to
// be longer than the buffer is clamped.
func (s *JoinSession) optionalPage(code PageCode, b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}

	hdr, page, clamped, err := parseHeader(code, b, false)
	if err != nil {
		return nil, err
	}

	if hdr.Generation != s.generation {
		return nil, &GenerationError{Page: code, Want: s.generation, Got: hdr.Generation}
	}

	if clamped {
		s.warn(fmt.Errorf("%w: %s page declares %d bytes, have %d", ErrTruncated, code,
			hdr.Length+pageHeaderLen, len(b)))
	}

	return page, nil
}

func (s *JoinSession) warn(err error) {
	s.warnings = append(s.warnings, err)
	s.log.Warn(err.Error())
}

// buildRows walks the type descriptor table, assigning every element its position in each
// index space and its offsets into the ES, TH and ED pages.
func (s *JoinSession) buildRows(n int) {
	s.rows = make([]JoinRow, 0, n)

	var (
		eoe, aess, asc int
		edOff          = statusPageHeaderLen
		edShort        bool
		thShort        bool
	)

	for ti, th := range s.cfg.TypeHeaders {
		for ii := -1; ii < th.NumElements; ii++ {
			k := len(s.rows)
			r := JoinRow{
				ThIndex:        ti,
				IndivIndex:     ii,
				ElementType:    th.ElementType,
				SubenclosureID: th.SubenclosureID,
				EiIOE:          k,
				EiEOE:          -1,
				EiAESS:         -1,
				EiASC:          -1,
				esOff:          statusPageHeaderLen + k*elementLen,
				thOff:          -1,
				edOff:          -1,
				aesOff:         -1,
				devSlot:        -1,
			}

			if ii >= 0 {
				r.EiEOE = eoe
				s.byEOE = append(s.byEOE, k)
				eoe++

				if th.ElementType.AESRelevant() {
					r.EiAESS = aess
					s.byAESS = append(s.byAESS, k)
					aess++
				}

				if th.ElementType == ElementSASConnector {
					r.EiASC = asc
					s.byASC = append(s.byASC, k)
					asc++
				}
			}

			if s.th != nil && !thShort {
				if r.esOff+elementLen <= len(s.th) {
					r.thOff = r.esOff
				} else {
					thShort = true
					s.warn(fmt.Errorf("%w: %s page ends before element %s", ErrTruncated,
						PageThresholdIn, r.String()))
				}
			}

			if s.ed != nil && !edShort {
				if textOff, textLen, ok := descriptorSpan(s.ed, edOff); ok {
					r.edOff, r.edLen = textOff, textLen
					edOff = textOff + textLen
				} else {
					edShort = true
					s.warn(fmt.Errorf("%w: %s page ends before element %s", ErrTruncated,
						PageElementDescriptor, r.String()))
				}
			}

			s.rows = append(s.rows, r)
		}
	}
}

// attachAdditionalStatus matches every AES descriptor to at most one row, and every row to at
// most one descriptor.
func (s *JoinSession) attachAdditionalStatus() {
	spans, ok := walkAdditionalStatus(s.aes)
	if !ok {
		s.warn(fmt.Errorf("%w: last %s descriptor runs past end of page", ErrTruncated,
			PageAdditionalStatus))
	}

	// pos is the position in the AES index space of the next element expected to have a
	// descriptor, used for descriptors without an element index.
	pos := 0
	expected := func() int {
		for pos < len(s.byAESS) && s.rows[s.byAESS[pos]].aesOff >= 0 {
			pos++
		}

		if pos < len(s.byAESS) {
			return s.byAESS[pos]
		}

		return -1
	}

	for k, sp := range spans {
		d := s.aes[sp.off : sp.off+sp.len]
		eip := d[0]&0x10 != 0

		if !eip || (s.brokenEI && s.effectiveEiioe(k, eiioeField(d), -1) == 0) {
			ri := expected()
			if ri < 0 {
				s.warn(&IndexError{Descriptor: k, ElementIndex: -1, Reason: "no element left to attach to"})
				continue
			}

			s.attach(ri, sp, 0)
			continue
		}

		if len(d) < 4 {
			s.warn(&IndexError{Descriptor: k, ElementIndex: -1, Reason: "descriptor too short"})
			continue
		}

		ei := int(d[3])
		eiioe := s.effectiveEiioe(k, eiioeField(d), ei)
		ri, found := s.resolve(ei, eiioe, RoleElement)

		if eiioe == 0 {
			// Firmware reporting index 0 for every descriptor either lands outside the
			// expected type header or on a row that was already claimed.
			if exp := expected(); exp >= 0 && brokenIndexSignature(d) &&
				(!found || s.rows[ri].aesOff >= 0 || s.rows[ri].ThIndex != s.rows[exp].ThIndex) {

				s.brokenEI = true
				s.warn(fmt.Errorf("AES descriptor %d: element index %d does not fit the expected %s element, "+
					"assuming broken element indexes", k, ei, s.rows[exp].ElementType))
				ri, found = exp, true
			}
		}

		if !found {
			s.warn(&IndexError{Descriptor: k, ElementIndex: ei, Eiioe: eiioe, Reason: "no such element"})
			continue
		}

		if s.rows[ri].aesOff >= 0 {
			s.warn(fmt.Errorf("AES descriptor %d: element %s already has additional status, ignoring",
				k, s.rows[ri].String()))
			continue
		}

		s.attach(ri, sp, eiioe)

		if aess := s.rows[ri].EiAESS; aess >= pos {
			pos = aess + 1
		}
	}
}

func eiioeField(d []byte) uint8 {
	if len(d) < 3 {
		return 0
	}

	return d[2] & 0x03
}

func (s *JoinSession) attach(ri int, sp aesSpan, eiioe uint8) {
	r := &s.rows[ri]
	r.aesOff, r.aesLen, r.aesEiioe = sp.off, sp.len, eiioe

	a := decodeAdditionalStatus(s.aes[sp.off:sp.off+sp.len], sp.off, r.ElementType)
	if slot, ok := a.DeviceSlot(); ok {
		r.devSlot = slot
	}

	if addr, ok := a.SASAddress(); ok {
		r.sasAddr = addr
	}
}

// Rows returns the joined rows in Enclosure Status order. The slice must not be modified.
func (s *JoinSession) Rows() []JoinRow {
	return s.rows
}

// Row returns the row at position i, which is also its EiIOE index.
func (s *JoinSession) Row(i int) (*JoinRow, error) {
	if i < 0 || i >= len(s.rows) {
		return nil, fmt.Errorf("row %d: %w", i, ErrNoSuchElement)
	}

	return &s.rows[i], nil
}

func (s *JoinSession) Configuration() *Configuration { return s.cfg }
func (s *JoinSession) Generation() uint32            { return s.generation }

// BrokenEI reports whether descriptors with a bogus element index were attached positionally.
func (s *JoinSession) BrokenEI() bool { return s.brokenEI }

// AutoOverride reports whether EiioeAuto decided to treat EIIOE as 1.
func (s *JoinSession) AutoOverride() bool { return s.autoOverride }

// Warnings returns the recoverable problems found while joining.
func (s *JoinSession) Warnings() []error { return s.warnings }

// Status returns the 4 status bytes of the row.
func (s *JoinSession) Status(r *JoinRow) []byte {
	return s.es[r.esOff : r.esOff+elementLen]
}

// Threshold returns the 4 threshold bytes of the row, or nil.
func (s *JoinSession) Threshold(r *JoinRow) []byte {
	if !r.HasThreshold() {
		return nil
	}

	return s.th[r.thOff : r.thOff+elementLen]
}

// Descriptor returns the element descriptor text of the row.
func (s *JoinSession) Descriptor(r *JoinRow) (string, bool) {
	if !r.HasDescriptor() {
		return "", false
	}

	return asciiField(s.ed[r.edOff : r.edOff+r.edLen]), true
}

// AdditionalStatusBytes returns the raw AES descriptor of the row, or nil.
func (s *JoinSession) AdditionalStatusBytes(r *JoinRow) []byte {
	if !r.HasAdditionalStatus() {
		return nil
	}

	return s.aes[r.aesOff : r.aesOff+r.aesLen]
}

// AdditionalStatus decodes the AES descriptor of the row, or returns nil.
func (s *JoinSession) AdditionalStatus(r *JoinRow) *AdditionalStatus {
	d := s.AdditionalStatusBytes(r)
	if d == nil {
		return nil
	}

	return decodeAdditionalStatus(d, r.aesOff, r.ElementType)
}
