// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dswarbrick/ses/utils"
)

const (
	// Fields must lie within the first 128 bytes of an element or descriptor.
	maxFieldByte = 127
	maxFieldBits = 64

	selectBit = 0x80
)

// PageWriter sends a control page to an enclosure.
type PageWriter interface {
	SendDiagnostic(pageCode uint8, payload []byte) error
}

// FieldSpec names a bit-field either by acronym or by byte/bit position. Page selects the page
// the field lives on; zero means the Enclosure Status page for positional fields, and any page
// for acronyms.
type FieldSpec struct {
	Acronym   string
	Page      PageCode
	StartByte int
	StartBit  int
	NumBits   int
}

func (f FieldSpec) String() string {
	prefix := ""
	if f.Page != 0 {
		prefix = f.Page.Abbrev() + ":"
	}

	if f.Acronym != "" {
		return prefix + f.Acronym
	}

	return fmt.Sprintf("%s%d:%d:%d", prefix, f.StartByte, f.StartBit, f.NumBits)
}

var fieldPages = map[string]PageCode{
	"es":  PageEnclosureStatus,
	"ec":  PageEnclosureControl,
	"th":  PageThresholdIn,
	"aes": PageAdditionalStatus,
}

// ParseFieldSpec parses "[page:]acronym" or "[page:]byte:bit[:bits]", where page is one of es,
// ec, th or aes. Numbers are decimal, or hex with a 0x prefix or h suffix.
func ParseFieldSpec(s string) (FieldSpec, error) {
	var f FieldSpec

	parts := strings.Split(strings.TrimSpace(s), ":")
	if page, ok := fieldPages[strings.ToLower(parts[0])]; ok && len(parts) > 1 {
		f.Page = page
		parts = parts[1:]
	}

	if len(parts) == 1 {
		if parts[0] == "" {
			return f, fmt.Errorf("empty field specification")
		}

		f.Acronym = strings.ToLower(parts[0])
		return f, nil
	}

	if len(parts) > 3 {
		return f, fmt.Errorf("field %q: expected byte:bit[:bits]", s)
	}

	nums := []int{0, 0, 1}
	for i, p := range parts {
		n, err := parseNumber(p)
		if err != nil {
			return f, fmt.Errorf("field %q: %w", s, err)
		}
		nums[i] = int(n)
	}

	f.StartByte, f.StartBit, f.NumBits = nums[0], nums[1], nums[2]
	return f, f.validate()
}

// parseNumber accepts decimal, 0x-prefixed hex and h-suffixed hex. A leading zero does not
// mean octal.
func parseNumber(s string) (uint64, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch {
	case strings.HasPrefix(s, "0x"):
		return strconv.ParseUint(s[2:], 16, 64)
	case strings.HasSuffix(s, "h"):
		return strconv.ParseUint(strings.TrimSuffix(s, "h"), 16, 64)
	}

	return strconv.ParseUint(s, 10, 64)
}

// ParseValue parses a field value in the same number syntax as field positions.
func ParseValue(s string) (uint64, error) {
	return parseNumber(s)
}

func (f FieldSpec) validate() error {
	switch {
	case f.NumBits < 1 || f.NumBits > maxFieldBits:
		return fmt.Errorf("%d bits: %w", f.NumBits, ErrOutOfRange)
	case f.StartBit < 0 || f.StartBit > 7:
		return fmt.Errorf("start bit %d: %w", f.StartBit, ErrOutOfRange)
	case f.StartByte < 0 || utils.BitSpan(f.StartByte, f.StartBit, f.NumBits) > maxFieldByte+1:
		return fmt.Errorf("field %s beyond byte %d: %w", f, maxFieldByte, ErrOutOfRange)
	}

	return nil
}

// Resolve turns an acronym into a positional field for element type t, and fills in the page of
// a positional field.
func (f FieldSpec) Resolve(t ElementType) (FieldSpec, error) {
	if f.Acronym == "" {
		if f.Page == 0 {
			f.Page = PageEnclosureStatus
		}

		return f, f.validate()
	}

	a, err := LookupAcronym(f.Acronym, f.Page, t)
	if err != nil {
		return f, err
	}

	return FieldSpec{
		Acronym:   a.Name,
		Page:      a.Page,
		StartByte: a.StartByte,
		StartBit:  a.StartBit,
		NumBits:   a.NumBits,
	}, nil
}

// Bits of a status element that keep their meaning in the control element of the same type.
// All other bits are cleared before a field is written, unless masking is disabled.
var writeMasks = [...][4]byte{
	ElementUnspecified:         {0x40, 0xff, 0xff, 0xff},
	ElementDeviceSlot:          {0x40, 0x00, 0x4e, 0x3c},
	ElementPowerSupply:         {0x40, 0x80, 0x00, 0x60},
	ElementCooling:             {0x40, 0x80, 0x00, 0x60},
	ElementTemperatureSensor:   {0x40, 0xc0, 0x00, 0x00},
	ElementDoor:                {0x40, 0xc0, 0x00, 0x01},
	ElementAudibleAlarm:        {0x40, 0xc0, 0x00, 0x5f},
	ElementESCE:                {0x40, 0xc0, 0x01, 0x00},
	ElementSCCE:                {0x40, 0xc0, 0x00, 0x00},
	ElementNonvolatileCache:    {0x40, 0xc0, 0x00, 0x00},
	ElementInvalidOpReason:     {0x40, 0x00, 0x00, 0x00},
	ElementUPS:                 {0x40, 0x00, 0x00, 0xc0},
	ElementDisplay:             {0x40, 0xc0, 0xff, 0xff},
	ElementKeyPadEntry:         {0x40, 0xc3, 0x00, 0x00},
	ElementEnclosure:           {0x40, 0x80, 0x00, 0xff},
	ElementSCSIPortTransceiver: {0x40, 0xc0, 0x00, 0x10},
	ElementLanguage:            {0x40, 0x80, 0xff, 0xff},
	ElementCommunicationPort:   {0x40, 0xc0, 0x00, 0x01},
	ElementVoltageSensor:       {0x40, 0xc0, 0x00, 0x00},
	ElementCurrentSensor:       {0x40, 0xc0, 0x00, 0x00},
	ElementSCSITargetPort:      {0x40, 0xc0, 0x00, 0x01},
	ElementSCSIInitiatorPort:   {0x40, 0xc0, 0x00, 0x01},
	ElementSimpleSubenclosure:  {0x40, 0xc0, 0x00, 0x00},
	ElementArrayDeviceSlot:     {0x40, 0xff, 0x4e, 0x3c},
	ElementSASExpander:         {0x40, 0xc0, 0x00, 0x00},
	ElementSASConnector:        {0x40, 0x80, 0x00, 0x40},
}

// WriteMask returns the control write mask for an element type.
func WriteMask(t ElementType) [4]byte {
	if int(t) < len(writeMasks) {
		return writeMasks[t]
	}

	return [4]byte{0x40, 0, 0, 0}
}

// fieldBytes returns the element or descriptor bytes holding a field of row r. Reads of status
// and threshold fields see a pending control image if one exists.
func (s *JoinSession) fieldBytes(r *JoinRow, page PageCode) ([]byte, error) {
	switch page {
	case PageEnclosureStatus:
		if img := s.pending[page]; img != nil {
			return img[r.esOff : r.esOff+elementLen], nil
		}

		return s.Status(r), nil

	case PageThresholdIn:
		if !r.HasThreshold() {
			return nil, fmt.Errorf("%s has no threshold element: %w", r, ErrFieldUnavailable)
		}

		if img := s.pending[page]; img != nil {
			return img[r.thOff : r.thOff+elementLen], nil
		}

		return s.Threshold(r), nil

	case PageAdditionalStatus:
		if !r.HasAdditionalStatus() {
			return nil, fmt.Errorf("%s has no additional status: %w", r, ErrFieldUnavailable)
		}

		return s.AdditionalStatusBytes(r), nil
	}

	return nil, fmt.Errorf("%s: %w", page, ErrFieldUnavailable)
}

// GetField reads a field of row r.
func (s *JoinSession) GetField(r *JoinRow, spec FieldSpec) (uint64, error) {
	f, err := spec.Resolve(r.ElementType)
	if err != nil {
		return 0, err
	}

	b, err := s.fieldBytes(r, f.Page)
	if err != nil {
		return 0, err
	}

	if utils.BitSpan(f.StartByte, f.StartBit, f.NumBits) > len(b) {
		return 0, fmt.Errorf("%s exceeds %d byte %s: %w", f, len(b), f.Page, ErrOutOfRange)
	}

	return utils.GetBits(b, f.StartByte, f.StartBit, f.NumBits), nil
}

// controlImage returns the pending control page built from a status page, creating it on first
// use. Byte 1 is cleared and the generation code is kept.
func (s *JoinSession) controlImage(page PageCode) []byte {
	if img := s.pending[page]; img != nil {
		return img
	}

	src := s.es
	if page == PageThresholdIn {
		src = s.th
	}

	img := make([]byte, len(src))
	copy(img, src)
	img[1] = 0
	s.pending[page] = img

	return img
}

// SetField writes value into a field of row r in the pending Enclosure Control or Threshold Out
// page. Enclosure Control elements are masked with the element type's write mask the first
// time they are touched, and get their SELECT bit set. If last is true the pending pages are
// flushed.
func (s *JoinSession) SetField(r *JoinRow, spec FieldSpec, value uint64, last bool) error {
	f, err := spec.Resolve(r.ElementType)
	if err != nil {
		return err
	}

	if f.Page == PageAdditionalStatus {
		return fmt.Errorf("%s: %w", f, ErrReadOnly)
	}

	if !utils.FitsBits(value, f.NumBits) {
		return fmt.Errorf("value %#x does not fit in %d bits: %w", value, f.NumBits, ErrOutOfRange)
	}

	if utils.BitSpan(f.StartByte, f.StartBit, f.NumBits) > elementLen {
		return fmt.Errorf("%s exceeds %d byte element: %w", f, elementLen, ErrOutOfRange)
	}

	// Check availability before creating a control image.
	if _, err := s.fieldBytes(r, f.Page); err != nil {
		return err
	}

	img := s.controlImage(f.Page)

	if f.Page == PageEnclosureStatus {
		elem := img[r.esOff : r.esOff+elementLen]

		if !s.opts.IgnoreMask && !s.masked[r.EiIOE] {
			mask := WriteMask(r.ElementType)
			for i := range elem {
				elem[i] &= mask[i]
			}
			s.masked[r.EiIOE] = true
		}

		utils.SetBits(elem, f.StartByte, f.StartBit, f.NumBits, value)
		elem[0] |= selectBit
	} else {
		utils.SetBits(img[r.thOff:r.thOff+elementLen], f.StartByte, f.StartBit, f.NumBits, value)
	}

	s.log.Debug("set field", "element", r.String(), "field", f.String(), "value", value)

	if last {
		return s.Flush()
	}

	return nil
}

// ClearField sets a field of row r to zero.
func (s *JoinSession) ClearField(r *JoinRow, spec FieldSpec, last bool) error {
	return s.SetField(r, spec, 0, last)
}

// Pending returns the pending control page for page, or nil.
func (s *JoinSession) Pending(page PageCode) []byte {
	return s.pending[page]
}

// Flush sends the pending Enclosure Control page, then the pending Threshold Out page. Pages
// that were sent successfully are discarded.
func (s *JoinSession) Flush() error {
	for _, page := range []PageCode{PageEnclosureControl, PageThresholdOut} {
		img := s.pending[page]
		if img == nil {
			continue
		}

		if s.opts.Writer == nil {
			return ErrNoWriter
		}

		if err := s.opts.Writer.SendDiagnostic(uint8(page), img); err != nil {
			return fmt.Errorf("sending %s page: %w", page, err)
		}

		s.log.Info("sent control page", "page", page.String(), "length", len(img))
		delete(s.pending, page)
		if page == PageEnclosureControl {
			s.masked = make(map[int]bool)
		}
	}

	return nil
}
