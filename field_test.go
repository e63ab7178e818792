// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseFieldSpec(t *testing.T) {
	tests := []struct {
		in   string
		want FieldSpec
	}{
		{"ident", FieldSpec{Acronym: "ident"}},
		{"IDENT", FieldSpec{Acronym: "ident"}},
		{"th:high_crit", FieldSpec{Acronym: "high_crit", Page: PageThresholdIn}},
		{"2:1", FieldSpec{StartByte: 2, StartBit: 1, NumBits: 1}},
		{"2:7:8", FieldSpec{StartByte: 2, StartBit: 7, NumBits: 8}},
		{"0x2:1:1", FieldSpec{StartByte: 2, StartBit: 1, NumBits: 1}},
		{"1ch:7:64", FieldSpec{StartByte: 28, StartBit: 7, NumBits: 64}},
		{"aes:20:7:64", FieldSpec{Page: PageAdditionalStatus, StartByte: 20, StartBit: 7, NumBits: 64}},
		{"ec:3:5", FieldSpec{Page: PageEnclosureControl, StartByte: 3, StartBit: 5, NumBits: 1}},
		{"010:7", FieldSpec{StartByte: 10, StartBit: 7, NumBits: 1}},
		{"08:1:09", FieldSpec{StartByte: 8, StartBit: 1, NumBits: 9}},
	}

	for _, tt := range tests {
		got, err := ParseFieldSpec(tt.in)
		if assert.NoError(t, err, tt.in) {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}

	for _, in := range []string{"1:8", "2:1:0", "2:1:65", "128:7", "127:0:2", "120:7:65"} {
		_, err := ParseFieldSpec(in)
		assert.ErrorIs(t, err, ErrOutOfRange, in)
	}

	for _, in := range []string{"", "1:2:3:4", "x:1", "1:y", "0x:1"} {
		_, err := ParseFieldSpec(in)
		assert.Error(t, err, in)
	}
}

func TestParseValue(t *testing.T) {
	for in, want := range map[string]uint64{
		"0":    0,
		"010":  10,
		"09":   9,
		"0x10": 16,
		"0X1f": 31,
		"10h":  16,
	} {
		got, err := ParseValue(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}

	for _, in := range []string{"", "0x", "h", "-1", "1f"} {
		_, err := ParseValue(in)
		assert.Error(t, err, in)
	}
}

func TestLookupAcronym(t *testing.T) {
	a, err := LookupAcronym("ident", 0, ElementDeviceSlot)
	require.NoError(t, err)
	assert.Equal(t, 2, a.StartByte)
	assert.Equal(t, 1, a.StartBit)

	// Falls through to the generic entry.
	a, err = LookupAcronym("ident", 0, ElementCooling)
	require.NoError(t, err)
	assert.Equal(t, 1, a.StartByte)
	assert.Equal(t, 7, a.StartBit)

	a, err = LookupAcronym("temp", 0, ElementTemperatureSensor)
	require.NoError(t, err)
	assert.Equal(t, 8, a.NumBits)

	_, err = LookupAcronym("temp", 0, ElementDeviceSlot)
	assert.ErrorIs(t, err, ErrAcronymWrongElementType)

	_, err = LookupAcronym("no_such_thing", 0, ElementDeviceSlot)
	assert.ErrorIs(t, err, ErrAcronymNotFound)

	_, err = LookupAcronym("ident", PageThresholdIn, ElementDeviceSlot)
	assert.ErrorIs(t, err, ErrAcronymNotFound)

	for _, a := range Acronyms(PageThresholdIn) {
		assert.Equal(t, PageThresholdIn, a.Page)
	}
	assert.Len(t, Acronyms(PageThresholdIn), 4)
}

// fieldSession joins a device slot, a temperature sensor and an expander. Rows are:
// 0 slot overall, 1 slot 0, 2 sensor overall, 3 sensor 0, 4 expander overall, 5 expander 0.
func fieldSession(t *testing.T, opts Options) *JoinSession {
	t.Helper()

	es := buildPage(PageEnclosureStatus, 0x0f, 9, []byte{
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x05, 0x00, 0x40, // OK, slot address 5, fault sensed
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 45, 0x00, // 25 C
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	})
	th := buildPage(PageThresholdIn, 0, 9, []byte{
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
		80, 70, 20, 10,
		0, 0, 0, 0,
		0, 0, 0, 0,
	})

	s, err := Join(Pages{
		Configuration: buildConfig(9,
			header(ElementDeviceSlot, 1),
			header(ElementTemperatureSensor, 1),
			header(ElementSASExpander, 1),
		),
		EnclosureStatus:  es,
		ThresholdIn:      th,
		AdditionalStatus: buildAES(9, sasDevice(0, 0, 7, 0x5000c500deadbeef)),
	}, opts)
	require.NoError(t, err)

	return s
}

func mustRow(t *testing.T, s *JoinSession, i int) *JoinRow {
	t.Helper()

	r, err := s.Row(i)
	require.NoError(t, err)

	return r
}

func TestGetField(t *testing.T) {
	s := fieldSession(t, quietOptions())
	slot := mustRow(t, s, 1)
	sensor := mustRow(t, s, 3)

	tests := []struct {
		row  *JoinRow
		spec string
		want uint64
	}{
		{slot, "status", 1},
		{slot, "slot_addr", 5},
		{slot, "fault_sensed", 1},
		{slot, "ident", 0},
		{slot, "1:7:8", 5},
		{slot, "dsn", 7},
		{slot, "sas_addr", 0x5000c500deadbeef},
		{slot, "aes:20:7:64", 0x5000c500deadbeef},
		{sensor, "temp", 45},
		{sensor, "high_crit", 80},
		{sensor, "low_crit", 10},
		{sensor, "th:1:7:8", 70},
	}

	for _, tt := range tests {
		spec, err := ParseFieldSpec(tt.spec)
		require.NoError(t, err)

		got, err := s.GetField(tt.row, spec)
		if assert.NoError(t, err, tt.spec) {
			assert.Equal(t, tt.want, got, tt.spec)
		}
	}

	_, err := s.GetField(slot, FieldSpec{StartByte: 4, StartBit: 7, NumBits: 1})
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = s.GetField(mustRow(t, s, 5), FieldSpec{Acronym: "num_phys"})
	assert.ErrorIs(t, err, ErrFieldUnavailable, "expander has no AES descriptor")

	_, err = s.GetField(sensor, FieldSpec{Acronym: "dnr"})
	assert.ErrorIs(t, err, ErrAcronymWrongElementType)
}

func TestSetFieldMasking(t *testing.T) {
	s := fieldSession(t, quietOptions())
	slot := mustRow(t, s, 1)

	require.NoError(t, s.SetField(slot, FieldSpec{Acronym: "ident"}, 1, false))

	img := s.Pending(PageEnclosureControl)
	require.NotNil(t, img)
	assert.Equal(t, byte(PageEnclosureControl), img[0])
	assert.Equal(t, byte(0), img[1], "status flags cleared")
	assert.Equal(t, []byte{0, 0, 0, 9}, img[4:8], "generation code kept")
	assert.Equal(t, []byte{0x80, 0x00, 0x02, 0x00}, img[12:16])

	// The status page itself is untouched.
	assert.Equal(t, []byte{0x01, 0x05, 0x00, 0x40}, s.Status(slot))

	v, err := s.GetField(slot, FieldSpec{Acronym: "ident"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	// A second field on the same element keeps the first.
	require.NoError(t, s.SetField(slot, FieldSpec{Acronym: "fault"}, 1, false))
	assert.Equal(t, []byte{0x80, 0x00, 0x02, 0x20}, img[12:16])

	require.NoError(t, s.ClearField(slot, FieldSpec{Acronym: "ident"}, false))
	assert.Equal(t, []byte{0x80, 0x00, 0x00, 0x20}, img[12:16])
}

func TestSetFieldIgnoreMask(t *testing.T) {
	opts := quietOptions()
	opts.IgnoreMask = true

	s := fieldSession(t, opts)
	slot := mustRow(t, s, 1)

	require.NoError(t, s.SetField(slot, FieldSpec{Acronym: "ident"}, 1, false))
	assert.Equal(t, []byte{0x81, 0x05, 0x02, 0x40}, s.Pending(PageEnclosureControl)[12:16])
}

func TestSetFieldErrors(t *testing.T) {
	s := fieldSession(t, quietOptions())
	slot := mustRow(t, s, 1)

	err := s.SetField(slot, FieldSpec{Acronym: "ident"}, 2, false)
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = s.SetField(slot, FieldSpec{Acronym: "sas_addr"}, 1, false)
	assert.ErrorIs(t, err, ErrReadOnly)

	err = s.SetField(slot, FieldSpec{StartByte: 3, StartBit: 0, NumBits: 2}, 1, false)
	assert.ErrorIs(t, err, ErrOutOfRange, "field runs past the element")

	err = s.SetField(slot, FieldSpec{Acronym: "high_crit"}, 1, false)
	require.NoError(t, err)

	assert.Nil(t, s.Pending(PageEnclosureControl))
	assert.NotNil(t, s.Pending(PageThresholdOut))

	err = s.Flush()
	assert.ErrorIs(t, err, ErrNoWriter)
}

func TestSetFieldBatch(t *testing.T) {
	w := &mockWriter{}
	opts := quietOptions()
	opts.Writer = w

	s := fieldSession(t, opts)
	slot := mustRow(t, s, 1)
	sensor := mustRow(t, s, 3)

	w.On("SendDiagnostic", uint8(PageEnclosureControl), mock.MatchedBy(func(b []byte) bool {
		return len(b) == 32 && b[13] == 0x00 && b[14] == 0x02 && b[15] == 0x20 && b[20] == 0x80
	})).Return(nil).Once()
	w.On("SendDiagnostic", uint8(PageThresholdOut), mock.MatchedBy(func(b []byte) bool {
		return b[20] == 90 && b[21] == 70 && b[1] == 0
	})).Return(nil).Once()

	require.NoError(t, s.SetField(slot, FieldSpec{Acronym: "ident"}, 1, false))
	require.NoError(t, s.SetField(sensor, FieldSpec{Acronym: "high_crit"}, 90, false))
	require.NoError(t, s.SetField(sensor, FieldSpec{Acronym: "select"}, 1, false))
	w.AssertNotCalled(t, "SendDiagnostic", mock.Anything, mock.Anything)

	require.NoError(t, s.SetField(slot, FieldSpec{Acronym: "fault"}, 1, true))
	w.AssertExpectations(t)

	assert.Nil(t, s.Pending(PageEnclosureControl))
	assert.Nil(t, s.Pending(PageThresholdOut))

	// Threshold Out pages carry no select bits.
	v, err := s.GetField(sensor, FieldSpec{Acronym: "high_crit"})
	require.NoError(t, err)
	assert.Equal(t, uint64(80), v, "reads see the status page again after a flush")
}

func TestFlushError(t *testing.T) {
	w := &mockWriter{}
	w.On("SendDiagnostic", mock.Anything, mock.Anything).Return(errors.New("device gone"))

	opts := quietOptions()
	opts.Writer = w

	s := fieldSession(t, opts)
	err := s.SetField(mustRow(t, s, 1), FieldSpec{Acronym: "ident"}, 1, true)
	assert.EqualError(t, err, "sending Enclosure Status/Control (SES) page: device gone")
	assert.NotNil(t, s.Pending(PageEnclosureControl), "kept for a retry")
}

func TestWriteMask(t *testing.T) {
	assert.Equal(t, [4]byte{0x40, 0x00, 0x4e, 0x3c}, WriteMask(ElementDeviceSlot))
	assert.Equal(t, [4]byte{0x40, 0xff, 0x4e, 0x3c}, WriteMask(ElementArrayDeviceSlot))
	assert.Equal(t, [4]byte{0x40, 0x80, 0x00, 0x40}, WriteMask(ElementSASConnector))
	assert.Equal(t, [4]byte{0x40, 0, 0, 0}, WriteMask(0x80))
}

func TestFieldRoundTrip(t *testing.T) {
	for _, page := range []PageCode{PageEnclosureStatus, PageThresholdIn} {
		for _, a := range Acronyms(page) {
			et := ElementDeviceSlot
			if a.ElementType != AnyElementType {
				et = ElementType(a.ElementType)
			}

			s := joinPages(t, Pages{
				Configuration:   buildConfig(1, header(et, 1)),
				EnclosureStatus: buildStatus(1, 2),
				ThresholdIn:     buildPage(PageThresholdIn, 0, 1, make([]byte, 8)),
			}, quietOptions())

			r, err := s.Row(1)
			require.NoError(t, err)

			spec := FieldSpec{Acronym: a.Name, Page: page}
			ones := ^uint64(0) >> (64 - a.NumBits)

			for _, v := range []uint64{ones, 1, 0} {
				// Written elements always carry SELECT.
				if a.Name == "select" && v == 0 {
					continue
				}

				require.NoError(t, s.SetField(r, spec, v, false), "%s %s", page.Abbrev(), a.Name)

				got, err := s.GetField(r, spec)
				require.NoError(t, err, "%s %s", page.Abbrev(), a.Name)
				assert.Equal(t, v, got, "%s %s=%#x on %s", page.Abbrev(), a.Name, v, et)
			}
		}
	}
}
