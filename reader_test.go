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

func TestPageReaderRead(t *testing.T) {
	m := &mockTransport{}
	// Trailing bytes beyond the page length are dropped.
	m.On("ReceiveDiagnostic", uint8(PageEnclosureStatus), DefaultAllocLen).
		Return(append(buildStatus(3, 2), 0xff, 0xff), nil)
	m.On("ReceiveDiagnostic", uint8(PageConfiguration), DefaultAllocLen).
		Return(buildStatus(3, 2), nil)
	m.On("ReceiveDiagnostic", uint8(PageHelpText), DefaultAllocLen).
		Return([]byte{0x03, 0}, nil)

	r := NewPageReader(m, DiscardLogger())

	p, err := r.Read(PageEnclosureStatus)
	require.NoError(t, err)
	assert.Len(t, p.Raw, 16)
	assert.Equal(t, uint32(3), p.Generation)
	assert.Equal(t, 12, p.Length)

	_, err = r.Read(PageConfiguration)
	assert.ErrorIs(t, err, ErrPageMismatch)

	_, err = r.Read(PageHelpText)
	assert.ErrorIs(t, err, ErrTruncated)

	m.AssertExpectations(t)
}

func TestPageReaderSend(t *testing.T) {
	m := &mockTransport{}
	m.On("SendDiagnostic", uint8(PageEnclosureControl), mock.Anything).Return(nil).Once()

	r := NewPageReader(m, DiscardLogger())
	require.NoError(t, r.SendDiagnostic(uint8(PageEnclosureControl), buildStatus(1, 1)))

	err := r.SendDiagnostic(uint8(PageThresholdOut), buildStatus(1, 1))
	assert.ErrorIs(t, err, ErrPageMismatch)

	m.AssertExpectations(t)
}

func TestFetchJoinPagesOptional(t *testing.T) {
	m := &mockTransport{}
	m.On("ReceiveDiagnostic", uint8(PageConfiguration), mock.Anything).
		Return(buildConfig(1, header(ElementDeviceSlot, 1)), nil)
	m.On("ReceiveDiagnostic", uint8(PageEnclosureStatus), mock.Anything).
		Return(buildStatus(1, 2), nil)
	m.On("ReceiveDiagnostic", uint8(PageElementDescriptor), mock.Anything).
		Return(buildDescriptors(1, "Slots", "Slot 0"), nil)
	m.On("ReceiveDiagnostic", uint8(PageAdditionalStatus), mock.Anything).
		Return(nil, errors.New("Illegal Request"))
	m.On("ReceiveDiagnostic", uint8(PageThresholdIn), mock.Anything).
		Return(nil, errors.New("Illegal Request"))

	pages, err := NewPageReader(m, DiscardLogger()).FetchJoinPages()
	require.NoError(t, err)
	assert.NotNil(t, pages.ElementDescriptor)
	assert.Nil(t, pages.AdditionalStatus)
	assert.Nil(t, pages.ThresholdIn)
}

func TestFetchJoinPagesRequired(t *testing.T) {
	m := &mockTransport{}
	m.On("ReceiveDiagnostic", uint8(PageConfiguration), mock.Anything).
		Return(nil, errors.New("Not Ready"))

	_, err := NewPageReader(m, DiscardLogger()).FetchJoinPages()
	assert.EqualError(t, err, "reading Configuration (SES) page: Not Ready")
}

func TestJoinDeviceRetriesStaleGeneration(t *testing.T) {
	m := &mockTransport{}
	cfg := buildConfig(2, header(ElementDeviceSlot, 1))

	m.On("ReceiveDiagnostic", uint8(PageConfiguration), mock.Anything).Return(cfg, nil)
	// The enclosure changes between the first pair of reads.
	m.On("ReceiveDiagnostic", uint8(PageEnclosureStatus), mock.Anything).Return(buildStatus(3, 2), nil).Once()
	m.On("ReceiveDiagnostic", uint8(PageEnclosureStatus), mock.Anything).Return(buildStatus(2, 2), nil).Once()
	m.On("ReceiveDiagnostic", mock.Anything, mock.Anything).Return(nil, ErrPageNotAvailable)

	s, err := JoinDevice(NewPageReader(m, DiscardLogger()), quietOptions(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), s.Generation())
	assert.Len(t, s.Rows(), 2)
	m.AssertNumberOfCalls(t, "ReceiveDiagnostic", 10)
}

func TestJoinDeviceGivesUp(t *testing.T) {
	m := &mockTransport{}
	m.On("ReceiveDiagnostic", uint8(PageConfiguration), mock.Anything).
		Return(buildConfig(2, header(ElementDeviceSlot, 1)), nil)
	m.On("ReceiveDiagnostic", uint8(PageEnclosureStatus), mock.Anything).Return(buildStatus(3, 2), nil)
	m.On("ReceiveDiagnostic", mock.Anything, mock.Anything).Return(nil, ErrPageNotAvailable)

	_, err := JoinDevice(NewPageReader(m, DiscardLogger()), quietOptions(), 2)
	assert.ErrorIs(t, err, ErrStaleGenerationCode)
}

func TestBufferTransport(t *testing.T) {
	bt := NewBufferTransport()
	bt.SetPage(buildConfig(1, header(ElementDeviceSlot, 1)))
	bt.SetPage(buildStatus(1, 2))

	assert.Equal(t, []PageCode{PageConfiguration, PageEnclosureStatus}, bt.PageCodes())

	r := NewPageReader(bt, DiscardLogger())
	s, err := JoinDevice(r, quietOptions(), 0)
	require.NoError(t, err)

	row, err := s.Row(1)
	require.NoError(t, err)
	require.NoError(t, s.SetField(row, FieldSpec{Acronym: "ident"}, 1, true))

	sent := bt.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, PageEnclosureControl, sent[0].Code)
	assert.Equal(t, byte(0x80), sent[0].Raw[12]&0x80, "select")
	assert.Equal(t, byte(0x02), sent[0].Raw[14]&0x02, "ident")

	_, err = bt.ReceiveDiagnostic(uint8(PageHelpText), 100)
	assert.ErrorIs(t, err, ErrPageNotAvailable)
}
