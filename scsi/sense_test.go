// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fixedSense(key, asc, ascq byte) []byte {
	b := make([]byte, 18)
	b[0] = 0x70
	b[2] = key
	b[7] = 10
	b[12] = asc
	b[13] = ascq

	return b
}

func TestParseSense(t *testing.T) {
	assert := assert.New(t)

	s, ok := ParseSense(fixedSense(SENSE_ILLEGAL_REQUEST, 0x24, 0x00))
	assert.True(ok)
	assert.Equal(uint8(SENSE_ILLEGAL_REQUEST), s.Key)
	assert.Equal(uint8(0x24), s.ASC)
	assert.Equal("Illegal Request, asc/ascq: 0x24/0x00 (Invalid field in cdb)", s.String())

	s, ok = ParseSense([]byte{0x73, SENSE_UNIT_ATTENTION, 0x29, 0x00, 0, 0, 0, 0})
	assert.True(ok)
	assert.True(s.Deferred())
	assert.Equal(uint8(0x29), s.ASC)

	_, ok = ParseSense([]byte{0x00, 0x00, 0x00})
	assert.False(ok)

	_, ok = ParseSense(nil)
	assert.False(ok)
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		status uint8
		sense  []byte
		want   Kind
	}{
		{STATUS_GOOD, nil, KindClean},
		{STATUS_BUSY, nil, KindBusy},
		{STATUS_RESERVATION_CONFLICT, nil, KindReservationConflict},
		{STATUS_CHECK_CONDITION, fixedSense(SENSE_ILLEGAL_REQUEST, 0x24, 0x00), KindIllegalRequest},
		{STATUS_CHECK_CONDITION, fixedSense(SENSE_ILLEGAL_REQUEST, 0x20, 0x00), KindInvalidOpcode},
		{STATUS_CHECK_CONDITION, fixedSense(SENSE_NOT_READY, 0x04, 0x01), KindNotReady},
		{STATUS_CHECK_CONDITION, fixedSense(SENSE_HARDWARE_ERROR, 0x35, 0x03), KindMediumHard},
		{STATUS_CHECK_CONDITION, fixedSense(SENSE_UNIT_ATTENTION, 0x29, 0x00), KindUnitAttention},
		{STATUS_CHECK_CONDITION, fixedSense(SENSE_ABORTED_COMMAND, 0x00, 0x00), KindAbortedCommand},
		{STATUS_CHECK_CONDITION, nil, KindOther},
		{0x7e, nil, KindOther},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%#02x/%v", tt.status, tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.status, tt.sense))
		})
	}
}

func TestSgioErrorKind(t *testing.T) {
	assert := assert.New(t)

	err := fmt.Errorf("receive diagnostic results: %w", SgioError{
		ScsiStatus: STATUS_CHECK_CONDITION,
		SenseBuf:   fixedSense(SENSE_ILLEGAL_REQUEST, 0x24, 0x00),
	})

	assert.Equal(KindIllegalRequest, KindOf(err))
	assert.Contains(err.Error(), "Invalid field in cdb")

	assert.Equal(KindTransport, KindOf(SgioError{HostStatus: 0x01}))
	assert.Equal(KindTransport, KindOf(errors.New("ioctl failed")))
	assert.Equal(KindClean, KindOf(nil))
}

func TestDiagnosticCDBs(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(CDB6{0x1c, 0x01, 0x02, 0xff, 0xfc, 0x00}, receiveDiagnosticCDB(0x02, MAX_DIAG_ALLOC_LEN))
	assert.Equal(CDB6{0x1d, 0x10, 0x00, 0x00, 0x24, 0x00}, sendDiagnosticCDB(0x24))
}

func TestInquiryResponse(t *testing.T) {
	inq := InquiryResponse{Peripheral: 0x0d}
	copy(inq.VendorIdent[:], "LSI     ")
	copy(inq.ProductIdent[:], "SAS2X36         ")
	copy(inq.ProductRev[:], "0718")

	assert.Equal(t, uint8(PDT_SES), inq.DeviceType())
	assert.Equal(t, "LSI     "+"  "+"SAS2X36         "+"  "+"0718", inq.String())
}
