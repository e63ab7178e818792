// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI command definitions.

package scsi

import (
	"encoding/binary"
	"fmt"
)

const (
	// SCSI commands used by this package
	SCSI_INQUIRY                   = 0x12
	SCSI_RECEIVE_DIAGNOSTIC_RESULT = 0x1c
	SCSI_SEND_DIAGNOSTIC           = 0x1d

	// Minimum length of standard INQUIRY response
	INQ_REPLY_LEN = 36

	// Peripheral device type of an enclosure services device
	PDT_SES = 0x0d

	// Largest allocation length sg3_utils will use for a diagnostic page. Some HBAs choke on
	// lengths that are not a multiple of four.
	MAX_DIAG_ALLOC_LEN = 0xfffc

	// RECEIVE DIAGNOSTIC RESULTS: page code valid
	RDR_PCV = 0x01
	// SEND DIAGNOSTIC: page format
	SD_PF = 0x10
)

// SCSI CDB types
type CDB6 [6]byte
type CDB10 [10]byte
type CDB16 [16]byte

// SCSI INQUIRY response
type InquiryResponse struct {
	Peripheral   byte // peripheral qualifier, device type
	_            byte
	Version      byte
	_            [5]byte
	VendorIdent  [8]byte
	ProductIdent [16]byte
	ProductRev   [4]byte
}

func (inq InquiryResponse) String() string {
	return fmt.Sprintf("%.8s  %.16s  %.4s", inq.VendorIdent, inq.ProductIdent, inq.ProductRev)
}

// DeviceType returns the peripheral device type.
func (inq InquiryResponse) DeviceType() uint8 {
	return inq.Peripheral & 0x1f
}

// receiveDiagnosticCDB builds a RECEIVE DIAGNOSTIC RESULTS CDB requesting a specific page.
func receiveDiagnosticCDB(pageCode uint8, allocLen int) CDB6 {
	cdb := CDB6{SCSI_RECEIVE_DIAGNOSTIC_RESULT, RDR_PCV, pageCode}
	binary.BigEndian.PutUint16(cdb[3:], uint16(allocLen))

	return cdb
}

// sendDiagnosticCDB builds a SEND DIAGNOSTIC CDB carrying a page format parameter list.
func sendDiagnosticCDB(paramLen int) CDB6 {
	cdb := CDB6{SCSI_SEND_DIAGNOSTIC, SD_PF}
	binary.BigEndian.PutUint16(cdb[3:], uint16(paramLen))

	return cdb
}
