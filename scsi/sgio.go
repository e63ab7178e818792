// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI generic IO functions.

package scsi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dswarbrick/ses/ioctl"
)

const (
	SG_DXFER_NONE        = -1
	SG_DXFER_TO_DEV      = -2
	SG_DXFER_FROM_DEV    = -3
	SG_DXFER_TO_FROM_DEV = -4

	SG_INFO_OK_MASK = 0x1
	SG_INFO_OK      = 0x0

	SG_IO = 0x2285

	// Timeout in milliseconds
	DEFAULT_TIMEOUT = 20000

	SENSE_BUF_LEN = 32
)

// SCSI generic ioctl header, defined as sg_io_hdr_t in <scsi/sg.h>
type sgIoHdr struct {
	interface_id    int32   // 'S' for SCSI generic (required)
	dxfer_direction int32   // data transfer direction
	cmd_len         uint8   // SCSI command length (<= 16 bytes)
	mx_sb_len       uint8   // max length to write to sbp
	iovec_count     uint16  // 0 implies no scatter gather
	dxfer_len       uint32  // byte count of data transfer
	dxferp          uintptr // points to data transfer memory or scatter gather list
	cmdp            uintptr // points to command to perform
	sbp             uintptr // points to sense_buffer memory
	timeout         uint32  // MAX_UINT -> no timeout (unit: millisec)
	flags           uint32  // 0 -> default, see SG_FLAG...
	pack_id         int32   // unused internally (normally)
	usr_ptr         uintptr // unused internally
	status          uint8   // SCSI status
	masked_status   uint8   // shifted, masked scsi status
	msg_status      uint8   // messaging level data (optional)
	sb_len_wr       uint8   // byte count actually written to sbp
	host_status     uint16  // errors from host adapter
	driver_status   uint16  // errors from software driver
	resid           int32   // dxfer_len - actual_transferred
	duration        uint32  // time taken by cmd (unit: millisec)
	info            uint32  // auxiliary information
}

// SgioError is returned when the SG_IO ioctl itself succeeded, but the command did not
// complete cleanly.
type SgioError struct {
	ScsiStatus   uint8
	HostStatus   uint16
	DriverStatus uint16
	SenseBuf     []byte
}

func (e SgioError) Error() string {
	str := fmt.Sprintf("SCSI status: %#02x, host status: %#02x, driver status: %#02x",
		e.ScsiStatus, e.HostStatus, e.DriverStatus)

	if s, ok := ParseSense(e.SenseBuf); ok {
		str += ", sense: " + s.String()
	}

	return str
}

// Kind classifies the error. Host or driver failures without a SCSI status are reported as
// transport errors.
func (e SgioError) Kind() Kind {
	if e.ScsiStatus == STATUS_GOOD && (e.HostStatus != 0 || e.DriverStatus != 0) {
		return KindTransport
	}

	return CategoryOf(e.ScsiStatus, e.SenseBuf)
}

// KindOf returns the Kind of any error returned by this package. Errors not originating
// from a completed SCSI command (e.g. a failed open or ioctl) are transport errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindClean
	}

	var se SgioError
	if errors.As(err, &se) {
		return se.Kind()
	}

	return KindTransport
}

// SCSIDevice is a SCSI generic (sg) device node, typically an enclosure services device such
// as /dev/sg3.
type SCSIDevice struct {
	Name    string
	Timeout uint32 // milliseconds, zero means DEFAULT_TIMEOUT
	fd      int
}

func NewSCSIDevice(name string) *SCSIDevice {
	return &SCSIDevice{Name: name, fd: -1}
}

func (d *SCSIDevice) Open() (err error) {
	d.fd, err = unix.Open(d.Name, unix.O_RDWR, 0600)
	return err
}

func (d *SCSIDevice) Close() error {
	return unix.Close(d.fd)
}

func (d *SCSIDevice) execGenericIO(hdr *sgIoHdr, senseBuf []byte) error {
	if err := ioctl.Ioctl(uintptr(d.fd), SG_IO, uintptr(unsafe.Pointer(hdr))); err != nil {
		return err
	}

	// See http://www.t10.org/lists/2status.htm for SCSI status codes
	if hdr.info&SG_INFO_OK_MASK != SG_INFO_OK {
		err := SgioError{
			ScsiStatus:   hdr.status,
			HostStatus:   hdr.host_status,
			DriverStatus: hdr.driver_status,
		}

		if n := int(hdr.sb_len_wr); n > 0 {
			err.SenseBuf = append([]byte(nil), senseBuf[:n]...)
		}

		return err
	}

	return nil
}

// sendCDB sends a SCSI Command Descriptor Block to the device, transferring buf in the
// direction given. It returns the number of bytes actually transferred.
func (d *SCSIDevice) sendCDB(cdb []byte, dir int32, buf []byte) (int, error) {
	senseBuf := make([]byte, SENSE_BUF_LEN)

	timeout := d.Timeout
	if timeout == 0 {
		timeout = DEFAULT_TIMEOUT
	}

	// Populate required fields of "sg_io_hdr_t" struct
	hdr := sgIoHdr{
		interface_id:    'S',
		dxfer_direction: dir,
		timeout:         timeout,
		cmd_len:         uint8(len(cdb)),
		mx_sb_len:       uint8(len(senseBuf)),
		cmdp:            uintptr(unsafe.Pointer(&cdb[0])),
		sbp:             uintptr(unsafe.Pointer(&senseBuf[0])),
	}

	if len(buf) > 0 {
		hdr.dxfer_len = uint32(len(buf))
		hdr.dxferp = uintptr(unsafe.Pointer(&buf[0]))
	} else {
		hdr.dxfer_direction = SG_DXFER_NONE
	}

	if err := d.execGenericIO(&hdr, senseBuf); err != nil {
		return 0, err
	}

	return len(buf) - int(hdr.resid), nil
}

// Inquiry sends a standard SCSI INQUIRY command to the device.
func (d *SCSIDevice) Inquiry() (InquiryResponse, error) {
	var resp InquiryResponse

	respBuf := make([]byte, INQ_REPLY_LEN)

	cdb := CDB6{SCSI_INQUIRY}
	binary.BigEndian.PutUint16(cdb[3:], uint16(len(respBuf)))

	if _, err := d.sendCDB(cdb[:], SG_DXFER_FROM_DEV, respBuf); err != nil {
		return resp, err
	}

	binary.Read(bytes.NewBuffer(respBuf), binary.BigEndian, &resp)

	return resp, nil
}

// ReceiveDiagnostic issues RECEIVE DIAGNOSTIC RESULTS for the given page code and returns the
// bytes the device actually transferred, which may be fewer than maxLen.
func (d *SCSIDevice) ReceiveDiagnostic(pageCode uint8, maxLen int) ([]byte, error) {
	if maxLen <= 0 || maxLen > MAX_DIAG_ALLOC_LEN {
		maxLen = MAX_DIAG_ALLOC_LEN
	}

	respBuf := make([]byte, maxLen)
	cdb := receiveDiagnosticCDB(pageCode, maxLen)

	n, err := d.sendCDB(cdb[:], SG_DXFER_FROM_DEV, respBuf)
	if err != nil {
		return nil, fmt.Errorf("receive diagnostic results, page %#02x: %w", pageCode, err)
	}

	return respBuf[:n], nil
}

// SendDiagnostic issues SEND DIAGNOSTIC with the page format bit set, carrying a complete
// control page (header included) as the parameter list.
func (d *SCSIDevice) SendDiagnostic(pageCode uint8, payload []byte) error {
	if len(payload) > 0 && payload[0] != pageCode {
		return fmt.Errorf("send diagnostic: payload holds page %#02x, not %#02x", payload[0], pageCode)
	}

	cdb := sendDiagnosticCDB(len(payload))

	if _, err := d.sendCDB(cdb[:], SG_DXFER_TO_DEV, payload); err != nil {
		return fmt.Errorf("send diagnostic, page %#02x: %w", pageCode, err)
	}

	return nil
}
