// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"encoding/binary"

	"github.com/stretchr/testify/mock"
)

// Builders for synthetic SES pages used throughout the tests.

func buildPage(code PageCode, byte1 uint8, gen uint32, body []byte) []byte {
	b := make([]byte, statusPageHeaderLen, statusPageHeaderLen+len(body))
	b[0] = byte(code)
	b[1] = byte1
	binary.BigEndian.PutUint16(b[2:], uint16(4+len(body)))
	binary.BigEndian.PutUint32(b[4:], gen)

	return append(b, body...)
}

func padded(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)

	return b
}

func enclosureDesc(subID uint8, numHeaders int, vendor, product, rev string) []byte {
	d := []byte{0x11, subID, byte(numHeaders), 36}
	d = append(d, 0x50, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, byte(0x07+subID))
	d = append(d, padded(vendor, 8)...)
	d = append(d, padded(product, 16)...)

	return append(d, padded(rev, 4)...)
}

// buildConfig returns a Configuration page with a single primary enclosure.
func buildConfig(gen uint32, headers ...TypeDescriptorHeader) []byte {
	body := enclosureDesc(0, len(headers), "ACME", "Shelf 9000", "0102")

	for _, h := range headers {
		body = append(body, byte(h.ElementType), byte(h.NumElements), h.SubenclosureID, byte(len(h.Text)))
	}

	for _, h := range headers {
		body = append(body, h.Text...)
	}

	return buildPage(PageConfiguration, 0, gen, body)
}

func header(t ElementType, n int) TypeDescriptorHeader {
	return TypeDescriptorHeader{ElementType: t, NumElements: n}
}

// buildStatus returns an Enclosure Status page with n elements, element k holding
// {0x01, k, 0, 0} (status OK).
func buildStatus(gen uint32, n int) []byte {
	body := make([]byte, 0, n*elementLen)
	for k := 0; k < n; k++ {
		body = append(body, 0x01, byte(k), 0, 0)
	}

	return buildPage(PageEnclosureStatus, 0, gen, body)
}

func buildDescriptors(gen uint32, texts ...string) []byte {
	var body []byte
	for _, t := range texts {
		body = append(body, 0, 0, byte(len(t)>>8), byte(len(t)))
		body = append(body, t...)
	}

	return buildPage(PageElementDescriptor, 0, gen, body)
}

func buildAES(gen uint32, descs ...[]byte) []byte {
	var body []byte
	for _, d := range descs {
		body = append(body, d...)
	}

	return buildPage(PageAdditionalStatus, 0, gen, body)
}

func sasAddr(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}

func sasPhy(addr uint64) []byte {
	phy := make([]byte, sasPhyDescLen)
	phy[0] = 0x10 // end device
	phy[3] = 0x08 // SSP target
	copy(phy[4:], sasAddr(0x500605b000000001))
	copy(phy[12:], sasAddr(addr))

	return phy
}

// sasDevice returns a SAS device slot descriptor with EIP set and a single phy.
func sasDevice(eiioe, ei, slot uint8, addr uint64) []byte {
	d := []byte{0x16, 0, eiioe & 0x03, ei, 1, 0x00, 0, slot}
	d = append(d, sasPhy(addr)...)
	d[1] = byte(len(d) - aesHeaderLen)

	return d
}

// sasDeviceNoEIP returns a SAS device slot descriptor without an element index.
func sasDeviceNoEIP(addr uint64) []byte {
	d := []byte{0x06, 0, 1, 0x00}
	d = append(d, sasPhy(addr)...)
	d[1] = byte(len(d) - aesHeaderLen)

	return d
}

// sasExpander returns a SAS expander descriptor with EIP set. Each phy is a pair of
// connector and other element indexes.
func sasExpander(eiioe, ei uint8, addr uint64, phys ...[2]uint8) []byte {
	d := []byte{0x16, 0, eiioe & 0x03, ei, byte(len(phys)), 0x40, 0, 0}
	d = append(d, sasAddr(addr)...)
	for _, p := range phys {
		d = append(d, p[0], p[1])
	}
	d[1] = byte(len(d) - aesHeaderLen)

	return d
}

// mockWriter records control pages sent by a join session.
type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) SendDiagnostic(pageCode uint8, payload []byte) error {
	args := m.Called(pageCode, payload)
	return args.Error(0)
}

// mockTransport serves pages to a PageReader.
type mockTransport struct {
	mockWriter
}

func (m *mockTransport) ReceiveDiagnostic(pageCode uint8, maxLen int) ([]byte, error) {
	args := m.Called(pageCode, maxLen)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}
