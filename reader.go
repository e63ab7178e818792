// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// DefaultAllocLen is the allocation length used for RECEIVE DIAGNOSTIC RESULTS.
const DefaultAllocLen = 0xfffc

// Transport issues RECEIVE DIAGNOSTIC RESULTS and SEND DIAGNOSTIC commands.
// *scsi.SCSIDevice implements it.
type Transport interface {
	PageWriter
	ReceiveDiagnostic(pageCode uint8, maxLen int) ([]byte, error)
}

// Page is one diagnostic page as returned by a device, trimmed to its declared length.
type Page struct {
	Header
	Raw []byte
}

// PageReader reads SES diagnostic pages through a Transport.
type PageReader struct {
	t        Transport
	allocLen int
	log      *slog.Logger
}

// NewPageReader returns a reader using the default allocation length. A nil logger means
// slog.Default().
func NewPageReader(t Transport, logger *slog.Logger) *PageReader {
	if logger == nil {
		logger = slog.Default()
	}

	return &PageReader{t: t, allocLen: DefaultAllocLen, log: logger.With("component", "reader")}
}

// SetAllocLen changes the allocation length of subsequent reads.
func (r *PageReader) SetAllocLen(n int) {
	if n > 0 && n <= DefaultAllocLen {
		r.allocLen = n
	}
}

// Read fetches a page and checks that the device returned the page that was asked for.
func (r *PageReader) Read(code PageCode) (*Page, error) {
	raw, err := r.t.ReceiveDiagnostic(uint8(code), r.allocLen)
	if err != nil {
		return nil, fmt.Errorf("reading %s page: %w", code, err)
	}

	if len(raw) < pageHeaderLen {
		return nil, truncated(code, pageHeaderLen, len(raw))
	}

	if PageCode(raw[0]) != code {
		return nil, fmt.Errorf("asked for %s, got page code %#02x: %w", code, raw[0], ErrPageMismatch)
	}

	p := &Page{
		Header: Header{
			Code:   code,
			Byte1:  raw[1],
			Length: int(binary.BigEndian.Uint16(raw[2:])),
		},
	}

	end := pageHeaderLen + p.Length
	if end < len(raw) {
		raw = raw[:end]
	} else if end > len(raw) {
		r.log.Warn("page shorter than its page length", "page", code.String(), "length", end,
			"received", len(raw))
	}

	if code.HasGeneration() && len(raw) >= statusPageHeaderLen {
		p.Generation = binary.BigEndian.Uint32(raw[4:])
	}

	p.Raw = raw
	r.log.Debug("read page", "page", code.String(), "length", len(raw))

	return p, nil
}

// SendDiagnostic passes a control page to the transport, so a PageReader can serve as the
// Writer of a join session.
func (r *PageReader) SendDiagnostic(pageCode uint8, payload []byte) error {
	if len(payload) == 0 || payload[0] != pageCode {
		return fmt.Errorf("control page does not start with page code %#02x: %w", pageCode, ErrPageMismatch)
	}

	return r.t.SendDiagnostic(pageCode, payload)
}

// SupportedPages reads the Supported Diagnostic Pages page.
func (r *PageReader) SupportedPages() ([]PageCode, error) {
	p, err := r.Read(PageSupportedDiagnostic)
	if err != nil {
		return nil, err
	}

	return ParseSupportedPages(p.Raw)
}

// FetchJoinPages reads the pages used by Join. Configuration and Enclosure Status are required;
// the others are left nil if they cannot be read.
func (r *PageReader) FetchJoinPages() (Pages, error) {
	var pages Pages

	cf, err := r.Read(PageConfiguration)
	if err != nil {
		return pages, err
	}
	pages.Configuration = cf.Raw

	es, err := r.Read(PageEnclosureStatus)
	if err != nil {
		return pages, err
	}
	pages.EnclosureStatus = es.Raw

	optional := []struct {
		code PageCode
		dst  *[]byte
	}{
		{PageElementDescriptor, &pages.ElementDescriptor},
		{PageAdditionalStatus, &pages.AdditionalStatus},
		{PageThresholdIn, &pages.ThresholdIn},
	}

	for _, o := range optional {
		p, err := r.Read(o.code)
		if err != nil {
			r.log.Info("optional page unavailable", "page", o.code.String(), "err", err)
			continue
		}
		*o.dst = p.Raw
	}

	return pages, nil
}

// JoinDevice fetches and joins the pages of an enclosure, starting over when the generation
// code changes between reads. The reader becomes the session's writer unless opts has one.
func JoinDevice(r *PageReader, opts Options, retries int) (*JoinSession, error) {
	if opts.Writer == nil {
		opts.Writer = r
	}

	for attempt := 0; ; attempt++ {
		pages, err := r.FetchJoinPages()
		if err != nil {
			return nil, err
		}

		s, err := Join(pages, opts)
		if errors.Is(err, ErrStaleGenerationCode) && attempt < retries {
			r.log.Info("generation code changed while reading pages, retrying", "attempt", attempt+1)
			continue
		}

		return s, err
	}
}

// BufferTransport serves pages from memory and records the control pages sent to it.
type BufferTransport struct {
	mu    sync.Mutex
	pages map[uint8][]byte
	sent  []Page
}

// ErrPageNotAvailable is returned by BufferTransport for pages it does not hold.
var ErrPageNotAvailable = errors.New("diagnostic page not available")

func NewBufferTransport() *BufferTransport {
	return &BufferTransport{pages: make(map[uint8][]byte)}
}

// SetPage stores a page, keyed by its first byte.
func (t *BufferTransport) SetPage(raw []byte) {
	if len(raw) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.pages[raw[0]] = append([]byte(nil), raw...)
}

// PageCodes returns the codes of the stored pages in ascending order.
func (t *BufferTransport) PageCodes() []PageCode {
	t.mu.Lock()
	defer t.mu.Unlock()

	codes := make([]PageCode, 0, len(t.pages))
	for c := range t.pages {
		codes = append(codes, PageCode(c))
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	return codes
}

func (t *BufferTransport) ReceiveDiagnostic(pageCode uint8, maxLen int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, ok := t.pages[pageCode]
	if !ok {
		return nil, fmt.Errorf("page %#02x: %w", pageCode, ErrPageNotAvailable)
	}

	if len(raw) > maxLen {
		raw = raw[:maxLen]
	}

	return append([]byte(nil), raw...), nil
}

func (t *BufferTransport) SendDiagnostic(pageCode uint8, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sent = append(t.sent, Page{
		Header: Header{Code: PageCode(pageCode)},
		Raw:    append([]byte(nil), payload...),
	})

	return nil
}

// Sent returns the control pages sent so far.
func (t *BufferTransport) Sent() []Page {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Page(nil), t.sent...)
}
