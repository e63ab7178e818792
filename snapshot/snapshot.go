// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package snapshot saves the raw diagnostic pages of an enclosure so that they can be decoded
// and joined later without access to the device.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/ses"
	"github.com/dswarbrick/ses/utils"
)

// ErrEmpty is returned by Capture when no page could be read.
var ErrEmpty = errors.New("no diagnostic pages captured")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("snapshot CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthAllowed,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("snapshot CBOR decoder mode: %v", err))
	}
}

// HexBytes is a byte slice written to YAML as hex text, 16 bytes per line.
type HexBytes []byte

func (b HexBytes) MarshalYAML() (interface{}, error) {
	var sb strings.Builder

	for i, c := range b {
		switch {
		case i == 0:
		case i%16 == 0:
			sb.WriteByte('\n')
		case i%4 == 0:
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}

	return sb.String(), nil
}

func (b *HexBytes) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	raw, err := utils.ParseHex(strings.NewReader(s))
	if err != nil {
		return err
	}

	*b = raw
	return nil
}

type PageData struct {
	Code ses.PageCode `yaml:"code" cbor:"1,keyasint"`
	Data HexBytes     `yaml:"data" cbor:"2,keyasint"`
}

// Snapshot is a set of raw diagnostic pages read from one enclosure.
type Snapshot struct {
	Device   string     `yaml:"device,omitempty" cbor:"1,keyasint,omitempty"`
	Vendor   string     `yaml:"vendor,omitempty" cbor:"2,keyasint,omitempty"`
	Product  string     `yaml:"product,omitempty" cbor:"3,keyasint,omitempty"`
	Revision string     `yaml:"revision,omitempty" cbor:"4,keyasint,omitempty"`
	Captured time.Time  `yaml:"captured" cbor:"5,keyasint"`
	Pages    []PageData `yaml:"pages" cbor:"6,keyasint"`
}

// Page returns the raw bytes of a captured page.
func (s *Snapshot) Page(code ses.PageCode) ([]byte, bool) {
	for _, p := range s.Pages {
		if p.Code == code {
			return p.Data, true
		}
	}

	return nil, false
}

// Transport returns an in-memory transport serving the captured pages.
func (s *Snapshot) Transport() *ses.BufferTransport {
	t := ses.NewBufferTransport()
	for _, p := range s.Pages {
		t.SetPage(p.Data)
	}

	return t
}

// Capture reads pages from r. If codes is empty, every page listed in the Supported Diagnostic
// Pages page is read. Pages the device refuses are skipped.
func Capture(r *ses.PageReader, codes []ses.PageCode, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "snapshot")

	if len(codes) == 0 {
		supported, err := r.SupportedPages()
		if err != nil {
			return nil, fmt.Errorf("listing supported pages: %w", err)
		}
		codes = append([]ses.PageCode{ses.PageSupportedDiagnostic}, supported...)
	}

	snap := &Snapshot{Captured: time.Now().UTC()}
	seen := make(map[ses.PageCode]bool)

	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true

		p, err := r.Read(code)
		if err != nil {
			log.Warn("skipping page", "page", code.String(), "err", err)
			continue
		}

		snap.Pages = append(snap.Pages, PageData{Code: code, Data: p.Raw})
	}

	if len(snap.Pages) == 0 {
		return nil, ErrEmpty
	}

	return snap, nil
}

func WriteYAML(w io.Writer, s *Snapshot) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(s); err != nil {
		return err
	}

	return enc.Close()
}

func ReadYAML(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding YAML snapshot: %w", err)
	}

	return &s, nil
}

func WriteCBOR(w io.Writer, s *Snapshot) error {
	return encMode.NewEncoder(w).Encode(s)
}

func ReadCBOR(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := decMode.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding CBOR snapshot: %w", err)
	}

	return &s, nil
}

func isCBOR(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cbor")
}

// WriteFile saves s as CBOR if path ends in ".cbor", otherwise as YAML.
func WriteFile(path string, s *Snapshot) error {
	var buf bytes.Buffer

	write := WriteYAML
	if isCBOR(path) {
		write = WriteCBOR
	}

	if err := write(&buf, s); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ReadFile loads a snapshot written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	if isCBOR(path) {
		return ReadCBOR(f)
	}

	return ReadYAML(f)
}
