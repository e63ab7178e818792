// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/ses"
)

func testSession(t *testing.T) (*ses.JoinSession, *ses.BufferTransport) {
	bt := ses.NewBufferTransport()

	cfg := []byte{0x01, 0x00, 0x00, 0x30, 0x00, 0x00, 0x00, 0x01}
	cfg = append(cfg, 0x11, 0x00, 0x01, 0x24, 0x50, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07)
	cfg = append(cfg, "ACME    Shelf 9000      0102"...)
	cfg = append(cfg, 0x01, 0x02, 0x00, 0x00)
	bt.SetPage(cfg)

	bt.SetPage([]byte{
		0x02, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	})

	s, err := ses.JoinDevice(ses.NewPageReader(bt, ses.DiscardLogger()), ses.Options{Logger: ses.DiscardLogger()}, 0)
	require.NoError(t, err)

	return s, bt
}

func TestOpFlag(t *testing.T) {
	var ops []fieldOp

	fs := flag.NewFlagSet("sesctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(opFlag{opGet, &ops}, "get", "")
	fs.Var(opFlag{opSet, &ops}, "set", "")
	fs.Var(opFlag{opClear, &ops}, "clear", "")

	err := fs.Parse([]string{"-set", "ident", "-get", "es:2:1", "-clear", "fault", "-set", "2:3:2=0x3"})
	require.NoError(t, err)
	require.Len(t, ops, 4)

	assert.Equal(t, opSet, ops[0].kind)
	assert.Equal(t, "ident", ops[0].spec.Acronym)
	assert.Equal(t, uint64(1), ops[0].value)

	assert.Equal(t, opGet, ops[1].kind)
	assert.Equal(t, ses.PageEnclosureStatus, ops[1].spec.Page)

	assert.Equal(t, opClear, ops[2].kind)
	assert.Equal(t, uint64(0), ops[2].value)

	assert.Equal(t, 2, ops[3].spec.NumBits)
	assert.Equal(t, uint64(3), ops[3].value)

	for _, args := range [][]string{
		{"-get", "ident=1"},
		{"-clear", "fault=0"},
		{"-set", "ident=zz"},
		{"-set", "0:8"},
	} {
		assert.Error(t, fs.Parse(args), strings.Join(args, " "))
	}
}

func TestRunOps(t *testing.T) {
	s, bt := testSession(t)

	sel, err := ses.ParseSelector("dev,0-1")
	require.NoError(t, err)
	rows, err := s.Find(sel)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	ops := []fieldOp{
		{kind: opGet, spec: ses.FieldSpec{Acronym: "ident"}},
		{kind: opSet, spec: ses.FieldSpec{Acronym: "ident"}, value: 1},
		{kind: opGet, spec: ses.FieldSpec{Acronym: "ident"}},
	}

	var buf bytes.Buffer
	require.NoError(t, runOps(&buf, s, rows, ops))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "ident=0"), lines[0])
	// Reads see the pending control page until it is flushed.
	assert.True(t, strings.HasSuffix(lines[1], "ident=1"), lines[1])

	sent := bt.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, byte(0x80), sent[0].Raw[12]&0x80)
	assert.Equal(t, byte(0x02), sent[0].Raw[14]&0x02)
	assert.Equal(t, byte(0x02), sent[0].Raw[18]&0x02)

	err = runOps(&buf, s, rows, []fieldOp{{kind: opSet, spec: ses.FieldSpec{Acronym: "dsn"}, value: 1}})
	assert.ErrorIs(t, err, ses.ErrReadOnly)
}

func TestPrintPagesWithoutConfiguration(t *testing.T) {
	bt := ses.NewBufferTransport()
	// Header only, the enclosure descriptor is missing.
	bt.SetPage([]byte{0x01, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x01})
	bt.SetPage([]byte{
		0x02, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	})

	var out, logBuf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := printPages(&out, ses.NewPageReader(bt, ses.DiscardLogger()), "es", log)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Enclosure Status diagnostic page")
	assert.Contains(t, logBuf.String(), "configuration page unreadable")
	assert.Contains(t, logBuf.String(), "truncated")
}
