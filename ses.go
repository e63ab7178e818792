// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package ses is a pure Go SCSI Enclosure Services library. It decodes the SES diagnostic
// pages returned by an enclosure, joins the Enclosure Status, Element Descriptor, Additional
// Element Status and Threshold In pages into one row per element, and reads or writes
// individual status and control bit-fields.
//
package ses

import (
	"io"
	"log/slog"
)

const (
	// Upper bound on the number of type descriptor headers accepted from a Configuration page.
	MaxTypeHeaders = 1024

	// Upper bound on the number of join rows (overall plus individual elements).
	MaxJoinRows = 2048

	// Every status and control page carries a generation code at offset 4, and element data
	// starts at offset 8.
	pageHeaderLen       = 4
	statusPageHeaderLen = 8
)

// Options controls a single join session.
type Options struct {
	// Eiioe selects how AES element indexes are interpreted.
	Eiioe EiioeMode

	// MaxTypeHeaders and MaxRows bound the size of the type descriptor table and the join.
	// Zero selects the package defaults.
	MaxTypeHeaders int
	MaxRows        int

	// IgnoreMask disables the per-element-type write mask applied when setting control fields.
	IgnoreMask bool

	// Writer receives control pages when a batch of set/clear operations is flushed.
	Writer PageWriter

	// Logger receives per-row warnings. Nil means slog.Default().
	Logger *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return slog.Default()
}

func (o *Options) maxTypeHeaders() int {
	if o.MaxTypeHeaders > 0 {
		return o.MaxTypeHeaders
	}

	return MaxTypeHeaders
}

func (o *Options) maxRows() int {
	if o.MaxRows > 0 {
		return o.MaxRows
	}

	return MaxJoinRows
}

// DiscardLogger returns a logger that drops everything, for callers that only want the
// warnings collected on the join session.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
