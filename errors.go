// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated indicates a page shorter than its own declared length, or shorter than the
	// type descriptor table requires.
	ErrTruncated = errors.New("page truncated")

	// ErrCapacityExceeded indicates more type descriptor headers or join rows than allowed.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrStaleGenerationCode indicates that pages used in one join report different
	// generation codes. The whole join must be retried.
	ErrStaleGenerationCode = errors.New("generation code mismatch, state of enclosure changed, please try again")

	// ErrIndexOutOfRange indicates an AES element index that could not be resolved.
	ErrIndexOutOfRange = errors.New("element index out of range")

	// ErrPageMismatch indicates that a device returned a different page than requested.
	ErrPageMismatch = errors.New("page code mismatch")

	// Field accessor errors.
	ErrAcronymNotFound         = errors.New("acronym not found")
	ErrAcronymWrongElementType = errors.New("acronym does not apply to element type")
	ErrFieldUnavailable        = errors.New("field unavailable")
	ErrOutOfRange              = errors.New("field out of range")
	ErrReadOnly                = errors.New("field is read only")
	ErrNoWriter                = errors.New("no page writer to flush control pages to")

	// ErrNoSuchElement indicates an element selection that matched no join row.
	ErrNoSuchElement = errors.New("no such element")
)

// TruncatedError describes a page that is too short.
type TruncatedError struct {
	Page PageCode
	Need int
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%s page truncated: need %d bytes, have %d", e.Page, e.Need, e.Have)
}

func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncated
}

func truncated(page PageCode, need, have int) error {
	return &TruncatedError{Page: page, Need: need, Have: have}
}

// GenerationError describes a page whose generation code differs from the Enclosure Status
// page's.
type GenerationError struct {
	Page PageCode
	Want uint32
	Got  uint32
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s page generation code %#x, expected %#x: %v", e.Page, e.Got, e.Want,
		ErrStaleGenerationCode)
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrStaleGenerationCode
}

// IndexError describes an Additional Element Status descriptor that could not be attached to
// any join row.
type IndexError struct {
	Descriptor   int // position of the descriptor in the AES page, origin 0
	ElementIndex int // -1 when the descriptor carried no element index
	Eiioe        uint8
	Reason       string
}

func (e *IndexError) Error() string {
	if e.ElementIndex < 0 {
		return fmt.Sprintf("AES descriptor %d: %s: %v", e.Descriptor, e.Reason, ErrIndexOutOfRange)
	}

	return fmt.Sprintf("AES descriptor %d, element index %d (EIIOE=%d): %s: %v", e.Descriptor,
		e.ElementIndex, e.Eiioe, e.Reason, ErrIndexOutOfRange)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}
