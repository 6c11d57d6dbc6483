// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"errors"
	"fmt"
	"log/slog"
)

// Errors returned by backends.
var (
	// ErrInvalidHandle is returned when a zero or unknown handle is used.
	ErrInvalidHandle = errors.New("compositor: invalid handle")

	// ErrNoDisplay is returned when a display index does not exist.
	ErrNoDisplay = errors.New("compositor: no such display")

	// ErrUnsupportedFormat is returned for pixel formats a backend cannot store.
	ErrUnsupportedFormat = errors.New("compositor: unsupported pixel format")

	// ErrBadPitch is returned when a write pitch or data length does not
	// cover the destination rectangle.
	ErrBadPitch = errors.New("compositor: pitch or data too small")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("compositor: closed")
)

// DisplayHandle identifies an open display. Zero is invalid.
type DisplayHandle uint32

// ResourceHandle identifies a pixel resource. Zero is invalid.
type ResourceHandle uint32

// ElementHandle identifies an element placed on a display. Zero is invalid.
type ElementHandle uint32

// UpdateHandle identifies an open update transaction. Zero is invalid.
type UpdateHandle uint32

// Valid reports whether h is non-zero.
func (h DisplayHandle) Valid() bool { return h != 0 }

// Valid reports whether h is non-zero.
func (h ResourceHandle) Valid() bool { return h != 0 }

// Valid reports whether h is non-zero.
func (h ElementHandle) Valid() bool { return h != 0 }

// Valid reports whether h is non-zero.
func (h UpdateHandle) Valid() bool { return h != 0 }

// PixelFormat is a resource pixel format.
type PixelFormat uint8

const (
	// FormatRGBA16 is 16-bit RGBA4444, R in the top nibble.
	FormatRGBA16 PixelFormat = iota + 1
)

// BytesPerPixel returns the size of one pixel, or 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	if f == FormatRGBA16 {
		return 2
	}
	return 0
}

func (f PixelFormat) String() string {
	if f == FormatRGBA16 {
		return "RGBA16"
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(f))
}

// AlphaFlags selects how an element's alpha is derived.
type AlphaFlags uint32

const (
	// AlphaFromSource uses each pixel's alpha channel.
	AlphaFromSource AlphaFlags = 0

	// AlphaFixedAllPixels ignores pixel alpha and applies Alpha.Opacity
	// uniformly to the whole element.
	AlphaFixedAllPixels AlphaFlags = 1

	// AlphaFixedNonZero applies Alpha.Opacity to pixels with non-zero alpha.
	AlphaFixedNonZero AlphaFlags = 2
)

// Alpha is the element alpha specification.
type Alpha struct {
	Flags   AlphaFlags
	Opacity uint8
}

// Rotation is an element transform.
type Rotation uint8

const (
	// Rotate0 shows the resource unrotated.
	Rotate0 Rotation = iota
)

// Compositor is the display compositor service.
//
// Element changes are staged on an update and become visible together when
// the update is submitted. UpdateSubmitSync returns only after the
// compositor has applied the change.
//
// Implementations are not required to be safe for concurrent use of the
// same update handle.
type Compositor interface {
	// OpenDisplay opens display index and returns its handle.
	OpenDisplay(index int) (DisplayHandle, error)

	// DisplaySize returns the size of display index in pixels.
	DisplaySize(index int) (width, height int, err error)

	// CreateResource allocates a resource of the given format and size.
	CreateResource(format PixelFormat, width, height int) (ResourceHandle, error)

	// WriteData copies rows of data, pitch bytes apart, into rect of res.
	WriteData(res ResourceHandle, format PixelFormat, pitch int, data []byte, rect Rect) error

	// UpdateStart opens an update transaction.
	UpdateStart(priority int) (UpdateHandle, error)

	// ElementAdd stages a new element showing src of res at dst on the
	// display, at depth layer. src is in 16.16 fixed point.
	ElementAdd(u UpdateHandle, d DisplayHandle, layer int32, dst Rect, res ResourceHandle,
		src Rect, alpha Alpha, rot Rotation) (ElementHandle, error)

	// ElementChangeOpacity stages an opacity change of e.
	ElementChangeOpacity(u UpdateHandle, e ElementHandle, opacity uint8) error

	// ElementRemove stages the removal of e.
	ElementRemove(u UpdateHandle, e ElementHandle) error

	// UpdateSubmitSync applies u and waits until the change is active.
	UpdateSubmitSync(u UpdateHandle) error

	// ResourceDelete frees res.
	ResourceDelete(res ResourceHandle) error

	// DisplayClose closes d.
	DisplayClose(d DisplayHandle) error

	// Close releases the backend itself. Close is idempotent.
	Close() error
}

// LoggerSetter is implemented by backends that accept a logger.
type LoggerSetter interface {
	SetLogger(*slog.Logger)
}
