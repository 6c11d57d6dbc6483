// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import "image"

// FixedShift is the number of fractional bits in source rectangles.
const FixedShift = 16

// Rect is an axis-aligned rectangle. Destination rectangles are in whole
// pixels; source rectangles are in 16.16 fixed point.
type Rect struct {
	X, Y          int32
	Width, Height int32
}

// PixelRect returns the destination rectangle covering w x h pixels at the
// origin.
func PixelRect(w, h int) Rect {
	return Rect{Width: int32(w), Height: int32(h)}
}

// FixedRect returns the 16.16 fixed-point source rectangle covering
// w x h pixels at the origin.
func FixedRect(w, h int) Rect {
	return Rect{Width: int32(w) << FixedShift, Height: int32(h) << FixedShift}
}

// ToPixels converts a 16.16 fixed-point rectangle to whole pixels,
// truncating the fractional part.
func (r Rect) ToPixels() Rect {
	return Rect{
		X:      r.X >> FixedShift,
		Y:      r.Y >> FixedShift,
		Width:  r.Width >> FixedShift,
		Height: r.Height >> FixedShift,
	}
}

// Image returns r as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(int(r.X), int(r.Y), int(r.X+r.Width), int(r.Y+r.Height))
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
