// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"image"
	"testing"
)

func TestFixedRect(t *testing.T) {
	r := FixedRect(1920, 1080)
	if r.Width != 1920<<16 || r.Height != 1080<<16 {
		t.Errorf("FixedRect = %+v", r)
	}
	if r.X != 0 || r.Y != 0 {
		t.Errorf("FixedRect origin = %d,%d", r.X, r.Y)
	}
	if got, want := r.ToPixels(), PixelRect(1920, 1080); got != want {
		t.Errorf("ToPixels = %+v, want %+v", got, want)
	}
}

func TestRectImage(t *testing.T) {
	tests := []struct {
		r     Rect
		want  image.Rectangle
		empty bool
	}{
		{PixelRect(4, 3), image.Rect(0, 0, 4, 3), false},
		{Rect{X: 2, Y: 1, Width: 2, Height: 2}, image.Rect(2, 1, 4, 3), false},
		{Rect{Width: 0, Height: 5}, image.Rect(0, 0, 0, 5), true},
		{Rect{Width: -1, Height: 5}, image.Rectangle{}, true},
	}
	for _, tt := range tests {
		if got := tt.r.Empty(); got != tt.empty {
			t.Errorf("%+v.Empty() = %v, want %v", tt.r, got, tt.empty)
		}
		if tt.empty {
			continue
		}
		if got := tt.r.Image(); got != tt.want {
			t.Errorf("%+v.Image() = %v, want %v", tt.r, got, tt.want)
		}
	}
}

func TestHandleValid(t *testing.T) {
	if DisplayHandle(0).Valid() || ResourceHandle(0).Valid() || ElementHandle(0).Valid() || UpdateHandle(0).Valid() {
		t.Error("zero handle reported valid")
	}
	if !DisplayHandle(1).Valid() || !ResourceHandle(7).Valid() || !ElementHandle(2).Valid() || !UpdateHandle(3).Valid() {
		t.Error("non-zero handle reported invalid")
	}
}

func TestPixelFormat(t *testing.T) {
	if got := FormatRGBA16.BytesPerPixel(); got != 2 {
		t.Errorf("BytesPerPixel = %d, want 2", got)
	}
	if got := FormatRGBA16.String(); got != "RGBA16" {
		t.Errorf("String = %q", got)
	}
	if got := PixelFormat(0).BytesPerPixel(); got != 0 {
		t.Errorf("unknown BytesPerPixel = %d, want 0", got)
	}
}
