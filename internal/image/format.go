// Package image provides pixel buffers, pixel formats and decoding for the
// overlay planes.
//
// Source images are decoded into RGBA8 buffers and then packed into the
// 16-bit RGBA4444 layout the display compositor scans out. Buffers carry an
// explicit stride so rows can be padded to the compositor's pitch alignment.
package image

// Format represents a pixel storage format.
type Format uint8

const (
	// FormatRGBA8 is 32-bit non-premultiplied RGBA (4 bytes per pixel).
	// Every decoded source image is normalised to this format.
	FormatRGBA8 Format = iota

	// FormatRGBA16 is 16-bit packed RGBA with 4 bits per channel
	// (2 bytes per pixel), laid out R(15:12) G(11:8) B(7:4) A(3:0) and
	// stored little-endian.
	FormatRGBA16

	// formatCount is the number of formats (for internal use).
	formatCount
)

// FormatInfo contains metadata about a pixel format.
type FormatInfo struct {
	// BytesPerPixel is the number of bytes per pixel.
	BytesPerPixel int
}

var formatInfoTable = [formatCount]FormatInfo{
	FormatRGBA8: {
		BytesPerPixel: 4,
	},
	FormatRGBA16: {
		BytesPerPixel: 2,
	},
}

// Info returns the FormatInfo for this format.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// BytesPerPixel returns the number of bytes per pixel for this format.
func (f Format) BytesPerPixel() int {
	return f.Info().BytesPerPixel
}

// String returns a string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16:
		return "RGBA16"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the format is a valid known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// RowBytes calculates the number of bytes needed for a row of the given width.
func (f Format) RowBytes(width int) int {
	return width * f.BytesPerPixel()
}

// AlignedRowBytes returns RowBytes rounded up to a multiple of align.
// align must be a power of two; values below 2 disable alignment.
func (f Format) AlignedRowBytes(width, align int) int {
	n := f.RowBytes(width)
	if align < 2 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
