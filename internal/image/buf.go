package image

import (
	"encoding/binary"
	"errors"
)

// Common errors for image operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("image: invalid dimensions")

	// ErrInvalidFormat is returned when the format is not recognized.
	ErrInvalidFormat = errors.New("image: invalid format")

	// ErrInvalidStride is returned when stride is less than minimum required.
	ErrInvalidStride = errors.New("image: stride too small for width")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("image: data buffer too small")

	// ErrOutOfBounds is returned when pixel coordinates are outside image bounds.
	ErrOutOfBounds = errors.New("image: coordinates out of bounds")

	// ErrTooLarge is returned when a buffer would exceed MaxBufferBytes.
	ErrTooLarge = errors.New("image: buffer too large")
)

// MaxBufferBytes caps a single pixel buffer. 8K RGBA8 fits comfortably;
// anything larger is refused instead of letting the allocator abort the
// process.
const MaxBufferBytes = 256 << 20

// byteOrder is the in-memory order of 16-bit pixels. The VideoCore reads
// RGBA16 resources as native little-endian words.
var byteOrder = binary.LittleEndian

// ImageBuf is a pixel buffer with an explicit row stride.
//
// Rows may be padded beyond the logical width so that the stride matches a
// compositor's pitch alignment. Padding bytes are never read by the
// accessors and are left zeroed.
//
// ImageBuf is not safe for concurrent writes to the same row. Disjoint
// rows may be written from different goroutines.
type ImageBuf struct {
	data   []byte
	width  int
	height int
	stride int
	format Format
}

// NewImageBuf creates a new image buffer with the given dimensions and format.
// Returns an error if dimensions are invalid or format is unknown.
func NewImageBuf(width, height int, format Format) (*ImageBuf, error) {
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	return NewImageBufWithStride(width, height, format, format.RowBytes(width))
}

// NewImageBufWithStride creates a new image buffer with custom stride for alignment.
// Stride must be at least format.RowBytes(width).
func NewImageBufWithStride(width, height int, format Format, stride int) (*ImageBuf, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}

	minStride := format.RowBytes(width)
	if stride < minStride {
		return nil, ErrInvalidStride
	}
	if stride > MaxBufferBytes/height {
		return nil, ErrTooLarge
	}

	return &ImageBuf{
		data:   make([]byte, stride*height),
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}, nil
}

// FromRaw creates an ImageBuf from existing data without copying.
// The caller must ensure data remains valid for the lifetime of the ImageBuf.
// Stride must be at least format.RowBytes(width).
func FromRaw(data []byte, width, height int, format Format, stride int) (*ImageBuf, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}

	minStride := format.RowBytes(width)
	if stride < minStride {
		return nil, ErrInvalidStride
	}

	requiredSize := stride * height
	if len(data) < requiredSize {
		return nil, ErrDataTooSmall
	}

	return &ImageBuf{
		data:   data[:requiredSize],
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}, nil
}

// Width returns the image width in pixels.
func (b *ImageBuf) Width() int {
	return b.width
}

// Height returns the image height in pixels.
func (b *ImageBuf) Height() int {
	return b.height
}

// Stride returns the number of bytes per row (including padding).
func (b *ImageBuf) Stride() int {
	return b.stride
}

// Format returns the pixel format.
func (b *ImageBuf) Format() Format {
	return b.format
}

// Data returns the raw pixel data slice, padding included.
func (b *ImageBuf) Data() []byte {
	return b.data
}

// RowBytes returns a slice of the pixel data for row y, without padding.
// Returns nil if y is out of bounds.
func (b *ImageBuf) RowBytes(y int) []byte {
	if y < 0 || y >= b.height {
		return nil
	}
	start := y * b.stride
	end := start + b.format.RowBytes(b.width)
	return b.data[start:end]
}

// PixelOffset returns the byte offset of pixel (x, y) in the data slice.
// Returns -1 if coordinates are out of bounds.
func (b *ImageBuf) PixelOffset(x, y int) int {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return -1
	}
	return y*b.stride + x*b.format.BytesPerPixel()
}

// GetRGBA returns the color at (x, y) as (r, g, b, a) in 0-255 range.
// RGBA16 pixels are expanded from 4 to 8 bits per channel.
// Returns (0,0,0,0) if coordinates are out of bounds.
func (b *ImageBuf) GetRGBA(x, y int) (r, g, bl, a uint8) {
	offset := b.PixelOffset(x, y)
	if offset < 0 {
		return 0, 0, 0, 0
	}

	switch b.format {
	case FormatRGBA8:
		p := b.data[offset : offset+4 : offset+4]
		return p[0], p[1], p[2], p[3]
	case FormatRGBA16:
		return Expand(byteOrder.Uint16(b.data[offset:]))
	default:
		return 0, 0, 0, 0
	}
}

// SetRGBA sets the color at (x, y) from (r, g, b, a) in 0-255 range.
// RGBA16 buffers store the packed value.
// Returns ErrOutOfBounds if coordinates are outside image bounds.
func (b *ImageBuf) SetRGBA(x, y int, r, g, bl, a uint8) error {
	offset := b.PixelOffset(x, y)
	if offset < 0 {
		return ErrOutOfBounds
	}

	switch b.format {
	case FormatRGBA8:
		b.data[offset] = r
		b.data[offset+1] = g
		b.data[offset+2] = bl
		b.data[offset+3] = a
	case FormatRGBA16:
		byteOrder.PutUint16(b.data[offset:], Pack(r, g, bl, a))
	}
	return nil
}

// RGBA16At returns the packed pixel at (x, y) of an RGBA16 buffer.
// Returns 0 for other formats or out-of-bounds coordinates.
func (b *ImageBuf) RGBA16At(x, y int) uint16 {
	offset := b.PixelOffset(x, y)
	if offset < 0 || b.format != FormatRGBA16 {
		return 0
	}
	return byteOrder.Uint16(b.data[offset:])
}

// FillRGBA16 sets every logical pixel of an RGBA16 buffer to v.
// Row padding is left untouched.
func (b *ImageBuf) FillRGBA16(v uint16) error {
	if b.format != FormatRGBA16 {
		return ErrInvalidFormat
	}
	if b.height == 0 {
		return nil
	}
	row := b.RowBytes(0)
	for x := 0; x < b.width; x++ {
		byteOrder.PutUint16(row[2*x:], v)
	}
	for y := 1; y < b.height; y++ {
		copy(b.RowBytes(y), row)
	}
	return nil
}

// Clear sets all bytes to zero, padding included.
func (b *ImageBuf) Clear() {
	clear(b.data)
}
