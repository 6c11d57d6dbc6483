package surface

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/overlay/internal/image"
)

// Errors returned while building planes.
var (
	// ErrAllocation is returned when a plane buffer cannot be allocated.
	ErrAllocation = errors.New("surface: allocation failed")

	// ErrDimensionMismatch is returned when a vignette image does not match
	// the screen size exactly.
	ErrDimensionMismatch = errors.New("surface: image size does not match screen")

	// ErrDecode is returned when a vignette image cannot be decoded.
	ErrDecode = errors.New("surface: decode failed")

	// ErrSourceFormat is returned when a vignette source is not RGBA8.
	ErrSourceFormat = errors.New("surface: source image must be RGBA8")
)

// Kind identifies a plane.
type Kind uint8

const (
	// KindFade is the uniform plane whose layer opacity is animated.
	KindFade Kind = iota

	// KindVignette is the optional image plane below the fade plane.
	KindVignette
)

func (k Kind) String() string {
	switch k {
	case KindFade:
		return "fade"
	case KindVignette:
		return "vignette"
	default:
		return "unknown"
	}
}

// Plane is a packed RGBA16 pixel buffer ready to be written into a
// compositor resource. The plane owns its buffer until Release hands it
// back to the pool.
type Plane struct {
	kind     Kind
	geometry Geometry
	buf      *image.ImageBuf
	pool     *image.Pool
}

// Kind returns the plane kind.
func (p *Plane) Kind() Kind { return p.kind }

// Geometry returns the plane geometry.
func (p *Plane) Geometry() Geometry { return p.geometry }

// Pitch returns the row pitch in bytes.
func (p *Plane) Pitch() int { return p.geometry.Pitch() }

// Data returns the packed pixel bytes, padding included. It returns nil
// after Release.
func (p *Plane) Data() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.Data()
}

// At returns the packed pixel at (x, y).
func (p *Plane) At(x, y int) uint16 {
	if p.buf == nil {
		return 0
	}
	return p.buf.RGBA16At(x, y)
}

// Release returns the buffer to its pool. Release is idempotent.
func (p *Plane) Release() {
	if p.buf == nil {
		return
	}
	if p.pool != nil {
		p.pool.Put(p.buf)
	}
	p.buf = nil
}

func newPlane(kind Kind, g Geometry, pool *image.Pool) (*Plane, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		pool = image.DefaultPool()
	}
	buf, err := pool.Get(g.Width, g.Height, image.FormatRGBA16, g.Pitch())
	if err != nil {
		return nil, fmt.Errorf("%w: %s plane %s: %w", ErrAllocation, kind, g, err)
	}
	return &Plane{kind: kind, geometry: g, buf: buf, pool: pool}, nil
}

// BuildFade allocates the fade plane and fills every logical pixel with
// color. Padding columns stay zero. A nil pool uses the default pool.
func BuildFade(g Geometry, pool *image.Pool, color uint16) (*Plane, error) {
	p, err := newPlane(KindFade, g, pool)
	if err != nil {
		return nil, err
	}
	if err := p.buf.FillRGBA16(color); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// LoadVignette decodes the image at path into an RGBA8 buffer.
func LoadVignette(path string) (*image.ImageBuf, error) {
	src, err := image.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return src, nil
}

// BuildVignette packs src into a new vignette plane. src must be RGBA8 and
// exactly the size of g. Rows are packed in parallel bands; the output
// does not depend on how rows are split.
func BuildVignette(ctx context.Context, g Geometry, pool *image.Pool, src *image.ImageBuf) (*Plane, error) {
	if src == nil || src.Format() != image.FormatRGBA8 {
		return nil, ErrSourceFormat
	}
	if src.Width() != g.Width || src.Height() != g.Height {
		return nil, fmt.Errorf("%w: image %dx%d, screen %dx%d",
			ErrDimensionMismatch, src.Width(), src.Height(), g.Width, g.Height)
	}

	p, err := newPlane(KindVignette, g, pool)
	if err != nil {
		return nil, err
	}
	if err := packRows(ctx, p.buf, src, runtime.GOMAXPROCS(0)); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// packRows packs src into dst using up to workers goroutines, each
// handling a contiguous band of rows.
func packRows(ctx context.Context, dst, src *image.ImageBuf, workers int) error {
	height := src.Height()
	if workers < 1 {
		workers = 1
	}
	if workers > height {
		workers = height
	}
	band := (height + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for y0 := 0; y0 < height; y0 += band {
		y1 := min(y0+band, height)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for y := y0; y < y1; y++ {
				packRow(dst.RowBytes(y), src.RowBytes(y))
			}
			return nil
		})
	}
	return g.Wait()
}

// packRow converts one RGBA8 row into little-endian RGBA16 words.
func packRow(dst, src []byte) {
	for x := 0; 4*x+3 < len(src); x++ {
		s := src[4*x : 4*x+4 : 4*x+4]
		v := image.Pack(s[0], s[1], s[2], s[3])
		dst[2*x] = byte(v)
		dst[2*x+1] = byte(v >> 8)
	}
}
