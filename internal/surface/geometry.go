// Package surface builds the pixel planes handed to the display compositor.
//
// Two planes exist: the fade plane, a uniform fill whose visibility is
// driven entirely by the compositor's layer opacity, and the optional
// vignette plane, a full-screen image packed to RGBA16. Both use rows
// padded to the compositor's pitch alignment.
package surface

import (
	"errors"
	"fmt"

	"github.com/gogpu/overlay/internal/image"
)

// DefaultAlign is the row pitch alignment, in bytes, required by the
// VideoCore resource writer.
const DefaultAlign = 32

// ErrInvalidGeometry is returned for non-positive sizes or an alignment
// that is not a power of two.
var ErrInvalidGeometry = errors.New("surface: invalid geometry")

// Geometry is the screen size in pixels plus the pitch alignment used for
// every plane of a session. It is fixed for the lifetime of a session.
type Geometry struct {
	Width  int
	Height int
	Align  int
}

// NewGeometry validates and returns a Geometry. An align of 0 selects
// DefaultAlign.
func NewGeometry(width, height, align int) (Geometry, error) {
	if align == 0 {
		align = DefaultAlign
	}
	g := Geometry{Width: width, Height: height, Align: align}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Validate reports whether g can back a plane.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, g.Width, g.Height)
	}
	if g.Align <= 0 || g.Align&(g.Align-1) != 0 {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalidGeometry, g.Align)
	}
	return nil
}

// Pitch returns the row pitch in bytes of an RGBA16 plane, rounded up to
// the alignment.
func (g Geometry) Pitch() int {
	return image.FormatRGBA16.AlignedRowBytes(g.Width, g.Align)
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d (pitch %d)", g.Width, g.Height, g.Pitch())
}
