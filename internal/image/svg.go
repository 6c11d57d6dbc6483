package image

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// DecodeSVG rasterises an SVG document at the size of its viewBox.
// Vignettes authored as SVG must declare a viewBox equal to the screen size.
func DecodeSVG(r io.Reader) (*ImageBuf, error) {
	icon, err := oksvg.ReadIconStream(r)
	if err != nil {
		return nil, fmt.Errorf("image: decode SVG: %w", err)
	}

	w := int(math.Round(icon.ViewBox.W))
	h := int(math.Round(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image: decode SVG: %w", ErrInvalidDimensions)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))

	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	return FromStdImage(rgba)
}
