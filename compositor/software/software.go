// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software implements an in-memory display compositor.
//
// It keeps resources and elements exactly like a hardware compositor would
// and renders the committed element stack on demand with Snapshot. It backs
// development machines without a VideoCore and the overlay tests.
package software

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sort"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/overlay/compositor"
	pix "github.com/gogpu/overlay/internal/image"
)

// Default display size when Options leave it unset.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Priority is the registry priority of the software backend.
const Priority = 10

func init() {
	compositor.Register("software", Priority, func(opts compositor.Options) (compositor.Compositor, error) {
		return New(opts.Width, opts.Height), nil
	}, nil)
}

type resource struct {
	format compositor.PixelFormat
	buf    *pix.ImageBuf
}

type element struct {
	handle  compositor.ElementHandle
	display compositor.DisplayHandle
	layer   int32
	dst     compositor.Rect
	src     compositor.Rect
	res     compositor.ResourceHandle
	alpha   compositor.Alpha
}

type update struct {
	added   map[compositor.ElementHandle]*element
	ops     []func()
	removed map[compositor.ElementHandle]bool
}

// Compositor is an in-memory compositor with a single display (index 0).
// It is safe for concurrent use.
type Compositor struct {
	mu         sync.Mutex
	width      int
	height     int
	next       uint32
	closed     bool
	displays   map[compositor.DisplayHandle]bool
	resources  map[compositor.ResourceHandle]*resource
	elements   map[compositor.ElementHandle]*element
	updates    map[compositor.UpdateHandle]*update
	submits    int
	background image.Image
	logger     *slog.Logger
}

var _ compositor.Compositor = (*Compositor)(nil)

// New creates a software compositor whose display is width x height.
// Non-positive sizes select DefaultWidth x DefaultHeight.
func New(width, height int) *Compositor {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &Compositor{
		width:      width,
		height:     height,
		displays:   make(map[compositor.DisplayHandle]bool),
		resources:  make(map[compositor.ResourceHandle]*resource),
		elements:   make(map[compositor.ElementHandle]*element),
		updates:    make(map[compositor.UpdateHandle]*update),
		background: image.NewUniform(color.Black),
		logger:     slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger for backend diagnostics.
func (c *Compositor) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

// SetBackground sets what Snapshot shows below all elements, standing in
// for the video plane. The default is opaque black.
func (c *Compositor) SetBackground(img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img == nil {
		img = image.NewUniform(color.Black)
	}
	c.background = img
}

// nextHandle must be called with c.mu held.
func (c *Compositor) nextHandle() uint32 {
	c.next++
	return c.next
}

// OpenDisplay opens display 0.
func (c *Compositor) OpenDisplay(index int) (compositor.DisplayHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, compositor.ErrClosed
	}
	if index != 0 {
		return 0, fmt.Errorf("%w: %d", compositor.ErrNoDisplay, index)
	}
	h := compositor.DisplayHandle(c.nextHandle())
	c.displays[h] = true
	return h, nil
}

// DisplaySize returns the configured display size.
func (c *Compositor) DisplaySize(index int) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, 0, compositor.ErrClosed
	}
	if index != 0 {
		return 0, 0, fmt.Errorf("%w: %d", compositor.ErrNoDisplay, index)
	}
	return c.width, c.height, nil
}

// CreateResource allocates a zeroed RGBA16 resource.
func (c *Compositor) CreateResource(format compositor.PixelFormat, width, height int) (compositor.ResourceHandle, error) {
	if format != compositor.FormatRGBA16 {
		return 0, fmt.Errorf("%w: %v", compositor.ErrUnsupportedFormat, format)
	}
	buf, err := pix.NewImageBuf(width, height, pix.FormatRGBA16)
	if err != nil {
		return 0, fmt.Errorf("compositor: create resource %dx%d: %w", width, height, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, compositor.ErrClosed
	}
	h := compositor.ResourceHandle(c.nextHandle())
	c.resources[h] = &resource{format: format, buf: buf}
	c.logger.Debug("software: resource created", "handle", h, "width", width, "height", height)
	return h, nil
}

// WriteData copies rect.Height rows of pitch bytes from data into res.
// data must hold every row in full, padding included.
func (c *Compositor) WriteData(res compositor.ResourceHandle, format compositor.PixelFormat, pitch int, data []byte, rect compositor.Rect) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.resources[res]
	if !ok {
		return fmt.Errorf("%w: resource %d", compositor.ErrInvalidHandle, res)
	}
	if format != r.format {
		return fmt.Errorf("%w: %v", compositor.ErrUnsupportedFormat, format)
	}

	area := rect.Image().Intersect(image.Rect(0, 0, r.buf.Width(), r.buf.Height()))
	if area.Empty() {
		return nil
	}
	src, err := pix.FromRaw(data, area.Dx(), area.Dy(), pix.FormatRGBA16, pitch)
	if err != nil {
		return fmt.Errorf("%w: %w", compositor.ErrBadPitch, err)
	}
	for y := 0; y < area.Dy(); y++ {
		off := r.buf.PixelOffset(area.Min.X, area.Min.Y+y)
		copy(r.buf.Data()[off:], src.RowBytes(y))
	}
	return nil
}

// UpdateStart opens an update.
func (c *Compositor) UpdateStart(priority int) (compositor.UpdateHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, compositor.ErrClosed
	}
	h := compositor.UpdateHandle(c.nextHandle())
	c.updates[h] = &update{
		added:   make(map[compositor.ElementHandle]*element),
		removed: make(map[compositor.ElementHandle]bool),
	}
	return h, nil
}

// lookupElement finds e among committed elements and those staged in u.
// Must be called with c.mu held.
func (c *Compositor) lookupElement(u *update, e compositor.ElementHandle) bool {
	if u.removed[e] {
		return false
	}
	if _, ok := u.added[e]; ok {
		return true
	}
	_, ok := c.elements[e]
	return ok
}

// ElementAdd stages a new element.
func (c *Compositor) ElementAdd(u compositor.UpdateHandle, d compositor.DisplayHandle, layer int32, dst compositor.Rect,
	res compositor.ResourceHandle, src compositor.Rect, alpha compositor.Alpha, rot compositor.Rotation,
) (compositor.ElementHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upd, ok := c.updates[u]
	if !ok {
		return 0, fmt.Errorf("%w: update %d", compositor.ErrInvalidHandle, u)
	}
	if !c.displays[d] {
		return 0, fmt.Errorf("%w: display %d", compositor.ErrInvalidHandle, d)
	}
	if _, ok := c.resources[res]; !ok {
		return 0, fmt.Errorf("%w: resource %d", compositor.ErrInvalidHandle, res)
	}
	if rot != compositor.Rotate0 {
		return 0, fmt.Errorf("compositor: rotation %d not supported", rot)
	}

	e := &element{
		handle:  compositor.ElementHandle(c.nextHandle()),
		display: d,
		layer:   layer,
		dst:     dst,
		src:     src,
		res:     res,
		alpha:   alpha,
	}
	upd.added[e.handle] = e
	upd.ops = append(upd.ops, func() { c.elements[e.handle] = e })
	return e.handle, nil
}

// ElementChangeOpacity stages an opacity change.
func (c *Compositor) ElementChangeOpacity(u compositor.UpdateHandle, e compositor.ElementHandle, opacity uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	upd, ok := c.updates[u]
	if !ok {
		return fmt.Errorf("%w: update %d", compositor.ErrInvalidHandle, u)
	}
	if !c.lookupElement(upd, e) {
		return fmt.Errorf("%w: element %d", compositor.ErrInvalidHandle, e)
	}
	upd.ops = append(upd.ops, func() {
		if el, ok := c.elements[e]; ok {
			el.alpha.Opacity = opacity
		}
	})
	return nil
}

// ElementRemove stages the removal of e.
func (c *Compositor) ElementRemove(u compositor.UpdateHandle, e compositor.ElementHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	upd, ok := c.updates[u]
	if !ok {
		return fmt.Errorf("%w: update %d", compositor.ErrInvalidHandle, u)
	}
	if !c.lookupElement(upd, e) {
		return fmt.Errorf("%w: element %d", compositor.ErrInvalidHandle, e)
	}
	upd.removed[e] = true
	upd.ops = append(upd.ops, func() { delete(c.elements, e) })
	return nil
}

// UpdateSubmitSync applies every staged change of u at once.
func (c *Compositor) UpdateSubmitSync(u compositor.UpdateHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	upd, ok := c.updates[u]
	if !ok {
		return fmt.Errorf("%w: update %d", compositor.ErrInvalidHandle, u)
	}
	delete(c.updates, u)
	for _, op := range upd.ops {
		op()
	}
	c.submits++
	c.logger.Debug("software: update applied", "update", u, "ops", len(upd.ops))
	return nil
}

// ResourceDelete frees res. Deleting a resource still shown by an element
// is refused.
func (c *Compositor) ResourceDelete(res compositor.ResourceHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.resources[res]; !ok {
		return fmt.Errorf("%w: resource %d", compositor.ErrInvalidHandle, res)
	}
	for _, e := range c.elements {
		if e.res == res {
			return fmt.Errorf("compositor: resource %d still in use by element %d", res, e.handle)
		}
	}
	delete(c.resources, res)
	return nil
}

// DisplayClose closes d.
func (c *Compositor) DisplayClose(d compositor.DisplayHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.displays[d] {
		return fmt.Errorf("%w: display %d", compositor.ErrInvalidHandle, d)
	}
	delete(c.displays, d)
	return nil
}

// Close marks the compositor closed. Close is idempotent.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Stats counts live objects.
type Stats struct {
	Displays  int
	Resources int
	Elements  int
	Updates   int
	Submits   int
}

// Stats returns the number of live displays, resources, elements and open
// updates, plus the number of submitted updates.
func (c *Compositor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Displays:  len(c.displays),
		Resources: len(c.resources),
		Elements:  len(c.elements),
		Updates:   len(c.updates),
		Submits:   c.submits,
	}
}

// ElementInfo describes a committed element.
type ElementInfo struct {
	Handle   compositor.ElementHandle
	Layer    int32
	Resource compositor.ResourceHandle
	Dst      compositor.Rect
	Src      compositor.Rect
	Alpha    compositor.Alpha
}

// Elements returns the committed elements ordered bottom to top.
func (c *Compositor) Elements() []ElementInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ElementInfo, 0, len(c.elements))
	for _, e := range c.sortedElements() {
		out = append(out, ElementInfo{
			Handle:   e.handle,
			Layer:    e.layer,
			Resource: e.res,
			Dst:      e.dst,
			Src:      e.src,
			Alpha:    e.alpha,
		})
	}
	return out
}

// sortedElements must be called with c.mu held.
func (c *Compositor) sortedElements() []*element {
	list := make([]*element, 0, len(c.elements))
	for _, e := range c.elements {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].layer != list[j].layer {
			return list[i].layer < list[j].layer
		}
		return list[i].handle < list[j].handle
	})
	return list
}

// Snapshot renders the committed element stack over the background.
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	screen := image.Rect(0, 0, c.width, c.height)
	dst := image.NewRGBA(screen)
	xdraw.Draw(dst, screen, c.background, image.Point{}, xdraw.Src)

	for _, e := range c.sortedElements() {
		r := c.resources[e.res]
		if r == nil {
			continue
		}
		src := e.src.ToPixels()
		if e.dst.Empty() || src.Empty() {
			continue
		}
		layer := elementImage(r.buf, src.Image(), e.alpha)
		xdraw.NearestNeighbor.Scale(dst, e.dst.Image(), layer, layer.Bounds(), xdraw.Over, nil)
	}
	return dst
}

// elementImage expands the src area of buf to NRGBA and applies the
// element alpha specification.
func elementImage(buf *pix.ImageBuf, src image.Rectangle, alpha compositor.Alpha) *image.NRGBA {
	src = src.Intersect(image.Rect(0, 0, buf.Width(), buf.Height()))
	out := image.NewNRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))

	for y := 0; y < src.Dy(); y++ {
		for x := 0; x < src.Dx(); x++ {
			r, g, b, a := buf.GetRGBA(src.Min.X+x, src.Min.Y+y)
			switch alpha.Flags {
			case compositor.AlphaFixedAllPixels:
				a = alpha.Opacity
			case compositor.AlphaFixedNonZero:
				if a != 0 {
					a = alpha.Opacity
				}
			}
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
		}
	}
	return out
}
