package overlay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gogpu/overlay/compositor"
	"github.com/gogpu/overlay/internal/surface"
)

// updatePriority is the priority of every update the session starts.
const updatePriority = 0

// State is the lifecycle state of a Session.
type State uint8

const (
	// StateUninitialized is the state before Init succeeds and after Free.
	StateUninitialized State = iota

	// StateReady means both layers are live and the fade opacity can change.
	StateReady

	// StateFreeing means a Free call did not finish. The handles that are
	// still live are kept and the next Free retries them.
	StateFreeing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFreeing:
		return "freeing"
	default:
		return "unknown"
	}
}

// layer is a resource shown through an element.
type layer struct {
	res  compositor.ResourceHandle
	elem compositor.ElementHandle
}

// Session is a live overlay: a display, a fade layer and an optional
// vignette layer. Init either returns a ready Session or releases
// everything it created. A failed Free leaves the Session in StateFreeing
// holding the handles still to release.
//
// A Session is not safe for concurrent use.
type Session struct {
	comp     compositor.Compositor
	owned    bool
	opts     sessionOptions
	geometry surface.Geometry
	display  compositor.DisplayHandle
	fade     layer
	vignette layer
	opacity  uint8
	state    State
}

// cleanup is a stack of release steps run in reverse order.
type cleanup []func() error

func (c *cleanup) push(f func() error) {
	*c = append(*c, f)
}

func (c cleanup) run() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// Init opens the display and shows the overlay fully faded: the fade layer
// at opacity 255 and, when imagePath is not empty, the vignette below it.
//
// Both layers are inserted in one update. If any step fails, everything
// created so far is released and no layer stays on screen.
func Init(ctx context.Context, imagePath string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}

	s := &Session{opts: o}
	var undo cleanup
	err := s.init(ctx, imagePath, &undo)
	if err != nil {
		if cerr := undo.run(); cerr != nil {
			Logger().Warn("overlay: init cleanup incomplete", "err", cerr)
		}
		if s.comp != nil {
			untrackBackend(s.comp)
		}
		return nil, err
	}

	s.state = StateReady
	s.opacity = Opaque
	Logger().Info("overlay: session ready",
		"geometry", s.geometry.String(),
		"vignette", s.HasVignette(),
		"layers", []int32{o.vignetteLayer, o.fadeLayer},
		"pooled_buffers", o.pool.Len())
	return s, nil
}

func (s *Session) init(ctx context.Context, imagePath string, undo *cleanup) error {
	if err := s.openCompositor(undo); err != nil {
		return err
	}
	c := s.comp

	display, err := c.OpenDisplay(s.opts.display)
	if err == nil && !display.Valid() {
		err = errZeroHandle
	}
	if err != nil {
		return fmt.Errorf("%w: display %d: %w", ErrDisplayOpen, s.opts.display, err)
	}
	s.display = display
	undo.push(func() error { return c.DisplayClose(display) })

	w, h, err := c.DisplaySize(s.opts.display)
	if err != nil {
		return fmt.Errorf("%w: display %d: %w", ErrGeometryQuery, s.opts.display, err)
	}
	g, err := surface.NewGeometry(w, h, s.opts.align)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGeometryQuery, err)
	}
	s.geometry = g

	fade, err := surface.BuildFade(g, s.opts.pool, s.opts.fadeColor)
	if err != nil {
		return planeError(err)
	}
	s.fade.res, err = s.upload(fade, undo)
	if err != nil {
		return err
	}

	if imagePath != "" {
		src, err := surface.LoadVignette(imagePath)
		if err != nil {
			return planeError(err)
		}
		vignette, err := surface.BuildVignette(ctx, g, s.opts.pool, src)
		if err != nil {
			return planeError(err)
		}
		s.vignette.res, err = s.upload(vignette, undo)
		if err != nil {
			return err
		}
	}

	return s.insertLayers()
}

// openCompositor resolves the compositor from the options. Compositors
// opened from the registry are owned by the session.
func (s *Session) openCompositor(undo *cleanup) error {
	c := s.opts.compositor
	if c == nil {
		var err error
		c, err = compositor.Open(s.opts.backend, s.opts.backendOpts)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDisplayOpen, err)
		}
		s.owned = true
		undo.push(c.Close)
	}
	s.comp = c
	trackBackend(c)
	return nil
}

// planeError maps plane building errors onto the package taxonomy.
func planeError(err error) error {
	switch {
	case errors.Is(err, surface.ErrDimensionMismatch):
		return fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
	case errors.Is(err, surface.ErrDecode), errors.Is(err, surface.ErrSourceFormat):
		return fmt.Errorf("%w: %w", ErrDecode, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return canceled(err)
	default:
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}
}

// upload creates a resource for p and writes the plane into it. The plane
// buffer goes back to its pool either way.
func (s *Session) upload(p *surface.Plane, undo *cleanup) (compositor.ResourceHandle, error) {
	defer p.Release()

	c := s.comp
	g := p.Geometry()
	res, err := c.CreateResource(compositor.FormatRGBA16, g.Width, g.Height)
	if err == nil && !res.Valid() {
		err = errZeroHandle
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s plane %s: %w", ErrResourceCreate, p.Kind(), g, err)
	}
	undo.push(func() error { return c.ResourceDelete(res) })

	if err := c.WriteData(res, compositor.FormatRGBA16, p.Pitch(), p.Data(), compositor.PixelRect(g.Width, g.Height)); err != nil {
		return 0, fmt.Errorf("%w: write %s plane: %w", ErrResourceCreate, p.Kind(), err)
	}
	Logger().Debug("overlay: plane uploaded",
		"plane", p.Kind().String(),
		"resource", res,
		"bytes", len(p.Data()))
	return res, nil
}

// insertLayers adds the vignette (if any) and fade elements in one update.
// On failure no element stays on screen.
func (s *Session) insertLayers() (err error) {
	c := s.comp
	g := s.geometry
	dst := compositor.PixelRect(g.Width, g.Height)
	src := compositor.FixedRect(g.Width, g.Height)

	u, err := c.UpdateStart(updatePriority)
	if err == nil && !u.Valid() {
		err = errZeroHandle
	}
	if err != nil {
		return fmt.Errorf("%w: start: %w", ErrUpdateCommit, err)
	}

	var added []compositor.ElementHandle
	submitted := false
	defer func() {
		if err == nil {
			return
		}
		if rerr := s.retract(u, submitted, added); rerr != nil {
			Logger().Warn("overlay: retracting elements failed", "err", rerr)
		}
	}()

	if s.vignette.res.Valid() {
		alpha := compositor.Alpha{Flags: compositor.AlphaFromSource, Opacity: Opaque}
		e, err := c.ElementAdd(u, s.display, s.opts.vignetteLayer, dst, s.vignette.res, src, alpha, compositor.Rotate0)
		if err == nil && !e.Valid() {
			err = errZeroHandle
		}
		if err != nil {
			return fmt.Errorf("%w: add vignette element: %w", ErrUpdateCommit, err)
		}
		s.vignette.elem = e
		added = append(added, e)
	}

	alpha := compositor.Alpha{Flags: compositor.AlphaFixedAllPixels, Opacity: Opaque}
	e, err := c.ElementAdd(u, s.display, s.opts.fadeLayer, dst, s.fade.res, src, alpha, compositor.Rotate0)
	if err == nil && !e.Valid() {
		err = errZeroHandle
	}
	if err != nil {
		return fmt.Errorf("%w: add fade element: %w", ErrUpdateCommit, err)
	}
	s.fade.elem = e
	added = append(added, e)

	submitted = true
	if err := c.UpdateSubmitSync(u); err != nil {
		return fmt.Errorf("%w: submit: %w", ErrUpdateCommit, err)
	}
	return nil
}

// retract undoes a failed insertLayers. An update cannot be abandoned, so
// an unsubmitted one is submitted first and whatever it added is removed
// in a second update.
func (s *Session) retract(u compositor.UpdateHandle, submitted bool, added []compositor.ElementHandle) error {
	var errs []error
	if !submitted {
		errs = append(errs, s.comp.UpdateSubmitSync(u))
	}
	if len(added) > 0 {
		_, err := s.removeElements(added)
		errs = append(errs, err)
	}
	s.fade.elem, s.vignette.elem = 0, 0
	return errors.Join(errs...)
}

// removeElements removes elems in one synchronous update. It returns the
// elements that may still be on screen: those whose removal failed, or all
// of them when the update could not be started or submitted.
func (s *Session) removeElements(elems []compositor.ElementHandle) ([]compositor.ElementHandle, error) {
	c := s.comp
	u, err := c.UpdateStart(updatePriority)
	if err == nil && !u.Valid() {
		err = errZeroHandle
	}
	if err != nil {
		return elems, fmt.Errorf("%w: start: %w", ErrUpdateCommit, err)
	}

	var errs []error
	var left []compositor.ElementHandle
	for _, e := range elems {
		if err := c.ElementRemove(u, e); err != nil {
			errs = append(errs, fmt.Errorf("remove element %d: %w", e, err))
			left = append(left, e)
		}
	}
	if err := c.UpdateSubmitSync(u); err != nil {
		errs = append(errs, fmt.Errorf("submit: %w", err))
		left = elems
	}
	if err := errors.Join(errs...); err != nil {
		return left, fmt.Errorf("%w: %w", ErrUpdateCommit, err)
	}
	return nil, nil
}

// SetFadeOpacity changes the fade layer opacity in one update and waits
// until it is applied. The new value is recorded only after the submit
// succeeds.
func (s *Session) SetFadeOpacity(ctx context.Context, v uint8) error {
	if !s.ready() {
		return ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return canceled(err)
	}

	c := s.comp
	u, err := c.UpdateStart(updatePriority)
	if err == nil && !u.Valid() {
		err = errZeroHandle
	}
	if err != nil {
		return fmt.Errorf("%w: start: %w", ErrUpdateCommit, err)
	}
	if err := c.ElementChangeOpacity(u, s.fade.elem, v); err != nil {
		// Close the update; it carries no change.
		_ = c.UpdateSubmitSync(u)
		return fmt.Errorf("%w: opacity %d: %w", ErrUpdateCommit, v, err)
	}
	if err := c.UpdateSubmitSync(u); err != nil {
		return fmt.Errorf("%w: submit opacity %d: %w", ErrUpdateCommit, v, err)
	}

	s.opacity = v
	Logger().Debug("overlay: fade opacity", "opacity", v)
	return nil
}

// Free removes the layers, deletes their resources and closes the display.
//
// Elements are removed first; while any is still on screen nothing else is
// released. Each handle is dropped once its release succeeds, so when Free
// returns an error the session is left in StateFreeing and calling Free
// again retries only what is left. Free on an uninitialized session is a
// no-op returning nil.
func (s *Session) Free() error {
	if s == nil || s.state == StateUninitialized {
		return nil
	}
	s.state = StateFreeing
	c := s.comp

	var errs []error
	if elems := s.liveElements(); len(elems) > 0 {
		left, err := s.removeElements(elems)
		if err != nil {
			errs = append(errs, err)
		}
		s.keepElements(left)
	}

	if len(s.liveElements()) == 0 {
		for _, l := range []*layer{&s.vignette, &s.fade} {
			if !l.res.Valid() {
				continue
			}
			if err := c.ResourceDelete(l.res); err != nil {
				errs = append(errs, fmt.Errorf("overlay: delete resource %d: %w", l.res, err))
				continue
			}
			l.res = 0
		}
		if s.display.Valid() {
			if err := c.DisplayClose(s.display); err != nil {
				errs = append(errs, fmt.Errorf("overlay: close display: %w", err))
			} else {
				s.display = 0
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		Logger().Warn("overlay: free incomplete",
			"err", err,
			"elements", len(s.liveElements()),
			"display_open", s.display.Valid())
		return err
	}

	s.state = StateUninitialized
	untrackBackend(c)
	if s.owned {
		if err := c.Close(); err != nil {
			return fmt.Errorf("overlay: close compositor: %w", err)
		}
	}
	Logger().Info("overlay: session freed")
	return nil
}

// liveElements returns the elements still inserted, vignette first.
func (s *Session) liveElements() []compositor.ElementHandle {
	var out []compositor.ElementHandle
	for _, e := range []compositor.ElementHandle{s.vignette.elem, s.fade.elem} {
		if e.Valid() {
			out = append(out, e)
		}
	}
	return out
}

// keepElements drops every element handle not in left.
func (s *Session) keepElements(left []compositor.ElementHandle) {
	for _, l := range []*layer{&s.vignette, &s.fade} {
		if !slices.Contains(left, l.elem) {
			l.elem = 0
		}
	}
}

func (s *Session) ready() bool {
	return s != nil && s.state == StateReady
}

// State returns the lifecycle state.
func (s *Session) State() State {
	if s == nil {
		return StateUninitialized
	}
	return s.state
}

// Geometry returns the display size and plane pitch.
func (s *Session) Geometry() surface.Geometry { return s.geometry }

// Opacity returns the last fade opacity the compositor applied.
func (s *Session) Opacity() uint8 { return s.opacity }

// HasVignette reports whether the session shows a vignette layer.
func (s *Session) HasVignette() bool { return s.vignette.res.Valid() }

// Compositor returns the compositor the session drives.
func (s *Session) Compositor() compositor.Compositor { return s.comp }

// Defaults returns the ramp duration and step configured with
// WithDefaults.
func (s *Session) Defaults() (time.Duration, int) {
	return s.opts.duration, s.opts.step
}
