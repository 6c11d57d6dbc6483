package overlay

import (
	"fmt"
	"time"

	"github.com/gogpu/overlay/compositor"
	pix "github.com/gogpu/overlay/internal/image"
	"github.com/gogpu/overlay/internal/surface"
)

// Default layer depths. The vignette sits strictly below the fade layer.
const (
	DefaultVignetteLayer int32 = 2
	DefaultFadeLayer     int32 = 3
)

// Default ramp parameters used by FadeInDefault and FadeOutDefault.
const (
	DefaultDuration = 500 * time.Millisecond
	DefaultStep     = 5
)

// Option configures a Session during Init.
//
// Example:
//
//	// Best available backend, defaults everywhere
//	s, err := overlay.Init(ctx, "")
//
//	// Explicit compositor (dependency injection)
//	s, err := overlay.Init(ctx, "", overlay.WithCompositor(software.New(800, 480)))
type Option func(*sessionOptions)

// sessionOptions holds optional configuration for Init.
type sessionOptions struct {
	compositor    compositor.Compositor
	backend       string
	backendOpts   compositor.Options
	display       int
	align         int
	vignetteLayer int32
	fadeLayer     int32
	fadeColor     uint16
	clock         Clock
	duration      time.Duration
	step          int
	pool          *pix.Pool
}

func defaultOptions() sessionOptions {
	return sessionOptions{
		align:         surface.DefaultAlign,
		vignetteLayer: DefaultVignetteLayer,
		fadeLayer:     DefaultFadeLayer,
		fadeColor:     pix.FadeColor,
		clock:         SystemClock(),
		duration:      DefaultDuration,
		step:          DefaultStep,
		pool:          pix.DefaultPool(),
	}
}

// validate rejects option combinations before any compositor call.
func (o *sessionOptions) validate() error {
	if o.display < 0 {
		return fmt.Errorf("%w: display index %d", ErrInvalidArgument, o.display)
	}
	if o.align < 1 || o.align&(o.align-1) != 0 {
		return fmt.Errorf("%w: pitch alignment %d is not a power of two", ErrInvalidArgument, o.align)
	}
	if o.vignetteLayer >= o.fadeLayer {
		return fmt.Errorf("%w: vignette layer %d must be below fade layer %d", ErrInvalidArgument, o.vignetteLayer, o.fadeLayer)
	}
	if err := validateRamp(o.step, o.duration); err != nil {
		return err
	}
	if o.clock == nil {
		return fmt.Errorf("%w: nil clock", ErrInvalidArgument)
	}
	return nil
}

// WithCompositor makes the session use c instead of opening a backend from
// the registry. The caller keeps ownership: Free does not close c.
func WithCompositor(c compositor.Compositor) Option {
	return func(o *sessionOptions) {
		o.compositor = c
	}
}

// WithBackend selects a registered backend by name. An empty name picks the
// best available one. The session closes the backend on Free.
func WithBackend(name string, opts compositor.Options) Option {
	return func(o *sessionOptions) {
		o.backend = name
		o.backendOpts = opts
	}
}

// WithDisplay selects the display index. The default is 0.
func WithDisplay(index int) Option {
	return func(o *sessionOptions) {
		o.display = index
	}
}

// WithPitchAlign sets the row pitch alignment in bytes. It must be a power
// of two; the default is 32.
func WithPitchAlign(align int) Option {
	return func(o *sessionOptions) {
		o.align = align
	}
}

// WithLayers sets the vignette and fade layer depths. The vignette depth
// must be below the fade depth.
func WithLayers(vignette, fade int32) Option {
	return func(o *sessionOptions) {
		o.vignetteLayer = vignette
		o.fadeLayer = fade
	}
}

// WithFadeColor sets the packed RGBA4444 color of the fade plane.
func WithFadeColor(c uint16) Option {
	return func(o *sessionOptions) {
		o.fadeColor = c
	}
}

// WithClock sets the clock that paces ramps.
func WithClock(c Clock) Option {
	return func(o *sessionOptions) {
		o.clock = c
	}
}

// WithDefaults sets the ramp duration and step used by FadeInDefault and
// FadeOutDefault. Init rejects a step outside 1..255 or a negative
// duration.
func WithDefaults(duration time.Duration, step int) Option {
	return func(o *sessionOptions) {
		o.duration = duration
		o.step = step
	}
}

// WithPool sets the pool plane buffers are drawn from.
func WithPool(p *pix.Pool) Option {
	return func(o *sessionOptions) {
		if p != nil {
			o.pool = p
		}
	}
}
