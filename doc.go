// Package overlay draws a full-screen fade layer and an optional vignette
// image layer on top of a display compositor, and animates the fade layer's
// opacity to produce fade-in and fade-out transitions.
//
// # Overview
//
// The overlay owns two planes of packed 16-bit RGBA4444 pixels. The fade
// plane is solid black with a full alpha nibble; the compositor shows it
// with a fixed, element-wide opacity so that only that opacity matters.
// The vignette plane is decoded from an image file the size of the display
// and blended by its own per-pixel alpha, below the fade plane.
//
// # Quick Start
//
//	import "github.com/gogpu/overlay"
//
//	s, err := overlay.Init(ctx, "/opt/mirror/vignette.png")
//	if err != nil {
//	    return err
//	}
//	defer s.Free()
//
//	// Reveal the screen over half a second, 5 opacity units at a time.
//	if err := s.FadeIn(ctx, 500, 5); err != nil {
//	    return err
//	}
//
// Init starts fully faded (opacity 255). FadeIn ramps to 0, FadeOut ramps
// back to 255. Both endpoints are always applied.
//
// # Backends
//
// The compositor is chosen from the compositor registry: dispmanx on a
// Raspberry Pi built with the "dispmanx" tag, the in-memory software
// compositor elsewhere. Import the backends for their side effects:
//
//	import (
//	    _ "github.com/gogpu/overlay/compositor/dispmanx"
//	    _ "github.com/gogpu/overlay/compositor/software"
//	)
//
// or pass one explicitly with [WithCompositor].
//
// # Concurrency
//
// A Session is not safe for concurrent use. Every compositor call blocks
// until the compositor answers, and each opacity change is visible before
// the next ramp delay begins. Ramps stop between commits when their
// context is canceled. There are no timeouts: a hung compositor hangs the
// caller.
//
// # Errors
//
// Errors wrap one of the sentinel values in this package, for example
// [ErrDisplayOpen] or [ErrDimensionMismatch]. [Code] maps any error onto an
// [ErrorCode] for hosts that report integer status codes.
package overlay
