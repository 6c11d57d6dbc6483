package overlay

import (
	"context"
	"fmt"
)

// FadeIn ramps the fade opacity from 255 down to 0, revealing the screen.
//
// It computes ceil(255/step) transitions, holds every value, the last one
// included, for durationMs*1000/steps microseconds and returns once the
// final value has been applied and held. step must be in 1..255 and
// durationMs must not be negative.
func (s *Session) FadeIn(ctx context.Context, durationMs, step int) error {
	r, err := FadeInRamp(durationMs, step)
	if err != nil {
		return err
	}
	return s.Play(ctx, r)
}

// FadeOut ramps the fade opacity from 0 up to 255, hiding the screen. It
// mirrors FadeIn.
func (s *Session) FadeOut(ctx context.Context, durationMs, step int) error {
	r, err := FadeOutRamp(durationMs, step)
	if err != nil {
		return err
	}
	return s.Play(ctx, r)
}

// FadeInDefault runs FadeIn with the duration and step set by WithDefaults.
func (s *Session) FadeInDefault(ctx context.Context) error {
	return s.playDefault(ctx, Opaque, Transparent)
}

// FadeOutDefault runs FadeOut with the duration and step set by
// WithDefaults.
func (s *Session) FadeOutDefault(ctx context.Context) error {
	return s.playDefault(ctx, Transparent, Opaque)
}

func (s *Session) playDefault(ctx context.Context, from, to uint8) error {
	if s == nil {
		return ErrNotInitialized
	}
	d, step := s.Defaults()
	r, err := NewRamp(from, to, step, d)
	if err != nil {
		return err
	}
	return s.Play(ctx, r)
}

// Play applies every value of r in order, pacing them with the session
// clock.
//
// The context is checked before each commit and during each hold, never
// in the middle of a commit. On any error Play stops and returns it; the
// fade opacity stays at the last value applied.
func (s *Session) Play(ctx context.Context, r Ramp) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if !s.ready() {
		return ErrNotInitialized
	}

	Logger().Debug("overlay: ramp start", "ramp", r.String(), "transitions", r.Count(), "delay", r.Delay())

	for i, st := range r.Steps() {
		if err := ctx.Err(); err != nil {
			return canceled(err)
		}
		if err := s.SetFadeOpacity(ctx, st.Opacity); err != nil {
			return fmt.Errorf("overlay: ramp step %d of %d: %w", i, r.Count(), err)
		}
		if st.Delay > 0 {
			if err := s.opts.clock.Sleep(ctx, st.Delay); err != nil {
				if ctx.Err() != nil {
					return canceled(err)
				}
				return fmt.Errorf("overlay: ramp step %d of %d: hold: %w", i, r.Count(), err)
			}
		}
	}
	return nil
}
