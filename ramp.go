package overlay

import (
	"fmt"
	"math"
	"time"
)

// Opacity bounds of the fade layer.
const (
	Transparent uint8 = 0
	Opaque      uint8 = 255
)

// Step is one frame of a ramp: the opacity to apply and how long to hold it.
type Step struct {
	Opacity uint8
	Delay   time.Duration
}

// Ramp walks the fade opacity from From to To in increments of Step,
// spreading Duration evenly over the transitions.
//
// The sequence is deterministic and always contains both endpoints; the
// last increment is clamped so the final value is exactly To.
type Ramp struct {
	From     uint8
	To       uint8
	Step     int
	Duration time.Duration
}

// NewRamp returns a validated ramp. step must be in 1..255 and duration
// must not be negative.
func NewRamp(from, to uint8, step int, duration time.Duration) (Ramp, error) {
	r := Ramp{From: from, To: to, Step: step, Duration: duration}
	if err := r.Validate(); err != nil {
		return Ramp{}, err
	}
	return r, nil
}

// maxDurationMs is the longest duration in milliseconds a time.Duration
// can hold.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

// millis converts a millisecond count to a duration, rejecting values that
// are negative or do not fit.
func millis(durationMs int) (time.Duration, error) {
	if durationMs < 0 {
		return 0, fmt.Errorf("%w: negative duration %dms", ErrInvalidArgument, durationMs)
	}
	if int64(durationMs) > maxDurationMs {
		return 0, fmt.Errorf("%w: duration %dms too large", ErrInvalidArgument, durationMs)
	}
	return time.Duration(durationMs) * time.Millisecond, nil
}

// FadeInRamp returns the ramp from Opaque to Transparent.
func FadeInRamp(durationMs, step int) (Ramp, error) {
	d, err := millis(durationMs)
	if err != nil {
		return Ramp{}, err
	}
	return NewRamp(Opaque, Transparent, step, d)
}

// FadeOutRamp returns the ramp from Transparent to Opaque.
func FadeOutRamp(durationMs, step int) (Ramp, error) {
	d, err := millis(durationMs)
	if err != nil {
		return Ramp{}, err
	}
	return NewRamp(Transparent, Opaque, step, d)
}

func validateRamp(step int, duration time.Duration) error {
	if step < 1 || step > 255 {
		return fmt.Errorf("%w: step %d outside 1..255", ErrInvalidArgument, step)
	}
	if duration < 0 {
		return fmt.Errorf("%w: negative duration %v", ErrInvalidArgument, duration)
	}
	return nil
}

// Validate reports ErrInvalidArgument for a step outside 1..255 or a
// negative duration.
func (r Ramp) Validate() error {
	return validateRamp(r.Step, r.Duration)
}

func (r Ramp) distance() int {
	d := int(r.To) - int(r.From)
	if d < 0 {
		d = -d
	}
	return d
}

// Count returns the number of transitions, ceil(|To-From| / Step). A full
// ramp between 0 and 255 has ceil(255/Step) transitions.
func (r Ramp) Count() int {
	if r.Step < 1 {
		return 0
	}
	return (r.distance() + r.Step - 1) / r.Step
}

// Delay returns how long each value is held: Duration / Count, truncated to
// whole microseconds. A ramp without transitions has no delay.
func (r Ramp) Delay() time.Duration {
	n := r.Count()
	if n == 0 {
		return 0
	}
	return (r.Duration / time.Duration(n)).Truncate(time.Microsecond)
}

// Values returns the opacity sequence, Count()+1 values from From to To.
func (r Ramp) Values() []uint8 {
	n := r.Count()
	out := make([]uint8, 0, n+1)

	v := int(r.From)
	out = append(out, r.From)
	for i := 0; i < n; i++ {
		if r.To > r.From {
			v = min(v+r.Step, int(r.To))
		} else {
			v = max(v-r.Step, int(r.To))
		}
		out = append(out, uint8(v))
	}
	return out
}

// Steps returns the full sequence with the hold delay of every frame.
func (r Ramp) Steps() []Step {
	delay := r.Delay()
	values := r.Values()
	steps := make([]Step, len(values))
	for i, v := range values {
		steps[i] = Step{Opacity: v, Delay: delay}
	}
	return steps
}

func (r Ramp) String() string {
	return fmt.Sprintf("%d->%d step %d over %v", r.From, r.To, r.Step, r.Duration)
}
