// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compositortest provides a call-recording, fault-injecting
// compositor wrapper for tests.
package compositortest

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gogpu/overlay/compositor"
)

// Operation names recorded by Recorder.
const (
	OpOpenDisplay          = "OpenDisplay"
	OpDisplaySize          = "DisplaySize"
	OpCreateResource       = "CreateResource"
	OpWriteData            = "WriteData"
	OpUpdateStart          = "UpdateStart"
	OpElementAdd           = "ElementAdd"
	OpElementChangeOpacity = "ElementChangeOpacity"
	OpElementRemove        = "ElementRemove"
	OpUpdateSubmitSync     = "UpdateSubmitSync"
	OpResourceDelete       = "ResourceDelete"
	OpDisplayClose         = "DisplayClose"
	OpClose                = "Close"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("compositortest: injected fault")

// Call is one recorded compositor call.
type Call struct {
	Op string

	// Layer and Opacity are set for ElementAdd and ElementChangeOpacity.
	Layer   int32
	Opacity uint8

	// Alpha is set for ElementAdd.
	Alpha compositor.Alpha

	// Width and Height are set for CreateResource.
	Width, Height int

	// Pitch is set for WriteData.
	Pitch int

	// Err is the error the call returned.
	Err error
}

func (c Call) String() string {
	if c.Err != nil {
		return c.Op + "!"
	}
	return c.Op
}

type fault struct {
	nth      int
	err      error
	zeroOnly bool
}

// Recorder wraps a Compositor, recording every call and optionally failing
// chosen calls.
type Recorder struct {
	inner compositor.Compositor

	mu     sync.Mutex
	calls  []Call
	seen   map[string]int
	faults map[string]fault
}

var _ compositor.Compositor = (*Recorder)(nil)

// New wraps inner.
func New(inner compositor.Compositor) *Recorder {
	return &Recorder{
		inner:  inner,
		seen:   make(map[string]int),
		faults: make(map[string]fault),
	}
}

// FailOn makes the nth (1-based) call of op return err without reaching
// the wrapped compositor. A nil err selects ErrInjected.
func (r *Recorder) FailOn(op string, nth int, err error) {
	if err == nil {
		err = ErrInjected
	}
	r.mu.Lock()
	r.faults[op] = fault{nth: nth, err: err}
	r.mu.Unlock()
}

// ZeroHandleOn makes the nth call of a handle-returning op return a zero
// handle with a nil error, as a C service reporting failure would.
func (r *Recorder) ZeroHandleOn(op string, nth int) {
	r.mu.Lock()
	r.faults[op] = fault{nth: nth, zeroOnly: true}
	r.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns the recorded operation names joined by spaces. Failed calls
// carry a trailing "!".
func (r *Recorder) Ops() string {
	calls := r.Calls()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.String()
	}
	return strings.Join(names, " ")
}

// Count returns how many times op was called.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[op]
}

// Reset forgets recorded calls and faults.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.seen = make(map[string]int)
	r.faults = make(map[string]fault)
}

// SetLogger forwards l to the wrapped compositor if it accepts a logger.
func (r *Recorder) SetLogger(l *slog.Logger) {
	if ls, ok := r.inner.(compositor.LoggerSetter); ok {
		ls.SetLogger(l)
	}
}

// enter counts a call of op and reports an injected fault, if any.
func (r *Recorder) enter(op string) (zero bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen[op]++
	f, ok := r.faults[op]
	if !ok || f.nth != r.seen[op] {
		return false, nil
	}
	if f.zeroOnly {
		return true, nil
	}
	return false, f.err
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

// OpenDisplay records and forwards.
func (r *Recorder) OpenDisplay(index int) (compositor.DisplayHandle, error) {
	zero, err := r.enter(OpOpenDisplay)
	var h compositor.DisplayHandle
	if err == nil && !zero {
		h, err = r.inner.OpenDisplay(index)
	}
	r.record(Call{Op: OpOpenDisplay, Err: failure(err, zero)})
	return h, err
}

// DisplaySize records and forwards.
func (r *Recorder) DisplaySize(index int) (int, int, error) {
	zero, err := r.enter(OpDisplaySize)
	var w, h int
	if err == nil && !zero {
		w, h, err = r.inner.DisplaySize(index)
	}
	r.record(Call{Op: OpDisplaySize, Width: w, Height: h, Err: failure(err, zero)})
	return w, h, err
}

// CreateResource records and forwards.
func (r *Recorder) CreateResource(format compositor.PixelFormat, width, height int) (compositor.ResourceHandle, error) {
	zero, err := r.enter(OpCreateResource)
	var h compositor.ResourceHandle
	if err == nil && !zero {
		h, err = r.inner.CreateResource(format, width, height)
	}
	r.record(Call{Op: OpCreateResource, Width: width, Height: height, Err: failure(err, zero)})
	return h, err
}

// WriteData records and forwards.
func (r *Recorder) WriteData(res compositor.ResourceHandle, format compositor.PixelFormat, pitch int, data []byte, rect compositor.Rect) error {
	_, err := r.enter(OpWriteData)
	if err == nil {
		err = r.inner.WriteData(res, format, pitch, data, rect)
	}
	r.record(Call{Op: OpWriteData, Pitch: pitch, Width: int(rect.Width), Height: int(rect.Height), Err: err})
	return err
}

// UpdateStart records and forwards.
func (r *Recorder) UpdateStart(priority int) (compositor.UpdateHandle, error) {
	zero, err := r.enter(OpUpdateStart)
	var h compositor.UpdateHandle
	if err == nil && !zero {
		h, err = r.inner.UpdateStart(priority)
	}
	r.record(Call{Op: OpUpdateStart, Err: failure(err, zero)})
	return h, err
}

// ElementAdd records and forwards.
func (r *Recorder) ElementAdd(u compositor.UpdateHandle, d compositor.DisplayHandle, layer int32, dst compositor.Rect,
	res compositor.ResourceHandle, src compositor.Rect, alpha compositor.Alpha, rot compositor.Rotation,
) (compositor.ElementHandle, error) {
	zero, err := r.enter(OpElementAdd)
	var h compositor.ElementHandle
	if err == nil && !zero {
		h, err = r.inner.ElementAdd(u, d, layer, dst, res, src, alpha, rot)
	}
	r.record(Call{Op: OpElementAdd, Layer: layer, Alpha: alpha, Opacity: alpha.Opacity, Err: failure(err, zero)})
	return h, err
}

// ElementChangeOpacity records and forwards.
func (r *Recorder) ElementChangeOpacity(u compositor.UpdateHandle, e compositor.ElementHandle, opacity uint8) error {
	_, err := r.enter(OpElementChangeOpacity)
	if err == nil {
		err = r.inner.ElementChangeOpacity(u, e, opacity)
	}
	r.record(Call{Op: OpElementChangeOpacity, Opacity: opacity, Err: err})
	return err
}

// ElementRemove records and forwards.
func (r *Recorder) ElementRemove(u compositor.UpdateHandle, e compositor.ElementHandle) error {
	_, err := r.enter(OpElementRemove)
	if err == nil {
		err = r.inner.ElementRemove(u, e)
	}
	r.record(Call{Op: OpElementRemove, Err: err})
	return err
}

// UpdateSubmitSync records and forwards.
func (r *Recorder) UpdateSubmitSync(u compositor.UpdateHandle) error {
	_, err := r.enter(OpUpdateSubmitSync)
	if err == nil {
		err = r.inner.UpdateSubmitSync(u)
	}
	r.record(Call{Op: OpUpdateSubmitSync, Err: err})
	return err
}

// ResourceDelete records and forwards.
func (r *Recorder) ResourceDelete(res compositor.ResourceHandle) error {
	_, err := r.enter(OpResourceDelete)
	if err == nil {
		err = r.inner.ResourceDelete(res)
	}
	r.record(Call{Op: OpResourceDelete, Err: err})
	return err
}

// DisplayClose records and forwards.
func (r *Recorder) DisplayClose(d compositor.DisplayHandle) error {
	_, err := r.enter(OpDisplayClose)
	if err == nil {
		err = r.inner.DisplayClose(d)
	}
	r.record(Call{Op: OpDisplayClose, Err: err})
	return err
}

// Close records and forwards.
func (r *Recorder) Close() error {
	_, err := r.enter(OpClose)
	if err == nil {
		err = r.inner.Close()
	}
	r.record(Call{Op: OpClose, Err: err})
	return err
}

// failure returns the error to record for a call that returned err, or a
// zero handle when zero is set.
func failure(err error, zero bool) error {
	if zero {
		return fmt.Errorf("%w: zero handle", ErrInjected)
	}
	return err
}
