// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositortest

import (
	"errors"
	"testing"

	"github.com/gogpu/overlay/compositor"
	"github.com/gogpu/overlay/compositor/software"
)

func TestRecorderForwards(t *testing.T) {
	r := New(software.New(8, 8))

	d, err := r.OpenDisplay(0)
	if err != nil || !d.Valid() {
		t.Fatalf("OpenDisplay = %d, %v", d, err)
	}
	w, h, err := r.DisplaySize(0)
	if err != nil || w != 8 || h != 8 {
		t.Fatalf("DisplaySize = %d, %d, %v", w, h, err)
	}
	if err := r.DisplayClose(d); err != nil {
		t.Fatalf("DisplayClose: %v", err)
	}

	if got, want := r.Ops(), "OpenDisplay DisplaySize DisplayClose"; got != want {
		t.Errorf("Ops = %q, want %q", got, want)
	}
	if got := r.Count(OpOpenDisplay); got != 1 {
		t.Errorf("Count(OpenDisplay) = %d, want 1", got)
	}
}

func TestRecorderFailOn(t *testing.T) {
	inner := software.New(8, 8)
	r := New(inner)
	sentinel := errors.New("boom")
	r.FailOn(OpCreateResource, 2, sentinel)

	if _, err := r.CreateResource(compositor.FormatRGBA16, 2, 2); err != nil {
		t.Fatalf("first CreateResource: %v", err)
	}
	if _, err := r.CreateResource(compositor.FormatRGBA16, 2, 2); !errors.Is(err, sentinel) {
		t.Fatalf("second CreateResource error = %v, want sentinel", err)
	}
	if _, err := r.CreateResource(compositor.FormatRGBA16, 2, 2); err != nil {
		t.Fatalf("third CreateResource: %v", err)
	}

	if got := inner.Stats().Resources; got != 2 {
		t.Errorf("live resources = %d, want 2", got)
	}
	if got, want := r.Ops(), "CreateResource CreateResource! CreateResource"; got != want {
		t.Errorf("Ops = %q, want %q", got, want)
	}
}

func TestRecorderFailOnDefaultError(t *testing.T) {
	r := New(software.New(8, 8))
	r.FailOn(OpUpdateStart, 1, nil)

	if _, err := r.UpdateStart(0); !errors.Is(err, ErrInjected) {
		t.Errorf("UpdateStart error = %v, want ErrInjected", err)
	}
}

func TestRecorderZeroHandle(t *testing.T) {
	inner := software.New(8, 8)
	r := New(inner)
	r.ZeroHandleOn(OpOpenDisplay, 1)

	d, err := r.OpenDisplay(0)
	if err != nil {
		t.Fatalf("OpenDisplay error = %v, want nil", err)
	}
	if d.Valid() {
		t.Errorf("OpenDisplay handle = %d, want 0", d)
	}
	if got := inner.Stats().Displays; got != 0 {
		t.Errorf("live displays = %d, want 0", got)
	}
	if got, want := r.Ops(), "OpenDisplay!"; got != want {
		t.Errorf("Ops = %q, want %q", got, want)
	}
}

func TestRecorderReset(t *testing.T) {
	r := New(software.New(8, 8))
	r.FailOn(OpClose, 1, nil)
	r.Reset()

	if err := r.Close(); err != nil {
		t.Fatalf("Close after Reset: %v", err)
	}
	if got := len(r.Calls()); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRecorderCallDetails(t *testing.T) {
	r := New(software.New(4, 4))
	d, _ := r.OpenDisplay(0)
	res, _ := r.CreateResource(compositor.FormatRGBA16, 4, 4)
	u, _ := r.UpdateStart(0)
	alpha := compositor.Alpha{Flags: compositor.AlphaFixedAllPixels, Opacity: 255}
	e, err := r.ElementAdd(u, d, 3, compositor.PixelRect(4, 4), res, compositor.FixedRect(4, 4), alpha, compositor.Rotate0)
	if err != nil {
		t.Fatalf("ElementAdd: %v", err)
	}
	if err := r.ElementChangeOpacity(u, e, 128); err != nil {
		t.Fatalf("ElementChangeOpacity: %v", err)
	}

	calls := r.Calls()
	add := calls[len(calls)-2]
	if add.Op != OpElementAdd || add.Layer != 3 || add.Alpha != alpha {
		t.Errorf("ElementAdd call = %+v", add)
	}
	change := calls[len(calls)-1]
	if change.Op != OpElementChangeOpacity || change.Opacity != 128 {
		t.Errorf("ElementChangeOpacity call = %+v", change)
	}
}
