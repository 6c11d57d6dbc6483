// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux && cgo && dispmanx

package dispmanx

/*
#cgo CFLAGS: -I/opt/vc/include -I/opt/vc/include/interface/vcos/pthreads -I/opt/vc/include/interface/vmcs_host/linux
#cgo LDFLAGS: -L/opt/vc/lib -lbcm_host -lvcos -lvchiq_arm

#include <bcm_host.h>
*/
import "C"

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/gogpu/overlay/compositor"
)

func init() {
	compositor.Register(Name, Priority, func(compositor.Options) (compositor.Compositor, error) {
		return New(), nil
	}, available)
}

func available() bool {
	_, err := os.Stat(DevicePath)
	return err == nil
}

var hostInit sync.Once

// Compositor talks to the firmware dispmanx service.
//
// Every call blocks until the firmware answers.
type Compositor struct {
	mu     sync.Mutex
	logger *slog.Logger
}

var _ compositor.Compositor = (*Compositor)(nil)

// New initializes the VideoCore host interface once per process and
// returns a compositor bound to it.
func New() *Compositor {
	hostInit.Do(func() { C.bcm_host_init() })
	return &Compositor{logger: slog.New(slog.DiscardHandler)}
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

func (c *Compositor) log() *slog.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

func vcRect(r compositor.Rect) C.VC_RECT_T {
	return C.VC_RECT_T{
		x:      C.int32_t(r.X),
		y:      C.int32_t(r.Y),
		width:  C.int32_t(r.Width),
		height: C.int32_t(r.Height),
	}
}

func imageType(f compositor.PixelFormat) (C.VC_IMAGE_TYPE_T, error) {
	if f != compositor.FormatRGBA16 {
		return 0, fmt.Errorf("%w: %v", compositor.ErrUnsupportedFormat, f)
	}
	return C.VC_IMAGE_RGBA16, nil
}

// status converts a firmware return code.
func status(op string, rc C.int) error {
	if rc != 0 {
		return fmt.Errorf("dispmanx: %s failed: %d", op, int(rc))
	}
	return nil
}

// OpenDisplay opens display index. The firmware returns 0 on failure.
func (c *Compositor) OpenDisplay(index int) (compositor.DisplayHandle, error) {
	h := compositor.DisplayHandle(C.vc_dispmanx_display_open(C.uint32_t(index)))
	if !h.Valid() {
		return 0, fmt.Errorf("%w: %d", compositor.ErrNoDisplay, index)
	}
	return h, nil
}

// DisplaySize queries the size of display index.
func (c *Compositor) DisplaySize(index int) (int, int, error) {
	var w, h C.uint32_t
	if rc := C.graphics_get_display_size(C.uint16_t(index), &w, &h); rc < 0 {
		return 0, 0, fmt.Errorf("dispmanx: display size %d: %d", index, int(rc))
	}
	return int(w), int(h), nil
}

// CreateResource allocates a VideoCore image resource.
func (c *Compositor) CreateResource(format compositor.PixelFormat, width, height int) (compositor.ResourceHandle, error) {
	typ, err := imageType(format)
	if err != nil {
		return 0, err
	}
	var native C.uint32_t
	h := compositor.ResourceHandle(C.vc_dispmanx_resource_create(typ, C.uint32_t(width), C.uint32_t(height), &native))
	if !h.Valid() {
		return 0, fmt.Errorf("dispmanx: resource create %dx%d failed", width, height)
	}
	c.log().Debug("dispmanx: resource created", "handle", h, "width", width, "height", height)
	return h, nil
}

// WriteData uploads data to res. The firmware copies synchronously.
func (c *Compositor) WriteData(res compositor.ResourceHandle, format compositor.PixelFormat, pitch int, data []byte, rect compositor.Rect) error {
	typ, err := imageType(format)
	if err != nil {
		return err
	}
	rows := int(rect.Height)
	if rows <= 0 {
		return nil
	}
	if pitch < int(rect.Width)*format.BytesPerPixel() || len(data) < pitch*rows {
		return compositor.ErrBadPitch
	}
	r := vcRect(rect)
	rc := C.vc_dispmanx_resource_write_data(C.DISPMANX_RESOURCE_HANDLE_T(res), typ, C.int(pitch), unsafe.Pointer(&data[0]), &r)
	return status("resource write", rc)
}

// UpdateStart opens an update.
func (c *Compositor) UpdateStart(priority int) (compositor.UpdateHandle, error) {
	h := compositor.UpdateHandle(C.vc_dispmanx_update_start(C.int32_t(priority)))
	if !h.Valid() {
		return 0, fmt.Errorf("dispmanx: update start failed")
	}
	return h, nil
}

// ElementAdd stages a new element.
func (c *Compositor) ElementAdd(u compositor.UpdateHandle, d compositor.DisplayHandle, layer int32, dst compositor.Rect,
	res compositor.ResourceHandle, src compositor.Rect, alpha compositor.Alpha, rot compositor.Rotation,
) (compositor.ElementHandle, error) {
	dr, sr := vcRect(dst), vcRect(src)
	va := C.VC_DISPMANX_ALPHA_T{
		flags:   C.DISPMANX_FLAGS_ALPHA_T(alpha.Flags),
		opacity: C.uint32_t(alpha.Opacity),
	}
	h := compositor.ElementHandle(C.vc_dispmanx_element_add(
		C.DISPMANX_UPDATE_HANDLE_T(u),
		C.DISPMANX_DISPLAY_HANDLE_T(d),
		C.int32_t(layer),
		&dr,
		C.DISPMANX_RESOURCE_HANDLE_T(res),
		&sr,
		C.DISPMANX_PROTECTION_NONE,
		&va,
		nil,
		C.DISPMANX_TRANSFORM_T(rot),
	))
	if !h.Valid() {
		return 0, fmt.Errorf("dispmanx: element add on layer %d failed", layer)
	}
	return h, nil
}

// changeOpacity is the change_attributes flag selecting the opacity field.
const changeOpacity = 1 << 1

// ElementChangeOpacity stages an opacity change.
func (c *Compositor) ElementChangeOpacity(u compositor.UpdateHandle, e compositor.ElementHandle, opacity uint8) error {
	rc := C.vc_dispmanx_element_change_attributes(
		C.DISPMANX_UPDATE_HANDLE_T(u),
		C.DISPMANX_ELEMENT_HANDLE_T(e),
		changeOpacity,
		0,
		C.uint8_t(opacity),
		nil, nil, 0,
		C.DISPMANX_NO_ROTATE,
	)
	return status("element change attributes", rc)
}

// ElementRemove stages the removal of e.
func (c *Compositor) ElementRemove(u compositor.UpdateHandle, e compositor.ElementHandle) error {
	rc := C.vc_dispmanx_element_remove(C.DISPMANX_UPDATE_HANDLE_T(u), C.DISPMANX_ELEMENT_HANDLE_T(e))
	return status("element remove", rc)
}

// UpdateSubmitSync submits u and waits for the next vsync.
func (c *Compositor) UpdateSubmitSync(u compositor.UpdateHandle) error {
	return status("update submit", C.vc_dispmanx_update_submit_sync(C.DISPMANX_UPDATE_HANDLE_T(u)))
}

// ResourceDelete frees res.
func (c *Compositor) ResourceDelete(res compositor.ResourceHandle) error {
	return status("resource delete", C.vc_dispmanx_resource_delete(C.DISPMANX_RESOURCE_HANDLE_T(res)))
}

// DisplayClose closes d.
func (c *Compositor) DisplayClose(d compositor.DisplayHandle) error {
	return status("display close", C.vc_dispmanx_display_close(C.DISPMANX_DISPLAY_HANDLE_T(d)))
}

// Close is a no-op; the host interface lives for the process.
func (c *Compositor) Close() error {
	return nil
}
