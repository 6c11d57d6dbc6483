// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package dispmanx binds the VideoCore IV dispmanx compositor found on
// Raspberry Pi boards.
//
// The binding needs cgo, the bcm_host headers and libraries under /opt/vc,
// and the "dispmanx" build tag:
//
//	go build -tags dispmanx ./...
//
// Without the tag the package still registers the backend, but it reports
// itself unavailable so the registry falls back to the software compositor.
package dispmanx

import "errors"

// Name is the registry name of the backend.
const Name = "dispmanx"

// Priority is the registry priority of the backend.
const Priority = 100

// DevicePath is the VCHIQ device the firmware service is reached through.
const DevicePath = "/dev/vchiq"

// ErrUnavailable is returned by the factory when the binding was not built.
var ErrUnavailable = errors.New("dispmanx: built without the dispmanx tag")
