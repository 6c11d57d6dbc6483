// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compositor defines the display compositor service consumed by
// the overlay.
//
// The compositor is a layer-based scan-out engine: pixel data lives in
// resources, resources are shown through elements placed at a depth on a
// display, and every change to the element set happens inside an update
// transaction that is applied atomically on submit.
//
// # Backends
//
//   - dispmanx: the VideoCore IV dispmanx API found on Raspberry Pi boards
//     (cgo, built with the "dispmanx" build tag)
//   - software: an in-memory compositor that can render PNG snapshots,
//     used for development machines and tests
//
// Backends register themselves with the registry:
//
//	compositor.Register("dispmanx", 100, factory, available)
//
//	// Later:
//	c, err := compositor.Open("", compositor.Options{})
//
// An empty name selects the highest-priority available backend.
//
// # Handles
//
// Every create/open call returns a non-zero handle on success. Callers
// treat a zero handle as failure even when the returned error is nil.
//
// # Limitations
//
// Calls block until the underlying service answers. There are no timeouts:
// a hung compositor hangs the caller.
package compositor
