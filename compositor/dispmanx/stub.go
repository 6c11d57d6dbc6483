// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !(linux && cgo && dispmanx)

package dispmanx

import "github.com/gogpu/overlay/compositor"

func init() {
	compositor.Register(Name, Priority, func(compositor.Options) (compositor.Compositor, error) {
		return nil, ErrUnavailable
	}, func() bool { return false })
}
