// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import (
	"errors"

	"github.com/gviegas/vkb/wsi"
)

// ErrCannotPresent means that the driver and/or device do not
// support presentation.
var ErrCannotPresent = errors.New("driver: presentation not supported")

// ErrWindow represents an error related to a specific window.
// This error usually indicates that a window misconfiguration
// is preventing correct operation. For instance, the driver
// may require a visible window to create a swapchain.
var ErrWindow = errors.New("driver: window-related error")

// ErrSwapchain represents an error related to a specific
// swapchain.
// This error usually indicates that changes to the window or
// compositor made the swapchain unusable (out of date).
var ErrSwapchain = errors.New("driver: swapchain-related error")

// ErrSuboptimal means that the swapchain can still be used,
// but no longer matches the surface properties exactly.
// Callers are expected to recreate the swapchain.
var ErrSuboptimal = errors.New("driver: swapchain is suboptimal")

// Presenter is the interface that a GPU may implement
// to enable presentation on a display.
type Presenter interface {
	// NewSwapchain creates a new swapchain.
	// Only one swapchain can be associated with a specific
	// wsi.Window at a time.
	NewSwapchain(win wsi.Window, imageCount int) (Swapchain, error)
}

// Swapchain is the interface that defines a n-buffered
// swapchain for presentation.
// To present, one calls Next to obtain the index of an
// image view to target, transitions the view to a valid
// layout (e.g., from LUndefined to LColorTarget),
// records commands as needed, transitions the view to
// the LPresent layout, submits these commands waiting on
// the semaphore given to Next and then calls Present
// with a semaphore signaled by that submission.
type Swapchain interface {
	Destroyer

	// Views returns the list of image views that
	// comprises the swapchain.
	// This value remains unchanged as long as the
	// swapchain's Destroy or Recreate methods are
	// not called.
	Views() []ImageView

	// Next returns the index of the next writable
	// image view.
	// sem is signaled when the image is ready to be
	// written. It must be unsignaled and must not be
	// referenced by a pending acquisition.
	// It returns ErrSwapchain if the swapchain is out
	// of date, or ErrSuboptimal if the image could be
	// acquired but the swapchain should be recreated.
	// In both cases sem is left unsignaled and can be
	// reused.
	Next(sem Semaphore) (int, error)

	// Present presents the image view identified
	// by index.
	// Presentation waits on the wait semaphore.
	// It may return ErrSwapchain or ErrSuboptimal,
	// which indicate that the swapchain should be
	// recreated.
	Present(index int, wait Semaphore) error

	// Recreate recreates the swapchain.
	// It is meant to be called in response to a
	// ErrSwapchain or ErrSuboptimal error, or when
	// the window is resized.
	// The GPU must be idle.
	Recreate() error

	// Format returns the image views' PixelFmt.
	Format() PixelFmt

	// Usage returns the image views' Usage.
	// URenderTarget is guaranteed to be set.
	Usage() Usage

	// Width returns the width of the swapchain images.
	Width() int

	// Height returns the height of the swapchain images.
	Height() int
}
