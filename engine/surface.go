// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/wsi"
)

func newSurfErr(s string) error { return errors.New("surface: " + s) }

// Surface is the presentation target of a wsi.Window.
// It owns the window's swapchain and a depth buffer that
// matches the swapchain's size.
type Surface struct {
	ctx   *Context
	win   wsi.Window
	sc    driver.Swapchain
	depth driver.Image
	dview driver.ImageView
}

const depthFmt = driver.D32f

// NewSurface creates a new Surface for win.
// The GPU of ctx must implement driver.Presenter.
func NewSurface(ctx *Context, win wsi.Window) (*Surface, error) {
	if win == nil {
		return nil, newSurfErr("nil wsi.Window in call to NewSurface")
	}
	pres, ok := ctx.gpu.(driver.Presenter)
	if !ok {
		return nil, errors.Wrap(driver.ErrCannotPresent, "surface")
	}
	sc, err := pres.NewSwapchain(win, MaxFrame)
	if err != nil {
		return nil, errors.Wrap(err, "surface: swapchain")
	}
	s := &Surface{ctx: ctx, win: win, sc: sc}
	if err = s.check(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err = s.newDepth(); err != nil {
		sc.Destroy()
		return nil, err
	}
	logger().Info("surface created", "width", sc.Width(), "height", sc.Height(), "images", len(sc.Views()))
	return s, nil
}

func (s *Surface) check() error {
	if n := len(s.sc.Views()); n > MaxImage {
		return errors.Newf("surface: %d swapchain images exceed MaxImage (%d)", n, MaxImage)
	}
	if s.sc.Usage()&driver.URenderTarget == 0 {
		return newSurfErr("swapchain images cannot be rendered to")
	}
	return nil
}

func (s *Surface) newDepth() error {
	img, err := s.ctx.gpu.NewImage(depthFmt, driver.Dim3D{Width: s.sc.Width(), Height: s.sc.Height()}, 1, 1, driver.URenderTarget)
	if err != nil {
		return errors.Wrap(err, "surface: depth image")
	}
	view, err := img.NewView(driver.IView2D, 0, 1, 0, 1)
	if err != nil {
		img.Destroy()
		return errors.Wrap(err, "surface: depth view")
	}
	s.depth, s.dview = img, view
	return nil
}

func (s *Surface) freeDepth() {
	if s.depth != nil {
		s.dview.Destroy()
		s.depth.Destroy()
		s.depth, s.dview = nil, nil
	}
}

// Window returns the wsi.Window associated with s.
func (s *Surface) Window() wsi.Window { return s.win }

// Swapchain returns the driver.Swapchain of s.
func (s *Surface) Swapchain() driver.Swapchain { return s.sc }

// Views returns the swapchain's image views.
func (s *Surface) Views() []driver.ImageView { return s.sc.Views() }

// Width returns the width of the swapchain images.
func (s *Surface) Width() int { return s.sc.Width() }

// Height returns the height of the swapchain images.
func (s *Surface) Height() int { return s.sc.Height() }

// Format returns the swapchain's pixel format.
func (s *Surface) Format() driver.PixelFmt { return s.sc.Format() }

// DepthView returns the depth buffer's view.
func (s *Surface) DepthView() driver.ImageView { return s.dview }

// DepthFormat returns the depth buffer's pixel format.
func (s *Surface) DepthFormat() driver.PixelFmt { return depthFmt }

// NeedsUpdate reports whether the window's drawable
// area no longer matches the swapchain's size.
// It is always false while the window is minimized.
func (s *Surface) NeedsUpdate() bool {
	if s.win.Minimized() {
		return false
	}
	return s.win.Width() != s.sc.Width() || s.win.Height() != s.sc.Height()
}

// Recreate recreates the swapchain and the depth buffer.
// The GPU must be idle.
func (s *Surface) Recreate() error {
	s.freeDepth()
	if err := s.sc.Recreate(); err != nil {
		return errors.Wrap(err, "surface: recreate")
	}
	if err := s.check(); err != nil {
		return err
	}
	if err := s.newDepth(); err != nil {
		return err
	}
	logger().Info("surface recreated", "width", s.sc.Width(), "height", s.sc.Height(), "images", len(s.sc.Views()))
	return nil
}

// Destroy destroys s.
func (s *Surface) Destroy() {
	if s.sc == nil {
		return
	}
	s.freeDepth()
	s.sc.Destroy()
	s.sc = nil
}
