// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"sync"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/wsi"
)

// swapchain implements driver.Swapchain.
type swapchain struct {
	d      *Driver
	win    wsi.Window
	sf     vk.Surface
	sc     vk.Swapchain
	format vk.SurfaceFormat
	pf     driver.PixelFmt
	nimg   int
	width  int
	height int
	views  []driver.ImageView
	mu     sync.Mutex
}

// NewSwapchain creates a new swapchain.
func (d *Driver) NewSwapchain(win wsi.Window, imageCount int) (driver.Swapchain, error) {
	if !d.present {
		return nil, errors.Wrap(driver.ErrCannotPresent, "vk: presentation extensions not enabled")
	}
	gw := wsi.GLFWWindow(win)
	switch {
	case gw == nil:
		return nil, errors.Wrap(driver.ErrWindow, "vk: window has no native handle")
	case win.Width() <= 0 || win.Height() <= 0:
		return nil, errors.Wrapf(driver.ErrWindow, "vk: window size is %dx%d", win.Width(), win.Height())
	case imageCount <= 0:
		return nil, errors.Newf("vk: invalid image count %d", imageCount)
	}

	ptr, err := gw.CreateWindowSurface(d.inst, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "vk: creating window surface"), driver.ErrWindow)
	}
	sf := vk.SurfaceFromPointer(ptr)

	var supported vk.Bool32
	res := vk.GetPhysicalDeviceSurfaceSupport(d.pdev, d.qfam, sf, &supported)
	if err := checkResult(res); err != nil || supported == vk.False {
		vk.DestroySurface(d.inst, sf, nil)
		if err == nil {
			err = errors.Wrap(driver.ErrCannotPresent, "vk: queue family cannot present to surface")
		}
		return nil, err
	}

	s := &swapchain{
		d:    d,
		win:  win,
		sf:   sf,
		sc:   vk.NullSwapchain,
		nimg: imageCount,
	}
	if err := s.pickFormat(); err != nil {
		vk.DestroySurface(d.inst, sf, nil)
		return nil, err
	}
	if err := s.build(); err != nil {
		s.Destroy()
		return nil, err
	}
	d.log.Info("swapchain created",
		"images", len(s.views),
		"width", s.width,
		"height", s.height,
		"format", s.pf)
	return s, nil
}

// pickFormat selects the surface format to use.
// 8-bit unorm formats are preferred.
func (s *swapchain) pickFormat() error {
	var n uint32
	if err := checkResult(vk.GetPhysicalDeviceSurfaceFormats(s.d.pdev, s.sf, &n, nil)); err != nil {
		return errors.Wrap(err, "vk: querying surface formats")
	}
	if n == 0 {
		return errors.Wrap(driver.ErrCannotPresent, "vk: surface has no formats")
	}
	fmts := make([]vk.SurfaceFormat, n)
	if err := checkResult(vk.GetPhysicalDeviceSurfaceFormats(s.d.pdev, s.sf, &n, fmts)); err != nil {
		return errors.Wrap(err, "vk: querying surface formats")
	}
	for i := range fmts {
		fmts[i].Deref()
	}
	if len(fmts) == 1 && fmts[0].Format == vk.FormatUndefined {
		s.format = vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: fmts[0].ColorSpace}
		s.pf = driver.BGRA8un
		return nil
	}
	for _, want := range [...]vk.Format{vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Unorm} {
		for _, f := range fmts {
			if f.Format == want {
				s.format = f
				s.pf, _ = pixelFmtOf(f.Format)
				return nil
			}
		}
	}
	for _, f := range fmts {
		if pf, ok := pixelFmtOf(f.Format); ok {
			s.format = f
			s.pf = pf
			return nil
		}
	}
	return errors.Wrap(driver.ErrCannotPresent, "vk: no usable surface format")
}

// build creates the swapchain and its views.
// If a swapchain already exists, it is retired and
// destroyed along with its views.
func (s *swapchain) build() error {
	var capab vk.SurfaceCapabilities
	if err := checkResult(vk.GetPhysicalDeviceSurfaceCapabilities(s.d.pdev, s.sf, &capab)); err != nil {
		return errors.Wrap(err, "vk: querying surface capabilities")
	}
	capab.Deref()
	capab.CurrentExtent.Deref()
	capab.MinImageExtent.Deref()
	capab.MaxImageExtent.Deref()

	ext := capab.CurrentExtent
	if ext.Width == vk.MaxUint32 {
		ext.Width = clamp32(uint32(s.win.Width()), capab.MinImageExtent.Width, capab.MaxImageExtent.Width)
		ext.Height = clamp32(uint32(s.win.Height()), capab.MinImageExtent.Height, capab.MaxImageExtent.Height)
	}
	if ext.Width == 0 || ext.Height == 0 {
		return errors.Wrap(driver.ErrWindow, "vk: surface extent is empty")
	}

	nimg := uint32(s.nimg)
	if nimg < capab.MinImageCount {
		nimg = capab.MinImageCount
	}
	if capab.MaxImageCount > 0 && nimg > capab.MaxImageCount {
		nimg = capab.MaxImageCount
	}

	xform := capab.CurrentTransform
	if vk.SurfaceTransformFlagBits(capab.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		xform = vk.SurfaceTransformIdentityBit
	}

	alpha := vk.CompositeAlphaOpaqueBit
	for _, a := range [...]vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if capab.SupportedCompositeAlpha&vk.CompositeAlphaFlags(a) != 0 {
			alpha = a
			break
		}
	}

	old := s.sc
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.sf,
		MinImageCount:    nimg,
		ImageFormat:      s.format.Format,
		ImageColorSpace:  s.format.ColorSpace,
		ImageExtent:      ext,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     xform,
		CompositeAlpha:   alpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	var sc vk.Swapchain
	err := checkResult(vk.CreateSwapchain(s.d.dev, &info, nil, &sc))
	s.destroyViews()
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(s.d.dev, old, nil)
		s.sc = vk.NullSwapchain
	}
	if err != nil {
		return errors.Wrap(err, "vk: creating swapchain")
	}
	s.sc = sc
	s.width = int(ext.Width)
	s.height = int(ext.Height)

	var n uint32
	if err := checkResult(vk.GetSwapchainImages(s.d.dev, sc, &n, nil)); err != nil {
		return errors.Wrap(err, "vk: querying swapchain images")
	}
	imgs := make([]vk.Image, n)
	if err := checkResult(vk.GetSwapchainImages(s.d.dev, sc, &n, imgs)); err != nil {
		return errors.Wrap(err, "vk: querying swapchain images")
	}
	s.views = make([]driver.ImageView, 0, n)
	for _, img := range imgs[:n] {
		v := &imageView{
			d:      s.d,
			img:    img,
			fmt:    s.format.Format,
			aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			layers: 1,
			levels: 1,
		}
		if err := v.create(vk.ImageViewType2d); err != nil {
			return err
		}
		s.views = append(s.views, v)
	}
	return nil
}

func (s *swapchain) destroyViews() {
	for _, v := range s.views {
		v.Destroy()
	}
	s.views = nil
}

// Views returns the swapchain's image views.
func (s *swapchain) Views() []driver.ImageView { return s.views }

// Next acquires the next writable image.
func (s *swapchain) Next(sem driver.Semaphore) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss := sem.(*semaphore)
	var idx uint32
	res := vk.AcquireNextImage(s.d.dev, s.sc, vk.MaxUint64, ss.sem, vk.Fence(vk.NullHandle), &idx)
	switch res {
	case vk.Success:
		return int(idx), nil
	case vk.Suboptimal:
		// The acquisition signals sem regardless.
		if err := ss.unsignal(); err != nil {
			return -1, err
		}
		return -1, errors.Wrap(driver.ErrSuboptimal, "vk: acquiring swapchain image")
	case vk.ErrorOutOfDate:
		return -1, errors.Wrap(driver.ErrSwapchain, "vk: acquiring swapchain image")
	}
	return -1, errors.Wrap(checkResult(res), "vk: acquiring swapchain image")
}

// Present presents the image at index.
func (s *swapchain) Present(index int, wait driver.Semaphore) error {
	if index < 0 || index >= len(s.views) {
		return errors.Newf("vk: swapchain image index %d out of range", index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{s.sc},
		PImageIndices:  []uint32{uint32(index)},
	}
	if wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{wait.(*semaphore).sem}
	}
	s.d.qmu.Lock()
	res := vk.QueuePresent(s.d.que, &info)
	s.d.qmu.Unlock()
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return errors.Wrap(driver.ErrSuboptimal, "vk: presenting")
	case vk.ErrorOutOfDate:
		return errors.Wrap(driver.ErrSwapchain, "vk: presenting")
	}
	return errors.Wrap(checkResult(res), "vk: presenting")
}

// Recreate recreates the swapchain.
func (s *swapchain) Recreate() error {
	if s.win.Width() <= 0 || s.win.Height() <= 0 {
		return errors.Wrapf(driver.ErrWindow, "vk: window size is %dx%d", s.win.Width(), s.win.Height())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.build(); err != nil {
		return err
	}
	s.d.log.Debug("swapchain recreated", "width", s.width, "height", s.height)
	return nil
}

func (s *swapchain) Format() driver.PixelFmt { return s.pf }
func (s *swapchain) Usage() driver.Usage     { return driver.URenderTarget }
func (s *swapchain) Width() int              { return s.width }
func (s *swapchain) Height() int             { return s.height }

// Destroy destroys the swapchain and its surface.
func (s *swapchain) Destroy() {
	if s == nil || s.d == nil {
		return
	}
	s.destroyViews()
	if s.sc != vk.NullSwapchain {
		vk.DestroySwapchain(s.d.dev, s.sc, nil)
	}
	vk.DestroySurface(s.d.inst, s.sf, nil)
	*s = swapchain{}
}

func clamp32(x, lo, hi uint32) uint32 {
	return max(lo, min(x, hi))
}
