// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/vkb/driver"
)

func newRendErr(s string) error { return errors.New("renderer: " + s) }

// Renderer drives the frame loop of a Surface.
//
// Each frame is recorded in three steps: PrepareDraw
// acquires a swapchain image and begins recording,
// BeginDraw begins rendering into that image and
// Present submits the commands and presents the image.
// Uploads (i.e., Drawable.PrepareDraw calls) must be
// recorded between PrepareDraw and BeginDraw, and draw
// commands between BeginDraw and Present.
//
// Command buffers, draw-end semaphores and fences are
// indexed by swapchain image. Semaphores used for image
// acquisition are taken from a pool and returned to it
// once the image they were used for is acquired again.
type Renderer struct {
	ctx     *Context
	sf      *Surface
	timeout time.Duration

	// Indexed by swapchain image.
	cb       []driver.CmdBuffer
	drawEnd  []driver.Semaphore
	fence    []driver.Fence
	imgAvail []driver.Semaphore

	// Unsignaled semaphores ready for acquisition.
	pool []driver.Semaphore
	// Semaphores that may still be signaled by a
	// timed-out frame. Destroyed with r.
	orphan []driver.Semaphore

	frame int
	img   int
	rec   bool
	// Set when an acquired image was abandoned.
	// Only recreation releases it.
	stale bool

	near, far, fov float32
	proj           mgl32.Mat4
	recreations    int
	onRecreate     []func(width, height int)
}

// NewRenderer creates a new Renderer for sf.
// cfg provides the wait bound and the initial projection
// parameters. If it is nil, DefaultConfig is used.
func NewRenderer(ctx *Context, sf *Surface, cfg *Config) (*Renderer, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if cfg.WaitTimeout <= 0 {
		return nil, newRendErr("non-positive wait timeout")
	}
	r := &Renderer{
		ctx:     ctx,
		sf:      sf,
		timeout: time.Duration(cfg.WaitTimeout),
		img:     -1,
	}
	if err := r.resize(len(sf.Views())); err != nil {
		r.Destroy()
		return nil, err
	}
	r.SetProj(cfg.Near, cfg.Far, cfg.FOV)
	logger().Debug("renderer created", "images", len(r.cb), "frames", MaxFrame)
	return r, nil
}

// resize makes the per-image slices have length n.
// Existing elements are kept. The GPU must be idle when
// shrinking.
func (r *Renderer) resize(n int) error {
	for i := n; i < len(r.cb); i++ {
		r.cb[i].Destroy()
		r.drawEnd[i].Destroy()
		r.fence[i].Destroy()
		if r.imgAvail[i] != nil {
			r.pool = append(r.pool, r.imgAvail[i])
		}
	}
	if n <= len(r.cb) {
		r.cb = r.cb[:n]
		r.drawEnd = r.drawEnd[:n]
		r.fence = r.fence[:n]
		r.imgAvail = r.imgAvail[:n]
		return nil
	}
	gpu := r.ctx.gpu
	for len(r.cb) < n {
		cb, err := gpu.NewCmdBuffer()
		if err != nil {
			return errors.Wrap(err, "renderer: command buffer")
		}
		sem, err := gpu.NewSemaphore()
		if err != nil {
			cb.Destroy()
			return errors.Wrap(err, "renderer: semaphore")
		}
		fence, err := gpu.NewFence(true)
		if err != nil {
			cb.Destroy()
			sem.Destroy()
			return errors.Wrap(err, "renderer: fence")
		}
		r.cb = append(r.cb, cb)
		r.drawEnd = append(r.drawEnd, sem)
		r.fence = append(r.fence, fence)
		r.imgAvail = append(r.imgAvail, nil)
	}
	return nil
}

// semaphore pops a semaphore from the pool or creates
// a new one.
func (r *Renderer) semaphore() (driver.Semaphore, error) {
	if n := len(r.pool); n > 0 {
		sem := r.pool[n-1]
		r.pool = r.pool[:n-1]
		return sem, nil
	}
	return r.ctx.gpu.NewSemaphore()
}

func isStale(err error) bool {
	return errors.Is(err, driver.ErrSwapchain) || errors.Is(err, driver.ErrSuboptimal)
}

// PrepareDraw acquires the next swapchain image and
// begins recording its command buffer.
// It returns false if the frame must be skipped, either
// because the swapchain had to be recreated or because
// recording could not begin. In the latter case the
// error is nil as well, and the call can be retried on
// the next iteration (which recreates the swapchain).
// A non-nil error means that the renderer cannot proceed.
// driver.ErrTimeout is returned when the image's previous
// submission does not complete within the wait bound.
func (r *Renderer) PrepareDraw() (bool, error) {
	if r.rec {
		return false, newRendErr("PrepareDraw called twice")
	}
	if r.stale {
		if err := r.recreate(); err != nil {
			return false, err
		}
		r.stale = false
		return false, nil
	}
	sem, err := r.semaphore()
	if err != nil {
		return false, errors.Wrap(err, "renderer: semaphore")
	}
	img, err := r.sf.sc.Next(sem)
	if err != nil {
		r.pool = append(r.pool, sem)
		if isStale(err) {
			logger().Debug("stale swapchain on acquire", "err", err)
			return false, r.recreate()
		}
		return false, errors.Wrap(err, "renderer: acquire")
	}
	if err = waitFence(r.fence[img], r.timeout); err != nil {
		r.orphan = append(r.orphan, sem)
		return false, errors.Wrapf(err, "renderer: image %d", img)
	}
	// fence[img] is now unsignaled. Every path below
	// must submit with it.
	if old := r.imgAvail[img]; old != nil {
		r.pool = append(r.pool, old)
	}
	r.imgAvail[img] = sem
	r.img = img
	cb := r.cb[img]
	if err = cb.Reset(); err != nil {
		return false, r.abandon(img, errors.Wrap(err, "renderer: command buffer reset"))
	}
	if err = cb.Begin(); err != nil {
		logger().Warn("command buffer failed to begin", "image", img, "err", err)
		return false, r.abandon(img, nil)
	}
	cb.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore:   driver.SNone,
			SyncAfter:    driver.SColorOutput,
			AccessBefore: driver.ANone,
			AccessAfter:  driver.AColorWrite,
		},
		LayoutBefore: driver.LUndefined,
		LayoutAfter:  driver.LColorTarget,
		IView:        r.sf.sc.Views()[img],
	}})
	r.rec = true
	return true, nil
}

// skip consumes the acquisition of image img with an
// empty submission that signals fence[img].
// The acquired image is not presented. This keeps
// the image's semaphore and fence consistent for the
// next time it is acquired.
func (r *Renderer) skip(img int) error {
	err := r.ctx.gpu.Submit(&driver.Submission{
		Wait:     []driver.Semaphore{r.imgAvail[img]},
		WaitSync: []driver.Sync{driver.SColorOutput},
		Fence:    r.fence[img],
	})
	return errors.Wrap(err, "renderer: skip")
}

// abandon gives up on the frame of image img, which was
// acquired and will not be presented.
// The image stays acquired until the swapchain is
// recreated, so the next PrepareDraw does that.
// It returns err, or the skip failure if there is one.
func (r *Renderer) abandon(img int, err error) error {
	if serr := r.skip(img); serr != nil {
		return errors.CombineErrors(serr, err)
	}
	r.stale = true
	return err
}

// BeginDraw begins rendering into the acquired image
// and the surface's depth buffer.
// The viewport and scissor cover the whole surface.
func (r *Renderer) BeginDraw() {
	cb := r.cb[r.img]
	w, h := r.sf.Width(), r.sf.Height()
	cb.BeginRendering(&driver.RenderingInfo{
		Color: []driver.ColorTarget{{
			View:  r.sf.sc.Views()[r.img],
			Load:  driver.LDontCare,
			Store: driver.SStore,
		}},
		DS: &driver.DSTarget{
			View:    r.sf.dview,
			Load:    driver.LClear,
			Store:   driver.SDontCare,
			Depth:   1,
			Stencil: 0,
		},
		Width:  w,
		Height: h,
	})
	cb.SetViewport([]driver.Viewport{{
		Width:  float32(w),
		Height: float32(h),
		Zfar:   1,
	}})
	cb.SetScissor([]driver.Scissor{{Width: w, Height: h}})
}

// Present ends rendering, submits the frame and presents
// the acquired image.
// It returns true if the swapchain was invalidated and
// recreated, in which case the surface's size and the
// projection may have changed.
// The frame counter advances in any case.
func (r *Renderer) Present() (bool, error) {
	if !r.rec {
		return false, newRendErr("Present called without PrepareDraw")
	}
	r.rec = false
	defer func() { r.frame = (r.frame + 1) % MaxFrame }()

	img := r.img
	cb := r.cb[img]
	cb.EndRendering()
	cb.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore:   driver.SColorOutput,
			SyncAfter:    driver.SNone,
			AccessBefore: driver.AColorWrite,
			AccessAfter:  driver.ANone,
		},
		LayoutBefore: driver.LColorTarget,
		LayoutAfter:  driver.LPresent,
		IView:        r.sf.sc.Views()[img],
	}})
	if err := cb.End(); err != nil {
		err = errors.Wrap(err, "renderer: command buffer end")
		if rerr := cb.Reset(); rerr != nil {
			logger().Warn("command buffer failed to reset", "image", img, "err", rerr)
			err = errors.CombineErrors(err, rerr)
		}
		return false, r.abandon(img, err)
	}
	err := r.ctx.gpu.Submit(&driver.Submission{
		Cmd:      []driver.CmdBuffer{cb},
		Wait:     []driver.Semaphore{r.imgAvail[img]},
		WaitSync: []driver.Sync{driver.SColorOutput},
		Signal:   []driver.Semaphore{r.drawEnd[img]},
		Fence:    r.fence[img],
	})
	if err != nil {
		return false, errors.Wrap(err, "renderer: submit")
	}
	err = r.sf.sc.Present(img, r.drawEnd[img])
	stale := isStale(err)
	if err != nil && !stale {
		return false, errors.Wrap(err, "renderer: present")
	}
	if stale || r.sf.NeedsUpdate() {
		if err = r.recreate(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// recreate waits for the GPU to become idle and then
// recreates the surface and every resource that depends
// on its size or image count.
func (r *Renderer) recreate() error {
	if err := waitIdle(r.ctx.gpu, r.timeout); err != nil {
		return errors.Wrap(err, "renderer: recreate")
	}
	if err := r.sf.Recreate(); err != nil {
		return errors.Wrap(err, "renderer: recreate")
	}
	if err := r.resize(len(r.sf.Views())); err != nil {
		return err
	}
	w, h := r.sf.Width(), r.sf.Height()
	r.proj = Projection(r.near, r.far, r.fov, w, h)
	r.recreations++
	logger().Info("swapchain recreated", "width", w, "height", h, "count", r.recreations)
	for _, f := range r.onRecreate {
		f(w, h)
	}
	return nil
}

// OnRecreate registers f to be called with the new size
// of the surface whenever r recreates it.
// This happens from PrepareDraw as well as from Present.
func (r *Renderer) OnRecreate(f func(width, height int)) {
	r.onRecreate = append(r.onRecreate, f)
}

// WaitCompletion blocks until the GPU is idle or until
// the wait bound elapses.
func (r *Renderer) WaitCompletion() error {
	if err := waitIdle(r.ctx.gpu, r.timeout); err != nil {
		return errors.Wrap(err, "renderer: wait completion")
	}
	return nil
}

// CmdBuffer returns the command buffer of the acquired
// image. It is only valid between PrepareDraw and
// Present.
func (r *Renderer) CmdBuffer() driver.CmdBuffer { return r.cb[r.img] }

// ImageIndex returns the index of the acquired image.
func (r *Renderer) ImageIndex() int { return r.img }

// Frame returns the frame slot counter, which is in the
// interval [0, MaxFrame).
func (r *Renderer) Frame() int { return r.frame }

// Created reports whether r holds usable resources.
// It is false after Destroy.
func (r *Renderer) Created() bool { return r.ctx != nil && len(r.cb) > 0 }

// ImageCount returns the number of swapchain images.
func (r *Renderer) ImageCount() int { return len(r.cb) }

// PoolSize returns the number of semaphores waiting in
// the acquisition pool.
func (r *Renderer) PoolSize() int { return len(r.pool) }

// Recreations returns how many times the swapchain was
// recreated by r.
func (r *Renderer) Recreations() int { return r.recreations }

// SetProj sets the perspective projection parameters.
// fovDeg is the vertical field of view in degrees.
func (r *Renderer) SetProj(near, far, fovDeg float32) {
	r.near, r.far, r.fov = near, far, fovDeg
	r.proj = Projection(near, far, fovDeg, r.sf.Width(), r.sf.Height())
}

// Proj returns the perspective projection for the
// surface's current size.
func (r *Renderer) Proj() mgl32.Mat4 { return r.proj }

// Destroy destroys r.
// It must not be called while the GPU is executing
// commands submitted by r (see WaitCompletion).
func (r *Renderer) Destroy() {
	for i := range r.cb {
		r.cb[i].Destroy()
		r.drawEnd[i].Destroy()
		r.fence[i].Destroy()
		if r.imgAvail[i] != nil {
			r.imgAvail[i].Destroy()
		}
	}
	for _, s := range r.pool {
		s.Destroy()
	}
	for _, s := range r.orphan {
		s.Destroy()
	}
	*r = Renderer{}
}
