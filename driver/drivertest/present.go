// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package drivertest

import (
	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/wsi"
)

// Window implements wsi.Window without a window system.
// Fields can be changed to simulate window events.
type Window struct {
	W, H int
	Name string
	// CloseRequested is reported by Closed.
	CloseRequested bool
	// Iconified is reported by Minimized.
	Iconified bool
}

// NewWindow returns a visible window of the given size.
func NewWindow(width, height int) *Window {
	return &Window{W: width, H: height, Name: "drivertest"}
}

func (w *Window) Map() error   { return nil }
func (w *Window) Unmap() error { return nil }

func (w *Window) Resize(width, height int) error {
	w.W, w.H = width, height
	return nil
}

func (w *Window) SetTitle(title string) error {
	w.Name = title
	return nil
}

func (w *Window) Close()          { w.CloseRequested = true }
func (w *Window) Width() int      { return w.W }
func (w *Window) Height() int     { return w.H }
func (w *Window) Title() string   { return w.Name }
func (w *Window) Closed() bool    { return w.CloseRequested }
func (w *Window) Minimized() bool { return w.Iconified || w.W == 0 || w.H == 0 }

// Swapchain implements driver.Swapchain.
type Swapchain struct {
	g      *GPU
	id     int
	win    wsi.Window
	width  int
	height int
	views  []driver.ImageView
	// held[i] is set from the acquisition of image i
	// until its presentation.
	held []bool
	next int
	// nextErr and presentErr are consumed by Next and
	// Present, respectively, one entry per call.
	// nil entries mean success.
	nextErr    []error
	presentErr []error
	recreation int
	// Order, if not empty, is the sequence of image
	// indices handed out by Next, repeated as needed.
	Order []int
}

// NewSwapchain implements driver.Presenter.
func (g *GPU) NewSwapchain(win wsi.Window, imageCount int) (driver.Swapchain, error) {
	if win.Width() <= 0 || win.Height() <= 0 {
		return nil, driver.ErrWindow
	}
	if g.Images > 0 {
		imageCount = g.Images
	}
	g.mu.Lock()
	sc := &Swapchain{g: g, id: g.newID(), win: win}
	g.record("newSwapchain", sc.id, imageCount)
	g.mu.Unlock()
	sc.build(imageCount)
	return sc, nil
}

func (sc *Swapchain) build(n int) {
	sc.g.mu.Lock()
	defer sc.g.mu.Unlock()
	sc.width, sc.height = sc.win.Width(), sc.win.Height()
	sc.views = make([]driver.ImageView, n)
	for i := range sc.views {
		sc.views[i] = &ImageView{g: sc.g, id: sc.g.newID()}
	}
}

// ID returns the object identifier of sc.
func (sc *Swapchain) ID() int { return sc.id }

// Recreations returns the number of calls to Recreate.
func (sc *Swapchain) Recreations() int { return sc.recreation }

// Held returns the number of images that were acquired
// and not yet presented.
func (sc *Swapchain) Held() int {
	sc.g.mu.Lock()
	defer sc.g.mu.Unlock()
	n := 0
	for _, h := range sc.held {
		if h {
			n++
		}
	}
	return n
}

// FailNext scripts the results of subsequent calls to Next.
func (sc *Swapchain) FailNext(err ...error) { sc.nextErr = append(sc.nextErr, err...) }

// FailPresent scripts the results of subsequent calls to
// Present.
func (sc *Swapchain) FailPresent(err ...error) { sc.presentErr = append(sc.presentErr, err...) }

// Views implements driver.Swapchain.
func (sc *Swapchain) Views() []driver.ImageView { return sc.views }

// Next implements driver.Swapchain.
func (sc *Swapchain) Next(sem driver.Semaphore) (int, error) {
	s := sem.(*Semaphore)
	sc.g.mu.Lock()
	defer sc.g.mu.Unlock()
	if s.signaled {
		sc.g.violatef("semaphore %d acquired while signaled", s.id)
	}
	if s.inUse() {
		sc.g.violatef("semaphore %d reused before its last wait was fenced", s.id)
	}
	if len(sc.nextErr) > 0 {
		err := sc.nextErr[0]
		sc.nextErr = sc.nextErr[1:]
		if err != nil {
			sc.g.record("acquire(failed)", sc.id, s.id)
			return -1, err
		}
	}
	var idx int
	if len(sc.Order) > 0 {
		idx = sc.Order[sc.next%len(sc.Order)]
	} else {
		idx = sc.next % len(sc.views)
	}
	sc.next++
	if idx < len(sc.held) {
		// A real presentation engine would block here
		// once every image is held.
		if sc.held[idx] {
			sc.g.violatef("image %d acquired while still held", idx)
		}
		sc.held[idx] = true
	}
	s.signaled = true
	sc.g.record("acquire", sc.id, s.id, idx)
	return idx, nil
}

// Present implements driver.Swapchain.
func (sc *Swapchain) Present(index int, wait driver.Semaphore) error {
	s := wait.(*Semaphore)
	sc.g.mu.Lock()
	defer sc.g.mu.Unlock()
	if index < 0 || index >= len(sc.views) {
		sc.g.violatef("presenting invalid image index %d", index)
	} else {
		if !sc.held[index] {
			sc.g.violatef("presenting image %d, which is not acquired", index)
		}
		sc.held[index] = false
	}
	if !s.signaled {
		sc.g.violatef("semaphore %d waited by present before being signaled", s.id)
	}
	s.signaled = false
	s.fence = nil
	sc.g.record("present", sc.id, index, s.id)
	if len(sc.presentErr) > 0 {
		err := sc.presentErr[0]
		sc.presentErr = sc.presentErr[1:]
		return err
	}
	return nil
}

// Recreate implements driver.Swapchain.
func (sc *Swapchain) Recreate() error {
	if sc.win.Width() <= 0 || sc.win.Height() <= 0 {
		return errors.Wrap(driver.ErrWindow, "drivertest: zero-sized window")
	}
	n := len(sc.views)
	for _, v := range sc.views {
		v.Destroy()
	}
	sc.recreation++
	sc.next = 0
	sc.g.mu.Lock()
	sc.g.record("recreate", sc.id)
	sc.g.mu.Unlock()
	if sc.g.Images > 0 {
		n = sc.g.Images
	}
	sc.build(n)
	return nil
}

// Format implements driver.Swapchain.
func (sc *Swapchain) Format() driver.PixelFmt { return driver.BGRA8un }

// Usage implements driver.Swapchain.
func (sc *Swapchain) Usage() driver.Usage { return driver.URenderTarget }

// Width implements driver.Swapchain.
func (sc *Swapchain) Width() int { return sc.width }

// Height implements driver.Swapchain.
func (sc *Swapchain) Height() int { return sc.height }

// Destroy implements driver.Destroyer.
func (sc *Swapchain) Destroy() {
	for _, v := range sc.views {
		v.Destroy()
	}
	sc.views = nil
	sc.g.freeID(sc.id)
}
