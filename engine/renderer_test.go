// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/driver/drivertest"
)

type rendererTest struct {
	ctx  *Context
	g    *drivertest.GPU
	sf   *Surface
	win  *drivertest.Window
	sc   *drivertest.Swapchain
	rend *Renderer
}

func newRendererTest(t *testing.T, cfg *Config) *rendererTest {
	t.Helper()
	ctx, g := newTestContext(t)
	sf, win := newTestSurface(t, ctx, 640, 480)
	rend, err := NewRenderer(ctx, sf, cfg)
	require.NoError(t, err)
	rt := &rendererTest{ctx, g, sf, win, sf.Swapchain().(*drivertest.Swapchain), rend}
	t.Cleanup(rt.destroy)
	return rt
}

func (rt *rendererTest) destroy() {
	if rt.rend.Created() {
		rt.rend.Destroy()
	}
	rt.sf.Destroy()
	rt.ctx.Close()
}

// frame runs a complete frame, without draws.
func (rt *rendererTest) frame(t *testing.T) (ok, invalidated bool) {
	t.Helper()
	ok, err := rt.rend.PrepareDraw()
	require.NoError(t, err)
	if !ok {
		return
	}
	rt.rend.BeginDraw()
	invalidated, err = rt.rend.Present()
	require.NoError(t, err)
	return
}

// acquireSemaphores returns the semaphores used for image
// acquisition that r currently holds.
func acquireSemaphores(r *Renderer) int {
	n := len(r.pool)
	for _, s := range r.imgAvail {
		if s != nil {
			n++
		}
	}
	return n
}

func TestNewRenderer(t *testing.T) {
	rt := newRendererTest(t, nil)
	r := rt.rend
	require.True(t, r.Created())
	assert.Equal(t, len(rt.sf.Views()), r.ImageCount())
	assert.Equal(t, 0, r.Frame())
	assert.Zero(t, r.PoolSize())
	assert.Equal(t, Projection(dflNear, dflFar, dflFOV, 640, 480), r.Proj())
	for _, f := range r.fence {
		// Fences start signaled.
		assert.NoError(t, f.Wait(0))
	}

	_, err := NewRenderer(rt.ctx, rt.sf, &Config{})
	assert.Error(t, err)
}

func TestFrameCounter(t *testing.T) {
	rt := newRendererTest(t, nil)
	for i := range 10 {
		ok, inv := rt.frame(t)
		require.True(t, ok)
		require.False(t, inv)
		assert.Equal(t, (i+1)%MaxFrame, rt.rend.Frame())
	}
	assert.Empty(t, rt.g.Violations())
	assert.Len(t, rt.g.Submits(), 10)
}

func TestSemaphorePool(t *testing.T) {
	rt := newRendererTest(t, nil)
	n := rt.rend.ImageCount()
	for i := range 5 {
		ok, _ := rt.frame(t)
		require.True(t, ok)
		// A semaphore is only returned to the pool when
		// its image is acquired again.
		if i < n {
			assert.Zero(t, rt.rend.PoolSize())
		}
		assert.LessOrEqual(t, rt.rend.PoolSize(), MaxFrame)
		assert.LessOrEqual(t, acquireSemaphores(rt.rend), n+1)
	}
	// One drawEnd per image plus the acquisition
	// semaphores.
	created := len(rt.g.CallsOf("newSemaphore"))
	assert.Equal(t, n+acquireSemaphores(rt.rend), created)
	assert.Empty(t, rt.g.Violations())
}

func TestSemaphoreDisplacement(t *testing.T) {
	rt := newRendererTest(t, nil)
	rt.sc.Order = []int{0, 0, 1}
	r := rt.rend

	rt.frame(t)
	first := r.imgAvail[0]
	require.NotNil(t, first)
	assert.Zero(t, r.PoolSize())

	// Image 0 again: the previous semaphore is displaced
	// into the pool.
	rt.frame(t)
	assert.NotSame(t, first, r.imgAvail[0])
	require.Equal(t, 1, r.PoolSize())
	assert.Same(t, first, r.pool[0])

	// Image 1: the displaced semaphore is reused and
	// nothing is pushed, since image 1 had none.
	rt.frame(t)
	assert.Same(t, first, r.imgAvail[1])
	assert.Zero(t, r.PoolSize())
	assert.Empty(t, rt.g.Violations())
}

func TestPrepareDrawOrder(t *testing.T) {
	rt := newRendererTest(t, nil)
	rt.g.ClearCalls()
	ok, err := rt.rend.PrepareDraw()
	require.NoError(t, err)
	require.True(t, ok)
	img := rt.rend.ImageIndex()
	cb := rt.rend.CmdBuffer().(*drivertest.CmdBuffer)
	fence := rt.rend.fence[img].(*drivertest.Fence)

	var ops []string
	for _, c := range rt.g.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{
		"newSemaphore",
		"acquire",
		"fence.Wait",
		"fence.Reset",
		"cmd.Reset",
		"cmd.Begin",
		"cmd.Transition",
	}, ops)
	calls := rt.g.Calls()
	assert.Equal(t, fence.ID(), calls[2].ID)
	assert.Equal(t, cb.ID(), calls[4].ID)
	view := rt.sf.Views()[img].(*drivertest.ImageView)
	assert.Equal(t, []int{view.ID(), int(driver.LUndefined), int(driver.LColorTarget)}, calls[6].Arg)

	rt.rend.BeginDraw()
	info := rt.g.LastRendering()
	require.Len(t, info.Color, 1)
	assert.Equal(t, driver.LDontCare, info.Color[0].Load)
	assert.Equal(t, driver.SStore, info.Color[0].Store)
	require.NotNil(t, info.DS)
	assert.Equal(t, driver.LClear, info.DS.Load)
	assert.Equal(t, driver.SDontCare, info.DS.Store)
	assert.Equal(t, float32(1), info.DS.Depth)
	assert.Equal(t, rt.sf.DepthView(), info.DS.View)
	assert.Equal(t, [2]int{640, 480}, [2]int{info.Width, info.Height})
	vp := rt.g.CallsOf("cmd.SetViewport")
	require.Len(t, vp, 1)
	assert.Equal(t, []int{640, 480}, vp[0].Arg)

	rt.g.ClearCalls()
	_, err = rt.rend.Present()
	require.NoError(t, err)
	ops = ops[:0]
	for _, c := range rt.g.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"cmd.EndRendering", "cmd.Transition", "cmd.End", "submit", "present"}, ops)
	sub := rt.g.Submits()
	require.Len(t, sub, 1)
	assert.Equal(t, []int{cb.ID()}, sub[0].Cmd)
	assert.Equal(t, fence.ID(), sub[0].Fence)
	assert.Equal(t, []int{rt.rend.drawEnd[img].(*drivertest.Semaphore).ID()}, sub[0].Signal)
	assert.Equal(t, []int{rt.rend.imgAvail[img].(*drivertest.Semaphore).ID()}, sub[0].Wait)
	assert.Empty(t, rt.g.Violations())
}

func TestStaleOnPresent(t *testing.T) {
	rt := newRendererTest(t, nil)
	rt.sc.FailPresent(nil, nil, nil, driver.ErrSwapchain)
	proj := rt.rend.Proj()
	for range 3 {
		_, inv := rt.frame(t)
		require.False(t, inv)
	}
	rt.win.Resize(1000, 500)
	_, inv := rt.frame(t)
	assert.True(t, inv)
	assert.Equal(t, 1, rt.rend.Recreations())
	assert.Equal(t, 1, rt.sc.Recreations())
	assert.Equal(t, 1, rt.rend.Frame())
	assert.NotEqual(t, proj, rt.rend.Proj())
	assert.Equal(t, Projection(dflNear, dflFar, dflFOV, 1000, 500), rt.rend.Proj())
	assert.Equal(t, 1000, rt.sf.Width())
	assert.Len(t, rt.g.CallsOf("waitIdle"), 1)

	// The ring keeps going after recreation.
	for range 3 {
		ok, inv := rt.frame(t)
		require.True(t, ok)
		require.False(t, inv)
	}
	assert.Equal(t, 1, rt.rend.Frame())
	assert.Empty(t, rt.g.Violations())
}

func TestSuboptimalOnPresent(t *testing.T) {
	rt := newRendererTest(t, nil)
	rt.sc.FailPresent(driver.ErrSuboptimal)
	proj := rt.rend.Proj()
	_, inv := rt.frame(t)
	assert.True(t, inv)
	assert.Equal(t, 1, rt.rend.Recreations())
	// Same size, same projection.
	assert.Equal(t, proj, rt.rend.Proj())
	assert.Equal(t, 1, rt.rend.Frame())
	assert.Empty(t, rt.g.Violations())
}

func TestResizeWithoutError(t *testing.T) {
	rt := newRendererTest(t, nil)
	rt.frame(t)
	rt.win.Resize(320, 240)
	_, inv := rt.frame(t)
	assert.True(t, inv)
	assert.Equal(t, 320, rt.sf.Width())
	assert.Equal(t, 240, rt.sf.Height())

	// Minimized windows do not cause recreation.
	rt.win.Iconified = true
	_, inv = rt.frame(t)
	assert.False(t, inv)
	assert.Equal(t, 1, rt.rend.Recreations())
	assert.Empty(t, rt.g.Violations())
}

func TestStaleOnAcquire(t *testing.T) {
	for _, e := range []error{driver.ErrSwapchain, driver.ErrSuboptimal} {
		rt := newRendererTest(t, nil)
		rt.sc.FailNext(e)
		ok, err := rt.rend.PrepareDraw()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, rt.rend.Recreations())
		assert.Equal(t, 0, rt.rend.Frame())
		// The semaphore went back to the pool.
		require.Equal(t, 1, rt.rend.PoolSize())
		sem := rt.rend.pool[0]
		assert.False(t, sem.(*drivertest.Semaphore).Signaled())

		// And is used by the next acquisition.
		ok, _ = rt.frame(t)
		require.True(t, ok)
		assert.Same(t, sem, rt.rend.imgAvail[rt.rend.ImageIndex()])
		assert.Zero(t, rt.rend.PoolSize())
		assert.Equal(t, 1, rt.rend.Frame())
		assert.Empty(t, rt.g.Violations())
	}
}

func TestImageCountChange(t *testing.T) {
	rt := newRendererTest(t, nil)
	for range 4 {
		rt.frame(t)
	}
	held := acquireSemaphores(rt.rend)
	rt.g.Images = 2
	rt.sc.FailPresent(driver.ErrSwapchain)
	_, inv := rt.frame(t)
	require.True(t, inv)
	assert.Equal(t, 2, rt.rend.ImageCount())
	assert.Len(t, rt.rend.imgAvail, 2)
	// Semaphores of removed images are kept in the pool.
	assert.Equal(t, held, acquireSemaphores(rt.rend))

	rt.g.Images = 5
	rt.sc.FailPresent(driver.ErrSwapchain)
	_, inv = rt.frame(t)
	require.True(t, inv)
	assert.Equal(t, 5, rt.rend.ImageCount())
	for range 10 {
		ok, _ := rt.frame(t)
		require.True(t, ok)
	}
	assert.Empty(t, rt.g.Violations())
}

func TestBeginFailure(t *testing.T) {
	rt := newRendererTest(t, nil)
	n := rt.rend.ImageCount()
	rt.g.FailBegin = n
	// Each failure abandons an acquired image and the
	// following call recreates the swapchain to release it.
	for i := range 2 * n {
		ok, err := rt.rend.PrepareDraw()
		require.NoError(t, err)
		require.False(t, ok)
		assert.Equal(t, (i+1)/2, rt.rend.Recreations())
		assert.Equal(t, (i+1)%2, rt.sc.Held())
	}
	assert.Zero(t, rt.g.FailBegin)
	assert.Equal(t, 0, rt.rend.Frame())
	assert.Len(t, rt.g.CallsOf("present"), 0)
	assert.Len(t, rt.g.CallsOf("acquire"), n)
	assert.Empty(t, rt.g.Violations())

	for i := range 2 * n {
		ok, _ := rt.frame(t)
		require.True(t, ok)
		assert.Equal(t, (i+1)%MaxFrame, rt.rend.Frame())
	}
	assert.Equal(t, n, rt.rend.Recreations())
	assert.Zero(t, rt.sc.Held())
	assert.Empty(t, rt.g.Violations())
}

func TestResetFailure(t *testing.T) {
	rt := newRendererTest(t, nil)
	rt.g.FailReset = 1
	ok, err := rt.rend.PrepareDraw()
	assert.False(t, ok)
	require.ErrorIs(t, err, drivertest.ErrReset)
	// The fence that was reset before the failure is
	// signaled again.
	img := rt.rend.ImageIndex()
	assert.NoError(t, rt.rend.fence[img].Wait(0))
	assert.Empty(t, rt.g.Violations())

	ok, err = rt.rend.PrepareDraw()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, rt.rend.Recreations())
	for range 2 * rt.rend.ImageCount() {
		ok, _ := rt.frame(t)
		require.True(t, ok)
	}
	assert.Empty(t, rt.g.Violations())
}

func TestEndFailure(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	rt := newRendererTest(t, nil)
	ok, err := rt.rend.PrepareDraw()
	require.NoError(t, err)
	require.True(t, ok)
	rt.rend.BeginDraw()
	rt.g.FailEnd = 1
	rt.g.FailReset = 1
	_, err = rt.rend.Present()
	require.ErrorIs(t, err, drivertest.ErrEnd)
	assert.Contains(t, buf.String(), "command buffer failed to reset")
	assert.Contains(t, buf.String(), drivertest.ErrReset.Error())
	assert.Equal(t, 1, rt.rend.Frame())
	assert.Len(t, rt.g.CallsOf("present"), 0)
	assert.Equal(t, 1, rt.sc.Held())

	ok, err = rt.rend.PrepareDraw()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, rt.rend.Recreations())
	assert.Zero(t, rt.sc.Held())
	for range 2 * rt.rend.ImageCount() {
		ok, _ := rt.frame(t)
		require.True(t, ok)
	}
	assert.Empty(t, rt.g.Violations())
}

func TestOnRecreate(t *testing.T) {
	rt := newRendererTest(t, nil)
	var sizes [][2]int
	rt.rend.OnRecreate(func(w, h int) { sizes = append(sizes, [2]int{w, h}) })

	// Stale on acquisition.
	rt.win.Resize(800, 600)
	rt.sc.FailNext(driver.ErrSwapchain)
	ok, _ := rt.frame(t)
	require.False(t, ok)

	// Stale on present.
	rt.win.Resize(300, 200)
	rt.sc.FailPresent(driver.ErrSwapchain)
	_, inv := rt.frame(t)
	require.True(t, inv)

	// Abandoned frame.
	rt.win.Resize(500, 500)
	rt.g.FailBegin = 1
	for range 2 {
		ok, _ = rt.frame(t)
		require.False(t, ok)
	}

	ok, _ = rt.frame(t)
	require.True(t, ok)
	assert.Equal(t, [][2]int{{800, 600}, {300, 200}, {500, 500}}, sizes)
	assert.Equal(t, 3, rt.rend.Recreations())
	assert.Empty(t, rt.g.Violations())
}

func TestPresentWithoutPrepare(t *testing.T) {
	rt := newRendererTest(t, nil)
	_, err := rt.rend.Present()
	assert.Error(t, err)
	assert.Equal(t, 0, rt.rend.Frame())

	ok, err := rt.rend.PrepareDraw()
	require.NoError(t, err)
	require.True(t, ok)
	_, err = rt.rend.PrepareDraw()
	assert.Error(t, err)
}

func TestFenceTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaitTimeout = Duration(time.Millisecond)
	rt := newRendererTest(t, &cfg)
	rt.g.Hang = true
	n := rt.rend.ImageCount()
	for range n {
		ok, _ := rt.frame(t)
		require.True(t, ok)
	}
	ok, err := rt.rend.PrepareDraw()
	assert.False(t, ok)
	assert.ErrorIs(t, err, driver.ErrTimeout)
	assert.Empty(t, rt.g.Violations())
}

func TestWaitCompletion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaitTimeout = Duration(20 * time.Millisecond)
	rt := newRendererTest(t, &cfg)
	rt.frame(t)
	require.NoError(t, rt.rend.WaitCompletion())

	rt.g.IdleDelay = time.Second
	start := time.Now()
	err := rt.rend.WaitCompletion()
	assert.ErrorIs(t, err, driver.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRendererDestroy(t *testing.T) {
	ctx, g := newTestContext(t)
	sf, _ := newTestSurface(t, ctx, 64, 64)
	live := g.Live()
	rend, err := NewRenderer(ctx, sf, nil)
	require.NoError(t, err)
	for range 7 {
		ok, err := rend.PrepareDraw()
		require.NoError(t, err)
		require.True(t, ok)
		rend.BeginDraw()
		_, err = rend.Present()
		require.NoError(t, err)
	}
	require.NoError(t, rend.WaitCompletion())
	rend.Destroy()
	assert.False(t, rend.Created())
	assert.Equal(t, live, g.Live())
	sf.Destroy()
	ctx.Close()
	assert.Zero(t, g.Live())
	assert.Empty(t, g.Violations())
}
