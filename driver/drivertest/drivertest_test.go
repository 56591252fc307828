// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package drivertest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vkb/driver"
)

var (
	_ driver.GPU       = (*GPU)(nil)
	_ driver.Presenter = (*GPU)(nil)
	_ driver.Swapchain = (*Swapchain)(nil)
)

func open(t *testing.T) *GPU {
	t.Helper()
	gpu, err := NewDriver().Open()
	require.NoError(t, err)
	return gpu.(*GPU)
}

func TestFrame(t *testing.T) {
	g := open(t)
	sc, err := g.NewSwapchain(NewWindow(640, 480), 2)
	require.NoError(t, err)
	cb, _ := g.NewCmdBuffer()
	acq, _ := g.NewSemaphore()
	end, _ := g.NewSemaphore()
	fence, _ := g.NewFence(true)

	for range 3 {
		require.NoError(t, fence.Wait(-1))
		require.NoError(t, fence.Reset())
		idx, err := sc.Next(acq)
		require.NoError(t, err)
		require.NoError(t, cb.Reset())
		require.NoError(t, cb.Begin())
		cb.Transition([]driver.Transition{{IView: sc.Views()[idx], LayoutAfter: driver.LColorTarget}})
		require.NoError(t, cb.End())
		require.NoError(t, g.Submit(&driver.Submission{
			Cmd:      []driver.CmdBuffer{cb},
			Wait:     []driver.Semaphore{acq},
			WaitSync: []driver.Sync{driver.SColorOutput},
			Signal:   []driver.Semaphore{end},
			Fence:    fence,
		}))
		require.NoError(t, sc.Present(idx, end))
	}
	assert.Empty(t, g.Violations())
	assert.Len(t, g.Submits(), 3)
	assert.Equal(t, 3, fence.(*Fence).Resets())

	sc.Destroy()
	for _, d := range []driver.Destroyer{cb, acq, end, fence} {
		d.Destroy()
	}
	assert.Zero(t, g.Live())
	assert.Empty(t, g.Violations())
}

func TestViolations(t *testing.T) {
	g := open(t)
	sc, _ := g.NewSwapchain(NewWindow(64, 64), 3)
	cb, _ := g.NewCmdBuffer()
	sem, _ := g.NewSemaphore()
	fence, _ := g.NewFence(false)

	// Reset of an unsignaled fence.
	fence.Reset()
	require.Len(t, g.Violations(), 1)

	// Waiting on a semaphore that nothing signaled.
	cb.Begin()
	cb.End()
	g.Submit(&driver.Submission{
		Cmd:      []driver.CmdBuffer{cb},
		Wait:     []driver.Semaphore{sem},
		WaitSync: []driver.Sync{driver.SColorOutput},
		Fence:    fence,
	})
	require.Len(t, g.Violations(), 2)

	// Reusing the semaphore before the fence is waited on.
	sc.Next(sem)
	require.Len(t, g.Violations(), 3)

	// Resetting the command buffer while pending.
	cb.Reset()
	require.Len(t, g.Violations(), 4)

	// Once waited on, reuse is allowed.
	require.NoError(t, fence.Wait(0))
	cb.Reset()
	require.Len(t, g.Violations(), 4)

	// Recording outside Begin/End.
	cb.SetScissor([]driver.Scissor{{Width: 1, Height: 1}})
	require.Len(t, g.Violations(), 5)

	sem.Destroy()
	sem.Destroy()
	require.Len(t, g.Violations(), 6)
}

func TestHang(t *testing.T) {
	g := open(t)
	g.Hang = true
	fence, _ := g.NewFence(false)
	cb, _ := g.NewCmdBuffer()
	cb.Begin()
	cb.End()
	require.NoError(t, g.Submit(&driver.Submission{Cmd: []driver.CmdBuffer{cb}, Fence: fence}))
	assert.ErrorIs(t, fence.Wait(0), driver.ErrTimeout)
}

func TestScriptedSwapchain(t *testing.T) {
	g := open(t)
	win := NewWindow(100, 50)
	x, _ := g.NewSwapchain(win, 3)
	sc := x.(*Swapchain)
	sc.Order = []int{2, 0}
	sc.FailNext(nil, driver.ErrSuboptimal)
	sc.FailPresent(driver.ErrSwapchain)
	sem, _ := g.NewSemaphore()
	end, _ := g.NewSemaphore()

	idx, err := sc.Next(sem)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.True(t, sem.(*Semaphore).Signaled())

	sem2, _ := g.NewSemaphore()
	_, err = sc.Next(sem2)
	assert.ErrorIs(t, err, driver.ErrSuboptimal)
	assert.False(t, sem2.(*Semaphore).Signaled())

	g.Submit(&driver.Submission{Wait: []driver.Semaphore{sem}, WaitSync: []driver.Sync{driver.SAll}, Signal: []driver.Semaphore{end}})
	assert.ErrorIs(t, sc.Present(idx, end), driver.ErrSwapchain)

	win.Resize(200, 100)
	require.NoError(t, g.WaitIdle())
	require.NoError(t, sc.Recreate())
	assert.Equal(t, 1, sc.Recreations())
	assert.Equal(t, 200, sc.Width())
	assert.Equal(t, 100, sc.Height())
	assert.Len(t, sc.Views(), 3)
	assert.Empty(t, g.Violations())
}

func TestHeldImages(t *testing.T) {
	g := open(t)
	x, _ := g.NewSwapchain(NewWindow(64, 64), 2)
	sc := x.(*Swapchain)
	var sem [3]driver.Semaphore
	for i := range sem {
		sem[i], _ = g.NewSemaphore()
	}

	for i := range 2 {
		_, err := sc.Next(sem[i])
		require.NoError(t, err)
	}
	assert.Equal(t, 2, sc.Held())
	assert.Empty(t, g.Violations())

	// Every image is held, so this one would never
	// be handed out.
	sc.Next(sem[2])
	require.Len(t, g.Violations(), 1)

	// Presenting an image that is not acquired.
	end, _ := g.NewSemaphore()
	g.Submit(&driver.Submission{Wait: []driver.Semaphore{sem[0]}, WaitSync: []driver.Sync{driver.SAll}, Signal: []driver.Semaphore{end}})
	require.NoError(t, sc.Present(0, end))
	assert.Equal(t, 1, sc.Held())
	require.Len(t, g.Violations(), 1)
	g.Submit(&driver.Submission{Wait: []driver.Semaphore{sem[1]}, WaitSync: []driver.Sync{driver.SAll}, Signal: []driver.Semaphore{end}})
	sc.Present(0, end)
	require.Len(t, g.Violations(), 2)

	// Recreation releases held images.
	require.NoError(t, sc.Recreate())
	assert.Zero(t, sc.Held())
}

func TestScriptedCmdBuffer(t *testing.T) {
	g := open(t)
	cb, _ := g.NewCmdBuffer()
	g.FailEnd = 1
	g.FailReset = 1

	require.NoError(t, cb.Begin())
	assert.ErrorIs(t, cb.End(), ErrEnd)
	assert.ErrorIs(t, cb.Reset(), ErrReset)
	require.NoError(t, cb.Reset())
	require.NoError(t, cb.Begin())
	require.NoError(t, cb.End())
	assert.Zero(t, g.FailEnd)
	assert.Zero(t, g.FailReset)
	assert.Len(t, g.CallsOf("cmd.End(failed)"), 1)
	assert.Empty(t, g.Violations())
}
