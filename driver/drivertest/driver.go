// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package drivertest implements an in-memory driver.Driver
// that records every command and synchronization operation.
//
// Nothing is executed. Submissions complete immediately,
// fences are signaled on submit and swapchain images are
// handed out in a fixed order. The GPU checks the usage
// rules stated by package driver and reports violations,
// which makes it suitable for testing code that drives a
// frame loop.
package drivertest

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/internal/bitm"
)

// Name is the name of the driver.
const Name = "drivertest"

func init() {
	driver.Register(new(Driver))
}

// Driver implements driver.Driver.
type Driver struct {
	gpu *GPU
}

// NewDriver returns a Driver that is not registered.
// Each such driver owns a separate GPU.
func NewDriver() *Driver { return new(Driver) }

// Open implements driver.Driver.
func (d *Driver) Open() (driver.GPU, error) {
	if d.gpu == nil {
		d.gpu = newGPU(d)
	}
	return d.gpu, nil
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return Name }

// Close implements driver.Driver.
func (d *Driver) Close() { d.gpu = nil }

// GPU returns the GPU of an open driver, or nil.
func (d *Driver) GPU() *GPU { return d.gpu }

// Call is a recorded operation.
type Call struct {
	// Op identifies the operation, such as "submit" or
	// "cmd.CopyBuffer".
	Op string
	// ID is the identifier of the object that the
	// operation acted upon, or -1.
	ID int
	// Arg holds operation-specific values, usually
	// identifiers of other objects.
	Arg []int
}

func (c Call) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s#%d", c.Op, c.ID)
	for _, a := range c.Arg {
		fmt.Fprintf(&sb, " %d", a)
	}
	return sb.String()
}

// GPU implements driver.GPU and driver.Presenter.
// Exported fields can be changed between calls to script
// the behavior of the GPU.
type GPU struct {
	drv *Driver

	// FailBegin is the number of subsequent calls to
	// CmdBuffer.Begin that will fail.
	FailBegin int
	// FailEnd and FailReset do the same for
	// CmdBuffer.End and CmdBuffer.Reset.
	FailEnd   int
	FailReset int
	// Hang prevents submissions from signaling fences.
	// Fence.Wait then returns driver.ErrTimeout.
	Hang bool
	// IdleDelay is how long WaitIdle blocks.
	IdleDelay time.Duration
	// Images is the number of images of new swapchains.
	// Zero means the requested count.
	Images int

	lim driver.Limits

	mu      sync.Mutex
	ids     bitm.Bitm[uint32]
	calls   []Call
	errs    []string
	fences  []*Fence
	submits []Submit

	lastRendering driver.RenderingInfo
}

// Submit is a recorded submission.
// Fields hold object identifiers.
type Submit struct {
	Cmd    []int
	Wait   []int
	Signal []int
	// Fence is -1 if no fence was given.
	Fence int
}

func newGPU(d *Driver) *GPU {
	return &GPU{
		drv: d,
		lim: driver.Limits{
			MaxImage2D:        16384,
			MaxLayers:         2048,
			MaxDescHeaps:      4,
			MaxDConstantRange: 65536,
			ConstantAlign:     256,
			MaxPushConstants:  128,
			MaxColorTargets:   8,
			MaxRenderSize:     [2]int{16384, 16384},
			MaxViewports:      16,
			MaxVertexIn:       16,
			MaxAniso:          16,
			WideLines:         true,
		},
	}
}

// newID allocates an object identifier.
// g.mu must be held.
func (g *GPU) newID() int {
	id, ok := g.ids.Search()
	if !ok {
		id = g.ids.Grow(1)
	}
	g.ids.Set(id)
	return id
}

// freeID releases an object identifier.
func (g *GPU) freeID(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id < 0 || id >= g.ids.Cap() || !g.ids.IsSet(id) {
		g.violatef("object %d destroyed twice", id)
		return
	}
	g.ids.Unset(id)
	g.record("destroy", id)
}

// record appends a call to the log.
// g.mu must be held.
func (g *GPU) record(op string, id int, arg ...int) {
	g.calls = append(g.calls, Call{op, id, arg})
}

// violatef records a usage violation.
// g.mu must be held.
func (g *GPU) violatef(format string, arg ...any) {
	g.errs = append(g.errs, fmt.Sprintf(format, arg...))
}

// Calls returns a copy of the recorded calls.
func (g *GPU) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// CallsOf returns the recorded calls whose Op has the
// given prefix.
func (g *GPU) CallsOf(prefix string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var c []Call
	for _, x := range g.calls {
		if strings.HasPrefix(x.Op, prefix) {
			c = append(c, x)
		}
	}
	return c
}

// ClearCalls discards the recorded calls.
func (g *GPU) ClearCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = g.calls[:0]
}

// Violations returns the usage violations detected so far.
func (g *GPU) Violations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.errs...)
}

// Live returns the number of objects that were created
// and not yet destroyed.
func (g *GPU) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ids.Len()
}

// Submits returns the recorded submissions, in order.
func (g *GPU) Submits() []Submit {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Submit(nil), g.submits...)
}

// LastRendering returns the argument of the most recent
// call to CmdBuffer.BeginRendering.
func (g *GPU) LastRendering() driver.RenderingInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRendering
}

// Driver implements driver.GPU.
func (g *GPU) Driver() driver.Driver { return g.drv }

// Limits implements driver.GPU.
func (g *GPU) Limits() driver.Limits { return g.lim }

// SetLimits replaces the limits reported by the GPU.
func (g *GPU) SetLimits(lim driver.Limits) { g.lim = lim }

// Submit implements driver.GPU.
func (g *GPU) Submit(s *driver.Submission) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(s.Wait) != len(s.WaitSync) {
		return errors.Newf("drivertest: %d wait semaphores and %d sync scopes", len(s.Wait), len(s.WaitSync))
	}
	var fence *Fence
	if s.Fence != nil {
		fence = s.Fence.(*Fence)
		if fence.signaled {
			g.violatef("fence %d submitted while signaled", fence.id)
		}
		fence.gen++
	}
	var sub Submit
	for _, c := range s.Cmd {
		cb := c.(*CmdBuffer)
		if cb.state != cbExecutable {
			g.violatef("command buffer %d submitted while not executable", cb.id)
		}
		cb.state = cbPending
		cb.fence, cb.gen = fence, fence.genOrZero()
		sub.Cmd = append(sub.Cmd, cb.id)
	}
	for _, w := range s.Wait {
		sem := w.(*Semaphore)
		if !sem.signaled {
			g.violatef("semaphore %d waited before being signaled", sem.id)
		}
		sem.signaled = false
		sem.fence, sem.gen = fence, fence.genOrZero()
		sub.Wait = append(sub.Wait, sem.id)
	}
	for _, x := range s.Signal {
		sem := x.(*Semaphore)
		if sem.signaled {
			g.violatef("semaphore %d signaled twice", sem.id)
		}
		sem.signaled = true
		sub.Signal = append(sub.Signal, sem.id)
	}
	sub.Fence = -1
	if fence != nil {
		sub.Fence = fence.id
		fence.signaled = !g.Hang
	}
	g.submits = append(g.submits, sub)
	g.record("submit", sub.Fence, slices.Concat(sub.Cmd, sub.Wait, sub.Signal)...)
	return nil
}

// WaitIdle implements driver.GPU.
func (g *GPU) WaitIdle() error {
	if g.IdleDelay > 0 {
		time.Sleep(g.IdleDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, f := range g.fences {
		if f.signaled {
			f.waited = f.gen
		}
	}
	g.record("waitIdle", -1)
	return nil
}
