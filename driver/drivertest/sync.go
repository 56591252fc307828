// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package drivertest

import (
	"time"

	"github.com/gviegas/vkb/driver"
)

// Semaphore implements driver.Semaphore.
type Semaphore struct {
	g        *GPU
	id       int
	signaled bool
	// fence and gen identify the last submission that
	// waited on the semaphore.
	fence *Fence
	gen   int
}

// NewSemaphore implements driver.GPU.
func (g *GPU) NewSemaphore() (driver.Semaphore, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := &Semaphore{g: g, id: g.newID()}
	g.record("newSemaphore", s.id)
	return s, nil
}

// ID returns the object identifier of s.
func (s *Semaphore) ID() int { return s.id }

// Signaled reports whether s is signaled.
func (s *Semaphore) Signaled() bool {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	return s.signaled
}

// inUse reports whether a submission that waited on s
// may still be executing.
// s.g.mu must be held.
func (s *Semaphore) inUse() bool { return s.fence != nil && s.fence.waited < s.gen }

// Destroy implements driver.Destroyer.
func (s *Semaphore) Destroy() { s.g.freeID(s.id) }

// Fence implements driver.Fence.
type Fence struct {
	g        *GPU
	id       int
	signaled bool
	// gen counts submissions that signal the fence.
	// waited is the value of gen at the last successful
	// wait on the CPU.
	gen    int
	waited int
	resets int
}

// NewFence implements driver.GPU.
func (g *GPU) NewFence(signaled bool) (driver.Fence, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f := &Fence{g: g, id: g.newID(), signaled: signaled}
	g.fences = append(g.fences, f)
	g.record("newFence", f.id)
	return f, nil
}

func (f *Fence) genOrZero() int {
	if f == nil {
		return 0
	}
	return f.gen
}

// ID returns the object identifier of f.
func (f *Fence) ID() int { return f.id }

// Resets returns how many times f was reset.
func (f *Fence) Resets() int {
	f.g.mu.Lock()
	defer f.g.mu.Unlock()
	return f.resets
}

// Wait implements driver.Fence.
// It returns driver.ErrTimeout immediately if the fence
// is not signaled, since nothing would signal it.
func (f *Fence) Wait(timeout time.Duration) error {
	f.g.mu.Lock()
	defer f.g.mu.Unlock()
	f.g.record("fence.Wait", f.id)
	if !f.signaled {
		return driver.ErrTimeout
	}
	f.waited = f.gen
	return nil
}

// Reset implements driver.Fence.
func (f *Fence) Reset() error {
	f.g.mu.Lock()
	defer f.g.mu.Unlock()
	f.g.record("fence.Reset", f.id)
	if !f.signaled {
		f.g.violatef("fence %d reset while unsignaled", f.id)
	} else if f.waited < f.gen {
		f.g.violatef("fence %d reset before being waited on", f.id)
	}
	f.signaled = false
	f.resets++
	return nil
}

// Destroy implements driver.Destroyer.
func (f *Fence) Destroy() {
	f.g.mu.Lock()
	for i, x := range f.g.fences {
		if x == f {
			f.g.fences = append(f.g.fences[:i], f.g.fences[i+1:]...)
			break
		}
	}
	f.g.mu.Unlock()
	f.g.freeID(f.id)
}
