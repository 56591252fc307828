// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// semaphore implements driver.Semaphore.
type semaphore struct {
	d   *Driver
	sem vk.Semaphore
}

// NewSemaphore creates a new binary semaphore.
func (d *Driver) NewSemaphore() (driver.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if err := checkResult(vk.CreateSemaphore(d.dev, &info, nil, &sem)); err != nil {
		return nil, errors.Wrap(err, "vk: creating semaphore")
	}
	return &semaphore{d: d, sem: sem}, nil
}

// Destroy destroys the semaphore.
func (s *semaphore) Destroy() {
	if s == nil || s.d == nil {
		return
	}
	vk.DestroySemaphore(s.d.dev, s.sem, nil)
	*s = semaphore{}
}

// unsignal submits a batch that only waits on s.
// It is used to consume a signal that nothing else
// will wait on.
func (s *semaphore) unsignal() error {
	return s.d.submit(vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.sem},
		PWaitDstStageMask:  []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)},
	}, vk.Fence(vk.NullHandle))
}

// fence implements driver.Fence.
type fence struct {
	d   *Driver
	fnc vk.Fence
}

// NewFence creates a new fence.
func (d *Driver) NewFence(signaled bool) (driver.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fnc vk.Fence
	if err := checkResult(vk.CreateFence(d.dev, &info, nil, &fnc)); err != nil {
		return nil, errors.Wrap(err, "vk: creating fence")
	}
	return &fence{d: d, fnc: fnc}, nil
}

// Wait blocks until the fence is signaled or timeout
// elapses.
func (f *fence) Wait(timeout time.Duration) error {
	ns := ^uint64(0)
	if timeout >= 0 {
		ns = uint64(timeout.Nanoseconds())
	}
	res := vk.WaitForFences(f.d.dev, 1, []vk.Fence{f.fnc}, vk.True, ns)
	if res == vk.Timeout {
		return errors.Wrapf(driver.ErrTimeout, "vk: fence not signaled after %v", timeout)
	}
	return checkResult(res)
}

// Reset sets the fence to the unsignaled state.
func (f *fence) Reset() error {
	return checkResult(vk.ResetFences(f.d.dev, 1, []vk.Fence{f.fnc}))
}

// Destroy destroys the fence.
func (f *fence) Destroy() {
	if f == nil || f.d == nil {
		return
	}
	vk.DestroyFence(f.d.dev, f.fnc, nil)
	*f = fence{}
}
