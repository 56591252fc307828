// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
)

// waitIdle calls gpu.WaitIdle, giving up after timeout.
// The call itself cannot be interrupted, so on timeout
// it keeps running in the background and its result is
// discarded.
func waitIdle(gpu driver.GPU, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- gpu.WaitIdle() }()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		logger().Warn("device idle wait timed out", "timeout", timeout)
		return errors.Wrapf(driver.ErrTimeout, "wait idle (%v)", timeout)
	}
}

// waitFence waits on f and then resets it.
func waitFence(f driver.Fence, timeout time.Duration) error {
	if err := f.Wait(timeout); err != nil {
		if errors.Is(err, driver.ErrTimeout) {
			logger().Warn("fence wait timed out", "timeout", timeout)
		}
		return errors.Wrapf(err, "fence wait (%v)", timeout)
	}
	return f.Reset()
}
