// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/engine/internal/ctxt"
)

func newCtxErr(s string) error { return errors.New("context: " + s) }

// Context owns an open driver and its GPU.
// Every engine object is created from a Context, which
// must outlive them.
type Context struct {
	drv     driver.Driver
	gpu     driver.GPU
	timeout time.Duration

	// Used by Once.
	mu    sync.Mutex
	cb    driver.CmdBuffer
	fence driver.Fence
}

// NewContext opens drv and creates a new Context.
func NewContext(drv driver.Driver) (*Context, error) {
	gpu, err := drv.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "context: open %s", drv.Name())
	}
	return newContext(drv, gpu)
}

// OpenContext creates a new Context using the first
// registered driver whose name contains name. The match
// is case insensitive and the empty string matches any
// driver.
func OpenContext(name string) (*Context, error) {
	drv, gpu, err := ctxt.Load(name)
	if err != nil {
		return nil, err
	}
	return newContext(drv, gpu)
}

func newContext(drv driver.Driver, gpu driver.GPU) (*Context, error) {
	cb, err := gpu.NewCmdBuffer()
	if err != nil {
		return nil, err
	}
	fence, err := gpu.NewFence(false)
	if err != nil {
		cb.Destroy()
		return nil, err
	}
	logger().Info("context created", "driver", drv.Name())
	return &Context{
		drv:     drv,
		gpu:     gpu,
		timeout: dflWaitTimeout,
		cb:      cb,
		fence:   fence,
	}, nil
}

// Driver returns the driver.Driver.
func (c *Context) Driver() driver.Driver { return c.drv }

// GPU returns the driver.GPU.
func (c *Context) GPU() driver.GPU { return c.gpu }

// Limits returns GPU().Limits().
func (c *Context) Limits() driver.Limits { return c.gpu.Limits() }

// SetTimeout sets the bound on waits performed by c.
// Non-positive values are ignored.
func (c *Context) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// Timeout returns the bound on waits performed by c.
func (c *Context) Timeout() time.Duration { return c.timeout }

// Once records commands with f into a one-shot command
// buffer, submits it and waits for its completion.
// f must not call Begin, End or Reset.
func (c *Context) Once(f func(cb driver.CmdBuffer)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cb.Begin(); err != nil {
		return errors.Wrap(err, "context: once")
	}
	f(c.cb)
	if err := c.cb.End(); err != nil {
		c.cb.Reset()
		return errors.Wrap(err, "context: once")
	}
	err := c.gpu.Submit(&driver.Submission{
		Cmd:   []driver.CmdBuffer{c.cb},
		Fence: c.fence,
	})
	if err != nil {
		c.cb.Reset()
		return errors.Wrap(err, "context: once")
	}
	if err := waitFence(c.fence, c.timeout); err != nil {
		return errors.Wrap(err, "context: once")
	}
	return c.cb.Reset()
}

// Upload copies data into dst at offset off.
// If dst is not host visible, the data is copied
// through a temporary staging buffer and Upload
// blocks until the copy completes.
func (c *Context) Upload(dst driver.Buffer, off int64, data []byte) error {
	if off < 0 || off+int64(len(data)) > dst.Cap() {
		return newCtxErr("upload out of bounds")
	}
	if len(data) == 0 {
		return nil
	}
	if dst.Visible() {
		copy(dst.Bytes()[off:], data)
		return nil
	}
	stg, err := c.gpu.NewBuffer(int64(len(data)), true, driver.UCopySrc)
	if err != nil {
		return err
	}
	defer stg.Destroy()
	copy(stg.Bytes(), data)
	return c.Once(func(cb driver.CmdBuffer) {
		cb.CopyBuffer(&driver.BufferCopy{
			From:  stg,
			To:    dst,
			ToOff: off,
			Size:  int64(len(data)),
		})
		cb.Barrier([]driver.Barrier{{
			SyncBefore:   driver.SCopy,
			SyncAfter:    driver.SAll,
			AccessBefore: driver.ACopyWrite,
			AccessAfter:  driver.AAnyRead,
		}})
	})
}

// Close destroys c and closes its driver.
// Every object created from c must have been destroyed.
func (c *Context) Close() {
	if c.gpu == nil {
		return
	}
	c.cb.Destroy()
	c.fence.Destroy()
	c.drv.Close()
	c.drv, c.gpu, c.cb, c.fence = nil, nil, nil, nil
}
