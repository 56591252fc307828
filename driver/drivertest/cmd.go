// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package drivertest

import (
	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
)

// Errors returned by CmdBuffer methods when the
// corresponding GPU.Fail* counter is positive.
var (
	ErrBegin = errors.New("drivertest: scripted Begin failure")
	ErrEnd   = errors.New("drivertest: scripted End failure")
	ErrReset = errors.New("drivertest: scripted Reset failure")
)

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbPending
)

// CmdBuffer implements driver.CmdBuffer.
// Commands are recorded in the GPU's call log with the
// "cmd." prefix and the command buffer's identifier.
type CmdBuffer struct {
	g         *GPU
	id        int
	state     cbState
	rendering bool
	fence     *Fence
	gen       int
}

// NewCmdBuffer implements driver.GPU.
func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb := &CmdBuffer{g: g, id: g.newID()}
	g.record("newCmdBuffer", cb.id)
	return cb, nil
}

// ID returns the object identifier of cb.
func (cb *CmdBuffer) ID() int { return cb.id }

// pending reports whether a submission of cb may still
// be executing.
// cb.g.mu must be held.
func (cb *CmdBuffer) pending() bool {
	return cb.state == cbPending && cb.fence != nil && cb.fence.waited < cb.gen
}

func (cb *CmdBuffer) cmd(op string, arg ...int) {
	cb.g.mu.Lock()
	defer cb.g.mu.Unlock()
	if cb.state != cbRecording {
		cb.g.violatef("%s recorded into command buffer %d while not recording", op, cb.id)
	}
	cb.g.record("cmd."+op, cb.id, arg...)
}

// Begin implements driver.CmdBuffer.
func (cb *CmdBuffer) Begin() error {
	cb.g.mu.Lock()
	defer cb.g.mu.Unlock()
	if cb.g.FailBegin > 0 {
		cb.g.FailBegin--
		cb.g.record("cmd.Begin(failed)", cb.id)
		return ErrBegin
	}
	switch {
	case cb.state == cbRecording:
		cb.g.violatef("command buffer %d begun twice", cb.id)
	case cb.pending():
		cb.g.violatef("command buffer %d begun while pending", cb.id)
	}
	cb.state = cbRecording
	cb.g.record("cmd.Begin", cb.id)
	return nil
}

// BeginRendering implements driver.CmdBuffer.
// The call arguments are the color view identifiers
// followed by the depth/stencil view identifier, if any.
func (cb *CmdBuffer) BeginRendering(info *driver.RenderingInfo) {
	var arg []int
	for _, c := range info.Color {
		arg = append(arg, c.View.(*ImageView).id)
	}
	if info.DS != nil {
		arg = append(arg, info.DS.View.(*ImageView).id)
	}
	cb.g.mu.Lock()
	if cb.rendering {
		cb.g.violatef("rendering begun twice in command buffer %d", cb.id)
	}
	cb.rendering = true
	cb.g.mu.Unlock()
	cb.cmd("BeginRendering", arg...)
	cb.g.mu.Lock()
	cb.g.lastRendering = *info
	cb.g.mu.Unlock()
}

// EndRendering implements driver.CmdBuffer.
func (cb *CmdBuffer) EndRendering() {
	cb.g.mu.Lock()
	if !cb.rendering {
		cb.g.violatef("EndRendering without BeginRendering in command buffer %d", cb.id)
	}
	cb.rendering = false
	cb.g.mu.Unlock()
	cb.cmd("EndRendering")
}

func (cb *CmdBuffer) needRendering(op string) {
	cb.g.mu.Lock()
	defer cb.g.mu.Unlock()
	if !cb.rendering {
		cb.g.violatef("%s outside rendering in command buffer %d", op, cb.id)
	}
}

func (cb *CmdBuffer) needNoRendering(op string) {
	cb.g.mu.Lock()
	defer cb.g.mu.Unlock()
	if cb.rendering {
		cb.g.violatef("%s during rendering in command buffer %d", op, cb.id)
	}
}

// SetPipeline implements driver.CmdBuffer.
func (cb *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	cb.cmd("SetPipeline", pl.(*Pipeline).id)
}

// SetViewport implements driver.CmdBuffer.
// The call arguments are the width and height of the
// first viewport.
func (cb *CmdBuffer) SetViewport(vp []driver.Viewport) {
	cb.cmd("SetViewport", int(vp[0].Width), int(vp[0].Height))
}

// SetScissor implements driver.CmdBuffer.
// The call arguments are the width and height of the
// first scissor.
func (cb *CmdBuffer) SetScissor(sciss []driver.Scissor) {
	cb.cmd("SetScissor", sciss[0].Width, sciss[0].Height)
}

// SetVertexBuf implements driver.CmdBuffer.
func (cb *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	arg := []int{start}
	for _, b := range buf {
		arg = append(arg, b.(*Buffer).id)
	}
	cb.cmd("SetVertexBuf", arg...)
}

// SetIndexBuf implements driver.CmdBuffer.
func (cb *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	if off%4 != 0 {
		cb.g.mu.Lock()
		cb.g.violatef("misaligned index buffer offset %d", off)
		cb.g.mu.Unlock()
	}
	cb.cmd("SetIndexBuf", int(format), buf.(*Buffer).id)
}

// SetDescTableGraph implements driver.CmdBuffer.
// The call arguments are start followed by heapCopy.
func (cb *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	t := table.(*DescTable)
	cb.g.mu.Lock()
	if start+len(heapCopy) > len(t.heaps) {
		cb.g.violatef("descriptor table %d has %d heaps", t.id, len(t.heaps))
	} else {
		for i, c := range heapCopy {
			if c < 0 || c >= t.heaps[start+i].n {
				cb.g.violatef("heap %d has no copy %d", t.heaps[start+i].id, c)
			}
		}
	}
	cb.g.mu.Unlock()
	cb.cmd("SetDescTableGraph", append([]int{start}, heapCopy...)...)
}

// PushConstants implements driver.CmdBuffer.
// The call arguments are the offset and size of data.
func (cb *CmdBuffer) PushConstants(table driver.DescTable, stages driver.Stage, off int, data []byte) {
	t := table.(*DescTable)
	ok := false
	for _, r := range t.push {
		if r.Stages&stages == stages && off >= r.Off && off+len(data) <= r.Off+r.Size {
			ok = true
			break
		}
	}
	if !ok {
		cb.g.mu.Lock()
		cb.g.violatef("push constant range [%d, %d) not declared", off, off+len(data))
		cb.g.mu.Unlock()
	}
	cb.cmd("PushConstants", off, len(data))
}

// DrawIndexed implements driver.CmdBuffer.
func (cb *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	cb.needRendering("DrawIndexed")
	cb.cmd("DrawIndexed", idxCount, instCount, baseIdx)
}

// CopyBuffer implements driver.CmdBuffer.
// The call arguments are the source and destination
// buffer identifiers followed by the copy size.
func (cb *CmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	cb.needNoRendering("CopyBuffer")
	from, to := param.From.(*Buffer), param.To.(*Buffer)
	if param.FromOff+param.Size > from.Cap() || param.ToOff+param.Size > to.Cap() {
		cb.g.mu.Lock()
		cb.g.violatef("buffer copy of %d bytes out of range", param.Size)
		cb.g.mu.Unlock()
	}
	cb.cmd("CopyBuffer", from.id, to.id, int(param.Size))
}

// CopyBufToImg implements driver.CmdBuffer.
func (cb *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	cb.needNoRendering("CopyBufToImg")
	cb.cmd("CopyBufToImg", param.Buf.(*Buffer).id, param.Img.(*Image).id, param.Level)
}

// Barrier implements driver.CmdBuffer.
// The call arguments are the sync and access scopes of
// the first barrier.
func (cb *CmdBuffer) Barrier(b []driver.Barrier) {
	cb.needNoRendering("Barrier")
	cb.cmd("Barrier", int(b[0].SyncBefore), int(b[0].SyncAfter), int(b[0].AccessBefore), int(b[0].AccessAfter))
}

// Transition implements driver.CmdBuffer.
// The call arguments are, for each transition, the view
// identifier and the layouts before and after.
func (cb *CmdBuffer) Transition(t []driver.Transition) {
	cb.needNoRendering("Transition")
	var arg []int
	for _, x := range t {
		arg = append(arg, x.IView.(*ImageView).id, int(x.LayoutBefore), int(x.LayoutAfter))
	}
	cb.cmd("Transition", arg...)
}

// End implements driver.CmdBuffer.
func (cb *CmdBuffer) End() error {
	cb.g.mu.Lock()
	defer cb.g.mu.Unlock()
	if cb.state != cbRecording {
		cb.g.violatef("command buffer %d ended while not recording", cb.id)
	}
	if cb.rendering {
		cb.g.violatef("command buffer %d ended during rendering", cb.id)
	}
	if cb.g.FailEnd > 0 {
		cb.g.FailEnd--
		cb.g.record("cmd.End(failed)", cb.id)
		return ErrEnd
	}
	cb.state = cbExecutable
	cb.g.record("cmd.End", cb.id)
	return nil
}

// Reset implements driver.CmdBuffer.
func (cb *CmdBuffer) Reset() error {
	cb.g.mu.Lock()
	defer cb.g.mu.Unlock()
	if cb.pending() {
		cb.g.violatef("command buffer %d reset while pending", cb.id)
	}
	if cb.g.FailReset > 0 {
		cb.g.FailReset--
		cb.g.record("cmd.Reset(failed)", cb.id)
		return ErrReset
	}
	cb.state = cbInitial
	cb.rendering = false
	cb.g.record("cmd.Reset", cb.id)
	return nil
}

// Destroy implements driver.Destroyer.
func (cb *CmdBuffer) Destroy() { cb.g.freeID(cb.id) }
