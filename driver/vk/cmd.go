// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// cmdBuffer implements driver.CmdBuffer.
type cmdBuffer struct {
	d    *Driver
	pool vk.CommandPool
	cb   vk.CommandBuffer

	rendering bool
	// err records the first error of a recording.
	// It is returned by End.
	err error
}

// NewCmdBuffer creates a new command buffer.
// The command buffer handle is allocated from an
// exclusive command pool.
func (d *Driver) NewCmdBuffer() (driver.CmdBuffer, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: d.qfam,
	}
	var pool vk.CommandPool
	if err := checkResult(vk.CreateCommandPool(d.dev, &info, nil, &pool)); err != nil {
		return nil, errors.Wrap(err, "vk: creating command pool")
	}
	alloc := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cbs := make([]vk.CommandBuffer, 1)
	if err := checkResult(vk.AllocateCommandBuffers(d.dev, &alloc, cbs)); err != nil {
		vk.DestroyCommandPool(d.dev, pool, nil)
		return nil, errors.Wrap(err, "vk: allocating command buffer")
	}
	return &cmdBuffer{d: d, pool: pool, cb: cbs[0]}, nil
}

// Begin prepares the command buffer for recording.
func (cb *cmdBuffer) Begin() error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := checkResult(vk.BeginCommandBuffer(cb.cb, &info)); err != nil {
		return errors.Wrap(err, "vk: beginning command buffer")
	}
	cb.rendering = false
	cb.err = nil
	return nil
}

func (cb *cmdBuffer) fail(err error) {
	if cb.err == nil {
		cb.err = err
	}
}

// BeginRendering begins rendering into the given targets.
// The render pass and framebuffer are taken from the
// driver's cache.
func (cb *cmdBuffer) BeginRendering(info *driver.RenderingInfo) {
	key, err := keyOf(info)
	if err != nil {
		cb.fail(err)
		return
	}
	pass, err := cb.d.renderPass(key)
	if err != nil {
		cb.fail(err)
		return
	}
	views := make([]*imageView, 0, len(info.Color)+1)
	clr := make([]vk.ClearValue, 0, len(info.Color)+1)
	for _, c := range info.Color {
		views = append(views, c.View.(*imageView))
		clr = append(clr, vk.NewClearValue(c.Clear[:]))
	}
	if info.DS != nil {
		views = append(views, info.DS.View.(*imageView))
		clr = append(clr, vk.NewClearDepthStencil(info.DS.Depth, info.DS.Stencil))
	}
	fb, err := cb.d.framebuf(pass, views, info.Width, info.Height)
	if err != nil {
		cb.fail(err)
		return
	}
	vk.CmdBeginRenderPass(cb.cb, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: uint32(info.Width), Height: uint32(info.Height)},
		},
		ClearValueCount: uint32(len(clr)),
		PClearValues:    clr,
	}, vk.SubpassContentsInline)
	cb.rendering = true
}

// EndRendering ends the current rendering.
func (cb *cmdBuffer) EndRendering() {
	if !cb.rendering {
		return
	}
	vk.CmdEndRenderPass(cb.cb)
	cb.rendering = false
}

// SetPipeline sets the graphics pipeline.
func (cb *cmdBuffer) SetPipeline(pl driver.Pipeline) {
	vk.CmdBindPipeline(cb.cb, vk.PipelineBindPointGraphics, pl.(*pipeline).pl)
}

// SetViewport sets the bounds of one or more viewports.
func (cb *cmdBuffer) SetViewport(vp []driver.Viewport) {
	vps := make([]vk.Viewport, len(vp))
	for i, v := range vp {
		vps[i] = vk.Viewport{
			X:        v.X,
			Y:        v.Y,
			Width:    v.Width,
			Height:   v.Height,
			MinDepth: v.Znear,
			MaxDepth: v.Zfar,
		}
	}
	vk.CmdSetViewport(cb.cb, 0, uint32(len(vps)), vps)
}

// SetScissor sets the rectangles of one or more viewport
// scissors.
func (cb *cmdBuffer) SetScissor(sciss []driver.Scissor) {
	rs := make([]vk.Rect2D, len(sciss))
	for i, s := range sciss {
		rs[i] = vk.Rect2D{
			Offset: vk.Offset2D{X: int32(s.X), Y: int32(s.Y)},
			Extent: vk.Extent2D{Width: uint32(s.Width), Height: uint32(s.Height)},
		}
	}
	vk.CmdSetScissor(cb.cb, 0, uint32(len(rs)), rs)
}

// SetVertexBuf sets one or more vertex buffers.
func (cb *cmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	bufs := make([]vk.Buffer, len(buf))
	offs := make([]vk.DeviceSize, len(buf))
	for i := range buf {
		bufs[i] = buf[i].(*buffer).buf
		offs[i] = vk.DeviceSize(off[i])
	}
	vk.CmdBindVertexBuffers(cb.cb, uint32(start), uint32(len(bufs)), bufs, offs)
}

// SetIndexBuf sets the index buffer.
func (cb *cmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	typ := vk.IndexTypeUint32
	if format == driver.Index16 {
		typ = vk.IndexTypeUint16
	}
	vk.CmdBindIndexBuffer(cb.cb, buf.(*buffer).buf, vk.DeviceSize(off), typ)
}

// SetDescTableGraph sets a descriptor table range for
// graphics pipelines.
func (cb *cmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	t := table.(*descTable)
	sets := make([]vk.DescriptorSet, len(heapCopy))
	for i, c := range heapCopy {
		sets[i] = t.h[start+i].sets[c]
	}
	vk.CmdBindDescriptorSets(cb.cb, vk.PipelineBindPointGraphics, t.layout, uint32(start), uint32(len(sets)), sets, 0, nil)
}

// PushConstants updates push constant data.
func (cb *cmdBuffer) PushConstants(table driver.DescTable, stages driver.Stage, off int, data []byte) {
	if len(data) == 0 {
		return
	}
	t := table.(*descTable)
	vk.CmdPushConstants(cb.cb, t.layout, convStage(stages), uint32(off), uint32(len(data)), unsafe.Pointer(&data[0]))
}

// DrawIndexed draws indexed primitives.
func (cb *cmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	vk.CmdDrawIndexed(cb.cb, uint32(idxCount), uint32(instCount), uint32(baseIdx), int32(vertOff), uint32(baseInst))
}

// CopyBuffer copies data between buffers.
func (cb *cmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	vk.CmdCopyBuffer(cb.cb, param.From.(*buffer).buf, param.To.(*buffer).buf, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(param.FromOff),
		DstOffset: vk.DeviceSize(param.ToOff),
		Size:      vk.DeviceSize(param.Size),
	}})
}

// CopyBufToImg copies data from a buffer to an image.
func (cb *cmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	img := param.Img.(*image)
	vk.CmdCopyBufferToImage(cb.cb, param.Buf.(*buffer).buf, img.img, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		BufferOffset:      vk.DeviceSize(param.BufOff),
		BufferRowLength:   uint32(param.Stride[0]),
		BufferImageHeight: uint32(param.Stride[1]),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     aspectOf(img.pf),
			MipLevel:       uint32(param.Level),
			BaseArrayLayer: uint32(param.Layer),
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(param.ImgOff.X), Y: int32(param.ImgOff.Y), Z: int32(param.ImgOff.Z)},
		ImageExtent: vk.Extent3D{
			Width:  uint32(param.Size.Width),
			Height: uint32(param.Size.Height),
			Depth:  uint32(max(param.Size.Depth, 1)),
		},
	}})
}

// Barrier inserts a number of global barriers.
func (cb *cmdBuffer) Barrier(b []driver.Barrier) {
	if len(b) == 0 {
		return
	}
	var before, after driver.Sync
	mbs := make([]vk.MemoryBarrier, len(b))
	for i := range b {
		before |= b[i].SyncBefore
		after |= b[i].SyncAfter
		mbs[i] = vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: convAccess(b[i].AccessBefore),
			DstAccessMask: convAccess(b[i].AccessAfter),
		}
	}
	vk.CmdPipelineBarrier(cb.cb, convSync(before, true), convSync(after, false), 0, uint32(len(mbs)), mbs, 0, nil, 0, nil)
}

// Transition inserts a number of image layout transitions.
func (cb *cmdBuffer) Transition(t []driver.Transition) {
	if len(t) == 0 {
		return
	}
	var before, after driver.Sync
	ibs := make([]vk.ImageMemoryBarrier, len(t))
	for i := range t {
		before |= t[i].SyncBefore
		after |= t[i].SyncAfter
		v := t[i].IView.(*imageView)
		ibs[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       convAccess(t[i].AccessBefore),
			DstAccessMask:       convAccess(t[i].AccessAfter),
			OldLayout:           convLayout(t[i].LayoutBefore),
			NewLayout:           convLayout(t[i].LayoutAfter),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               v.img,
			SubresourceRange:    v.subresource(),
		}
	}
	vk.CmdPipelineBarrier(cb.cb, convSync(before, true), convSync(after, false), 0, 0, nil, 0, nil, uint32(len(ibs)), ibs)
}

// End ends command recording.
// It returns the first error that occurred during
// recording, if any.
func (cb *cmdBuffer) End() error {
	if cb.rendering {
		vk.CmdEndRenderPass(cb.cb)
		cb.rendering = false
		cb.fail(errors.New("vk: command buffer ended during rendering"))
	}
	if err := checkResult(vk.EndCommandBuffer(cb.cb)); err != nil {
		cb.fail(errors.Wrap(err, "vk: ending command buffer"))
	}
	return cb.err
}

// Reset discards all recorded commands.
func (cb *cmdBuffer) Reset() error {
	cb.rendering = false
	cb.err = nil
	return checkResult(vk.ResetCommandPool(cb.d.dev, cb.pool, 0))
}

// Destroy destroys the command buffer.
func (cb *cmdBuffer) Destroy() {
	if cb == nil || cb.d == nil {
		return
	}
	vk.FreeCommandBuffers(cb.d.dev, cb.pool, 1, []vk.CommandBuffer{cb.cb})
	vk.DestroyCommandPool(cb.d.dev, cb.pool, nil)
	*cb = cmdBuffer{}
}

// Submit submits a batch of command buffers for execution.
func (d *Driver) Submit(s *driver.Submission) error {
	if len(s.Wait) != len(s.WaitSync) {
		return errors.Newf("vk: %d wait semaphores and %d wait scopes", len(s.Wait), len(s.WaitSync))
	}
	cbs := make([]vk.CommandBuffer, len(s.Cmd))
	for i := range s.Cmd {
		cbs[i] = s.Cmd[i].(*cmdBuffer).cb
	}
	wait := make([]vk.Semaphore, len(s.Wait))
	stages := make([]vk.PipelineStageFlags, len(s.Wait))
	for i := range s.Wait {
		wait[i] = s.Wait[i].(*semaphore).sem
		stages[i] = convSync(s.WaitSync[i], false)
	}
	signal := make([]vk.Semaphore, len(s.Signal))
	for i := range s.Signal {
		signal[i] = s.Signal[i].(*semaphore).sem
	}
	fnc := vk.Fence(vk.NullHandle)
	if s.Fence != nil {
		fnc = s.Fence.(*fence).fnc
	}
	return d.submit(vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cbs)),
		PCommandBuffers:      cbs,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}, fnc)
}

func (d *Driver) submit(info vk.SubmitInfo, fnc vk.Fence) error {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	if err := checkResult(vk.QueueSubmit(d.que, 1, []vk.SubmitInfo{info}, fnc)); err != nil {
		return errors.Wrap(err, "vk: submitting to queue")
	}
	return nil
}

// convSync converts a driver.Sync to a
// vk.PipelineStageFlags.
// first indicates whether s is the first scope of a
// dependency, which determines the stage used for
// driver.SNone.
func convSync(s driver.Sync, first bool) vk.PipelineStageFlags {
	if s == driver.SNone {
		if first {
			return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		}
		return vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	if s&driver.SAll != 0 {
		return vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}
	var f vk.PipelineStageFlagBits
	if s&driver.SVertexInput != 0 {
		f |= vk.PipelineStageVertexInputBit
	}
	if s&driver.SVertexShading != 0 {
		f |= vk.PipelineStageVertexShaderBit
	}
	if s&driver.SFragmentShading != 0 {
		f |= vk.PipelineStageFragmentShaderBit
	}
	if s&driver.SColorOutput != 0 {
		f |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&driver.SDSOutput != 0 {
		f |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	}
	if s&driver.SCopy != 0 {
		f |= vk.PipelineStageTransferBit
	}
	return vk.PipelineStageFlags(f)
}

// convAccess converts a driver.Access to a vk.AccessFlags.
func convAccess(a driver.Access) vk.AccessFlags {
	var f vk.AccessFlagBits
	if a&driver.AVertexBufRead != 0 {
		f |= vk.AccessVertexAttributeReadBit
	}
	if a&driver.AIndexBufRead != 0 {
		f |= vk.AccessIndexReadBit
	}
	if a&driver.AColorRead != 0 {
		f |= vk.AccessColorAttachmentReadBit
	}
	if a&driver.AColorWrite != 0 {
		f |= vk.AccessColorAttachmentWriteBit
	}
	if a&driver.ADSRead != 0 {
		f |= vk.AccessDepthStencilAttachmentReadBit
	}
	if a&driver.ADSWrite != 0 {
		f |= vk.AccessDepthStencilAttachmentWriteBit
	}
	if a&driver.ACopyRead != 0 {
		f |= vk.AccessTransferReadBit
	}
	if a&driver.ACopyWrite != 0 {
		f |= vk.AccessTransferWriteBit
	}
	if a&driver.AShaderRead != 0 {
		f |= vk.AccessShaderReadBit | vk.AccessUniformReadBit
	}
	if a&driver.AShaderWrite != 0 {
		f |= vk.AccessShaderWriteBit
	}
	if a&driver.AAnyRead != 0 {
		f |= vk.AccessMemoryReadBit
	}
	if a&driver.AAnyWrite != 0 {
		f |= vk.AccessMemoryWriteBit
	}
	return vk.AccessFlags(f)
}

// convLayout converts a driver.Layout to a vk.ImageLayout.
func convLayout(l driver.Layout) vk.ImageLayout {
	switch l {
	case driver.LCommon:
		return vk.ImageLayoutGeneral
	case driver.LColorTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.LDSTarget:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case driver.LDSRead:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case driver.LCopySrc:
		return vk.ImageLayoutTransferSrcOptimal
	case driver.LCopyDst:
		return vk.ImageLayoutTransferDstOptimal
	case driver.LShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case driver.LPresent:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}
