// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// Rendering is implemented with single-subpass render
// passes and framebuffers that are created on first use
// and cached in the Driver.

// maxColorTarget is the maximum number of color targets
// in a rendering block.
const maxColorTarget = 8

// attKey describes a render pass attachment.
type attKey struct {
	fmt   vk.Format
	load  driver.LoadOp
	store driver.StoreOp
}

// passKey identifies a render pass.
type passKey struct {
	ncolor int
	color  [maxColorTarget]attKey
	hasDS  bool
	ds     attKey
}

// fbKey identifies a framebuffer.
type fbKey struct {
	pass   vk.RenderPass
	nview  int
	view   [maxColorTarget + 1]*imageView
	width  int
	height int
}

// keyOf returns the passKey of info.
func keyOf(info *driver.RenderingInfo) (key passKey, err error) {
	if len(info.Color) > maxColorTarget {
		return key, errors.Newf("vk: %d color targets exceed the limit", len(info.Color))
	}
	key.ncolor = len(info.Color)
	for i, c := range info.Color {
		key.color[i] = attKey{c.View.(*imageView).fmt, c.Load, c.Store}
	}
	if info.DS != nil {
		key.hasDS = true
		key.ds = attKey{info.DS.View.(*imageView).fmt, info.DS.Load, info.DS.Store}
	}
	return key, nil
}

// compatKey returns the key of a render pass compatible
// with targets of the given formats.
func compatKey(color []driver.PixelFmt, ds driver.PixelFmt, hasDS bool) (key passKey, err error) {
	if len(color) > maxColorTarget {
		return key, errors.Newf("vk: %d color formats exceed the limit", len(color))
	}
	key.ncolor = len(color)
	for i, pf := range color {
		key.color[i] = attKey{convPixelFmt(pf), driver.LClear, driver.SStore}
	}
	if hasDS {
		key.hasDS = true
		key.ds = attKey{convPixelFmt(ds), driver.LClear, driver.SStore}
	}
	return key, nil
}

// renderPass returns the render pass identified by key,
// creating it if needed.
// Color attachments start and end in the
// ColorAttachmentOptimal layout, and depth/stencil ones
// in DepthStencilAttachmentOptimal. The initial layout is
// Undefined unless the contents are loaded.
func (d *Driver) renderPass(key passKey) (vk.RenderPass, error) {
	d.pmu.Lock()
	defer d.pmu.Unlock()
	if p, ok := d.passes[key]; ok {
		return p, nil
	}

	att := make([]vk.AttachmentDescription, 0, key.ncolor+1)
	refs := make([]vk.AttachmentReference, key.ncolor)
	for i, c := range key.color[:key.ncolor] {
		init := vk.ImageLayoutUndefined
		if c.load == driver.LLoad {
			init = vk.ImageLayoutColorAttachmentOptimal
		}
		att = append(att, vk.AttachmentDescription{
			Format:         c.fmt,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         convLoadOp(c.load),
			StoreOp:        convStoreOp(c.store),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  init,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
		refs[i] = vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}
	}
	sub := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(refs)),
		PColorAttachments:    refs,
	}
	if key.hasDS {
		init := vk.ImageLayoutUndefined
		if key.ds.load == driver.LLoad {
			init = vk.ImageLayoutDepthStencilAttachmentOptimal
		}
		sload, sstore := vk.AttachmentLoadOpDontCare, vk.AttachmentStoreOpDontCare
		if pf, _ := pixelFmtOf(key.ds.fmt); hasStencil(pf) {
			sload, sstore = convLoadOp(key.ds.load), convStoreOp(key.ds.store)
		}
		att = append(att, vk.AttachmentDescription{
			Format:         key.ds.fmt,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         convLoadOp(key.ds.load),
			StoreOp:        convStoreOp(key.ds.store),
			StencilLoadOp:  sload,
			StencilStoreOp: sstore,
			InitialLayout:  init,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		sub.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(key.ncolor),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(att)),
		PAttachments:    att,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{sub},
	}
	var pass vk.RenderPass
	if err := checkResult(vk.CreateRenderPass(d.dev, &info, nil, &pass)); err != nil {
		return pass, errors.Wrap(err, "vk: creating render pass")
	}
	d.passes[key] = pass
	d.log.Debug("render pass created", "colorTargets", key.ncolor, "depthStencil", key.hasDS, "cached", len(d.passes))
	return pass, nil
}

// framebuf returns a framebuffer of pass that refers to
// views, creating it if needed.
func (d *Driver) framebuf(pass vk.RenderPass, views []*imageView, width, height int) (vk.Framebuffer, error) {
	key := fbKey{pass: pass, nview: len(views), width: width, height: height}
	copy(key.view[:], views)
	d.pmu.Lock()
	defer d.pmu.Unlock()
	if fb, ok := d.fbs[key]; ok {
		return fb, nil
	}
	att := make([]vk.ImageView, len(views))
	for i, v := range views {
		att[i] = v.view
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(att)),
		PAttachments:    att,
		Width:           uint32(width),
		Height:          uint32(height),
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := checkResult(vk.CreateFramebuffer(d.dev, &info, nil, &fb)); err != nil {
		return fb, errors.Wrap(err, "vk: creating framebuffer")
	}
	d.fbs[key] = fb
	return fb, nil
}

// evictFramebufs destroys every framebuffer that refers
// to v.
func (d *Driver) evictFramebufs(v *imageView) {
	d.pmu.Lock()
	defer d.pmu.Unlock()
	for k, fb := range d.fbs {
		for _, x := range k.view[:k.nview] {
			if x == v {
				vk.DestroyFramebuffer(d.dev, fb, nil)
				delete(d.fbs, k)
				break
			}
		}
	}
}

// destroyPasses destroys all cached framebuffers and
// render passes.
func (d *Driver) destroyPasses() {
	d.pmu.Lock()
	defer d.pmu.Unlock()
	for k, fb := range d.fbs {
		vk.DestroyFramebuffer(d.dev, fb, nil)
		delete(d.fbs, k)
	}
	for k, p := range d.passes {
		vk.DestroyRenderPass(d.dev, p, nil)
		delete(d.passes, k)
	}
}

// convLoadOp converts a driver.LoadOp to a
// vk.AttachmentLoadOp.
func convLoadOp(op driver.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case driver.LClear:
		return vk.AttachmentLoadOpClear
	case driver.LLoad:
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpDontCare
}

// convStoreOp converts a driver.StoreOp to a
// vk.AttachmentStoreOp.
func convStoreOp(op driver.StoreOp) vk.AttachmentStoreOp {
	if op == driver.SStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}
