// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package drivertest

import (
	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
)

// Buffer implements driver.Buffer.
type Buffer struct {
	g       *GPU
	id      int
	visible bool
	usg     driver.Usage
	data    []byte
	size    int64
}

// NewBuffer implements driver.GPU.
func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.Newf("drivertest: invalid buffer size %d", size)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b := &Buffer{g: g, id: g.newID(), visible: visible, usg: usg, size: size}
	if visible {
		b.data = make([]byte, size)
	}
	g.record("newBuffer", b.id, int(size))
	return b, nil
}

// ID returns the object identifier of b.
func (b *Buffer) ID() int { return b.id }

// Usage returns the usage given on creation.
func (b *Buffer) Usage() driver.Usage { return b.usg }

// Visible implements driver.Buffer.
func (b *Buffer) Visible() bool { return b.visible }

// Bytes implements driver.Buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Cap implements driver.Buffer.
func (b *Buffer) Cap() int64 { return b.size }

// Destroy implements driver.Destroyer.
func (b *Buffer) Destroy() { b.g.freeID(b.id) }

// Image implements driver.Image.
type Image struct {
	g      *GPU
	id     int
	pf     driver.PixelFmt
	size   driver.Dim3D
	layers int
	levels int
	usg    driver.Usage
}

// NewImage implements driver.GPU.
func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels int, usg driver.Usage) (driver.Image, error) {
	if size.Width <= 0 || size.Height <= 0 || layers <= 0 || levels <= 0 {
		return nil, errors.Newf("drivertest: invalid image %+v, %d layers, %d levels", size, layers, levels)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	img := &Image{g, g.newID(), pf, size, layers, levels, usg}
	g.record("newImage", img.id, size.Width, size.Height, levels)
	return img, nil
}

// ID returns the object identifier of img.
func (img *Image) ID() int { return img.id }

// Format returns the pixel format of img.
func (img *Image) Format() driver.PixelFmt { return img.pf }

// Size returns the size of img.
func (img *Image) Size() driver.Dim3D { return img.size }

// Levels returns the number of mip levels of img.
func (img *Image) Levels() int { return img.levels }

// NewView implements driver.Image.
func (img *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	if layer+layers > img.layers || level+levels > img.levels {
		return nil, errors.Newf("drivertest: view out of range for image %d", img.id)
	}
	img.g.mu.Lock()
	defer img.g.mu.Unlock()
	v := &ImageView{g: img.g, id: img.g.newID(), img: img}
	img.g.record("newView", v.id, img.id)
	return v, nil
}

// Destroy implements driver.Destroyer.
func (img *Image) Destroy() { img.g.freeID(img.id) }

// ImageView implements driver.ImageView.
type ImageView struct {
	g   *GPU
	id  int
	img *Image
}

// ID returns the object identifier of v.
func (v *ImageView) ID() int { return v.id }

// Image returns the image from which v was created.
// It is nil for swapchain views.
func (v *ImageView) Image() *Image { return v.img }

// Destroy implements driver.Destroyer.
func (v *ImageView) Destroy() { v.g.freeID(v.id) }

// Sampler implements driver.Sampler.
type Sampler struct {
	g    *GPU
	id   int
	Spln driver.Sampling
}

// NewSampler implements driver.GPU.
func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := &Sampler{g, g.newID(), *spln}
	g.record("newSampler", s.id)
	return s, nil
}

// Destroy implements driver.Destroyer.
func (s *Sampler) Destroy() { s.g.freeID(s.id) }

// ShaderCode implements driver.ShaderCode.
type ShaderCode struct {
	g    *GPU
	id   int
	Data []byte
}

// NewShaderCode implements driver.GPU.
// data must be a non-empty multiple of 4 bytes.
func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Newf("drivertest: invalid shader code size %d", len(data))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s := &ShaderCode{g, g.newID(), data}
	g.record("newShaderCode", s.id)
	return s, nil
}

// Destroy implements driver.Destroyer.
func (s *ShaderCode) Destroy() { s.g.freeID(s.id) }

// DescHeap implements driver.DescHeap.
type DescHeap struct {
	g  *GPU
	id int
	ds []driver.Descriptor
	n  int
	// set maps heap copy and descriptor number to the
	// identifiers of the bound resources.
	set map[[2]int][]int
}

// NewDescHeap implements driver.GPU.
func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := &DescHeap{g: g, id: g.newID(), ds: append([]driver.Descriptor(nil), ds...), set: make(map[[2]int][]int)}
	g.record("newDescHeap", h.id, len(ds))
	return h, nil
}

// ID returns the object identifier of h.
func (h *DescHeap) ID() int { return h.id }

// Bound returns the identifiers of the resources bound to
// descriptor nr of heap copy cpy.
func (h *DescHeap) Bound(cpy, nr int) []int {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	return h.set[[2]int{cpy, nr}]
}

// New implements driver.DescHeap.
func (h *DescHeap) New(n int) error {
	if n < 0 {
		return errors.Newf("drivertest: invalid heap copy count %d", n)
	}
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	if n != h.n {
		clear(h.set)
	}
	h.n = n
	return nil
}

func (h *DescHeap) check(cpy, nr int, typ ...driver.DescType) {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	if cpy < 0 || cpy >= h.n {
		h.g.violatef("heap %d has no copy %d", h.id, cpy)
		return
	}
	for _, d := range h.ds {
		if d.Nr != nr {
			continue
		}
		for _, t := range typ {
			if d.Type == t {
				return
			}
		}
		h.g.violatef("heap %d descriptor %d has type %d", h.id, nr, d.Type)
		return
	}
	h.g.violatef("heap %d has no descriptor %d", h.id, nr)
}

func (h *DescHeap) bind(cpy, nr int, id []int) {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()
	h.set[[2]int{cpy, nr}] = id
}

// SetBuffer implements driver.DescHeap.
func (h *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	h.check(cpy, nr, driver.DBuffer, driver.DConstant)
	id := make([]int, len(buf))
	for i, b := range buf {
		id[i] = b.(*Buffer).id
	}
	h.bind(cpy, nr, id)
}

// SetImage implements driver.DescHeap.
func (h *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	h.check(cpy, nr, driver.DTexture)
	id := make([]int, len(iv))
	for i, v := range iv {
		id[i] = v.(*ImageView).id
	}
	h.bind(cpy, nr, id)
}

// SetSampler implements driver.DescHeap.
func (h *DescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	h.check(cpy, nr, driver.DSampler)
	id := make([]int, len(splr))
	for i, s := range splr {
		id[i] = s.(*Sampler).id
	}
	h.bind(cpy, nr, id)
}

// Count implements driver.DescHeap.
func (h *DescHeap) Count() int { return h.n }

// Destroy implements driver.Destroyer.
func (h *DescHeap) Destroy() { h.g.freeID(h.id) }

// DescTable implements driver.DescTable.
type DescTable struct {
	g     *GPU
	id    int
	heaps []*DescHeap
	push  []driver.PushRange
}

// NewDescTable implements driver.GPU.
func (g *GPU) NewDescTable(dh []driver.DescHeap, push []driver.PushRange) (driver.DescTable, error) {
	if len(dh) > g.lim.MaxDescHeaps {
		return nil, errors.Newf("drivertest: %d heaps exceed the limit", len(dh))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	t := &DescTable{g: g, id: g.newID(), push: append([]driver.PushRange(nil), push...)}
	for _, h := range dh {
		t.heaps = append(t.heaps, h.(*DescHeap))
	}
	g.record("newDescTable", t.id, len(dh))
	return t, nil
}

// Destroy implements driver.Destroyer.
func (t *DescTable) Destroy() { t.g.freeID(t.id) }

// Pipeline implements driver.Pipeline.
type Pipeline struct {
	g     *GPU
	id    int
	State driver.GraphState
}

// NewPipeline implements driver.GPU.
func (g *GPU) NewPipeline(state *driver.GraphState) (driver.Pipeline, error) {
	if state.VertFunc.Code == nil || state.Desc == nil {
		return nil, errors.New("drivertest: incomplete graphics state")
	}
	if state.Raster.LineWidth > 1 && !g.lim.WideLines {
		return nil, errors.New("drivertest: wide lines not supported")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p := &Pipeline{g, g.newID(), *state}
	g.record("newPipeline", p.id)
	return p, nil
}

// ID returns the object identifier of p.
func (p *Pipeline) ID() int { return p.id }

// Destroy implements driver.Destroyer.
func (p *Pipeline) Destroy() { p.g.freeID(p.id) }
