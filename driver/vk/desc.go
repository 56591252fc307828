// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// ndesc is the number of driver.DescType values.
const ndesc = int(driver.DSampler) + 1

// descHeap implements driver.DescHeap.
// Each heap copy is a descriptor set allocated from a
// pool owned by the heap.
type descHeap struct {
	d      *Driver
	layout vk.DescriptorSetLayout
	pool   vk.DescriptorPool
	sets   []vk.DescriptorSet
	ds     []driver.Descriptor

	// Number of descriptors of each type in ds,
	// indexed by driver.DescType.
	count [ndesc]int
}

// NewDescHeap creates a new descriptor heap.
func (d *Driver) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	var count [ndesc]int
	binds := make([]vk.DescriptorSetLayoutBinding, len(ds))
	for i := range ds {
		if ds[i].Len <= 0 {
			return nil, errors.Newf("vk: descriptor %d has length %d", ds[i].Nr, ds[i].Len)
		}
		// Descriptor.Nr is the binding number, which must
		// be unique within a descriptor set.
		for j := i + 1; j < len(ds); j++ {
			if ds[i].Nr == ds[j].Nr {
				return nil, errors.Newf("vk: descriptor number %d is not unique", ds[i].Nr)
			}
		}
		count[ds[i].Type] += ds[i].Len
		binds[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(ds[i].Nr),
			DescriptorType:  convDescType(ds[i].Type),
			DescriptorCount: uint32(ds[i].Len),
			StageFlags:      convStage(ds[i].Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(binds)),
		PBindings:    binds,
	}
	var layout vk.DescriptorSetLayout
	if err := checkResult(vk.CreateDescriptorSetLayout(d.dev, &info, nil, &layout)); err != nil {
		return nil, errors.Wrap(err, "vk: creating descriptor set layout")
	}
	// The pool is created by New.
	return &descHeap{
		d:      d,
		layout: layout,
		ds:     append([]driver.Descriptor(nil), ds...),
		count:  count,
	}, nil
}

// New creates enough storage for n copies of each
// descriptor.
func (h *descHeap) New(n int) error {
	switch {
	case n < 0:
		return errors.Newf("vk: invalid heap copy count %d", n)
	case n == len(h.sets):
		return nil
	case len(h.sets) > 0:
		vk.DestroyDescriptorPool(h.d.dev, h.pool, nil)
		h.sets = nil
	}
	if n == 0 {
		return nil
	}

	var sizes []vk.DescriptorPoolSize
	for t, c := range h.count {
		if c > 0 {
			sizes = append(sizes, vk.DescriptorPoolSize{
				Type:            convDescType(driver.DescType(t)),
				DescriptorCount: uint32(c * n),
			})
		}
	}
	if len(sizes) == 0 {
		// The pool size count must not be zero.
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeSampler, DescriptorCount: 1})
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(n),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := checkResult(vk.CreateDescriptorPool(h.d.dev, &info, nil, &pool)); err != nil {
		return errors.Wrap(err, "vk: creating descriptor pool")
	}
	sets := make([]vk.DescriptorSet, n)
	for i := range sets {
		alloc := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{h.layout},
		}
		if err := checkResult(vk.AllocateDescriptorSets(h.d.dev, &alloc, &sets[i])); err != nil {
			vk.DestroyDescriptorPool(h.d.dev, pool, nil)
			return errors.Wrap(err, "vk: allocating descriptor sets")
		}
	}
	h.pool = pool
	h.sets = sets
	return nil
}

// typeOf returns the type of descriptor nr.
// It panics if nr does not identify a descriptor of h.
func (h *descHeap) typeOf(nr int) driver.DescType {
	for i := range h.ds {
		if h.ds[i].Nr == nr {
			return h.ds[i].Type
		}
	}
	panic(errors.AssertionFailedf("vk: no descriptor number %d in heap", nr))
}

func (h *descHeap) write(cpy, nr, start int, w vk.WriteDescriptorSet) {
	w.SType = vk.StructureTypeWriteDescriptorSet
	w.DstSet = h.sets[cpy]
	w.DstBinding = uint32(nr)
	w.DstArrayElement = uint32(start)
	w.DescriptorType = convDescType(h.typeOf(nr))
	vk.UpdateDescriptorSets(h.d.dev, 1, []vk.WriteDescriptorSet{w}, 0, nil)
}

// SetBuffer updates the buffer ranges referred by the
// given descriptor of the given heap copy.
func (h *descHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	if len(buf) == 0 {
		return
	}
	infos := make([]vk.DescriptorBufferInfo, len(buf))
	for i := range buf {
		infos[i] = vk.DescriptorBufferInfo{
			Buffer: buf[i].(*buffer).buf,
			Offset: vk.DeviceSize(off[i]),
			Range:  vk.DeviceSize(size[i]),
		}
	}
	h.write(cpy, nr, start, vk.WriteDescriptorSet{
		DescriptorCount: uint32(len(infos)),
		PBufferInfo:     infos,
	})
}

// SetImage updates the image views referred by the
// given descriptor of the given heap copy.
// Views must be in the driver.LShaderRead layout when
// accessed by shaders.
func (h *descHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	if len(iv) == 0 {
		return
	}
	infos := make([]vk.DescriptorImageInfo, len(iv))
	for i := range iv {
		infos[i] = vk.DescriptorImageInfo{
			ImageView:   iv[i].(*imageView).view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
	}
	h.write(cpy, nr, start, vk.WriteDescriptorSet{
		DescriptorCount: uint32(len(infos)),
		PImageInfo:      infos,
	})
}

// SetSampler updates the samplers referred by the given
// descriptor of the given heap copy.
func (h *descHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	if len(splr) == 0 {
		return
	}
	infos := make([]vk.DescriptorImageInfo, len(splr))
	for i := range splr {
		infos[i] = vk.DescriptorImageInfo{Sampler: splr[i].(*sampler).splr}
	}
	h.write(cpy, nr, start, vk.WriteDescriptorSet{
		DescriptorCount: uint32(len(infos)),
		PImageInfo:      infos,
	})
}

// Count returns the number of heap copies created by New.
func (h *descHeap) Count() int { return len(h.sets) }

// Destroy destroys the descriptor heap.
func (h *descHeap) Destroy() {
	if h == nil || h.d == nil {
		return
	}
	if len(h.sets) > 0 {
		vk.DestroyDescriptorPool(h.d.dev, h.pool, nil)
	}
	vk.DestroyDescriptorSetLayout(h.d.dev, h.layout, nil)
	*h = descHeap{}
}

// descTable implements driver.DescTable.
type descTable struct {
	d      *Driver
	h      []*descHeap
	layout vk.PipelineLayout
}

// NewDescTable creates a new descriptor table.
func (d *Driver) NewDescTable(dh []driver.DescHeap, push []driver.PushRange) (driver.DescTable, error) {
	if len(dh) > d.lim.MaxDescHeaps {
		return nil, errors.Newf("vk: %d heaps exceed the limit of %d", len(dh), d.lim.MaxDescHeaps)
	}
	h := make([]*descHeap, len(dh))
	layouts := make([]vk.DescriptorSetLayout, len(dh))
	for i := range dh {
		h[i] = dh[i].(*descHeap)
		layouts[i] = h[i].layout
	}
	ranges := make([]vk.PushConstantRange, len(push))
	for i, r := range push {
		if r.Off < 0 || r.Size <= 0 || r.Off+r.Size > d.lim.MaxPushConstants {
			return nil, errors.Newf("vk: push range [%d, %d) out of bounds", r.Off, r.Off+r.Size)
		}
		ranges[i] = vk.PushConstantRange{
			StageFlags: convStage(r.Stages),
			Offset:     uint32(r.Off),
			Size:       uint32(r.Size),
		}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if err := checkResult(vk.CreatePipelineLayout(d.dev, &info, nil, &layout)); err != nil {
		return nil, errors.Wrap(err, "vk: creating pipeline layout")
	}
	return &descTable{d: d, h: h, layout: layout}, nil
}

// Destroy destroys the descriptor table.
func (t *descTable) Destroy() {
	if t == nil || t.d == nil {
		return
	}
	vk.DestroyPipelineLayout(t.d.dev, t.layout, nil)
	*t = descTable{}
}

// convDescType converts a driver.DescType to a
// vk.DescriptorType.
func convDescType(t driver.DescType) vk.DescriptorType {
	switch t {
	case driver.DBuffer:
		return vk.DescriptorTypeStorageBuffer
	case driver.DConstant:
		return vk.DescriptorTypeUniformBuffer
	case driver.DTexture:
		return vk.DescriptorTypeSampledImage
	}
	return vk.DescriptorTypeSampler
}

// convStage converts a driver.Stage to a
// vk.ShaderStageFlags.
func convStage(s driver.Stage) vk.ShaderStageFlags {
	var f vk.ShaderStageFlagBits
	if s&driver.SVertex != 0 {
		f |= vk.ShaderStageVertexBit
	}
	if s&driver.SFragment != 0 {
		f |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(f)
}
