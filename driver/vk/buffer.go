// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// buffer implements driver.Buffer.
type buffer struct {
	m   *memory
	buf vk.Buffer
}

// NewBuffer creates a new buffer.
func (d *Driver) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.Newf("vk: invalid buffer size %d", size)
	}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       convBufferUsage(usg),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if err := checkResult(vk.CreateBuffer(d.dev, &info, nil, &buf)); err != nil {
		return nil, errors.Wrap(err, "vk: creating buffer")
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.dev, buf, &req)
	req.Deref()
	m, err := d.newMemory(req, visible)
	if err != nil {
		vk.DestroyBuffer(d.dev, buf, nil)
		return nil, err
	}
	if err := checkResult(vk.BindBufferMemory(d.dev, buf, m.mem, 0)); err != nil {
		m.free()
		vk.DestroyBuffer(d.dev, buf, nil)
		return nil, errors.Wrap(err, "vk: binding buffer memory")
	}
	return &buffer{m: m, buf: buf}, nil
}

// Visible returns whether the buffer is host visible.
func (b *buffer) Visible() bool { return b.m.vis }

// Bytes returns a slice of length b.Cap() referring to
// the underlying data.
func (b *buffer) Bytes() []byte { return b.m.p }

// Cap returns the capacity of the buffer in bytes.
func (b *buffer) Cap() int64 { return b.m.size }

// Destroy destroys the buffer.
func (b *buffer) Destroy() {
	if b == nil || b.m == nil {
		return
	}
	vk.DestroyBuffer(b.m.d.dev, b.buf, nil)
	b.m.free()
	*b = buffer{}
}

// convBufferUsage converts a driver.Usage to a
// vk.BufferUsageFlags.
func convBufferUsage(usg driver.Usage) vk.BufferUsageFlags {
	var f vk.BufferUsageFlagBits
	if usg&driver.UShaderConst != 0 {
		f |= vk.BufferUsageUniformBufferBit
	}
	if usg&driver.UVertexData != 0 {
		f |= vk.BufferUsageVertexBufferBit
	}
	if usg&driver.UIndexData != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	if usg&driver.UCopySrc != 0 {
		f |= vk.BufferUsageTransferSrcBit
	}
	if usg&driver.UCopyDst != 0 {
		f |= vk.BufferUsageTransferDstBit
	}
	if usg == driver.UGeneric {
		f |= vk.BufferUsageStorageBufferBit
	}
	return vk.BufferUsageFlags(f)
}
