// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// memory is a device memory allocation.
// Every buffer and image has its own allocation.
type memory struct {
	d    *Driver
	size int64
	vis  bool
	// Host-visible memory is persistently mapped.
	p   []byte
	mem vk.DeviceMemory
	typ int
}

// newMemory allocates memory that satisfies req.
// If visible is set, the memory is mapped for host access.
func (d *Driver) newMemory(req vk.MemoryRequirements, visible bool) (*memory, error) {
	typ, err := d.selectMemory(req.MemoryTypeBits, visible)
	if err != nil {
		return nil, err
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: uint32(typ),
	}
	var mem vk.DeviceMemory
	if err := checkResult(vk.AllocateMemory(d.dev, &info, nil, &mem)); err != nil {
		return nil, errors.Wrapf(err, "vk: allocating %d bytes", req.Size)
	}
	m := &memory{d: d, size: int64(req.Size), vis: visible, mem: mem, typ: typ}
	if visible {
		if err := m.mmap(); err != nil {
			m.free()
			return nil, err
		}
	}
	return m, nil
}

// selectMemory selects a memory type from the types
// allowed by bits.
// Host-visible memory must be coherent. Otherwise,
// device-local memory is preferred.
func (d *Driver) selectMemory(bits uint32, visible bool) (int, error) {
	var want, pref vk.MemoryPropertyFlags
	if visible {
		want = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	} else {
		pref = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
	fallback := -1
	for i := 0; i < int(d.mprop.MemoryTypeCount); i++ {
		if bits&(1<<i) == 0 {
			continue
		}
		flags := d.mprop.MemoryTypes[i].PropertyFlags
		if flags&want != want {
			continue
		}
		if flags&pref == pref {
			return i, nil
		}
		if fallback < 0 {
			fallback = i
		}
	}
	if fallback < 0 {
		return -1, errors.Wrap(driver.ErrNoDeviceMemory, "vk: no suitable memory type")
	}
	return fallback, nil
}

// mmap maps the whole allocation.
func (m *memory) mmap() error {
	var p unsafe.Pointer
	if err := checkResult(vk.MapMemory(m.d.dev, m.mem, 0, vk.DeviceSize(m.size), 0, &p)); err != nil {
		return errors.Wrap(err, "vk: mapping memory")
	}
	m.p = unsafe.Slice((*byte)(p), m.size)
	return nil
}

// free unmaps and frees the memory.
func (m *memory) free() {
	if m.p != nil {
		vk.UnmapMemory(m.d.dev, m.mem)
		m.p = nil
	}
	vk.FreeMemory(m.d.dev, m.mem, nil)
	*m = memory{}
}
