// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Descriptor management.
//
// Every material uses at most two heaps: a uniform heap
// with one DConstant descriptor, replicated once per
// swapchain image, and an optional static heap with a
// single copy.
//
// For portability, the following restrictions apply:
//
//	DescHeap per DescTable           | 2 (max)
//	DConstant data alignment         | 256 bytes (min)
//	DConstant data size              | 16 KiB (max)
//	Push constant data               | 128 bytes (max)
//
// (the above names refer to the driver package).

package shader

import (
	"unsafe"

	"github.com/gviegas/vkb/driver"
)

// Descriptor numbers.
const (
	UniformNr = 0

	StarNr = 0

	TextureNr = 0
	SamplerNr = 1
)

// MaxStar is the maximum number of stars in the sky.
const MaxStar = 256

const (
	// BlockSize is the alignment of constant data.
	BlockSize = 256
	// MaxConstant is the maximum size of constant data.
	MaxConstant = 16384
	// MaxPush is the maximum size of push constant data.
	MaxPush = 128
)

// These spans are given in number of blocks.
const (
	CameraSpan = (unsafe.Sizeof(CameraLayout{}) + BlockSize - 1) &^ (BlockSize - 1) / BlockSize
	CoordsSpan = (unsafe.Sizeof(CoordsLayout{}) + BlockSize - 1) &^ (BlockSize - 1) / BlockSize
	StarSpan   = (MaxStar*unsafe.Sizeof(StarLayout{}) + BlockSize - 1) &^ (BlockSize - 1) / BlockSize
)

// Span returns the number of bytes that size occupies
// when rounded up to BlockSize.
func Span(size int) int {
	return (size + BlockSize - 1) &^ (BlockSize - 1)
}

// ConstantDesc returns a DConstant descriptor.
func ConstantDesc(nr int, stages driver.Stage) driver.Descriptor {
	return driver.Descriptor{
		Type:   driver.DConstant,
		Stages: stages,
		Nr:     nr,
		Len:    1,
	}
}

// TextureDesc returns a DTexture descriptor.
func TextureDesc(nr int, stages driver.Stage) driver.Descriptor {
	return driver.Descriptor{
		Type:   driver.DTexture,
		Stages: stages,
		Nr:     nr,
		Len:    1,
	}
}

// SamplerDesc returns a DSampler descriptor.
func SamplerDesc(nr int, stages driver.Stage) driver.Descriptor {
	return driver.Descriptor{
		Type:   driver.DSampler,
		Stages: stages,
		Nr:     nr,
		Len:    1,
	}
}

// UniformHeap returns the descriptors of a uniform heap.
func UniformHeap(stages driver.Stage) []driver.Descriptor {
	return []driver.Descriptor{ConstantDesc(UniformNr, stages)}
}

// TextureHeap returns the descriptors of a static heap
// holding one texture and its sampler.
func TextureHeap() []driver.Descriptor {
	return []driver.Descriptor{
		TextureDesc(TextureNr, driver.SFragment),
		SamplerDesc(SamplerNr, driver.SFragment),
	}
}

// StarHeap returns the descriptors of a static heap
// holding the star array.
func StarHeap() []driver.Descriptor {
	return []driver.Descriptor{ConstantDesc(StarNr, driver.SFragment)}
}
