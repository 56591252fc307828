// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// sampler implements driver.Sampler.
type sampler struct {
	d    *Driver
	splr vk.Sampler
}

// NewSampler creates a new sampler.
// Anisotropy is clamped to the device limit.
func (d *Driver) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	aniso := min(spln.MaxAniso, d.lim.MaxAniso)
	maxLOD := spln.MaxLOD
	if spln.Mipmap == driver.FNoMipmap {
		// Restricts sampling to the base level.
		maxLOD = 0.25
	}
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               convFilter(spln.Mag),
		MinFilter:               convFilter(spln.Min),
		MipmapMode:              convMipFilter(spln.Mipmap),
		AddressModeU:            convAddrMode(spln.AddrU),
		AddressModeV:            convAddrMode(spln.AddrV),
		AddressModeW:            convAddrMode(spln.AddrW),
		AnisotropyEnable:        vkBool(aniso > 1),
		MaxAnisotropy:           float32(max(aniso, 1)),
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpNever,
		MinLod:                  spln.MinLOD,
		MaxLod:                  maxLOD,
		BorderColor:             vk.BorderColorFloatTransparentBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var splr vk.Sampler
	if err := checkResult(vk.CreateSampler(d.dev, &info, nil, &splr)); err != nil {
		return nil, errors.Wrap(err, "vk: creating sampler")
	}
	return &sampler{d: d, splr: splr}, nil
}

// Destroy destroys the sampler.
func (s *sampler) Destroy() {
	if s == nil || s.d == nil {
		return
	}
	vk.DestroySampler(s.d.dev, s.splr, nil)
	*s = sampler{}
}

// convFilter converts a driver.Filter to a vk.Filter.
func convFilter(f driver.Filter) vk.Filter {
	if f == driver.FLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

// convMipFilter converts a driver.Filter to a
// vk.SamplerMipmapMode.
func convMipFilter(f driver.Filter) vk.SamplerMipmapMode {
	if f == driver.FLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

// convAddrMode converts a driver.AddrMode to a
// vk.SamplerAddressMode.
func convAddrMode(am driver.AddrMode) vk.SamplerAddressMode {
	switch am {
	case driver.AMirror:
		return vk.SamplerAddressModeMirroredRepeat
	case driver.AClamp:
		return vk.SamplerAddressModeClampToEdge
	}
	return vk.SamplerAddressModeRepeat
}

// convCmpFunc converts a driver.CmpFunc to a vk.CompareOp.
func convCmpFunc(cf driver.CmpFunc) vk.CompareOp {
	switch cf {
	case driver.CLess:
		return vk.CompareOpLess
	case driver.CEqual:
		return vk.CompareOpEqual
	case driver.CLessEqual:
		return vk.CompareOpLessOrEqual
	case driver.CGreater:
		return vk.CompareOpGreater
	case driver.CNotEqual:
		return vk.CompareOpNotEqual
	case driver.CGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	case driver.CAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpNever
}
