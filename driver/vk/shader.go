// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// shaderCode implements driver.ShaderCode.
type shaderCode struct {
	d   *Driver
	mod vk.ShaderModule
}

// NewShaderCode creates a new shader code from SPIR-V
// binary data.
func (d *Driver) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Newf("vk: invalid SPIR-V size %d", len(data))
	}
	code := spirvWords(data)
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    code,
	}
	var mod vk.ShaderModule
	if err := checkResult(vk.CreateShaderModule(d.dev, &info, nil, &mod)); err != nil {
		return nil, errors.Wrap(err, "vk: creating shader module")
	}
	return &shaderCode{d: d, mod: mod}, nil
}

// spirvWords copies data into a word-aligned slice.
// Words are kept in host byte order.
func spirvWords(data []byte) []uint32 {
	code := make([]uint32, len(data)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&code[0])), len(code)*4), data)
	return code
}

// Destroy destroys the shader code.
func (s *shaderCode) Destroy() {
	if s == nil || s.d == nil {
		return
	}
	vk.DestroyShaderModule(s.d.dev, s.mod, nil)
	*s = shaderCode{}
}
