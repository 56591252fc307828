// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// pipeline implements driver.Pipeline.
type pipeline struct {
	d  *Driver
	pl vk.Pipeline
}

// NewPipeline creates a new graphics pipeline.
// Viewport and scissor are dynamic state.
func (d *Driver) NewPipeline(state *driver.GraphState) (driver.Pipeline, error) {
	switch {
	case state.VertFunc.Code == nil:
		return nil, errors.New("vk: graphics state has no vertex function")
	case state.Desc == nil:
		return nil, errors.New("vk: graphics state has no descriptor table")
	case len(state.ColorFmt) > d.lim.MaxColorTargets:
		return nil, errors.Newf("vk: %d color formats exceed the limit", len(state.ColorFmt))
	case len(state.Vertex.Input) > d.lim.MaxVertexIn:
		return nil, errors.Newf("vk: %d vertex inputs exceed the limit", len(state.Vertex.Input))
	}
	lw := state.Raster.LineWidth
	if lw == 0 {
		lw = 1
	}
	if lw != 1 && !d.lim.WideLines {
		return nil, errors.Newf("vk: line width %v not supported", lw)
	}

	key, err := compatKey(state.ColorFmt, state.DSFmt, state.HasDS)
	if err != nil {
		return nil, err
	}
	pass, err := d.renderPass(key)
	if err != nil {
		return nil, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: state.VertFunc.Code.(*shaderCode).mod,
		PName:  cstr(state.VertFunc.Name),
	}}
	if state.FragFunc.Code != nil {
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: state.FragFunc.Code.(*shaderCode).mod,
			PName:  cstr(state.FragFunc.Name),
		})
	}

	vertex := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if len(state.Vertex.Input) > 0 {
		attr := make([]vk.VertexInputAttributeDescription, len(state.Vertex.Input))
		for i, in := range state.Vertex.Input {
			attr[i] = vk.VertexInputAttributeDescription{
				Location: uint32(in.Nr),
				Binding:  0,
				Format:   convVertexFmt(in.Format),
				Offset:   uint32(in.Off),
			}
		}
		vertex.VertexBindingDescriptionCount = 1
		vertex.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    uint32(state.Vertex.Stride),
			InputRate: vk.VertexInputRateVertex,
		}}
		vertex.VertexAttributeDescriptionCount = uint32(len(attr))
		vertex.PVertexAttributeDescriptions = attr
	}

	blend := make([]vk.PipelineColorBlendAttachmentState, len(state.ColorFmt))
	for i := range blend {
		blend[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.False,
			ColorWriteMask: vk.ColorComponentFlags(0xf),
		}
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: &vertex,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: convTopology(state.Topology),
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: convFillMode(state.Raster.Fill),
			CullMode:    convCullMode(state.Raster.Cull),
			FrontFace:   convWinding(state.Raster.Clockwise),
			LineWidth:   lw,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blend)),
			PAttachments:    blend,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
		},
		Layout:     state.Desc.(*descTable).layout,
		RenderPass: pass,
		Subpass:    0,
	}
	if state.HasDS {
		info.PDepthStencilState = &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vkBool(state.DS.DepthTest),
			DepthWriteEnable: vkBool(state.DS.DepthWrite),
			DepthCompareOp:   convCmpFunc(state.DS.DepthCmp),
			Front:            vk.StencilOpState{FailOp: vk.StencilOpKeep, PassOp: vk.StencilOpKeep, CompareOp: vk.CompareOpAlways},
			Back:             vk.StencilOpState{FailOp: vk.StencilOpKeep, PassOp: vk.StencilOpKeep, CompareOp: vk.CompareOpAlways},
			MaxDepthBounds:   1,
		}
	}

	pls := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(d.dev, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pls)
	if err := checkResult(res); err != nil {
		return nil, errors.Wrap(err, "vk: creating graphics pipeline")
	}
	return &pipeline{d: d, pl: pls[0]}, nil
}

// Destroy destroys the pipeline.
func (p *pipeline) Destroy() {
	if p == nil || p.d == nil {
		return
	}
	vk.DestroyPipeline(p.d.dev, p.pl, nil)
	*p = pipeline{}
}

// convVertexFmt converts a driver.VertexFmt to a vk.Format.
func convVertexFmt(f driver.VertexFmt) vk.Format {
	switch f {
	case driver.Float32:
		return vk.FormatR32Sfloat
	case driver.Float32x2:
		return vk.FormatR32g32Sfloat
	case driver.Float32x3:
		return vk.FormatR32g32b32Sfloat
	case driver.Float32x4:
		return vk.FormatR32g32b32a32Sfloat
	case driver.UInt32:
		return vk.FormatR32Uint
	}
	return vk.FormatUndefined
}

// convTopology converts a driver.Topology to a
// vk.PrimitiveTopology.
func convTopology(t driver.Topology) vk.PrimitiveTopology {
	switch t {
	case driver.TPoint:
		return vk.PrimitiveTopologyPointList
	case driver.TLine:
		return vk.PrimitiveTopologyLineList
	case driver.TLnStrip:
		return vk.PrimitiveTopologyLineStrip
	case driver.TTriStrip:
		return vk.PrimitiveTopologyTriangleStrip
	}
	return vk.PrimitiveTopologyTriangleList
}

// convCullMode converts a driver.CullMode to a
// vk.CullModeFlags.
func convCullMode(m driver.CullMode) vk.CullModeFlags {
	switch m {
	case driver.CFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

// convFillMode converts a driver.FillMode to a
// vk.PolygonMode.
func convFillMode(m driver.FillMode) vk.PolygonMode {
	if m == driver.FLines {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

// convWinding returns the front face of a given winding.
func convWinding(clockwise bool) vk.FrontFace {
	if clockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}
