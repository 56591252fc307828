// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/engine/internal/shader"
)

func newMatErr(s string) error { return errors.New("material: " + s) }

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// loadShader reads a SPIR-V module from path.
func loadShader(gpu driver.GPU, path string) (driver.ShaderCode, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "material: shader")
	}
	if len(b) < 4 || len(b)%4 != 0 || binary.LittleEndian.Uint32(b) != spirvMagic {
		return nil, errors.Newf("material: %s is not a SPIR-V module", path)
	}
	return gpu.NewShaderCode(b)
}

// MaterialParam describes the parameters of a Material.
type MaterialParam struct {
	// Paths of the SPIR-V modules. The entry point
	// of both is "main".
	VertShader string
	FragShader string

	Vertex   driver.VertexLayout
	Topology driver.Topology
	Raster   driver.RasterState
	DS       driver.DSState

	// Size of the uniform block, in bytes.
	// The block is visible to UniformStages.
	UniformSize   int
	UniformStages driver.Stage
	// Whether the uniform heap precedes the static
	// heap in the descriptor table.
	UniformFirst bool

	// Descriptors of the static heap, if any.
	// Static descriptors are set by the caller
	// through the Static method.
	Static []driver.Descriptor

	// Size of the push constant range, in bytes.
	// It is visible to the vertex stage.
	PushSize int
}

// Material is a graphics pipeline plus its uniform data.
//
// Uniform data is replicated once per swapchain image,
// with a host-visible staging buffer and a device-local
// buffer per copy. PrepareDraw records the transfer
// from one to the other, so it must be called before
// rendering begins.
type Material struct {
	ctx      *Context
	pl       driver.Pipeline
	table    driver.DescTable
	uniform  driver.DescHeap
	static   driver.DescHeap
	stg      [MaxImage]driver.Buffer
	dev      [MaxImage]driver.Buffer
	size     int
	stages   driver.Stage
	uniFirst bool
	push     int
}

// NewMaterial creates a new material compatible with
// the render targets of sf.
func NewMaterial(ctx *Context, sf *Surface, param *MaterialParam) (m *Material, err error) {
	switch {
	case param.UniformSize <= 0:
		return nil, newMatErr("non-positive uniform size")
	case shader.Span(param.UniformSize) > shader.MaxConstant:
		return nil, errors.Newf("material: uniform size %d exceeds %d", param.UniformSize, shader.MaxConstant)
	case param.PushSize < 0 || param.PushSize > shader.MaxPush:
		return nil, errors.Newf("material: push size must be in the interval [0, %d]", shader.MaxPush)
	}
	gpu := ctx.gpu
	m = &Material{
		ctx:      ctx,
		size:     param.UniformSize,
		stages:   param.UniformStages,
		uniFirst: param.UniformFirst,
		push:     param.PushSize,
	}
	if m.stages == 0 {
		m.stages = driver.SVertex
	}
	defer func() {
		if err != nil {
			m.Destroy()
			m = nil
		}
	}()

	if m.uniform, err = gpu.NewDescHeap(shader.UniformHeap(m.stages)); err != nil {
		return
	}
	if err = m.uniform.New(MaxImage); err != nil {
		return
	}
	span := int64(shader.Span(m.size))
	for i := range MaxImage {
		if m.stg[i], err = gpu.NewBuffer(span, true, driver.UCopySrc); err != nil {
			return
		}
		if m.dev[i], err = gpu.NewBuffer(span, false, driver.UShaderConst|driver.UCopyDst); err != nil {
			return
		}
		m.uniform.SetBuffer(i, shader.UniformNr, 0, []driver.Buffer{m.dev[i]}, []int64{0}, []int64{span})
	}
	heaps := []driver.DescHeap{m.uniform}
	if len(param.Static) > 0 {
		if m.static, err = gpu.NewDescHeap(param.Static); err != nil {
			return
		}
		if err = m.static.New(1); err != nil {
			return
		}
		if m.uniFirst {
			heaps = append(heaps, m.static)
		} else {
			heaps = []driver.DescHeap{m.static, m.uniform}
		}
	}
	var push []driver.PushRange
	if m.push > 0 {
		push = []driver.PushRange{{Stages: driver.SVertex, Size: m.push}}
	}
	if m.table, err = gpu.NewDescTable(heaps, push); err != nil {
		return
	}

	vert, err := loadShader(gpu, param.VertShader)
	if err != nil {
		return
	}
	defer vert.Destroy()
	frag, err := loadShader(gpu, param.FragShader)
	if err != nil {
		return
	}
	defer frag.Destroy()
	m.pl, err = gpu.NewPipeline(&driver.GraphState{
		VertFunc: driver.ShaderFunc{Code: vert, Name: "main"},
		FragFunc: driver.ShaderFunc{Code: frag, Name: "main"},
		Desc:     m.table,
		Vertex:   param.Vertex,
		Topology: param.Topology,
		Raster:   param.Raster,
		DS:       param.DS,
		ColorFmt: []driver.PixelFmt{sf.Format()},
		DSFmt:    sf.DepthFormat(),
		HasDS:    true,
	})
	if err != nil {
		err = errors.Wrap(err, "material: pipeline")
	}
	return
}

// PrepareDraw writes data into the staging copy of image
// img and records its transfer to the device copy.
// It must be called before rendering begins.
func (m *Material) PrepareDraw(cb driver.CmdBuffer, img int, data []byte) error {
	if img < 0 || img >= MaxImage {
		return errors.Newf("material: image index %d out of bounds", img)
	}
	if len(data) == 0 || len(data) > m.size {
		return errors.Newf("material: uniform data has %d bytes (max %d)", len(data), m.size)
	}
	copy(m.stg[img].Bytes(), data)
	cb.CopyBuffer(&driver.BufferCopy{
		From: m.stg[img],
		To:   m.dev[img],
		Size: int64(len(data)),
	})
	var sync driver.Sync
	if m.stages&driver.SVertex != 0 {
		sync |= driver.SVertexShading
	}
	if m.stages&driver.SFragment != 0 {
		sync |= driver.SFragmentShading
	}
	cb.Barrier([]driver.Barrier{{
		SyncBefore:   driver.SCopy,
		SyncAfter:    sync,
		AccessBefore: driver.ACopyWrite,
		AccessAfter:  driver.AShaderRead,
	}})
	return nil
}

// Bind sets the pipeline and the descriptor heaps of m,
// selecting the uniform copy of image img.
func (m *Material) Bind(cb driver.CmdBuffer, img int) {
	cb.SetPipeline(m.pl)
	switch {
	case m.static == nil:
		cb.SetDescTableGraph(m.table, 0, []int{img})
	case m.uniFirst:
		cb.SetDescTableGraph(m.table, 0, []int{img, 0})
	default:
		cb.SetDescTableGraph(m.table, 0, []int{0, img})
	}
}

// Push updates the push constants of m.
func (m *Material) Push(cb driver.CmdBuffer, data []byte) {
	cb.PushConstants(m.table, driver.SVertex, 0, data)
}

// Static returns the static descriptor heap, or nil if
// m has none.
func (m *Material) Static() driver.DescHeap { return m.static }

// Destroy destroys m.
func (m *Material) Destroy() {
	if m.pl != nil {
		m.pl.Destroy()
	}
	if m.table != nil {
		m.table.Destroy()
	}
	if m.uniform != nil {
		m.uniform.Destroy()
	}
	if m.static != nil {
		m.static.Destroy()
	}
	for i := range MaxImage {
		if m.stg[i] != nil {
			m.stg[i].Destroy()
		}
		if m.dev[i] != nil {
			m.dev[i].Destroy()
		}
	}
	*m = Material{}
}
