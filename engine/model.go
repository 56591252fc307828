// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
)

// Vertex is an interleaved vertex.
type Vertex struct {
	Pos [4]float32
	Col [4]float32
	UV  [2]float32
}

// VertexLayout describes Vertex.
// Inputs are numbered in field order.
var VertexLayout = driver.VertexLayout{
	Stride: int(unsafe.Sizeof(Vertex{})),
	Input: []driver.VertexIn{
		{Format: driver.Float32x4, Off: int(unsafe.Offsetof(Vertex{}.Pos)), Nr: 0},
		{Format: driver.Float32x4, Off: int(unsafe.Offsetof(Vertex{}.Col)), Nr: 1},
		{Format: driver.Float32x2, Off: int(unsafe.Offsetof(Vertex{}.UV)), Nr: 2},
	},
}

// vertexPosLayout describes Vertex with only its
// position as input.
var vertexPosLayout = driver.VertexLayout{
	Stride: VertexLayout.Stride,
	Input:  VertexLayout.Input[:1],
}

// PosLayout describes vertices that only have a position.
var PosLayout = driver.VertexLayout{
	Stride: 16,
	Input:  []driver.VertexIn{{Format: driver.Float32x4}},
}

// Model is indexed geometry stored in device-local
// memory. Indices are 16-bit.
type Model struct {
	vert driver.Buffer
	idx  driver.Buffer
	n    int
}

// NewModel uploads vertices and indices to the GPU.
func NewModel(ctx *Context, vertices []Vertex, indices []uint16) (*Model, error) {
	if len(vertices) == 0 {
		return nil, errors.New("model: no vertices")
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(unsafe.Sizeof(vertices[0])))
	return newModel(ctx, b, len(vertices), indices)
}

// newModel uploads raw vertex data to the GPU.
// nvert is used to validate the indices.
func newModel(ctx *Context, vertices []byte, nvert int, indices []uint16) (m *Model, err error) {
	if len(indices) == 0 {
		return nil, errors.New("model: no indices")
	}
	if nvert > math.MaxUint16+1 {
		return nil, errors.Newf("model: %d vertices cannot be indexed with 16 bits", nvert)
	}
	for _, i := range indices {
		if int(i) >= nvert {
			return nil, errors.Newf("model: index %d out of bounds", i)
		}
	}
	gpu := ctx.gpu
	m = &Model{n: len(indices)}
	defer func() {
		if err != nil {
			m.Destroy()
			m = nil
		}
	}()
	if m.vert, err = gpu.NewBuffer(int64(len(vertices)), false, driver.UVertexData|driver.UCopyDst); err != nil {
		return
	}
	ib := unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*2)
	if m.idx, err = gpu.NewBuffer(int64(len(ib)), false, driver.UIndexData|driver.UCopyDst); err != nil {
		return
	}
	if err = ctx.Upload(m.vert, 0, vertices); err != nil {
		return
	}
	err = ctx.Upload(m.idx, 0, ib)
	return
}

// IndexCount returns the number of indices of m.
func (m *Model) IndexCount() int { return m.n }

// Bind sets the vertex and index buffers of m.
func (m *Model) Bind(cb driver.CmdBuffer) {
	cb.SetVertexBuf(0, []driver.Buffer{m.vert}, []int64{0})
	cb.SetIndexBuf(driver.Index16, m.idx, 0)
}

// Destroy destroys m.
func (m *Model) Destroy() {
	if m.vert != nil {
		m.vert.Destroy()
	}
	if m.idx != nil {
		m.idx.Destroy()
	}
	*m = Model{}
}

// CubeVertices are the vertices of a cube with side 2,
// centered at the origin. Each face has its own four
// vertices so it can be textured independently.
var CubeVertices = [24]Vertex{
	// Upper face.
	{[4]float32{-1, 1, 1, 1}, [4]float32{1, 1, 1, 1}, [2]float32{0, 0}},
	{[4]float32{1, 1, 1, 1}, [4]float32{0, 1, 0, 1}, [2]float32{1, 0}},
	{[4]float32{-1, -1, 1, 1}, [4]float32{1, 0, 0, 1}, [2]float32{0, 1}},
	{[4]float32{1, -1, 1, 1}, [4]float32{0, 0, 1, 1}, [2]float32{1, 1}},
	// Bottom face.
	{[4]float32{-1, -1, -1, 1}, [4]float32{0, 1, 0, 1}, [2]float32{0, 0}},
	{[4]float32{1, -1, -1, 1}, [4]float32{1, 1, 1, 1}, [2]float32{1, 0}},
	{[4]float32{-1, 1, -1, 1}, [4]float32{0, 0, 1, 1}, [2]float32{0, 1}},
	{[4]float32{1, 1, -1, 1}, [4]float32{1, 0, 0, 1}, [2]float32{1, 1}},
	// Front face.
	{[4]float32{-1, -1, 1, 1}, [4]float32{1, 0, 0, 1}, [2]float32{0, 0}},
	{[4]float32{1, -1, 1, 1}, [4]float32{0, 0, 1, 1}, [2]float32{1, 0}},
	{[4]float32{-1, -1, -1, 1}, [4]float32{0, 1, 0, 1}, [2]float32{0, 1}},
	{[4]float32{1, -1, -1, 1}, [4]float32{1, 1, 1, 1}, [2]float32{1, 1}},
	// Back face.
	{[4]float32{-1, 1, -1, 1}, [4]float32{0, 0, 1, 1}, [2]float32{0, 0}},
	{[4]float32{1, 1, -1, 1}, [4]float32{1, 0, 0, 1}, [2]float32{1, 0}},
	{[4]float32{-1, 1, 1, 1}, [4]float32{1, 1, 1, 1}, [2]float32{0, 1}},
	{[4]float32{1, 1, 1, 1}, [4]float32{0, 1, 0, 1}, [2]float32{1, 1}},
	// Left face.
	{[4]float32{-1, 1, 1, 1}, [4]float32{1, 1, 1, 1}, [2]float32{0, 0}},
	{[4]float32{-1, -1, 1, 1}, [4]float32{1, 0, 0, 1}, [2]float32{1, 0}},
	{[4]float32{-1, 1, -1, 1}, [4]float32{0, 0, 1, 1}, [2]float32{0, 1}},
	{[4]float32{-1, -1, -1, 1}, [4]float32{0, 1, 0, 1}, [2]float32{1, 1}},
	// Right face.
	{[4]float32{1, -1, 1, 1}, [4]float32{0, 0, 1, 1}, [2]float32{0, 0}},
	{[4]float32{1, 1, 1, 1}, [4]float32{0, 1, 0, 1}, [2]float32{1, 0}},
	{[4]float32{1, -1, -1, 1}, [4]float32{1, 1, 1, 1}, [2]float32{0, 1}},
	{[4]float32{1, 1, -1, 1}, [4]float32{1, 0, 0, 1}, [2]float32{1, 1}},
}

// CubeIndices index CubeVertices as a triangle list.
var CubeIndices = [36]uint16{
	0, 2, 1, 2, 3, 1,
	4, 6, 5, 6, 7, 5,
	8, 10, 9, 10, 11, 9,
	12, 14, 13, 14, 15, 13,
	16, 18, 17, 18, 19, 17,
	20, 22, 21, 22, 23, 21,
}

// NewSphere returns the vertices and indices of a unit
// UV sphere centered at the origin, as a triangle list.
// Triangles are counter-clockwise when seen from outside.
// rings and sectors must be at least 2 and 3,
// respectively.
func NewSphere(rings, sectors int) ([]Vertex, []uint16) {
	rings = max(rings, 2)
	sectors = max(sectors, 3)
	vs := make([]Vertex, 0, (rings+1)*(sectors+1))
	for r := 0; r <= rings; r++ {
		v := float64(r) / float64(rings)
		sp, cp := math.Sincos(math.Pi * v)
		for s := 0; s <= sectors; s++ {
			u := float64(s) / float64(sectors)
			st, ct := math.Sincos(2 * math.Pi * u)
			x, y, z := float32(sp*ct), float32(cp), float32(sp*st)
			vs = append(vs, Vertex{
				Pos: [4]float32{x, y, z, 1},
				Col: [4]float32{1, 1, 1, 1},
				UV:  [2]float32{float32(u), float32(v)},
			})
		}
	}
	is := make([]uint16, 0, rings*sectors*6)
	for r := range rings {
		for s := range sectors {
			a := uint16(r*(sectors+1) + s)
			b := a + uint16(sectors+1)
			is = append(is, a, a+1, b, a+1, b+1, b)
		}
	}
	return vs, is
}
