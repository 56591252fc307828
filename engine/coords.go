// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/engine/internal/shader"
)

const (
	coordsShader = "coords"
	coordsLength = 50
	coordsMargin = 75
	coordsWidth  = 3
)

var (
	coordsVertices = [4]mgl32.Vec4{
		{0, 0, 0, 1},
		{coordsLength, 0, 0, 1},
		{0, coordsLength, 0, 1},
		{0, 0, coordsLength, 1},
	}
	coordsIndices = [6]uint16{0, 1, 0, 2, 0, 3}
)

// Coords draws the coordinate axes in a corner of the
// screen, rotated with the camera.
// It uses its own orthographic projection, so the proj
// argument of PrepareDraw is ignored.
type Coords struct {
	mat    *Material
	model  *Model
	layout shader.CoordsLayout
	proj   mgl32.Mat4
	trans  mgl32.Vec2
}

// NewCoords creates a new gizmo for sf.
// Lines are 3 pixels wide if the GPU supports wide lines.
func NewCoords(ctx *Context, sf *Surface, shaderDir string) (*Coords, error) {
	c := new(Coords)
	width := float32(coordsWidth)
	if !ctx.gpu.Limits().WideLines {
		width = 1
	}
	vert, frag := shaderPaths(shaderDir, coordsShader)
	mat, err := NewMaterial(ctx, sf, &MaterialParam{
		VertShader:    vert,
		FragShader:    frag,
		Vertex:        PosLayout,
		Topology:      driver.TLine,
		Raster:        driver.RasterState{LineWidth: width},
		UniformSize:   len(c.layout.Bytes()),
		UniformStages: driver.SVertex,
	})
	if err != nil {
		return nil, err
	}
	c.mat = mat
	vb := unsafe.Slice((*byte)(unsafe.Pointer(&coordsVertices[0])), len(coordsVertices)*16)
	if c.model, err = newModel(ctx, vb, len(coordsVertices), coordsIndices[:]); err != nil {
		mat.Destroy()
		return nil, err
	}
	c.SetScreen(sf.Width(), sf.Height())
	return c, nil
}

// SetScreen updates the projection and the placement of
// the gizmo for a screen of the given size.
// It must be called whenever the surface is recreated.
func (c *Coords) SetScreen(width, height int) {
	w, h := float32(max(width, 1)), float32(max(height, 1))
	c.proj = Ortho(0, w, h, 0, -coordsLength, coordsLength)
	c.trans = mgl32.Vec2{coordsMargin * 2 / w, (h - coordsMargin) * 2 / h}
}

// Proj returns the gizmo's projection.
func (c *Coords) Proj() mgl32.Mat4 { return c.proj }

// Translate returns the gizmo's translation in
// normalized device coordinates.
func (c *Coords) Translate() mgl32.Vec2 { return c.trans }

// PrepareDraw implements Drawable.
func (c *Coords) PrepareDraw(cb driver.CmdBuffer, img int, cam *Camera, _ *mgl32.Mat4) error {
	view := cam.Rotation()
	c.layout.SetView(&view)
	c.layout.SetProj(&c.proj)
	c.layout.SetTranslate(c.trans)
	return c.mat.PrepareDraw(cb, img, c.layout.Bytes())
}

// Draw implements Drawable.
// Each axis is drawn separately.
func (c *Coords) Draw(cb driver.CmdBuffer, img int) {
	c.mat.Bind(cb, img)
	c.model.Bind(cb)
	for i := range 3 {
		cb.DrawIndexed(2, 1, i*2, 0, 0)
	}
}

// Destroy destroys c.
func (c *Coords) Destroy() {
	if c.mat != nil {
		c.mat.Destroy()
	}
	if c.model != nil {
		c.model.Destroy()
	}
	*c = Coords{}
}
