// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/engine/internal/shader"
)

const moduleShader = "module"

// Module draws instances of a textured model.
// The model matrix of each instance is given as push
// constants, so there is one draw call per instance.
type Module struct {
	mat    *Material
	model  *Model
	layout shader.CameraLayout
	push   shader.ModelLayout

	// Instances holds the model matrix of each
	// instance to draw.
	Instances []mgl32.Mat4
}

// NewModule creates a new module that draws model with
// tex applied.
// model and tex are not owned by the module.
func NewModule(ctx *Context, sf *Surface, shaderDir string, model *Model, tex *Texture) (*Module, error) {
	if model == nil || tex == nil {
		return nil, errors.New("module: nil model or texture")
	}
	vert, frag := shaderPaths(shaderDir, moduleShader)
	m := &Module{model: model}
	mat, err := NewMaterial(ctx, sf, &MaterialParam{
		VertShader:    vert,
		FragShader:    frag,
		Vertex:        VertexLayout,
		Topology:      driver.TTriangle,
		Raster:        driver.RasterState{Cull: driver.CBack},
		DS:            driver.DSState{DepthTest: true, DepthWrite: true, DepthCmp: driver.CLess},
		UniformSize:   len(m.layout.Bytes()),
		UniformStages: driver.SVertex,
		Static:        shader.TextureHeap(),
		PushSize:      len(m.push.Bytes()),
	})
	if err != nil {
		return nil, err
	}
	mat.Static().SetImage(0, shader.TextureNr, 0, []driver.ImageView{tex.View()})
	mat.Static().SetSampler(0, shader.SamplerNr, 0, []driver.Sampler{tex.Sampler()})
	m.mat = mat
	return m, nil
}

// PrepareDraw implements Drawable.
func (m *Module) PrepareDraw(cb driver.CmdBuffer, img int, cam *Camera, proj *mgl32.Mat4) error {
	view := cam.View()
	m.layout.SetView(&view)
	m.layout.SetProj(proj)
	return m.mat.PrepareDraw(cb, img, m.layout.Bytes())
}

// Draw implements Drawable.
func (m *Module) Draw(cb driver.CmdBuffer, img int) {
	if len(m.Instances) == 0 {
		return
	}
	m.mat.Bind(cb, img)
	m.model.Bind(cb)
	n := m.model.IndexCount()
	for i := range m.Instances {
		m.push.SetModel(&m.Instances[i])
		m.mat.Push(cb, m.push.Bytes())
		cb.DrawIndexed(n, 1, 0, 0, 0)
	}
}

// Destroy destroys m.
// The model and texture are not destroyed.
func (m *Module) Destroy() {
	if m.mat != nil {
		m.mat.Destroy()
	}
	*m = Module{}
}

// ModuleInstance returns the model matrix of an instance
// scaled by s and then translated by t in the scaled
// space.
func ModuleInstance(s float32, t mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Scale3D(s, s, s).Mul4(mgl32.Translate3D(t[0], t[1], t[2]))
}
