// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/engine/internal/shader"
)

const (
	skyRings   = 32
	skySectors = 64
	skyShader  = "sky"
)

// SkyParam describes the parameters of a Skybox.
type SkyParam struct {
	ShaderDir string
	// Number of stars, at most MaxStar.
	Stars int
	Seed  uint64
}

// Skybox is a sphere surrounding the camera with stars
// scattered on it.
// Star data is uploaded once and bound as static data.
type Skybox struct {
	mat    *Material
	model  *Model
	stars  driver.Buffer
	layout shader.CameraLayout
}

// NewSkybox creates a new skybox for sf.
func NewSkybox(ctx *Context, sf *Surface, param *SkyParam) (s *Skybox, err error) {
	if param.Stars < 0 || param.Stars > MaxStar {
		return nil, errors.Newf("sky: star count %d out of bounds", param.Stars)
	}
	s = new(Skybox)
	defer func() {
		if err != nil {
			s.Destroy()
			s = nil
		}
	}()
	vert, frag := shaderPaths(param.ShaderDir, skyShader)
	s.mat, err = NewMaterial(ctx, sf, &MaterialParam{
		VertShader: vert,
		FragShader: frag,
		Vertex:     vertexPosLayout,
		Topology:   driver.TTriangle,
		Raster:     driver.RasterState{Cull: driver.CFront},
		// The sky is drawn first and stays behind
		// everything else.
		DS:            driver.DSState{DepthTest: true, DepthCmp: driver.CLessEqual},
		UniformSize:   len(s.layout.Bytes()),
		UniformStages: driver.SVertex,
		UniformFirst:  true,
		Static:        shader.StarHeap(),
	})
	if err != nil {
		return
	}
	vs, is := NewSphere(skyRings, skySectors)
	if s.model, err = NewModel(ctx, vs, is); err != nil {
		return
	}
	stars := NewStars(param.Stars, param.Seed)
	size := int64(shader.StarSpan * shader.BlockSize)
	if s.stars, err = ctx.gpu.NewBuffer(size, false, driver.UShaderConst|driver.UCopyDst); err != nil {
		return
	}
	if b := shader.StarBytes(stars); len(b) > 0 {
		if err = ctx.Upload(s.stars, 0, b); err != nil {
			return
		}
	}
	s.mat.Static().SetBuffer(0, shader.StarNr, 0, []driver.Buffer{s.stars}, []int64{0}, []int64{size})
	return
}

// NewStars returns n stars on the unit sphere.
// The same seed produces the same stars.
// Unused elements up to MaxStar have zero intensity.
func NewStars(n int, seed uint64) []shader.StarLayout {
	rnd := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	stars := make([]shader.StarLayout, MaxStar)
	for i := range n {
		var v mgl32.Vec3
		// Rejection sampling gives a uniform
		// distribution of directions.
		for {
			v = mgl32.Vec3{
				rnd.Float32()*2 - 1,
				rnd.Float32()*2 - 1,
				rnd.Float32()*2 - 1,
			}
			if l := v.Len(); l > 1e-3 && l <= 1 {
				break
			}
		}
		stars[i].SetPos(v.Normalize().Vec4(1))
		stars[i].SetIntensity(0.2 + 0.8*rnd.Float32())
	}
	return stars
}

// PrepareDraw implements Drawable.
// The camera's translation is discarded so the sky
// stays centered on it.
func (s *Skybox) PrepareDraw(cb driver.CmdBuffer, img int, cam *Camera, proj *mgl32.Mat4) error {
	view := cam.Rotation()
	s.layout.SetView(&view)
	s.layout.SetProj(proj)
	return s.mat.PrepareDraw(cb, img, s.layout.Bytes())
}

// Draw implements Drawable.
func (s *Skybox) Draw(cb driver.CmdBuffer, img int) {
	s.mat.Bind(cb, img)
	s.model.Bind(cb)
	cb.DrawIndexed(s.model.IndexCount(), 1, 0, 0, 0)
}

// Destroy destroys s.
func (s *Skybox) Destroy() {
	if s.mat != nil {
		s.mat.Destroy()
	}
	if s.model != nil {
		s.model.Destroy()
	}
	if s.stars != nil {
		s.stars.Destroy()
	}
	*s = Skybox{}
}
