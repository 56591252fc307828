// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/gviegas/vkb/input"
	"github.com/gviegas/vkb/wsi"
)

func project(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	c := m.Mul4x1(p.Vec4(1))
	return c.Vec3().Mul(1 / c[3])
}

func TestProjection(t *testing.T) {
	const near, far = 0.5, 200
	m := Projection(near, far, 60, 1600, 900)

	p := project(m, mgl32.Vec3{0, 0, -near})
	assert.InDelta(t, 0, p[2], 1e-5)
	p = project(m, mgl32.Vec3{0, 0, -far})
	assert.InDelta(t, 1, p[2], 1e-4)
	p = project(m, mgl32.Vec3{0, 0, -10})
	assert.Greater(t, p[2], float32(0))
	assert.Less(t, p[2], float32(1))

	// Up in view space is down in clip space.
	p = project(m, mgl32.Vec3{0, 1, -10})
	assert.Less(t, p[1], float32(0))
	p = project(m, mgl32.Vec3{1, 0, -10})
	assert.Greater(t, p[0], float32(0))

	// The vertical field of view is preserved across
	// aspect ratios.
	h := float32(math.Tan(float64(mgl32.DegToRad(30))) * 10)
	for _, sz := range [][2]int{{1600, 900}, {400, 800}, {100, 100}} {
		m := Projection(near, far, 60, sz[0], sz[1])
		p = project(m, mgl32.Vec3{0, h, -10})
		assert.InDelta(t, -1, p[1], 1e-4)
	}

	// Zero sizes use a square aspect.
	assert.Equal(t, Projection(near, far, 60, 1, 1), Projection(near, far, 60, 0, 0))
}

func TestOrtho(t *testing.T) {
	m := Ortho(0, 200, 100, 0, -50, 50)
	for _, x := range [...]struct {
		in, want mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 0}, mgl32.Vec3{-1, -1, 0.5}},
		{mgl32.Vec3{200, 100, 0}, mgl32.Vec3{1, 1, 0.5}},
		{mgl32.Vec3{100, 50, 50}, mgl32.Vec3{0, 0, 0}},
		{mgl32.Vec3{100, 50, -50}, mgl32.Vec3{0, 0, 1}},
	} {
		p := project(m, x.in)
		assert.True(t, p.ApproxEqualThreshold(x.want, 1e-5), "%v: have %v, want %v", x.in, p, x.want)
	}
}

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.InDelta(t, 8, c.Position().Len(), 1e-5)
	assert.Greater(t, c.Position()[1], float32(0))

	// The target is in front of the camera.
	p := c.View().Mul4x1(c.Target.Vec4(1))
	assert.InDelta(t, -8, p[2], 1e-4)

	r := c.Rotation()
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, r.Col(3))
	v := c.View()
	for i := range 3 {
		assert.Equal(t, v.Col(i), r.Col(i))
	}
}

func TestCameraUpdate(t *testing.T) {
	c := NewCamera()
	in := input.New()
	yaw, pitch, dist := c.Yaw, c.Pitch, c.Distance

	// Motion without the button held does nothing.
	in.PointerDelta(100, 100)
	c.Update(in, 1.0/60)
	assert.Equal(t, yaw, c.Yaw)
	assert.Equal(t, pitch, c.Pitch)
	in.ClearTransitions()

	in.PointerButton(wsi.BtnLeft, true, 0, 0)
	in.PointerDelta(60, 0)
	in.PointerDelta(40, 0)
	c.Update(in, 1.0/60)
	assert.InDelta(t, yaw-100*c.Sensitivity, c.Yaw, 1e-6)
	assert.Equal(t, pitch, c.Pitch)
	in.ClearTransitions()

	in.PointerDelta(0, 1e6)
	c.Update(in, 1.0/60)
	assert.InDelta(t, maxPitch, c.Pitch, 1e-6)
	in.ClearTransitions()
	in.PointerDelta(0, -1e6)
	c.Update(in, 1.0/60)
	assert.InDelta(t, -maxPitch, c.Pitch, 1e-6)
	in.ClearTransitions()

	in.PointerWheel(0, 2)
	c.Update(in, 1.0/60)
	assert.InDelta(t, dist-2*c.ZoomSpeed, c.Distance, 1e-6)
	in.ClearTransitions()

	in.PointerWheel(0, -1000)
	c.Update(in, 1.0/60)
	assert.Equal(t, float32(maxDistance), c.Distance)
	in.ClearTransitions()
	in.PointerWheel(0, 1000)
	c.Update(in, 1.0/60)
	assert.Equal(t, float32(minDistance), c.Distance)
}
