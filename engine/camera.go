// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/vkb/input"
	"github.com/gviegas/vkb/wsi"
)

// clip converts from OpenGL clip space, which mgl32
// produces, to the driver's clip space: Y points down
// and depth is in the interval [0, 1].
var clip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Projection returns a perspective projection for a
// viewport of the given size.
// fovDeg is the vertical field of view in degrees.
func Projection(near, far, fovDeg float32, width, height int) mgl32.Mat4 {
	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}
	return clip.Mul4(mgl32.Perspective(mgl32.DegToRad(fovDeg), aspect, near, far))
}

// Ortho returns an orthographic projection.
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	return clip.Mul4(mgl32.Ortho(left, right, bottom, top, near, far))
}

const (
	minDistance = 0.5
	maxDistance = 100
	maxPitch    = math.Pi/2 - 0.01
)

// Camera is an orbital camera.
// It rotates around Target when the left mouse button
// is held and zooms with the mouse wheel.
type Camera struct {
	Target   mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Distance float32

	// Radians per pixel of mouse motion.
	Sensitivity float32
	// Distance units per wheel step.
	ZoomSpeed float32
}

// NewCamera returns a camera looking at the origin.
func NewCamera() *Camera {
	return &Camera{
		Yaw:         math.Pi / 4,
		Pitch:       math.Pi / 6,
		Distance:    8,
		Sensitivity: 0.005,
		ZoomSpeed:   0.5,
	}
}

// Update updates c from the input state of the current
// frame.
func (c *Camera) Update(in *input.State, dt float64) {
	if in.Pressed(wsi.KeyMouse1) {
		dx, dy := in.MouseDelta()
		c.Yaw -= float32(dx) * c.Sensitivity
		c.Pitch += float32(dy) * c.Sensitivity
		c.Pitch = mgl32.Clamp(c.Pitch, -maxPitch, maxPitch)
	}
	if _, wy := in.Wheel(); wy != 0 {
		c.Distance -= float32(wy) * c.ZoomSpeed
		c.Distance = mgl32.Clamp(c.Distance, minDistance, maxDistance)
	}
}

// Position returns the position of c in world space.
func (c *Camera) Position() mgl32.Vec3 {
	sy, cy := math.Sincos(float64(c.Yaw))
	sp, cp := math.Sincos(float64(c.Pitch))
	dir := mgl32.Vec3{float32(cp * sy), float32(sp), float32(cp * cy)}
	return c.Target.Add(dir.Mul(c.Distance))
}

// View returns the view matrix of c.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
}

// Rotation returns the view matrix of c without its
// translation.
func (c *Camera) Rotation() mgl32.Mat4 {
	v := c.View()
	v.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	return v
}
