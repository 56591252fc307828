// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package shader

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraLayout is the layout of camera data.
// It is defined as follows:
//
//	[0:16]  | view matrix
//	[16:32] | projection matrix
type CameraLayout [32]float32

// SetView sets the view matrix.
func (l *CameraLayout) SetView(m *mgl32.Mat4) { copy(l[:16], m[:]) }

// SetProj sets the projection matrix.
func (l *CameraLayout) SetProj(m *mgl32.Mat4) { copy(l[16:32], m[:]) }

// Bytes returns the layout's memory as a byte slice.
func (l *CameraLayout) Bytes() []byte { return asBytes(l[:]) }

// CoordsLayout is the layout of gizmo data.
// It is defined as follows:
//
//	[0:16]  | view matrix
//	[16:32] | projection matrix
//	[32:34] | screen-space translation
//	[34:36] | (unused)
type CoordsLayout [36]float32

// SetView sets the view matrix.
func (l *CoordsLayout) SetView(m *mgl32.Mat4) { copy(l[:16], m[:]) }

// SetProj sets the projection matrix.
func (l *CoordsLayout) SetProj(m *mgl32.Mat4) { copy(l[16:32], m[:]) }

// SetTranslate sets the screen-space translation.
func (l *CoordsLayout) SetTranslate(v mgl32.Vec2) { l[32], l[33] = v[0], v[1] }

// Bytes returns the layout's memory as a byte slice.
func (l *CoordsLayout) Bytes() []byte { return asBytes(l[:]) }

// StarLayout is the layout of a single star.
// It is defined as follows:
//
//	[0:4] | position
//	[4]   | intensity
//	[5:8] | (unused)
type StarLayout [8]float32

// SetPos sets the position.
func (l *StarLayout) SetPos(v mgl32.Vec4) { copy(l[:4], v[:]) }

// SetIntensity sets the intensity.
func (l *StarLayout) SetIntensity(i float32) { l[4] = i }

// StarBytes returns the memory of s as a byte slice.
func StarBytes(s []StarLayout) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// ModelLayout is the layout of per-instance push
// constants.
//
//	[0:16] | model matrix
type ModelLayout [16]float32

// SetModel sets the model matrix.
func (l *ModelLayout) SetModel(m *mgl32.Mat4) { copy(l[:], m[:]) }

// Bytes returns the layout's memory as a byte slice.
func (l *ModelLayout) Bytes() []byte { return asBytes(l[:]) }

func asBytes(f []float32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(f))), len(f)*4)
}
