// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/vkb/driver"
)

// Drawable is an object that records its own uniform
// uploads and draw commands.
//
// For a given frame, PrepareDraw must be called on every
// Drawable before Renderer.BeginDraw, and Draw after it.
// img is the index of the acquired swapchain image.
type Drawable interface {
	PrepareDraw(cb driver.CmdBuffer, img int, cam *Camera, proj *mgl32.Mat4) error
	Draw(cb driver.CmdBuffer, img int)
	Destroy()
}

var (
	_ Drawable = (*Skybox)(nil)
	_ Drawable = (*Module)(nil)
	_ Drawable = (*Coords)(nil)
)

// shaderPaths returns the paths of the vertex and
// fragment shaders named name in dir.
func shaderPaths(dir, name string) (vert, frag string) {
	return filepath.Join(dir, name+".vert.spv"), filepath.Join(dir, name+".frag.spv")
}
