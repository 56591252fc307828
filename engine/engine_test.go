// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/driver/drivertest"
)

// newTestContext creates a Context on a private
// drivertest GPU.
func newTestContext(t *testing.T) (*Context, *drivertest.GPU) {
	t.Helper()
	drv := drivertest.NewDriver()
	ctx, err := NewContext(drv)
	require.NoError(t, err)
	return ctx, drv.GPU()
}

// newTestSurface creates a Surface for a fake window of
// the given size.
func newTestSurface(t *testing.T, ctx *Context, w, h int) (*Surface, *drivertest.Window) {
	t.Helper()
	win := drivertest.NewWindow(w, h)
	sf, err := NewSurface(ctx, win)
	require.NoError(t, err)
	return sf, win
}

// writeShaders writes placeholder SPIR-V modules for
// every material into a temporary directory.
func writeShaders(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, spirvMagic)
	for _, name := range []string{skyShader, moduleShader, coordsShader} {
		vert, frag := shaderPaths(dir, name)
		require.NoError(t, os.WriteFile(vert, code, 0o644))
		require.NoError(t, os.WriteFile(frag, code, 0o644))
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(0.1), cfg.Near)
	assert.Equal(t, float32(1000), cfg.Far)
	assert.Equal(t, float32(70), cfg.FOV)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.WaitTimeout))
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.Stats)
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`
title = "test"
width = 640
height = 480
driver = "vulkan"
validate = true
wait_timeout = "250ms"
fov = 60.0
stars = 16
seed = 42
shader_dir = "shaders"
log_level = "debug"
stats = false
`))
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Title)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, "vulkan", cfg.Driver)
	assert.True(t, cfg.Validate)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.WaitTimeout))
	assert.Equal(t, float32(60), cfg.FOV)
	assert.Equal(t, 16, cfg.Stars)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, "shaders", cfg.ShaderDir)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.Stats)
	// Unset keys keep their defaults.
	assert.Equal(t, float32(1000), cfg.Far)
	assert.Equal(t, dflTexture, cfg.Texture)
}

func TestDecodeConfigErrors(t *testing.T) {
	for _, doc := range []string{
		`unknown_key = 1`,
		`width = -1`,
		`wait_timeout = "soon"`,
		`near = 10.0
far = 1.0`,
		`fov = 180.0`,
		`stars = 100000`,
		`width = `,
	} {
		_, err := DecodeConfig(strings.NewReader(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vkb.toml")
	require.NoError(t, os.WriteFile(path, []byte("height = 100\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Height)
	assert.Equal(t, dflWidth, cfg.Width)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestOpenContext(t *testing.T) {
	ctx, err := OpenContext("DRIVERTEST")
	require.NoError(t, err)
	assert.Equal(t, drivertest.Name, ctx.Driver().Name())
	assert.Equal(t, dflWaitTimeout, ctx.Timeout())
	ctx.Close()

	_, err = OpenContext("no such driver")
	assert.Error(t, err)
}

func TestContextUpload(t *testing.T) {
	ctx, g := newTestContext(t)
	defer ctx.Close()

	vis, err := g.NewBuffer(16, true, driver.UGeneric)
	require.NoError(t, err)
	defer vis.Destroy()
	require.NoError(t, ctx.Upload(vis, 4, []byte{1, 2, 3}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 0}, vis.Bytes()[:8])
	assert.Empty(t, g.Submits())

	dev, err := g.NewBuffer(64, false, driver.UCopyDst)
	require.NoError(t, err)
	defer dev.Destroy()
	require.NoError(t, ctx.Upload(dev, 0, make([]byte, 64)))
	require.Len(t, g.Submits(), 1)
	cp := g.CallsOf("cmd.CopyBuffer")
	require.Len(t, cp, 1)
	assert.Equal(t, []int{dev.(*drivertest.Buffer).ID(), 64}, cp[0].Arg[1:])

	assert.Error(t, ctx.Upload(dev, 32, make([]byte, 64)))
	assert.Error(t, ctx.Upload(dev, -1, nil))
	assert.Empty(t, g.Violations())
}

func TestContextOnce(t *testing.T) {
	ctx, g := newTestContext(t)
	defer ctx.Close()

	for range 3 {
		require.NoError(t, ctx.Once(func(driver.CmdBuffer) {}))
	}
	assert.Len(t, g.Submits(), 3)
	assert.Empty(t, g.Violations())

	g.Hang = true
	ctx.SetTimeout(time.Millisecond)
	err := ctx.Once(func(driver.CmdBuffer) {})
	assert.ErrorIs(t, err, driver.ErrTimeout)
}

func TestContextClose(t *testing.T) {
	ctx, g := newTestContext(t)
	assert.NotZero(t, g.Live())
	ctx.Close()
	assert.Zero(t, g.Live())
	assert.Nil(t, ctx.GPU())
	// Closing twice has no effect.
	ctx.Close()
	assert.Empty(t, g.Violations())
}
