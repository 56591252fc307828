// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package main

import (
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/driver/drivertest"
	"github.com/gviegas/vkb/engine"
)

func TestParseConfigDefault(t *testing.T) {
	cfg, err := parseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfig(), cfg)
}

func TestParseConfigFlags(t *testing.T) {
	cfg, err := parseConfig([]string{
		"--validate",
		"--driver", "vulkan",
		"--width", "640",
		"--height=480",
		"--log-level", "debug",
		"--textures", "tex",
		"--shaders", "spv",
		"--stats=false",
	})
	require.NoError(t, err)
	assert.True(t, cfg.Validate)
	assert.Equal(t, "vulkan", cfg.Driver)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "tex", cfg.TextureDir)
	assert.Equal(t, "spv", cfg.ShaderDir)
	assert.False(t, cfg.Stats)
}

func TestParseConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vkb.toml")
	require.NoError(t, os.WriteFile(path, []byte("width = 300\nheight = 200\nstars = 10\n"), 0o644))

	cfg, err := parseConfig([]string{"-c", path, "--height", "100"})
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	// Flags take precedence over the file.
	assert.Equal(t, 100, cfg.Height)
	assert.Equal(t, 10, cfg.Stars)
}

func TestParseConfigErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--width", "0"},
		{"--log-level", "loud"},
		{"--config", filepath.Join(t.TempDir(), "missing.toml")},
		{"--no-such-flag"},
	} {
		_, err := parseConfig(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestExampleConfig(t *testing.T) {
	cfg, err := engine.LoadConfig(filepath.Join("..", "..", "res", "vkb.toml"))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Stars)
	assert.Equal(t, "vulkan", cfg.Driver)
}

// writeShaders writes placeholder SPIR-V modules for the
// scene's materials into a temporary directory.
func writeShaders(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, 0x07230203)
	for _, name := range []string{"sky", "module", "coords"} {
		for _, stage := range []string{"vert", "frag"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name+"."+stage+".spv"), code, 0o644))
		}
	}
	return dir
}

func TestSceneFollowsRecreation(t *testing.T) {
	drv := drivertest.NewDriver()
	ctx, err := engine.NewContext(drv)
	require.NoError(t, err)
	defer ctx.Close()
	win := drivertest.NewWindow(640, 480)
	sf, err := engine.NewSurface(ctx, win)
	require.NoError(t, err)
	defer sf.Destroy()
	rend, err := engine.NewRenderer(ctx, sf, nil)
	require.NoError(t, err)
	defer rend.Destroy()

	cfg := engine.DefaultConfig()
	cfg.ShaderDir = writeShaders(t)
	cfg.TextureDir = filepath.Join("..", "..", "res", "textures")
	scn, err := newScene(ctx, sf, rend, &cfg)
	require.NoError(t, err)
	defer scn.destroy()
	defer rend.WaitCompletion()

	cam := engine.NewCamera()
	drawables := scn.drawables()
	sc := sf.Swapchain().(*drivertest.Swapchain)
	screen := func(w, h int) engine.Coords {
		var c engine.Coords
		c.SetScreen(w, h)
		return c
	}
	check := func(w, h int) {
		t.Helper()
		want := screen(w, h)
		assert.Equal(t, want.Proj(), scn.coords.Proj())
		assert.Equal(t, want.Translate(), scn.coords.Translate())
	}

	ok, err := drawFrame(rend, drawables, cam)
	require.NoError(t, err)
	require.True(t, ok)
	check(640, 480)

	// Recreated on acquisition, so the frame is skipped
	// and Present never reports it.
	win.Resize(800, 600)
	sc.FailNext(driver.ErrSwapchain)
	ok, err = drawFrame(rend, drawables, cam)
	require.NoError(t, err)
	assert.False(t, ok)
	check(800, 600)
	ok, err = drawFrame(rend, drawables, cam)
	require.NoError(t, err)
	require.True(t, ok)
	check(800, 600)

	// Recreated on present.
	win.Resize(300, 200)
	sc.FailPresent(driver.ErrSwapchain)
	ok, err = drawFrame(rend, drawables, cam)
	require.NoError(t, err)
	require.True(t, ok)
	check(300, 200)

	assert.Equal(t, 2, rend.Recreations())
	assert.Empty(t, drv.GPU().Violations())
}

func TestStatsTitle(t *testing.T) {
	stats := engine.NewFrameStats(time.Second)
	t0 := time.Unix(1000, 0)
	for i := range 31 {
		stats.Tick(t0.Add(time.Duration(i) * time.Second / 30))
	}
	assert.Equal(t, "vkb | 30.0 fps 33.33 ms", statsTitle("vkb", stats))
}
