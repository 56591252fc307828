// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Command vkb renders a starry sky, a few textured cubes
// and an axis gizmo that can be orbited with the mouse.
//
// Usage:
//
//	vkb [flags]
//
// Left mouse drag rotates the camera and the wheel zooms.
// Escape quits.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/pflag"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/driver/vk"
	"github.com/gviegas/vkb/engine"
	"github.com/gviegas/vkb/input"
	"github.com/gviegas/vkb/wsi"
)

//go:generate glslc -o ../../res/shaders/sky.vert.spv ../../res/shaders/sky.vert
//go:generate glslc -o ../../res/shaders/sky.frag.spv ../../res/shaders/sky.frag
//go:generate glslc -o ../../res/shaders/module.vert.spv ../../res/shaders/module.vert
//go:generate glslc -o ../../res/shaders/module.frag.spv ../../res/shaders/module.frag
//go:generate glslc -o ../../res/shaders/coords.vert.spv ../../res/shaders/coords.vert
//go:generate glslc -o ../../res/shaders/coords.frag.spv ../../res/shaders/coords.frag

// The window system requires the main thread.
func init() { runtime.LockOSThread() }

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "vkb: %+v\n", err)
		os.Exit(1)
	}
}

// parseConfig builds the configuration from the optional
// TOML file and the command line.
// Flags that are set explicitly take precedence.
func parseConfig(args []string) (engine.Config, error) {
	fs := pflag.NewFlagSet("vkb", pflag.ContinueOnError)
	var (
		path     = fs.StringP("config", "c", "", "TOML configuration file")
		validate = fs.Bool("validate", false, "enable driver validation")
		drvName  = fs.String("driver", "", "name of the driver to use")
		width    = fs.Int("width", 0, "window width")
		height   = fs.Int("height", 0, "window height")
		level    = fs.String("log-level", "", "minimum log level (debug, info, warn, error)")
		texDir   = fs.String("textures", "", "texture directory")
		shDir    = fs.String("shaders", "", "compiled shader directory")
		stats    = fs.Bool("stats", true, "show frame statistics in the window title")
	)
	if err := fs.Parse(args); err != nil {
		return engine.Config{}, err
	}

	cfg := engine.DefaultConfig()
	if *path != "" {
		var err error
		if cfg, err = engine.LoadConfig(*path); err != nil {
			return engine.Config{}, err
		}
	}
	if fs.Changed("validate") {
		cfg.Validate = *validate
	}
	if fs.Changed("driver") {
		cfg.Driver = *drvName
	}
	if fs.Changed("width") {
		cfg.Width = *width
	}
	if fs.Changed("height") {
		cfg.Height = *height
	}
	if fs.Changed("log-level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(*level)); err != nil {
			return engine.Config{}, errors.Wrap(err, "--log-level")
		}
	}
	if fs.Changed("textures") {
		cfg.TextureDir = *texDir
	}
	if fs.Changed("shaders") {
		cfg.ShaderDir = *shDir
	}
	if fs.Changed("stats") {
		cfg.Stats = *stats
	}
	return cfg, cfg.Validate()
}

// The scene, in creation order.
type scene struct {
	sky    *engine.Skybox
	cube   *engine.Model
	tex    *engine.Texture
	mod    *engine.Module
	coords *engine.Coords
}

// newScene creates the scene for sf.
// The gizmo follows every recreation of sf by rend.
func newScene(ctx *engine.Context, sf *engine.Surface, rend *engine.Renderer, cfg *engine.Config) (s *scene, err error) {
	s = new(scene)
	defer func() {
		if err != nil {
			s.destroy()
			s = nil
		}
	}()
	s.sky, err = engine.NewSkybox(ctx, sf, &engine.SkyParam{
		ShaderDir: cfg.ShaderDir,
		Stars:     cfg.Stars,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return
	}
	verts, idx := engine.CubeVertices, engine.CubeIndices
	if s.cube, err = engine.NewModel(ctx, verts[:], idx[:]); err != nil {
		return
	}
	if s.tex, err = engine.LoadTexture(ctx, filepath.Join(cfg.TextureDir, cfg.Texture)); err != nil {
		return
	}
	if s.mod, err = engine.NewModule(ctx, sf, cfg.ShaderDir, s.cube, s.tex); err != nil {
		return
	}
	for _, t := range [...]mgl32.Vec3{{0, 0, 0}, {0, 0, 2}, {0, 0, 4}, {0, 2, 0}, {2, 0, 0}} {
		s.mod.Instances = append(s.mod.Instances, engine.ModuleInstance(0.5, t))
	}
	if s.coords, err = engine.NewCoords(ctx, sf, cfg.ShaderDir); err != nil {
		return
	}
	s.coords.SetScreen(sf.Width(), sf.Height())
	rend.OnRecreate(s.coords.SetScreen)
	return
}

func (s *scene) drawables() []engine.Drawable {
	return []engine.Drawable{s.sky, s.mod, s.coords}
}

func (s *scene) destroy() {
	if s.coords != nil {
		s.coords.Destroy()
	}
	if s.mod != nil {
		s.mod.Destroy()
	}
	if s.tex != nil {
		s.tex.Destroy()
	}
	if s.cube != nil {
		s.cube.Destroy()
	}
	if s.sky != nil {
		s.sky.Destroy()
	}
}

func run(args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	driver.SetLogger(log)
	engine.SetLogger(log)
	vk.SetValidation(cfg.Validate)

	wsi.SetAppName(cfg.Title)
	if err := wsi.Init(); err != nil {
		return err
	}
	defer wsi.Terminate()

	win, err := wsi.NewWindow(cfg.Width, cfg.Height, cfg.Title)
	if err != nil {
		return err
	}
	in := input.New()
	wsi.SetKeyboardHandler(in)
	wsi.SetPointerHandler(in)
	if err := win.Map(); err != nil {
		return err
	}

	ctx, err := engine.OpenContext(cfg.Driver)
	if err != nil {
		return err
	}
	defer ctx.Close()
	ctx.SetTimeout(time.Duration(cfg.WaitTimeout))

	sf, err := engine.NewSurface(ctx, win)
	if err != nil {
		return err
	}
	defer sf.Destroy()

	rend, err := engine.NewRenderer(ctx, sf, &cfg)
	if err != nil {
		return err
	}
	defer rend.Destroy()

	scn, err := newScene(ctx, sf, rend, &cfg)
	if err != nil {
		return err
	}
	defer scn.destroy()
	defer rend.WaitCompletion()

	log.Info("running", "driver", ctx.Driver().Name(), "width", sf.Width(), "height", sf.Height())
	return loop(rend, scn, in, win, &cfg, log)
}

func loop(rend *engine.Renderer, scn *scene, in *input.State, win wsi.Window, cfg *engine.Config, log *slog.Logger) error {
	cam := engine.NewCamera()
	drawables := scn.drawables()
	stats := engine.NewFrameStats(time.Second)
	last := time.Now()
	for {
		in.ClearTransitions()
		wsi.Dispatch()
		if win.Closed() || in.JustPressed(wsi.KeyEsc) {
			return nil
		}
		now := time.Now()
		cam.Update(in, now.Sub(last).Seconds())
		last = now
		if win.Minimized() {
			// Nothing to present until the window
			// is restored.
			stats.Reset()
			time.Sleep(10 * time.Millisecond)
			continue
		}

		ok, err := drawFrame(rend, drawables, cam)
		if err != nil {
			return err
		}
		if ok && cfg.Stats && stats.Tick(time.Now()) {
			if err := win.SetTitle(statsTitle(cfg.Title, stats)); err != nil {
				log.Warn("cannot set window title", "err", err)
			}
			log.Debug("frame stats", "fps", stats.FPS(), "frame_time", stats.FrameTime())
		}
	}
}

// drawFrame records and presents one frame.
// It returns false if the frame was skipped.
func drawFrame(rend *engine.Renderer, drawables []engine.Drawable, cam *engine.Camera) (bool, error) {
	ok, err := rend.PrepareDraw()
	if !ok || err != nil {
		return false, err
	}
	cb, img := rend.CmdBuffer(), rend.ImageIndex()
	proj := rend.Proj()
	for _, d := range drawables {
		if err := d.PrepareDraw(cb, img, cam, &proj); err != nil {
			return false, err
		}
	}
	rend.BeginDraw()
	for _, d := range drawables {
		d.Draw(cb, img)
	}
	if _, err = rend.Present(); err != nil {
		return false, err
	}
	return true, nil
}

func statsTitle(title string, stats *engine.FrameStats) string {
	return title + " | " + stats.String()
}
