// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package engine implements a small real-time renderer
// on top of package driver.
//
// A Context owns the GPU. A Surface owns the swapchain
// of a wsi.Window and its depth buffer. A Renderer drives
// the frame loop over a Surface, and Drawables record
// their uniform uploads and draw commands into the
// Renderer's current command buffer.
package engine

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/gviegas/vkb/engine/internal/shader"
)

const (
	// The number of frame slots in the ring.
	MaxFrame = 3

	// The maximum number of swapchain images.
	// Materials replicate their uniform data this
	// many times.
	MaxImage = 8

	// The maximum number of stars in the sky.
	MaxStar = shader.MaxStar

	dflWaitTimeout = 5 * time.Second
	dflWidth       = 1280
	dflHeight      = 720
	dflTitle       = "vkb"
	dflNear        = 0.1
	dflFar         = 1000
	dflFOV         = 70
	dflStars       = 128
	dflShaderDir   = "res/shaders"
	dflTextureDir  = "res/textures"
	dflTexture     = "tex.png"
)

// Duration is a time.Duration that is decoded from
// strings such as "5s" or "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	x, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(x)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is used to configure the engine and the
// application built on it.
type Config struct {
	// The window's title.
	//
	// Default is "vkb".
	Title string `toml:"title"`

	// The initial size of the window's drawable area.
	//
	// Default is 1280x720.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// The name (or part of it) of the driver to load.
	// The empty string means any registered driver.
	//
	// Default is "".
	Driver string `toml:"driver"`

	// Whether to enable driver validation, if supported.
	//
	// Default is false.
	Validate bool `toml:"validate"`

	// The bound on every wait for GPU completion.
	// Waits that exceed it fail with driver.ErrTimeout.
	//
	// Default is 5s.
	WaitTimeout Duration `toml:"wait_timeout"`

	// The perspective projection's near plane, far
	// plane and vertical field of view in degrees.
	//
	// Default is 0.1, 1000 and 70.
	Near float32 `toml:"near"`
	Far  float32 `toml:"far"`
	FOV  float32 `toml:"fov"`

	// The number of stars in the sky.
	// It must not exceed MaxStar.
	//
	// Default is 128.
	Stars int `toml:"stars"`

	// The seed of the star generator.
	//
	// Default is 0.
	Seed uint64 `toml:"seed"`

	// The directory containing compiled shaders.
	//
	// Default is "res/shaders".
	ShaderDir string `toml:"shader_dir"`

	// The directory containing textures and the file
	// name of the cube texture.
	//
	// Default is "res/textures" and "tex.png".
	TextureDir string `toml:"texture_dir"`
	Texture    string `toml:"texture"`

	// The minimum level of log messages.
	//
	// Default is INFO.
	LogLevel slog.Level `toml:"log_level"`

	// Whether to show the frame rate and the frame time
	// in the window's title.
	//
	// Default is true.
	Stats bool `toml:"stats"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Title:       dflTitle,
		Width:       dflWidth,
		Height:      dflHeight,
		WaitTimeout: Duration(dflWaitTimeout),
		Near:        dflNear,
		Far:         dflFar,
		FOV:         dflFOV,
		Stars:       dflStars,
		ShaderDir:   dflShaderDir,
		TextureDir:  dflTextureDir,
		Texture:     dflTexture,
		LogLevel:    slog.LevelInfo,
		Stats:       true,
	}
}

func newCfgErr(s string) error { return errors.New("config: " + s) }

// Validate checks that c holds usable values.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return newCfgErr("window size must be positive")
	case c.WaitTimeout <= 0:
		return newCfgErr("wait_timeout must be positive")
	case c.Near <= 0 || c.Far <= c.Near:
		return newCfgErr("near must be positive and less than far")
	case c.FOV <= 0 || c.FOV >= 180:
		return newCfgErr("fov must be in the interval (0, 180)")
	case c.Stars < 0 || c.Stars > MaxStar:
		return errors.Newf("config: stars must be in the interval [0, %d]", MaxStar)
	}
	return nil
}

// DecodeConfig decodes a TOML document from r into a copy
// of the default configuration.
// Keys that do not correspond to Config fields are
// rejected.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return Config{}, errors.Wrap(err, "config: "+sme.String())
		}
		return Config{}, errors.Wrap(err, "config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the TOML file at path.
// See DecodeConfig.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config")
	}
	return DecodeConfig(bytes.NewReader(b))
}
