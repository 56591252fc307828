// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gviegas/vkb/driver"
)

const texPrefix = "texture: "

func newTexErr(s string) error { return errors.New(texPrefix + s) }

// Texture is a sampled 2D image with a full mip chain
// and its sampler.
type Texture struct {
	img    driver.Image
	view   driver.ImageView
	splr   driver.Sampler
	width  int
	height int
	levels int
}

// LoadTexture decodes the image file at path and creates
// a texture from it.
// PNG, JPEG, GIF, BMP, TIFF and WebP are supported.
func LoadTexture(ctx *Context, path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "texture")
	}
	defer f.Close()
	src, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "texture: decode %s", path)
	}
	logger().Debug("texture decoded", "path", path, "format", format, "size", src.Bounds().Size())
	return NewTexture(ctx, src)
}

// MipLevels returns the number of levels of a full mip
// chain for the given size.
func MipLevels(width, height int) int {
	return bits.Len(uint(max(width, height, 1)))
}

// Mipmaps returns the full mip chain of src in RGBA
// form. Each level is scaled from the previous one
// with a bilinear filter.
func Mipmaps(src image.Image) []*image.RGBA {
	b := src.Bounds()
	n := MipLevels(b.Dx(), b.Dy())
	mips := make([]*image.RGBA, n)
	mips[0] = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(mips[0], mips[0].Bounds(), src, b.Min, draw.Src)
	for i := 1; i < n; i++ {
		prev := mips[i-1].Bounds()
		r := image.Rect(0, 0, max(prev.Dx()/2, 1), max(prev.Dy()/2, 1))
		mips[i] = image.NewRGBA(r)
		draw.BiLinear.Scale(mips[i], r, mips[i-1], prev, draw.Src, nil)
	}
	return mips
}

// NewTexture creates a texture from src.
func NewTexture(ctx *Context, src image.Image) (t *Texture, err error) {
	size := src.Bounds().Size()
	lim := ctx.gpu.Limits()
	switch {
	case size.X <= 0 || size.Y <= 0:
		return nil, newTexErr("empty image")
	case size.X > lim.MaxImage2D || size.Y > lim.MaxImage2D:
		return nil, errors.Newf(texPrefix+"%dx%d exceeds the size limit (%d)", size.X, size.Y, lim.MaxImage2D)
	}
	mips := Mipmaps(src)
	t = &Texture{width: size.X, height: size.Y, levels: len(mips)}
	defer func() {
		if err != nil {
			t.Destroy()
			t = nil
		}
	}()

	gpu := ctx.gpu
	t.img, err = gpu.NewImage(driver.RGBA8sRGB, driver.Dim3D{Width: size.X, Height: size.Y}, 1, t.levels, driver.UShaderSample|driver.UCopyDst)
	if err != nil {
		return
	}
	if t.view, err = t.img.NewView(driver.IView2D, 0, 1, 0, t.levels); err != nil {
		return
	}
	t.splr, err = gpu.NewSampler(&driver.Sampling{
		Min:      driver.FNearest,
		Mag:      driver.FNearest,
		Mipmap:   driver.FLinear,
		AddrU:    driver.AWrap,
		AddrV:    driver.AWrap,
		AddrW:    driver.AWrap,
		MaxAniso: max(lim.MaxAniso, 1),
		MaxLOD:   float32(t.levels),
	})
	if err != nil {
		return
	}

	var n int64
	off := make([]int64, len(mips))
	for i, m := range mips {
		off[i] = n
		// Keep offsets aligned to the pixel size.
		n += int64(len(m.Pix)+3) &^ 3
	}
	stg, err := gpu.NewBuffer(n, true, driver.UCopySrc)
	if err != nil {
		return
	}
	defer stg.Destroy()
	for i, m := range mips {
		copy(stg.Bytes()[off[i]:], m.Pix)
	}
	err = ctx.Once(func(cb driver.CmdBuffer) {
		cb.Transition([]driver.Transition{{
			Barrier: driver.Barrier{
				SyncBefore:   driver.SNone,
				SyncAfter:    driver.SCopy,
				AccessBefore: driver.ANone,
				AccessAfter:  driver.ACopyWrite,
			},
			LayoutBefore: driver.LUndefined,
			LayoutAfter:  driver.LCopyDst,
			IView:        t.view,
		}})
		for i, m := range mips {
			cb.CopyBufToImg(&driver.BufImgCopy{
				Buf:    stg,
				BufOff: off[i],
				Stride: [2]int64{int64(m.Stride / 4), int64(m.Rect.Dy())},
				Img:    t.img,
				Level:  i,
				Size:   driver.Dim3D{Width: m.Rect.Dx(), Height: m.Rect.Dy(), Depth: 1},
			})
		}
		cb.Transition([]driver.Transition{{
			Barrier: driver.Barrier{
				SyncBefore:   driver.SCopy,
				SyncAfter:    driver.SFragmentShading,
				AccessBefore: driver.ACopyWrite,
				AccessAfter:  driver.AShaderRead,
			},
			LayoutBefore: driver.LCopyDst,
			LayoutAfter:  driver.LShaderRead,
			IView:        t.view,
		}})
	})
	if err != nil {
		err = errors.Wrap(err, "texture: upload")
	}
	return
}

// View returns the image view of t.
func (t *Texture) View() driver.ImageView { return t.view }

// Sampler returns the sampler of t.
func (t *Texture) Sampler() driver.Sampler { return t.splr }

// Width returns the width of t's first level.
func (t *Texture) Width() int { return t.width }

// Height returns the height of t's first level.
func (t *Texture) Height() int { return t.height }

// Levels returns the number of mip levels of t.
func (t *Texture) Levels() int { return t.levels }

// Destroy destroys t.
func (t *Texture) Destroy() {
	if t.splr != nil {
		t.splr.Destroy()
	}
	if t.view != nil {
		t.view.Destroy()
	}
	if t.img != nil {
		t.img.Destroy()
	}
	*t = Texture{}
}
