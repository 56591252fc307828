// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/driver/drivertest"
)

func TestMipLevels(t *testing.T) {
	for _, x := range [...]struct {
		w, h, want int
	}{
		{1, 1, 1},
		{2, 1, 2},
		{1, 2, 2},
		{3, 3, 2},
		{4, 4, 3},
		{16, 8, 5},
		{1024, 1024, 11},
		{1000, 1, 10},
		{0, 0, 1},
	} {
		if have := MipLevels(x.w, x.h); have != x.want {
			t.Fatalf("MipLevels(%d, %d):\nhave %d\nwant %d", x.w, x.h, have, x.want)
		}
	}
}

func TestMipmaps(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 26, 18))
	for y := 10; y < 18; y++ {
		for x := 10; x < 26; x++ {
			src.Set(x, y, color.NRGBA{0, 128, 255, 255})
		}
	}
	mips := Mipmaps(src)
	require.Len(t, mips, 5)
	for i, want := range [][2]int{{16, 8}, {8, 4}, {4, 2}, {2, 1}, {1, 1}} {
		assert.Equal(t, image.Rect(0, 0, want[0], want[1]), mips[i].Bounds())
	}
	// A solid image stays solid.
	for _, m := range mips {
		c := m.RGBAAt(0, 0)
		assert.InDelta(t, 0, c.R, 1)
		assert.InDelta(t, 128, c.G, 1)
		assert.InDelta(t, 255, c.B, 1)
		assert.InDelta(t, 255, c.A, 1)
	}
}

func TestNewTexture(t *testing.T) {
	ctx, g := newTestContext(t)
	defer ctx.Close()
	live := g.Live()

	g.ClearCalls()
	tex, err := NewTexture(ctx, image.NewRGBA(image.Rect(0, 0, 16, 8)))
	require.NoError(t, err)
	assert.Equal(t, 16, tex.Width())
	assert.Equal(t, 8, tex.Height())
	assert.Equal(t, 5, tex.Levels())

	img := tex.View().(*drivertest.ImageView).Image()
	assert.Equal(t, driver.RGBA8sRGB, img.Format())
	assert.Equal(t, 5, img.Levels())
	copies := g.CallsOf("cmd.CopyBufToImg")
	require.Len(t, copies, 5)
	for i, c := range copies {
		assert.Equal(t, i, c.Arg[2])
	}
	tr := g.CallsOf("cmd.Transition")
	require.Len(t, tr, 2)
	assert.Equal(t, int(driver.LShaderRead), tr[1].Arg[2])
	spln := tex.Sampler().(*drivertest.Sampler).Spln
	assert.Equal(t, g.Limits().MaxAniso, spln.MaxAniso)
	assert.Equal(t, driver.AWrap, spln.AddrU)

	tex.Destroy()
	// The staging buffer is gone too.
	assert.Equal(t, live, g.Live())
	assert.Empty(t, g.Violations())

	_, err = NewTexture(ctx, image.NewRGBA(image.Rectangle{}))
	assert.Error(t, err)
	assert.Equal(t, live, g.Live())
}

func TestLoadTexture(t *testing.T) {
	ctx, g := newTestContext(t)
	defer ctx.Close()
	dir := t.TempDir()

	path := filepath.Join(dir, "tex.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 32, 32))))
	require.NoError(t, f.Close())
	tex, err := LoadTexture(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 6, tex.Levels())
	tex.Destroy()

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = LoadTexture(ctx, bad)
	assert.Error(t, err)
	_, err = LoadTexture(ctx, filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, g.Violations())
}
