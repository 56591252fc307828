// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package shader

import (
	"testing"

	"github.com/gviegas/vkb/driver"
)

func TestSpan(t *testing.T) {
	for _, x := range [...]struct{ size, want int }{
		{0, 0},
		{1, 256},
		{128, 256},
		{256, 256},
		{257, 512},
		{MaxStar * 32, MaxStar * 32},
	} {
		if have := Span(x.size); have != x.want {
			t.Fatalf("Span(%d):\nhave %d\nwant %d", x.size, have, x.want)
		}
	}
	if CameraSpan != 1 || CoordsSpan != 1 {
		t.Fatalf("CameraSpan, CoordsSpan:\nhave %d, %d\nwant 1, 1", CameraSpan, CoordsSpan)
	}
	if StarSpan*BlockSize > MaxConstant {
		t.Fatalf("StarSpan exceeds MaxConstant: %d", StarSpan*BlockSize)
	}
}

func TestHeaps(t *testing.T) {
	u := UniformHeap(driver.SVertex)
	if len(u) != 1 || u[0].Type != driver.DConstant || u[0].Nr != UniformNr {
		t.Fatalf("UniformHeap: unexpected descriptors %v", u)
	}
	tx := TextureHeap()
	if len(tx) != 2 || tx[0].Type != driver.DTexture || tx[1].Type != driver.DSampler {
		t.Fatalf("TextureHeap: unexpected descriptors %v", tx)
	}
	if tx[0].Nr != TextureNr || tx[1].Nr != SamplerNr {
		t.Fatalf("TextureHeap: unexpected numbers %v", tx)
	}
	if s := StarHeap(); s[0].Stages != driver.SFragment {
		t.Fatalf("StarHeap: unexpected stages %v", s[0].Stages)
	}
}
