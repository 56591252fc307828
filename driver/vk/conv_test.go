// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

func TestPixelFmt(t *testing.T) {
	pfs := [...]driver.PixelFmt{
		driver.RGBA8un,
		driver.RGBA8sRGB,
		driver.BGRA8un,
		driver.BGRA8sRGB,
		driver.RGBA32f,
		driver.D16un,
		driver.D32f,
		driver.D24unS8ui,
		driver.D32fS8ui,
	}
	for _, pf := range pfs {
		f := convPixelFmt(pf)
		if f == vk.FormatUndefined {
			t.Fatalf("convPixelFmt(%v):\nhave vk.FormatUndefined\nwant valid format", pf)
		}
		if x, ok := pixelFmtOf(f); !ok || x != pf {
			t.Fatalf("pixelFmtOf(%v):\nhave %v, %t\nwant %v, true", f, x, ok, pf)
		}
	}
	if _, ok := pixelFmtOf(vk.FormatR8Unorm); ok {
		t.Fatal("pixelFmtOf(vk.FormatR8Unorm):\nhave true\nwant false")
	}
}

func TestAspect(t *testing.T) {
	for _, x := range [...]struct {
		pf      driver.PixelFmt
		aspect  vk.ImageAspectFlagBits
		stencil bool
	}{
		{driver.RGBA8un, vk.ImageAspectColorBit, false},
		{driver.BGRA8sRGB, vk.ImageAspectColorBit, false},
		{driver.D16un, vk.ImageAspectDepthBit, false},
		{driver.D32f, vk.ImageAspectDepthBit, false},
		{driver.D24unS8ui, vk.ImageAspectDepthBit | vk.ImageAspectStencilBit, true},
		{driver.D32fS8ui, vk.ImageAspectDepthBit | vk.ImageAspectStencilBit, true},
	} {
		if a := aspectOf(x.pf); a != vk.ImageAspectFlags(x.aspect) {
			t.Fatalf("aspectOf(%v):\nhave %#x\nwant %#x", x.pf, a, x.aspect)
		}
		if s := hasStencil(x.pf); s != x.stencil {
			t.Fatalf("hasStencil(%v):\nhave %t\nwant %t", x.pf, s, x.stencil)
		}
	}
}

func TestImageUsage(t *testing.T) {
	for _, x := range [...]struct {
		usg  driver.Usage
		pf   driver.PixelFmt
		want vk.ImageUsageFlagBits
	}{
		{driver.UShaderSample, driver.RGBA8un, vk.ImageUsageSampledBit},
		{driver.URenderTarget, driver.BGRA8un, vk.ImageUsageColorAttachmentBit},
		{driver.URenderTarget, driver.D16un, vk.ImageUsageDepthStencilAttachmentBit},
		{driver.UCopyDst | driver.UShaderSample, driver.RGBA8un, vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit},
		{driver.UCopySrc, driver.RGBA32f, vk.ImageUsageTransferSrcBit},
	} {
		if u := convImageUsage(x.usg, x.pf); u != vk.ImageUsageFlags(x.want) {
			t.Fatalf("convImageUsage(%v, %v):\nhave %#x\nwant %#x", x.usg, x.pf, u, x.want)
		}
	}
}

func TestSync(t *testing.T) {
	if s := convSync(driver.SNone, true); s != vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit) {
		t.Fatalf("convSync(SNone, true):\nhave %#x\nwant %#x", s, vk.PipelineStageTopOfPipeBit)
	}
	if s := convSync(driver.SNone, false); s != vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit) {
		t.Fatalf("convSync(SNone, false):\nhave %#x\nwant %#x", s, vk.PipelineStageBottomOfPipeBit)
	}
	if s := convSync(driver.SAll|driver.SCopy, false); s != vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit) {
		t.Fatalf("convSync(SAll|SCopy, false):\nhave %#x\nwant %#x", s, vk.PipelineStageAllCommandsBit)
	}
	want := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageTransferBit)
	if s := convSync(driver.SColorOutput|driver.SCopy, true); s != want {
		t.Fatalf("convSync(SColorOutput|SCopy, true):\nhave %#x\nwant %#x", s, want)
	}
}

func TestAccess(t *testing.T) {
	want := vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessUniformReadBit)
	if a := convAccess(driver.AShaderRead); a != want {
		t.Fatalf("convAccess(AShaderRead):\nhave %#x\nwant %#x", a, want)
	}
	want = vk.AccessFlags(vk.AccessTransferWriteBit | vk.AccessColorAttachmentWriteBit)
	if a := convAccess(driver.ACopyWrite | driver.AColorWrite); a != want {
		t.Fatalf("convAccess(ACopyWrite|AColorWrite):\nhave %#x\nwant %#x", a, want)
	}
	if a := convAccess(driver.ANone); a != 0 {
		t.Fatalf("convAccess(ANone):\nhave %#x\nwant 0", a)
	}
}

func TestLayout(t *testing.T) {
	for _, x := range [...]struct {
		l    driver.Layout
		want vk.ImageLayout
	}{
		{driver.LUndefined, vk.ImageLayoutUndefined},
		{driver.LCommon, vk.ImageLayoutGeneral},
		{driver.LColorTarget, vk.ImageLayoutColorAttachmentOptimal},
		{driver.LDSTarget, vk.ImageLayoutDepthStencilAttachmentOptimal},
		{driver.LDSRead, vk.ImageLayoutDepthStencilReadOnlyOptimal},
		{driver.LCopySrc, vk.ImageLayoutTransferSrcOptimal},
		{driver.LCopyDst, vk.ImageLayoutTransferDstOptimal},
		{driver.LShaderRead, vk.ImageLayoutShaderReadOnlyOptimal},
		{driver.LPresent, vk.ImageLayoutPresentSrc},
	} {
		if l := convLayout(x.l); l != x.want {
			t.Fatalf("convLayout(%v):\nhave %v\nwant %v", x.l, l, x.want)
		}
	}
}

func TestPassKey(t *testing.T) {
	color := []driver.PixelFmt{driver.BGRA8un, driver.RGBA32f}
	k1, err := compatKey(color, driver.D16un, true)
	if err != nil {
		t.Fatalf("compatKey:\nhave %v\nwant nil", err)
	}
	k2, _ := compatKey(color, driver.D16un, true)
	if k1 != k2 {
		t.Fatal("compatKey: equal inputs\nhave different keys\nwant equal keys")
	}
	if k1.ncolor != 2 || !k1.hasDS || k1.ds.fmt != vk.FormatD16Unorm {
		t.Fatalf("compatKey:\nhave %+v\nwant 2 colors and D16 depth", k1)
	}
	if k3, _ := compatKey(color, 0, false); k3 == k1 {
		t.Fatal("compatKey: with/without depth\nhave equal keys\nwant different keys")
	}
	if _, err := compatKey(make([]driver.PixelFmt, maxColorTarget+1), 0, false); err == nil {
		t.Fatal("compatKey: too many targets\nhave nil\nwant error")
	}
}

func TestMisc(t *testing.T) {
	if s := cstr("main"); s != "main\x00" {
		t.Fatalf("cstr:\nhave %q\nwant %q", s, "main\x00")
	}
	if w := convWinding(true); w != vk.FrontFaceClockwise {
		t.Fatalf("convWinding(true):\nhave %v\nwant %v", w, vk.FrontFaceClockwise)
	}
	if w := convWinding(false); w != vk.FrontFaceCounterClockwise {
		t.Fatalf("convWinding(false):\nhave %v\nwant %v", w, vk.FrontFaceCounterClockwise)
	}
	if m := convFillMode(driver.FLines); m != vk.PolygonModeLine {
		t.Fatalf("convFillMode(FLines):\nhave %v\nwant %v", m, vk.PolygonModeLine)
	}
	if n := clamp32(5000, 1, 4096); n != 4096 {
		t.Fatalf("clamp32(5000, 1, 4096):\nhave %d\nwant 4096", n)
	}
	if n := clamp32(0, 1, 4096); n != 1 {
		t.Fatalf("clamp32(0, 1, 4096):\nhave %d\nwant 1", n)
	}
}
