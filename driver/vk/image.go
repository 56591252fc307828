// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
)

// image implements driver.Image.
type image struct {
	m      *memory
	img    vk.Image
	pf     driver.PixelFmt
	size   driver.Dim3D
	layers int
	levels int
}

// NewImage creates a new image.
func (d *Driver) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels int, usg driver.Usage) (driver.Image, error) {
	switch {
	case size.Width <= 0 || size.Height <= 0:
		return nil, errors.Newf("vk: invalid image size %dx%d", size.Width, size.Height)
	case size.Width > d.lim.MaxImage2D || size.Height > d.lim.MaxImage2D:
		return nil, errors.Newf("vk: image size %dx%d exceeds %d", size.Width, size.Height, d.lim.MaxImage2D)
	case layers <= 0 || layers > d.lim.MaxLayers:
		return nil, errors.Newf("vk: invalid layer count %d", layers)
	case levels <= 0:
		return nil, errors.Newf("vk: invalid level count %d", levels)
	}
	var flags vk.ImageCreateFlags
	if layers%6 == 0 && size.Width == size.Height {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     flags,
		ImageType: vk.ImageType2d,
		Format:    convPixelFmt(pf),
		Extent: vk.Extent3D{
			Width:  uint32(size.Width),
			Height: uint32(size.Height),
			Depth:  1,
		},
		MipLevels:     uint32(levels),
		ArrayLayers:   uint32(layers),
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         convImageUsage(usg, pf),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if err := checkResult(vk.CreateImage(d.dev, &info, nil, &img)); err != nil {
		return nil, errors.Wrap(err, "vk: creating image")
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.dev, img, &req)
	req.Deref()
	m, err := d.newMemory(req, false)
	if err != nil {
		vk.DestroyImage(d.dev, img, nil)
		return nil, err
	}
	if err := checkResult(vk.BindImageMemory(d.dev, img, m.mem, 0)); err != nil {
		m.free()
		vk.DestroyImage(d.dev, img, nil)
		return nil, errors.Wrap(err, "vk: binding image memory")
	}
	return &image{
		m:      m,
		img:    img,
		pf:     pf,
		size:   driver.Dim3D{Width: size.Width, Height: size.Height, Depth: 1},
		layers: layers,
		levels: levels,
	}, nil
}

// Destroy destroys the image.
func (im *image) Destroy() {
	if im == nil || im.m == nil {
		return
	}
	vk.DestroyImage(im.m.d.dev, im.img, nil)
	im.m.free()
	*im = image{}
}

// imageView implements driver.ImageView.
type imageView struct {
	d *Driver
	// i is nil for swapchain views.
	i      *image
	img    vk.Image
	view   vk.ImageView
	fmt    vk.Format
	aspect vk.ImageAspectFlags
	layer  int
	layers int
	level  int
	levels int
}

// NewView creates a new image view.
func (im *image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	switch {
	case layer < 0 || layers <= 0 || layer+layers > im.layers:
		return nil, errors.Newf("vk: view layers [%d, %d) out of range", layer, layer+layers)
	case level < 0 || levels <= 0 || level+levels > im.levels:
		return nil, errors.Newf("vk: view levels [%d, %d) out of range", level, level+levels)
	case typ == driver.IViewCube && layers != 6:
		return nil, errors.Newf("vk: cube view with %d layers", layers)
	case typ == driver.IView2D && layers != 1:
		return nil, errors.Newf("vk: 2D view with %d layers", layers)
	}
	v := &imageView{
		d:      im.m.d,
		i:      im,
		img:    im.img,
		fmt:    convPixelFmt(im.pf),
		aspect: aspectOf(im.pf),
		layer:  layer,
		layers: layers,
		level:  level,
		levels: levels,
	}
	if err := v.create(convViewType(typ)); err != nil {
		return nil, err
	}
	return v, nil
}

// create creates the view handle.
func (v *imageView) create(typ vk.ImageViewType) error {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    v.img,
		ViewType: typ,
		Format:   v.fmt,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: v.subresource(),
	}
	var view vk.ImageView
	if err := checkResult(vk.CreateImageView(v.d.dev, &info, nil, &view)); err != nil {
		return errors.Wrap(err, "vk: creating image view")
	}
	v.view = view
	return nil
}

func (v *imageView) subresource() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     v.aspect,
		BaseMipLevel:   uint32(v.level),
		LevelCount:     uint32(v.levels),
		BaseArrayLayer: uint32(v.layer),
		LayerCount:     uint32(v.layers),
	}
}

// Destroy destroys the image view.
// Framebuffers that refer to the view are destroyed too.
func (v *imageView) Destroy() {
	if v == nil || v.d == nil {
		return
	}
	v.d.evictFramebufs(v)
	vk.DestroyImageView(v.d.dev, v.view, nil)
	*v = imageView{}
}

// convPixelFmt converts a driver.PixelFmt to a vk.Format.
func convPixelFmt(pf driver.PixelFmt) vk.Format {
	switch pf {
	case driver.RGBA8un:
		return vk.FormatR8g8b8a8Unorm
	case driver.RGBA8sRGB:
		return vk.FormatR8g8b8a8Srgb
	case driver.BGRA8un:
		return vk.FormatB8g8r8a8Unorm
	case driver.BGRA8sRGB:
		return vk.FormatB8g8r8a8Srgb
	case driver.RGBA32f:
		return vk.FormatR32g32b32a32Sfloat
	case driver.D16un:
		return vk.FormatD16Unorm
	case driver.D32f:
		return vk.FormatD32Sfloat
	case driver.D24unS8ui:
		return vk.FormatD24UnormS8Uint
	case driver.D32fS8ui:
		return vk.FormatD32SfloatS8Uint
	}
	return vk.FormatUndefined
}

// pixelFmtOf is the inverse of convPixelFmt.
func pixelFmtOf(f vk.Format) (driver.PixelFmt, bool) {
	for _, pf := range [...]driver.PixelFmt{
		driver.RGBA8un,
		driver.RGBA8sRGB,
		driver.BGRA8un,
		driver.BGRA8sRGB,
		driver.RGBA32f,
		driver.D16un,
		driver.D32f,
		driver.D24unS8ui,
		driver.D32fS8ui,
	} {
		if convPixelFmt(pf) == f {
			return pf, true
		}
	}
	return 0, false
}

// aspectOf returns the aspects of pf.
func aspectOf(pf driver.PixelFmt) vk.ImageAspectFlags {
	switch pf {
	case driver.D16un, driver.D32f:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case driver.D24unS8ui, driver.D32fS8ui:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func hasStencil(pf driver.PixelFmt) bool { return pf == driver.D24unS8ui || pf == driver.D32fS8ui }

// convImageUsage converts a driver.Usage to a
// vk.ImageUsageFlags.
func convImageUsage(usg driver.Usage, pf driver.PixelFmt) vk.ImageUsageFlags {
	var f vk.ImageUsageFlagBits
	if usg&driver.UShaderSample != 0 {
		f |= vk.ImageUsageSampledBit
	}
	if usg&driver.URenderTarget != 0 {
		if pf.IsDS() {
			f |= vk.ImageUsageDepthStencilAttachmentBit
		} else {
			f |= vk.ImageUsageColorAttachmentBit
		}
	}
	if usg&driver.UCopySrc != 0 {
		f |= vk.ImageUsageTransferSrcBit
	}
	if usg&driver.UCopyDst != 0 {
		f |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(f)
}

// convViewType converts a driver.ViewType to a
// vk.ImageViewType.
func convViewType(typ driver.ViewType) vk.ImageViewType {
	switch typ {
	case driver.IViewCube:
		return vk.ImageViewTypeCube
	case driver.IView2DArray:
		return vk.ImageViewType2dArray
	}
	return vk.ImageViewType2d
}
