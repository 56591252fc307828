// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package vk implements driver interfaces using the Vulkan API.
package vk

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gviegas/vkb/driver"
	"github.com/gviegas/vkb/wsi"
)

const driverName = "vulkan"

const (
	validationLayer = "VK_LAYER_KHRONOS_validation"
	swapchainExt    = "VK_KHR_swapchain"
)

// Driver implements driver.Driver and driver.GPU.
type Driver struct {
	inst  vk.Instance
	pdev  vk.PhysicalDevice
	dname string
	dev   vk.Device
	que   vk.Queue
	qfam  uint32

	// Queue submission requires that the queue handle
	// be externally synchronized.
	qmu sync.Mutex

	// Whether surface and swapchain extensions were
	// enabled.
	present bool

	mprop vk.PhysicalDeviceMemoryProperties

	// Render passes and framebuffers created on demand
	// by cmdBuffer.BeginRendering.
	pmu    sync.Mutex
	passes map[passKey]vk.RenderPass
	fbs    map[fbKey]vk.Framebuffer

	log *slog.Logger
	lim driver.Limits
}

func init() {
	driver.Register(&Driver{})
}

var validation atomic.Bool

// SetValidation enables or disables the validation layer
// for drivers opened afterwards.
// Setting the VKB_VALIDATION environment variable to a
// non-empty value has the same effect as SetValidation(true).
func SetValidation(on bool) { validation.Store(on) }

func validate() bool { return validation.Load() || os.Getenv("VKB_VALIDATION") != "" }

// Loading the Vulkan library is done once per process.
var (
	loadOnce sync.Once
	loadErr  error
)

func load() error {
	loadOnce.Do(func() {
		if p := wsi.VulkanProcAddr(); p != nil {
			vk.SetGetInstanceProcAddr(p)
		} else if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			loadErr = errors.Mark(errors.Wrap(err, "vk: loading library"), driver.ErrNotInstalled)
			return
		}
		if err := vk.Init(); err != nil {
			loadErr = errors.Mark(errors.Wrap(err, "vk: initializing loader"), driver.ErrNotInstalled)
		}
	})
	return loadErr
}

// Open initializes the driver.
func (d *Driver) Open() (gpu driver.GPU, err error) {
	if d.dev != nil {
		return d, nil
	}
	if err = load(); err != nil {
		return nil, err
	}
	d.log = driver.Logger().With("driver", driverName)
	defer func() {
		if err != nil {
			d.Close()
		}
	}()
	if err = d.initInstance(); err != nil {
		return nil, err
	}
	if err = d.initDevice(); err != nil {
		return nil, err
	}
	d.passes = make(map[passKey]vk.RenderPass)
	d.fbs = make(map[fbKey]vk.Framebuffer)
	return d, nil
}

// initInstance creates the Vulkan instance.
// The instance extensions needed for presentation are
// enabled only if the window system is initialized.
func (d *Driver) initInstance() error {
	exts := wsi.VulkanExtensions()
	var layers []string
	if validate() {
		if hasLayer(validationLayer) {
			layers = append(layers, validationLayer)
		} else {
			d.log.Warn("validation layer not found", "layer", validationLayer)
		}
	}
	info := vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   cstr("vkb"),
			ApplicationVersion: vk.MakeVersion(0, 1, 0),
			PEngineName:        cstr("vkb"),
			EngineVersion:      vk.MakeVersion(0, 1, 0),
			ApiVersion:         vk.MakeVersion(1, 0, 0),
		},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: cstrs(exts),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     cstrs(layers),
	}
	var inst vk.Instance
	if err := checkResult(vk.CreateInstance(&info, nil, &inst)); err != nil {
		return errors.Wrap(err, "vk: creating instance")
	}
	d.inst = inst
	if err := vk.InitInstance(inst); err != nil {
		return errors.Mark(errors.Wrap(err, "vk: loading instance procs"), driver.ErrNotInstalled)
	}
	d.present = len(exts) > 0
	d.log.Debug("instance created", "extensions", exts, "layers", layers)
	return nil
}

// initDevice selects a physical device and creates the
// logical device from it.
// Discrete GPUs are preferred over integrated ones.
func (d *Driver) initDevice() error {
	var n uint32
	if err := checkResult(vk.EnumeratePhysicalDevices(d.inst, &n, nil)); err != nil {
		return errors.Wrap(err, "vk: enumerating devices")
	}
	if n == 0 {
		return driver.ErrNoDevice
	}
	pdevs := make([]vk.PhysicalDevice, n)
	if err := checkResult(vk.EnumeratePhysicalDevices(d.inst, &n, pdevs)); err != nil {
		return errors.Wrap(err, "vk: enumerating devices")
	}

	best, score := -1, -1
	var qfam uint32
	var props vk.PhysicalDeviceProperties
	for i, pd := range pdevs[:n] {
		fam, ok := graphicsFamily(pd)
		if !ok {
			continue
		}
		if d.present && !hasDeviceExt(pd, swapchainExt) {
			continue
		}
		var p vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &p)
		p.Deref()
		if s := deviceScore(p.DeviceType); s > score {
			best, score, qfam, props = i, s, fam, p
		}
	}
	if best < 0 {
		return driver.ErrNoDevice
	}
	d.pdev = pdevs[best]
	d.qfam = qfam
	d.dname = vk.ToString(props.DeviceName[:])

	var feat vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(d.pdev, &feat)
	feat.Deref()
	enabled := vk.PhysicalDeviceFeatures{
		WideLines:         feat.WideLines,
		SamplerAnisotropy: feat.SamplerAnisotropy,
		FillModeNonSolid:  feat.FillModeNonSolid,
	}

	var exts []string
	if d.present {
		exts = append(exts, swapchainExt)
	}
	info := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: qfam,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		}},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: cstrs(exts),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{enabled},
	}
	var dev vk.Device
	if err := checkResult(vk.CreateDevice(d.pdev, &info, nil, &dev)); err != nil {
		return errors.Wrap(err, "vk: creating device")
	}
	d.dev = dev
	var que vk.Queue
	vk.GetDeviceQueue(dev, qfam, 0, &que)
	d.que = que

	vk.GetPhysicalDeviceMemoryProperties(d.pdev, &d.mprop)
	d.mprop.Deref()
	for i := range d.mprop.MemoryTypes[:d.mprop.MemoryTypeCount] {
		d.mprop.MemoryTypes[i].Deref()
	}

	props.Limits.Deref()
	d.setLimits(&props.Limits, &enabled)
	d.log.Info("device selected",
		"name", d.dname,
		"type", deviceTypeName(props.DeviceType),
		"queueFamily", qfam,
		"wideLines", d.lim.WideLines,
		"maxAniso", d.lim.MaxAniso)
	return nil
}

// setLimits sets d.lim from the device limits and the
// enabled features.
func (d *Driver) setLimits(l *vk.PhysicalDeviceLimits, feat *vk.PhysicalDeviceFeatures) {
	aniso := 1
	if feat.SamplerAnisotropy == vk.True {
		aniso = int(l.MaxSamplerAnisotropy)
	}
	d.lim = driver.Limits{
		MaxImage2D:        int(l.MaxImageDimension2D),
		MaxLayers:         int(l.MaxImageArrayLayers),
		MaxDescHeaps:      int(l.MaxBoundDescriptorSets),
		MaxDConstantRange: int64(l.MaxUniformBufferRange),
		ConstantAlign:     int64(l.MinUniformBufferOffsetAlignment),
		MaxPushConstants:  int(l.MaxPushConstantsSize),
		MaxColorTargets:   min(int(l.MaxColorAttachments), maxColorTarget),
		MaxRenderSize:     [2]int{int(l.MaxFramebufferWidth), int(l.MaxFramebufferHeight)},
		MaxViewports:      int(l.MaxViewports),
		MaxVertexIn:       int(l.MaxVertexInputAttributes),
		MaxAniso:          aniso,
		WideLines:         feat.WideLines == vk.True,
	}
}

// graphicsFamily returns the index of the first queue
// family of pd that supports graphics.
func graphicsFamily(pd vk.PhysicalDevice) (uint32, bool) {
	var n uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, nil)
	fams := make([]vk.QueueFamilyProperties, n)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, fams)
	for i := range fams[:n] {
		fams[i].Deref()
		if fams[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func hasDeviceExt(pd vk.PhysicalDevice, name string) bool {
	var n uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &n, nil) != vk.Success || n == 0 {
		return false
	}
	props := make([]vk.ExtensionProperties, n)
	vk.EnumerateDeviceExtensionProperties(pd, "", &n, props)
	for i := range props[:n] {
		props[i].Deref()
		if vk.ToString(props[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func hasLayer(name string) bool {
	var n uint32
	if vk.EnumerateInstanceLayerProperties(&n, nil) != vk.Success || n == 0 {
		return false
	}
	props := make([]vk.LayerProperties, n)
	vk.EnumerateInstanceLayerProperties(&n, props)
	for i := range props[:n] {
		props[i].Deref()
		if vk.ToString(props[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func deviceScore(typ vk.PhysicalDeviceType) int {
	switch typ {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 3
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 2
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 1
	}
	return 0
}

func deviceTypeName(typ vk.PhysicalDeviceType) string {
	switch typ {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "other"
}

// Name returns the driver name.
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
func (d *Driver) Close() {
	if d.dev != nil {
		vk.DeviceWaitIdle(d.dev)
		d.destroyPasses()
		vk.DestroyDevice(d.dev, nil)
	}
	if d.inst != nil {
		vk.DestroyInstance(d.inst, nil)
	}
	d.inst = nil
	d.pdev = nil
	d.dname = ""
	d.dev = nil
	d.que = nil
	d.qfam = 0
	d.present = false
	d.mprop = vk.PhysicalDeviceMemoryProperties{}
	d.passes = nil
	d.fbs = nil
	d.lim = driver.Limits{}
}

// Driver returns the receiver (for driver.GPU conformance).
func (d *Driver) Driver() driver.Driver { return d }

// DeviceName returns the name of the selected device.
func (d *Driver) DeviceName() string { return d.dname }

// Limits returns the implementation limits.
func (d *Driver) Limits() driver.Limits { return d.lim }

// WaitIdle blocks until the device has no pending work.
func (d *Driver) WaitIdle() error {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	return checkResult(vk.DeviceWaitIdle(d.dev))
}

// checkResult converts a vk.Result into an error.
// Non-negative results are not errors.
func checkResult(res vk.Result) error {
	if res >= vk.Success {
		return nil
	}
	var err error
	switch res {
	case vk.ErrorOutOfHostMemory:
		err = driver.ErrNoHostMemory
	case vk.ErrorOutOfDeviceMemory:
		err = driver.ErrNoDeviceMemory
	case vk.ErrorIncompatibleDriver, vk.ErrorLayerNotPresent, vk.ErrorExtensionNotPresent:
		err = driver.ErrNotInstalled
	case vk.ErrorFeatureNotPresent:
		err = driver.ErrNoDevice
	case vk.ErrorOutOfDate:
		err = driver.ErrSwapchain
	case vk.ErrorSurfaceLost, vk.ErrorNativeWindowInUse:
		err = driver.ErrWindow
	default:
		err = driver.ErrFatal
	}
	return errors.Wrapf(err, "vk: %v", vk.Error(res))
}

// cstr returns s as a null-terminated string.
func cstr(s string) string { return s + "\x00" }

func cstrs(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	cs := make([]string, len(s))
	for i := range s {
		cs[i] = cstr(s[i])
	}
	return cs
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
