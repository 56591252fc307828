// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import "time"

// GPU is the main interface to an underlying driver
// implementation.
// It is used to create other types and to execute commands.
// A GPU is obtained from a call to Driver.Open.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// Submit submits a batch of command buffers to the GPU
	// for execution.
	// The batch waits on every semaphore in s.Wait at the
	// matching synchronization scope of s.WaitSync, then
	// signals every semaphore in s.Signal and, if not nil,
	// s.Fence once all commands complete execution.
	// Command buffers in s.Cmd cannot be used for recording
	// until then.
	Submit(s *Submission) error

	// WaitIdle blocks until the GPU has no pending work.
	WaitIdle() error

	// NewCmdBuffer creates a new command buffer.
	NewCmdBuffer() (CmdBuffer, error)

	// NewSemaphore creates a new GPU-side semaphore.
	NewSemaphore() (Semaphore, error)

	// NewFence creates a new fence.
	// If signaled is set, the fence starts in the
	// signaled state.
	NewFence(signaled bool) (Fence, error)

	// NewShaderCode creates a new shader code.
	NewShaderCode(data []byte) (ShaderCode, error)

	// NewDescHeap creates a new descriptor heap.
	NewDescHeap(ds []Descriptor) (DescHeap, error)

	// NewDescTable creates a new descriptor table.
	// The order of dh defines the heap numbers used by
	// CmdBuffer.SetDescTableGraph.
	NewDescTable(dh []DescHeap, push []PushRange) (DescTable, error)

	// NewPipeline creates a new graphics pipeline.
	NewPipeline(state *GraphState) (Pipeline, error)

	// NewBuffer creates a new buffer.
	NewBuffer(size int64, visible bool, usg Usage) (Buffer, error)

	// NewImage creates a new 2D image.
	NewImage(pf PixelFmt, size Dim3D, layers, levels int, usg Usage) (Image, error)

	// NewSampler creates a new Sampler.
	NewSampler(spln *Sampling) (Sampler, error)

	// Limits returns the implementation limits.
	// They are immutable for the lifetime of the GPU.
	Limits() Limits
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external
// memory that is not managed by GC, so Destroy must be
// called explicitly to ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// Semaphore is the interface that defines a GPU-side
// synchronization primitive.
// Semaphores order work between queue operations, such as
// image acquisition, submission and presentation. The CPU
// cannot wait on them.
type Semaphore interface {
	Destroyer
}

// Fence is the interface that defines a synchronization
// primitive that the CPU can wait on.
type Fence interface {
	Destroyer

	// Wait blocks until the fence is signaled or until
	// timeout elapses, in which case it returns ErrTimeout.
	// A negative timeout waits indefinitely.
	Wait(timeout time.Duration) error

	// Reset sets the fence to the unsignaled state.
	// The fence must not be referenced by a pending
	// submission.
	Reset() error
}

// Submission describes a batch of command buffers submitted
// with GPU.Submit.
// Wait and WaitSync must have the same length.
type Submission struct {
	Cmd      []CmdBuffer
	Wait     []Semaphore
	WaitSync []Sync
	Signal   []Semaphore
	Fence    Fence
}

// CmdBuffer is the interface that defines a command buffer.
// Commands are recorded into command buffers and later
// submitted to the GPU for execution. The usage is as follows:
// First, call Begin to prepare the command buffer for
// recording. Then, if it succeeds:
//
//  1. call Copy*, Barrier and Transition commands as needed
//  2. call BeginRendering
//  3. call Set* methods to configure rendering state
//  4. call DrawIndexed
//  5. repeat 3-4 as needed
//  6. call EndRendering
//
// Finally, call End and, if it succeeds, GPU.Submit.
// Copy commands must not be recorded between BeginRendering
// and EndRendering.
type CmdBuffer interface {
	Destroyer

	// Begin prepares the command buffer for recording.
	// This method must be called before any command
	// is recorded in the command buffer. It needs to
	// be called again if the command buffer is
	// executed or reset.
	Begin() error

	// BeginRendering begins rendering into the given
	// render targets.
	// Color views must be in the LColorTarget layout.
	// The depth/stencil view may be in any layout if
	// its load operation is not LLoad.
	BeginRendering(info *RenderingInfo)

	// EndRendering ends the current rendering.
	EndRendering()

	// SetPipeline sets the graphics pipeline.
	SetPipeline(pl Pipeline)

	// SetViewport sets the bounds of one or more
	// viewports.
	SetViewport(vp []Viewport)

	// SetScissor sets the rectangles of one or more
	// viewport scissors.
	SetScissor(sciss []Scissor)

	// SetVertexBuf sets one or more vertex buffers.
	SetVertexBuf(start int, buf []Buffer, off []int64)

	// SetIndexBuf sets the index buffer.
	// off must be aligned to 4 bytes.
	SetIndexBuf(format IndexFmt, buf Buffer, off int64)

	// SetDescTableGraph sets a descriptor table
	// range for graphics pipelines.
	// heapCopy[i] selects the copy of heap start+i.
	SetDescTableGraph(table DescTable, start int, heapCopy []int)

	// PushConstants updates push constant data.
	// The range [off, off+len(data)) must be covered by
	// a PushRange of table that includes stages.
	PushConstants(table DescTable, stages Stage, off int, data []byte)

	// DrawIndexed draws indexed primitives.
	// It must only be called during rendering.
	DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)

	// CopyBuffer copies data between buffers.
	// It must not be called during rendering.
	CopyBuffer(param *BufferCopy)

	// CopyBufToImg copies data from a buffer to
	// an image.
	// It must not be called during rendering.
	// The image must be in the LCopyDst layout.
	CopyBufToImg(param *BufImgCopy)

	// Barrier inserts a number of global barriers
	// in the command buffer.
	Barrier(b []Barrier)

	// Transition inserts a number of image layout
	// transitions in the command buffer.
	Transition(t []Transition)

	// End ends command recording and prepares the
	// command buffer for execution.
	// New recordings are not allowed until the
	// command buffer is executed or reset.
	End() error

	// Reset discards all recorded commands from the
	// command buffer.
	// The command buffer must not be referenced by a
	// pending submission.
	Reset() error
}

// BufferCopy describes the parameters of a copy command
// that copies data from one buffer to another.
type BufferCopy struct {
	From    Buffer
	FromOff int64
	To      Buffer
	ToOff   int64
	Size    int64
}

// BufImgCopy describes the parameters of a copy command
// that copies data from a buffer to an image.
type BufImgCopy struct {
	Buf    Buffer
	BufOff int64
	// Stride specifies the addressing of image data
	// in the buffer. It is given in pixels.
	// Stride[0] refers to the row length and Stride[1]
	// refers to the image height. Zero means tightly
	// packed.
	Stride [2]int64
	Img    Image
	ImgOff Off3D
	Layer  int
	Level  int
	Size   Dim3D
}

// Sync is the type of a synchronization scope.
type Sync int

// Synchronization scopes.
// SNone means no prior work when used as the first scope
// and no subsequent work when used as the second scope.
const (
	SVertexInput Sync = 1 << iota
	SVertexShading
	SFragmentShading
	SColorOutput
	SDSOutput
	SCopy
	SAll
	SNone Sync = 0
)

// Access is the type of a memory access scope.
type Access int

// Memory access scopes.
const (
	AVertexBufRead Access = 1 << iota
	AIndexBufRead
	AColorRead
	AColorWrite
	ADSRead
	ADSWrite
	ACopyRead
	ACopyWrite
	AShaderRead
	AShaderWrite
	AAnyRead
	AAnyWrite
	ANone Access = 0
)

// Layout is the type of an image layout.
type Layout int

// Image layouts.
const (
	LUndefined Layout = iota
	LCommon
	LColorTarget
	LDSTarget
	LDSRead
	LCopySrc
	LCopyDst
	LShaderRead
	LPresent
)

// Barrier represents a synchronization barrier.
type Barrier struct {
	SyncBefore   Sync
	SyncAfter    Sync
	AccessBefore Access
	AccessAfter  Access
}

// Transition represents a layout transition on the
// subresource range of a specific image view.
type Transition struct {
	Barrier

	LayoutBefore Layout
	LayoutAfter  Layout
	IView        ImageView
}

// LoadOp is the type of a render target's load operation.
type LoadOp int

// Load operations.
const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is the type of a render target's store operation.
type StoreOp int

// Store operations.
const (
	SDontCare StoreOp = iota
	SStore
)

// ColorTarget describes a color render target.
type ColorTarget struct {
	View  ImageView
	Load  LoadOp
	Store StoreOp
	Clear [4]float32
}

// DSTarget describes a depth/stencil render target.
type DSTarget struct {
	View    ImageView
	Load    LoadOp
	Store   StoreOp
	Depth   float32
	Stencil uint32
}

// RenderingInfo describes the render targets of a
// rendering block.
// Render targets are declared when rendering begins,
// rather than up front, so any view of a compatible
// format can be used.
type RenderingInfo struct {
	Color  []ColorTarget
	DS     *DSTarget
	Width  int
	Height int
}

// ShaderCode is the interface that defines a shader binary
// for execution in a programmable pipeline stage.
type ShaderCode interface {
	Destroyer
}

// ShaderFunc specifies a function within a shader binary.
type ShaderFunc struct {
	Code ShaderCode
	Name string
}

// Stage is a mask of programmable stages.
type Stage int

// Stages.
const (
	SVertex Stage = 1 << iota
	SFragment
)

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	// Read/write buffer.
	DBuffer DescType = iota
	// Constant buffer.
	DConstant
	// Sampled texture.
	DTexture
	// Texture sampler.
	DSampler
)

// Descriptor describes data for use in shaders.
type Descriptor struct {
	Type   DescType
	Stages Stage
	Nr     int
	Len    int
}

// DescHeap is the interface that defines a set of descriptors
// for use in programmable pipeline stages.
type DescHeap interface {
	Destroyer

	// New creates enough storage for n copies of each
	// descriptor.
	// All copies from a previous call to New are invalidated,
	// unless n is the same as the current Count value, in
	// which case it is a no-op.
	// Calling New(0) frees all storage.
	New(n int) error

	// SetBuffer updates the buffer ranges referred by the
	// given descriptor of the given heap copy.
	// The descriptor must be of type DBuffer or DConstant.
	SetBuffer(cpy, nr, start int, buf []Buffer, off, size []int64)

	// SetImage updates the image views referred by the
	// given descriptor of the given heap copy.
	// The descriptor must be of type DTexture.
	SetImage(cpy, nr, start int, iv []ImageView)

	// SetSampler updates the samplers referred by the
	// given descriptor of the given heap copy.
	// The descriptor must be of type DSampler.
	SetSampler(cpy, nr, start int, splr []Sampler)

	// Count returns the number of heap copies created
	// by New.
	Count() int
}

// PushRange describes a range of push constants.
type PushRange struct {
	Stages Stage
	Off    int
	Size   int
}

// DescTable is the interface that defines the bindings
// between a number of descriptor heaps and the shaders
// in a pipeline.
type DescTable interface {
	Destroyer
}

// VertexFmt describes the format of a vertex input.
type VertexFmt int

// Vertex formats.
const (
	Float32 VertexFmt = iota
	Float32x2
	Float32x3
	Float32x4
	UInt32
)

// Size returns the size of f in bytes.
func (f VertexFmt) Size() int {
	switch f {
	case Float32, UInt32:
		return 4
	case Float32x2:
		return 8
	case Float32x3:
		return 12
	case Float32x4:
		return 16
	}
	panic("unreachable")
}

// VertexIn describes a vertex input.
// Vertex inputs are read from a single interleaved
// buffer binding, Off bytes from the start of each
// vertex.
// The meaning of the Nr field is shader-specific.
type VertexIn struct {
	Format VertexFmt
	Off    int
	Nr     int
}

// VertexLayout describes the layout of interleaved
// vertex data.
// Consecutive vertices are fetched Stride bytes apart.
type VertexLayout struct {
	Stride int
	Input  []VertexIn
}

// Topology is the type of primitive topologies,
// which determines how vertex data is assembled.
type Topology int

// Primitive topologies.
const (
	TPoint Topology = iota
	TLine
	TLnStrip
	TTriangle
	TTriStrip
)

// IndexFmt describes the format of index buffer data.
type IndexFmt int

// Index formats.
const (
	Index16 IndexFmt = 2
	Index32 IndexFmt = 4
)

// Viewport defines the bounds of a viewport.
type Viewport struct {
	X, Y, Width, Height, Znear, Zfar float32
}

// Scissor defines a scissor rectangle.
type Scissor struct {
	X, Y, Width, Height int
}

// Cullmode is the type of cull modes, which
// determines primitive culling based on triangle
// facing direction.
type CullMode int

// Cull modes.
const (
	CNone CullMode = iota
	CFront
	CBack
)

// FillMode is the type of triangle fill modes, which
// determines the final rasterization of triangles.
type FillMode int

// Triangle fill modes.
const (
	FFill FillMode = iota
	FLines
)

// RasterState defines the rasterization state of a
// graphics pipeline.
type RasterState struct {
	// Winding order is either clockwise or counter-clockwise.
	Clockwise bool
	Cull      CullMode
	Fill      FillMode
	// LineWidth is the width of line primitives.
	// Values other than 1 require Limits.WideLines.
	// Zero is treated as 1.
	LineWidth float32
}

// CmpFunc is the type of comparison functions.
type CmpFunc int

// Comparison functions.
const (
	CNever CmpFunc = iota
	CLess
	CEqual
	CLessEqual
	CGreater
	CNotEqual
	CGreaterEqual
	CAlways
)

// DSState defines the depth state of a graphics pipeline.
type DSState struct {
	// DepthTest enables the depth test.
	DepthTest bool
	// DepthWrite enables depth writes.
	DepthWrite bool
	DepthCmp   CmpFunc
}

// GraphState defines the combination of programmable and
// fixed stages of a graphics pipeline.
// Graphics pipelines are created from graphics states.
// The ColorFmt and DSFmt fields define the render targets
// that the pipeline is compatible with. DSFmt is ignored
// unless HasDS is set.
type GraphState struct {
	VertFunc ShaderFunc
	FragFunc ShaderFunc
	Desc     DescTable
	Vertex   VertexLayout
	Topology Topology
	Raster   RasterState
	DS       DSState
	ColorFmt []PixelFmt
	DSFmt    PixelFmt
	HasDS    bool
}

// Pipeline is the interface that defines a GPU pipeline.
type Pipeline interface {
	Destroyer
}

// Usage is a mask indicating valid uses for a resource.
type Usage int

// Usage flags for Buffer and Image.
const (
	// The resource can provide constant data for shaders.
	// Valid only for Buffer.
	UShaderConst Usage = 1 << iota
	// The resource can be sampled in shaders.
	// Valid only for Image.
	UShaderSample
	// The resource can provide vertex data for draw calls.
	// Valid only for Buffer.
	UVertexData
	// The resource can provide index data for draw calls.
	// Valid only for Buffer.
	UIndexData
	// The resource can be used as render target.
	// Valid only for Image.
	URenderTarget
	// The resource can be the source of copy commands.
	UCopySrc
	// The resource can be the destination of copy commands.
	UCopyDst
	// The resource can be used for any purpose.
	UGeneric Usage = 1<<iota - 1
)

// Buffer is the interface that defines a GPU buffer.
// The size of the buffer is fixed. When a larger buffer
// is necessary, a new one must be created and the data
// must be copied explicitly.
type Buffer interface {
	Destroyer

	// Visible returns whether the buffer is host visible.
	// Non-visible memory cannot be accessed by the CPU.
	Visible() bool

	// Bytes returns a slice of length Cap referring to the
	// underlying data. If the buffer is not host visible,
	// it returns nil instead.
	// The slice is valid for the lifetime of the buffer.
	Bytes() []byte

	// Cap returns the capacity of the buffer in bytes,
	// which may be greater than the size requested during
	// buffer creation.
	// This value is immutable.
	Cap() int64
}

// PixelFmt describes the format of a pixel.
type PixelFmt int

// Pixel formats.
const (
	// Color, 8-bit channels.
	RGBA8un PixelFmt = iota
	RGBA8sRGB
	BGRA8un
	BGRA8sRGB
	// Color, 32-bit channels.
	RGBA32f
	// Depth/Stencil.
	D16un
	D32f
	D24unS8ui
	D32fS8ui
)

// IsDS returns whether f is a depth/stencil format.
func (f PixelFmt) IsDS() bool { return f >= D16un && f <= D32fS8ui }

// Size returns the size of a pixel of format f in bytes.
func (f PixelFmt) Size() int {
	switch f {
	case D16un:
		return 2
	case RGBA32f:
		return 16
	case D32fS8ui:
		return 8
	default:
		return 4
	}
}

// Dim3D is a three-dimensional size.
type Dim3D struct {
	Width, Height, Depth int
}

// Off3D is a three-dimensional offset.
type Off3D struct {
	X, Y, Z int
}

// Image is the interface that defines a GPU image.
// Direct access to image memory is not provided, so copying
// data from the CPU to an image resource requires the use
// of a staging buffer.
type Image interface {
	Destroyer

	// NewView creates a new image view.
	// Image views represent a typed view of image storage.
	// All views created from a given image must be
	// destroyed before the image itself is destroyed.
	NewView(typ ViewType, layer, layers, level, levels int) (ImageView, error)
}

// ViewType is the type of a resource view.
type ViewType int

// View types.
const (
	IView2D ViewType = iota
	IViewCube
	IView2DArray
)

// ImageView is the interface that defines a typed view of
// an Image resource.
type ImageView interface {
	Destroyer
}

// Filter is the type of sampler filters.
type Filter int

// Filters.
const (
	FNearest Filter = iota
	FLinear
	// FNoMipmap forces mip level 0 to be used.
	// It is only valid as the mip filter of a sampler.
	FNoMipmap
)

// AddrMode is the type of sampler address modes.
type AddrMode int

// Address modes.
const (
	AWrap AddrMode = iota
	AMirror
	AClamp
)

// Sampler is the interface that defines an image sampler.
type Sampler interface {
	Destroyer
}

// Sampling describes image sampler state.
// MaxAniso values greater than 1 enable anisotropic
// filtering.
type Sampling struct {
	Min      Filter
	Mag      Filter
	Mipmap   Filter
	AddrU    AddrMode
	AddrV    AddrMode
	AddrW    AddrMode
	MaxAniso int
	MinLOD   float32
	MaxLOD   float32
}

// Limits describes implementation limits.
// These may vary across drivers and devices.
type Limits struct {
	// Maximum width and height of 2D images.
	MaxImage2D int
	// Maximum number of layers in an image.
	MaxLayers int

	// Maximum number of descriptor heaps in a
	// descriptor table.
	MaxDescHeaps int
	// Maximum range of constant descriptors.
	MaxDConstantRange int64
	// Required alignment of constant buffer ranges.
	ConstantAlign int64
	// Maximum size of push constant data.
	MaxPushConstants int

	// Maximum number of color render targets.
	MaxColorTargets int
	// Maximum width/height for render targets.
	MaxRenderSize [2]int
	// Maximum number of viewports.
	MaxViewports int

	// Maximum number of vertex inputs in a
	// vertex shader.
	MaxVertexIn int

	// Maximum sampler anisotropy.
	MaxAniso int
	// WideLines reports whether line widths other
	// than 1 are supported.
	WideLines bool
}
