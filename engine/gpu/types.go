// Package gpu defines the backend-neutral command recording model used by the frame
// pipeline: devices, queues, command allocators and lists, fences, explicit resource
// state barriers, swap chains and descriptor heaps.
//
// Backends (engine/gpu/webgpu for hardware, engine/gpu/sim for tests) implement the
// interfaces in device.go. Everything above this package records against these types
// only, so the frame algorithm is identical on every backend.
package gpu

import "fmt"

// ResourceState is the usage state a GPU resource is in when the next recorded command executes.
type ResourceState uint32

const (
	StateCommon ResourceState = iota
	StatePresent
	StateRenderTarget
	StateDepthWrite
	StateDepthRead
	StateShaderResource
	StateCopySource
	StateCopyDest
	StateGenericRead
)

var resourceStateNames = [...]string{
	StateCommon:         "common",
	StatePresent:        "present",
	StateRenderTarget:   "render-target",
	StateDepthWrite:     "depth-write",
	StateDepthRead:      "depth-read",
	StateShaderResource: "shader-resource",
	StateCopySource:     "copy-source",
	StateCopyDest:       "copy-dest",
	StateGenericRead:    "generic-read",
}

func (s ResourceState) String() string {
	if int(s) < len(resourceStateNames) {
		return resourceStateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", uint32(s))
}

// Barrier is a single resource state transition recorded into a command list.
type Barrier struct {
	Resource Resource
	Before   ResourceState
	After    ResourceState
}

// Format identifies a texel format.
type Format int

const (
	FormatUndefined Format = iota
	FormatBGRA8Unorm
	FormatRGBA8Unorm
	FormatR32Uint
	FormatDepth32Float
)

// BytesPerPixel returns the texel size of f in bytes.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatBGRA8Unorm, FormatRGBA8Unorm, FormatR32Uint, FormatDepth32Float:
		return 4
	}
	return 0
}

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatDepth32Float
}

func (f Format) String() string {
	switch f {
	case FormatBGRA8Unorm:
		return "bgra8unorm"
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatR32Uint:
		return "r32uint"
	case FormatDepth32Float:
		return "depth32float"
	}
	return "undefined"
}

// TextureUsage is a bit set of the ways a texture may be used.
type TextureUsage uint32

const (
	TextureUsageRenderTarget TextureUsage = 1 << iota
	TextureUsageDepthStencil
	TextureUsageShaderResource
	TextureUsageCopySource
	TextureUsageCopyDest
)

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label        string
	Width        uint32
	Height       uint32
	Format       Format
	Usage        TextureUsage
	InitialState ResourceState
}

// BufferUsage is a bit set of the ways a buffer may be used.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageConstant
	BufferUsageStorage
	BufferUsageCopyDest
	// BufferUsageReadback marks a CPU-readable copy destination.
	BufferUsageReadback
)

// BufferDesc describes a linear buffer.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// CompareFunc is a depth comparison function.
type CompareFunc int

const (
	CompareLess CompareFunc = iota
	CompareLessEqual
	CompareEqual
	CompareAlways
)

// Viewport is the rasterizer viewport in pixels.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is a scissor rectangle in pixels.
type Rect struct {
	X, Y, Width, Height uint32
}

// ColorAttachment binds a render target for the duration of a pass.
type ColorAttachment struct {
	Target     Texture
	Clear      bool
	ClearColor [4]float32
	// ClearUint is used instead of ClearColor for integer formats.
	ClearUint uint32
}

// DepthAttachment binds a depth buffer for the duration of a pass.
type DepthAttachment struct {
	Target     Texture
	Clear      bool
	ClearDepth float32
	// ReadOnly binds the depth buffer for testing only, in the depth-read state.
	ReadOnly bool
}

// PassDesc describes the attachments of a render pass. A pass with no color
// attachments is depth-only.
type PassDesc struct {
	Label string
	Color []ColorAttachment
	Depth *DepthAttachment
}

// PresentFlags modify swap chain presentation.
type PresentFlags uint32

const (
	// PresentAllowTearing presents immediately even mid-scanout. Only valid with sync interval 0.
	PresentAllowTearing PresentFlags = 1 << iota
)

// SwapChainDesc describes the presentation buffers.
type SwapChainDesc struct {
	Width       uint32
	Height      uint32
	BufferCount int
	Format      Format
}

// VertexAttribute is one attribute in an interleaved vertex stream.
type VertexAttribute struct {
	Location uint32
	Offset   uint32
	// Components is the number of float32 components (1-4).
	Components uint32
}

// VertexLayout describes the single interleaved vertex stream a pipeline consumes.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// ShaderSource is an opaque shader program in the backend's source language.
type ShaderSource struct {
	Name  string
	Code  string
	Entry string
}

// PipelineDesc describes an immutable pipeline state object.
type PipelineDesc struct {
	Label         string
	RootSignature RootSignature
	Vertex        ShaderSource
	// Pixel is nil for depth-only pipelines.
	Pixel        *ShaderSource
	VertexLayout VertexLayout
	ColorFormats []Format
	DepthFormat  Format
	DepthWrite   bool
	DepthCompare CompareFunc
	Cull         CullMode
	Blend        bool
}

// RootParamKind distinguishes inline constants from descriptor tables.
type RootParamKind int

const (
	RootParamConstants RootParamKind = iota
	RootParamTable
)

// RootParam is one slot in a root signature.
type RootParam struct {
	Kind RootParamKind
	// Size is the constant block size in bytes for RootParamConstants.
	Size uint32
	// Count is the descriptor count for RootParamTable.
	Count uint32
	// Descriptor is the kind of resource every descriptor in the table refers to.
	Descriptor DescriptorKind
	// Pixel limits visibility to the pixel stage; otherwise all stages see the parameter.
	Pixel bool
}

// DescriptorKind is the kind of resource a descriptor table refers to.
type DescriptorKind int

const (
	DescriptorTexture DescriptorKind = iota
	// DescriptorDepthTexture is sampled with a comparison sampler.
	DescriptorDepthTexture
	DescriptorStorageBuffer
)

// RootSignatureDesc lists the parameters a pipeline binds.
type RootSignatureDesc struct {
	Label  string
	Params []RootParam
}
