package webgpu

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

func textureFormat(f gpu.Format) wgpu.TextureFormat {
	switch f {
	case gpu.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case gpu.FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gpu.FormatR32Uint:
		return wgpu.TextureFormatR32Uint
	case gpu.FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	}
	return wgpu.TextureFormatUndefined
}

func fromTextureFormat(f wgpu.TextureFormat) gpu.Format {
	switch f {
	case wgpu.TextureFormatBGRA8Unorm:
		return gpu.FormatBGRA8Unorm
	case wgpu.TextureFormatRGBA8Unorm:
		return gpu.FormatRGBA8Unorm
	case wgpu.TextureFormatR32Uint:
		return gpu.FormatR32Uint
	case wgpu.TextureFormatDepth32Float:
		return gpu.FormatDepth32Float
	}
	return gpu.FormatUndefined
}

func textureUsage(u gpu.TextureUsage) wgpu.TextureUsage {
	out := wgpu.TextureUsageCopyDst
	if u&(gpu.TextureUsageRenderTarget|gpu.TextureUsageDepthStencil) != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&gpu.TextureUsageShaderResource != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.TextureUsageCopySource != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	return out
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	if u&gpu.BufferUsageReadback != 0 {
		// Mappable buffers may only be copy destinations.
		return wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	}
	out := wgpu.BufferUsageCopyDst
	if u&gpu.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&gpu.BufferUsageConstant != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	return out
}

func compareFunction(c gpu.CompareFunc) wgpu.CompareFunction {
	switch c {
	case gpu.CompareLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.CompareEqual:
		return wgpu.CompareFunctionEqual
	}
	return wgpu.CompareFunctionAlways
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullBack:
		return wgpu.CullModeBack
	case gpu.CullFront:
		return wgpu.CullModeFront
	}
	return wgpu.CullModeNone
}

func vertexFormat(components uint32) wgpu.VertexFormat {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32
	case 2:
		return wgpu.VertexFormatFloat32x2
	case 3:
		return wgpu.VertexFormatFloat32x3
	}
	return wgpu.VertexFormatFloat32x4
}

func vertexBufferLayouts(l gpu.VertexLayout) []wgpu.VertexBufferLayout {
	if l.Stride == 0 {
		return nil
	}
	attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
	for i, a := range l.Attributes {
		attrs[i] = wgpu.VertexAttribute{
			Format:         vertexFormat(a.Components),
			Offset:         uint64(a.Offset),
			ShaderLocation: a.Location,
		}
	}
	return []wgpu.VertexBufferLayout{{
		ArrayStride: uint64(l.Stride),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}}
}

func shaderStage(pixelOnly bool) wgpu.ShaderStage {
	if pixelOnly {
		return wgpu.ShaderStageFragment
	}
	return wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
}

// alphaBlend is straight alpha over the destination.
var alphaBlend = &wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorSrcAlpha,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
}
