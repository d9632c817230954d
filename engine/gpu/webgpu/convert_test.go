package webgpu

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestTextureFormatRoundTrip(t *testing.T) {
	for _, f := range []gpu.Format{gpu.FormatBGRA8Unorm, gpu.FormatRGBA8Unorm, gpu.FormatR32Uint, gpu.FormatDepth32Float} {
		assert.Equal(t, f, fromTextureFormat(textureFormat(f)), f.String())
	}
	assert.Equal(t, wgpu.TextureFormatUndefined, textureFormat(gpu.FormatUndefined))
	assert.Equal(t, gpu.FormatUndefined, fromTextureFormat(wgpu.TextureFormatRGBA16Float))
}

func TestReadbackBuffersAreOnlyCopyTargets(t *testing.T) {
	assert.Equal(t, wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst, bufferUsage(gpu.BufferUsageReadback|gpu.BufferUsageStorage))
	u := bufferUsage(gpu.BufferUsageVertex | gpu.BufferUsageIndex)
	assert.NotZero(t, u&wgpu.BufferUsageVertex)
	assert.NotZero(t, u&wgpu.BufferUsageIndex)
	assert.Zero(t, u&wgpu.BufferUsageMapRead)
}

func TestTextureUsage(t *testing.T) {
	u := textureUsage(gpu.TextureUsageDepthStencil | gpu.TextureUsageCopySource)
	assert.NotZero(t, u&wgpu.TextureUsageRenderAttachment)
	assert.NotZero(t, u&wgpu.TextureUsageCopySrc)
	assert.Zero(t, u&wgpu.TextureUsageTextureBinding)
}

func TestLayoutEntries(t *testing.T) {
	constants := layoutEntries(gpu.RootParam{Kind: gpu.RootParamConstants, Size: 64})
	if assert.Len(t, constants, 1) {
		assert.True(t, constants[0].Buffer.HasDynamicOffset)
		assert.Equal(t, uint64(64), constants[0].Buffer.MinBindingSize)
	}

	shadows := layoutEntries(gpu.RootParam{Kind: gpu.RootParamTable, Count: 3, Descriptor: gpu.DescriptorDepthTexture, Pixel: true})
	if assert.Len(t, shadows, 4) {
		assert.Equal(t, wgpu.TextureSampleTypeDepth, shadows[2].Texture.SampleType)
		assert.Equal(t, uint32(3), shadows[3].Binding)
		assert.Equal(t, wgpu.SamplerBindingTypeComparison, shadows[3].Sampler.Type)
		assert.Equal(t, wgpu.ShaderStageFragment, shadows[0].Visibility)
	}

	storage := layoutEntries(gpu.RootParam{Kind: gpu.RootParamTable, Count: 2, Descriptor: gpu.DescriptorStorageBuffer})
	assert.Len(t, storage, 2)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, storage[1].Buffer.Type)
}

func TestDepthAndCullMapping(t *testing.T) {
	assert.Equal(t, wgpu.CompareFunctionLessEqual, compareFunction(gpu.CompareLessEqual))
	assert.Equal(t, wgpu.CompareFunctionAlways, compareFunction(gpu.CompareAlways))
	assert.Equal(t, wgpu.CullModeNone, cullMode(gpu.CullNone))
	assert.Equal(t, wgpu.CullModeBack, cullMode(gpu.CullBack))
	assert.Nil(t, vertexBufferLayouts(gpu.VertexLayout{}))
	l := vertexBufferLayouts(gpu.VertexLayout{Stride: 32, Attributes: []gpu.VertexAttribute{{Location: 1, Offset: 12, Components: 3}}})
	if assert.Len(t, l, 1) {
		assert.Equal(t, wgpu.VertexFormatFloat32x3, l[0].Attributes[0].Format)
		assert.Equal(t, uint64(12), l[0].Attributes[0].Offset)
	}
}

func TestAwaitMapSeesCallbackFromPollGoroutine(t *testing.T) {
	mapped := make(chan wgpu.BufferMapAsyncStatus, 1)
	var once sync.Once
	var wg sync.WaitGroup
	polls := 0
	status := awaitMap(mapped, func() {
		polls++
		once.Do(func() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				mapped <- wgpu.BufferMapAsyncStatusSuccess
			}()
		})
	})
	wg.Wait()
	assert.Equal(t, wgpu.BufferMapAsyncStatusSuccess, status)
	assert.GreaterOrEqual(t, polls, 1)
}

func TestAwaitMapReturnsWithoutPollingWhenAlreadyMapped(t *testing.T) {
	mapped := make(chan wgpu.BufferMapAsyncStatus, 1)
	failed := wgpu.BufferMapAsyncStatusSuccess + 1
	mapped <- failed
	status := awaitMap(mapped, func() { t.Fatal("polled after the callback fired") })
	assert.Equal(t, failed, status)
}
