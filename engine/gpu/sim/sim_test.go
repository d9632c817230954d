package sim

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newList(t *testing.T, d *Device) (gpu.CommandAllocator, gpu.CommandList) {
	t.Helper()
	alloc, err := d.CreateCommandAllocator()
	require.NoError(t, err)
	cl, err := d.CreateCommandList("test")
	require.NoError(t, err)
	return alloc, cl
}

func TestAllocatorResetWhileInFlight(t *testing.T) {
	d := NewDevice(WithLatency(20 * time.Millisecond))
	defer d.Release()

	alloc, cl := newList(t, d)
	fence, err := d.CreateFence(0)
	require.NoError(t, err)

	require.NoError(t, cl.Reset(alloc))
	require.NoError(t, cl.Close())
	require.NoError(t, d.Queue().Execute(cl))
	require.NoError(t, d.Queue().Signal(fence, 1))

	assert.ErrorIs(t, alloc.Reset(), gpu.ErrAllocatorInUse)

	ev := gpu.NewEvent()
	require.NoError(t, fence.SetEventOnCompletion(1, ev))
	require.NoError(t, ev.Wait(time.Second))
	assert.NoError(t, alloc.Reset())
}

func TestBarrierValidation(t *testing.T) {
	d := NewDevice()
	defer d.Release()

	tex, err := d.CreateTexture(gpu.TextureDesc{
		Label: "rt", Width: 4, Height: 4, Format: gpu.FormatRGBA8Unorm,
		Usage: gpu.TextureUsageRenderTarget, InitialState: gpu.StatePresent,
	})
	require.NoError(t, err)

	alloc, cl := newList(t, d)
	require.NoError(t, cl.Reset(alloc))
	cl.ResourceBarrier(gpu.Barrier{Resource: tex, Before: gpu.StatePresent, After: gpu.StateRenderTarget})
	cl.ResourceBarrier(gpu.Barrier{Resource: tex, Before: gpu.StatePresent, After: gpu.StateCopySource})
	require.NoError(t, cl.Close())
	require.NoError(t, d.Queue().Execute(cl))
	d.Idle()

	v := d.Violations()
	require.Len(t, v, 1)
	assert.ErrorIs(t, v[0], gpu.ErrInvalidState)
	assert.Equal(t, gpu.StateCopySource, d.State(tex))
}

func TestClearAndCopyReadback(t *testing.T) {
	d := NewDevice()
	defer d.Release()

	tex, err := d.CreateTexture(gpu.TextureDesc{
		Label: "ids", Width: 3, Height: 2, Format: gpu.FormatR32Uint,
		Usage: gpu.TextureUsageRenderTarget | gpu.TextureUsageCopySource, InitialState: gpu.StateCopySource,
	})
	require.NoError(t, err)
	fp := gpu.ReadbackFootprint(3, 2, gpu.FormatR32Uint)
	buf, err := d.CreateBuffer(gpu.BufferDesc{Label: "rb", Size: fp.Size(), Usage: gpu.BufferUsageReadback})
	require.NoError(t, err)

	alloc, cl := newList(t, d)
	require.NoError(t, cl.Reset(alloc))
	cl.ResourceBarrier(gpu.Barrier{Resource: tex, Before: gpu.StateCopySource, After: gpu.StateRenderTarget})
	cl.BeginPass(gpu.PassDesc{Color: []gpu.ColorAttachment{{Target: tex, Clear: true, ClearUint: 9}}})
	cl.EndPass()
	cl.ResourceBarrier(gpu.Barrier{Resource: tex, Before: gpu.StateRenderTarget, After: gpu.StateCopySource})
	cl.CopyTextureToBuffer(tex, buf, fp)
	require.NoError(t, cl.Close())
	require.NoError(t, d.Queue().Execute(cl))
	d.Idle()

	assert.Empty(t, d.Violations())
	out := make([]byte, fp.Size())
	require.NoError(t, buf.Read(0, out))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(out[0:]))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(out[fp.RowPitch+8:]))
	assert.Zero(t, binary.LittleEndian.Uint32(out[12:]), "padding past the row is untouched")

	st := d.Stats()
	assert.Equal(t, 1, st.Clears)
	assert.Equal(t, 1, st.Copies)
	assert.Equal(t, 2, st.Barriers)
}

func TestDrawHookAndPassValidation(t *testing.T) {
	var draws []Draw
	d := NewDevice(WithDrawHook(func(dr Draw) { draws = append(draws, dr) }))
	defer d.Release()

	rs, err := d.CreateRootSignature(gpu.RootSignatureDesc{Params: []gpu.RootParam{{Kind: gpu.RootParamConstants, Size: 16}}})
	require.NoError(t, err)
	ps, err := d.CreatePipelineState(gpu.PipelineDesc{Label: "p", RootSignature: rs, Vertex: gpu.ShaderSource{Name: "vs", Code: "x"}})
	require.NoError(t, err)
	depth, err := d.CreateTexture(gpu.TextureDesc{Label: "depth", Width: 2, Height: 2, Format: gpu.FormatDepth32Float, InitialState: gpu.StateShaderResource})
	require.NoError(t, err)

	alloc, cl := newList(t, d)
	require.NoError(t, cl.Reset(alloc))
	cl.BeginPass(gpu.PassDesc{Depth: &gpu.DepthAttachment{Target: depth, Clear: true, ClearDepth: 1}})
	cl.SetRootSignature(rs)
	cl.SetPipelineState(ps)
	cl.SetRootConstants(0, []byte{1, 2, 3, 4})
	cl.DrawIndexedInstanced(6, 3, 0, 0, 5)
	cl.EndPass()
	require.NoError(t, cl.Close())
	require.NoError(t, d.Queue().Execute(cl))
	d.Idle()

	require.Len(t, draws, 1)
	assert.Equal(t, "p", draws[0].Pipeline)
	assert.Equal(t, uint32(3), draws[0].InstanceCount)
	assert.Equal(t, uint32(5), draws[0].StartInstance)
	assert.Equal(t, []byte{1, 2, 3, 4}, draws[0].Constants[0])
	require.Len(t, d.Violations(), 1, "depth attachment was still in shader-resource")
}

func TestPipelineCompileFailure(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	rs, err := d.CreateRootSignature(gpu.RootSignatureDesc{})
	require.NoError(t, err)
	_, err = d.CreatePipelineState(gpu.PipelineDesc{Label: "bad", RootSignature: rs, Vertex: gpu.ShaderSource{Name: "vs"}})
	assert.ErrorIs(t, err, gpu.ErrShaderCompile)
}

func TestSwapChainPresentAdvancesAndValidatesTearing(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	sc, err := d.CreateSwapChain(gpu.SwapChainDesc{Width: 4, Height: 4, BufferCount: 3, Format: gpu.FormatBGRA8Unorm})
	require.NoError(t, err)

	assert.Equal(t, 0, sc.CurrentBackBufferIndex())
	require.NoError(t, sc.Present(1, 0))
	assert.Equal(t, 1, sc.CurrentBackBufferIndex())
	assert.ErrorIs(t, sc.Present(0, gpu.PresentAllowTearing), gpu.ErrInvalidState)
	d.Idle()
	assert.Equal(t, 1, d.Stats().Presents)
	assert.Empty(t, d.Violations())
}

func TestClosedListRejectsExecuteWhileOpen(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	alloc, cl := newList(t, d)
	require.NoError(t, cl.Reset(alloc))
	assert.ErrorIs(t, d.Queue().Execute(cl), gpu.ErrInvalidState)
	assert.ErrorIs(t, cl.Reset(alloc), gpu.ErrInvalidState)
	require.NoError(t, cl.Close())
	assert.ErrorIs(t, cl.Close(), gpu.ErrInvalidState)
}

func TestWriteTextureLandsOnTimeline(t *testing.T) {
	d := NewDevice()
	defer d.Release()

	tex, err := d.CreateTexture(gpu.TextureDesc{
		Label: "albedo", Width: 2, Height: 1, Format: gpu.FormatRGBA8Unorm,
		Usage: gpu.TextureUsageShaderResource, InitialState: gpu.StateShaderResource,
	})
	require.NoError(t, err)

	assert.Error(t, d.Queue().WriteTexture(tex, make([]byte, 4)))

	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[4:], 0xAABBCCDD)
	require.NoError(t, d.Queue().WriteTexture(tex, data))
	d.Idle()
	assert.Equal(t, uint32(0xAABBCCDD), tex.(*Texture).Uint32(1, 0))
	assert.Zero(t, tex.(*Texture).Uint32(0, 0))
}
