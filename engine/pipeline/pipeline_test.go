package pipeline

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSources serves vertex programs from vs and pixel programs from ps.
type mapSources struct {
	vs map[string]string
	ps map[string]string
}

func (m mapSources) Vertex(name string) (gpu.ShaderSource, error) {
	return gpu.ShaderSource{Name: name, Code: m.vs[name], Entry: "vs_main"}, nil
}

func (m mapSources) Pixel(name string) (gpu.ShaderSource, bool, error) {
	code, ok := m.ps[name]
	if !ok {
		return gpu.ShaderSource{}, false, nil
	}
	return gpu.ShaderSource{Name: name, Code: code, Entry: "fs_main"}, true, nil
}

func goodSources() mapSources {
	return mapSources{
		vs: map[string]string{"depth": "v", "depth_alpha": "v", "color": "v", "color_alpha": "v", "object_id": "v"},
		ps: map[string]string{"depth_alpha": "p", "color": "p", "color_alpha": "p", "object_id": "p"},
	}
}

func TestKeySetDeduplicatesWithoutCulling(t *testing.T) {
	assert.Len(t, KeySet(true).Keys(), 11)
	assert.Len(t, KeySet(false).Keys(), 8)

	s := KeySet(true)
	assert.Equal(t, gpu.CompareLess, s.Opaque.DepthCompare())
	assert.Equal(t, gpu.CompareLessEqual, s.EarlyZOpaque.DepthCompare())
	assert.False(t, s.Transparent.DepthWrite)
	assert.Equal(t, gpu.CullNone, s.DepthAlphaCut.Cull)
}

func TestPassLayoutsAndVertexLayouts(t *testing.T) {
	assert.Equal(t, LayoutSimple, PassDepth.Layout())
	assert.Equal(t, LayoutSimple, PassObjectID.Layout())
	assert.Equal(t, LayoutAlphaTest, PassDepthAlphaCut.Layout())
	assert.Equal(t, LayoutMain, PassColor.Layout())

	assert.Len(t, PassDepth.VertexLayout().Attributes, 1)
	assert.Len(t, PassDepthAlphaCut.VertexLayout().Attributes, 3)
}

func newLibrary(t *testing.T, dev gpu.Device) *Library {
	t.Helper()
	layouts, err := NewLayouts(dev, 2)
	require.NoError(t, err)
	return NewLibrary(dev, layouts, KeySet(true).Keys())
}

func TestBuildAndGet(t *testing.T) {
	dev := sim.NewDevice()
	defer dev.Release()
	lib := newLibrary(t, dev)

	_, err := lib.Get(KeySet(true).Opaque)
	assert.ErrorIs(t, err, ErrUnknownKey)

	require.NoError(t, lib.Build(goodSources()))
	assert.Equal(t, uint64(1), lib.Generation())
	for _, k := range KeySet(true).Keys() {
		ps, err := lib.Get(k)
		require.NoError(t, err, k.String())
		assert.Equal(t, k.String(), ps.Label())
	}
}

func TestReloadKeepsLastGood(t *testing.T) {
	dev := sim.NewDevice()
	defer dev.Release()
	lib := newLibrary(t, dev)
	require.NoError(t, lib.Build(goodSources()))

	key := KeySet(true).Opaque
	before, err := lib.Get(key)
	require.NoError(t, err)

	broken := goodSources()
	broken.ps["color"] = ""
	err = lib.Reload(broken)
	require.ErrorIs(t, err, ErrCompile)
	assert.ErrorIs(t, err, gpu.ErrShaderCompile)

	after, err := lib.Get(key)
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Equal(t, uint64(1), lib.Generation())

	require.NoError(t, lib.Reload(goodSources()))
	assert.Equal(t, uint64(2), lib.Generation())
	replaced, err := lib.Get(key)
	require.NoError(t, err)
	assert.NotSame(t, before, replaced)
}

func TestLayoutsPushDifferentConstantBlocks(t *testing.T) {
	pushed := make(chan map[int][]byte, 4)
	dev := sim.NewDevice(sim.WithDrawHook(func(d sim.Draw) { pushed <- d.Constants }))
	defer dev.Release()
	lib := newLibrary(t, dev)
	require.NoError(t, lib.Build(goodSources()))

	depth, err := dev.CreateTexture(gpu.TextureDesc{
		Label: "depth", Width: 4, Height: 4, Format: gpu.FormatDepth32Float, InitialState: gpu.StateDepthWrite,
	})
	require.NoError(t, err)
	alloc, _ := dev.CreateCommandAllocator()
	cl, _ := dev.CreateCommandList("test")
	require.NoError(t, cl.Reset(alloc))

	c := FrameConstants{LightCount: 3}
	cl.BeginPass(gpu.PassDesc{Depth: &gpu.DepthAttachment{Target: depth, Clear: true, ClearDepth: 1}})
	for _, k := range []Key{KeySet(true).DepthOpaque, KeySet(true).EarlyZOpaque} {
		layout := lib.Layouts().For(k.Pass.Layout())
		ps, err := lib.Get(k)
		require.NoError(t, err)
		layout.Bind(cl)
		layout.SetConstants(cl, c)
		layout.SetMaterial(cl, gpu.DescriptorRange{})
		layout.SetLights(cl, gpu.DescriptorRange{}, gpu.DescriptorRange{})
		cl.SetPipelineState(ps)
		cl.DrawIndexedInstanced(36, 1, 0, 0, 0)
	}
	cl.EndPass()
	require.NoError(t, cl.Close())
	require.NoError(t, dev.Queue().Execute(cl))
	dev.Idle()

	simple := <-pushed
	main := <-pushed
	assert.Len(t, simple[ParamConstants], viewProjSize)
	assert.Len(t, main[ParamConstants], FrameConstantsSize)
	assert.Empty(t, dev.Violations())

	select {
	case <-pushed:
		t.Fatal("unexpected extra draw")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestFrameConstantsMarshal(t *testing.T) {
	c := FrameConstants{LightCount: 3, ShadowCount: 2}
	c.ViewProj[0] = 1
	buf := c.Marshal()
	require.Len(t, buf, FrameConstantsSize)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, buf[0:4])
	assert.Equal(t, byte(3), buf[76])
	assert.Equal(t, byte(2), buf[92])
}
