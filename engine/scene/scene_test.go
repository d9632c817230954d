package scene

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu/sim"
	"github.com/Carmen-Shannon/oxy-frame/engine/light"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rig records single-pass command lists against a simulated device and keeps every draw.
type rig struct {
	dev     *sim.Device
	heap    *gpu.DescriptorHeap
	layouts pipeline.Layouts
	alloc   gpu.CommandAllocator
	cl      gpu.CommandList
	depth   gpu.Texture
	ps      gpu.PipelineState

	mu    sync.Mutex
	draws []sim.Draw
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{heap: gpu.NewDescriptorHeap("test", 64)}
	r.dev = sim.NewDevice(sim.WithDrawHook(func(d sim.Draw) {
		r.mu.Lock()
		r.draws = append(r.draws, d)
		r.mu.Unlock()
	}))
	t.Cleanup(r.dev.Release)

	var err error
	r.layouts, err = pipeline.NewLayouts(r.dev, 4)
	require.NoError(t, err)
	r.alloc, err = r.dev.CreateCommandAllocator()
	require.NoError(t, err)
	r.cl, err = r.dev.CreateCommandList("test")
	require.NoError(t, err)
	r.depth, err = r.dev.CreateTexture(gpu.TextureDesc{
		Label: "depth", Width: 8, Height: 8, Format: gpu.FormatDepth32Float,
		Usage: gpu.TextureUsageDepthStencil, InitialState: gpu.StateDepthWrite,
	})
	require.NoError(t, err)
	r.ps, err = r.dev.CreatePipelineState(gpu.PipelineDesc{
		Label:         "test",
		RootSignature: r.layouts.Main.RootSignature(),
		Vertex:        gpu.ShaderSource{Code: "v"},
	})
	require.NoError(t, err)
	return r
}

// record runs fn inside one depth pass with the main layout bound, executes the list
// and waits for it.
func (r *rig) record(t *testing.T, s Scene, fn func(cl gpu.CommandList, layout pipeline.PassLayout)) {
	t.Helper()
	require.NoError(t, r.cl.Reset(r.alloc))
	r.cl.SetDescriptorHeap(r.heap)
	r.layouts.Main.Bind(r.cl)
	s.SetShaderConstants(r.cl, r.layouts.Main, camera.NewCamera(camera.WithSize(8, 8)), 0)
	r.cl.BeginPass(gpu.PassDesc{Depth: &gpu.DepthAttachment{Target: r.depth, Clear: true, ClearDepth: 1}})
	r.cl.SetPipelineState(r.ps)
	fn(r.cl, r.layouts.Main)
	r.cl.EndPass()
	require.NoError(t, r.cl.Close())
	require.NoError(t, r.dev.Queue().Execute(r.cl))
	r.dev.Idle()
}

func testDescription() *Description {
	return &Description{
		Meshes: []MeshData{Cube("cube", 1), Quad("card", 1, 1)},
		Materials: []MaterialData{
			{Name: "red", Color: [4]uint8{255, 0, 0, 255}},
			{Name: "blue", Color: [4]uint8{0, 0, 255, 255}},
		},
	}
}

func TestSortBackToFront(t *testing.T) {
	order := []int{2, 5, 1}
	dist := func(i int) float32 { return float32(i) }

	SortBackToFront(order, dist)
	assert.Equal(t, []int{5, 2, 1}, order)

	SortBackToFront(order, dist)
	assert.Equal(t, []int{5, 2, 1}, order, "sorting a sorted order is a no-op")
}

func TestSortBackToFrontIsStable(t *testing.T) {
	order := []int{3, 1, 4, 2}
	same := func(int) float32 { return 7 }
	SortBackToFront(order, same)
	assert.Equal(t, []int{3, 1, 4, 2}, order)
}

func TestSortTransparentOnlyTouchesTransparent(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	desc.Objects = []ObjectData{
		{Name: "near", Mesh: "card", Material: "red", Category: CategoryTransparent, Position: [3]float32{0, 0, -2}},
		{Name: "cut-far", Mesh: "card", Material: "red", Category: CategoryAlphaCut, Position: [3]float32{0, 0, -30}},
		{Name: "cut-near", Mesh: "card", Material: "red", Category: CategoryAlphaCut, Position: [3]float32{0, 0, -1}},
		{Name: "far", Mesh: "card", Material: "red", Category: CategoryTransparent, Position: [3]float32{0, 0, -10}},
		{Name: "mid", Mesh: "card", Material: "red", Category: CategoryTransparent, Position: [3]float32{0, 0, -5}},
	}
	s, err := NewScene(r.dev, r.heap, desc)
	require.NoError(t, err)
	defer s.Release()

	var proj [16]float32
	proj[0], proj[5], proj[10], proj[15] = 1, 1, 1, 1
	view := camera.NewFixed([3]float32{0, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}, proj, 8, 8)

	assert.Equal(t, 3, s.SortTransparent(view))
	assert.Equal(t, []int{3, 4, 0}, s.TransparentOrder())

	s.SortTransparent(view)
	assert.Equal(t, []int{3, 4, 0}, s.TransparentOrder())

	// Alpha-cut objects keep arena order whatever their distance.
	r.record(t, s, func(cl gpu.CommandList, layout pipeline.PassLayout) {
		s.DrawCategory(cl, CategoryAlphaCut, TextureNone, layout, nil)
	})
	require.Len(t, r.draws, 1)
	assert.Equal(t, uint32(1), r.draws[0].StartInstance)
	assert.Equal(t, uint32(2), r.draws[0].InstanceCount)
}

func TestEmptyCategoryRecordsNoDraws(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	desc.Objects = []ObjectData{{Name: "a", Mesh: "cube", Material: "red", Category: CategoryStatic}}
	s, err := NewScene(r.dev, r.heap, desc)
	require.NoError(t, err)
	defer s.Release()

	var stats profiler.FrameStats
	r.record(t, s, func(cl gpu.CommandList, layout pipeline.PassLayout) {
		for _, c := range []Category{CategoryDynamic, CategoryTwoSided, CategoryAlphaCut, CategoryTransparent} {
			assert.Zero(t, s.DrawCategory(cl, c, TextureBind, layout, &stats), c.String())
		}
	})
	assert.Zero(t, r.dev.Stats().Draws)
	assert.Zero(t, stats.DrawCalls)
	assert.Empty(t, r.dev.Violations())
}

func TestDrawCategoryBatchesConsecutiveIndices(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	desc.Objects = []ObjectData{
		{Name: "0", Mesh: "cube", Material: "red", Category: CategoryDynamic},
		{Name: "1", Mesh: "cube", Material: "blue", Category: CategoryDynamic},
		{Name: "2", Mesh: "card", Material: "blue", Category: CategoryDynamic},
		{Name: "3", Mesh: "cube", Material: "blue", Category: CategoryStatic},
		{Name: "4", Mesh: "cube", Material: "blue", Category: CategoryDynamic},
	}
	s, err := NewScene(r.dev, r.heap, desc)
	require.NoError(t, err)
	defer s.Release()

	cases := []struct {
		name   string
		mode   TextureMode
		starts []uint32
		counts []uint32
	}{
		{"untextured merges by mesh", TextureNone, []uint32{0, 2, 4}, []uint32{2, 1, 1}},
		{"textured splits by material", TextureBind, []uint32{0, 1, 2, 4}, []uint32{1, 1, 1, 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r.draws = nil
			var stats profiler.FrameStats
			r.record(t, s, func(cl gpu.CommandList, layout pipeline.PassLayout) {
				n := s.DrawCategory(cl, CategoryDynamic, c.mode, layout, &stats)
				assert.Equal(t, len(c.starts), n)
			})
			require.Len(t, r.draws, len(c.starts))
			for i, d := range r.draws {
				assert.Equal(t, c.starts[i], d.StartInstance)
				assert.Equal(t, c.counts[i], d.InstanceCount)
			}
			assert.Equal(t, 4, stats.Instances)
			assert.Equal(t, len(c.starts), stats.CategoryDraws[CategoryDynamic])
			assert.Empty(t, r.dev.Violations())
		})
	}
}

func TestHiddenObjectsSplitBatches(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	for range 3 {
		desc.Objects = append(desc.Objects, ObjectData{Mesh: "cube", Material: "red", Category: CategoryStatic})
	}
	s, err := NewScene(r.dev, r.heap, desc)
	require.NoError(t, err)
	defer s.Release()

	s.Object(1).Visible = false
	r.record(t, s, func(cl gpu.CommandList, layout pipeline.PassLayout) {
		assert.Equal(t, 2, s.DrawCategory(cl, CategoryStatic, TextureNone, layout, nil))
	})
	assert.Equal(t, 2, r.dev.Stats().Instances)
}

func TestShadowCastersFirstAndRangeLength(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	desc.Objects = []ObjectData{{Mesh: "cube", Material: "red", Category: CategoryStatic}}
	point := light.NewLight(light.LightTypePoint, light.WithPosition(0, 3, 0))
	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0), light.WithCastsShadows(true))
	spot := light.NewLight(light.LightTypeSpot, light.WithPosition(0, 5, 0), light.WithDirection(0, -1, 0), light.WithCastsShadows(true))
	desc.Lights = []light.Light{point, sun, spot}

	s, err := NewScene(r.dev, r.heap, desc, WithSlots(2), WithShadowMapping(true, 16))
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, []light.Light{sun, spot, point}, s.Lights())
	assert.Equal(t, 0, sun.ShadowIndex())
	assert.Equal(t, 1, spot.ShadowIndex())
	assert.Equal(t, -1, point.ShadowIndex())
	require.Len(t, s.Shadows(), 2)

	for slot := range 2 {
		_, _, shadows := s.SlotRanges(slot)
		assert.Equal(t, 2, shadows.Count)
		res := r.heap.Range(shadows)
		assert.Same(t, s.Shadows()[0].Depth(slot).Resource(), res[0])
		assert.Same(t, s.Shadows()[1].Depth(slot).Resource(), res[1])
	}
}

func TestShadowMappingOffCreatesNoMaps(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	desc.Lights = []light.Light{light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true))}
	s, err := NewScene(r.dev, r.heap, desc)
	require.NoError(t, err)
	defer s.Release()

	assert.Empty(t, s.Shadows())
	_, _, shadows := s.SlotRanges(0)
	assert.Zero(t, shadows.Count)
}

func TestTooManyShadowCasters(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	for range 3 {
		desc.Lights = append(desc.Lights, light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true)))
	}
	_, err := NewScene(r.dev, r.heap, desc, WithShadowMapping(true, 8), WithMaxShadows(2))
	assert.ErrorContains(t, err, "exceed")
}

func TestUploadInstanceDataWritesIDsAndLights(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	desc.Objects = []ObjectData{
		{Mesh: "cube", Material: "red", Category: CategoryStatic},
		{Mesh: "cube", Material: "red", Category: CategoryDynamic},
	}
	desc.Lights = []light.Light{
		light.NewLight(light.LightTypePoint),
		light.NewLight(light.LightTypePoint, light.WithEnabled(false)),
	}
	s, err := NewScene(r.dev, r.heap, desc, WithSlots(2))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.UploadInstanceData(1))
	r.dev.Idle()

	instances, _, _ := s.SlotRanges(1)
	buf := r.heap.Range(instances)[0].(*sim.Buffer).Bytes()
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[64:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[pipeline.InstanceDataSize+64:]))

	var lightCount uint32
	r.ps, err = r.dev.CreatePipelineState(gpu.PipelineDesc{Label: "probe", RootSignature: r.layouts.Main.RootSignature(), Vertex: gpu.ShaderSource{Code: "v"}})
	require.NoError(t, err)
	require.NoError(t, r.cl.Reset(r.alloc))
	r.layouts.Main.Bind(r.cl)
	s.SetShaderConstants(r.cl, r.layouts.Main, camera.NewCamera(), 1)
	r.cl.BeginPass(gpu.PassDesc{Depth: &gpu.DepthAttachment{Target: r.depth}})
	r.cl.SetPipelineState(r.ps)
	s.DrawCategory(r.cl, CategoryStatic, TextureNone, r.layouts.Main, nil)
	r.cl.EndPass()
	require.NoError(t, r.cl.Close())
	require.NoError(t, r.dev.Queue().Execute(r.cl))
	r.dev.Idle()

	require.NotEmpty(t, r.draws)
	consts := r.draws[len(r.draws)-1].Constants[pipeline.ParamConstants]
	require.Len(t, consts, pipeline.FrameConstantsSize)
	lightCount = binary.LittleEndian.Uint32(consts[76:])
	assert.Equal(t, uint32(1), lightCount, "disabled lights are not uploaded")

	assert.Error(t, s.UploadInstanceData(2))
}

func TestUpdateAdvancesDynamicObjectsOnly(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	for i := range 5 {
		c := CategoryDynamic
		if i == 0 {
			c = CategoryStatic
		}
		desc.Objects = append(desc.Objects, ObjectData{Mesh: "cube", Material: "red", Category: c, Spin: [3]float32{0, 1, 0}})
	}
	s, err := NewScene(r.dev, r.heap, desc, WithUpdateWorkers(2, 2))
	require.NoError(t, err)
	defer s.Release()

	s.Update(0.5)
	assert.Zero(t, s.Object(0).Rotation[1])
	for i := 1; i < 5; i++ {
		assert.InDelta(t, 0.5, s.Object(i).Rotation[1], 1e-6)
	}
}

func TestUnknownReferencesFail(t *testing.T) {
	r := newRig(t)
	desc := testDescription()
	desc.Objects = []ObjectData{{Name: "x", Mesh: "sphere", Material: "red"}}
	_, err := NewScene(r.dev, r.heap, desc)
	assert.ErrorContains(t, err, `unknown mesh "sphere"`)

	desc.Objects = []ObjectData{{Name: "x", Mesh: "cube", Material: "gold"}}
	_, err = NewScene(r.dev, r.heap, desc)
	assert.ErrorContains(t, err, `unknown material "gold"`)
}

func TestDemoLoader(t *testing.T) {
	desc, err := DemoLoader{Cubes: 9}.Load(context.Background())
	require.NoError(t, err)

	r := newRig(t)
	r.heap = gpu.NewDescriptorHeap("demo", 128)
	s, err := NewScene(r.dev, r.heap, desc, WithSlots(3), WithShadowMapping(true, 32))
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, 9, s.Count(CategoryDynamic))
	assert.Equal(t, 3, s.Count(CategoryTransparent))
	assert.Equal(t, 4, s.Count(CategoryAlphaCut))
	assert.Len(t, s.Shadows(), 2)
	assert.Equal(t, -1, s.Lights()[2].ShadowIndex())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DemoLoader{}.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrimitives(t *testing.T) {
	cube := Cube("c", 2)
	assert.Len(t, cube.Vertices, 24)
	assert.Len(t, cube.Indices, 36)
	assert.InDelta(t, 1.7320508, cube.BoundingRadius(), 1e-5)

	plane := Plane("p", 10, 1)
	assert.Len(t, plane.Indices, 6)
	assert.Equal(t, [3]float32{0, 1, 0}, plane.Vertices[0].Normal)

	var buf [pipeline.VertexStride]byte
	v := Vertex{Position: [3]float32{1, 2, 3}, UV: [2]float32{0.5, 0.25}}
	v.Marshal(buf[:])
	assert.Equal(t, uint32(0x3e800000), binary.LittleEndian.Uint32(buf[28:]))
}

func TestCategoryNames(t *testing.T) {
	assert.Equal(t, "alpha-cut", CategoryAlphaCut.String())
	assert.Len(t, CategoryNames(), int(numCategories))
	assert.True(t, CategoryTwoSided.Opaque())
	assert.False(t, CategoryAlphaCut.Opaque())
}
