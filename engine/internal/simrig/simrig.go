// Package simrig assembles a simulated device, the embedded shaders, a built
// pipeline library and a loaded scene for pass-level tests.
package simrig

import (
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/barrier"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu/sim"
	"github.com/Carmen-Shannon/oxy-frame/engine/light"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/Carmen-Shannon/oxy-frame/engine/shader"
	"github.com/stretchr/testify/require"
)

// MaxShadows is the shadow table size the rig builds layouts and shaders with.
const MaxShadows = 4

// Rig is a ready-to-record test environment. Every executed draw is kept in order.
type Rig struct {
	Dev     *sim.Device
	Heap    *gpu.DescriptorHeap
	Layouts pipeline.Layouts
	Lib     *pipeline.Library
	Set     pipeline.Set
	Scene   scene.Scene
	Alloc   gpu.CommandAllocator
	List    gpu.CommandList
	Color   *barrier.Tracked[gpu.Texture]
	Depth   *barrier.Tracked[gpu.Texture]

	mu    sync.Mutex
	draws []sim.Draw
	hook  func(sim.Draw)
}

// Option adjusts a Rig before the scene is created.
type Option func(*config)

type config struct {
	culling   bool
	shadows   bool
	slots     int
	width     uint32
	height    uint32
	latency   time.Duration
	sceneOpts []scene.SceneBuilderOption
}

// WithCulling sets the backface culling configuration the key set is built for.
func WithCulling(on bool) Option { return func(c *config) { c.culling = on } }

// WithShadows enables shadow maps in the scene.
func WithShadows(on bool) Option { return func(c *config) { c.shadows = on } }

// WithSize sets the color and depth target size.
func WithSize(w, h uint32) Option { return func(c *config) { c.width, c.height = w, h } }

// WithLatency delays every executed list on the simulated GPU.
func WithLatency(d time.Duration) Option { return func(c *config) { c.latency = d } }

// WithSceneOptions appends options passed to scene.NewScene.
func WithSceneOptions(opts ...scene.SceneBuilderOption) Option {
	return func(c *config) { c.sceneOpts = append(c.sceneOpts, opts...) }
}

// New builds a rig around desc. The draw hook, if set, runs on the GPU timeline
// for every draw after it has been recorded.
func New(t *testing.T, desc *scene.Description, hook func(sim.Draw), opts ...Option) *Rig {
	t.Helper()
	cfg := config{culling: true, slots: 2, width: 64, height: 48}
	for _, o := range opts {
		o(&cfg)
	}

	r := &Rig{Heap: gpu.NewDescriptorHeap("rig", 256), hook: hook}
	r.Dev = sim.NewDevice(sim.WithLatency(cfg.latency), sim.WithDrawHook(func(d sim.Draw) {
		r.mu.Lock()
		r.draws = append(r.draws, d)
		h := r.hook
		r.mu.Unlock()
		if h != nil {
			h(d)
		}
	}))
	t.Cleanup(r.Dev.Release)

	var err error
	r.Layouts, err = pipeline.NewLayouts(r.Dev, MaxShadows)
	require.NoError(t, err)
	t.Cleanup(r.Layouts.Release)

	src, err := shader.NewLibrary(shader.WithMaxShadows(MaxShadows))
	require.NoError(t, err)
	r.Set = pipeline.KeySet(cfg.culling)
	r.Lib = pipeline.NewLibrary(r.Dev, r.Layouts, r.Set.Keys(), pipeline.WithColorFormat(gpu.FormatRGBA8Unorm))
	require.NoError(t, r.Lib.Build(src))
	t.Cleanup(r.Lib.Release)

	sceneOpts := append([]scene.SceneBuilderOption{
		scene.WithSlots(cfg.slots),
		scene.WithShadowMapping(cfg.shadows, 16),
		scene.WithMaxShadows(MaxShadows),
	}, cfg.sceneOpts...)
	r.Scene, err = scene.NewScene(r.Dev, r.Heap, desc, sceneOpts...)
	require.NoError(t, err)
	t.Cleanup(r.Scene.Release)

	r.Alloc, err = r.Dev.CreateCommandAllocator()
	require.NoError(t, err)
	r.List, err = r.Dev.CreateCommandList("rig")
	require.NoError(t, err)

	color, err := r.Dev.CreateTexture(gpu.TextureDesc{
		Label: "color", Width: cfg.width, Height: cfg.height, Format: gpu.FormatRGBA8Unorm,
		Usage: gpu.TextureUsageRenderTarget, InitialState: gpu.StatePresent,
	})
	require.NoError(t, err)
	r.Color = barrier.New(color, gpu.StatePresent)
	depth, err := r.Dev.CreateTexture(gpu.TextureDesc{
		Label: "depth", Width: cfg.width, Height: cfg.height, Format: gpu.FormatDepth32Float,
		Usage: gpu.TextureUsageDepthStencil | gpu.TextureUsageCopySource, InitialState: gpu.StateDepthWrite,
	})
	require.NoError(t, err)
	r.Depth = barrier.New(depth, gpu.StateDepthWrite)
	return r
}

// Open resets the rig's list against its allocator.
func (r *Rig) Open(t *testing.T) gpu.CommandList {
	t.Helper()
	require.NoError(t, r.List.Reset(r.Alloc))
	r.List.SetDescriptorHeap(r.Heap)
	return r.List
}

// Submit executes lists and waits for the GPU timeline to drain.
func (r *Rig) Submit(t *testing.T, lists ...gpu.CommandList) {
	t.Helper()
	require.NoError(t, r.Dev.Queue().Execute(lists...))
	r.Dev.Idle()
}

// Draws returns every draw executed so far.
func (r *Rig) Draws() []sim.Draw {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sim.Draw(nil), r.draws...)
}

// Pipelines returns the pipeline label of every draw executed so far.
func (r *Rig) Pipelines() []string {
	var out []string
	for _, d := range r.Draws() {
		out = append(out, d.Pipeline)
	}
	return out
}

// Reset forgets recorded draws and device counters.
func (r *Rig) Reset() {
	r.mu.Lock()
	r.draws = nil
	r.mu.Unlock()
	r.Dev.ResetStats()
}

// Description returns a small scene with one object in every category and the
// given lights.
func Description(lights ...light.Light) *scene.Description {
	return &scene.Description{
		Meshes: []scene.MeshData{scene.Cube("cube", 1), scene.Quad("card", 1, 1)},
		Materials: []scene.MaterialData{
			{Name: "white", Color: [4]uint8{255, 255, 255, 255}},
			{Name: "glass", Color: [4]uint8{200, 220, 255, 80}},
		},
		Objects: []scene.ObjectData{
			{Name: "dyn", Mesh: "cube", Material: "white", Category: scene.CategoryDynamic, Position: [3]float32{0, 0, -5}},
			{Name: "static", Mesh: "cube", Material: "white", Category: scene.CategoryStatic, Position: [3]float32{2, 0, -5}},
			{Name: "flag", Mesh: "card", Material: "white", Category: scene.CategoryTwoSided, Position: [3]float32{-2, 0, -5}},
			{Name: "leaf", Mesh: "card", Material: "white", Category: scene.CategoryAlphaCut, Position: [3]float32{0, 2, -5}},
			{Name: "pane-near", Mesh: "card", Material: "glass", Category: scene.CategoryTransparent, Position: [3]float32{0, 0, -2}},
			{Name: "pane-far", Mesh: "card", Material: "glass", Category: scene.CategoryTransparent, Position: [3]float32{0, 0, -8}},
		},
		Lights:  lights,
		Ambient: [3]float32{0.1, 0.1, 0.1},
	}
}

// ShadowLights returns a directional and a spot light casting shadows plus a point light that does not.
func ShadowLights() []light.Light {
	return []light.Light{
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 4, 0), light.WithRange(20)),
		light.NewLight(light.LightTypeDirectional, light.WithDirection(-0.3, -1, -0.2), light.WithCastsShadows(true)),
		light.NewLight(light.LightTypeSpot, light.WithPosition(0, 8, 0), light.WithDirection(0, -1, 0),
			light.WithSpotCone(20, 30), light.WithRange(30), light.WithCastsShadows(true)),
	}
}
