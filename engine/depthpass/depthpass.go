// Package depthpass records depth-only passes: the early-Z pre-pass into the main
// depth buffer and one pass per shadow-casting light into its shadow map.
package depthpass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/barrier"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/light"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
)

// Engine records depth-only passes. It holds no per-frame state.
type Engine struct {
	lib *pipeline.Library
	set pipeline.Set
}

// New creates an engine drawing with lib's depth pipelines.
//
// Parameters:
//   - lib: the pipeline library, built from a key set made with the same culling setting
//   - backfaceCulling: whether opaque geometry is drawn with back faces culled
//
// Returns:
//   - *Engine: the engine
func New(lib *pipeline.Library, backfaceCulling bool) *Engine {
	return &Engine{lib: lib, set: pipeline.KeySet(backfaceCulling)}
}

// Record draws a depth-only pass into depth from view: a clear, then opaque geometry
// (culled per configuration, position-only), two-sided geometry (no culling,
// position-only) and alpha-cut geometry (no culling, full vertex layout, textured
// discard). depth must be in the depth-write state and is left there.
//
// Parameters:
//   - cl: the open command list, outside any pass
//   - view: the view to render from
//   - depth: the depth target, in gpu.StateDepthWrite
//   - surface: the scene to draw
//   - slot: the frame slot whose instance data is bound
//   - stats: per-frame counters to update
//
// Returns:
//   - error: a pipeline missing from the library
func (e *Engine) Record(cl gpu.CommandList, view camera.View, depth *barrier.Tracked[gpu.Texture], surface scene.Surface, slot int, stats *profiler.FrameStats) error {
	if depth.State() != gpu.StateDepthWrite {
		return fmt.Errorf("depthpass: %s: %w", depth, gpu.ErrInvalidState)
	}
	opaque, err := e.lib.Get(e.set.DepthOpaque)
	if err != nil {
		return err
	}
	twoSided, err := e.lib.Get(e.set.DepthTwoSided)
	if err != nil {
		return err
	}
	alphaCut, err := e.lib.Get(e.set.DepthAlphaCut)
	if err != nil {
		return err
	}
	layouts := e.lib.Layouts()

	cl.BeginPass(gpu.PassDesc{
		Label: "depth " + depth.Resource().Label(),
		Depth: &gpu.DepthAttachment{Target: depth.Resource(), Clear: true, ClearDepth: 1},
	})

	simple := layouts.Simple
	simple.Bind(cl)
	surface.SetShaderConstants(cl, simple, view, slot)
	cl.SetPipelineState(opaque)
	surface.DrawCategory(cl, scene.CategoryDynamic, scene.TextureNone, simple, stats)
	surface.DrawCategory(cl, scene.CategoryStatic, scene.TextureNone, simple, stats)
	cl.SetPipelineState(twoSided)
	surface.DrawCategory(cl, scene.CategoryTwoSided, scene.TextureNone, simple, stats)

	alpha := layouts.AlphaTest
	alpha.Bind(cl)
	surface.SetShaderConstants(cl, alpha, view, slot)
	cl.SetPipelineState(alphaCut)
	surface.DrawCategory(cl, scene.CategoryAlphaCut, scene.TextureBind, alpha, stats)

	cl.EndPass()
	return nil
}

// RecordShadows renders every shadow map for frame slot slot. Each map's depth
// buffer goes from shader-resource to depth-write, is drawn from the light's view
// and goes back to shader-resource, ready for the color passes. An empty list
// records nothing.
//
// Parameters:
//   - cl: the open command list, outside any pass
//   - shadows: the shadow maps, in shadow index order
//   - surface: the scene to draw
//   - slot: the frame slot whose depth buffers are written
//   - stats: per-frame counters to update
//
// Returns:
//   - error: a pipeline missing from the library
func (e *Engine) RecordShadows(cl gpu.CommandList, shadows []*light.ShadowMap, surface scene.Surface, slot int, stats *profiler.FrameStats) error {
	for _, sm := range shadows {
		d := sm.Depth(slot)
		d.Transition(cl, gpu.StateDepthWrite)
		if err := e.Record(cl, sm.View(), d, surface, slot, stats); err != nil {
			return fmt.Errorf("depthpass: shadow map %d: %w", sm.Index(), err)
		}
		d.Transition(cl, gpu.StateShaderResource)
		if stats != nil {
			stats.ShadowPasses++
		}
	}
	return nil
}
