// Package composer records one complete frame into a command list: uploads,
// shadow maps, the optional depth pre-pass, and the category-ordered color pass.
package composer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/barrier"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/depthpass"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
)

// Frame names the targets and view of one frame.
type Frame struct {
	// Slot is the frame slot whose buffers are uploaded and bound.
	Slot int
	// Color is the target of the color pass, resting in the present state.
	Color *barrier.Tracked[gpu.Texture]
	// Depth is the main depth buffer, resting in the depth-write state.
	Depth *barrier.Tracked[gpu.Texture]
	// View is the camera the frame is drawn from.
	View camera.View
	// Overlay leaves Color in the render-target state and the list open so the
	// caller can draw on top. The caller finishes the frame with Finish.
	Overlay bool
}

// Composer records frames. It keeps no per-frame state between calls and is used
// from the recording goroutine only.
type Composer struct {
	lib        *pipeline.Library
	heap       *gpu.DescriptorHeap
	depth      *depthpass.Engine
	set        pipeline.Set
	culling    bool
	earlyZ     bool
	shadows    bool
	clearColor [4]float32
}

// New creates a composer drawing with lib's pipelines.
//
// Parameters:
//   - lib: the pipeline library, built from pipeline.KeySet with the same culling option
//   - heap: the shared descriptor heap every table lives in
//   - options: functional options
//
// Returns:
//   - *Composer: the composer
func New(lib *pipeline.Library, heap *gpu.DescriptorHeap, options ...ComposerBuilderOption) *Composer {
	c := &Composer{
		lib:        lib,
		heap:       heap,
		culling:    true,
		shadows:    true,
		clearColor: [4]float32{0, 0, 0, 1},
	}
	for _, o := range options {
		o(c)
	}
	c.set = pipeline.KeySet(c.culling)
	c.depth = depthpass.New(lib, c.culling)
	return c
}

// EarlyZ reports whether frames start with a depth pre-pass.
func (c *Composer) EarlyZ() bool {
	return c.earlyZ
}

// SetEarlyZ toggles the depth pre-pass from the next frame on.
func (c *Composer) SetEarlyZ(on bool) {
	c.earlyZ = on
}

// Compose records frame f of sc into cl, which must be open and outside any pass.
// Stats start from zero and cover only this frame.
//
// Parameters:
//   - cl: the open command list
//   - f: the frame targets and view
//   - sc: the scene to draw
//
// Returns:
//   - profiler.FrameStats: counters of what was recorded
//   - error: an upload failure or a pipeline missing from the library
func (c *Composer) Compose(cl gpu.CommandList, f Frame, sc scene.Scene) (profiler.FrameStats, error) {
	var stats profiler.FrameStats
	counted := &countingList{CommandList: cl, stats: &stats}

	if err := sc.UploadInstanceData(f.Slot); err != nil {
		return stats, fmt.Errorf("composer: %w", err)
	}

	layouts := c.lib.Layouts()
	counted.SetDescriptorHeap(c.heap)
	layouts.Main.Bind(counted)
	sc.SetShaderConstants(counted, layouts.Main, f.View, f.Slot)

	if c.shadows && len(sc.Lights()) > 0 {
		if err := c.depth.RecordShadows(counted, sc.Shadows(), sc, f.Slot, &stats); err != nil {
			return stats, fmt.Errorf("composer: %w", err)
		}
	}

	if c.earlyZ {
		if err := c.depth.Record(counted, f.View, f.Depth, sc, f.Slot, &stats); err != nil {
			return stats, fmt.Errorf("composer: early-z: %w", err)
		}
		stats.EarlyZ = true
	}

	keys, err := c.colorPipelines()
	if err != nil {
		return stats, fmt.Errorf("composer: %w", err)
	}

	f.Color.Transition(counted, gpu.StateRenderTarget)
	counted.BeginPass(gpu.PassDesc{
		Label: "color",
		Color: []gpu.ColorAttachment{{Target: f.Color.Resource(), Clear: true, ClearColor: c.clearColor}},
		Depth: &gpu.DepthAttachment{Target: f.Depth.Resource(), Clear: !c.earlyZ, ClearDepth: 1},
	})

	stats.Transparent = sc.SortTransparent(f.View)

	layouts.Main.Bind(counted)
	sc.SetShaderConstants(counted, layouts.Main, f.View, f.Slot)
	for _, d := range keys {
		counted.SetPipelineState(d.ps)
		sc.DrawCategory(counted, d.category, scene.TextureBind, layouts.Main, &stats)
	}
	counted.EndPass()

	if f.Overlay {
		return stats, nil
	}
	if err := c.finish(counted, f); err != nil {
		return stats, err
	}
	return stats, nil
}

// Finish ends a frame composed with Overlay set: the color target goes back to its
// rest state and the list is closed.
//
// Parameters:
//   - cl: the list passed to Compose, with any overlay passes ended
//   - f: the frame passed to Compose
//
// Returns:
//   - error: a failure closing the list
func (c *Composer) Finish(cl gpu.CommandList, f Frame) error {
	return c.finish(cl, f)
}

func (c *Composer) finish(cl gpu.CommandList, f Frame) error {
	f.Color.ToRest(cl)
	if err := cl.Close(); err != nil {
		return fmt.Errorf("composer: close: %w", err)
	}
	return nil
}

type categoryDraw struct {
	category scene.Category
	ps       gpu.PipelineState
}

// colorPipelines resolves the draw order of the color pass.
func (c *Composer) colorPipelines() ([]categoryDraw, error) {
	opaque, twoSided, alphaCut := c.set.Opaque, c.set.TwoSided, c.set.AlphaCut
	if c.earlyZ {
		opaque, twoSided, alphaCut = c.set.EarlyZOpaque, c.set.EarlyZTwoSided, c.set.EarlyZAlphaCut
	}
	order := []struct {
		category scene.Category
		key      pipeline.Key
	}{
		{scene.CategoryDynamic, opaque},
		{scene.CategoryStatic, opaque},
		{scene.CategoryTwoSided, twoSided},
		{scene.CategoryAlphaCut, alphaCut},
		{scene.CategoryTransparent, c.set.Transparent},
	}
	draws := make([]categoryDraw, 0, len(order))
	for _, o := range order {
		ps, err := c.lib.Get(o.key)
		if err != nil {
			return nil, err
		}
		draws = append(draws, categoryDraw{category: o.category, ps: ps})
	}
	return draws, nil
}

// countingList tallies the barriers recorded through it.
type countingList struct {
	gpu.CommandList
	stats *profiler.FrameStats
}

func (l *countingList) ResourceBarrier(barriers ...gpu.Barrier) {
	l.stats.Barriers += len(barriers)
	l.CommandList.ResourceBarrier(barriers...)
}
