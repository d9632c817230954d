package composer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/internal/simrig"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameFor(r *simrig.Rig, slot int) Frame {
	return Frame{Slot: slot, Color: r.Color, Depth: r.Depth, View: camera.NewCamera(camera.WithSize(64, 48))}
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestComposeOrderWithShadows(t *testing.T) {
	r := simrig.New(t, simrig.Description(simrig.ShadowLights()...), nil, simrig.WithShadows(true))
	c := New(r.Lib, r.Heap)

	cl := r.Open(t)
	stats, err := c.Compose(cl, frameFor(r, 0), r.Scene)
	require.NoError(t, err)
	r.Submit(t, cl)

	shadow := []string{
		r.Set.DepthOpaque.String(),
		r.Set.DepthOpaque.String(),
		r.Set.DepthTwoSided.String(),
		r.Set.DepthAlphaCut.String(),
	}
	var want []string
	want = append(want, shadow...)
	want = append(want, shadow...)
	want = append(want,
		r.Set.Opaque.String(),
		r.Set.Opaque.String(),
		r.Set.TwoSided.String(),
		r.Set.AlphaCut.String(),
		r.Set.Transparent.String(),
		r.Set.Transparent.String(),
	)
	assert.Equal(t, want, r.Pipelines())

	draws := r.Draws()
	color := draws[8:]
	for _, d := range color {
		assert.Equal(t, "color", d.Pass.Label)
		assert.True(t, d.Pass.Depth.Clear, "main depth cleared by the color pass")
	}
	// Farthest pane first.
	assert.Equal(t, uint32(5), color[4].StartInstance)
	assert.Equal(t, uint32(4), color[5].StartInstance)
	assert.Equal(t, []int{5, 4}, r.Scene.TransparentOrder())

	assert.Equal(t, 2, stats.ShadowPasses)
	assert.Equal(t, 2, stats.Transparent)
	assert.False(t, stats.EarlyZ)
	assert.Equal(t, 14, stats.DrawCalls)
	assert.Equal(t, 2, stats.CategoryDraws[scene.CategoryTransparent])
	assert.Equal(t, 6, stats.Barriers)
	assert.Equal(t, r.Dev.Stats().Barriers, stats.Barriers)
	assert.Equal(t, 3, r.Dev.Stats().Passes)

	assert.True(t, r.Color.AtRest())
	assert.True(t, r.Depth.AtRest())
	for _, sm := range r.Scene.Shadows() {
		assert.True(t, sm.Depth(0).AtRest())
	}
	assert.Empty(t, r.Dev.Violations())
}

func TestComposeEarlyZWithoutLights(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil)
	c := New(r.Lib, r.Heap, WithEarlyZ(true))

	cl := r.Open(t)
	stats, err := c.Compose(cl, frameFor(r, 1), r.Scene)
	require.NoError(t, err)
	r.Submit(t, cl)

	want := []string{
		r.Set.DepthOpaque.String(),
		r.Set.DepthOpaque.String(),
		r.Set.DepthTwoSided.String(),
		r.Set.DepthAlphaCut.String(),
		r.Set.EarlyZOpaque.String(),
		r.Set.EarlyZOpaque.String(),
		r.Set.EarlyZTwoSided.String(),
		r.Set.EarlyZAlphaCut.String(),
	}
	want = append(want, repeat(r.Set.Transparent.String(), 2)...)
	assert.Equal(t, want, r.Pipelines())

	draws := r.Draws()
	assert.True(t, draws[0].Pass.Depth.Clear)
	assert.False(t, draws[4].Pass.Depth.Clear, "pre-pass depth is kept")

	assert.Zero(t, stats.ShadowPasses)
	assert.True(t, stats.EarlyZ)
	assert.Equal(t, 2, r.Dev.Stats().Passes)
	assert.Empty(t, r.Dev.Violations())
}

func TestComposeShadowMappingDisabled(t *testing.T) {
	r := simrig.New(t, simrig.Description(simrig.ShadowLights()...), nil, simrig.WithShadows(true))
	c := New(r.Lib, r.Heap, WithShadowMapping(false))

	cl := r.Open(t)
	stats, err := c.Compose(cl, frameFor(r, 0), r.Scene)
	require.NoError(t, err)
	r.Submit(t, cl)

	assert.Zero(t, stats.ShadowPasses)
	assert.Equal(t, 1, r.Dev.Stats().Passes)
	assert.Empty(t, r.Dev.Violations())
}

func TestComposeEmptyCategoriesDrawNothing(t *testing.T) {
	desc := simrig.Description()
	desc.Objects = desc.Objects[:1]
	r := simrig.New(t, desc, nil)
	c := New(r.Lib, r.Heap)

	cl := r.Open(t)
	stats, err := c.Compose(cl, frameFor(r, 0), r.Scene)
	require.NoError(t, err)
	r.Submit(t, cl)

	assert.Equal(t, []string{r.Set.Opaque.String()}, r.Pipelines())
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 1, stats.CategoryDraws[scene.CategoryDynamic])
	for _, cat := range []scene.Category{scene.CategoryStatic, scene.CategoryTwoSided, scene.CategoryAlphaCut, scene.CategoryTransparent} {
		assert.Zero(t, stats.CategoryDraws[cat], cat.String())
	}
	assert.Zero(t, stats.Transparent)
}

func TestComposeOverlayKeepsTargetOpen(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil)
	c := New(r.Lib, r.Heap)
	f := frameFor(r, 0)
	f.Overlay = true

	cl := r.Open(t)
	_, err := c.Compose(cl, f, r.Scene)
	require.NoError(t, err)
	assert.Equal(t, gpu.StateRenderTarget, r.Color.State())

	cl.BeginPass(gpu.PassDesc{Label: "overlay", Color: []gpu.ColorAttachment{{Target: r.Color.Resource()}}})
	cl.EndPass()
	require.NoError(t, c.Finish(cl, f))
	r.Submit(t, cl)

	assert.True(t, r.Color.AtRest())
	assert.Equal(t, gpu.StatePresent, r.Dev.State(r.Color.Resource()))
	assert.Equal(t, 2, r.Dev.Stats().Passes)
	assert.Empty(t, r.Dev.Violations())
}

func TestComposeSortIsStableAcrossFrames(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil)
	c := New(r.Lib, r.Heap)

	for slot := range 2 {
		cl := r.Open(t)
		_, err := c.Compose(cl, frameFor(r, slot), r.Scene)
		require.NoError(t, err)
		r.Submit(t, cl)
		assert.Equal(t, []int{5, 4}, r.Scene.TransparentOrder())
	}
	assert.Empty(t, r.Dev.Violations())
}
