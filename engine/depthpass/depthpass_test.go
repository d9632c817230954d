package depthpass

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/internal/simrig"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDrawsDepthCategoriesOnly(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil)
	e := New(r.Lib, true)
	view := camera.NewCamera(camera.WithSize(64, 48))

	require.NoError(t, r.Scene.UploadInstanceData(0))
	cl := r.Open(t)
	var stats profiler.FrameStats
	require.NoError(t, e.Record(cl, view, r.Depth, r.Scene, 0, &stats))
	require.NoError(t, cl.Close())
	r.Submit(t, cl)

	assert.Equal(t, []string{
		r.Set.DepthOpaque.String(),
		r.Set.DepthOpaque.String(),
		r.Set.DepthTwoSided.String(),
		r.Set.DepthAlphaCut.String(),
	}, r.Pipelines())
	assert.Equal(t, 4, stats.DrawCalls)
	assert.Zero(t, stats.CategoryDraws[scene.CategoryTransparent])
	for _, d := range r.Draws() {
		assert.Empty(t, d.Pass.Color, "depth-only pass")
		require.NotNil(t, d.Pass.Depth)
		assert.True(t, d.Pass.Depth.Clear)
	}
	assert.True(t, r.Depth.AtRest())
	assert.Empty(t, r.Dev.Violations())
}

func TestRecordRejectsDepthNotWritable(t *testing.T) {
	r := simrig.New(t, simrig.Description(simrig.ShadowLights()...), nil, simrig.WithShadows(true))
	e := New(r.Lib, true)
	sm := r.Scene.Shadows()[0]

	cl := r.Open(t)
	err := e.Record(cl, sm.View(), sm.Depth(0), r.Scene, 0, nil)
	assert.ErrorIs(t, err, gpu.ErrInvalidState)
}

func TestRecordShadowsRoundTripsEveryMap(t *testing.T) {
	r := simrig.New(t, simrig.Description(simrig.ShadowLights()...), nil, simrig.WithShadows(true))
	e := New(r.Lib, true)
	shadows := r.Scene.Shadows()
	require.Len(t, shadows, 2)

	for slot := range 2 {
		r.Reset()
		require.NoError(t, r.Scene.UploadInstanceData(slot))
		cl := r.Open(t)
		var stats profiler.FrameStats
		require.NoError(t, e.RecordShadows(cl, shadows, r.Scene, slot, &stats))
		require.NoError(t, cl.Close())
		r.Submit(t, cl)

		assert.Equal(t, 2, stats.ShadowPasses)
		assert.Equal(t, 8, stats.DrawCalls)
		assert.Equal(t, 2, r.Dev.Stats().Passes)
		assert.Equal(t, 4, r.Dev.Stats().Barriers)
		for i, sm := range shadows {
			d := sm.Depth(slot)
			assert.True(t, d.AtRest(), "shadow %d slot %d", i, slot)
			assert.Equal(t, gpu.StateShaderResource, r.Dev.State(d.Resource()))
		}

		draws := r.Draws()
		assert.Same(t, shadows[0].Depth(slot).Resource(), draws[0].Pass.Depth.Target)
		assert.Same(t, shadows[1].Depth(slot).Resource(), draws[len(draws)-1].Pass.Depth.Target)
	}
	assert.Empty(t, r.Dev.Violations())
}

func TestRecordShadowsWithNoCastersRecordsNothing(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil)
	e := New(r.Lib, false)

	cl := r.Open(t)
	var stats profiler.FrameStats
	require.NoError(t, e.RecordShadows(cl, r.Scene.Shadows(), r.Scene, 0, &stats))
	require.NoError(t, cl.Close())
	r.Submit(t, cl)

	assert.Zero(t, stats.ShadowPasses)
	assert.Zero(t, r.Dev.Stats().Passes)
}

func TestMissingPipelineIsReported(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil, simrig.WithCulling(false))
	// The library was built without culling; asking for culled keys fails.
	e := New(r.Lib, true)
	cl := r.Open(t)
	err := e.Record(cl, camera.NewCamera(), r.Depth, r.Scene, 0, nil)
	assert.ErrorIs(t, err, pipeline.ErrUnknownKey)
}
