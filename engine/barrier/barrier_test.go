package barrier

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures barriers and ignores everything else.
type recorder struct {
	gpu.CommandList
	calls [][]gpu.Barrier
}

func (r *recorder) ResourceBarrier(b ...gpu.Barrier) {
	r.calls = append(r.calls, append([]gpu.Barrier(nil), b...))
}

func newTexture(t *testing.T, d *sim.Device, state gpu.ResourceState) gpu.Texture {
	t.Helper()
	tex, err := d.CreateTexture(gpu.TextureDesc{Label: "t", Width: 2, Height: 2, Format: gpu.FormatDepth32Float, InitialState: state})
	require.NoError(t, err)
	return tex
}

func TestTransitionRecordsExactlyOneBarrier(t *testing.T) {
	d := sim.NewDevice()
	defer d.Release()
	tr := New(newTexture(t, d, gpu.StateShaderResource), gpu.StateShaderResource)
	rec := &recorder{}

	tr.Transition(rec, gpu.StateDepthWrite)
	require.Len(t, rec.calls, 1)
	require.Len(t, rec.calls[0], 1)
	assert.Equal(t, gpu.StateShaderResource, rec.calls[0][0].Before)
	assert.Equal(t, gpu.StateDepthWrite, rec.calls[0][0].After)
	assert.Equal(t, gpu.StateDepthWrite, tr.State())
	assert.False(t, tr.AtRest())
}

func TestRoundTripReturnsToRest(t *testing.T) {
	d := sim.NewDevice()
	defer d.Release()
	tr := New(newTexture(t, d, gpu.StateShaderResource), gpu.StateShaderResource)
	rec := &recorder{}

	tr.Transition(rec, gpu.StateDepthWrite)
	tr.Transition(rec, gpu.StateShaderResource)
	assert.True(t, tr.AtRest())
	assert.Len(t, rec.calls, 2)

	tr.ToRest(rec)
	assert.Len(t, rec.calls, 2, "ToRest at rest records nothing")
}

func TestWithRestAndToRest(t *testing.T) {
	d := sim.NewDevice()
	defer d.Release()
	tr := New(newTexture(t, d, gpu.StateCommon), gpu.StateCommon).WithRest(gpu.StateCopySource)
	assert.False(t, tr.AtRest())

	rec := &recorder{}
	tr.ToRest(rec)
	assert.True(t, tr.AtRest())
	require.Len(t, rec.calls, 1)
	assert.Equal(t, gpu.StateCommon, rec.calls[0][0].Before)
}

func TestBatchFlushesOnce(t *testing.T) {
	d := sim.NewDevice()
	defer d.Release()
	a := New(newTexture(t, d, gpu.StateRenderTarget), gpu.StateRenderTarget)
	b := New(newTexture(t, d, gpu.StateDepthWrite), gpu.StateDepthWrite)
	rec := &recorder{}

	var batch Batch
	batch.Flush(rec)
	assert.Empty(t, rec.calls)

	Add(&batch, a, gpu.StateCopySource)
	Add(&batch, b, gpu.StateCopySource)
	assert.Equal(t, 2, batch.Len())
	batch.Flush(rec)
	require.Len(t, rec.calls, 1)
	assert.Len(t, rec.calls[0], 2)
	assert.Zero(t, batch.Len())
	assert.Equal(t, gpu.StateCopySource, a.State())
}

func TestTrackedStateMatchesGPU(t *testing.T) {
	d := sim.NewDevice()
	defer d.Release()
	tex := newTexture(t, d, gpu.StateShaderResource)
	tr := New(tex, gpu.StateShaderResource)

	alloc, err := d.CreateCommandAllocator()
	require.NoError(t, err)
	cl, err := d.CreateCommandList("barrier")
	require.NoError(t, err)
	require.NoError(t, cl.Reset(alloc))
	tr.Transition(cl, gpu.StateDepthWrite)
	tr.Transition(cl, gpu.StateCopySource)
	require.NoError(t, cl.Close())
	require.NoError(t, d.Queue().Execute(cl))
	d.Idle()

	assert.Empty(t, d.Violations())
	assert.Equal(t, tr.State(), d.State(tex))
}
