package picking

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu/sim"
	"github.com/Carmen-Shannon/oxy-frame/engine/internal/simrig"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rasterizeIDs stands in for the object-id shader: each draw stamps its first
// instance id at a fixed pixel of the id target.
func rasterizeIDs(pixels map[uint32][2]uint32) func(sim.Draw) {
	label := pipeline.KeySet(true).ObjectID.String()
	return func(d sim.Draw) {
		if d.Pipeline != label || len(d.Pass.Color) == 0 {
			return
		}
		px, ok := pixels[d.StartInstance]
		if !ok {
			return
		}
		d.Pass.Color[0].Target.(*sim.Texture).PutUint32(px[0], px[1], d.StartInstance)
	}
}

func pick(t *testing.T, r *simrig.Rig, p *Pass) {
	t.Helper()
	require.NoError(t, r.Scene.UploadInstanceData(0))
	view := camera.NewCamera(camera.WithSize(p.Size()))
	require.NoError(t, p.Record(view, r.Depth, r.Scene, 0))
	require.NoError(t, p.Execute(r.Dev.Queue()))
	require.NoError(t, p.SignalDone(r.Dev.Queue()))
}

func TestReadbackHonorsRowPitch(t *testing.T) {
	hook := rasterizeIDs(map[uint32][2]uint32{0: {3, 3}, 1: {10, 20}})
	r := simrig.New(t, simrig.Description(), hook, simrig.WithSize(100, 40))
	p, err := New(r.Dev, r.Lib, r.Heap, 100, 40)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	pick(t, r, p)
	var res Result
	require.NoError(t, p.Read(&res))

	// 100 texels of 4 bytes pad to 512-byte rows.
	assert.Equal(t, uint32(128), res.RowPitch)
	assert.Equal(t, uint32(1), res.IDs[20*res.RowPitch+10])
	assert.Equal(t, uint32(1), res.At(10, 20))
	assert.Equal(t, uint32(0), res.At(3, 3))
	assert.Equal(t, NoObject, res.At(11, 20))
	assert.Equal(t, NoObject, res.At(500, 0))
	assert.Equal(t, float32(1), res.DepthAt(50, 30))

	assert.Equal(t, []string{r.Set.ObjectID.String(), r.Set.ObjectID.String()}, r.Pipelines())
	assert.Equal(t, 2, r.Dev.Stats().Copies)
	assert.True(t, r.Depth.AtRest())
	assert.False(t, p.Armed())
	assert.Empty(t, r.Dev.Violations())
}

func TestPickCanRepeat(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil)
	p, err := New(r.Dev, r.Lib, r.Heap, 64, 48)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	var res Result
	for range 3 {
		pick(t, r, p)
		require.NoError(t, p.Read(&res))
		assert.Equal(t, NoObject, res.At(0, 0))
	}
	assert.Empty(t, r.Dev.Violations())
}

func TestReadWithoutPick(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil)
	p, err := New(r.Dev, r.Lib, r.Heap, 64, 48)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	var res Result
	assert.ErrorIs(t, p.Read(&res), ErrNotArmed)
}

func TestReadTimeoutKeepsPickArmed(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil, simrig.WithLatency(200*time.Millisecond))
	p, err := New(r.Dev, r.Lib, r.Heap, 64, 48, WithTimeout(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(p.Release)

	pick(t, r, p)
	var res Result
	assert.ErrorIs(t, p.Read(&res), gpu.ErrTimeout)
	assert.True(t, p.Armed())
	assert.ErrorIs(t, p.Record(camera.NewCamera(), r.Depth, r.Scene, 0), ErrInFlight)
	assert.ErrorIs(t, p.Resize(32, 32), ErrInFlight)

	r.Dev.Idle()
	require.NoError(t, p.Read(&res))
	assert.False(t, p.Armed())
}

func TestRecordChecksDepthTarget(t *testing.T) {
	r := simrig.New(t, simrig.Description(), nil)
	p, err := New(r.Dev, r.Lib, r.Heap, 32, 32)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	assert.Error(t, p.Record(camera.NewCamera(), r.Depth, r.Scene, 0))

	require.NoError(t, p.Resize(64, 48))
	w, h := p.Size()
	assert.Equal(t, uint32(64), w)
	assert.Equal(t, uint32(48), h)
	pick(t, r, p)
	var res Result
	require.NoError(t, p.Read(&res))
	assert.Equal(t, uint32(64), res.RowPitch)
}
