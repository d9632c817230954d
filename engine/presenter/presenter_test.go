package presenter

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame records a minimal frame: back buffer to render target, clear, back to present.
func frame(t *testing.T, p *Presenter, vsync bool) {
	t.Helper()
	cl, err := p.BeginFrame()
	require.NoError(t, err)
	s := p.Current()
	assert.Equal(t, SlotRecording, s.State)

	s.BackBuffer.Transition(cl, gpu.StateRenderTarget)
	cl.BeginPass(gpu.PassDesc{
		Color: []gpu.ColorAttachment{{Target: s.BackBuffer.Resource(), Clear: true}},
		Depth: &gpu.DepthAttachment{Target: s.Depth.Resource(), Clear: true, ClearDepth: 1},
	})
	cl.EndPass()
	s.BackBuffer.Transition(cl, gpu.StatePresent)
	require.NoError(t, cl.Close())
	require.NoError(t, p.Execute())
	assert.Equal(t, SlotSubmitted, s.State)
	require.NoError(t, p.Present(vsync))
}

func TestTwoSlotsFiveFrames(t *testing.T) {
	dev := sim.NewDevice(sim.WithLatency(2 * time.Millisecond))
	defer dev.Release()

	const timeout = 250 * time.Millisecond
	p, err := New(dev, WithBufferCount(2), WithSize(8, 8), WithFrameWaitTimeout(timeout))
	require.NoError(t, err)

	var order []int
	for i := 0; i < 5; i++ {
		order = append(order, p.FrameIndex())
		frame(t, p, true)
		assert.LessOrEqual(t, p.LastWait(), timeout, "frame %d", i)
	}

	assert.Equal(t, []int{0, 1, 0, 1, 0}, order)
	assert.Equal(t, uint64(3), p.Slots()[0].FenceValue)
	assert.Equal(t, uint64(2), p.Slots()[1].FenceValue)

	require.NoError(t, p.WaitForIdle(time.Second))
	for _, s := range p.Slots() {
		assert.Equal(t, s.FenceValue, s.Fence.CompletedValue())
		assert.Equal(t, SlotIdle, s.State)
		assert.True(t, s.BackBuffer.AtRest())
	}
	assert.Empty(t, dev.Violations())
	assert.Equal(t, 5, dev.Stats().Presents)
}

func TestAllocatorNeverResetWhileInFlight(t *testing.T) {
	// With latency far above the recording time, every reuse of a slot must block
	// on its fence; resetting early would surface as gpu.ErrAllocatorInUse.
	dev := sim.NewDevice(sim.WithLatency(15 * time.Millisecond))
	defer dev.Release()

	p, err := New(dev, WithBufferCount(2), WithSize(4, 4))
	require.NoError(t, err)

	var waited bool
	for i := 0; i < 6; i++ {
		frame(t, p, false)
		if i >= 1 && p.LastWait() > 0 {
			waited = true
		}
	}
	assert.True(t, waited, "slot reuse blocked on the GPU at least once")
	require.NoError(t, p.WaitForIdle(time.Second))
	assert.Empty(t, dev.Violations())
}

func TestBeginFrameTwiceIsBusy(t *testing.T) {
	dev := sim.NewDevice()
	defer dev.Release()
	p, err := New(dev, WithBufferCount(3), WithSize(4, 4))
	require.NoError(t, err)

	_, err = p.BeginFrame()
	require.NoError(t, err)
	_, err = p.BeginFrame()
	assert.ErrorIs(t, err, ErrSlotBusy)
	assert.ErrorIs(t, p.WaitForIdle(time.Second), ErrSlotBusy)
}

func TestWaitForIdleDrainsSubmittedSlotsWhileRecording(t *testing.T) {
	dev := sim.NewDevice(sim.WithLatency(100 * time.Millisecond))
	defer dev.Release()
	p, err := New(dev, WithBufferCount(2), WithSize(4, 4))
	require.NoError(t, err)

	frame(t, p, true)
	first := p.Slots()[0]
	require.Equal(t, SlotSubmitted, first.State)

	_, err = p.BeginFrame()
	require.NoError(t, err)
	require.Equal(t, 1, p.Current().Index)

	assert.ErrorIs(t, p.WaitForIdle(time.Second), ErrSlotBusy)
	assert.Equal(t, first.FenceValue, first.Fence.CompletedValue())
	assert.Equal(t, SlotIdle, first.State)
	assert.Equal(t, SlotRecording, p.Current().State)
}

func TestAbandonRecoversFailedFrame(t *testing.T) {
	dev := sim.NewDevice(sim.WithLatency(20 * time.Millisecond))
	defer dev.Release()
	p, err := New(dev, WithBufferCount(2), WithSize(4, 4))
	require.NoError(t, err)

	frame(t, p, true)

	cl, err := p.BeginFrame()
	require.NoError(t, err)
	s := p.Current()
	s.BackBuffer.Transition(cl, gpu.StateRenderTarget)
	cl.BeginPass(gpu.PassDesc{
		Color: []gpu.ColorAttachment{{Target: s.BackBuffer.Resource(), Clear: true}},
	})
	// The list is still open inside a pass, so the submission is rejected.
	require.ErrorIs(t, p.Execute(), gpu.ErrInvalidState)
	require.Equal(t, SlotRecording, s.State)

	p.Abandon()
	assert.Equal(t, SlotIdle, s.State)
	assert.True(t, s.BackBuffer.AtRest())
	require.NoError(t, p.WaitForIdle(time.Second))
	for _, slot := range p.Slots() {
		assert.Equal(t, slot.FenceValue, slot.Fence.CompletedValue())
	}

	frame(t, p, true)
	require.NoError(t, p.WaitForIdle(time.Second))
	assert.Empty(t, dev.Violations())
	assert.Equal(t, 2, dev.Stats().Presents)
}

func TestPresentFlags(t *testing.T) {
	cases := []struct {
		name     string
		tearing  bool
		vsync    bool
		interval int
		flags    gpu.PresentFlags
	}{
		{"vsync", true, true, 1, 0},
		{"tearing", true, false, 0, gpu.PresentAllowTearing},
		{"no tearing support", false, false, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dev := sim.NewDevice(sim.WithTearing(c.tearing))
			defer dev.Release()
			p, err := New(dev, WithBufferCount(2), WithSize(4, 4))
			require.NoError(t, err)

			frame(t, p, c.vsync)
			require.NoError(t, p.WaitForIdle(time.Second))
			st := dev.Stats()
			assert.Equal(t, c.interval, st.LastPresentInterval)
			assert.Equal(t, c.flags, st.LastPresentFlags)
		})
	}
}

func TestBoundedFrameWaitIsDeviceLost(t *testing.T) {
	dev := sim.NewDevice(sim.WithLatency(200 * time.Millisecond))
	defer dev.Release()
	p, err := New(dev, WithBufferCount(2), WithSize(4, 4), WithFrameWaitTimeout(5*time.Millisecond))
	require.NoError(t, err)

	frame(t, p, true)
	frame(t, p, true)
	_, err = p.BeginFrame()
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
}

func TestResizeReplacesBuffers(t *testing.T) {
	dev := sim.NewDevice()
	defer dev.Release()
	p, err := New(dev, WithBufferCount(2), WithSize(4, 4))
	require.NoError(t, err)

	frame(t, p, true)
	old := p.Slots()[0].BackBuffer.Resource()
	require.NoError(t, p.Resize(16, 8, time.Second))

	w, h := p.Size()
	assert.Equal(t, uint32(16), w)
	assert.Equal(t, uint32(8), h)
	for _, s := range p.Slots() {
		assert.Equal(t, uint32(16), s.BackBuffer.Resource().Width())
		assert.Equal(t, uint32(8), s.Depth.Resource().Height())
		assert.Equal(t, gpu.StatePresent, s.BackBuffer.State())
	}
	assert.NotSame(t, old, p.Slots()[0].BackBuffer.Resource())

	frame(t, p, true)
	require.NoError(t, p.WaitForIdle(time.Second))
	assert.Empty(t, dev.Violations())
}
