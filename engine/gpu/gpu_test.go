package gpu

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWait(t *testing.T) {
	e := NewEvent()
	assert.ErrorIs(t, e.Wait(0), ErrTimeout)
	assert.ErrorIs(t, e.Wait(5*time.Millisecond), ErrTimeout)

	e.Set()
	e.Set()
	require.NoError(t, e.Wait(0))
	assert.ErrorIs(t, e.Wait(0), ErrTimeout, "event auto-resets after one wait")

	e.Set()
	e.Reset()
	assert.ErrorIs(t, e.Wait(0), ErrTimeout)

	go func() {
		time.Sleep(5 * time.Millisecond)
		e.Set()
	}()
	require.NoError(t, e.Wait(Infinite))
}

func TestFenceTrackerArmAndComplete(t *testing.T) {
	ft := NewFenceTracker(0)
	low, high := NewEvent(), NewEvent()

	ft.Arm(1, low)
	ft.Arm(3, high)
	assert.Equal(t, 2, ft.Pending())

	ft.Complete(2)
	assert.Equal(t, uint64(2), ft.CompletedValue())
	require.NoError(t, low.Wait(0))
	assert.ErrorIs(t, high.Wait(0), ErrTimeout)
	assert.Equal(t, 1, ft.Pending())

	ft.Complete(3)
	require.NoError(t, high.Wait(0))
	assert.Zero(t, ft.Pending())

	already := NewEvent()
	ft.Arm(3, already)
	require.NoError(t, already.Wait(0), "arming a reached value sets the event at once")
}

func TestFenceTrackerRewind(t *testing.T) {
	ft := NewFenceTracker(1)
	ft.Complete(0)
	assert.Equal(t, uint64(0), ft.CompletedValue())

	e := NewEvent()
	ft.Arm(1, e)
	assert.ErrorIs(t, e.Wait(0), ErrTimeout)
	ft.Complete(1)
	require.NoError(t, e.Wait(0))
}

func TestDescriptorHeapAllocate(t *testing.T) {
	h := NewDescriptorHeap("test", 4)

	a, err := h.Allocate(3)
	require.NoError(t, err)
	assert.Equal(t, DescriptorRange{Start: 0, Count: 3}, a)

	_, err = h.Allocate(2)
	assert.True(t, errors.Is(err, ErrHeapFull))

	b, err := h.Allocate(1)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Start)
	assert.Equal(t, 4, h.Used())

	rev := h.Revision()
	h.Set(1, nil)
	assert.Greater(t, h.Revision(), rev)
	assert.Len(t, h.Range(a), 3)
}

func TestReadbackFootprint(t *testing.T) {
	fp := ReadbackFootprint(100, 30, FormatR32Uint)
	assert.Equal(t, uint32(512), fp.RowPitch)
	assert.Equal(t, uint32(128), fp.RowPitchTexels())
	assert.Equal(t, uint64(512*30), fp.Size())

	fp = ReadbackFootprint(64, 1, FormatDepth32Float)
	assert.Equal(t, uint32(256), fp.RowPitch)
}

func TestResourceStateString(t *testing.T) {
	assert.Equal(t, "depth-write", StateDepthWrite.String())
	assert.Equal(t, "ResourceState(99)", ResourceState(99).String())
}
