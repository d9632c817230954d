// Package presenter owns the swap chain and the per-buffer frame slots, and keeps the
// CPU from reusing a slot's command memory before the GPU has finished with it.
package presenter

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/barrier"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
)

// ErrSlotBusy is returned by BeginFrame when the current slot is already recording.
var ErrSlotBusy = errors.New("presenter: frame slot already recording")

// SlotState is the lifecycle state of a frame slot.
type SlotState int

const (
	// SlotIdle slots have no outstanding GPU work and may be reset.
	SlotIdle SlotState = iota
	// SlotRecording slots have an open command list against their allocator.
	SlotRecording
	// SlotSubmitted slots have work on the GPU that their fence has not passed yet.
	SlotSubmitted
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotRecording:
		return "recording"
	case SlotSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("SlotState(%d)", int(s))
}

// Slot is the per-swap-chain-buffer frame state.
type Slot struct {
	Index     int
	Allocator gpu.CommandAllocator
	Fence     gpu.Fence
	// FenceValue is the value Fence reaches once the slot's last submission completes.
	FenceValue uint64
	Event      *gpu.Event
	BackBuffer *barrier.Tracked[gpu.Texture]
	Depth      *barrier.Tracked[gpu.Texture]
	State      SlotState
}

// Presenter drives the frame slot state machine: BeginFrame, Execute, Present.
type Presenter struct {
	dev   gpu.Device
	queue gpu.Queue
	swap  gpu.SwapChain
	list  gpu.CommandList
	slots []*Slot

	frameIndex int
	width      uint32
	height     uint32

	bufferCount      int
	format           gpu.Format
	depthFormat      gpu.Format
	frameWaitTimeout time.Duration

	lastWait time.Duration
}

// New creates the swap chain and one frame slot per buffer. Any creation failure is
// returned and should be treated as fatal.
//
// Parameters:
//   - dev: the device to create resources on
//   - options: functional options for size, buffer count and timeouts
//
// Returns:
//   - *Presenter: the ready presenter, positioned at the swap chain's current buffer
//   - error: creation failure
func New(dev gpu.Device, options ...PresenterBuilderOption) (*Presenter, error) {
	p := &Presenter{
		dev:         dev,
		queue:       dev.Queue(),
		width:       1280,
		height:      720,
		bufferCount: 3,
		format:      gpu.FormatBGRA8Unorm,
		depthFormat: gpu.FormatDepth32Float,
	}
	for _, opt := range options {
		opt(p)
	}

	swap, err := dev.CreateSwapChain(gpu.SwapChainDesc{
		Width:       p.width,
		Height:      p.height,
		BufferCount: p.bufferCount,
		Format:      p.format,
	})
	if err != nil {
		return nil, fmt.Errorf("presenter: swap chain: %w", err)
	}
	p.swap = swap

	list, err := dev.CreateCommandList("frame")
	if err != nil {
		return nil, fmt.Errorf("presenter: command list: %w", err)
	}
	p.list = list

	p.slots = make([]*Slot, swap.BufferCount())
	for i := range p.slots {
		s, err := p.newSlot(i)
		if err != nil {
			return nil, err
		}
		p.slots[i] = s
	}
	p.frameIndex = swap.CurrentBackBufferIndex()

	logger.Logger().Info("swap chain created",
		"buffers", len(p.slots), "width", p.width, "height", p.height, "tearing", swap.SupportsTearing())
	return p, nil
}

func (p *Presenter) newSlot(i int) (*Slot, error) {
	alloc, err := p.dev.CreateCommandAllocator()
	if err != nil {
		return nil, fmt.Errorf("presenter: slot %d allocator: %w", i, err)
	}
	fence, err := p.dev.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("presenter: slot %d fence: %w", i, err)
	}
	depth, err := p.createDepth(i)
	if err != nil {
		return nil, err
	}
	return &Slot{
		Index:      i,
		Allocator:  alloc,
		Fence:      fence,
		Event:      gpu.NewEvent(),
		BackBuffer: barrier.New(p.swap.BackBuffer(i), gpu.StatePresent),
		Depth:      barrier.New(depth, gpu.StateDepthWrite),
	}, nil
}

func (p *Presenter) createDepth(i int) (gpu.Texture, error) {
	depth, err := p.dev.CreateTexture(gpu.TextureDesc{
		Label:        fmt.Sprintf("depth %d", i),
		Width:        p.width,
		Height:       p.height,
		Format:       p.depthFormat,
		Usage:        gpu.TextureUsageDepthStencil | gpu.TextureUsageCopySource,
		InitialState: gpu.StateDepthWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("presenter: slot %d depth buffer: %w", i, err)
	}
	return depth, nil
}

// BeginFrame blocks until the current slot's previous submission has completed, resets
// its allocator and opens the frame command list against it.
//
// Returns:
//   - gpu.CommandList: the open list for this frame
//   - error: ErrSlotBusy, gpu.ErrDeviceLost when a bounded wait expires, or a reset failure
func (p *Presenter) BeginFrame() (gpu.CommandList, error) {
	s := p.slots[p.frameIndex]
	if s.State == SlotRecording {
		return nil, fmt.Errorf("slot %d: %w", s.Index, ErrSlotBusy)
	}

	timeout := gpu.Infinite
	if p.frameWaitTimeout > 0 {
		timeout = p.frameWaitTimeout
	}
	if err := p.waitSlot(s, timeout); err != nil {
		if errors.Is(err, gpu.ErrTimeout) {
			return nil, fmt.Errorf("slot %d stuck at fence %d: %w", s.Index, s.FenceValue, gpu.ErrDeviceLost)
		}
		return nil, err
	}

	if err := s.Allocator.Reset(); err != nil {
		return nil, fmt.Errorf("slot %d: %w", s.Index, err)
	}
	if err := p.list.Reset(s.Allocator); err != nil {
		return nil, fmt.Errorf("slot %d: %w", s.Index, err)
	}
	s.State = SlotRecording
	return p.list, nil
}

// waitSlot waits for s.Fence to reach s.FenceValue and marks the slot idle.
func (p *Presenter) waitSlot(s *Slot, timeout time.Duration) error {
	start := time.Now()
	if s.Fence.CompletedValue() < s.FenceValue {
		s.Event.Reset()
		if err := s.Fence.SetEventOnCompletion(s.FenceValue, s.Event); err != nil {
			return err
		}
		if err := s.Event.Wait(timeout); err != nil {
			return err
		}
	}
	p.lastWait = time.Since(start)
	if p.lastWait > time.Millisecond {
		logger.Logger().Debug("waited for frame slot", "slot", s.Index, "fence", s.FenceValue, "wait", p.lastWait)
	}
	if s.State == SlotSubmitted {
		s.State = SlotIdle
	}
	return nil
}

// Execute submits the closed frame list. Extra lists run after it in the same submission.
func (p *Presenter) Execute(extra ...gpu.CommandList) error {
	s := p.slots[p.frameIndex]
	lists := append([]gpu.CommandList{p.list}, extra...)
	if err := p.queue.Execute(lists...); err != nil {
		return fmt.Errorf("slot %d execute: %w", s.Index, err)
	}
	s.State = SlotSubmitted
	return nil
}

// Present displays the current back buffer, signals the slot's fence with its next
// target value and advances to the swap chain's next buffer. Without vsync the
// tearing flag is used when the swap chain supports it.
//
// Parameters:
//   - vsync: true to wait for vertical blank
//
// Returns:
//   - error: presentation or signal failure
func (p *Presenter) Present(vsync bool) error {
	interval, flags := 1, gpu.PresentFlags(0)
	if !vsync {
		interval = 0
		if p.swap.SupportsTearing() {
			flags |= gpu.PresentAllowTearing
		}
	}
	if err := p.swap.Present(interval, flags); err != nil {
		return fmt.Errorf("present: %w", err)
	}

	s := p.slots[p.frameIndex]
	s.FenceValue++
	if err := p.queue.Signal(s.Fence, s.FenceValue); err != nil {
		return fmt.Errorf("slot %d signal: %w", s.Index, err)
	}
	p.frameIndex = p.swap.CurrentBackBufferIndex()
	return nil
}

// WaitForIdle drains every slot: each fence is signalled past its target and waited on.
// Used before shutdown and resize. A recording slot has nothing on the GPU, so it is
// skipped and reported once every other slot has drained.
//
// Parameters:
//   - timeout: bound on each slot's wait, or gpu.Infinite
//
// Returns:
//   - error: gpu.ErrTimeout if any slot failed to drain in time, ErrSlotBusy if a slot
//     is still recording
func (p *Presenter) WaitForIdle(timeout time.Duration) error {
	var busy error
	for _, s := range p.slots {
		if s.State == SlotRecording {
			if busy == nil {
				busy = fmt.Errorf("slot %d: %w", s.Index, ErrSlotBusy)
			}
			continue
		}
		s.FenceValue++
		if err := p.queue.Signal(s.Fence, s.FenceValue); err != nil {
			return fmt.Errorf("slot %d signal: %w", s.Index, err)
		}
		if err := p.waitSlot(s, timeout); err != nil {
			return fmt.Errorf("slot %d drain: %w", s.Index, err)
		}
		s.State = SlotIdle
	}
	return busy
}

// Abandon gives up on the frame being recorded after a failure before Execute
// succeeded. The frame list is discarded, the slot returns to idle and its back buffer
// and depth buffer are tracked at rest again, since none of the recorded barriers ran.
func (p *Presenter) Abandon() {
	s := p.slots[p.frameIndex]
	if s.State != SlotRecording {
		return
	}
	p.list.Discard()
	s.BackBuffer.Replace(s.BackBuffer.Resource(), gpu.StatePresent)
	s.Depth.Replace(s.Depth.Resource(), gpu.StateDepthWrite)
	s.State = SlotIdle
	logger.Logger().Warn("frame abandoned", "slot", s.Index)
}

// Resize drains the GPU, recreates the swap chain buffers and per-slot depth buffers,
// and repositions at the swap chain's current buffer.
func (p *Presenter) Resize(width, height uint32, timeout time.Duration) error {
	if width == 0 || height == 0 {
		return nil
	}
	if err := p.WaitForIdle(timeout); err != nil {
		return err
	}
	if err := p.swap.Resize(width, height); err != nil {
		return fmt.Errorf("presenter: resize: %w", err)
	}
	p.width, p.height = width, height
	for i, s := range p.slots {
		s.Depth.Resource().Release()
		depth, err := p.createDepth(i)
		if err != nil {
			return err
		}
		s.BackBuffer.Replace(p.swap.BackBuffer(i), gpu.StatePresent)
		s.Depth.Replace(depth, gpu.StateDepthWrite)
	}
	p.frameIndex = p.swap.CurrentBackBufferIndex()
	logger.Logger().Info("swap chain resized", "width", width, "height", height)
	return nil
}

// Current returns the slot being recorded this frame.
func (p *Presenter) Current() *Slot {
	return p.slots[p.frameIndex]
}

// FrameIndex returns the current slot index.
func (p *Presenter) FrameIndex() int {
	return p.frameIndex
}

// Slots returns every frame slot in index order.
func (p *Presenter) Slots() []*Slot {
	return p.slots
}

// BufferCount returns the number of frame slots.
func (p *Presenter) BufferCount() int {
	return len(p.slots)
}

// Size returns the back buffer size in pixels.
func (p *Presenter) Size() (width, height uint32) {
	return p.width, p.height
}

// Format returns the back buffer format.
func (p *Presenter) Format() gpu.Format {
	return p.swap.Format()
}

// Queue returns the queue frames are submitted on.
func (p *Presenter) Queue() gpu.Queue {
	return p.queue
}

// LastWait returns how long the most recent BeginFrame blocked on its slot's fence.
func (p *Presenter) LastWait() time.Duration {
	return p.lastWait
}

// Release frees the swap chain and slot resources. Call WaitForIdle first.
func (p *Presenter) Release() {
	for _, s := range p.slots {
		s.Depth.Resource().Release()
		s.Fence.Release()
		s.Allocator.Release()
	}
	p.list.Release()
	p.swap.Release()
}
