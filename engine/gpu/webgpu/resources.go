package webgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Texture is a 2D texture with a default view covering every texel.
type Texture struct {
	desc    gpu.TextureDesc
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ gpu.Texture = &Texture{}

func (t *Texture) Label() string { return t.desc.Label }
func (t *Texture) Width() uint32 { return t.desc.Width }
func (t *Texture) Height() uint32 { return t.desc.Height }
func (t *Texture) Format() gpu.Format { return t.desc.Format }

// View returns the texture's default view.
func (t *Texture) View() *wgpu.TextureView {
	return t.view
}

func (t *Texture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// Buffer is a linear buffer. Readback buffers are mapped on Read.
type Buffer struct {
	dev    *Device
	desc   gpu.BufferDesc
	buffer *wgpu.Buffer
}

var _ gpu.Buffer = &Buffer{}

func (b *Buffer) Label() string { return b.desc.Label }
func (b *Buffer) Size() uint64 { return b.desc.Size }

// Read maps the buffer, copies from offset into dst and unmaps it again.
func (b *Buffer) Read(offset uint64, dst []byte) error {
	if b.desc.Usage&gpu.BufferUsageReadback == 0 {
		return fmt.Errorf("webgpu: buffer %q is not CPU readable", b.desc.Label)
	}
	if offset+uint64(len(dst)) > b.desc.Size {
		return fmt.Errorf("webgpu: read of %d bytes at %d overflows %q", len(dst), offset, b.desc.Label)
	}
	// The callback may run on the poll loop goroutine.
	mapped := make(chan wgpu.BufferMapAsyncStatus, 1)
	if err := b.buffer.MapAsync(wgpu.MapModeRead, 0, b.desc.Size, func(s wgpu.BufferMapAsyncStatus) {
		mapped <- s
	}); err != nil {
		return fmt.Errorf("webgpu: map %q: %w", b.desc.Label, err)
	}
	status := awaitMap(mapped, func() { b.dev.poll(true) })
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("webgpu: map %q: status %s", b.desc.Label, status.String())
	}
	data := b.buffer.GetMappedRange(0, uint(b.desc.Size))
	copy(dst, data[offset:])
	b.buffer.Unmap()
	return nil
}

// awaitMap polls until a map callback has reported its status on mapped.
func awaitMap(mapped <-chan wgpu.BufferMapAsyncStatus, poll func()) wgpu.BufferMapAsyncStatus {
	for {
		select {
		case s := <-mapped:
			return s
		default:
			poll()
		}
	}
}

func (b *Buffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

// allocator counts submitted lists that have not completed yet.
type allocator struct {
	pending atomic.Int32
}

func (a *allocator) Reset() error {
	if a.pending.Load() > 0 {
		return gpu.ErrAllocatorInUse
	}
	return nil
}

func (a *allocator) Release() {}

// rootSignature maps every parameter to the bind group of the same index.
type rootSignature struct {
	label  string
	params []gpu.RootParam
	groups []*wgpu.BindGroupLayout
	layout *wgpu.PipelineLayout
}

func (r *rootSignature) Label() string { return r.label }
func (r *rootSignature) Params() []gpu.RootParam { return r.params }

func (r *rootSignature) Release() {
	if r.layout != nil {
		r.layout.Release()
		r.layout = nil
	}
	for _, g := range r.groups {
		g.Release()
	}
	r.groups = nil
}

type pipelineState struct {
	label    string
	root     *rootSignature
	pipeline *wgpu.RenderPipeline
}

func (p *pipelineState) Label() string { return p.label }

func (p *pipelineState) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

// fence completes from queue work-done callbacks, which the device poller delivers.
type fence struct {
	*gpu.FenceTracker
}

func (f *fence) Signal(value uint64) error {
	f.Complete(value)
	return nil
}

func (f *fence) SetEventOnCompletion(value uint64, e *gpu.Event) error {
	f.Arm(value, e)
	return nil
}

func (f *fence) Release() {}
