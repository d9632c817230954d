// Package picking renders object ids into an integer target and reads them back
// on demand, so a pixel can be mapped to the object covering it.
package picking

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/barrier"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/Carmen-Shannon/oxy-frame/engine/settings"
)

// NoObject is the id of a pixel no object covers.
const NoObject uint32 = 0xFFFFFFFF

var (
	// ErrNotArmed is returned by Read when no pick has been signaled.
	ErrNotArmed = errors.New("picking: no pick in flight")
	// ErrInFlight is returned when a new pick is recorded before the previous one was read.
	ErrInFlight = errors.New("picking: previous pick not read")
)

// Result is one readback of the id and depth targets. Rows are RowPitch texels
// apart; texels past Width in each row are padding.
type Result struct {
	Width    uint32
	Height   uint32
	RowPitch uint32
	IDs      []uint32
	Depth    []float32
}

// At returns the object id at pixel (x, y), or NoObject outside the target.
func (r *Result) At(x, y uint32) uint32 {
	if x >= r.Width || y >= r.Height {
		return NoObject
	}
	return r.IDs[y*r.RowPitch+x]
}

// DepthAt returns the depth at pixel (x, y), or 1 outside the target.
func (r *Result) DepthAt(x, y uint32) float32 {
	if x >= r.Width || y >= r.Height {
		return 1
	}
	return r.Depth[y*r.RowPitch+x]
}

// Pass is the object-picking pass. It owns its own allocator, list, fence and
// event so a pick never waits on, or delays, the frame slots.
type Pass struct {
	dev     gpu.Device
	lib     *pipeline.Library
	heap    *gpu.DescriptorHeap
	set     pipeline.Set
	culling bool
	timeout time.Duration

	alloc gpu.CommandAllocator
	list  gpu.CommandList
	fence gpu.Fence
	event *gpu.Event

	width, height uint32
	ids           *barrier.Tracked[gpu.Texture]
	idPrint       gpu.Footprint
	depthPrint    gpu.Footprint
	idReadback    gpu.Buffer
	depthReadback gpu.Buffer
	scratch       []byte

	armed bool
}

// New creates a picking pass with width x height targets.
//
// Parameters:
//   - dev: the device
//   - lib: the pipeline library holding the object-id pipeline
//   - heap: the shared descriptor heap
//   - width, height: the target size, equal to the depth buffer passed to Record
//   - options: functional options
//
// Returns:
//   - *Pass: the picking pass
//   - error: a resource creation failure
func New(dev gpu.Device, lib *pipeline.Library, heap *gpu.DescriptorHeap, width, height uint32, options ...PassBuilderOption) (*Pass, error) {
	p := &Pass{
		dev:     dev,
		lib:     lib,
		heap:    heap,
		culling: true,
		timeout: settings.DefaultPickTimeout,
		event:   gpu.NewEvent(),
	}
	for _, o := range options {
		o(p)
	}
	p.set = pipeline.KeySet(p.culling)

	var err error
	if p.alloc, err = dev.CreateCommandAllocator(); err != nil {
		return nil, fmt.Errorf("picking: %w", err)
	}
	if p.list, err = dev.CreateCommandList("picking"); err != nil {
		p.Release()
		return nil, fmt.Errorf("picking: %w", err)
	}
	if p.fence, err = dev.CreateFence(0); err != nil {
		p.Release()
		return nil, fmt.Errorf("picking: %w", err)
	}
	if err := p.createTargets(width, height); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (p *Pass) createTargets(width, height uint32) error {
	ids, err := p.dev.CreateTexture(gpu.TextureDesc{
		Label:        "picking ids",
		Width:        width,
		Height:       height,
		Format:       gpu.FormatR32Uint,
		Usage:        gpu.TextureUsageRenderTarget | gpu.TextureUsageCopySource,
		InitialState: gpu.StateCommon,
	})
	if err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	p.ids = barrier.New(ids, gpu.StateCommon)
	p.width, p.height = width, height

	p.idPrint = gpu.ReadbackFootprint(width, height, gpu.FormatR32Uint)
	p.depthPrint = gpu.ReadbackFootprint(width, height, gpu.FormatDepth32Float)
	if p.idReadback, err = p.dev.CreateBuffer(gpu.BufferDesc{
		Label: "picking id readback",
		Size:  p.idPrint.Size(),
		Usage: gpu.BufferUsageReadback,
	}); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	if p.depthReadback, err = p.dev.CreateBuffer(gpu.BufferDesc{
		Label: "picking depth readback",
		Size:  p.depthPrint.Size(),
		Usage: gpu.BufferUsageReadback,
	}); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	p.scratch = make([]byte, max(p.idPrint.Size(), p.depthPrint.Size()))
	return nil
}

func (p *Pass) releaseTargets() {
	if p.ids != nil {
		p.ids.Resource().Release()
		p.ids = nil
	}
	if p.idReadback != nil {
		p.idReadback.Release()
		p.idReadback = nil
	}
	if p.depthReadback != nil {
		p.depthReadback.Release()
		p.depthReadback = nil
	}
}

// Armed reports whether a pick has been signaled and not read yet.
func (p *Pass) Armed() bool {
	return p.armed
}

// Size returns the target size.
func (p *Pass) Size() (uint32, uint32) {
	return p.width, p.height
}

// Record records an id pass of the opaque categories from view, then copies the id
// target and depth into the readback buffers and returns both to their rest states.
// depth is cleared and overwritten.
//
// Parameters:
//   - view: the view to pick from
//   - depth: a depth buffer of the pass size in the depth-write state
//   - surface: the scene to draw
//   - slot: the frame slot whose instance data is bound; it must be uploaded
//
// Returns:
//   - error: ErrInFlight if the previous pick was not read, or a recording failure
func (p *Pass) Record(view camera.View, depth *barrier.Tracked[gpu.Texture], surface scene.Surface, slot int) error {
	if p.armed {
		return ErrInFlight
	}
	d := depth.Resource()
	if d.Width() != p.width || d.Height() != p.height {
		return fmt.Errorf("picking: depth %dx%d, targets %dx%d", d.Width(), d.Height(), p.width, p.height)
	}
	if depth.State() != gpu.StateDepthWrite {
		return fmt.Errorf("picking: %s: %w", depth, gpu.ErrInvalidState)
	}
	ps, err := p.lib.Get(p.set.ObjectID)
	if err != nil {
		return fmt.Errorf("picking: %w", err)
	}

	if err := p.alloc.Reset(); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	cl := p.list
	if err := cl.Reset(p.alloc); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	cl.SetDescriptorHeap(p.heap)

	p.ids.Transition(cl, gpu.StateRenderTarget)
	cl.BeginPass(gpu.PassDesc{
		Label: "picking",
		Color: []gpu.ColorAttachment{{Target: p.ids.Resource(), Clear: true, ClearUint: NoObject}},
		Depth: &gpu.DepthAttachment{Target: d, Clear: true, ClearDepth: 1},
	})
	simple := p.lib.Layouts().Simple
	simple.Bind(cl)
	surface.SetShaderConstants(cl, simple, view, slot)
	cl.SetPipelineState(ps)
	surface.DrawCategory(cl, scene.CategoryDynamic, scene.TextureNone, simple, nil)
	surface.DrawCategory(cl, scene.CategoryStatic, scene.TextureNone, simple, nil)
	cl.EndPass()

	var b barrier.Batch
	barrier.Add(&b, p.ids, gpu.StateCopySource)
	barrier.Add(&b, depth, gpu.StateCopySource)
	b.Flush(cl)
	cl.CopyTextureToBuffer(p.ids.Resource(), p.idReadback, p.idPrint)
	cl.CopyTextureToBuffer(d, p.depthReadback, p.depthPrint)
	barrier.Add(&b, p.ids, p.ids.Rest())
	barrier.Add(&b, depth, depth.Rest())
	b.Flush(cl)

	if err := cl.Close(); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	return nil
}

// Execute submits the recorded pick.
func (p *Pass) Execute(q gpu.Queue) error {
	if err := q.Execute(p.list); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	return nil
}

// SignalDone queues the fence signal that marks the pick complete and arms the event.
//
// Parameters:
//   - q: the queue the pick was executed on
//
// Returns:
//   - error: a signaling failure
func (p *Pass) SignalDone(q gpu.Queue) error {
	p.event.Reset()
	if err := q.Signal(p.fence, 1); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	if err := p.fence.SetEventOnCompletion(1, p.event); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	p.armed = true
	return nil
}

// Read waits up to the configured timeout for the signaled pick, rewinds the fence
// and copies the readback memory into out. On gpu.ErrTimeout the pick stays armed
// and Read may be called again later.
//
// Parameters:
//   - out: the result to fill; its slices are reused when large enough
//
// Returns:
//   - error: ErrNotArmed, gpu.ErrTimeout, or a readback failure
func (p *Pass) Read(out *Result) error {
	if !p.armed {
		return ErrNotArmed
	}
	if err := p.event.Wait(p.timeout); err != nil {
		return err
	}
	p.armed = false
	if err := p.fence.Signal(0); err != nil {
		return fmt.Errorf("picking: %w", err)
	}

	pitch := p.idPrint.RowPitchTexels()
	n := int(pitch * p.height)
	out.Width, out.Height, out.RowPitch = p.width, p.height, pitch
	out.IDs = grow(out.IDs, n)
	out.Depth = grow(out.Depth, n)

	buf := p.scratch[:p.idPrint.Size()]
	if err := p.idReadback.Read(0, buf); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	for i := range n {
		out.IDs[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	buf = p.scratch[:p.depthPrint.Size()]
	if err := p.depthReadback.Read(0, buf); err != nil {
		return fmt.Errorf("picking: %w", err)
	}
	for i := range n {
		out.Depth[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return nil
}

func grow[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// Resize recreates the targets for a new depth buffer size. No pick may be in flight.
func (p *Pass) Resize(width, height uint32) error {
	if p.armed {
		return ErrInFlight
	}
	if width == p.width && height == p.height {
		return nil
	}
	p.releaseTargets()
	return p.createTargets(width, height)
}

// Release frees every resource. No pick may be in flight.
func (p *Pass) Release() {
	p.releaseTargets()
	if p.list != nil {
		p.list.Release()
	}
	if p.alloc != nil {
		p.alloc.Release()
	}
	if p.fence != nil {
		p.fence.Release()
	}
}
