package webgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// execState carries binding state while a list is encoded.
type execState struct {
	enc      *wgpu.CommandEncoder
	pass     *wgpu.RenderPassEncoder
	root     *rootSignature
	pipeline *pipelineState
	heap     *gpu.DescriptorHeap

	constants map[int]uint32
	tables    map[int]gpu.DescriptorRange
	vertex    *Buffer
	index     *Buffer
	viewport  *gpu.Viewport
	scissor   *gpu.Rect
	dirty     bool
}

type op func(st *execState) error

type commandList struct {
	dev    *Device
	label  string
	alloc  *allocator
	open   bool
	inPass bool
	ops    []op

	// constants holds every root constant block recorded since Reset, each
	// aligned to constantAlignment so it can be bound with a dynamic offset.
	constants []byte
	uniform   *wgpu.Buffer
	capacity  uint64
	cgroups   map[constKey]*wgpu.BindGroup
}

type constKey struct {
	layout *wgpu.BindGroupLayout
	size   uint32
}

var _ gpu.CommandList = &commandList{}

func (c *commandList) Reset(alloc gpu.CommandAllocator) error {
	if c.open {
		return fmt.Errorf("webgpu: reset of open list %q: %w", c.label, gpu.ErrInvalidState)
	}
	a, ok := alloc.(*allocator)
	if !ok {
		return fmt.Errorf("webgpu: foreign allocator %T", alloc)
	}
	c.alloc = a
	c.open = true
	c.inPass = false
	c.ops = c.ops[:0]
	c.constants = c.constants[:0]
	return nil
}

func (c *commandList) Close() error {
	if !c.open {
		return fmt.Errorf("webgpu: close of closed list %q: %w", c.label, gpu.ErrInvalidState)
	}
	if c.inPass {
		return fmt.Errorf("webgpu: list %q closed inside a pass: %w", c.label, gpu.ErrInvalidState)
	}
	c.open = false
	return nil
}

func (c *commandList) Discard() {
	c.open = false
	c.inPass = false
	c.ops = c.ops[:0]
	c.constants = c.constants[:0]
}

func (c *commandList) record(o op) {
	if c.open {
		c.ops = append(c.ops, o)
	}
}

func (c *commandList) ResourceBarrier(...gpu.Barrier) {}

func (c *commandList) BeginPass(desc gpu.PassDesc) {
	c.inPass = true
	pd := desc
	pd.Color = append([]gpu.ColorAttachment(nil), desc.Color...)
	c.record(func(st *execState) error {
		rp := &wgpu.RenderPassDescriptor{Label: pd.Label}
		for _, a := range pd.Color {
			view, err := viewOf(a.Target)
			if err != nil {
				return err
			}
			att := wgpu.RenderPassColorAttachment{
				View:    view,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			}
			if a.Clear {
				att.LoadOp = wgpu.LoadOpClear
				att.ClearValue = clearValue(a)
			}
			rp.ColorAttachments = append(rp.ColorAttachments, att)
		}
		if pd.Depth != nil {
			view, err := viewOf(pd.Depth.Target)
			if err != nil {
				return err
			}
			ds := &wgpu.RenderPassDepthStencilAttachment{View: view}
			switch {
			case pd.Depth.ReadOnly:
				ds.DepthReadOnly = true
			case pd.Depth.Clear:
				ds.DepthLoadOp = wgpu.LoadOpClear
				ds.DepthStoreOp = wgpu.StoreOpStore
				ds.DepthClearValue = pd.Depth.ClearDepth
			default:
				ds.DepthLoadOp = wgpu.LoadOpLoad
				ds.DepthStoreOp = wgpu.StoreOpStore
			}
			rp.DepthStencilAttachment = ds
		}
		st.pass = st.enc.BeginRenderPass(rp)
		st.dirty = true
		return nil
	})
}

func clearValue(a gpu.ColorAttachment) wgpu.Color {
	if a.Target.Format() == gpu.FormatR32Uint {
		return wgpu.Color{R: float64(a.ClearUint)}
	}
	return wgpu.Color{
		R: float64(a.ClearColor[0]),
		G: float64(a.ClearColor[1]),
		B: float64(a.ClearColor[2]),
		A: float64(a.ClearColor[3]),
	}
}

func (c *commandList) EndPass() {
	c.inPass = false
	c.record(func(st *execState) error {
		if st.pass == nil {
			return fmt.Errorf("EndPass without BeginPass: %w", gpu.ErrInvalidState)
		}
		st.pass.End()
		st.pass.Release()
		st.pass = nil
		return nil
	})
}

func (c *commandList) SetRootSignature(rs gpu.RootSignature) {
	r, _ := rs.(*rootSignature)
	c.record(func(st *execState) error {
		st.root = r
		st.constants = make(map[int]uint32)
		st.tables = make(map[int]gpu.DescriptorRange)
		st.dirty = true
		return nil
	})
}

func (c *commandList) SetDescriptorHeap(heap *gpu.DescriptorHeap) {
	c.record(func(st *execState) error {
		st.heap = heap
		st.dirty = true
		return nil
	})
}

func (c *commandList) SetPipelineState(ps gpu.PipelineState) {
	p, _ := ps.(*pipelineState)
	c.record(func(st *execState) error {
		st.pipeline = p
		st.dirty = true
		return nil
	})
}

func (c *commandList) SetRootConstants(param int, data []byte) {
	offset := uint32(len(c.constants))
	c.constants = append(c.constants, data...)
	pad := common.AlignUp(uint64(len(c.constants)), constantAlignment)
	c.constants = append(c.constants, make([]byte, int(pad)-len(c.constants))...)
	c.record(func(st *execState) error {
		if st.root == nil || param >= len(st.root.params) || st.root.params[param].Kind != gpu.RootParamConstants {
			return fmt.Errorf("root constants at invalid parameter %d: %w", param, gpu.ErrInvalidState)
		}
		st.constants[param] = offset
		st.dirty = true
		return nil
	})
}

func (c *commandList) SetDescriptorTable(param int, r gpu.DescriptorRange) {
	c.record(func(st *execState) error {
		if st.root == nil || param >= len(st.root.params) || st.root.params[param].Kind != gpu.RootParamTable {
			return fmt.Errorf("descriptor table at invalid parameter %d: %w", param, gpu.ErrInvalidState)
		}
		st.tables[param] = r
		st.dirty = true
		return nil
	})
}

func (c *commandList) SetViewport(v gpu.Viewport) {
	c.record(func(st *execState) error {
		st.viewport = &v
		st.dirty = true
		return nil
	})
}

func (c *commandList) SetScissor(r gpu.Rect) {
	c.record(func(st *execState) error {
		st.scissor = &r
		st.dirty = true
		return nil
	})
}

func (c *commandList) SetVertexBuffer(b gpu.Buffer, _ uint32) {
	vb, _ := b.(*Buffer)
	c.record(func(st *execState) error {
		st.vertex = vb
		st.dirty = true
		return nil
	})
}

func (c *commandList) SetIndexBuffer(b gpu.Buffer) {
	ib, _ := b.(*Buffer)
	c.record(func(st *execState) error {
		st.index = ib
		st.dirty = true
		return nil
	})
}

func (c *commandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	c.record(func(st *execState) error {
		if st.pass == nil {
			return fmt.Errorf("draw outside a pass: %w", gpu.ErrInvalidState)
		}
		if st.dirty {
			if err := c.flush(st); err != nil {
				return err
			}
			st.dirty = false
		}
		st.pass.DrawIndexed(indexCount, instanceCount, startIndex, baseVertex, startInstance)
		return nil
	})
}

// flush applies the pending binding state to the open pass.
func (c *commandList) flush(st *execState) error {
	if st.pipeline == nil || st.root == nil {
		return fmt.Errorf("draw without pipeline or root signature: %w", gpu.ErrInvalidState)
	}
	st.pass.SetPipeline(st.pipeline.pipeline)
	for i, p := range st.root.params {
		layout := st.root.groups[i]
		if p.Kind == gpu.RootParamConstants {
			offset, ok := st.constants[i]
			if !ok {
				return fmt.Errorf("root constants %d unset", i)
			}
			bg, err := c.constantGroup(layout, p.Size)
			if err != nil {
				return err
			}
			st.pass.SetBindGroup(uint32(i), bg, []uint32{offset})
			continue
		}
		r, ok := st.tables[i]
		if !ok {
			return fmt.Errorf("descriptor table %d unset", i)
		}
		if st.heap == nil {
			return fmt.Errorf("descriptor table %d without heap: %w", i, gpu.ErrInvalidState)
		}
		bg, err := c.dev.groups.get(c.dev, st.heap, layout, p, r)
		if err != nil {
			return err
		}
		st.pass.SetBindGroup(uint32(i), bg, nil)
	}
	if st.vertex != nil {
		st.pass.SetVertexBuffer(0, st.vertex.buffer, 0, wgpu.WholeSize)
	}
	if st.index != nil {
		st.pass.SetIndexBuffer(st.index.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
	if v := st.viewport; v != nil {
		st.pass.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	}
	if r := st.scissor; r != nil {
		st.pass.SetScissorRect(r.X, r.Y, r.Width, r.Height)
	}
	return nil
}

func (c *commandList) constantGroup(layout *wgpu.BindGroupLayout, size uint32) (*wgpu.BindGroup, error) {
	key := constKey{layout: layout, size: size}
	if bg, ok := c.cgroups[key]; ok {
		return bg, nil
	}
	bg, err := c.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  c.label + " constants",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  c.uniform,
			Offset:  0,
			Size:    uint64(size),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("constants bind group: %w", err)
	}
	if c.cgroups == nil {
		c.cgroups = make(map[constKey]*wgpu.BindGroup)
	}
	c.cgroups[key] = bg
	return bg, nil
}

func (c *commandList) CopyTextureToBuffer(src gpu.Texture, dst gpu.Buffer, fp gpu.Footprint) {
	c.record(func(st *execState) error {
		t, ok := src.(*Texture)
		if !ok {
			return fmt.Errorf("copy from foreign texture %T", src)
		}
		b, ok := dst.(*Buffer)
		if !ok {
			return fmt.Errorf("copy into foreign buffer %T", dst)
		}
		if fp.Size() > b.desc.Size {
			return fmt.Errorf("copy of %d bytes overflows %q", fp.Size(), b.desc.Label)
		}
		aspect := wgpu.TextureAspectAll
		if t.desc.Format.IsDepth() {
			aspect = wgpu.TextureAspectDepthOnly
		}
		st.enc.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{Texture: t.texture, Aspect: aspect},
			&wgpu.ImageCopyBuffer{
				Buffer: b.buffer,
				Layout: wgpu.TextureDataLayout{
					Offset:       fp.Offset,
					BytesPerRow:  fp.RowPitch,
					RowsPerImage: fp.Height,
				},
			},
			&wgpu.Extent3D{Width: fp.Width, Height: fp.Height, DepthOrArrayLayers: 1},
		)
		return nil
	})
}

// submit uploads the staged constants, encodes every op and submits the result.
func (c *commandList) submit() error {
	if err := c.stageConstants(); err != nil {
		return err
	}
	enc, err := c.dev.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: c.label})
	if err != nil {
		return err
	}
	defer enc.Release()

	st := &execState{enc: enc}
	for _, o := range c.ops {
		if err := o(st); err != nil {
			if st.pass != nil {
				st.pass.End()
				st.pass.Release()
			}
			return err
		}
	}
	buf, err := enc.Finish(nil)
	if err != nil {
		return err
	}
	defer buf.Release()
	c.dev.wq.Submit(buf)
	return nil
}

func (c *commandList) stageConstants() error {
	if len(c.constants) == 0 {
		return nil
	}
	need := uint64(len(c.constants))
	if c.uniform == nil || need > c.capacity {
		c.releaseConstants()
		capacity := common.AlignUp(need*2, constantAlignment)
		buf, err := c.dev.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: c.label + " constants",
			Size:  capacity,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("constants buffer: %w", err)
		}
		c.uniform = buf
		c.capacity = capacity
	}
	c.dev.wq.WriteBuffer(c.uniform, 0, c.constants)
	return nil
}

func (c *commandList) releaseConstants() {
	for k, bg := range c.cgroups {
		bg.Release()
		delete(c.cgroups, k)
	}
	if c.uniform != nil {
		c.uniform.Release()
		c.uniform = nil
	}
}

func (c *commandList) Release() {
	c.releaseConstants()
}

// viewOf resolves the render target view of a texture, acquiring the surface
// texture for back buffers.
func viewOf(t gpu.Texture) (*wgpu.TextureView, error) {
	switch v := t.(type) {
	case *Texture:
		return v.view, nil
	case *backBuffer:
		return v.acquire()
	}
	return nil, fmt.Errorf("foreign texture %T", t)
}

// groupCache holds table bind groups until the heap they were built from changes.
type groupCache struct {
	mu       sync.Mutex
	heap     *gpu.DescriptorHeap
	revision uint64
	groups   map[groupKey]*wgpu.BindGroup
}

type groupKey struct {
	layout *wgpu.BindGroupLayout
	r      gpu.DescriptorRange
}

func newGroupCache() *groupCache {
	return &groupCache{groups: make(map[groupKey]*wgpu.BindGroup)}
}

func (g *groupCache) get(d *Device, heap *gpu.DescriptorHeap, layout *wgpu.BindGroupLayout, p gpu.RootParam, r gpu.DescriptorRange) (*wgpu.BindGroup, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rev := heap.Revision(); heap != g.heap || rev != g.revision {
		g.dropLocked()
		g.heap, g.revision = heap, rev
	}
	key := groupKey{layout: layout, r: r}
	if bg, ok := g.groups[key]; ok {
		return bg, nil
	}

	count := int(p.Count)
	slots := heap.Range(gpu.DescriptorRange{Start: r.Start, Count: min(r.Count, count)})
	entries := make([]wgpu.BindGroupEntry, 0, count+1)
	for i := range count {
		var res gpu.Resource
		if i < len(slots) {
			res = slots[i]
		}
		e, err := d.tableEntry(uint32(i), p.Descriptor, res)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	switch p.Descriptor {
	case gpu.DescriptorTexture:
		entries = append(entries, wgpu.BindGroupEntry{Binding: p.Count, Sampler: d.linear})
	case gpu.DescriptorDepthTexture:
		entries = append(entries, wgpu.BindGroupEntry{Binding: p.Count, Sampler: d.comparison})
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s[%d:%d]", heap.Label(), r.Start, r.Start+r.Count),
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("table bind group: %w", err)
	}
	g.groups[key] = bg
	return bg, nil
}

// tableEntry binds res, or a placeholder when the slot was never written.
func (d *Device) tableEntry(binding uint32, kind gpu.DescriptorKind, res gpu.Resource) (wgpu.BindGroupEntry, error) {
	e := wgpu.BindGroupEntry{Binding: binding}
	switch kind {
	case gpu.DescriptorStorageBuffer:
		buf := d.dummyBuffer
		if b, ok := res.(*Buffer); ok {
			buf = b
		} else if res != nil {
			return e, fmt.Errorf("binding %d: %T is not a buffer", binding, res)
		}
		e.Buffer = buf.buffer
		e.Size = wgpu.WholeSize
	case gpu.DescriptorDepthTexture, gpu.DescriptorTexture:
		tex := d.dummyColor
		if kind == gpu.DescriptorDepthTexture {
			tex = d.dummyDepth
		}
		if t, ok := res.(*Texture); ok {
			tex = t
		} else if res != nil {
			return e, fmt.Errorf("binding %d: %T is not a texture", binding, res)
		}
		e.TextureView = tex.view
	default:
		return e, errors.New("unknown descriptor kind")
	}
	return e, nil
}

func (g *groupCache) dropLocked() {
	for k, bg := range g.groups {
		bg.Release()
		delete(g.groups, k)
	}
}

func (g *groupCache) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropLocked()
}
