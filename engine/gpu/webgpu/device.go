// Package webgpu implements the gpu interfaces on WebGPU through wgpu-native.
//
// WebGPU tracks resource usage itself, so barriers only matter to the callers'
// bookkeeping and record nothing here. Command lists are recorded as deferred
// operations and encoded into a single-use command encoder when executed. Root
// parameters map one-to-one onto bind groups: constants become a uniform buffer
// bound with a dynamic offset, tables become bind groups built from heap ranges.
package webgpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
)

// constantAlignment is the minimum dynamic uniform buffer offset alignment.
const constantAlignment = 256

// Option configures a Device.
type Option func(*config)

type config struct {
	fallback     bool
	pollInterval time.Duration
}

// WithFallbackAdapter requests the software adapter.
func WithFallbackAdapter(on bool) Option {
	return func(c *config) {
		c.fallback = on
	}
}

// WithPollInterval sets how often completed work is collected. Fences and
// allocators only advance when the device is polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// Device is a WebGPU device with an optional presentation surface.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	wq       *wgpu.Queue
	surface  *wgpu.Surface
	queue    *queue

	pollMu sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	linear      *wgpu.Sampler
	comparison  *wgpu.Sampler
	dummyColor  *Texture
	dummyDepth  *Texture
	dummyBuffer *Buffer

	groups *groupCache
}

var _ gpu.Device = &Device{}

// NewDevice creates an adapter and device compatible with surface. A nil surface
// creates a headless device that cannot create swap chains.
//
// Parameters:
//   - surface: the window's surface descriptor, or nil
//   - opts: functional options
//
// Returns:
//   - *Device: the device
//   - error: if no adapter or device is available
func NewDevice(surface *wgpu.SurfaceDescriptor, opts ...Option) (*Device, error) {
	cfg := config{pollInterval: time.Millisecond}
	for _, o := range opts {
		o(&cfg)
	}

	d := &Device{instance: wgpu.CreateInstance(nil), stop: make(chan struct{})}
	if surface != nil {
		d.surface = d.instance.CreateSurface(surface)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.fallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("webgpu: adapter: %w", err)
	}
	d.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-frame",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("webgpu: device: %w", err)
	}
	d.device = dev
	d.wq = dev.GetQueue()
	d.queue = &queue{dev: d}
	d.groups = newGroupCache()

	if err := d.createDefaults(); err != nil {
		d.Release()
		return nil, err
	}

	d.wg.Add(1)
	go d.pollLoop(cfg.pollInterval)
	logger.Logger().Info("webgpu device ready", "fallback", cfg.fallback, "headless", surface == nil)
	return d, nil
}

// createDefaults creates the samplers and the placeholders bound in place of
// unwritten descriptors.
func (d *Device) createDefaults() error {
	var err error
	d.linear, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "material sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("webgpu: sampler: %w", err)
	}
	d.comparison, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "shadow sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		Compare:       wgpu.CompareFunctionLess,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("webgpu: comparison sampler: %w", err)
	}

	color, err := d.CreateTexture(gpu.TextureDesc{
		Label: "placeholder color", Width: 1, Height: 1, Format: gpu.FormatRGBA8Unorm,
		Usage: gpu.TextureUsageShaderResource,
	})
	if err != nil {
		return err
	}
	d.dummyColor = color.(*Texture)
	depth, err := d.CreateTexture(gpu.TextureDesc{
		Label: "placeholder depth", Width: 1, Height: 1, Format: gpu.FormatDepth32Float,
		Usage: gpu.TextureUsageShaderResource | gpu.TextureUsageDepthStencil,
	})
	if err != nil {
		return err
	}
	d.dummyDepth = depth.(*Texture)
	buf, err := d.CreateBuffer(gpu.BufferDesc{Label: "placeholder storage", Size: 256, Usage: gpu.BufferUsageStorage})
	if err != nil {
		return err
	}
	d.dummyBuffer = buf.(*Buffer)
	return nil
}

// pollLoop delivers work-done and map callbacks until the device is released.
func (d *Device) pollLoop(interval time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.poll(false)
		}
	}
}

func (d *Device) poll(wait bool) {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()
	d.device.Poll(wait, nil)
}

func (d *Device) Queue() gpu.Queue {
	return d.queue
}

func (d *Device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	return &allocator{}, nil
}

func (d *Device) CreateCommandList(label string) (gpu.CommandList, error) {
	return &commandList{dev: d, label: label}, nil
}

func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	return &fence{FenceTracker: gpu.NewFenceTracker(initial)}, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	format := textureFormat(desc.Format)
	if format == wgpu.TextureFormatUndefined {
		return nil, fmt.Errorf("webgpu: texture %q has unsupported format %s", desc.Label, desc.Format)
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("webgpu: texture view %q: %w", desc.Label, err)
	}
	return &Texture{desc: desc, texture: tex, view: view}, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("webgpu: buffer %q has zero size", desc.Label)
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: buffer %q: %w", desc.Label, err)
	}
	return &Buffer{dev: d, desc: desc, buffer: buf}, nil
}

func (d *Device) CreateRootSignature(desc gpu.RootSignatureDesc) (gpu.RootSignature, error) {
	rs := &rootSignature{label: desc.Label, params: append([]gpu.RootParam(nil), desc.Params...)}
	for i, p := range desc.Params {
		layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s param %d", desc.Label, i),
			Entries: layoutEntries(p),
		})
		if err != nil {
			rs.Release()
			return nil, fmt.Errorf("webgpu: root signature %q param %d: %w", desc.Label, i, err)
		}
		rs.groups = append(rs.groups, layout)
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: rs.groups,
	})
	if err != nil {
		rs.Release()
		return nil, fmt.Errorf("webgpu: root signature %q: %w", desc.Label, err)
	}
	rs.layout = layout
	return rs, nil
}

// layoutEntries describes the bindings of one root parameter. Texture tables end
// with their sampler at binding Count.
func layoutEntries(p gpu.RootParam) []wgpu.BindGroupLayoutEntry {
	vis := shaderStage(p.Pixel)
	if p.Kind == gpu.RootParamConstants {
		return []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: vis,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uint64(p.Size),
			},
		}}
	}

	entries := make([]wgpu.BindGroupLayoutEntry, 0, p.Count+1)
	for i := range p.Count {
		e := wgpu.BindGroupLayoutEntry{Binding: i, Visibility: vis}
		switch p.Descriptor {
		case gpu.DescriptorStorageBuffer:
			e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
		case gpu.DescriptorDepthTexture:
			e.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeDepth, ViewDimension: wgpu.TextureViewDimension2D}
		default:
			e.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D}
		}
		entries = append(entries, e)
	}
	switch p.Descriptor {
	case gpu.DescriptorTexture:
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding: p.Count, Visibility: vis,
			Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		})
	case gpu.DescriptorDepthTexture:
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding: p.Count, Visibility: vis,
			Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeComparison},
		})
	}
	return entries
}

func (d *Device) CreatePipelineState(desc gpu.PipelineDesc) (gpu.PipelineState, error) {
	rs, ok := desc.RootSignature.(*rootSignature)
	if !ok {
		return nil, fmt.Errorf("webgpu: pipeline %q has no root signature", desc.Label)
	}
	vs, err := d.shaderModule(desc.Vertex)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}
	defer vs.Release()

	rp := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: rs.layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.Entry,
			Buffers:    vertexBufferLayouts(desc.VertexLayout),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.Cull),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.DepthFormat != gpu.FormatUndefined {
		rp.DepthStencil = &wgpu.DepthStencilState{
			Format:            textureFormat(desc.DepthFormat),
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compareFunction(desc.DepthCompare),
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}
	if desc.Pixel != nil {
		fs, err := d.shaderModule(*desc.Pixel)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
		}
		defer fs.Release()
		targets := make([]wgpu.ColorTargetState, len(desc.ColorFormats))
		for i, f := range desc.ColorFormats {
			targets[i] = wgpu.ColorTargetState{Format: textureFormat(f), WriteMask: wgpu.ColorWriteMaskAll}
			if desc.Blend {
				targets[i].Blend = alphaBlend
			}
		}
		rp.Fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Pixel.Entry,
			Targets:    targets,
		}
	}

	created, err := d.device.CreateRenderPipeline(rp)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w: %v", desc.Label, gpu.ErrShaderCompile, err)
	}
	return &pipelineState{label: desc.Label, root: rs, pipeline: created}, nil
}

func (d *Device) shaderModule(src gpu.ShaderSource) (*wgpu.ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: src.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: src.Code,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", gpu.ErrShaderCompile, src.Name, err)
	}
	return m, nil
}

func (d *Device) CreateSwapChain(desc gpu.SwapChainDesc) (gpu.SwapChain, error) {
	if d.surface == nil {
		return nil, errors.New("webgpu: headless device has no surface")
	}
	if desc.BufferCount < 2 {
		return nil, fmt.Errorf("webgpu: swap chain needs at least 2 buffers, got %d", desc.BufferCount)
	}
	sc := &swapChain{dev: d, width: desc.Width, height: desc.Height, mode: wgpu.PresentModeFifo}
	sc.pick(desc.Format)
	sc.buffers = make([]*backBuffer, desc.BufferCount)
	for i := range sc.buffers {
		sc.buffers[i] = &backBuffer{sc: sc, label: fmt.Sprintf("back buffer %d", i)}
	}
	sc.configure()
	return sc, nil
}

// Release stops the poller and frees the device. No work may be pending.
func (d *Device) Release() {
	d.once.Do(func() {
		close(d.stop)
		d.wg.Wait()
		if d.groups != nil {
			d.groups.reset()
		}
		for _, t := range []*Texture{d.dummyColor, d.dummyDepth} {
			if t != nil {
				t.Release()
			}
		}
		if d.dummyBuffer != nil {
			d.dummyBuffer.Release()
		}
		if d.linear != nil {
			d.linear.Release()
		}
		if d.comparison != nil {
			d.comparison.Release()
		}
		if d.wq != nil {
			d.wq.Release()
		}
		if d.device != nil {
			d.device.Release()
		}
		if d.adapter != nil {
			d.adapter.Release()
		}
		if d.surface != nil {
			d.surface.Release()
		}
		if d.instance != nil {
			d.instance.Release()
		}
	})
}

type queue struct {
	dev *Device
}

func (q *queue) Execute(lists ...gpu.CommandList) error {
	for _, l := range lists {
		cl, ok := l.(*commandList)
		if !ok {
			return fmt.Errorf("webgpu: foreign command list %T", l)
		}
		if cl.open {
			return fmt.Errorf("webgpu: executing open command list %q: %w", cl.label, gpu.ErrInvalidState)
		}
		if err := cl.submit(); err != nil {
			return fmt.Errorf("webgpu: %q: %w", cl.label, err)
		}
		alloc := cl.alloc
		alloc.pending.Add(1)
		q.dev.wq.OnSubmittedWorkDone(func(wgpu.QueueWorkDoneStatus) {
			alloc.pending.Add(-1)
		})
	}
	return nil
}

func (q *queue) Signal(f gpu.Fence, value uint64) error {
	wf, ok := f.(*fence)
	if !ok {
		return fmt.Errorf("webgpu: foreign fence %T", f)
	}
	q.dev.wq.OnSubmittedWorkDone(func(wgpu.QueueWorkDoneStatus) {
		wf.Complete(value)
	})
	return nil
}

func (q *queue) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	wb, ok := b.(*Buffer)
	if !ok {
		return fmt.Errorf("webgpu: foreign buffer %T", b)
	}
	if offset+uint64(len(data)) > wb.desc.Size {
		return fmt.Errorf("webgpu: write of %d bytes at %d overflows %q", len(data), offset, wb.desc.Label)
	}
	q.dev.wq.WriteBuffer(wb.buffer, offset, data)
	runtime.KeepAlive(data)
	return nil
}

func (q *queue) WriteTexture(t gpu.Texture, data []byte) error {
	wt, ok := t.(*Texture)
	if !ok {
		return fmt.Errorf("webgpu: foreign texture %T", t)
	}
	bpp := wt.desc.Format.BytesPerPixel()
	if want := int(wt.desc.Width * wt.desc.Height * bpp); len(data) != want {
		return fmt.Errorf("webgpu: texture %q needs %d bytes, got %d", wt.desc.Label, want, len(data))
	}
	size := wgpu.Extent3D{Width: wt.desc.Width, Height: wt.desc.Height, DepthOrArrayLayers: 1}
	q.dev.wq.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  wt.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  wt.desc.Width * bpp,
			RowsPerImage: wt.desc.Height,
		},
		&size,
	)
	return nil
}
