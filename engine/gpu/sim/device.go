// Package sim is an in-memory GPU used by tests. Submitted work runs on a separate
// timeline goroutine after an optional latency, resource states are validated the
// way a debug layer would, and clears, copies and draws operate on real byte slices.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// DrawFunc is invoked on the GPU timeline for every executed draw.
type DrawFunc func(d Draw)

// Draw describes an executed draw call.
type Draw struct {
	Pipeline      string
	Pass          gpu.PassDesc
	IndexCount    uint32
	InstanceCount uint32
	StartInstance uint32
	Constants     map[int][]byte
}

// Stats counts executed GPU work.
type Stats struct {
	Executes  int
	Barriers  int
	Passes    int
	Clears    int
	Draws     int
	Instances int
	Copies    int
	Presents  int
	// LastPresentInterval and LastPresentFlags describe the most recent Present.
	LastPresentInterval int
	LastPresentFlags    gpu.PresentFlags
}

// Option configures a Device.
type Option func(*Device)

// WithLatency delays every submission on the GPU timeline by d.
func WithLatency(d time.Duration) Option {
	return func(dev *Device) {
		dev.latency = d
	}
}

// WithDrawHook installs fn to observe or rasterize draws.
func WithDrawHook(fn DrawFunc) Option {
	return func(dev *Device) {
		dev.drawHook = fn
	}
}

// WithShaderCompiler replaces the default compile check, which rejects empty shader code.
func WithShaderCompiler(fn func(gpu.ShaderSource) error) Option {
	return func(dev *Device) {
		dev.compile = fn
	}
}

// WithTearing sets whether created swap chains report tearing support.
func WithTearing(supported bool) Option {
	return func(dev *Device) {
		dev.tearing = supported
	}
}

// Device is a simulated gpu.Device.
type Device struct {
	latency  time.Duration
	drawHook DrawFunc
	compile  func(gpu.ShaderSource) error
	tearing  bool

	queue    *queue
	timeline chan func()
	done     chan struct{}
	once     sync.Once

	mu         sync.Mutex
	states     map[gpu.Resource]gpu.ResourceState
	violations []error
	stats      Stats
	inflight   sync.WaitGroup
}

var _ gpu.Device = &Device{}

// NewDevice starts a simulated device and its GPU timeline.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		timeline: make(chan func(), 64),
		done:     make(chan struct{}),
		states:   make(map[gpu.Resource]gpu.ResourceState),
		compile: func(s gpu.ShaderSource) error {
			if s.Code == "" {
				return fmt.Errorf("%s: empty module: %w", s.Name, gpu.ErrShaderCompile)
			}
			return nil
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = &queue{dev: d}
	go d.run()
	return d
}

func (d *Device) run() {
	defer close(d.done)
	for work := range d.timeline {
		work()
		d.inflight.Done()
	}
}

// enqueue appends work to the GPU timeline.
func (d *Device) enqueue(work func()) {
	d.inflight.Add(1)
	d.timeline <- work
}

// Idle blocks until all submitted work has run.
func (d *Device) Idle() {
	d.inflight.Wait()
}

// Stats returns a snapshot of the execution counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ResetStats zeroes the execution counters.
func (d *Device) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = Stats{}
}

// Violations returns every validation failure seen so far.
func (d *Device) Violations() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]error, len(d.violations))
	copy(out, d.violations)
	return out
}

// State returns the state r is in on the GPU timeline.
func (d *Device) State(r gpu.Resource) gpu.ResourceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[r]
}

func (d *Device) violation(format string, args ...any) {
	d.violations = append(d.violations, fmt.Errorf(format+": %w", append(args, gpu.ErrInvalidState)...))
}

// expect checks r against want. Caller holds d.mu.
func (d *Device) expect(r gpu.Resource, want gpu.ResourceState, what string) {
	if got := d.states[r]; got != want {
		d.violation("%s %q: in %s, want %s", what, r.Label(), got, want)
	}
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
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("sim: texture %q has zero size", desc.Label)
	}
	bpp := desc.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("sim: texture %q has unsupported format %s", desc.Label, desc.Format)
	}
	t := &Texture{desc: desc, data: make([]byte, desc.Width*desc.Height*bpp)}
	d.mu.Lock()
	d.states[t] = desc.InitialState
	d.mu.Unlock()
	return t, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("sim: buffer %q has zero size", desc.Label)
	}
	return &Buffer{desc: desc, data: make([]byte, desc.Size)}, nil
}

func (d *Device) CreateRootSignature(desc gpu.RootSignatureDesc) (gpu.RootSignature, error) {
	params := make([]gpu.RootParam, len(desc.Params))
	copy(params, desc.Params)
	return &rootSignature{label: desc.Label, params: params}, nil
}

func (d *Device) CreatePipelineState(desc gpu.PipelineDesc) (gpu.PipelineState, error) {
	if desc.RootSignature == nil {
		return nil, fmt.Errorf("sim: pipeline %q has no root signature", desc.Label)
	}
	if err := d.compile(desc.Vertex); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}
	if desc.Pixel != nil {
		if err := d.compile(*desc.Pixel); err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
		}
	}
	return &pipelineState{desc: desc}, nil
}

func (d *Device) CreateSwapChain(desc gpu.SwapChainDesc) (gpu.SwapChain, error) {
	sc := &swapChain{dev: d, format: desc.Format, tearing: d.tearing}
	if err := sc.create(desc.BufferCount, desc.Width, desc.Height); err != nil {
		return nil, err
	}
	return sc, nil
}

// Release drains the timeline and stops it.
func (d *Device) Release() {
	d.once.Do(func() {
		close(d.timeline)
		<-d.done
	})
}

type queue struct {
	dev *Device
}

func (q *queue) Execute(lists ...gpu.CommandList) error {
	for _, l := range lists {
		cl, ok := l.(*commandList)
		if !ok {
			return fmt.Errorf("sim: foreign command list %T", l)
		}
		if cl.open {
			return fmt.Errorf("sim: executing open command list %q: %w", cl.label, gpu.ErrInvalidState)
		}
		cmds, alloc := cl.cmds, cl.alloc
		alloc.pending.Add(1)
		q.dev.enqueue(func() {
			if q.dev.latency > 0 {
				time.Sleep(q.dev.latency)
			}
			q.dev.mu.Lock()
			q.dev.stats.Executes++
			q.dev.mu.Unlock()
			ex := executor{dev: q.dev, constants: make(map[int][]byte)}
			for _, c := range cmds {
				c(&ex)
			}
			alloc.pending.Add(-1)
		})
	}
	return nil
}

func (q *queue) Signal(f gpu.Fence, value uint64) error {
	sf, ok := f.(*fence)
	if !ok {
		return fmt.Errorf("sim: foreign fence %T", f)
	}
	q.dev.enqueue(func() {
		sf.Complete(value)
	})
	return nil
}

func (q *queue) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	sb, ok := b.(*Buffer)
	if !ok {
		return fmt.Errorf("sim: foreign buffer %T", b)
	}
	if offset+uint64(len(data)) > sb.desc.Size {
		return fmt.Errorf("sim: write of %d bytes at %d overflows %q", len(data), offset, sb.desc.Label)
	}
	staged := make([]byte, len(data))
	copy(staged, data)
	q.dev.enqueue(func() {
		sb.mu.Lock()
		copy(sb.data[offset:], staged)
		sb.mu.Unlock()
	})
	return nil
}

func (q *queue) WriteTexture(t gpu.Texture, data []byte) error {
	st, ok := t.(*Texture)
	if !ok {
		return fmt.Errorf("sim: foreign texture %T", t)
	}
	if len(data) != len(st.data) {
		return fmt.Errorf("sim: texture %q needs %d bytes, got %d", st.desc.Label, len(st.data), len(data))
	}
	staged := make([]byte, len(data))
	copy(staged, data)
	q.dev.enqueue(func() {
		st.mu.Lock()
		copy(st.data, staged)
		st.mu.Unlock()
	})
	return nil
}

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
