package gpu

// Resource is any GPU object that can be the subject of a barrier or a descriptor.
type Resource interface {
	// Label returns the debug name given at creation.
	Label() string

	// Release frees the underlying GPU object. The resource must not be in use by pending work.
	Release()
}

// Texture is a 2D image resource.
type Texture interface {
	Resource
	Width() uint32
	Height() uint32
	Format() Format
}

// Buffer is a linear memory resource.
type Buffer interface {
	Resource
	Size() uint64

	// Read copies the buffer contents starting at offset into dst.
	// Only valid for BufferUsageReadback buffers whose producing work has completed.
	Read(offset uint64, dst []byte) error
}

// PipelineState is an immutable, fully compiled pipeline.
type PipelineState interface {
	Label() string
	Release()
}

// RootSignature is the binding layout shared by a family of pipelines.
type RootSignature interface {
	Label() string
	Params() []RootParam
	Release()
}

// CommandAllocator owns the memory that recorded commands live in.
type CommandAllocator interface {
	// Reset reclaims the allocator's memory. Returns ErrAllocatorInUse when work
	// recorded from it has not finished on the GPU.
	Reset() error
	Release()
}

// CommandList records GPU commands. A list is created closed; Reset opens it against
// an allocator and Close finishes recording so it can be executed.
type CommandList interface {
	Reset(alloc CommandAllocator) error
	Close() error
	// Discard drops everything recorded since Reset and leaves the list closed, even
	// inside a pass. The list must not have been executed since Reset.
	Discard()

	// ResourceBarrier records state transitions. Each barrier's Before must match the
	// resource's actual state when the barrier executes.
	ResourceBarrier(barriers ...Barrier)

	BeginPass(desc PassDesc)
	EndPass()

	SetRootSignature(rs RootSignature)
	SetDescriptorHeap(heap *DescriptorHeap)
	SetPipelineState(ps PipelineState)

	// SetRootConstants writes data into the constants parameter at index param.
	SetRootConstants(param int, data []byte)

	// SetDescriptorTable binds a contiguous heap range to the table parameter at index param.
	SetDescriptorTable(param int, r DescriptorRange)

	SetViewport(v Viewport)
	SetScissor(r Rect)
	SetVertexBuffer(b Buffer, stride uint32)
	SetIndexBuffer(b Buffer)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)

	// CopyTextureToBuffer copies the whole texture into dst laid out as fp describes.
	// src must be in StateCopySource.
	CopyTextureToBuffer(src Texture, dst Buffer, fp Footprint)

	Release()
}

// Queue executes command lists in submission order.
type Queue interface {
	Execute(lists ...CommandList) error

	// Signal sets f to value once all previously executed work has completed.
	Signal(f Fence, value uint64) error

	// WriteBuffer schedules an upload that lands before the next executed list runs.
	WriteBuffer(b Buffer, offset uint64, data []byte) error

	// WriteTexture uploads tightly packed texels covering the whole texture. Like
	// WriteBuffer it lands before the next executed list runs.
	WriteTexture(t Texture, data []byte) error
}

// Fence is a monotonically advancing counter shared between CPU and GPU.
type Fence interface {
	// CompletedValue returns the last value the fence reached.
	CompletedValue() uint64

	// Signal sets the fence value from the CPU.
	Signal(value uint64) error

	// SetEventOnCompletion arranges for e to be set once the fence reaches value.
	// If it already has, e is set immediately.
	SetEventOnCompletion(value uint64, e *Event) error

	Release()
}

// SwapChain owns the presentation buffers.
type SwapChain interface {
	BufferCount() int

	// CurrentBackBufferIndex returns the buffer the next frame renders into.
	CurrentBackBufferIndex() int

	BackBuffer(i int) Texture
	Format() Format

	// Present queues the current back buffer for display. syncInterval 0 disables vsync.
	Present(syncInterval int, flags PresentFlags) error

	// Resize recreates the back buffers. No back buffer may be referenced by pending work.
	Resize(width, height uint32) error

	// SupportsTearing reports whether PresentAllowTearing may be used.
	SupportsTearing() bool

	Release()
}

// Device creates every other GPU object.
type Device interface {
	Queue() Queue
	CreateCommandAllocator() (CommandAllocator, error)
	CreateCommandList(label string) (CommandList, error)
	CreateFence(initial uint64) (Fence, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateRootSignature(desc RootSignatureDesc) (RootSignature, error)

	// CreatePipelineState compiles desc. Shader failures wrap ErrShaderCompile.
	CreatePipelineState(desc PipelineDesc) (PipelineState, error)

	CreateSwapChain(desc SwapChainDesc) (SwapChain, error)
	Release()
}
