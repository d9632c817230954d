package gpu

import "errors"

var (
	// ErrDeviceLost is fatal: the device stopped responding or was removed.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrTimeout is returned by a bounded wait that expired.
	ErrTimeout = errors.New("gpu: wait timed out")

	// ErrShaderCompile is wrapped by pipeline creation when a shader fails to compile or link.
	ErrShaderCompile = errors.New("gpu: shader compilation failed")

	// ErrAllocatorInUse is returned when an allocator is reset while its work is still in flight.
	ErrAllocatorInUse = errors.New("gpu: command allocator still in use")

	// ErrInvalidState is a validation failure: a barrier or command saw a resource in the wrong state.
	ErrInvalidState = errors.New("gpu: resource in unexpected state")

	// ErrHeapFull is returned when a descriptor heap has no room for an allocation.
	ErrHeapFull = errors.New("gpu: descriptor heap full")
)
