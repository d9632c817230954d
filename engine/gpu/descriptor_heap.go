package gpu

import (
	"fmt"
	"sync"
)

// DescriptorRange is a contiguous run of heap slots.
type DescriptorRange struct {
	Start int
	Count int
}

// DescriptorHeap is a fixed-size table of shader-visible resource references.
// Ranges are allocated once at load time and rewritten in place; the heap has a
// single writer (the render goroutine).
type DescriptorHeap struct {
	mu       sync.RWMutex
	label    string
	slots    []Resource
	next     int
	revision uint64
}

// NewDescriptorHeap creates a heap with room for size descriptors.
func NewDescriptorHeap(label string, size int) *DescriptorHeap {
	return &DescriptorHeap{label: label, slots: make([]Resource, size)}
}

// Label returns the heap's debug name.
func (h *DescriptorHeap) Label() string {
	return h.label
}

// Allocate reserves count consecutive slots.
//
// Returns:
//   - DescriptorRange: the reserved slots
//   - error: ErrHeapFull if fewer than count slots remain
func (h *DescriptorHeap) Allocate(count int) (DescriptorRange, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.next+count > len(h.slots) {
		return DescriptorRange{}, fmt.Errorf("%s: allocating %d of %d remaining: %w", h.label, count, len(h.slots)-h.next, ErrHeapFull)
	}
	r := DescriptorRange{Start: h.next, Count: count}
	h.next += count
	return r, nil
}

// Set writes the descriptor at absolute slot index.
func (h *DescriptorHeap) Set(index int, r Resource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slots[index] = r
	h.revision++
}

// Range returns the resources referenced by r. Unwritten slots are nil.
func (h *DescriptorHeap) Range(r DescriptorRange) []Resource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Resource, r.Count)
	copy(out, h.slots[r.Start:r.Start+r.Count])
	return out
}

// Revision increments on every Set. Backends use it to invalidate cached bindings.
func (h *DescriptorHeap) Revision() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revision
}

// Used returns the number of allocated slots.
func (h *DescriptorHeap) Used() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.next
}
