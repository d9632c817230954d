package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// Texture is a simulated texture backed by a tightly packed byte slice.
type Texture struct {
	desc gpu.TextureDesc

	mu   sync.Mutex
	data []byte
}

var _ gpu.Texture = &Texture{}

func (t *Texture) Label() string { return t.desc.Label }
func (t *Texture) Width() uint32 { return t.desc.Width }
func (t *Texture) Height() uint32 { return t.desc.Height }
func (t *Texture) Format() gpu.Format { return t.desc.Format }
func (t *Texture) Release() {}
func (t *Texture) Desc() gpu.TextureDesc { return t.desc }

// PutUint32 writes a 32-bit texel. Used by draw hooks to rasterize ids or depth.
func (t *Texture) PutUint32(x, y, v uint32) {
	if x >= t.desc.Width || y >= t.desc.Height {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	off := (y*t.desc.Width + x) * 4
	binary.LittleEndian.PutUint32(t.data[off:], v)
}

// Uint32 reads a 32-bit texel.
func (t *Texture) Uint32(x, y uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	off := (y*t.desc.Width + x) * 4
	return binary.LittleEndian.Uint32(t.data[off:])
}

func (t *Texture) fill(texel [4]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i+4 <= len(t.data); i += 4 {
		copy(t.data[i:i+4], texel[:])
	}
}

func (t *Texture) clearColor(a gpu.ColorAttachment) {
	var texel [4]byte
	if t.desc.Format == gpu.FormatR32Uint {
		binary.LittleEndian.PutUint32(texel[:], a.ClearUint)
	} else {
		for i, c := range a.ClearColor {
			texel[i] = byte(math.Round(float64(max(0, min(1, c)) * 255)))
		}
		if t.desc.Format == gpu.FormatBGRA8Unorm {
			texel[0], texel[2] = texel[2], texel[0]
		}
	}
	t.fill(texel)
}

func (t *Texture) clearDepth(depth float32) {
	var texel [4]byte
	binary.LittleEndian.PutUint32(texel[:], math.Float32bits(depth))
	t.fill(texel)
}

// copyTo writes the texture into dst using fp's row pitch.
func (t *Texture) copyTo(dst *Buffer, fp gpu.Footprint) error {
	row := int(t.desc.Width * t.desc.Format.BytesPerPixel())
	if dst.desc.Size < fp.Size() {
		return fmt.Errorf("copy of %q needs %d bytes, %q has %d", t.desc.Label, fp.Size(), dst.desc.Label, dst.desc.Size)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	for y := 0; y < int(t.desc.Height); y++ {
		srcOff := y * row
		dstOff := int(fp.Offset) + y*int(fp.RowPitch)
		copy(dst.data[dstOff:dstOff+row], t.data[srcOff:srcOff+row])
	}
	return nil
}

// Buffer is a simulated linear buffer.
type Buffer struct {
	desc gpu.BufferDesc

	mu   sync.Mutex
	data []byte
}

var _ gpu.Buffer = &Buffer{}

func (b *Buffer) Label() string { return b.desc.Label }
func (b *Buffer) Size() uint64 { return b.desc.Size }
func (b *Buffer) Release() {}

func (b *Buffer) Read(offset uint64, dst []byte) error {
	if b.desc.Usage&gpu.BufferUsageReadback == 0 {
		return fmt.Errorf("sim: buffer %q is not CPU readable", b.desc.Label)
	}
	if offset+uint64(len(dst)) > b.desc.Size {
		return fmt.Errorf("sim: read of %d bytes at %d overflows %q", len(dst), offset, b.desc.Label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(dst, b.data[offset:])
	return nil
}

// Bytes returns a copy of the buffer contents regardless of usage.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

type allocator struct {
	pending atomic.Int32
}

func (a *allocator) Reset() error {
	if n := a.pending.Load(); n > 0 {
		return fmt.Errorf("%d submissions pending: %w", n, gpu.ErrAllocatorInUse)
	}
	return nil
}

func (a *allocator) Release() {}

type rootSignature struct {
	label  string
	params []gpu.RootParam
}

func (r *rootSignature) Label() string { return r.label }
func (r *rootSignature) Params() []gpu.RootParam { return r.params }
func (r *rootSignature) Release() {}

type pipelineState struct {
	desc gpu.PipelineDesc
}

func (p *pipelineState) Label() string { return p.desc.Label }
func (p *pipelineState) Release() {}
