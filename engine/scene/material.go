package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/barrier"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// MaterialData describes a material as produced by a Loader. Pixels holds tightly
// packed RGBA8 texels; when empty the material is a 1x1 texture of Color.
type MaterialData struct {
	Name   string
	Width  uint32
	Height uint32
	Pixels []byte
	Color  [4]uint8
}

// Checker returns a size x size two-color checkerboard with cells texels per square.
func Checker(name string, size, cells uint32, a, b [4]uint8) MaterialData {
	m := MaterialData{Name: name, Width: size, Height: size, Pixels: make([]byte, size*size*4)}
	for y := range size {
		for x := range size {
			c := a
			if (x/cells+y/cells)%2 == 1 {
				c = b
			}
			copy(m.Pixels[(y*size+x)*4:], c[:])
		}
	}
	return m
}

// Material is a texture resident on the GPU plus the heap slot that references it.
// The texture rests in the shader-resource state for its whole lifetime.
type Material struct {
	name    string
	texture *barrier.Tracked[gpu.Texture]
	rng     gpu.DescriptorRange
}

func newMaterial(dev gpu.Device, q gpu.Queue, heap *gpu.DescriptorHeap, data MaterialData) (*Material, error) {
	w, h, pixels := data.Width, data.Height, data.Pixels
	if len(pixels) == 0 {
		w, h, pixels = 1, 1, data.Color[:]
	}
	if uint32(len(pixels)) != w*h*4 {
		return nil, fmt.Errorf("scene: material %q has %d bytes for %dx%d texels", data.Name, len(pixels), w, h)
	}
	tex, err := dev.CreateTexture(gpu.TextureDesc{
		Label:        data.Name,
		Width:        w,
		Height:       h,
		Format:       gpu.FormatRGBA8Unorm,
		Usage:        gpu.TextureUsageShaderResource | gpu.TextureUsageCopyDest,
		InitialState: gpu.StateShaderResource,
	})
	if err != nil {
		return nil, fmt.Errorf("scene: material %q: %w", data.Name, err)
	}
	if err := q.WriteTexture(tex, pixels); err != nil {
		tex.Release()
		return nil, fmt.Errorf("scene: material %q: %w", data.Name, err)
	}
	rng, err := heap.Allocate(1)
	if err != nil {
		tex.Release()
		return nil, err
	}
	heap.Set(rng.Start, tex)
	return &Material{name: data.Name, texture: barrier.New(tex, gpu.StateShaderResource), rng: rng}, nil
}

// Name returns the material name.
func (m *Material) Name() string {
	return m.name
}

// Texture returns the tracked texture.
func (m *Material) Texture() *barrier.Tracked[gpu.Texture] {
	return m.texture
}

// Range returns the material's heap range.
func (m *Material) Range() gpu.DescriptorRange {
	return m.rng
}

func (m *Material) release() {
	m.texture.Resource().Release()
}
