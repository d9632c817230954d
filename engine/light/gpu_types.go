package light

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// MaxGPULights is the maximum number of lights marshaled into the GPU light buffer.
const MaxGPULights = 256

// GPULightSize is the size in bytes of one marshaled light.
const GPULightSize = 128

// GPULightSource is the canonical WGSL definition of the Light struct.
// Matches GPULight layout exactly (128 bytes, std430 aligned).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
type GPULight struct {
	Position     [3]float32  // offset   0: world-space position (point/spot)
	LightType    uint32      // offset  12: 0 = directional, 1 = point, 2 = spot
	Color        [3]float32  // offset  16: RGB color
	Intensity    float32     // offset  28: scalar multiplier
	Direction    [3]float32  // offset  32: normalized direction
	LightRange   float32     // offset  44: attenuation cutoff distance
	InnerCone    float32     // offset  48: cos(inner half-angle) for spot
	OuterCone    float32     // offset  52: cos(outer half-angle) for spot
	ShadowIndex  int32       // offset  56: shadow map slot, -1 for none
	_pad         uint32      // offset  60
	ShadowMatrix [16]float32 // offset  64: world to shadow texture space
}

// Marshal serializes the GPULight into buf, which must hold GPULightSize bytes.
func (g *GPULight) Marshal(buf []byte) {
	putVec := func(off int, v []float32) {
		for i, f := range v {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(f))
		}
	}
	putVec(0, g.Position[:])
	binary.LittleEndian.PutUint32(buf[12:], g.LightType)
	putVec(16, g.Color[:])
	putVec(28, []float32{g.Intensity})
	putVec(32, g.Direction[:])
	putVec(44, []float32{g.LightRange, g.InnerCone, g.OuterCone})
	binary.LittleEndian.PutUint32(buf[56:], uint32(g.ShadowIndex))
	binary.LittleEndian.PutUint32(buf[60:], 0)
	putVec(64, g.ShadowMatrix[:])
}

// ToGPULight converts a Light into its GPU representation. shadow is the light's
// shadow map, or nil for lights without one.
//
// Parameters:
//   - l: the Light to convert
//   - shadow: l's shadow map, or nil
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light, shadow *ShadowMap) GPULight {
	g := GPULight{
		Position:    l.Position(),
		LightType:   uint32(l.Type()),
		Color:       l.Color(),
		Intensity:   l.Intensity(),
		Direction:   l.Direction(),
		LightRange:  l.Range(),
		InnerCone:   l.InnerCone(),
		OuterCone:   l.OuterCone(),
		ShadowIndex: -1,
	}
	if shadow != nil && l.ShadowIndex() >= 0 {
		g.ShadowIndex = int32(l.ShadowIndex())
		g.ShadowMatrix = shadow.TextureMatrix()
	}
	return g
}

// MarshalLights writes every enabled light, in order, into dst and returns the
// number written. shadows is indexed by ShadowIndex.
//
// Parameters:
//   - dst: destination, at least MaxGPULights*GPULightSize bytes or the light count times GPULightSize
//   - lights: lights in shadow-casters-first order
//   - shadows: shadow maps indexed by ShadowIndex
//
// Returns:
//   - int: the number of lights written
func MarshalLights(dst []byte, lights []Light, shadows []*ShadowMap) int {
	n := 0
	for _, l := range lights {
		if !l.Enabled() {
			continue
		}
		if n >= MaxGPULights || (n+1)*GPULightSize > len(dst) {
			break
		}
		var sm *ShadowMap
		if i := l.ShadowIndex(); i >= 0 && i < len(shadows) {
			sm = shadows[i]
		}
		g := ToGPULight(l, sm)
		g.Marshal(dst[n*GPULightSize:])
		n++
	}
	return n
}
