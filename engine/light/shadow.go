package light

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/barrier"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/chewxy/math32"
)

// DefaultShadowMapSize is the width and height in texels of each shadow depth buffer.
const DefaultShadowMapSize = 2048

// DefaultShadowNear is the near plane of every shadow projection.
const DefaultShadowNear float32 = 0.1

// pointShadowFov is the vertical field of view of a point light's single shadow view.
const pointShadowFov = math32.Pi / 2

// SortShadowCastersFirst stably reorders lights so every shadow-casting light comes
// before every other light, then assigns ShadowIndex 0..n-1 to the casters and -1 to
// the rest. Relative order within each group is preserved.
//
// Parameters:
//   - lights: the scene lights, reordered in place
//
// Returns:
//   - int: the number of shadow casters, which is also the shadow descriptor range length
func SortShadowCastersFirst(lights []Light) int {
	slices.SortStableFunc(lights, func(a, b Light) int {
		switch {
		case a.CastsShadows() == b.CastsShadows():
			return 0
		case a.CastsShadows():
			return -1
		default:
			return 1
		}
	})
	n := 0
	for _, l := range lights {
		if l.CastsShadows() {
			l.setShadowIndex(n)
			n++
		} else {
			l.setShadowIndex(-1)
		}
	}
	return n
}

// Bounds is a bounding sphere used to fit shadow projections around the scene.
type Bounds struct {
	Center [3]float32
	Radius float32
}

// ShadowMap is the shadow state of one shadow-casting light: its light view, the
// world-to-shadow-texture transform handed to shading, and one depth buffer per
// frame slot. Each depth buffer rests in the shader-resource state and is only
// writable for the duration of its shadow pass.
type ShadowMap struct {
	light  Light
	size   uint32
	view   *camera.Fixed
	toTex  [16]float32
	depths []*barrier.Tracked[gpu.Texture]
}

// NewShadowMap creates the per-slot depth buffers for l and computes its initial view.
//
// Parameters:
//   - dev: device to allocate depth buffers on
//   - l: a light with CastsShadows and a non-negative ShadowIndex
//   - slots: the number of frame slots
//   - size: depth buffer width and height in texels
//   - bounds: scene bounds used to fit the projection
//
// Returns:
//   - *ShadowMap: the shadow map
//   - error: if l casts no shadows or a depth buffer cannot be created
func NewShadowMap(dev gpu.Device, l Light, slots int, size uint32, bounds Bounds) (*ShadowMap, error) {
	if !l.CastsShadows() || l.ShadowIndex() < 0 {
		return nil, fmt.Errorf("light: %s light has no shadow slot", l.Type())
	}
	s := &ShadowMap{light: l, size: size}
	for i := range slots {
		tex, err := dev.CreateTexture(gpu.TextureDesc{
			Label:        fmt.Sprintf("shadow %d slot %d", l.ShadowIndex(), i),
			Width:        size,
			Height:       size,
			Format:       gpu.FormatDepth32Float,
			Usage:        gpu.TextureUsageDepthStencil | gpu.TextureUsageShaderResource,
			InitialState: gpu.StateShaderResource,
		})
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("light: shadow map %d: %w", l.ShadowIndex(), err)
		}
		s.depths = append(s.depths, barrier.New(tex, gpu.StateShaderResource))
	}
	s.Update(bounds)
	return s, nil
}

// Update recomputes the light view and the world-to-shadow-texture transform.
// Called at load and whenever the light moves.
func (s *ShadowMap) Update(bounds Bounds) {
	l := s.light
	dir := l.Direction()
	up := [3]float32{0, 1, 0}
	if math32.Abs(dir[1]) > 0.99 {
		up = [3]float32{1, 0, 0}
	}

	var proj [16]float32
	var eye, focus [3]float32
	switch l.Type() {
	case LightTypeDirectional:
		r := math32.Max(bounds.Radius, 1)
		for i := range 3 {
			eye[i] = bounds.Center[i] - dir[i]*2*r
		}
		focus = bounds.Center
		common.Ortho(proj[:], -r, r, -r, r, DefaultShadowNear, 4*r)
	default:
		fov := pointShadowFov
		if l.Type() == LightTypeSpot {
			fov = 2 * math32.Acos(l.OuterCone())
		}
		eye = l.Position()
		for i := range 3 {
			focus[i] = eye[i] + dir[i]
		}
		common.Perspective(proj[:], fov, 1, DefaultShadowNear, math32.Max(l.Range(), DefaultShadowNear*2))
	}

	s.view = camera.NewFixed(eye, focus, up, proj, s.size, s.size)

	var tex [16]float32
	vp := s.view.ViewProjection()
	common.ShadowTextureMatrix(tex[:])
	common.Mul4(s.toTex[:], tex[:], vp[:])
}

// Light returns the light this map belongs to.
func (s *ShadowMap) Light() Light {
	return s.light
}

// Index returns the map's position in the shadow descriptor range.
func (s *ShadowMap) Index() int {
	return s.light.ShadowIndex()
}

// View returns the light's view, rendered by the shadow depth pass.
func (s *ShadowMap) View() camera.View {
	return s.view
}

// TextureMatrix returns the world to shadow-texture transform: the light's
// view-projection followed by scale 0.5, Y flip and bias 0.5, with Z preserved.
func (s *ShadowMap) TextureMatrix() [16]float32 {
	return s.toTex
}

// Depth returns the depth buffer used by frame slot i.
func (s *ShadowMap) Depth(slot int) *barrier.Tracked[gpu.Texture] {
	return s.depths[slot]
}

// Size returns the depth buffer width and height in texels.
func (s *ShadowMap) Size() uint32 {
	return s.size
}

// Release frees every depth buffer. No slot may have pending work.
func (s *ShadowMap) Release() {
	for _, d := range s.depths {
		d.Resource().Release()
	}
	s.depths = nil
}
