package camera

import (
	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// Fixed is a View with explicit matrices, used for light views and tests.
type Fixed struct {
	View       [16]float32
	Projection [16]float32
	Position   [3]float32
	Width      uint32
	Height     uint32
}

var _ View = &Fixed{}

// NewFixed builds a look-at view with the given projection over a width x height target.
//
// Parameters:
//   - eye: viewer position
//   - focus: look-at point
//   - up: up vector, not parallel to focus-eye
//   - projection: view-to-clip matrix
//   - width, height: target size in pixels
//
// Returns:
//   - *Fixed: the view
func NewFixed(eye, focus, up [3]float32, projection [16]float32, width, height uint32) *Fixed {
	f := &Fixed{Projection: projection, Position: eye, Width: width, Height: height}
	common.LookAt(f.View[:], eye, focus, up)
	return f
}

func (f *Fixed) ViewMatrix() [16]float32 { return f.View }
func (f *Fixed) ProjectionMatrix() [16]float32 { return f.Projection }
func (f *Fixed) Eye() [3]float32 { return f.Position }

func (f *Fixed) ViewProjection() [16]float32 {
	var out [16]float32
	common.Mul4(out[:], f.Projection[:], f.View[:])
	return out
}

func (f *Fixed) Viewport() gpu.Viewport {
	return gpu.Viewport{Width: float32(f.Width), Height: float32(f.Height), MaxDepth: 1}
}

func (f *Fixed) Scissor() gpu.Rect {
	return gpu.Rect{Width: f.Width, Height: f.Height}
}
