// Package pipeline builds and caches the immutable pipeline state objects the frame
// passes draw with, and the pass layouts (root signatures) they bind against.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// ErrCompile is returned when any pipeline in a build fails to compile. The previous
// set stays active.
var ErrCompile = errors.New("pipeline: compile failed")

// ErrUnknownKey is returned by Get for a key that was never built.
var ErrUnknownKey = errors.New("pipeline: unknown key")

// Pass identifies the program family a pipeline runs.
type Pass int

const (
	// PassDepth writes depth only, from positions only.
	PassDepth Pass = iota
	// PassDepthAlphaCut writes depth with a pixel shader that discards cut-out texels.
	PassDepthAlphaCut
	// PassColor is the lit color pass.
	PassColor
	// PassColorAlphaCut is the lit color pass with cut-out discard.
	PassColorAlphaCut
	// PassObjectID writes the object id of every covered pixel.
	PassObjectID
)

func (p Pass) String() string {
	switch p {
	case PassDepth:
		return "depth"
	case PassDepthAlphaCut:
		return "depth-alpha"
	case PassColor:
		return "color"
	case PassColorAlphaCut:
		return "color-alpha"
	case PassObjectID:
		return "object-id"
	}
	return fmt.Sprintf("Pass(%d)", int(p))
}

// shaderName is the shader program each pass compiles.
func (p Pass) shaderName() string {
	switch p {
	case PassDepthAlphaCut:
		return "depth_alpha"
	case PassColor:
		return "color"
	case PassColorAlphaCut:
		return "color_alpha"
	case PassObjectID:
		return "object_id"
	}
	return "depth"
}

// Layout returns the pass layout family the pass binds against.
func (p Pass) Layout() LayoutKind {
	switch p {
	case PassDepthAlphaCut:
		return LayoutAlphaTest
	case PassColor, PassColorAlphaCut:
		return LayoutMain
	}
	return LayoutSimple
}

// Vertex layouts over the shared interleaved vertex stream: position, normal, uv.
var (
	// PositionOnly reads only the position of each vertex.
	PositionOnly = gpu.VertexLayout{
		Stride:     VertexStride,
		Attributes: []gpu.VertexAttribute{{Location: 0, Offset: 0, Components: 3}},
	}
	// PositionNormalUV reads every attribute.
	PositionNormalUV = gpu.VertexLayout{
		Stride: VertexStride,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Offset: 0, Components: 3},
			{Location: 1, Offset: 12, Components: 3},
			{Location: 2, Offset: 24, Components: 2},
		},
	}
)

// VertexStride is the byte size of one interleaved vertex.
const VertexStride = 32

// VertexLayout returns the vertex layout the pass reads.
func (p Pass) VertexLayout() gpu.VertexLayout {
	switch p {
	case PassDepth, PassObjectID:
		return PositionOnly
	}
	return PositionNormalUV
}

// Key identifies one pipeline state object.
type Key struct {
	Pass       Pass
	Cull       gpu.CullMode
	Blend      bool
	DepthWrite bool
}

func (k Key) String() string {
	return fmt.Sprintf("%s/cull=%d/blend=%t/zwrite=%t", k.Pass, k.Cull, k.Blend, k.DepthWrite)
}

// DepthCompare is LessEqual for passes that test against an existing depth buffer
// without writing it, Less otherwise.
func (k Key) DepthCompare() gpu.CompareFunc {
	if k.DepthWrite {
		return gpu.CompareLess
	}
	return gpu.CompareLessEqual
}

// Set names the keys one frame needs for a given culling configuration.
type Set struct {
	// Depth-only keys for the early-Z and shadow passes.
	DepthOpaque   Key
	DepthTwoSided Key
	DepthAlphaCut Key

	// Standard color keys write depth.
	Opaque   Key
	TwoSided Key
	AlphaCut Key

	// Early-Z color keys test against the pre-pass depth without writing it.
	EarlyZOpaque   Key
	EarlyZTwoSided Key
	EarlyZAlphaCut Key

	Transparent Key
	ObjectID    Key
}

// KeySet returns the keys for culling enabled or disabled.
//
// Parameters:
//   - backfaceCulling: whether opaque geometry culls back faces
//
// Returns:
//   - Set: every key the frame passes draw with
func KeySet(backfaceCulling bool) Set {
	cull := gpu.CullNone
	if backfaceCulling {
		cull = gpu.CullBack
	}
	return Set{
		DepthOpaque:    Key{Pass: PassDepth, Cull: cull, DepthWrite: true},
		DepthTwoSided:  Key{Pass: PassDepth, Cull: gpu.CullNone, DepthWrite: true},
		DepthAlphaCut:  Key{Pass: PassDepthAlphaCut, Cull: gpu.CullNone, DepthWrite: true},
		Opaque:         Key{Pass: PassColor, Cull: cull, DepthWrite: true},
		TwoSided:       Key{Pass: PassColor, Cull: gpu.CullNone, DepthWrite: true},
		AlphaCut:       Key{Pass: PassColorAlphaCut, Cull: gpu.CullNone, DepthWrite: true},
		EarlyZOpaque:   Key{Pass: PassColor, Cull: cull},
		EarlyZTwoSided: Key{Pass: PassColor, Cull: gpu.CullNone},
		EarlyZAlphaCut: Key{Pass: PassColorAlphaCut, Cull: gpu.CullNone},
		Transparent:    Key{Pass: PassColor, Cull: gpu.CullNone, Blend: true},
		ObjectID:       Key{Pass: PassObjectID, Cull: cull, DepthWrite: true},
	}
}

// Keys returns the distinct keys in s in a fixed order.
func (s Set) Keys() []Key {
	all := []Key{
		s.DepthOpaque, s.DepthTwoSided, s.DepthAlphaCut,
		s.Opaque, s.TwoSided, s.AlphaCut,
		s.EarlyZOpaque, s.EarlyZTwoSided, s.EarlyZAlphaCut,
		s.Transparent, s.ObjectID,
	}
	seen := make(map[Key]bool, len(all))
	out := all[:0]
	for _, k := range all {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
