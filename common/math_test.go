package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestMul4Identity(t *testing.T) {
	var id, m, out [16]float32
	Identity(id[:])
	for i := range m {
		m[i] = float32(i + 1)
	}
	Mul4(out[:], id[:], m[:])
	assert.Equal(t, m, out)
	Mul4(out[:], m[:], id[:])
	assert.Equal(t, m, out)
}

func TestLookAtPlacesTargetOnNegativeZ(t *testing.T) {
	var view [16]float32
	LookAt(view[:], [3]float32{0, 0, 10}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})

	p := TransformPoint(view[:], [3]float32{0, 0, 0})
	assert.InDelta(t, 0, p[0], 1e-5)
	assert.InDelta(t, 0, p[1], 1e-5)
	assert.InDelta(t, -10, p[2], 1e-5)
}

func TestShadowTextureMatrix(t *testing.T) {
	var m [16]float32
	ShadowTextureMatrix(m[:])

	cases := []struct {
		in, want [3]float32
	}{
		{[3]float32{-1, 1, 0.25}, [3]float32{0, 0, 0.25}},
		{[3]float32{1, -1, 0.75}, [3]float32{1, 1, 0.75}},
		{[3]float32{0, 0, 1}, [3]float32{0.5, 0.5, 1}},
	}
	for _, c := range cases {
		got := TransformPoint(m[:], c.in)
		assert.InDeltaSlice(t, c.want[:], got[:], 1e-6)
	}
}

func TestOrthoMapsDepthToUnitRange(t *testing.T) {
	var m [16]float32
	Ortho(m[:], -5, 5, -5, 5, 1, 21)

	near := TransformPoint(m[:], [3]float32{0, 0, -1})
	far := TransformPoint(m[:], [3]float32{0, 0, -21})
	assert.InDelta(t, 0, near[2], 1e-5)
	assert.InDelta(t, 1, far[2], 1e-5)

	edge := TransformPoint(m[:], [3]float32{5, -5, -1})
	assert.InDelta(t, 1, edge[0], 1e-5)
	assert.InDelta(t, -1, edge[1], 1e-5)
}

func TestBuildModelMatrixTranslationAndScale(t *testing.T) {
	var m [16]float32
	BuildModelMatrix(m[:], [3]float32{1, 2, 3}, [3]float32{}, [3]float32{2, 2, 2})
	p := TransformPoint(m[:], [3]float32{1, 1, 1})
	assert.InDeltaSlice(t, []float32{3, 4, 5}, p[:], 1e-6)

	BuildModelMatrix(m[:], [3]float32{}, [3]float32{0, math32.Pi / 2, 0}, [3]float32{1, 1, 1})
	p = TransformPoint(m[:], [3]float32{1, 0, 0})
	assert.InDeltaSlice(t, []float32{0, 0, -1}, p[:], 1e-6)
}

func TestNormalize3(t *testing.T) {
	assert.Equal(t, [3]float32{}, Normalize3([3]float32{}))
	n := Normalize3([3]float32{3, 0, 4})
	assert.InDeltaSlice(t, []float32{0.6, 0, 0.8}, n[:], 1e-6)
}

func TestAlignUpAndCoalesce(t *testing.T) {
	assert.Equal(t, uint64(256), AlignUp(1, 256))
	assert.Equal(t, uint64(256), AlignUp(256, 256))
	assert.Equal(t, uint64(512), AlignUp(257, 256))
	assert.Equal(t, 3, Coalesce(0, 0, 3, 4))
	assert.Equal(t, "", Coalesce("", ""))
}
