package scene

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/chewxy/math32"
)

// Vertex is one interleaved mesh vertex. Matches pipeline.PositionNormalUV exactly;
// position-only pipelines read the first 12 bytes with the same stride.
type Vertex struct {
	Position [3]float32 // offset  0
	Normal   [3]float32 // offset 12
	UV       [2]float32 // offset 24
}

// Marshal serializes the vertex into buf, which must hold pipeline.VertexStride bytes.
func (v *Vertex) Marshal(buf []byte) {
	put := func(off int, f float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
	}
	for i := range 3 {
		put(i*4, v.Position[i])
		put(12+i*4, v.Normal[i])
	}
	put(24, v.UV[0])
	put(28, v.UV[1])
}

// MeshData is CPU-side triangle geometry, as produced by a Loader.
type MeshData struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// BoundingRadius returns the distance from the origin to the farthest vertex.
func (m *MeshData) BoundingRadius() float32 {
	var r float32
	for _, v := range m.Vertices {
		r = max(r, vecLen(v.Position))
	}
	return r
}

// Mesh is geometry resident on the GPU. Vertex and index buffers are written once
// at load and only ever read afterwards, so they are not barrier tracked.
type Mesh struct {
	name       string
	vertices   gpu.Buffer
	indices    gpu.Buffer
	indexCount uint32
	radius     float32
}

// newMesh uploads data through q.
func newMesh(dev gpu.Device, q gpu.Queue, data MeshData) (*Mesh, error) {
	if len(data.Vertices) == 0 || len(data.Indices) == 0 {
		return nil, fmt.Errorf("scene: mesh %q is empty", data.Name)
	}
	vb, err := dev.CreateBuffer(gpu.BufferDesc{
		Label: data.Name + " vertices",
		Size:  uint64(len(data.Vertices)) * pipeline.VertexStride,
		Usage: gpu.BufferUsageVertex | gpu.BufferUsageCopyDest,
	})
	if err != nil {
		return nil, fmt.Errorf("scene: mesh %q: %w", data.Name, err)
	}
	ib, err := dev.CreateBuffer(gpu.BufferDesc{
		Label: data.Name + " indices",
		Size:  uint64(len(data.Indices)) * 4,
		Usage: gpu.BufferUsageIndex | gpu.BufferUsageCopyDest,
	})
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("scene: mesh %q: %w", data.Name, err)
	}

	vbuf := make([]byte, vb.Size())
	for i := range data.Vertices {
		data.Vertices[i].Marshal(vbuf[i*pipeline.VertexStride:])
	}
	if err := q.WriteBuffer(vb, 0, vbuf); err != nil {
		vb.Release()
		ib.Release()
		return nil, err
	}
	if err := q.WriteBuffer(ib, 0, common.SliceToBytes(data.Indices)); err != nil {
		vb.Release()
		ib.Release()
		return nil, err
	}

	return &Mesh{
		name:       data.Name,
		vertices:   vb,
		indices:    ib,
		indexCount: uint32(len(data.Indices)),
		radius:     data.BoundingRadius(),
	}, nil
}

// Name returns the mesh name.
func (m *Mesh) Name() string {
	return m.name
}

// IndexCount returns the number of indices drawn per instance.
func (m *Mesh) IndexCount() uint32 {
	return m.indexCount
}

// Radius returns the bounding radius in model space.
func (m *Mesh) Radius() float32 {
	return m.radius
}

// bind sets the mesh's vertex and index buffers on cl.
func (m *Mesh) bind(cl gpu.CommandList) {
	cl.SetVertexBuffer(m.vertices, pipeline.VertexStride)
	cl.SetIndexBuffer(m.indices)
}

func (m *Mesh) release() {
	m.vertices.Release()
	m.indices.Release()
}

func vecLen(v [3]float32) float32 {
	return math32.Sqrt(common.Dot3(v, v))
}
