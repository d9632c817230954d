package pipeline

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// FrameConstantsSize is the byte size of the marshaled FrameConstants.
const FrameConstantsSize = 96

const viewProjSize = 64

// InstanceDataSize is the byte size of one marshaled InstanceData.
const InstanceDataSize = 80

// GPUFrameSource is the WGSL definition matching FrameConstants.
//
//go:embed assets/frame.wgsl
var GPUFrameSource string

// GPUInstanceSource is the WGSL definition matching InstanceData.
//
//go:embed assets/instance.wgsl
var GPUInstanceSource string

// FrameConstants is the per-frame root constant block.
type FrameConstants struct {
	ViewProj    [16]float32 // offset  0
	Eye         [3]float32  // offset 64
	LightCount  uint32      // offset 76
	Ambient     [3]float32  // offset 80
	ShadowCount uint32      // offset 92
}

// Marshal serializes the constants into a FrameConstantsSize byte slice.
func (c *FrameConstants) Marshal() []byte {
	buf := make([]byte, FrameConstantsSize)
	for i, f := range c.ViewProj {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(c.Eye[i]))
		binary.LittleEndian.PutUint32(buf[80+i*4:], math.Float32bits(c.Ambient[i]))
	}
	binary.LittleEndian.PutUint32(buf[76:], c.LightCount)
	binary.LittleEndian.PutUint32(buf[92:], c.ShadowCount)
	return buf
}

// InstanceData is one object's per-instance record, indexed by the instance id.
type InstanceData struct {
	Model    [16]float32 // offset  0: object to world
	ObjectID uint32      // offset 64: written by the object-id pass
}

// Marshal serializes the record into buf, which must hold InstanceDataSize bytes.
func (d *InstanceData) Marshal(buf []byte) {
	for i, f := range d.Model {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[64:], d.ObjectID)
	clear(buf[68:InstanceDataSize])
}
