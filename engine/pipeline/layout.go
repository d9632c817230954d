package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// LayoutKind selects one of the three pass layouts.
type LayoutKind int

const (
	// LayoutSimple binds frame constants and instance data. Used by depth and object-id passes.
	LayoutSimple LayoutKind = iota
	// LayoutAlphaTest adds a material texture for cut-out discard.
	LayoutAlphaTest
	// LayoutMain adds the light buffer and the shadow maps.
	LayoutMain
)

func (k LayoutKind) String() string {
	switch k {
	case LayoutSimple:
		return "simple"
	case LayoutAlphaTest:
		return "alpha-test"
	case LayoutMain:
		return "main"
	}
	return fmt.Sprintf("LayoutKind(%d)", int(k))
}

// Root parameter indices shared by every layout. Later parameters only exist in
// the layouts that need them.
const (
	ParamConstants = iota
	ParamInstances
	ParamMaterial
	ParamLights
	ParamShadows
)

// PassLayout is the binding contract of a family of pipelines. Each variant pushes
// only what its shaders read; binding calls a variant has no parameter for are no-ops.
type PassLayout interface {
	// Kind returns which variant this is.
	Kind() LayoutKind

	// RootSignature returns the signature every pipeline of this layout is built with.
	RootSignature() gpu.RootSignature

	// Bind sets the root signature on cl. Bindings set before Bind are discarded.
	Bind(cl gpu.CommandList)

	// SetConstants pushes the per-frame constants this layout's shaders read.
	SetConstants(cl gpu.CommandList, c FrameConstants)

	// SetInstances binds the instance data range.
	SetInstances(cl gpu.CommandList, r gpu.DescriptorRange)

	// SetMaterial binds a material texture range.
	SetMaterial(cl gpu.CommandList, r gpu.DescriptorRange)

	// SetLights binds the light buffer and the shadow map ranges.
	SetLights(cl gpu.CommandList, lights, shadows gpu.DescriptorRange)

	Release()
}

// Layouts holds one PassLayout per kind, created once per device.
type Layouts struct {
	Simple    PassLayout
	AlphaTest PassLayout
	Main      PassLayout
}

// NewLayouts creates the three pass layouts.
//
// Parameters:
//   - dev: the device to create root signatures on
//   - maxShadows: the shadow map table size of the main layout, at least 1
//
// Returns:
//   - Layouts: the created layouts
//   - error: root signature creation failure
func NewLayouts(dev gpu.Device, maxShadows int) (Layouts, error) {
	if maxShadows < 1 {
		maxShadows = 1
	}
	base := []gpu.RootParam{
		{Kind: gpu.RootParamConstants, Size: FrameConstantsSize},
		{Kind: gpu.RootParamTable, Count: 1, Descriptor: gpu.DescriptorStorageBuffer},
	}
	material := gpu.RootParam{Kind: gpu.RootParamTable, Count: 1, Descriptor: gpu.DescriptorTexture, Pixel: true}
	lights := gpu.RootParam{Kind: gpu.RootParamTable, Count: 1, Descriptor: gpu.DescriptorStorageBuffer, Pixel: true}
	shadows := gpu.RootParam{Kind: gpu.RootParamTable, Count: uint32(maxShadows), Descriptor: gpu.DescriptorDepthTexture, Pixel: true}

	simple, err := dev.CreateRootSignature(gpu.RootSignatureDesc{Label: "simple", Params: base})
	if err != nil {
		return Layouts{}, fmt.Errorf("pipeline: simple layout: %w", err)
	}
	alpha, err := dev.CreateRootSignature(gpu.RootSignatureDesc{
		Label:  "alpha-test",
		Params: append(append([]gpu.RootParam(nil), base...), material),
	})
	if err != nil {
		return Layouts{}, fmt.Errorf("pipeline: alpha-test layout: %w", err)
	}
	main, err := dev.CreateRootSignature(gpu.RootSignatureDesc{
		Label:  "main",
		Params: append(append([]gpu.RootParam(nil), base...), material, lights, shadows),
	})
	if err != nil {
		return Layouts{}, fmt.Errorf("pipeline: main layout: %w", err)
	}

	return Layouts{
		Simple:    &simpleLayout{rs: simple},
		AlphaTest: &alphaTestLayout{simpleLayout{rs: alpha}},
		Main:      &mainLayout{alphaTestLayout{simpleLayout{rs: main}}},
	}, nil
}

// For returns the layout of kind k.
func (l Layouts) For(k LayoutKind) PassLayout {
	switch k {
	case LayoutAlphaTest:
		return l.AlphaTest
	case LayoutMain:
		return l.Main
	}
	return l.Simple
}

// Release frees every root signature.
func (l Layouts) Release() {
	for _, pl := range []PassLayout{l.Simple, l.AlphaTest, l.Main} {
		if pl != nil {
			pl.Release()
		}
	}
}

type simpleLayout struct {
	rs gpu.RootSignature
}

func (s *simpleLayout) Kind() LayoutKind { return LayoutSimple }
func (s *simpleLayout) RootSignature() gpu.RootSignature { return s.rs }
func (s *simpleLayout) Bind(cl gpu.CommandList) { cl.SetRootSignature(s.rs) }
func (s *simpleLayout) SetMaterial(gpu.CommandList, gpu.DescriptorRange) {}
func (s *simpleLayout) Release() { s.rs.Release() }

func (s *simpleLayout) SetLights(gpu.CommandList, gpu.DescriptorRange, gpu.DescriptorRange) {}

// SetConstants pushes only the view-projection matrix; depth-only shaders read nothing else.
func (s *simpleLayout) SetConstants(cl gpu.CommandList, c FrameConstants) {
	buf := c.Marshal()
	cl.SetRootConstants(ParamConstants, buf[:viewProjSize])
}

func (s *simpleLayout) SetInstances(cl gpu.CommandList, r gpu.DescriptorRange) {
	cl.SetDescriptorTable(ParamInstances, r)
}

type alphaTestLayout struct {
	simpleLayout
}

func (a *alphaTestLayout) Kind() LayoutKind { return LayoutAlphaTest }

func (a *alphaTestLayout) SetMaterial(cl gpu.CommandList, r gpu.DescriptorRange) {
	cl.SetDescriptorTable(ParamMaterial, r)
}

type mainLayout struct {
	alphaTestLayout
}

func (m *mainLayout) Kind() LayoutKind { return LayoutMain }

// SetConstants pushes the full block: camera, ambient and light counts.
func (m *mainLayout) SetConstants(cl gpu.CommandList, c FrameConstants) {
	cl.SetRootConstants(ParamConstants, c.Marshal())
}

// SetLights binds both tables. An empty shadow range leaves the shadow table unbound;
// shaders only sample it for lights with a shadow index.
func (m *mainLayout) SetLights(cl gpu.CommandList, lights, shadows gpu.DescriptorRange) {
	cl.SetDescriptorTable(ParamLights, lights)
	if shadows.Count > 0 {
		cl.SetDescriptorTable(ParamShadows, shadows)
	}
}
