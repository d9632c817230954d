package scene

import (
	"context"

	"github.com/Carmen-Shannon/oxy-frame/engine/light"
	"github.com/chewxy/math32"
)

// DemoLoader builds the demo scene procedurally: a ground plane, a ring of static
// pillars, spinning dynamic cubes, cut-out foliage cards, transparent panes and
// three lights of which two cast shadows.
type DemoLoader struct {
	// Cubes is the number of dynamic cubes, arranged on a grid.
	Cubes int
}

// Load returns the demo description.
func (d DemoLoader) Load(ctx context.Context) (*Description, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	desc := &Description{
		Meshes: []MeshData{
			Cube("cube", 1),
			Plane("ground", 40, 8),
			Quad("card", 2, 2),
		},
		Materials: []MaterialData{
			Checker("grass", 64, 8, [4]uint8{70, 120, 60, 255}, [4]uint8{60, 100, 50, 255}),
			Checker("crate", 64, 16, [4]uint8{150, 110, 70, 255}, [4]uint8{120, 85, 50, 255}),
			Checker("leaves", 64, 4, [4]uint8{40, 140, 40, 255}, [4]uint8{0, 0, 0, 0}),
			{Name: "stone", Color: [4]uint8{160, 160, 165, 255}},
			{Name: "glass", Color: [4]uint8{120, 180, 255, 96}},
		},
		Ambient: [3]float32{0.15, 0.15, 0.18},
	}

	desc.Objects = append(desc.Objects, ObjectData{Name: "ground", Mesh: "ground", Material: "grass", Category: CategoryStatic})

	n := max(d.Cubes, 1)
	side := 1
	for side*side < n {
		side++
	}
	for i := range n {
		x := float32(i%side) - float32(side-1)/2
		z := float32(i/side) - float32(side-1)/2
		desc.Objects = append(desc.Objects, ObjectData{
			Name:     "cube",
			Mesh:     "cube",
			Material: "crate",
			Category: CategoryDynamic,
			Position: [3]float32{x * 2.5, 1, z * 2.5},
			Scale:    [3]float32{1, 1, 1},
			Spin:     [3]float32{0, 0.6 + float32(i%5)*0.2, 0.3},
		})
	}

	for i := range 8 {
		a := float32(i) * math32.Pi / 4
		desc.Objects = append(desc.Objects, ObjectData{
			Name:     "pillar",
			Mesh:     "cube",
			Material: "stone",
			Category: CategoryStatic,
			Position: [3]float32{14 * math32.Cos(a), 2, 14 * math32.Sin(a)},
			Scale:    [3]float32{1, 4, 1},
		})
	}

	for i := range 4 {
		desc.Objects = append(desc.Objects, ObjectData{
			Name:     "foliage",
			Mesh:     "card",
			Material: "leaves",
			Category: CategoryAlphaCut,
			Position: [3]float32{-9 + float32(i)*6, 1, -10},
			Rotation: [3]float32{0, float32(i) * 0.4, 0},
		})
	}

	desc.Objects = append(desc.Objects,
		ObjectData{Name: "banner", Mesh: "card", Material: "crate", Category: CategoryTwoSided, Position: [3]float32{0, 3, -12}, Scale: [3]float32{3, 1.5, 1}},
	)

	for i := range 3 {
		desc.Objects = append(desc.Objects, ObjectData{
			Name:     "pane",
			Mesh:     "card",
			Material: "glass",
			Category: CategoryTransparent,
			Position: [3]float32{-4 + float32(i)*4, 1.5, 6 + float32(i)*2},
			Scale:    [3]float32{1.5, 1.5, 1},
		})
	}

	desc.Lights = []light.Light{
		light.NewLight(light.LightTypePoint,
			light.WithPosition(0, 6, 0),
			light.WithColor(1, 0.85, 0.6),
			light.WithIntensity(2),
			light.WithRange(25),
		),
		light.NewLight(light.LightTypeDirectional,
			light.WithDirection(-0.4, -1, -0.3),
			light.WithColor(1, 1, 0.95),
			light.WithIntensity(0.8),
			light.WithCastsShadows(true),
		),
		light.NewLight(light.LightTypeSpot,
			light.WithPosition(-8, 10, 8),
			light.WithDirection(0.6, -1, -0.6),
			light.WithSpotCone(20, 30),
			light.WithRange(40),
			light.WithIntensity(3),
			light.WithCastsShadows(true),
		),
	}
	return desc, nil
}
