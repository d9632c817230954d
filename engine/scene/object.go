package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

// Category selects which pass family and pipeline variant draws an object.
type Category int

const (
	// CategoryDynamic objects are opaque and move every frame.
	CategoryDynamic Category = iota
	// CategoryStatic objects are opaque and never move after load.
	CategoryStatic
	// CategoryTwoSided objects are opaque and drawn without face culling.
	CategoryTwoSided
	// CategoryAlphaCut objects discard texels below the alpha threshold.
	CategoryAlphaCut
	// CategoryTransparent objects are blended back to front after everything else.
	CategoryTransparent

	numCategories
)

var categoryNames = [...]string{
	CategoryDynamic:     "dynamic",
	CategoryStatic:      "static",
	CategoryTwoSided:    "two-sided",
	CategoryAlphaCut:    "alpha-cut",
	CategoryTransparent: "transparent",
}

func (c Category) String() string {
	if c >= 0 && c < numCategories {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// CategoryNames returns every category name in value order.
func CategoryNames() []string {
	return categoryNames[:]
}

// Opaque reports whether c writes depth in the early-Z pre-pass.
func (c Category) Opaque() bool {
	return c == CategoryDynamic || c == CategoryStatic || c == CategoryTwoSided
}

// TextureMode selects whether DrawCategory binds each batch's material.
type TextureMode int

const (
	// TextureNone draws without material bindings, for depth and object-id passes.
	TextureNone TextureMode = iota
	// TextureBind binds each batch's material texture before drawing it.
	TextureBind
)

// ObjectData describes one object as produced by a Loader. Mesh and Material name
// entries of the same Description.
type ObjectData struct {
	Name     string
	Mesh     string
	Material string
	Category Category
	Position [3]float32
	Rotation [3]float32
	Scale    [3]float32
	// Spin is the rotation speed in radians per second, applied to dynamic objects.
	Spin [3]float32
}

// Object is an entry in the scene's object arena. Its index is stable for the
// lifetime of the scene and addresses its row in the transform table, its record
// in the instance buffer and the id the picking pass reports.
type Object struct {
	Name     string
	Category Category
	Position [3]float32
	Rotation [3]float32
	Scale    [3]float32
	Spin     [3]float32
	Visible  bool

	index    int
	mesh     int
	material int
}

// Index returns the object's stable arena index.
func (o *Object) Index() int {
	return o.index
}

// ID returns the value the object-id pass writes for this object.
func (o *Object) ID() uint32 {
	return uint32(o.index)
}

// modelMatrix writes the object's model matrix into out.
func (o *Object) modelMatrix(out []float32) {
	common.BuildModelMatrix(out, o.Position, o.Rotation, o.Scale)
}
