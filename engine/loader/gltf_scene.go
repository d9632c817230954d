package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/chewxy/math32"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var errNodeCycle = errors.New("node hierarchy contains a cycle")

// meshKey identifies one baked mesh: a primitive under one rotation/scale.
type meshKey struct {
	mesh, prim int
	linear     [9]float32
}

type materialEntry struct {
	name     string
	category scene.Category
}

// sceneBuilder walks a parsed document and accumulates a scene description.
type sceneBuilder struct {
	p    gltfParser
	l    *GLTFLoader
	desc *scene.Description

	meshes    map[meshKey]string
	materials map[int]materialEntry
	names     map[string]int
	skipped   int
}

func newSceneBuilder(p gltfParser, l *GLTFLoader) *sceneBuilder {
	return &sceneBuilder{
		p:         p,
		l:         l,
		desc:      &scene.Description{},
		meshes:    make(map[meshKey]string),
		materials: make(map[int]materialEntry),
		names:     make(map[string]int),
	}
}

func (b *sceneBuilder) build(ctx context.Context) (*scene.Description, error) {
	var identity [16]float32
	common.Identity(identity[:])
	for _, root := range b.roots() {
		if err := b.visit(ctx, root, identity, 0); err != nil {
			return nil, err
		}
	}
	if len(b.desc.Objects) == 0 {
		return nil, errors.New("scene has no drawable triangles")
	}
	return b.desc, nil
}

// roots returns the default scene's root nodes. Documents without scenes use every
// node that is nobody's child.
func (b *sceneBuilder) roots() []int {
	doc := b.p.Document()
	if len(doc.Scenes) > 0 {
		i := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			i = *doc.Scene
		}
		return doc.Scenes[i].Nodes
	}
	child := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, c := range child {
		if !c {
			roots = append(roots, i)
		}
	}
	return roots
}

func (b *sceneBuilder) visit(ctx context.Context, index int, parent [16]float32, depth int) error {
	doc := b.p.Document()
	if index < 0 || index >= len(doc.Nodes) {
		return fmt.Errorf("node %d out of range", index)
	}
	if depth > len(doc.Nodes) {
		return errNodeCycle
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	node := &doc.Nodes[index]
	local := nodeMatrix(node)
	var world [16]float32
	common.Mul4(world[:], parent[:], local[:])

	if node.Mesh != nil {
		if err := b.addMesh(index, *node.Mesh, world); err != nil {
			return fmt.Errorf("node %d: %w", index, err)
		}
	}
	for _, c := range node.Children {
		if err := b.visit(ctx, c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// nodeMatrix returns the node's local transform, T * R * S unless Matrix is set.
func nodeMatrix(n *gltfNode) [16]float32 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	t := [3]float32{}
	if n.Translation != nil {
		t = *n.Translation
	}
	q := [4]float32{0, 0, 0, 1}
	if n.Rotation != nil {
		q = *n.Rotation
	}
	s := [3]float32{1, 1, 1}
	if n.Scale != nil {
		s = *n.Scale
	}

	x, y, z, w := q[0], q[1], q[2], q[3]
	return [16]float32{
		(1 - 2*(y*y+z*z)) * s[0], 2 * (x*y + z*w) * s[0], 2 * (x*z - y*w) * s[0], 0,
		2 * (x*y - z*w) * s[1], (1 - 2*(x*x+z*z)) * s[1], 2 * (y*z + x*w) * s[1], 0,
		2 * (x*z + y*w) * s[2], 2 * (y*z - x*w) * s[2], (1 - 2*(x*x+y*y)) * s[2], 0,
		t[0], t[1], t[2], 1,
	}
}

// linearPart extracts the upper 3x3 of a column-major 4x4 matrix, column-major.
func linearPart(m [16]float32) [9]float32 {
	return [9]float32{m[0], m[1], m[2], m[4], m[5], m[6], m[8], m[9], m[10]}
}

func (b *sceneBuilder) addMesh(nodeIndex, meshIndex int, world [16]float32) error {
	doc := b.p.Document()
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return fmt.Errorf("mesh %d out of range", meshIndex)
	}
	node := &doc.Nodes[nodeIndex]
	mesh := &doc.Meshes[meshIndex]
	linear := linearPart(world)

	for pi := range mesh.Primitives {
		prim := &mesh.Primitives[pi]
		if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
			b.skipped++
			logger.Logger().Warn("gltf primitive skipped", "mesh", mesh.Name, "primitive", pi, "mode", *prim.Mode)
			continue
		}

		key := meshKey{mesh: meshIndex, prim: pi, linear: linear}
		meshName, ok := b.meshes[key]
		if !ok {
			md, err := b.extractPrimitive(prim, linear)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", meshIndex, pi, err)
			}
			base := mesh.Name
			if base == "" {
				base = fmt.Sprintf("mesh_%d", meshIndex)
			}
			if len(mesh.Primitives) > 1 {
				base = fmt.Sprintf("%s_prim%d", base, pi)
			}
			md.Name = b.unique(base)
			meshName = md.Name
			b.meshes[key] = meshName
			b.desc.Meshes = append(b.desc.Meshes, md)
		}

		mat := -1
		if prim.Material != nil {
			mat = *prim.Material
		}
		entry, err := b.material(mat)
		if err != nil {
			return err
		}

		od := scene.ObjectData{
			Name:     common.Coalesce(node.Name, mesh.Name, fmt.Sprintf("node_%d", nodeIndex)),
			Mesh:     meshName,
			Material: entry.name,
			Category: entry.category,
			Position: [3]float32{world[12], world[13], world[14]},
			Scale:    [3]float32{1, 1, 1},
		}
		if spin, ok := b.l.dynamic[node.Name]; ok && entry.category.Opaque() {
			od.Category = scene.CategoryDynamic
			od.Spin = spin
		}
		b.desc.Objects = append(b.desc.Objects, od)
	}
	return nil
}

// extractPrimitive reads a triangle primitive and bakes linear into its positions
// and normals. Mirrored transforms have their winding flipped so front faces stay
// counter-clockwise.
func (b *sceneBuilder) extractPrimitive(prim *gltfPrimitive, linear [9]float32) (scene.MeshData, error) {
	posAcc, ok := prim.Attributes["POSITION"]
	if !ok {
		return scene.MeshData{}, errors.New("primitive has no POSITION attribute")
	}
	positions, err := b.p.ReadFloats(posAcc, 3)
	if err != nil {
		return scene.MeshData{}, fmt.Errorf("positions: %w", err)
	}
	n := len(positions) / 3
	vertices := make([]scene.Vertex, n)
	for i := range vertices {
		vertices[i].Position = mulLinear(linear, [3]float32{positions[i*3], positions[i*3+1], positions[i*3+2]})
	}

	hasNormals := false
	if acc, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := b.p.ReadFloats(acc, 3)
		if err != nil {
			return scene.MeshData{}, fmt.Errorf("normals: %w", err)
		}
		cof := cofactor(linear)
		if determinant(linear) < 0 {
			for i := range cof {
				cof[i] = -cof[i]
			}
		}
		for i := range min(n, len(normals)/3) {
			vertices[i].Normal = common.Normalize3(mulLinear(cof, [3]float32{normals[i*3], normals[i*3+1], normals[i*3+2]}))
		}
		hasNormals = true
	}

	if acc, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := b.p.ReadFloats(acc, 2)
		if err != nil {
			return scene.MeshData{}, fmt.Errorf("texcoords: %w", err)
		}
		for i := range min(n, len(uvs)/2) {
			vertices[i].UV = [2]float32{uvs[i*2], uvs[i*2+1]}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = b.p.ReadIndices(*prim.Indices); err != nil {
			return scene.MeshData{}, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, n)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	indices = indices[:len(indices)-len(indices)%3]
	for _, idx := range indices {
		if int(idx) >= n {
			return scene.MeshData{}, fmt.Errorf("index %d out of range for %d vertices", idx, n)
		}
	}
	if len(indices) == 0 {
		return scene.MeshData{}, errors.New("primitive has no triangles")
	}

	if determinant(linear) < 0 {
		for i := 0; i+2 < len(indices); i += 3 {
			indices[i+1], indices[i+2] = indices[i+2], indices[i+1]
		}
	}
	if !hasNormals {
		generateNormals(vertices, indices)
	}
	return scene.MeshData{Vertices: vertices, Indices: indices}, nil
}

// material converts glTF material index, or -1 for the default material.
func (b *sceneBuilder) material(index int) (materialEntry, error) {
	if e, ok := b.materials[index]; ok {
		return e, nil
	}
	doc := b.p.Document()

	var e materialEntry
	md := scene.MaterialData{Color: [4]uint8{255, 255, 255, 255}}
	switch {
	case index < 0:
		md.Name = b.unique("default")
		e.category = scene.CategoryStatic
	case index >= len(doc.Materials):
		return e, fmt.Errorf("material %d out of range", index)
	default:
		m := &doc.Materials[index]
		md.Name = b.unique(common.Coalesce(m.Name, fmt.Sprintf("material_%d", index)))
		e.category = materialCategory(m)

		factor := [4]float32{1, 1, 1, 1}
		if pbr := m.PbrMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				factor = *pbr.BaseColorFactor
			}
			if pbr.BaseColorTexture != nil {
				img, err := b.texture(pbr.BaseColorTexture.Index)
				if err != nil {
					return e, fmt.Errorf("material %q: base color texture: %w", md.Name, err)
				}
				md.Width = uint32(img.Rect.Dx())
				md.Height = uint32(img.Rect.Dy())
				md.Pixels = img.Pix
				tint(md.Pixels, factor)
			}
		}
		if md.Pixels == nil {
			md.Color = toRGBA8(factor)
		}
	}

	e.name = md.Name
	b.desc.Materials = append(b.desc.Materials, md)
	b.materials[index] = e
	return e, nil
}

func materialCategory(m *gltfMaterial) scene.Category {
	switch {
	case m.AlphaMode == gltfAlphaModeBlend:
		return scene.CategoryTransparent
	case m.AlphaMode == gltfAlphaModeMask:
		return scene.CategoryAlphaCut
	case m.DoubleSided:
		return scene.CategoryTwoSided
	default:
		return scene.CategoryStatic
	}
}

// texture decodes the image behind texture index into tightly packed,
// non-premultiplied RGBA8, downscaled to the loader's size bound.
func (b *sceneBuilder) texture(index int) (*image.NRGBA, error) {
	doc := b.p.Document()
	if index < 0 || index >= len(doc.Textures) {
		return nil, fmt.Errorf("texture %d out of range", index)
	}
	src := doc.Textures[index].Source
	if src == nil || *src < 0 || *src >= len(doc.Images) {
		return nil, fmt.Errorf("texture %d has no image", index)
	}
	img := &doc.Images[*src]

	var data []byte
	var err error
	if img.BufferView != nil {
		data, err = b.p.ReadBufferView(*img.BufferView)
	} else {
		data, _, err = b.p.LoadURI(img.URI)
	}
	if err != nil {
		return nil, err
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", *src, err)
	}
	bounds := decoded.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if limit := int(b.l.maxTextureSize); limit > 0 && (w > limit || h > limit) {
		if w >= h {
			w, h = limit, max(h*limit/w, 1)
		} else {
			w, h = max(w*limit/h, 1), limit
		}
		out := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(out, out.Bounds(), decoded, bounds, draw.Src, nil)
		logger.Logger().Debug("gltf texture downscaled", "image", *src, "format", format,
			"from", bounds.Size(), "to", out.Bounds().Size())
		return out, nil
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), decoded, bounds.Min, draw.Src)
	return out, nil
}

// tint multiplies RGBA8 pixels by a linear color factor in place.
func tint(pixels []byte, factor [4]float32) {
	if factor == [4]float32{1, 1, 1, 1} {
		return
	}
	for i := range pixels {
		pixels[i] = uint8(math32.Round(float32(pixels[i]) * clamp01(factor[i%4])))
	}
}

func toRGBA8(c [4]float32) [4]uint8 {
	var out [4]uint8
	for i, f := range c {
		out[i] = uint8(math32.Round(clamp01(f) * 255))
	}
	return out
}

func clamp01(f float32) float32 {
	return min(max(f, 0), 1)
}

// unique returns base, or base with a numeric suffix if base was already used.
func (b *sceneBuilder) unique(base string) string {
	n := b.names[base]
	b.names[base] = n + 1
	if n == 0 {
		return base
	}
	return b.unique(fmt.Sprintf("%s.%d", base, n))
}

func mulLinear(m [9]float32, v [3]float32) [3]float32 {
	return [3]float32{
		m[0]*v[0] + m[3]*v[1] + m[6]*v[2],
		m[1]*v[0] + m[4]*v[1] + m[7]*v[2],
		m[2]*v[0] + m[5]*v[1] + m[8]*v[2],
	}
}

func determinant(m [9]float32) float32 {
	return m[0]*(m[4]*m[8]-m[7]*m[5]) - m[3]*(m[1]*m[8]-m[7]*m[2]) + m[6]*(m[1]*m[5]-m[4]*m[2])
}

// cofactor returns the cofactor matrix of m, the inverse transpose scaled by the
// determinant.
func cofactor(m [9]float32) [9]float32 {
	c0 := common.Cross3([3]float32{m[3], m[4], m[5]}, [3]float32{m[6], m[7], m[8]})
	c1 := common.Cross3([3]float32{m[6], m[7], m[8]}, [3]float32{m[0], m[1], m[2]})
	c2 := common.Cross3([3]float32{m[0], m[1], m[2]}, [3]float32{m[3], m[4], m[5]})
	return [9]float32{c0[0], c0[1], c0[2], c1[0], c1[1], c1[2], c2[0], c2[1], c2[2]}
}

// generateNormals computes area-weighted smooth vertex normals from triangles.
// Vertices not referenced by any triangle, or only by degenerate ones, point up.
func generateNormals(vertices []scene.Vertex, indices []uint32) {
	accum := make([][3]float32, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := vertices[i0].Position, vertices[i1].Position, vertices[i2].Position
		face := common.Cross3(
			[3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]},
			[3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]},
		)
		for _, idx := range [3]uint32{i0, i1, i2} {
			accum[idx][0] += face[0]
			accum[idx][1] += face[1]
			accum[idx][2] += face[2]
		}
	}
	for i := range vertices {
		n := common.Normalize3(accum[i])
		if n == ([3]float32{}) {
			n = [3]float32{0, 1, 0}
		}
		vertices[i].Normal = n
	}
}
