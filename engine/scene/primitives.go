package scene

// Cube returns an axis-aligned cube of edge length size centered on the origin,
// with per-face normals and a full 0..1 UV square on every face.
func Cube(name string, size float32) MeshData {
	h := size / 2
	faces := []struct {
		normal, u, v [3]float32
	}{
		{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}},
		{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
		{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
		{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
	}
	m := MeshData{Name: name}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			var p [3]float32
			for i := range 3 {
				p[i] = (f.normal[i] + c[0]*f.u[i] + c[1]*f.v[i]) * h
			}
			m.Vertices = append(m.Vertices, Vertex{
				Position: p,
				Normal:   f.normal,
				UV:       [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// Plane returns a size x size square in the XZ plane facing +Y, with UVs repeated
// tiles times across it.
func Plane(name string, size, tiles float32) MeshData {
	h := size / 2
	up := [3]float32{0, 1, 0}
	return MeshData{
		Name: name,
		Vertices: []Vertex{
			{Position: [3]float32{-h, 0, h}, Normal: up, UV: [2]float32{0, tiles}},
			{Position: [3]float32{h, 0, h}, Normal: up, UV: [2]float32{tiles, tiles}},
			{Position: [3]float32{h, 0, -h}, Normal: up, UV: [2]float32{tiles, 0}},
			{Position: [3]float32{-h, 0, -h}, Normal: up, UV: [2]float32{0, 0}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// Quad returns a width x height rectangle in the XY plane facing +Z, for panes and
// cut-out cards. Draw it two-sided to see the back.
func Quad(name string, width, height float32) MeshData {
	w, h := width/2, height/2
	front := [3]float32{0, 0, 1}
	return MeshData{
		Name: name,
		Vertices: []Vertex{
			{Position: [3]float32{-w, -h, 0}, Normal: front, UV: [2]float32{0, 1}},
			{Position: [3]float32{w, -h, 0}, Normal: front, UV: [2]float32{1, 1}},
			{Position: [3]float32{w, h, 0}, Normal: front, UV: [2]float32{1, 0}},
			{Position: [3]float32{-w, h, 0}, Normal: front, UV: [2]float32{0, 0}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}
