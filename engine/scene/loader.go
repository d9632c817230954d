package scene

import (
	"context"

	"github.com/Carmen-Shannon/oxy-frame/engine/light"
)

// Description is a complete scene ready to be created on a device.
type Description struct {
	Meshes    []MeshData
	Materials []MaterialData
	Objects   []ObjectData
	Lights    []light.Light
	Ambient   [3]float32
}

// Loader produces a scene description. Implementations parse scene files or
// build scenes procedurally; the engine runs Load on a background worker.
type Loader interface {
	Load(ctx context.Context) (*Description, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (*Description, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (*Description, error) {
	return f(ctx)
}
