// Package loader imports glTF 2.0 scenes (.gltf and .glb) as scene descriptions.
//
// Every mesh primitive reachable from the default scene becomes one object. Node
// translations become object positions; node rotation and scale are baked into the
// object's vertices so the scene's Euler transform stays free for animation.
// Materials map onto draw categories: BLEND is transparent, MASK is alpha-cut,
// double-sided is two-sided and everything else is static.
package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/light"
	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
)

// DefaultMaxTextureSize bounds imported texture dimensions; larger images are
// scaled down when loaded.
const DefaultMaxTextureSize = 2048

// GLTFLoader loads one glTF or GLB file. It implements scene.Loader and may be
// loaded any number of times; every Load re-reads the file.
type GLTFLoader struct {
	path           string
	lights         []light.Light
	ambient        [3]float32
	dynamic        map[string][3]float32
	maxTextureSize uint32
}

var _ scene.Loader = &GLTFLoader{}

// NewGLTFLoader creates a loader for the file at path.
//
// Parameters:
//   - path: a .gltf or .glb file; external buffers and images resolve relative to it
//   - options: functional options
//
// Returns:
//   - *GLTFLoader: the loader
func NewGLTFLoader(path string, options ...LoaderBuilderOption) *GLTFLoader {
	l := &GLTFLoader{
		path:           path,
		ambient:        [3]float32{0.15, 0.15, 0.18},
		dynamic:        make(map[string][3]float32),
		maxTextureSize: DefaultMaxTextureSize,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Path returns the file the loader reads.
func (l *GLTFLoader) Path() string {
	return l.path
}

// Load parses the file and converts its default scene.
//
// Parameters:
//   - ctx: cancels the conversion between nodes
//
// Returns:
//   - *scene.Description: the converted scene
//   - error: a read, parse or conversion failure, or ctx's error
func (l *GLTFLoader) Load(ctx context.Context) (*scene.Description, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := newGLTFParser()
	if err := p.Parse(l.path); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", l.path, err)
	}
	if req := p.Document().ExtensionsRequired; len(req) > 0 {
		return nil, fmt.Errorf("loader: %s: required extensions not supported: %v", l.path, req)
	}

	b := newSceneBuilder(p, l)
	desc, err := b.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", l.path, err)
	}

	desc.Ambient = l.ambient
	desc.Lights = l.lights
	if len(desc.Lights) == 0 {
		desc.Lights = defaultLights()
	}

	logger.Logger().Info("gltf scene imported",
		"path", l.path, "objects", len(desc.Objects), "meshes", len(desc.Meshes),
		"materials", len(desc.Materials), "skipped", b.skipped)
	return desc, nil
}

// defaultLights is a key light that casts shadows plus a dim fill, used when the
// caller supplies no lights. glTF core has no lights of its own.
func defaultLights() []light.Light {
	return []light.Light{
		light.NewLight(light.LightTypeDirectional,
			light.WithDirection(-0.4, -1, -0.3),
			light.WithColor(1, 1, 0.95),
			light.WithIntensity(1),
			light.WithCastsShadows(true),
		),
		light.NewLight(light.LightTypeDirectional,
			light.WithDirection(0.5, -0.3, 0.6),
			light.WithColor(0.6, 0.7, 1),
			light.WithIntensity(0.3),
		),
	}
}
